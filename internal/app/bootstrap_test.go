// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filehash-platform/internal/engine"
	"filehash-platform/internal/source"
	"filehash-platform/pkg/config"
)

func TestNewBootstrap_Defaults(t *testing.T) {
	ctx := context.Background()
	b, err := NewBootstrap(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = b.Close(c)
	})

	assert.NotNil(t, b.Cache, "memory cache by default")
	assert.Equal(t, "sha256", b.Engine.DefaultAlgorithm())

	res, err := b.Engine.ComputeNow(ctx, []engine.ItemSpec{{Name: "abc", Source: source.FromBytes([]byte("abc"))}}, engine.SubmitOptions{}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", res.Outcomes[0].Digest)
}

func TestNewBootstrap_SecretReference(t *testing.T) {
	t.Setenv("FILEHASH_JWT", "from-env")
	cfg := config.Default()
	cfg.API.Middleware.JWTKey = "secret://filehash.jwt"
	cfg.Storage.Cache.Type = "none"

	b, err := NewBootstrap(context.Background(), cfg)
	require.NoError(t, err)
	defer b.Close(context.Background())

	assert.Equal(t, "from-env", b.JWTKey)
	assert.Nil(t, b.Cache)
}

func TestNewBootstrap_BadProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Secrets.Provider = "nope"
	_, err := NewBootstrap(context.Background(), cfg)
	assert.Error(t, err)
}
