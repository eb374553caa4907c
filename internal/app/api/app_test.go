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

package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filehash-platform/internal/app"
	"filehash-platform/pkg/config"
)

func newBootstrap(t *testing.T, mutate func(*config.Config)) *app.Bootstrap {
	t.Helper()
	cfg := config.Default()
	cfg.Log.Level = "error"
	if mutate != nil {
		mutate(cfg)
	}
	b, err := app.NewBootstrap(context.Background(), cfg)
	require.NoError(t, err)
	return b
}

func TestNewApp_AuthRequiresKey(t *testing.T) {
	b := newBootstrap(t, func(c *config.Config) { c.API.Middleware.Auth = true })
	defer b.Close(context.Background())

	_, err := NewApp(b)
	assert.Error(t, err)
}

func TestNewApp_ShutdownWithoutRun(t *testing.T) {
	b := newBootstrap(t, func(c *config.Config) {
		c.API.Middleware.Auth = true
		c.API.Middleware.JWTKey = "k"
		c.API.Middleware.RateLimit = true
	})
	a, err := NewApp(b)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, a.Shutdown(ctx))
}
