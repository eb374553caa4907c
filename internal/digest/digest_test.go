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

package digest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "filehash-platform/pkg/errors"
)

func TestCompute_KnownVectors(t *testing.T) {
	cases := []struct {
		algo string
		in   string
		want string
	}{
		{"sha256", "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"md5", "", "d41d8cd98f00b204e9800998ecf8427e"},
		{"sha1", "abc", "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{"sha3_256", "", "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a"},
		{"SHA-256", "abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}
	for _, tc := range cases {
		t.Run(tc.algo, func(t *testing.T) {
			got, n, err := Compute(context.Background(), strings.NewReader(tc.in), tc.algo, MinChunkSize)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, int64(len(tc.in)), n)
		})
	}
}

func TestCompute_ChunkSizeDoesNotChangeDigest(t *testing.T) {
	data := strings.Repeat("0123456789", 1000)
	a, _, err := Compute(context.Background(), strings.NewReader(data), "sha512", 512)
	require.NoError(t, err)
	b, _, err := Compute(context.Background(), strings.NewReader(data), "sha512", 1<<20)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCompute_UnsupportedAlgorithm(t *testing.T) {
	_, _, err := Compute(context.Background(), strings.NewReader("x"), "crc99", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestCompute_ReadFailureIsSourceUnreadable(t *testing.T) {
	_, _, err := Compute(context.Background(), failingReader{}, "sha256", 0)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindSourceUnreadable, apperrors.KindOf(err))
}

func TestCompute_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Compute(ctx, strings.NewReader("abc"), "sha256", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeAndSupported(t *testing.T) {
	assert.Equal(t, "sha256", Normalize("SHA-256"))
	assert.Equal(t, "sha256", Normalize(" sha256 "))
	assert.Equal(t, "sha3_256", Normalize("SHA3-256"))
	assert.Equal(t, "sha512_256", Normalize("sha512-256"))
	assert.True(t, Supported("Blake2b"))
	assert.False(t, Supported("crc32"))
}

func TestListAlgorithms(t *testing.T) {
	list := ListAlgorithms()
	assert.Contains(t, list, "md5")
	assert.Contains(t, list, "sha256")
	assert.IsIncreasing(t, list)
	list[0] = "mutated"
	assert.NotEqual(t, "mutated", ListAlgorithms()[0])
}

func TestValidateChunkSize(t *testing.T) {
	n, err := ValidateChunkSize(0)
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, n)

	_, err = ValidateChunkSize(100)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = ValidateChunkSize(MaxChunkSize + 1)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestBytes_Idempotent(t *testing.T) {
	a, err := Bytes([]byte("hello"), "sha256")
	require.NoError(t, err)
	b, err := Bytes([]byte("hello"), "sha256")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
