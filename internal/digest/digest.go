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

// Package digest 提供流式摘要计算：固定大小分块读取，按算法名选择 hash 实现。
package digest

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"

	apperrors "filehash-platform/pkg/errors"
)

// 分块大小限制（字节）
const (
	DefaultChunkSize = 4096
	MinChunkSize     = 512
	MaxChunkSize     = 16 << 20
)

type factory func() (hash.Hash, error)

func plain(f func() hash.Hash) factory {
	return func() (hash.Hash, error) { return f(), nil }
}

// 进程级常量表，初始化后只读
var algorithms = map[string]factory{
	"md5":        plain(md5.New),
	"sha1":       plain(sha1.New),
	"sha224":     plain(sha256.New224),
	"sha256":     plain(sha256.New),
	"sha384":     plain(sha512.New384),
	"sha512":     plain(sha512.New),
	"sha512_224": plain(sha512.New512_224),
	"sha512_256": plain(sha512.New512_256),
	"sha3_224":   plain(sha3.New224),
	"sha3_256":   plain(sha3.New256),
	"sha3_384":   plain(sha3.New384),
	"sha3_512":   plain(sha3.New512),
	"blake2b":    func() (hash.Hash, error) { return blake2b.New512(nil) },
	"blake2s":    func() (hash.Hash, error) { return blake2s.New256(nil) },
}

var sortedNames = func() []string {
	names := make([]string, 0, len(algorithms))
	for n := range algorithms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}()

// ListAlgorithms 返回支持的算法名（已排序，调用方可修改返回的切片）
func ListAlgorithms() []string {
	out := make([]string, len(sortedNames))
	copy(out, sortedNames)
	return out
}

// Normalize 规范化算法名："SHA-256" / "sha3-256" / " Sha256 " → "sha256" / "sha3_256"
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if _, ok := algorithms[n]; ok {
		return n
	}
	n = strings.ReplaceAll(n, "-", "_")
	if _, ok := algorithms[n]; ok {
		return n
	}
	// "sha_256" → "sha256"
	if strings.HasPrefix(n, "sha_") {
		if c := "sha" + strings.TrimPrefix(n, "sha_"); algorithms[c] != nil {
			return c
		}
	}
	return n
}

// Supported 算法名（规范化后）是否受支持
func Supported(name string) bool {
	_, ok := algorithms[Normalize(name)]
	return ok
}

// ValidateChunkSize 校验分块大小；0 表示使用默认值
func ValidateChunkSize(size int) (int, error) {
	if size == 0 {
		return DefaultChunkSize, nil
	}
	if size < MinChunkSize || size > MaxChunkSize {
		return 0, apperrors.Validationf("chunk_size %d out of range [%d, %d]", size, MinChunkSize, MaxChunkSize)
	}
	return size, nil
}

// Func 摘要函数：读取 r 直至 EOF，返回十六进制摘要与读取字节数
type Func func(ctx context.Context, r io.Reader, algorithm string, chunkSize int) (string, int64, error)

// Compute 以固定大小分块流式读取 r 并计算摘要；每块之间检查 ctx
func Compute(ctx context.Context, r io.Reader, algorithm string, chunkSize int) (string, int64, error) {
	name := Normalize(algorithm)
	newHash, ok := algorithms[name]
	if !ok {
		return "", 0, apperrors.Validationf("unsupported algorithm %q", algorithm)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	h, err := newHash()
	if err != nil {
		return "", 0, fmt.Errorf("init %s: %w", name, err)
	}

	buf := make([]byte, chunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return "", total, err
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			total += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", total, fmt.Errorf("%w: %v", apperrors.ErrSourceUnreadable, rerr)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), total, nil
}

// Bytes 计算内存数据的摘要
func Bytes(data []byte, algorithm string) (string, error) {
	d, _, err := Compute(context.Background(), bytes.NewReader(data), algorithm, DefaultChunkSize)
	return d, err
}
