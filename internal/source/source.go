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

// Package source 定义 Item 的数据来源（上传内容或服务端路径）以及目录枚举。
package source

import (
	"bytes"
	"fmt"
	"io"
	"os"

	apperrors "filehash-platform/pkg/errors"
)

// Kind 来源类型
type Kind int

const (
	// KindBytes 上传内容（内存）
	KindBytes Kind = iota + 1
	// KindPath 服务端文件路径
	KindPath
)

func (k Kind) String() string {
	switch k {
	case KindBytes:
		return "upload"
	case KindPath:
		return "path"
	default:
		return "unknown"
	}
}

// Source Item 的数据来源；零值无效
type Source struct {
	kind Kind
	data []byte
	path string
}

// FromBytes 以上传内容构造来源；data 不会被复制，调用方提交后不得再修改
func FromBytes(data []byte) Source {
	if data == nil {
		data = []byte{}
	}
	return Source{kind: KindBytes, data: data}
}

// FromPath 以服务端路径构造来源；路径在计算时才打开
func FromPath(path string) Source {
	return Source{kind: KindPath, path: path}
}

// Kind 返回来源类型
func (s Source) Kind() Kind { return s.kind }

// Path 返回路径（仅 KindPath 有效）
func (s Source) Path() string { return s.path }

// Len 上传内容长度；路径来源返回 -1
func (s Source) Len() int64 {
	if s.kind == KindBytes {
		return int64(len(s.data))
	}
	return -1
}

// Release 丢弃上传内容，保留类型与路径；用于 Item 终态后释放内存
func (s Source) Release() Source {
	if s.kind == KindBytes {
		s.data = nil
	}
	return s
}

// Valid 来源描述是否可用
func (s Source) Valid() bool {
	switch s.kind {
	case KindBytes:
		return s.data != nil
	case KindPath:
		return s.path != ""
	default:
		return false
	}
}

// Open 打开来源为可读流；路径不存在或不可读时返回 ErrSourceUnreadable
func (s Source) Open() (io.ReadCloser, error) {
	switch s.kind {
	case KindBytes:
		return io.NopCloser(bytes.NewReader(s.data)), nil
	case KindPath:
		f, err := os.Open(s.path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrSourceUnreadable, err)
		}
		return f, nil
	default:
		return nil, apperrors.Validationf("empty source")
	}
}

func (s Source) String() string {
	if s.kind == KindPath {
		return s.path
	}
	return fmt.Sprintf("%s(%d bytes)", s.kind, len(s.data))
}
