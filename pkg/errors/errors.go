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

// Package errors 提供统一错误分类与包装辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// Kind 错误类别，供 API 层映射状态码、供 Item 记录失败原因
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindSourceUnreadable Kind = "source_unreadable"
	KindOverloaded       Kind = "overloaded"
	KindTimeout          Kind = "timeout"
	KindCancelled        Kind = "cancelled"
	KindInternal         Kind = "internal"
)

// 哨兵错误，与 Kind 一一对应；调用方用 errors.Is 判断
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrSourceUnreadable = errors.New("source unreadable")
	ErrOverloaded       = errors.New("overloaded")
	ErrTimeout          = errors.New("timeout")
	ErrCancelled        = errors.New("cancelled")
)

var kinds = []struct {
	sentinel error
	kind     Kind
}{
	{ErrValidation, KindValidation},
	{ErrNotFound, KindNotFound},
	{ErrSourceUnreadable, KindSourceUnreadable},
	{ErrOverloaded, KindOverloaded},
	{ErrTimeout, KindTimeout},
	{ErrCancelled, KindCancelled},
}

// KindOf 返回 err 所属类别；nil 返回空串，无法识别时为 KindInternal
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindInternal
}

// Validationf 构造 ErrValidation 包装的错误
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf 构造 ErrNotFound 包装的错误
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Overloadedf 构造 ErrOverloaded 包装的错误
func Overloadedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrOverloaded, fmt.Sprintf(format, args...))
}

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
