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

package task

import (
	"time"

	"filehash-platform/internal/source"
	apperrors "filehash-platform/pkg/errors"
)

// ItemState Item 状态；Pending → Running → Done|Failed，终态不可变
type ItemState int

const (
	ItemPending ItemState = iota
	ItemRunning
	ItemDone
	ItemFailed
)

func (s ItemState) String() string {
	switch s {
	case ItemPending:
		return "pending"
	case ItemRunning:
		return "running"
	case ItemDone:
		return "done"
	case ItemFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal 是否终态
func (s ItemState) Terminal() bool {
	return s == ItemDone || s == ItemFailed
}

// ItemError Failed Item 的错误信息
type ItemError struct {
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message,omitempty"`
}

// NewItemError 由 error 构造 ItemError，类别由 apperrors.KindOf 推导
func NewItemError(err error) *ItemError {
	if err == nil {
		return nil
	}
	return &ItemError{Kind: apperrors.KindOf(err), Message: err.Error()}
}

// Item 单个摘要工作单元：一个来源 + 一个算法 → 一个摘要或一个错误
type Item struct {
	Name      string // 调用方声明的标识（文件名或路径），Verifier 按此匹配
	Source    source.Source
	Algorithm string

	State      ItemState
	Digest     string     // 仅 Done
	Err        *ItemError // 仅 Failed
	Bytes      int64
	Cached     bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration Item 计算耗时；未开始或未结束时为 0
func (it Item) Duration() time.Duration {
	if it.StartedAt.IsZero() || it.FinishedAt.IsZero() {
		return 0
	}
	return it.FinishedAt.Sub(it.StartedAt)
}

// Transition UpdateItem 的目标状态与负载
type Transition struct {
	To     ItemState
	Digest string
	Err    *ItemError
	Bytes  int64
	Cached bool
}

// Running 标记开始
func Running() Transition { return Transition{To: ItemRunning} }

// Done 标记成功
func Done(digest string, bytes int64, cached bool) Transition {
	return Transition{To: ItemDone, Digest: digest, Bytes: bytes, Cached: cached}
}

// Failed 标记失败
func Failed(err error) Transition {
	ie := NewItemError(err)
	if ie == nil {
		ie = &ItemError{Kind: apperrors.KindInternal}
	}
	return Transition{To: ItemFailed, Err: ie}
}

// allowed 合法迁移；Pending → Failed 仅限取消
func (tr Transition) allowed(from ItemState) bool {
	switch from {
	case ItemPending:
		return tr.To == ItemRunning ||
			(tr.To == ItemFailed && tr.Err != nil && tr.Err.Kind == apperrors.KindCancelled)
	case ItemRunning:
		return tr.To == ItemDone || tr.To == ItemFailed
	default:
		return false
	}
}
