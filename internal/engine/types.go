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

package engine

import (
	"time"

	"filehash-platform/internal/source"
	"filehash-platform/internal/task"
	apperrors "filehash-platform/pkg/errors"
)

// ItemSpec 提交的单个 Item：已解码的来源、声明名与算法名（空则使用默认算法）
type ItemSpec struct {
	Name      string
	Source    source.Source
	Algorithm string
}

// SubmitOptions 提交选项
type SubmitOptions struct {
	Label     string // upload | directory | path | sync
	Directory string
	ChunkSize int // 0 使用引擎默认值
}

// Outcome 单个 Item 的当前结果
type Outcome struct {
	Index     int             `json:"index"`
	Name      string          `json:"name"`
	Algorithm string          `json:"algorithm"`
	State     string          `json:"state"`
	Digest    string          `json:"digest,omitempty"`
	Error     *task.ItemError `json:"error,omitempty"`
	Bytes     int64           `json:"bytes"`
	Cached    bool            `json:"cached,omitempty"`
	Duration  time.Duration   `json:"duration_ns"`
}

// Summary Task 状态摘要
type Summary struct {
	TaskID      string        `json:"task_id"`
	Status      task.Status   `json:"status"`
	Counts      task.Counts   `json:"counts"`
	Label       string        `json:"label,omitempty"`
	Directory   string        `json:"directory,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// Result 同步计算结果
type Result struct {
	TaskID   string      `json:"task_id"`
	Status   task.Status `json:"status"`
	Outcomes []Outcome   `json:"outcomes"`
}

func summarize(s task.Snapshot, now time.Time) Summary {
	sum := Summary{
		TaskID:    s.ID,
		Status:    s.Status,
		Counts:    s.Counts,
		Label:     s.Meta.Label,
		Directory: s.Meta.Directory,
		CreatedAt: s.CreatedAt,
		Elapsed:   s.Elapsed(now),
	}
	if !s.CompletedAt.IsZero() {
		at := s.CompletedAt
		sum.CompletedAt = &at
	}
	return sum
}

// outcomes 按提交顺序转换；includeErrors=false 时保留失败位置但去掉错误消息
func outcomes(items []task.Item, includeErrors bool) []Outcome {
	out := make([]Outcome, len(items))
	for i, it := range items {
		o := Outcome{
			Index:     i,
			Name:      it.Name,
			Algorithm: it.Algorithm,
			State:     it.State.String(),
			Digest:    it.Digest,
			Bytes:     it.Bytes,
			Cached:    it.Cached,
			Duration:  it.Duration(),
		}
		if it.Err != nil {
			e := *it.Err
			if !includeErrors {
				e.Message = ""
			}
			o.Error = &e
		}
		out[i] = o
	}
	return out
}

// Failed 结果中失败的 Item 数
func (r Result) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Error != nil {
			n++
		}
	}
	return n
}

// ErrorKind 单个结果的错误类别，无错误时为空
func (o Outcome) ErrorKind() apperrors.Kind {
	if o.Error == nil {
		return ""
	}
	return o.Error.Kind
}
