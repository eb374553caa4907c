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

// Package task 定义 Task/Item 模型与进程内 Task Registry。
package task

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "filehash-platform/pkg/errors"
)

// ErrInvalidTransition Item 状态迁移不合法（例如已终态、已被取消）
var ErrInvalidTransition = errors.New("invalid item transition")

// Status Task 聚合状态，始终由 Item 状态推导
type Status string

const (
	StatusPending             Status = "pending"
	StatusRunning             Status = "running"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
)

// Terminal 是否已结束
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCompletedWithErrors
}

// Counts 各状态 Item 数
type Counts struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Running int `json:"running"`
	Done    int `json:"done"`
	Failed  int `json:"failed"`
}

// Processed 已到达终态的 Item 数
func (c Counts) Processed() int { return c.Done + c.Failed }

// CountItems 统计各状态 Item 数
func CountItems(items []Item) Counts {
	c := Counts{Total: len(items)}
	for i := range items {
		switch items[i].State {
		case ItemPending:
			c.Pending++
		case ItemRunning:
			c.Running++
		case ItemDone:
			c.Done++
		case ItemFailed:
			c.Failed++
		}
	}
	return c
}

// DeriveStatus 由 Item 计数推导 Task 状态：无 Item 开始为 Pending，存在未终态为 Running，
// 全部终态时按是否有 Failed 区分 Completed / CompletedWithErrors
func DeriveStatus(c Counts) Status {
	switch {
	case c.Processed() == c.Total:
		if c.Failed > 0 {
			return StatusCompletedWithErrors
		}
		return StatusCompleted
	case c.Running == 0 && c.Processed() == 0:
		return StatusPending
	default:
		return StatusRunning
	}
}

// Meta Task 创建时的附加信息
type Meta struct {
	Label     string // upload | directory | path | sync
	Directory string
	ChunkSize int
}

// Task 一次提交的 Item 集合；Item 数在创建时固定，所有修改经由 Registry.UpdateItem
type Task struct {
	ID        string
	Meta      Meta
	CreatedAt time.Time

	mu          sync.Mutex
	items       []Item
	remaining   int
	completedAt time.Time
	done        chan struct{}
}

// Snapshot Task 某一时刻的一致性只读视图
type Snapshot struct {
	ID          string
	Meta        Meta
	Status      Status
	Counts      Counts
	CreatedAt   time.Time
	CompletedAt time.Time // 未完成时为零值
	Items       []Item    // 按提交顺序
}

// Elapsed 从创建到完成（或到 now）的耗时
func (s Snapshot) Elapsed(now time.Time) time.Duration {
	if !s.CompletedAt.IsZero() {
		return s.CompletedAt.Sub(s.CreatedAt)
	}
	return now.Sub(s.CreatedAt)
}

// newID 生成 128-bit 随机 id 的十六进制形式
func newID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

func newTask(items []Item, meta Meta, now time.Time) *Task {
	t := &Task{
		ID:        newID(),
		Meta:      meta,
		CreatedAt: now,
		items:     make([]Item, len(items)),
		remaining: len(items),
		done:      make(chan struct{}),
	}
	for i, it := range items {
		it.State = ItemPending
		it.Digest, it.Err = "", nil
		t.items[i] = it
	}
	return t
}

// Done Task 全部 Item 终态时关闭
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Len Item 数
func (t *Task) Len() int {
	return len(t.items)
}

// Item 返回第 i 个 Item 的副本
func (t *Task) Item(i int) (Item, error) {
	if i < 0 || i >= len(t.items) {
		return Item{}, apperrors.Validationf("item index %d out of range", i)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.items[i], nil
}

// Snapshot 获取一致性快照
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	items := make([]Item, len(t.items))
	copy(items, t.items)
	c := CountItems(items)
	return Snapshot{
		ID:          t.ID,
		Meta:        t.Meta,
		Status:      DeriveStatus(c),
		Counts:      c,
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.completedAt,
		Items:       items,
	}
}

// terminal 是否全部终态，以及完成时间
func (t *Task) terminal() (bool, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining == 0, t.completedAt
}

// apply 在 Task 锁内执行一次迁移；返回本次迁移是否使 Task 完成
func (t *Task) apply(i int, tr Transition, now time.Time) (bool, error) {
	if i < 0 || i >= len(t.items) {
		return false, apperrors.Validationf("item index %d out of range", i)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	it := &t.items[i]
	if !tr.allowed(it.State) {
		return false, fmt.Errorf("%w: item %d %s -> %s", ErrInvalidTransition, i, it.State, tr.To)
	}
	it.State = tr.To
	switch tr.To {
	case ItemRunning:
		it.StartedAt = now
		return false, nil
	case ItemDone:
		it.Digest = tr.Digest
		it.Bytes = tr.Bytes
		it.Cached = tr.Cached
	case ItemFailed:
		it.Err = tr.Err
		it.Bytes = tr.Bytes
	}
	it.FinishedAt = now
	it.Source = it.Source.Release()
	t.remaining--
	if t.remaining == 0 {
		t.completedAt = now
		close(t.done)
		return true, nil
	}
	return false, nil
}

// abandon 将所有 Pending Item 标记为 Failed(cancelled)，Running 不受影响
func (t *Task) abandon(now time.Time) (cancelled int, completed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.items {
		it := &t.items[i]
		if it.State != ItemPending {
			continue
		}
		it.State = ItemFailed
		it.Err = &ItemError{Kind: apperrors.KindCancelled, Message: "abandoned before start"}
		it.FinishedAt = now
		it.Source = it.Source.Release()
		t.remaining--
		cancelled++
	}
	if cancelled > 0 && t.remaining == 0 {
		t.completedAt = now
		close(t.done)
		completed = true
	}
	return cancelled, completed
}
