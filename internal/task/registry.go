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
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	apperrors "filehash-platform/pkg/errors"
	"filehash-platform/pkg/metrics"
)

// 默认值
const (
	DefaultShards    = 16
	DefaultRetention = 30 * time.Minute
)

// Options Registry 配置
type Options struct {
	Shards     int           // 分片数，<=0 使用 DefaultShards
	Retention  time.Duration // 完成后保留时长，<=0 使用 DefaultRetention
	MaxEntries int           // 驻留上限，<=0 不限；仅淘汰已完成 Task
	Now        func() time.Time
}

type shard struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// Registry 进程级 Task 存储：id → Task，按 fnv32a 分片，每个 Task 自带锁
type Registry struct {
	shards     []*shard
	retention  time.Duration
	maxEntries int
	now        func() time.Time
	count      atomic.Int64
}

// NewRegistry 创建 Registry
func NewRegistry(opts Options) *Registry {
	n := opts.Shards
	if n <= 0 {
		n = DefaultShards
	}
	r := &Registry{
		shards:     make([]*shard, n),
		retention:  opts.Retention,
		maxEntries: opts.MaxEntries,
		now:        opts.Now,
	}
	if r.retention <= 0 {
		r.retention = DefaultRetention
	}
	if r.now == nil {
		r.now = time.Now
	}
	for i := range r.shards {
		r.shards[i] = &shard{tasks: make(map[string]*Task)}
	}
	return r
}

// getShard 根据 taskID 计算分片
func (r *Registry) getShard(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}

// Create 以给定 Item 创建 Task（全部 Pending）并登记
func (r *Registry) Create(items []Item, meta Meta) (*Task, error) {
	if len(items) == 0 {
		return nil, apperrors.Validationf("task requires at least one item")
	}
	t := newTask(items, meta, r.now())
	s := r.getShard(t.ID)
	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()
	metrics.TasksLive.Set(float64(r.count.Add(1)))
	return t, nil
}

// Get 获取 Task；不存在或已过期时返回 ErrNotFound（过期项惰性删除）
func (r *Registry) Get(id string) (*Task, error) {
	s := r.getShard(id)
	s.mu.RLock()
	t, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFoundf("task %s", id)
	}
	if r.expired(t, r.now()) {
		r.remove(s, id, true)
		return nil, apperrors.NotFoundf("task %s", id)
	}
	return t, nil
}

// UpdateItem 对 Task 中第 index 个 Item 执行迁移；是 Task 创建后唯一的修改入口。
// 返回本次迁移是否使 Task 完成。
func (r *Registry) UpdateItem(id string, index int, tr Transition) (bool, error) {
	t, err := r.Get(id)
	if err != nil {
		return false, err
	}
	return t.apply(index, tr, r.now())
}

// Abandon 将 Task 中尚未开始的 Item 标记为 cancelled，返回取消数
func (r *Registry) Abandon(id string) (int, bool, error) {
	t, err := r.Get(id)
	if err != nil {
		return 0, false, err
	}
	n, completed := t.abandon(r.now())
	return n, completed, nil
}

// Discard 移除一个未被调度的 Task（提交被拒绝时回滚）
func (r *Registry) Discard(id string) {
	r.remove(r.getShard(id), id, false)
}

// Len 当前驻留的 Task 数
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Sweep 清理已过期的 Task，并在超过 MaxEntries 时按完成时间淘汰最早完成的 Task；
// 存在未终态 Item 的 Task 永不淘汰。返回淘汰数。
func (r *Registry) Sweep(now time.Time) int {
	type candidate struct {
		id          string
		completedAt time.Time
	}
	evicted := 0
	var finished []candidate
	for _, s := range r.shards {
		var expired []string
		s.mu.RLock()
		for id, t := range s.tasks {
			done, at := t.terminal()
			if !done {
				continue
			}
			if !now.Before(at.Add(r.retention)) {
				expired = append(expired, id)
			} else if r.maxEntries > 0 {
				finished = append(finished, candidate{id: id, completedAt: at})
			}
		}
		s.mu.RUnlock()
		for _, id := range expired {
			if r.remove(s, id, true) {
				evicted++
			}
		}
	}

	if r.maxEntries > 0 {
		over := r.Len() - r.maxEntries
		if over > 0 {
			sort.Slice(finished, func(i, j int) bool {
				return finished[i].completedAt.Before(finished[j].completedAt)
			})
			for _, c := range finished {
				if over <= 0 {
					break
				}
				if r.remove(r.getShard(c.id), c.id, true) {
					evicted++
					over--
				}
			}
		}
	}
	return evicted
}

func (r *Registry) expired(t *Task, now time.Time) bool {
	done, at := t.terminal()
	return done && !now.Before(at.Add(r.retention))
}

func (r *Registry) remove(s *shard, id string, evict bool) bool {
	s.mu.Lock()
	_, ok := s.tasks[id]
	if ok {
		delete(s.tasks, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	metrics.TasksLive.Set(float64(r.count.Add(-1)))
	if evict {
		metrics.TasksEvictedTotal.Inc()
	}
	return true
}
