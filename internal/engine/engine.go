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

// Package engine 批处理引擎：创建 Task、将 Item 投递到 worker 池、汇总结果并提供轮询与同步等待。
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"filehash-platform/internal/digest"
	"filehash-platform/internal/pool"
	"filehash-platform/internal/source"
	"filehash-platform/internal/storage/cache"
	"filehash-platform/internal/task"
	apperrors "filehash-platform/pkg/errors"
	"filehash-platform/pkg/log"
	"filehash-platform/pkg/metrics"
	"filehash-platform/pkg/tracing"
)

// 默认值
const (
	DefaultAlgorithm   = "sha256"
	DefaultSyncTimeout = 30 * time.Second
	DefaultCacheTTL    = time.Hour
)

// Engine 批处理引擎
type Engine struct {
	registry    *task.Registry
	pool        *pool.Pool
	compute     digest.Func
	cache       cache.Store
	cacheTTL    time.Duration
	defaultAlgo string
	chunkSize   int
	syncTimeout time.Duration
	logger      *log.Logger
	now         func() time.Time
}

// Option Engine 选项
type Option func(*Engine)

// WithDigestFunc 替换摘要函数
func WithDigestFunc(fn digest.Func) Option {
	return func(e *Engine) { e.compute = fn }
}

// WithCache 启用路径来源的摘要缓存；store 为 nil 时不启用
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = store
		if ttl > 0 {
			e.cacheTTL = ttl
		}
	}
}

// WithDefaultAlgorithm 设置 ItemSpec.Algorithm 为空时使用的算法
func WithDefaultAlgorithm(algo string) Option {
	return func(e *Engine) {
		if algo != "" {
			e.defaultAlgo = digest.Normalize(algo)
		}
	}
}

// WithChunkSize 设置默认读取块大小
func WithChunkSize(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.chunkSize = size
		}
	}
}

// WithSyncTimeout 设置 ComputeNow 未指定超时时的等待时长
func WithSyncTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.syncTimeout = d
		}
	}
}

// WithLogger 设置日志
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New 创建 Engine；registry 与 pool 由调用方管理生命周期
func New(registry *task.Registry, p *pool.Pool, opts ...Option) *Engine {
	e := &Engine{
		registry:    registry,
		pool:        p,
		compute:     digest.Compute,
		cacheTTL:    DefaultCacheTTL,
		defaultAlgo: DefaultAlgorithm,
		chunkSize:   digest.DefaultChunkSize,
		syncTimeout: DefaultSyncTimeout,
		logger:      log.Nop(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Registry 返回底层 Registry
func (e *Engine) Registry() *task.Registry { return e.registry }

// DefaultAlgorithm 默认算法
func (e *Engine) DefaultAlgorithm() string { return e.defaultAlgo }

// Stats 引擎运行时统计
type Stats struct {
	Tasks         int `json:"tasks"`
	Queued        int `json:"queued"`
	Busy          int `json:"busy"`
	Workers       int `json:"workers"`
	QueueCapacity int `json:"queue_capacity"`
}

// Stats 返回当前 Task 数、排队数与 worker 占用
func (e *Engine) Stats() Stats {
	cfg := e.pool.Config()
	return Stats{
		Tasks:         e.registry.Len(),
		Queued:        e.pool.Queued(),
		Busy:          e.pool.Busy(),
		Workers:       cfg.Workers,
		QueueCapacity: cfg.QueueSize,
	}
}

// SyncTimeout ComputeNow 默认等待时长
func (e *Engine) SyncTimeout() time.Duration { return e.syncTimeout }

// ListAlgorithms 支持的算法列表
func (e *Engine) ListAlgorithms() []string { return digest.ListAlgorithms() }

// Submit 校验并创建 Task，将全部 Item 投递到 worker 池后立即返回 Task ID。
// 校验失败返回 ErrValidation；池容量不足返回 ErrOverloaded，此时 Task 不会被保留。
func (e *Engine) Submit(ctx context.Context, specs []ItemSpec, opts SubmitOptions) (string, error) {
	items, chunk, err := e.prepare(specs, opts)
	if err != nil {
		return "", err
	}
	t, err := e.registry.Create(items, task.Meta{Label: opts.Label, Directory: opts.Directory, ChunkSize: chunk})
	if err != nil {
		return "", err
	}

	ctx, span := tracing.StartTaskSpan(ctx, t.ID, len(items))
	parent := span.SpanContext()
	jobs := make([]pool.Job, len(items))
	for i := range items {
		idx := i
		jobs[i] = func(runCtx context.Context) {
			e.process(trace.ContextWithSpanContext(runCtx, parent), t, idx)
		}
	}
	if err := e.pool.Submit(ctx, jobs); err != nil {
		e.registry.Discard(t.ID)
		tracing.EndWithError(span, err)
		e.logger.Warn("task rejected", "items", len(items), "error", err)
		return "", err
	}
	tracing.EndWithError(span, nil)
	e.logger.Info("task submitted", "task_id", t.ID, "items", len(items), "label", opts.Label)
	return t.ID, nil
}

func (e *Engine) prepare(specs []ItemSpec, opts SubmitOptions) ([]task.Item, int, error) {
	if len(specs) == 0 {
		return nil, 0, apperrors.Validationf("no items submitted")
	}
	chunk := opts.ChunkSize
	if chunk == 0 {
		chunk = e.chunkSize
	}
	chunk, err := digest.ValidateChunkSize(chunk)
	if err != nil {
		return nil, 0, err
	}
	items := make([]task.Item, len(specs))
	for i, s := range specs {
		algo := s.Algorithm
		if algo == "" {
			algo = e.defaultAlgo
		}
		algo = digest.Normalize(algo)
		if !digest.Supported(algo) {
			return nil, 0, apperrors.Validationf("item %d: unsupported algorithm %q", i, s.Algorithm)
		}
		if !s.Source.Valid() {
			return nil, 0, apperrors.Validationf("item %d: empty source", i)
		}
		name := s.Name
		if name == "" {
			name = s.Source.String()
		}
		items[i] = task.Item{Name: name, Source: s.Source, Algorithm: algo}
	}
	return items, chunk, nil
}

// process 在 worker 上执行单个 Item；不持有 Task 锁进行摘要计算，结果经 Registry.UpdateItem 写回
func (e *Engine) process(ctx context.Context, t *task.Task, idx int) {
	if err := ctx.Err(); err != nil {
		// 池已强制停止，排队中的 Item 不再开始；已被 Abandon 的 Item 保持原状
		completed, uerr := e.registry.UpdateItem(t.ID, idx, task.Failed(cancelledErr(err)))
		if uerr != nil {
			e.logger.Debug("item skipped", "task_id", t.ID, "index", idx, "error", uerr)
			return
		}
		metrics.ItemTotal.WithLabelValues("failed", string(apperrors.KindCancelled)).Inc()
		e.logger.Debug("item cancelled before start", "task_id", t.ID, "index", idx)
		if completed {
			e.onComplete(t)
		}
		return
	}
	if _, err := e.registry.UpdateItem(t.ID, idx, task.Running()); err != nil {
		// 已被 Abandon 取消
		e.logger.Debug("item skipped", "task_id", t.ID, "index", idx, "error", err)
		return
	}
	it, err := t.Item(idx)
	if err != nil {
		return
	}

	ctx, span := tracing.StartItemSpan(ctx, t.ID, idx, it.Algorithm)
	start := e.now()
	sum, n, cached, herr := e.hashItem(ctx, it, t.Meta.ChunkSize)
	metrics.ItemDuration.WithLabelValues(it.Algorithm).Observe(e.now().Sub(start).Seconds())
	tracing.EndWithError(span, herr)

	var tr task.Transition
	if herr != nil {
		if errors.Is(herr, context.Canceled) || errors.Is(herr, context.DeadlineExceeded) {
			herr = cancelledErr(herr)
		}
		tr = task.Failed(herr)
		tr.Bytes = n
		metrics.ItemTotal.WithLabelValues("failed", string(tr.Err.Kind)).Inc()
		e.logger.Warn("item failed", "task_id", t.ID, "index", idx, "name", it.Name, "kind", tr.Err.Kind, "error", herr)
	} else {
		tr = task.Done(sum, n, cached)
		metrics.ItemTotal.WithLabelValues("done", "").Inc()
		if !cached {
			metrics.BytesHashedTotal.WithLabelValues(it.Algorithm).Add(float64(n))
		}
		e.logger.Debug("item done", "task_id", t.ID, "index", idx, "name", it.Name, "bytes", n, "cached", cached)
	}

	e.record(t, idx, tr)
}

// record 写回 Item 终态；Task 因此全部终态时触发完成回调
func (e *Engine) record(t *task.Task, idx int, tr task.Transition) {
	completed, err := e.registry.UpdateItem(t.ID, idx, tr)
	if err != nil {
		e.logger.Error("record item outcome", "task_id", t.ID, "index", idx, "error", err)
		return
	}
	if completed {
		e.onComplete(t)
	}
}

func cancelledErr(err error) error {
	return fmt.Errorf("%w: %v", apperrors.ErrCancelled, err)
}

// hashItem 打开来源并计算摘要；路径来源在启用缓存时按 (路径, 大小, 修改时间, 算法) 复用结果
func (e *Engine) hashItem(ctx context.Context, it task.Item, chunk int) (string, int64, bool, error) {
	var key string
	if e.cache != nil && it.Source.Kind() == source.KindPath {
		if k, size, ok := pathCacheKey(it.Source.Path(), it.Algorithm); ok {
			key = k
			if v, err := e.cache.Get(ctx, key); err == nil {
				metrics.CacheLookupTotal.WithLabelValues("hit").Inc()
				return v, size, true, nil
			}
			metrics.CacheLookupTotal.WithLabelValues("miss").Inc()
		}
	}

	rc, err := it.Source.Open()
	if err != nil {
		return "", 0, false, err
	}
	defer rc.Close()

	sum, n, err := e.compute(ctx, rc, it.Algorithm, chunk)
	if err != nil {
		return "", n, false, err
	}
	if key != "" {
		if err := e.cache.Set(ctx, key, sum, e.cacheTTL); err != nil {
			e.logger.Warn("digest cache set", "error", err)
		}
	}
	return sum, n, false, nil
}

func (e *Engine) onComplete(t *task.Task) {
	snap := t.Snapshot()
	metrics.TaskTotal.WithLabelValues(string(snap.Status)).Inc()
	e.logger.Info("task completed",
		"task_id", snap.ID,
		"status", snap.Status,
		"done", snap.Counts.Done,
		"failed", snap.Counts.Failed,
		"elapsed", snap.Elapsed(e.now()).String(),
	)
}

// GetStatus 返回 Task 当前状态摘要；不阻塞
func (e *Engine) GetStatus(id string) (Summary, error) {
	t, err := e.registry.Get(id)
	if err != nil {
		return Summary{}, err
	}
	return summarize(t.Snapshot(), e.now()), nil
}

// GetResults 返回按提交顺序的当前结果快照，长度恒等于 Item 数；不阻塞
func (e *Engine) GetResults(id string, includeErrors bool) ([]Outcome, error) {
	t, err := e.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return outcomes(t.Snapshot().Items, includeErrors), nil
}

// Results 由同一快照得出状态摘要与结果，二者不会互相矛盾
func (e *Engine) Results(id string, includeErrors bool) (Summary, []Outcome, error) {
	t, err := e.registry.Get(id)
	if err != nil {
		return Summary{}, nil, err
	}
	snap := t.Snapshot()
	return summarize(snap, e.now()), outcomes(snap.Items, includeErrors), nil
}

// Snapshot 返回 Task 的一致性快照
func (e *Engine) Snapshot(id string) (task.Snapshot, error) {
	t, err := e.registry.Get(id)
	if err != nil {
		return task.Snapshot{}, err
	}
	return t.Snapshot(), nil
}

// Wait 等待 Task 全部终态或 ctx 结束
func (e *Engine) Wait(ctx context.Context, id string) (Summary, error) {
	t, err := e.registry.Get(id)
	if err != nil {
		return Summary{}, err
	}
	select {
	case <-t.Done():
		return summarize(t.Snapshot(), e.now()), nil
	case <-ctx.Done():
		return summarize(t.Snapshot(), e.now()), ctx.Err()
	}
}

// ComputeNow 提交并等待全部 Item 终态；timeout<=0 使用默认同步超时。
// 超时返回 ErrTimeout 与当前部分结果，已投递的计算继续执行，可凭 TaskID 继续轮询。
func (e *Engine) ComputeNow(ctx context.Context, specs []ItemSpec, opts SubmitOptions, timeout time.Duration) (Result, error) {
	if opts.Label == "" {
		opts.Label = "sync"
	}
	id, err := e.Submit(ctx, specs, opts)
	if err != nil {
		return Result{}, err
	}
	t, err := e.registry.Get(id)
	if err != nil {
		return Result{}, err
	}
	if timeout <= 0 {
		timeout = e.syncTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	select {
	case <-t.Done():
	case <-timer.C:
		waitErr = fmt.Errorf("%w: task %s not finished after %s", apperrors.ErrTimeout, id, timeout)
	case <-ctx.Done():
		waitErr = ctx.Err()
	}
	snap := t.Snapshot()
	return Result{TaskID: id, Status: snap.Status, Outcomes: outcomes(snap.Items, true)}, waitErr
}

// Abandon 将 Task 中尚未开始的 Item 标记为 cancelled；执行中的 Item 正常完成。返回取消数。
func (e *Engine) Abandon(id string) (int, error) {
	n, completed, err := e.registry.Abandon(id)
	if err != nil {
		return 0, err
	}
	e.logger.Info("task abandoned", "task_id", id, "cancelled", n)
	if completed {
		if t, err := e.registry.Get(id); err == nil {
			e.onComplete(t)
		}
	}
	return n, nil
}

// Shutdown 停止 worker 池，等待排队中的 Item 处理完毕或 ctx 到期
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.pool.Stop(ctx)
}
