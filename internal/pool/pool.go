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

// Package pool 固定数量的 worker 从有界 FIFO 队列取任务执行。
//
// 入队按批次整体准入：队列剩余容量不足以容纳整批时，reject 策略立即返回 ErrOverloaded，
// block 策略最多等待 EnqueueTimeout。准入通过 x/sync/semaphore 的加权信号量实现，
// 等待者按到达顺序获得容量。
package pool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	apperrors "filehash-platform/pkg/errors"
	"filehash-platform/pkg/log"
	"filehash-platform/pkg/metrics"
)

// Policy 队列满时的处理策略
type Policy string

const (
	// PolicyReject 立即拒绝
	PolicyReject Policy = "reject"
	// PolicyBlock 等待至多 EnqueueTimeout
	PolicyBlock Policy = "block"
)

// 默认值
const (
	DefaultQueueSize      = 4096
	DefaultEnqueueTimeout = 5 * time.Second
)

// ParsePolicy 解析策略名，未知值按 reject
func ParsePolicy(s string) Policy {
	if Policy(s) == PolicyBlock {
		return PolicyBlock
	}
	return PolicyReject
}

// Job 在 worker 上执行的工作；ctx 在 Stop 超时后取消
type Job func(ctx context.Context)

// Config Pool 配置
type Config struct {
	Workers        int           // <=0 使用 GOMAXPROCS
	QueueSize      int           // <=0 使用 DefaultQueueSize
	Policy         Policy        // 空为 reject
	EnqueueTimeout time.Duration // block 策略等待上限，<=0 使用 DefaultEnqueueTimeout
}

// Pool 有界 worker 池
type Pool struct {
	cfg     Config
	queue   chan Job
	sem     *semaphore.Weighted
	logger  *log.Logger
	mu      sync.RWMutex // 保护 queue 的关闭
	stopped atomic.Bool
	queued  atomic.Int64
	busy    atomic.Int64
	wg      sync.WaitGroup
	runCtx  context.Context
	cancel  context.CancelFunc
}

// New 创建并启动 Pool
func New(cfg Config, logger *log.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyReject
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = DefaultEnqueueTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}
	runCtx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:    cfg,
		queue:  make(chan Job, cfg.QueueSize),
		sem:    semaphore.NewWeighted(int64(cfg.QueueSize)),
		logger: logger,
		runCtx: runCtx,
		cancel: cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Config 返回生效的配置
func (p *Pool) Config() Config { return p.cfg }

// Queued 排队中的 Job 数
func (p *Pool) Queued() int { return int(p.queued.Load()) }

// Busy 执行中的 worker 数
func (p *Pool) Busy() int { return int(p.busy.Load()) }

// Submit 整批入队；容量不足时按策略拒绝或等待，返回 ErrOverloaded。
// 成功返回时所有 Job 均已进入队列，顺序与 jobs 一致。
func (p *Pool) Submit(ctx context.Context, jobs []Job) error {
	n := int64(len(jobs))
	if n == 0 {
		return nil
	}
	if p.stopped.Load() {
		return apperrors.Overloadedf("pool stopped")
	}
	if n > int64(p.cfg.QueueSize) {
		metrics.SubmitRejectedTotal.WithLabelValues(string(p.cfg.Policy)).Inc()
		return apperrors.Overloadedf("batch of %d exceeds queue capacity %d", n, p.cfg.QueueSize)
	}
	if err := p.admit(ctx, n); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped.Load() {
		p.sem.Release(n)
		return apperrors.Overloadedf("pool stopped")
	}
	p.queued.Add(n)
	metrics.QueueDepth.Add(float64(n))
	for _, j := range jobs {
		p.queue <- j // 已持有 n 个容量，不会阻塞
	}
	return nil
}

func (p *Pool) admit(ctx context.Context, n int64) error {
	switch p.cfg.Policy {
	case PolicyBlock:
		wctx, cancel := context.WithTimeout(ctx, p.cfg.EnqueueTimeout)
		defer cancel()
		if err := p.sem.Acquire(wctx, n); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.SubmitRejectedTotal.WithLabelValues(string(PolicyBlock)).Inc()
			return apperrors.Overloadedf("queue full after waiting %s", p.cfg.EnqueueTimeout)
		}
	default:
		if !p.sem.TryAcquire(n) {
			metrics.SubmitRejectedTotal.WithLabelValues(string(PolicyReject)).Inc()
			return apperrors.Overloadedf("queue full (%d queued, capacity %d)", p.Queued(), p.cfg.QueueSize)
		}
	}
	return nil
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for job := range p.queue {
		p.sem.Release(1)
		p.queued.Add(-1)
		metrics.QueueDepth.Dec()

		p.busy.Add(1)
		metrics.WorkerBusy.Inc()
		p.run(id, job)
		metrics.WorkerBusy.Dec()
		p.busy.Add(-1)
	}
}

func (p *Pool) run(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker job panic", "worker", id, "panic", fmt.Sprint(r))
		}
	}()
	job(p.runCtx)
}

// Stop 停止接收新 Job，继续执行队列中剩余 Job 直至完成或 ctx 到期；
// ctx 到期时取消执行中 Job 的 ctx 并返回 ctx.Err()。可重复调用。
func (p *Pool) Stop(ctx context.Context) error {
	if p.stopped.CompareAndSwap(false, true) {
		p.mu.Lock()
		close(p.queue)
		p.mu.Unlock()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}
