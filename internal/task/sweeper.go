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
	"context"
	"sync"
	"time"

	"filehash-platform/pkg/log"
)

// DefaultSweepInterval 默认清理周期
const DefaultSweepInterval = time.Minute

// Sweeper 周期性调用 Registry.Sweep
type Sweeper struct {
	registry *Registry
	interval time.Duration
	logger   *log.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSweeper 创建清理器；interval<=0 使用 DefaultSweepInterval
func NewSweeper(registry *Registry, interval time.Duration, logger *log.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Sweeper{
		registry: registry,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start 启动清理循环，ctx 取消或 Stop 时退出
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := s.registry.Sweep(now); n > 0 {
					s.logger.Info("registry sweep", "evicted", n, "live", s.registry.Len())
				}
			}
		}
	}()
}

// Stop 停止清理循环并等待退出；可重复调用
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}
