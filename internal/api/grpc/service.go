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

// Package grpc 提供 gRPC 健康检查服务，服务状态随引擎队列水位变化。
package grpc

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"filehash-platform/internal/engine"
	"filehash-platform/pkg/log"
)

// ServiceName 对外注册的服务名
const ServiceName = "filehash.v1.HashService"

// StatsSource 提供引擎统计
type StatsSource interface {
	Stats() engine.Stats
}

// Server gRPC 健康检查服务端
type Server struct {
	health   *health.Server
	source   StatsSource
	interval time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	known   bool
	serving bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewServer 创建健康检查服务；interval<=0 时默认 5s
func NewServer(source StatsSource, interval time.Duration, logger *log.Logger) *Server {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = log.Nop()
	}
	s := &Server{
		health:   health.NewServer(),
		source:   source,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
	s.set(true)
	return s
}

// Register 注册到 grpc.Server
func (s *Server) Register(grpcServer *grpc.Server) {
	healthpb.RegisterHealthServer(grpcServer, s.health)
}

// Health 底层 health.Server，便于进程内检查
func (s *Server) Health() healthpb.HealthServer {
	return s.health
}

// Refresh 按当前统计更新状态：队列已满时 NOT_SERVING
func (s *Server) Refresh() {
	st := s.source.Stats()
	s.set(st.QueueCapacity <= 0 || st.Queued < st.QueueCapacity)
}

// Start 周期刷新状态，直到 ctx 取消或 Shutdown
func (s *Server) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.Refresh()
			}
		}
	}()
}

// Shutdown 停止刷新并将全部服务置为 NOT_SERVING
func (s *Server) Shutdown() {
	s.mu.Lock()
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.health.Shutdown()
}

func (s *Server) set(serving bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.known && s.serving == serving {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	} else {
		s.logger.Warn("queue saturated, reporting NOT_SERVING")
	}
	s.known = true
	s.serving = serving
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
