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

package grpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"filehash-platform/internal/engine"
)

type fakeStats struct {
	st engine.Stats
}

func (f *fakeStats) Stats() engine.Stats { return f.st }

func check(t *testing.T, s *Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.Health().Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestServer_ServingByDefault(t *testing.T) {
	s := NewServer(&fakeStats{}, 0, nil)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, s, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, s, ServiceName))
}

func TestServer_RefreshTracksQueue(t *testing.T) {
	src := &fakeStats{st: engine.Stats{Queued: 4, QueueCapacity: 4}}
	s := NewServer(src, 0, nil)

	s.Refresh()
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, s, ServiceName))

	src.st.Queued = 1
	s.Refresh()
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, s, ServiceName))
}

func TestServer_Shutdown(t *testing.T) {
	s := NewServer(&fakeStats{}, 0, nil)
	s.Start(context.Background())
	s.Shutdown()
	s.Shutdown()
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, s, ""))
}
