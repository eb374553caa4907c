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

package middleware

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noBody() *ut.Body {
	return &ut.Body{Body: bytes.NewReader(nil), Len: 0}
}

func ok(ctx context.Context, c *app.RequestContext) {
	c.String(consts.StatusOK, "ok")
}

func TestRateLimit(t *testing.T) {
	m := NewMiddleware()
	s := server.Default(server.WithHostPorts(":0"))
	s.GET("/x", m.RateLimit(0.001, 1), ok)

	w := ut.PerformRequest(s.Engine, "GET", "/x", noBody())
	assert.Equal(t, consts.StatusOK, w.Result().StatusCode())
	w = ut.PerformRequest(s.Engine, "GET", "/x", noBody())
	assert.Equal(t, consts.StatusTooManyRequests, w.Result().StatusCode())
}

func TestCORS(t *testing.T) {
	m := NewMiddleware(WithAllowOrigins([]string{"https://a.example"}))
	s := server.Default(server.WithHostPorts(":0"))
	s.Use(m.CORS())
	s.GET("/x", ok)
	s.OPTIONS("/x", ok)

	w := ut.PerformRequest(s.Engine, "GET", "/x", noBody(), ut.Header{Key: "Origin", Value: "https://a.example"})
	assert.Equal(t, "https://a.example", string(w.Result().Header.Peek("Access-Control-Allow-Origin")))

	w = ut.PerformRequest(s.Engine, "GET", "/x", noBody(), ut.Header{Key: "Origin", Value: "https://b.example"})
	assert.Empty(t, w.Result().Header.Peek("Access-Control-Allow-Origin"))

	w = ut.PerformRequest(s.Engine, "OPTIONS", "/x", noBody(), ut.Header{Key: "Origin", Value: "https://a.example"})
	assert.Equal(t, consts.StatusNoContent, w.Result().StatusCode())
}

func TestJWTAuth(t *testing.T) {
	auth, err := NewJWTAuth([]byte("test-key"), time.Hour, time.Hour)
	require.NoError(t, err)

	s := server.Default(server.WithHostPorts(":0"))
	s.GET("/x", auth.MiddlewareFunc(), ok)

	w := ut.PerformRequest(s.Engine, "GET", "/x", noBody())
	assert.Equal(t, consts.StatusUnauthorized, w.Result().StatusCode())

	token, _, err := auth.TokenGenerator("hashctl")
	require.NoError(t, err)
	w = ut.PerformRequest(s.Engine, "GET", "/x", noBody(), ut.Header{Key: "Authorization", Value: "Bearer " + token})
	assert.Equal(t, consts.StatusOK, w.Result().StatusCode())
}

func TestDetermineAction(t *testing.T) {
	assert.Equal(t, "submit_batch", determineAction("POST", "/api/v1/hash/batch"))
	assert.Equal(t, "submit_batch", determineAction("POST", "/api/v1/hash/upload/batch"))
	assert.Equal(t, "view_task", determineAction("GET", "/api/v1/hash/batch/abc"))
	assert.Equal(t, "view_results", determineAction("GET", "/api/v1/hash/upload/batch/abc/results"))
	assert.Equal(t, "abandon_task", determineAction("DELETE", "/api/v1/hash/batch/abc"))
	assert.Equal(t, "verify", determineAction("POST", "/api/v1/hash/verify"))
	assert.Equal(t, "hash_sync", determineAction("POST", "/api/v1/hash/files"))
	assert.Equal(t, "abc", extractTaskID("/api/v1/hash/batch/abc/results"))
	assert.Equal(t, "", extractTaskID("/api/v1/hash/batch"))
}
