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
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"golang.org/x/time/rate"

	"filehash-platform/pkg/metrics"
)

// Middleware HTTP 中间件集合
type Middleware struct {
	allowOrigins []string
}

// Option Middleware 选项
type Option func(*Middleware)

// WithAllowOrigins 设置 CORS 允许的来源；为空或含 "*" 时允许任意来源
func WithAllowOrigins(origins []string) Option {
	return func(m *Middleware) { m.allowOrigins = origins }
}

// NewMiddleware 创建中间件集合
func NewMiddleware(opts ...Option) *Middleware {
	m := &Middleware{}
	for _, o := range opts {
		o(m)
	}
	return m
}

// CORS CORS 中间件
func (m *Middleware) CORS() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		origin := string(c.GetHeader("Origin"))
		if allow := m.allowOrigin(origin); allow != "" {
			c.Header("Access-Control-Allow-Origin", allow)
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")
			c.Header("Access-Control-Expose-Headers", "Content-Length")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if string(c.Method()) == consts.MethodOptions {
			c.AbortWithStatus(consts.StatusNoContent)
			return
		}
		c.Next(ctx)
	}
}

func (m *Middleware) allowOrigin(origin string) string {
	if len(m.allowOrigins) == 0 {
		return "*"
	}
	for _, o := range m.allowOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// RateLimit 令牌桶限流（进程级），超出时返回 429
func (m *Middleware) RateLimit(rps float64, burst int) app.HandlerFunc {
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(ctx context.Context, c *app.RequestContext) {
		if !limiter.Allow() {
			metrics.RateLimitRejectedTotal.Inc()
			c.JSON(consts.StatusTooManyRequests, map[string]string{
				"error": "too many requests, retry later",
			})
			c.Abort()
			return
		}
		c.Next(ctx)
	}
}
