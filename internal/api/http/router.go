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

package http

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/jwt"

	"filehash-platform/internal/api/http/middleware"
)

// Router HTTP 路由器（Hertz）
type Router struct {
	handler     *Handler
	middleware  *middleware.Middleware
	jwt         *jwt.HertzJWTMiddleware
	rateLimit   app.HandlerFunc
	cors        bool
	maxBodySize int
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: mw}
}

// SetJWT 启用 JWT 鉴权；nil 表示不鉴权
func (r *Router) SetJWT(j *jwt.HertzJWTMiddleware) {
	r.jwt = j
}

// SetRateLimit 对提交类接口限流；rps<=0 关闭
func (r *Router) SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		r.rateLimit = nil
		return
	}
	r.rateLimit = r.middleware.RateLimit(rps, burst)
}

// SetCORS 启用 CORS
func (r *Router) SetCORS(enable bool) {
	r.cors = enable
}

// SetMaxRequestBodySize 请求体上限（字节）
func (r *Router) SetMaxRequestBodySize(n int) {
	r.maxBodySize = n
}

// Build 创建 Hertz 服务并注册路由；opts 追加在默认选项之后（如 tracing）
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	all := []config.Option{server.WithHostPorts(addr)}
	if r.maxBodySize > 0 {
		all = append(all, server.WithMaxRequestBodySize(r.maxBodySize))
	}
	all = append(all, opts...)
	h := server.Default(all...)

	h.Use(r.middleware.AccessLog())
	if r.cors {
		h.Use(r.middleware.CORS())
		h.OPTIONS("/*path", func(ctx context.Context, c *app.RequestContext) {
			c.Status(consts.StatusNoContent)
		})
	}

	h.GET("/api/health", r.handler.HealthCheck)
	h.GET("/metrics", r.handler.Metrics)

	if r.jwt != nil {
		h.POST("/api/refresh_token", r.jwt.RefreshHandler)
	}

	api := h.Group("/api/v1/hash")
	if r.jwt != nil {
		api.Use(r.jwt.MiddlewareFunc())
	}

	api.GET("", r.handler.Root)
	api.GET("/algorithms", r.handler.ListAlgorithms)

	api.POST("/file", r.limited(r.handler.HashFile)...)
	api.POST("/files", r.limited(r.handler.HashFiles)...)
	api.POST("/path", r.limited(r.handler.HashPath)...)
	api.POST("/verify", r.limited(r.handler.Verify)...)

	batch := api.Group("/batch")
	{
		batch.POST("", r.limited(r.handler.SubmitBatch)...)
		batch.GET("/:id", r.handler.GetTaskStatus)
		batch.GET("/:id/results", r.handler.GetTaskResults)
		batch.POST("/:id/verify", r.handler.VerifyTask)
		batch.DELETE("/:id", r.handler.CancelTask)
	}

	upload := api.Group("/upload/batch")
	{
		upload.POST("", r.limited(r.handler.SubmitUploads)...)
		upload.GET("/:id", r.handler.GetTaskStatus)
		upload.GET("/:id/results", r.handler.GetTaskResults)
	}

	return h
}

func (r *Router) limited(fn app.HandlerFunc) []app.HandlerFunc {
	if r.rateLimit == nil {
		return []app.HandlerFunc{fn}
	}
	return []app.HandlerFunc{r.rateLimit, fn}
}
