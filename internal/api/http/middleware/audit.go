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
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
)

// AccessLog 访问日志：记录操作类型、Task ID、状态码与耗时
func (m *Middleware) AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)

		method, path := string(c.Method()), string(c.Path())
		hlog.CtxInfof(ctx, "access action=%s task=%s method=%s path=%s status=%d duration_ms=%d ip=%s",
			determineAction(method, path),
			extractTaskID(path),
			method,
			path,
			c.Response.StatusCode(),
			time.Since(start).Milliseconds(),
			c.ClientIP(),
		)
	}
}

// determineAction 根据 HTTP 方法和路径确定操作类型
func determineAction(method string, path string) string {
	switch {
	case strings.HasSuffix(path, "/verify"):
		return "verify"
	case strings.HasSuffix(path, "/algorithms"):
		return "list_algorithms"
	case strings.Contains(path, "/batch/"):
		switch method {
		case "GET":
			if strings.HasSuffix(path, "/results") {
				return "view_results"
			}
			return "view_task"
		case "DELETE":
			return "abandon_task"
		}
	case strings.HasSuffix(path, "/batch"):
		return "submit_batch"
	case strings.HasSuffix(path, "/file"), strings.HasSuffix(path, "/files"), strings.HasSuffix(path, "/path"):
		return "hash_sync"
	}
	return "other"
}

// extractTaskID 从 /api/v1/hash/[upload/]batch/:id[/results] 提取 Task ID
func extractTaskID(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if p == "batch" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}
