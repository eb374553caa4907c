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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		ItemDuration, ItemTotal, BytesHashedTotal, CacheLookupTotal,
		TaskTotal, TasksLive, TasksEvictedTotal,
		SubmitRejectedTotal, QueueDepth, WorkerBusy,
		RateLimitRejectedTotal,
	)
}

// ItemDuration 单个 Item 摘要计算耗时（秒）
var ItemDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "filehash_item_duration_seconds",
		Help:    "单个 Item 摘要计算耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"algorithm"},
)

// ItemTotal Item 终态计数
var ItemTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "filehash_item_total",
		Help: "Item 终态计数（按结果与错误类别）",
	},
	[]string{"state", "kind"}, // done|failed, 失败时为错误类别
)

// BytesHashedTotal 已读取并计算摘要的字节数
var BytesHashedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "filehash_bytes_hashed_total",
		Help: "已计算摘要的字节总数",
	},
	[]string{"algorithm"},
)

// CacheLookupTotal 路径摘要缓存命中情况
var CacheLookupTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "filehash_cache_lookup_total",
		Help: "路径摘要缓存查询次数",
	},
	[]string{"result"}, // hit | miss
)

// TaskTotal Task 完成计数（按最终状态）
var TaskTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "filehash_task_total",
		Help: "Task 完成总数（按最终状态）",
	},
	[]string{"status"}, // completed | completed_with_errors
)

// TasksLive 当前 Registry 中的 Task 数
var TasksLive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "filehash_tasks_live",
		Help: "当前驻留在 Registry 中的 Task 数",
	},
)

// TasksEvictedTotal 被过期清理的 Task 数
var TasksEvictedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "filehash_tasks_evicted_total",
		Help: "过期清理的 Task 总数",
	},
)

// SubmitRejectedTotal 因队列满被拒绝的提交
var SubmitRejectedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "filehash_submit_rejected_total",
		Help: "因队列容量不足被拒绝的提交次数",
	},
	[]string{"policy"}, // reject | block
)

// QueueDepth 当前排队中的 Item 数
var QueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "filehash_queue_depth",
		Help: "当前排队等待执行的 Item 数",
	},
)

// WorkerBusy 当前正在计算摘要的 worker 数
var WorkerBusy = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "filehash_worker_busy",
		Help: "当前正在执行的 worker 数",
	},
)

// RateLimitRejectedTotal 被限流拒绝的请求
var RateLimitRejectedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "filehash_rate_limit_rejected_total",
		Help: "被限流中间件拒绝的请求数",
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
