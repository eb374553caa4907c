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
	"time"

	"filehash-platform/internal/engine"
	"filehash-platform/internal/task"
	"filehash-platform/internal/verify"
)

// HashResponse 单个文件的摘要结果
type HashResponse struct {
	FileName       string  `json:"file_name"`
	Algorithm      string  `json:"algorithm"`
	HashValue      string  `json:"hash_value"`
	ProcessingTime float64 `json:"processing_time"`
	Cached         bool    `json:"cached,omitempty"`
}

// ItemResult 批量结果中的单项
type ItemResult struct {
	Index          int     `json:"index"`
	FileName       string  `json:"file_name"`
	Algorithm      string  `json:"algorithm"`
	HashValue      string  `json:"hash_value,omitempty"`
	Status         string  `json:"status"` // success | error | pending | running
	ErrorKind      string  `json:"error_kind,omitempty"`
	ErrorMessage   string  `json:"error_message,omitempty"`
	Bytes          int64   `json:"bytes"`
	Cached         bool    `json:"cached,omitempty"`
	ProcessingTime float64 `json:"processing_time"`
}

// BatchHashResponse 多文件同步计算结果
type BatchHashResponse struct {
	TaskID              string       `json:"task_id"`
	Status              task.Status  `json:"status"`
	Results             []ItemResult `json:"results"`
	TotalFiles          int          `json:"total_files"`
	SuccessCount        int          `json:"success_count"`
	ErrorCount          int          `json:"error_count"`
	TotalProcessingTime float64      `json:"total_processing_time"`
}

// BatchTaskRequest 目录批量任务请求
type BatchTaskRequest struct {
	Directory string `json:"directory"`
	Recursive bool   `json:"recursive"`
	Algorithm string `json:"algorithm"`
	ChunkSize int    `json:"chunk_size"`
}

// TaskResponse 异步提交响应
type TaskResponse struct {
	TaskID    string      `json:"task_id"`
	Status    task.Status `json:"status"`
	Directory string      `json:"directory,omitempty"`
	FileCount int         `json:"file_count"`
	CreatedAt time.Time   `json:"created_at"`
}

// TaskStatusResponse Task 状态
type TaskStatusResponse struct {
	TaskID         string      `json:"task_id"`
	Status         task.Status `json:"status"`
	Label          string      `json:"label,omitempty"`
	Directory      string      `json:"directory,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	TotalFiles     int         `json:"total_files"`
	ProcessedFiles int         `json:"processed_files"`
	SuccessCount   int         `json:"success_count"`
	ErrorCount     int         `json:"error_count"`
	PendingCount   int         `json:"pending_count"`
	RunningCount   int         `json:"running_count"`
	ElapsedTime    float64     `json:"elapsed_time"`
}

// VerifyTaskRequest 对已有 Task 的比对请求
type VerifyTaskRequest struct {
	ExpectedHashes []verify.Expected `json:"expected_hashes"`
}

func statusResponse(s engine.Summary) TaskStatusResponse {
	return TaskStatusResponse{
		TaskID:         s.TaskID,
		Status:         s.Status,
		Label:          s.Label,
		Directory:      s.Directory,
		CreatedAt:      s.CreatedAt,
		CompletedAt:    s.CompletedAt,
		TotalFiles:     s.Counts.Total,
		ProcessedFiles: s.Counts.Processed(),
		SuccessCount:   s.Counts.Done,
		ErrorCount:     s.Counts.Failed,
		PendingCount:   s.Counts.Pending,
		RunningCount:   s.Counts.Running,
		ElapsedTime:    s.Elapsed.Seconds(),
	}
}

func itemResult(o engine.Outcome) ItemResult {
	r := ItemResult{
		Index:          o.Index,
		FileName:       o.Name,
		Algorithm:      o.Algorithm,
		HashValue:      o.Digest,
		Status:         o.State,
		Bytes:          o.Bytes,
		Cached:         o.Cached,
		ProcessingTime: o.Duration.Seconds(),
	}
	switch o.State {
	case task.ItemDone.String():
		r.Status = "success"
	case task.ItemFailed.String():
		r.Status = "error"
	}
	if o.Error != nil {
		r.ErrorKind = string(o.Error.Kind)
		r.ErrorMessage = o.Error.Message
	}
	return r
}

func batchResponse(id string, status task.Status, outs []engine.Outcome, elapsed time.Duration) BatchHashResponse {
	resp := BatchHashResponse{
		TaskID:              id,
		Status:              status,
		Results:             make([]ItemResult, len(outs)),
		TotalFiles:          len(outs),
		TotalProcessingTime: elapsed.Seconds(),
	}
	for i, o := range outs {
		r := itemResult(o)
		resp.Results[i] = r
		switch r.Status {
		case "success":
			resp.SuccessCount++
		case "error":
			resp.ErrorCount++
		}
	}
	return resp
}
