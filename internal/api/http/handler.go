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
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"filehash-platform/internal/engine"
	"filehash-platform/internal/source"
	"filehash-platform/internal/verify"
	apperrors "filehash-platform/pkg/errors"
	"filehash-platform/pkg/metrics"
)

// Handler 摘要 HTTP 处理器
type Handler struct {
	engine   *engine.Engine
	verifier *verify.Service
}

// NewHandler 创建新的 HTTP 处理器
func NewHandler(e *engine.Engine, v *verify.Service) *Handler {
	return &Handler{engine: e, verifier: v}
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]interface{}{
		"status": "healthy",
		"engine": h.engine.Stats(),
		"time":   time.Now().UTC(),
	})
}

// Metrics Prometheus 文本格式
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		hlog.CtxErrorf(ctx, "write metrics failed: %v", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// Root 服务说明
func (h *Handler) Root(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]string{"message": "file hash service"})
}

// ListAlgorithms 支持的算法
func (h *Handler) ListAlgorithms(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]interface{}{
		"algorithms": h.engine.ListAlgorithms(),
		"default":    h.engine.DefaultAlgorithm(),
	})
}

// HashFile 同步计算单个上传文件（表单字段 file）
func (h *Handler) HashFile(ctx context.Context, c *app.RequestContext) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "file is required"})
		return
	}
	spec, err := uploadSpec(fh, c.PostForm("algorithm"))
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	h.hashOne(ctx, c, spec, "upload")
}

// HashPath 同步计算服务端路径（表单字段 file_path）
func (h *Handler) HashPath(ctx context.Context, c *app.RequestContext) {
	path := c.PostForm("file_path")
	if err := source.ValidateFile(path); err != nil {
		h.writeError(ctx, c, err)
		return
	}
	h.hashOne(ctx, c, engine.ItemSpec{
		Name:      path,
		Source:    source.FromPath(path),
		Algorithm: c.PostForm("algorithm"),
	}, "path")
}

func (h *Handler) hashOne(ctx context.Context, c *app.RequestContext, spec engine.ItemSpec, label string) {
	opts, timeout, err := syncOptions(c, label)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	res, err := h.engine.ComputeNow(ctx, []engine.ItemSpec{spec}, opts, timeout)
	if err != nil {
		h.writeComputeError(ctx, c, res, err)
		return
	}
	o := res.Outcomes[0]
	if o.Error != nil {
		c.JSON(statusForKind(o.Error.Kind), map[string]string{
			"error":   o.Error.Message,
			"kind":    string(o.Error.Kind),
			"task_id": res.TaskID,
		})
		return
	}
	c.JSON(consts.StatusOK, HashResponse{
		FileName:       o.Name,
		Algorithm:      o.Algorithm,
		HashValue:      o.Digest,
		ProcessingTime: o.Duration.Seconds(),
		Cached:         o.Cached,
	})
}

// HashFiles 同步计算多个上传文件（表单字段 files），单项失败不影响其余
func (h *Handler) HashFiles(ctx context.Context, c *app.RequestContext) {
	specs, err := formSpecs(c)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	opts, timeout, err := syncOptions(c, "upload")
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	start := time.Now()
	res, err := h.engine.ComputeNow(ctx, specs, opts, timeout)
	if err != nil {
		h.writeComputeError(ctx, c, res, err)
		return
	}
	c.JSON(consts.StatusOK, batchResponse(res.TaskID, res.Status, res.Outcomes, time.Since(start)))
}

// SubmitBatch 异步计算服务端目录下的文件
func (h *Handler) SubmitBatch(ctx context.Context, c *app.RequestContext) {
	var req BatchTaskRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	files, err := source.Enumerate(req.Directory, req.Recursive)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	if len(files) == 0 {
		h.writeError(ctx, c, apperrors.Validationf("directory %s contains no files", req.Directory))
		return
	}
	specs := make([]engine.ItemSpec, len(files))
	for i, f := range files {
		specs[i] = engine.ItemSpec{Name: f, Source: source.FromPath(f), Algorithm: req.Algorithm}
	}
	h.submit(ctx, c, specs, engine.SubmitOptions{
		Label:     "directory",
		Directory: req.Directory,
		ChunkSize: req.ChunkSize,
	})
}

// SubmitUploads 异步计算上传文件（表单字段 files）
func (h *Handler) SubmitUploads(ctx context.Context, c *app.RequestContext) {
	specs, err := formSpecs(c)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	chunk, err := formChunkSize(c)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	h.submit(ctx, c, specs, engine.SubmitOptions{Label: "upload", ChunkSize: chunk})
}

func (h *Handler) submit(ctx context.Context, c *app.RequestContext, specs []engine.ItemSpec, opts engine.SubmitOptions) {
	id, err := h.engine.Submit(ctx, specs, opts)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	sum, err := h.engine.GetStatus(id)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusAccepted, TaskResponse{
		TaskID:    id,
		Status:    sum.Status,
		Directory: opts.Directory,
		FileCount: len(specs),
		CreatedAt: sum.CreatedAt,
	})
}

// GetTaskStatus 查询 Task 状态
func (h *Handler) GetTaskStatus(ctx context.Context, c *app.RequestContext) {
	sum, err := h.engine.GetStatus(c.Param("id"))
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, statusResponse(sum))
}

// GetTaskResults 查询 Task 结果；include_errors=false 时不返回错误消息
func (h *Handler) GetTaskResults(ctx context.Context, c *app.RequestContext) {
	includeErrors := true
	if v := c.Query("include_errors"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(consts.StatusBadRequest, map[string]string{"error": "include_errors must be a boolean"})
			return
		}
		includeErrors = b
	}
	id := c.Param("id")
	sum, outs, err := h.engine.Results(id, includeErrors)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, batchResponse(id, sum.Status, outs, sum.Elapsed))
}

// CancelTask 取消尚未开始的 Item
func (h *Handler) CancelTask(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	n, err := h.engine.Abandon(id)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"task_id": id, "cancelled": n})
}

// Verify 同步计算上传文件并与 expected_hashes 比对
func (h *Handler) Verify(ctx context.Context, c *app.RequestContext) {
	expected, err := verify.ParseExpectedJSON([]byte(c.PostForm("expected_hashes")))
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	specs, err := formSpecs(c)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	opts, timeout, err := syncOptions(c, "verify")
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	start := time.Now()
	report, err := h.verifier.VerifyNow(ctx, specs, expected, opts, timeout)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindTimeout {
			c.JSON(consts.StatusAccepted, map[string]interface{}{
				"task_id": report.TaskID,
				"error":   err.Error(),
			})
			return
		}
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, verifyResponse(report, time.Since(start)))
}

// VerifyTask 对已完成的 Task 比对期望摘要
func (h *Handler) VerifyTask(ctx context.Context, c *app.RequestContext) {
	var req VerifyTaskRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	expected, err := verify.ParseExpected(req.ExpectedHashes)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	start := time.Now()
	report, err := h.verifier.VerifyTask(c.Param("id"), expected)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, verifyResponse(report, time.Since(start)))
}

func verifyResponse(r verify.Report, elapsed time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"task_id":               r.TaskID,
		"results":               r.Entries,
		"total_files":           len(r.Entries),
		"match_count":           r.Matched,
		"mismatch_count":        r.Mismatched,
		"missing_count":         r.Missing,
		"ok":                    r.OK(),
		"total_processing_time": elapsed.Seconds(),
	}
}

// writeComputeError 同步超时返回 202 与部分结果，其余按错误类别映射
func (h *Handler) writeComputeError(ctx context.Context, c *app.RequestContext, res engine.Result, err error) {
	if apperrors.KindOf(err) == apperrors.KindTimeout && res.TaskID != "" {
		resp := batchResponse(res.TaskID, res.Status, res.Outcomes, 0)
		c.JSON(consts.StatusAccepted, map[string]interface{}{
			"task_id": res.TaskID,
			"status":  res.Status,
			"error":   err.Error(),
			"partial": resp,
		})
		return
	}
	h.writeError(ctx, c, err)
}

func (h *Handler) writeError(ctx context.Context, c *app.RequestContext, err error) {
	kind := apperrors.KindOf(err)
	status := statusForKind(kind)
	if status >= consts.StatusInternalServerError {
		hlog.CtxErrorf(ctx, "request %s failed: %v", c.Path(), err)
	}
	c.JSON(status, map[string]string{"error": err.Error(), "kind": string(kind)})
}

func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return consts.StatusBadRequest
	case apperrors.KindNotFound:
		return consts.StatusNotFound
	case apperrors.KindOverloaded:
		return consts.StatusServiceUnavailable
	case apperrors.KindTimeout:
		return consts.StatusAccepted
	case apperrors.KindCancelled:
		return consts.StatusConflict
	case apperrors.KindSourceUnreadable:
		return consts.StatusUnprocessableEntity
	default:
		return consts.StatusInternalServerError
	}
}

// syncOptions 解析 chunk_size 与 timeout（如 "5s"）表单字段
func syncOptions(c *app.RequestContext, label string) (engine.SubmitOptions, time.Duration, error) {
	chunk, err := formChunkSize(c)
	if err != nil {
		return engine.SubmitOptions{}, 0, err
	}
	var timeout time.Duration
	if v := c.PostForm("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return engine.SubmitOptions{}, 0, apperrors.Validationf("invalid timeout %q", v)
		}
		timeout = d
	}
	return engine.SubmitOptions{Label: label, ChunkSize: chunk}, timeout, nil
}

func formChunkSize(c *app.RequestContext) (int, error) {
	v := c.PostForm("chunk_size")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperrors.Validationf("chunk_size must be an integer, got %q", v)
	}
	return n, nil
}

// formSpecs 读取表单字段 files 中的全部上传文件
func formSpecs(c *app.RequestContext) ([]engine.ItemSpec, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperrors.Validationf("multipart form required: %v", err)
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return nil, apperrors.Validationf("files is required")
	}
	algo := c.PostForm("algorithm")
	specs := make([]engine.ItemSpec, 0, len(headers))
	for _, fh := range headers {
		spec, err := uploadSpec(fh, algo)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func uploadSpec(fh *multipart.FileHeader, algo string) (engine.ItemSpec, error) {
	f, err := fh.Open()
	if err != nil {
		return engine.ItemSpec{}, apperrors.Validationf("open upload %s: %v", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return engine.ItemSpec{}, apperrors.Validationf("read upload %s: %v", fh.Filename, err)
	}
	return engine.ItemSpec{Name: fh.Filename, Source: source.FromBytes(data), Algorithm: algo}, nil
}
