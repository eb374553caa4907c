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

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	apihttp "filehash-platform/internal/api/http"
	"filehash-platform/internal/verify"
)

type (
	hashResult  = apihttp.HashResponse
	batchResult = apihttp.BatchHashResponse
	taskInfo    = apihttp.TaskResponse
	taskStatus  = apihttp.TaskStatusResponse
)

// verifyReport 比对接口响应
type verifyReport struct {
	TaskID     string         `json:"task_id"`
	Results    []verify.Entry `json:"results"`
	Matched    int            `json:"match_count"`
	Mismatched int            `json:"mismatch_count"`
	Missing    int            `json:"missing_count"`
	OK         bool           `json:"ok"`
}

// apiError 服务端错误响应
type apiError struct {
	Status  int
	Message string `json:"error"`
	Kind    string `json:"kind"`
}

func (e *apiError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// client 摘要服务 HTTP 客户端
type client struct {
	r *resty.Client
}

func newClient(baseURL, token string, timeout time.Duration) *client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetError(&apiError{})
	if token != "" {
		r.SetAuthToken(token)
	}
	return &client{r: r}
}

// do 执行请求；非 2xx 时返回 *apiError
func (c *client) do(req *resty.Request, method, path string) (*resty.Response, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		e, ok := resp.Error().(*apiError)
		if !ok || e.Message == "" {
			e = &apiError{Message: resp.String()}
		}
		e.Status = resp.StatusCode()
		return resp, e
	}
	return resp, nil
}

func (c *client) algorithms() ([]string, string, error) {
	var out struct {
		Algorithms []string `json:"algorithms"`
		Default    string   `json:"default"`
	}
	if _, err := c.do(c.r.R().SetResult(&out), http.MethodGet, "/api/v1/hash/algorithms"); err != nil {
		return nil, "", err
	}
	return out.Algorithms, out.Default, nil
}

// form 公共表单字段
type form struct {
	Algorithm string
	ChunkSize int
	Timeout   time.Duration
}

func (f form) values() map[string]string {
	m := map[string]string{}
	if f.Algorithm != "" {
		m["algorithm"] = f.Algorithm
	}
	if f.ChunkSize > 0 {
		m["chunk_size"] = strconv.Itoa(f.ChunkSize)
	}
	if f.Timeout > 0 {
		m["timeout"] = f.Timeout.String()
	}
	return m
}

// uploadFiles 以 files 字段上传本地文件；声明名为文件名（不含目录）
func uploadFiles(req *resty.Request, paths []string) (func(), error) {
	var opened []*os.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	fields := make([]*resty.MultipartField, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, err
		}
		opened = append(opened, f)
		fields = append(fields, &resty.MultipartField{
			Param:       "files",
			FileName:    filepath.Base(p),
			ContentType: "application/octet-stream",
			Reader:      f,
		})
	}
	req.SetMultipartFields(fields...)
	return closeAll, nil
}

func (c *client) hashFiles(paths []string, f form) (batchResult, error) {
	var out batchResult
	req := c.r.R().SetResult(&out).SetMultipartFormData(f.values())
	done, err := uploadFiles(req, paths)
	if err != nil {
		return out, err
	}
	defer done()
	resp, err := c.do(req, http.MethodPost, "/api/v1/hash/files")
	if err != nil {
		return out, err
	}
	if resp.StatusCode() == http.StatusAccepted {
		return out, fmt.Errorf("timed out, continue with: hashctl results %s", pendingTaskID(resp.Body()))
	}
	return out, nil
}

func (c *client) hashPath(path string, f form) (hashResult, error) {
	var out hashResult
	data := f.values()
	data["file_path"] = path
	resp, err := c.do(c.r.R().SetResult(&out).SetFormData(data), http.MethodPost, "/api/v1/hash/path")
	if err != nil {
		return out, err
	}
	if resp.StatusCode() == http.StatusAccepted {
		return out, fmt.Errorf("timed out, continue with: hashctl results %s", pendingTaskID(resp.Body()))
	}
	return out, nil
}

func (c *client) submitBatch(dir string, recursive bool, f form) (taskInfo, error) {
	var out taskInfo
	body := map[string]interface{}{
		"directory":  dir,
		"recursive":  recursive,
		"algorithm":  f.Algorithm,
		"chunk_size": f.ChunkSize,
	}
	_, err := c.do(c.r.R().SetBody(body).SetResult(&out), http.MethodPost, "/api/v1/hash/batch")
	return out, err
}

func (c *client) submitUploads(paths []string, f form) (taskInfo, error) {
	var out taskInfo
	req := c.r.R().SetResult(&out).SetMultipartFormData(f.values())
	done, err := uploadFiles(req, paths)
	if err != nil {
		return out, err
	}
	defer done()
	_, err = c.do(req, http.MethodPost, "/api/v1/hash/upload/batch")
	return out, err
}

func (c *client) status(id string) (taskStatus, error) {
	var out taskStatus
	_, err := c.do(c.r.R().SetResult(&out).SetPathParam("id", id), http.MethodGet, "/api/v1/hash/batch/{id}")
	return out, err
}

func (c *client) results(id string, includeErrors bool) (batchResult, error) {
	var out batchResult
	req := c.r.R().SetResult(&out).
		SetPathParam("id", id).
		SetQueryParam("include_errors", strconv.FormatBool(includeErrors))
	_, err := c.do(req, http.MethodGet, "/api/v1/hash/batch/{id}/results")
	return out, err
}

func (c *client) cancel(id string) (int, error) {
	var out struct {
		Cancelled int `json:"cancelled"`
	}
	_, err := c.do(c.r.R().SetResult(&out).SetPathParam("id", id), http.MethodDelete, "/api/v1/hash/batch/{id}")
	return out.Cancelled, err
}

func (c *client) verifyFiles(paths []string, expected []byte, f form) (verifyReport, error) {
	var out verifyReport
	data := f.values()
	data["expected_hashes"] = string(expected)
	req := c.r.R().SetResult(&out).SetMultipartFormData(data)
	done, err := uploadFiles(req, paths)
	if err != nil {
		return out, err
	}
	defer done()
	resp, err := c.do(req, http.MethodPost, "/api/v1/hash/verify")
	if err != nil {
		return out, err
	}
	if resp.StatusCode() == http.StatusAccepted {
		return out, fmt.Errorf("timed out, retry with: hashctl verify --task %s", pendingTaskID(resp.Body()))
	}
	return out, nil
}

func (c *client) verifyTask(id string, expected json.RawMessage) (verifyReport, error) {
	var out verifyReport
	req := c.r.R().SetResult(&out).
		SetPathParam("id", id).
		SetBody(map[string]json.RawMessage{"expected_hashes": expected})
	_, err := c.do(req, http.MethodPost, "/api/v1/hash/batch/{id}/verify")
	return out, err
}

func pendingTaskID(body []byte) string {
	var v struct {
		TaskID string `json:"task_id"`
	}
	_ = json.Unmarshal(body, &v)
	return v.TaskID
}

func prettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
