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

package verify

import (
	"context"
	"time"

	"filehash-platform/internal/engine"
	apperrors "filehash-platform/pkg/errors"
)

// Service 基于 Engine 的校验服务
type Service struct {
	engine *engine.Engine
}

// NewService 创建校验服务
func NewService(e *engine.Engine) *Service {
	return &Service{engine: e}
}

// VerifyNow 同步计算 specs 的摘要并与 expected 比对；
// 超时返回 ErrTimeout，报告中仅 TaskID 有效，调用方可稍后用 VerifyTask 重试。
func (s *Service) VerifyNow(ctx context.Context, specs []engine.ItemSpec, expected map[string]string, opts engine.SubmitOptions, timeout time.Duration) (Report, error) {
	if len(expected) == 0 {
		return Report{}, apperrors.Validationf("expected_hashes is empty")
	}
	if opts.Label == "" {
		opts.Label = "verify"
	}
	res, err := s.engine.ComputeNow(ctx, specs, opts, timeout)
	if err != nil {
		return Report{TaskID: res.TaskID}, err
	}
	r := Verify(res.Outcomes, expected)
	r.TaskID = res.TaskID
	return r, nil
}

// VerifyTask 对已完成的 Task 进行比对；Task 未完成时返回 ErrValidation
func (s *Service) VerifyTask(id string, expected map[string]string) (Report, error) {
	if len(expected) == 0 {
		return Report{}, apperrors.Validationf("expected_hashes is empty")
	}
	sum, out, err := s.engine.Results(id, true)
	if err != nil {
		return Report{}, err
	}
	if !sum.Status.Terminal() {
		return Report{}, apperrors.Validationf("task %s is %s", id, sum.Status)
	}
	r := Verify(out, expected)
	r.TaskID = id
	return r, nil
}
