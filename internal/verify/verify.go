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

// Package verify 将计算得到的摘要与调用方给出的期望值按声明名比对。
package verify

import (
	"encoding/json"
	"sort"
	"strings"

	"filehash-platform/internal/engine"
	"filehash-platform/internal/task"
	apperrors "filehash-platform/pkg/errors"
)

// Verdict 单项比对结论
type Verdict string

const (
	Match    Verdict = "match"
	Mismatch Verdict = "mismatch"
	Missing  Verdict = "missing"
)

// Expected 期望摘要（与上传表单 expected_hashes 的 JSON 元素一致）
type Expected struct {
	FileName     string `json:"file_name" toml:"file_name"`
	ExpectedHash string `json:"expected_hash" toml:"expected_hash"`
}

// Entry 单项比对结果
type Entry struct {
	Name      string          `json:"file_name"`
	Algorithm string          `json:"algorithm,omitempty"`
	Expected  string          `json:"expected_hash,omitempty"`
	Actual    string          `json:"actual_hash,omitempty"`
	Verdict   Verdict         `json:"verdict"`
	Error     *task.ItemError `json:"error,omitempty"`
}

// Report 比对报告
type Report struct {
	TaskID     string  `json:"task_id,omitempty"`
	Entries    []Entry `json:"results"`
	Matched    int     `json:"match_count"`
	Mismatched int     `json:"mismatch_count"`
	Missing    int     `json:"missing_count"`
}

// OK 全部匹配且无缺失
func (r Report) OK() bool {
	return r.Mismatched == 0 && r.Missing == 0 && r.Matched > 0
}

// ParseExpected 解析期望列表；声明名为空或同名给出不同摘要时返回 ErrValidation
func ParseExpected(list []Expected) (map[string]string, error) {
	out := make(map[string]string, len(list))
	for i, e := range list {
		name := strings.TrimSpace(e.FileName)
		sum := strings.TrimSpace(e.ExpectedHash)
		if name == "" || sum == "" {
			return nil, apperrors.Validationf("expected_hashes[%d]: file_name and expected_hash are required", i)
		}
		if prev, ok := out[name]; ok && !strings.EqualFold(prev, sum) {
			return nil, apperrors.Validationf("expected_hashes: conflicting entries for %q", name)
		}
		out[name] = sum
	}
	return out, nil
}

// ParseExpectedJSON 解析 JSON 形式的期望列表
func ParseExpectedJSON(data []byte) (map[string]string, error) {
	var list []Expected
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, apperrors.Validationf("expected_hashes must be a JSON list of {file_name, expected_hash}: %v", err)
	}
	return ParseExpected(list)
}

// Verify 逐项比对：声明名同时出现在两侧时比较摘要（忽略大小写，要求完全一致）；
// 只出现在一侧的项报告为 Missing；计算失败的项报告为 Mismatch 并附带错误。
// 计算侧按原顺序输出，仅出现在期望侧的项按名称排序追加在后。
func Verify(computed []engine.Outcome, expected map[string]string) Report {
	var r Report
	seen := make(map[string]bool, len(computed))
	for _, o := range computed {
		seen[o.Name] = true
		e := Entry{Name: o.Name, Algorithm: o.Algorithm, Actual: o.Digest, Error: o.Error}
		want, ok := expected[o.Name]
		switch {
		case !ok:
			e.Verdict = Missing
		case o.Error != nil:
			e.Expected = want
			e.Verdict = Mismatch
		case equalDigest(o.Digest, want):
			e.Expected = want
			e.Verdict = Match
		default:
			e.Expected = want
			e.Verdict = Mismatch
		}
		r.add(e)
	}

	var extra []string
	for name := range expected {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		r.add(Entry{Name: name, Expected: expected[name], Verdict: Missing})
	}
	return r
}

func (r *Report) add(e Entry) {
	switch e.Verdict {
	case Match:
		r.Matched++
	case Mismatch:
		r.Mismatched++
	case Missing:
		r.Missing++
	}
	r.Entries = append(r.Entries, e)
}

func equalDigest(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && len(a) == len(b) && strings.EqualFold(a, b)
}
