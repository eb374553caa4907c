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
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"filehash-platform/internal/verify"
)

// manifest 期望摘要清单（TOML）
//
//	algorithm = "sha256"
//
//	[[files]]
//	file_name = "a.txt"
//	expected_hash = "ba78..."
type manifest struct {
	Algorithm string            `toml:"algorithm,omitempty" json:"algorithm,omitempty"`
	Files     []verify.Expected `toml:"files" json:"files"`
}

// loadManifest 读取清单；.json 按 JSON 解析，其余按 TOML
func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &m)
	} else {
		err = toml.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Files) == 0 {
		return nil, fmt.Errorf("manifest %s has no files", path)
	}
	// 提前发现空项与冲突项
	if _, err := verify.ParseExpected(m.Files); err != nil {
		return nil, err
	}
	return &m, nil
}

// expectedJSON 转为 expected_hashes 表单字段
func (m *manifest) expectedJSON() ([]byte, error) {
	return json.Marshal(m.Files)
}

// manifestFrom 由计算结果生成清单，失败项跳过
func manifestFrom(res batchResult) *manifest {
	m := &manifest{}
	for _, r := range res.Results {
		if r.Status != "success" {
			continue
		}
		if m.Algorithm == "" {
			m.Algorithm = r.Algorithm
		}
		m.Files = append(m.Files, verify.Expected{FileName: r.FileName, ExpectedHash: r.HashValue})
	}
	return m
}

func (m *manifest) encode() ([]byte, error) {
	return toml.Marshal(m)
}
