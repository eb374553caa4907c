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

// Package secrets 解析服务使用的敏感配置（JWT 签名密钥、Redis 密码）。
package secrets

import (
	"context"
	"fmt"
	"strings"
)

// RefPrefix 配置值以此前缀开头时从 Store 读取
const RefPrefix = "secret://"

// Store Secret 只读来源
type Store interface {
	// Get 获取 secret 值；不存在时返回错误
	Get(ctx context.Context, key string) (string, error)
}

// Config Secret Store 配置
type Config struct {
	Provider string // env | memory | vault
	Vault    VaultConfig
}

// NewStore 按 Provider 创建 Secret Store
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "", "env":
		return NewEnvStore(""), nil
	case "memory":
		return NewMemoryStore(nil), nil
	case "vault":
		return NewVaultStore(config.Vault)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Provider)
	}
}

// Resolve 解析配置值：secret://<key> 从 store 读取，其余原样返回
func Resolve(ctx context.Context, store Store, value string) (string, error) {
	if !strings.HasPrefix(value, RefPrefix) {
		return value, nil
	}
	key := strings.TrimPrefix(value, RefPrefix)
	if key == "" {
		return "", fmt.Errorf("empty secret reference")
	}
	if store == nil {
		return "", fmt.Errorf("secret %s referenced but no store configured", key)
	}
	return store.Get(ctx, key)
}
