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

package secrets

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig Vault 配置
type VaultConfig struct {
	Address    string // 如 http://vault:8200
	Token      string
	PathPrefix string // 默认 "secret"
}

type vaultStore struct {
	client     *vault.Client
	pathPrefix string
}

// NewVaultStore 创建 Vault secret store（只读）
func NewVaultStore(config VaultConfig) (Store, error) {
	cfg := vault.DefaultConfig()
	if config.Address != "" {
		cfg.Address = config.Address
	}

	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Token != "" {
		client.SetToken(config.Token)
	}

	prefix := "secret"
	if config.PathPrefix != "" {
		prefix = config.PathPrefix
	}
	return &vaultStore{client: client, pathPrefix: prefix}, nil
}

func (v *vaultStore) Get(ctx context.Context, key string) (string, error) {
	secret, err := v.client.Logical().ReadWithContext(ctx, v.pathPrefix+"/"+key)
	if err != nil {
		return "", fmt.Errorf("failed to read secret from vault: %w", err)
	}
	if secret == nil {
		return "", fmt.Errorf("secret not found: %s", key)
	}
	return pickValue(key, secret.Data)
}

// pickValue 优先取 "value" 字段；KV v2 的数据嵌套在 "data" 下
func pickValue(key string, data map[string]interface{}) (string, error) {
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}
	if s, ok := data["value"].(string); ok {
		return s, nil
	}
	for _, val := range data {
		if s, ok := val.(string); ok {
			return s, nil
		}
	}
	return "", fmt.Errorf("secret value not found: %s", key)
}
