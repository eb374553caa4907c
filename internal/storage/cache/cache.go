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

package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"filehash-platform/pkg/config"
)

// NewCache 根据配置创建缓存；type=none 时返回 nil（不启用缓存）
func NewCache(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "none":
		return nil, nil
	case "redis":
		client := redis.NewClient(RedisOptions(cfg))
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return NewRedisStore(client, ""), nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// RedisOptions 从 CacheConfig 构造 redis.Options
func RedisOptions(cfg config.CacheConfig) *redis.Options {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if opts.DB < 0 {
		opts.DB = 0
	}
	return opts
}
