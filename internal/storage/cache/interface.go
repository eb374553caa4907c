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
	"errors"
	"time"
)

// ErrMiss 缓存未命中或已过期
var ErrMiss = errors.New("cache miss")

// Store 摘要缓存存储接口，key 由调用方构造，value 为十六进制摘要
type Store interface {
	// Get 获取缓存；未命中返回 ErrMiss
	Get(ctx context.Context, key string) (string, error)
	// Set 设置缓存，expiration<=0 表示不过期
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	// Delete 删除缓存
	Delete(ctx context.Context, key string) error
	// Close 关闭缓存连接
	Close() error
}
