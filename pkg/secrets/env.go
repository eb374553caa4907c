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
	"os"
	"strings"
)

type envStore struct {
	prefix string
}

// NewEnvStore 创建环境变量 secret store；key 转为大写并加上 prefix，"." 与 "-" 替换为 "_"
func NewEnvStore(prefix string) Store {
	return &envStore{prefix: prefix}
}

func (e *envStore) Get(ctx context.Context, key string) (string, error) {
	name := e.prefix + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	value := os.Getenv(name)
	if value == "" {
		return "", fmt.Errorf("environment variable not set: %s", name)
	}
	return value, nil
}
