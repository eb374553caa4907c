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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
api:
  port: 9000
  host: "127.0.0.1"
engine:
  workers: 3
  queue_size: 10
  overload_policy: "block"
  enqueue_timeout: "250ms"
registry:
  retention: "2m"
log:
  level: "debug"
`
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port: got %d", cfg.API.Port)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host: got %q", cfg.API.Host)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
	if cfg.Engine.Workers != 3 || cfg.Engine.QueueSize != 10 {
		t.Errorf("Engine: got workers=%d queue=%d", cfg.Engine.Workers, cfg.Engine.QueueSize)
	}
	if cfg.Engine.OverloadPolicy != "block" {
		t.Errorf("Engine.OverloadPolicy: got %q", cfg.Engine.OverloadPolicy)
	}
	if got := cfg.Engine.EnqueueTimeoutDuration(); got != 250*time.Millisecond {
		t.Errorf("EnqueueTimeout: got %v", got)
	}
	if got := cfg.Registry.RetentionDuration(); got != 2*time.Minute {
		t.Errorf("Retention: got %v", got)
	}
	// 未配置项使用默认值
	if cfg.Engine.ChunkSize != DefaultChunkSize {
		t.Errorf("Engine.ChunkSize default: got %d", cfg.Engine.ChunkSize)
	}
	if cfg.Engine.DefaultAlgorithm != DefaultAlgorithm {
		t.Errorf("Engine.DefaultAlgorithm default: got %q", cfg.Engine.DefaultAlgorithm)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadConfig_EnvSubstitution(t *testing.T) {
	t.Setenv("FILEHASH_TEST_JWT", "s3cret")
	dir := t.TempDir()
	yaml := `
api:
  middleware:
    jwt_key: "${FILEHASH_TEST_JWT}"
`
	path := filepath.Join(dir, "env.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Middleware.JWTKey != "s3cret" {
		t.Errorf("JWTKey: got %q", cfg.API.Middleware.JWTKey)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.API.Port != DefaultPort {
		t.Errorf("Port: got %d", cfg.API.Port)
	}
	if cfg.Engine.Workers <= 0 {
		t.Errorf("Workers should default to GOMAXPROCS, got %d", cfg.Engine.Workers)
	}
	if cfg.Engine.OverloadPolicy != "reject" {
		t.Errorf("OverloadPolicy: got %q", cfg.Engine.OverloadPolicy)
	}
	if got := cfg.Registry.SweepIntervalDuration(); got != time.Minute {
		t.Errorf("SweepInterval: got %v", got)
	}
}

func TestParseDuration(t *testing.T) {
	if got := ParseDuration("", time.Second); got != time.Second {
		t.Errorf("empty: got %v", got)
	}
	if got := ParseDuration("bogus", time.Second); got != time.Second {
		t.Errorf("invalid: got %v", got)
	}
	if got := ParseDuration("-1s", time.Second); got != time.Second {
		t.Errorf("negative: got %v", got)
	}
	if got := ParseDuration("3s", time.Second); got != 3*time.Second {
		t.Errorf("valid: got %v", got)
	}
}
