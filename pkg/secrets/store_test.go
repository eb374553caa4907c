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
	"strings"
	"testing"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		name        string
		provider    string
		wantErr     bool
		errContains string
	}{
		{name: "memory", provider: "memory"},
		{name: "env", provider: "env"},
		{name: "default env", provider: ""},
		{name: "vault", provider: "vault"},
		{name: "unknown provider", provider: "k8s", wantErr: true, errContains: "unsupported secret provider"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewStore(Config{Provider: tc.provider})
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if tc.errContains != "" && !strings.Contains(err.Error(), tc.errContains) {
					t.Fatalf("error = %q, want contains %q", err.Error(), tc.errContains)
				}
				if store != nil {
					t.Fatalf("store should be nil when error occurs")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if store == nil {
				t.Fatalf("store should not be nil")
			}
		})
	}
}

func TestEnvStore(t *testing.T) {
	t.Setenv("FILEHASH_JWT_KEY", "k1")
	s := NewEnvStore("FILEHASH_")
	got, err := s.Get(context.Background(), "jwt.key")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "k1" {
		t.Fatalf("got %q, want k1", got)
	}
	if _, err := s.Get(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for unset variable")
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(map[string]string{"jwt_key": "from-store"})

	got, err := Resolve(ctx, store, "plain")
	if err != nil || got != "plain" {
		t.Fatalf("plain value: got %q, %v", got, err)
	}
	got, err = Resolve(ctx, store, "secret://jwt_key")
	if err != nil || got != "from-store" {
		t.Fatalf("reference: got %q, %v", got, err)
	}
	if _, err := Resolve(ctx, store, "secret://absent"); err == nil {
		t.Fatalf("expected error for missing secret")
	}
	if _, err := Resolve(ctx, nil, "secret://jwt_key"); err == nil {
		t.Fatalf("expected error without store")
	}
	if _, err := Resolve(ctx, store, "secret://"); err == nil {
		t.Fatalf("expected error for empty reference")
	}
}

func TestPickValue(t *testing.T) {
	got, err := pickValue("k", map[string]interface{}{"data": map[string]interface{}{"value": "v2"}})
	if err != nil || got != "v2" {
		t.Fatalf("kv2: got %q, %v", got, err)
	}
	got, err = pickValue("k", map[string]interface{}{"value": "v1"})
	if err != nil || got != "v1" {
		t.Fatalf("kv1: got %q, %v", got, err)
	}
	if _, err := pickValue("k", map[string]interface{}{"n": 1}); err == nil {
		t.Fatalf("expected error without string value")
	}
}
