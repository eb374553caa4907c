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

package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"validation", Validationf("unknown algorithm %q", "foo"), KindValidation},
		{"not found", NotFoundf("task %s", "abc"), KindNotFound},
		{"overloaded", Overloadedf("queue full"), KindOverloaded},
		{"wrapped timeout", Wrap(ErrTimeout, "compute"), KindTimeout},
		{"double wrapped", Wrapf(fmt.Errorf("open: %w", ErrSourceUnreadable), "item %d", 3), KindSourceUnreadable},
		{"cancelled", ErrCancelled, KindCancelled},
		{"unknown", fmt.Errorf("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestKindOf_ContextErrorsAreInternal(t *testing.T) {
	// 上下文错误需由调用方显式包装为 ErrCancelled / ErrTimeout
	assert.Equal(t, KindInternal, KindOf(context.Canceled))
	assert.Equal(t, KindCancelled, KindOf(fmt.Errorf("%w: %v", ErrCancelled, context.Canceled)))
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "x"))
	assert.Nil(t, Wrapf(nil, "x %d", 1))
}
