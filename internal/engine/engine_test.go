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

package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filehash-platform/internal/digest"
	"filehash-platform/internal/pool"
	"filehash-platform/internal/source"
	"filehash-platform/internal/storage/cache"
	"filehash-platform/internal/task"
	apperrors "filehash-platform/pkg/errors"
)

const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func newEngine(t *testing.T, pc pool.Config, ro task.Options, opts ...Option) *Engine {
	t.Helper()
	p := pool.New(pc, nil)
	e := New(task.NewRegistry(ro), p, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(ctx)
	})
	return e
}

// gatedDigest 在 gate 关闭前阻塞摘要计算
func gatedDigest(gate <-chan struct{}) digest.Func {
	return func(ctx context.Context, r io.Reader, algo string, chunk int) (string, int64, error) {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", 0, ctx.Err()
		}
		return digest.Compute(ctx, r, algo, chunk)
	}
}

func bytesSpec(name string, data []byte) ItemSpec {
	return ItemSpec{Name: name, Source: source.FromBytes(data), Algorithm: "sha256"}
}

func TestComputeNow_EmptyInputSHA256(t *testing.T) {
	e := newEngine(t, pool.Config{Workers: 2}, task.Options{})
	res, err := e.ComputeNow(context.Background(), []ItemSpec{bytesSpec("empty", nil)}, SubmitOptions{}, time.Second)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, emptySHA256, res.Outcomes[0].Digest)
	assert.Equal(t, task.StatusCompleted, res.Status)
	assert.NotEmpty(t, res.TaskID)
}

func TestSubmit_Validation(t *testing.T) {
	e := newEngine(t, pool.Config{Workers: 1}, task.Options{})
	ctx := context.Background()

	_, err := e.Submit(ctx, nil, SubmitOptions{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = e.Submit(ctx, []ItemSpec{{Name: "a", Source: source.FromBytes([]byte("a")), Algorithm: "crc99"}}, SubmitOptions{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = e.Submit(ctx, []ItemSpec{{Name: "a", Algorithm: "sha256"}}, SubmitOptions{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = e.Submit(ctx, []ItemSpec{bytesSpec("a", []byte("a"))}, SubmitOptions{ChunkSize: 10})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	assert.Equal(t, 0, e.Registry().Len())
}

func TestSubmit_DefaultAlgorithmAndNormalization(t *testing.T) {
	e := newEngine(t, pool.Config{Workers: 1}, task.Options{}, WithDefaultAlgorithm("MD5"))
	res, err := e.ComputeNow(context.Background(), []ItemSpec{
		{Name: "a", Source: source.FromBytes(nil)},
		{Name: "b", Source: source.FromBytes(nil), Algorithm: "SHA-256"},
	}, SubmitOptions{}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "md5", res.Outcomes[0].Algorithm)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", res.Outcomes[0].Digest)
	assert.Equal(t, "sha256", res.Outcomes[1].Algorithm)
	assert.Equal(t, emptySHA256, res.Outcomes[1].Digest)
}

func TestSubmit_LivenessAndIsolation(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	require.NoError(t, os.WriteFile(good, []byte("hello"), 0o644))

	e := newEngine(t, pool.Config{Workers: 4}, task.Options{})
	id, err := e.Submit(context.Background(), []ItemSpec{
		{Name: "missing", Source: source.FromPath(filepath.Join(dir, "missing.txt")), Algorithm: "sha256"},
		{Name: "good", Source: source.FromPath(good), Algorithm: "sha256"},
		bytesSpec("upload", []byte("hello")),
	}, SubmitOptions{Label: "path"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sum, err := e.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompletedWithErrors, sum.Status)
	assert.Equal(t, 1, sum.Counts.Failed)
	assert.Equal(t, 2, sum.Counts.Done)
	assert.NotNil(t, sum.CompletedAt)

	res, err := e.GetResults(id, true)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, apperrors.KindSourceUnreadable, res[0].ErrorKind())
	assert.NotEmpty(t, res[0].Error.Message)
	assert.Equal(t, res[1].Digest, res[2].Digest)
	assert.Equal(t, "good", res[1].Name)
}

func TestGetResults_WithoutErrorsKeepsPositions(t *testing.T) {
	e := newEngine(t, pool.Config{Workers: 1}, task.Options{})
	res, err := e.ComputeNow(context.Background(), []ItemSpec{
		{Name: "missing", Source: source.FromPath(filepath.Join(t.TempDir(), "nope")), Algorithm: "sha1"},
		bytesSpec("ok", []byte("x")),
	}, SubmitOptions{}, time.Second)
	require.NoError(t, err)

	out, err := e.GetResults(res.TaskID, false)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.NotNil(t, out[0].Error)
	assert.Equal(t, apperrors.KindSourceUnreadable, out[0].Error.Kind)
	assert.Empty(t, out[0].Error.Message)
	assert.Equal(t, "failed", out[0].State)
	assert.Equal(t, "done", out[1].State)
}

func TestSubmit_ThousandItemsKeepIndexCorrespondence(t *testing.T) {
	e := newEngine(t, pool.Config{Workers: 8, QueueSize: 2000}, task.Options{})
	specs := make([]ItemSpec, 1000)
	for i := range specs {
		specs[i] = bytesSpec(fmt.Sprintf("item-%d", i), []byte{byte(i % 256)})
	}
	res, err := e.ComputeNow(context.Background(), specs, SubmitOptions{}, 10*time.Second)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1000)
	assert.Equal(t, task.StatusCompleted, res.Status)
	for i, o := range res.Outcomes {
		want, err := digest.Bytes([]byte{byte(i % 256)}, "sha256")
		require.NoError(t, err)
		require.Equal(t, want, o.Digest, "index %d", i)
		require.Equal(t, fmt.Sprintf("item-%d", i), o.Name)
	}
}

func TestSubmit_OverloadedDoesNotKeepTask(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	e := newEngine(t, pool.Config{Workers: 1, QueueSize: 2, Policy: pool.PolicyReject}, task.Options{}, WithDigestFunc(gatedDigest(gate)))

	_, err := e.Submit(context.Background(), []ItemSpec{bytesSpec("a", nil), bytesSpec("b", nil), bytesSpec("c", nil)}, SubmitOptions{})
	assert.ErrorIs(t, err, apperrors.ErrOverloaded)
	assert.Equal(t, 0, e.Registry().Len())
}

func TestGetResults_PartialWhileRunning(t *testing.T) {
	gate := make(chan struct{})
	e := newEngine(t, pool.Config{Workers: 1}, task.Options{}, WithDigestFunc(gatedDigest(gate)))

	id, err := e.Submit(context.Background(), []ItemSpec{bytesSpec("a", nil), bytesSpec("b", nil)}, SubmitOptions{})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		s, _ := e.GetStatus(id)
		return s.Status == task.StatusRunning
	}, time.Second, 5*time.Millisecond)

	out, err := e.GetResults(id, true)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, "running", out[0].State)
	assert.Equal(t, "pending", out[1].State)

	close(gate)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sum, err := e.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, sum.Status)
}

func TestComputeNow_TimeoutReturnsPartial(t *testing.T) {
	gate := make(chan struct{})
	e := newEngine(t, pool.Config{Workers: 1}, task.Options{}, WithDigestFunc(gatedDigest(gate)))

	res, err := e.ComputeNow(context.Background(), []ItemSpec{bytesSpec("a", nil)}, SubmitOptions{}, 20*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	require.NotEmpty(t, res.TaskID)
	assert.Len(t, res.Outcomes, 1)
	assert.False(t, res.Status.Terminal())

	// 超时不取消已投递的计算
	close(gate)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sum, err := e.Wait(ctx, res.TaskID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, sum.Status)
	out, err := e.GetResults(res.TaskID, true)
	require.NoError(t, err)
	assert.Equal(t, emptySHA256, out[0].Digest)
}

func TestAbandon_CancelsPendingOnly(t *testing.T) {
	gate := make(chan struct{})
	e := newEngine(t, pool.Config{Workers: 1}, task.Options{}, WithDigestFunc(gatedDigest(gate)))

	id, err := e.Submit(context.Background(), []ItemSpec{bytesSpec("a", nil), bytesSpec("b", nil), bytesSpec("c", nil)}, SubmitOptions{})
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		s, _ := e.GetStatus(id)
		return s.Counts.Running == 1
	}, time.Second, 5*time.Millisecond)

	n, err := e.Abandon(id)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	close(gate)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sum, err := e.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompletedWithErrors, sum.Status)

	out, err := e.GetResults(id, true)
	require.NoError(t, err)
	assert.Equal(t, emptySHA256, out[0].Digest)
	assert.Equal(t, apperrors.KindCancelled, out[1].ErrorKind())
	assert.Equal(t, apperrors.KindCancelled, out[2].ErrorKind())
}

func TestComputeNow_ReleasesUploadBuffers(t *testing.T) {
	e := newEngine(t, pool.Config{Workers: 2}, task.Options{})
	data := make([]byte, 1<<20)
	res, err := e.ComputeNow(context.Background(), []ItemSpec{bytesSpec("big.bin", data), bytesSpec("empty", nil)}, SubmitOptions{}, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), res.Outcomes[0].Bytes)
	assert.Equal(t, emptySHA256, res.Outcomes[1].Digest)

	snap, err := e.Snapshot(res.TaskID)
	require.NoError(t, err)
	for _, it := range snap.Items {
		assert.Equal(t, source.KindBytes, it.Source.Kind())
		assert.LessOrEqual(t, it.Source.Len(), int64(0), it.Name)
	}
}

func TestAbandon_ReleasesUploadBuffers(t *testing.T) {
	gate := make(chan struct{})
	e := newEngine(t, pool.Config{Workers: 1}, task.Options{}, WithDigestFunc(gatedDigest(gate)))

	id, err := e.Submit(context.Background(), []ItemSpec{bytesSpec("a", []byte("aaaa")), bytesSpec("b", []byte("bbbb"))}, SubmitOptions{})
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		s, _ := e.GetStatus(id)
		return s.Counts.Running == 1
	}, time.Second, 5*time.Millisecond)

	_, err = e.Abandon(id)
	require.NoError(t, err)
	snap, err := e.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, int64(4), snap.Items[0].Source.Len())
	assert.LessOrEqual(t, snap.Items[1].Source.Len(), int64(0))
	close(gate)
}

func TestResults_StatusMatchesOutcomes(t *testing.T) {
	gate := make(chan struct{})
	e := newEngine(t, pool.Config{Workers: 1}, task.Options{}, WithDigestFunc(gatedDigest(gate)))

	id, err := e.Submit(context.Background(), []ItemSpec{bytesSpec("a", nil), bytesSpec("b", nil)}, SubmitOptions{})
	require.NoError(t, err)

	sum, out, err := e.Results(id, true)
	require.NoError(t, err)
	assert.False(t, sum.Status.Terminal())
	assert.Len(t, out, 2)

	close(gate)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = e.Wait(ctx, id)
	require.NoError(t, err)

	sum, out, err = e.Results(id, false)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, sum.Status)
	for _, o := range out {
		assert.Equal(t, "done", o.State)
	}

	_, _, err = e.Results("unknown", true)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestShutdownTimeout_CancelsQueuedItems(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	e := newEngine(t, pool.Config{Workers: 1}, task.Options{}, WithDigestFunc(gatedDigest(gate)))

	id, err := e.Submit(context.Background(), []ItemSpec{bytesSpec("a", nil), bytesSpec("b", nil), bytesSpec("c", nil)}, SubmitOptions{})
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		s, _ := e.GetStatus(id)
		return s.Counts.Running == 1
	}, time.Second, 5*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stopCancel()
	assert.ErrorIs(t, e.Shutdown(stopCtx), context.DeadlineExceeded)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sum, err := e.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompletedWithErrors, sum.Status)

	snap, err := e.Snapshot(id)
	require.NoError(t, err)
	for i, it := range snap.Items {
		require.NotNil(t, it.Err, i)
		assert.Equal(t, apperrors.KindCancelled, it.Err.Kind, i)
	}
	// 排队中的 Item 未进入 Running
	assert.True(t, snap.Items[1].StartedAt.IsZero())
	assert.True(t, snap.Items[2].StartedAt.IsZero())
}

func TestNotFound(t *testing.T) {
	e := newEngine(t, pool.Config{Workers: 1}, task.Options{})
	_, err := e.GetStatus("unknown")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = e.GetResults("unknown", true)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = e.Abandon("unknown")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestExpiredTaskIsNotFoundAfterSweep(t *testing.T) {
	e := newEngine(t, pool.Config{Workers: 1}, task.Options{Retention: time.Minute})
	res, err := e.ComputeNow(context.Background(), []ItemSpec{bytesSpec("a", nil)}, SubmitOptions{}, time.Second)
	require.NoError(t, err)

	_, err = e.GetStatus(res.TaskID)
	require.NoError(t, err)

	assert.Equal(t, 1, e.Registry().Sweep(time.Now().Add(2*time.Minute)))
	_, err = e.GetStatus(res.TaskID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = e.GetResults(res.TaskID, false)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPathDigestCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("cached content"), 0o644))

	store := cache.NewMemoryStore()
	e := newEngine(t, pool.Config{Workers: 1}, task.Options{}, WithCache(store, time.Minute))
	spec := []ItemSpec{{Name: "data.bin", Source: source.FromPath(path), Algorithm: "sha256"}}

	first, err := e.ComputeNow(context.Background(), spec, SubmitOptions{}, time.Second)
	require.NoError(t, err)
	assert.False(t, first.Outcomes[0].Cached)
	assert.Equal(t, 1, store.Len())

	second, err := e.ComputeNow(context.Background(), spec, SubmitOptions{}, time.Second)
	require.NoError(t, err)
	assert.True(t, second.Outcomes[0].Cached)
	assert.Equal(t, first.Outcomes[0].Digest, second.Outcomes[0].Digest)
	assert.Equal(t, int64(len("cached content")), second.Outcomes[0].Bytes)
}

func TestListAlgorithms(t *testing.T) {
	e := newEngine(t, pool.Config{Workers: 1}, task.Options{})
	assert.Contains(t, e.ListAlgorithms(), "sha256")
	assert.Equal(t, "sha256", e.DefaultAlgorithm())
}
