package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexidata/fabsync/internal/fabric"
)

func TestExecutor_UploadTasks(t *testing.T) {
	cat := newFakeCatalog()
	dataDir := t.TempDir()
	content := []byte("upload me")
	path, key := writeLocal(t, dataDir, "common", "FX_RATES", "20240101", "csv", content)

	exec := NewExecutor(cat, 2, false)
	outcomes := exec.Execute(context.Background(), []TransferTask{
		{LogicalKey: key, LocalPath: path, ExpectedDigest: digestOf(content), Size: int64(len(content))},
	}, Upload)

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Succeeded)
	assert.Equal(t, content, cat.uploads[key])
}

func TestExecutor_DownloadCreatesParentDirs(t *testing.T) {
	cat := newFakeCatalog()
	d := cat.publish("common", "FX_RATES", "20240101", "csv", []byte("remote content"))

	dataDir := t.TempDir()
	key := d.Key("common")
	rel, err := fabric.KeyToPath(key, false)
	require.NoError(t, err)
	target := filepath.Join(dataDir, filepath.FromSlash(rel))

	exec := NewExecutor(cat, 1, false)
	outcomes := exec.Execute(context.Background(), []TransferTask{
		{LogicalKey: key, LocalPath: target, ExpectedDigest: d.Digest, Size: d.Size},
	}, Download)

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Succeeded, "err: %s", outcomes[0].Err)

	written, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, []byte("remote content"), written)
}

func TestExecutor_PartialFailureIsolation(t *testing.T) {
	cat := newFakeCatalog()
	dataDir := t.TempDir()

	var tasks []TransferTask
	series := []string{"20240101", "20240102", "20240103", "20240104"}
	for _, s := range series {
		content := []byte("data " + s)
		path, key := writeLocal(t, dataDir, "common", "FX_RATES", s, "csv", content)
		tasks = append(tasks, TransferTask{LogicalKey: key, LocalPath: path, ExpectedDigest: digestOf(content), Size: int64(len(content))})
	}
	cat.failKeys[tasks[1].LogicalKey] = errInjected

	exec := NewExecutor(cat, 3, false)
	outcomes := exec.Execute(context.Background(), tasks, Upload)
	require.Len(t, outcomes, len(tasks))

	succeeded, failed := 0, 0
	for _, o := range outcomes {
		if o.Succeeded {
			succeeded++
		} else {
			failed++
			assert.Equal(t, tasks[1].LogicalKey, o.LogicalKey)
			assert.Contains(t, o.Err, "injected")
		}
	}
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 1, failed)
	assert.False(t, AllSucceeded(outcomes))
}

func TestExecutor_BoundedParallelism(t *testing.T) {
	cat := newFakeCatalog()
	dataDir := t.TempDir()

	var tasks []TransferTask
	for _, s := range []string{"01", "02", "03", "04", "05", "06"} {
		content := []byte("payload " + s)
		path, key := writeLocal(t, dataDir, "common", "FX_RATES", "202401"+s, "csv", content)
		tasks = append(tasks, TransferTask{LogicalKey: key, LocalPath: path, ExpectedDigest: digestOf(content), Size: int64(len(content))})
	}

	exec := NewExecutor(cat, 2, false)
	outcomes := exec.Execute(context.Background(), tasks, Upload)
	require.Len(t, outcomes, len(tasks))
	assert.True(t, AllSucceeded(outcomes))
	assert.LessOrEqual(t, cat.activeMax, 2)
}

func TestExecutor_EmptyPlan(t *testing.T) {
	exec := NewExecutor(newFakeCatalog(), 4, false)
	assert.Empty(t, exec.Execute(context.Background(), nil, Upload))
}

func TestExecutor_RoundTrip(t *testing.T) {
	cat := newFakeCatalog()
	upDir := t.TempDir()
	content := []byte("round trip payload")
	path, key := writeLocal(t, upDir, "common", "FX_RATES", "20240101", "csv", content)

	exec := NewExecutor(cat, 1, false)
	up := exec.Execute(context.Background(), []TransferTask{
		{LogicalKey: key, LocalPath: path, ExpectedDigest: digestOf(content), Size: int64(len(content))},
	}, Upload)
	require.True(t, AllSucceeded(up))

	// serve what was uploaded, then mirror it down into a fresh tree
	cat.objects[key] = cat.uploads[key]
	downDir := t.TempDir()
	rel, err := fabric.KeyToPath(key, false)
	require.NoError(t, err)
	target := filepath.Join(downDir, filepath.FromSlash(rel))

	down := exec.Execute(context.Background(), []TransferTask{
		{LogicalKey: key, LocalPath: target, ExpectedDigest: digestOf(content), Size: int64(len(content))},
	}, Download)
	require.True(t, AllSucceeded(down))

	written, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, content, written)

	digest, err := DigestFile(target)
	require.NoError(t, err)
	assert.Equal(t, digestOf(content), digest)
}
