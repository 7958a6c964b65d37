package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(key, path, digest string) FileRecord {
	return FileRecord{LogicalKey: key, Path: path, Digest: digest, Size: int64(len(digest))}
}

func taskKeys(tasks []TransferTask) []string {
	keys := make([]string, 0, len(tasks))
	for _, task := range tasks {
		keys = append(keys, task.LogicalKey)
	}
	return keys
}

func TestReconcile_DivergentKeyProducesOneTask(t *testing.T) {
	local := Inventory{"a": record("a", "/local/a", "X")}
	remote := Inventory{"a": record("a", "/local/a", "Y")}

	up := Reconcile(local, remote, Upload)
	require.Len(t, up, 1)
	assert.Equal(t, "a", up[0].LogicalKey)
	assert.Equal(t, "X", up[0].ExpectedDigest, "upload carries the local digest")

	down := Reconcile(local, remote, Download)
	require.Len(t, down, 1)
	assert.Equal(t, "a", down[0].LogicalKey)
	assert.Equal(t, "Y", down[0].ExpectedDigest, "download carries the remote digest")
}

func TestReconcile_EqualDigestsNoTask(t *testing.T) {
	local := Inventory{"a": record("a", "/local/a", "X")}
	// metadata noise: different size and path, same digest
	remote := Inventory{"a": {LogicalKey: "a", Path: "/elsewhere/a", Digest: "X", Size: 999}}

	assert.Empty(t, Reconcile(local, remote, Upload))
	assert.Empty(t, Reconcile(local, remote, Download))
}

func TestReconcile_MissingOnTargetIsDivergent(t *testing.T) {
	local := Inventory{
		"a": record("a", "/local/a", "X"),
		"b": record("b", "/local/b", "Y"),
	}
	remote := Inventory{"a": record("a", "/local/a", "X")}

	up := Reconcile(local, remote, Upload)
	assert.Equal(t, []string{"b"}, taskKeys(up))

	// download drives from remote: local-only keys are left alone
	down := Reconcile(local, remote, Download)
	assert.Empty(t, down)
}

func TestReconcile_DirectionSymmetry(t *testing.T) {
	local := Inventory{
		"a": record("a", "/l/a", "X"),
		"b": record("b", "/l/b", "Y"),
		"c": record("c", "/l/c", "Z"),
	}
	remote := Inventory{
		"a": record("a", "/l/a", "X"),
		"b": record("b", "/l/b", "other"),
		"d": record("d", "/l/d", "W"),
	}

	up := Reconcile(local, remote, Upload)
	downSwapped := Reconcile(remote, local, Download)
	assert.Equal(t, taskKeys(up), taskKeys(downSwapped))
}

func TestReconcile_DeterministicOrder(t *testing.T) {
	local := Inventory{
		"c": record("c", "/l/c", "3"),
		"a": record("a", "/l/a", "1"),
		"b": record("b", "/l/b", "2"),
	}

	tasks := Reconcile(local, Inventory{}, Upload)
	assert.Equal(t, []string{"a", "b", "c"}, taskKeys(tasks))
}

func TestReconcile_EmptyInventories(t *testing.T) {
	assert.Empty(t, Reconcile(Inventory{}, Inventory{}, Upload))
	assert.Empty(t, Reconcile(Inventory{}, Inventory{}, Download))
}
