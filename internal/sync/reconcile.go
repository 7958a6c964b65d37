package sync

import (
	"slices"
	"strings"
)

// Reconcile joins the two inventories on logical key and returns the minimal
// transfer plan for the chosen direction. The source side drives the join: a
// key missing on the target, or present with a different digest, produces a
// task; equal digests are a no-op regardless of any other metadata. Tasks are
// ordered by key for reproducible plans.
//
// This is strictly a content diff. A renamed but bit-identical file has a
// different logical key and shows up as missing, never as a rename.
func Reconcile(local, remote Inventory, direction Direction) []TransferTask {
	source, target := local, remote
	if direction == Download {
		source, target = remote, local
	}

	keys := make([]string, 0, len(source))
	for key := range source {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, strings.Compare)

	var tasks []TransferTask
	for _, key := range keys {
		src := source[key]
		if tgt, ok := target[key]; ok && tgt.Digest == src.Digest {
			continue
		}

		tasks = append(tasks, TransferTask{
			LogicalKey:     key,
			LocalPath:      src.Path,
			ExpectedDigest: src.Digest,
			Size:           src.Size,
		})
	}
	return tasks
}
