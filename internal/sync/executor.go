package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	stdsync "sync"

	"github.com/dustin/go-humanize"
	"github.com/plexidata/fabsync/internal/fabric"
)

// downloadBlockSize is the copy granularity for streaming remote content to
// disk.
const downloadBlockSize = 64 * 1024

// Executor runs a transfer plan with bounded parallelism. Each task's failure
// is captured in its outcome and never cancels or fails sibling tasks.
type Executor struct {
	catalog      Catalog
	parallelism  int
	showProgress bool
}

func NewExecutor(catalog Catalog, parallelism int, showProgress bool) *Executor {
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	return &Executor{
		catalog:      catalog,
		parallelism:  parallelism,
		showProgress: showProgress,
	}
}

// Execute runs all tasks in the given direction and returns one outcome per
// task. A single task runs inline; larger plans are dispatched across a
// worker pool. Outcome order is completion order and carries no meaning.
func (e *Executor) Execute(ctx context.Context, tasks []TransferTask, direction Direction) []TransferOutcome {
	if len(tasks) == 0 {
		return nil
	}

	if len(tasks) == 1 {
		return []TransferOutcome{e.runTask(ctx, tasks[0], direction)}
	}

	taskChan := make(chan TransferTask, len(tasks))
	outcomes := make([]TransferOutcome, 0, len(tasks))
	var mu stdsync.Mutex

	var wg stdsync.WaitGroup
	workers := min(e.parallelism, len(tasks))
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for task := range taskChan {
				outcome := e.runTask(ctx, task, direction)
				mu.Lock()
				outcomes = append(outcomes, outcome)
				mu.Unlock()
			}
		}()
	}

	for _, task := range tasks {
		taskChan <- task
	}
	close(taskChan)
	wg.Wait()

	return outcomes
}

func (e *Executor) runTask(ctx context.Context, task TransferTask, direction Direction) TransferOutcome {
	var err error
	switch direction {
	case Upload:
		err = e.upload(ctx, task)
	case Download:
		err = e.download(ctx, task)
	default:
		err = fmt.Errorf("%w: %v", ErrUnknownDirection, direction)
	}

	if err != nil {
		slog.Error("transfer failed", "op", direction, "key", task.LogicalKey, "error", err)
		return TransferOutcome{
			LogicalKey: task.LogicalKey,
			Path:       task.LocalPath,
			Succeeded:  false,
			Err:        err.Error(),
		}
	}

	if e.showProgress {
		slog.Info("transferred", "op", direction, "key", task.LogicalKey, "size", humanize.Bytes(uint64(task.Size)))
	}
	return TransferOutcome{
		LogicalKey: task.LogicalKey,
		Path:       task.LocalPath,
		Succeeded:  true,
	}
}

// download streams the remote object to the task's local path, creating
// parent directories as needed.
func (e *Executor) download(ctx context.Context, task TransferTask) error {
	if err := os.MkdirAll(filepath.Dir(task.LocalPath), 0o755); err != nil {
		return fmt.Errorf("ensure parent dir: %w", err)
	}

	body, err := e.catalog.Get(ctx, task.LogicalKey)
	if err != nil {
		return err
	}
	defer body.Close()

	file, err := os.Create(task.LocalPath)
	if err != nil {
		return fmt.Errorf("create %q: %w", task.LocalPath, err)
	}

	_, err = io.CopyBuffer(file, body, make([]byte, downloadBlockSize))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write %q: %w", task.LocalPath, err)
	}
	return nil
}

func (e *Executor) upload(ctx context.Context, task TransferTask) error {
	params := &fabric.UploadParams{
		Key:      task.LogicalKey,
		FilePath: task.LocalPath,
		Digest:   task.ExpectedDigest,
		Size:     task.Size,
	}
	if e.showProgress {
		key := task.LogicalKey
		params.Progress = func(uploaded, total int64) {
			slog.Debug("uploading", "key", key, "done", humanize.Bytes(uint64(uploaded)), "total", humanize.Bytes(uint64(total)))
		}
	}
	return e.catalog.Upload(ctx, params)
}
