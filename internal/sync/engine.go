package sync

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	stdsync "sync"
	"time"

	"github.com/plexidata/fabsync/internal/config"
	"github.com/plexidata/fabsync/internal/fabric"
)

// Engine owns the convergence loop: scan, diff, transfer, commit-or-retry,
// until the context is cancelled. A cycle that fails is logged and retried on
// the next iteration; only startup precondition failures propagate.
type Engine struct {
	cfg       *config.Config
	catalog   Catalog
	direction Direction
	scanner   *LocalScanner
	remote    *RemoteBuilder
	executor  *Executor

	datasets []string

	// committed is the local baseline of the last fully successful wave. It
	// only advances when every task succeeded or none were needed.
	committed Inventory

	mu           stdsync.Mutex
	lastOutcomes []TransferOutcome
}

func NewEngine(cfg *config.Config, catalog Catalog) (*Engine, error) {
	direction, err := ParseDirection(cfg.Direction)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:       cfg,
		catalog:   catalog,
		direction: direction,
		scanner:   NewLocalScanner(cfg.DataDir, cfg.Catalog, cfg.Format, fabric.ValidFileName),
		remote:    NewRemoteBuilder(catalog, cfg.DataDir, cfg.Catalog, cfg.Flatten, cfg.Format),
		executor:  NewExecutor(catalog, cfg.Parallelism, cfg.ShowProgress),
	}, nil
}

// Run resolves the dataset selection and then loops until ctx is cancelled.
// Precondition failures (empty selection, products expanding to nothing)
// return immediately; anything that goes wrong inside a cycle is logged and
// the loop continues.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.resolveDatasets(ctx); err != nil {
		return err
	}

	slog.Info("sync start",
		"direction", e.direction,
		"catalog", e.cfg.Catalog,
		"datasets", e.datasets,
		"dataDir", e.cfg.DataDir,
	)

	// a timer rather than a ticker: ticks must not queue up while a wave is
	// still transferring
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync stop")
			return ctx.Err()
		case <-timer.C:
		}

		converged, err := e.RunCycle(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			slog.Info("sync stop")
			return err
		case err != nil:
			slog.Error("sync cycle failed", "error", err)
			timer.Reset(e.cfg.PollInterval)
		case converged:
			timer.Reset(e.cfg.PollInterval)
		case AllSucceeded(e.LastOutcomes()):
			// a wave just committed; rescan immediately for follow-on changes
			timer.Reset(0)
		default:
			// a wave left failures behind; back off before retrying them
			timer.Reset(e.cfg.PollInterval)
		}
	}
}

// RunCycle performs one scan/diff/transfer pass. It reports converged=true
// when the local state matches the committed baseline, in which case no
// remote query is issued at all.
func (e *Engine) RunCycle(ctx context.Context) (converged bool, err error) {
	local, err := e.scanner.Scan(e.datasets)
	if err != nil {
		return false, err
	}

	if e.committed != nil && maps.Equal(local, e.committed) {
		slog.Debug("all synced", "files", len(local))
		return true, nil
	}

	remote, err := e.remote.Build(ctx, e.datasets)
	if err != nil {
		return false, err
	}

	tasks := Reconcile(local, remote, e.direction)
	outcomes := e.executor.Execute(ctx, tasks, e.direction)
	e.setLastOutcomes(outcomes)

	if AllSucceeded(outcomes) {
		e.committed = local
		slog.Info("sync wave committed", "local", len(local), "remote", len(remote), "transferred", len(tasks))
		return false, nil
	}

	failed := 0
	for _, o := range outcomes {
		if !o.Succeeded {
			failed++
		}
	}
	// baseline stays put: the next cycle re-diffs the same local state and
	// retries the failed files
	slog.Warn("sync wave incomplete", "transferred", len(tasks)-failed, "failed", failed)
	return false, nil
}

// LastOutcomes returns the outcome batch of the most recent wave.
func (e *Engine) LastOutcomes() []TransferOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TransferOutcome, len(e.lastOutcomes))
	copy(out, e.lastOutcomes)
	return out
}

func (e *Engine) setLastOutcomes(outcomes []TransferOutcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastOutcomes = outcomes
}

// resolveDatasets expands the product selection into dataset ids and applies
// the startup preconditions.
func (e *Engine) resolveDatasets(ctx context.Context) error {
	if len(e.cfg.Products) == 0 && len(e.cfg.Datasets) == 0 {
		return ErrNoSelection
	}

	datasets := make([]string, 0, len(e.cfg.Datasets))
	datasets = append(datasets, e.cfg.Datasets...)

	for _, product := range e.cfg.Products {
		expanded, err := e.catalog.ExpandProduct(ctx, product)
		if err != nil {
			return err
		}
		datasets = append(datasets, expanded...)
	}

	if len(datasets) == 0 {
		return ErrNoDatasets
	}

	e.datasets = datasets
	return nil
}
