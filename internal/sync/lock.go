package sync

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = ".fabsync.lock"

// AcquireLock takes an exclusive file lock on the data dir so two daemons
// never run waves against the same tree. The caller unlocks it on shutdown.
func AcquireLock(dataDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir %q: %w", dataDir, err)
	}

	fl := flock.New(filepath.Join(dataDir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %q: %w", fl.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("another instance is already syncing %q (held lock %q)", dataDir, fl.Path())
	}
	return fl, nil
}
