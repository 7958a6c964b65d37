package sync

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/plexidata/fabsync/internal/fabric"
)

var (
	ErrNoSelection      = errors.New("sync: at least one product or dataset must be selected")
	ErrUnknownDirection = errors.New("sync: direction must be upload or download")
	ErrNoDatasets       = errors.New("sync: the selected products contain no datasets")
)

// Direction selects which side is the source of truth.
type Direction int

const (
	Upload Direction = iota
	Download
)

func (d Direction) String() string {
	switch d {
	case Upload:
		return "upload"
	case Download:
		return "download"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection maps the configuration value onto a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "upload":
		return Upload, nil
	case "download":
		return Download, nil
	default:
		return 0, fmt.Errorf("%w: got %q", ErrUnknownDirection, s)
	}
}

// FileRecord is one file in an inventory. LogicalKey is the fabric resource
// path that joins the local and remote representations; Path is the absolute
// local path (for remote records, the local-equivalent path a download would
// write to). Digest is the base64 MD5 of the content.
type FileRecord struct {
	LogicalKey string
	Path       string
	Digest     string
	Size       int64
}

// Inventory maps logical keys to file records. It is rebuilt fresh on every
// scan and never mutated in place.
type Inventory map[string]FileRecord

// TransferTask is one divergent file to move. The direction decides which of
// LogicalKey (remote resource) and LocalPath is the source.
type TransferTask struct {
	LogicalKey     string
	LocalPath      string
	ExpectedDigest string // digest of the source side
	Size           int64
}

// TransferOutcome records the result of one task. Failures live here rather
// than aborting the batch; batch success is derived by reducing over outcomes.
type TransferOutcome struct {
	LogicalKey string
	Path       string
	Succeeded  bool
	Err        string
}

// AllSucceeded reports whether every outcome in the batch succeeded. An empty
// batch counts as success.
func AllSucceeded(outcomes []TransferOutcome) bool {
	for _, o := range outcomes {
		if !o.Succeeded {
			return false
		}
	}
	return true
}

// Catalog is the narrow view of the remote fabric the sync core depends on.
// *fabric.Client implements it; tests substitute fakes.
type Catalog interface {
	ListChanges(ctx context.Context, dataset, catalog string) ([]fabric.Distribution, error)
	ExpandProduct(ctx context.Context, product string) ([]string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Upload(ctx context.Context, params *fabric.UploadParams) error
}

var _ Catalog = (*fabric.Client)(nil)
