package sync

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/plexidata/fabsync/internal/fabric"
)

// RemoteBuilder builds the remote inventory from the fabric's change
// metadata, mapping each distribution to the local-equivalent path a download
// would write to.
type RemoteBuilder struct {
	catalog   Catalog
	dataDir   string
	catalogID string
	flatten   bool
	format    string
}

func NewRemoteBuilder(catalog Catalog, dataDir, catalogID string, flatten bool, format string) *RemoteBuilder {
	return &RemoteBuilder{
		catalog:   catalog,
		dataDir:   dataDir,
		catalogID: catalogID,
		flatten:   flatten,
		format:    format,
	}
}

// Build queries the change log of every dataset and concatenates the results
// into one inventory. A dataset with no published distributions contributes
// nothing; on duplicate keys the last dataset wins (duplicates should not
// occur given correct key derivation, and are not guarded against).
func (b *RemoteBuilder) Build(ctx context.Context, datasets []string) (Inventory, error) {
	inv := make(Inventory)

	for _, dataset := range datasets {
		dists, err := b.catalog.ListChanges(ctx, dataset, b.catalogID)
		if err != nil {
			return nil, fmt.Errorf("remote state for %s/%s: %w", b.catalogID, dataset, err)
		}

		for _, d := range dists {
			if b.format != "" && d.Format != b.format {
				continue
			}

			key := d.Key(b.catalogID)
			relPath, err := fabric.KeyToPath(key, b.flatten)
			if err != nil {
				return nil, fmt.Errorf("remote state for %s/%s: %w", b.catalogID, dataset, err)
			}

			inv[key] = FileRecord{
				LogicalKey: key,
				Path:       filepath.Join(b.dataDir, filepath.FromSlash(relPath)),
				Digest:     d.Digest,
				Size:       d.Size,
			}
		}
	}

	return inv, nil
}
