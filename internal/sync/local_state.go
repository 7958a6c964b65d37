package sync

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/plexidata/fabsync/internal/fabric"
)

// LocalScanner builds the local inventory: it walks the configured roots,
// keeps only files that follow the distribution naming scheme, digests them
// and keys them by their derived logical key.
type LocalScanner struct {
	dataDir string
	catalog string
	format  string

	// validName is supplied by the fabric collaborator; files it rejects are
	// skipped, not errored.
	validName func(relPath string) bool

	// digest cache from the previous scan, keyed by absolute path
	lastSeen map[string]scanCacheEntry
}

type scanCacheEntry struct {
	size    int64
	modTime time.Time
	digest  string
}

func NewLocalScanner(dataDir, catalog, format string, validName func(string) bool) *LocalScanner {
	return &LocalScanner{
		dataDir:   dataDir,
		catalog:   catalog,
		format:    format,
		validName: validName,
		lastSeen:  make(map[string]scanCacheEntry),
	}
}

// Scan walks the roots derived from the catalog and dataset selection and
// returns a fresh inventory. Roots are created if absent; a root that cannot
// be created fails the scan.
func (s *LocalScanner) Scan(datasets []string) (Inventory, error) {
	roots := s.roots(datasets)

	var records []FileRecord
	seen := make(map[string]struct{})
	nextCache := make(map[string]scanCacheEntry)

	for _, root := range roots {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("ensure sync root %q: %w", root, err)
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return fmt.Errorf("walk error: %w", walkErr)
			}
			if d.IsDir() {
				return nil
			}

			relPath, err := filepath.Rel(s.dataDir, path)
			if err != nil {
				return fmt.Errorf("walk rel path: %w", err)
			}
			relPath = filepath.ToSlash(relPath)

			if !s.validName(relPath) {
				return nil
			}
			if _, dup := seen[path]; dup {
				return nil
			}

			key, err := fabric.PathToKey(relPath)
			if err != nil {
				slog.Warn("skipping unkeyable file", "path", relPath, "error", err)
				return nil
			}
			if s.format != "" && !strings.HasSuffix(key, "/"+s.format) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				slog.Warn("failed to stat file", "path", path, "error", err)
				return nil
			}

			digest, err := s.digestFor(path, info, nextCache)
			if err != nil {
				slog.Warn("failed to digest file", "path", path, "error", err)
				return nil
			}

			seen[path] = struct{}{}
			records = append(records, FileRecord{
				LogicalKey: key,
				Path:       path,
				Digest:     digest,
				Size:       info.Size(),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", root, err)
		}
	}

	// sorted for reproducible scans; keys are unique so order does not
	// affect the inventory itself
	slices.SortFunc(records, func(a, b FileRecord) int {
		return strings.Compare(a.Path, b.Path)
	})

	inv := make(Inventory, len(records))
	for _, rec := range records {
		inv[rec.LogicalKey] = rec
	}

	s.lastSeen = nextCache
	return inv, nil
}

// roots returns one directory per selected dataset, or the catalog root when
// no datasets are selected.
func (s *LocalScanner) roots(datasets []string) []string {
	if len(datasets) == 0 {
		return []string{filepath.Join(s.dataDir, s.catalog)}
	}
	roots := make([]string, 0, len(datasets))
	for _, ds := range datasets {
		roots = append(roots, filepath.Join(s.dataDir, s.catalog, ds))
	}
	return roots
}

// digestFor returns the content digest of path, reusing the previous scan's
// digest when size and mtime are unchanged.
func (s *LocalScanner) digestFor(path string, info fs.FileInfo, nextCache map[string]scanCacheEntry) (string, error) {
	if prev, ok := s.lastSeen[path]; ok && prev.size == info.Size() && prev.modTime.Equal(info.ModTime()) {
		nextCache[path] = prev
		return prev.digest, nil
	}

	digest, err := DigestFile(path)
	if err != nil {
		return "", err
	}

	nextCache[path] = scanCacheEntry{size: info.Size(), modTime: info.ModTime(), digest: digest}
	return digest, nil
}
