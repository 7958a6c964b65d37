package sync

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	stdsync "sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plexidata/fabsync/internal/fabric"
)

// fakeCatalog is an in-memory Catalog for sync tests.
type fakeCatalog struct {
	mu stdsync.Mutex

	changes  map[string][]fabric.Distribution // "catalog/dataset" -> distributions
	products map[string][]string
	objects  map[string][]byte // key -> content served by Get
	uploads  map[string][]byte // key -> content received by Upload

	failKeys    map[string]error // per-key transfer failure injection
	listErr     error
	listCalls   int
	activeMax   int // high-water mark of concurrent transfers
	activeCount int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		changes:  map[string][]fabric.Distribution{},
		products: map[string][]string{},
		objects:  map[string][]byte{},
		uploads:  map[string][]byte{},
		failKeys: map[string]error{},
	}
}

func (f *fakeCatalog) ListChanges(ctx context.Context, dataset, catalog string) ([]fabric.Distribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.changes[catalog+"/"+dataset], nil
}

func (f *fakeCatalog) ExpandProduct(ctx context.Context, product string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	datasets, ok := f.products[product]
	if !ok {
		return nil, fmt.Errorf("unknown product %q", product)
	}
	return datasets, nil
}

func (f *fakeCatalog) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.enter()
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failKeys[key]; ok {
		return nil, err
	}
	content, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such resource %q", key)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (f *fakeCatalog) Upload(ctx context.Context, params *fabric.UploadParams) error {
	f.enter()
	defer f.leave()

	content, err := os.ReadFile(params.FilePath)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failKeys[params.Key]; ok {
		return err
	}
	f.uploads[params.Key] = content
	return nil
}

func (f *fakeCatalog) enter() {
	f.mu.Lock()
	f.activeCount++
	if f.activeCount > f.activeMax {
		f.activeMax = f.activeCount
	}
	f.mu.Unlock()
}

func (f *fakeCatalog) leave() {
	f.mu.Lock()
	f.activeCount--
	f.mu.Unlock()
}

// publish registers a distribution in the fake change log and serves its
// content on Get.
func (f *fakeCatalog) publish(catalog, dataset, series, format string, content []byte) fabric.Distribution {
	d := fabric.Distribution{
		Dataset: dataset,
		Series:  series,
		Format:  format,
		Size:    int64(len(content)),
		Digest:  digestOf(content),
	}
	f.changes[catalog+"/"+dataset] = append(f.changes[catalog+"/"+dataset], d)
	f.objects[d.Key(catalog)] = content
	return d
}

func digestOf(content []byte) string {
	sum := md5.Sum(content)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// writeLocal drops a canonically named distribution file under dataDir and
// returns its absolute path and logical key.
func writeLocal(t *testing.T, dataDir, catalog, dataset, series, format string, content []byte) (string, string) {
	t.Helper()
	key := fabric.DistributionKey(catalog, dataset, series, format)
	rel, err := fabric.KeyToPath(key, false)
	require.NoError(t, err)

	path := filepath.Join(dataDir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path, key
}

var errInjected = errors.New("injected transfer failure")
