package fabric

import (
	"fmt"
	"path"
	"strings"
)

// Distribution resources live under a fixed hierarchy on the fabric:
//
//	{catalog}/datasets/{dataset}/datasetseries/{series}/distributions/{format}
//
// That resource path doubles as the logical key joining local files and remote
// distributions. Locally the same resource is stored as
//
//	{catalog}/{dataset}/{series}/{dataset}__{catalog}__{series}.{format}
//
// or, with the series segment flattened away,
//
//	{catalog}/{dataset}/{dataset}__{catalog}__{series}.{format}
//
// The series is recoverable from the file name, so both layouts map back to
// the same key.

const nameSep = "__"

// DistributionKey builds the fabric resource path for a distribution.
func DistributionKey(catalog, dataset, series, format string) string {
	return path.Join(catalog, "datasets", dataset, "datasetseries", series, "distributions", format)
}

// DistributionFilename builds the canonical local file name for a distribution.
func DistributionFilename(catalog, dataset, series, format string) string {
	return dataset + nameSep + catalog + nameSep + series + "." + format
}

// KeyToPath converts a distribution key into its local-equivalent relative
// path. With flatten the intermediate series directory is dropped.
func KeyToPath(key string, flatten bool) (string, error) {
	catalog, dataset, series, format, err := splitKey(key)
	if err != nil {
		return "", err
	}
	name := DistributionFilename(catalog, dataset, series, format)
	if flatten {
		return path.Join(catalog, dataset, name), nil
	}
	return path.Join(catalog, dataset, series, name), nil
}

// PathToKey converts a local relative path back into a distribution key. It
// accepts both the nested and the flattened layout.
func PathToKey(relPath string) (string, error) {
	relPath = path.Clean(strings.ReplaceAll(relPath, "\\", "/"))
	parts := strings.Split(relPath, "/")
	if len(parts) < 3 || len(parts) > 4 {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, relPath)
	}

	catalog, dataset := parts[0], parts[1]
	fnDataset, fnCatalog, series, format, err := splitFilename(parts[len(parts)-1])
	if err != nil {
		return "", err
	}

	if fnCatalog != catalog || fnDataset != dataset {
		return "", fmt.Errorf("%w: %q does not belong to %s/%s", ErrInvalidName, parts[len(parts)-1], catalog, dataset)
	}
	if len(parts) == 4 && parts[2] != series {
		return "", fmt.Errorf("%w: series dir %q does not match file %q", ErrInvalidName, parts[2], parts[3])
	}

	return DistributionKey(catalog, dataset, series, format), nil
}

// ValidFileName reports whether a relative path follows the distribution
// naming scheme. It is the predicate the local scanner uses to skip foreign
// files instead of erroring on them.
func ValidFileName(relPath string) bool {
	_, err := PathToKey(relPath)
	return err == nil
}

// KeyFormat returns the format suffix encoded in a distribution key.
func KeyFormat(key string) string {
	return key[strings.LastIndex(key, "/")+1:]
}

func splitKey(key string) (catalog, dataset, series, format string, err error) {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) != 7 || parts[1] != "datasets" || parts[3] != "datasetseries" || parts[5] != "distributions" {
		return "", "", "", "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return parts[0], parts[2], parts[4], parts[6], nil
}

func splitFilename(name string) (dataset, catalog, series, format string, err error) {
	ext := path.Ext(name)
	if ext == "" || ext == "." {
		return "", "", "", "", fmt.Errorf("%w: %q has no format suffix", ErrInvalidName, name)
	}
	stem := strings.TrimSuffix(name, ext)

	fields := strings.Split(stem, nameSep)
	if len(fields) != 3 || fields[0] == "" || fields[1] == "" || fields[2] == "" {
		return "", "", "", "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return fields[0], fields[1], fields[2], ext[1:], nil
}
