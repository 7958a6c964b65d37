package fabric

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// changeLog mirrors the dataset metadata document. Only the change history is
// consumed here; the rest of the schema is the fabric's business.
type changeLog struct {
	Changes struct {
		Datasets []changeEntry `json:"datasets"`
	} `json:"changes"`
}

type changeEntry struct {
	Distributions []distributionEntry `json:"distributions"`
}

// distributionEntry is the wire form of one distribution: a dotted key
// "{dataset}.{series}.distribution.{format}" plus a values tuple of
// [createdDate, size, "md5=<base64>"].
type distributionEntry struct {
	Key    string `json:"key"`
	Values []any  `json:"values"`
}

type productResponse struct {
	Resources []ResourceInfo `json:"resources"`
}

// ListChanges fetches the change log of a dataset and returns the
// distributions of its most recent change entry. A dataset with no recorded
// changes yields nil, nil: it may legitimately have no published data yet.
func (c *Client) ListChanges(ctx context.Context, dataset, catalog string) ([]Distribution, error) {
	var log changeLog
	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&log).
		Get(resourceURL(catalog + "/datasets/" + dataset))

	// a dataset the fabric doesn't know about contributes nothing, same as
	// one with an empty change log
	if err == nil && resp.StatusCode == 404 {
		return nil, nil
	}
	if err := handleAPIError(resp, err, "list changes "+catalog+"/"+dataset); err != nil {
		return nil, err
	}

	if len(log.Changes.Datasets) == 0 {
		return nil, nil
	}

	entries := log.Changes.Datasets[0].Distributions
	dists := make([]Distribution, 0, len(entries))
	for _, e := range entries {
		d, err := e.decode()
		if err != nil {
			return nil, fmt.Errorf("dataset %s/%s: %w", catalog, dataset, err)
		}
		dists = append(dists, d)
	}
	return dists, nil
}

// ExpandProduct resolves a product id to the dataset ids it bundles.
func (c *Client) ExpandProduct(ctx context.Context, product string) ([]string, error) {
	var pr productResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&pr).
		Get(resourceURL("common/products/" + product))

	if err := handleAPIError(resp, err, "expand product "+product); err != nil {
		return nil, err
	}

	datasets := make([]string, 0, len(pr.Resources))
	for _, r := range pr.Resources {
		if r.Identifier != "" {
			datasets = append(datasets, r.Identifier)
		}
	}
	return datasets, nil
}

// Exists probes whether a resource is present on the fabric.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		DisableAutoReadResponse().
		Get(resourceURL(key))
	if err != nil {
		return false, fmt.Errorf("http request error: exists %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return false, nil
	}
	return resp.IsSuccessState(), nil
}

// Info fetches the metadata document of a resource.
func (c *Client) Info(ctx context.Context, key string) (*ResourceInfo, error) {
	var info ResourceInfo
	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&info).
		Get(resourceURL(key))

	if err := handleAPIError(resp, err, "info "+key); err != nil {
		return nil, err
	}
	return &info, nil
}

func (e *distributionEntry) decode() (Distribution, error) {
	parts := strings.Split(e.Key, ".")
	if len(parts) != 4 || (parts[2] != "distribution" && parts[2] != "distributions") {
		return Distribution{}, fmt.Errorf("%w: distribution entry %q", ErrInvalidKey, e.Key)
	}
	if len(e.Values) < 3 {
		return Distribution{}, fmt.Errorf("distribution entry %q: short values tuple", e.Key)
	}

	size, err := coerceInt64(e.Values[1])
	if err != nil {
		return Distribution{}, fmt.Errorf("distribution entry %q: size: %w", e.Key, err)
	}

	digest, ok := e.Values[2].(string)
	if !ok {
		return Distribution{}, fmt.Errorf("distribution entry %q: digest is not a string", e.Key)
	}

	// digest arrives as "md5=<base64>"; keep the bare value
	if i := strings.LastIndex(digest, digestPrefix); i >= 0 {
		digest = digest[i+len(digestPrefix):]
	}

	return Distribution{
		Dataset: parts[0],
		Series:  parts[1],
		Format:  parts[3],
		Size:    size,
		Digest:  digest,
	}, nil
}

func coerceInt64(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
