package fabric

// Distribution is one published file inside a dataset's change history.
type Distribution struct {
	Dataset string
	Series  string
	Format  string
	Size    int64
	Digest  string // base64 MD5, matching the fabric's Digest header payload
}

// Key returns the distribution's fabric resource path within a catalog.
func (d *Distribution) Key(catalog string) string {
	return DistributionKey(catalog, d.Dataset, d.Series, d.Format)
}

// ResourceInfo describes a fabric resource as returned by the metadata API.
type ResourceInfo struct {
	Identifier  string `json:"identifier"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// UploadParams carries everything needed to upload one local file to a
// distribution resource.
type UploadParams struct {
	Key      string
	FilePath string
	Digest   string // whole-file base64 MD5
	Size     int64
	Progress func(uploadedBytes, totalBytes int64)
}
