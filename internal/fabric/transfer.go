package fabric

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Get streams the content of a distribution. The caller owns the returned
// reader and must close it.
func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		DisableAutoReadResponse().
		Get(resourceURL(key))
	if err != nil {
		return nil, fmt.Errorf("http request error: get %s: %w", key, err)
	}

	if resp.IsErrorState() {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("api error: get %s: %s %s", key, resp.Status, string(body))
	}

	return resp.Body, nil
}

// Upload pushes one local file to a distribution resource. Payloads below one
// chunk go up in a single shot with a whole-file digest header; everything
// else, including empty files, goes through the multipart operation protocol.
func (c *Client) Upload(ctx context.Context, params *UploadParams) error {
	info, err := os.Stat(params.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, params.FilePath)
		}
		return fmt.Errorf("stat file: %w", err)
	}

	if params.Size == 0 {
		params.Size = info.Size()
	}

	if params.Size > 0 && params.Size < c.chunkSize {
		return c.putSingleShot(ctx, params)
	}
	return c.uploadMultipart(ctx, params)
}

func (c *Client) putSingleShot(ctx context.Context, params *UploadParams) error {
	// single-shot bodies are below one chunk, small enough to buffer
	body, err := os.ReadFile(params.FilePath)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetRetryCount(0).
		SetContentType("application/octet-stream").
		SetHeader("Digest", digestPrefix+params.Digest).
		SetBodyBytes(body).
		Put(resourceURL(params.Key))

	if err := handleAPIError(resp, err, "put "+params.Key); err != nil {
		return err
	}

	if params.Progress != nil {
		params.Progress(params.Size, params.Size)
	}
	return nil
}
