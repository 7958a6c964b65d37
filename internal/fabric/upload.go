package fabric

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

const maxPartConcurrency = 4

// operationResponse is returned by the operations endpoint on negotiation.
type operationResponse struct {
	OperationID string `json:"operationId"`
}

// uploadMultipart drives the operation protocol: negotiate an operation id,
// transmit fixed-size parts, finalize with the whole-file digest.
//
// The Digest header of part i is the cumulative MD5 of all bytes from the
// start of the file through the end of part i, not the digest of part i
// alone; the fabric reconstructs the digest incrementally across parts. The
// digest after the last part therefore equals the whole-file digest sent on
// finalize.
func (c *Client) uploadMultipart(ctx context.Context, params *UploadParams) error {
	file, err := os.Open(params.FilePath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	digests, fullDigest, err := cumulativeChunkDigests(file, c.chunkSize)
	if err != nil {
		return fmt.Errorf("chunk digests: %w", err)
	}

	opID, err := c.initiateUpload(ctx, params.Key)
	if err != nil {
		return err
	}

	var uploaded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPartConcurrency)

	for i, digest := range digests {
		i, digest := i, digest
		offset := int64(i) * c.chunkSize
		length := min(c.chunkSize, params.Size-offset)

		g.Go(func() error {
			part := io.NewSectionReader(file, offset, length)
			if err := c.uploadPart(gctx, params.Key, opID, i+1, part, length, digest); err != nil {
				return err
			}
			if params.Progress != nil {
				params.Progress(uploaded.Add(length), params.Size)
			}
			return nil
		})
	}

	// finalize is a synchronization point: every part must be acknowledged
	// first, and any part failure aborts the whole task
	if err := g.Wait(); err != nil {
		return err
	}

	return c.finalizeUpload(ctx, params.Key, opID, fullDigest)
}

func (c *Client) initiateUpload(ctx context.Context, key string) (string, error) {
	var op operationResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("operationType", "upload").
		SetSuccessResult(&op).
		Post(resourceURL(key) + "/operations")

	if err := handleAPIError(resp, err, "initiate upload "+key); err != nil {
		return "", err
	}
	if op.OperationID == "" {
		return "", fmt.Errorf("initiate upload %s: empty operation id", key)
	}
	return op.OperationID, nil
}

func (c *Client) uploadPart(ctx context.Context, key, opID string, partNumber int, part io.Reader, length int64, cumulativeDigest string) error {
	body, err := io.ReadAll(io.LimitReader(part, length))
	if err != nil {
		return fmt.Errorf("read part %d: %w", partNumber, err)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetRetryCount(0).
		SetQueryParams(map[string]string{
			"operationId": opID,
			"partNumber":  strconv.Itoa(partNumber),
		}).
		SetContentType("application/octet-stream").
		SetHeader("Digest", digestPrefix+cumulativeDigest).
		SetBodyBytes(body).
		Put(resourceURL(key) + "/operations/upload")

	return handleAPIError(resp, err, fmt.Sprintf("upload part %d of %s", partNumber, key))
}

func (c *Client) finalizeUpload(ctx context.Context, key, opID, fullDigest string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"operationType": "upload",
			"operationId":   opID,
		}).
		SetHeader("Digest", digestPrefix+fullDigest).
		Post(resourceURL(key) + "/operations")

	return handleAPIError(resp, err, "finalize upload "+key)
}

// cumulativeChunkDigests reads r once and snapshots the running MD5 at every
// chunk boundary. It returns one digest per chunk plus the whole-file digest,
// which for a non-empty file equals the last element.
func cumulativeChunkDigests(r io.Reader, chunkSize int64) ([]string, string, error) {
	h := md5.New()

	var digests []string
	for {
		n, err := io.CopyN(h, r, chunkSize)
		if n > 0 {
			digests = append(digests, base64.StdEncoding.EncodeToString(h.Sum(nil)))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", err
		}
	}

	// a zero-length payload has no chunks but still has a digest
	full := base64.StdEncoding.EncodeToString(h.Sum(nil))
	return digests, full, nil
}
