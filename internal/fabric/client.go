package fabric

import (
	"time"

	"github.com/imroc/req/v3"
	"github.com/plexidata/fabsync/internal/version"
)

const (
	defaultChunkSize = int64(5 * 1024 * 1024) // fabric multipart part size
	digestPrefix     = "md5="
)

// Client talks to the fabric catalog API. All resource paths are the
// distribution keys produced by DistributionKey.
type Client struct {
	client    *req.Client
	baseURL   string
	chunkSize int64
}

type Option func(*Client)

// WithAuthToken sets the bearer token attached to every request.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.client.SetCommonBearerAuthToken(token)
		}
	}
}

// WithChunkSize overrides the multipart chunk size. Intended for tests.
func WithChunkSize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// New creates a fabric API client rooted at serverURL.
func New(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, ErrNoServerURL
	}

	client := req.C().
		SetBaseURL(serverURL).
		SetUserAgent(version.UserAgent()).
		SetCommonRetryCount(3).
		SetCommonRetryBackoffInterval(1*time.Second, 5*time.Second)

	c := &Client{
		client:    client,
		baseURL:   serverURL,
		chunkSize: defaultChunkSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases idle connections held by the client.
func (c *Client) Close() {
	c.client.GetTransport().CloseIdleConnections()
}

func resourceURL(key string) string {
	return "catalogs/" + key
}
