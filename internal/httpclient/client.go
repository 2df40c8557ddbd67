// Package httpclient fetches remote documents with bounded size and time.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matrixhub/catalog-server/internal/versions"
)

const (
	// DefaultTimeout bounds a request when no timeout is given
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize is the largest response body accepted by default
	DefaultMaxBodySize int64 = 32 << 20

	acceptHeader = "application/json, application/yaml;q=0.9, */*;q=0.1"

	// longest error body echoed into an HTTPError
	maxErrorMessage = 512
)

// Client fetches the body of a URL
type Client interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Option configures a DefaultClient
type Option func(*DefaultClient)

// WithMaxBodySize overrides DefaultMaxBodySize
func WithMaxBodySize(n int64) Option {
	return func(c *DefaultClient) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithTransport replaces the HTTP transport
func WithTransport(rt http.RoundTripper) Option {
	return func(c *DefaultClient) {
		c.client.Transport = rt
	}
}

// DefaultClient is a Client over net/http
type DefaultClient struct {
	client      *http.Client
	maxBodySize int64
	userAgent   string
}

// NewDefaultClient creates a client whose requests time out after timeout,
// or DefaultTimeout when timeout is zero
func NewDefaultClient(timeout time.Duration, opts ...Option) *DefaultClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &DefaultClient{
		client:      &http.Client{Timeout: timeout},
		maxBodySize: DefaultMaxBodySize,
		userAgent:   "catalog-server/" + versions.Get().Version,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET request and returns the body of a 2xx response
func (c *DefaultClient) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorMessage))
		return nil, NewHTTPError(resp.StatusCode, url, strings.TrimSpace(string(msg)))
	}

	if resp.ContentLength > c.maxBodySize {
		return nil, c.tooLarge(resp.ContentLength)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, c.tooLarge(int64(len(body)))
	}
	return body, nil
}

func (c *DefaultClient) tooLarge(size int64) error {
	return fmt.Errorf("response size %.2f MB exceeds maximum allowed size of %.2f MB",
		float64(size)/(1<<20), float64(c.maxBodySize)/(1<<20))
}

// IsTemporary reports whether err is worth retrying: transport failures other
// than cancellation, throttling and server errors
func IsTemporary(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	return errors.Is(err, ErrRequestFailed) && !errors.Is(err, context.Canceled)
}
