package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/matrixhub/catalog-server/internal/httpclient"
	"github.com/matrixhub/catalog-server/internal/service"
)

const defaultFetchBudget = 30 * time.Second

// URLLoader fetches a catalog document over HTTP(S)
type URLLoader struct {
	url       string
	client    httpclient.Client
	format    string
	budget    time.Duration
	validator *Validator
}

// NewURLLoader creates a loader for rawURL. The format follows the extension of
// the URL path. Temporary failures are retried until budget elapses, which
// defaults to 30s.
func NewURLLoader(rawURL string, client httpclient.Client, budget time.Duration) (*URLLoader, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("catalog url must use http or https, got %q", rawURL)
	}
	if u.Host == "" {
		return nil, errors.New("catalog url has no host")
	}
	if client == nil {
		client = httpclient.NewDefaultClient(0)
	}
	if budget <= 0 {
		budget = defaultFetchBudget
	}

	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}
	return &URLLoader{
		url:       rawURL,
		client:    client,
		format:    DetectFormat(u.Path),
		budget:    budget,
		validator: validator,
	}, nil
}

// Source describes the loader for logging
func (l *URLLoader) Source() string {
	return l.url
}

// Load fetches, validates and decodes the catalog document
func (l *URLLoader) Load(ctx context.Context) ([]service.Entity, error) {
	attempts := 0
	data, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempts++
		data, err := l.client.Get(ctx, l.url)
		if err != nil && !httpclient.IsTemporary(err) {
			return nil, backoff.Permanent(err)
		}
		return data, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(l.budget),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.WarnContext(ctx, "Catalog fetch failed, retrying",
				"url", l.url,
				"error", err,
				"retry_in", next)
		}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog from %s after %d attempt(s): %w", l.url, attempts, err)
	}

	entities, err := l.validator.Parse(data, l.format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.url, err)
	}

	slog.InfoContext(ctx, "Loaded catalog url",
		"url", l.url,
		"format", l.format,
		"entities", len(entities),
		"attempts", attempts)
	return entities, nil
}
