// Package feed fetches raw scraped product listings over HTTP and maps the
// scrapers' loosely shaped JSON into domain products.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/meatlens/backend/internal/domain"
)

// Client defaults
const (
	defaultRequestsPerSecond = 2.0
	defaultBurst             = 4
	defaultTimeout           = 30 * time.Second
	defaultMaxAttempts       = 3
	defaultBackoffStep       = 500 * time.Millisecond
	maxErrorBodyBytes        = 512
	userAgent                = "MeatLens/1.0"
)

// ClientConfig holds configuration for the feed client. Zero values take the defaults.
type ClientConfig struct {
	URL               string
	RecordsPath       string
	Source            domain.SourceKind
	RequestsPerSecond float64
	Timeout           time.Duration
	MaxAttempts       int
	BackoffStep       time.Duration
}

// Client downloads one scraper feed
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	config      ClientConfig
	logger      zerolog.Logger
}

var _ domain.ProductFeed = (*Client)(nil)

// NewClient creates a new feed client
func NewClient(config ClientConfig, logger zerolog.Logger) *Client {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaultRequestsPerSecond
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	if config.BackoffStep <= 0 {
		config.BackoffStep = defaultBackoffStep
	}
	if config.Source == "" {
		config.Source = domain.SourcePrimary
	}

	return &Client{
		httpClient:  &http.Client{Timeout: config.Timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), defaultBurst),
		config:      config,
		logger:      logger.With().Str("component", "feed").Logger(),
	}
}

// FetchProducts downloads the feed and maps every record it recognizes
func (c *Client) FetchProducts(ctx context.Context) ([]domain.RawProduct, error) {
	body, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	products, err := MapProducts(body, c.config.RecordsPath, c.config.Source)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, domain.ErrFeedNotFound
	}

	c.logger.Info().Str("url", c.config.URL).Int("products", len(products)).Msg("feed fetched")
	return products, nil
}

// fetch retries transient failures: network errors, 5xx and 429
func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		body, status, err := c.doRequest(ctx)
		switch {
		case err != nil:
			lastErr = err
		case status == http.StatusOK:
			return body, nil
		case status == http.StatusNotFound:
			return nil, domain.ErrFeedNotFound
		default:
			lastErr = fmt.Errorf("%w: status %d: %s", domain.ErrFeedFailure, status, truncate(body))
			if !retryable(status) {
				return nil, lastErr
			}
		}

		c.logger.Warn().Err(lastErr).Int("attempt", attempt).Msg("feed request failed")
		if attempt < c.config.MaxAttempts {
			if err := sleep(ctx, backoff(c.config.BackoffStep, attempt)); err != nil {
				return nil, err
			}
		}
	}

	c.logger.Error().Str("url", c.config.URL).Msg("all feed attempts failed")
	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrFeedFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read body: %v", domain.ErrFeedFailure, err)
	}
	return body, resp.StatusCode, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// backoff grows linearly with the attempt number
func backoff(step time.Duration, attempt int) time.Duration {
	return time.Duration(attempt) * step
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(body []byte) string {
	if len(body) > maxErrorBodyBytes {
		return string(body[:maxErrorBodyBytes]) + "..."
	}
	return string(body)
}
