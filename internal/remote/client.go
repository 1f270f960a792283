// Package remote is the typed boundary to the deck, catalog, recommendation
// and game services. It validates shapes and normalizes failures into
// RemoteError; it holds no business state.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ClientConfig holds configuration for the remote service client.
type ClientConfig struct {
	// BaseURL is the fixed prefix of every call (e.g., "http://localhost:8001")
	BaseURL string

	// Timeout is the timeout for individual requests
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts
	MaxRetries int

	// RetryBaseDelay is the base delay for exponential backoff
	RetryBaseDelay time.Duration

	// MaxRetryDelay caps the backoff
	MaxRetryDelay time.Duration

	// RateInterval is the minimum spacing between requests (0 = unlimited)
	RateInterval time.Duration

	// UserAgent is sent on every request
	UserAgent string
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig(baseURL string) *ClientConfig {
	return &ClientConfig{
		BaseURL:        baseURL,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 500 * time.Millisecond,
		MaxRetryDelay:  16 * time.Second,
		RateInterval:   100 * time.Millisecond,
		UserAgent:      "MTGCommander/1.0",
	}
}

// Client is an HTTP client for the remote services.
type Client struct {
	config      *ClientConfig
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient creates a new remote client.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig("http://localhost:8001")
	}

	limit := rate.Inf
	if config.RateInterval > 0 {
		limit = rate.Every(config.RateInterval)
	}

	return &Client{
		config:  config,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter: rate.NewLimiter(limit, 1),
	}
}

// BaseURL returns the configured service prefix.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one logical call; retries reuse it.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   interface{}
}

// do performs a request with rate limiting and retry logic and decodes the
// JSON response into out (which may be nil).
//
// Only GET requests are retried after transport failures and 5xx responses.
// Any request answered 429 is retried, since the service did not process it.
func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var payload []byte
	if r.body != nil {
		var err error
		payload, err = json.Marshal(r.body)
		if err != nil {
			return &RemoteError{Op: r.op, Method: r.method, URL: target, Err: fmt.Errorf("encode request: %w", err)}
		}
	}

	requestID := uuid.New().String()
	safe := r.method == http.MethodGet
	backoff := c.config.RetryBaseDelay

	for attempt := 0; ; attempt++ {
		canRetry := attempt < c.config.MaxRetries

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return &RemoteError{Op: r.op, Method: r.method, URL: target, Err: fmt.Errorf("rate limiter: %w", err)}
		}

		req, err := http.NewRequestWithContext(ctx, r.method, target, bytes.NewReader(payload))
		if err != nil {
			return &RemoteError{Op: r.op, Method: r.method, URL: target, Err: fmt.Errorf("create request: %w", err)}
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", requestID)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			remoteErr := &RemoteError{Op: r.op, Method: r.method, URL: target, Err: err}
			if ctx.Err() != nil || !safe || !canRetry {
				return remoteErr
			}
			log.Printf("[Remote] %s attempt %d failed: %v (retrying in %v)", r.op, attempt+1, err, backoff)
			if err := sleep(ctx, backoff); err != nil {
				return remoteErr
			}
			backoff = c.nextBackoff(backoff)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if readErr != nil {
				return &RemoteError{Op: r.op, Method: r.method, URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response body: %w", readErr)}
			}
			if out == nil || len(bytes.TrimSpace(body)) == 0 {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return &RemoteError{Op: r.op, Method: r.method, URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
			}
			return nil

		case resp.StatusCode == http.StatusTooManyRequests && canRetry:
			wait := retryAfter(resp.Header.Get("Retry-After"), backoff)
			log.Printf("[Remote] %s rate limited (HTTP 429), waiting %v", r.op, wait)
			if err := sleep(ctx, wait); err != nil {
				return &RemoteError{Op: r.op, Method: r.method, URL: target, StatusCode: resp.StatusCode, Err: err}
			}
			backoff = c.nextBackoff(backoff)
			continue

		case resp.StatusCode >= 500 && safe && canRetry:
			log.Printf("[Remote] %s attempt %d got HTTP %d (retrying in %v)", r.op, attempt+1, resp.StatusCode, backoff)
			if err := sleep(ctx, backoff); err != nil {
				return &RemoteError{Op: r.op, Method: r.method, URL: target, StatusCode: resp.StatusCode, Err: err}
			}
			backoff = c.nextBackoff(backoff)
			continue
		}

		return &RemoteError{
			Op:         r.op,
			Method:     r.method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Detail:     parseDetail(body),
		}
	}
}

func (c *Client) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if c.config.MaxRetryDelay > 0 && next > c.config.MaxRetryDelay {
		return c.config.MaxRetryDelay
	}
	return next
}

// retryAfter honours a Retry-After header given in seconds.
func retryAfter(header string, fallback time.Duration) time.Duration {
	if header == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
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

// malformed builds the error for a 2xx response that fails shape validation.
func malformed(op, format string, args ...interface{}) error {
	return &RemoteError{Op: op, Err: fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))}
}

// IsMalformed reports whether err is a shape-validation failure.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}
