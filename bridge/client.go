// Package bridge talks to the Bridge.xyz REST API: custody wallets, wallet
// history and customers.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"crm-backoffice/logger"
	"crm-backoffice/metrics"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.bridge.xyz/v0"

	customerTimeout = 30 * time.Second
	maxBodyBytes    = 4 << 20
)

// ErrNotConfigured is returned by write operations when no API key is set.
// Read operations degrade to empty results instead.
var ErrNotConfigured = errors.New("bridge api key not configured")

// ProviderError is a non-2xx answer from Bridge.
type ProviderError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: status %d", e.StatusCode)
}

// Retryable reports whether the failure is on the provider side.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode >= 500
}

type RetryConfig struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries:      3,
	InitialDelay:    500 * time.Millisecond,
	MaxDelay:        8 * time.Second,
	BackoffMultiple: 2.0,
}

type Options struct {
	BaseURL    string
	APIKey     string
	RateLimit  float64 // requests per second, <= 0 means unlimited
	HTTPClient *http.Client
	Retry      *RetryConfig
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryConfig
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

func New(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// Ledger reads carry no client timeout; customer calls set their own per attempt.
		httpClient = &http.Client{}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	retry := DefaultRetryConfig
	if opts.Retry != nil {
		retry = *opts.Retry
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		limiter:    limiter,
		retry:      retry,
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "bridge-customers",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				// 4xx is the caller's problem, not a sign Bridge is unhealthy.
				var pe *ProviderError
				if errors.As(err, &pe) {
					return !pe.Retryable()
				}
				return err == nil
			},
		}),
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type request struct {
	operation string
	method    string
	path      string
	query     url.Values
	body      interface{}
	// idempotencyKey is sent unchanged on every attempt of one logical call.
	idempotencyKey string
}

// do sends one request and returns the raw body of a 2xx answer.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("bridge rate limiter: %w", err)
	}

	endpoint, err := url.Parse(c.baseURL + r.path)
	if err != nil {
		return nil, fmt.Errorf("invalid bridge url %q: %w", c.baseURL+r.path, err)
	}
	if len(r.query) > 0 {
		endpoint.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", r.operation, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", r.idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.BridgeRequestsTotal.WithLabelValues(r.operation, "transport_error").Inc()
		return nil, fmt.Errorf("bridge %s request failed: %w", r.operation, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	metrics.BridgeRequestsTotal.WithLabelValues(r.operation, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read bridge %s response: %w", r.operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody := data
		if len(errBody) > 1024 {
			errBody = errBody[:1024]
		}
		logger.Warn(ctx, "[BRIDGE] non-2xx response",
			zap.String("operation", r.operation),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", errBody),
		)
		return nil, &ProviderError{Operation: r.operation, StatusCode: resp.StatusCode, Body: string(errBody)}
	}
	return data, nil
}

// doWithRetry retries provider 5xx and transport failures with exponential
// backoff, never 4xx. Each attempt gets its own timeout and goes through the breaker.
func (c *Client) doWithRetry(ctx context.Context, r request) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		data, err := c.breaker.Execute(func() ([]byte, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, customerTimeout)
			defer cancel()
			return c.do(attemptCtx, r)
		})
		if err == nil {
			return data, nil
		}
		lastErr = err

		if !retryable(ctx, err) || attempt == c.retry.MaxRetries {
			break
		}

		delay := c.backoff(attempt)
		logger.Warn(ctx, "[BRIDGE] retrying",
			zap.String("operation", r.operation),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return true
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := float64(c.retry.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= c.retry.BackoffMultiple
	}
	if ceiling := float64(c.retry.MaxDelay); ceiling > 0 && delay > ceiling {
		delay = ceiling
	}
	return time.Duration(delay)
}
