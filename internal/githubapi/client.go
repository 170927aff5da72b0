package githubapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Hobby2025/Contribase-sub000/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

// HTTPDoer is implemented by http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client wraps GitHub HTTP requests with bounded retries.
//
// Transient failures (network errors, 429, 5xx) are retried with exponential
// backoff. Permanent failures (401/403/404) return a typed error immediately.
type Client struct {
	doer  HTTPDoer
	retry RetryConfig
	// Sleep is injected for testability.
	Sleep func(duration time.Duration)
}

// NewClient creates a GitHub API client wrapper.
func NewClient(doer HTTPDoer, retry RetryConfig) *Client {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if retry.BackoffMultiplier < 1 {
		retry.BackoffMultiplier = 1.5
	}
	return &Client{
		doer:  doer,
		retry: retry,
		Sleep: time.Sleep,
	}
}

// Do executes a request and returns the response body only on success.
// The caller owns resp.Body when err is nil.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}

	ctx, endSpan := telemetry.StartDependencySpan(
		req.Context(),
		"contribase/internal/githubapi",
		"githubapi.client.do",
		attribute.String("http.method", req.Method),
		attribute.String("http.path", req.URL.EscapedPath()),
		attribute.Int("github.max_attempts", c.retry.MaxAttempts),
	)

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		nextReq := req.Clone(ctx)
		resp, err := c.doer.Do(nextReq)
		if err != nil {
			lastErr = err
			if attempt == c.retry.MaxAttempts {
				break
			}
			c.Sleep(c.backoffForAttempt(attempt))
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			endSpan(nil)
			return resp, nil
		}

		if isTransientStatus(resp.StatusCode) {
			drainAndClose(resp)
			lastErr = fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
			if attempt == c.retry.MaxAttempts {
				break
			}
			c.Sleep(c.backoffForAttempt(attempt))
			continue
		}

		drainAndClose(resp)
		permanentErr := errorForStatus(resp.StatusCode)
		endSpan(permanentErr)
		return nil, permanentErr
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("request attempts exhausted")
	}
	endSpan(lastErr)
	return nil, lastErr
}

func (c *Client) backoffForAttempt(attempt int) time.Duration {
	backoff := float64(c.retry.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= c.retry.BackoffMultiplier
	}
	duration := time.Duration(backoff)
	if c.retry.MaxBackoff > 0 && duration > c.retry.MaxBackoff {
		return c.retry.MaxBackoff
	}
	return duration
}

func isTransientStatus(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode <= 599
}

func drainAndClose(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}
