package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Outbound policy shared by every channel adapter: two attempts, a hard
// per-attempt timeout, and linear backoff between attempts.
const (
	defaultTries   = 2
	defaultTimeout = 10 * time.Second
	backoffStep    = 500 * time.Millisecond
)

// retryingClient wraps http.Client with the canonical retry policy.
// Requests are rebuilt per attempt so bodies can be replayed.
type retryingClient struct {
	httpClient *http.Client
	tries      int
	timeout    time.Duration
	sleep      func(time.Duration)
}

func newRetryingClient() *retryingClient {
	return &retryingClient{
		httpClient: &http.Client{},
		tries:      defaultTries,
		timeout:    defaultTimeout,
		sleep:      time.Sleep,
	}
}

// do executes the request with retries on transport errors and
// retryable statuses (429 and 5xx). Any other response is returned to
// the caller for channel-specific handling. The response body is fully
// read and returned so the connection is always released.
func (c *retryingClient) do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (int, []byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.tries; attempt++ {
		if attempt > 1 {
			c.sleep(backoffStep * time.Duration(attempt-1))
		}

		status, body, err := c.attempt(ctx, build)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return 0, nil, ctx.Err()
			}
			continue
		}
		if status == http.StatusTooManyRequests || status >= 500 {
			lastErr = fmt.Errorf("retryable status %d: %s", status, string(body))
			continue
		}
		return status, body, nil
	}
	return 0, nil, fmt.Errorf("request failed after %d attempts: %w", c.tries, lastErr)
}

func (c *retryingClient) attempt(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (int, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := build(attemptCtx)
	if err != nil {
		return 0, nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}
