package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 5
	initialBackoff = 5 * time.Second
)

// apiClient is the shared HTTP layer for all upstream clients. It retries
// the configured status codes (rate limits, and bad gateways for one
// provider) with exponential backoff and randomized jitter; any other
// non-2xx response fails immediately with an *APIError. Redirects are
// followed by the default client policy (bounded at 10 hops).
type apiClient struct {
	client        *http.Client
	retryStatuses map[int]bool
	backoff       time.Duration
}

func newAPIClient(retryStatuses ...int) *apiClient {
	statuses := make(map[int]bool, len(retryStatuses))
	for _, s := range retryStatuses {
		statuses[s] = true
	}
	return &apiClient{
		client:        &http.Client{Timeout: defaultTimeout},
		retryStatuses: statuses,
		backoff:       initialBackoff,
	}
}

// get performs an HTTP GET with retry on the configured statuses
func (c *apiClient) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	backoff := c.backoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(withJitter(backoff)):
				backoff *= 2
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		if c.retryStatuses[resp.StatusCode] {
			lastErr = &APIError{StatusCode: resp.StatusCode, URL: url}
			continue
		}

		return nil, &APIError{StatusCode: resp.StatusCode, URL: url}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", maxRetries+1, lastErr)
}

// withJitter adds up to 50% random jitter to a backoff interval
func withJitter(d time.Duration) time.Duration {
	if d < 2 {
		return d
	}
	return d + time.Duration(rand.Int63n(int64(d/2)))
}

// getJSON performs a GET and decodes the JSON response into T
func getJSON[T any](ctx context.Context, c *apiClient, url string) (*T, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("failed to parse response from %s: %w", url, err)
	}

	return &v, nil
}
