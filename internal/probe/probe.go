// Package probe checks HTTP endpoints for a status code. It validates
// candidate external URLs and smoke-tests generated services.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single probe when none is configured.
const DefaultTimeout = 5 * time.Second

// Checker returns the HTTP status code a GET of url answers with.
type Checker interface {
	Status(ctx context.Context, url string) (int, error)
}

// HTTPChecker is a Checker over net/http.
type HTTPChecker struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPChecker creates a checker. A nil client uses a fresh http.Client;
// a non-positive timeout uses DefaultTimeout.
func NewHTTPChecker(client *http.Client, timeout time.Duration) *HTTPChecker {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPChecker{client: client, timeout: timeout}
}

// Status issues one GET bounded by the checker's timeout.
func (c *HTTPChecker) Status(ctx context.Context, url string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	return resp.StatusCode, nil
}

// IsSuccess reports whether status is 2xx.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
