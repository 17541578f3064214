package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"pdf_rag/backend/go/internal/config"
	"pdf_rag/backend/go/pkg/circuitbreaker"
)

// DefaultTimeout bounds a single request made through Client.
const DefaultTimeout = 120 * time.Second

// StatusError is returned by Client.Do when the circuit breaker is enabled
// and the server answered with a 5xx status. The response body has been closed.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error: received status code %d", e.StatusCode)
}

// Client is a custom HTTP client that wraps the standard http.Client
// and provides built-in support for circuit breaking.
type Client struct {
	httpClient *http.Client
	breaker    circuitbreaker.CircuitBreaker
}

// NewClient creates a new Client. A circuit breaker is only installed when
// cfg.Enabled is set.
func NewClient(cfg config.CircuitBreakerConfig) (*Client, error) {
	c := &Client{httpClient: &http.Client{Timeout: DefaultTimeout}}
	if !cfg.Enabled {
		return c, nil
	}

	breaker, err := createCircuitBreaker(cfg)
	if err != nil {
		return nil, err
	}
	c.breaker = breaker
	return c, nil
}

// NewClientWith wraps an existing http.Client without a circuit breaker.
func NewClientWith(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{httpClient: hc}
}

// HTTPClient exposes the underlying client for SDKs that take a *http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Do executes an HTTP request with circuit breaker protection.
// With the breaker enabled, status codes >= 500 count as failures and are
// returned as *StatusError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.httpClient.Do(req)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode}
		}

		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*http.Response), nil
}

// Get issues a GET request bound to ctx.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func createCircuitBreaker(cfg config.CircuitBreakerConfig) (circuitbreaker.CircuitBreaker, error) {
	timeout := 30 * time.Second
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid circuit breaker timeout %q: %w", cfg.Timeout, err)
		}
		timeout = d
	}
	return circuitbreaker.New(cfg.FailureThreshold, cfg.SuccessThreshold, timeout), nil
}
