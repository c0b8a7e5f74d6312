// internal/common/http/client.go
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const defaultUserAgent = "shoe-size-analytics"

type Client struct {
	httpClient *http.Client
	userAgent  string
	retries    int
	backoff    time.Duration
}

type Option func(*Client)

// WithRetries retries idempotent requests that fail with a transport error
// or a 502/503/504, doubling the wait after each attempt.
func WithRetries(retries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		c.backoff = backoff
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  defaultUserAgent,
		backoff:    200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext sends req bound to ctx. Requests with a body are retried only
// when req.GetBody is set so the body can be replayed.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	wait := c.backoff
	for attempt := 0; ; attempt++ {
		resp, err := c.httpClient.Do(req)
		if attempt >= c.retries || !retryable(resp, err) || (req.Body != nil && req.GetBody == nil) {
			return resp, err
		}
		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("request to %s abandoned: %w", req.URL.Host, ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2

		if req.GetBody != nil {
			body, gerr := req.GetBody()
			if gerr != nil {
				return nil, gerr
			}
			req.Body = body
		}
	}
}

func retryable(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
