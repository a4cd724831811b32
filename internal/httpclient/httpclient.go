// Package httpclient is the transport shared by provider adapters: a tuned
// http.Client, per-adapter request pacing and JSON helpers.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 4
	maxBodySize            = 64 << 20
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.Code)
}

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// RequestsPerSecond paces requests; 0 means unpaced.
	RequestsPerSecond float64
	Retry             RetryPolicy
}

// Client issues sequential requests to one upstream. Each adapter owns its own
// Client, so pacing state is never shared between providers.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	retry     RetryPolicy
}

// New returns a Client for opts.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: MaxIdleConnsPerHost,
				IdleConnTimeout:     DefaultIdleConnTimeout,
			},
		},
		limiter:   rate.NewLimiter(limit, 1),
		userAgent: opts.UserAgent,
		retry:     opts.Retry,
	}
}

// Request describes one JSON call.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
}

// JSON performs req and decodes the JSON body into dst. Numbers decode as
// json.Number when dst holds untyped values.
func (c *Client) JSON(ctx context.Context, req Request, dst any) error {
	body, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL, err)
	}
	return nil
}

// Do performs req and returns the response body of a 2xx response.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	u := req.URL
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate wait: %w", err)
	}
	hreq, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("NewRequest: %w", err)
	}
	for k, v := range req.Header {
		hreq.Header[k] = v
	}
	if c.userAgent != "" && hreq.Header.Get("User-Agent") == "" {
		hreq.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := DoWithRetry(ctx, c.http, hreq, c.retry)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Method: method, URL: req.URL, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("ReadAll: %w", err)
	}
	return body, nil
}
