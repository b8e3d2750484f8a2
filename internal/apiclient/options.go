package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/p-blackswan/repodesk/internal/metrics"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (for testing).
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithReauthHandler sets the function called after the session has been
// cleared because it could not be refreshed.
func WithReauthHandler(fn func(ctx context.Context)) Option {
	return func(c *Client) { c.onReauth = fn }
}

// RequestOption configures one call.
type RequestOption func(*requestConfig)

type requestConfig struct {
	header  http.Header
	query   url.Values
	timeout time.Duration
	noAuth  bool
}

func WithHeader(key, value string) RequestOption {
	return func(rc *requestConfig) { rc.header.Set(key, value) }
}

// WithQuery adds a query parameter. Empty values are still sent.
func WithQuery(key, value string) RequestOption {
	return func(rc *requestConfig) { rc.query.Add(key, value) }
}

// WithTimeout overrides the client's default per-call timeout.
func WithTimeout(d time.Duration) RequestOption {
	return func(rc *requestConfig) { rc.timeout = d }
}

// WithoutAuth sends the call without a bearer token and disables the
// refresh protocol for it.
func WithoutAuth() RequestOption {
	return func(rc *requestConfig) { rc.noAuth = true }
}

func newRequestConfig(timeout time.Duration, opts []RequestOption) *requestConfig {
	rc := &requestConfig{
		header:  http.Header{},
		query:   url.Values{},
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}
