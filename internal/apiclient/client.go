// Package apiclient is the HTTP client wrapper every backend call goes
// through. It attaches the current bearer token, classifies failures into
// the typed errors of internal/errors and transparently refreshes the access
// token once per request on a 401.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	perrors "github.com/p-blackswan/repodesk/internal/errors"
	"github.com/p-blackswan/repodesk/internal/metrics"
	"github.com/p-blackswan/repodesk/internal/models"
	"github.com/p-blackswan/repodesk/internal/requestid"
)

// RefreshPath is the endpoint exchanging a refresh token for a new access token.
const RefreshPath = "/auth/refresh"

const defaultTimeout = 30 * time.Second

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource is the part of the session store the client needs.
type TokenSource interface {
	Reload(ctx context.Context) error
	AccessToken(ctx context.Context) string
	RefreshToken(ctx context.Context) string
	SetTokens(ctx context.Context, access, refresh string) error
	Clear(ctx context.Context) error
}

// Config holds the client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration // default per-call timeout
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient HTTPClient
	tokens     TokenSource
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	onReauth   func(ctx context.Context)

	refreshes singleflight.Group
}

var errNoRefreshToken = errors.New("no refresh token")

// New creates a client for cfg.BaseURL reading tokens from tokens.
func New(cfg Config, tokens TokenSource, logger zerolog.Logger, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout: timeout,
		// Deadlines are per call, see requestConfig.timeout.
		httpClient: &http.Client{},
		tokens:     tokens,
		logger:     logger.With().Str("component", "apiclient").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Do sends one logical request. When out is a *[]byte the raw response body
// is stored in it; otherwise a non-empty body is decoded as JSON into out.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	rc := newRequestConfig(c.timeout, opts)
	payload, contentType, err := encodeBody(body)
	if err != nil {
		return fmt.Errorf("encoding %s %s body: %w", method, path, err)
	}
	// Pin the request id so a retry carries the same one.
	ctx = requestid.WithRequestID(ctx, requestid.FromContext(ctx))

	resp, sentToken, err := c.send(ctx, method, path, payload, contentType, rc)
	if err == nil {
		return decode(method, path, resp, out)
	}
	if rc.noAuth || path == RefreshPath || !errors.Is(err, perrors.ErrAuth) {
		return err
	}

	if rerr := c.refresh(ctx, sentToken); rerr != nil {
		return c.reauth(ctx, method, path, rerr)
	}
	resp, _, err = c.send(ctx, method, path, payload, contentType, rc)
	if err != nil {
		if errors.Is(err, perrors.ErrAuth) {
			return c.reauth(ctx, method, path, err)
		}
		return err
	}
	return decode(method, path, resp, out)
}

type response struct {
	status int
	body   []byte
}

// send performs one HTTP exchange. It returns the access token it attached
// so the refresh protocol can tell whether another caller already replaced it.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, contentType string, rc *requestConfig) (response, string, error) {
	if err := c.tokens.Reload(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("failed to reload session before request")
	}
	var token string
	if !rc.noAuth {
		token = c.tokens.AccessToken(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path, rc), reader)
	if err != nil {
		return response{}, token, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, vs := range rc.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	reqID := requestid.Apply(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErr := perrors.Network(method, path, err)
		c.observe(method, path, reqID, 0, start, apiErr)
		return response{}, token, apiErr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErr := perrors.Network(method, path, fmt.Errorf("reading response: %w", err))
		c.observe(method, path, reqID, resp.StatusCode, start, apiErr)
		return response{}, token, apiErr
	}
	if resp.StatusCode >= 400 {
		apiErr := perrors.FromResponse(method, path, resp.StatusCode, data)
		c.observe(method, path, reqID, resp.StatusCode, start, apiErr)
		return response{}, token, apiErr
	}
	c.observe(method, path, reqID, resp.StatusCode, start, nil)
	return response{status: resp.StatusCode, body: data}, token, nil
}

func (c *Client) url(path string, rc *requestConfig) string {
	u := c.baseURL + path
	if len(rc.query) > 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		u += sep + rc.query.Encode()
	}
	return u
}

func (c *Client) observe(method, path, reqID string, status int, start time.Time, err error) {
	elapsed := time.Since(start)
	c.metrics.RecordRequest(method, perrors.KindName(err), elapsed)

	ev := c.logger.Debug()
	if err != nil {
		ev = c.logger.Warn().Err(err)
	}
	ev.Str("method", method).
		Str("path", path).
		Str("request_id", reqID).
		Int("status", status).
		Dur("elapsed", elapsed).
		Msg("backend request")
}

// refresh obtains a new access token. Concurrent callers share one refresh
// call, and a flight whose failed token was already replaced by an earlier
// refresh skips the call and lets the caller retry with the current token.
// A caller that joined a skipped flight while its own token is still current
// runs one flight of its own.
func (c *Client) refresh(ctx context.Context, failedToken string) error {
	refreshed, shared, err := c.refreshFlight(ctx, failedToken)
	if err == nil && !refreshed && shared && c.tokens.AccessToken(ctx) == failedToken {
		refreshed, shared, err = c.refreshFlight(ctx, failedToken)
	}

	switch {
	case errors.Is(err, errNoRefreshToken):
		c.metrics.RecordRefresh("no_token")
	case err != nil:
		c.metrics.RecordRefresh("failed")
	case !refreshed:
		c.metrics.RecordRefresh("skipped")
	case shared:
		c.metrics.RecordRefresh("shared")
	default:
		c.metrics.RecordRefresh("ok")
	}
	if refreshed {
		c.logger.Info().Bool("shared", shared).Msg("access token refreshed")
	}
	return err
}

func (c *Client) refreshFlight(ctx context.Context, failedToken string) (refreshed, shared bool, err error) {
	v, err, shared := c.refreshes.Do("refresh", func() (any, error) {
		// Detached so one caller giving up does not fail the others.
		ctx := context.WithoutCancel(ctx)
		if current := c.tokens.AccessToken(ctx); current != "" && current != failedToken {
			return false, nil
		}
		rt := c.tokens.RefreshToken(ctx)
		if rt == "" {
			return false, errNoRefreshToken
		}
		var pair models.TokenPair
		if err := c.Post(ctx, RefreshPath, models.RefreshRequest{RefreshToken: rt}, &pair, WithoutAuth()); err != nil {
			return false, err
		}
		if pair.AccessToken == "" {
			return false, errors.New("refresh response carried no access token")
		}
		if err := c.tokens.SetTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
			return false, fmt.Errorf("storing refreshed tokens: %w", err)
		}
		return true, nil
	})
	refreshed, _ = v.(bool)
	return refreshed, shared, err
}

// reauth clears the session and signals that the user must sign in again.
func (c *Client) reauth(ctx context.Context, method, path string, cause error) error {
	ctx = context.WithoutCancel(ctx)
	c.logger.Warn().Err(cause).Str("path", path).Msg("session could not be refreshed, re-authentication required")
	if err := c.tokens.Clear(ctx); err != nil {
		c.logger.Error().Err(err).Msg("failed to clear session")
	}
	if c.onReauth != nil {
		c.onReauth(ctx)
	}
	return &perrors.APIError{
		Method:     method,
		Path:       path,
		StatusCode: http.StatusUnauthorized,
		Message:    "your session has expired, please sign in again",
		Kind:       perrors.ErrAuth,
		Err:        perrors.ErrReauthRequired,
	}
}

func decode(method, path string, resp response, out any) error {
	if raw, ok := out.(*[]byte); ok {
		*raw = resp.body
		return nil
	}
	if out == nil || resp.status == http.StatusNoContent || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}
