package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{200, nil},
		{204, nil},
		{400, ErrValidation},
		{422, ErrValidation},
		{401, ErrAuth},
		{403, ErrPermission},
		{404, ErrNotFound},
		{409, ErrConflict},
		{429, ErrRateLimit},
		{500, ErrServer},
		{503, ErrServer},
		{418, ErrValidation},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindForStatus(tt.status), "status %d", tt.status)
	}
}

func TestFromResponse_StringDetail(t *testing.T) {
	err := FromResponse(http.MethodPost, "/users/", 400, []byte(`{"detail":"username taken"}`))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "username taken", err.Message)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "/users/")
}

func TestFromResponse_ListDetail(t *testing.T) {
	body := []byte(`{"detail":[{"loc":["body","email"],"msg":"invalid email"},{"msg":"too short"}]}`)
	err := FromResponse(http.MethodPost, "/auth/register", 422, body)
	assert.Equal(t, "invalid email; too short", err.Message)
}

func TestFromResponse_DefaultMessage(t *testing.T) {
	err := FromResponse(http.MethodGet, "/repos/R1", 503, []byte("<html>oops</html>"))
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, "server error, try again later", err.Message)
}

func TestNetwork_WrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Network(http.MethodGet, "/repos/R1", cause)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 0, err.StatusCode)
}

func TestAPIError_MatchesKindAndCause(t *testing.T) {
	err := &APIError{Method: "GET", Path: "/x", StatusCode: 401, Kind: ErrAuth, Err: ErrReauthRequired}
	wrapped := fmt.Errorf("loading repo: %w", err)
	assert.ErrorIs(t, wrapped, ErrAuth)
	assert.ErrorIs(t, wrapped, ErrReauthRequired)
	assert.NotErrorIs(t, wrapped, ErrPermission)

	var apiErr *APIError
	assert.True(t, errors.As(wrapped, &apiErr))
	assert.Equal(t, 401, apiErr.StatusCode)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(FromResponse("GET", "/", 429, nil)))
	assert.True(t, IsRetryable(FromResponse("GET", "/", 502, nil)))
	assert.True(t, IsRetryable(Network("GET", "/", errors.New("eof"))))

	assert.False(t, IsRetryable(FromResponse("GET", "/", 401, nil)))
	assert.False(t, IsRetryable(FromResponse("GET", "/", 404, nil)))
	assert.False(t, IsRetryable(FromResponse("GET", "/", 422, nil)))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestKindName(t *testing.T) {
	assert.Equal(t, "ok", KindName(nil))
	assert.Equal(t, "not_found", KindName(FromResponse("GET", "/", 404, nil)))
	assert.Equal(t, "reauth", KindName(&APIError{Kind: ErrAuth, Err: ErrReauthRequired}))
	assert.Equal(t, "other", KindName(errors.New("x")))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "username taken",
		UserMessage(fmt.Errorf("wrap: %w", FromResponse("POST", "/users/", 400, []byte(`{"detail":"username taken"}`)))))
	assert.Equal(t, "boom", UserMessage(errors.New("boom")))
	assert.Equal(t, "", UserMessage(nil))
}
