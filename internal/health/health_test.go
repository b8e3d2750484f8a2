package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/repodesk/internal/errors"
)

func TestLivenessHandler(t *testing.T) {
	handler := LivenessHandler()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestChecker_ResultsSortedByName(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("session", func(ctx context.Context) (Status, string) { return StatusOK, "" })
	c.Register("backend", func(ctx context.Context) (Status, string) { return StatusDegraded, "meh" })

	results := c.RunAll(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, "backend", results[0].Name)
	assert.Equal(t, "meh", results[0].Detail)
	assert.Equal(t, "session", results[1].Name)
	assert.Equal(t, StatusDegraded, Overall(results))
}

func TestChecker_OneDown(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("backend", func(ctx context.Context) (Status, string) { return StatusOK, "" })
	c.Register("realtime", func(ctx context.Context) (Status, string) { return StatusDown, "refused" })

	assert.False(t, c.IsReady(context.Background()))
}

func TestChecker_Degraded_StillReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("session", func(ctx context.Context) (Status, string) { return StatusDegraded, "" })

	assert.True(t, c.IsReady(context.Background()))
}

func TestChecker_NoChecks(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	assert.True(t, c.IsReady(context.Background()))
	assert.Equal(t, StatusOK, Overall(nil))
}

func TestChecker_TimeoutIsDown(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.SetTimeout(20 * time.Millisecond)
	c.Register("slow", func(ctx context.Context) (Status, string) {
		<-ctx.Done()
		return StatusOK, ""
	})

	results := c.RunAll(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, StatusDown, results[0].Status)
	assert.Equal(t, "timed out", results[0].Detail)
}

func TestBackendCheck(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"ok", nil, StatusOK},
		{"unauthorized", perrors.FromResponse("GET", "/users/me", http.StatusUnauthorized, nil), StatusDegraded},
		{"not found", perrors.FromResponse("GET", "/users/me", http.StatusNotFound, nil), StatusDegraded},
		{"server", perrors.FromResponse("GET", "/users/me", http.StatusBadGateway, nil), StatusDown},
		{"network", perrors.Network("GET", "/users/me", errors.New("refused")), StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := BackendCheck(func(context.Context) error { return tt.err })(context.Background())
			assert.Equal(t, tt.want, s)
		})
	}
}

type validator bool

func (v validator) HasValidAccessToken(context.Context) bool { return bool(v) }

func TestSessionCheck(t *testing.T) {
	s, _ := SessionCheck(validator(true))(context.Background())
	assert.Equal(t, StatusOK, s)
	s, detail := SessionCheck(validator(false))(context.Background())
	assert.Equal(t, StatusDegraded, s)
	assert.Equal(t, "no valid access token", detail)
}

func TestErrorCheck(t *testing.T) {
	s, detail := ErrorCheck(func(context.Context) error { return errors.New("dial refused") })(context.Background())
	assert.Equal(t, StatusDown, s)
	assert.Equal(t, "dial refused", detail)
}

func TestReadinessHandler_Healthy(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("svc", func(ctx context.Context) (Status, string) { return StatusOK, "" })

	handler := c.ReadinessHandler()
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ready"`)
}

func TestReadinessHandler_NotReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("svc", func(ctx context.Context) (Status, string) { return StatusDown, "" })

	handler := c.ReadinessHandler()
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "not_ready")
}
