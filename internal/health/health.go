// Package health runs the named diagnostics behind `repodesk doctor` and the
// readiness endpoint served next to /metrics.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/repodesk/internal/errors"
)

// Status represents the health of one dependency.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

func (s Status) rank() int {
	switch s {
	case StatusOK:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// CheckFunc checks one dependency and explains the outcome.
type CheckFunc func(ctx context.Context) (Status, string)

// Result is the outcome of one check.
type Result struct {
	Name    string        `json:"name"`
	Status  Status        `json:"status"`
	Detail  string        `json:"detail,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

const defaultCheckTimeout = 5 * time.Second

// Checker manages health checks.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
	logger  zerolog.Logger
}

func NewChecker(logger zerolog.Logger) *Checker {
	return &Checker{
		checks:  make(map[string]CheckFunc),
		timeout: defaultCheckTimeout,
		logger:  logger.With().Str("component", "health").Logger(),
	}
}

// SetTimeout changes the per-check deadline.
func (c *Checker) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.timeout = d
	}
}

// Register adds a named check, replacing any check of the same name.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

// RunAll executes every check concurrently and returns the results sorted
// by name. A check that overruns its deadline is reported down.
func (c *Checker) RunAll(ctx context.Context) []Result {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	timeout := c.timeout
	c.mu.RUnlock()

	results := make([]Result, 0, len(checks))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, fn := range checks {
		wg.Add(1)
		go func(n string, f CheckFunc) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			s, detail := f(checkCtx)
			if checkCtx.Err() != nil && s == StatusOK {
				s, detail = StatusDown, "timed out"
			}
			r := Result{Name: n, Status: s, Detail: detail, Elapsed: time.Since(start)}
			c.logger.Debug().Str("check", n).Str("status", string(s)).Dur("elapsed", r.Elapsed).Msg("health check")

			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

// Overall returns the worst status among results; ok when there are none.
func Overall(results []Result) Status {
	worst := StatusOK
	for _, r := range results {
		if r.Status.rank() > worst.rank() {
			worst = r.Status
		}
	}
	return worst
}

// IsReady reports whether no check is down.
func (c *Checker) IsReady(ctx context.Context) bool {
	return Overall(c.RunAll(ctx)) != StatusDown
}

// ErrorCheck adapts fn: nil is ok, any error is down.
func ErrorCheck(fn func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) (Status, string) {
		if err := fn(ctx); err != nil {
			return StatusDown, err.Error()
		}
		return StatusOK, ""
	}
}

// BackendCheck classifies the error of a backend probe. Auth failures prove
// the server answered, so they only degrade.
func BackendCheck(probe func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) (Status, string) {
		err := probe(ctx)
		switch {
		case err == nil:
			return StatusOK, "reachable"
		case errors.Is(err, perrors.ErrAuth), errors.Is(err, perrors.ErrPermission):
			return StatusDegraded, "reachable, but the session is not accepted"
		case errors.Is(err, perrors.ErrNetwork), errors.Is(err, perrors.ErrServer), errors.Is(err, perrors.ErrRateLimit):
			return StatusDown, perrors.UserMessage(err)
		default:
			return StatusDegraded, perrors.UserMessage(err)
		}
	}
}

// TokenValidator is satisfied by the session store.
type TokenValidator interface {
	HasValidAccessToken(ctx context.Context) bool
}

// SessionCheck reports whether a usable access token is held.
func SessionCheck(v TokenValidator) CheckFunc {
	return func(ctx context.Context) (Status, string) {
		if v.HasValidAccessToken(ctx) {
			return StatusOK, "signed in"
		}
		return StatusDegraded, "no valid access token"
	}
}

// LivenessHandler returns an HTTP handler for /health.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// ReadinessHandler returns an HTTP handler for /ready.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		results := c.RunAll(r.Context())

		resp := map[string]interface{}{
			"checks": results,
		}
		if Overall(results) != StatusDown {
			resp["status"] = "ready"
			w.WriteHeader(http.StatusOK)
		} else {
			resp["status"] = "not_ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	}
}
