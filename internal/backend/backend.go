// Package backend is the typed REST surface of the repository service.
// Every call goes through apiclient, so tokens, classification and the
// refresh protocol apply uniformly.
package backend

import (
	"fmt"
	"net/url"
	"time"

	"github.com/p-blackswan/repodesk/internal/apiclient"
)

// LoginMode selects which pair of auth endpoints the backend exposes.
type LoginMode string

const (
	// LoginUsers uses JSON /users/authenticate/ and /users/.
	LoginUsers LoginMode = "users"
	// LoginOAuth uses the form-encoded /auth/token and /auth/register.
	LoginOAuth LoginMode = "oauth"
)

// ParseLoginMode validates s. An empty string selects LoginUsers.
func ParseLoginMode(s string) (LoginMode, error) {
	switch LoginMode(s) {
	case "", LoginUsers:
		return LoginUsers, nil
	case LoginOAuth:
		return LoginOAuth, nil
	default:
		return "", fmt.Errorf("unknown login mode %q (want %q or %q)", s, LoginUsers, LoginOAuth)
	}
}

// Long-running chat calls get extended deadlines.
const (
	ChatFileTimeout      = 120 * time.Second
	ChatMultiFileTimeout = 300 * time.Second
)

// API wraps the backend endpoints.
type API struct {
	client *apiclient.Client
	mode   LoginMode
}

func New(client *apiclient.Client, mode LoginMode) *API {
	if mode == "" {
		mode = LoginUsers
	}
	return &API{client: client, mode: mode}
}

// Mode returns the configured login mode.
func (a *API) Mode() LoginMode { return a.mode }

func seg(s string) string { return url.PathEscape(s) }

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
