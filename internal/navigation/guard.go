// Package navigation enforces authentication on route transitions and keeps
// the current location of the client.
package navigation

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// RedirectParam carries the originally requested location to the login page.
const RedirectParam = "redirect"

const maxRedirectHops = 8

// SessionView is the part of the session store the guard consults.
type SessionView interface {
	Reload(ctx context.Context) error
	HasValidAccessToken(ctx context.Context) bool
}

// DecisionKind says whether a transition may proceed.
type DecisionKind int

const (
	Allow DecisionKind = iota
	Redirect
)

func (k DecisionKind) String() string {
	if k == Allow {
		return "allow"
	}
	return "redirect"
}

// Decision is the outcome of one guard evaluation.
type Decision struct {
	Kind DecisionKind
	// Location is the resolved location for Allow and the next location to
	// try for Redirect.
	Location string
	Route    Route
	Title    string
	Reason   string
}

// Guard evaluates route transitions against the session.
type Guard struct {
	table   Table
	session SessionView
	logger  zerolog.Logger
}

func NewGuard(table Table, session SessionView, logger zerolog.Logger) *Guard {
	return &Guard{
		table:   table,
		session: session,
		logger:  logger.With().Str("component", "navigation").Logger(),
	}
}

// Table returns the route table the guard uses.
func (g *Guard) Table() Table { return g.table }

// Resolve decides what happens when the user heads to dest. The session is
// reloaded from storage first so changes made elsewhere in the tab count.
func (g *Guard) Resolve(ctx context.Context, dest string) Decision {
	if err := g.session.Reload(ctx); err != nil {
		g.logger.Warn().Err(err).Msg("failed to reload session before navigation")
	}

	p, query := splitLocation(dest)
	route := g.follow(p)
	location := cleanPath(route.Path)
	if query != "" {
		location += "?" + query
	}

	authed := g.session.HasValidAccessToken(ctx)
	switch {
	case route.RequiresAuth && !authed:
		return Decision{
			Kind:     Redirect,
			Location: g.LoginRedirect(location),
			Route:    route,
			Reason:   "authentication required",
		}
	case authed && g.isAuthPage(route.Path):
		return Decision{
			Kind:     Redirect,
			Location: g.table.Landing,
			Route:    route,
			Reason:   "already signed in",
		}
	}
	return Decision{Kind: Allow, Location: location, Route: route, Title: route.Title}
}

// follow resolves static redirects and unknown paths to a terminal route.
func (g *Guard) follow(p string) Route {
	for hop := 0; hop < maxRedirectHops; hop++ {
		route, ok := g.table.Lookup(p)
		if !ok {
			p = g.table.NotFound
			continue
		}
		if route.Redirect == "" {
			return route
		}
		p = route.Redirect
	}
	g.logger.Warn().Str("path", p).Msg("redirect chain too long")
	route, _ := g.table.Lookup(g.table.NotFound)
	return route
}

func (g *Guard) isAuthPage(p string) bool {
	p = cleanPath(p)
	return p == cleanPath(g.table.Login) || (g.table.Register != "" && p == cleanPath(g.table.Register))
}

// LoginRedirect returns the login location that returns to from after sign-in.
func (g *Guard) LoginRedirect(from string) string {
	if from == "" {
		return g.table.Login
	}
	if p, _ := splitLocation(from); g.isAuthPage(p) {
		return g.table.Login
	}
	return g.table.Login + "?" + url.Values{RedirectParam: {from}}.Encode()
}

// PostLoginTarget returns where to go after a successful sign-in from
// loginURL. Only local absolute paths are honoured; anything else lands on
// the default page.
func (g *Guard) PostLoginTarget(loginURL string) string {
	u, err := url.Parse(loginURL)
	if err != nil {
		return g.table.Landing
	}
	target := u.Query().Get(RedirectParam)
	if !isLocalPath(target) {
		return g.table.Landing
	}
	if p, _ := splitLocation(target); g.isAuthPage(p) {
		return g.table.Landing
	}
	return target
}

func isLocalPath(s string) bool {
	if !strings.HasPrefix(s, "/") || strings.HasPrefix(s, "//") || strings.HasPrefix(s, "/\\") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme == "" && u.Host == ""
}

func splitLocation(loc string) (string, string) {
	p, query, _ := strings.Cut(loc, "?")
	return cleanPath(p), query
}
