package navigation

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/repodesk/internal/observe"
)

const maxDecisions = 4

// Location is where the client currently is.
type Location struct {
	Path  string // path plus query
	Route Route
	Title string
}

// Navigator applies guard decisions and tracks the current location.
type Navigator struct {
	guard  *Guard
	logger zerolog.Logger

	mu  sync.Mutex
	cur Location

	listeners observe.Listeners[Location]
}

func NewNavigator(guard *Guard, logger zerolog.Logger) *Navigator {
	return &Navigator{
		guard:  guard,
		logger: logger.With().Str("component", "navigator").Logger(),
	}
}

func (n *Navigator) Guard() *Guard { return n.guard }

func (n *Navigator) Current() Location {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cur
}

// Subscribe registers fn for every completed navigation.
func (n *Navigator) Subscribe(fn func(Location)) (cancel func()) {
	return n.listeners.Subscribe(fn)
}

// Navigate follows guard decisions from dest until one allows the transition.
func (n *Navigator) Navigate(ctx context.Context, dest string) (Location, error) {
	loc := dest
	for i := 0; i < maxDecisions; i++ {
		d := n.guard.Resolve(ctx, loc)
		if d.Kind == Allow {
			next := Location{Path: d.Location, Route: d.Route, Title: d.Title}
			n.mu.Lock()
			n.cur = next
			n.mu.Unlock()

			n.logger.Debug().Str("requested", dest).Str("location", next.Path).Msg("navigated")
			n.listeners.Notify(next)
			return next, nil
		}
		n.logger.Debug().Str("from", loc).Str("to", d.Location).Str("reason", d.Reason).Msg("navigation redirected")
		loc = d.Location
	}
	return n.Current(), fmt.Errorf("navigation to %q did not settle after %d redirects", dest, maxDecisions)
}

// ForceLogin sends the user to the login page, remembering where they were.
// It is the re-authentication signal of the HTTP client.
func (n *Navigator) ForceLogin(ctx context.Context) {
	cur := n.Current()
	if p, _ := splitLocation(cur.Path); cur.Path != "" && n.guard.isAuthPage(p) {
		return
	}
	target := n.guard.LoginRedirect(cur.Path)
	if _, err := n.Navigate(ctx, target); err != nil {
		n.logger.Error().Err(err).Msg("failed to navigate to login")
	}
}
