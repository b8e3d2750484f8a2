package desk

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/repodesk/internal/apiclient"
	"github.com/p-blackswan/repodesk/internal/health"
)

// HealthChecker returns a checker with the backend, session and realtime
// diagnostics of this tab registered.
func (d *Desk) HealthChecker(logger zerolog.Logger) *health.Checker {
	c := health.NewChecker(logger)
	c.Register("backend", health.BackendCheck(d.probeBackend))
	c.Register("session", health.SessionCheck(d.Session))
	c.Register("realtime", d.RealtimeCheck(""))
	return c
}

// probeBackend fetches the profile without triggering the refresh protocol,
// so a diagnostic never clears the session.
func (d *Desk) probeBackend(ctx context.Context) error {
	opts := []apiclient.RequestOption{apiclient.WithoutAuth()}
	if tok := d.Session.AccessToken(ctx); tok != "" {
		opts = append(opts, apiclient.WithHeader("Authorization", "Bearer "+tok))
	}
	return d.Client.Get(ctx, "/users/me", nil, opts...)
}

// RealtimeCheck dials the push channel of repoID once. An empty repoID
// probes the current repository, or else the first one the user owns.
func (d *Desk) RealtimeCheck(repoID string) health.CheckFunc {
	return func(ctx context.Context) (health.Status, string) {
		id := repoID
		if id == "" {
			id = d.Repo.CurrentID()
		}
		if id == "" {
			if owned := d.Session.Snapshot().Repos; len(owned) > 0 {
				id = owned[0]
			}
		}
		if id == "" {
			return health.StatusDegraded, "no repository to probe"
		}
		if err := d.Channel.Probe(ctx, id); err != nil {
			return health.StatusDown, err.Error()
		}
		return health.StatusOK, "push channel accepts connections for " + id
	}
}
