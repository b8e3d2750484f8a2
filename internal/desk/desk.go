// Package desk wires one tab's stores, REST client, push channel and
// navigator together and runs the user flows on top of them.
//
// A Desk replaces process-wide singletons: every component it owns receives
// its collaborators explicitly, so two Desks on different storage are two
// independent tabs.
package desk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/repodesk/internal/apiclient"
	"github.com/p-blackswan/repodesk/internal/backend"
	"github.com/p-blackswan/repodesk/internal/config"
	"github.com/p-blackswan/repodesk/internal/metrics"
	"github.com/p-blackswan/repodesk/internal/navigation"
	"github.com/p-blackswan/repodesk/internal/realtime"
	"github.com/p-blackswan/repodesk/internal/retry"
	"github.com/p-blackswan/repodesk/internal/session"
	"github.com/p-blackswan/repodesk/internal/state"
	"github.com/p-blackswan/repodesk/pkg/tabstore"
)

var (
	ErrNotSignedIn   = errors.New("not signed in")
	ErrNoRepository  = errors.New("no repository is open")
	ErrNoAccessToken = errors.New("login response carried no access token")
)

// Config holds the settings a Desk needs.
type Config struct {
	APIBaseURL     string
	WSBaseURL      string
	RequestTimeout time.Duration
	LoginMode      backend.LoginMode

	ReconnectInterval    time.Duration
	MaxReconnectAttempts int

	// Routes is the navigation table. The zero value selects the default table.
	Routes navigation.Table
}

// FromConfig converts the environment configuration, loading the route
// table file when one is configured.
func FromConfig(c *config.Config) (Config, error) {
	mode, err := backend.ParseLoginMode(c.LoginMode)
	if err != nil {
		return Config{}, err
	}
	routes := navigation.DefaultTable()
	if c.RoutesFile != "" {
		if routes, err = navigation.LoadTable(c.RoutesFile); err != nil {
			return Config{}, err
		}
	}
	return Config{
		APIBaseURL:           c.APIBaseURL,
		WSBaseURL:            c.WSBaseURL,
		RequestTimeout:       c.RequestTimeout,
		LoginMode:            mode,
		ReconnectInterval:    c.ReconnectInterval,
		MaxReconnectAttempts: c.MaxReconnectAttempts,
		Routes:               routes,
	}, nil
}

// Option configures a Desk.
type Option func(*options)

type options struct {
	httpClient apiclient.HTTPClient
	dialer     realtime.Dialer
	metrics    *metrics.Metrics
	retry      retry.Config
	now        func() time.Time
}

// WithHTTPClient replaces the HTTP client (for testing).
func WithHTTPClient(hc apiclient.HTTPClient) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithDialer replaces the websocket dialer (for testing).
func WithDialer(d realtime.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRetry retries idempotent reads that fail transiently. Without it every
// call is attempted once.
func WithRetry(cfg retry.Config) Option {
	return func(o *options) { o.retry = cfg }
}

// Desk is the explicit context object of one tab.
type Desk struct {
	Session *session.Store
	Repo    *state.RepoCache
	File    *state.FileCache
	Chat    *state.ChatStore
	Results *state.ResultCache
	Client  *apiclient.Client
	API     *backend.API
	Channel *realtime.Channel
	Nav     *navigation.Navigator
	Metrics *metrics.Metrics

	storage tabstore.Storage
	logger  zerolog.Logger
	retry   retry.Config
	now     func() time.Time
}

// New builds a Desk on storage. Nothing is fetched or dialled until a flow runs.
func New(cfg Config, storage tabstore.Storage, logger zerolog.Logger, opts ...Option) *Desk {
	o := options{now: time.Now, retry: retry.Config{MaxAttempts: 1}}
	for _, opt := range opts {
		opt(&o)
	}
	if len(cfg.Routes.Routes) == 0 {
		cfg.Routes = navigation.DefaultTable()
	}

	logger = logger.With().Str("tab", storage.TabID()).Logger()
	d := &Desk{
		Session: session.NewStore(storage, logger),
		Repo:    state.NewRepoCache(storage, logger),
		File:    state.NewFileCache(storage, logger),
		Chat:    state.NewChatStore(storage, logger),
		Results: state.NewResultCache(state.DefaultResultCapacity),
		Metrics: o.metrics,
		storage: storage,
		logger:  logger.With().Str("component", "desk").Logger(),
		retry:   o.retry,
		now:     o.now,
	}

	clientOpts := []apiclient.Option{
		apiclient.WithMetrics(o.metrics),
		apiclient.WithReauthHandler(d.onReauth),
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, apiclient.WithHTTPClient(o.httpClient))
	}
	d.Client = apiclient.New(apiclient.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
	}, d.Session, logger, clientOpts...)
	d.API = backend.New(d.Client, cfg.LoginMode)

	channelOpts := []realtime.Option{realtime.WithMetrics(o.metrics)}
	if o.dialer != nil {
		channelOpts = append(channelOpts, realtime.WithDialer(o.dialer))
	}
	d.Channel = realtime.New(realtime.Config{
		URL:                  cfg.WSBaseURL,
		ReconnectInterval:    cfg.ReconnectInterval,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}, d.Session, d.Repo, logger, channelOpts...)

	d.Channel.SubscribeEvents(d.invalidateResults)

	d.Nav = navigation.NewNavigator(navigation.NewGuard(cfg.Routes, d.Session, logger), logger)
	return d
}

// invalidateResults drops cached extraction results the server is changing.
func (d *Desk) invalidateResults(ev realtime.Event) {
	switch ev.Type {
	case realtime.EventFileStatusChanged:
		d.Results.Invalidate(ev.FileID)
	case realtime.EventFileProcessingComplete:
		d.Results.Clear()
	}
}

// TabID identifies the tab whose storage this Desk uses.
func (d *Desk) TabID() string { return d.storage.TabID() }

// onReauth runs after the HTTP client cleared an unrecoverable session.
func (d *Desk) onReauth(ctx context.Context) {
	d.Channel.Disconnect()
	d.Nav.ForceLogin(ctx)
}

// Close stops background work. Storage is owned by the caller.
func (d *Desk) Close() {
	d.Channel.Disconnect()
}

// Restore rehydrates every store from storage, as after a full reload, and
// reopens the push channel of the current repository.
func (d *Desk) Restore(ctx context.Context) error {
	errs := []error{
		d.Session.Reload(ctx),
		d.Repo.Reload(ctx),
		d.File.Reload(ctx),
		d.Chat.Reload(ctx),
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("restoring tab state: %w", err)
	}
	if repoID := d.Repo.CurrentID(); repoID != "" && d.Session.Authenticated(ctx) {
		if err := d.Channel.Connect(ctx, repoID); err != nil {
			return err
		}
	}
	d.logger.Info().
		Bool("authenticated", d.Session.Authenticated(ctx)).
		Str("repo_id", d.Repo.CurrentID()).
		Msg("tab restored")
	return nil
}

func (d *Desk) userID() (string, error) {
	id := d.Session.Snapshot().ID
	if id == "" {
		return "", ErrNotSignedIn
	}
	return id, nil
}

func (d *Desk) currentRepoID() (string, error) {
	id := d.Repo.CurrentID()
	if id == "" {
		return "", ErrNoRepository
	}
	return id, nil
}
