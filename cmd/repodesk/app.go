package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/repodesk/internal/config"
	"github.com/p-blackswan/repodesk/internal/desk"
	"github.com/p-blackswan/repodesk/internal/health"
	"github.com/p-blackswan/repodesk/internal/metrics"
	"github.com/p-blackswan/repodesk/internal/retry"
	"github.com/p-blackswan/repodesk/pkg/tabstore"
)

var errNoCredentials = errors.New("credentials required: set --user and --password or REPODESK_USERNAME and REPODESK_PASSWORD")

// globalFlags override the environment configuration when set.
type globalFlags struct {
	apiURL     string
	wsURL      string
	loginMode  string
	username   string
	password   string
	storage    string
	storageDSN string
	logLevel   string
}

func (f *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.apiURL, "api", "", "REST base URL (env REPODESK_API_BASE_URL)")
	pf.StringVar(&f.wsURL, "ws", "", "push channel base URL (env REPODESK_WS_BASE_URL)")
	pf.StringVar(&f.loginMode, "login-mode", "", "auth endpoints: users or oauth (env REPODESK_LOGIN_MODE)")
	pf.StringVarP(&f.username, "user", "u", "", "username or email (env REPODESK_USERNAME)")
	pf.StringVarP(&f.password, "password", "p", "", "password (env REPODESK_PASSWORD)")
	pf.StringVar(&f.storage, "storage", "", "tab storage: memory or sqlite (env REPODESK_STORAGE)")
	pf.StringVar(&f.storageDSN, "storage-dsn", "", "SQLite DSN (env REPODESK_STORAGE_DSN)")
	pf.StringVar(&f.logLevel, "log-level", "", "log level (env REPODESK_LOG_LEVEL)")
}

func (f *globalFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("api", &cfg.APIBaseURL, f.apiURL)
	set("ws", &cfg.WSBaseURL, f.wsURL)
	set("login-mode", &cfg.LoginMode, f.loginMode)
	set("user", &cfg.Username, f.username)
	set("password", &cfg.Password, f.password)
	set("storage", &cfg.Storage, f.storage)
	set("storage-dsn", &cfg.StorageDSN, f.storageDSN)
	set("log-level", &cfg.LogLevel, f.logLevel)
}

// app is one CLI invocation: one tab with its own Desk.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	desk    *desk.Desk
	metrics *metrics.Metrics

	closers []func() error
}

func newApp(cmd *cobra.Command, flags *globalFlags) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	flags.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg)
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	storage, err := a.openStorage()
	if err != nil {
		return nil, err
	}

	dcfg, err := desk.FromConfig(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	rc := retry.DefaultConfig()
	rc.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying backend call")
	}
	a.desk = desk.New(dcfg, storage, logger, desk.WithMetrics(a.metrics), desk.WithRetry(rc))
	a.closers = append([]func() error{func() error { a.desk.Close(); return nil }}, a.closers...)

	if cfg.MetricsAddr != "" {
		a.serveMetrics(a.desk.HealthChecker(logger))
	}
	return a, nil
}

// newLogger follows the service setup: JSON with timestamp and caller, or a
// console writer in development. Logs go to stderr so command output stays clean.
func newLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(w).With().Timestamp().Caller().Logger()
	if cfg.Development() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: w})
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}
	return logger
}

func (a *app) openStorage() (tabstore.Storage, error) {
	switch a.cfg.Storage {
	case config.StorageSQLite:
		s, err := tabstore.NewSQLiteStore(a.cfg.SQLiteDSN(), a.logger)
		if err != nil {
			return nil, fmt.Errorf("opening tab storage: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return tabstore.NewMemoryStore(), nil
	}
}

func (a *app) serveMetrics(checker *health.Checker) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	mux.HandleFunc("/health", health.LivenessHandler())
	mux.HandleFunc("/ready", checker.ReadinessHandler())

	server := &http.Server{
		Addr:         a.cfg.MetricsAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	a.logger.Info().Str("addr", a.cfg.MetricsAddr).Msg("serving metrics")

	a.closers = append([]func() error{func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}}, a.closers...)
}

// signIn logs in with the configured credentials. Every invocation is its own
// tab, so each command that needs a session signs in first.
func (a *app) signIn(ctx context.Context) error {
	if a.cfg.Username == "" || a.cfg.Password == "" {
		return errNoCredentials
	}
	_, err := a.desk.Login(ctx, a.cfg.Username, a.cfg.Password)
	return err
}

// openRepo signs in and opens repoID.
func (a *app) openRepo(ctx context.Context, repoID string) error {
	if err := a.signIn(ctx); err != nil {
		return err
	}
	_, err := a.desk.OpenRepo(ctx, repoID)
	return err
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn().Err(err).Msg("shutdown step failed")
		}
	}
}

// withApp builds the app, runs fn and tears it down.
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(cmd, flags)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(cmd.Context(), a)
}
