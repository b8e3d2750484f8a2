// Package realtime maintains the push channel of the current repository and
// reconciles its events into the repository cache.
//
// The channel is a small state machine:
//
//	Disconnected -> Connecting -> Connected -> Reconnecting -> Connecting ...
//
// Reconnects use a fixed delay. After MaxReconnectAttempts consecutive
// reconnects without a successful open the channel settles in Disconnected
// until Connect is called again.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/repodesk/internal/metrics"
	"github.com/p-blackswan/repodesk/internal/models"
	"github.com/p-blackswan/repodesk/internal/observe"
)

// ErrNotConnected is returned by Send while the channel is not open.
var ErrNotConnected = errors.New("realtime channel not connected")

// State of the channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds channel settings.
type Config struct {
	// URL is the push endpoint base, e.g. "ws://localhost:8000/ws". The repo
	// id is appended as a path segment.
	URL string

	// ReconnectInterval is the fixed delay before each reconnect.
	ReconnectInterval time.Duration

	// MaxReconnectAttempts caps consecutive reconnects without an open. Zero
	// disables reconnecting.
	MaxReconnectAttempts int

	HandshakeTimeout time.Duration
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		URL:                  "ws://localhost:8000/ws",
		ReconnectInterval:    3 * time.Second,
		MaxReconnectAttempts: 5,
		HandshakeTimeout:     10 * time.Second,
	}
}

// Dialer opens websocket connections. *websocket.Dialer implements it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// TokenSource supplies the access token, read fresh before every dial.
type TokenSource interface {
	AccessToken(ctx context.Context) string
}

// Reconciler applies events to the repository cache. Each method is a no-op
// returning false when repoID is not the current repository.
type Reconciler interface {
	ReplaceFilesFor(ctx context.Context, repoID string, files []models.File) (bool, error)
	PatchFileStatusFor(ctx context.Context, repoID, fileID, status string) (bool, error)
	ReplaceResultsFor(ctx context.Context, repoID string, results []models.Result) (bool, error)
}

// Option configures a Channel.
type Option func(*Channel)

func WithDialer(d Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Channel) { c.metrics = m }
}

// Channel is the push channel. It is safe for concurrent use.
type Channel struct {
	cfg     Config
	tokens  TokenSource
	rec     Reconciler
	dialer  Dialer
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	gen    uint64 // bumped by Connect and Disconnect; older loops stop mutating
	state  State
	repoID string
	conn   *websocket.Conn
	cancel context.CancelFunc

	writeMu sync.Mutex

	stateListeners observe.Listeners[State]
	eventListeners observe.Listeners[Event]
}

func New(cfg Config, tokens TokenSource, rec Reconciler, logger zerolog.Logger, opts ...Option) *Channel {
	def := DefaultConfig()
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = def.ReconnectInterval
	}
	if cfg.MaxReconnectAttempts < 0 {
		cfg.MaxReconnectAttempts = 0
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	c := &Channel{
		cfg:    cfg,
		tokens: tokens,
		rec:    rec,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		logger: logger.With().Str("component", "realtime").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RepoID returns the repository the channel was last connected for, or ""
// after Disconnect.
func (c *Channel) RepoID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repoID
}

// Subscribe registers fn for state transitions.
func (c *Channel) Subscribe(fn func(State)) (cancel func()) {
	return c.stateListeners.Subscribe(fn)
}

// SubscribeEvents registers fn for every well-formed event, after it has
// been applied.
func (c *Channel) SubscribeEvents(fn func(Event)) (cancel func()) {
	return c.eventListeners.Subscribe(fn)
}

// Connect starts the channel for repoID, tearing down any running
// connection first. It returns once the connection loop is started.
func (c *Channel) Connect(ctx context.Context, repoID string) error {
	if repoID == "" {
		return errors.New("realtime: empty repository id")
	}

	c.mu.Lock()
	c.teardownLocked()
	c.gen++
	gen := c.gen
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.repoID = repoID
	old := c.state
	c.state = Connecting
	c.mu.Unlock()

	c.stateChanged(old, Connecting)
	c.logger.Info().Str("repo_id", repoID).Msg("opening push channel")
	go c.run(loopCtx, gen, repoID)
	return nil
}

// Disconnect closes the channel. It is safe to call at any time.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.teardownLocked()
	c.gen++
	c.repoID = ""
	old := c.state
	c.state = Disconnected
	c.mu.Unlock()

	if old != Disconnected {
		c.logger.Info().Msg("push channel closed")
	}
	c.stateChanged(old, Disconnected)
}

func (c *Channel) teardownLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		conn := c.conn
		c.conn = nil
		// WriteControl may run concurrently with Send.
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

// Send writes {type, ...fields} while the channel is Connected.
func (c *Channel) Send(ctx context.Context, eventType string, fields map[string]any) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == Connected
	c.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	msg := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		msg[k] = v
	}
	msg["type"] = eventType

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("sending %s: %w", eventType, err)
	}
	return nil
}

// run is the connection loop of one generation.
func (c *Channel) run(ctx context.Context, gen uint64, repoID string) {
	attempts := 0
	for {
		conn, err := c.dial(ctx, repoID)
		if err == nil {
			if !c.attach(gen, conn) {
				_ = conn.Close()
				return
			}
			attempts = 0
			c.logger.Info().Str("repo_id", repoID).Msg("push channel open")
			c.readLoop(ctx, gen, conn)
			c.detach(gen, conn)
		} else if ctx.Err() == nil {
			c.logger.Warn().Err(err).Str("repo_id", repoID).Int("attempt", attempts).Msg("push channel dial failed")
		}

		if ctx.Err() != nil {
			return
		}
		if attempts >= c.cfg.MaxReconnectAttempts {
			c.logger.Warn().Str("repo_id", repoID).Int("attempts", attempts).Msg("giving up on push channel")
			c.transition(gen, Disconnected)
			return
		}
		attempts++
		if !c.transition(gen, Reconnecting) {
			return
		}
		c.metrics.RecordReconnect()

		timer := time.NewTimer(c.cfg.ReconnectInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if !c.transition(gen, Connecting) {
			return
		}
	}
}

func (c *Channel) dial(ctx context.Context, repoID string) (*websocket.Conn, error) {
	u, err := c.endpoint(ctx, repoID)
	if err != nil {
		return nil, err
	}
	conn, resp, err := c.dialer.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial rejected with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial: %w", err)
	}
	return conn, nil
}

// endpoint builds <URL>/<repoID>?token=<access>.
func (c *Channel) endpoint(ctx context.Context, repoID string) (string, error) {
	base, err := url.Parse(strings.TrimSuffix(c.cfg.URL, "/") + "/" + url.PathEscape(repoID))
	if err != nil {
		return "", fmt.Errorf("parsing push channel url: %w", err)
	}
	if c.tokens != nil {
		if tok := c.tokens.AccessToken(ctx); tok != "" {
			q := base.Query()
			q.Set("token", tok)
			base.RawQuery = q.Encode()
		}
	}
	return base.String(), nil
}

func (c *Channel) attach(gen uint64, conn *websocket.Conn) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	old := c.state
	c.state = Connected
	c.mu.Unlock()

	c.stateChanged(old, Connected)
	return true
}

func (c *Channel) detach(gen uint64, conn *websocket.Conn) {
	c.mu.Lock()
	if gen == c.gen && c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Channel) transition(gen uint64, next State) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	old := c.state
	c.state = next
	c.mu.Unlock()

	c.stateChanged(old, next)
	return true
}

func (c *Channel) stateChanged(old, next State) {
	if old == next {
		return
	}
	c.metrics.SetRealtimeState(int(next))
	c.stateListeners.Notify(next)
}

func (c *Channel) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

// readLoop applies frames in receive order until the connection fails.
func (c *Channel) readLoop(ctx context.Context, gen uint64, conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				if websocket.IsCloseError(err, 4001, 4003) {
					c.logger.Warn().Err(err).Msg("push channel rejected the access token")
				} else {
					c.logger.Warn().Err(err).Msg("push channel read error")
				}
			}
			return
		}
		if !c.current(gen) {
			return
		}
		c.apply(ctx, msg)
	}
}

func (c *Channel) apply(ctx context.Context, msg []byte) {
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil || ev.Type == "" {
		c.logger.Warn().Err(err).Int("bytes", len(msg)).Msg("skipping malformed push frame")
		c.metrics.RecordEvent("", resultMalformed)
		return
	}

	var applied bool
	var err error
	switch ev.Type {
	case EventFileUploaded:
		if ev.Files == nil {
			c.logger.Warn().Str("repo_id", ev.RepoID).Msg("skipping file upload event without a files array")
			c.metrics.RecordEvent(ev.Type, resultMalformed)
			return
		}
		applied, err = c.rec.ReplaceFilesFor(ctx, ev.RepoID, *ev.Files)
	case EventFileStatusChanged:
		applied, err = c.rec.PatchFileStatusFor(ctx, ev.RepoID, ev.FileID, ev.Status)
	case EventFileProcessingComplete:
		applied, err = c.rec.ReplaceResultsFor(ctx, ev.RepoID, ev.Results)
	default:
		c.logger.Debug().Str("type", ev.Type).Msg("skipping unknown push event")
		c.metrics.RecordEvent(ev.Type, resultUnknown)
		return
	}

	result := resultIgnored
	switch {
	case err != nil:
		result = resultFailed
		c.logger.Error().Err(err).Str("type", ev.Type).Str("repo_id", ev.RepoID).Msg("failed to apply push event")
	case applied:
		result = resultApplied
	}
	c.metrics.RecordEvent(ev.Type, result)
	c.logger.Debug().Str("type", ev.Type).Str("repo_id", ev.RepoID).Str("result", result).Msg("push event")
	c.eventListeners.Notify(ev)
}

// Probe dials the push channel of repoID once and closes it again. It does
// not touch the channel state.
func (c *Channel) Probe(ctx context.Context, repoID string) error {
	conn, err := c.dial(ctx, repoID)
	if err != nil {
		return err
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "probe"),
		time.Now().Add(time.Second))
	return conn.Close()
}
