// Package session holds the authenticated identity and tokens for one tab.
//
// Every mutation is written through to tab-scoped storage so a reload of the
// process (or a Reload call after another component wrote storage) recovers
// the same state.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/repodesk/internal/models"
	"github.com/p-blackswan/repodesk/internal/observe"
	"github.com/p-blackswan/repodesk/pkg/tabstore"
)

// Store is the session store. It is safe for concurrent use.
type Store struct {
	storage tabstore.Storage
	logger  zerolog.Logger
	now     func() time.Time

	mu  sync.RWMutex
	cur models.Session

	listeners observe.Listeners[models.Session]
}

// NewStore creates an empty, unauthenticated store backed by storage.
func NewStore(storage tabstore.Storage, logger zerolog.Logger) *Store {
	return &Store{
		storage: storage,
		logger:  logger.With().Str("component", "session").Logger(),
		now:     time.Now,
	}
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.cur
	snap.User = s.cur.User.Clone()
	return snap
}

// Subscribe registers fn to be called after every committed mutation.
func (s *Store) Subscribe(fn func(models.Session)) (cancel func()) {
	return s.listeners.Subscribe(fn)
}

// SetSession merges identity fields into the session and persists them.
// Non-empty scalar fields overwrite; non-nil lists replace.
func (s *Store) SetSession(ctx context.Context, u models.User) error {
	s.mu.Lock()
	merged := mergeUser(s.cur.User, u)
	if err := s.persistUser(ctx, merged); err != nil {
		s.mu.Unlock()
		return err
	}
	s.cur.User = merged
	s.mu.Unlock()

	s.logger.Debug().Str("user_id", merged.ID).Msg("session identity set")
	s.notify()
	return nil
}

// SetTokens stores a new access token and, when refresh is non-empty, a new
// refresh token.
func (s *Store) SetTokens(ctx context.Context, access, refresh string) error {
	s.mu.Lock()
	if err := s.storage.Set(ctx, tabstore.KeyToken, access); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persisting access token: %w", err)
	}
	if refresh != "" {
		if err := s.storage.Set(ctx, tabstore.KeyRefreshToken, refresh); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("persisting refresh token: %w", err)
		}
		s.cur.RefreshToken = refresh
	}
	s.cur.AccessToken = access
	s.mu.Unlock()

	s.logger.Debug().Bool("rotated_refresh", refresh != "").Msg("session tokens updated")
	s.notify()
	return nil
}

// AccessToken returns the access token, rehydrating it from storage when the
// in-memory copy is empty.
func (s *Store) AccessToken(ctx context.Context) string {
	return s.token(ctx, tabstore.KeyToken, func(sess *models.Session) *string { return &sess.AccessToken })
}

// RefreshToken returns the refresh token, rehydrating it like AccessToken.
func (s *Store) RefreshToken(ctx context.Context) string {
	return s.token(ctx, tabstore.KeyRefreshToken, func(sess *models.Session) *string { return &sess.RefreshToken })
}

func (s *Store) token(ctx context.Context, key string, field func(*models.Session) *string) string {
	s.mu.RLock()
	v := *field(&s.cur)
	s.mu.RUnlock()
	if v != "" {
		return v
	}

	stored, err := s.storage.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, tabstore.ErrKeyNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to rehydrate token")
		}
		return ""
	}
	s.mu.Lock()
	if *field(&s.cur) == "" {
		*field(&s.cur) = stored
	}
	v = *field(&s.cur)
	s.mu.Unlock()
	return v
}

// Authenticated reports whether an access token is present.
func (s *Store) Authenticated(ctx context.Context) bool {
	return s.AccessToken(ctx) != ""
}

// HasValidAccessToken reports whether a non-empty access token is present
// that is not a JWT past its exp claim. Opaque tokens are valid while present.
func (s *Store) HasValidAccessToken(ctx context.Context) bool {
	tok := s.AccessToken(ctx)
	if tok == "" {
		return false
	}
	exp, ok := TokenExpiry(tok)
	if !ok {
		return true
	}
	return s.now().Before(exp)
}

// UpdateRepos replaces the list of owned repositories.
func (s *Store) UpdateRepos(ctx context.Context, repoIDs []string) error {
	s.mu.Lock()
	u := s.cur.User.Clone()
	u.Repos = append([]string{}, repoIDs...)
	if err := s.persistUser(ctx, u); err != nil {
		s.mu.Unlock()
		return err
	}
	s.cur.User = u
	s.mu.Unlock()

	s.notify()
	return nil
}

// Clear resets the session to unauthenticated and removes every persisted key.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	var errs []error
	for _, key := range []string{tabstore.KeyRefreshToken, tabstore.KeyToken, tabstore.KeyUser} {
		if err := s.storage.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("removing %s: %w", key, err))
		}
	}
	s.cur = models.Session{}
	s.mu.Unlock()

	s.logger.Debug().Msg("session cleared")
	s.notify()
	return errors.Join(errs...)
}

// Reload makes the in-memory session mirror storage exactly: keys missing
// from storage empty the corresponding fields.
func (s *Store) Reload(ctx context.Context) error {
	next := models.Session{}
	var err error
	if next.AccessToken, err = s.read(ctx, tabstore.KeyToken); err != nil {
		return err
	}
	if next.RefreshToken, err = s.read(ctx, tabstore.KeyRefreshToken); err != nil {
		return err
	}
	raw, err := s.read(ctx, tabstore.KeyUser)
	if err != nil {
		return err
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &next.User); err != nil {
			s.logger.Warn().Err(err).Msg("discarding unreadable persisted user")
			next.User = models.User{}
		}
	}

	s.mu.Lock()
	changed := !sameSession(s.cur, next)
	s.cur = next
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return nil
}

func (s *Store) read(ctx context.Context, key string) (string, error) {
	v, err := s.storage.Get(ctx, key)
	if errors.Is(err, tabstore.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) persistUser(ctx context.Context, u models.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}
	if err := s.storage.Set(ctx, tabstore.KeyUser, string(raw)); err != nil {
		return fmt.Errorf("persisting user: %w", err)
	}
	return nil
}

func (s *Store) notify() {
	s.listeners.Notify(s.Snapshot())
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// ok is false for tokens that are not JWTs or carry no exp.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func mergeUser(cur, in models.User) models.User {
	out := cur.Clone()
	if in.ID != "" {
		out.ID = in.ID
	}
	if in.Username != "" {
		out.Username = in.Username
	}
	if in.Email != "" {
		out.Email = in.Email
	}
	if in.ProfilePicture != "" {
		out.ProfilePicture = in.ProfilePicture
	}
	if in.Repos != nil {
		out.Repos = append([]string{}, in.Repos...)
	}
	if in.Collaborations != nil {
		out.Collaborations = append([]string{}, in.Collaborations...)
	}
	return out
}

func sameSession(a, b models.Session) bool {
	if a.AccessToken != b.AccessToken || a.RefreshToken != b.RefreshToken {
		return false
	}
	ra, _ := json.Marshal(a.User)
	rb, _ := json.Marshal(b.User)
	return string(ra) == string(rb)
}
