package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/repodesk/internal/models"
	"github.com/p-blackswan/repodesk/pkg/tabstore"
)

func newTestStore(t *testing.T) (*Store, *tabstore.MemoryStore) {
	t.Helper()
	storage := tabstore.NewMemoryStore()
	return NewStore(storage, zerolog.Nop()), storage
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestStore_SetTokensPersists(t *testing.T) {
	ctx := context.Background()
	s, storage := newTestStore(t)

	require.NoError(t, s.SetTokens(ctx, "AT1", "RT1"))
	assert.Equal(t, "AT1", s.AccessToken(ctx))
	assert.Equal(t, "RT1", s.RefreshToken(ctx))
	assert.True(t, s.Snapshot().Authenticated())

	v, err := storage.Get(ctx, tabstore.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "AT1", v)
	v, err = storage.Get(ctx, tabstore.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "RT1", v)
}

func TestStore_SetTokensKeepsRefreshWhenOmitted(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	require.NoError(t, s.SetTokens(ctx, "AT1", "RT1"))
	require.NoError(t, s.SetTokens(ctx, "AT2", ""))

	assert.Equal(t, "AT2", s.AccessToken(ctx))
	assert.Equal(t, "RT1", s.RefreshToken(ctx))
}

func TestStore_LastWriteWinsAndClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	ops := []func(){
		func() { require.NoError(t, s.SetTokens(ctx, "A", "R")) },
		func() { require.NoError(t, s.Clear(ctx)) },
		func() { require.NoError(t, s.SetSession(ctx, models.User{ID: "u1"})) },
		func() { require.NoError(t, s.SetTokens(ctx, "B", "")) },
		func() { require.NoError(t, s.SetTokens(ctx, "C", "")) },
	}
	for _, op := range ops {
		op()
	}
	assert.Equal(t, "C", s.AccessToken(ctx))

	require.NoError(t, s.Clear(ctx))
	assert.Empty(t, s.AccessToken(ctx))
	require.NoError(t, s.Clear(ctx))
	assert.Empty(t, s.AccessToken(ctx))
	assert.Empty(t, s.RefreshToken(ctx))
	assert.False(t, s.Snapshot().Authenticated())
	assert.True(t, s.Snapshot().User.IsZero())
}

func TestStore_ClearRemovesPersistedKeys(t *testing.T) {
	ctx := context.Background()
	s, storage := newTestStore(t)
	require.NoError(t, s.SetTokens(ctx, "AT1", "RT1"))
	require.NoError(t, s.SetSession(ctx, models.User{ID: "u1", Username: "alice"}))
	require.NoError(t, storage.Set(ctx, tabstore.KeyCurrentRepo, "{}"))

	require.NoError(t, s.Clear(ctx))

	keys, err := storage.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{tabstore.KeyCurrentRepo}, keys)
}

func TestStore_SetSessionMerges(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.SetSession(ctx, models.User{
		ID: "u1", Username: "alice", Email: "a@example.com", Repos: []string{"R1"},
	}))
	require.NoError(t, s.SetSession(ctx, models.User{ProfilePicture: "pic.png"}))

	u := s.Snapshot().User
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "pic.png", u.ProfilePicture)
	assert.Equal(t, []string{"R1"}, u.Repos)

	require.NoError(t, s.SetSession(ctx, models.User{Repos: []string{}}))
	assert.Empty(t, s.Snapshot().User.Repos)
}

func TestStore_IdentityAloneIsNotAuthenticated(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	require.NoError(t, s.SetSession(ctx, models.User{ID: "u1"}))
	assert.False(t, s.Authenticated(ctx))
}

func TestStore_LazyRehydrate(t *testing.T) {
	ctx := context.Background()
	storage := tabstore.NewMemoryStore()
	require.NoError(t, storage.Set(ctx, tabstore.KeyToken, "persisted"))
	require.NoError(t, storage.Set(ctx, tabstore.KeyRefreshToken, "persisted-rt"))

	s := NewStore(storage, zerolog.Nop())
	assert.Equal(t, "persisted", s.AccessToken(ctx))
	assert.Equal(t, "persisted-rt", s.RefreshToken(ctx))
}

func TestStore_ReloadMirrorsStorage(t *testing.T) {
	ctx := context.Background()
	s, storage := newTestStore(t)
	require.NoError(t, s.SetTokens(ctx, "AT1", "RT1"))
	require.NoError(t, s.SetSession(ctx, models.User{ID: "u1", Username: "alice"}))

	// Another component in the same tab rewrites storage behind the store's back.
	require.NoError(t, storage.Set(ctx, tabstore.KeyToken, "AT9"))
	require.NoError(t, storage.Delete(ctx, tabstore.KeyRefreshToken))
	require.NoError(t, storage.Set(ctx, tabstore.KeyUser, `{"id":"u2","username":"bob"}`))

	require.NoError(t, s.Reload(ctx))
	snap := s.Snapshot()
	assert.Equal(t, "AT9", snap.AccessToken)
	assert.Empty(t, snap.RefreshToken)
	assert.Equal(t, "u2", snap.ID)
	assert.Equal(t, "bob", snap.Username)
}

func TestStore_ReloadIgnoresCorruptUser(t *testing.T) {
	ctx := context.Background()
	s, storage := newTestStore(t)
	require.NoError(t, storage.Set(ctx, tabstore.KeyToken, "AT1"))
	require.NoError(t, storage.Set(ctx, tabstore.KeyUser, "{not json"))

	require.NoError(t, s.Reload(ctx))
	assert.Equal(t, "AT1", s.Snapshot().AccessToken)
	assert.True(t, s.Snapshot().User.IsZero())
}

type failingStorage struct{ *tabstore.MemoryStore }

func (f failingStorage) Get(context.Context, string) (string, error) {
	return "", errors.New("disk gone")
}

func TestStore_ReloadPropagatesStorageErrors(t *testing.T) {
	s := NewStore(failingStorage{tabstore.NewMemoryStore()}, zerolog.Nop())
	assert.Error(t, s.Reload(context.Background()))
	assert.Empty(t, s.AccessToken(context.Background()))
}

func TestStore_UpdateRepos(t *testing.T) {
	ctx := context.Background()
	s, storage := newTestStore(t)
	require.NoError(t, s.SetSession(ctx, models.User{ID: "u1", Repos: []string{"R1"}}))
	require.NoError(t, s.UpdateRepos(ctx, []string{"R1", "R2"}))

	assert.Equal(t, []string{"R1", "R2"}, s.Snapshot().Repos)
	raw, err := storage.Get(ctx, tabstore.KeyUser)
	require.NoError(t, err)
	assert.Contains(t, raw, `"repos":["R1","R2"]`)
}

func TestStore_SubscribersNotifiedAfterMutation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	var seen []string
	cancel := s.Subscribe(func(sess models.Session) { seen = append(seen, sess.AccessToken) })

	require.NoError(t, s.SetTokens(ctx, "AT1", ""))
	require.NoError(t, s.Clear(ctx))
	cancel()
	require.NoError(t, s.SetTokens(ctx, "AT2", ""))

	assert.Equal(t, []string{"AT1", ""}, seen)
}

func TestStore_SubscriberMayReadStore(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	var got string
	s.Subscribe(func(models.Session) { got = s.AccessToken(ctx) })
	require.NoError(t, s.SetTokens(ctx, "AT1", ""))
	assert.Equal(t, "AT1", got)
}

func TestStore_HasValidAccessToken(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	assert.False(t, s.HasValidAccessToken(ctx))

	require.NoError(t, s.SetTokens(ctx, "opaque", ""))
	assert.True(t, s.HasValidAccessToken(ctx))

	require.NoError(t, s.SetTokens(ctx, signedToken(t, time.Now().Add(time.Hour)), ""))
	assert.True(t, s.HasValidAccessToken(ctx))

	require.NoError(t, s.SetTokens(ctx, signedToken(t, time.Now().Add(-time.Minute)), ""))
	assert.False(t, s.HasValidAccessToken(ctx))
	assert.True(t, s.Authenticated(ctx))
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := TokenExpiry(signedToken(t, exp))
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = TokenExpiry("AT1")
	assert.False(t, ok)
}
