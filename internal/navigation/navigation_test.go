package navigation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	valid   bool
	reloads int
}

func (f *fakeSession) Reload(context.Context) error { f.reloads++; return nil }

func (f *fakeSession) HasValidAccessToken(context.Context) bool { return f.valid }

func newTestGuard(valid bool) (*Guard, *fakeSession) {
	sess := &fakeSession{valid: valid}
	return NewGuard(DefaultTable(), sess, zerolog.Nop()), sess
}

func TestDefaultTableIsValid(t *testing.T) {
	require.NoError(t, DefaultTable().Validate())
}

func TestGuard_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		authed   bool
		dest     string
		kind     DecisionKind
		location string
		title    string
	}{
		{"public login", false, "/login", Allow, "/login", "Login"},
		{"root chain to login", false, "/", Allow, "/login", "Login"},
		{"protected without token", false, "/dashboard", Redirect, "/login?redirect=%2Fdashboard", ""},
		{"redirected protected keeps final path", false, "/workspace", Redirect, "/login?redirect=%2Frepo", ""},
		{"query survives", false, "/chat?repo=R1", Redirect, "/login?redirect=%2Fchat%3Frepo%3DR1", ""},
		{"protected with token", true, "/chat", Allow, "/chat", "Chat"},
		{"untitled route", true, "/repo", Allow, "/repo", ""},
		{"signed in at login", true, "/login", Redirect, "/dashboard", ""},
		{"signed in at register", true, "/register", Redirect, "/dashboard", ""},
		{"unknown path", false, "/nowhere", Allow, "/404", "404"},
		{"trailing slash", true, "/dashboard/", Allow, "/dashboard", "Dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, sess := newTestGuard(tt.authed)
			d := g.Resolve(context.Background(), tt.dest)
			assert.Equal(t, tt.kind, d.Kind)
			assert.Equal(t, tt.location, d.Location)
			assert.Equal(t, tt.title, d.Title)
			assert.Equal(t, 1, sess.reloads)
		})
	}
}

func TestGuard_PostLoginTarget(t *testing.T) {
	g, _ := newTestGuard(false)
	tests := []struct {
		loginURL string
		want     string
	}{
		{"/login?redirect=%2Frepo", "/repo"},
		{"/login?redirect=%2Fchat%3Frepo%3DR1", "/chat?repo=R1"},
		{"/login", "/dashboard"},
		{"/login?redirect=https%3A%2F%2Fevil.example", "/dashboard"},
		{"/login?redirect=%2F%2Fevil.example", "/dashboard"},
		{"/login?redirect=relative", "/dashboard"},
		{"/login?redirect=%2Flogin", "/dashboard"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, g.PostLoginTarget(tt.loginURL), tt.loginURL)
	}
}

func TestGuard_LoginRedirect(t *testing.T) {
	g, _ := newTestGuard(false)
	assert.Equal(t, "/login", g.LoginRedirect(""))
	assert.Equal(t, "/login", g.LoginRedirect("/login?redirect=%2Frepo"))
	assert.Equal(t, "/login?redirect=%2Frepo", g.LoginRedirect("/repo"))
}

func TestNavigator_FollowsRedirectsToAllow(t *testing.T) {
	g, _ := newTestGuard(false)
	nav := NewNavigator(g, zerolog.Nop())
	var seen []string
	nav.Subscribe(func(l Location) { seen = append(seen, l.Path) })

	loc, err := nav.Navigate(context.Background(), "/file")
	require.NoError(t, err)
	assert.Equal(t, "/login?redirect=%2Ffile", loc.Path)
	assert.Equal(t, "Login", loc.Title)
	assert.Equal(t, []string{"/login?redirect=%2Ffile"}, seen)
	assert.Equal(t, loc, nav.Current())
}

func TestNavigator_ForceLoginRemembersLocation(t *testing.T) {
	g, sess := newTestGuard(true)
	nav := NewNavigator(g, zerolog.Nop())
	_, err := nav.Navigate(context.Background(), "/repo")
	require.NoError(t, err)

	sess.valid = false
	nav.ForceLogin(context.Background())
	assert.Equal(t, "/login?redirect=%2Frepo", nav.Current().Path)
	assert.Equal(t, "/repo", g.PostLoginTarget(nav.Current().Path))

	// A second signal while already on the login page keeps the return target.
	nav.ForceLogin(context.Background())
	assert.Equal(t, "/login?redirect=%2Frepo", nav.Current().Path)
}

func TestNavigator_ForceLoginWithoutHistory(t *testing.T) {
	g, _ := newTestGuard(false)
	nav := NewNavigator(g, zerolog.Nop())
	nav.ForceLogin(context.Background())
	assert.Equal(t, "/login", nav.Current().Path)
}

func TestNavigator_RedirectLoopFails(t *testing.T) {
	table := Table{
		Routes: []Route{
			{Path: "/login", Title: "Login", RequiresAuth: true},
			{Path: "/home"},
			{Path: "/404"},
		},
		Login:    "/login",
		Landing:  "/home",
		NotFound: "/404",
	}
	nav := NewNavigator(NewGuard(table, &fakeSession{}, zerolog.Nop()), zerolog.Nop())
	_, err := nav.Navigate(context.Background(), "/login")
	assert.Error(t, err)
}

func TestParseTable(t *testing.T) {
	t.Setenv("REPODESK_LANDING", "/home")
	data := []byte(`
routes:
  - path: /login
    title: Sign in
  - path: /home
    title: Home
    requires_auth: true
  - path: /
    redirect: /home
  - path: /missing
    title: Not found
login: /login
landing: ${REPODESK_LANDING}
not_found: /missing
`)
	table, err := ParseTable(data)
	require.NoError(t, err)
	assert.Equal(t, "/home", table.Landing)

	g := NewGuard(table, &fakeSession{}, zerolog.Nop())
	d := g.Resolve(context.Background(), "/")
	assert.Equal(t, Redirect, d.Kind)
	assert.Equal(t, "/login?redirect=%2Fhome", d.Location)
}

func TestParseTable_Invalid(t *testing.T) {
	tests := map[string]string{
		"relative path":    "routes: [{path: login}]\nlogin: /login\nlanding: /login\nnot_found: /login\n",
		"duplicate":        "routes: [{path: /a}, {path: /a/}]\nlogin: /a\nlanding: /a\nnot_found: /a\n",
		"unknown redirect": "routes: [{path: /a, redirect: /b}]\nlogin: /a\nlanding: /a\nnot_found: /a\n",
		"missing login":    "routes: [{path: /a}]\nlanding: /a\nnot_found: /a\n",
		"bad yaml":         "routes: [",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTable([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadTable(t *testing.T) {
	_, err := LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(file, []byte("routes: [{path: /a}]\nlogin: /a\nlanding: /a\nnot_found: /a\n"), 0o600))
	table, err := LoadTable(file)
	require.NoError(t, err)
	assert.Len(t, table.Routes, 1)
}
