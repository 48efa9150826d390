package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/skala/skip-session/internal/domain/auth"
	apperrors "github.com/skala/skip-session/internal/errors"
	authmocks "github.com/skala/skip-session/internal/mocks/auth"
	"github.com/skala/skip-session/internal/service"
)

func TestDefaultTable(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)

	routes := table.Routes()
	require.Len(t, routes, 10)

	login, err := table.Lookup(domainauth.LoginPath)
	require.NoError(t, err)
	assert.Equal(t, "Login", login.Name)
	assert.False(t, login.RequiresAuth)

	change, err := table.Lookup(domainauth.ChangePasswordPath)
	require.NoError(t, err)
	assert.True(t, change.RequiresAuth)

	for _, r := range routes {
		if r.Path != domainauth.LoginPath {
			assert.True(t, r.RequiresAuth, r.Name)
		}
	}
}

func TestTable_Lookup(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)

	r, err := table.Lookup("/news/?page=2")
	require.NoError(t, err)
	assert.Equal(t, "News", r.Name)

	r, err = table.Lookup("/")
	require.NoError(t, err)
	assert.Equal(t, "Home", r.Name)

	_, err = table.Lookup("/missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestParseTable_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "empty", yaml: "routes: []"},
		{name: "relative path", yaml: "routes:\n  - name: X\n    path: x\n"},
		{name: "duplicate", yaml: "routes:\n  - name: A\n    path: /a\n  - name: B\n    path: /a\n"},
		{name: "malformed", yaml: "routes: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTable([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

type routerFixture struct {
	api      *authmocks.FakeAuthAPI
	storage  *authmocks.MemoryKeyValueStore
	notifier *authmocks.RecordingNotifier
	session  *service.SessionStore
	router   *Router
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	table, err := DefaultTable()
	require.NoError(t, err)

	f := &routerFixture{
		api:      authmocks.NewFakeAuthAPI(),
		storage:  authmocks.NewMemoryKeyValueStore(),
		notifier: &authmocks.RecordingNotifier{},
	}
	f.session = service.NewSessionStore(service.SessionStoreOptions{API: f.api, Storage: f.storage})
	f.router = New(Options{
		Table: table,
		Guard: service.NewGuard(service.GuardOptions{
			Session: f.session,
			Storage: f.storage,
			Config:  service.GuardConfig{Notifier: f.notifier},
		}),
	})
	return f
}

func TestRouter_PushWithoutSessionLandsOnLogin(t *testing.T) {
	f := newRouterFixture(t)

	route, err := f.router.Push(context.Background(), "/report")

	require.NoError(t, err)
	assert.Equal(t, "Login", route.Name)
	cur, ok := f.router.Current()
	assert.True(t, ok)
	assert.Equal(t, domainauth.LoginPath, cur.Path)
}

func TestRouter_PushLoginWhileAuthenticatedGoesHome(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()
	require.True(t, f.session.Login(ctx, "a@example.com", "pw"))

	route, err := f.router.Push(ctx, "/login")

	require.NoError(t, err)
	assert.Equal(t, "Home", route.Name)
}

func TestRouter_FirstLoginForcedToChangePassword(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()
	f.api.DefaultUser.FirstLoginFlag = true
	require.True(t, f.session.Login(ctx, "a@example.com", "pw"))

	route, err := f.router.Push(ctx, "/chat")

	require.NoError(t, err)
	assert.Equal(t, "ChangePassword", route.Name)
	assert.Equal(t, []string{domainauth.MsgFirstLoginNotice}, f.notifier.Messages())

	require.True(t, f.session.SetPassword(ctx, "N3w!Passw0rd"))
	f.api.DefaultUser.FirstLoginFlag = false

	route, err = f.router.Push(ctx, "/chat")
	require.NoError(t, err)
	assert.Equal(t, "Chat", route.Name)
}

func TestRouter_UnknownRoute(t *testing.T) {
	f := newRouterFixture(t)

	_, err := f.router.Push(context.Background(), "/nowhere")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	err = f.router.Navigate(context.Background(), "/nowhere")
	assert.True(t, apperrors.IsNotFound(err))

	_, ok := f.router.Current()
	assert.False(t, ok)
}

func TestRouter_NavigateSkipsGuard(t *testing.T) {
	f := newRouterFixture(t)

	require.NoError(t, f.router.Navigate(context.Background(), "/report"))

	cur, _ := f.router.Current()
	assert.Equal(t, "Report", cur.Name)
	assert.Zero(t, f.api.CurrentUserCalls())
}

type loopGuard struct{}

func (loopGuard) Before(_ context.Context, to domainauth.Route) service.Decision {
	if to.Path == "/a" {
		return service.Decision{Kind: service.DecisionRedirectHome, Path: "/b"}
	}
	return service.Decision{Kind: service.DecisionRedirectHome, Path: "/a"}
}

func TestRouter_RedirectLoop(t *testing.T) {
	table, err := NewTable([]domainauth.Route{{Name: "A", Path: "/a"}, {Name: "B", Path: "/b"}})
	require.NoError(t, err)
	r := New(Options{Table: table, Guard: loopGuard{}})

	_, err = r.Push(context.Background(), "/a")

	assert.ErrorIs(t, err, ErrRedirectLoop)
}

type navigatingGuard struct {
	router *Router
}

func (g navigatingGuard) Before(ctx context.Context, _ domainauth.Route) service.Decision {
	// Simulates the pipeline redirecting while the guard waits on the backend.
	_ = g.router.Navigate(ctx, "/login")
	return service.Decision{Kind: service.DecisionAllow}
}

func TestRouter_HardNavigationDuringGuardWins(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)
	r := New(Options{Table: table})
	r.SetGuard(navigatingGuard{router: r})

	route, err := r.Push(context.Background(), "/news")

	require.NoError(t, err)
	assert.Equal(t, "Login", route.Name)
	cur, _ := r.Current()
	assert.Equal(t, "Login", cur.Name)
}

func TestRouter_NilGuardAllows(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)
	r := New(Options{Table: table})

	route, err := r.Push(context.Background(), "/carbon")

	require.NoError(t, err)
	assert.Equal(t, "Carbon", route.Name)
	assert.Same(t, table, r.Table())
}
