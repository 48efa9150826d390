package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/skala/skip-session/internal/domain/auth"
	apperrors "github.com/skala/skip-session/internal/errors"
	"github.com/skala/skip-session/internal/mocks"
	authmocks "github.com/skala/skip-session/internal/mocks/auth"
	"github.com/skala/skip-session/internal/observability/metrics"
	"github.com/skala/skip-session/internal/ports"
	"go.uber.org/mock/gomock"
)

var (
	loginRoute  = domainauth.Route{Name: "Login", Path: "/login"}
	changeRoute = domainauth.Route{Name: "ChangePassword", Path: "/change-password", RequiresAuth: true}
	homeRoute   = domainauth.Route{Name: "Home", Path: "/", RequiresAuth: true}
	newsRoute   = domainauth.Route{Name: "News", Path: "/news", RequiresAuth: true}
	publicRoute = domainauth.Route{Name: "About", Path: "/about"}
)

type guardFixture struct {
	api      *authmocks.FakeAuthAPI
	storage  *authmocks.MemoryKeyValueStore
	session  *SessionStore
	notifier *mocks.MockNotifier
	guard    *Guard
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &guardFixture{
		api:      authmocks.NewFakeAuthAPI(),
		storage:  authmocks.NewMemoryKeyValueStore(),
		notifier: mocks.NewMockNotifier(ctrl),
	}
	f.session = NewSessionStore(SessionStoreOptions{API: f.api, Storage: f.storage})
	f.guard = NewGuard(GuardOptions{
		Session: f.session,
		Storage: f.storage,
		Config:  GuardConfig{Notifier: f.notifier},
	})
	return f
}

func (f *guardFixture) withCredential(t *testing.T) {
	t.Helper()
	require.NoError(t, f.storage.Set(context.Background(), domainauth.CredentialKey, "cred"))
}

func TestNewGuard_RequiresDependencies(t *testing.T) {
	assert.Panics(t, func() { NewGuard(GuardOptions{Storage: authmocks.NewMemoryKeyValueStore()}) })
	assert.Panics(t, func() {
		NewGuard(GuardOptions{Session: NewSessionStore(SessionStoreOptions{
			API: authmocks.NewFakeAuthAPI(), Storage: authmocks.NewMemoryKeyValueStore(),
		})})
	})
}

func TestGuard_ProtectedRouteWithoutCredential(t *testing.T) {
	f := newGuardFixture(t)

	d := f.guard.Before(context.Background(), newsRoute)

	assert.Equal(t, Decision{Kind: DecisionRedirectLogin, Path: "/login"}, d)
	assert.False(t, d.Allowed())
	assert.Zero(t, f.api.CurrentUserCalls())
}

func TestGuard_LoginRouteWithCredential(t *testing.T) {
	f := newGuardFixture(t)
	f.withCredential(t)

	d := f.guard.Before(context.Background(), loginRoute)

	assert.Equal(t, Decision{Kind: DecisionRedirectHome, Path: "/"}, d)
	assert.Zero(t, f.api.CurrentUserCalls(), "no re-check before redirecting home")
}

func TestGuard_LoginRouteWithoutCredential(t *testing.T) {
	f := newGuardFixture(t)

	assert.True(t, f.guard.Before(context.Background(), loginRoute).Allowed())
}

func TestGuard_PublicRouteWithoutCredential(t *testing.T) {
	f := newGuardFixture(t)

	assert.True(t, f.guard.Before(context.Background(), publicRoute).Allowed())
}

func TestGuard_FirstLoginRedirectsToChangePassword(t *testing.T) {
	f := newGuardFixture(t)
	f.withCredential(t)
	f.api.DefaultUser.FirstLoginFlag = true
	f.notifier.EXPECT().Notify(gomock.Any(), domainauth.MsgFirstLoginNotice).Times(1)

	d := f.guard.Before(context.Background(), newsRoute)

	assert.Equal(t, Decision{Kind: DecisionRedirectChangePassword, Path: "/change-password"}, d)
	assert.Equal(t, 1, f.api.CurrentUserCalls())
}

func TestGuard_FirstLoginMayReachChangePassword(t *testing.T) {
	f := newGuardFixture(t)
	f.withCredential(t)
	f.api.DefaultUser.FirstLoginFlag = true

	d := f.guard.Before(context.Background(), changeRoute)

	assert.True(t, d.Allowed())
	assert.Zero(t, f.api.CurrentUserCalls(), "password-change route skips the re-check")
}

func TestGuard_ReChecksOnEveryProtectedNavigation(t *testing.T) {
	f := newGuardFixture(t)
	f.withCredential(t)
	ctx := context.Background()

	require.True(t, f.guard.Before(ctx, homeRoute).Allowed())
	require.True(t, f.guard.Before(ctx, newsRoute).Allowed())
	assert.Equal(t, 2, f.api.CurrentUserCalls())

	// Server flips the flag; the next navigation must observe it.
	f.api.DefaultUser.FirstLoginFlag = true
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(1)

	d := f.guard.Before(ctx, homeRoute)
	assert.Equal(t, DecisionRedirectChangePassword, d.Kind)
}

func TestGuard_StaleCachedFlagIsNotTrusted(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()
	f.api.DefaultUser.FirstLoginFlag = true
	require.True(t, f.session.Login(ctx, "a@example.com", "pw"))
	require.True(t, f.session.IsFirstLogin())

	// Password was changed elsewhere.
	f.api.DefaultUser.FirstLoginFlag = false

	assert.True(t, f.guard.Before(ctx, newsRoute).Allowed())
}

func TestGuard_InvalidCredentialOnReCheck(t *testing.T) {
	f := newGuardFixture(t)
	f.withCredential(t)
	f.api.CurrentUserFunc = func(context.Context) (ports.UserProfile, error) {
		return ports.UserProfile{}, apperrors.New(apperrors.ErrCodeUnauthorized, "Token expired")
	}

	d := f.guard.Before(context.Background(), newsRoute)

	assert.Equal(t, Decision{Kind: DecisionRedirectLogin, Path: "/login"}, d)
	_, ok := f.storage.Peek(domainauth.CredentialKey)
	assert.False(t, ok, "re-check failure logs out")
}

func TestGuard_StorageErrorTreatedAsNoCredential(t *testing.T) {
	ctrl := gomock.NewController(t)
	storage := mocks.NewMockKeyValueStore(ctrl)
	storage.EXPECT().Get(gomock.Any(), domainauth.CredentialKey).Return("", false, errors.New("unavailable"))

	session := NewSessionStore(SessionStoreOptions{API: authmocks.NewFakeAuthAPI(), Storage: storage})
	guard := NewGuard(GuardOptions{Session: session, Storage: storage})

	d := guard.Before(context.Background(), newsRoute)

	assert.Equal(t, DecisionRedirectLogin, d.Kind)
}

type recordingMetrics struct {
	metrics.Noop
	mu        sync.Mutex
	decisions []string
}

func (r *recordingMetrics) GuardDecision(d string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, d)
}

func TestGuard_CustomPathsAndMetrics(t *testing.T) {
	rec := &recordingMetrics{}
	storage := authmocks.NewMemoryKeyValueStore()
	session := NewSessionStore(SessionStoreOptions{API: authmocks.NewFakeAuthAPI(), Storage: storage})
	guard := NewGuard(GuardOptions{
		Session: session,
		Storage: storage,
		Config: GuardConfig{
			LoginPath: "/signin",
			Metrics:   rec,
		},
	})

	d := guard.Before(context.Background(), newsRoute)
	require.Equal(t, "/signin", d.Path)
	require.True(t, guard.Before(context.Background(), publicRoute).Allowed())

	assert.Equal(t, []string{string(DecisionRedirectLogin), string(DecisionAllow)}, rec.decisions)
}
