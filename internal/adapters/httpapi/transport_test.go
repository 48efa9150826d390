package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domainauth "github.com/skala/skip-session/internal/domain/auth"
	authmocks "github.com/skala/skip-session/internal/mocks/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type countingTerminator struct {
	calls atomic.Int32
}

func (c *countingTerminator) TerminateSession(context.Context) { c.calls.Add(1) }

type transportFixture struct {
	storage    *authmocks.MemoryKeyValueStore
	navigator  *authmocks.RecordingNavigator
	terminator *countingTerminator
	transport  *Transport
	client     *http.Client
}

func newTransportFixture(t *testing.T, withNavigator bool) *transportFixture {
	t.Helper()
	f := &transportFixture{
		storage:    authmocks.NewMemoryKeyValueStore(),
		navigator:  &authmocks.RecordingNavigator{},
		terminator: &countingTerminator{},
	}
	opts := TransportOptions{Storage: f.storage}
	if withNavigator {
		opts.Navigator = f.navigator
	}
	f.transport = NewTransport(opts)
	f.transport.BindSession(f.terminator)
	f.client = &http.Client{Transport: f.transport}
	return f
}

func (f *transportFixture) get(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestTransport_InjectsBearerCredential(t *testing.T) {
	var gotAuth, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get(RequestIDHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := newTransportFixture(t, true)
	require.NoError(t, f.storage.Set(context.Background(), domainauth.CredentialKey, "tok-1"))

	resp := f.get(t, srv.URL+"/api/v1/news")

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.NotEmpty(t, gotRequestID)
}

func TestTransport_NoCredentialNoHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newTransportFixture(t, true)
	f.get(t, srv.URL+"/api/v1/news")

	assert.Empty(t, gotAuth)
}

func TestTransport_StorageErrorSendsWithoutCredential(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newTransportFixture(t, true)
	f.storage.Err = assert.AnError

	resp := f.get(t, srv.URL+"/api/v1/news")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, gotAuth)
}

func TestTransport_PreservesCallerRequestID(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(RequestIDHeader)
	}))
	defer srv.Close()

	f := newTransportFixture(t, true)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "abc")
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "abc", got)
}

func TestTransport_UnauthorizedTerminatesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := newTransportFixture(t, true)
	require.NoError(t, f.storage.Set(context.Background(), domainauth.CredentialKey, "tok-1"))

	resp := f.get(t, srv.URL+"/api/v1/news")

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "caller still sees the failure")
	_, ok := f.storage.Peek(domainauth.CredentialKey)
	assert.False(t, ok)
	assert.Equal(t, []string{"/login"}, f.navigator.Paths())
	assert.EqualValues(t, 1, f.terminator.calls.Load())
}

func TestTransport_LoginUnauthorizedIsNotSessionExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := newTransportFixture(t, true)
	require.NoError(t, f.storage.Set(context.Background(), domainauth.CredentialKey, "tok-1"))

	f.get(t, srv.URL+"/api/v1/auth/login")

	v, ok := f.storage.Peek(domainauth.CredentialKey)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", v)
	assert.Empty(t, f.navigator.Paths())
	assert.Zero(t, f.terminator.calls.Load())
}

func TestTransport_UnauthorizedWithoutCredentialNavigatesToLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := newTransportFixture(t, true)
	resp := f.get(t, srv.URL+"/api/v1/news")

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, []string{"/login"}, f.navigator.Paths())
	assert.EqualValues(t, 1, f.terminator.calls.Load())
}

func TestTransport_UnauthorizedWithoutCredentialKeepsNewerLogin(t *testing.T) {
	f := newTransportFixture(t, true)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = f.storage.Set(context.Background(), domainauth.CredentialKey, "tok-1")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f.get(t, srv.URL+"/api/v1/news")

	v, ok := f.storage.Peek(domainauth.CredentialKey)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", v)
	assert.Empty(t, f.navigator.Paths())
}

func TestTransport_NoNavigatorNeverTerminates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := newTransportFixture(t, false)
	require.NoError(t, f.storage.Set(context.Background(), domainauth.CredentialKey, "tok-1"))

	f.get(t, srv.URL+"/analyze")

	_, ok := f.storage.Peek(domainauth.CredentialKey)
	assert.True(t, ok, "secondary backend keeps the credential")
	assert.Zero(t, f.terminator.calls.Load())
}

func TestTransport_StaleUnauthorizedKeepsNewerCredential(t *testing.T) {
	f := newTransportFixture(t, true)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// A newer login lands while this request is in flight.
		_ = f.storage.Set(context.Background(), domainauth.CredentialKey, "tok-2")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	require.NoError(t, f.storage.Set(context.Background(), domainauth.CredentialKey, "tok-1"))

	f.get(t, srv.URL+"/api/v1/news")

	v, ok := f.storage.Peek(domainauth.CredentialKey)
	assert.True(t, ok)
	assert.Equal(t, "tok-2", v)
	assert.Empty(t, f.navigator.Paths())
}

func TestTransport_ConcurrentUnauthorizedNavigatesOnce(t *testing.T) {
	const n = 8

	var (
		arrived atomic.Int32
		release = make(chan struct{})
		once    sync.Once
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if arrived.Add(1) == n {
			once.Do(func() { close(release) })
		}
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := newTransportFixture(t, true)
	require.NoError(t, f.storage.Set(context.Background(), domainauth.CredentialKey, "tok-1"))

	var g errgroup.Group
	for range n {
		g.Go(func() error {
			req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/api/v1/news", nil)
			if err != nil {
				return err
			}
			resp, err := f.client.Do(req)
			if err != nil {
				return err
			}
			return resp.Body.Close()
		})
	}
	require.NoError(t, g.Wait())

	_, ok := f.storage.Peek(domainauth.CredentialKey)
	assert.False(t, ok)
	assert.Equal(t, []string{"/login"}, f.navigator.Paths())
	assert.EqualValues(t, 1, f.terminator.calls.Load())
}

// blockingNavigator holds the first navigation until released.
type blockingNavigator struct {
	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	paths []string
}

func (n *blockingNavigator) Navigate(_ context.Context, path string) error {
	n.mu.Lock()
	n.paths = append(n.paths, path)
	first := len(n.paths) == 1
	n.mu.Unlock()
	if first {
		close(n.entered)
		<-n.release
	}
	return nil
}

func (n *blockingNavigator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.paths)
}

func TestTransport_ExpiryOfNewerCredentialDuringTermination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	storage := authmocks.NewMemoryKeyValueStore()
	nav := &blockingNavigator{entered: make(chan struct{}), release: make(chan struct{})}
	term := &countingTerminator{}
	tr := NewTransport(TransportOptions{Storage: storage, Navigator: nav})
	tr.BindSession(term)
	client := &http.Client{Transport: tr}

	do := func() <-chan error {
		done := make(chan error, 1)
		go func() {
			req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/api/v1/news", nil)
			if err != nil {
				done <- err
				return
			}
			resp, err := client.Do(req)
			if err == nil {
				err = resp.Body.Close()
			}
			done <- err
		}()
		return done
	}

	require.NoError(t, storage.Set(context.Background(), domainauth.CredentialKey, "tok-1"))
	first := do()
	select {
	case <-nav.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first termination did not navigate")
	}

	// A newer login lands and is rejected while the first termination is
	// still navigating.
	require.NoError(t, storage.Set(context.Background(), domainauth.CredentialKey, "tok-2"))
	second := do()

	select {
	case err := <-second:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		close(nav.release)
		t.Fatal("second termination waited on the first")
	}
	close(nav.release)
	require.NoError(t, <-first)

	_, ok := storage.Peek(domainauth.CredentialKey)
	assert.False(t, ok)
	assert.Equal(t, 2, nav.count())
	assert.EqualValues(t, 2, term.calls.Load())
}
