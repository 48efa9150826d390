package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	domainauth "github.com/skala/skip-session/internal/domain/auth"
	"github.com/skala/skip-session/internal/observability/metrics"
	"github.com/skala/skip-session/internal/ports"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// TransportOptions groups dependencies for Transport.
type TransportOptions struct {
	Base          http.RoundTripper
	Storage       ports.KeyValueStore
	CredentialKey string

	// Navigator enables session-expiry handling. Leave nil for backends
	// without a session concept.
	Navigator ports.Navigator
	// LoginPath is where the application is sent after a forced logout.
	LoginPath string
	// LoginEndpoint identifies the login request; its 401 means bad
	// credentials rather than an expired session.
	LoginEndpoint string

	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// Transport injects the stored bearer credential into every request and
// terminates the session when the backend answers 401.
type Transport struct {
	base          http.RoundTripper
	storage       ports.KeyValueStore
	key           string
	navigator     ports.Navigator
	loginPath     string
	loginEndpoint string
	logger        *slog.Logger
	metrics       metrics.Recorder

	mu      sync.RWMutex
	session ports.SessionTerminator

	terminations singleflight.Group
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport constructs a Transport.
func NewTransport(opts TransportOptions) *Transport {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	key := opts.CredentialKey
	if key == "" {
		key = domainauth.CredentialKey
	}
	loginPath := opts.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}
	loginEndpoint := opts.LoginEndpoint
	if loginEndpoint == "" {
		loginEndpoint = "/auth/login"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		base:          base,
		storage:       opts.Storage,
		key:           key,
		navigator:     opts.Navigator,
		loginPath:     loginPath,
		loginEndpoint: loginEndpoint,
		logger:        logger,
		metrics:       metrics.OrNoop(opts.Metrics),
	}
}

// BindSession registers the in-memory session cleared on forced logout.
func (t *Transport) BindSession(s ports.SessionTerminator) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = s
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	cred := t.credential(ctx)

	out := req.Clone(ctx)
	if cred != "" {
		(&oauth2.Token{AccessToken: cred, TokenType: "Bearer"}).SetAuthHeader(out)
	}
	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.NewString())
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && t.navigator != nil && !t.isLoginRequest(out) {
		t.terminate(context.WithoutCancel(ctx), cred)
	}
	return resp, nil
}

func (t *Transport) credential(ctx context.Context) string {
	if t.storage == nil {
		return ""
	}
	v, ok, err := t.storage.Get(ctx, t.key)
	if err != nil {
		t.logger.WarnContext(ctx, "read credential failed", "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

func (t *Transport) isLoginRequest(req *http.Request) bool {
	return strings.Contains(req.URL.Path, t.loginEndpoint)
}

// terminate removes the durable credential, clears the bound session and
// navigates to the login path. Responses racing on the same credential
// collapse into one termination. When the request carried a credential that
// was since removed or replaced by a newer login, nothing happens. A request
// sent without a credential still redirects unless a login has landed since.
func (t *Transport) terminate(ctx context.Context, sent string) {
	_, _, _ = t.terminations.Do(sent, func() (any, error) {
		if t.storage != nil {
			current, ok, err := t.storage.Get(ctx, t.key)
			switch {
			case err != nil:
				t.logger.WarnContext(ctx, "read credential before termination failed", "error", err)
			case ok && current != sent:
				t.logger.InfoContext(ctx, "skipping termination, credential was replaced")
				return nil, nil
			case !ok && sent != "":
				return nil, nil
			}
		}

		if t.storage != nil && sent != "" {
			if err := t.storage.Remove(ctx, t.key); err != nil {
				t.logger.ErrorContext(ctx, "remove credential failed", "error", err)
			}
		}

		t.mu.RLock()
		session := t.session
		t.mu.RUnlock()
		if session != nil {
			session.TerminateSession(ctx)
		}

		t.metrics.ForcedLogout()
		t.logger.InfoContext(ctx, "session terminated after unauthorized response", "redirect", t.loginPath)

		if err := t.navigator.Navigate(ctx, t.loginPath); err != nil {
			t.logger.ErrorContext(ctx, "navigate to login failed", "error", err)
		}
		return nil, nil
	})
}
