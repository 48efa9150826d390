package service

import (
	"context"
	"log/slog"

	domainauth "github.com/skala/skip-session/internal/domain/auth"
	"github.com/skala/skip-session/internal/observability/metrics"
	"github.com/skala/skip-session/internal/ports"
)

// DecisionKind is the outcome of a navigation guard evaluation.
type DecisionKind string

const (
	DecisionAllow                  DecisionKind = "allow"
	DecisionRedirectLogin          DecisionKind = "redirect_login"
	DecisionRedirectHome           DecisionKind = "redirect_home"
	DecisionRedirectChangePassword DecisionKind = "redirect_change_password"
)

// Decision tells the router whether to proceed or where to go instead.
type Decision struct {
	Kind DecisionKind
	// Path is the redirect target; empty for DecisionAllow.
	Path string
}

// Allowed reports whether the transition may proceed.
func (d Decision) Allowed() bool { return d.Kind == DecisionAllow }

// SessionChecker is the part of the session the guard consults.
type SessionChecker interface {
	CheckAuth(ctx context.Context)
	IsFirstLogin() bool
	IsAuthenticated() bool
}

// GuardOptions groups dependencies for Guard.
type GuardOptions struct {
	Session SessionChecker      // Required
	Storage ports.KeyValueStore // Required: durable credential slot
	Config  GuardConfig         // Optional
}

// GuardConfig holds optional settings for Guard.
type GuardConfig struct {
	CredentialKey      string
	LoginPath          string
	HomePath           string
	ChangePasswordPath string
	Notifier           ports.Notifier
	Logger             *slog.Logger
	Metrics            metrics.Recorder
}

// Guard decides every route transition before it happens.
type Guard struct {
	session  SessionChecker
	storage  ports.KeyValueStore
	key      string
	login    string
	home     string
	change   string
	notifier ports.Notifier
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewGuard constructs a Guard.
func NewGuard(opts GuardOptions) *Guard {
	if opts.Session == nil {
		panic("SessionChecker is required")
	}
	if opts.Storage == nil {
		panic("KeyValueStore is required")
	}

	cfg := opts.Config
	g := &Guard{
		session:  opts.Session,
		storage:  opts.Storage,
		key:      orDefault(cfg.CredentialKey, domainauth.CredentialKey),
		login:    orDefault(cfg.LoginPath, domainauth.LoginPath),
		home:     orDefault(cfg.HomePath, domainauth.HomePath),
		change:   orDefault(cfg.ChangePasswordPath, domainauth.ChangePasswordPath),
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		metrics:  metrics.OrNoop(cfg.Metrics),
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Before evaluates the transition to the target route. Rules, first match
// wins:
//
//  1. protected target without a credential: go to login
//  2. login target with a credential: go home
//  3. with a credential, any target but the password-change page re-checks
//     the session with the backend; a first-login account is told to change
//     its password and sent there
//  4. otherwise allow
func (g *Guard) Before(ctx context.Context, to domainauth.Route) Decision {
	d := g.decide(ctx, to)
	g.metrics.GuardDecision(string(d.Kind))
	if !d.Allowed() {
		g.logger.DebugContext(ctx, "navigation redirected", "to", to.Path, "redirect", d.Path, "decision", d.Kind)
	}
	return d
}

func (g *Guard) decide(ctx context.Context, to domainauth.Route) Decision {
	hasCredential := g.hasCredential(ctx)

	if to.RequiresAuth && !hasCredential {
		return Decision{Kind: DecisionRedirectLogin, Path: g.login}
	}
	if to.Path == g.login && hasCredential {
		return Decision{Kind: DecisionRedirectHome, Path: g.home}
	}
	if hasCredential && to.Path != g.change {
		g.session.CheckAuth(ctx)
		if g.session.IsFirstLogin() {
			if g.notifier != nil {
				g.notifier.Notify(ctx, domainauth.MsgFirstLoginNotice)
			}
			return Decision{Kind: DecisionRedirectChangePassword, Path: g.change}
		}
		// The re-check may have found the credential invalid.
		if to.RequiresAuth && !g.session.IsAuthenticated() {
			return Decision{Kind: DecisionRedirectLogin, Path: g.login}
		}
	}
	return Decision{Kind: DecisionAllow}
}

func (g *Guard) hasCredential(ctx context.Context) bool {
	v, ok, err := g.storage.Get(ctx, g.key)
	if err != nil {
		g.logger.WarnContext(ctx, "read durable credential failed", "error", err)
		return false
	}
	return ok && v != ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
