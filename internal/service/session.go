package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	domainauth "github.com/skala/skip-session/internal/domain/auth"
	apperrors "github.com/skala/skip-session/internal/errors"
	"github.com/skala/skip-session/internal/observability/metrics"
	"github.com/skala/skip-session/internal/ports"
)

// SessionStoreOptions groups dependencies for SessionStore.
type SessionStoreOptions struct {
	API     ports.AuthAPI       // Required: remote auth collaborator
	Storage ports.KeyValueStore // Required: durable credential slot
	Config  SessionStoreConfig  // Optional
}

// SessionStoreConfig holds optional settings for SessionStore.
type SessionStoreConfig struct {
	CredentialKey string // defaults to domainauth.CredentialKey
	Logger        *slog.Logger
	Metrics       metrics.Recorder
}

// SessionStore owns the session record and its mutation protocol.
//
// Actions that call the backend (Login, CheckAuth, SetPassword,
// ChangePassword) run one at a time. Field access is guarded separately so
// the request pipeline can terminate the session while an action is waiting
// on the network. Every mutator writes the durable slot and the in-memory
// record under the same lock, keeping IsAuthenticated equal to "slot holds a
// credential".
type SessionStore struct {
	api     ports.AuthAPI
	storage ports.KeyValueStore
	key     string
	logger  *slog.Logger
	metrics metrics.Recorder

	actions sync.Mutex

	mu    sync.RWMutex
	state domainauth.State
}

var _ ports.SessionTerminator = (*SessionStore)(nil)

// NewSessionStore constructs a SessionStore in the freshly initialized state.
func NewSessionStore(opts SessionStoreOptions) *SessionStore {
	if opts.API == nil {
		panic("AuthAPI is required")
	}
	if opts.Storage == nil {
		panic("KeyValueStore is required")
	}

	key := opts.Config.CredentialKey
	if key == "" {
		key = domainauth.CredentialKey
	}
	logger := opts.Config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionStore{
		api:     opts.API,
		storage: opts.Storage,
		key:     key,
		logger:  logger.With("component", "session"),
		metrics: metrics.OrNoop(opts.Config.Metrics),
	}
}

// Login authenticates with email and password. The credential is committed
// before the identity is fetched and is kept if that fetch fails; the next
// CheckAuth repairs such a session.
func (s *SessionStore) Login(ctx context.Context, email, password string) bool {
	s.actions.Lock()
	defer s.actions.Unlock()

	s.beginAction()
	defer s.setLoading(false)

	res, err := s.api.Login(ctx, ports.LoginRequest{Email: email, Password: password})
	if err != nil {
		return s.loginFailed(ctx, "login request", apperrors.Message(err, domainauth.MsgLoginFailed), err)
	}

	if err := s.commitCredential(ctx, res.AccessToken); err != nil {
		return s.loginFailed(ctx, "commit credential", domainauth.MsgLoginFailed, err)
	}

	profile, err := s.api.CurrentUser(ctx)
	if err != nil {
		return s.loginFailed(ctx, "fetch identity", apperrors.Message(err, domainauth.MsgLoginFailed), err)
	}

	identity := identityFromProfile(profile)
	s.mu.Lock()
	if s.state.Credential == res.AccessToken {
		s.state.Identity = identity
	}
	s.state.FailedAttempts = 0
	s.mu.Unlock()

	s.metrics.LoginAttempt(metrics.ResultSuccess)
	s.logger.InfoContext(ctx, "login succeeded", "user_id", identity.ID, "first_login", identity.FirstLogin)
	return true
}

func (s *SessionStore) loginFailed(ctx context.Context, stage, message string, err error) bool {
	s.mu.Lock()
	s.state.FailedAttempts++
	s.state.LastError = message
	failed := s.state.FailedAttempts
	s.mu.Unlock()

	s.metrics.LoginAttempt(metrics.ResultError)
	s.logger.WarnContext(ctx, "login failed",
		"stage", stage,
		"failed_attempts", failed,
		"error", err,
	)
	return false
}

// CheckAuth adopts the durable credential and refreshes the identity. Any
// identity fetch failure is treated as an invalid credential and silently
// logs out. No-op when the slot is empty.
func (s *SessionStore) CheckAuth(ctx context.Context) {
	s.actions.Lock()
	defer s.actions.Unlock()

	cred, ok, err := s.storage.Get(ctx, s.key)
	if err != nil {
		s.logger.WarnContext(ctx, "read durable credential failed", "error", err)
		return
	}
	if !ok || cred == "" {
		return
	}

	s.mu.Lock()
	s.state.Credential = cred
	s.state.IsAuthenticated = true
	s.mu.Unlock()

	profile, err := s.api.CurrentUser(ctx)
	if err != nil {
		s.logger.InfoContext(ctx, "stored credential rejected, logging out", "error", err)
		if clearErr := s.ClearAuth(ctx); clearErr != nil {
			s.logger.WarnContext(ctx, "clear session after rejected credential failed", "error", clearErr)
		}
		return
	}

	identity := identityFromProfile(profile)
	s.mu.Lock()
	if s.state.Credential == cred {
		s.state.Identity = identity
	}
	s.mu.Unlock()
}

// SetAuth installs an identity and credential, writing the durable slot.
func (s *SessionStore) SetAuth(ctx context.Context, identity domainauth.Identity, credential string) error {
	if credential == "" {
		return apperrors.ValidationField("credential", "credential is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Set(ctx, s.key, credential); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "persist credential")
	}
	s.state.Identity = &identity
	s.state.Credential = credential
	s.state.IsAuthenticated = true
	return nil
}

// ClearAuth drops identity, credential and last error and removes the
// durable slot. The failed-attempt counter survives. The in-memory session
// is cleared even when the slot removal fails.
func (s *SessionStore) ClearAuth(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.storage.Remove(ctx, s.key)
	s.clearLocked()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "remove credential")
	}
	return nil
}

// Logout ends the session locally. Server-side invalidation is not
// attempted.
func (s *SessionStore) Logout(ctx context.Context) error {
	if err := s.ClearAuth(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.logger.InfoContext(ctx, "logged out")
	return nil
}

// TerminateSession clears the in-memory session after the request pipeline
// removed the durable credential. A credential stored again since then
// belongs to a newer login and is left alone.
func (s *SessionStore) TerminateSession(ctx context.Context) {
	if s.clearIfSlotEmpty(ctx) {
		s.logger.InfoContext(ctx, "session terminated")
	}
}

// Reconcile clears the in-memory session when another process emptied the
// durable slot.
func (s *SessionStore) Reconcile(ctx context.Context) {
	if s.clearIfSlotEmpty(ctx) {
		s.logger.InfoContext(ctx, "durable credential removed externally, session cleared")
	}
}

func (s *SessionStore) clearIfSlotEmpty(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.IsAuthenticated && s.state.Identity == nil {
		return false
	}
	_, ok, err := s.storage.Get(ctx, s.key)
	if err != nil {
		s.logger.WarnContext(ctx, "read durable credential failed", "error", err)
		return false
	}
	if ok {
		return false
	}
	s.clearLocked()
	return true
}

// SetPassword sets the first password of the account. On success the local
// first-login flag is cleared without re-fetching the identity.
func (s *SessionStore) SetPassword(ctx context.Context, newPassword string) bool {
	s.actions.Lock()
	defer s.actions.Unlock()

	s.beginAction()
	defer s.setLoading(false)

	if err := s.api.SetPassword(ctx, newPassword); err != nil {
		s.passwordFailed(ctx, err)
		return false
	}

	s.mu.Lock()
	if s.state.Identity != nil {
		id := *s.state.Identity
		id.FirstLogin = false
		s.state.Identity = &id
	}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "password set")
	return true
}

// ChangePassword replaces the account password given the current one.
func (s *SessionStore) ChangePassword(ctx context.Context, currentPassword, newPassword string) bool {
	s.actions.Lock()
	defer s.actions.Unlock()

	s.beginAction()
	defer s.setLoading(false)

	if err := s.api.ChangePassword(ctx, currentPassword, newPassword); err != nil {
		s.passwordFailed(ctx, err)
		return false
	}

	s.logger.InfoContext(ctx, "password changed")
	return true
}

func (s *SessionStore) passwordFailed(ctx context.Context, err error) {
	s.mu.Lock()
	s.state.LastError = apperrors.Message(err, domainauth.MsgPasswordChangeFailed)
	s.mu.Unlock()
	s.logger.WarnContext(ctx, "password update failed", "error", err)
}

func (s *SessionStore) commitCredential(ctx context.Context, credential string) error {
	if credential == "" {
		return errors.New("empty credential")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Set(ctx, s.key, credential); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	s.state.Credential = credential
	s.state.IsAuthenticated = true
	return nil
}

func (s *SessionStore) beginAction() {
	s.mu.Lock()
	s.state.IsLoading = true
	s.state.LastError = ""
	s.mu.Unlock()
}

func (s *SessionStore) setLoading(v bool) {
	s.mu.Lock()
	s.state.IsLoading = v
	s.mu.Unlock()
}

// clearLocked resets the session fields owned by logout. Callers hold mu.
func (s *SessionStore) clearLocked() {
	s.state.Identity = nil
	s.state.Credential = ""
	s.state.IsAuthenticated = false
	s.state.LastError = ""
}

func identityFromProfile(p ports.UserProfile) *domainauth.Identity {
	return &domainauth.Identity{
		ID:         p.UserID,
		Name:       p.UserName,
		Email:      p.Email,
		Role:       p.UserRole,
		FirstLogin: p.FirstLoginFlag,
	}
}

// Snapshot returns a copy of the session record.
func (s *SessionStore) Snapshot() domainauth.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Identity = s.state.Identity.Clone()
	return st
}

// Identity returns a copy of the current identity, or nil.
func (s *SessionStore) Identity() *domainauth.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Identity.Clone()
}

func (s *SessionStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

func (s *SessionStore) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsLoading
}

func (s *SessionStore) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.LastError
}

func (s *SessionStore) FailedAttempts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.FailedAttempts
}

// RemainingAttempts is the advisory number of logins left before the limit.
func (s *SessionStore) RemainingAttempts() int {
	return domainauth.RemainingAttempts(s.FailedAttempts())
}

func (s *SessionStore) UserName() string {
	if id := s.Identity(); id != nil {
		return id.Name
	}
	return ""
}

func (s *SessionStore) UserEmail() string {
	if id := s.Identity(); id != nil {
		return id.Email
	}
	return ""
}

func (s *SessionStore) UserRole() string {
	if id := s.Identity(); id != nil {
		return id.Role
	}
	return ""
}

// IsFirstLogin reports whether the account must change its password first.
func (s *SessionStore) IsFirstLogin() bool {
	if id := s.Identity(); id != nil {
		return id.FirstLogin
	}
	return false
}
