package auth

// Package auth contains simple hand-written test doubles for session ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/skala/skip-session/internal/adapters/memstore"
	"github.com/skala/skip-session/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthAPI       = (*FakeAuthAPI)(nil)
	_ ports.KeyValueStore = (*MemoryKeyValueStore)(nil)
	_ ports.Navigator     = (*RecordingNavigator)(nil)
	_ ports.Notifier      = (*RecordingNotifier)(nil)
)

// FakeAuthAPI simulates the auth backend with deterministic tokens.
type FakeAuthAPI struct {
	LoginFunc          func(ctx context.Context, req ports.LoginRequest) (ports.LoginResult, error)
	CurrentUserFunc    func(ctx context.Context) (ports.UserProfile, error)
	SetPasswordFunc    func(ctx context.Context, newPassword string) error
	ChangePasswordFunc func(ctx context.Context, currentPassword, newPassword string) error

	// Deterministic values for predictable testing
	TokenPrefix string
	DefaultUser ports.UserProfile

	mu         sync.Mutex
	loginCalls int
	meCalls    int
}

// NewFakeAuthAPI creates a FakeAuthAPI with sensible defaults.
func NewFakeAuthAPI() *FakeAuthAPI {
	return &FakeAuthAPI{
		TokenPrefix: "token",
		DefaultUser: ports.UserProfile{
			UserID:   1,
			UserName: "Mock User",
			Email:    "mock.user@example.com",
			UserRole: "USER",
		},
	}
}

func (f *FakeAuthAPI) Login(ctx context.Context, req ports.LoginRequest) (ports.LoginResult, error) {
	f.mu.Lock()
	f.loginCalls++
	n := f.loginCalls
	f.mu.Unlock()

	if f.LoginFunc != nil {
		return f.LoginFunc(ctx, req)
	}

	prefix := f.TokenPrefix
	if prefix == "" {
		prefix = "token"
	}
	return ports.LoginResult{
		AccessToken: fmt.Sprintf("%s-%d", prefix, n),
		TokenType:   "Bearer",
		User: ports.LoginSummary{
			ID:         f.DefaultUser.UserID,
			Name:       f.DefaultUser.UserName,
			Role:       f.DefaultUser.UserRole,
			FirstLogin: f.DefaultUser.FirstLoginFlag,
		},
	}, nil
}

func (f *FakeAuthAPI) CurrentUser(ctx context.Context) (ports.UserProfile, error) {
	f.mu.Lock()
	f.meCalls++
	f.mu.Unlock()

	if f.CurrentUserFunc != nil {
		return f.CurrentUserFunc(ctx)
	}
	return f.DefaultUser, nil
}

func (f *FakeAuthAPI) SetPassword(ctx context.Context, newPassword string) error {
	if f.SetPasswordFunc != nil {
		return f.SetPasswordFunc(ctx, newPassword)
	}
	if newPassword == "" {
		return errors.New("password is required")
	}
	return nil
}

func (f *FakeAuthAPI) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	if f.ChangePasswordFunc != nil {
		return f.ChangePasswordFunc(ctx, currentPassword, newPassword)
	}
	if currentPassword == "" || newPassword == "" {
		return errors.New("password is required")
	}
	return nil
}

// LoginCalls returns how many times Login was invoked.
func (f *FakeAuthAPI) LoginCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls
}

// CurrentUserCalls returns how many times CurrentUser was invoked.
func (f *FakeAuthAPI) CurrentUserCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meCalls
}

// MemoryKeyValueStore wraps the process-local slot with error injection and
// raw reads for unit tests. It is safe for concurrent use.
type MemoryKeyValueStore struct {
	once sync.Once
	slot *memstore.Store

	// Err, when set, is returned by every operation. Set it before the store
	// is shared.
	Err error
}

// NewMemoryKeyValueStore creates a new in-memory key-value store.
func NewMemoryKeyValueStore() *MemoryKeyValueStore {
	return &MemoryKeyValueStore{slot: memstore.New()}
}

func (m *MemoryKeyValueStore) store() *memstore.Store {
	m.once.Do(func() {
		if m.slot == nil {
			m.slot = memstore.New()
		}
	})
	return m.slot
}

func (m *MemoryKeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	if m.Err != nil {
		return "", false, m.Err
	}
	return m.store().Get(ctx, key)
}

func (m *MemoryKeyValueStore) Set(ctx context.Context, key, value string) error {
	if m.Err != nil {
		return m.Err
	}
	return m.store().Set(ctx, key, value)
}

func (m *MemoryKeyValueStore) Remove(ctx context.Context, key string) error {
	if m.Err != nil {
		return m.Err
	}
	return m.store().Remove(ctx, key)
}

// Peek returns the raw stored value without error injection.
func (m *MemoryKeyValueStore) Peek(key string) (string, bool) {
	v, ok, _ := m.store().Get(context.Background(), key)
	return v, ok
}

// RecordingNavigator remembers every path it was asked to navigate to.
type RecordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *RecordingNavigator) Navigate(_ context.Context, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
	return nil
}

// Paths returns a copy of the recorded navigation targets.
func (n *RecordingNavigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

// RecordingNotifier remembers every notice shown.
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *RecordingNotifier) Notify(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

// Messages returns a copy of the recorded notices.
func (n *RecordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}
