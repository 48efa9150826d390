// Package ports defines interfaces (hexagonal ports) for session-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.
package ports

import "context"

// LoginRequest carries the credentials submitted by the user.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginSummary is the user summary embedded in a login response.
type LoginSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	FirstLogin bool   `json:"firstLogin"`
}

// LoginResult is the payload returned by a successful login.
type LoginResult struct {
	AccessToken string       `json:"accessToken"`
	TokenType   string       `json:"tokenType"`
	User        LoginSummary `json:"user"`
}

// UserProfile is the current-user payload returned by the backend.
type UserProfile struct {
	UserID            int64  `json:"userId"`
	UserName          string `json:"userName"`
	Email             string `json:"email"`
	UserRole          string `json:"userRole"`
	FirstLoginFlag    bool   `json:"firstLoginFlag"`
	AccountLocked     bool   `json:"accountLocked"`
	PasswordUpdatedAt string `json:"passwordUpdatedAt"`
	CreatedAt         string `json:"createdAt"`
}

// AuthAPI is the remote authentication collaborator.
// Errors returned by implementations carry a user-displayable message.
type AuthAPI interface {
	Login(ctx context.Context, req LoginRequest) (LoginResult, error)
	CurrentUser(ctx context.Context) (UserProfile, error)
	SetPassword(ctx context.Context, newPassword string) error
	ChangePassword(ctx context.Context, currentPassword, newPassword string) error
}

// KeyValueStore is the durable key-value slot that survives restarts.
// Get reports ok=false when the key is absent.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Navigator moves the application to a path. It must be callable from a
// context with no route transition in progress.
type Navigator interface {
	Navigate(ctx context.Context, path string) error
}

// Notifier shows a blocking notice to the user.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// SessionTerminator clears the in-memory session after the transport has
// observed an authorization failure.
type SessionTerminator interface {
	TerminateSession(ctx context.Context)
}
