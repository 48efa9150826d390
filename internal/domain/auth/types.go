// Package auth contains domain-level types for the client session lifecycle.
// It is pure and free of transport/storage concerns.
package auth

// MaxLoginAttempts is the advisory failed-login budget shown to the user.
// The server owns actual account locking.
const MaxLoginAttempts = 5

// CredentialKey is the default durable slot key holding the bearer credential.
const CredentialKey = "access_token"

// Identity represents the authenticated principal as reported by the backend.
// Adapters map the wire-level user payload into this shape.
type Identity struct {
	ID         int64
	Name       string
	Email      string
	Role       string
	FirstLogin bool // must change password before reaching any other protected route
}

// State is a point-in-time copy of the session record.
// The zero value is a freshly initialized session.
type State struct {
	Identity        *Identity
	Credential      string
	IsAuthenticated bool
	IsLoading       bool
	LastError       string
	FailedAttempts  int
}

// HasIdentity reports whether an identity is attached to the session.
func (s State) HasIdentity() bool { return s.Identity != nil }

// RemainingAttempts returns how many login attempts remain before the
// advisory limit is reached. Never negative.
func RemainingAttempts(failed int) int {
	if remaining := MaxLoginAttempts - failed; remaining > 0 {
		return remaining
	}
	return 0
}

// Clone returns a deep copy of the identity, or nil.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	cp := *i
	return &cp
}
