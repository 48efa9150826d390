package httpapi

import (
	"context"
	"net/http"

	"github.com/skala/skip-session/internal/ports"
)

// AuthBasePath is the prefix of the authentication endpoints.
const AuthBasePath = "/api/v1/auth"

// envelope is the backend's standard response wrapper.
type envelope[T any] struct {
	Success bool         `json:"success"`
	Data    *T           `json:"data,omitempty"`
	Error   *errorDetail `json:"error,omitempty"`
	Meta    *metaData    `json:"meta,omitempty"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}

type metaData struct {
	TraceID   string `json:"traceId,omitempty"`
	Timestamp string `json:"timestamp"`
}

type setPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AuthClient implements ports.AuthAPI over the primary backend.
type AuthClient struct {
	api *Client
}

var _ ports.AuthAPI = (*AuthClient)(nil)

// NewAuthClient wraps a primary-backend Client.
func NewAuthClient(api *Client) *AuthClient {
	return &AuthClient{api: api}
}

// Login posts credentials to /login.
func (a *AuthClient) Login(ctx context.Context, req ports.LoginRequest) (ports.LoginResult, error) {
	var env envelope[ports.LoginResult]
	if err := a.api.Do(ctx, http.MethodPost, AuthBasePath+"/login", req, &env); err != nil {
		return ports.LoginResult{}, err
	}
	data, err := unwrap(a.api, env)
	if err != nil {
		return ports.LoginResult{}, err
	}
	if data.AccessToken == "" {
		return ports.LoginResult{}, a.api.Reject(http.StatusOK, nil)
	}
	return *data, nil
}

// CurrentUser fetches /me.
func (a *AuthClient) CurrentUser(ctx context.Context) (ports.UserProfile, error) {
	var env envelope[ports.UserProfile]
	if err := a.api.Do(ctx, http.MethodGet, AuthBasePath+"/me", nil, &env); err != nil {
		return ports.UserProfile{}, err
	}
	data, err := unwrap(a.api, env)
	if err != nil {
		return ports.UserProfile{}, err
	}
	return *data, nil
}

// SetPassword sets the password of a first-login account.
func (a *AuthClient) SetPassword(ctx context.Context, newPassword string) error {
	var env envelope[struct{}]
	if err := a.api.Do(ctx, http.MethodPost, AuthBasePath+"/set-password",
		setPasswordRequest{NewPassword: newPassword}, &env); err != nil {
		return err
	}
	return rejected(a.api, env)
}

// ChangePassword changes the password given the current one.
func (a *AuthClient) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	var env envelope[struct{}]
	if err := a.api.Do(ctx, http.MethodPost, AuthBasePath+"/change-password",
		changePasswordRequest{CurrentPassword: currentPassword, NewPassword: newPassword}, &env); err != nil {
		return err
	}
	return rejected(a.api, env)
}

// unwrap returns the payload of a successful envelope.
func unwrap[T any](api *Client, env envelope[T]) (*T, error) {
	if err := rejected(api, env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, api.Reject(http.StatusOK, nil)
	}
	return env.Data, nil
}

// rejected reports a 2xx envelope that nonetheless carries an error.
func rejected[T any](api *Client, env envelope[T]) error {
	if env.Success || env.Error == nil || env.Data != nil {
		return nil
	}
	return api.Reject(http.StatusOK, map[string]any{
		"error": map[string]any{
			"code":    env.Error.Code,
			"message": env.Error.Message,
			"detail":  env.Error.Detail,
		},
	})
}
