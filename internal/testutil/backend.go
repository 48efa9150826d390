package testutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Backend phrases returned by FakeBackend, mirroring the real service.
const (
	PhraseInvalidCredentials = "Invalid credentials"
	PhraseTokenExpired       = "Token expired"
	PhraseWeakPassword       = "Password must be at least 8 characters with letters, numbers, and special characters"
	PhraseWrongPassword      = "Current password is incorrect"
)

// FakeUser is an account known to FakeBackend.
type FakeUser struct {
	ID         int64
	Name       string
	Email      string
	Role       string
	Password   string
	FirstLogin bool
}

// FakeBackendOptions configures FakeBackend.
type FakeBackendOptions struct {
	Users    []FakeUser
	TokenTTL time.Duration
	// Now overrides the clock used for issuing and validating tokens.
	Now func() time.Time
}

// FakeBackend is an in-process primary backend speaking the auth envelope.
// It issues HS256 JWTs and rejects revoked or expired ones with 401.
type FakeBackend struct {
	Server *httptest.Server

	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	users   map[string]*FakeUser
	hashes  map[string][]byte
	revoked map[string]bool
	hits    map[string]int
	headers []http.Header
}

type fakeClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// NewFakeBackend starts a FakeBackend that is closed when the test ends.
func NewFakeBackend(t TestingTB, opts FakeBackendOptions) *FakeBackend {
	t.Helper()

	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	b := &FakeBackend{
		secret:  []byte(uuid.NewString()),
		ttl:     ttl,
		now:     now,
		users:   make(map[string]*FakeUser),
		hashes:  make(map[string][]byte),
		revoked: make(map[string]bool),
		hits:    make(map[string]int),
	}
	for i := range opts.Users {
		u := opts.Users[i]
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash password for %s: %v", u.Email, err)
		}
		b.users[u.Email] = &u
		b.hashes[u.Email] = hash
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", b.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/me", b.authenticated(b.handleMe))
	mux.HandleFunc("POST /api/v1/auth/set-password", b.authenticated(b.handleSetPassword))
	mux.HandleFunc("POST /api/v1/auth/change-password", b.authenticated(b.handleChangePassword))
	mux.HandleFunc("GET /api/v1/news", b.authenticated(b.handleNews))
	mux.HandleFunc("GET /health", b.handleHealth)

	b.Server = httptest.NewServer(b.record(mux))
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the base URL of the backend.
func (b *FakeBackend) URL() string { return b.Server.URL }

// Issue signs a token for the given account.
func (b *FakeBackend) Issue(email string) (string, error) {
	b.mu.Lock()
	u, ok := b.users[email]
	b.mu.Unlock()
	if !ok {
		return "", errors.New("unknown user")
	}

	now := b.now()
	claims := fakeClaims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(b.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
}

// Revoke makes every later request carrying token answer 401.
func (b *FakeBackend) Revoke(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[token] = true
}

// User returns the current state of an account.
func (b *FakeBackend) User(email string) (FakeUser, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[email]
	if !ok {
		return FakeUser{}, false
	}
	return *u, true
}

// Hits returns how many requests reached path.
func (b *FakeBackend) Hits(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

// Headers returns the request headers seen so far, in arrival order.
func (b *FakeBackend) Headers() []http.Header {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]http.Header(nil), b.headers...)
}

func (b *FakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[r.URL.Path]++
		b.headers = append(b.headers, r.Header.Clone())
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *FakeBackend) authenticated(next func(http.ResponseWriter, *http.Request, *FakeUser)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeFailure(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		b.mu.Lock()
		revoked := b.revoked[raw]
		b.mu.Unlock()
		if revoked {
			writeFailure(w, http.StatusUnauthorized, "TOKEN_EXPIRED", PhraseTokenExpired)
			return
		}

		var claims fakeClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
			return b.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(b.now))
		if err != nil {
			writeFailure(w, http.StatusUnauthorized, "TOKEN_EXPIRED", PhraseTokenExpired)
			return
		}

		b.mu.Lock()
		u, found := b.users[claims.Email]
		b.mu.Unlock()
		if !found {
			writeFailure(w, http.StatusUnauthorized, "UNAUTHORIZED", "User not found")
			return
		}
		next(w, r, u)
	}
}

func (b *FakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed request")
		return
	}

	b.mu.Lock()
	u, ok := b.users[req.Email]
	hash := b.hashes[req.Email]
	var snapshot FakeUser
	if ok {
		snapshot = *u
	}
	b.mu.Unlock()

	valid := ok && bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) == nil
	if !valid {
		writeFailure(w, http.StatusUnauthorized, "AUTH_FAILED", PhraseInvalidCredentials)
		return
	}

	token, err := b.Issue(snapshot.Email)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	writeSuccess(w, map[string]any{
		"accessToken": token,
		"tokenType":   "Bearer",
		"user": map[string]any{
			"id":         snapshot.ID,
			"name":       snapshot.Name,
			"role":       snapshot.Role,
			"firstLogin": snapshot.FirstLogin,
		},
	})
}

func (b *FakeBackend) handleMe(w http.ResponseWriter, _ *http.Request, u *FakeUser) {
	b.mu.Lock()
	profile := map[string]any{
		"userId":         u.ID,
		"userName":       u.Name,
		"email":          u.Email,
		"userRole":       u.Role,
		"firstLoginFlag": u.FirstLogin,
		"accountLocked":  false,
		"createdAt":      TestTime().Format(time.RFC3339),
	}
	b.mu.Unlock()
	writeSuccess(w, profile)
}

func (b *FakeBackend) handleSetPassword(w http.ResponseWriter, r *http.Request, u *FakeUser) {
	var req struct {
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.NewPassword) < 8 {
		writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", PhraseWeakPassword)
		return
	}
	if err := b.setPassword(u, req.NewPassword); err != nil {
		writeFailure(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	b.mu.Lock()
	u.FirstLogin = false
	b.mu.Unlock()
	writeSuccess(w, nil)
}

func (b *FakeBackend) handleChangePassword(w http.ResponseWriter, r *http.Request, u *FakeUser) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed request")
		return
	}

	b.mu.Lock()
	hash := b.hashes[u.Email]
	b.mu.Unlock()
	if bcrypt.CompareHashAndPassword(hash, []byte(req.CurrentPassword)) != nil {
		writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", PhraseWrongPassword)
		return
	}
	if len(req.NewPassword) < 8 {
		writeFailure(w, http.StatusBadRequest, "VALIDATION_ERROR", PhraseWeakPassword)
		return
	}
	if err := b.setPassword(u, req.NewPassword); err != nil {
		writeFailure(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	writeSuccess(w, nil)
}

func (b *FakeBackend) setPassword(u *FakeUser, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	u.Password = password
	b.hashes[u.Email] = hash
	return nil
}

func (b *FakeBackend) handleNews(w http.ResponseWriter, _ *http.Request, _ *FakeUser) {
	writeSuccess(w, []any{})
}

func (b *FakeBackend) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
		"meta":    map[string]any{"timestamp": time.Now().UTC().Format(time.RFC3339)},
	})
}

func writeFailure(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error": map[string]any{
			"code":      code,
			"message":   message,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
