package config

import (
	"strings"
	"time"
)

const (
	defaultAPIBaseURL = "http://localhost:8080"
	defaultAIBaseURL  = "http://localhost:8000"
	defaultAPITimeout = 30 * time.Second
	defaultAITimeout  = 60 * time.Second
)

// APIConfig describes the primary backend that issues credentials.
type APIConfig struct {
	// BaseURL is the backend origin, without a trailing slash.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Timeout bounds every request to the primary backend.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`

	// LoginEndpoint is the request path (relative to /api/v1) whose 401s are
	// credential rejections rather than expired sessions.
	LoginEndpoint string `env:"LOGIN_ENDPOINT" envDefault:"/auth/login"`

	// LoginPath is the route shown after a forced logout.
	LoginPath string `env:"LOGIN_PATH" envDefault:"/login"`

	// CookieJar keeps cookies set by the backend between requests.
	CookieJar bool `env:"COOKIE_JAR" envDefault:"true"`
}

// Sanitize normalises URLs and enforces a positive timeout.
func (c *APIConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultAPIBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultAPITimeout
	}
	c.LoginEndpoint = ensureLeadingSlash(c.LoginEndpoint, "/auth/login")
	c.LoginPath = ensureLeadingSlash(c.LoginPath, "/login")
}

// AIConfig describes the analysis backend. It shares the credential but never
// forces a logout.
type AIConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"http://localhost:8000"`
	Timeout time.Duration `env:"TIMEOUT"  envDefault:"60s"`
}

// Sanitize normalises the base URL and enforces a positive timeout.
func (c *AIConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultAIBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultAITimeout
	}
}

func ensureLeadingSlash(p, fallback string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return fallback
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}
