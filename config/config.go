package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - api.go: Primary and analysis backend endpoints
//   - storage.go: Durable credential slot configuration
//   - database.go: Redis connection configuration
//   - observability.go: Logging, metrics and tracing
type AppConfig struct {
	// IsDev controls development mode behavior (debug logging, .env loading).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Primary backend configuration
	API APIConfig `envPrefix:"API_"`

	// Analysis (AI) backend configuration
	AI AIConfig `envPrefix:"AI_"`

	// Durable slot configuration
	Storage StorageConfig `envPrefix:"STORAGE_"`
	Redis   RedisConfig   `envPrefix:"REDIS_"`

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.API.Sanitize()
	c.AI.Sanitize()
	c.Storage.Sanitize()
	c.Observability.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
