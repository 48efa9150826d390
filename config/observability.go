package config

import (
	"log/slog"
	"strings"
)

const defaultObservabilityName = "skip-session"

// ObservabilityConfig groups configuration that controls logging, metrics and tracing.
type ObservabilityConfig struct {
	Logging ObservabilityLoggingConfig
	Metrics ObservabilityMetricsConfig
	Tracing ObservabilityTracingConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Logging.Sanitize()
	c.Metrics.Sanitize()
	c.Tracing.Sanitize()
}

// ObservabilityLoggingConfig controls the structured logger.
type ObservabilityLoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Sanitize lower-cases values and falls back to info/json.
func (c *ObservabilityLoggingConfig) Sanitize() {
	c.Level = strings.ToLower(strings.TrimSpace(c.Level))
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		c.Level = "info"
	}
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.Format != "text" {
		c.Format = "json"
	}
}

// SlogLevel maps Level to a slog.Level.
func (c ObservabilityLoggingConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ObservabilityMetricsConfig controls Prometheus metrics and their optional
// push to a Pushgateway when a command finishes.
type ObservabilityMetricsConfig struct {
	Enabled        bool   `env:"OBSERVABILITY_METRICS_ENABLED"         envDefault:"false"`
	PushgatewayURL string `env:"OBSERVABILITY_METRICS_PUSHGATEWAY_URL"`
	Job            string `env:"OBSERVABILITY_METRICS_JOB"             envDefault:"skip-session"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.PushgatewayURL = strings.TrimSpace(c.PushgatewayURL)
	if c.Job = strings.TrimSpace(c.Job); c.Job == "" {
		c.Job = defaultObservabilityName
	}
}

// IsPushEnabled returns true when metrics should be pushed after sanitisation.
func (c *ObservabilityMetricsConfig) IsPushEnabled() bool {
	return c.Enabled && c.PushgatewayURL != ""
}

// ObservabilityTracingConfig controls OpenTelemetry tracing of outbound
// requests. Without an endpoint spans are still created and propagated to the
// backends but not exported.
type ObservabilityTracingConfig struct {
	Enabled     bool   `env:"OBSERVABILITY_TRACING_ENABLED"      envDefault:"false"`
	Endpoint    string `env:"OBSERVABILITY_TRACING_ENDPOINT"`
	Insecure    bool   `env:"OBSERVABILITY_TRACING_INSECURE"     envDefault:"false"`
	ServiceName string `env:"OBSERVABILITY_TRACING_SERVICE_NAME" envDefault:"skip-session"`
}

// Sanitize trims the endpoint and defaults the service name.
func (c *ObservabilityTracingConfig) Sanitize() {
	c.Endpoint = strings.TrimSpace(c.Endpoint)
	if c.ServiceName = strings.TrimSpace(c.ServiceName); c.ServiceName == "" {
		c.ServiceName = defaultObservabilityName
	}
}

// IsExportEnabled reports whether spans are shipped to an OTLP collector.
func (c ObservabilityTracingConfig) IsExportEnabled() bool {
	return c.Enabled && c.Endpoint != ""
}
