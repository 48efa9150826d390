package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/skala/skip-session/config"
)

// PushMetrics sends the registry to the configured Pushgateway. It is a no-op
// when pushing is disabled.
func PushMetrics(ctx context.Context, cfg config.ObservabilityMetricsConfig, reg prometheus.Gatherer) error {
	if !cfg.IsPushEnabled() {
		return nil
	}
	if reg == nil {
		return errors.New("metrics registry is required")
	}
	if err := push.New(cfg.PushgatewayURL, cfg.Job).Gatherer(reg).AddContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
