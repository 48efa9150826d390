package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	apperrors "github.com/skala/skip-session/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.LoginAttempt(ResultSuccess)
	p.LoginAttempt(ResultError)
	p.LoginAttempt(ResultError)
	p.ForcedLogout()
	p.GuardDecision("allow")
	p.RequestError("api", apperrors.New(apperrors.ErrCodeUnauthorized, "x"))
	p.RequestError("ai", nil)

	assert.InDelta(t, 1, testutil.ToFloat64(p.logins.WithLabelValues(ResultSuccess)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(p.logins.WithLabelValues(ResultError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.forcedLogouts), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.guard.WithLabelValues("allow")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.requestErrors.WithLabelValues("api", "unauthorized")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.requestErrors.WithLabelValues("ai", "unknown")), 0)
}

func TestOrNoop(t *testing.T) {
	r := OrNoop(nil)
	r.LoginAttempt(ResultSuccess)
	r.ForcedLogout()
	r.GuardDecision("allow")
	r.RequestError("api", errors.New("x"))
	assert.IsType(t, Noop{}, r)

	p := NewPrometheus(nil)
	assert.Same(t, p, OrNoop(p))
}
