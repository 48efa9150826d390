package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	obserrors "github.com/skala/skip-session/internal/observability/errors"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Recorder receives session lifecycle events.
type Recorder interface {
	LoginAttempt(result string)
	ForcedLogout()
	GuardDecision(decision string)
	RequestError(backend string, err error)
}

// Noop discards every event.
type Noop struct{}

func (Noop) LoginAttempt(string)        {}
func (Noop) ForcedLogout()              {}
func (Noop) GuardDecision(string)       {}
func (Noop) RequestError(string, error) {}

// OrNoop returns r, or a Noop recorder when r is nil.
//
//nolint:ireturn // callers store the interface.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return Noop{}
	}
	return r
}

// Prometheus records session events as Prometheus counters.
type Prometheus struct {
	logins        *prometheus.CounterVec
	forcedLogouts prometheus.Counter
	guard         *prometheus.CounterVec
	requestErrors *prometheus.CounterVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates and registers session metrics on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skip_session_login_attempts_total",
				Help: "Total number of login attempts by result",
			},
			[]string{"result"},
		),
		forcedLogouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "skip_session_forced_logouts_total",
				Help: "Total number of sessions terminated after an unauthorized response",
			},
		),
		guard: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skip_session_guard_decisions_total",
				Help: "Total number of navigation guard decisions",
			},
			[]string{"decision"},
		),
		requestErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skip_session_request_errors_total",
				Help: "Total number of failed backend requests",
			},
			[]string{"backend", "error_class"},
		),
	}
	if reg != nil {
		reg.MustRegister(p.logins, p.forcedLogouts, p.guard, p.requestErrors)
	}
	return p
}

func (p *Prometheus) LoginAttempt(result string) {
	p.logins.WithLabelValues(result).Inc()
}

func (p *Prometheus) ForcedLogout() {
	p.forcedLogouts.Inc()
}

func (p *Prometheus) GuardDecision(decision string) {
	p.guard.WithLabelValues(decision).Inc()
}

func (p *Prometheus) RequestError(backend string, err error) {
	class := obserrors.Classify(err)
	if class == "" {
		class = "unknown"
	}
	p.requestErrors.WithLabelValues(backend, class).Inc()
}
