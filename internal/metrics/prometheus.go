package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/TwigBush/deadbolt-go/pkg/deadbolt"
)

// PrometheusRecorder records constraint decisions using Prometheus.
type PrometheusRecorder struct {
	decisionsTotal       *prometheus.CounterVec
	evaluationErrors     *prometheus.CounterVec
	preAuthShortCircuits *prometheus.CounterVec
	viewTimeoutsTotal    prometheus.Counter
	patternCompiles      *prometheus.CounterVec
}

// NewPrometheusRecorder registers with the default Prometheus registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	return NewPrometheusRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusRecorderWithRegistry registers with reg. Use this for testing.
func NewPrometheusRecorderWithRegistry(reg prometheus.Registerer) *PrometheusRecorder {
	decisionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deadbolt_decisions_total",
		Help: "Constraint decisions by constraint and result",
	}, []string{"constraint", "result"})

	evaluationErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deadbolt_evaluation_errors_total",
		Help: "Constraint evaluations that failed and were denied",
	}, []string{"constraint"})

	preAuthShortCircuits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deadbolt_pre_auth_short_circuits_total",
		Help: "Checks answered by BeforeAuthCheck",
	}, []string{"constraint"})

	viewTimeoutsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deadbolt_view_timeouts_total",
		Help: "View checks that ran out of time",
	})

	patternCompiles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deadbolt_pattern_compiles_total",
		Help: "Permission pattern compilations by result",
	}, []string{"result"})

	reg.MustRegister(
		decisionsTotal,
		evaluationErrors,
		preAuthShortCircuits,
		viewTimeoutsTotal,
		patternCompiles,
	)

	return &PrometheusRecorder{
		decisionsTotal:       decisionsTotal,
		evaluationErrors:     evaluationErrors,
		preAuthShortCircuits: preAuthShortCircuits,
		viewTimeoutsTotal:    viewTimeoutsTotal,
		patternCompiles:      patternCompiles,
	}
}

func (p *PrometheusRecorder) RecordDecision(constraint string, allowed bool) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	p.decisionsTotal.WithLabelValues(constraint, result).Inc()
}

func (p *PrometheusRecorder) RecordEvaluationError(constraint string) {
	p.evaluationErrors.WithLabelValues(constraint).Inc()
}

func (p *PrometheusRecorder) RecordPreAuthShortCircuit(constraint string) {
	p.preAuthShortCircuits.WithLabelValues(constraint).Inc()
}

func (p *PrometheusRecorder) RecordViewTimeout() { p.viewTimeoutsTotal.Inc() }

func (p *PrometheusRecorder) RecordPatternCompile(ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	p.patternCompiles.WithLabelValues(result).Inc()
}

var _ deadbolt.Recorder = (*PrometheusRecorder)(nil)
