package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for resolution and execution.
// A disabled Metrics is safe to call; every method is a no-op.
type Metrics struct {
	enabled bool

	plansResolved  *prometheus.CounterVec
	planSteps      *prometheus.HistogramVec
	ruleMatches    *prometheus.CounterVec
	policyFindings *prometheus.CounterVec

	stepsExecuted *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	runsCompleted *prometheus.CounterVec
	runDuration   prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{}, nil
	}

	ns := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		enabled:  true,
		registry: registry,
		plansResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "plans_resolved_total",
				Help:      "Plans resolved, by outcome",
			},
			[]string{"outcome"},
		),
		planSteps: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "plan_steps",
				Help:      "Steps per resolved plan, by step kind",
				Buckets:   []float64{1, 2, 5, 10, 20, 50},
			},
			[]string{"kind"},
		),
		ruleMatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "rule_matches_total",
				Help:      "Compatibility rule matches, by rule ID",
			},
			[]string{"rule"},
		),
		policyFindings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "policy_findings_total",
				Help:      "Policy violations, by policy and severity",
			},
			[]string{"policy", "severity"},
		),
		stepsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "steps_executed_total",
				Help:      "Install steps executed, by kind and status",
			},
			[]string{"kind", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "step_duration_seconds",
				Help:      "Install step duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "runs_completed_total",
				Help:      "Plan executions completed, by status",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "run_duration_seconds",
				Help:      "Plan execution duration in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
		),
	}

	registry.MustRegister(
		m.plansResolved, m.planSteps, m.ruleMatches, m.policyFindings,
		m.stepsExecuted, m.stepDuration, m.runsCompleted, m.runDuration,
	)
	return m, nil
}

// PlanResolved records one resolution attempt.
func (m *Metrics) PlanResolved(outcome string) {
	if !m.enabled {
		return
	}
	m.plansResolved.WithLabelValues(outcome).Inc()
}

// PlanStepCount records how many steps of one kind a plan produced.
func (m *Metrics) PlanStepCount(kind string, n int) {
	if !m.enabled {
		return
	}
	m.planSteps.WithLabelValues(kind).Observe(float64(n))
}

// RuleMatched records one compatibility rule firing.
func (m *Metrics) RuleMatched(ruleID string) {
	if !m.enabled {
		return
	}
	m.ruleMatches.WithLabelValues(ruleID).Inc()
}

// PolicyFinding records one policy violation.
func (m *Metrics) PolicyFinding(policy, severity string) {
	if !m.enabled {
		return
	}
	m.policyFindings.WithLabelValues(policy, severity).Inc()
}

// StepExecuted records one executed step and its duration.
func (m *Metrics) StepExecuted(kind, status string, d time.Duration) {
	if !m.enabled {
		return
	}
	m.stepsExecuted.WithLabelValues(kind, status).Inc()
	m.stepDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RunCompleted records one finished run and its duration.
func (m *Metrics) RunCompleted(status string, d time.Duration) {
	if !m.enabled {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
}

// Handler returns the HTTP handler serving the registry, or nil when
// metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
