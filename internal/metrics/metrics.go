// Package metrics provides Prometheus metrics for the revision service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// http request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// version metrics
	VersionsAppendedTotal *prometheus.CounterVec
	AppendConflictsTotal  prometheus.Counter
	RollbacksTotal        *prometheus.CounterVec
	StatsFailuresTotal    prometheus.Counter
	AuditViolationsTotal  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revision_http_requests_total",
				Help: "Total number of REST requests",
			},
			[]string{"route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "revision_http_request_duration_seconds",
				Help:    "Duration of REST requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		VersionsAppendedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revision_versions_appended_total",
				Help: "Total number of versions appended",
			},
			[]string{"scope", "change_type"},
		),
		AppendConflictsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "revision_append_conflicts_total",
				Help: "Appends that gave up after repeated version number conflicts",
			},
		),
		RollbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revision_rollbacks_total",
				Help: "Total number of rollbacks by outcome",
			},
			[]string{"outcome"},
		),
		StatsFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "revision_stats_failures_total",
				Help: "Version stats requests that failed",
			},
		),
		AuditViolationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "revision_audit_violations_total",
				Help: "History ordering violations found by the audit job",
			},
		),
	}
}

func (m *Metrics) ObserveRequest(route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(seconds)
}

func (m *Metrics) VersionAppended(scope, changeType string) {
	if m == nil {
		return
	}
	m.VersionsAppendedTotal.WithLabelValues(scope, changeType).Inc()
}

func (m *Metrics) AppendConflict() {
	if m == nil {
		return
	}
	m.AppendConflictsTotal.Inc()
}

func (m *Metrics) Rollback(outcome string) {
	if m == nil {
		return
	}
	m.RollbacksTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StatsFailure() {
	if m == nil {
		return
	}
	m.StatsFailuresTotal.Inc()
}

func (m *Metrics) AuditViolation() {
	if m == nil {
		return
	}
	m.AuditViolationsTotal.Inc()
}
