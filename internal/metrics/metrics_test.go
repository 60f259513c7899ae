package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.VersionAppended("FORM", "rollback")
	m.VersionAppended("FORM", "rollback")
	m.Rollback("ok")
	m.StatsFailure()
	m.ObserveRequest("/api/proposals/{proposalId}/versions", "200", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.VersionsAppendedTotal.WithLabelValues("FORM", "rollback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RollbacksTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatsFailuresTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/api/proposals/{proposalId}/versions", "200")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.VersionAppended("PROPOSAL", "manual_edit")
		m.AppendConflict()
		m.Rollback("failed")
		m.StatsFailure()
		m.AuditViolation()
		m.ObserveRequest("/", "200", 0)
	})
}
