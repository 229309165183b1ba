package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Reconciled("MATCHED", 0, 0.1)
		m.Denied("Area", "delete")
		m.QueueFallback()
	})
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Reconciled("DISCREPANCY", 3, 0.02)
	m.Denied("StockCount", "read")
	m.Denied("StockCount", "read")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconciliations.WithLabelValues("DISCREPANCY")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.discrepancies))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.policyDenied.WithLabelValues("StockCount", "read")))

	_, err = New(reg)
	assert.Error(t, err, "registering twice on the same registry must fail")
}
