package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// METRICS REGISTRATION UNIT TESTS
// ============================================================================

func TestNewWithRegisterer_CollectorsAreFunctional(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegisterer(reg)

	m.BackendsLive.Set(3)
	m.BackendInFlight.WithLabelValues("localhost:2001").Set(2)
	m.CacheHits.Inc()
	m.SessionsTotal.WithLabelValues("closed").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	assert.Equal(t, 3.0, readGauge(t, families, "semalb_backends_live"))
}

func TestNewWithRegisterer_DoesNotPanicOnDistinctRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewWithRegisterer(prometheus.NewRegistry())
		NewWithRegisterer(prometheus.NewRegistry())
	})
}

func readGauge(t *testing.T, families []*dto.MetricFamily, name string) float64 {
	t.Helper()
	for _, f := range families {
		if f.GetName() == name {
			require.NotEmpty(t, f.Metric)
			return f.Metric[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric family %s not found", name)
	return 0
}
