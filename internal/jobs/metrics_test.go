package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// sample returns the value of the first series of name whose labels include want.
func sample(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue series
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("series %s %v not found", name, want)
	return 0
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("warkat:aging").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("warkat:aging").End(boom), boom)

	require.Equal(t, 1.0, sample(t, reg, "tradechain_jobs_total", map[string]string{"job": "warkat:aging", "status": "success"}))
	require.Equal(t, 1.0, sample(t, reg, "tradechain_jobs_total", map[string]string{"job": "warkat:aging", "status": "failure"}))
	require.Equal(t, 1.0, sample(t, reg, "tradechain_jobs_failures_total", map[string]string{"job": "warkat:aging"}))
}

func TestSetWarkatAging(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.SetWarkatAging("", "Receive", 5, 2)

	labels := map[string]string{"company": "unknown", "direction": "Receive"}
	require.Equal(t, 5.0, sample(t, reg, "tradechain_warkat_outstanding", labels))
	require.Equal(t, 2.0, sample(t, reg, "tradechain_warkat_aged", labels))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("audit:record").End(nil))
	m.SetWarkatAging("PT Maju Jaya", "Pay", 1, 1)
}
