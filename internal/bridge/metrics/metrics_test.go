package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestRecordDecision(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDecision("authenticated", "local")
	c.RecordDecision("authenticated", "local")
	c.RecordDecision("rejected", "remote")

	require.Equal(t, 2.0, counterValue(t, reg, "bridge_login_decisions_total",
		map[string]string{"outcome": "authenticated", "source": "local"}))
	require.Equal(t, 1.0, counterValue(t, reg, "bridge_login_decisions_total",
		map[string]string{"outcome": "rejected", "source": "remote"}))
}

func TestRecordRemoteVerification(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRemoteVerification(true, 20*time.Millisecond)
	c.RecordRemoteVerification(false, 5*time.Second)

	require.Equal(t, 1.0, counterValue(t, reg, "bridge_remote_verifications_total",
		map[string]string{"result": "success"}))
	require.Equal(t, 1.0, counterValue(t, reg, "bridge_remote_verifications_total",
		map[string]string{"result": "failure"}))
}

func TestRecordReconciliation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordReconciliation(true)
	c.RecordReconciliation(false)
	c.RecordReconciliation(false)

	require.Equal(t, 1.0, counterValue(t, reg, "bridge_reconciliations_total",
		map[string]string{"op": "create"}))
	require.Equal(t, 2.0, counterValue(t, reg, "bridge_reconciliations_total",
		map[string]string{"op": "update"}))
}
