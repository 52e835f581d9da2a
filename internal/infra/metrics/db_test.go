package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestSetLedgerPoolStats(t *testing.T) {
	SetLedgerPoolStats(LedgerPoolStats{Total: 8, Idle: 3, Acquired: 5, Max: 10, EmptyAcquires: 42})

	for state, want := range map[string]float64{"total": 8, "idle": 3, "acquired": 5, "max": 10} {
		if got := gaugeValue(t, ledgerPoolConns.WithLabelValues(state)); got != want {
			t.Errorf("%s = %v, want %v", state, got, want)
		}
	}
	if got := gaugeValue(t, ledgerPoolEmptyAcquires); got != 42 {
		t.Errorf("empty acquires = %v, want 42", got)
	}
}
