package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsIdempotent(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()
}

func TestRecorders(t *testing.T) {
	tests := []struct {
		name    string
		record  func()
		counter *prometheus.CounterVec
		labels  []string
	}{
		{"stream message", func() { RecordStreamMessage("arbitration") }, streamMessages, []string{"arbitration"}},
		{"stream discarded", func() { RecordStreamDiscarded("digest") }, streamDiscarded, []string{"digest"}},
		{"write outcome", func() { RecordWrite("ok") }, writes, []string{"ok"}},
		{"write item failure", func() { RecordWriteItemFailure("InvalidArgument") }, writeItemFailures, []string{"InvalidArgument"}},
		{"arbitration role", func() { RecordArbitration("master") }, arbitrations, []string{"master"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before := testutil.ToFloat64(tc.counter.WithLabelValues(tc.labels...))
			tc.record()
			after := testutil.ToFloat64(tc.counter.WithLabelValues(tc.labels...))
			if after != before+1 {
				t.Fatalf("counter went %v -> %v, want +1", before, after)
			}
		})
	}
}
