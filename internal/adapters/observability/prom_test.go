package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromObsMetrics(t *testing.T) {
	origReg := prometheus.DefaultRegisterer
	origGatherer := prometheus.DefaultGatherer
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = origReg
		prometheus.DefaultGatherer = origGatherer
	})

	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg

	obs := NewPromObs()

	obs.IncCounter("modax_safety_publishes_total", 3)
	if got := testutil.ToFloat64(obs.counters["modax_safety_publishes_total"]); got != 3 {
		t.Fatalf("expected safety publish counter 3, got %f", got)
	}

	obs.IncCounter("modax_outbox_dropped_total", 2)
	if got := testutil.ToFloat64(obs.counters["modax_outbox_dropped_total"]); got != 2 {
		t.Fatalf("expected outbox drop counter 2, got %f", got)
	}

	obs.SetGauge("modax_safety_unsafe", 1)
	if got := testutil.ToFloat64(obs.gauges["modax_safety_unsafe"]); got != 1 {
		t.Fatalf("expected unsafe gauge 1, got %f", got)
	}

	obs.SetGauge("modax_spool_size_bytes", 4096)
	if got := testutil.ToFloat64(obs.gauges["modax_spool_size_bytes"]); got != 4096 {
		t.Fatalf("expected spool gauge 4096, got %f", got)
	}

	obs.ObserveLatency("modax_safety_cycle_seconds", 0.0005)
	hCollector := obs.histos["modax_safety_cycle_seconds"].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected cycle histogram to record 1 sample, got %d", samples)
	}
}

func TestUnknownNamesAreIgnored(t *testing.T) {
	origReg := prometheus.DefaultRegisterer
	origGatherer := prometheus.DefaultGatherer
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = origReg
		prometheus.DefaultGatherer = origGatherer
	})

	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg

	obs := NewPromObs()

	// Must not panic on names without a registered series.
	obs.IncCounter("modax_never_registered_total", 1)
	obs.SetGauge("modax_never_registered", 1)
	obs.ObserveLatency("modax_never_registered_seconds", 1)
}
