package observability

import (
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Thomas-Heisig/MODAX/internal/ports"
)

type PromObs struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

func NewPromObs() *PromObs {
	safetyPubs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "modax_safety_publishes_total",
		Help: "Safety state messages handed to the transport.",
	})
	telemetryPubs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "modax_telemetry_publishes_total",
		Help: "Telemetry messages handed to the transport.",
	})
	pubFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "modax_publish_failures_total",
		Help: "Publish attempts rejected by the transport.",
	})
	trips := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "modax_safety_trips_total",
		Help: "Safety cycles that ended with the composite unsafe verdict.",
	})
	readFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "modax_sensor_read_failures_total",
		Help: "Transducer reads that returned an error.",
	})
	vibUnavailable := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "modax_vibration_unavailable_total",
		Help: "Telemetry cycles with no inertial sensor reading.",
	})
	reconnects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "modax_transport_reconnects_total",
		Help: "Broker connection attempts started after a loss.",
	})
	outboxDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "modax_outbox_dropped_total",
		Help: "Telemetry messages lost to outbox backpressure.",
	})

	unsafeGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "modax_safety_unsafe",
		Help: "1 while the composite safety verdict is unsafe.",
	})
	connectedGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "modax_transport_connected",
		Help: "1 while the broker session is up.",
	})
	outboxGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "modax_outbox_length",
		Help: "Telemetry messages waiting for dispatch.",
	})
	spoolGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "modax_spool_size_bytes",
		Help: "Size of the store-and-forward spool on disk.",
	})

	safetyCycle := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "modax_safety_cycle_seconds",
		Help:    "Duration of one safety evaluation cycle.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 10),
	})

	prometheus.MustRegister(safetyPubs, telemetryPubs, pubFailures, trips,
		readFailures, vibUnavailable, reconnects, outboxDropped,
		unsafeGauge, connectedGauge, outboxGauge, spoolGauge, safetyCycle)

	return &PromObs{
		counters: map[string]prometheus.Counter{
			"modax_safety_publishes_total":      safetyPubs,
			"modax_telemetry_publishes_total":   telemetryPubs,
			"modax_publish_failures_total":      pubFailures,
			"modax_safety_trips_total":          trips,
			"modax_sensor_read_failures_total":  readFailures,
			"modax_vibration_unavailable_total": vibUnavailable,
			"modax_transport_reconnects_total":  reconnects,
			"modax_outbox_dropped_total":        outboxDropped,
		},
		gauges: map[string]prometheus.Gauge{
			"modax_safety_unsafe":       unsafeGauge,
			"modax_transport_connected": connectedGauge,
			"modax_outbox_length":       outboxGauge,
			"modax_spool_size_bytes":    spoolGauge,
		},
		histos: map[string]prometheus.Observer{
			"modax_safety_cycle_seconds": safetyCycle,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	log.Printf("INFO: %s%s", msg, formatFields(fields))
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("ERROR: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("CRITICAL: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func formatFields(fields []ports.Field) string {
	if len(fields) == 0 {
		return ""
	}
	out := ""
	for _, f := range fields {
		out += fmt.Sprintf(" %s=%v", f.Key, f.Value)
	}
	return out
}
