package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for geometa.
type Metrics struct {
	// Shadow synchronization
	MutationsTotal  *prometheus.CounterVec
	MutationSeconds *prometheus.HistogramVec

	// Capability probing
	ProbesTotal        *prometheus.CounterVec
	CapabilitiesActive prometheus.Gauge

	// Dispatch
	DispatchTotal *prometheus.CounterVec

	// Backfill
	BackfillRowsTotal *prometheus.CounterVec

	// Registry the metrics are registered with.
	Registry *prometheus.Registry
}

// NewMetrics creates and registers all metrics with reg. A nil reg creates a
// private registry, so tests and multiple services never collide.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	m := &Metrics{Registry: reg}

	m.MutationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geometa_shadow_mutations_total",
			Help: "Total number of metadata mutations handled, by object type and outcome",
		},
		[]string{"object_type", "outcome"},
	)

	m.MutationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geometa_shadow_mutation_duration_seconds",
			Help:    "Duration of shadow table writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	m.ProbesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geometa_capability_probes_total",
			Help: "Total number of function probes, by result",
		},
		[]string{"result"},
	)

	m.CapabilitiesActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "geometa_capabilities_available",
			Help: "Number of spatial functions found in the last probe",
		},
	)

	m.DispatchTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geometa_dispatch_calls_total",
			Help: "Total number of spatial function calls, by outcome",
		},
		[]string{"outcome"},
	)

	m.BackfillRowsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geometa_backfill_rows_total",
			Help: "Total number of rows scanned by the backfill job, by object type and result",
		},
		[]string{"object_type", "result"},
	)

	return m
}
