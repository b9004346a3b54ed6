// Package observability exports store activity as Prometheus metrics and
// wires OpenTelemetry tracing for ingestion spans.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StoreCollector bundles the Prometheus metrics of one ephemeris store. It
// satisfies core.MetricsRecorder so a Store can drive it directly from its
// mutators and query paths.
type StoreCollector struct {
	gatherer prometheus.Gatherer

	Queries        *prometheus.CounterVec
	QueryDurations prometheus.Histogram
	Ingested       *prometheus.CounterVec
	Rejected       *prometheus.CounterVec

	Satellites      prometheus.Gauge
	PositionSamples prometheus.Gauge
	ClockSamples    prometheus.Gauge
}

// NewStoreCollector registers the store metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewStoreCollector(reg prometheus.Registerer) (*StoreCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	queries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ephemeris_queries_total",
		Help: "Total number of Xvt queries, labeled by outcome.",
	}, []string{"outcome"})
	if err := register(reg, queries, "ephemeris_queries_total"); err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ephemeris_query_duration_seconds",
		Help:    "Xvt query latency in seconds.",
		Buckets: []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 5e-3, 1e-2},
	})
	if err := register(reg, durations, "ephemeris_query_duration_seconds"); err != nil {
		return nil, err
	}

	ingested := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ephemeris_samples_ingested_total",
		Help: "Samples committed into the store, labeled by series kind.",
	}, []string{"kind"})
	if err := register(reg, ingested, "ephemeris_samples_ingested_total"); err != nil {
		return nil, err
	}

	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ephemeris_samples_rejected_total",
		Help: "Samples dropped at ingestion, labeled by series kind and reason.",
	}, []string{"kind", "reason"})
	if err := register(reg, rejected, "ephemeris_samples_rejected_total"); err != nil {
		return nil, err
	}

	satellites := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ephemeris_satellites",
		Help: "Satellites present in both the position and the clock series.",
	})
	if err := register(reg, satellites, "ephemeris_satellites"); err != nil {
		return nil, err
	}
	posSamples := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ephemeris_position_samples",
		Help: "Samples currently held in the position series.",
	})
	if err := register(reg, posSamples, "ephemeris_position_samples"); err != nil {
		return nil, err
	}
	clkSamples := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ephemeris_clock_samples",
		Help: "Samples currently held in the clock series.",
	})
	if err := register(reg, clkSamples, "ephemeris_clock_samples"); err != nil {
		return nil, err
	}

	return &StoreCollector{
		gatherer:        gatherer,
		Queries:         queries,
		QueryDurations:  durations,
		Ingested:        ingested,
		Rejected:        rejected,
		Satellites:      satellites,
		PositionSamples: posSamples,
		ClockSamples:    clkSamples,
	}, nil
}

func register(reg prometheus.Registerer, c prometheus.Collector, name string) error {
	if err := reg.Register(c); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	return nil
}

// ObserveQuery implements core.MetricsRecorder.
func (c *StoreCollector) ObserveQuery(outcome string, seconds float64) {
	if c == nil {
		return
	}
	c.Queries.WithLabelValues(outcome).Inc()
	c.QueryDurations.Observe(seconds)
}

// AddIngested implements core.MetricsRecorder.
func (c *StoreCollector) AddIngested(kind string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.Ingested.WithLabelValues(kind).Add(float64(n))
}

// AddRejected implements core.MetricsRecorder.
func (c *StoreCollector) AddRejected(kind, reason string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.Rejected.WithLabelValues(kind, reason).Add(float64(n))
}

// SetStoreCounts implements core.MetricsRecorder.
func (c *StoreCollector) SetStoreCounts(satellites, positionSamples, clockSamples int) {
	if c == nil {
		return
	}
	c.Satellites.Set(float64(satellites))
	c.PositionSamples.Set(float64(positionSamples))
	c.ClockSamples.Set(float64(clockSamples))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *StoreCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
