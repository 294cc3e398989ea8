// Package metrics exposes layout sessions to Prometheus and measures how
// far a layout still moves per tick.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/forcegraph/internal/dynamo"
)

// Registry holds all layout metrics.
type Registry struct {
	TicksTotal         *prometheus.CounterVec
	PhaseDuration      *prometheus.HistogramVec
	IngestionErrors    *prometheus.CounterVec
	ConfigWarnings     *prometheus.CounterVec
	PointsTotal        prometheus.Gauge
	EdgesTotal         prometheus.Gauge
	LayoutMovement     prometheus.Gauge
	CircuitBreakerOpen prometheus.Gauge

	registry *prometheus.Registry
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Registry{
		registry: reg,
		TicksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forcegraph_ticks_total",
				Help: "Total number of layout ticks by outcome",
			},
			[]string{"status"},
		),
		PhaseDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forcegraph_phase_duration_seconds",
				Help:    "Duration of tick phases in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"phase"},
		),
		IngestionErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forcegraph_ingestion_errors_total",
				Help: "Total number of rejected buffer ingestions",
			},
			[]string{"kind"},
		),
		ConfigWarnings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forcegraph_config_warnings_total",
				Help: "Total number of configuration warnings by kind",
			},
			[]string{"kind"},
		),
		PointsTotal: f.NewGauge(prometheus.GaugeOpts{
			Name: "forcegraph_points",
			Help: "Number of points in the layout",
		}),
		EdgesTotal: f.NewGauge(prometheus.GaugeOpts{
			Name: "forcegraph_edges",
			Help: "Number of edges in the layout",
		}),
		LayoutMovement: f.NewGauge(prometheus.GaugeOpts{
			Name: "forcegraph_layout_movement",
			Help: "Mean point displacement during the last tick",
		}),
		CircuitBreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "forcegraph_tick_breaker_open",
			Help: "1 while the tick circuit breaker is open",
		}),
	}
}

func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Registry) RecordPhase(phase string, d time.Duration) {
	r.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordIngestionError counts err under the domain error it wraps.
func (r *Registry) RecordIngestionError(err error) {
	kind := "other"
	switch {
	case errors.Is(err, dynamo.ErrUnsupportedFeature):
		kind = "unsupported_feature"
	case errors.Is(err, dynamo.ErrBucketization):
		kind = "bucketization"
	case errors.Is(err, dynamo.ErrIngestion):
		kind = "ingestion"
	case errors.Is(err, dynamo.ErrTickInFlight):
		kind = "tick_in_flight"
	}
	r.IngestionErrors.WithLabelValues(kind).Inc()
}

func (r *Registry) RecordWarning(w dynamo.Warning) {
	r.ConfigWarnings.WithLabelValues(string(w.Kind)).Inc()
}

func (r *Registry) SetGraphSize(points, edges int) {
	r.PointsTotal.Set(float64(points))
	r.EdgesTotal.Set(float64(edges))
}

func (r *Registry) SetBreakerOpen(open bool) {
	if open {
		r.CircuitBreakerOpen.Set(1)
	} else {
		r.CircuitBreakerOpen.Set(0)
	}
}
