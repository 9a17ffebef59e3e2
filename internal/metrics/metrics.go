package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	Success = "success"
	Failure = "failure"
	Skipped = "skipped"
	Missing = "missing"
)

// Observer is the process wide metrics collector.
var Observer = NewMetrics()

type Metrics struct {
	registry   *prometheus.Registry
	prometheus Prometheus
}

// NewMetrics creates the collectors on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	p := NewPrometheusMetrics()
	registry.MustRegister(p.collectors()...)
	return &Metrics{
		registry:   registry,
		prometheus: p,
	}
}

// Outcome maps an error to the outcome label.
func Outcome(err error) string {
	if err != nil {
		return Failure
	}
	return Success
}

func (m *Metrics) Prediction(outcome string) {
	m.prometheus.Predictions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Training(kind string) {
	m.prometheus.Trainings.WithLabelValues(kind).Inc()
}

func (m *Metrics) Persistence(op, outcome string) {
	m.prometheus.Persistence.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) Busy(op string) {
	m.prometheus.Busy.WithLabelValues(op).Inc()
}

// Since records the time passed since start for the given operation.
func (m *Metrics) Since(op string, start time.Time) {
	m.prometheus.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) Sessions(n int) {
	m.prometheus.Sessions.Set(float64(n))
}

// Registry exposes the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
