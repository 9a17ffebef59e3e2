package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "draw_guess"

type Prometheus struct {
	Predictions *prometheus.CounterVec
	Trainings   *prometheus.CounterVec
	Persistence *prometheus.CounterVec
	Busy        *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Sessions    prometheus.Gauge
}

func NewPrometheusMetrics() Prometheus {
	return Prometheus{
		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Prediction cycles by outcome.",
			}, []string{"outcome"}),
		Trainings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trainings_total",
				Help:      "Training steps by kind.",
			}, []string{"kind"}),
		Persistence: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persistence_total",
				Help:      "Store operations by operation and outcome.",
			}, []string{"op", "outcome"}),
		Busy: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "busy_total",
				Help:      "Operations rejected because another one was in flight.",
			}, []string{"op"}),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "duration_seconds",
				Help:      "Duration of model operations.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			}, []string{"op"}),
		Sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions",
				Help:      "Number of live sessions.",
			}),
	}
}

func (p Prometheus) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		p.Predictions,
		p.Trainings,
		p.Persistence,
		p.Busy,
		p.Duration,
		p.Sessions,
	}
}
