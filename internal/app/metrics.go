package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes pipeline instrumentation on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	runsTotal     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// NewMetrics creates the metrics set. entryCount, when non-nil, backs a gauge
// reporting live progress records.
func NewMetrics(entryCount func() int) (*Metrics, error) {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contribase_analysis_runs_total",
		Help: "Completed analysis runs by outcome.",
	}, []string{"outcome"})
	if err := registry.Register(runsTotal); err != nil {
		return nil, err
	}

	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contribase_stage_duration_seconds",
		Help:    "Wall-clock duration of pipeline stages.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"stage"})
	if err := registry.Register(stageDuration); err != nil {
		return nil, err
	}

	if entryCount != nil {
		entries := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "contribase_progress_entries",
			Help: "Live progress records in the store.",
		}, func() float64 {
			return float64(entryCount())
		})
		if err := registry.Register(entries); err != nil {
			return nil, err
		}
	}

	return &Metrics{
		registry:      registry,
		runsTotal:     runsTotal,
		stageDuration: stageDuration,
	}, nil
}

// RunCompleted counts one finished run under its outcome.
func (m *Metrics) RunCompleted(outcome string) {
	m.runsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage records one stage duration.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// Handler serves the registry in OpenMetrics-compatible text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
