package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics tracks scheduler runs and configuration fallbacks.
//
//   - scheduler_runs_total{status}: runs by outcome (success, failure)
//   - scheduler_run_duration_seconds: wall time of one walk
//   - scheduler_sources_processed_total: sources visited across all runs
//   - scheduler_last_success_timestamp: unix time of the last successful run
//   - scheduler_config_fallbacks_total{field}: env values replaced by defaults
//   - scheduler_config_fallback_active: 1 while any default is in effect
type WorkerMetrics struct {
	RunsTotal            *prometheus.CounterVec
	RunDurationSeconds   prometheus.Histogram
	SourcesProcessed     prometheus.Counter
	LastSuccessTimestamp prometheus.Gauge
	FallbacksTotal       *prometheus.CounterVec
	FallbackActive       prometheus.Gauge
}

// NewWorkerMetrics registers the metrics on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	f := promauto.With(reg)
	return &WorkerMetrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_runs_total",
			Help: "Total number of scheduled refresh runs by status",
		}, []string{"status"}),

		RunDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduler_run_duration_seconds",
			Help:    "Duration of one refresh walk in seconds",
			Buckets: []float64{1, 30, 60, 300, 900, 1800, 3600, 10800},
		}),

		SourcesProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_sources_processed_total",
			Help: "Total number of sources visited across all scheduled runs",
		}),

		LastSuccessTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "scheduler_last_success_timestamp",
			Help: "Unix timestamp of the last successful scheduled run",
		}),

		FallbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_config_fallbacks_total",
			Help: "Configuration values replaced by their default",
		}, []string{"field"}),

		FallbackActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "scheduler_config_fallback_active",
			Help: "1 if any scheduler configuration default is in effect",
		}),
	}
}

func (m *WorkerMetrics) RecordRun(success bool, seconds float64, sources int) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDurationSeconds.Observe(seconds)
	if sources > 0 {
		m.SourcesProcessed.Add(float64(sources))
	}
	if success {
		m.LastSuccessTimestamp.SetToCurrentTime()
	}
}

func (m *WorkerMetrics) RecordFallback(field string) {
	m.FallbacksTotal.WithLabelValues(field).Inc()
}

func (m *WorkerMetrics) SetFallbackActive(active bool) {
	if active {
		m.FallbackActive.Set(1)
		return
	}
	m.FallbackActive.Set(0)
}
