// File: internal/metrics/metrics.go
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Manager owns the Prometheus instruments for pipeline runs and healing
// sessions. Instruments live in a private registry so repeated construction
// in tests never panics on duplicate registration.
type Manager struct {
	registry *prometheus.Registry
	logger   *zap.Logger

	pipelineRuns     *prometheus.CounterVec
	pipelineErrors   *prometheus.CounterVec
	healingAttempts  *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	aiCost           prometheus.Counter
	lastRunTimestamp prometheus.Gauge
}

// NewManager creates the instruments and registers them.
func NewManager(logger *zap.Logger) *Manager {
	m := &Manager{
		registry: prometheus.NewRegistry(),
		logger:   logger.Named("metrics"),
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipemedic_pipeline_runs_total",
			Help: "Total number of pipeline runs.",
		}, []string{"status"}),
		pipelineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipemedic_pipeline_errors_total",
			Help: "Total number of pipeline errors by category.",
		}, []string{"type"}),
		healingAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipemedic_healing_attempts_total",
			Help: "Total number of healing sessions by outcome.",
		}, []string{"status"}),
		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipemedic_pipeline_duration_seconds",
			Help:    "Time spent running the pipeline.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		aiCost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipemedic_ai_cost_total",
			Help: "Estimated cost of AI calls in USD.",
		}),
		lastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pipemedic_last_run_timestamp_seconds",
			Help: "Timestamp of the last pipeline run.",
		}),
	}

	m.registry.MustRegister(
		m.pipelineRuns,
		m.pipelineErrors,
		m.healingAttempts,
		m.pipelineDuration,
		m.aiCost,
		m.lastRunTimestamp,
	)
	return m
}

// RecordPipelineRun records one pipeline execution.
func (m *Manager) RecordPipelineRun(status string, duration time.Duration) {
	m.pipelineRuns.WithLabelValues(status).Inc()
	m.pipelineDuration.Observe(duration.Seconds())
	m.lastRunTimestamp.SetToCurrentTime()
}

// RecordError records a classified pipeline error.
func (m *Manager) RecordError(errorType string) {
	m.pipelineErrors.WithLabelValues(errorType).Inc()
}

// RecordHealing records the outcome of one healing session.
func (m *Manager) RecordHealing(status string) {
	m.healingAttempts.WithLabelValues(status).Inc()
}

// RecordCost accumulates estimated AI spend.
func (m *Manager) RecordCost(amount float64) {
	m.aiCost.Add(amount)
}

// Gather exposes the registry for tests and embedding.
func (m *Manager) Gather() prometheus.Gatherer { return m.registry }

// Serve exposes /metrics on addr until ctx is cancelled. It blocks; run it in
// a goroutine.
func (m *Manager) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	m.logger.Info("Metrics server started.", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
