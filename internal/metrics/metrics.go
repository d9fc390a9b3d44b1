// Package metrics records workflow outcomes as Prometheus metrics.
package metrics

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the collectors for one process.
//
// Metrics:
//   - vbs_workflow_runs_total{outcome} - runs by success, failure or aborted
//   - vbs_phase_attempts_total{phase,outcome} - phase attempts
//   - vbs_phase_duration_seconds{phase} - wall time of a phase incl. retries
//   - vbs_workflow_last_success_timestamp_seconds - unix time of the last good run
//   - vbs_workflow_last_duration_seconds - duration of the last run
type Metrics struct {
	registry *prometheus.Registry
	log      *zap.Logger

	// Textfile, when set, is rewritten after every run for node_exporter's
	// textfile collector.
	Textfile string

	runs          *prometheus.CounterVec
	phaseAttempts *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	lastSuccess   prometheus.Gauge
	lastDuration  prometheus.Gauge
}

// New creates the collectors on a private registry.
func New(log *zap.Logger) *Metrics {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		log:      log.Named("metrics"),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vbs_workflow_runs_total",
				Help: "Total number of workflow runs by outcome",
			},
			[]string{"outcome"},
		),
		phaseAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vbs_phase_attempts_total",
				Help: "Total number of phase attempts by outcome",
			},
			[]string{"phase", "outcome"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vbs_phase_duration_seconds",
				Help:    "Duration of a phase including retries in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"phase"},
		),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vbs_workflow_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
		lastDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vbs_workflow_last_duration_seconds",
			Help: "Duration of the last run in seconds",
		}),
	}
	m.registry.MustRegister(m.runs, m.phaseAttempts, m.phaseDuration, m.lastSuccess, m.lastDuration)
	return m
}

// ObservePhase records the attempts of one phase. Every attempt before the
// last failed; the last one carries the phase outcome.
func (m *Metrics) ObservePhase(r model.PhaseResult) {
	attempts := max(r.Attempts, 1)
	phase := string(r.Phase)
	if attempts > 1 {
		m.phaseAttempts.WithLabelValues(phase, "failure").Add(float64(attempts - 1))
	}
	m.phaseAttempts.WithLabelValues(phase, outcome(r.Success)).Inc()
	m.phaseDuration.WithLabelValues(phase).Observe(r.Duration.Seconds())
}

// ObserveRun records a finished run and refreshes the textfile.
func (m *Metrics) ObserveRun(r model.WorkflowResult) {
	o := outcome(r.Success)
	if r.Aborted {
		o = "aborted"
	}
	m.runs.WithLabelValues(o).Inc()
	m.lastDuration.Set(r.Duration.Seconds())
	if r.Success {
		m.lastSuccess.Set(float64(r.FinishedAt.Unix()))
	}
	if m.Textfile != "" {
		if err := m.WriteTextfile(m.Textfile); err != nil {
			m.log.Warn("failed to write metrics textfile", zap.String("path", m.Textfile), zap.Error(err))
		}
	}
}

// WriteTextfile writes all metrics in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
