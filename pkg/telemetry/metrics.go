package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics provides Prometheus metrics for the lifecycle engine.
type Metrics struct {
	config MetricsConfig

	// Command metrics
	commandsStarted   *prometheus.CounterVec
	commandsCompleted *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec

	// Step metrics
	stepsExecuted *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec

	// External tool metrics
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	toolErrors   *prometheus.CounterVec

	// Error metrics
	errorsByKind *prometheus.CounterVec

	// Environment metrics
	environmentsByState *prometheus.GaugeVec

	// System metrics
	activeCommands prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		commandsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_started_total",
				Help:      "Total number of lifecycle commands started",
			},
			[]string{"verb"},
		),
		commandsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_completed_total",
				Help:      "Total number of lifecycle commands completed",
			},
			[]string{"verb", "status"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Duration of lifecycle command execution in seconds",
				Buckets:   buckets,
			},
			[]string{"verb", "status"},
		),

		stepsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_executed_total",
				Help:      "Total number of steps executed",
			},
			[]string{"step", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of step execution in seconds",
				Buckets:   buckets,
			},
			[]string{"step"},
		),

		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of external tool invocations",
			},
			[]string{"tool", "operation"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Duration of external tool invocations in seconds",
				Buckets:   buckets,
			},
			[]string{"tool", "operation"},
		),
		toolErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_errors_total",
				Help:      "Total number of external tool failures",
			},
			[]string{"tool", "operation"},
		),

		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors by failure kind",
			},
			[]string{"kind"},
		),

		environmentsByState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "environments",
				Help:      "Current number of environments per lifecycle state",
			},
			[]string{"state"},
		),

		activeCommands: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_commands",
				Help:      "Current number of in-flight lifecycle commands",
			},
		),
	}

	registry.MustRegister(
		m.commandsStarted,
		m.commandsCompleted,
		m.commandDuration,
		m.stepsExecuted,
		m.stepDuration,
		m.toolCalls,
		m.toolDuration,
		m.toolErrors,
		m.errorsByKind,
		m.environmentsByState,
		m.activeCommands,
	)

	return m, nil
}

// RecordCommandStarted increments the counter for started commands.
func (m *Metrics) RecordCommandStarted(verb string) {
	if m.commandsStarted == nil {
		return
	}
	m.commandsStarted.WithLabelValues(verb).Inc()
	m.activeCommands.Inc()
}

// RecordCommandCompleted records a completed command with its status and
// duration.
func (m *Metrics) RecordCommandCompleted(verb, status string, duration time.Duration) {
	if m.commandsCompleted == nil {
		return
	}
	m.commandsCompleted.WithLabelValues(verb, status).Inc()
	m.commandDuration.WithLabelValues(verb, status).Observe(duration.Seconds())
	m.activeCommands.Dec()
}

// RecordStepExecution records one step run.
func (m *Metrics) RecordStepExecution(step, status string, duration time.Duration) {
	if m.stepsExecuted == nil {
		return
	}
	m.stepsExecuted.WithLabelValues(step, status).Inc()
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordToolCall records an external tool invocation with its duration.
func (m *Metrics) RecordToolCall(tool, operation string, duration time.Duration) {
	if m.toolCalls == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, operation).Inc()
	m.toolDuration.WithLabelValues(tool, operation).Observe(duration.Seconds())
}

// RecordToolError records an external tool failure.
func (m *Metrics) RecordToolError(tool, operation string) {
	if m.toolErrors == nil {
		return
	}
	m.toolErrors.WithLabelValues(tool, operation).Inc()
}

// RecordError records an error by failure kind.
func (m *Metrics) RecordError(kind string) {
	if m.errorsByKind == nil {
		return
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// SetEnvironmentCount sets the current count of environments in a state.
func (m *Metrics) SetEnvironmentCount(state string, count float64) {
	if m.environmentsByState == nil {
		return
	}
	m.environmentsByState.WithLabelValues(state).Set(count)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	return nil
}
