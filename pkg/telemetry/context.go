package telemetry

import (
	"context"
	"fmt"
)

// Telemetry bundles the logger, tracer, metrics, and event publisher
// behind one initialization path.
type Telemetry struct {
	Config  *Config
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
}

// NewTelemetry initializes all telemetry components from cfg.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("create tracer: %w", err)
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, fmt.Errorf("create event publisher: %w", err)
	}

	return &Telemetry{
		Config:  cfg,
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
	}, nil
}

// StartMetricsServer exposes the metrics endpoint if metrics are
// enabled.
func (t *Telemetry) StartMetricsServer() error {
	if t.Metrics == nil {
		return nil
	}
	return t.Metrics.StartMetricsServer()
}

// Shutdown flushes and stops all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var firstErr error
	if t.Events != nil {
		if err := t.Events.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("shutdown events: %w", err)
		}
	}
	if t.Tracer != nil {
		if err := t.Tracer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("shutdown tracer: %w", err)
		}
	}
	return firstErr
}

// Flush forces pending telemetry out without stopping anything.
func (t *Telemetry) Flush(ctx context.Context) error {
	if t.Tracer == nil {
		return nil
	}
	return t.Tracer.ForceFlush(ctx)
}
