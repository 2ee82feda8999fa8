// Package telemetry provides observability for the lifecycle engine:
// structured logging (zerolog), distributed tracing (OpenTelemetry),
// Prometheus metrics, and lifecycle event publishing.
//
// The components can be used individually or together through the
// Telemetry bundle:
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer tel.Shutdown(ctx)
//
//	tel.Logger.WithEnvironment("staging").Info("provisioning")
//	ctx, span := tel.Tracer.StartCommandSpan(ctx, "staging", "provision")
//	defer span.End()
//
// Metrics name the things the engine actually does: commands, steps,
// and external tool invocations. The event publisher fans command and
// step progress out to subscribers (CLI progress output, audit sinks)
// without letting a slow or panicking subscriber stall the engine.
package telemetry
