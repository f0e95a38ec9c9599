// Package observability wires OpenTelemetry tracing and metrics into the
// mesh client, the circuit breakers and the service registry.
//
// Setup:
//
//	providers, err := observability.Init(ctx, cfg)
//	defer providers.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("meshd"))
//
// A nil *Metrics is valid and records nothing. *Metrics satisfies
// resilience.MetricsRecorder, so it can be handed to circuit breakers.
package observability
