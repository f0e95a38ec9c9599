// Package logger provides structured logging for meshkit components using
// zerolog.
//
// Every long-lived component (registry, breakers, resilient client, server)
// receives a *Logger at construction and scopes it with WithComponent, so log
// lines carry a "component" field. Request-scoped loggers are derived with
// WithContext, which copies the request and correlation ids stored by
// ContextWithRequestID / ContextWithCorrelationID.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.New(&cfg, "meshd").WithComponent("registry")
//	log.Info("instance registered", logger.Fields("service", "billing", "instance_id", "a"))
package logger
