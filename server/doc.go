// Package server provides the introspection HTTP server: a gin engine on a
// ServeMux served over HTTP/1.1 and h2c.
//
// # Endpoints
//
// Registered by RegisterIntrospection (server/endpoint):
//
//   - GET /health: component health, 503 when any component is unhealthy
//   - GET /breakers: circuit breaker health report
//   - GET /services: registered services with per-instance metrics
//   - GET /metrics/performance: slowest and most error-prone services
//   - GET /metrics/services/:name: request statistics for one service
//   - GET /metrics: runtime memory and goroutine counts
//   - GET /events: registry events as server-sent events
//   - GET /version: build information
//   - grpc.health.v1.Health/Check: the /health status over h2c
//
// # Middleware
//
// server/middleware holds net/http and gin forms of Recovery, RequestID,
// RequestLogger, RateLimit and the circuit breaker guards.
package server
