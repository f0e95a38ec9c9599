// Package discovery is an in-process service registry with health checks,
// load-balanced instance selection and per-instance circuit breakers.
//
// # Architecture
//
//   - Registry: owns instances, their request metrics and breaker state
//   - Strategy: picks one instance (round_robin, weighted, least_connections)
//   - Component: registers configured services and runs the background loops
//
// # Background tasks
//
// Between Start and Stop the Registry runs a health loop per service with a
// HealthCheckConfig, a stale-instance sweep and a breaker evaluation pass.
// Each task can also be run once directly: CheckServiceHealth, SweepStale and
// EvaluateBreakers.
//
// The registry lives in a single process. Instances registered with one
// process are not visible to another.
package discovery
