// Package errors defines AppError, the error value shared by every meshkit
// package. An AppError carries a machine-readable code, the HTTP status an
// inbound adapter should answer with, and whether the caller may retry.
//
// Package-level typed errors (discovery.ErrNoHealthyInstance,
// resilience.CircuitOpenError, ...) stay matchable with errors.Is/As and are
// translated to AppError at the HTTP edge through From.
package errors
