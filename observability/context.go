package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OperationContext tracks one logical request to a service across its
// attempts. Metrics may be nil.
type OperationContext struct {
	Service   string
	Operation string
	RequestID string
	StartTime time.Time
	Metrics   *Metrics
}

func NewOperationContext(service, operation, requestID string, metrics *Metrics) *OperationContext {
	return &OperationContext{
		Service:   service,
		Operation: operation,
		RequestID: requestID,
		StartTime: time.Now(),
		Metrics:   metrics,
	}
}

type operationContextKey struct{}

func WithOperationContext(ctx context.Context, oc *OperationContext) context.Context {
	return context.WithValue(ctx, operationContextKey{}, oc)
}

// OperationContextFromContext returns the OperationContext in ctx, or nil.
func OperationContextFromContext(ctx context.Context) *OperationContext {
	if oc, ok := ctx.Value(operationContextKey{}).(*OperationContext); ok {
		return oc
	}
	return nil
}

// StartSpan starts the request span and counts the request as active.
func (oc *OperationContext) StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String(AttrServiceName, oc.Service),
		attribute.String(AttrOperationName, oc.Operation),
		attribute.String(AttrRequestID, oc.RequestID),
	)
	oc.Metrics.RecordRequestStart(ctx)
	return WithOperationContext(ctx, oc), span
}

// EndOperation ends the span and records the request outcome against the
// instance that finally served it.
func (oc *OperationContext) EndOperation(ctx context.Context, span trace.Span, instance, status string, err error) {
	duration := time.Since(oc.StartTime)

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}
	span.SetAttributes(
		attribute.String(AttrInstanceID, instance),
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()

	oc.Metrics.RecordRequestEnd(ctx, oc.Service, instance, status, duration)
}

func (oc *OperationContext) Duration() time.Duration {
	return time.Since(oc.StartTime)
}
