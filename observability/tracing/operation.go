package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer name used by marketplace packages.
const InstrumentationName = "github.com/GoCodeAlone/marketplace"

// OperationTracer creates spans around plugin lifecycle operations and
// catalog fetches.
type OperationTracer struct {
	tracer trace.Tracer
}

// NewOperationTracer creates an OperationTracer. A nil tracer resolves the
// global provider at call time.
func NewOperationTracer(tracer trace.Tracer) *OperationTracer {
	return &OperationTracer{tracer: tracer}
}

func (o *OperationTracer) t() trace.Tracer {
	if o == nil || o.tracer == nil {
		return otel.GetTracerProvider().Tracer(InstrumentationName)
	}
	return o.tracer
}

// StartOperation begins a span for an install, uninstall or update.
func (o *OperationTracer) StartOperation(ctx context.Context, op, slug, opID string) (context.Context, trace.Span) {
	return o.t().Start(ctx, "plugin."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			AttrPluginSlug.String(slug),
			AttrPluginOperation.String(op),
			attribute.String("operation.id", opID),
		),
	)
}

// StartFetch begins a span for one mirror list or manifest fetch.
func (o *OperationTracer) StartFetch(ctx context.Context, kind, url string) (context.Context, trace.Span) {
	return o.t().Start(ctx, "catalog.fetch."+kind,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("url.full", url)),
	)
}

// End records err (if any), sets the span status and ends the span.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
