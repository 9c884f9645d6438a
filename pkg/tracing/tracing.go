// Package tracing provides OpenTelemetry spans for price searches and jobs.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name of the price engine tracer.
const TracerName = "github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000"

var tracer trace.Tracer

func init() {
	tracer = otel.Tracer(TracerName)
}

// GetTracer returns the price engine tracer.
func GetTracer() trace.Tracer {
	return tracer
}

// SetTracer replaces the tracer, e.g. with a recording one in tests.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// Span attributes.
var (
	AttrItemType   = attribute.Key("price.item_type")
	AttrItemName   = attribute.Key("price.item_name")
	AttrDosage     = attribute.Key("price.dosage")
	AttrSource     = attribute.Key("price.source")
	AttrPriceCount = attribute.Key("price.count")
	AttrOutcome    = attribute.Key("price.outcome")
	AttrJobID      = attribute.Key("price.job.id")
)

// StartSearchSpan starts the span of one price search.
func StartSearchSpan(ctx context.Context, itemType, itemName, dosage string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "price.search",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			AttrItemType.String(itemType),
			AttrItemName.String(itemName),
			AttrDosage.String(dosage),
		),
	)
}

// StartStrategySpan starts the span of one strategy call.
func StartStrategySpan(ctx context.Context, source string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "price.strategy",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(AttrSource.String(source)),
	)
}

// StartJobSpan starts the span of one background price job.
func StartJobSpan(ctx context.Context, jobID, itemType string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "price.job",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			AttrJobID.String(jobID),
			AttrItemType.String(itemType),
		),
	)
}

// RecordError records an error on the span.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetOutcome marks the span as finished with the given outcome.
func SetOutcome(span trace.Span, outcome string) {
	span.SetAttributes(AttrOutcome.String(outcome))
	span.SetStatus(codes.Ok, "")
}
