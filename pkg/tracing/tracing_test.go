package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	original := GetTracer()
	SetTracer(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)).Tracer(TracerName))
	t.Cleanup(func() { SetTracer(original) })
	return rec
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestStartSearchSpan(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := StartSearchSpan(context.Background(), "medicine", "Dipirona", "500mg")
	_, child := StartStrategySpan(ctx, "consultaremedios")
	child.End()
	SetOutcome(span, "computed")
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 2)

	strategy, search := ended[0], ended[1]
	assert.Equal(t, "price.strategy", strategy.Name())
	assert.Equal(t, search.SpanContext().SpanID(), strategy.Parent().SpanID())
	assert.Equal(t, "consultaremedios", attrs(strategy)[AttrSource].AsString())

	assert.Equal(t, "price.search", search.Name())
	a := attrs(search)
	assert.Equal(t, "medicine", a[AttrItemType].AsString())
	assert.Equal(t, "Dipirona", a[AttrItemName].AsString())
	assert.Equal(t, "500mg", a[AttrDosage].AsString())
	assert.Equal(t, "computed", a[AttrOutcome].AsString())
	assert.Equal(t, codes.Ok, search.Status().Code)
}

func TestRecordError(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartJobSpan(context.Background(), "job-1", "input")
	RecordError(span, errors.New("update price: connection refused"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "price.job", ended[0].Name())
	assert.Equal(t, "job-1", attrs(ended[0])[AttrJobID].AsString())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "update price: connection refused", ended[0].Status().Description)
	require.Len(t, ended[0].Events(), 1)
}

func TestInitProvider_Disabled(t *testing.T) {
	p, err := InitProvider(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), sampler(0.25).Description())
}
