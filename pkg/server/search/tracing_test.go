package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/cache"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/tracing"
)

func TestSearchPrice_Spans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	original := tracing.GetTracer()
	tracing.SetTracer(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)).Tracer(tracing.TracerName))
	defer tracing.SetTracer(original)

	svc := newService(cache.NewMemoryStore(), medicine("A", 5.50), medicine("B"))
	_, err := svc.SearchPrice(context.Background(), dipirona)
	require.NoError(t, err)

	var search sdktrace.ReadOnlySpan
	counts := map[string]int64{}
	for _, s := range rec.Ended() {
		a := attrMap(s.Attributes())
		switch s.Name() {
		case "price.search":
			search = s
		case "price.strategy":
			counts[a[tracing.AttrSource].AsString()] = a[tracing.AttrPriceCount].AsInt64()
		}
	}

	require.NotNil(t, search)
	assert.Equal(t, "computed", attrMap(search.Attributes())[tracing.AttrOutcome].AsString())
	assert.Equal(t, map[string]int64{"A": 1, "B": 0}, counts)
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value
	}
	return m
}
