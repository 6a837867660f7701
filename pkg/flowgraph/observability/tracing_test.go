package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, SpanManager) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter, NewSpanManagerWithTracer(tp.Tracer("flowgraph"))
}

func attrValue(attrs []attribute.KeyValue, key string) string {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value.AsString()
		}
	}
	return ""
}

func TestSpanManager_RunAndNodeSpans(t *testing.T) {
	exporter, sm := setupTracingTest(t)

	ctx, runSpan := sm.StartRunSpan(context.Background(), "assistant", "s-1")
	_, nodeSpan := sm.StartNodeSpan(ctx, "intent")
	sm.EndSpanWithError(nodeSpan, nil)
	sm.EndSpanWithError(runSpan, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	node, run := spans[0], spans[1]
	assert.Equal(t, "flowgraph.node.intent", node.Name)
	assert.Equal(t, "intent", attrValue(node.Attributes, "node.id"))
	assert.Equal(t, run.SpanContext.SpanID(), node.Parent.SpanID())

	assert.Equal(t, "flowgraph.run", run.Name)
	assert.Equal(t, "assistant", attrValue(run.Attributes, "graph.name"))
	assert.Equal(t, "s-1", attrValue(run.Attributes, "run.id"))
	assert.Equal(t, codes.Ok, run.Status.Code)
}

func TestSpanManager_EndWithError(t *testing.T) {
	exporter, sm := setupTracingTest(t)

	_, span := sm.StartNodeSpan(context.Background(), "weather")
	sm.EndSpanWithError(span, errors.New("upstream down"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "upstream down", spans[0].Status.Description)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
}

func TestSpanManager_AddSpanEvent(t *testing.T) {
	exporter, sm := setupTracingTest(t)

	ctx, span := sm.StartRunSpan(context.Background(), "g", "r")
	sm.AddSpanEvent(ctx, "interrupt", attribute.String("node.id", "doc_flow"))
	sm.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "interrupt", spans[0].Events[0].Name)

	// No span in context: silently ignored.
	assert.NotPanics(t, func() {
		sm.AddSpanEvent(context.Background(), "orphan")
	})
}

func TestNewSpanManager_UsesGlobalProviderAtCallTime(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	sm := NewSpanManager()
	_, span := sm.StartNodeSpan(context.Background(), "rss")
	sm.EndSpanWithError(span, nil)

	require.Len(t, exporter.GetSpans(), 1)
}

func TestNoopSpanManager(t *testing.T) {
	var sm SpanManager = NoopSpanManager{}
	ctx := context.Background()

	got, span := sm.StartRunSpan(ctx, "g", "r")
	assert.Equal(t, ctx, got)
	assert.False(t, span.IsRecording())

	assert.NotPanics(t, func() {
		_, s := sm.StartNodeSpan(ctx, "n")
		sm.AddSpanEvent(ctx, "e")
		sm.EndSpanWithError(s, errors.New("x"))
	})
}
