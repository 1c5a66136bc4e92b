package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newTestTracerProvider installs an in-memory tracer provider as the global
// one for the duration of the test and returns its exporter.
func newTestTracerProvider(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })
	return exp
}

func TestCorrelationID_EmptyWithoutSpan(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}
}

func TestCorrelationID_ReturnsTraceID(t *testing.T) {
	newTestTracerProvider(t)

	ctx, span := StartSpan(context.Background(), "test")
	defer span.End()

	cid := CorrelationID(ctx)
	if len(cid) != 32 {
		t.Errorf("correlation ID length = %d, want 32", len(cid))
	}
	for _, c := range cid {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Errorf("correlation ID contains non-hex character %q", c)
			break
		}
	}
}

func TestStartSessionSpan_NamesAndTagsSpan(t *testing.T) {
	exp := newTestTracerProvider(t)

	_, span := StartSessionSpan(context.Background(), "transcript", "AB12")
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "relay.transcript" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "relay.transcript")
	}
	found := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "session.code" && a.Value.AsString() == "AB12" {
			found = true
		}
	}
	if !found {
		t.Error("span missing session.code attribute")
	}
}

func TestStartSessionSpan_NestsWithinSession(t *testing.T) {
	exp := newTestTracerProvider(t)

	ctx, parent := StartSessionSpan(context.Background(), "transcript", "AB12")
	_, child := StartSessionSpan(ctx, "translate", "AB12")
	child.End()
	parent.End()

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	// Spans export in end order, child first.
	if spans[0].Name != "relay.translate" {
		t.Errorf("child span name = %q, want %q", spans[0].Name, "relay.translate")
	}
	if spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("translate span is not a child of the transcript span")
	}
}

func TestLogger_IncludesTraceAndSpanIDs(t *testing.T) {
	newTestTracerProvider(t)

	ctx, span := StartSessionSpan(context.Background(), "transcript", "AB12")
	defer span.End()

	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	Logger(ctx).Info("pipeline started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["trace_id"] != CorrelationID(ctx) {
		t.Errorf("trace_id = %v, want %v", entry["trace_id"], CorrelationID(ctx))
	}
	if entry["span_id"] == nil || entry["span_id"] == "" {
		t.Error("log entry missing span_id")
	}
}

func TestLogger_NoSpanFallsBackToDefault(t *testing.T) {
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	Logger(context.Background()).Info("no session yet")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if _, ok := entry["trace_id"]; ok {
		t.Error("trace_id present without an active span")
	}
}
