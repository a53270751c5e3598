package telemetry

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// Recorder captures spans in memory for tests.
type Recorder struct {
	*Telemetry
	spans *tracetest.SpanRecorder
}

// NewRecorder returns telemetry whose tracer records every span.
func NewRecorder() *Recorder {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	return &Recorder{Telemetry: &Telemetry{provider: tp}, spans: rec}
}

// Ended returns the finished spans.
func (r *Recorder) Ended() []sdktrace.ReadOnlySpan {
	return r.spans.Ended()
}

// Span returns the first ended span with name, or nil.
func (r *Recorder) Span(name string) sdktrace.ReadOnlySpan {
	for _, s := range r.spans.Ended() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// AssertAttribute fails tb unless span name carries key=want.
func (r *Recorder) AssertAttribute(tb testing.TB, name string, key attribute.Key, want attribute.Value) {
	tb.Helper()
	s := r.Span(name)
	if s == nil {
		tb.Fatalf("span %q not recorded", name)
		return
	}
	for _, kv := range s.Attributes() {
		if kv.Key == key {
			if kv.Value != want {
				tb.Errorf("span %q attribute %s = %v, want %v", name, key, kv.Value.Emit(), want.Emit())
			}
			return
		}
	}
	tb.Errorf("span %q has no attribute %s", name, key)
}
