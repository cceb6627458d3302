package otelrec_test

import (
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"selfprof/internal/measure"
	"selfprof/internal/measure/otelrec"
)

func TestRecorderMirrorsIntervalsAndInstants(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	p, err := measure.NewProfiler(otelrec.New(tp), "demo")
	if err != nil {
		t.Fatalf("NewProfiler: %v", err)
	}
	activity := p.AllocString("GenericActivity")
	hit := p.AllocString("QueryCacheHit")
	label := measure.EventIDFromLabel(p.AllocString("parse"))

	p.StartRecordingIntervalEvent(activity, label, 5).Finish()
	p.RecordInstantEvent(hit, measure.EventIDFromVirtual(measure.NewVirtualStringID(42)), 5)

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ended := sr.Ended()
	if len(ended) != 2 {
		t.Fatalf("expected 2 ended spans, got %d", len(ended))
	}

	var interval, root sdktrace.ReadOnlySpan
	for _, s := range ended {
		switch s.Name() {
		case "GenericActivity":
			interval = s
		case "selfprof.session":
			root = s
		}
	}
	if interval == nil || root == nil {
		t.Fatalf("missing spans: interval=%v root=%v", interval, root)
	}
	if interval.Parent().SpanID() != root.SpanContext().SpanID() {
		t.Fatal("interval span is not a child of the session span")
	}

	var gotLabel string
	for _, kv := range interval.Attributes() {
		if kv.Key == otelrec.AttrLabel {
			gotLabel = kv.Value.AsString()
		}
	}
	if gotLabel != "parse" {
		t.Fatalf("label attribute = %q, want parse", gotLabel)
	}

	events := root.Events()
	if len(events) != 1 || events[0].Name != "QueryCacheHit" {
		t.Fatalf("unexpected root events: %+v", events)
	}
	for _, kv := range events[0].Attributes {
		if kv.Key == otelrec.AttrEventID && kv.Value.AsInt64() != 42 {
			t.Fatalf("event id attribute = %d, want 42", kv.Value.AsInt64())
		}
	}
}
