// Package otelrec mirrors self-profile events into OpenTelemetry spans.
//
// Interval events become child spans of a per-session root span and
// instant events become span events on the root. Labels that are already
// resolvable when the event is recorded are attached as attributes;
// virtual ids are attached as their numeric value only.
package otelrec

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"selfprof/internal/measure"
)

const instrumentationName = "selfprof"

// Attribute keys set on mirrored spans.
const (
	AttrCrate    = attribute.Key("selfprof.crate")
	AttrPID      = attribute.Key("selfprof.pid")
	AttrEventID  = attribute.Key("selfprof.event_id")
	AttrLabel    = attribute.Key("selfprof.label")
	AttrThreadID = attribute.Key("selfprof.thread_id")
	AttrVirtual  = attribute.Key("selfprof.virtual")
)

// Recorder is a measure.Recorder backed by an OpenTelemetry tracer.
type Recorder struct {
	provider trace.TracerProvider
	tracer   trace.Tracer

	mu      sync.Mutex
	start   time.Time
	rootCtx context.Context
	root    trace.Span
	strings map[measure.StringID]string
	mapping map[measure.StringID]measure.StringID
	closed  bool
}

// New creates a Recorder that starts spans on tp.
func New(tp trace.TracerProvider) *Recorder {
	return &Recorder{
		provider: tp,
		tracer:   tp.Tracer(instrumentationName),
		rootCtx:  context.Background(),
		strings:  make(map[measure.StringID]string),
		mapping:  make(map[measure.StringID]measure.StringID),
	}
}

// RecordHeader opens the session root span.
func (r *Recorder) RecordHeader(h *measure.Header) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return measure.ErrClosed
	}
	r.start = h.Start
	r.rootCtx, r.root = r.tracer.Start(context.Background(), "selfprof.session",
		trace.WithTimestamp(h.Start),
		trace.WithAttributes(
			AttrCrate.String(h.Crate),
			AttrPID.Int(h.PID),
		),
	)
	return nil
}

// RecordString remembers a string so later events can be labelled.
func (r *Recorder) RecordString(id measure.StringID, text string) error {
	r.mu.Lock()
	r.strings[id] = text
	r.mu.Unlock()
	return nil
}

// RecordMapping remembers a virtual-to-concrete binding.
func (r *Recorder) RecordMapping(from, to measure.StringID) error {
	r.mu.Lock()
	r.mapping[from] = to
	r.mu.Unlock()
	return nil
}

// RecordBulkMapping remembers a bulk binding.
func (r *Recorder) RecordBulkMapping(from []measure.StringID, to measure.StringID) error {
	r.mu.Lock()
	for _, id := range from {
		r.mapping[id] = to
	}
	r.mu.Unlock()
	return nil
}

// RecordEvent mirrors an event as a span or a span event.
func (r *Recorder) RecordEvent(ev *measure.RawEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return measure.ErrClosed
	}

	name := r.resolveLocked(ev.Kind)
	if name == "" {
		name = ev.Kind.String()
	}
	attrs := []attribute.KeyValue{
		AttrThreadID.Int64(int64(ev.ThreadID)),
	}
	if ev.ID.IsValid() {
		id := ev.ID.StringID()
		attrs = append(attrs,
			AttrEventID.Int64(int64(id)),
			AttrVirtual.Bool(id.IsVirtual()),
		)
		if label := r.resolveLocked(id); label != "" {
			attrs = append(attrs, AttrLabel.String(label))
		}
	}

	at := r.start.Add(time.Duration(ev.Start)) //nolint:gosec // session-relative nanos
	if ev.IsInstant() {
		r.root.AddEvent(name, trace.WithTimestamp(at), trace.WithAttributes(attrs...))
		return nil
	}

	_, span := r.tracer.Start(r.rootCtx, name,
		trace.WithTimestamp(at),
		trace.WithAttributes(attrs...),
	)
	span.End(trace.WithTimestamp(at.Add(ev.Duration())))
	return nil
}

func (r *Recorder) resolveLocked(id measure.StringID) string {
	if id.IsVirtual() {
		concrete, ok := r.mapping[id]
		if !ok {
			return ""
		}
		id = concrete
	}
	return r.strings[id]
}

// Flush forces the provider to export pending spans when it supports it.
func (r *Recorder) Flush() error {
	if f, ok := r.provider.(interface{ ForceFlush(context.Context) error }); ok {
		return f.ForceFlush(context.Background())
	}
	return nil
}

// Close ends the session root span. The provider itself is owned by the
// caller and is not shut down.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	if r.root != nil {
		r.root.End()
	}
	r.mu.Unlock()
	return r.Flush()
}
