package measure_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"selfprof/internal/measure"
)

func TestStreamRoundTripResolvesVirtualIDs(t *testing.T) {
	var buf bytes.Buffer
	rec := measure.NewStreamRecorder(&buf)
	p, err := measure.NewProfiler(rec, "demo")
	if err != nil {
		t.Fatalf("NewProfiler: %v", err)
	}

	kind := p.AllocString("QueryCacheHit")
	label := p.AllocString("typeck(main)")
	virtual := measure.NewVirtualStringID(7)

	p.RecordInstantEvent(kind, measure.EventIDFromVirtual(virtual), 3)
	p.MapVirtualToConcreteString(virtual, label)

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := measure.ReadProfile(&buf)
	if err != nil {
		t.Fatalf("ReadProfile: %v", err)
	}
	if data.Header.Crate != "demo" || data.Header.PID != os.Getpid() {
		t.Fatalf("unexpected header: %+v", data.Header)
	}
	if len(data.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(data.Events))
	}
	ev := data.Events[0]
	if !ev.IsInstant() {
		t.Fatal("expected an instant event")
	}
	if ev.ThreadID != 3 {
		t.Fatalf("thread id = %d, want 3", ev.ThreadID)
	}
	if got := data.KindName(ev.Kind); got != "QueryCacheHit" {
		t.Fatalf("kind = %q", got)
	}
	if got := data.Label(ev.ID); got != "typeck(main)" {
		t.Fatalf("label = %q, want typeck(main)", got)
	}
}

func TestIntervalOverrideEventID(t *testing.T) {
	ring := measure.NewRingRecorder(16)
	p, err := measure.NewProfiler(ring, "demo")
	if err != nil {
		t.Fatalf("NewProfiler: %v", err)
	}
	kind := p.AllocString("Query")

	g := p.StartRecordingIntervalEvent(kind, measure.InvalidEventID, 1)
	if p.OpenIntervals() != 1 {
		t.Fatalf("open intervals = %d, want 1", p.OpenIntervals())
	}
	override := measure.EventIDFromVirtual(measure.NewVirtualStringID(42))
	g.FinishWithOverrideEventID(override)
	g.Finish() // second close is ignored

	if p.OpenIntervals() != 0 {
		t.Fatalf("open intervals = %d, want 0", p.OpenIntervals())
	}
	events := ring.Snapshot().Events
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID != override {
		t.Fatalf("event id = %v, want %v", events[0].ID, override)
	}
	if events[0].IsInstant() || events[0].End < events[0].Start {
		t.Fatalf("bad interval: %+v", events[0])
	}
}

func TestBulkMappingSharesOneString(t *testing.T) {
	var buf bytes.Buffer
	p, err := measure.NewProfiler(measure.NewStreamRecorder(&buf), "demo")
	if err != nil {
		t.Fatalf("NewProfiler: %v", err)
	}
	label := p.AllocString("type_of")
	ids := []measure.StringID{
		measure.NewVirtualStringID(1),
		measure.NewVirtualStringID(2),
		measure.NewVirtualStringID(3),
	}
	p.BulkMapVirtualToSingleConcreteString(ids, label)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := measure.ReadProfile(&buf)
	if err != nil {
		t.Fatalf("ReadProfile: %v", err)
	}
	want := map[measure.StringID]measure.StringID{1: label, 2: label, 3: label}
	if diff := cmp.Diff(want, data.Mappings); diff != "" {
		t.Fatalf("mappings mismatch (-want +got):\n%s", diff)
	}
}

func TestConcreteIDsNeverCollideWithVirtual(t *testing.T) {
	p, err := measure.NewProfiler(measure.Nop, "demo")
	if err != nil {
		t.Fatalf("NewProfiler: %v", err)
	}
	first := p.AllocString("a")
	second := p.AllocString("a")
	if first.IsVirtual() || second.IsVirtual() {
		t.Fatal("concrete id landed in the virtual namespace")
	}
	if first != measure.FirstConcreteStringID || second != first+1 {
		t.Fatalf("unexpected ids %v, %v", first, second)
	}
}

func TestNewVirtualStringIDPanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	measure.NewVirtualStringID(uint32(measure.MaxVirtualStringID) + 1)
}

type failingRecorder struct {
	measure.Recorder
	failAfter int
	writes    int
}

func (r *failingRecorder) RecordEvent(ev *measure.RawEvent) error {
	r.writes++
	if r.writes > r.failAfter {
		return errors.New("disk full")
	}
	return r.Recorder.RecordEvent(ev)
}

func TestRecorderFailureIsStickyAndDiscardsOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "demo.selfprof")
	rec0, _, err := measure.NewRecorder(measure.Config{Mode: measure.ModeStream, OutputPath: path})
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	st, ok := rec0.(*measure.StreamRecorder)
	if !ok {
		t.Fatalf("stream mode returned %T", rec0)
	}
	rec := &failingRecorder{Recorder: st, failAfter: 1}
	p, err := measure.NewProfiler(multiDiscard{rec, st}, "demo")
	if err != nil {
		t.Fatalf("NewProfiler: %v", err)
	}
	kind := p.AllocString("GenericActivity")
	p.RecordInstantEvent(kind, measure.InvalidEventID, 1)
	if p.Err() != nil {
		t.Fatalf("unexpected early error: %v", p.Err())
	}
	p.RecordInstantEvent(kind, measure.InvalidEventID, 1)
	p.RecordInstantEvent(kind, measure.InvalidEventID, 1)

	if !errors.Is(p.Err(), measure.ErrSinkFailed) {
		t.Fatalf("Err() = %v, want ErrSinkFailed", p.Err())
	}
	p.StartRecordingIntervalEvent(kind, measure.InvalidEventID, 1).Finish()
	if rec.writes != 2 {
		t.Fatalf("recorder saw %d event writes after the failure, want writes to stop at 2", rec.writes)
	}
	if err := p.Close(); !errors.Is(err, measure.ErrSinkFailed) {
		t.Fatalf("Close() = %v, want ErrSinkFailed", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected partial profile to be removed, stat err = %v", err)
	}
}

// multiDiscard forwards records to rec and discards through st.
type multiDiscard struct {
	*failingRecorder
	st *measure.StreamRecorder
}

func (m multiDiscard) Discard() error { return m.st.Discard() }

func TestRingRecorderKeepsLastEvents(t *testing.T) {
	ring := measure.NewRingRecorder(2)
	for i := range 3 {
		if err := ring.RecordEvent(&measure.RawEvent{Start: uint64(i), End: measure.InstantMarker}); err != nil {
			t.Fatalf("RecordEvent: %v", err)
		}
	}
	events := ring.Snapshot().Events
	if len(events) != 2 || events[0].Start != 1 || events[1].Start != 2 {
		t.Fatalf("unexpected ring contents: %+v", events)
	}
}

func TestReadProfileRejectsGarbage(t *testing.T) {
	_, err := measure.ReadProfile(bytes.NewReader([]byte("not a profile")))
	if !errors.Is(err, measure.ErrBadMagic) {
		t.Fatalf("err = %v, want ErrBadMagic", err)
	}
}

func TestSummarizeGroupsByKindAndLabel(t *testing.T) {
	ring := measure.NewRingRecorder(16)
	p, err := measure.NewProfiler(ring, "demo")
	if err != nil {
		t.Fatalf("NewProfiler: %v", err)
	}
	kind := p.AllocString("GenericActivity")
	label := measure.EventIDFromLabel(p.AllocString("parse"))
	p.StartRecordingIntervalEvent(kind, label, 1).Finish()
	p.StartRecordingIntervalEvent(kind, label, 2).Finish()
	p.RecordInstantEvent(kind, measure.InvalidEventID, 1)

	rows := measure.Summarize(ring.Snapshot())
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}
	var parse *measure.SummaryRow
	for i := range rows {
		if rows[i].Label == "parse" {
			parse = &rows[i]
		}
	}
	if parse == nil || parse.Count != 2 || parse.Instants != 0 {
		t.Fatalf("unexpected parse row: %+v", parse)
	}
}
