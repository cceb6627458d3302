package measure

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"fortio.org/safecast"
)

// ErrSinkFailed wraps the first recorder failure of a session.
var ErrSinkFailed = errors.New("measure: recorder failed")

// Profiler allocates strings and records events into a Recorder.
// All methods are safe for concurrent use.
type Profiler struct {
	rec   Recorder
	start time.Time

	nextString atomic.Uint32 // offset from FirstConcreteStringID
	open       atomic.Int64  // intervals started but not finished
	failed     atomic.Bool
	closed     atomic.Bool

	errOnce sync.Once
	err     error
}

// NewProfiler writes the session header to rec and returns a Profiler
// recording into it. A header write failure is a setup error.
func NewProfiler(rec Recorder, crate string) (*Profiler, error) {
	if rec == nil {
		rec = Nop
	}
	p := &Profiler{
		rec:   rec,
		start: time.Now(),
	}
	h := &Header{
		Magic:   Magic,
		Version: FormatVersion,
		PID:     os.Getpid(),
		Crate:   crate,
		Start:   p.start,
	}
	if err := rec.RecordHeader(h); err != nil {
		return nil, fmt.Errorf("failed to write profile header: %w", err)
	}
	return p, nil
}

// Start returns the session start time. Event timestamps are relative to it.
func (p *Profiler) Start() time.Time {
	return p.start
}

// AllocString stores text in the string table and returns its id.
// No deduplication is done.
func (p *Profiler) AllocString(text string) StringID {
	id := FirstConcreteStringID + StringID(p.nextString.Add(1)-1)
	if !p.failed.Load() {
		p.check(p.rec.RecordString(id, text))
	}
	return id
}

// MapVirtualToConcreteString binds a virtual id to a concrete one.
func (p *Profiler) MapVirtualToConcreteString(virtual, concrete StringID) {
	mustMapping(virtual, concrete)
	if p.failed.Load() {
		return
	}
	p.check(p.rec.RecordMapping(virtual, concrete))
}

// BulkMapVirtualToSingleConcreteString binds every virtual id to the same
// concrete id with a single record.
func (p *Profiler) BulkMapVirtualToSingleConcreteString(virtuals []StringID, concrete StringID) {
	if len(virtuals) == 0 {
		return
	}
	for _, v := range virtuals {
		mustMapping(v, concrete)
	}
	if p.failed.Load() {
		return
	}
	p.check(p.rec.RecordBulkMapping(virtuals, concrete))
}

// RecordInstantEvent records an event with a single timestamp.
func (p *Profiler) RecordInstantEvent(kind StringID, id EventID, threadID uint32) {
	if p.failed.Load() {
		return
	}
	p.check(p.rec.RecordEvent(&RawEvent{
		Kind:     kind,
		ID:       id,
		ThreadID: threadID,
		Start:    p.now(),
		End:      InstantMarker,
	}))
}

// StartRecordingIntervalEvent opens an interval event. The interval is
// written when the returned guard is finished.
func (p *Profiler) StartRecordingIntervalEvent(kind StringID, id EventID, threadID uint32) *IntervalGuard {
	p.open.Add(1)
	return &IntervalGuard{
		p:        p,
		kind:     kind,
		id:       id,
		threadID: threadID,
		start:    p.now(),
	}
}

// OpenIntervals returns the number of intervals that were started but not
// yet finished.
func (p *Profiler) OpenIntervals() int64 {
	return p.open.Load()
}

// Err returns the first recorder failure, if any.
func (p *Profiler) Err() error {
	if !p.failed.Load() {
		return nil
	}
	return p.err
}

// Close flushes and closes the recorder. If any write failed during the
// session the output is discarded and the failure is returned.
func (p *Profiler) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := p.Err(); err != nil {
		_ = Discard(p.rec) //nolint:errcheck // the session error takes precedence
		return err
	}
	if err := p.rec.Flush(); err != nil {
		_ = p.rec.Close() //nolint:errcheck
		return fmt.Errorf("%w: flush: %w", ErrSinkFailed, err)
	}
	if err := p.rec.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrSinkFailed, err)
	}
	return nil
}

func (p *Profiler) now() uint64 {
	ns, err := safecast.Conv[uint64](time.Since(p.start).Nanoseconds())
	if err != nil {
		return 0
	}
	return ns
}

// check records the first failure. Once it is set every later record is
// dropped before it reaches the recorder.
func (p *Profiler) check(err error) {
	if err == nil {
		return
	}
	p.errOnce.Do(func() {
		p.err = fmt.Errorf("%w: %w", ErrSinkFailed, err)
		p.failed.Store(true)
	})
}

func mustMapping(virtual, concrete StringID) {
	if !virtual.IsVirtual() {
		panic(fmt.Sprintf("measure: %v is not a virtual string id", virtual))
	}
	if concrete.IsVirtual() {
		panic(fmt.Sprintf("measure: %v is not a concrete string id", concrete))
	}
}

// IntervalGuard is an open interval event. It must be finished exactly
// once; later calls are no-ops.
type IntervalGuard struct {
	p        *Profiler
	kind     StringID
	id       EventID
	threadID uint32
	start    uint64
	done     bool
}

// Finish closes the interval with the event id it was started with.
func (g *IntervalGuard) Finish() {
	if g == nil {
		return
	}
	g.finish(g.id)
}

// FinishWithOverrideEventID closes the interval, replacing its event id.
func (g *IntervalGuard) FinishWithOverrideEventID(id EventID) {
	if g == nil {
		return
	}
	g.finish(id)
}

func (g *IntervalGuard) finish(id EventID) {
	if g.done {
		return
	}
	g.done = true
	end := g.p.now()
	g.p.open.Add(-1)
	if g.p.failed.Load() {
		return
	}
	g.p.check(g.p.rec.RecordEvent(&RawEvent{
		Kind:     g.kind,
		ID:       id,
		ThreadID: g.threadID,
		Start:    g.start,
		End:      end,
	}))
}
