package selfprof

import (
	"io"
	"os"
	"sync"

	"selfprof/internal/measure"
)

// Ref is the handle instrumentation sites use. It can be copied and shared
// between goroutines freely: after construction nothing in it changes.
//
// Every recording method checks the locally cached filter first. When the
// category is disabled it returns a nil guard without touching the
// SelfProfiler; the work past the check lives in separate non-inlined
// methods so the disabled path stays a single branch.
type Ref struct {
	// nil when self-profiling is disabled for the session
	profiler *SelfProfiler

	// copy of profiler.mask, FilterNone when profiler is nil
	mask EventFilter

	printVerbose      bool
	printExtraVerbose bool
	out               io.Writer
}

// NewRef creates a Ref. profiler may be nil, in which case nothing is ever
// recorded but verbose timing lines are still printed when requested.
func NewRef(profiler *SelfProfiler, printVerbose, printExtraVerbose bool) Ref {
	mask := FilterNone
	if profiler != nil {
		mask = profiler.mask
	}
	return Ref{
		profiler:          profiler,
		mask:              mask,
		printVerbose:      printVerbose,
		printExtraVerbose: printExtraVerbose,
		out:               &lockedWriter{w: os.Stdout},
	}
}

// WithOutput returns a copy of r that prints timing lines to w. Lines
// from concurrent guards are written one at a time.
func (r Ref) WithOutput(w io.Writer) Ref {
	r.out = &lockedWriter{w: w}
	return r
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Enabled reports whether a SelfProfiler is attached.
func (r Ref) Enabled() bool {
	return r.profiler != nil
}

// EventFilterMask returns the cached event filter.
func (r Ref) EventFilterMask() EventFilter {
	return r.mask
}

// WithProfiler runs f only when profiling is enabled.
func (r Ref) WithProfiler(f func(*SelfProfiler)) {
	if r.profiler != nil {
		f(r.profiler)
	}
}

// GenericActivity starts timing a generic activity labelled with a
// constant string. Recording continues until the guard is finished.
func (r Ref) GenericActivity(label string) *TimingGuard {
	if r.mask&FilterGenericActivities == 0 {
		return nil
	}
	return r.genericActivity(label)
}

//go:noinline
func (r Ref) genericActivity(label string) *TimingGuard {
	id := measure.EventIDFromLabel(r.profiler.GetOrAllocCachedString(label))
	return r.profiler.startInterval(kindGenericActivity, id)
}

// VerboseGenericActivity is GenericActivity that also prints a timing line
// when the session was started with verbose timing.
func (r Ref) VerboseGenericActivity(label string) *VerboseTimingGuard {
	return startVerbose(label, r.printVerbose, r.out, r.GenericActivity(label))
}

// ExtraVerboseGenericActivity records a generic activity under the
// constant label and, with extra-verbose timing, prints "label(arg)".
// The dynamic arg is only ever printed; it never reaches the recorder.
func (r Ref) ExtraVerboseGenericActivity(label, arg string) *VerboseTimingGuard {
	what := label
	if r.printExtraVerbose && arg != "" {
		what = label + "(" + arg + ")"
	}
	return startVerbose(what, r.printExtraVerbose, r.out, r.GenericActivity(label))
}

// QueryProvider starts timing a query provider. The invocation is not
// known yet; finish the guard with FinishWithQueryInvocationID.
func (r Ref) QueryProvider() *TimingGuard {
	if r.mask&FilterQueryProviders == 0 {
		return nil
	}
	return r.interval(kindQuery)
}

// QueryCacheHit records an in-memory cache hit for an invocation.
func (r Ref) QueryCacheHit(id QueryInvocationID) {
	if r.mask&FilterQueryCacheHits == 0 {
		return
	}
	r.instantQueryEvent(kindQueryCacheHit, id)
}

// QueryBlocked starts timing a wait on a query that another goroutine is
// computing.
func (r Ref) QueryBlocked() *TimingGuard {
	if r.mask&FilterQueryBlocked == 0 {
		return nil
	}
	return r.interval(kindQueryBlocked)
}

// IncrCacheLoading starts timing a load from the incremental on-disk cache.
func (r Ref) IncrCacheLoading() *TimingGuard {
	if r.mask&FilterIncrCacheLoads == 0 {
		return nil
	}
	return r.interval(kindIncrementalLoadResult)
}

//go:noinline
func (r Ref) interval(kind eventKind) *TimingGuard {
	return r.profiler.startInterval(kind, measure.InvalidEventID)
}

//go:noinline
func (r Ref) instantQueryEvent(kind eventKind, id QueryInvocationID) {
	r.profiler.recordInstant(kind, measure.EventIDFromVirtual(id.StringID()))
}
