package selfprof

import (
	"io"
	"time"

	"selfprof/internal/measure"
	"selfprof/internal/observ"
)

// TimingGuard is an in-flight interval event. A nil guard is valid and
// does nothing; disabled categories hand out nil guards.
//
// A guard is finished exactly once. After the first Finish or
// FinishWithQueryInvocationID every further call is a no-op.
type TimingGuard struct {
	interval *measure.IntervalGuard
}

// Finish closes the interval with the event id it was started with.
func (g *TimingGuard) Finish() {
	if g == nil || g.interval == nil {
		return
	}
	g.interval.Finish()
	g.interval = nil
}

// FinishWithQueryInvocationID closes the interval, replacing its event id
// with the virtual id of the invocation that just ran.
func (g *TimingGuard) FinishWithQueryInvocationID(id QueryInvocationID) {
	if g == nil || g.interval == nil {
		return
	}
	g.interval.FinishWithOverrideEventID(measure.EventIDFromVirtual(id.StringID()))
	g.interval = nil
}

// Active reports whether the guard still has an open interval.
func (g *TimingGuard) Active() bool {
	return g != nil && g.interval != nil
}

// VerboseTimingGuard wraps a TimingGuard and optionally prints a
// time-passes line when finished.
type VerboseTimingGuard struct {
	what  string
	start time.Time
	timed bool
	out   io.Writer
	guard *TimingGuard
	done  bool
}

// startVerbose returns nil when there is nothing to record or print.
func startVerbose(what string, verbose bool, out io.Writer, guard *TimingGuard) *VerboseTimingGuard {
	if !verbose && guard == nil {
		return nil
	}
	g := &VerboseTimingGuard{
		what:  what,
		out:   out,
		guard: guard,
		timed: verbose,
	}
	if verbose {
		g.start = time.Now()
	}
	return g
}

// Finish prints the timing line if requested and closes the interval.
func (g *VerboseTimingGuard) Finish() {
	if g == nil || g.done {
		return
	}
	g.done = true
	if g.timed {
		observ.PrintTimePassesEntry(g.out, true, g.what, time.Since(g.start))
	}
	g.guard.Finish()
}

// Run calls f and finishes the guard afterwards, even if f panics.
func (g *VerboseTimingGuard) Run(f func()) {
	defer g.Finish()
	f()
}

// Run calls f under g and returns its result.
func Run[R any](g *VerboseTimingGuard, f func() R) R {
	defer g.Finish()
	return f()
}
