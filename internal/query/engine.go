package query

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"selfprof/internal/measure"
	"selfprof/internal/selfprof"
)

// Options configures an Engine.
type Options struct {
	// Profiler receives query events. The zero Ref disables profiling.
	Profiler selfprof.Ref
	// Disk enables the incremental cache when non-nil.
	Disk *DiskCache
	// Logger reports cache failures. nil disables logging.
	Logger *zap.Logger
}

// Stats counts how invocations were answered.
type Stats struct {
	Invocations uint64 // distinct (query, key) pairs
	Computed    uint64
	Loaded      uint64 // answered from the disk cache
	Hits        uint64 // answered from memory
	Blocked     uint64 // waited on another goroutine
	Failed      uint64
}

// Engine owns the invocation id space and every query defined on it.
type Engine struct {
	prof selfprof.Ref
	disk *DiskCache
	log  *zap.Logger

	nextID atomic.Uint32

	invocations atomic.Uint64
	computed    atomic.Uint64
	loaded      atomic.Uint64
	hits        atomic.Uint64
	blocked     atomic.Uint64
	failed      atomic.Uint64

	mu      sync.Mutex
	queries []registered
}

// registered is the type-erased view of a Query used for string
// allocation.
type registered interface {
	Name() string
	allocStrings(p *selfprof.SelfProfiler)
}

// NewEngine creates an Engine.
func NewEngine(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		prof: opts.Profiler,
		disk: opts.Disk,
		log:  log,
	}
}

// Profiler returns the Ref the engine records into.
func (e *Engine) Profiler() selfprof.Ref {
	return e.prof
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Invocations: e.invocations.Load(),
		Computed:    e.computed.Load(),
		Loaded:      e.loaded.Load(),
		Hits:        e.hits.Load(),
		Blocked:     e.blocked.Load(),
		Failed:      e.failed.Load(),
	}
}

// allocInvocationID hands out the next invocation id. Ids are virtual
// string ids, so the space is capped at measure.MaxVirtualStringID.
func (e *Engine) allocInvocationID() selfprof.QueryInvocationID {
	id := e.nextID.Add(1) - 1
	if measure.StringID(id) > measure.MaxVirtualStringID {
		panic(fmt.Sprintf("query: invocation id space exhausted (%d)", id))
	}
	e.invocations.Add(1)
	return selfprof.QueryInvocationID(id)
}

func (e *Engine) register(q registered) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, have := range e.queries {
		if have.Name() == q.Name() {
			panic(fmt.Sprintf("query: %q defined twice", q.Name()))
		}
	}
	e.queries = append(e.queries, q)
}

// AllocSelfProfileQueryStrings attaches labels to every invocation seen so
// far. With query-keys recording each invocation gets its own
// "name(key)" string; otherwise all invocations of a query share the
// query name through one bulk mapping.
//
// Call it once, after all queries have finished and before the profiler is
// closed.
func (e *Engine) AllocSelfProfileQueryStrings() {
	e.prof.WithProfiler(func(p *selfprof.SelfProfiler) {
		g := e.prof.GenericActivity("self_profile_alloc_query_strings")
		defer g.Finish()

		e.mu.Lock()
		queries := append([]registered(nil), e.queries...)
		e.mu.Unlock()

		for _, q := range queries {
			q.allocStrings(p)
		}
	})
}
