package query

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"selfprof/internal/selfprof"
)

// ErrComputePanicked is returned to callers that waited on an invocation
// whose Compute panicked.
var ErrComputePanicked = errors.New("query: compute panicked")

// Spec describes a query.
type Spec[K comparable, V any] struct {
	// Name labels every invocation in profiles; it must be unique per Engine.
	Name string
	// Compute produces the value for key. It may call other queries.
	Compute func(ctx context.Context, key K) (V, error)
	// Fingerprint, when set, enables the disk cache for this query.
	Fingerprint func(key K) Fingerprint
	// Describe renders key for query-key labels; fmt.Sprint by default.
	Describe func(key K) string
}

type entry[V any] struct {
	id    selfprof.QueryInvocationID
	done  chan struct{}
	value V
	err   error
}

// Query is a memoized function from K to V.
type Query[K comparable, V any] struct {
	spec   Spec[K, V]
	engine *Engine

	mu      sync.Mutex
	entries map[K]*entry[V]
	keys    map[selfprof.QueryInvocationID]K
}

// Define registers a query on e.
func Define[K comparable, V any](e *Engine, spec Spec[K, V]) *Query[K, V] {
	if spec.Name == "" || spec.Compute == nil {
		panic("query: Spec needs Name and Compute")
	}
	if spec.Describe == nil {
		spec.Describe = func(key K) string { return fmt.Sprint(key) }
	}
	q := &Query[K, V]{
		spec:    spec,
		engine:  e,
		entries: make(map[K]*entry[V]),
		keys:    make(map[selfprof.QueryInvocationID]K),
	}
	e.register(q)
	return q
}

// Name returns the query name.
func (q *Query[K, V]) Name() string {
	return q.spec.Name
}

// Get returns the value for key, computing it at most once per Engine.
// Concurrent callers for the same key wait for the first one. Failed
// invocations are not memoized.
func (q *Query[K, V]) Get(ctx context.Context, key K) (V, error) {
	prof := q.engine.prof

	q.mu.Lock()
	if ent, ok := q.entries[key]; ok {
		q.mu.Unlock()
		if err := q.wait(ctx, ent); err != nil {
			var zero V
			return zero, err
		}
		if ent.err != nil {
			return ent.value, ent.err
		}
		q.engine.hits.Add(1)
		prof.QueryCacheHit(ent.id)
		return ent.value, nil
	}
	ent := &entry[V]{
		id:   q.engine.allocInvocationID(),
		done: make(chan struct{}),
	}
	q.entries[key] = ent
	q.keys[ent.id] = key
	q.mu.Unlock()

	completed := false
	defer func() {
		if completed {
			return
		}
		// Compute panicked: release waiters and let the key be retried.
		ent.err = fmt.Errorf("%s: %w", q.spec.Name, ErrComputePanicked)
		q.forget(key)
		close(ent.done)
	}()
	ent.value, ent.err = q.execute(ctx, key, ent.id)
	completed = true
	if ent.err != nil {
		q.forget(key)
	}
	close(ent.done)
	return ent.value, ent.err
}

// forget drops a failed entry so the next Get recomputes it. The
// invocation id stays known for string allocation.
func (q *Query[K, V]) forget(key K) {
	q.engine.failed.Add(1)
	q.mu.Lock()
	delete(q.entries, key)
	q.mu.Unlock()
}

func (q *Query[K, V]) wait(ctx context.Context, ent *entry[V]) error {
	select {
	case <-ent.done:
		return nil
	default:
	}

	q.engine.blocked.Add(1)
	g := q.engine.prof.QueryBlocked()
	defer g.Finish()

	select {
	case <-ent.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Query[K, V]) execute(ctx context.Context, key K, id selfprof.QueryInvocationID) (V, error) {
	e := q.engine
	prof := e.prof

	var fp Fingerprint
	if q.spec.Fingerprint != nil && e.disk != nil {
		fp = q.spec.Fingerprint(key)
		if e.disk.Has(q.spec.Name, fp) {
			g := prof.IncrCacheLoading()
			var v V
			ok, err := e.disk.Get(q.spec.Name, fp, &v)
			if err != nil {
				g.Finish()
				e.log.Warn("discarding unreadable cache entry",
					zap.String("query", q.spec.Name),
					zap.Stringer("fingerprint", fp),
					zap.Error(err),
				)
			} else if ok {
				g.FinishWithQueryInvocationID(id)
				e.loaded.Add(1)
				return v, nil
			} else {
				g.Finish()
			}
		}
	}

	g := prof.QueryProvider()
	defer g.Finish()
	v, err := q.spec.Compute(ctx, key)
	g.FinishWithQueryInvocationID(id)
	if err != nil {
		return v, err
	}
	e.computed.Add(1)

	if !fp.IsZero() {
		if err := e.disk.Put(q.spec.Name, fp, v); err != nil {
			e.log.Warn("failed to store query result",
				zap.String("query", q.spec.Name),
				zap.Error(err),
			)
		}
	}
	return v, nil
}

// invocations returns (id, key) pairs sorted by id.
func (q *Query[K, V]) invocations() []invocation[K] {
	q.mu.Lock()
	out := make([]invocation[K], 0, len(q.keys))
	for id, key := range q.keys {
		out = append(out, invocation[K]{id: id, key: key})
	}
	q.mu.Unlock()
	slices.SortFunc(out, func(a, b invocation[K]) int { return cmp.Compare(a.id, b.id) })
	return out
}

type invocation[K any] struct {
	id  selfprof.QueryInvocationID
	key K
}

func (q *Query[K, V]) allocStrings(p *selfprof.SelfProfiler) {
	invs := q.invocations()
	if len(invs) == 0 {
		return
	}
	if p.QueryKeyRecordingEnabled() {
		for _, inv := range invs {
			label := p.AllocString(q.spec.Name + "(" + q.spec.Describe(inv.key) + ")")
			p.MapQueryInvocationIDToString(inv.id, label)
		}
		return
	}
	ids := make([]selfprof.QueryInvocationID, len(invs))
	for i, inv := range invs {
		ids[i] = inv.id
	}
	p.BulkMapQueryInvocationIDsToSingleString(ids, p.GetOrAllocCachedString(q.spec.Name))
}
