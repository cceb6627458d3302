package workload

import (
	"context"
	"encoding/binary"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"selfprof/internal/query"
)

// Query names as they appear in profiles.
const (
	QueryItemCost  = "item_cost"
	QueryCheckItem = "check_item"
)

// iterations of the mixing loop per unit of work
const unitIterations = 1000

// CheckResult is the outcome of checking one item.
type CheckResult struct {
	Item   string
	Cost   uint64 // own work plus the cost of every dependency
	Digest uint64
}

// Report summarizes a run.
type Report struct {
	Package string
	Results []CheckResult // in topological order
	Stats   query.Stats
	Elapsed time.Duration
}

// Options controls Run.
type Options struct {
	// Jobs bounds the number of items checked concurrently; <= 0 means
	// GOMAXPROCS.
	Jobs     int
	Progress ProgressSink
}

// Runner executes a workload through a query engine.
type Runner struct {
	name   string
	graph  *Graph
	engine *query.Engine
	fps    []query.Fingerprint

	itemCost  *query.Query[ItemID, uint64]
	checkItem *query.Query[ItemID, CheckResult]
}

// NewRunner defines the workload queries on engine. An engine hosts one
// Runner.
func NewRunner(name string, g *Graph, engine *query.Engine) *Runner {
	r := &Runner{
		name:   name,
		graph:  g,
		engine: engine,
		fps:    fingerprints(g),
	}
	describe := func(id ItemID) string { return g.Items[id].Name }
	r.itemCost = query.Define(engine, query.Spec[ItemID, uint64]{
		Name:        QueryItemCost,
		Compute:     r.computeCost,
		Fingerprint: r.fingerprint,
		Describe:    describe,
	})
	r.checkItem = query.Define(engine, query.Spec[ItemID, CheckResult]{
		Name:        QueryCheckItem,
		Compute:     r.computeCheck,
		Fingerprint: r.fingerprint,
		Describe:    describe,
	})
	return r
}

// fingerprints hashes every item over its name, work and the
// fingerprints of its dependencies.
func fingerprints(g *Graph) []query.Fingerprint {
	fps := make([]query.Fingerprint, len(g.Items))
	for _, id := range g.Toposort().Order {
		item := g.Items[id]
		var work [8]byte
		binary.LittleEndian.PutUint64(work[:], item.Work)
		content := query.FingerprintOf([]byte(item.Name), []byte{0}, work[:])
		deps := make([]query.Fingerprint, len(item.Deps))
		for i, dep := range item.Deps {
			deps[i] = fps[dep]
		}
		fps[id] = query.Combine(content, deps...)
	}
	return fps
}

func (r *Runner) fingerprint(id ItemID) query.Fingerprint {
	return r.fps[id]
}

func (r *Runner) computeCost(ctx context.Context, id ItemID) (uint64, error) {
	item := r.graph.Items[id]
	total := item.Work
	for _, dep := range item.Deps {
		c, err := r.itemCost.Get(ctx, dep)
		if err != nil {
			return 0, err
		}
		total += c
	}
	return total, nil
}

func (r *Runner) computeCheck(ctx context.Context, id ItemID) (CheckResult, error) {
	item := r.graph.Items[id]
	cost, err := r.itemCost.Get(ctx, id)
	if err != nil {
		return CheckResult{}, err
	}
	digest := burn(uint64(id)+1, item.Work)
	for _, dep := range item.Deps {
		if err := ctx.Err(); err != nil {
			return CheckResult{}, err
		}
		res, err := r.checkItem.Get(ctx, dep)
		if err != nil {
			return CheckResult{}, err
		}
		digest ^= res.Digest
	}
	return CheckResult{Item: item.Name, Cost: cost, Digest: digest}, nil
}

// Run checks every item, at most opts.Jobs at a time. Items are started in
// topological order; dependencies still in flight are waited on through
// the query engine.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	prof := r.engine.Profiler()
	guard := prof.VerboseGenericActivity("execute_workload")
	defer guard.Finish()

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	sink := opts.Progress
	if sink == nil {
		sink = ChannelSink{}
	}

	order := r.graph.Toposort().Order
	for _, id := range order {
		sink.OnEvent(Event{Item: r.graph.Items[id].Name, Status: StatusQueued})
	}

	start := time.Now()
	results := make([]CheckResult, len(order))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, id := range order {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			name := r.graph.Items[id].Name
			sink.OnEvent(Event{Item: name, Status: StatusWorking})
			itemStart := time.Now()

			act := prof.ExtraVerboseGenericActivity("check_item", name)
			res, err := r.checkItem.Get(gctx, id)
			act.Finish()

			if err != nil {
				sink.OnEvent(Event{Item: name, Status: StatusError, Err: err, Elapsed: time.Since(itemStart)})
				return fmt.Errorf("check %s: %w", name, err)
			}
			results[i] = res
			sink.OnEvent(Event{Item: name, Status: StatusDone, Elapsed: time.Since(itemStart)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Report{
		Package: r.name,
		Results: results,
		Stats:   r.engine.Stats(),
		Elapsed: time.Since(start),
	}, nil
}

// burn runs a deterministic xorshift loop for units of work.
func burn(seed, units uint64) uint64 {
	x := seed*0x9e3779b97f4a7c15 | 1
	for range units * unitIterations {
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
	}
	return x
}
