package workload_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"selfprof/internal/measure"
	"selfprof/internal/query"
	"selfprof/internal/selfprof"
	"selfprof/internal/workload"
)

type recordingSink struct {
	mu     sync.Mutex
	events []workload.Event
}

func (s *recordingSink) OnEvent(ev workload.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) count(status workload.Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Status == status {
			n++
		}
	}
	return n
}

func runDiamond(t *testing.T, opts query.Options, jobs int) (*workload.Report, *recordingSink) {
	t.Helper()
	g, err := workload.Build(diamond())
	if err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{}
	r := workload.NewRunner("demo", g, query.NewEngine(opts))
	rep, err := r.Run(context.Background(), workload.Options{Jobs: jobs, Progress: sink})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return rep, sink
}

func TestRunComputesCosts(t *testing.T) {
	rep, sink := runDiamond(t, query.Options{}, 4)

	costs := make(map[string]uint64)
	for _, res := range rep.Results {
		costs[res.Item] = res.Cost
	}
	want := map[string]uint64{"base": 4, "left": 6, "right": 7, "link": 14}
	if diff := cmp.Diff(want, costs); diff != "" {
		t.Fatalf("costs mismatch (-want +got):\n%s", diff)
	}
	if rep.Results[0].Item != "base" || rep.Results[3].Item != "link" {
		t.Fatalf("results not in topological order: %+v", rep.Results)
	}
	if sink.count(workload.StatusQueued) != 4 || sink.count(workload.StatusDone) != 4 {
		t.Fatalf("progress events = %+v", sink.events)
	}
	if rep.Stats.Computed != 8 {
		t.Fatalf("computed = %d, want 8 (two queries per item)", rep.Stats.Computed)
	}
}

func TestRunIsDeterministicAcrossJobCounts(t *testing.T) {
	serial, _ := runDiamond(t, query.Options{}, 1)
	parallel, _ := runDiamond(t, query.Options{}, 8)
	if diff := cmp.Diff(serial.Results, parallel.Results); diff != "" {
		t.Fatalf("results differ (-serial +parallel):\n%s", diff)
	}
}

func TestRunReusesDiskCache(t *testing.T) {
	disk, err := query.NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	first, _ := runDiamond(t, query.Options{Disk: disk}, 2)

	p, err := selfprof.New(selfprof.Config{Mode: measure.ModeRing, EventFilters: []string{"all"}})
	if err != nil {
		t.Fatal(err)
	}
	second, _ := runDiamond(t, query.Options{Disk: disk, Profiler: selfprof.NewRef(p, false, false)}, 2)

	if diff := cmp.Diff(first.Results, second.Results); diff != "" {
		t.Fatalf("cached results differ (-first +second):\n%s", diff)
	}
	if second.Stats.Computed != 0 || second.Stats.Loaded != 4 {
		t.Fatalf("second run stats = %+v", second.Stats)
	}

	data := p.Ring().Snapshot()
	loads := 0
	for _, ev := range data.Events {
		if data.KindName(ev.Kind) == "IncrementalLoadResult" {
			loads++
		}
	}
	if loads != 4 {
		t.Fatalf("incremental load events = %d, want 4", loads)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	g, err := workload.Build(diamond())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := workload.NewRunner("demo", g, query.NewEngine(query.Options{}))
	if _, err := r.Run(ctx, workload.Options{Jobs: 1}); err == nil {
		t.Fatal("expected cancellation error")
	}
}
