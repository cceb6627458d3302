package selfprof_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"selfprof/internal/measure"
	"selfprof/internal/selfprof"
)

type countingAllocator struct {
	calls atomic.Int64
	next  atomic.Uint32
}

func (a *countingAllocator) AllocString(string) measure.StringID {
	a.calls.Add(1)
	return measure.FirstConcreteStringID + measure.StringID(a.next.Add(1))
}

func TestInternerAllocatesOncePerLabel(t *testing.T) {
	const (
		goroutines = 32
		perWorker  = 200
	)
	alloc := &countingAllocator{}
	in := selfprof.NewInterner(alloc)

	ids := make([][]measure.StringID, goroutines)
	var start sync.WaitGroup
	start.Add(1)
	var wg sync.WaitGroup
	for g := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start.Wait()
			for range perWorker {
				ids[g] = append(ids[g], in.Intern("typeck"))
			}
		}()
	}
	start.Done()
	wg.Wait()

	if n := alloc.calls.Load(); n != 1 {
		t.Fatalf("allocations = %d, want 1", n)
	}
	want := ids[0][0]
	for g := range ids {
		for _, id := range ids[g] {
			if id != want {
				t.Fatalf("goroutine %d saw %v, want %v", g, id, want)
			}
		}
	}
	if in.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", in.Len())
	}
}

func TestInternerDistinctLabels(t *testing.T) {
	alloc := &countingAllocator{}
	in := selfprof.NewInterner(alloc)
	a := in.Intern("a")
	b := in.Intern("b")
	if a == b {
		t.Fatal("distinct labels share an id")
	}
	if in.Intern("a") != a || alloc.calls.Load() != 2 {
		t.Fatalf("unexpected re-allocation, calls = %d", alloc.calls.Load())
	}
}
