package workload

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"fortio.org/safecast"
)

// ErrCycle is returned by Build when items depend on each other in a loop.
var ErrCycle = errors.New("workload: dependency cycle")

// ItemID indexes Graph.Items.
type ItemID uint32

// Item is a validated work unit.
type Item struct {
	ID   ItemID
	Name string
	Work uint64
	Deps []ItemID // sorted
}

// Graph is the dependency graph of a workload. Edges point from a
// dependency to its dependents.
type Graph struct {
	Items []Item
	Edges [][]ItemID
	Indeg []int

	index map[string]ItemID
}

// Topo is a topological order of a Graph.
type Topo struct {
	Order   []ItemID   // linear order
	Batches [][]ItemID // waves of independent items
	Cyclic  bool
	Cycles  []ItemID // items left in a cycle
}

// Build validates items and returns their graph. Duplicate names, unknown
// dependencies, self-dependencies and cycles are errors.
func Build(items []ItemConfig) (*Graph, error) {
	g := &Graph{
		Items: make([]Item, 0, len(items)),
		index: make(map[string]ItemID, len(items)),
	}
	for i, cfg := range items {
		id, err := safecast.Conv[ItemID](i)
		if err != nil {
			return nil, fmt.Errorf("too many items: %w", err)
		}
		if _, dup := g.index[cfg.Name]; dup {
			return nil, fmt.Errorf("duplicate item %q", cfg.Name)
		}
		g.index[cfg.Name] = id
		g.Items = append(g.Items, Item{ID: id, Name: cfg.Name, Work: cfg.Work})
	}

	g.Edges = make([][]ItemID, len(items))
	g.Indeg = make([]int, len(items))
	for i, cfg := range items {
		item := &g.Items[i]
		for _, dep := range cfg.Deps {
			to, ok := g.index[dep]
			if !ok {
				return nil, fmt.Errorf("item %q depends on unknown item %q", cfg.Name, dep)
			}
			if to == item.ID {
				return nil, fmt.Errorf("item %q depends on itself", cfg.Name)
			}
			if slices.Contains(item.Deps, to) {
				continue
			}
			item.Deps = append(item.Deps, to)
			g.Edges[to] = append(g.Edges[to], item.ID)
			g.Indeg[item.ID]++
		}
		slices.Sort(item.Deps)
	}
	for i := range g.Edges {
		slices.Sort(g.Edges[i])
	}

	if topo := g.Toposort(); topo.Cyclic {
		names := make([]string, len(topo.Cycles))
		for i, id := range topo.Cycles {
			names[i] = g.Items[id].Name
		}
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(names, ", "))
	}
	return g, nil
}

// Lookup returns the id of the named item.
func (g *Graph) Lookup(name string) (ItemID, bool) {
	id, ok := g.index[name]
	return id, ok
}

// Toposort orders the graph with Kahn's algorithm. Items inside one batch
// are sorted by id so the order is deterministic.
func (g *Graph) Toposort() *Topo {
	nodeCount := len(g.Items)
	indeg := make([]int, len(g.Indeg))
	copy(indeg, g.Indeg)

	topo := &Topo{
		Order:   make([]ItemID, 0, nodeCount),
		Batches: make([][]ItemID, 0),
	}

	current := make([]ItemID, 0, nodeCount)
	for i := range nodeCount {
		if indeg[i] == 0 {
			current = append(current, mustItemID(i))
		}
	}

	for len(current) > 0 {
		batch := make([]ItemID, len(current))
		copy(batch, current)
		topo.Batches = append(topo.Batches, batch)

		next := make([]ItemID, 0)
		for _, id := range batch {
			topo.Order = append(topo.Order, id)
			for _, to := range g.Edges[id] {
				indeg[to]--
				if indeg[to] == 0 {
					next = append(next, to)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if len(topo.Order) != nodeCount {
		topo.Cyclic = true
		for i := range nodeCount {
			if indeg[i] > 0 {
				topo.Cycles = append(topo.Cycles, mustItemID(i))
			}
		}
	}
	return topo
}

func mustItemID(i int) ItemID {
	id, err := safecast.Conv[ItemID](i)
	if err != nil {
		panic(fmt.Errorf("item id overflow: %w", err))
	}
	return id
}
