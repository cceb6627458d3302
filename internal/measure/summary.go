package measure

import (
	"cmp"
	"slices"
	"time"
)

// SummaryRow aggregates events sharing a kind and a label.
type SummaryRow struct {
	Kind     string
	Label    string
	Count    int
	Instants int
	Total    time.Duration
	Max      time.Duration
}

// Summarize groups events by kind and resolved label, sorted by total
// time (descending), then count, then kind and label.
func Summarize(d *Data) []SummaryRow {
	type key struct{ kind, label string }
	index := make(map[key]int)
	var rows []SummaryRow

	for i := range d.Events {
		ev := &d.Events[i]
		k := key{kind: d.KindName(ev.Kind), label: d.Label(ev.ID)}
		idx, ok := index[k]
		if !ok {
			idx = len(rows)
			index[k] = idx
			rows = append(rows, SummaryRow{Kind: k.kind, Label: k.label})
		}
		row := &rows[idx]
		row.Count++
		if ev.IsInstant() {
			row.Instants++
			continue
		}
		dur := ev.Duration()
		row.Total += dur
		row.Max = max(row.Max, dur)
	}

	slices.SortFunc(rows, func(a, b SummaryRow) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return rows
}
