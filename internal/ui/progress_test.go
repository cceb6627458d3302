package ui

import (
	"strings"
	"testing"
	"time"

	"selfprof/internal/workload"
)

func TestProgressModelTracksItems(t *testing.T) {
	events := make(chan workload.Event)
	m := NewProgressModel("demo", []string{"lex", "parse"}, events).(*progressModel)

	m.Update(eventMsg(workload.Event{Item: "lex", Status: workload.StatusWorking}))
	if got := m.percent(); got != 0.25 {
		t.Fatalf("percent = %v, want 0.25", got)
	}
	m.Update(eventMsg(workload.Event{Item: "lex", Status: workload.StatusDone, Elapsed: 1500 * time.Millisecond}))
	m.Update(eventMsg(workload.Event{Item: "unknown", Status: workload.StatusDone}))

	if m.finished() != 1 {
		t.Fatalf("finished = %d, want 1", m.finished())
	}
	view := m.View()
	if !strings.Contains(view, "demo (1/2)") {
		t.Fatalf("header missing from view:\n%s", view)
	}
	if !strings.Contains(view, "1.500s") {
		t.Fatalf("elapsed time missing from view:\n%s", view)
	}

	_, cmd := m.Update(doneMsg{})
	if !m.done || cmd == nil {
		t.Fatal("done message should quit")
	}
	if !strings.Contains(m.View(), "done: demo") {
		t.Fatalf("done header missing:\n%s", m.View())
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 8, "ab..."},
		{"abcdef", 2, "ab"},
		{"漢字漢字漢字", 10, "漢字..."},
		{"anything", 0, "anything"},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.width); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
		}
	}
}
