package observ

import (
	"fmt"
	"io"
	"math"
	"time"
)

// DurationToSecsStr formats d as seconds with exactly three decimals so
// scripts can parse the output without caring about units.
func DurationToSecsStr(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

// PrintTimePassesEntry writes one timing line:
//
//	time: <secs>[; rss: <MB>MB]\t<what>
//
// The rss part is omitted when the resident set size cannot be read.
func PrintTimePassesEntry(w io.Writer, doIt bool, what string, dur time.Duration) {
	if !doIt || w == nil {
		return
	}

	mem := ""
	if n, ok := Resident(); ok {
		mb := float64(n) / 1_000_000.0
		mem = fmt.Sprintf("; rss: %dMB", int64(math.Round(mb)))
	}
	// Best-effort write - timing output never fails the host
	_, _ = fmt.Fprintf(w, "time: %s%s\t%s\n", DurationToSecsStr(dur), mem, what) //nolint:errcheck
}
