//go:build linux

package observ

import (
	"bytes"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// Resident returns the resident set size of the process in bytes.
func Resident() (uint64, bool) {
	contents, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return 0, false
	}
	// statm: size resident shared text lib data dt (in pages)
	fields := bytes.Fields(contents)
	if len(fields) < 2 {
		return 0, false
	}
	pages, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0, false
	}
	return pages * uint64(unix.Getpagesize()), true //nolint:gosec // page size is positive
}
