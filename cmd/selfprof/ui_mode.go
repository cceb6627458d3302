package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// progressView selects how `run` reports item progress.
type progressView string

const (
	progressAuto progressView = "auto"
	progressOn   progressView = "on"
	progressOff  progressView = "off"
)

func parseProgressView(value string) (progressView, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return progressAuto, nil
	case "on", "tui":
		return progressOn, nil
	case "off", "plain":
		return progressOff, nil
	default:
		return "", fmt.Errorf("invalid run --ui value %q (expected auto|on|off)", value)
	}
}

// interactive reports whether the Bubble Tea view should draw on out. In
// auto mode that requires out to be a terminal.
func (v progressView) interactive(out io.Writer) bool {
	switch v {
	case progressOn:
		return true
	case progressOff:
		return false
	default:
		f, ok := out.(*os.File)
		return ok && isTerminal(f)
	}
}
