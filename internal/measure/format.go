package measure

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Format represents the output format for decoded events.
type Format uint8

const (
	FormatText   Format = iota // human-readable text
	FormatNDJSON               // newline-delimited JSON
)

// ParseFormat converts a string to Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "ndjson", "json":
		return FormatNDJSON, nil
	default:
		return FormatText, fmt.Errorf("invalid format: %q (expected: text|ndjson)", s)
	}
}

// FormatEvent formats an event according to the specified format. Labels
// are resolved against d.
func FormatEvent(d *Data, ev *RawEvent, format Format) []byte {
	switch format {
	case FormatNDJSON:
		return formatNDJSON(d, ev)
	default:
		return formatText(d, ev)
	}
}

// formatNDJSON formats an event as newline-delimited JSON.
func formatNDJSON(d *Data, ev *RawEvent) []byte {
	type jsonEvent struct {
		Kind     string  `json:"kind"`
		Label    string  `json:"label,omitempty"`
		EventID  uint32  `json:"event_id"`
		Virtual  bool    `json:"virtual,omitempty"`
		ThreadID uint32  `json:"tid"`
		StartNS  uint64  `json:"start_ns"`
		EndNS    *uint64 `json:"end_ns,omitempty"`
		Instant  bool    `json:"instant,omitempty"`
	}

	j := jsonEvent{
		Kind:     d.KindName(ev.Kind),
		Label:    d.Label(ev.ID),
		EventID:  uint32(ev.ID),
		Virtual:  ev.ID.IsValid() && ev.ID.StringID().IsVirtual(),
		ThreadID: ev.ThreadID,
		StartNS:  ev.Start,
		Instant:  ev.IsInstant(),
	}
	if !ev.IsInstant() {
		end := ev.End
		j.EndNS = &end
	}

	data, _ := json.Marshal(j) //nolint:errchkjson // plain struct
	data = append(data, '\n')
	return data
}

// formatText formats an event as human-readable text.
// Format: [start] marker kind label (duration) tid=N
func formatText(d *Data, ev *RawEvent) []byte {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%10.3fms] ", toMillis(time.Duration(ev.Start)))) //nolint:gosec // session-relative

	if ev.IsInstant() {
		sb.WriteString("\u2022 ") // •
	} else {
		sb.WriteString("\u2192 ") // →
	}

	sb.WriteString(d.KindName(ev.Kind))

	if label := d.Label(ev.ID); label != "" {
		sb.WriteString(" ")
		sb.WriteString(label)
	}

	if !ev.IsInstant() {
		sb.WriteString(fmt.Sprintf(" (%.3fms)", toMillis(ev.Duration())))
	}

	sb.WriteString(fmt.Sprintf(" tid=%d\n", ev.ThreadID))
	return []byte(sb.String())
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
