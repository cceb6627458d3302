package measure

import (
	"math"
	"time"

	"fortio.org/safecast"
)

// InstantMarker is stored in RawEvent.End for instant events.
const InstantMarker uint64 = math.MaxUint64

// FormatVersion is bumped whenever the stream layout changes.
const FormatVersion uint16 = 1

// Magic opens every profile stream.
const Magic = "SPRF"

// Header describes a profiling session.
type Header struct {
	_msgpack struct{} `msgpack:",as_array"`

	Magic   string
	Version uint16
	PID     int
	Crate   string
	Start   time.Time
}

// RawEvent is a single recorded event. Timestamps are nanoseconds since
// the session start.
type RawEvent struct {
	_msgpack struct{} `msgpack:",as_array"`

	Kind     StringID
	ID       EventID
	ThreadID uint32
	Start    uint64
	End      uint64
}

// IsInstant reports whether the event has a single timestamp.
func (e *RawEvent) IsInstant() bool {
	return e.End == InstantMarker
}

// Duration returns the interval length, or zero for instant events.
func (e *RawEvent) Duration() time.Duration {
	if e.IsInstant() || e.End < e.Start {
		return 0
	}
	d, err := safecast.Conv[int64](e.End - e.Start)
	if err != nil {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// recordTag prefixes every record in a stream.
type recordTag uint8

const (
	tagString recordTag = iota + 1
	tagMapping
	tagBulkMapping
	tagEvent
)

// String returns the string representation of recordTag.
func (t recordTag) String() string {
	switch t {
	case tagString:
		return "string"
	case tagMapping:
		return "mapping"
	case tagBulkMapping:
		return "bulk-mapping"
	case tagEvent:
		return "event"
	default:
		return "unknown"
	}
}

type stringRecord struct {
	_msgpack struct{} `msgpack:",as_array"`

	ID   StringID
	Text string
}

type mappingRecord struct {
	_msgpack struct{} `msgpack:",as_array"`

	From StringID
	To   StringID
}

type bulkMappingRecord struct {
	_msgpack struct{} `msgpack:",as_array"`

	From []StringID
	To   StringID
}
