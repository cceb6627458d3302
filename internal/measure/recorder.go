package measure

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrClosed is returned by recorders after Close.
var ErrClosed = errors.New("measure: recorder closed")

// Recorder persists profile records. Implementations must be goroutine-safe.
type Recorder interface {
	// RecordHeader is called once, before any other record.
	RecordHeader(h *Header) error

	// RecordString stores the text of a concrete string id.
	RecordString(id StringID, text string) error

	// RecordMapping binds a virtual id to a concrete one.
	RecordMapping(from, to StringID) error

	// RecordBulkMapping binds every id in from to the same concrete id.
	RecordBulkMapping(from []StringID, to StringID) error

	// RecordEvent stores an interval or instant event.
	RecordEvent(ev *RawEvent) error

	// Flush ensures all buffered records are written.
	Flush() error

	// Close flushes and releases resources.
	Close() error
}

// StorageMode determines how records are stored.
type StorageMode uint8

const (
	ModeStream StorageMode = iota + 1 // msgpack file or writer
	ModeRing                          // in-memory
	ModeBoth                          // stream + ring
)

// String returns the string representation of StorageMode.
func (m StorageMode) String() string {
	switch m {
	case ModeStream:
		return "stream"
	case ModeRing:
		return "ring"
	case ModeBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseMode converts a string to StorageMode.
func ParseMode(s string) (StorageMode, error) {
	switch strings.ToLower(s) {
	case "", "stream":
		return ModeStream, nil
	case "ring":
		return ModeRing, nil
	case "both":
		return ModeBoth, nil
	default:
		return ModeStream, fmt.Errorf("invalid storage mode: %q (expected: stream|ring|both)", s)
	}
}

// Config holds recorder configuration.
type Config struct {
	Mode       StorageMode // storage mode
	Output     io.Writer   // for stream mode (if nil, use OutputPath)
	OutputPath string      // file path, parent directories are created
	RingSize   int         // events kept by the ring (default 65536)
}

// DefaultRingSize is used when Config.RingSize is not positive.
const DefaultRingSize = 1 << 16

// NewRecorder creates a Recorder based on Config. The returned ring is
// non-nil when the mode keeps events in memory.
func NewRecorder(cfg Config) (Recorder, *RingRecorder, error) {
	if cfg.RingSize <= 0 {
		cfg.RingSize = DefaultRingSize
	}

	switch cfg.Mode {
	case ModeStream, 0:
		st, err := openStream(cfg)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil

	case ModeRing:
		ring := NewRingRecorder(cfg.RingSize)
		return ring, ring, nil

	case ModeBoth:
		st, err := openStream(cfg)
		if err != nil {
			return nil, nil, err
		}
		ring := NewRingRecorder(cfg.RingSize)
		return NewMultiRecorder(st, ring), ring, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage mode: %v", cfg.Mode)
	}
}

// openStream opens the stream recorder from config.
func openStream(cfg Config) (*StreamRecorder, error) {
	if cfg.Output != nil {
		return NewStreamRecorder(cfg.Output), nil
	}
	if cfg.OutputPath == "" {
		return nil, errors.New("measure: stream mode needs an output path or writer")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile output: %w", err)
	}
	st := NewStreamRecorder(f)
	st.path = cfg.OutputPath
	return st, nil
}
