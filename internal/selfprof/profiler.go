package selfprof

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"selfprof/internal/measure"
)

// FileExtension is appended to profile file names.
const FileExtension = ".selfprof"

// QueryInvocationID uniquely identifies one query invocation. The host
// supplies it; it doubles as a virtual string id.
type QueryInvocationID uint32

// StringID returns the virtual string id for the invocation.
func (q QueryInvocationID) StringID() measure.StringID {
	return measure.NewVirtualStringID(uint32(q))
}

// eventKind indexes the pre-allocated event kind labels.
type eventKind uint8

const (
	kindGenericActivity eventKind = iota
	kindQuery
	kindQueryCacheHit
	kindQueryBlocked
	kindIncrementalLoadResult
	kindCount
)

var eventKindNames = [kindCount]string{
	kindGenericActivity:       "GenericActivity",
	kindQuery:                 "Query",
	kindQueryCacheHit:         "QueryCacheHit",
	kindQueryBlocked:          "QueryBlocked",
	kindIncrementalLoadResult: "IncrementalLoadResult",
}

// Config holds self-profiler settings for one session.
type Config struct {
	// OutputDir receives the profile file; it is created if missing.
	// Empty means the working directory.
	OutputDir string
	// CrateName names the profile file; defaults to "unknown-crate".
	CrateName string
	// EventFilters lists filter names. An empty list selects FilterDefault.
	EventFilters []string

	// Mode selects file output, in-memory ring, or both (default: stream).
	Mode measure.StorageMode
	// RingSize bounds the in-memory ring.
	RingSize int
	// Recorder replaces the file/ring recorder entirely when set.
	Recorder measure.Recorder
	// Extra recorders receive a copy of every record (e.g. otelrec).
	Extra []measure.Recorder

	// Logger receives setup warnings. nil disables logging.
	Logger *zap.Logger
}

// SelfProfiler owns the recording engine, the event filter and the string
// cache of a session.
type SelfProfiler struct {
	profiler *measure.Profiler
	mask     EventFilter
	strings  *Interner
	kinds    [kindCount]measure.StringID

	path string
	ring *measure.RingRecorder
	log  *zap.Logger
}

// ProfileFileName returns "<crate>-<pid>.selfprof".
func ProfileFileName(crate string, pid int) string {
	if crate == "" {
		crate = "unknown-crate"
	}
	return fmt.Sprintf("%s-%d%s", crate, pid, FileExtension)
}

// New opens a profiling session. Failing to create the output directory or
// to open the recorder is returned as an error; the session never starts
// half-way.
func New(cfg Config) (*SelfProfiler, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	crate := cfg.CrateName
	if crate == "" {
		crate = "unknown-crate"
	}

	sp := &SelfProfiler{log: log}

	rec := cfg.Recorder
	if rec == nil {
		mode := cfg.Mode
		if mode == 0 {
			mode = measure.ModeStream
		}
		var path string
		if mode != measure.ModeRing {
			dir := cfg.OutputDir
			if dir == "" {
				dir = "."
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create self-profile directory: %w", err)
			}
			path = filepath.Join(dir, ProfileFileName(crate, os.Getpid()))
		}
		var err error
		rec, sp.ring, err = measure.NewRecorder(measure.Config{
			Mode:       mode,
			OutputPath: path,
			RingSize:   cfg.RingSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open self-profile recorder: %w", err)
		}
		sp.path = path
	}
	if len(cfg.Extra) > 0 {
		rec = measure.NewMultiRecorder(append([]measure.Recorder{rec}, cfg.Extra...)...)
	}

	p, err := measure.NewProfiler(rec, crate)
	if err != nil {
		_ = measure.Discard(rec) //nolint:errcheck // setup already failed
		return nil, err
	}
	sp.profiler = p
	sp.strings = NewInterner(p)

	for kind, name := range eventKindNames {
		sp.kinds[kind] = p.AllocString(name)
	}

	mask, unknown := MaskFor(cfg.EventFilters)
	if len(unknown) > 0 {
		log.Warn("unknown self-profiler events specified",
			zap.String("unknown", strings.Join(unknown, ", ")),
			zap.String("available", strings.Join(FilterNames(), ", ")),
		)
	}
	sp.mask = mask

	if err := p.Err(); err != nil {
		_ = p.Close() //nolint:errcheck // the write error is what matters
		return nil, err
	}

	log.Debug("self-profiler started",
		zap.String("path", sp.path),
		zap.Stringer("events", mask),
	)
	return sp, nil
}

// AllocString allocates text without caching. Use it for labels built at
// runtime that are unlikely to repeat.
func (p *SelfProfiler) AllocString(text string) measure.StringID {
	return p.profiler.AllocString(text)
}

// GetOrAllocCachedString returns the id of a constant label, allocating it
// only the first time it is seen in the session.
func (p *SelfProfiler) GetOrAllocCachedString(label string) measure.StringID {
	return p.strings.Intern(label)
}

// MapQueryInvocationIDToString binds one invocation to a concrete label.
func (p *SelfProfiler) MapQueryInvocationIDToString(from QueryInvocationID, to measure.StringID) {
	p.profiler.MapVirtualToConcreteString(from.StringID(), to)
}

// BulkMapQueryInvocationIDsToSingleString binds every invocation in from
// to the same label with a single record.
func (p *SelfProfiler) BulkMapQueryInvocationIDsToSingleString(from []QueryInvocationID, to measure.StringID) {
	if len(from) == 0 {
		return
	}
	virtual := make([]measure.StringID, len(from))
	for i, id := range from {
		virtual[i] = id.StringID()
	}
	p.profiler.BulkMapVirtualToSingleConcreteString(virtual, to)
}

// QueryKeyRecordingEnabled reports whether query keys should be turned
// into strings when allocating query labels.
func (p *SelfProfiler) QueryKeyRecordingEnabled() bool {
	return p.mask.Contains(FilterQueryKeys)
}

// EventFilterMask returns the session's event filter.
func (p *SelfProfiler) EventFilterMask() EventFilter {
	return p.mask
}

// Path returns the profile file path, or "" when nothing is written to disk.
func (p *SelfProfiler) Path() string {
	return p.path
}

// Ring returns the in-memory recorder when the session keeps one.
func (p *SelfProfiler) Ring() *measure.RingRecorder {
	return p.ring
}

// Err returns the first recording failure of the session, if any.
func (p *SelfProfiler) Err() error {
	return p.profiler.Err()
}

// Close ends the session. All guards must be finished and all query
// strings mapped before calling it. A recording failure during the
// session is returned here and the partial output is removed.
func (p *SelfProfiler) Close() error {
	if n := p.profiler.OpenIntervals(); n > 0 {
		p.log.Warn("self-profiler closed with open intervals", zap.Int64("open", n))
	}
	if err := p.profiler.Close(); err != nil {
		return fmt.Errorf("self-profile session failed: %w", err)
	}
	p.log.Debug("self-profiler closed", zap.String("path", p.path))
	return nil
}

func (p *SelfProfiler) startInterval(kind eventKind, id measure.EventID) *TimingGuard {
	return &TimingGuard{
		interval: p.profiler.StartRecordingIntervalEvent(p.kinds[kind], id, measure.CurrentThreadID()),
	}
}

func (p *SelfProfiler) recordInstant(kind eventKind, id measure.EventID) {
	p.profiler.RecordInstantEvent(p.kinds[kind], id, measure.CurrentThreadID())
}
