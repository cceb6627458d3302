package measure

// MultiRecorder fans out records to multiple recorders.
type MultiRecorder struct {
	recorders []Recorder
}

// NewMultiRecorder creates a new MultiRecorder that writes to all provided recorders.
func NewMultiRecorder(recorders ...Recorder) *MultiRecorder {
	return &MultiRecorder{recorders: recorders}
}

// RecordHeader sends the header to all underlying recorders.
func (m *MultiRecorder) RecordHeader(h *Header) error {
	return m.each(func(r Recorder) error { return r.RecordHeader(h) })
}

// RecordString sends the string to all underlying recorders.
func (m *MultiRecorder) RecordString(id StringID, text string) error {
	return m.each(func(r Recorder) error { return r.RecordString(id, text) })
}

// RecordMapping sends the mapping to all underlying recorders.
func (m *MultiRecorder) RecordMapping(from, to StringID) error {
	return m.each(func(r Recorder) error { return r.RecordMapping(from, to) })
}

// RecordBulkMapping sends the bulk mapping to all underlying recorders.
func (m *MultiRecorder) RecordBulkMapping(from []StringID, to StringID) error {
	return m.each(func(r Recorder) error { return r.RecordBulkMapping(from, to) })
}

// RecordEvent sends the event to all underlying recorders.
func (m *MultiRecorder) RecordEvent(ev *RawEvent) error {
	return m.each(func(r Recorder) error { return r.RecordEvent(ev) })
}

// Flush flushes all underlying recorders.
func (m *MultiRecorder) Flush() error {
	return m.each(Recorder.Flush)
}

// Close closes all underlying recorders.
func (m *MultiRecorder) Close() error {
	return m.each(Recorder.Close)
}

// Discard discards every underlying recorder that supports it and closes
// the rest.
func (m *MultiRecorder) Discard() error {
	return m.each(func(r Recorder) error {
		if d, ok := r.(discarder); ok {
			return d.Discard()
		}
		return r.Close()
	})
}

// each calls fn on every recorder and returns the first error.
func (m *MultiRecorder) each(fn func(Recorder) error) error {
	var firstErr error
	for _, r := range m.recorders {
		if err := fn(r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// discarder is implemented by recorders that can drop their output.
type discarder interface {
	Discard() error
}

// Discard drops whatever rec has written so far. Recorders that cannot
// drop their output are closed instead.
func Discard(rec Recorder) error {
	if d, ok := rec.(discarder); ok {
		return d.Discard()
	}
	return rec.Close()
}
