package measure

// nopRecorder is a no-op implementation used when nothing should be persisted.
type nopRecorder struct{}

// RecordHeader does nothing.
func (nopRecorder) RecordHeader(*Header) error { return nil }

// RecordString does nothing.
func (nopRecorder) RecordString(StringID, string) error { return nil }

// RecordMapping does nothing.
func (nopRecorder) RecordMapping(StringID, StringID) error { return nil }

// RecordBulkMapping does nothing.
func (nopRecorder) RecordBulkMapping([]StringID, StringID) error { return nil }

// RecordEvent does nothing.
func (nopRecorder) RecordEvent(*RawEvent) error { return nil }

// Flush does nothing.
func (nopRecorder) Flush() error { return nil }

// Close does nothing.
func (nopRecorder) Close() error { return nil }

// Nop is the package-level singleton nop recorder.
var Nop Recorder = nopRecorder{}
