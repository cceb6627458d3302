package measure

import (
	"bufio"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// StreamRecorder writes records immediately to an io.Writer as a msgpack
// stream.
type StreamRecorder struct {
	mu     sync.Mutex
	w      io.Writer
	buf    *bufio.Writer
	enc    *msgpack.Encoder
	path   string // set when the recorder owns a file
	closed bool
}

// NewStreamRecorder creates a new StreamRecorder.
func NewStreamRecorder(w io.Writer) *StreamRecorder {
	buf := bufio.NewWriterSize(w, 64<<10)
	return &StreamRecorder{
		w:   w,
		buf: buf,
		enc: msgpack.NewEncoder(buf),
	}
}

// Path returns the output file path, if the recorder created one.
func (r *StreamRecorder) Path() string {
	return r.path
}

// RecordHeader writes the stream header.
func (r *StreamRecorder) RecordHeader(h *Header) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	return r.enc.Encode(h)
}

// RecordString writes a string record.
func (r *StreamRecorder) RecordString(id StringID, text string) error {
	return r.write(tagString, &stringRecord{ID: id, Text: text})
}

// RecordMapping writes a virtual-to-concrete mapping.
func (r *StreamRecorder) RecordMapping(from, to StringID) error {
	return r.write(tagMapping, &mappingRecord{From: from, To: to})
}

// RecordBulkMapping writes a bulk mapping as a single record.
func (r *StreamRecorder) RecordBulkMapping(from []StringID, to StringID) error {
	return r.write(tagBulkMapping, &bulkMappingRecord{From: from, To: to})
}

// RecordEvent writes an event record.
func (r *StreamRecorder) RecordEvent(ev *RawEvent) error {
	return r.write(tagEvent, ev)
}

func (r *StreamRecorder) write(tag recordTag, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if err := r.enc.EncodeUint8(uint8(tag)); err != nil {
		return err
	}
	return r.enc.Encode(payload)
}

// Flush writes buffered records to the underlying writer.
func (r *StreamRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *StreamRecorder) flushLocked() error {
	if r.closed {
		return nil
	}
	if err := r.buf.Flush(); err != nil {
		return err
	}
	if flusher, ok := r.w.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close flushes and closes the writer if it implements io.Closer.
func (r *StreamRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	flushErr := r.flushLocked()
	r.closed = true
	var closeErr error
	if closer, ok := r.w.(io.Closer); ok {
		closeErr = closer.Close()
	}
	return errors.Join(flushErr, closeErr)
}

// Discard closes the recorder and removes the output file it created.
// Used when the session failed and the stream cannot be trusted.
func (r *StreamRecorder) Discard() error {
	r.mu.Lock()
	wasClosed := r.closed
	r.closed = true
	r.mu.Unlock()
	var closeErr error
	if closer, ok := r.w.(io.Closer); ok && !wasClosed {
		closeErr = closer.Close()
	}
	if r.path == "" {
		return closeErr
	}
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Join(closeErr, err)
	}
	return nil
}
