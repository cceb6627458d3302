package measure

import (
	"maps"
	"sync"
)

// RingRecorder keeps the last N events in memory (circular buffer).
// Strings and mappings are never evicted so every retained event stays
// resolvable.
type RingRecorder struct {
	mu       sync.RWMutex
	header   Header
	strings  map[StringID]string
	mappings map[StringID]StringID
	events   []RawEvent
	capacity int
	head     int  // next write position
	full     bool // has wrapped around
}

// NewRingRecorder creates a new RingRecorder with specified capacity.
func NewRingRecorder(capacity int) *RingRecorder {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}

	return &RingRecorder{
		strings:  make(map[StringID]string),
		mappings: make(map[StringID]StringID),
		events:   make([]RawEvent, capacity),
		capacity: capacity,
	}
}

// RecordHeader stores the session header.
func (r *RingRecorder) RecordHeader(h *Header) error {
	r.mu.Lock()
	r.header = *h
	r.mu.Unlock()
	return nil
}

// RecordString stores a string.
func (r *RingRecorder) RecordString(id StringID, text string) error {
	r.mu.Lock()
	r.strings[id] = text
	r.mu.Unlock()
	return nil
}

// RecordMapping stores a virtual-to-concrete mapping.
func (r *RingRecorder) RecordMapping(from, to StringID) error {
	r.mu.Lock()
	r.mappings[from] = to
	r.mu.Unlock()
	return nil
}

// RecordBulkMapping stores one mapping per id in from.
func (r *RingRecorder) RecordBulkMapping(from []StringID, to StringID) error {
	r.mu.Lock()
	for _, id := range from {
		r.mappings[id] = to
	}
	r.mu.Unlock()
	return nil
}

// RecordEvent adds an event to the ring buffer.
func (r *RingRecorder) RecordEvent(ev *RawEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[r.head] = *ev
	r.head = (r.head + 1) % r.capacity

	if r.head == 0 {
		r.full = true
	}
	return nil
}

// Snapshot returns a copy of the recorded data with events in
// chronological order.
func (r *RingRecorder) Snapshot() *Data {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data := &Data{
		Header:   r.header,
		Strings:  maps.Clone(r.strings),
		Mappings: maps.Clone(r.mappings),
	}

	if !r.full {
		// Not wrapped yet - return [0:head]
		data.Events = make([]RawEvent, r.head)
		copy(data.Events, r.events[:r.head])
		return data
	}

	// Wrapped - return [head:capacity] + [0:head]
	data.Events = make([]RawEvent, r.capacity)
	copy(data.Events, r.events[r.head:])
	copy(data.Events[r.capacity-r.head:], r.events[:r.head])
	return data
}

// Flush is a no-op for RingRecorder since everything is in memory.
func (r *RingRecorder) Flush() error {
	return nil
}

// Close is a no-op for RingRecorder.
func (r *RingRecorder) Close() error {
	return nil
}
