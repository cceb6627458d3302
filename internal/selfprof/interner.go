package selfprof

import (
	"sync"

	"selfprof/internal/measure"
)

// stringAllocator is the part of the recording engine the interner needs.
type stringAllocator interface {
	AllocString(text string) measure.StringID
}

// Interner hands out one StringID per distinct constant label. Each label
// is allocated at most once no matter how many goroutines ask for it.
type Interner struct {
	alloc stringAllocator

	mu    sync.RWMutex
	cache map[string]measure.StringID
}

// NewInterner creates an Interner allocating through alloc.
func NewInterner(alloc stringAllocator) *Interner {
	return &Interner{
		alloc: alloc,
		cache: make(map[string]measure.StringID),
	}
}

// Intern returns the id for label, allocating it on first use.
func (in *Interner) Intern(label string) measure.StringID {
	// Labels are almost always present already, so try a shared lock first.
	in.mu.RLock()
	id, ok := in.cache[label]
	in.mu.RUnlock()
	if ok {
		return id
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	// Another goroutine may have inserted it between the two locks.
	if id, ok := in.cache[label]; ok {
		return id
	}
	id = in.alloc.AllocString(label)
	in.cache[label] = id
	return id
}

// Len returns the number of interned labels.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.cache)
}
