package measure

import "fmt"

// StringID refers to a string in the profile's string table.
// Ids at or below MaxVirtualStringID are virtual.
type StringID uint32

const (
	// MaxVirtualStringID is the largest id a caller may pick for a virtual string.
	MaxVirtualStringID StringID = 100_000_000

	// MetadataStringID is reserved for the profile metadata string.
	MetadataStringID StringID = MaxVirtualStringID + 1

	// InvalidStringID never resolves to anything.
	InvalidStringID StringID = MaxVirtualStringID + 2

	// FirstConcreteStringID is the first id returned by AllocString.
	FirstConcreteStringID StringID = MaxVirtualStringID + 3
)

// NewVirtualStringID turns a caller-chosen number into a virtual StringID.
// It panics if id is outside the virtual range.
func NewVirtualStringID(id uint32) StringID {
	if StringID(id) > MaxVirtualStringID {
		panic(fmt.Sprintf("measure: virtual string id %d exceeds %d", id, MaxVirtualStringID))
	}
	return StringID(id)
}

// IsVirtual reports whether the id belongs to the virtual namespace.
func (s StringID) IsVirtual() bool {
	return s <= MaxVirtualStringID
}

// String returns a debug representation of the id.
func (s StringID) String() string {
	switch {
	case s == InvalidStringID:
		return "invalid"
	case s == MetadataStringID:
		return "metadata"
	case s.IsVirtual():
		return fmt.Sprintf("virtual#%d", uint32(s))
	default:
		return fmt.Sprintf("string#%d", uint32(s-FirstConcreteStringID))
	}
}

// EventID identifies what an event is about. It is a StringID that is
// either concrete, virtual, or invalid.
type EventID StringID

// InvalidEventID marks an event whose kind alone describes it.
const InvalidEventID = EventID(InvalidStringID)

// EventIDFromLabel builds an EventID from a concrete label.
func EventIDFromLabel(label StringID) EventID {
	return EventID(label)
}

// EventIDFromVirtual builds an EventID from a virtual StringID.
func EventIDFromVirtual(virtual StringID) EventID {
	return EventID(virtual)
}

// StringID returns the underlying string id.
func (e EventID) StringID() StringID {
	return StringID(e)
}

// IsValid reports whether the event id refers to a string.
func (e EventID) IsValid() bool {
	return e != InvalidEventID
}
