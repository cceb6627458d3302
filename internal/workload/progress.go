package workload

import "time"

// Status captures the progress state of one item.
type Status string

const (
	// StatusQueued indicates the item is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the item is being checked.
	StatusWorking Status = "working"
	// StatusDone indicates the item finished.
	StatusDone Status = "done"
	// StatusError indicates the item failed.
	StatusError Status = "error"
)

// Event reports progress for an item.
type Event struct {
	Item    string
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}
