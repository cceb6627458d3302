// Package measure is the event-recording engine behind the self-profiler.
//
// It owns the string table, the virtual string id namespace and the raw
// event stream. Nothing here knows about event categories or filtering;
// that policy lives in package selfprof.
//
// # Strings
//
// Every label attached to an event is a StringID. Concrete ids are handed
// out by Profiler.AllocString and are backed by an actual string in the
// output. Virtual ids are picked by the caller (0..MaxVirtualStringID) and
// must later be mapped to a concrete id:
//
//	id := measure.NewVirtualStringID(uint32(invocation))
//	p.RecordInstantEvent(kind, measure.EventIDFromVirtual(id), tid)
//	// ... at the end of the session
//	p.MapVirtualToConcreteString(id, p.AllocString("typeck(main)"))
//
// # Recorders
//
// Records are handed to a Recorder:
//
//   - StreamRecorder: msgpack stream written to a file or io.Writer
//   - RingRecorder: in-memory, keeps the last N events and every string
//   - MultiRecorder: fans out to several recorders
//   - Nop: discards everything
//
// A stream written by StreamRecorder is read back with ReadProfile.
package measure
