// Package selfprof implements the compiler's self-profiling layer.
//
// A SelfProfiler is created once per session. Instrumentation sites never
// touch it directly; they hold a Ref, which is cheap to copy across
// goroutines and carries its own copy of the event filter so that a
// disabled category costs a single branch:
//
//	ref := selfprof.NewRef(profiler, timePasses, time)
//	defer ref.VerboseGenericActivity("typeck").Finish()
//
//	g := ref.QueryProvider()
//	v := compute(key)
//	g.FinishWithQueryInvocationID(index)
//
// # Event ids
//
// Generic activities are labelled with constant strings that are interned
// once per session. Query events are labelled with virtual string ids equal
// to the host's own invocation index, and the host maps those ids to real
// strings in bulk at the end of the session with
// MapQueryInvocationIDToString or BulkMapQueryInvocationIDsToSingleString.
//
// # Filters
//
// Recording is filtered by event category. The recognized names are listed
// by FilterNames; "none", "all" and "default" are presets and an empty
// list selects FilterDefault.
package selfprof
