// Package query is a small demand-driven query engine with memoization, an
// on-disk incremental cache and self-profiling hooks.
//
// Every invocation gets a QueryInvocationID when it is first requested.
// The id is what provider, cache-hit and blocked events carry; the
// human-readable "name(key)" labels are attached in one pass at the end of
// the session by Engine.AllocSelfProfileQueryStrings, so the hot path never
// formats a key.
//
// Queries must form a DAG: a provider that (transitively) asks for its own
// key blocks forever.
package query
