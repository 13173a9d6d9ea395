// Package acoustic is the public surface of the engine.
//
// A Context owns the scene, the sources and one command queue. Geometry
// edits accumulate until CommitGeometry (or the next TraceAudio) publishes
// them as an immutable snapshot; TraceAudio captures the listener and
// source state and enqueues a trace whose filters are published per source
// with an atomic swap. Audio calls on a Source read the current filters
// without waiting for the tracer.
//
// Every operation returns an error carrying a Status; use StatusOf or
// errors.Is with the Err* values to inspect it.
package acoustic
