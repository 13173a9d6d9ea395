// Package buffer provides reusable sample buffers for real-time paths.
//
// A Buffer keeps its backing array across Resize calls and counts how many
// times it had to reallocate, so callers can assert that a steady-state
// block size does not allocate. Pool recycles buffers for scratch work on
// non-real-time paths.
package buffer
