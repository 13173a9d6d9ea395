// Package filter turns traced paths into per-source impulse response sets
// and publishes them for the audio thread.
//
// A Set is built completely before it becomes visible and is never modified
// afterwards. Each source owns a Slot whose current set is swapped with an
// atomic pointer store, so a reader that loads the pointer once per audio
// block always sees one complete set for every channel and path.
package filter
