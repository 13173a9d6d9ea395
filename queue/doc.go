// Package queue implements the single-consumer command queue that serializes
// geometry commits, traces and event signals for one processing context.
//
// Commands run in submission order on one worker goroutine. Every command
// advances a monotonic completion counter; Synchronize waits for the counter
// to reach the number of commands submitted before the call. A failing
// command never stops the queue: its error is kept and reported by the next
// Synchronize or Err call.
package queue
