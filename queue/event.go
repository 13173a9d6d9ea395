package queue

import "sync"

// Event is a one-shot completion signal that can be re-armed with Reset.
// The zero value is an unsignaled event.
type Event struct {
	mu    sync.Mutex
	ch    chan struct{}
	fired bool
}

// NewEvent returns an unsignaled event.
func NewEvent() *Event {
	return &Event{ch: make(chan struct{})}
}

// chanLocked returns the current channel, creating it on first use.
func (e *Event) chanLocked() chan struct{} {
	if e.ch == nil {
		e.ch = make(chan struct{})
	}
	return e.ch
}

// Signal marks the event as fired. Repeated calls are no-ops.
func (e *Event) Signal() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.fired {
		e.fired = true
		close(e.chanLocked())
	}
}

// Done returns a channel closed when the event fires.
func (e *Event) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chanLocked()
}

// Wait blocks until the event fires.
func (e *Event) Wait() {
	<-e.Done()
}

// Fired reports whether the event has been signaled.
func (e *Event) Fired() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fired
}

// Reset re-arms a fired event. Waiters already holding the old Done channel
// are not affected.
func (e *Event) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fired {
		e.fired = false
		e.ch = make(chan struct{})
	}
}
