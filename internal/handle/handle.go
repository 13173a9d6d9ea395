// Package handle provides generation-checked handle tables.
//
// A Handle pairs a slot index with the slot's version at allocation time.
// Removing an entry bumps the slot version, so a stale handle never resolves
// to a later occupant of the same slot. Version 0 is never issued, which
// keeps the zero Handle invalid.
package handle

import (
	"errors"
	"fmt"
)

// DefaultCapacity is the maximum number of live entries of a Table created
// with a non-positive capacity.
const DefaultCapacity = 1 << 16

var (
	// ErrInvalid is returned for zero, stale or foreign handles.
	ErrInvalid = errors.New("handle: invalid handle")
	// ErrExhausted is returned when a table is full.
	ErrExhausted = errors.New("handle: table capacity exhausted")
)

// Handle identifies an entry in a Table.
type Handle struct {
	Index   uint32
	Version uint32
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h.Version == 0
}

// Key packs the handle into a single integer, usable as a map key.
func (h Handle) Key() uint64 {
	return uint64(h.Version)<<32 | uint64(h.Index)
}

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.Index, h.Version)
}

type slot[T any] struct {
	version uint32
	alive   bool
	value   T
}

// Table stores values of type T addressed by Handle. A Table is not safe for
// concurrent use; callers guard it with their own lock.
type Table[T any] struct {
	slots    []slot[T]
	freeIDs  []uint32
	live     int
	capacity int
}

// NewTable returns an empty table that holds at most capacity entries.
func NewTable[T any](capacity int) *Table[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table[T]{capacity: capacity}
}

// Insert stores v and returns its handle.
func (t *Table[T]) Insert(v T) (Handle, error) {
	if t.live >= t.capacity {
		return Handle{}, fmt.Errorf("%w: %d entries", ErrExhausted, t.capacity)
	}

	var id uint32
	if n := len(t.freeIDs); n > 0 {
		id = t.freeIDs[n-1]
		t.freeIDs = t.freeIDs[:n-1]
	} else {
		id = uint32(len(t.slots))
		t.slots = append(t.slots, slot[T]{})
	}

	s := &t.slots[id]
	s.version++
	if s.version == 0 {
		s.version = 1
	}
	s.alive = true
	s.value = v
	t.live++

	return Handle{Index: id, Version: s.version}, nil
}

func (t *Table[T]) lookup(h Handle) *slot[T] {
	if h.Version == 0 || int(h.Index) >= len(t.slots) {
		return nil
	}
	s := &t.slots[h.Index]
	if !s.alive || s.version != h.Version {
		return nil
	}
	return s
}

// Valid reports whether h refers to a live entry.
func (t *Table[T]) Valid(h Handle) bool {
	return t.lookup(h) != nil
}

// Get returns the value stored under h.
func (t *Table[T]) Get(h Handle) (T, error) {
	s := t.lookup(h)
	if s == nil {
		var zero T
		return zero, ErrInvalid
	}
	return s.value, nil
}

// Ptr returns a pointer to the stored value, valid until the entry is removed.
func (t *Table[T]) Ptr(h Handle) (*T, error) {
	s := t.lookup(h)
	if s == nil {
		return nil, ErrInvalid
	}
	return &s.value, nil
}

// Remove deletes the entry and returns its last value.
func (t *Table[T]) Remove(h Handle) (T, error) {
	s := t.lookup(h)
	var zero T
	if s == nil {
		return zero, ErrInvalid
	}
	v := s.value
	s.value = zero
	s.alive = false
	s.version++
	t.freeIDs = append(t.freeIDs, h.Index)
	t.live--
	return v, nil
}

// Len returns the number of live entries.
func (t *Table[T]) Len() int {
	return t.live
}

// Each calls fn for every live entry in slot order until fn returns false.
func (t *Table[T]) Each(fn func(Handle, T) bool) {
	for i := range t.slots {
		s := &t.slots[i]
		if !s.alive {
			continue
		}
		if !fn(Handle{Index: uint32(i), Version: s.version}, s.value) {
			return
		}
	}
}

// Clear removes every entry, invalidating all outstanding handles.
func (t *Table[T]) Clear() {
	var zero T
	t.freeIDs = t.freeIDs[:0]
	for i := len(t.slots) - 1; i >= 0; i-- {
		s := &t.slots[i]
		if s.alive {
			s.alive = false
			s.version++
			s.value = zero
		}
		t.freeIDs = append(t.freeIDs, uint32(i))
	}
	t.live = 0
}
