package buffer

import (
	"sync"
	"sync/atomic"
)

// Pool hands out scratch buffers of one fixed length, typically the sample
// count of a filter layout. Buffers of any other capacity are dropped on Put,
// so a pool replaced after a layout change never recycles stale sizes.
type Pool struct {
	length int
	pool   sync.Pool

	gets   atomic.Uint64
	allocs atomic.Uint64
}

// NewPool returns a pool of buffers holding length samples.
func NewPool(length int) *Pool {
	if length < 0 {
		length = 0
	}
	p := &Pool{length: length}
	p.pool.New = func() any {
		p.allocs.Add(1)
		return New(p.length)
	}
	return p
}

// Length returns the buffer length served by the pool.
func (p *Pool) Length() int {
	return p.length
}

// Get returns a zeroed buffer of Length samples. Return it with Put.
func (p *Pool) Get() *Buffer {
	p.gets.Add(1)
	b := p.pool.Get().(*Buffer)
	b.Zero()
	return b
}

// Put recycles b. Nil buffers and buffers resized away from Length are
// discarded.
func (p *Pool) Put(b *Buffer) {
	if b == nil || b.Len() != p.length {
		return
	}
	p.pool.Put(b)
}

// Stats reports how many buffers were requested and how many of those had
// to be allocated.
func (p *Pool) Stats() (gets, allocs uint64) {
	return p.gets.Load(), p.allocs.Load()
}
