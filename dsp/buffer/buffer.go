package buffer

// Buffer wraps a float64 slice with reuse-friendly semantics.
type Buffer struct {
	samples []float64
	allocs  int
}

// New returns a zero-filled Buffer of the given length.
func New(length int) *Buffer {
	b := &Buffer{}
	b.Resize(length)
	return b
}

// Samples returns the underlying slice.
func (b *Buffer) Samples() []float64 {
	return b.samples
}

// Len returns the current number of samples.
func (b *Buffer) Len() int {
	return len(b.samples)
}

// Cap returns the current capacity of the backing slice.
func (b *Buffer) Cap() int {
	return cap(b.samples)
}

// Allocations returns how many times the backing array was allocated.
func (b *Buffer) Allocations() int {
	return b.allocs
}

// Resize sets the length to n, reusing existing capacity when possible, and
// reports whether it allocated. New elements beyond the previous length are
// zeroed.
func (b *Buffer) Resize(n int) bool {
	if n < 0 {
		n = 0
	}
	oldLen := len(b.samples)
	if n <= cap(b.samples) {
		b.samples = b.samples[:n]
		for i := oldLen; i < n; i++ {
			b.samples[i] = 0
		}
		return false
	}

	s := make([]float64, n)
	copy(s, b.samples)
	b.samples = s
	b.allocs++
	return true
}

// Zero sets all samples to 0.
func (b *Buffer) Zero() {
	for i := range b.samples {
		b.samples[i] = 0
	}
}

// CopyFrom32 converts src into the buffer, resizing it to len(src).
func (b *Buffer) CopyFrom32(src []float32) {
	b.Resize(len(src))
	for i, v := range src {
		b.samples[i] = float64(v)
	}
}
