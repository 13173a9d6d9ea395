package conv

import (
	"fmt"

	"github.com/cwbudde/algo-vecmath"
)

// Taps is the non-zero support of a kernel.
type Taps struct {
	Index []int
	Value []float64
	// Len is the length of the dense kernel the taps were taken from.
	Len int
}

// SparseTaps collects the non-zero taps of kernel.
func SparseTaps(kernel []float64) Taps {
	t := Taps{Len: len(kernel)}
	for i, v := range kernel {
		if v != 0 {
			t.Index = append(t.Index, i)
			t.Value = append(t.Value, v)
		}
	}
	return t
}

// StreamingDirect is a block-wise time-domain FIR convolver. It keeps the
// last maxKernelLen-1 input samples so that the kernel may change between
// blocks.
type StreamingDirect struct {
	blockSize int
	hist      int // history length in samples
	ext       []float64
	scratch   []float64
}

// NewStreamingDirect allocates a convolver for blocks of blockSize samples
// and kernels of up to maxKernelLen taps.
func NewStreamingDirect(blockSize, maxKernelLen int) (*StreamingDirect, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockSize, blockSize)
	}
	if maxKernelLen < 1 {
		maxKernelLen = 1
	}
	hist := maxKernelLen - 1
	return &StreamingDirect{
		blockSize: blockSize,
		hist:      hist,
		ext:       make([]float64, hist+blockSize),
		scratch:   make([]float64, blockSize),
	}, nil
}

// BlockSize returns the expected input/output block size.
func (s *StreamingDirect) BlockSize() int {
	return s.blockSize
}

// Capacity returns the longest kernel the convolver accepts.
func (s *StreamingDirect) Capacity() int {
	return s.hist + 1
}

// ProcessBlockTo convolves one block with a dense kernel, skipping zero
// taps. A nil kernel produces silence while the history still advances.
func (s *StreamingDirect) ProcessBlockTo(out, in, kernel []float64) error {
	if err := s.load(out, in, len(kernel)); err != nil {
		return err
	}
	for k, h := range kernel {
		if h != 0 {
			s.mac(out, k, h)
		}
	}
	s.advance()
	return nil
}

// ProcessSparseTo convolves one block with precomputed sparse taps.
func (s *StreamingDirect) ProcessSparseTo(out, in []float64, taps Taps) error {
	if err := s.load(out, in, taps.Len); err != nil {
		return err
	}
	for i, k := range taps.Index {
		s.mac(out, k, taps.Value[i])
	}
	s.advance()
	return nil
}

// Reset clears the input history.
func (s *StreamingDirect) Reset() {
	for i := range s.ext {
		s.ext[i] = 0
	}
}

func (s *StreamingDirect) load(out, in []float64, kernelLen int) error {
	if len(in) != s.blockSize || len(out) != s.blockSize {
		return fmt.Errorf("%w: block %d, in %d, out %d", ErrLengthMismatch, s.blockSize, len(in), len(out))
	}
	if kernelLen-1 > s.hist {
		return fmt.Errorf("%w: %d taps, capacity %d", ErrKernelTooLong, kernelLen, s.hist+1)
	}
	copy(s.ext[s.hist:], in)
	for i := range out {
		out[i] = 0
	}
	return nil
}

// mac adds h * x[n-k] for the current block to out.
func (s *StreamingDirect) mac(out []float64, k int, h float64) {
	start := s.hist - k
	vecmath.ScaleBlock(s.scratch, s.ext[start:start+s.blockSize], h)
	vecmath.AddBlockInPlace(out, s.scratch)
}

func (s *StreamingDirect) advance() {
	copy(s.ext[:s.hist], s.ext[s.blockSize:])
}
