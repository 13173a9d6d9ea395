// Package conv provides the convolution kernels used to apply impulse
// response filters to streaming audio.
//
//   - Direct: one-shot O(N*M) linear convolution, used as a reference
//   - StreamingDirect: block-wise time-domain FIR with persistent input
//     history, fast for sparse kernels such as a delayed direct path
//   - UniformPartitioned: block-wise uniformly partitioned overlap-save FFT
//     convolution for long dense kernels
//
// Both streaming convolvers take the kernel per call rather than at
// construction. The input history is owned by the convolver and survives a
// kernel change, so swapping the kernel at a block boundary filters the
// past input with the new kernel without resetting the stream. The history
// is sized for the kernel capacity given at construction; longer kernels
// are rejected with ErrKernelTooLong.
package conv

import (
	"errors"

	"github.com/cwbudde/algo-vecmath"
)

// Errors returned by convolution functions.
var (
	ErrEmptyInput        = errors.New("conv: empty input")
	ErrEmptyKernel       = errors.New("conv: empty kernel")
	ErrLengthMismatch    = errors.New("conv: buffer length mismatch")
	ErrInvalidBlockSize  = errors.New("conv: invalid block size")
	ErrBlockSizeMismatch = errors.New("conv: kernel prepared for a different block size")
	ErrKernelTooLong     = errors.New("conv: kernel longer than convolver capacity")
)

// Direct performs direct time-domain linear convolution of a and b.
// Returns a new slice of length len(a) + len(b) - 1.
func Direct(a, b []float64) ([]float64, error) {
	if len(a) == 0 {
		return nil, ErrEmptyInput
	}
	if len(b) == 0 {
		return nil, ErrEmptyKernel
	}

	result := make([]float64, len(a)+len(b)-1)
	DirectTo(result, a, b)
	return result, nil
}

// DirectTo performs direct convolution, writing to a pre-allocated destination.
// dst must have length len(a) + len(b) - 1.
func DirectTo(dst, a, b []float64) {
	for i := range dst {
		dst[i] = 0
	}

	m := len(b)
	temp := make([]float64, m)
	for i, x := range a {
		if x == 0 {
			continue
		}
		// dst[i:i+m] += b * a[i]
		vecmath.ScaleBlock(temp, b, x)
		vecmath.AddBlockInPlace(dst[i:i+m], temp)
	}
}

// nextPowerOf2 returns the smallest power of 2 >= n.
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
