package conv

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
)

// Spectra is a kernel split into uniform partitions of one block size and
// transformed to the frequency domain. Spectra are immutable and may be
// shared between convolvers.
type Spectra struct {
	blockSize int
	fftSize   int
	kernelLen int
	parts     [][]complex128
}

// BlockSize returns the partition length.
func (k *Spectra) BlockSize() int {
	return k.blockSize
}

// Partitions returns the number of partitions.
func (k *Spectra) Partitions() int {
	return len(k.parts)
}

// KernelLen returns the length of the source kernel.
func (k *Spectra) KernelLen() int {
	return k.kernelLen
}

func fftSizeFor(blockSize int) int {
	return nextPowerOf2(2 * blockSize)
}

// Partitioner prepares Spectra for one block size. It owns an FFT plan and
// scratch buffers and is not safe for concurrent use.
type Partitioner struct {
	blockSize int
	fftSize   int
	plan      *algofft.Plan[complex128]
	buf       []complex128
}

// NewPartitioner creates a partitioner for blocks of blockSize samples.
func NewPartitioner(blockSize int) (*Partitioner, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockSize, blockSize)
	}
	fftSize := fftSizeFor(blockSize)
	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("conv: failed to create FFT plan: %w", err)
	}
	return &Partitioner{
		blockSize: blockSize,
		fftSize:   fftSize,
		plan:      plan,
		buf:       make([]complex128, fftSize),
	}, nil
}

// BlockSize returns the partition length.
func (p *Partitioner) BlockSize() int {
	return p.blockSize
}

// Prepare partitions kernel. Trailing all-zero partitions are dropped.
func (p *Partitioner) Prepare(kernel []float64) (*Spectra, error) {
	if len(kernel) == 0 {
		return nil, ErrEmptyKernel
	}

	n := p.blockSize
	count := (len(kernel) + n - 1) / n
	for count > 0 && allZero(kernel[(count-1)*n:min(count*n, len(kernel))]) {
		count--
	}

	k := &Spectra{
		blockSize: n,
		fftSize:   p.fftSize,
		kernelLen: len(kernel),
		parts:     make([][]complex128, count),
	}
	for i := 0; i < count; i++ {
		seg := kernel[i*n : min((i+1)*n, len(kernel))]
		for j := range p.buf {
			p.buf[j] = 0
		}
		for j, v := range seg {
			p.buf[j] = complex(v, 0)
		}
		spec := make([]complex128, p.fftSize)
		if err := p.plan.Forward(spec, p.buf); err != nil {
			return nil, fmt.Errorf("conv: failed to compute partition FFT: %w", err)
		}
		k.parts[i] = spec
	}
	return k, nil
}

func allZero(s []float64) bool {
	return vecmath.MaxAbs(s) == 0
}

// UniformPartitioned is a uniformly partitioned overlap-save convolver.
//
// Each block, the last fftSize input samples are transformed and pushed
// into a frequency-domain delay line. The output spectrum is the sum of the
// delayed input spectra multiplied by the matching kernel partitions; the
// last blockSize samples of its inverse transform are the output block.
type UniformPartitioned struct {
	blockSize int
	fftSize   int
	plan      *algofft.Plan[complex128]

	window []float64 // last fftSize input samples
	fdl    [][]complex128
	head   int // index of the newest spectrum in fdl

	buf []complex128
	acc []complex128
}

// NewUniformPartitioned creates a convolver for blocks of blockSize
// samples with room for maxPartitions kernel partitions.
func NewUniformPartitioned(blockSize, maxPartitions int) (*UniformPartitioned, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockSize, blockSize)
	}
	if maxPartitions < 1 {
		maxPartitions = 1
	}
	fftSize := fftSizeFor(blockSize)
	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("conv: failed to create FFT plan: %w", err)
	}

	fdl := make([][]complex128, maxPartitions)
	for i := range fdl {
		fdl[i] = make([]complex128, fftSize)
	}
	return &UniformPartitioned{
		blockSize: blockSize,
		fftSize:   fftSize,
		plan:      plan,
		window:    make([]float64, fftSize),
		fdl:       fdl,
		buf:       make([]complex128, fftSize),
		acc:       make([]complex128, fftSize),
	}, nil
}

// BlockSize returns the expected input/output block size.
func (u *UniformPartitioned) BlockSize() int {
	return u.blockSize
}

// FFTSize returns the internal FFT size.
func (u *UniformPartitioned) FFTSize() int {
	return u.fftSize
}

// Capacity returns the number of partitions held by the delay line.
func (u *UniformPartitioned) Capacity() int {
	return len(u.fdl)
}

// ProcessBlockTo convolves one input block with kernel. A nil kernel yields
// silence while the input still enters the delay line.
func (u *UniformPartitioned) ProcessBlockTo(out, in []float64, kernel *Spectra) error {
	n := u.blockSize
	if len(in) != n || len(out) != n {
		return fmt.Errorf("%w: block %d, in %d, out %d", ErrLengthMismatch, n, len(in), len(out))
	}
	if kernel != nil && kernel.blockSize != n {
		return fmt.Errorf("%w: %d vs %d", ErrBlockSizeMismatch, kernel.blockSize, n)
	}
	if kernel != nil && len(kernel.parts) > len(u.fdl) {
		return fmt.Errorf("%w: %d partitions, capacity %d", ErrKernelTooLong, len(kernel.parts), len(u.fdl))
	}

	// Slide the input window and transform it.
	copy(u.window, u.window[n:])
	copy(u.window[u.fftSize-n:], in)
	for i, v := range u.window {
		u.buf[i] = complex(v, 0)
	}
	u.head = (u.head + 1) % len(u.fdl)
	if err := u.plan.Forward(u.fdl[u.head], u.buf); err != nil {
		return fmt.Errorf("conv: forward FFT failed: %w", err)
	}

	if kernel == nil || len(kernel.parts) == 0 {
		for i := range out {
			out[i] = 0
		}
		return nil
	}

	for i := range u.acc {
		u.acc[i] = 0
	}
	for p, h := range kernel.parts {
		x := u.fdl[(u.head-p+len(u.fdl))%len(u.fdl)]
		for i := range u.acc {
			u.acc[i] += x[i] * h[i]
		}
	}

	if err := u.plan.Inverse(u.buf, u.acc); err != nil {
		return fmt.Errorf("conv: inverse FFT failed: %w", err)
	}
	tail := u.buf[u.fftSize-n:]
	for i := range out {
		out[i] = real(tail[i])
	}
	return nil
}

// Reset clears the input window and delay line.
func (u *UniformPartitioned) Reset() {
	for i := range u.window {
		u.window[i] = 0
	}
	for _, x := range u.fdl {
		for i := range x {
			x[i] = 0
		}
	}
	u.head = 0
}
