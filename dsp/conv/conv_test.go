package conv

import (
	"errors"
	"testing"

	"github.com/cwbudde/algo-acoustic/internal/testutil"
)

func TestDirect(t *testing.T) {
	tests := []struct {
		name     string
		a        []float64
		b        []float64
		expected []float64
	}{
		{name: "simple 3x3", a: []float64{1, 2, 3}, b: []float64{1, 1, 1}, expected: []float64{1, 3, 6, 5, 3}},
		{name: "impulse", a: []float64{1, 2, 3, 4, 5}, b: []float64{1}, expected: []float64{1, 2, 3, 4, 5}},
		{name: "delayed impulse", a: []float64{1, 2, 3}, b: []float64{0, 0, 1}, expected: []float64{0, 0, 1, 2, 3}},
		{name: "symmetric", a: []float64{1, 2, 1}, b: []float64{1, 2, 1}, expected: []float64{1, 4, 6, 4, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Direct(tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.RequireSliceNearlyEqual(t, result, tt.expected, 1e-12)
		})
	}

	if _, err := Direct(nil, []float64{1}); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := Direct([]float64{1}, nil); !errors.Is(err, ErrEmptyKernel) {
		t.Fatalf("expected ErrEmptyKernel, got %v", err)
	}
}

// streamReference filters each block with the kernel active for that block
// applied to the entire input seen so far.
func streamReference(input []float64, blockSize int, kernelFor func(block int) []float64) []float64 {
	out := make([]float64, len(input))
	for start := 0; start < len(input); start += blockSize {
		kernel := kernelFor(start / blockSize)
		for n := start; n < start+blockSize; n++ {
			var acc float64
			for k, h := range kernel {
				if n-k < 0 {
					break
				}
				acc += h * input[n-k]
			}
			out[n] = acc
		}
	}
	return out
}

func TestStreamingDirectMatchesDirect(t *testing.T) {
	for _, blockSize := range []int{1, 7, 64} {
		input := testutil.DeterministicNoise(1, 1, blockSize*20)
		kernel := testutil.DeterministicNoise(2, 0.5, 37)

		s, err := NewStreamingDirect(blockSize, len(kernel))
		if err != nil {
			t.Fatal(err)
		}
		got := make([]float64, len(input))
		for start := 0; start < len(input); start += blockSize {
			if err := s.ProcessBlockTo(got[start:start+blockSize], input[start:start+blockSize], kernel); err != nil {
				t.Fatal(err)
			}
		}

		full, _ := Direct(input, kernel)
		testutil.RequireSliceNearlyEqual(t, got, full[:len(input)], 1e-12)
	}
}

func TestStreamingDirectSparseMatchesDense(t *testing.T) {
	kernel := make([]float64, 200)
	kernel[13] = 0.7
	kernel[14] = 0.3
	kernel[150] = -0.2
	taps := SparseTaps(kernel)
	if len(taps.Index) != 3 || taps.Len != 200 {
		t.Fatalf("unexpected taps %+v", taps)
	}

	input := testutil.DeterministicNoise(3, 1, 32*16)
	dense, _ := NewStreamingDirect(32, 200)
	sparse, _ := NewStreamingDirect(32, 200)
	a := make([]float64, 32)
	b := make([]float64, 32)
	for start := 0; start < len(input); start += 32 {
		blk := input[start : start+32]
		_ = dense.ProcessBlockTo(a, blk, kernel)
		_ = sparse.ProcessSparseTo(b, blk, taps)
		testutil.RequireSliceNearlyEqual(t, b, a, 1e-12)
	}
}

func TestStreamingDirectLengthMismatch(t *testing.T) {
	s, _ := NewStreamingDirect(8, 1)
	if err := s.ProcessBlockTo(make([]float64, 8), make([]float64, 4), []float64{1}); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("got %v", err)
	}
	if _, err := NewStreamingDirect(0, 1); !errors.Is(err, ErrInvalidBlockSize) {
		t.Fatalf("got %v", err)
	}
}

func TestUniformPartitionedMatchesDirect(t *testing.T) {
	tests := []struct {
		name      string
		blockSize int
		kernelLen int
	}{
		{"pow2 block", 64, 300},
		{"odd block", 48, 1000},
		{"kernel shorter than block", 128, 20},
		{"single sample block", 1, 9},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := testutil.DeterministicNoise(4, 1, tc.blockSize*40)
			kernel := testutil.DeterministicNoise(5, 0.25, tc.kernelLen)

			p, err := NewPartitioner(tc.blockSize)
			if err != nil {
				t.Fatal(err)
			}
			spectra, err := p.Prepare(kernel)
			if err != nil {
				t.Fatal(err)
			}
			u, err := NewUniformPartitioned(tc.blockSize, spectra.Partitions())
			if err != nil {
				t.Fatal(err)
			}

			got := make([]float64, len(input))
			for start := 0; start < len(input); start += tc.blockSize {
				if err := u.ProcessBlockTo(got[start:start+tc.blockSize], input[start:start+tc.blockSize], spectra); err != nil {
					t.Fatal(err)
				}
			}
			full, _ := Direct(input, kernel)
			testutil.RequireSliceNearlyEqual(t, got, full[:len(input)], 1e-9)
		})
	}
}

func TestKernelSwapKeepsHistory(t *testing.T) {
	const blockSize = 32
	input := testutil.DeterministicNoise(6, 1, blockSize*30)
	kA := testutil.DeterministicNoise(7, 0.5, 90)
	kB := testutil.DeterministicNoise(8, 0.5, 200)
	kernelFor := func(block int) []float64 {
		if block < 12 {
			return kA
		}
		return kB
	}
	want := streamReference(input, blockSize, kernelFor)

	p, _ := NewPartitioner(blockSize)
	sA, _ := p.Prepare(kA)
	sB, _ := p.Prepare(kB)
	u, _ := NewUniformPartitioned(blockSize, sB.Partitions())
	d, _ := NewStreamingDirect(blockSize, len(kB))

	gotFFT := make([]float64, len(input))
	gotTD := make([]float64, len(input))
	for start := 0; start < len(input); start += blockSize {
		block := start / blockSize
		spec := sA
		if block >= 12 {
			spec = sB
		}
		blk := input[start : start+blockSize]
		if err := u.ProcessBlockTo(gotFFT[start:start+blockSize], blk, spec); err != nil {
			t.Fatal(err)
		}
		if err := d.ProcessBlockTo(gotTD[start:start+blockSize], blk, kernelFor(block)); err != nil {
			t.Fatal(err)
		}
	}
	testutil.RequireSliceNearlyEqual(t, gotFFT, want, 1e-9)
	testutil.RequireSliceNearlyEqual(t, gotTD, want, 1e-12)
}

func TestNilKernelAdvancesHistory(t *testing.T) {
	const blockSize = 16
	input := testutil.DeterministicNoise(9, 1, blockSize*10)
	kernel := testutil.DeterministicNoise(10, 1, 40)
	want := streamReference(input, blockSize, func(block int) []float64 {
		if block < 5 {
			return nil
		}
		return kernel
	})

	p, _ := NewPartitioner(blockSize)
	spec, _ := p.Prepare(kernel)
	u, _ := NewUniformPartitioned(blockSize, spec.Partitions())
	got := make([]float64, len(input))
	for start := 0; start < len(input); start += blockSize {
		var k *Spectra
		if start/blockSize >= 5 {
			k = spec
		}
		if err := u.ProcessBlockTo(got[start:start+blockSize], input[start:start+blockSize], k); err != nil {
			t.Fatal(err)
		}
	}
	testutil.RequireSliceNearlyEqual(t, got, want, 1e-9)
}

func TestKernelLongerThanCapacity(t *testing.T) {
	const blockSize = 16
	input := testutil.DeterministicNoise(11, 1, blockSize*8)
	short := testutil.DeterministicNoise(12, 1, 20)
	long := testutil.DeterministicNoise(13, 1, 60)

	p, _ := NewPartitioner(blockSize)
	sShort, _ := p.Prepare(short)
	sLong, _ := p.Prepare(long)
	u, _ := NewUniformPartitioned(blockSize, sShort.Partitions())
	d, _ := NewStreamingDirect(blockSize, len(short))
	if u.Capacity() != sShort.Partitions() || d.Capacity() != len(short) {
		t.Fatalf("capacities %d, %d", u.Capacity(), d.Capacity())
	}

	out := make([]float64, blockSize)
	if err := u.ProcessBlockTo(out, input[:blockSize], sLong); !errors.Is(err, ErrKernelTooLong) {
		t.Fatalf("partitioned: got %v", err)
	}
	if err := d.ProcessBlockTo(out, input[:blockSize], long); !errors.Is(err, ErrKernelTooLong) {
		t.Fatalf("direct: got %v", err)
	}
	if err := d.ProcessSparseTo(out, input[:blockSize], SparseTaps(long)); !errors.Is(err, ErrKernelTooLong) {
		t.Fatalf("sparse: got %v", err)
	}

	// Rejected blocks leave the stream untouched: the convolvers still
	// match a reference that never saw them.
	want := streamReference(input, blockSize, func(int) []float64 { return short })
	gotFFT := make([]float64, len(input))
	gotTD := make([]float64, len(input))
	for start := 0; start < len(input); start += blockSize {
		blk := input[start : start+blockSize]
		if err := u.ProcessBlockTo(gotFFT[start:start+blockSize], blk, sShort); err != nil {
			t.Fatal(err)
		}
		if err := d.ProcessBlockTo(gotTD[start:start+blockSize], blk, short); err != nil {
			t.Fatal(err)
		}
	}
	testutil.RequireSliceNearlyEqual(t, gotFFT, want, 1e-9)
	testutil.RequireSliceNearlyEqual(t, gotTD, want, 1e-12)
}

func TestPrepareDropsSilentTail(t *testing.T) {
	kernel := make([]float64, 1000)
	kernel[10] = 1
	p, _ := NewPartitioner(100)
	spec, err := p.Prepare(kernel)
	if err != nil {
		t.Fatal(err)
	}
	if spec.Partitions() != 1 || spec.KernelLen() != 1000 || spec.BlockSize() != 100 {
		t.Fatalf("partitions=%d len=%d block=%d", spec.Partitions(), spec.KernelLen(), spec.BlockSize())
	}

	u, _ := NewUniformPartitioned(50, 1)
	if err := u.ProcessBlockTo(make([]float64, 50), make([]float64, 50), spec); !errors.Is(err, ErrBlockSizeMismatch) {
		t.Fatalf("got %v", err)
	}
	if _, err := p.Prepare(nil); !errors.Is(err, ErrEmptyKernel) {
		t.Fatalf("got %v", err)
	}
}
