// Package render applies published filter sets to streaming audio blocks.
//
// A Renderer belongs to one source. The caller loads the source's current
// filter.Set once per block and passes it to Process, so every channel and
// both paths of a block use the same complete set. Input history is kept
// across set swaps: a new set is applied to past input as well, and no
// discontinuity is introduced beyond the filter change itself.
package render

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-acoustic/dsp/buffer"
	"github.com/cwbudde/algo-acoustic/dsp/conv"
	"github.com/cwbudde/algo-acoustic/filter"
)

// Errors returned by the renderer.
var (
	// ErrInvalidBlockSize is returned for an empty or negative input block.
	ErrInvalidBlockSize = errors.New("render: block size must be positive")
	// ErrShortOutput is returned when out has fewer channels or samples
	// than the block needs.
	ErrShortOutput = errors.New("render: output buffers too short")
	// ErrChannelMismatch is returned for a set laid out for a different
	// channel count.
	ErrChannelMismatch = errors.New("render: set channel count does not match renderer")
)

// Mode selects which paths a block is rendered with.
type Mode int

const (
	// Combined renders the direct and indirect paths summed.
	Combined Mode = iota
	// DirectOnly renders the direct path alone.
	DirectOnly
	// IndirectOnly renders the reverberant paths alone.
	IndirectOnly
)

func (m Mode) String() string {
	switch m {
	case Combined:
		return "combined"
	case DirectOnly:
		return "direct"
	case IndirectOnly:
		return "indirect"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func (m Mode) direct() bool   { return m != IndirectOnly }
func (m Mode) indirect() bool { return m != DirectOnly }

// Renderer convolves one source's input with its filters. It is not safe
// for concurrent use.
type Renderer struct {
	channels  int
	kernelLen int
	domain    filter.Domain
	blockSize int
	allocs    int

	direct []*conv.StreamingDirect
	// indirectTD is the time-domain indirect convolver. In frequency-domain
	// mode it serves sets without partitions for the current block size.
	indirectTD []*conv.StreamingDirect
	indirectFD []*conv.UniformPartitioned

	in, dir, ind, spare *buffer.Buffer
}

// New creates a renderer for channels output channels and filters of up
// to kernelLen taps. Nothing is allocated until the first Prepare.
func New(channels, kernelLen int, domain filter.Domain) *Renderer {
	if kernelLen < 1 {
		kernelLen = 1
	}
	return &Renderer{
		channels:  channels,
		kernelLen: kernelLen,
		domain:    domain,
		in:        &buffer.Buffer{},
		dir:       &buffer.Buffer{},
		ind:       &buffer.Buffer{},
		spare:     &buffer.Buffer{},
	}
}

// Channels returns the number of output channels.
func (r *Renderer) Channels() int {
	return r.channels
}

// BlockSize returns the prepared block size, or 0.
func (r *Renderer) BlockSize() int {
	return r.blockSize
}

// Allocations counts how many times the renderer allocated block state.
func (r *Renderer) Allocations() int {
	n := r.allocs
	for _, b := range []*buffer.Buffer{r.in, r.dir, r.ind, r.spare} {
		n += b.Allocations()
	}
	return n
}

// Prepare allocates state for blocks of n samples. Preparing the current
// block size again is free. A new block size drops the input history.
func (r *Renderer) Prepare(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBlockSize, n)
	}
	if n == r.blockSize {
		return nil
	}

	direct := make([]*conv.StreamingDirect, r.channels)
	indirectTD := make([]*conv.StreamingDirect, r.channels)
	var indirectFD []*conv.UniformPartitioned
	if r.domain == filter.FrequencyDomain {
		indirectFD = make([]*conv.UniformPartitioned, r.channels)
	}
	parts := (r.kernelLen + n - 1) / n

	var err error
	for ch := 0; ch < r.channels; ch++ {
		if direct[ch], err = conv.NewStreamingDirect(n, r.kernelLen); err != nil {
			return err
		}
		if indirectTD[ch], err = conv.NewStreamingDirect(n, r.kernelLen); err != nil {
			return err
		}
		if indirectFD != nil {
			if indirectFD[ch], err = conv.NewUniformPartitioned(n, parts); err != nil {
				return err
			}
		}
	}

	r.direct, r.indirectTD, r.indirectFD = direct, indirectTD, indirectFD
	r.in.Resize(n)
	r.dir.Resize(n)
	r.ind.Resize(n)
	r.spare.Resize(n)
	r.blockSize = n
	r.allocs++
	return nil
}

// Reset clears the input history.
func (r *Renderer) Reset() {
	for ch := range r.direct {
		r.direct[ch].Reset()
		r.indirectTD[ch].Reset()
		if r.indirectFD != nil {
			r.indirectFD[ch].Reset()
		}
	}
}

// Process renders one block of in through set and overwrites
// out[ch][:len(in)]. A nil set renders silence and still advances the
// input history. A block size different from the prepared one prepares
// again first.
func (r *Renderer) Process(mode Mode, set *filter.Set, out [][]float32, in []float32) error {
	return r.render(mode, set, out, in, false)
}

// MixTo is Process but adds the rendered block to out.
func (r *Renderer) MixTo(mode Mode, set *filter.Set, out [][]float32, in []float32) error {
	return r.render(mode, set, out, in, true)
}

func (r *Renderer) render(mode Mode, set *filter.Set, out [][]float32, in []float32, mix bool) error {
	n := len(in)
	if err := r.Prepare(n); err != nil {
		return err
	}
	if len(out) < r.channels {
		return fmt.Errorf("%w: %d channels, want %d", ErrShortOutput, len(out), r.channels)
	}
	for ch := 0; ch < r.channels; ch++ {
		if len(out[ch]) < n {
			return fmt.Errorf("%w: channel %d has %d samples, want %d", ErrShortOutput, ch, len(out[ch]), n)
		}
	}
	if set != nil && set.Layout.Channels != r.channels {
		return fmt.Errorf("%w: %d vs %d", ErrChannelMismatch, set.Layout.Channels, r.channels)
	}

	r.in.CopyFrom32(in)
	x := r.in.Samples()
	dir, ind := r.dir.Samples(), r.ind.Samples()

	for ch := 0; ch < r.channels; ch++ {
		if err := r.renderDirect(ch, mode, set, dir, x); err != nil {
			return err
		}
		if err := r.renderIndirect(ch, mode, set, ind, x); err != nil {
			return err
		}
		vecmath.AddBlockInPlace(dir, ind)

		dst := out[ch][:n]
		if mix {
			for i, v := range dir {
				dst[i] += float32(v)
			}
		} else {
			for i, v := range dir {
				dst[i] = float32(v)
			}
		}
	}
	return nil
}

func (r *Renderer) renderDirect(ch int, mode Mode, set *filter.Set, dst, x []float64) error {
	if set == nil || !mode.direct() {
		return r.direct[ch].ProcessBlockTo(dst, x, nil)
	}
	return r.direct[ch].ProcessSparseTo(dst, x, set.DirectTaps[ch])
}

func (r *Renderer) renderIndirect(ch int, mode Mode, set *filter.Set, dst, x []float64) error {
	var (
		spectra *conv.Spectra
		kernel  []float64
	)
	if set != nil && mode.indirect() {
		if r.indirectFD != nil && set.PartitionSize == r.blockSize && ch < len(set.Spectra) {
			spectra = set.Spectra[ch]
		} else {
			kernel = set.Indirect[ch]
		}
	}

	if r.indirectFD == nil {
		return r.indirectTD[ch].ProcessBlockTo(dst, x, kernel)
	}

	// Both indirect convolvers see every block so either can take over
	// with a full history.
	spare := r.spare.Samples()
	if spectra != nil {
		if err := r.indirectTD[ch].ProcessBlockTo(spare, x, nil); err != nil {
			return err
		}
		return r.indirectFD[ch].ProcessBlockTo(dst, x, spectra)
	}
	if err := r.indirectFD[ch].ProcessBlockTo(spare, x, nil); err != nil {
		return err
	}
	return r.indirectTD[ch].ProcessBlockTo(dst, x, kernel)
}
