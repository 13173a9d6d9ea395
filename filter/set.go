package filter

import (
	"fmt"

	"github.com/cwbudde/algo-acoustic/dsp/conv"
)

// Set is one published generation of a source's filters.
type Set struct {
	// Version increases by one per publication within a slot.
	Version uint64
	// Epoch is the bank layout epoch the set was built for.
	Epoch           uint64
	Layout          Layout
	SnapshotVersion uint64

	Direct   [][]float64
	Indirect [][]float64

	// DirectTaps holds the non-zero support of each direct filter.
	DirectTaps []conv.Taps
	// Spectra holds partitioned indirect filters for PartitionSize, or nil.
	Spectra       []*conv.Spectra
	PartitionSize int

	Occlusion           float32
	DistanceAttenuation float32
}

// IndirectSilent reports whether every indirect tap is zero.
func (s *Set) IndirectSilent() bool {
	for _, ch := range s.Indirect {
		for _, v := range ch {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

// Combined writes direct+indirect taps as float32, channel-major:
// dst[ch*Length+i].
func (s *Set) Combined(dst []float32) error {
	n := s.Layout.Samples()
	if len(dst) < n {
		return fmt.Errorf("%w: need %d samples, got %d", ErrShortBuffer, n, len(dst))
	}
	for ch := 0; ch < s.Layout.Channels; ch++ {
		out := dst[ch*s.Layout.Length : (ch+1)*s.Layout.Length]
		d, ind := s.Direct[ch], s.Indirect[ch]
		for i := range out {
			out[i] = float32(d[i] + ind[i])
		}
	}
	return nil
}

// CombinedChannel returns direct+indirect taps of one channel.
func (s *Set) CombinedChannel(ch int) []float64 {
	out := make([]float64, s.Layout.Length)
	for i := range out {
		out[i] = s.Direct[ch][i] + s.Indirect[ch][i]
	}
	return out
}
