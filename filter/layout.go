package filter

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidLayout = errors.New("filter: invalid layout")
	ErrStaleEpoch    = errors.New("filter: trace predates the current layout")
	ErrShortBuffer   = errors.New("filter: destination buffer too short")
	ErrUnknownSource = errors.New("filter: unknown source")
)

// Domain selects how indirect filters are applied.
type Domain int

const (
	// FrequencyDomain applies indirect filters with uniformly partitioned
	// FFT convolution.
	FrequencyDomain Domain = iota
	// TimeDomain applies indirect filters with direct FIR convolution.
	TimeDomain
)

func (d Domain) String() string {
	switch d {
	case FrequencyDomain:
		return "frequency"
	case TimeDomain:
		return "time"
	default:
		return fmt.Sprintf("domain(%d)", int(d))
	}
}

// Layout fixes the shape of every filter in a bank.
type Layout struct {
	Channels   int
	SampleRate int
	// Length is the number of taps per channel and path.
	Length int
}

// NewLayout derives the tap count ceil(reverbLength * sampleRate).
func NewLayout(channels, sampleRate int, reverbLength float32) Layout {
	length := int(math.Ceil(float64(reverbLength) * float64(sampleRate)))
	return Layout{Channels: channels, SampleRate: sampleRate, Length: length}
}

// Validate checks that every dimension is positive.
func (l Layout) Validate() error {
	if l.Channels <= 0 || l.SampleRate <= 0 || l.Length <= 0 {
		return fmt.Errorf("%w: %d channels, %d Hz, %d taps", ErrInvalidLayout, l.Channels, l.SampleRate, l.Length)
	}
	return nil
}

// Samples returns the number of taps across all channels.
func (l Layout) Samples() int {
	return l.Channels * l.Length
}

// Bytes returns the size of a channel-major float32 export of one set.
func (l Layout) Bytes() int {
	return l.Samples() * 4
}

// Duration returns the filter length in seconds.
func (l Layout) Duration() float64 {
	return float64(l.Length) / float64(l.SampleRate)
}
