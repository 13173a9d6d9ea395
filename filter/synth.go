package filter

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-acoustic/dsp/window"
	"github.com/cwbudde/algo-acoustic/tracer"
	"github.com/cwbudde/algo-acoustic/types"
)

const (
	// MaxInterauralDelay is the far-ear delay in seconds for a source fully
	// to one side.
	MaxInterauralDelay = 0.00066

	// tailFadeFraction of each filter is tapered to zero.
	tailFadeFraction = 0.1
)

// Pan returns the per-channel gains and extra delays, in seconds, for an
// arrival from direction dir. Stereo uses equal-power panning on the
// listener's right axis; any other channel count gets unit gains.
func Pan(channels int, listener tracer.Listener, dir types.Vec3) (gains, delays []float64) {
	gains = make([]float64, channels)
	delays = make([]float64, channels)
	if channels != 2 {
		for i := range gains {
			gains[i] = 1
		}
		return gains, delays
	}

	pan := float64(dir.Normalize().Dot(listener.Right()))
	pan = math.Max(-1, math.Min(1, pan))
	theta := (pan + 1) * math.Pi / 4
	gains[0] = math.Cos(theta)
	gains[1] = math.Sin(theta)
	if pan > 0 {
		delays[0] = MaxInterauralDelay * pan
	} else {
		delays[1] = -MaxInterauralDelay * pan
	}
	return gains, delays
}

// addFractional splits amp between the two taps around pos.
func addFractional(dst []float64, pos, amp float64) {
	if pos < 0 {
		return
	}
	i := int(math.Floor(pos))
	frac := pos - float64(i)
	if i < len(dst) {
		dst[i] += amp * (1 - frac)
	}
	if i+1 < len(dst) && frac > 0 {
		dst[i+1] += amp * frac
	}
}

// Synthesize renders the paths of one source into unit-gain direct and
// indirect filters. Indirect paths are accumulated as an energy histogram
// and converted to amplitude per tap.
func Synthesize(layout Layout, res *tracer.Result, listener tracer.Listener) (direct, indirect [][]float64, err error) {
	if err := layout.Validate(); err != nil {
		return nil, nil, err
	}
	fs := float64(layout.SampleRate)
	direct = make([][]float64, layout.Channels)
	indirect = make([][]float64, layout.Channels)
	for ch := range direct {
		direct[ch] = make([]float64, layout.Length)
		indirect[ch] = make([]float64, layout.Length)
	}

	if amp := res.DirectGain(); amp > 0 {
		gains, delays := Pan(layout.Channels, listener, res.Direct.Direction)
		for ch := range direct {
			addFractional(direct[ch], (res.Direct.Delay+delays[ch])*fs, amp*gains[ch])
		}
	}

	for _, p := range res.Indirect {
		gains, delays := Pan(layout.Channels, listener, p.Direction)
		for ch := range indirect {
			idx := int(math.Round((p.Delay + delays[ch]) * fs))
			if idx >= 0 && idx < layout.Length {
				indirect[ch][idx] += p.Energy * gains[ch] * gains[ch]
			}
		}
	}
	for _, ch := range indirect {
		for i, e := range ch {
			if e > 0 {
				ch[i] = mathSqrt(e)
			}
		}
	}

	fade := int(float64(layout.Length) * tailFadeFraction)
	for ch := range direct {
		if err := window.ApplyFadeOut(direct[ch], fade); err != nil {
			return nil, nil, fmt.Errorf("filter: direct tail fade: %w", err)
		}
		if err := window.ApplyFadeOut(indirect[ch], fade); err != nil {
			return nil, nil, fmt.Errorf("filter: indirect tail fade: %w", err)
		}
	}
	return direct, indirect, nil
}
