package ir

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-acoustic/filter"
	"github.com/cwbudde/algo-vecmath"
)

var (
	ErrEmpty             = errors.New("ir: response is empty")
	ErrInvalidSampleRate = errors.New("ir: sample rate must be positive")
	ErrInvalidTime       = errors.New("ir: time must be positive")
	ErrNoDecay           = errors.New("ir: insufficient decay for RT calculation")
	ErrSilent            = errors.New("ir: response is silent")
)

// schroederFloor is the level assigned to the exhausted tail of the decay
// curve.
const schroederFloor = -200.0

// Metrics describes one filter channel.
type Metrics struct {
	Energy     float64 // sum of squared taps
	Peak       float64 // absolute maximum
	PeakIndex  int
	PeakTime   float64 // seconds
	RT60       float64 // seconds, 0 without enough decay
	EDT        float64 // seconds
	C80        float64 // dB
	D50        float64 // 0..1
	CenterTime float64 // seconds after the peak
}

// Report is the analysis of one channel of a filter set.
type Report struct {
	Channel int
	// DirectEnergy and IndirectEnergy split Metrics.Energy by path.
	DirectEnergy   float64
	IndirectEnergy float64
	Metrics
}

// Analyzer computes Metrics at a fixed sample rate.
type Analyzer struct {
	SampleRate float64
}

func NewAnalyzer(sampleRate float64) *Analyzer {
	return &Analyzer{SampleRate: sampleRate}
}

// AnalyzeSet analyzes every channel of the combined direct and indirect
// filters of set at the set's own sample rate.
func AnalyzeSet(set *filter.Set) ([]Report, error) {
	if set == nil {
		return nil, ErrEmpty
	}
	a := NewAnalyzer(float64(set.Layout.SampleRate))

	reports := make([]Report, 0, set.Layout.Channels)
	for ch := 0; ch < set.Layout.Channels; ch++ {
		m, err := a.Analyze(set.CombinedChannel(ch))
		if err != nil && !errors.Is(err, ErrSilent) {
			return nil, fmt.Errorf("channel %d: %w", ch, err)
		}
		reports = append(reports, Report{
			Channel:        ch,
			DirectEnergy:   energy(set.Direct[ch]),
			IndirectEnergy: energy(set.Indirect[ch]),
			Metrics:        m,
		})
	}
	return reports, nil
}

// Analyze computes every metric of h. A silent response returns zero
// Metrics and ErrSilent.
func (a *Analyzer) Analyze(h []float64) (Metrics, error) {
	if len(h) == 0 {
		return Metrics{}, ErrEmpty
	}
	if a.SampleRate <= 0 {
		return Metrics{}, ErrInvalidSampleRate
	}

	peak := vecmath.MaxAbs(h)
	if peak == 0 {
		return Metrics{}, ErrSilent
	}
	idx := peakIndex(h, peak)
	tail := h[idx:]
	curve := a.schroeder(tail)

	m := Metrics{
		Energy:     energy(h),
		Peak:       peak,
		PeakIndex:  idx,
		PeakTime:   float64(idx) / a.SampleRate,
		EDT:        a.reverbTime(curve, 0, -10),
		C80:        a.clarity(tail, 80),
		D50:        a.definition(tail, 50),
		CenterTime: a.centerTime(tail),
	}
	if m.RT60 = a.reverbTime(curve, -5, -35); m.RT60 == 0 {
		m.RT60 = a.reverbTime(curve, -5, -25)
	}
	return m, nil
}

// Schroeder returns the normalized backward integral of h² in dB.
func (a *Analyzer) Schroeder(h []float64) ([]float64, error) {
	if len(h) == 0 {
		return nil, ErrEmpty
	}
	return a.schroeder(h), nil
}

func (a *Analyzer) schroeder(h []float64) []float64 {
	out := make([]float64, len(h))
	vecmath.MulBlock(out, h, h)

	var sum float64
	for i := len(out) - 1; i >= 0; i-- {
		sum += out[i]
		out[i] = sum
	}
	total := out[0]
	if total <= 0 {
		return out
	}
	for i, v := range out {
		if r := v / total; r > 0 {
			out[i] = 10 * math.Log10(r)
		} else {
			out[i] = schroederFloor
		}
	}
	return out
}

// reverbTime fits a line to curve between startDB and endDB and
// extrapolates it to -60 dB.
func (a *Analyzer) reverbTime(curve []float64, startDB, endDB float64) float64 {
	start, end := -1, -1
	for i, v := range curve {
		if start < 0 && v <= startDB {
			start = i
		}
		if start >= 0 && v <= endDB {
			end = i
			break
		}
	}
	if start < 0 || end <= start {
		return 0
	}

	var sx, sy, sxx, sxy float64
	n := float64(end - start + 1)
	for i := start; i <= end; i++ {
		x, y := float64(i-start), curve[i]
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	slope := (n*sxy - sx*sy) / den * a.SampleRate // dB/s
	if slope >= 0 {
		return 0
	}
	return -60 / slope
}

// RT60 returns the reverberation time of h measured from its first tap.
func (a *Analyzer) RT60(h []float64) (float64, error) {
	if len(h) == 0 {
		return 0, ErrEmpty
	}
	if a.SampleRate <= 0 {
		return 0, ErrInvalidSampleRate
	}
	curve := a.schroeder(h)
	if rt := a.reverbTime(curve, -5, -35); rt > 0 {
		return rt, nil
	}
	if rt := a.reverbTime(curve, -5, -25); rt > 0 {
		return rt, nil
	}
	return 0, ErrNoDecay
}

// Clarity returns 10·log10 of the energy before ms over the energy after.
func (a *Analyzer) Clarity(h []float64, ms float64) (float64, error) {
	if err := a.check(h, ms); err != nil {
		return 0, err
	}
	return a.clarity(h, ms), nil
}

func (a *Analyzer) clarity(h []float64, ms float64) float64 {
	early, late := a.split(h, ms)
	switch {
	case late <= 0:
		return math.Inf(1)
	case early <= 0:
		return math.Inf(-1)
	}
	return 10 * math.Log10(early/late)
}

// Definition returns the fraction of the energy of h arriving before ms.
func (a *Analyzer) Definition(h []float64, ms float64) (float64, error) {
	if err := a.check(h, ms); err != nil {
		return 0, err
	}
	return a.definition(h, ms), nil
}

func (a *Analyzer) definition(h []float64, ms float64) float64 {
	early, late := a.split(h, ms)
	if early+late <= 0 {
		return 0
	}
	return early / (early + late)
}

func (a *Analyzer) split(h []float64, ms float64) (early, late float64) {
	b := int(math.Round(ms * 0.001 * a.SampleRate))
	b = min(max(b, 0), len(h))
	return energy(h[:b]), energy(h[b:])
}

func (a *Analyzer) centerTime(h []float64) float64 {
	var num, den float64
	for i, v := range h {
		e := v * v
		num += float64(i) / a.SampleRate * e
		den += e
	}
	if den <= 0 {
		return 0
	}
	return num / den
}

func (a *Analyzer) check(h []float64, ms float64) error {
	switch {
	case len(h) == 0:
		return ErrEmpty
	case a.SampleRate <= 0:
		return ErrInvalidSampleRate
	case ms <= 0:
		return ErrInvalidTime
	}
	return nil
}

func energy(h []float64) float64 {
	var e float64
	for _, v := range h {
		e += v * v
	}
	return e
}

func peakIndex(h []float64, peak float64) int {
	for i, v := range h {
		if math.Abs(v) == peak {
			return i
		}
	}
	return 0
}
