package ir

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-acoustic/filter"
)

// exponentialDecay returns h(t) = exp(-6.908 t / rt60), which reaches
// -60 dB at rt60.
func exponentialDecay(sampleRate, rt60, seconds float64) []float64 {
	h := make([]float64, int(sampleRate*seconds))
	k := 6.9078 / rt60
	for i := range h {
		h[i] = math.Exp(-k * float64(i) / sampleRate)
	}
	return h
}

func impulseWithReflection(sampleRate, delayMs, amp float64, length int) []float64 {
	h := make([]float64, length)
	h[0] = 1
	if i := int(delayMs * 0.001 * sampleRate); i < length {
		h[i] = amp
	}
	return h
}

func TestAnalyzeExponentialDecay(t *testing.T) {
	const rate = 8000.0
	a := NewAnalyzer(rate)
	m, err := a.Analyze(exponentialDecay(rate, 1, 3))
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(m.RT60-1) > 0.05 {
		t.Errorf("RT60 = %.3f, want 1 ±5%%", m.RT60)
	}
	if math.Abs(m.EDT-1) > 0.05 {
		t.Errorf("EDT = %.3f, want 1 ±5%%", m.EDT)
	}
	if m.PeakIndex != 0 || m.Peak != 1 {
		t.Errorf("peak %v at %d", m.Peak, m.PeakIndex)
	}
	if m.CenterTime <= 0 || m.CenterTime > 1 {
		t.Errorf("CenterTime = %.3f", m.CenterTime)
	}
	if m.D50 <= 0 || m.D50 >= 1 {
		t.Errorf("D50 = %.3f", m.D50)
	}
}

func TestSchroeder(t *testing.T) {
	a := NewAnalyzer(8000)
	h := exponentialDecay(8000, 0.5, 1)
	curve, err := a.Schroeder(h)
	if err != nil {
		t.Fatal(err)
	}
	if len(curve) != len(h) {
		t.Fatalf("length %d, want %d", len(curve), len(h))
	}
	if math.Abs(curve[0]) > 1e-9 {
		t.Errorf("curve[0] = %v dB, want 0", curve[0])
	}
	for i := 1; i < len(curve); i++ {
		if curve[i] > curve[i-1]+1e-9 {
			t.Fatalf("curve rises at %d: %v > %v", i, curve[i], curve[i-1])
		}
	}

	if _, err := a.Schroeder(nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("Schroeder(nil) = %v", err)
	}
}

func TestRT60(t *testing.T) {
	a := NewAnalyzer(8000)
	rt, err := a.RT60(exponentialDecay(8000, 0.4, 1.5))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(rt-0.4) > 0.02 {
		t.Errorf("RT60 = %.3f, want 0.4", rt)
	}

	flat := make([]float64, 100)
	for i := range flat {
		flat[i] = 1
	}
	if _, err := a.RT60(flat); !errors.Is(err, ErrNoDecay) {
		t.Errorf("flat response: %v, want ErrNoDecay", err)
	}
	if _, err := a.RT60(nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("RT60(nil) = %v", err)
	}
}

func TestClarityAndDefinition(t *testing.T) {
	const rate = 1000.0
	a := NewAnalyzer(rate)
	h := impulseWithReflection(rate, 100, 0.5, 300)

	tests := []struct {
		ms        float64
		clarity   float64
		definition float64
	}{
		{ms: 50, clarity: 10 * math.Log10(4), definition: 0.8},
		{ms: 80, clarity: 10 * math.Log10(4), definition: 0.8},
		{ms: 200, clarity: math.Inf(1), definition: 1},
	}
	for _, tt := range tests {
		c, err := a.Clarity(h, tt.ms)
		if err != nil {
			t.Fatal(err)
		}
		if c != tt.clarity && math.Abs(c-tt.clarity) > 1e-9 {
			t.Errorf("C(%v) = %v, want %v", tt.ms, c, tt.clarity)
		}
		d, err := a.Definition(h, tt.ms)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(d-tt.definition) > 1e-9 {
			t.Errorf("D(%v) = %v, want %v", tt.ms, d, tt.definition)
		}
	}
}

func TestValidation(t *testing.T) {
	h := []float64{1, 0.5}
	tests := []struct {
		name string
		err  error
		run  func() error
	}{
		{"empty", ErrEmpty, func() error { _, err := NewAnalyzer(8000).Analyze(nil); return err }},
		{"rate", ErrInvalidSampleRate, func() error { _, err := NewAnalyzer(0).Analyze(h); return err }},
		{"silent", ErrSilent, func() error { _, err := NewAnalyzer(8000).Analyze(make([]float64, 4)); return err }},
		{"time", ErrInvalidTime, func() error { _, err := NewAnalyzer(8000).Clarity(h, 0); return err }},
		{"definition rate", ErrInvalidSampleRate, func() error { _, err := NewAnalyzer(-1).Definition(h, 50); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
		})
	}
}

func testSet() *filter.Set {
	layout := filter.Layout{Channels: 2, SampleRate: 1000, Length: 200}
	set := &filter.Set{
		Layout:   layout,
		Direct:   [][]float64{make([]float64, 200), make([]float64, 200)},
		Indirect: [][]float64{make([]float64, 200), make([]float64, 200)},
	}
	set.Direct[0][10] = 1
	set.Direct[1][12] = 0.5
	set.Indirect[0][150] = 0.5
	return set
}

func TestAnalyzeSet(t *testing.T) {
	reports, err := AnalyzeSet(testSet())
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 2 {
		t.Fatalf("%d reports", len(reports))
	}

	left := reports[0]
	if left.PeakIndex != 10 || math.Abs(left.PeakTime-0.01) > 1e-12 {
		t.Errorf("left peak at %d (%v s)", left.PeakIndex, left.PeakTime)
	}
	if left.DirectEnergy != 1 || left.IndirectEnergy != 0.25 || left.Energy != 1.25 {
		t.Errorf("left energies %v + %v = %v", left.DirectEnergy, left.IndirectEnergy, left.Energy)
	}
	// The reflection arrives 140 ms after the peak.
	if math.Abs(left.C80-10*math.Log10(4)) > 1e-9 {
		t.Errorf("left C80 = %v", left.C80)
	}

	right := reports[1]
	if right.Channel != 1 || right.IndirectEnergy != 0 || right.Energy != 0.25 {
		t.Errorf("right report %+v", right)
	}
	if !math.IsInf(right.C80, 1) {
		t.Errorf("right C80 = %v, want +Inf", right.C80)
	}
}

func TestAnalyzeSilentSet(t *testing.T) {
	set := testSet()
	for ch := range set.Direct {
		clear(set.Direct[ch])
		clear(set.Indirect[ch])
	}
	reports, err := AnalyzeSet(set)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range reports {
		if r.Energy != 0 || r.RT60 != 0 {
			t.Errorf("channel %d of a silent set: %+v", r.Channel, r)
		}
	}

	if _, err := AnalyzeSet(nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("AnalyzeSet(nil) = %v", err)
	}
}
