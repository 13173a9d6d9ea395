package window

import (
	"math"
	"testing"
)

func TestGenerateEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		typ        Type
		first, mid float64
	}{
		{"rectangular", TypeRectangular, 1, 1},
		{"hann", TypeHann, 0, 1},
		{"hamming", TypeHamming, 0.08, 1},
		{"blackman", TypeBlackman, 0, 1},
		{"tukey", TypeTukey, 0, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := Generate(tc.typ, 33)
			if math.Abs(w[0]-tc.first) > 1e-12 || math.Abs(w[16]-tc.mid) > 1e-12 {
				t.Fatalf("w[0]=%v w[16]=%v", w[0], w[16])
			}
			for i := range w {
				if math.Abs(w[i]-w[len(w)-1-i]) > 1e-12 {
					t.Fatalf("not symmetric at %d", i)
				}
			}
		})
	}
	if Generate(TypeHann, 0) != nil {
		t.Fatal("expected nil for zero length")
	}
}

func TestFadeOutMonotonic(t *testing.T) {
	f := FadeOut(64)
	if len(f) != 64 {
		t.Fatalf("len = %d", len(f))
	}
	if f[0] < 0.99 || math.Abs(f[63]) > 1e-12 {
		t.Fatalf("f[0]=%v f[63]=%v", f[0], f[63])
	}
	for i := 1; i < len(f); i++ {
		if f[i] > f[i-1] {
			t.Fatalf("fade rises at %d", i)
		}
	}
}

func TestApplyFadeOut(t *testing.T) {
	buf := make([]float64, 100)
	for i := range buf {
		buf[i] = 1
	}
	if err := ApplyFadeOut(buf, 10); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 90; i++ {
		if buf[i] != 1 {
			t.Fatalf("sample %d touched: %v", i, buf[i])
		}
	}
	if math.Abs(buf[99]) > 1e-12 {
		t.Fatalf("tail not faded: %v", buf[99])
	}
	if err := ApplyFadeOut(buf, 101); err == nil {
		t.Fatal("expected range error")
	}
}

func TestApplyMultiplies(t *testing.T) {
	buf := []float64{2, 2, 2}
	Apply(TypeHann, buf)
	if buf[0] != 0 || math.Abs(buf[1]-2) > 1e-12 || buf[2] > 1e-12 {
		t.Fatalf("got %v", buf)
	}
	if err := ApplyCoefficientsInPlace(buf, []float64{1}); err == nil {
		t.Fatal("expected length error")
	}
}

func TestOptions(t *testing.T) {
	if w := Generate(TypeTukey, 9, WithAlpha(0)); w[0] != 1 || w[8] != 1 {
		t.Fatalf("alpha 0 should be rectangular: %v", w)
	}
	hann := Generate(TypeHann, 9)
	for i, v := range Generate(TypeTukey, 9, WithAlpha(1)) {
		if math.Abs(v-hann[i]) > 1e-12 {
			t.Fatalf("alpha 1 differs from hann at %d: %v vs %v", i, v, hann[i])
		}
	}
	want := []float64{0, 0.5, 1, 0.5}
	for i, v := range Generate(TypeHann, 4, WithPeriodic()) {
		if math.Abs(v-want[i]) > 1e-12 {
			t.Fatalf("periodic hann[%d] = %v, want %v", i, v, want[i])
		}
	}
}
