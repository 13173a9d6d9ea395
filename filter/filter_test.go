package filter

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-acoustic/internal/testutil"
	"github.com/cwbudde/algo-acoustic/tracer"
	"github.com/cwbudde/algo-acoustic/types"
)

var testListener = tracer.Listener{
	Forward: types.XYZ(0, 0, -1),
	Up:      types.XYZ(0, 1, 0),
}

func testLayout() Layout {
	return Layout{Channels: 2, SampleRate: 1000, Length: 100}
}

// frontResult is a source 3.43 m in front of the listener with four
// indirect arrivals.
func frontResult(id uint64) tracer.Result {
	front := types.XYZ(0, 0, -1)
	return tracer.Result{
		SourceID:            id,
		Distance:            3.43,
		DistanceAttenuation: float32(1 / 3.43),
		Occlusion:           1,
		Direct:              tracer.Path{Delay: 0.01, Direction: front},
		Indirect: []tracer.Path{
			{Delay: 0.02, Energy: 0.25, Direction: front, Order: 1},
			{Delay: 0.02, Energy: 0.25, Direction: front, Order: 1},
			{Delay: 0.035, Energy: 0.04, Direction: front, Order: 2},
			{Delay: 0.5, Energy: 1, Direction: front, Order: 3},
		},
	}
}

func output(results ...tracer.Result) *tracer.Output {
	return &tracer.Output{SnapshotVersion: 1, Listener: testListener, Results: results}
}

func TestNewLayout(t *testing.T) {
	l := NewLayout(2, 48000, 0.5)
	if l.Length != 24000 {
		t.Fatalf("length = %d, want 24000", l.Length)
	}
	if got := NewLayout(1, 44100, 0.00001).Length; got != 1 {
		t.Fatalf("ceil length = %d, want 1", got)
	}
	if l.Bytes() != 2*24000*4 {
		t.Fatalf("bytes = %d", l.Bytes())
	}
	if math.Abs(l.Duration()-0.5) > 1e-12 {
		t.Fatalf("duration = %v", l.Duration())
	}

	for _, bad := range []Layout{{}, {Channels: 1, SampleRate: 48000}, {Channels: 0, SampleRate: 1, Length: 1}} {
		if err := bad.Validate(); !errors.Is(err, ErrInvalidLayout) {
			t.Fatalf("Validate(%+v) = %v, want ErrInvalidLayout", bad, err)
		}
	}
}

func TestPan(t *testing.T) {
	tests := []struct {
		name      string
		dir       types.Vec3
		louder    int
		delayedCh int
	}{
		{name: "right", dir: types.XYZ(1, 0, 0), louder: 1, delayedCh: 0},
		{name: "left", dir: types.XYZ(-1, 0, 0), louder: 0, delayedCh: 1},
		{name: "front right", dir: types.XYZ(1, 0, -1), louder: 1, delayedCh: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gains, delays := Pan(2, testListener, tt.dir)
			if gains[tt.louder] <= gains[1-tt.louder] {
				t.Fatalf("gains = %v, want channel %d louder", gains, tt.louder)
			}
			if p := gains[0]*gains[0] + gains[1]*gains[1]; math.Abs(p-1) > 1e-12 {
				t.Fatalf("power = %v, want 1", p)
			}
			if delays[tt.delayedCh] <= 0 || delays[1-tt.delayedCh] != 0 {
				t.Fatalf("delays = %v, want only channel %d delayed", delays, tt.delayedCh)
			}
			if delays[tt.delayedCh] > MaxInterauralDelay+1e-12 {
				t.Fatalf("delay %v exceeds the interaural maximum", delays[tt.delayedCh])
			}
		})
	}

	gains, delays := Pan(2, testListener, types.XYZ(0, 0, -1))
	if math.Abs(gains[0]-gains[1]) > 1e-12 || delays[0] != 0 || delays[1] != 0 {
		t.Fatalf("front: gains %v delays %v", gains, delays)
	}

	gains, _ = Pan(1, testListener, types.XYZ(1, 0, 0))
	if gains[0] != 1 {
		t.Fatalf("mono gain = %v, want 1", gains[0])
	}
}

func TestSynthesize(t *testing.T) {
	res := frontResult(1)
	direct, indirect, err := Synthesize(testLayout(), &res, testListener)
	if err != nil {
		t.Fatal(err)
	}

	amp := res.DirectGain() * math.Sqrt2 / 2
	for ch := range direct {
		var sum float64
		for _, v := range direct[ch] {
			sum += v
		}
		if math.Abs(sum-amp) > 1e-9 {
			t.Fatalf("channel %d direct sum = %v, want %v", ch, sum, amp)
		}
		if direct[ch][10] < 0.99*amp {
			t.Fatalf("channel %d direct tap at 10 = %v, want about %v", ch, direct[ch][10], amp)
		}

		// Two arrivals of 0.25 in the same tap, each panned to half power.
		if got, want := indirect[ch][20], math.Sqrt(0.25); math.Abs(got-want) > 1e-9 {
			t.Fatalf("channel %d indirect[20] = %v, want %v", ch, got, want)
		}
		if got, want := indirect[ch][35], math.Sqrt(0.02); math.Abs(got-want) > 1e-9 {
			t.Fatalf("channel %d indirect[35] = %v, want %v", ch, got, want)
		}
		testutil.RequireFinite(t, indirect[ch])
	}
}

func TestSynthesizeTailFade(t *testing.T) {
	res := tracer.Result{
		SourceID: 1,
		Indirect: []tracer.Path{
			{Delay: 0.080, Energy: 1, Direction: types.XYZ(0, 0, -1)},
			{Delay: 0.099, Energy: 1, Direction: types.XYZ(0, 0, -1)},
		},
	}
	_, indirect, err := Synthesize(testLayout(), &res, testListener)
	if err != nil {
		t.Fatal(err)
	}
	if indirect[0][80] == 0 {
		t.Fatal("tap before the fade region was removed")
	}
	if indirect[0][99] >= indirect[0][80] {
		t.Fatalf("last tap %v not attenuated below %v", indirect[0][99], indirect[0][80])
	}
}

func TestSynthesizeRejectsInvalidLayout(t *testing.T) {
	res := frontResult(1)
	for _, bad := range []Layout{{}, {Channels: 2, SampleRate: 1000}, {Channels: 2, Length: 10}} {
		direct, indirect, err := Synthesize(bad, &res, testListener)
		if !errors.Is(err, ErrInvalidLayout) {
			t.Fatalf("Synthesize(%+v) = %v, want ErrInvalidLayout", bad, err)
		}
		if direct != nil || indirect != nil {
			t.Fatalf("Synthesize(%+v) returned filters with an error", bad)
		}
	}
}

func TestBankPublish(t *testing.T) {
	b, err := NewBank(testLayout())
	if err != nil {
		t.Fatal(err)
	}
	slot := b.Add(7)
	if slot.Current() != nil {
		t.Fatal("new slot has a set")
	}
	if b.Ready() {
		t.Fatal("bank ready before any publish")
	}

	n, err := b.Publish(b.Epoch(), output(frontResult(7), frontResult(99)), map[uint64]Params{
		7: {DirectGain: 1, IndirectGain: 1},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if n != 1 {
		t.Fatalf("published %d sets, want 1", n)
	}
	set := slot.Current()
	if set == nil || set.Version != 1 || set.SnapshotVersion != 1 {
		t.Fatalf("unexpected set %+v", set)
	}
	if set.IndirectSilent() {
		t.Fatal("indirect set silent at gain 1")
	}
	if len(set.DirectTaps[0].Index) == 0 {
		t.Fatal("direct taps empty")
	}
	if !b.Ready() {
		t.Fatal("bank not ready after publish")
	}

	if _, err := b.Slot(99); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("Slot(99) = %v, want ErrUnknownSource", err)
	}
}

func TestBankIndirectGainZeroIsSilent(t *testing.T) {
	b, err := NewBank(testLayout(), WithDecay(0.5))
	if err != nil {
		t.Fatal(err)
	}
	slot := b.Add(1)
	out := output(frontResult(1))

	if _, err := b.Publish(b.Epoch(), out, map[uint64]Params{1: {DirectGain: 1, IndirectGain: 1}}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Publish(b.Epoch(), out, map[uint64]Params{1: {DirectGain: 1, IndirectGain: 0}}); err != nil {
		t.Fatal(err)
	}
	set := slot.Current()
	if !set.IndirectSilent() {
		t.Fatal("indirect set not silent at gain 0")
	}
	for _, v := range set.Indirect[1] {
		if v != 0 {
			t.Fatalf("tap %v, want exactly 0", v)
		}
	}
}

func TestBankSmoothing(t *testing.T) {
	b, err := NewBank(testLayout(), WithDecay(0.5), WithDomain(TimeDomain))
	if err != nil {
		t.Fatal(err)
	}
	slot := b.Add(1)
	params := map[uint64]Params{1: {DirectGain: 1, IndirectGain: 1}}

	first := frontResult(1)
	if _, err := b.Publish(b.Epoch(), output(first), params); err != nil {
		t.Fatal(err)
	}
	a := slot.Current()

	// Identical traces are stable.
	if _, err := b.Publish(b.Epoch(), output(first), params); err != nil {
		t.Fatal(err)
	}
	repeat := slot.Current()
	if repeat.Version != 2 {
		t.Fatalf("version = %d, want 2", repeat.Version)
	}
	for ch := range a.Indirect {
		testutil.RequireSliceNearlyEqual(t, repeat.Indirect[ch], a.Indirect[ch], 1e-12)
		testutil.RequireSliceNearlyEqual(t, repeat.Direct[ch], a.Direct[ch], 1e-12)
	}

	// A different trace moves halfway.
	second := first
	second.Indirect = []tracer.Path{{Delay: 0.05, Energy: 0.5, Direction: types.XYZ(0, 0, -1)}}
	if _, err := b.Publish(b.Epoch(), output(second), params); err != nil {
		t.Fatal(err)
	}
	mixed := slot.Current()
	if got, want := mixed.Indirect[0][50], 0.5*math.Sqrt(0.25); math.Abs(got-want) > 1e-9 {
		t.Fatalf("indirect[50] = %v, want %v", got, want)
	}
	if got, want := mixed.Indirect[0][20], 0.5*a.Indirect[0][20]; math.Abs(got-want) > 1e-9 {
		t.Fatalf("indirect[20] = %v, want %v", got, want)
	}
	if mixed.Spectra != nil {
		t.Fatal("time-domain bank prepared spectra")
	}
	if gets, _ := b.pool.Stats(); gets != 4 {
		t.Fatalf("smoothing drew %d scratch buffers, want 4", gets)
	}
}

func TestBankStaleEpoch(t *testing.T) {
	b, err := NewBank(testLayout())
	if err != nil {
		t.Fatal(err)
	}
	slot := b.Add(1)
	params := map[uint64]Params{1: {DirectGain: 1, IndirectGain: 1}}

	epoch := b.Epoch()
	if _, err := b.Publish(epoch, output(frontResult(1)), params); err != nil {
		t.Fatal(err)
	}

	if err := b.SetLayout(Layout{Channels: 2, SampleRate: 2000, Length: 200}); err != nil {
		t.Fatal(err)
	}
	if slot.Current() != nil {
		t.Fatal("layout change kept the published set")
	}
	if got := b.pool.Length(); got != 200 {
		t.Fatalf("scratch pool length = %d, want 200", got)
	}
	if b.Ready() {
		t.Fatal("bank ready after layout change")
	}

	if _, err := b.Publish(epoch, output(frontResult(1)), params); !errors.Is(err, ErrStaleEpoch) {
		t.Fatalf("Publish with stale epoch = %v, want ErrStaleEpoch", err)
	}
	if slot.Current() != nil {
		t.Fatal("stale publish installed a set")
	}

	if _, err := b.Publish(b.Epoch(), output(frontResult(1)), params); err != nil {
		t.Fatal(err)
	}
	if got := slot.Current().Layout.Length; got != 200 {
		t.Fatalf("set length = %d, want 200", got)
	}

	if err := b.SetLayout(Layout{}); !errors.Is(err, ErrInvalidLayout) {
		t.Fatalf("SetLayout(empty) = %v, want ErrInvalidLayout", err)
	}
}

func TestBankFrequencyDomainSpectra(t *testing.T) {
	b, err := NewBank(testLayout())
	if err != nil {
		t.Fatal(err)
	}
	slot := b.Add(1)
	params := map[uint64]Params{1: {DirectGain: 1, IndirectGain: 1}}

	if _, err := b.Publish(b.Epoch(), output(frontResult(1)), params); err != nil {
		t.Fatal(err)
	}
	if slot.Current().Spectra != nil {
		t.Fatal("spectra prepared without a block size")
	}

	slot.SetBlockSize(16)
	if _, err := b.Publish(b.Epoch(), output(frontResult(1)), params); err != nil {
		t.Fatal(err)
	}
	set := slot.Current()
	if set.PartitionSize != 16 || len(set.Spectra) != 2 {
		t.Fatalf("partition %d spectra %d", set.PartitionSize, len(set.Spectra))
	}
	if set.Spectra[0].BlockSize() != 16 {
		t.Fatalf("spectra block size = %d", set.Spectra[0].BlockSize())
	}
}

func TestSetCombined(t *testing.T) {
	b, err := NewBank(testLayout())
	if err != nil {
		t.Fatal(err)
	}
	slot := b.Add(1)
	if _, err := b.Publish(b.Epoch(), output(frontResult(1)), map[uint64]Params{1: {DirectGain: 1, IndirectGain: 1}}); err != nil {
		t.Fatal(err)
	}
	set := slot.Current()

	dst := make([]float32, set.Layout.Samples())
	if err := set.Combined(dst); err != nil {
		t.Fatal(err)
	}
	for ch := 0; ch < 2; ch++ {
		want := testutil.Float32(set.CombinedChannel(ch))
		testutil.RequireSlice32NearlyEqual(t, dst[ch*100:(ch+1)*100], want, 1e-7)
	}

	if err := set.Combined(make([]float32, 10)); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("short buffer: %v", err)
	}
}

func TestBankDecayAndRemove(t *testing.T) {
	b, err := NewBank(testLayout())
	if err != nil {
		t.Fatal(err)
	}
	if err := b.SetDecay(0); err == nil {
		t.Fatal("decay 0 accepted")
	}
	if err := b.SetDecay(1); err != nil {
		t.Fatal(err)
	}

	slot := b.Add(3)
	if b.Add(3) != slot {
		t.Fatal("Add returned a second slot for the same id")
	}
	b.Remove(3)
	n, err := b.Publish(b.Epoch(), output(frontResult(3)), nil)
	if err != nil || n != 0 {
		t.Fatalf("Publish after Remove = %d, %v", n, err)
	}
}

func TestNewBankRejectsInvalidLayout(t *testing.T) {
	if _, err := NewBank(Layout{}); !errors.Is(err, ErrInvalidLayout) {
		t.Fatalf("NewBank = %v, want ErrInvalidLayout", err)
	}
}
