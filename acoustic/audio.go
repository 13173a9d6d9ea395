package acoustic

import (
	"github.com/cwbudde/algo-acoustic/filter"
	"github.com/cwbudde/algo-acoustic/render"
)

// Audio calls take the source's own lock and load its filter set once per
// block. They never wait for the command queue.

// audio locks the source for an audio call.
func (s Source) audio(op string) (*sourceState, error) {
	if err := requireInitialized(op); err != nil {
		return nil, err
	}
	if s.ctx == nil || s.st == nil || s.ctx.closed.Load() {
		return nil, fail(op, StatusInvalidValue, errDestroyed)
	}
	s.st.mu.Lock()
	if !s.st.alive {
		s.st.mu.Unlock()
		return nil, failf(op, StatusInvalidValue, "source destroyed")
	}
	return s.st, nil
}

// ApplyFilters renders n samples of in through the direct and indirect
// filters into out, one buffer per output channel. Passing nil for both
// out and in only prepares internal buffers for blocks of n samples; later
// calls with the same n do not allocate. Before the first trace the output
// is silent.
func (s Source) ApplyFilters(out [][]float32, in []float32, n int) error {
	return s.apply("Source.ApplyFilters", render.Combined, out, in, n)
}

// ApplyDirectPathFilter is ApplyFilters restricted to the direct path.
func (s Source) ApplyDirectPathFilter(out [][]float32, in []float32, n int) error {
	return s.apply("Source.ApplyDirectPathFilter", render.DirectOnly, out, in, n)
}

// ApplyIndirectPathFilter is ApplyFilters restricted to the indirect path.
func (s Source) ApplyIndirectPathFilter(out [][]float32, in []float32, n int) error {
	return s.apply("Source.ApplyIndirectPathFilter", render.IndirectOnly, out, in, n)
}

func (s Source) apply(op string, mode render.Mode, out [][]float32, in []float32, n int) error {
	st, err := s.audio(op)
	if err != nil {
		return err
	}
	defer st.mu.Unlock()

	if n <= 0 {
		return failf(op, StatusInvalidValue, "sample count %d must be positive", n)
	}
	st.slot.SetBlockSize(n)
	if out == nil && in == nil {
		return wrap(op, st.renderer.Prepare(n))
	}
	if out == nil || len(in) < n {
		return failf(op, StatusInvalidValue, "need %d input samples and output buffers", n)
	}
	for ch, buf := range out {
		if buf == nil {
			return failf(op, StatusInvalidValue, "output channel %d is nil", ch)
		}
	}
	return wrap(op, st.renderer.Process(mode, st.slot.Current(), out, in[:n]))
}

// SubmitBuffers stores n samples of in for the next
// Context.ApplyIndirectPathFiltersToSubmittedBuffers.
func (s Source) SubmitBuffers(in []float32, n int) error {
	const op = "Source.SubmitBuffers"
	st, err := s.audio(op)
	if err != nil {
		return err
	}
	defer st.mu.Unlock()

	if n <= 0 || len(in) < n {
		return failf(op, StatusInvalidValue, "need %d input samples, got %d", n, len(in))
	}
	if cap(st.submitted) < n {
		st.submitted = make([]float32, n)
	}
	st.submitted = st.submitted[:n]
	copy(st.submitted, in)
	st.submittedN = n
	st.slot.SetBlockSize(n)
	return nil
}

// ApplyIndirectPathFiltersToSubmittedBuffers convolves every submitted
// source block with that source's indirect filters and writes the mix to
// out. Sources are mixed in creation order; each submission is consumed.
func (c *Context) ApplyIndirectPathFiltersToSubmittedBuffers(out [][]float32, n int) error {
	const op = "Context.ApplyIndirectPathFiltersToSubmittedBuffers"
	if err := requireInitialized(op); err != nil {
		return err
	}
	if c == nil || c.closed.Load() {
		return fail(op, StatusInvalidValue, errDestroyed)
	}
	if n <= 0 || out == nil {
		return failf(op, StatusInvalidValue, "sample count %d and output buffers required", n)
	}
	for ch, buf := range out {
		if len(buf) < n {
			return failf(op, StatusInvalidValue, "output channel %d has %d samples, want %d", ch, len(buf), n)
		}
	}

	sources := *c.order.Load()
	submitted := 0
	for _, st := range sources {
		st.mu.Lock()
		ok, size := st.alive && st.submittedN > 0, st.submittedN
		st.mu.Unlock()
		if !ok {
			continue
		}
		if size != n {
			return failf(op, StatusInvalidValue, "source submitted %d samples, want %d", size, n)
		}
		submitted++
	}
	if submitted == 0 {
		return failf(op, StatusNotReady, "no buffers submitted")
	}

	for _, buf := range out {
		clear(buf[:n])
	}
	for _, st := range sources {
		if err := st.flush(out, n); err != nil {
			return wrap(op, err)
		}
	}
	return nil
}

func (st *sourceState) flush(out [][]float32, n int) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.alive || st.submittedN != n {
		return nil
	}
	st.submittedN = 0
	return st.mixer.MixTo(render.IndirectOnly, st.slot.Current(), out, st.submitted[:n])
}

// current returns the published set for a read that depends on the last
// trace. Queue failures and running traces are reported first.
func (s Source) current(op string) (*filter.Set, error) {
	st, err := s.audio(op)
	if err != nil {
		return nil, err
	}
	st.mu.Unlock()

	if err := s.ctx.queue.Err(); err != nil {
		return nil, wrap(op, err)
	}
	if n := s.ctx.tracing.Load(); n > 0 {
		return nil, failf(op, StatusNotReady, "%d traces in flight", n)
	}
	set := st.slot.Current()
	if set == nil {
		return nil, failf(op, StatusNotReady, "no trace completed")
	}
	return set, nil
}

// Filters copies the combined direct and indirect filters of the last
// trace into dst, channel-major: dst[ch*taps+i]. dst must hold
// Context.FilterArraySize bytes of float32.
func (s Source) Filters(dst []float32) error {
	const op = "Source.Filters"
	set, err := s.current(op)
	if err != nil {
		return err
	}
	if dst == nil {
		return failf(op, StatusInvalidValue, "nil filter array")
	}
	return wrap(op, set.Combined(dst))
}

// OcclusionSettings returns the direct path occlusion and distance
// attenuation found by the last trace.
func (s Source) OcclusionSettings() (occlusion, distance float32, err error) {
	set, err := s.current("Source.OcclusionSettings")
	if err != nil {
		return 0, 0, err
	}
	return set.Occlusion, set.DistanceAttenuation, nil
}
