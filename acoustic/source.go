package acoustic

import (
	"math"
	"sync"

	"github.com/cwbudde/algo-acoustic/filter"
	"github.com/cwbudde/algo-acoustic/internal/handle"
	"github.com/cwbudde/algo-acoustic/render"
	"github.com/cwbudde/algo-acoustic/types"
)

type sourceState struct {
	id   uint64
	slot *filter.Slot

	// Guarded by Context.mu.
	position     types.Vec3
	directGain   float32
	indirectGain float32
	effect       EffectPreset

	// Audio state.
	mu         sync.Mutex
	alive      bool
	renderer   *render.Renderer
	mixer      *render.Renderer
	submitted  []float32
	submittedN int
}

func newSourceState(id uint64, slot *filter.Slot, effect EffectPreset, layout filter.Layout, domain filter.Domain) *sourceState {
	st := &sourceState{
		id:           id,
		slot:         slot,
		directGain:   DefaultPathGain,
		indirectGain: DefaultPathGain,
		effect:       effect,
		alive:        true,
	}
	st.relayout(layout, domain)
	return st
}

func (st *sourceState) relayout(layout filter.Layout, domain filter.Domain) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.renderer = render.New(layout.Channels, layout.Length, domain)
	st.mixer = render.New(layout.Channels, layout.Length, domain)
	st.submittedN = 0
}

func (st *sourceState) kill() {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.alive = false
	st.renderer, st.mixer = nil, nil
	st.submitted, st.submittedN = nil, 0
}

// Source is a handle to a sound emitter.
type Source struct {
	ctx *Context
	h   handle.Handle
	st  *sourceState
}

// IsZero reports whether s is the zero handle.
func (s Source) IsZero() bool {
	return s.st == nil
}

// CreateSource adds a source at the origin with unit path gains.
func (c *Context) CreateSource(effect EffectPreset) (Source, error) {
	const op = "Context.CreateSource"
	unlock, err := c.write(op)
	if err != nil {
		return Source{}, err
	}
	defer unlock()

	if !effect.valid() {
		return Source{}, failf(op, StatusInvalidValue, "unknown effect preset %d", int(effect))
	}

	h, err := c.sources.Insert(nil)
	if err != nil {
		return Source{}, wrap(op, err)
	}
	id := h.Key()
	st := newSourceState(id, c.bank.Add(id), effect, c.bank.Layout(), c.cfg.FilterDomain)
	if p, err := c.sources.Ptr(h); err == nil {
		*p = st
	}

	order := append(append([]*sourceState(nil), *c.order.Load()...), st)
	c.order.Store(&order)
	c.metrics.sources.Inc()
	return Source{ctx: c, h: h, st: st}, nil
}

func (s Source) lock(op string, write bool) (*sourceState, func(), error) {
	if s.ctx == nil || s.st == nil {
		return nil, nil, invalidHandle(op)
	}
	var (
		unlock func()
		err    error
	)
	if write {
		unlock, err = s.ctx.write(op)
	} else {
		unlock, err = s.ctx.read(op)
	}
	if err != nil {
		return nil, nil, err
	}
	if st, err := s.ctx.sources.Get(s.h); err != nil || st != s.st {
		unlock()
		return nil, nil, fail(op, StatusInvalidValue, handle.ErrInvalid)
	}
	return s.st, unlock, nil
}

// Destroy removes the source and releases its buffers and filters.
func (s Source) Destroy() error {
	const op = "Source.Destroy"
	st, unlock, err := s.lock(op, true)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.ctx.sources.Remove(s.h); err != nil {
		return wrap(op, err)
	}
	s.ctx.bank.Remove(st.id)
	st.kill()

	prev := *s.ctx.order.Load()
	order := make([]*sourceState, 0, len(prev))
	for _, o := range prev {
		if o != st {
			order = append(order, o)
		}
	}
	s.ctx.order.Store(&order)
	s.ctx.metrics.sources.Dec()
	return nil
}

// Location returns the source position.
func (s Source) Location() (types.Vec3, error) {
	st, unlock, err := s.lock("Source.Location", false)
	if err != nil {
		return types.Vec3{}, err
	}
	defer unlock()
	return st.position, nil
}

// SetLocation moves the source. It applies from the next trace.
func (s Source) SetLocation(p types.Vec3) error {
	const op = "Source.SetLocation"
	st, unlock, err := s.lock(op, true)
	if err != nil {
		return err
	}
	defer unlock()

	if !p.IsFinite() {
		return failf(op, StatusInvalidValue, "location %v is not finite", p)
	}
	st.position = p
	return nil
}

// DirectPathGain returns the direct path gain.
func (s Source) DirectPathGain() (float32, error) {
	st, unlock, err := s.lock("Source.DirectPathGain", false)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return st.directGain, nil
}

// SetDirectPathGain sets the direct path gain, >= 0.
func (s Source) SetDirectPathGain(g float32) error {
	return s.setGain("Source.SetDirectPathGain", g, func(st *sourceState) { st.directGain = g })
}

// IndirectPathGain returns the indirect path gain.
func (s Source) IndirectPathGain() (float32, error) {
	st, unlock, err := s.lock("Source.IndirectPathGain", false)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return st.indirectGain, nil
}

// SetIndirectPathGain sets the indirect path gain, >= 0. Gain 0 makes the
// next traced indirect filters exactly silent.
func (s Source) SetIndirectPathGain(g float32) error {
	return s.setGain("Source.SetIndirectPathGain", g, func(st *sourceState) { st.indirectGain = g })
}

func (s Source) setGain(op string, g float32, set func(*sourceState)) error {
	st, unlock, err := s.lock(op, true)
	if err != nil {
		return err
	}
	defer unlock()

	if g < 0 || math.IsNaN(float64(g)) || math.IsInf(float64(g), 0) {
		return failf(op, StatusInvalidValue, "gain %v must be finite and >= 0", g)
	}
	set(st)
	return nil
}

// EffectPreset returns the tracing effort of the source.
func (s Source) EffectPreset() (EffectPreset, error) {
	st, unlock, err := s.lock("Source.EffectPreset", false)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return st.effect, nil
}

// SetEffectPreset changes the tracing effort. It applies from the next
// trace.
func (s Source) SetEffectPreset(p EffectPreset) error {
	const op = "Source.SetEffectPreset"
	st, unlock, err := s.lock(op, true)
	if err != nil {
		return err
	}
	defer unlock()

	if !p.valid() {
		return failf(op, StatusInvalidValue, "unknown effect preset %d", int(p))
	}
	st.effect = p
	return nil
}
