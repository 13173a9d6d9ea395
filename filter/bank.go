package filter

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-acoustic/dsp/buffer"
	"github.com/cwbudde/algo-acoustic/dsp/conv"
	"github.com/cwbudde/algo-acoustic/internal/log"
	"github.com/cwbudde/algo-acoustic/tracer"
)

// Params are the per-source gains captured when a trace is submitted.
type Params struct {
	DirectGain   float32
	IndirectGain float32
}

// Slot is a source's publication point.
type Slot struct {
	id        uint64
	current   atomic.Pointer[Set]
	blockSize atomic.Int64

	// Smoothing state, touched only by Publish and SetLayout under Bank.mu.
	version      uint64
	prevDirect   [][]float64
	prevIndirect [][]float64
}

// ID returns the source id the slot was created for.
func (s *Slot) ID() uint64 {
	return s.id
}

// Current returns the latest published set, or nil before the first trace
// and after a layout change.
func (s *Slot) Current() *Set {
	return s.current.Load()
}

// SetBlockSize records the audio block size so later sets carry indirect
// partitions for it.
func (s *Slot) SetBlockSize(n int) {
	s.blockSize.Store(int64(n))
}

// Config holds bank parameters.
type Config struct {
	Domain Domain
	Decay  float32
}

// Option mutates a Config.
type Option func(*Config)

// WithDomain selects time- or frequency-domain indirect filters.
func WithDomain(d Domain) Option {
	return func(c *Config) {
		c.Domain = d
	}
}

// WithDecay sets the smoothing weight of the newest trace, in (0,1].
func WithDecay(d float32) Option {
	return func(c *Config) {
		if d > 0 && d <= 1 {
			c.Decay = d
		}
	}
}

// Bank owns the slots of every source of one context.
type Bank struct {
	logger log.Logger
	pool   *buffer.Pool

	mu     sync.Mutex
	cfg    Config
	layout Layout
	epoch  uint64
	ready  bool
	slots  map[uint64]*Slot

	partitioners map[int]*conv.Partitioner
}

// NewBank creates a bank for layout.
func NewBank(layout Layout, opts ...Option) (*Bank, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	cfg := Config{Domain: FrequencyDomain, Decay: 0.9}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Bank{
		logger:       log.New("filter"),
		pool:         buffer.NewPool(layout.Length),
		cfg:          cfg,
		layout:       layout,
		epoch:        1,
		slots:        make(map[uint64]*Slot),
		partitioners: make(map[int]*conv.Partitioner),
	}, nil
}

// Layout returns the current layout.
func (b *Bank) Layout() Layout {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.layout
}

// Epoch identifies the current layout generation.
func (b *Bank) Epoch() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.epoch
}

// Domain returns the indirect filter domain.
func (b *Bank) Domain() Domain {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.Domain
}

// Ready reports whether a trace has been published for the current layout.
func (b *Bank) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// SetLayout installs a new layout. Every published set is dropped and
// smoothing restarts; traces submitted before the change are discarded.
func (b *Bank) SetLayout(layout Layout) error {
	if err := layout.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.layout = layout
	if b.pool.Length() != layout.Length {
		b.pool = buffer.NewPool(layout.Length)
	}
	b.invalidateLocked()
	return nil
}

// Invalidate drops every published set without changing the layout.
func (b *Bank) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.invalidateLocked()
}

func (b *Bank) invalidateLocked() {
	b.epoch++
	b.ready = false
	for _, s := range b.slots {
		s.current.Store(nil)
		s.prevDirect, s.prevIndirect = nil, nil
	}
	b.logger.Debugf("filter layout epoch %d: %d channels, %d Hz, %d taps", b.epoch, b.layout.Channels, b.layout.SampleRate, b.layout.Length)
}

// SetDecay changes the smoothing weight. It applies from the next trace.
func (b *Bank) SetDecay(d float32) error {
	if !(d > 0 && d <= 1) {
		return fmt.Errorf("filter: decay %v out of (0,1]", d)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg.Decay = d
	return nil
}

// Add creates the slot for a source.
func (b *Bank) Add(id uint64) *Slot {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.slots[id]; ok {
		return s
	}
	s := &Slot{id: id}
	b.slots[id] = s
	return s
}

// Remove drops a source's slot. Readers holding the slot keep their last set.
func (b *Bank) Remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.slots, id)
}

// Slot returns the slot for id.
func (b *Bank) Slot(id uint64) (*Slot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.slots[id]
	if !ok {
		return nil, ErrUnknownSource
	}
	return s, nil
}

// Publish builds and publishes one set per traced source. epoch is the
// bank epoch observed when the trace was submitted; a stale epoch discards
// the whole output with ErrStaleEpoch. Sources removed since submission
// are skipped.
func (b *Bank) Publish(epoch uint64, out *tracer.Output, params map[uint64]Params) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if epoch != b.epoch {
		return 0, fmt.Errorf("%w: epoch %d, current %d", ErrStaleEpoch, epoch, b.epoch)
	}

	published := 0
	for i := range out.Results {
		res := &out.Results[i]
		slot, ok := b.slots[res.SourceID]
		if !ok {
			continue
		}
		set, err := b.buildLocked(slot, res, out, params[res.SourceID])
		if err != nil {
			return published, err
		}
		slot.current.Store(set)
		published++
	}
	b.ready = true
	return published, nil
}

func (b *Bank) buildLocked(slot *Slot, res *tracer.Result, out *tracer.Output, p Params) (*Set, error) {
	layout := b.layout
	direct, indirect, err := Synthesize(layout, res, out.Listener)
	if err != nil {
		return nil, err
	}

	// Smooth the unit-gain filters, then apply the gains, so a zero gain is
	// exactly silent regardless of history.
	if slot.prevDirect != nil {
		b.smooth(direct, slot.prevDirect)
		b.smooth(indirect, slot.prevIndirect)
	}
	slot.prevDirect = cloneChannels(direct)
	slot.prevIndirect = cloneChannels(indirect)

	for ch := range direct {
		vecmath.ScaleBlockInPlace(direct[ch], float64(p.DirectGain))
		vecmath.ScaleBlockInPlace(indirect[ch], float64(p.IndirectGain))
	}

	slot.version++
	set := &Set{
		Version:             slot.version,
		Epoch:               b.epoch,
		Layout:              layout,
		SnapshotVersion:     out.SnapshotVersion,
		Direct:              direct,
		Indirect:            indirect,
		DirectTaps:          make([]conv.Taps, layout.Channels),
		Occlusion:           res.Occlusion,
		DistanceAttenuation: res.DistanceAttenuation,
	}
	for ch := range direct {
		set.DirectTaps[ch] = conv.SparseTaps(direct[ch])
	}

	if n := int(slot.blockSize.Load()); n > 0 && b.cfg.Domain == FrequencyDomain {
		part, err := b.partitioner(n)
		if err != nil {
			return nil, err
		}
		set.PartitionSize = n
		set.Spectra = make([]*conv.Spectra, layout.Channels)
		for ch := range indirect {
			if set.Spectra[ch], err = part.Prepare(indirect[ch]); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}

// smooth computes cur = d*cur + (1-d)*prev per channel.
func (b *Bank) smooth(cur, prev [][]float64) {
	d := float64(b.cfg.Decay)
	if d >= 1 {
		return
	}
	tmp := b.pool.Get()
	defer b.pool.Put(tmp)

	for ch := range cur {
		vecmath.ScaleBlockInPlace(cur[ch], d)
		vecmath.ScaleBlock(tmp.Samples(), prev[ch], 1-d)
		vecmath.AddBlockInPlace(cur[ch], tmp.Samples())
	}
}

func (b *Bank) partitioner(n int) (*conv.Partitioner, error) {
	if p, ok := b.partitioners[n]; ok {
		return p, nil
	}
	p, err := conv.NewPartitioner(n)
	if err != nil {
		return nil, err
	}
	b.partitioners[n] = p
	return p, nil
}

func cloneChannels(src [][]float64) [][]float64 {
	out := make([][]float64, len(src))
	for i, ch := range src {
		out[i] = append([]float64(nil), ch...)
	}
	return out
}
