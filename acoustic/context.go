package acoustic

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwbudde/algo-acoustic/filter"
	"github.com/cwbudde/algo-acoustic/internal/handle"
	"github.com/cwbudde/algo-acoustic/internal/log"
	"github.com/cwbudde/algo-acoustic/queue"
	"github.com/cwbudde/algo-acoustic/scene"
	"github.com/cwbudde/algo-acoustic/tracer"
	"github.com/cwbudde/algo-acoustic/types"
)

// orthogonalTolerance bounds |forward·up| of normalized orientations.
const orthogonalTolerance = 1e-3

var logger = log.New("acoustic")

// Context is one processing session.
type Context struct {
	name     string
	session  uuid.UUID
	device   int
	compute  ComputePreset
	gatherer prometheus.Gatherer
	metrics  *metrics

	queue  *queue.Queue
	graph  *scene.Graph
	bank   *filter.Bank
	tracer tracer.Tracer

	mu       sync.RWMutex
	cfg      Config
	refs     int
	listener tracer.Listener
	// closed is written under mu and read without it by audio calls.
	closed atomic.Bool

	materials *handle.Table[*materialState]
	meshes    *handle.Table[*meshState]
	sources   *handle.Table[*sourceState]

	// order is the creation-ordered source list, replaced on every create
	// and destroy so audio calls can read it without the context lock.
	order atomic.Pointer[[]*sourceState]
	// tracing counts queued and running traces.
	tracing atomic.Int64
}

// Create returns the context called name, creating it on first use. ""
// names the default context. At most one default and one named context
// exist at a time; asking for an existing one increments its reference
// count and requires the same device and compute preset.
func Create(name string, opts ...Option) (*Context, error) {
	const op = "Create"

	if len(name) > MaxNameLength {
		return nil, failf(op, StatusInvalidValue, "name %q longer than %d bytes", name, MaxNameLength)
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	library.mu.Lock()
	defer library.mu.Unlock()

	if !library.initialized.Load() {
		return nil, fail(op, StatusNotInitialized, nil)
	}

	slot := &library.unnamed
	if name != "" {
		slot = &library.named
	}
	if c := *slot; c != nil {
		if c.name != name {
			return nil, failf(op, StatusOutOfResources, "named context %q already exists", c.name)
		}
		if c.device != cfg.Device || c.compute != cfg.Compute {
			return nil, failf(op, StatusNotSupported, "context %q exists with device %d and compute preset %s", name, c.device, c.compute)
		}
		c.mu.Lock()
		c.refs++
		c.mu.Unlock()
		return c, nil
	}

	c, err := newContext(name, cfg)
	if err != nil {
		return nil, wrap(op, err)
	}
	*slot = c
	logger.Infof("created context %q (session %s, %d Hz, %.2fs reverb, compute %s)", name, c.session, cfg.SampleRate, cfg.ReverbLength, cfg.Compute)
	return c, nil
}

func newContext(name string, cfg Config) (*Context, error) {
	layout, err := layoutFor(cfg)
	if err != nil {
		return nil, err
	}
	bank, err := filter.NewBank(layout, filter.WithDomain(cfg.FilterDomain), filter.WithDecay(cfg.DecayFactor))
	if err != nil {
		return nil, err
	}

	session := uuid.New()
	reg := cfg.Registerer
	var gatherer prometheus.Gatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	// The session label keeps the series of re-created contexts apart.
	reg = prometheus.WrapRegistererWith(prometheus.Labels{"session": session.String()}, reg)

	label := name
	if label == "" {
		label = "default"
	}
	tr := cfg.Tracer
	if tr == nil {
		tr = tracer.New()
	}

	c := &Context{
		name:      name,
		session:   session,
		device:    cfg.Device,
		compute:   cfg.Compute,
		gatherer:  gatherer,
		metrics:   newMetrics(reg),
		queue:     queue.New(queue.WithName(label), queue.WithRegisterer(reg)),
		graph:     scene.NewGraph(),
		bank:      bank,
		tracer:    tr,
		cfg:       cfg,
		refs:      1,
		listener:  defaultListener(),
		materials: handle.NewTable[*materialState](cfg.TableCapacity),
		meshes:    handle.NewTable[*meshState](cfg.TableCapacity),
		sources:   handle.NewTable[*sourceState](cfg.TableCapacity),
	}
	c.order.Store(&[]*sourceState{})
	return c, nil
}

func defaultListener() tracer.Listener {
	return tracer.Listener{
		Forward: types.XYZ(0, 0, -1),
		Up:      types.XYZ(0, 1, 0),
	}
}

func layoutFor(cfg Config) (filter.Layout, error) {
	channels, err := OutputFormatChannels(cfg.OutputFormat)
	if err != nil {
		return filter.Layout{}, err
	}
	return filter.NewLayout(channels, cfg.SampleRate, cfg.ReverbLength), nil
}

// Destroy releases one reference. The last reference drains the command
// queue and frees every material, mesh and source of the context.
func (c *Context) Destroy() error {
	const op = "Context.Destroy"
	if err := requireInitialized(op); err != nil {
		return err
	}

	library.mu.Lock()
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		library.mu.Unlock()
		return fail(op, StatusInvalidValue, errDestroyed)
	}
	c.refs--
	if c.refs > 0 {
		c.mu.Unlock()
		library.mu.Unlock()
		return nil
	}
	c.closed.Store(true)
	if library.unnamed == c {
		library.unnamed = nil
	}
	if library.named == c {
		library.named = nil
	}
	c.mu.Unlock()
	library.mu.Unlock()

	err := c.queue.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources.Each(func(_ handle.Handle, st *sourceState) bool {
		st.kill()
		return true
	})
	c.sources.Clear()
	c.meshes.Clear()
	c.materials.Clear()
	c.order.Store(&[]*sourceState{})
	c.metrics.sources.Set(0)
	c.metrics.meshes.Set(0)

	logger.Infof("destroyed context %q (session %s)", c.name, c.session)
	return wrap(op, err)
}

var errDestroyed = errors.New("context destroyed")

// check validates the context for op. Callers hold c.mu.
func (c *Context) check(op string) error {
	if err := requireInitialized(op); err != nil {
		return err
	}
	if c == nil {
		return failf(op, StatusInvalidValue, "nil context")
	}
	if c.closed.Load() {
		return fail(op, StatusInvalidValue, errDestroyed)
	}
	return nil
}

func (c *Context) read(op string) (func(), error) {
	if c == nil {
		return nil, failf(op, StatusInvalidValue, "nil context")
	}
	c.mu.RLock()
	if err := c.check(op); err != nil {
		c.mu.RUnlock()
		return nil, err
	}
	return c.mu.RUnlock, nil
}

func (c *Context) write(op string) (func(), error) {
	if c == nil {
		return nil, failf(op, StatusInvalidValue, "nil context")
	}
	c.mu.Lock()
	if err := c.check(op); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	return c.mu.Unlock, nil
}

// Name returns the context name; "" is the default context.
func (c *Context) Name() string {
	return c.name
}

// Session returns the id generated when the context was created.
func (c *Context) Session() uuid.UUID {
	return c.session
}

// Metrics returns the gatherer holding the context metrics, or nil when
// the registerer given with WithRegisterer cannot gather.
func (c *Context) Metrics() prometheus.Gatherer {
	return c.gatherer
}

// DeviceNum returns the device the context was created for.
func (c *Context) DeviceNum() (int, error) {
	unlock, err := c.read("Context.DeviceNum")
	if err != nil {
		return 0, err
	}
	defer unlock()
	return c.device, nil
}

// ComputePreset returns the compute preset the context was created with.
func (c *Context) ComputePreset() (ComputePreset, error) {
	unlock, err := c.read("Context.ComputePreset")
	if err != nil {
		return 0, err
	}
	defer unlock()
	return c.compute, nil
}

// ReverbLength returns the filter length in seconds.
func (c *Context) ReverbLength() (float32, error) {
	unlock, err := c.read("Context.ReverbLength")
	if err != nil {
		return 0, err
	}
	defer unlock()
	return c.cfg.ReverbLength, nil
}

// SetReverbLength changes the filter length. Published filters are dropped.
func (c *Context) SetReverbLength(seconds float32) error {
	const op = "Context.SetReverbLength"
	unlock, err := c.write(op)
	if err != nil {
		return err
	}
	defer unlock()

	if !positive(seconds) {
		return failf(op, StatusInvalidValue, "reverb length %v must be positive", seconds)
	}
	if seconds == c.cfg.ReverbLength {
		return nil
	}
	next := c.cfg
	next.ReverbLength = seconds
	return c.relayoutLocked(op, next)
}

// SampleRate returns the sample rate in Hz.
func (c *Context) SampleRate() (int, error) {
	unlock, err := c.read("Context.SampleRate")
	if err != nil {
		return 0, err
	}
	defer unlock()
	return c.cfg.SampleRate, nil
}

// SetSampleRate changes the sample rate. Published filters are dropped.
func (c *Context) SetSampleRate(rate int) error {
	const op = "Context.SetSampleRate"
	unlock, err := c.write(op)
	if err != nil {
		return err
	}
	defer unlock()

	if !validSampleRate(rate) {
		return failf(op, StatusInvalidValue, "sample rate %d outside [%d, %d]", rate, MinSampleRate, MaxSampleRate)
	}
	if rate == c.cfg.SampleRate {
		return nil
	}
	next := c.cfg
	next.SampleRate = rate
	return c.relayoutLocked(op, next)
}

// OutputFormat returns the output channel layout.
func (c *Context) OutputFormat() (OutputFormat, error) {
	unlock, err := c.read("Context.OutputFormat")
	if err != nil {
		return 0, err
	}
	defer unlock()
	return c.cfg.OutputFormat, nil
}

// SetOutputFormat changes the output layout. Published filters are dropped.
func (c *Context) SetOutputFormat(f OutputFormat) error {
	const op = "Context.SetOutputFormat"
	unlock, err := c.write(op)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := OutputFormatChannels(f); err != nil {
		return failf(op, StatusInvalidValue, "unknown output format %d", int(f))
	}
	if f == c.cfg.OutputFormat {
		return nil
	}
	next := c.cfg
	next.OutputFormat = f
	return c.relayoutLocked(op, next)
}

// DecayFactor returns the smoothing weight of the newest trace.
func (c *Context) DecayFactor() (float32, error) {
	unlock, err := c.read("Context.DecayFactor")
	if err != nil {
		return 0, err
	}
	defer unlock()
	return c.cfg.DecayFactor, nil
}

// SetDecayFactor sets the smoothing weight, in (0,1], of the newest trace.
func (c *Context) SetDecayFactor(d float32) error {
	const op = "Context.SetDecayFactor"
	unlock, err := c.write(op)
	if err != nil {
		return err
	}
	defer unlock()

	if !validDecay(d) {
		return failf(op, StatusInvalidValue, "decay factor %v outside (0, 1]", d)
	}
	if err := c.bank.SetDecay(d); err != nil {
		return wrap(op, err)
	}
	c.cfg.DecayFactor = d
	return nil
}

// UnitLength returns the number of scene units per meter.
func (c *Context) UnitLength() (float32, error) {
	unlock, err := c.read("Context.UnitLength")
	if err != nil {
		return 0, err
	}
	defer unlock()
	return c.cfg.UnitLength, nil
}

// SetUnitLength sets the number of scene units per meter. Published
// filters are dropped.
func (c *Context) SetUnitLength(ratio float32) error {
	const op = "Context.SetUnitLength"
	unlock, err := c.write(op)
	if err != nil {
		return err
	}
	defer unlock()

	if !positive(ratio) {
		return failf(op, StatusInvalidValue, "unit length %v must be positive", ratio)
	}
	if ratio == c.cfg.UnitLength {
		return nil
	}
	c.cfg.UnitLength = ratio
	c.bank.Invalidate()
	return nil
}

// relayoutLocked installs cfg and rebuilds every filter and renderer for
// the resulting layout.
func (c *Context) relayoutLocked(op string, cfg Config) error {
	layout, err := layoutFor(cfg)
	if err != nil {
		return wrap(op, err)
	}
	if err := c.bank.SetLayout(layout); err != nil {
		return wrap(op, err)
	}
	c.cfg = cfg
	for _, st := range *c.order.Load() {
		st.relayout(layout, cfg.FilterDomain)
	}
	logger.Infof("context %q layout: %d channels, %d Hz, %d taps", c.name, layout.Channels, layout.SampleRate, layout.Length)
	return nil
}

// ListenerLocation returns the listener position.
func (c *Context) ListenerLocation() (types.Vec3, error) {
	unlock, err := c.read("Context.ListenerLocation")
	if err != nil {
		return types.Vec3{}, err
	}
	defer unlock()
	return c.listener.Position, nil
}

// SetListenerLocation moves the listener. It applies from the next trace.
func (c *Context) SetListenerLocation(p types.Vec3) error {
	const op = "Context.SetListenerLocation"
	unlock, err := c.write(op)
	if err != nil {
		return err
	}
	defer unlock()

	if !p.IsFinite() {
		return failf(op, StatusInvalidValue, "location %v is not finite", p)
	}
	c.listener.Position = p
	return nil
}

// ListenerOrientation returns the listener forward and up axes.
func (c *Context) ListenerOrientation() (forward, up types.Vec3, err error) {
	unlock, err := c.read("Context.ListenerOrientation")
	if err != nil {
		return types.Vec3{}, types.Vec3{}, err
	}
	defer unlock()
	return c.listener.Forward, c.listener.Up, nil
}

// SetListenerOrientation sets the listener axes. They must be non-zero and
// orthogonal; both are stored normalized.
func (c *Context) SetListenerOrientation(forward, up types.Vec3) error {
	const op = "Context.SetListenerOrientation"
	unlock, err := c.write(op)
	if err != nil {
		return err
	}
	defer unlock()

	if !forward.IsFinite() || !up.IsFinite() || forward.IsZero() || up.IsZero() {
		return failf(op, StatusInvalidValue, "orientation %v, %v must be finite and non-zero", forward, up)
	}
	f, u := forward.Normalize(), up.Normalize()
	if d := f.Dot(u); d > orthogonalTolerance || d < -orthogonalTolerance {
		return failf(op, StatusInvalidValue, "forward and up are not orthogonal (dot %v)", d)
	}
	c.listener.Forward, c.listener.Up = f, u
	return nil
}
