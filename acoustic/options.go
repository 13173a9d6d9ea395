package acoustic

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwbudde/algo-acoustic/filter"
	"github.com/cwbudde/algo-acoustic/internal/handle"
	"github.com/cwbudde/algo-acoustic/tracer"
)

const (
	DefaultSampleRate   = 48000
	MinSampleRate       = 22050
	MaxSampleRate       = 192000
	DefaultReverbLength = 1.0
	DefaultUnitLength   = 1.0
	DefaultDecayFactor  = 0.9

	DefaultReflection   = 0.9
	DefaultTransmission = 0.0
	DefaultPathGain     = 1.0
)

// Config holds the parameters of a context.
type Config struct {
	Device        int
	Compute       ComputePreset
	SampleRate    int
	ReverbLength  float32
	OutputFormat  OutputFormat
	DecayFactor   float32
	UnitLength    float32
	FilterDomain  filter.Domain
	Tracer        tracer.Tracer
	Registerer    prometheus.Registerer
	TableCapacity int
}

// DefaultConfig returns the configuration used when no option is given.
func DefaultConfig() Config {
	return Config{
		Compute:       ComputeHigh,
		SampleRate:    DefaultSampleRate,
		ReverbLength:  DefaultReverbLength,
		OutputFormat:  OutputFormatStereoHeadphones,
		DecayFactor:   DefaultDecayFactor,
		UnitLength:    DefaultUnitLength,
		FilterDomain:  filter.FrequencyDomain,
		TableCapacity: handle.DefaultCapacity,
	}
}

// Option mutates a Config. Out-of-range values are ignored.
type Option func(*Config)

// WithDevice records the compute device number.
func WithDevice(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.Device = n
		}
	}
}

// WithComputePreset scales the trace effort of the context.
func WithComputePreset(p ComputePreset) Option {
	return func(c *Config) {
		if p.valid() {
			c.Compute = p
		}
	}
}

// WithSampleRate sets the initial sample rate.
func WithSampleRate(rate int) Option {
	return func(c *Config) {
		if validSampleRate(rate) {
			c.SampleRate = rate
		}
	}
}

// WithReverbLength sets the initial filter length in seconds.
func WithReverbLength(seconds float32) Option {
	return func(c *Config) {
		if positive(seconds) {
			c.ReverbLength = seconds
		}
	}
}

// WithOutputFormat sets the output channel layout.
func WithOutputFormat(f OutputFormat) Option {
	return func(c *Config) {
		if f >= 0 && f < numOutputFormats {
			c.OutputFormat = f
		}
	}
}

// WithDecayFactor sets the smoothing weight of the newest trace.
func WithDecayFactor(d float32) Option {
	return func(c *Config) {
		if validDecay(d) {
			c.DecayFactor = d
		}
	}
}

// WithUnitLength sets the number of scene units per meter.
func WithUnitLength(ratio float32) Option {
	return func(c *Config) {
		if positive(ratio) {
			c.UnitLength = ratio
		}
	}
}

// WithFilterDomain selects how indirect filters are applied.
func WithFilterDomain(d filter.Domain) Option {
	return func(c *Config) {
		if d == filter.FrequencyDomain || d == filter.TimeDomain {
			c.FilterDomain = d
		}
	}
}

// WithTracer replaces the default ray tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(c *Config) {
		if t != nil {
			c.Tracer = t
		}
	}
}

// WithRegisterer registers the context metrics with reg instead of a
// private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Config) {
		if reg != nil {
			c.Registerer = reg
		}
	}
}

// WithCapacity limits each of the material, mesh and source tables.
func WithCapacity(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.TableCapacity = n
		}
	}
}

func validSampleRate(rate int) bool {
	return rate >= MinSampleRate && rate <= MaxSampleRate
}

func validDecay(d float32) bool {
	return d > 0 && d <= 1
}

func positive(v float32) bool {
	return v > 0 && !math.IsInf(float64(v), 1)
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
