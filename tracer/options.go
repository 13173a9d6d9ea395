package tracer

import "runtime"

// Config holds the RayTracer parameters.
type Config struct {
	// ReceiverRadius of the listener sphere in meters.
	ReceiverRadius float32
	// EnergyFloor terminates branches whose accumulated surface weight
	// drops below it.
	EnergyFloor float64
	// Workers bounds the number of sources traced concurrently.
	Workers int
}

// DefaultConfig returns the default tracer parameters.
func DefaultConfig() Config {
	return Config{
		ReceiverRadius: 0.5,
		EnergyFloor:    1e-4,
		Workers:        runtime.GOMAXPROCS(0),
	}
}

// Option mutates a Config.
type Option func(*Config)

// WithReceiverRadius sets the listener sphere radius in meters.
func WithReceiverRadius(r float32) Option {
	return func(c *Config) {
		if r > 0 {
			c.ReceiverRadius = r
		}
	}
}

// WithEnergyFloor sets the branch termination threshold.
func WithEnergyFloor(e float64) Option {
	return func(c *Config) {
		if e > 0 {
			c.EnergyFloor = e
		}
	}
}

// WithWorkers bounds tracing concurrency.
func WithWorkers(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Workers = n
		}
	}
}
