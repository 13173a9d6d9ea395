// Package tracer computes direct and indirect acoustic paths between
// sources and the listener over a committed scene snapshot.
//
// Tracing is deterministic: the same snapshot, listener and source states
// always produce the same paths in the same order, independent of how many
// workers run.
package tracer

import (
	"errors"

	"github.com/cwbudde/algo-acoustic/scene"
	"github.com/cwbudde/algo-acoustic/types"
)

// SpeedOfSound in meters per second.
const SpeedOfSound = 343.0

var (
	ErrNoSnapshot     = errors.New("tracer: no committed snapshot")
	ErrInvalidUnits   = errors.New("tracer: unit length must be positive")
	ErrInvalidHorizon = errors.New("tracer: max delay must be positive")
)

// Budget bounds the work spent on the indirect paths of one source.
type Budget struct {
	Rays     int
	MaxOrder int
}

// Listener is the receiver pose.
type Listener struct {
	Position types.Vec3
	Forward  types.Vec3
	Up       types.Vec3
}

// Right returns the unit vector pointing to the listener's right ear.
func (l Listener) Right() types.Vec3 {
	return l.Forward.Cross(l.Up).Normalize()
}

// Source is the traced state of one emitter, captured at submission time.
type Source struct {
	ID       uint64
	Position types.Vec3
	Budget   Budget
}

// Input is everything a trace reads.
type Input struct {
	Snapshot *scene.Snapshot
	Listener Listener
	Sources  []Source
	// UnitLength is the number of scene units per meter.
	UnitLength float32
	// MaxDelay is the longest path delay, in seconds, worth reporting.
	MaxDelay float64
}

// Path is one arrival at the listener.
type Path struct {
	// Delay is the propagation time in seconds.
	Delay float64
	// Energy is the intensity relative to a free-field source at 1 m.
	Energy float64
	// Direction points from the listener toward where the sound comes from.
	Direction types.Vec3
	// Order counts surface interactions (reflections and transmissions).
	Order int
}

// Result holds the paths of one source.
type Result struct {
	SourceID uint64
	// Distance from source to listener in meters.
	Distance float64
	// DistanceAttenuation is 1/max(distance, 1 m).
	DistanceAttenuation float32
	// Occlusion is the product of transmission coefficients crossed by the
	// direct path; 1 when the path is clear.
	Occlusion float32
	Direct    Path
	Indirect  []Path
}

// DirectGain is the amplitude of the direct path.
func (r *Result) DirectGain() float64 {
	return float64(r.DistanceAttenuation) * float64(r.Occlusion)
}

// Output is the result of one trace.
type Output struct {
	SnapshotVersion uint64
	Listener        Listener
	Results         []Result
}

// Tracer turns an Input into paths. Implementations must be deterministic
// and safe to call from one goroutine at a time.
type Tracer interface {
	Trace(in *Input) (*Output, error)
}

func validate(in *Input) error {
	if in == nil || in.Snapshot == nil {
		return ErrNoSnapshot
	}
	if in.UnitLength <= 0 {
		return ErrInvalidUnits
	}
	if in.MaxDelay <= 0 {
		return ErrInvalidHorizon
	}
	return nil
}
