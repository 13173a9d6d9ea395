package acoustic

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-acoustic/dsp/conv"
	"github.com/cwbudde/algo-acoustic/filter"
	"github.com/cwbudde/algo-acoustic/internal/handle"
	"github.com/cwbudde/algo-acoustic/queue"
	"github.com/cwbudde/algo-acoustic/render"
	"github.com/cwbudde/algo-acoustic/scene"
	"github.com/cwbudde/algo-acoustic/tracer"
)

// Status is the closed set of operation outcomes.
type Status int

const (
	StatusSuccess Status = iota
	StatusNotInitialized
	StatusNotSupported
	StatusNotImplemented
	StatusInvalidValue
	StatusOutOfResources
	StatusNotReady
	StatusError

	numStatusCodes
)

var statusNames = [numStatusCodes]string{
	"Success",
	"NotInitialized",
	"NotSupported",
	"NotImplemented",
	"InvalidValue",
	"OutOfResources",
	"NotReady",
	"Error",
}

var statusDescriptions = [numStatusCodes]string{
	"the call returned with no errors",
	"the library has not been initialized or initialization failed",
	"the operation does not match the state of one or more objects",
	"the operation is not implemented by this build",
	"a parameter is not an acceptable value or is out of range",
	"an allocation or another required resource could not be obtained",
	"the operation is not available now because of incomplete setup or an active asynchronous operation",
	"an unspecified error occurred",
}

func (s Status) valid() bool {
	return s >= 0 && s < numStatusCodes
}

func (s Status) String() string {
	if !s.valid() {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// Description returns a human-readable explanation of s.
func (s Status) Description() string {
	if !s.valid() {
		return "unknown status"
	}
	return statusDescriptions[s]
}

// StatusString returns the short name of s.
func StatusString(s Status) (string, error) {
	if !s.valid() {
		return "", fail("StatusString", StatusInvalidValue, fmt.Errorf("unknown status %d", int(s)))
	}
	return statusNames[s], nil
}

// StatusDescription returns the description of s.
func StatusDescription(s Status) (string, error) {
	if !s.valid() {
		return "", fail("StatusDescription", StatusInvalidValue, fmt.Errorf("unknown status %d", int(s)))
	}
	return statusDescriptions[s], nil
}

// Error is the error type returned by every operation of the package.
type Error struct {
	Op     string
	Status Status
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return "acoustic: " + e.Status.Description()
	case e.Err == nil:
		return fmt.Sprintf("acoustic: %s: %s", e.Op, e.Status)
	default:
		return fmt.Sprintf("acoustic: %s: %s: %v", e.Op, e.Status, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the bare status errors below by status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	return t.Status == e.Status
}

var (
	ErrNotInitialized = &Error{Status: StatusNotInitialized}
	ErrNotSupported   = &Error{Status: StatusNotSupported}
	ErrNotImplemented = &Error{Status: StatusNotImplemented}
	ErrInvalidValue   = &Error{Status: StatusInvalidValue}
	ErrOutOfResources = &Error{Status: StatusOutOfResources}
	ErrNotReady       = &Error{Status: StatusNotReady}
	ErrInternal       = &Error{Status: StatusError}
)

// StatusOf maps err to its status. nil is StatusSuccess; errors from
// outside the package are StatusError.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return StatusError
}

func fail(op string, status Status, err error) error {
	return &Error{Op: op, Status: status, Err: err}
}

func failf(op string, status Status, format string, args ...any) error {
	return &Error{Op: op, Status: status, Err: fmt.Errorf(format, args...)}
}

// wrap classifies an error from an internal package.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Op: op, Status: classify(err), Err: err}
}

var invalidValueErrors = []error{
	handle.ErrInvalid,
	scene.ErrUnknownMesh,
	scene.ErrDuplicateMesh,
	scene.ErrEmptyGeometry,
	scene.ErrIndexCount,
	scene.ErrIndexRange,
	scene.ErrInvalidVertex,
	scene.ErrInvalidMaterial,
	filter.ErrInvalidLayout,
	filter.ErrShortBuffer,
	filter.ErrUnknownSource,
	render.ErrInvalidBlockSize,
	render.ErrShortOutput,
	render.ErrChannelMismatch,
	conv.ErrInvalidBlockSize,
	conv.ErrLengthMismatch,
	tracer.ErrInvalidUnits,
	tracer.ErrInvalidHorizon,
	queue.ErrNilEvent,
	queue.ErrClosed,
}

func classify(err error) Status {
	switch {
	case errors.Is(err, handle.ErrExhausted):
		return StatusOutOfResources
	case errors.Is(err, filter.ErrStaleEpoch), errors.Is(err, tracer.ErrNoSnapshot):
		return StatusNotReady
	}
	for _, target := range invalidValueErrors {
		if errors.Is(err, target) {
			return StatusInvalidValue
		}
	}
	return StatusError
}
