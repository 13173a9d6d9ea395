package acoustic

import (
	"sync"
	"sync/atomic"
)

// APIVersion encodes major*1000 + minor.
const APIVersion = 2000

// MaxNameLength is the longest accepted context name in bytes.
const MaxNameLength = 16

// OutputFormat selects the output channel layout.
type OutputFormat int

const (
	// OutputFormatStereoHeadphones is a two-channel format for headphones.
	OutputFormatStereoHeadphones OutputFormat = iota

	numOutputFormats
)

func (f OutputFormat) String() string {
	switch f {
	case OutputFormatStereoHeadphones:
		return "stereo-headphones"
	default:
		return "unknown"
	}
}

// OutputFormatChannels returns the channel count of format.
func OutputFormatChannels(format OutputFormat) (int, error) {
	switch format {
	case OutputFormatStereoHeadphones:
		return 2, nil
	default:
		return 0, failf("OutputFormatChannels", StatusInvalidValue, "unknown output format %d", int(format))
	}
}

var library struct {
	initialized atomic.Bool

	mu      sync.Mutex
	flags   int
	unnamed *Context
	named   *Context
}

// Version returns the API version. Split it with VersionParts.
func Version() int {
	return APIVersion
}

// VersionParts returns the major and minor components of v.
func VersionParts(v int) (major, minor int) {
	return v / 1000, v % 1000
}

// Initialize prepares the library. flags must be zero. Initializing an
// initialized library succeeds without effect.
func Initialize(flags int) error {
	if flags != 0 {
		return failf("Initialize", StatusInvalidValue, "flags %#x not supported", flags)
	}

	library.mu.Lock()
	defer library.mu.Unlock()

	library.flags = flags
	library.initialized.Store(true)
	return nil
}

// Finalize releases the library. Contexts must be destroyed first.
func Finalize() error {
	library.mu.Lock()
	defer library.mu.Unlock()

	if !library.initialized.Load() {
		return fail("Finalize", StatusNotInitialized, nil)
	}
	if library.unnamed != nil || library.named != nil {
		return failf("Finalize", StatusNotReady, "contexts are still alive")
	}
	library.initialized.Store(false)
	return nil
}

// InitializeFlags returns the flags passed to Initialize.
func InitializeFlags() (int, error) {
	library.mu.Lock()
	defer library.mu.Unlock()

	if !library.initialized.Load() {
		return 0, fail("InitializeFlags", StatusNotInitialized, nil)
	}
	return library.flags, nil
}

func requireInitialized(op string) error {
	if !library.initialized.Load() {
		return fail(op, StatusNotInitialized, nil)
	}
	return nil
}
