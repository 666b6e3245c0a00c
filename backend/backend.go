package backend

import (
	"errors"

	"github.com/gogpu/gputypes"
)

// Common backend errors.
var (
	// ErrNoBackend is returned when no registered backend is available.
	ErrNoBackend = errors.New("backend: no backend available")
)

// Options configures device creation. Backends ignore fields that do not
// apply to them.
type Options struct {
	// Variant selects the HAL backend for "native". BackendEmpty picks the
	// first registered platform backend.
	Variant gputypes.Backend

	// PreferDiscrete asks "native" for a discrete adapter when several
	// are exposed.
	PreferDiscrete bool

	// RowPitchAlignment pads staging rows of the "cpu" backend to this many
	// bytes, emulating a GPU copy pitch. Zero means tight rows.
	RowPitchAlignment int

	// MaxTextureDimension overrides the "cpu" backend texture limit.
	MaxTextureDimension int
}

// NotFoundError indicates a named backend is not registered.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return "backend: not found: " + e.Name
}

// UnavailableError indicates a backend exists but is not available.
type UnavailableError struct {
	Name string
}

func (e *UnavailableError) Error() string {
	return "backend: unavailable: " + e.Name
}
