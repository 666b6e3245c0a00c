package gpgpu

import (
	"errors"
	"fmt"
)

// Sentinel errors. The typed errors below match them with errors.Is.
var (
	// ErrInvalidShape is returned when no texture shape satisfies the
	// layout constraints.
	ErrInvalidShape = errors.New("gpgpu: invalid shape")

	// ErrBufferOverflow is returned when a packed or mapped byte region does
	// not hold exactly the expected number of elements.
	ErrBufferOverflow = errors.New("gpgpu: buffer length mismatch")

	// ErrDeviceResource is returned when the device rejects a resource.
	ErrDeviceResource = errors.New("gpgpu: device resource rejected")

	// ErrReadback is returned when the render target cannot be copied or
	// mapped for CPU access.
	ErrReadback = errors.New("gpgpu: readback failed")

	// ErrClosed is returned when a released pipeline is used.
	ErrClosed = errors.New("gpgpu: pipeline closed")
)

// InvalidShapeError reports layout constraints that cannot be satisfied.
// It is not retried; the caller must pick another shape or alignment.
type InvalidShapeError struct {
	Elements  int
	Channels  int
	Width     int // requested width, 0 when the planner chooses
	Alignment int
	Reason    string
}

func (e *InvalidShapeError) Error() string {
	return fmt.Sprintf("gpgpu: invalid shape (elements=%d channels=%d width=%d alignment=%d): %s",
		e.Elements, e.Channels, e.Width, e.Alignment, e.Reason)
}

// Is reports whether target is ErrInvalidShape.
func (e *InvalidShapeError) Is(target error) bool { return target == ErrInvalidShape }

// BufferOverflowError reports a length mismatch between a host sequence
// and the texture it is packed into or decoded from.
type BufferOverflowError struct {
	Op   string // "pack" or "decode"
	Want int
	Got  int
	Unit string // "elements", "channels" or "bytes"
}

func (e *BufferOverflowError) Error() string {
	return fmt.Sprintf("gpgpu: %s: buffer length mismatch: want %d %s, got %d",
		e.Op, e.Want, e.Unit, e.Got)
}

// Is reports whether target is ErrBufferOverflow.
func (e *BufferOverflowError) Is(target error) bool { return target == ErrBufferOverflow }

// DeviceResourceError reports a resource the device could not create.
// Descriptor is the zero value for resources that are not textures.
type DeviceResourceError struct {
	Op         string
	Descriptor TextureDescriptor
	Err        error
}

func (e *DeviceResourceError) Error() string {
	if e.Descriptor == (TextureDescriptor{}) {
		return fmt.Sprintf("gpgpu: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gpgpu: %s %s: %v", e.Op, e.Descriptor, e.Err)
}

// Is reports whether target is ErrDeviceResource.
func (e *DeviceResourceError) Is(target error) bool { return target == ErrDeviceResource }

// Unwrap returns the device error.
func (e *DeviceResourceError) Unwrap() error { return e.Err }

// ReadbackError reports a failed copy, map or unmap of the staging resource.
// It is fatal: the device and its resources must be re-initialized.
type ReadbackError struct {
	Op  string // "copy", "map" or "unmap"
	Err error
}

func (e *ReadbackError) Error() string {
	return fmt.Sprintf("gpgpu: readback %s: %v", e.Op, e.Err)
}

// Is reports whether target is ErrReadback.
func (e *ReadbackError) Is(target error) bool { return target == ErrReadback }

// Unwrap returns the device error.
func (e *ReadbackError) Unwrap() error { return e.Err }
