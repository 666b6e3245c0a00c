//go:build !nogpu

package native

import "errors"

// Package errors for the native backend.
var (
	// ErrNoGPU is returned when no GPU backend or adapter is available.
	ErrNoGPU = errors.New("native: no GPU adapter available")

	// ErrClosed is returned when the device is used after Close.
	ErrClosed = errors.New("native: device closed")

	// ErrForeignHandle is returned for handles created by another device.
	ErrForeignHandle = errors.New("native: handle belongs to another device")

	// ErrViewRole is returned when a view kind does not fit the texture role.
	ErrViewRole = errors.New("native: view kind not allowed for texture role")

	// ErrNotStaging is returned when mapping a texture that is not CPU readable.
	ErrNotStaging = errors.New("native: texture is not CPU readable")

	// ErrAlreadyMapped is returned when mapping a mapped staging texture.
	ErrAlreadyMapped = errors.New("native: texture already mapped")

	// ErrNotMapped is returned when unmapping a texture that is not mapped.
	ErrNotMapped = errors.New("native: texture not mapped")

	// ErrIncompleteState is returned when drawing without a complete pipeline.
	ErrIncompleteState = errors.New("native: draw with incomplete pipeline state")

	// ErrBindHazard is returned when a texture is bound for reading and writing.
	ErrBindHazard = errors.New("native: texture bound for reading and writing")

	// ErrFilterable is returned for filtering samplers: 32-bit float
	// textures are not filterable.
	ErrFilterable = errors.New("native: float32 textures require nearest filtering")

	// ErrEmptyShader is returned when a program has no WGSL source.
	ErrEmptyShader = errors.New("native: program has no WGSL source")
)
