package gpgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// InputFormat is the per-texel channel layout of a compute texture.
// Every channel is a 32-bit IEEE-754 float.
type InputFormat uint8

const (
	// FormatUndefined is the zero value and is never a valid format.
	FormatUndefined InputFormat = iota

	// SingleFloat holds one float per texel (R32Float).
	SingleFloat

	// FloatPair holds two floats per texel (RG32Float).
	FloatPair

	// FloatQuad holds four floats per texel (RGBA32Float).
	FloatQuad
)

// FormatForChannels returns the format storing the given number of
// channels per texel. Only 1, 2 and 4 are representable.
func FormatForChannels(channels int) (InputFormat, bool) {
	switch channels {
	case 1:
		return SingleFloat, true
	case 2:
		return FloatPair, true
	case 4:
		return FloatQuad, true
	default:
		return FormatUndefined, false
	}
}

// String returns a human-readable name for the format.
func (f InputFormat) String() string {
	switch f {
	case SingleFloat:
		return "R32Float"
	case FloatPair:
		return "RG32Float"
	case FloatQuad:
		return "RGBA32Float"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// Valid reports whether f is one of the defined formats.
func (f InputFormat) Valid() bool {
	return f >= SingleFloat && f <= FloatQuad
}

// Channels returns the number of float channels per texel.
func (f InputFormat) Channels() int {
	switch f {
	case SingleFloat:
		return 1
	case FloatPair:
		return 2
	case FloatQuad:
		return 4
	default:
		return 0
	}
}

// BytesPerTexel returns the size of one texel in bytes.
func (f InputFormat) BytesPerTexel() int {
	return f.Channels() * 4
}

// TextureFormat converts to the gputypes texture format.
func (f InputFormat) TextureFormat() gputypes.TextureFormat {
	switch f {
	case SingleFloat:
		return gputypes.TextureFormatR32Float
	case FloatPair:
		return gputypes.TextureFormatRG32Float
	case FloatQuad:
		return gputypes.TextureFormatRGBA32Float
	default:
		return gputypes.TextureFormatUndefined
	}
}

// ResourceRole is the part a texture plays in a dispatch cycle.
type ResourceRole uint8

const (
	// ImmutableInput is a GPU read-only texture initialized from host data.
	ImmutableInput ResourceRole = iota

	// RenderTarget is the writable output of the kernel pass.
	RenderTarget

	// StagingReadback is a CPU-readable copy destination. It is never bound
	// to the pipeline.
	StagingReadback
)

// String returns the role name.
func (r ResourceRole) String() string {
	switch r {
	case ImmutableInput:
		return "input"
	case RenderTarget:
		return "render-target"
	case StagingReadback:
		return "staging"
	default:
		return fmt.Sprintf("ResourceRole(%d)", r)
	}
}

// Access is the CPU access granted to a texture.
type Access uint8

const (
	AccessNone Access = iota
	AccessRead
	AccessWrite
)

// String returns the access name.
func (a Access) String() string {
	switch a {
	case AccessNone:
		return "none"
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	default:
		return fmt.Sprintf("Access(%d)", a)
	}
}

// canonicalAccess is the only CPU access each role supports.
func (r ResourceRole) canonicalAccess() Access {
	if r == StagingReadback {
		return AccessRead
	}
	return AccessNone
}

// ViewKind distinguishes read bindings from write bindings.
type ViewKind uint8

const (
	// ViewShaderResource binds a texture for sampling by the kernel.
	ViewShaderResource ViewKind = iota

	// ViewRenderTarget binds a texture as the output of the draw.
	ViewRenderTarget
)

func (k ViewKind) String() string {
	if k == ViewRenderTarget {
		return "render-target-view"
	}
	return "shader-resource-view"
}
