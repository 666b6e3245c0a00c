package gpgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Layout is a planned texture shape for a logical array.
type Layout struct {
	Width  int
	Height int
	Format InputFormat
}

// Elements returns the number of texels (tuples) in the layout.
func (l Layout) Elements() int { return l.Width * l.Height }

// RowPitch returns the tight byte stride of one texture row.
func (l Layout) RowPitch() int { return l.Width * l.Format.BytesPerTexel() }

// Size returns the tight byte size of the whole texture.
func (l Layout) Size() int { return l.RowPitch() * l.Height }

// Descriptor returns a texture descriptor of this shape for role,
// with the CPU access that role requires.
func (l Layout) Descriptor(role ResourceRole) TextureDescriptor {
	return TextureDescriptor{
		Width:  l.Width,
		Height: l.Height,
		Format: l.Format,
		Role:   role,
		Access: role.canonicalAccess(),
	}
}

func (l Layout) String() string {
	return fmt.Sprintf("%dx%d %s", l.Width, l.Height, l.Format)
}

// TextureDescriptor describes one texture of a dispatch cycle.
type TextureDescriptor struct {
	Label  string
	Width  int
	Height int
	Format InputFormat
	Role   ResourceRole
	Access Access
}

// Layout returns the shape part of the descriptor.
func (d TextureDescriptor) Layout() Layout {
	return Layout{Width: d.Width, Height: d.Height, Format: d.Format}
}

func (d TextureDescriptor) String() string {
	return fmt.Sprintf("%s %dx%d %s (access %s)", d.Role, d.Width, d.Height, d.Format, d.Access)
}

// Descriptor validation errors, wrapped by DeviceResourceError.
var (
	errZeroSize        = errors.New("width and height must be non-zero")
	errTooLarge        = errors.New("shape exceeds device texture limits")
	errBadFormat       = errors.New("unsupported texel format")
	errRoleAccess      = errors.New("CPU access not allowed for role")
	errUnsupportedRole = errors.New("unsupported resource role")
)

// Validate checks the descriptor against device capabilities.
func (d TextureDescriptor) Validate(caps Caps) error {
	if d.Width <= 0 || d.Height <= 0 {
		return errZeroSize
	}
	if maxDim := caps.MaxTextureDimension; maxDim > 0 && (d.Width > maxDim || d.Height > maxDim) {
		return fmt.Errorf("%w: %dx%d > %d", errTooLarge, d.Width, d.Height, maxDim)
	}
	if !d.Format.Valid() {
		return errBadFormat
	}
	if d.Role > StagingReadback {
		return errUnsupportedRole
	}
	if d.Access != d.Role.canonicalAccess() {
		return fmt.Errorf("%w: %s has %s", errRoleAccess, d.Role, d.Access)
	}
	return nil
}

// SamplerDescriptor configures how the kernel reads its input.
type SamplerDescriptor struct {
	Label         string
	AddressMode   gputypes.AddressMode
	Filter        gputypes.FilterMode
	LodMinClamp   float32
	LodMaxClamp   float32
	MaxAnisotropy uint16
}

// PointSampler returns nearest-neighbour sampling with wrapping addressing,
// so textures are read as discrete data rather than as images.
func PointSampler() SamplerDescriptor {
	return SamplerDescriptor{
		Label:         "gpgpu_point_sampler",
		AddressMode:   gputypes.AddressModeRepeat,
		Filter:        gputypes.FilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   16,
		MaxAnisotropy: 16,
	}
}

// Viewport is the rectangle of the render target the draw covers.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// FullViewport returns a viewport covering a width x height target.
func FullViewport(width, height int) Viewport {
	return Viewport{Width: float32(width), Height: float32(height), MaxDepth: 1}
}

// Caps reports device capabilities the core depends on.
type Caps struct {
	// Adapter identifies the physical adapter behind the device.
	Adapter gpucontext.AdapterInfo

	// MaxTextureDimension is the largest allowed texture width or height.
	// Zero means unlimited.
	MaxTextureDimension int

	// RowPitchAlignment is the byte alignment of staging rows. Zero or one
	// means rows are tightly packed.
	RowPitchAlignment int

	// HostPrograms reports that the device executes the Go functions of a
	// ShaderSource rather than its WGSL.
	HostPrograms bool
}

// Alignment returns the width granularity (in texels) that keeps staging
// rows of format f tightly packed on this device.
func (c Caps) Alignment(f InputFormat) int {
	return AlignmentFromPitch(c.RowPitchAlignment, f)
}
