//go:build !nogpu

package native

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpgpu"
)

// texture wraps a HAL texture, or for staging textures the host-visible
// copy buffer standing in for one.
type texture struct {
	desc gpgpu.TextureDescriptor

	tex hal.Texture

	buf      hal.Buffer
	rowPitch int
	mapped   bool
}

func (t *texture) Descriptor() gpgpu.TextureDescriptor { return t.desc }

type view struct {
	tex  *texture
	hv   hal.TextureView
	kind gpgpu.ViewKind
}

func (v *view) Texture() gpgpu.Texture { return v.tex }
func (v *view) Kind() gpgpu.ViewKind   { return v.kind }

type buffer struct {
	buf  hal.Buffer
	size int
}

func (b *buffer) Size() int { return b.size }

type sampler struct {
	s    hal.Sampler
	desc gpgpu.SamplerDescriptor
}

func (s *sampler) SamplerDescriptor() gpgpu.SamplerDescriptor { return s.desc }

type program struct {
	module hal.ShaderModule
	label  string
	stage  gputypes.ShaderStage
	entry  string
}

func (p *program) Stage() gputypes.ShaderStage { return p.stage }
func (p *program) Label() string               { return p.label }

// textureUsage returns the HAL usage flags a role needs.
func textureUsage(role gpgpu.ResourceRole) gputypes.TextureUsage {
	switch role {
	case gpgpu.ImmutableInput:
		return gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst
	case gpgpu.RenderTarget:
		return gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc |
			gputypes.TextureUsageTextureBinding
	default:
		return gputypes.TextureUsageNone
	}
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
