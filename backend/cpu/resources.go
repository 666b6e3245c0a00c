package cpu

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpgpu"
)

// texture is a CPU texture. Input and render target textures store texels
// as float32 with interleaved channels; staging textures store the pitched
// little-endian bytes a GPU copy would produce.
type texture struct {
	desc gpgpu.TextureDescriptor

	texels   []float32
	writes   []uint32
	bytes    []byte
	rowPitch int

	mapped    bool
	destroyed bool
}

func (t *texture) Descriptor() gpgpu.TextureDescriptor { return t.desc }

func (t *texture) channels() int { return t.desc.Format.Channels() }

type view struct {
	tex  *texture
	kind gpgpu.ViewKind
}

func (v *view) Texture() gpgpu.Texture { return v.tex }
func (v *view) Kind() gpgpu.ViewKind   { return v.kind }

type buffer struct {
	label string
	data  []byte
}

func (b *buffer) Size() int { return len(b.data) }

type sampler struct {
	desc gpgpu.SamplerDescriptor
}

func (s *sampler) SamplerDescriptor() gpgpu.SamplerDescriptor { return s.desc }

type program struct {
	label    string
	stage    gputypes.ShaderStage
	vertex   gpgpu.VertexFunc
	fragment gpgpu.FragmentFunc
}

func (p *program) Stage() gputypes.ShaderStage { return p.stage }
func (p *program) Label() string               { return p.label }
