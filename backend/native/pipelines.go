//go:build !nogpu

package native

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpgpu"
)

// pipelineKey identifies a render pipeline: the two programs, the target
// format and the vertex input the draw uses.
type pipelineKey struct {
	vs, fs   *program
	format   gputypes.TextureFormat
	topology gputypes.PrimitiveTopology
	layout   string
}

// pipelineCache creates one render pipeline per key and shares the kernel
// bind group layout between them: texture at binding 0, sampler at
// binding 1, both visible to the fragment stage.
type pipelineCache struct {
	device hal.Device

	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipelines  map[pipelineKey]hal.RenderPipeline

	hits   atomic.Uint64
	misses atomic.Uint64
}

func newPipelineCache(device hal.Device) *pipelineCache {
	return &pipelineCache{
		device:    device,
		pipelines: make(map[pipelineKey]hal.RenderPipeline),
	}
}

// layouts creates the shared bind group and pipeline layouts on first use.
func (c *pipelineCache) layouts() (hal.BindGroupLayout, error) {
	if c.bindLayout != nil {
		return c.bindLayout, nil
	}
	bindLayout, err := c.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "gpgpu_kernel_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeNonFiltering},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create kernel bind group layout: %w", err)
	}
	pipeLayout, err := c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "gpgpu_kernel_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		c.device.DestroyBindGroupLayout(bindLayout)
		return nil, fmt.Errorf("create kernel pipeline layout: %w", err)
	}
	c.bindLayout, c.pipeLayout = bindLayout, pipeLayout
	return bindLayout, nil
}

// get returns the pipeline for the bound state, creating it on a miss.
func (c *pipelineCache) get(s *drawState) (hal.RenderPipeline, error) {
	key := pipelineKey{
		vs:       s.vs,
		fs:       s.fs,
		format:   s.rtv.tex.desc.Format.TextureFormat(),
		topology: s.topology,
		layout:   fmt.Sprint(s.layout),
	}
	if p, ok := c.pipelines[key]; ok {
		c.hits.Add(1)
		return p, nil
	}
	c.misses.Add(1)

	if _, err := c.layouts(); err != nil {
		return nil, err
	}

	attrs := make([]gputypes.VertexAttribute, len(s.layout.Attributes))
	for i, a := range s.layout.Attributes {
		attrs[i] = gputypes.VertexAttribute{
			Format:         a.Format,
			Offset:         uint64(a.Offset),
			ShaderLocation: uint32(a.Location),
		}
	}
	stride := s.stride
	if stride == 0 {
		stride = s.layout.Stride
	}

	p, err := c.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "gpgpu_" + s.fs.label,
		Layout: c.pipeLayout,
		Vertex: hal.VertexState{
			Module:     s.vs.module,
			EntryPoint: s.vs.entry,
			Buffers: []gputypes.VertexBufferLayout{{
				ArrayStride: uint64(stride),
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes:  attrs,
			}},
		},
		Fragment: &hal.FragmentState{
			Module:     s.fs.module,
			EntryPoint: s.fs.entry,
			Targets: []gputypes.ColorTargetState{{
				Format:    key.format,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: s.topology,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return nil, fmt.Errorf("create render pipeline %q: %w", s.fs.label, err)
	}
	c.pipelines[key] = p
	gpgpu.Logger().Debug("native: pipeline created", "kernel", s.fs.label, "format", key.format)
	return p, nil
}

// evict destroys every pipeline built from prog.
func (c *pipelineCache) evict(prog *program) {
	for k, p := range c.pipelines {
		if k.vs == prog || k.fs == prog {
			c.device.DestroyRenderPipeline(p)
			delete(c.pipelines, k)
		}
	}
}

// stats returns cache hits and misses.
func (c *pipelineCache) stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *pipelineCache) destroy() {
	for k, p := range c.pipelines {
		c.device.DestroyRenderPipeline(p)
		delete(c.pipelines, k)
	}
	if c.pipeLayout != nil {
		c.device.DestroyPipelineLayout(c.pipeLayout)
		c.pipeLayout = nil
	}
	if c.bindLayout != nil {
		c.device.DestroyBindGroupLayout(c.bindLayout)
		c.bindLayout = nil
	}
}
