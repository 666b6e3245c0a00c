//go:build !nogpu

package native

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpgpu"
)

const maxSlots = 8

// drawState is the bound pipeline state.
type drawState struct {
	layout   gpgpu.InputLayout
	topology gputypes.PrimitiveTopology
	vb       *buffer
	stride   int
	offset   int
	vs       *program
	fs       *program
	sampler  *sampler
	srv      *view
	viewport gpgpu.Viewport
	rtv      *view
}

// submission is a submitted command buffer and the transient objects it
// references, freed once the queue reports it complete.
type submission struct {
	index      uint64
	cmd        hal.CommandBuffer
	bindGroups []hal.BindGroup
}

// immediateContext records draws and copies into one HAL command encoder
// and submits it on Flush or Map.
type immediateContext struct {
	dev *Device

	state    drawState
	samplers [maxSlots]*sampler
	srvs     [maxSlots]*view

	encoder    hal.CommandEncoder
	bindGroups []hal.BindGroup
	lastIndex  uint64
	inflight   []submission
}

var _ gpgpu.Context = (*immediateContext)(nil)

func (c *immediateContext) SetInputLayout(layout gpgpu.InputLayout) { c.state.layout = layout }

func (c *immediateContext) SetPrimitiveTopology(topology gputypes.PrimitiveTopology) {
	c.state.topology = topology
}

func (c *immediateContext) SetVertexBuffer(slot int, buf gpgpu.Buffer, stride, offset int) {
	if slot != 0 {
		gpgpu.Logger().Warn("native: vertex buffer slot ignored", "slot", slot)
		return
	}
	b, _ := buf.(*buffer)
	c.state.vb, c.state.stride, c.state.offset = b, stride, offset
}

func (c *immediateContext) SetVertexProgram(p gpgpu.Program)   { c.state.vs, _ = p.(*program) }
func (c *immediateContext) SetFragmentProgram(p gpgpu.Program) { c.state.fs, _ = p.(*program) }

func (c *immediateContext) SetSampler(slot int, s gpgpu.Sampler) {
	if slot >= 0 && slot < maxSlots {
		c.samplers[slot], _ = s.(*sampler)
	}
}

func (c *immediateContext) SetShaderResource(slot int, v gpgpu.View) {
	if slot >= 0 && slot < maxSlots {
		c.srvs[slot], _ = v.(*view)
	}
}

func (c *immediateContext) SetViewport(vp gpgpu.Viewport) { c.state.viewport = vp }

func (c *immediateContext) SetRenderTarget(v gpgpu.View) { c.state.rtv, _ = v.(*view) }

func checkDrawState(s *drawState) error {
	switch {
	case s.vb == nil || s.vb.buf == nil:
		return fmt.Errorf("%w: no vertex buffer", ErrIncompleteState)
	case s.vs == nil || s.vs.module == nil:
		return fmt.Errorf("%w: no vertex program", ErrIncompleteState)
	case s.fs == nil || s.fs.module == nil:
		return fmt.Errorf("%w: no fragment program", ErrIncompleteState)
	case s.rtv == nil || s.rtv.hv == nil || s.rtv.kind != gpgpu.ViewRenderTarget:
		return fmt.Errorf("%w: no render target", ErrIncompleteState)
	case s.srv == nil || s.srv.hv == nil || s.srv.kind != gpgpu.ViewShaderResource:
		return fmt.Errorf("%w: no shader resource at slot 0", ErrIncompleteState)
	case s.sampler == nil || s.sampler.s == nil:
		return fmt.Errorf("%w: no sampler at slot 0", ErrIncompleteState)
	case s.srv.tex == s.rtv.tex:
		return ErrBindHazard
	}
	return nil
}

// Draw encodes one render pass that clears the render target and draws
// the bound vertex buffer.
func (c *immediateContext) Draw(vertexCount, firstVertex int) error {
	if c.dev.closed.Load() {
		return ErrClosed
	}
	s := c.state
	s.sampler, s.srv = c.samplers[0], c.srvs[0]
	if err := checkDrawState(&s); err != nil {
		return err
	}

	pipeline, err := c.dev.pipelines.get(&s)
	if err != nil {
		return fmt.Errorf("native: %w", err)
	}
	bg, err := c.dev.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "gpgpu_kernel_bind",
		Layout: c.dev.pipelines.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: s.srv.hv.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: s.sampler.s.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("native: create bind group: %w", err)
	}
	enc, err := c.begin()
	if err != nil {
		c.dev.device.DestroyBindGroup(bg)
		return err
	}
	c.bindGroups = append(c.bindGroups, bg)

	rp := enc.BeginRenderPass(kernelPass(s.rtv.hv))
	vp := s.viewport
	rp.SetPipeline(pipeline)
	rp.SetBindGroup(0, bg, nil)
	rp.SetVertexBuffer(0, s.vb.buf, uint64(s.offset))
	rp.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
	rp.Draw(uint32(vertexCount), 1, uint32(firstVertex), 0)
	rp.End()
	return nil
}

// kernelPass describes the single-attachment pass of a draw. The target
// is loaded, not cleared: the quad writes every texel.
func kernelPass(target hal.TextureView) *hal.RenderPassDescriptor {
	return &hal.RenderPassDescriptor{
		Label: "gpgpu_kernel_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    target,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}},
	}
}

// begin returns the open command encoder, creating one if needed.
func (c *immediateContext) begin() (hal.CommandEncoder, error) {
	if c.encoder != nil {
		return c.encoder, nil
	}
	enc, err := c.dev.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "gpgpu_encoder"})
	if err != nil {
		return nil, fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding("gpgpu_batch"); err != nil {
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}
	c.encoder = enc
	return enc, nil
}

// Flush implements gpgpu.Context.
func (c *immediateContext) Flush() error {
	if c.dev.closed.Load() {
		return ErrClosed
	}
	return c.submit()
}

func (c *immediateContext) submit() error {
	if c.encoder == nil {
		return nil
	}
	enc := c.encoder
	bgs := c.bindGroups
	c.encoder, c.bindGroups = nil, nil

	cmd, err := enc.EndEncoding()
	if err != nil {
		c.destroyBindGroups(bgs)
		return fmt.Errorf("native: end encoding: %w", err)
	}
	idx, err := c.dev.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		c.dev.device.FreeCommandBuffer(cmd)
		c.destroyBindGroups(bgs)
		return fmt.Errorf("native: submit: %w", err)
	}
	c.lastIndex = idx
	c.inflight = append(c.inflight, submission{index: idx, cmd: cmd, bindGroups: bgs})
	gpgpu.Logger().Debug("native: submitted", "index", idx)
	return nil
}

// CopyResource records a texture-to-buffer copy from src into the
// staging buffer behind dst.
func (c *immediateContext) CopyResource(dst, src gpgpu.Texture) error {
	d, ok1 := dst.(*texture)
	s, ok2 := src.(*texture)
	if !ok1 || !ok2 || d == nil || s == nil {
		return ErrForeignHandle
	}
	if d.desc.Role != gpgpu.StagingReadback || d.buf == nil || s.tex == nil {
		return fmt.Errorf("native: copy %s to %s", s.desc.Role, d.desc.Role)
	}
	if d.desc.Layout() != s.desc.Layout() {
		return fmt.Errorf("native: copy %s to %s: shapes differ", s.desc.Layout(), d.desc.Layout())
	}
	if d.mapped {
		return ErrAlreadyMapped
	}
	enc, err := c.begin()
	if err != nil {
		return err
	}

	usage := gputypes.TextureUsageTextureBinding
	if s.desc.Role == gpgpu.RenderTarget {
		usage = gputypes.TextureUsageRenderAttachment
	}
	w, h := uint32(s.desc.Width), uint32(s.desc.Height)

	// CopyTextureToBuffer needs the source in copy-source state.
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: s.tex,
		Usage:   hal.TextureUsageTransition{OldUsage: usage, NewUsage: gputypes.TextureUsageCopySrc},
	}})
	enc.CopyTextureToBuffer(s.tex, d.buf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(d.rowPitch), RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: s.tex, MipLevel: 0, Aspect: gputypes.TextureAspectAll},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: s.tex,
		Usage:   hal.TextureUsageTransition{OldUsage: gputypes.TextureUsageCopySrc, NewUsage: usage},
	}})
	return nil
}

// Map submits pending work, waits for the queue and maps the staging
// buffer.
func (c *immediateContext) Map(tex gpgpu.Texture) (gpgpu.Mapping, error) {
	t, ok := tex.(*texture)
	if !ok || t == nil {
		return gpgpu.Mapping{}, ErrForeignHandle
	}
	switch {
	case c.dev.closed.Load():
		return gpgpu.Mapping{}, ErrClosed
	case t.desc.Role != gpgpu.StagingReadback || t.buf == nil:
		return gpgpu.Mapping{}, fmt.Errorf("%w: %s", ErrNotStaging, t.desc)
	case t.mapped:
		return gpgpu.Mapping{}, ErrAlreadyMapped
	}

	if err := c.submit(); err != nil {
		return gpgpu.Mapping{}, err
	}
	if err := c.wait(); err != nil {
		return gpgpu.Mapping{}, err
	}

	size := t.rowPitch * t.desc.Height
	m, err := c.dev.device.MapBuffer(t.buf, 0, uint64(size))
	if err != nil {
		return gpgpu.Mapping{}, fmt.Errorf("native: map staging: %w", err)
	}
	t.mapped = true
	return gpgpu.Mapping{
		Data:     unsafe.Slice((*byte)(m.Ptr), size),
		RowPitch: t.rowPitch,
	}, nil
}

// Unmap implements gpgpu.Context.
func (c *immediateContext) Unmap(tex gpgpu.Texture) error {
	t, ok := tex.(*texture)
	if !ok || t == nil {
		return ErrForeignHandle
	}
	if !t.mapped || t.buf == nil {
		return ErrNotMapped
	}
	t.mapped = false
	if err := c.dev.device.UnmapBuffer(t.buf); err != nil {
		return fmt.Errorf("native: unmap staging: %w", err)
	}
	return nil
}

// wait blocks until every submission has completed and frees them.
func (c *immediateContext) wait() error {
	if c.dev.queue.PollCompleted() < c.lastIndex {
		if err := c.dev.device.WaitIdle(); err != nil {
			return fmt.Errorf("native: wait idle: %w", err)
		}
	}
	c.reclaim()
	return nil
}

// drain waits for submitted work before a resource it may use is
// destroyed. Errors are logged: destruction cannot fail.
func (c *immediateContext) drain() {
	if len(c.inflight) == 0 {
		return
	}
	if err := c.wait(); err != nil {
		gpgpu.Logger().Warn("native: drain before destroy", "err", err)
	}
}

// reclaim frees completed submissions.
func (c *immediateContext) reclaim() {
	done := c.dev.queue.PollCompleted()
	kept := c.inflight[:0]
	for _, s := range c.inflight {
		if s.index > done {
			kept = append(kept, s)
			continue
		}
		c.dev.device.FreeCommandBuffer(s.cmd)
		c.destroyBindGroups(s.bindGroups)
	}
	c.inflight = kept
}

func (c *immediateContext) destroyBindGroups(bgs []hal.BindGroup) {
	for _, bg := range bgs {
		c.dev.device.DestroyBindGroup(bg)
	}
}

// release frees everything the context still holds. The device must be
// idle.
func (c *immediateContext) release() {
	if c.encoder != nil {
		c.encoder.DiscardEncoding()
		c.encoder = nil
	}
	c.destroyBindGroups(c.bindGroups)
	c.bindGroups = nil
	for _, s := range c.inflight {
		c.dev.device.FreeCommandBuffer(s.cmd)
		c.destroyBindGroups(s.bindGroups)
	}
	c.inflight = nil
}
