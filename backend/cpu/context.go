package cpu

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpgpu"
)

// maxSlots is the number of sampler and shader resource slots. Kernels
// only see slot 0.
const maxSlots = 8

// drawState is the pipeline state a draw captures when it is recorded.
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

// immediateContext records commands and submits them to the device queue
// on Flush or Map. It is driven by one goroutine.
type immediateContext struct {
	dev *Device

	state    drawState
	samplers [maxSlots]*sampler
	srvs     [maxSlots]*view
	pending  []command
}

var _ gpgpu.Context = (*immediateContext)(nil)

func (c *immediateContext) SetInputLayout(layout gpgpu.InputLayout) {
	c.state.layout = layout
}

func (c *immediateContext) SetPrimitiveTopology(topology gputypes.PrimitiveTopology) {
	c.state.topology = topology
}

func (c *immediateContext) SetVertexBuffer(slot int, buf gpgpu.Buffer, stride, offset int) {
	if slot != 0 {
		gpgpu.Logger().Warn("cpu: vertex buffer slot ignored", "slot", slot)
		return
	}
	b, _ := buf.(*buffer)
	c.state.vb, c.state.stride, c.state.offset = b, stride, offset
}

func (c *immediateContext) SetVertexProgram(p gpgpu.Program) {
	c.state.vs, _ = p.(*program)
}

func (c *immediateContext) SetFragmentProgram(p gpgpu.Program) {
	c.state.fs, _ = p.(*program)
}

func (c *immediateContext) SetSampler(slot int, s gpgpu.Sampler) {
	if slot < 0 || slot >= maxSlots {
		return
	}
	c.samplers[slot], _ = s.(*sampler)
}

func (c *immediateContext) SetShaderResource(slot int, v gpgpu.View) {
	if slot < 0 || slot >= maxSlots {
		return
	}
	c.srvs[slot], _ = v.(*view)
}

func (c *immediateContext) SetViewport(vp gpgpu.Viewport) {
	c.state.viewport = vp
}

func (c *immediateContext) SetRenderTarget(v gpgpu.View) {
	c.state.rtv, _ = v.(*view)
}

// Draw records a draw of the bound state.
func (c *immediateContext) Draw(vertexCount, firstVertex int) error {
	if c.dev.lost.Load() {
		return ErrDeviceLost
	}
	if c.dev.closed.Load() {
		return ErrClosed
	}

	s := c.state
	s.sampler, s.srv = c.samplers[0], c.srvs[0]
	if err := checkDrawState(&s); err != nil {
		return err
	}
	c.pending = append(c.pending, func() error {
		return draw(&s, c.dev.pool, vertexCount, firstVertex)
	})
	return nil
}

func checkDrawState(s *drawState) error {
	switch {
	case s.vb == nil:
		return fmt.Errorf("%w: no vertex buffer", ErrIncompleteState)
	case s.vs == nil || s.vs.vertex == nil:
		return fmt.Errorf("%w: no vertex program", ErrIncompleteState)
	case s.fs == nil || s.fs.fragment == nil:
		return fmt.Errorf("%w: no fragment program", ErrIncompleteState)
	case s.rtv == nil || s.rtv.kind != gpgpu.ViewRenderTarget:
		return fmt.Errorf("%w: no render target", ErrIncompleteState)
	case s.viewport.Width <= 0 || s.viewport.Height <= 0:
		return fmt.Errorf("%w: empty viewport", ErrIncompleteState)
	case s.srv != nil && s.srv.kind != gpgpu.ViewShaderResource:
		return fmt.Errorf("%w: slot 0 is not a shader resource view", ErrIncompleteState)
	case s.srv != nil && s.srv.tex == s.rtv.tex:
		return ErrBindHazard
	}
	return nil
}

// Flush submits recorded commands without waiting.
func (c *immediateContext) Flush() error {
	if c.dev.lost.Load() {
		return ErrDeviceLost
	}
	if c.dev.closed.Load() {
		return ErrClosed
	}
	return c.submit()
}

func (c *immediateContext) submit() error {
	if len(c.pending) == 0 {
		return nil
	}
	cmds := c.pending
	c.pending = nil
	idx, err := c.dev.q.submit(cmds)
	if err != nil {
		return err
	}
	gpgpu.Logger().Debug("cpu: submitted batch", "index", idx, "commands", len(cmds))
	return nil
}

// CopyResource records a copy of a render target or input texture into a
// staging texture, padding rows to the staging pitch.
func (c *immediateContext) CopyResource(dst, src gpgpu.Texture) error {
	if c.dev.lost.Load() {
		return ErrDeviceLost
	}
	if c.dev.closed.Load() {
		return ErrClosed
	}
	d, ok1 := dst.(*texture)
	s, ok2 := src.(*texture)
	if !ok1 || !ok2 || d == nil || s == nil {
		return ErrForeignHandle
	}
	if d.destroyed || s.destroyed {
		return ErrDestroyed
	}
	if d.desc.Role != gpgpu.StagingReadback || s.desc.Role == gpgpu.StagingReadback {
		return fmt.Errorf("cpu: copy %s to %s", s.desc.Role, d.desc.Role)
	}
	if d.desc.Layout() != s.desc.Layout() {
		return fmt.Errorf("cpu: copy %s to %s: shapes differ", s.desc.Layout(), d.desc.Layout())
	}
	if d.mapped {
		return ErrAlreadyMapped
	}

	c.pending = append(c.pending, func() error {
		if d.destroyed || s.destroyed {
			return ErrDestroyed
		}
		arr := gpgpu.LogicalArray{Channels: s.channels(), Values: s.texels}
		data, err := gpgpu.PackPitched(arr, d.desc, d.rowPitch)
		if err != nil {
			return err
		}
		copy(d.bytes, data)
		return nil
	})
	return nil
}

// Map submits pending commands, waits for the queue to drain and exposes
// the staging bytes.
func (c *immediateContext) Map(tex gpgpu.Texture) (gpgpu.Mapping, error) {
	t, ok := tex.(*texture)
	if !ok || t == nil {
		return gpgpu.Mapping{}, ErrForeignHandle
	}
	if c.dev.lost.Load() {
		return gpgpu.Mapping{}, ErrDeviceLost
	}
	if c.dev.closed.Load() {
		return gpgpu.Mapping{}, ErrClosed
	}
	switch {
	case t.destroyed:
		return gpgpu.Mapping{}, ErrDestroyed
	case t.desc.Role != gpgpu.StagingReadback:
		return gpgpu.Mapping{}, fmt.Errorf("%w: %s", ErrNotStaging, t.desc)
	case t.mapped:
		return gpgpu.Mapping{}, ErrAlreadyMapped
	}

	if err := c.submit(); err != nil {
		return gpgpu.Mapping{}, err
	}
	if err := c.dev.q.waitIdle(); err != nil {
		return gpgpu.Mapping{}, err
	}
	t.mapped = true
	return gpgpu.Mapping{Data: t.bytes, RowPitch: t.rowPitch}, nil
}

// Unmap ends a mapping.
func (c *immediateContext) Unmap(tex gpgpu.Texture) error {
	t, ok := tex.(*texture)
	if !ok || t == nil {
		return ErrForeignHandle
	}
	if !t.mapped {
		return ErrNotMapped
	}
	t.mapped = false
	return nil
}
