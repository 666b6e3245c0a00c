package gpgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// quadVertexCount is the number of vertices in the full-screen strip.
const quadVertexCount = 4

// Programs is a loaded vertex stage and kernel body.
type Programs struct {
	Vertex   Program
	Fragment Program
}

// KernelBinding is the state active during exactly one draw: the sampler
// the kernel reads through, the render target it writes and a viewport
// matching the target. It is rebuilt for every dispatch.
type KernelBinding struct {
	Sampler  Sampler
	Target   View
	Viewport Viewport
}

// BindTarget returns a binding whose viewport covers the whole target.
func BindTarget(s Sampler, target View) KernelBinding {
	b := KernelBinding{Sampler: s, Target: target}
	if target != nil && target.Texture() != nil {
		d := target.Texture().Descriptor()
		b.Viewport = FullViewport(d.Width, d.Height)
	}
	return b
}

// Dispatcher issues the single full-screen draw that runs a kernel once
// per output texel.
type Dispatcher struct {
	ctx      Context
	quad     Buffer
	programs Programs
}

// NewDispatcher creates a dispatcher drawing quad with programs on ctx.
func NewDispatcher(ctx Context, quad Buffer, programs Programs) *Dispatcher {
	return &Dispatcher{ctx: ctx, quad: quad, programs: programs}
}

// SetPrograms replaces the programs used by subsequent dispatches.
func (d *Dispatcher) SetPrograms(p Programs) { d.programs = p }

// Dispatch binds the quad, the programs, input and b, then draws the
// 4-vertex strip once. The input view and render target are unbound
// before returning, also on failure. The target is not cleared: after a
// successful dispatch every texel holds kernel output.
func (d *Dispatcher) Dispatch(input View, b KernelBinding) error {
	if err := d.validate(input, b); err != nil {
		return err
	}

	ctx := d.ctx
	ctx.SetInputLayout(QuadLayout)
	ctx.SetPrimitiveTopology(gputypes.PrimitiveTopologyTriangleStrip)
	ctx.SetVertexBuffer(0, d.quad, QuadLayout.Stride, 0)
	ctx.SetVertexProgram(d.programs.Vertex)
	ctx.SetFragmentProgram(d.programs.Fragment)
	ctx.SetSampler(0, b.Sampler)
	ctx.SetShaderResource(0, input)
	ctx.SetViewport(b.Viewport)
	ctx.SetRenderTarget(b.Target)
	defer func() {
		ctx.SetShaderResource(0, nil)
		ctx.SetRenderTarget(nil)
	}()

	if err := ctx.Draw(quadVertexCount, 0); err != nil {
		return &DeviceResourceError{Op: "draw", Err: err}
	}

	td := b.Target.Texture().Descriptor()
	Logger().Debug("gpgpu: dispatched kernel",
		"kernel", d.programs.Fragment.Label(),
		"target", fmt.Sprintf("%dx%d %s", td.Width, td.Height, td.Format))
	return nil
}

var (
	errNoQuad         = errors.New("gpgpu: dispatch without quad vertex buffer")
	errNoPrograms     = errors.New("gpgpu: dispatch without vertex and fragment programs")
	errBadInputView   = errors.New("gpgpu: input must be a shader resource view")
	errBadTargetView  = errors.New("gpgpu: target must be a render target view")
	errNoSampler      = errors.New("gpgpu: dispatch without sampler")
	errViewportTarget = errors.New("gpgpu: viewport does not match the render target")
)

func (d *Dispatcher) validate(input View, b KernelBinding) error {
	switch {
	case d.quad == nil:
		return errNoQuad
	case d.programs.Vertex == nil || d.programs.Fragment == nil:
		return errNoPrograms
	case input == nil || input.Kind() != ViewShaderResource:
		return errBadInputView
	case b.Target == nil || b.Target.Kind() != ViewRenderTarget:
		return errBadTargetView
	case b.Sampler == nil:
		return errNoSampler
	}
	td := b.Target.Texture().Descriptor()
	if b.Viewport != FullViewport(td.Width, td.Height) {
		return fmt.Errorf("%w: viewport %gx%g, target %dx%d",
			errViewportTarget, b.Viewport.Width, b.Viewport.Height, td.Width, td.Height)
	}
	return nil
}
