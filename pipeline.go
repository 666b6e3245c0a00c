package gpgpu

import (
	"github.com/gogpu/gputypes"
)

// Pipeline runs complete dispatch cycles on one device: plan, pack,
// upload, dispatch, flush, read back. Shape-sized resources are kept
// between runs of the same output shape and recreated when it changes.
//
// A Pipeline is driven by one goroutine and is not safe for concurrent use.
type Pipeline struct {
	dev  Device
	ctx  Context
	caps Caps
	opts options

	res      *Resources
	programs map[programKey]Program
	unkeyed  []Program
	closed   bool
}

type programKey struct {
	label string
	stage gputypes.ShaderStage
	wgsl  string
}

// New creates a pipeline on dev. The device stays owned by the caller and
// must outlive the pipeline.
func New(dev Device, opts ...Option) *Pipeline {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	res := NewResources(dev)
	res.SetSamplerDescriptor(o.sampler)

	return &Pipeline{
		dev:      dev,
		ctx:      dev.Context(),
		caps:     dev.Caps(),
		opts:     o,
		res:      res,
		programs: make(map[programKey]Program),
	}
}

// Planner returns the planner used for an input format and the format
// the kernel writes.
func (p *Pipeline) Planner(in, out InputFormat) Planner {
	pl := Planner{Alignment: p.opts.alignment, MaxDimension: p.opts.maxDimension}
	if pl.Alignment <= 0 {
		pl.Alignment = lcm(p.caps.Alignment(in), p.caps.Alignment(out))
	}
	if maxDim := p.caps.MaxTextureDimension; maxDim > 0 && (pl.MaxDimension <= 0 || pl.MaxDimension > maxDim) {
		pl.MaxDimension = maxDim
	}
	return pl
}

// Plan returns the layout Run would use for arr with the given output format.
func (p *Pipeline) Plan(arr LogicalArray, out InputFormat) (Layout, error) {
	in := arr.Format()
	if out == FormatUndefined {
		out = in
	}
	pl := p.Planner(in, out)
	if p.opts.width > 0 {
		return pl.PlanShape(arr.Len(), arr.Channels, p.opts.width)
	}
	return pl.Plan(arr.Len(), arr.Channels)
}

// Run executes one dispatch cycle of shaders over in and returns the
// decoded render target. The result has s.Output channels per element,
// or the input's channel count when s.Output is FormatUndefined.
func (p *Pipeline) Run(in LogicalArray, s Shaders) (LogicalArray, error) {
	if p.closed {
		return LogicalArray{}, ErrClosed
	}
	if len(in.Values)%max(in.Channels, 1) != 0 {
		return LogicalArray{}, in.Validate()
	}

	layout, err := p.Plan(in, s.Output)
	if err != nil {
		return LogicalArray{}, err
	}
	outLayout := layout
	if s.Output != FormatUndefined {
		outLayout.Format = s.Output
	}

	inDesc := layout.Descriptor(ImmutableInput)
	inDesc.Label = p.opts.label + "_input"
	data, err := Pack(in, inDesc)
	if err != nil {
		return LogicalArray{}, err
	}

	inputView, err := p.res.CreateInputTexture(data, inDesc)
	if err != nil {
		return LogicalArray{}, err
	}
	if err := p.bindShape(outLayout); err != nil {
		return LogicalArray{}, err
	}
	quad, err := p.res.CreateQuad()
	if err != nil {
		return LogicalArray{}, err
	}
	sampler, err := p.res.CreateSampler()
	if err != nil {
		return LogicalArray{}, err
	}
	programs, err := p.loadPrograms(s)
	if err != nil {
		return LogicalArray{}, err
	}

	target, targetView := p.res.Target()
	d := NewDispatcher(p.ctx, quad, programs)
	if err := d.Dispatch(inputView, BindTarget(sampler, targetView)); err != nil {
		return LogicalArray{}, err
	}
	if err := p.ctx.Flush(); err != nil {
		return LogicalArray{}, &DeviceResourceError{Op: "flush", Err: err}
	}

	out, err := Readback(p.ctx, target, p.res.Staging())
	if err != nil {
		return LogicalArray{}, err
	}

	Logger().Debug("gpgpu: run complete",
		"input", layout.String(), "output", outLayout.String(), "elements", out.Len())
	return out, nil
}

// bindShape makes sure the render target and staging texture have layout
// l, replacing them when the shape or format changed.
func (p *Pipeline) bindShape(l Layout) error {
	if p.res.Matches(l) {
		return nil
	}

	Logger().Debug("gpgpu: binding output shape", "layout", l.String())
	td := l.Descriptor(RenderTarget)
	td.Label = p.opts.label + "_target"
	if _, err := p.res.CreateRenderTarget(td); err != nil {
		return err
	}
	sd := l.Descriptor(StagingReadback)
	sd.Label = p.opts.label + "_staging"
	_, err := p.res.CreateStagingTexture(sd)
	return err
}

func (p *Pipeline) loadPrograms(s Shaders) (Programs, error) {
	vs, err := p.program(s.Vertex)
	if err != nil {
		return Programs{}, err
	}
	fs, err := p.program(s.Fragment)
	if err != nil {
		return Programs{}, err
	}
	return Programs{Vertex: vs, Fragment: fs}, nil
}

// program loads src. Labelled programs are reused by label, stage and
// source. Devices that run the Go functions of a source get a fresh
// program on every load, because functions cannot be compared; the
// previous program under the same key is destroyed.
func (p *Pipeline) program(src ShaderSource) (Program, error) {
	key := programKey{label: src.Label, stage: src.Stage, wgsl: src.WGSL}
	host := p.caps.HostPrograms && (src.Vertex != nil || src.Fragment != nil)
	if prog, ok := p.programs[key]; ok && src.Label != "" && !host {
		return prog, nil
	}
	prog, err := p.dev.CreateProgram(src)
	if err != nil {
		return nil, &DeviceResourceError{Op: "create program " + src.Label, Err: err}
	}
	switch {
	case host:
		if old, ok := p.programs[key]; ok {
			p.dev.DestroyProgram(old)
		}
		p.programs[key] = prog
	case src.Label != "":
		p.programs[key] = prog
	default:
		p.unkeyed = append(p.unkeyed, prog)
	}
	return prog, nil
}

// Resources returns the pipeline's resource manager.
func (p *Pipeline) Resources() *Resources { return p.res }

// Close releases every resource the pipeline created. The device is not
// closed. Close is idempotent.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.res.Release()
	for k, prog := range p.programs {
		p.dev.DestroyProgram(prog)
		delete(p.programs, k)
	}
	for _, prog := range p.unkeyed {
		p.dev.DestroyProgram(prog)
	}
	p.unkeyed = nil
	Logger().Debug("gpgpu: pipeline closed", "label", p.opts.label)
	return nil
}

func lcm(a, b int) int {
	if a <= 0 || b <= 0 {
		return max(a, b, 1)
	}
	return a / gcd(a, b) * b
}
