package gpgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// fakeDevice records every call and hands out inert handles. Create
// failures can be injected per resource kind.
type fakeDevice struct {
	caps  Caps
	calls []string
	fail  map[string]error
	live  map[any]bool
	ctx   *fakeContext
}

func newFakeDevice() *fakeDevice {
	d := &fakeDevice{
		caps: Caps{MaxTextureDimension: DefaultMaxDimension},
		fail: make(map[string]error),
		live: make(map[any]bool),
	}
	d.ctx = &fakeContext{}
	return d
}

type fakeTexture struct{ desc TextureDescriptor }

func (t *fakeTexture) Descriptor() TextureDescriptor { return t.desc }

type fakeView struct {
	tex  Texture
	kind ViewKind
}

func (v *fakeView) Texture() Texture { return v.tex }
func (v *fakeView) Kind() ViewKind   { return v.kind }

type fakeBuffer struct{ data []byte }

func (b *fakeBuffer) Size() int { return len(b.data) }

type fakeSampler struct{ desc SamplerDescriptor }

func (s *fakeSampler) SamplerDescriptor() SamplerDescriptor { return s.desc }

type fakeProgram struct {
	stage gputypes.ShaderStage
	label string
}

func (p *fakeProgram) Stage() gputypes.ShaderStage { return p.stage }
func (p *fakeProgram) Label() string               { return p.label }

func (d *fakeDevice) record(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *fakeDevice) Caps() Caps { return d.caps }

func (d *fakeDevice) CreateTexture(desc TextureDescriptor, _ []byte) (Texture, error) {
	d.record("CreateTexture %s", desc.Role)
	if err := d.fail["texture"]; err != nil {
		return nil, err
	}
	t := &fakeTexture{desc: desc}
	d.live[t] = true
	return t, nil
}

func (d *fakeDevice) CreateView(tex Texture, kind ViewKind) (View, error) {
	d.record("CreateView %s", kind)
	if err := d.fail["view"]; err != nil {
		return nil, err
	}
	v := &fakeView{tex: tex, kind: kind}
	d.live[v] = true
	return v, nil
}

func (d *fakeDevice) CreateVertexBuffer(label string, data []byte) (Buffer, error) {
	d.record("CreateVertexBuffer %s", label)
	if err := d.fail["buffer"]; err != nil {
		return nil, err
	}
	b := &fakeBuffer{data: data}
	d.live[b] = true
	return b, nil
}

func (d *fakeDevice) CreateSampler(desc SamplerDescriptor) (Sampler, error) {
	d.record("CreateSampler")
	if err := d.fail["sampler"]; err != nil {
		return nil, err
	}
	s := &fakeSampler{desc: desc}
	d.live[s] = true
	return s, nil
}

func (d *fakeDevice) CreateProgram(src ShaderSource) (Program, error) {
	d.record("CreateProgram %s", src.Label)
	if err := d.fail["program"]; err != nil {
		return nil, err
	}
	p := &fakeProgram{stage: src.Stage, label: src.Label}
	d.live[p] = true
	return p, nil
}

func (d *fakeDevice) destroy(kind string, h any) {
	d.record("Destroy%s", kind)
	delete(d.live, h)
}

func (d *fakeDevice) DestroyTexture(t Texture) { d.destroy("Texture", t) }
func (d *fakeDevice) DestroyView(v View)       { d.destroy("View", v) }
func (d *fakeDevice) DestroyBuffer(b Buffer)   { d.destroy("Buffer", b) }
func (d *fakeDevice) DestroySampler(s Sampler) { d.destroy("Sampler", s) }
func (d *fakeDevice) DestroyProgram(p Program) { d.destroy("Program", p) }
func (d *fakeDevice) Context() Context         { return d.ctx }
func (d *fakeDevice) Close() error             { return nil }

// fakeContext records binding calls and serves a canned mapping.
type fakeContext struct {
	calls []string

	drawErr  error
	copyErr  error
	mapErr   error
	unmapErr error
	mapping  Mapping
}

func (c *fakeContext) record(format string, args ...any) {
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
}

func (c *fakeContext) SetInputLayout(InputLayout) { c.record("SetInputLayout") }
func (c *fakeContext) SetPrimitiveTopology(t gputypes.PrimitiveTopology) {
	c.record("SetPrimitiveTopology %d", t)
}
func (c *fakeContext) SetVertexBuffer(slot int, _ Buffer, stride, offset int) {
	c.record("SetVertexBuffer %d %d %d", slot, stride, offset)
}
func (c *fakeContext) SetVertexProgram(Program)   { c.record("SetVertexProgram") }
func (c *fakeContext) SetFragmentProgram(Program) { c.record("SetFragmentProgram") }
func (c *fakeContext) SetSampler(slot int, _ Sampler) {
	c.record("SetSampler %d", slot)
}
func (c *fakeContext) SetShaderResource(slot int, v View) {
	c.record("SetShaderResource %d %t", slot, v != nil)
}
func (c *fakeContext) SetViewport(vp Viewport) {
	c.record("SetViewport %gx%g", vp.Width, vp.Height)
}
func (c *fakeContext) SetRenderTarget(v View) { c.record("SetRenderTarget %t", v != nil) }

func (c *fakeContext) Draw(vertexCount, firstVertex int) error {
	c.record("Draw %d %d", vertexCount, firstVertex)
	return c.drawErr
}

func (c *fakeContext) Flush() error {
	c.record("Flush")
	return nil
}

func (c *fakeContext) CopyResource(_, _ Texture) error {
	c.record("CopyResource")
	return c.copyErr
}

func (c *fakeContext) Map(Texture) (Mapping, error) {
	c.record("Map")
	if c.mapErr != nil {
		return Mapping{}, c.mapErr
	}
	return c.mapping, nil
}

func (c *fakeContext) Unmap(Texture) error {
	c.record("Unmap")
	return c.unmapErr
}
