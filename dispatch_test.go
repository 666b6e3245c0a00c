package gpgpu

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/gogpu/gputypes"
)

type dispatchFixture struct {
	ctx      *fakeContext
	quad     Buffer
	programs Programs
	input    View
	binding  KernelBinding
}

func newDispatchFixture() *dispatchFixture {
	l := Layout{Width: 4, Height: 2, Format: FloatQuad}
	input := &fakeView{tex: &fakeTexture{desc: l.Descriptor(ImmutableInput)}, kind: ViewShaderResource}
	target := &fakeView{tex: &fakeTexture{desc: l.Descriptor(RenderTarget)}, kind: ViewRenderTarget}
	return &dispatchFixture{
		ctx:  &fakeContext{},
		quad: &fakeBuffer{data: make([]byte, 32)},
		programs: Programs{
			Vertex:   &fakeProgram{stage: gputypes.ShaderStageVertex, label: "vs"},
			Fragment: &fakeProgram{stage: gputypes.ShaderStageFragment, label: "fs"},
		},
		input:   input,
		binding: BindTarget(&fakeSampler{desc: PointSampler()}, target),
	}
}

func (f *dispatchFixture) dispatch() error {
	return NewDispatcher(f.ctx, f.quad, f.programs).Dispatch(f.input, f.binding)
}

func TestDispatchCallOrder(t *testing.T) {
	f := newDispatchFixture()
	if err := f.dispatch(); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	want := []string{
		"SetInputLayout",
		fmt.Sprintf("SetPrimitiveTopology %d", gputypes.PrimitiveTopologyTriangleStrip),
		"SetVertexBuffer 0 8 0",
		"SetVertexProgram",
		"SetFragmentProgram",
		"SetSampler 0",
		"SetShaderResource 0 true",
		"SetViewport 4x2",
		"SetRenderTarget true",
		"Draw 4 0",
		"SetShaderResource 0 false",
		"SetRenderTarget false",
	}
	if !slices.Equal(f.ctx.calls, want) {
		t.Errorf("calls =\n%v\nwant\n%v", f.ctx.calls, want)
	}
}

func TestDispatchUnbindsOnDrawFailure(t *testing.T) {
	f := newDispatchFixture()
	drawErr := errors.New("device removed")
	f.ctx.drawErr = drawErr

	err := f.dispatch()
	if !errors.Is(err, drawErr) {
		t.Fatalf("Dispatch error = %v, want %v", err, drawErr)
	}
	var resErr *DeviceResourceError
	if !errors.As(err, &resErr) || resErr.Op != "draw" {
		t.Errorf("Dispatch error = %#v, want *DeviceResourceError with op draw", err)
	}
	n := len(f.ctx.calls)
	if n < 2 || f.ctx.calls[n-2] != "SetShaderResource 0 false" || f.ctx.calls[n-1] != "SetRenderTarget false" {
		t.Errorf("views not unbound after failed draw: %v", f.ctx.calls)
	}
}

func TestDispatchValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *dispatchFixture)
		want   error
	}{
		{"no quad", func(f *dispatchFixture) { f.quad = nil }, errNoQuad},
		{"no vertex program", func(f *dispatchFixture) { f.programs.Vertex = nil }, errNoPrograms},
		{"no fragment program", func(f *dispatchFixture) { f.programs.Fragment = nil }, errNoPrograms},
		{"no input", func(f *dispatchFixture) { f.input = nil }, errBadInputView},
		{"input is a write view", func(f *dispatchFixture) { f.input = f.binding.Target }, errBadInputView},
		{"no target", func(f *dispatchFixture) { f.binding.Target = nil }, errBadTargetView},
		{"target is a read view", func(f *dispatchFixture) { f.binding.Target = f.input }, errBadTargetView},
		{"no sampler", func(f *dispatchFixture) { f.binding.Sampler = nil }, errNoSampler},
		{"short viewport", func(f *dispatchFixture) { f.binding.Viewport.Width = 3 }, errViewportTarget},
		{"offset viewport", func(f *dispatchFixture) { f.binding.Viewport.X = 1 }, errViewportTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatchFixture()
			tt.mutate(f)
			if err := f.dispatch(); !errors.Is(err, tt.want) {
				t.Fatalf("Dispatch error = %v, want %v", err, tt.want)
			}
			if len(f.ctx.calls) != 0 {
				t.Errorf("invalid dispatch touched the context: %v", f.ctx.calls)
			}
		})
	}
}

func TestBindTarget(t *testing.T) {
	target := &fakeView{
		tex:  &fakeTexture{desc: Layout{Width: 64, Height: 3, Format: SingleFloat}.Descriptor(RenderTarget)},
		kind: ViewRenderTarget,
	}
	b := BindTarget(nil, target)
	if b.Viewport != FullViewport(64, 3) {
		t.Errorf("viewport = %+v", b.Viewport)
	}
	if b := BindTarget(nil, nil); b.Viewport != (Viewport{}) {
		t.Errorf("nil target viewport = %+v", b.Viewport)
	}
}

func TestDispatcherSetPrograms(t *testing.T) {
	f := newDispatchFixture()
	d := NewDispatcher(f.ctx, f.quad, Programs{})
	if err := d.Dispatch(f.input, f.binding); !errors.Is(err, errNoPrograms) {
		t.Fatalf("error = %v, want errNoPrograms", err)
	}
	d.SetPrograms(f.programs)
	if err := d.Dispatch(f.input, f.binding); err != nil {
		t.Fatalf("Dispatch after SetPrograms: %v", err)
	}
}
