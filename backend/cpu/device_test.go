package cpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpgpu"
	"github.com/gogpu/gpgpu/kernels"
)

func newTestDevice(t *testing.T, opts ...Option) *Device {
	t.Helper()
	d := New(opts...)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDeviceCaps(t *testing.T) {
	d := newTestDevice(t, WithRowPitchAlignment(256), WithMaxTextureDimension(1024))
	caps := d.Caps()
	if caps.Adapter.Name != AdapterName {
		t.Errorf("Adapter.Name = %q, want %q", caps.Adapter.Name, AdapterName)
	}
	if caps.RowPitchAlignment != 256 || caps.MaxTextureDimension != 1024 || !caps.HostPrograms {
		t.Errorf("caps = %+v", caps)
	}
	if got := caps.Alignment(gpgpu.FloatPair); got != 32 {
		t.Errorf("Alignment(FloatPair) = %d, want 32", got)
	}
}

func TestSentinelCoverage(t *testing.T) {
	sizes := []struct{ w, h int }{{8, 1}, {32, 2}, {5, 7}, {64, 64}}
	for _, sz := range sizes {
		d := newTestDevice(t)
		p := gpgpu.New(d, gpgpu.WithWidth(sz.w), gpgpu.WithAlignment(1))

		in := gpgpu.Scalars(make([]float32, sz.w*sz.h))
		out, err := p.Run(in, kernels.Sentinel(gpgpu.SingleFloat, -777))
		if err != nil {
			t.Fatalf("%dx%d: Run: %v", sz.w, sz.h, err)
		}
		for i, v := range out.Values {
			if v != -777 {
				t.Fatalf("%dx%d: element %d = %v, want sentinel", sz.w, sz.h, i, v)
			}
		}

		target, _ := p.Resources().Target()
		counts, err := d.WriteCounts(target)
		if err != nil {
			t.Fatal(err)
		}
		for i, c := range counts {
			if c != 1 {
				t.Errorf("%dx%d: texel %d written %d times, want 1", sz.w, sz.h, i, c)
			}
		}
		_ = p.Close()
	}
}

func TestBandedShading(t *testing.T) {
	for _, workers := range []int{1, 4} {
		d := newTestDevice(t, WithWorkers(workers))
		p := gpgpu.New(d, gpgpu.WithWidth(256), gpgpu.WithAlignment(1))

		elems := make([][2]float32, 256*96)
		for i := range elems {
			elems[i] = [2]float32{float32(i), -float32(i)}
		}
		out, err := p.Run(gpgpu.Pairs(elems), kernels.Identity(gpgpu.FloatPair))
		if err != nil {
			t.Fatalf("workers=%d: Run: %v", workers, err)
		}
		for i := range elems {
			if e := out.Element(i); e[0] != elems[i][0] || e[1] != elems[i][1] {
				t.Fatalf("workers=%d: element %d = %v, want %v", workers, i, e, elems[i])
			}
		}

		target, _ := p.Resources().Target()
		counts, err := d.WriteCounts(target)
		if err != nil {
			t.Fatal(err)
		}
		for i, c := range counts {
			if c != 1 {
				t.Fatalf("workers=%d: texel %d written %d times, want 1", workers, i, c)
			}
		}
		_ = p.Close()
	}
}

func TestStagingRowPitch(t *testing.T) {
	d := newTestDevice(t, WithRowPitchAlignment(256))
	desc := gpgpu.Layout{Width: 3, Height: 2, Format: gpgpu.SingleFloat}.Descriptor(gpgpu.StagingReadback)
	tex, err := d.CreateTexture(desc, nil)
	if err != nil {
		t.Fatal(err)
	}
	m, err := d.Context().Map(tex)
	if err != nil {
		t.Fatal(err)
	}
	if m.RowPitch != 256 || len(m.Data) != 512 {
		t.Errorf("RowPitch = %d, len = %d, want 256, 512", m.RowPitch, len(m.Data))
	}
	if err := d.Context().Unmap(tex); err != nil {
		t.Fatal(err)
	}
}

func TestMapErrors(t *testing.T) {
	d := newTestDevice(t)
	ctx := d.Context()
	l := gpgpu.Layout{Width: 4, Height: 1, Format: gpgpu.SingleFloat}

	rt, err := d.CreateTexture(l.Descriptor(gpgpu.RenderTarget), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ctx.Map(rt); !errors.Is(err, ErrNotStaging) {
		t.Errorf("Map(render target) = %v, want ErrNotStaging", err)
	}

	st, _ := d.CreateTexture(l.Descriptor(gpgpu.StagingReadback), nil)
	if err := ctx.Unmap(st); !errors.Is(err, ErrNotMapped) {
		t.Errorf("Unmap without Map = %v, want ErrNotMapped", err)
	}
	if _, err := ctx.Map(st); err != nil {
		t.Fatal(err)
	}
	if _, err := ctx.Map(st); !errors.Is(err, ErrAlreadyMapped) {
		t.Errorf("second Map = %v, want ErrAlreadyMapped", err)
	}
	if err := ctx.CopyResource(st, rt); !errors.Is(err, ErrAlreadyMapped) {
		t.Errorf("CopyResource into mapped = %v, want ErrAlreadyMapped", err)
	}
	_ = ctx.Unmap(st)

	d.Lose()
	if _, err := ctx.Map(st); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("Map after Lose = %v, want ErrDeviceLost", err)
	}
}

func TestCreateTextureErrors(t *testing.T) {
	d := newTestDevice(t, WithMaxTextureDimension(16))
	l := gpgpu.Layout{Width: 17, Height: 1, Format: gpgpu.SingleFloat}
	if _, err := d.CreateTexture(l.Descriptor(gpgpu.RenderTarget), nil); err == nil {
		t.Error("oversized texture should fail")
	}
	l.Width = 4
	if _, err := d.CreateTexture(l.Descriptor(gpgpu.ImmutableInput), make([]byte, 15)); err == nil {
		t.Error("short initial data should fail")
	}
	st, _ := d.CreateTexture(l.Descriptor(gpgpu.StagingReadback), nil)
	if _, err := d.CreateView(st, gpgpu.ViewShaderResource); !errors.Is(err, ErrViewRole) {
		t.Errorf("view of staging = %v, want ErrViewRole", err)
	}
}

func TestCreateProgramNeedsFunc(t *testing.T) {
	d := newTestDevice(t)
	src := kernels.Identity(gpgpu.SingleFloat).Fragment
	src.Fragment = nil
	if _, err := d.CreateProgram(src); !errors.Is(err, ErrNoFunc) {
		t.Errorf("CreateProgram without func = %v, want ErrNoFunc", err)
	}
	if _, err := d.CreateSampler(gpgpu.SamplerDescriptor{Filter: gputypes.FilterModeLinear}); !errors.Is(err, ErrUnsupportedFilter) {
		t.Errorf("linear sampler = %v, want ErrUnsupportedFilter", err)
	}
}

func TestDrawBindHazard(t *testing.T) {
	d := newTestDevice(t)
	ctx := d.Context()
	l := gpgpu.Layout{Width: 4, Height: 1, Format: gpgpu.SingleFloat}
	rt, _ := d.CreateTexture(l.Descriptor(gpgpu.RenderTarget), nil)
	rtv, _ := d.CreateView(rt, gpgpu.ViewRenderTarget)
	srv, _ := d.CreateView(rt, gpgpu.ViewShaderResource)

	res := gpgpu.NewResources(d)
	quad, _ := res.CreateQuad()
	vs, _ := d.CreateProgram(kernels.Passthrough())
	fs, _ := d.CreateProgram(kernels.Identity(gpgpu.SingleFloat).Fragment)

	ctx.SetInputLayout(gpgpu.QuadLayout)
	ctx.SetPrimitiveTopology(gputypes.PrimitiveTopologyTriangleStrip)
	ctx.SetVertexBuffer(0, quad, gpgpu.QuadLayout.Stride, 0)
	ctx.SetVertexProgram(vs)
	ctx.SetFragmentProgram(fs)
	ctx.SetShaderResource(0, srv)
	ctx.SetViewport(gpgpu.FullViewport(4, 1))
	ctx.SetRenderTarget(rtv)
	if err := ctx.Draw(4, 0); !errors.Is(err, ErrBindHazard) {
		t.Errorf("Draw reading its target = %v, want ErrBindHazard", err)
	}

	ctx.SetShaderResource(0, nil)
	ctx.SetRenderTarget(nil)
	if err := ctx.Draw(4, 0); !errors.Is(err, ErrIncompleteState) {
		t.Errorf("Draw without target = %v, want ErrIncompleteState", err)
	}
	res.Release()
}

func TestCloseIdempotent(t *testing.T) {
	d := New()
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if _, err := d.CreateVertexBuffer("x", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("create after Close = %v, want ErrClosed", err)
	}
}

func TestReadbackAfterClose(t *testing.T) {
	d := New()
	l := gpgpu.Layout{Width: 4, Height: 1, Format: gpgpu.SingleFloat}
	target, err := d.CreateTexture(l.Descriptor(gpgpu.RenderTarget), nil)
	if err != nil {
		t.Fatal(err)
	}
	staging, err := d.CreateTexture(l.Descriptor(gpgpu.StagingReadback), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = gpgpu.Readback(d.Context(), target, staging)
	if !errors.Is(err, gpgpu.ErrReadback) || !errors.Is(err, ErrClosed) {
		t.Errorf("Readback after Close = %v, want ErrReadback wrapping ErrClosed", err)
	}
	if _, err := d.Context().Map(staging); !errors.Is(err, ErrClosed) {
		t.Errorf("Map after Close = %v, want ErrClosed", err)
	}
	if idx, err := d.q.submit(nil); !errors.Is(err, ErrClosed) || idx != 0 {
		t.Errorf("submit after Close = %d, %v, want 0, ErrClosed", idx, err)
	}
}
