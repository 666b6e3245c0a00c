package gpgpu_test

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/gpgpu"
	"github.com/gogpu/gpgpu/backend/cpu"
	"github.com/gogpu/gpgpu/kernels"
)

func newCPUPipeline(t *testing.T, devOpts []cpu.Option, opts ...gpgpu.Option) (*cpu.Device, *gpgpu.Pipeline) {
	t.Helper()
	dev := cpu.New(devOpts...)
	p := gpgpu.New(dev, opts...)
	t.Cleanup(func() {
		_ = p.Close()
		_ = dev.Close()
	})
	return dev, p
}

func sameBits(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Float32bits(a[i]) != math.Float32bits(b[i]) {
			return false
		}
	}
	return true
}

func TestIdentityPairs(t *testing.T) {
	_, p := newCPUPipeline(t, nil, gpgpu.WithAlignment(1))
	in := gpgpu.Pairs([][2]float32{{1, -1}, {3, -3}, {5, -5}, {7, -7}})

	layout, err := p.Plan(in, gpgpu.FormatUndefined)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if layout.Width != 4 || layout.Height != 1 || layout.Format != gpgpu.FloatPair {
		t.Fatalf("layout = %v, want 4x1 RG32Float", layout)
	}

	out, err := p.Run(in, kernels.Identity(gpgpu.FloatPair))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Channels != 2 || !sameBits(out.Values, in.Values) {
		t.Errorf("Run = %v, want %v", out.Values, in.Values)
	}
}

func TestIdentityBitExact(t *testing.T) {
	special := []float32{
		1, -1, 0, float32(math.Copysign(0, -1)),
		float32(math.Inf(1)), float32(math.Inf(-1)),
		math.Float32frombits(0x7fc00001), math.MaxFloat32,
	}
	tests := []struct {
		name   string
		format gpgpu.InputFormat
	}{
		{"r32", gpgpu.SingleFloat},
		{"rg32", gpgpu.FloatPair},
		{"rgba32", gpgpu.FloatQuad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, p := newCPUPipeline(t, nil, gpgpu.WithAlignment(1))
			ch := tt.format.Channels()
			in := gpgpu.LogicalArray{Channels: ch, Values: make([]float32, 4*ch)}
			for i := range in.Values {
				in.Values[i] = special[i%len(special)]
			}

			out, err := p.Run(in, kernels.Identity(tt.format))
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if !sameBits(out.Values, in.Values) {
				t.Errorf("Run = %v, want %v", out.Values, in.Values)
			}
		})
	}
}

func TestQuadsKeepRowOrder(t *testing.T) {
	_, p := newCPUPipeline(t, nil, gpgpu.WithWidth(32))

	elems := make([][4]float32, 64)
	for k := range elems {
		f := float32(k)
		elems[k] = [4]float32{f, f, -f, -f}
	}
	in := gpgpu.Quads(elems)

	out, err := p.Run(in, kernels.Identity(gpgpu.FloatQuad))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tex, _ := p.Resources().Target(); tex.Descriptor().Height != 2 {
		t.Fatalf("target = %s, want two rows", tex.Descriptor())
	}
	// Row 1 starts at element 32, not after row 0's last element.
	if e := out.Element(32); e != [4]float32{32, 32, -32, -32} {
		t.Errorf("element 32 = %v", e)
	}
	if e := out.Element(31); e != [4]float32{31, 31, -31, -31} {
		t.Errorf("element 31 = %v", e)
	}
	if !sameBits(out.Values, in.Values) {
		t.Error("identity changed the array")
	}
}

func TestSumPairs(t *testing.T) {
	_, p := newCPUPipeline(t, nil)

	elems := make([][4]float32, 64)
	for k := range elems {
		f := float32(k)
		elems[k] = [4]float32{f, f, -f, -f}
	}
	out, err := p.Run(gpgpu.Quads(elems), kernels.SumPairs())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Channels != 2 || out.Len() != 64 {
		t.Fatalf("output = %v, want 64 pairs", out)
	}
	for k := 0; k < out.Len(); k++ {
		want := [4]float32{2 * float32(k), -2 * float32(k)}
		if e := out.Element(k); e != want {
			t.Errorf("element %d = %v, want %v", k, e, want)
		}
	}
}

func TestSentinelCoverage(t *testing.T) {
	const sentinel = -12345.5
	dev, p := newCPUPipeline(t,
		[]cpu.Option{cpu.WithRowPitchAlignment(256)},
		gpgpu.WithAlignment(1))

	in := gpgpu.Scalars(make([]float32, 15))
	layout, err := p.Plan(in, gpgpu.FormatUndefined)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if layout.Width != 15 {
		t.Fatalf("layout = %v, want 15 wide", layout)
	}

	out, err := p.Run(in, kernels.Sentinel(gpgpu.SingleFloat, sentinel))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, v := range out.Values {
		if v != sentinel {
			t.Errorf("texel %d = %v, want sentinel", i, v)
		}
	}

	target, _ := p.Resources().Target()
	counts, err := dev.WriteCounts(target)
	if err != nil {
		t.Fatalf("WriteCounts: %v", err)
	}
	for i, n := range counts {
		if n != 1 {
			t.Errorf("texel %d written %d times, want 1", i, n)
		}
	}
}

func TestPaddedRowsRoundTrip(t *testing.T) {
	_, p := newCPUPipeline(t,
		[]cpu.Option{cpu.WithRowPitchAlignment(256)},
		gpgpu.WithAlignment(1), gpgpu.WithWidth(5))

	values := []float32{
		float32(math.Inf(1)), float32(math.Inf(-1)),
		math.Float32frombits(0x80000000), math.Float32frombits(0x00000001),
		math.MaxFloat32, -1, 0.1, 3,
		1e-30, -2.5, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
		17, 18, 19, 20,
		21, 22, 23, 24,
		25, 26, 27, 28,
	}
	in := gpgpu.LogicalArray{Channels: 2, Values: values[:30]}

	out, err := p.Run(in, kernels.Identity(gpgpu.FloatPair))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !sameBits(out.Values, in.Values) {
		t.Errorf("round trip through padded rows changed bits:\n got %v\nwant %v", out.Values, in.Values)
	}
}

func TestScaleAndNegate(t *testing.T) {
	_, p := newCPUPipeline(t, nil)
	in := gpgpu.Scalars([]float32{1, -2, 3, -4})

	out, err := p.Run(in, kernels.Scale(gpgpu.SingleFloat, 0.5))
	if err != nil {
		t.Fatalf("Run(scale): %v", err)
	}
	if !sameBits(out.Values, []float32{0.5, -1, 1.5, -2}) {
		t.Errorf("Scale = %v", out.Values)
	}

	out, err = p.Run(in, kernels.Negate(gpgpu.SingleFloat))
	if err != nil {
		t.Fatalf("Run(negate): %v", err)
	}
	if !sameBits(out.Values, []float32{-1, 2, -3, 4}) {
		t.Errorf("Negate = %v", out.Values)
	}
}

func TestShapeChange(t *testing.T) {
	_, p := newCPUPipeline(t, nil)

	first, err := p.Run(gpgpu.Scalars([]float32{1, 2, 3, 4}), kernels.Identity(gpgpu.SingleFloat))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	firstTarget, _ := p.Resources().Target()

	second, err := p.Run(gpgpu.Scalars([]float32{5, 6}), kernels.Identity(gpgpu.SingleFloat))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	secondTarget, _ := p.Resources().Target()

	if firstTarget == secondTarget {
		t.Error("render target not recreated for the new shape")
	}
	if first.Len() != 4 || second.Len() != 2 || second.Values[1] != 6 {
		t.Errorf("results = %v, %v", first.Values, second.Values)
	}
}

func TestRunErrors(t *testing.T) {
	t.Run("unaligned element count", func(t *testing.T) {
		_, p := newCPUPipeline(t, nil, gpgpu.WithAlignment(32))
		_, err := p.Run(gpgpu.Scalars(make([]float32, 33)), kernels.Identity(gpgpu.SingleFloat))
		if !errors.Is(err, gpgpu.ErrInvalidShape) {
			t.Errorf("error = %v, want ErrInvalidShape", err)
		}
	})

	t.Run("three channels", func(t *testing.T) {
		_, p := newCPUPipeline(t, nil)
		_, err := p.Run(gpgpu.LogicalArray{Channels: 3, Values: make([]float32, 6)}, kernels.Identity(gpgpu.FloatQuad))
		var shapeErr *gpgpu.InvalidShapeError
		if !errors.As(err, &shapeErr) || !errors.Is(err, gpgpu.ErrInvalidShape) {
			t.Errorf("error = %v, want *InvalidShapeError", err)
		}
	})

	t.Run("partial tuple", func(t *testing.T) {
		_, p := newCPUPipeline(t, nil)
		_, err := p.Run(gpgpu.LogicalArray{Channels: 2, Values: make([]float32, 3)}, kernels.Identity(gpgpu.FloatPair))
		if !errors.Is(err, gpgpu.ErrBufferOverflow) {
			t.Errorf("error = %v, want ErrBufferOverflow", err)
		}
	})

	t.Run("closed", func(t *testing.T) {
		_, p := newCPUPipeline(t, nil)
		_ = p.Close()
		_, err := p.Run(gpgpu.Scalars([]float32{1}), kernels.Identity(gpgpu.SingleFloat))
		if !errors.Is(err, gpgpu.ErrClosed) {
			t.Errorf("error = %v, want ErrClosed", err)
		}
	})

	t.Run("device lost", func(t *testing.T) {
		dev, p := newCPUPipeline(t, nil)
		in := gpgpu.Scalars([]float32{1, 2})
		if _, err := p.Run(in, kernels.Identity(gpgpu.SingleFloat)); err != nil {
			t.Fatalf("Run: %v", err)
		}
		dev.Lose()
		if _, err := p.Run(in, kernels.Identity(gpgpu.SingleFloat)); !errors.Is(err, cpu.ErrDeviceLost) {
			t.Errorf("error = %v, want ErrDeviceLost", err)
		}
	})
}

func TestReadbackAfterDeviceLoss(t *testing.T) {
	dev, p := newCPUPipeline(t, nil, gpgpu.WithAlignment(1))
	in := gpgpu.Scalars([]float32{1, 2, 3, 4})
	s := kernels.Identity(gpgpu.SingleFloat)
	if _, err := p.Run(in, s); err != nil {
		t.Fatalf("Run: %v", err)
	}

	res := p.Resources()
	vs, err := dev.CreateProgram(s.Vertex)
	if err != nil {
		t.Fatal(err)
	}
	fs, err := dev.CreateProgram(s.Fragment)
	if err != nil {
		t.Fatal(err)
	}
	quad, _ := res.CreateQuad()
	sampler, _ := res.CreateSampler()
	_, inputView := res.Input()
	target, targetView := res.Target()

	d := gpgpu.NewDispatcher(dev.Context(), quad, gpgpu.Programs{Vertex: vs, Fragment: fs})
	if err := d.Dispatch(inputView, gpgpu.BindTarget(sampler, targetView)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := dev.Context().Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	dev.Lose()
	_, err = gpgpu.Readback(dev.Context(), target, res.Staging())
	var rbErr *gpgpu.ReadbackError
	if !errors.As(err, &rbErr) || !errors.Is(err, gpgpu.ErrReadback) {
		t.Fatalf("Readback error = %v, want *ReadbackError", err)
	}
	if !errors.Is(err, cpu.ErrDeviceLost) {
		t.Errorf("Readback error = %v, want it to wrap ErrDeviceLost", err)
	}
}

func TestSameLabelKernelsStayDistinct(t *testing.T) {
	_, p := newCPUPipeline(t, nil, gpgpu.WithAlignment(1))
	in := gpgpu.Scalars([]float32{1, 2, 3, 4})

	mul := func(f float32) gpgpu.FragmentFunc {
		return func(s gpgpu.TexelSampler, uv [2]float32) [4]float32 {
			v := s.Sample(uv[0], uv[1])
			return [4]float32{v[0] * f, v[1] * f, v[2] * f, v[3] * f}
		}
	}
	tests := []struct {
		factor float32
		want   []float32
	}{
		{2, []float32{2, 4, 6, 8}},
		{3, []float32{3, 6, 9, 12}},
		{2, []float32{2, 4, 6, 8}},
	}
	for _, tt := range tests {
		out, err := p.Run(in, kernels.Custom("mul", "", mul(tt.factor), gpgpu.SingleFloat))
		if err != nil {
			t.Fatalf("Run(x%g): %v", tt.factor, err)
		}
		if !sameBits(out.Values, tt.want) {
			t.Errorf("Run(x%g) = %v, want %v", tt.factor, out.Values, tt.want)
		}
	}
}
