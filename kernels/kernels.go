// Package kernels provides ready-made programs for gpgpu dispatches.
//
// Each program carries WGSL for GPU backends and an equivalent Go function
// for the CPU reference backend. The vertex stage is always the
// full-screen quad passthrough; fragment programs read the input texture
// through binding 0 (texture) and binding 1 (sampler) of group 0.
package kernels

import (
	_ "embed"
	"math"
	"strconv"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpgpu"
)

//go:embed shaders/quad.wgsl
var quadShaderWGSL string

//go:embed shaders/identity.wgsl
var identityShaderWGSL string

//go:embed shaders/sentinel.wgsl
var sentinelShaderWGSL string

//go:embed shaders/scale.wgsl
var scaleShaderWGSL string

//go:embed shaders/sum_pairs.wgsl
var sumPairsShaderWGSL string

const (
	vertexEntry   = "vs_main"
	fragmentEntry = "fs_main"
)

// Passthrough returns the vertex stage that forwards quad positions
// unchanged and derives texture coordinates from them.
func Passthrough() gpgpu.ShaderSource {
	return gpgpu.ShaderSource{
		Label:      "quad_passthrough",
		Stage:      gputypes.ShaderStageVertex,
		WGSL:       quadShaderWGSL,
		EntryPoint: vertexEntry,
		Vertex: func(pos [2]float32) [4]float32 {
			return [4]float32{pos[0], pos[1], 0, 1}
		},
	}
}

// Custom pairs a user kernel with the passthrough vertex stage. wgsl must
// declare fs_main and the group 0 bindings described in the package doc;
// fn is the CPU equivalent and may be nil for GPU-only kernels.
func Custom(label, wgsl string, fn gpgpu.FragmentFunc, out gpgpu.InputFormat) gpgpu.Shaders {
	return gpgpu.Shaders{
		Vertex: Passthrough(),
		Fragment: gpgpu.ShaderSource{
			Label:      label,
			Stage:      gputypes.ShaderStageFragment,
			WGSL:       wgsl,
			EntryPoint: fragmentEntry,
			Fragment:   fn,
		},
		Output: out,
	}
}

// Identity copies every input texel to the output unchanged.
func Identity(f gpgpu.InputFormat) gpgpu.Shaders {
	return Custom("identity", identityShaderWGSL, func(in gpgpu.TexelSampler, uv [2]float32) [4]float32 {
		return in.Sample(uv[0], uv[1])
	}, f)
}

// Sentinel writes value to every channel of every output texel without
// reading the input. It is used to verify that a dispatch covers the
// whole render target. Sentinel panics if value is NaN or infinite,
// since WGSL has no literal for it.
func Sentinel(f gpgpu.InputFormat, value float32) gpgpu.Shaders {
	mustBeFinite("Sentinel", value)
	src := strings.ReplaceAll(sentinelShaderWGSL, "SENTINEL_VALUE", wgslFloat(value))
	return Custom("sentinel_"+formatFloat(value), src, func(gpgpu.TexelSampler, [2]float32) [4]float32 {
		return [4]float32{value, value, value, value}
	}, f)
}

// Scale multiplies every channel by factor. Scale panics if factor is
// NaN or infinite.
func Scale(f gpgpu.InputFormat, factor float32) gpgpu.Shaders {
	mustBeFinite("Scale", factor)
	src := strings.ReplaceAll(scaleShaderWGSL, "SCALE_FACTOR", wgslFloat(factor))
	return Custom("scale_"+formatFloat(factor), src, func(in gpgpu.TexelSampler, uv [2]float32) [4]float32 {
		t := in.Sample(uv[0], uv[1])
		return [4]float32{t[0] * factor, t[1] * factor, t[2] * factor, t[3] * factor}
	}, f)
}

// Negate flips the sign of every channel.
func Negate(f gpgpu.InputFormat) gpgpu.Shaders {
	return Scale(f, -1)
}

// SumPairs reduces FloatQuad texels (x, y, z, w) to FloatPair texels
// (x+y, z+w).
func SumPairs() gpgpu.Shaders {
	return Custom("sum_pairs", sumPairsShaderWGSL, func(in gpgpu.TexelSampler, uv [2]float32) [4]float32 {
		t := in.Sample(uv[0], uv[1])
		return [4]float32{t[0] + t[1], t[2] + t[3], 0, 1}
	}, gpgpu.FloatPair)
}

func mustBeFinite(kernel string, v float32) {
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		panic("kernels: " + kernel + " constant must be finite, got " + formatFloat(v))
	}
}

// wgslFloat formats a finite v as a parenthesized WGSL f32 literal.
func wgslFloat(v float32) string {
	s := formatFloat(v)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return "(" + s + ")"
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
