package cpu

import (
	"math"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpgpu"
)

// texelSampler point-samples a texture. It implements gpgpu.TexelSampler.
type texelSampler struct {
	tex  *texture
	mode gputypes.AddressMode
}

// Sample returns the texel nearest to (u, v). An unbound texture reads as
// (0, 0, 0, 1).
func (s texelSampler) Sample(u, v float32) [4]float32 {
	out := [4]float32{0, 0, 0, 1}
	if s.tex == nil || s.tex.texels == nil {
		return out
	}
	w, h := s.tex.desc.Width, s.tex.desc.Height
	x := address(int(math.Floor(float64(u)*float64(w))), w, s.mode)
	y := address(int(math.Floor(float64(v)*float64(h))), h, s.mode)

	ch := s.tex.channels()
	base := (y*w + x) * ch
	copy(out[:ch], s.tex.texels[base:base+ch])
	return out
}

// address maps texel coordinate i into [0, n) according to mode.
func address(i, n int, mode gputypes.AddressMode) int {
	switch mode {
	case gputypes.AddressModeClampToEdge:
		return min(max(i, 0), n-1)
	case gputypes.AddressModeMirrorRepeat:
		period := 2 * n
		i %= period
		if i < 0 {
			i += period
		}
		if i >= n {
			i = period - 1 - i
		}
		return i
	default:
		i %= n
		if i < 0 {
			i += n
		}
		return i
	}
}

func samplerFor(tex *texture, s *sampler) gpgpu.TexelSampler {
	mode := gputypes.AddressModeClampToEdge
	if s != nil {
		mode = s.desc.AddressMode
	}
	return texelSampler{tex: tex, mode: mode}
}
