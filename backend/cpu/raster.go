package cpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpgpu"
	"github.com/gogpu/gpgpu/internal/parallel"
)

// screenVertex is a vertex after the viewport transform, with the texture
// coordinate derived from its quad position.
type screenVertex struct {
	x, y float64
	uv   [2]float64
}

// Draws are shaded in row bands. Small targets stay in one band.
const (
	bandsPerWorker = 2
	minBandTexels  = 4096
)

// rect is a half-open pixel rectangle.
type rect struct {
	x0, y0, x1, y1 int
}

// edge returns twice the signed area of (a, b, p). It is positive when p
// lies to the right of a->b in y-down screen space.
func edge(a, b screenVertex, px, py float64) float64 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// topLeft reports whether a->b is a top or left edge of a triangle with
// positive area. Pixel centres exactly on such an edge belong to the
// triangle; centres on the other edges belong to the neighbour.
func topLeft(a, b screenVertex) bool {
	dy := b.y - a.y
	return dy < 0 || (dy == 0 && b.x > a.x)
}

func covers(w float64, a, b screenVertex) bool {
	return w > 0 || (w == 0 && topLeft(a, b))
}

// rasterTriangle calls frag for every pixel of clip whose centre is inside
// the triangle, passing the interpolated texture coordinate.
func rasterTriangle(a, b, c screenVertex, clip rect, frag func(x, y int, uv [2]float32)) {
	area := edge(a, b, c.x, c.y)
	if area == 0 {
		return
	}
	if area < 0 {
		b, c = c, b
		area = -area
	}

	x0 := max(clip.x0, int(math.Floor(min(a.x, b.x, c.x))))
	y0 := max(clip.y0, int(math.Floor(min(a.y, b.y, c.y))))
	x1 := min(clip.x1, int(math.Ceil(max(a.x, b.x, c.x))))
	y1 := min(clip.y1, int(math.Ceil(max(a.y, b.y, c.y))))

	for y := y0; y < y1; y++ {
		py := float64(y) + 0.5
		for x := x0; x < x1; x++ {
			px := float64(x) + 0.5
			wa := edge(b, c, px, py)
			wb := edge(c, a, px, py)
			wc := edge(a, b, px, py)
			if !covers(wa, b, c) || !covers(wb, c, a) || !covers(wc, a, b) {
				continue
			}
			la, lb, lc := wa/area, wb/area, wc/area
			frag(x, y, [2]float32{
				float32(la*a.uv[0] + lb*b.uv[0] + lc*c.uv[0]),
				float32(la*a.uv[1] + lb*b.uv[1] + lc*c.uv[1]),
			})
		}
	}
}

// triangles splits a vertex run into triangles. Odd strip triangles swap
// their first two vertices so every triangle keeps the strip's winding.
func triangles(topology gputypes.PrimitiveTopology, n int) ([][3]int, error) {
	var tris [][3]int
	switch topology {
	case gputypes.PrimitiveTopologyTriangleStrip:
		for i := 0; i+2 < n; i++ {
			if i%2 == 0 {
				tris = append(tris, [3]int{i, i + 1, i + 2})
			} else {
				tris = append(tris, [3]int{i + 1, i, i + 2})
			}
		}
	case gputypes.PrimitiveTopologyTriangleList:
		for i := 0; i+2 < n; i += 3 {
			tris = append(tris, [3]int{i, i + 1, i + 2})
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTopology, topology)
	}
	return tris, nil
}

// fetchPositions reads count 2-float positions from the bound vertex buffer.
func fetchPositions(s *drawState, first, count int) ([][2]float32, error) {
	attr, ok := positionAttribute(s.layout)
	if !ok {
		return nil, ErrNoPositionAttribute
	}
	stride := s.stride
	if stride == 0 {
		stride = s.layout.Stride
	}
	data := s.vb.data
	out := make([][2]float32, count)
	for i := range out {
		off := s.offset + (first+i)*stride + attr.Offset
		if off < 0 || off+8 > len(data) {
			return nil, fmt.Errorf("%w: vertex %d at byte %d, buffer %d bytes",
				ErrVertexOutOfRange, first+i, off, len(data))
		}
		out[i] = [2]float32{
			math.Float32frombits(binary.LittleEndian.Uint32(data[off:])),
			math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:])),
		}
	}
	return out, nil
}

func positionAttribute(layout gpgpu.InputLayout) (gpgpu.VertexAttribute, bool) {
	for _, a := range layout.Attributes {
		if a.Location == 0 && a.Format == gputypes.VertexFormatFloat32x2 {
			return a, true
		}
	}
	return gpgpu.VertexAttribute{}, false
}

// toScreen applies the vertex program and the viewport transform. The
// texture coordinate follows the quad convention: (-1, 1) maps to (0, 0)
// and (1, -1) to (1, 1).
func toScreen(pos [2]float32, vs gpgpu.VertexFunc, vp gpgpu.Viewport) screenVertex {
	clip := vs(pos)
	x, y := float64(clip[0]), float64(clip[1])
	if w := float64(clip[3]); w != 0 && w != 1 {
		x, y = x/w, y/w
	}
	return screenVertex{
		x: float64(vp.X) + (x+1)*0.5*float64(vp.Width),
		y: float64(vp.Y) + (1-y)*0.5*float64(vp.Height),
		uv: [2]float64{
			float64(pos[0])*0.5 + 0.5,
			0.5 - float64(pos[1])*0.5,
		},
	}
}

// draw executes one recorded draw against its state snapshot.
func draw(s *drawState, pool *parallel.Pool, vertexCount, firstVertex int) error {
	rt := s.rtv.tex
	if rt.destroyed || s.vb == nil || (s.srv != nil && s.srv.tex.destroyed) {
		return ErrDestroyed
	}

	positions, err := fetchPositions(s, firstVertex, vertexCount)
	if err != nil {
		return err
	}
	tris, err := triangles(s.topology, vertexCount)
	if err != nil {
		return err
	}

	verts := make([]screenVertex, len(positions))
	for i, p := range positions {
		verts[i] = toScreen(p, s.vs.vertex, s.viewport)
	}

	w, h := rt.desc.Width, rt.desc.Height
	vp := s.viewport
	clip := rect{
		x0: max(0, int(math.Floor(float64(vp.X)))),
		y0: max(0, int(math.Floor(float64(vp.Y)))),
		x1: min(w, int(math.Ceil(float64(vp.X+vp.Width)))),
		y1: min(h, int(math.Ceil(float64(vp.Y+vp.Height)))),
	}

	var in *texture
	if s.srv != nil {
		in = s.srv.tex
	}
	sample := samplerFor(in, s.sampler)
	ch := rt.channels()
	clear(rt.writes)

	// Bands are disjoint row ranges, so workers never write the same texel.
	shade := func(band rect) {
		for _, t := range tris {
			rasterTriangle(verts[t[0]], verts[t[1]], verts[t[2]], band, func(x, y int, uv [2]float32) {
				out := s.fs.fragment(sample, uv)
				i := y*w + x
				copy(rt.texels[i*ch:(i+1)*ch], out[:ch])
				rt.writes[i]++
			})
		}
	}

	if pool == nil || clip.x1 <= clip.x0 {
		shade(clip)
		return nil
	}
	minRows := max(1, minBandTexels/(clip.x1-clip.x0))
	bands := parallel.Bands(clip.y0, clip.y1, pool.Workers()*bandsPerWorker, minRows)
	jobs := make([]func(), len(bands))
	for i, b := range bands {
		band := rect{x0: clip.x0, y0: b[0], x1: clip.x1, y1: b[1]}
		jobs[i] = func() { shade(band) }
	}
	pool.Run(jobs)
	return nil
}
