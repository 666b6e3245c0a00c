package gpgpu

import (
	"encoding/binary"
	"math"
)

// floatWriter writes little-endian float32 values into a fixed byte region.
// Every write is bounds checked against the region.
type floatWriter struct {
	buf []byte
	off int
}

// put writes v at the cursor and advances by 4 bytes.
// It reports false when the region is exhausted.
func (w *floatWriter) put(v float32) bool {
	if w.off < 0 || w.off+4 > len(w.buf) {
		return false
	}
	binary.LittleEndian.PutUint32(w.buf[w.off:], math.Float32bits(v))
	w.off += 4
	return true
}

// seek moves the cursor to an absolute byte offset.
func (w *floatWriter) seek(off int) { w.off = off }

// floatReader reads little-endian float32 values from a fixed byte region
// with an explicit element stride.
type floatReader struct {
	buf []byte
	off int
}

// next reads the float at the cursor and advances by 4 bytes.
func (r *floatReader) next() (float32, bool) {
	if r.off < 0 || r.off+4 > len(r.buf) {
		return 0, false
	}
	v := math.Float32frombits(binary.LittleEndian.Uint32(r.buf[r.off:]))
	r.off += 4
	return v, true
}

func (r *floatReader) seek(off int) { r.off = off }

// pitchedExtent returns the bytes a pitched image of height rows occupies:
// full pitch for every row except the last, which only needs its texels.
func pitchedExtent(rowPitch, tightPitch, height int) int {
	if height <= 0 {
		return 0
	}
	return rowPitch*(height-1) + tightPitch
}
