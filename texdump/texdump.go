// Package texdump renders logical arrays as images for inspection.
//
// Every channel is normalized to the full 16-bit range using the minimum
// and maximum finite value of the whole array. Single-channel arrays
// become gray images; FloatPair arrays map (x, y) to red and green;
// FloatQuad arrays map (x, y, z) to red, green and blue. Alpha is always
// opaque so w is not shown.
package texdump

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"github.com/gogpu/gpgpu"
)

// ErrLayout is returned when an array does not fill its layout.
var ErrLayout = errors.New("texdump: array does not match layout")

// Image converts arr, laid out as l, to a 16-bit image one pixel per texel.
func Image(arr gpgpu.LogicalArray, l gpgpu.Layout) (image.Image, error) {
	if arr.Channels != l.Format.Channels() || arr.Len() != l.Elements() || l.Elements() == 0 {
		return nil, fmt.Errorf("%w: %s for %s", ErrLayout, arr, l)
	}

	n := newNormalizer(arr.Values)
	rect := image.Rect(0, 0, l.Width, l.Height)

	if arr.Channels == 1 {
		img := image.NewGray16(rect)
		for i, v := range arr.Values {
			img.SetGray16(i%l.Width, i/l.Width, color.Gray16{Y: n.level(v)})
		}
		return img, nil
	}

	img := image.NewRGBA64(rect)
	for i := 0; i < arr.Len(); i++ {
		e := arr.Element(i)
		c := color.RGBA64{R: n.level(e[0]), G: n.level(e[1]), A: math.MaxUint16}
		if arr.Channels == 4 {
			c.B = n.level(e[2])
		}
		img.SetRGBA64(i%l.Width, i/l.Width, c)
	}
	return img, nil
}

// WriteTIFF upscales img by an integer factor with nearest-neighbour
// sampling, so every texel stays a sharp block, and writes it as a
// deflate-compressed TIFF.
func WriteTIFF(w io.Writer, img image.Image, scale int) error {
	scale = max(scale, 1)
	b := img.Bounds()
	dr := image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale)

	var dst draw.Image
	if _, ok := img.(*image.Gray16); ok {
		dst = image.NewGray16(dr)
	} else {
		dst = image.NewRGBA64(dr)
	}
	draw.NearestNeighbor.Scale(dst, dr, img, b, draw.Src, nil)

	if err := tiff.Encode(w, dst, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
		return fmt.Errorf("texdump: encode: %w", err)
	}
	return nil
}

// normalizer maps floats linearly from [lo, hi] to [0, 65535].
type normalizer struct {
	lo, hi float64
}

func newNormalizer(values []float32) normalizer {
	n := normalizer{lo: math.Inf(1), hi: math.Inf(-1)}
	for _, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		n.lo = math.Min(n.lo, f)
		n.hi = math.Max(n.hi, f)
	}
	return n
}

func (n normalizer) level(v float32) uint16 {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return 0
	case math.IsInf(f, 1):
		return math.MaxUint16
	case math.IsInf(f, -1):
		return 0
	case n.hi <= n.lo:
		return math.MaxUint16 / 2
	}
	t := (f - n.lo) / (n.hi - n.lo)
	return uint16(math.Round(t * math.MaxUint16))
}
