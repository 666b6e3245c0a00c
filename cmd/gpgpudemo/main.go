// Command gpgpudemo runs small kernels through the gpgpu pipeline and
// prints the input and decoded output tuples.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/gpgpu"
	"github.com/gogpu/gpgpu/backend"
	_ "github.com/gogpu/gpgpu/backend/cpu"
	"github.com/gogpu/gpgpu/kernels"
	"github.com/gogpu/gpgpu/texdump"
)

// maxPrinted bounds the tuples listed per array.
const maxPrinted = 16

type demo struct {
	input   func(width, height int) gpgpu.LogicalArray
	shaders gpgpu.Shaders
	width   int
	height  int
	relaxed bool
}

var demos = map[string]demo{
	"hello": {
		input: func(w, h int) gpgpu.LogicalArray {
			values := make([]float32, 0, w*h)
			for i := 0; len(values) < w*h; i++ {
				values = append(values, float32(i+1), -float32(i+1))
			}
			return gpgpu.Scalars(values[:w*h])
		},
		shaders: kernels.Identity(gpgpu.SingleFloat),
		width:   8,
		height:  1,
		relaxed: true,
	},
	"pairs": {
		input: func(w, h int) gpgpu.LogicalArray {
			elems := make([][2]float32, w*h)
			for i := range elems {
				elems[i] = [2]float32{float32(i + 1), -float32(i + 1)}
			}
			return gpgpu.Pairs(elems)
		},
		shaders: kernels.Identity(gpgpu.FloatPair),
		width:   32,
		height:  2,
	},
	"quads": {
		input: func(w, h int) gpgpu.LogicalArray {
			elems := make([][4]float32, w*h)
			for k := range elems {
				f := float32(k)
				elems[k] = [4]float32{f, f, -f, -f}
			}
			return gpgpu.Quads(elems)
		},
		shaders: kernels.SumPairs(),
		width:   32,
		height:  2,
	},
}

func main() {
	var (
		name     = flag.String("demo", "hello", "demo to run: hello, pairs or quads")
		backName = flag.String("backend", "", "backend name (default: best available)")
		width    = flag.Int("width", 0, "texture width (default: per demo)")
		height   = flag.Int("height", 0, "texture height (default: per demo)")
		align    = flag.Int("align", 0, "width alignment in texels (default: from device row pitch)")
		dump     = flag.String("dump", "", "write the output texture to this TIFF file")
		scale    = flag.Int("scale", 8, "pixel size of one texel in the dump")
		verbose  = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		gpgpu.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	d, ok := demos[*name]
	if !ok {
		log.Fatalf("unknown demo %q", *name)
	}
	if *width > 0 {
		d.width = *width
	}
	if *height > 0 {
		d.height = *height
	}

	if err := run(d, *backName, *align, *dump, *scale); err != nil {
		log.Fatal(err)
	}
}

func run(d demo, backName string, align int, dump string, scale int) error {
	dev, err := openDevice(backName)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil {
			log.Printf("close device: %v", cerr)
		}
	}()

	opts := []gpgpu.Option{gpgpu.WithWidth(d.width), gpgpu.WithLabel("gpgpudemo")}
	switch {
	case align > 0:
		opts = append(opts, gpgpu.WithAlignment(align))
	case d.relaxed:
		opts = append(opts, gpgpu.WithAlignment(1))
	}
	p := gpgpu.New(dev, opts...)
	defer p.Close()

	in := d.input(d.width, d.height)
	layout, err := p.Plan(in, d.shaders.Output)
	if err != nil {
		return err
	}

	out, err := p.Run(in, d.shaders)
	if err != nil {
		return err
	}

	pr := message.NewPrinter(language.English)
	caps := dev.Caps()
	pr.Printf("Adapter: %s (%s)\n", caps.Adapter.Name, caps.Adapter.Type)
	pr.Printf("Texture Size: (%d,%d) - Count: %d\n", layout.Width, layout.Height, in.Len())
	printArray(pr, "Input", in)
	printArray(pr, "Output", out)

	if dump == "" {
		return nil
	}
	outLayout := layout
	if d.shaders.Output != gpgpu.FormatUndefined {
		outLayout.Format = d.shaders.Output
	}
	return writeDump(dump, out, outLayout, scale)
}

func openDevice(name string) (gpgpu.Device, error) {
	opts := backend.Options{PreferDiscrete: true}
	if name == "" {
		return backend.Open(opts)
	}
	return backend.OpenByName(name, opts)
}

func printArray(pr *message.Printer, title string, arr gpgpu.LogicalArray) {
	pr.Printf("%s (%d x %d):\n", title, arr.Len(), arr.Channels)
	n := min(arr.Len(), maxPrinted)
	for i := 0; i < n; i++ {
		e := arr.Values[i*arr.Channels : (i+1)*arr.Channels]
		parts := make([]string, len(e))
		for j, v := range e {
			parts[j] = pr.Sprintf("%g", v)
		}
		pr.Printf("  [%d] (%s)\n", i, strings.Join(parts, ", "))
	}
	if rest := arr.Len() - n; rest > 0 {
		pr.Printf("  ... %d more\n", rest)
	}
}

func writeDump(path string, arr gpgpu.LogicalArray, l gpgpu.Layout, scale int) error {
	img, err := texdump.Image(arr, l)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := texdump.WriteTIFF(f, img, scale); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "dump saved to %s (%dx%d)\n", path, l.Width*max(scale, 1), l.Height*max(scale, 1))
	return nil
}
