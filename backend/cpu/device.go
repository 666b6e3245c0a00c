package cpu

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpgpu"
	"github.com/gogpu/gpgpu/backend"
	"github.com/gogpu/gpgpu/internal/parallel"
)

// AdapterName is the adapter name the CPU device reports in its Caps.
const AdapterName = "gpgpu CPU reference rasterizer"

// Device errors.
var (
	ErrClosed              = errors.New("cpu: device closed")
	ErrDeviceLost          = errors.New("cpu: device lost")
	ErrForeignHandle       = errors.New("cpu: handle belongs to another device")
	ErrDestroyed           = errors.New("cpu: use of destroyed resource")
	ErrNoFunc              = errors.New("cpu: program has no Go function for its stage")
	ErrUnsupportedFilter   = errors.New("cpu: only nearest filtering is supported")
	ErrUnsupportedTopology = errors.New("cpu: unsupported primitive topology")
	ErrNoPositionAttribute = errors.New("cpu: input layout has no Float32x2 position at location 0")
	ErrVertexOutOfRange    = errors.New("cpu: vertex fetch out of range")
	ErrViewRole            = errors.New("cpu: view kind not allowed for texture role")
	ErrNotStaging          = errors.New("cpu: texture is not CPU readable")
	ErrAlreadyMapped       = errors.New("cpu: texture already mapped")
	ErrNotMapped           = errors.New("cpu: texture not mapped")
	ErrBindHazard          = errors.New("cpu: texture bound for reading and writing")
	ErrIncompleteState     = errors.New("cpu: draw with incomplete pipeline state")
)

func init() {
	backend.Register("cpu", 10, func(o backend.Options) (gpgpu.Device, error) {
		return New(
			WithRowPitchAlignment(o.RowPitchAlignment),
			WithMaxTextureDimension(o.MaxTextureDimension),
		), nil
	}, nil)
}

type config struct {
	rowPitchAlignment   int
	maxTextureDimension int
	workers             int
}

// Option configures a CPU device.
type Option func(*config)

// WithRowPitchAlignment pads staging rows to a multiple of n bytes, the
// way GPU texture-to-buffer copies do. n <= 1 means tight rows.
func WithRowPitchAlignment(n int) Option {
	return func(c *config) {
		if n > 1 {
			c.rowPitchAlignment = n
		}
	}
}

// WithMaxTextureDimension sets the largest texture width or height.
// n <= 0 keeps the default of gpgpu.DefaultMaxDimension.
func WithMaxTextureDimension(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxTextureDimension = n
		}
	}
}

// WithWorkers sets how many goroutines shade a draw. n <= 0 means
// GOMAXPROCS; 1 shades on the queue goroutine alone.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// Device is the CPU reference implementation of gpgpu.Device.
type Device struct {
	caps   gpgpu.Caps
	q      *queue
	pool   *parallel.Pool
	ctx    *immediateContext
	closed atomic.Bool
	lost   atomic.Bool
}

var _ gpgpu.Device = (*Device)(nil)

// New creates a CPU device and starts its queue goroutine.
func New(opts ...Option) *Device {
	c := config{maxTextureDimension: gpgpu.DefaultMaxDimension}
	for _, opt := range opts {
		opt(&c)
	}

	d := &Device{
		caps: gpgpu.Caps{
			Adapter: gpucontext.AdapterInfo{
				Name: AdapterName,
				Type: gpucontext.AdapterTypeSoftware,
			},
			MaxTextureDimension: c.maxTextureDimension,
			RowPitchAlignment:   c.rowPitchAlignment,
			HostPrograms:        true,
		},
		q:    newQueue(),
		pool: parallel.NewPool(c.workers),
	}
	d.ctx = &immediateContext{dev: d}
	return d
}

// Caps implements gpgpu.Device.
func (d *Device) Caps() gpgpu.Caps { return d.caps }

// CreateTexture implements gpgpu.Device.
func (d *Device) CreateTexture(desc gpgpu.TextureDescriptor, data []byte) (gpgpu.Texture, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	if err := desc.Validate(d.caps); err != nil {
		return nil, err
	}

	t := &texture{desc: desc}
	n := desc.Layout().Elements()
	switch desc.Role {
	case gpgpu.ImmutableInput:
		if len(data) != desc.Layout().Size() {
			return nil, fmt.Errorf("cpu: initial data is %d bytes, want %d", len(data), desc.Layout().Size())
		}
		arr, err := gpgpu.Decode(data, desc, 0)
		if err != nil {
			return nil, fmt.Errorf("cpu: initial data: %w", err)
		}
		t.texels = arr.Values
	case gpgpu.RenderTarget:
		t.texels = make([]float32, n*desc.Format.Channels())
		t.writes = make([]uint32, n)
	case gpgpu.StagingReadback:
		t.rowPitch = alignUp(desc.Layout().RowPitch(), d.caps.RowPitchAlignment)
		t.bytes = make([]byte, t.rowPitch*desc.Height)
	}
	return t, nil
}

// CreateView implements gpgpu.Device.
func (d *Device) CreateView(tex gpgpu.Texture, kind gpgpu.ViewKind) (gpgpu.View, error) {
	t, ok := tex.(*texture)
	if !ok || t == nil {
		return nil, ErrForeignHandle
	}
	if t.destroyed {
		return nil, ErrDestroyed
	}
	role := t.desc.Role
	switch {
	case kind == gpgpu.ViewShaderResource && (role == gpgpu.ImmutableInput || role == gpgpu.RenderTarget):
	case kind == gpgpu.ViewRenderTarget && role == gpgpu.RenderTarget:
	default:
		return nil, fmt.Errorf("%w: %s view of %s", ErrViewRole, kind, role)
	}
	return &view{tex: t, kind: kind}, nil
}

// CreateVertexBuffer implements gpgpu.Device.
func (d *Device) CreateVertexBuffer(label string, data []byte) (gpgpu.Buffer, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	return &buffer{label: label, data: append([]byte(nil), data...)}, nil
}

// CreateSampler implements gpgpu.Device.
func (d *Device) CreateSampler(desc gpgpu.SamplerDescriptor) (gpgpu.Sampler, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	if desc.Filter != gputypes.FilterModeNearest {
		return nil, ErrUnsupportedFilter
	}
	return &sampler{desc: desc}, nil
}

// CreateProgram implements gpgpu.Device. Only the Go function matching the
// stage is used; WGSL is ignored.
func (d *Device) CreateProgram(src gpgpu.ShaderSource) (gpgpu.Program, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	p := &program{label: src.Label, stage: src.Stage}
	switch src.Stage {
	case gputypes.ShaderStageVertex:
		p.vertex = src.Vertex
		if p.vertex == nil {
			return nil, fmt.Errorf("%w: vertex %q", ErrNoFunc, src.Label)
		}
	case gputypes.ShaderStageFragment:
		p.fragment = src.Fragment
		if p.fragment == nil {
			return nil, fmt.Errorf("%w: fragment %q", ErrNoFunc, src.Label)
		}
	default:
		return nil, fmt.Errorf("%w: stage %d of %q", ErrNoFunc, src.Stage, src.Label)
	}
	return p, nil
}

// DestroyTexture implements gpgpu.Device. It waits for submitted work that
// may still read or write the texture.
func (d *Device) DestroyTexture(tex gpgpu.Texture) {
	t, ok := tex.(*texture)
	if !ok || t == nil || t.destroyed {
		return
	}
	d.drain()
	t.destroyed = true
	t.texels, t.writes, t.bytes = nil, nil, nil
}

// DestroyView implements gpgpu.Device.
func (d *Device) DestroyView(gpgpu.View) {}

// DestroyBuffer implements gpgpu.Device.
func (d *Device) DestroyBuffer(buf gpgpu.Buffer) {
	b, ok := buf.(*buffer)
	if !ok || b == nil {
		return
	}
	d.drain()
	b.data = nil
}

// DestroySampler implements gpgpu.Device.
func (d *Device) DestroySampler(gpgpu.Sampler) {}

// DestroyProgram implements gpgpu.Device.
func (d *Device) DestroyProgram(gpgpu.Program) {}

// Context implements gpgpu.Device.
func (d *Device) Context() gpgpu.Context { return d.ctx }

// Close submits recorded work, waits for it and stops the queue.
func (d *Device) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	err := d.ctx.submit()
	if werr := d.q.waitIdle(); err == nil {
		err = werr
	}
	d.q.close()
	d.pool.Close()
	return err
}

// Lose simulates device removal: every later Draw, Flush and Map fails
// with ErrDeviceLost.
func (d *Device) Lose() { d.lost.Store(true) }

// WriteCounts returns how many times each texel of a render target was
// written by the most recent draw into it, in row-major order. It waits
// for submitted work first.
func (d *Device) WriteCounts(tex gpgpu.Texture) ([]uint32, error) {
	t, ok := tex.(*texture)
	if !ok || t == nil {
		return nil, ErrForeignHandle
	}
	if t.desc.Role != gpgpu.RenderTarget {
		return nil, fmt.Errorf("cpu: write counts of %s", t.desc.Role)
	}
	if err := d.q.waitIdle(); err != nil {
		return nil, err
	}
	return append([]uint32(nil), t.writes...), nil
}

// drain waits for in-flight batches. Execution errors stay pending for the
// next Map.
func (d *Device) drain() {
	if d.closed.Load() {
		return
	}
	if err := d.q.waitIdle(); err != nil {
		d.q.mu.Lock()
		if d.q.err == nil {
			d.q.err = err
		}
		d.q.mu.Unlock()
	}
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
