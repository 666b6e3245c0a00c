//go:build !nogpu

package native

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpgpu"
	"github.com/gogpu/gpgpu/backend"
)

// defaultCopyPitch is the WebGPU bytes-per-row alignment of
// texture-to-buffer copies, used when the adapter reports none.
const defaultCopyPitch = 256

func init() {
	backend.Register("native", 100, func(o backend.Options) (gpgpu.Device, error) {
		return Open(o)
	}, Available)
}

// Available reports whether a GPU HAL backend is registered. The noop
// backend does not count.
func Available() bool {
	for _, v := range hal.AvailableBackends() {
		if v != gputypes.BackendEmpty {
			return true
		}
	}
	return false
}

// Device implements gpgpu.Device on a gogpu/wgpu HAL device.
type Device struct {
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance
	info     gputypes.AdapterInfo
	caps     gpgpu.Caps

	ctx       *immediateContext
	pipelines *pipelineCache
	closed    atomic.Bool
}

var _ gpgpu.Device = (*Device)(nil)

// Open selects a HAL backend and adapter and opens a device on it.
// opts.Variant picks the backend; BackendEmpty picks the best registered
// GPU backend.
func Open(opts backend.Options) (*Device, error) {
	b, err := selectBackend(opts.Variant)
	if err != nil {
		return nil, err
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("native: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoGPU
	}
	selected := selectAdapter(adapters, opts.PreferDiscrete)

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open device: %w", err)
	}
	d := NewDevice(openDev, *selected)
	d.instance = instance
	return d, nil
}

// NewDevice wraps an open HAL device. The adapter's info and capabilities
// determine Caps. The device takes ownership of openDev.
func NewDevice(openDev hal.OpenDevice, adapter hal.ExposedAdapter) *Device {
	pitch := int(adapter.Capabilities.AlignmentsMask.BufferCopyPitch)
	if pitch <= 0 {
		pitch = defaultCopyPitch
	}
	d := &Device{
		device: openDev.Device,
		queue:  openDev.Queue,
		info:   adapter.Info,
		caps: gpgpu.Caps{
			Adapter: gpucontext.AdapterInfo{
				Name: adapter.Info.Name,
				Type: adapterType(adapter.Info.DeviceType),
			},
			MaxTextureDimension: int(adapter.Capabilities.Limits.MaxTextureDimension2D),
			RowPitchAlignment:   pitch,
		},
		pipelines: newPipelineCache(openDev.Device),
	}
	d.ctx = &immediateContext{dev: d}
	return d
}

func selectBackend(variant gputypes.Backend) (hal.Backend, error) {
	if variant != gputypes.BackendEmpty {
		b, ok := hal.GetBackend(variant)
		if !ok {
			return nil, fmt.Errorf("native: %s backend not registered: %w", variant, ErrNoGPU)
		}
		return b, nil
	}
	b, err := hal.SelectBestBackend()
	if err != nil || b.Variant() == gputypes.BackendEmpty {
		return nil, ErrNoGPU
	}
	return b, nil
}

func selectAdapter(adapters []hal.ExposedAdapter, preferDiscrete bool) *hal.ExposedAdapter {
	if preferDiscrete {
		for i := range adapters {
			if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU {
				return &adapters[i]
			}
		}
	}
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return &adapters[i]
		}
	}
	return &adapters[0]
}

func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}

// Caps implements gpgpu.Device.
func (d *Device) Caps() gpgpu.Caps { return d.caps }

// Info returns the HAL description of the adapter.
func (d *Device) Info() gputypes.AdapterInfo { return d.info }

// CreateTexture implements gpgpu.Device. Staging textures are
// host-visible buffers with rows padded to the copy pitch.
func (d *Device) CreateTexture(desc gpgpu.TextureDescriptor, data []byte) (gpgpu.Texture, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	if err := desc.Validate(d.caps); err != nil {
		return nil, err
	}
	t := &texture{desc: desc}
	w, h := uint32(desc.Width), uint32(desc.Height)

	if desc.Role == gpgpu.StagingReadback {
		t.rowPitch = alignUp(desc.Layout().RowPitch(), d.caps.RowPitchAlignment)
		buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
			Label: desc.Label,
			Size:  uint64(t.rowPitch) * uint64(h),
			Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, fmt.Errorf("native: create staging buffer: %w", err)
		}
		t.buf = buf
		return t, nil
	}

	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format.TextureFormat(),
		Usage:         textureUsage(desc.Role),
	})
	if err != nil {
		return nil, fmt.Errorf("native: create texture: %w", err)
	}
	t.tex = tex

	if desc.Role == gpgpu.ImmutableInput {
		if len(data) != desc.Layout().Size() {
			d.device.DestroyTexture(tex)
			return nil, fmt.Errorf("native: initial data is %d bytes, want %d", len(data), desc.Layout().Size())
		}
		err := d.queue.WriteTexture(
			&hal.ImageCopyTexture{Texture: tex, MipLevel: 0, Aspect: gputypes.TextureAspectAll},
			data,
			&hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(desc.Layout().RowPitch()), RowsPerImage: h},
			&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		)
		if err != nil {
			d.device.DestroyTexture(tex)
			return nil, fmt.Errorf("native: upload input: %w", err)
		}
	}
	return t, nil
}

// CreateView implements gpgpu.Device.
func (d *Device) CreateView(tex gpgpu.Texture, kind gpgpu.ViewKind) (gpgpu.View, error) {
	t, ok := tex.(*texture)
	if !ok || t == nil {
		return nil, ErrForeignHandle
	}
	role := t.desc.Role
	switch {
	case kind == gpgpu.ViewShaderResource && (role == gpgpu.ImmutableInput || role == gpgpu.RenderTarget):
	case kind == gpgpu.ViewRenderTarget && role == gpgpu.RenderTarget:
	default:
		return nil, fmt.Errorf("%w: %s view of %s", ErrViewRole, kind, role)
	}
	hv, err := d.device.CreateTextureView(t.tex, &hal.TextureViewDescriptor{
		Label:           t.desc.Label + "_" + kind.String(),
		Format:          t.desc.Format.TextureFormat(),
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create view: %w", err)
	}
	return &view{tex: t, hv: hv, kind: kind}, nil
}

// CreateVertexBuffer implements gpgpu.Device.
func (d *Device) CreateVertexBuffer(label string, data []byte) (gpgpu.Buffer, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create vertex buffer: %w", err)
	}
	if err := d.queue.WriteBuffer(buf, 0, data); err != nil {
		d.device.DestroyBuffer(buf)
		return nil, fmt.Errorf("native: upload vertex buffer: %w", err)
	}
	return &buffer{buf: buf, size: len(data)}, nil
}

// CreateSampler implements gpgpu.Device.
func (d *Device) CreateSampler(desc gpgpu.SamplerDescriptor) (gpgpu.Sampler, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	if desc.Filter != gputypes.FilterModeNearest {
		return nil, ErrFilterable
	}
	s, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: desc.AddressMode,
		AddressModeV: desc.AddressMode,
		AddressModeW: desc.AddressMode,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
		LodMinClamp:  desc.LodMinClamp,
		LodMaxClamp:  desc.LodMaxClamp,
		// Anisotropy above one requires linear filtering.
		Anisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create sampler: %w", err)
	}
	return &sampler{s: s, desc: desc}, nil
}

// CreateProgram implements gpgpu.Device. The WGSL source is compiled with
// naga before the module is created.
func (d *Device) CreateProgram(src gpgpu.ShaderSource) (gpgpu.Program, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	entry := src.EntryPoint
	if entry == "" {
		switch src.Stage {
		case gputypes.ShaderStageVertex:
			entry = "vs_main"
		default:
			entry = "fs_main"
		}
	}
	module, err := createShaderModule(d.device, src.Label, src.WGSL)
	if err != nil {
		return nil, fmt.Errorf("native: program %q: %w", src.Label, err)
	}
	return &program{module: module, label: src.Label, stage: src.Stage, entry: entry}, nil
}

// DestroyTexture implements gpgpu.Device.
func (d *Device) DestroyTexture(tex gpgpu.Texture) {
	t, ok := tex.(*texture)
	if !ok || t == nil {
		return
	}
	d.ctx.drain()
	if t.buf != nil {
		if t.mapped {
			_ = d.device.UnmapBuffer(t.buf)
			t.mapped = false
		}
		d.device.DestroyBuffer(t.buf)
		t.buf = nil
	}
	if t.tex != nil {
		d.device.DestroyTexture(t.tex)
		t.tex = nil
	}
}

// DestroyView implements gpgpu.Device.
func (d *Device) DestroyView(v gpgpu.View) {
	vw, ok := v.(*view)
	if !ok || vw == nil || vw.hv == nil {
		return
	}
	d.ctx.drain()
	d.device.DestroyTextureView(vw.hv)
	vw.hv = nil
}

// DestroyBuffer implements gpgpu.Device.
func (d *Device) DestroyBuffer(buf gpgpu.Buffer) {
	b, ok := buf.(*buffer)
	if !ok || b == nil || b.buf == nil {
		return
	}
	d.ctx.drain()
	d.device.DestroyBuffer(b.buf)
	b.buf = nil
}

// DestroySampler implements gpgpu.Device.
func (d *Device) DestroySampler(s gpgpu.Sampler) {
	sm, ok := s.(*sampler)
	if !ok || sm == nil || sm.s == nil {
		return
	}
	d.ctx.drain()
	d.device.DestroySampler(sm.s)
	sm.s = nil
}

// DestroyProgram implements gpgpu.Device. Pipelines built from the
// program are destroyed with it.
func (d *Device) DestroyProgram(p gpgpu.Program) {
	pr, ok := p.(*program)
	if !ok || pr == nil || pr.module == nil {
		return
	}
	d.ctx.drain()
	d.pipelines.evict(pr)
	d.device.DestroyShaderModule(pr.module)
	pr.module = nil
}

// Context implements gpgpu.Device.
func (d *Device) Context() gpgpu.Context { return d.ctx }

// PipelineStats returns render pipeline cache hits and misses.
func (d *Device) PipelineStats() (hits, misses uint64) { return d.pipelines.stats() }

// Close submits recorded work, waits for the GPU and destroys the device.
// Resources still alive are released with it. Close is idempotent.
func (d *Device) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	err := d.ctx.submit()
	if werr := d.device.WaitIdle(); err == nil && werr != nil {
		err = fmt.Errorf("native: wait idle: %w", werr)
	}
	d.ctx.release()
	d.pipelines.destroy()
	d.device.Destroy()
	if d.instance != nil {
		d.instance.Destroy()
	}
	gpgpu.Logger().Debug("native: device closed", "adapter", d.info.Name)
	return err
}
