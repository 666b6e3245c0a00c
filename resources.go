package gpgpu

import (
	"encoding/binary"
	"errors"
	"math"
)

// quadVertices is the full-screen triangle strip in normalized device
// coordinates: top-left, top-right, bottom-left, bottom-right. The two
// triangles share one diagonal, so every texel is covered exactly once
// whatever the viewport's aspect ratio.
var quadVertices = [8]float32{
	-1, 1,
	1, 1,
	-1, -1,
	1, -1,
}

// Resources owns the GPU resources of a dispatch cycle: the immutable
// input texture and its read view, the render target and its write view,
// the staging texture, the quad vertex buffer and the sampler.
//
// Shape-sized resources are replaced when a new shape is bound. Release
// must be called before the device is closed. Resources is not safe for
// concurrent use.
type Resources struct {
	dev  Device
	caps Caps

	input      Texture
	inputView  View
	target     Texture
	targetView View
	staging    Texture

	quad        Buffer
	sampler     Sampler
	samplerDesc SamplerDescriptor
}

// NewResources creates an empty resource manager for dev.
func NewResources(dev Device) *Resources {
	return &Resources{
		dev:         dev,
		caps:        dev.Caps(),
		samplerDesc: PointSampler(),
	}
}

// SetSamplerDescriptor replaces the sampler configuration used by
// CreateSampler. An existing sampler is released.
func (r *Resources) SetSamplerDescriptor(desc SamplerDescriptor) {
	if r.sampler != nil {
		r.dev.DestroySampler(r.sampler)
		r.sampler = nil
	}
	r.samplerDesc = desc
}

// CreateInputTexture uploads packed bytes into an immutable texture and
// returns its read view. A previous input texture is released first.
func (r *Resources) CreateInputTexture(data []byte, desc TextureDescriptor) (View, error) {
	desc.Role, desc.Access = ImmutableInput, ImmutableInput.canonicalAccess()
	if desc.Label == "" {
		desc.Label = "gpgpu_input"
	}
	if err := desc.Validate(r.caps); err != nil {
		return nil, &DeviceResourceError{Op: "create input texture", Descriptor: desc, Err: err}
	}
	if want := desc.Layout().Size(); len(data) != want {
		return nil, &BufferOverflowError{Op: "upload", Want: want, Got: len(data), Unit: "bytes"}
	}

	r.releaseInput()
	tex, err := r.dev.CreateTexture(desc, data)
	if err != nil {
		return nil, &DeviceResourceError{Op: "create input texture", Descriptor: desc, Err: err}
	}
	view, err := r.dev.CreateView(tex, ViewShaderResource)
	if err != nil {
		r.dev.DestroyTexture(tex)
		return nil, &DeviceResourceError{Op: "create input view", Descriptor: desc, Err: err}
	}
	r.input, r.inputView = tex, view
	return view, nil
}

// CreateRenderTarget allocates the writable output texture and its write
// view. A previous render target is released first.
func (r *Resources) CreateRenderTarget(desc TextureDescriptor) (View, error) {
	desc.Role, desc.Access = RenderTarget, RenderTarget.canonicalAccess()
	if desc.Label == "" {
		desc.Label = "gpgpu_render_target"
	}
	if err := desc.Validate(r.caps); err != nil {
		return nil, &DeviceResourceError{Op: "create render target", Descriptor: desc, Err: err}
	}

	r.releaseTarget()
	tex, err := r.dev.CreateTexture(desc, nil)
	if err != nil {
		return nil, &DeviceResourceError{Op: "create render target", Descriptor: desc, Err: err}
	}
	view, err := r.dev.CreateView(tex, ViewRenderTarget)
	if err != nil {
		r.dev.DestroyTexture(tex)
		return nil, &DeviceResourceError{Op: "create render target view", Descriptor: desc, Err: err}
	}
	r.target, r.targetView = tex, view
	return view, nil
}

// CreateStagingTexture allocates the CPU-readable copy destination for the
// render target. It has the render target's shape and format.
func (r *Resources) CreateStagingTexture(desc TextureDescriptor) (Texture, error) {
	desc.Role, desc.Access = StagingReadback, StagingReadback.canonicalAccess()
	if desc.Label == "" {
		desc.Label = "gpgpu_staging"
	}
	if err := desc.Validate(r.caps); err != nil {
		return nil, &DeviceResourceError{Op: "create staging texture", Descriptor: desc, Err: err}
	}
	if r.target != nil && r.target.Descriptor().Layout() != desc.Layout() {
		return nil, &DeviceResourceError{
			Op:         "create staging texture",
			Descriptor: desc,
			Err:        errors.New("shape differs from the render target"),
		}
	}

	if r.staging != nil {
		r.dev.DestroyTexture(r.staging)
		r.staging = nil
	}
	tex, err := r.dev.CreateTexture(desc, nil)
	if err != nil {
		return nil, &DeviceResourceError{Op: "create staging texture", Descriptor: desc, Err: err}
	}
	r.staging = tex
	return tex, nil
}

// CreateQuad returns the full-screen quad vertex buffer, creating it on
// first use.
func (r *Resources) CreateQuad() (Buffer, error) {
	if r.quad != nil {
		return r.quad, nil
	}
	data := make([]byte, len(quadVertices)*4)
	for i, v := range quadVertices {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	buf, err := r.dev.CreateVertexBuffer("gpgpu_quad", data)
	if err != nil {
		return nil, &DeviceResourceError{Op: "create quad", Err: err}
	}
	r.quad = buf
	return buf, nil
}

// CreateSampler returns the kernel's sampler, creating it on first use.
func (r *Resources) CreateSampler() (Sampler, error) {
	if r.sampler != nil {
		return r.sampler, nil
	}
	s, err := r.dev.CreateSampler(r.samplerDesc)
	if err != nil {
		return nil, &DeviceResourceError{Op: "create sampler", Err: err}
	}
	r.sampler = s
	return s, nil
}

// Input returns the current input texture and view.
func (r *Resources) Input() (Texture, View) { return r.input, r.inputView }

// Target returns the current render target and view.
func (r *Resources) Target() (Texture, View) { return r.target, r.targetView }

// Staging returns the current staging texture.
func (r *Resources) Staging() Texture { return r.staging }

// Matches reports whether the bound render target and staging texture
// already have layout l.
func (r *Resources) Matches(l Layout) bool {
	return r.target != nil && r.staging != nil &&
		r.target.Descriptor().Layout() == l &&
		r.staging.Descriptor().Layout() == l
}

// ReleaseShape destroys the shape-sized textures and their views.
// Views are destroyed before the textures they reference.
func (r *Resources) ReleaseShape() {
	r.releaseInput()
	r.releaseTarget()
	if r.staging != nil {
		r.dev.DestroyTexture(r.staging)
		r.staging = nil
	}
}

// Release destroys every resource in reverse creation order. It is safe to
// call more than once.
func (r *Resources) Release() {
	r.ReleaseShape()
	if r.sampler != nil {
		r.dev.DestroySampler(r.sampler)
		r.sampler = nil
	}
	if r.quad != nil {
		r.dev.DestroyBuffer(r.quad)
		r.quad = nil
	}
}

func (r *Resources) releaseInput() {
	if r.inputView != nil {
		r.dev.DestroyView(r.inputView)
		r.inputView = nil
	}
	if r.input != nil {
		r.dev.DestroyTexture(r.input)
		r.input = nil
	}
}

func (r *Resources) releaseTarget() {
	if r.targetView != nil {
		r.dev.DestroyView(r.targetView)
		r.targetView = nil
	}
	if r.target != nil {
		r.dev.DestroyTexture(r.target)
		r.target = nil
	}
}
