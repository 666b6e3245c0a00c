package gpgpu

import "github.com/gogpu/gputypes"

// Device creates and destroys the resources of a dispatch cycle.
// It is the narrow resource-creation half of the device collaborator;
// binding, drawing and mapping go through the Context it returns.
//
// Implementations live under backend/. Destroy methods accept nil.
type Device interface {
	// Caps reports the limits the planner and resource manager check.
	Caps() Caps

	// CreateTexture creates a texture. For ImmutableInput textures, data
	// holds the tightly packed initial contents; otherwise it is nil.
	CreateTexture(desc TextureDescriptor, data []byte) (Texture, error)

	// CreateView creates a read or write binding over tex.
	CreateView(tex Texture, kind ViewKind) (View, error)

	// CreateVertexBuffer creates an immutable vertex buffer.
	CreateVertexBuffer(label string, data []byte) (Buffer, error)

	// CreateSampler creates sampler state.
	CreateSampler(desc SamplerDescriptor) (Sampler, error)

	// CreateProgram loads a vertex or fragment program.
	CreateProgram(src ShaderSource) (Program, error)

	DestroyTexture(tex Texture)
	DestroyView(view View)
	DestroyBuffer(buf Buffer)
	DestroySampler(s Sampler)
	DestroyProgram(p Program)

	// Context returns the device's immediate context.
	Context() Context

	// Close waits for outstanding work and releases the device.
	Close() error
}

// Context is the explicit handle through which pipeline state is bound,
// draws are issued, and staging resources are mapped. Bound state persists
// until changed; binding nil clears a slot.
type Context interface {
	SetInputLayout(layout InputLayout)
	SetPrimitiveTopology(topology gputypes.PrimitiveTopology)
	SetVertexBuffer(slot int, buf Buffer, stride, offset int)
	SetVertexProgram(p Program)
	SetFragmentProgram(p Program)
	SetSampler(slot int, s Sampler)
	SetShaderResource(slot int, view View)
	SetViewport(vp Viewport)
	SetRenderTarget(view View)

	// Draw records a non-indexed draw with the bound state.
	Draw(vertexCount, firstVertex int) error

	// Flush submits recorded work. It does not wait for completion.
	Flush() error

	// CopyResource records a full copy of src into dst.
	CopyResource(dst, src Texture) error

	// Map submits pending work, blocks until all submitted work has
	// completed, and returns the CPU-visible bytes of a staging texture.
	Map(tex Texture) (Mapping, error)

	// Unmap releases a mapping. The Mapping's Data must not be used after.
	Unmap(tex Texture) error
}

// Texture is a device texture.
type Texture interface {
	Descriptor() TextureDescriptor
}

// View is a read or write binding over a texture.
type View interface {
	Texture() Texture
	Kind() ViewKind
}

// Buffer is a device buffer.
type Buffer interface {
	Size() int
}

// Sampler is device sampler state.
type Sampler interface {
	SamplerDescriptor() SamplerDescriptor
}

// Program is a loaded shader stage.
type Program interface {
	Stage() gputypes.ShaderStage
	Label() string
}

// Mapping is the CPU-visible content of a mapped staging texture.
// Rows are RowPitch bytes apart; Data is only valid until Unmap.
type Mapping struct {
	Data     []byte
	RowPitch int
}

// VertexAttribute describes one vertex input.
type VertexAttribute struct {
	Semantic string
	Format   gputypes.VertexFormat
	Offset   int
	Location int
}

// InputLayout is the vertex input signature of a vertex program.
type InputLayout struct {
	Stride     int
	Attributes []VertexAttribute
}

// QuadLayout is the signature of the full-screen quad: one 2-float
// position per vertex.
var QuadLayout = InputLayout{
	Stride: 8,
	Attributes: []VertexAttribute{
		{Semantic: "POSITION", Format: gputypes.VertexFormatFloat32x2, Offset: 0, Location: 0},
	},
}

// TexelSampler reads the bound input texture through the bound sampler.
type TexelSampler interface {
	// Sample returns the texel at normalized coordinates (u, v). Channels
	// the format does not store read as zero, except w which reads as one.
	Sample(u, v float32) [4]float32
}

// VertexFunc is a CPU vertex stage: it maps a quad position to clip space.
type VertexFunc func(pos [2]float32) [4]float32

// FragmentFunc is a CPU kernel body: it computes the output texel for the
// normalized coordinate uv of the fragment's centre.
// It may be called from several goroutines at once.
type FragmentFunc func(in TexelSampler, uv [2]float32) [4]float32

// ShaderSource is an opaque program handed to a device. GPU devices use
// WGSL and EntryPoint; the CPU reference device uses Vertex or Fragment.
type ShaderSource struct {
	Label      string
	Stage      gputypes.ShaderStage
	WGSL       string
	EntryPoint string
	Vertex     VertexFunc
	Fragment   FragmentFunc
}

// Shaders groups the programs of one dispatch and the format of the
// texture the kernel writes. Output FormatUndefined means "same as input".
type Shaders struct {
	Vertex   ShaderSource
	Fragment ShaderSource
	Output   InputFormat
}
