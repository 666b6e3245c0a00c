package gpgpu

// Option configures a Pipeline during creation.
//
// Example:
//
//	// Plan shapes from the device's copy pitch (default)
//	p := gpgpu.New(dev)
//
//	// Relax alignment and force 4-texel rows
//	p := gpgpu.New(dev, gpgpu.WithAlignment(1), gpgpu.WithWidth(4))
type Option func(*options)

// options holds optional configuration for Pipeline creation.
type options struct {
	alignment    int
	maxDimension int
	width        int
	sampler      SamplerDescriptor
	label        string
}

// defaultOptions returns the default pipeline options.
func defaultOptions() options {
	return options{
		alignment:    0, // derived from device caps per format
		maxDimension: 0, // device limit
		width:        0, // planner picks the widest aligned width
		sampler:      PointSampler(),
		label:        "gpgpu",
	}
}

// WithAlignment sets the width granularity in texels. By default it is
// derived from the device's staging row pitch for the input and output
// formats. Use 1 to allow any width; the decoder strips row padding.
func WithAlignment(texels int) Option {
	return func(o *options) {
		o.alignment = texels
	}
}

// WithMaxDimension caps texture width and height below the device limit.
func WithMaxDimension(n int) Option {
	return func(o *options) {
		o.maxDimension = n
	}
}

// WithWidth fixes the texture width instead of letting the planner choose.
// The width must still satisfy the alignment and divide the element count.
func WithWidth(width int) Option {
	return func(o *options) {
		o.width = width
	}
}

// WithSampler overrides the point sampler the kernel reads through.
func WithSampler(desc SamplerDescriptor) Option {
	return func(o *options) {
		o.sampler = desc
	}
}

// WithLabel sets the prefix of every resource label.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}
