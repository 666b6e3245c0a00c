package gpgpu

const (
	// DefaultAlignment is the row granularity, in texels, observed on
	// Direct3D 11 class hardware for float textures.
	DefaultAlignment = 32

	// DefaultMaxDimension matches gputypes.DefaultLimits().MaxTextureDimension2D.
	DefaultMaxDimension = 8192
)

// Planner derives texture shapes from logical array sizes.
// The zero value uses DefaultAlignment and DefaultMaxDimension.
type Planner struct {
	// Alignment is the texel granularity every width must be a multiple of.
	Alignment int

	// MaxDimension bounds both width and height.
	MaxDimension int
}

// PlannerFor returns a planner whose alignment keeps staging rows of
// format f tightly packed on a device with the given capabilities.
func PlannerFor(caps Caps, f InputFormat) Planner {
	return Planner{
		Alignment:    caps.Alignment(f),
		MaxDimension: caps.MaxTextureDimension,
	}
}

func (p Planner) alignment() int {
	if p.Alignment <= 0 {
		return DefaultAlignment
	}
	return p.Alignment
}

func (p Planner) maxDimension() int {
	if p.MaxDimension <= 0 {
		return DefaultMaxDimension
	}
	return p.MaxDimension
}

// Plan picks the widest aligned width that divides elementCount, so the
// texture uses as few rows as possible. It has no side effects.
func (p Planner) Plan(elementCount, channels int) (Layout, error) {
	format, err := p.check(elementCount, channels, 0)
	if err != nil {
		return Layout{}, err
	}

	align := p.alignment()
	maxDim := p.maxDimension()
	top := min(elementCount, maxDim)
	for w := top - top%align; w >= align; w -= align {
		if elementCount%w != 0 {
			continue
		}
		h := elementCount / w
		if h > maxDim {
			break
		}
		return Layout{Width: w, Height: h, Format: format}, nil
	}

	return Layout{}, &InvalidShapeError{
		Elements:  elementCount,
		Channels:  channels,
		Alignment: align,
		Reason:    "no aligned width divides the element count within device limits",
	}
}

// PlanShape validates a caller-chosen width.
func (p Planner) PlanShape(elementCount, channels, width int) (Layout, error) {
	format, err := p.check(elementCount, channels, width)
	if err != nil {
		return Layout{}, err
	}

	align := p.alignment()
	fail := func(reason string) (Layout, error) {
		return Layout{}, &InvalidShapeError{
			Elements:  elementCount,
			Channels:  channels,
			Width:     width,
			Alignment: align,
			Reason:    reason,
		}
	}

	switch {
	case width <= 0:
		return fail("width must be positive")
	case width%align != 0:
		return fail("width is not a multiple of the alignment")
	case elementCount%width != 0:
		return fail("width does not divide the element count")
	case width > p.maxDimension() || elementCount/width > p.maxDimension():
		return fail("shape exceeds the maximum texture dimension")
	}
	return Layout{Width: width, Height: elementCount / width, Format: format}, nil
}

func (p Planner) check(elementCount, channels, width int) (InputFormat, error) {
	format, ok := FormatForChannels(channels)
	if !ok {
		return FormatUndefined, &InvalidShapeError{
			Elements:  elementCount,
			Channels:  channels,
			Width:     width,
			Alignment: p.alignment(),
			Reason:    "channels must be 1, 2 or 4",
		}
	}
	if elementCount <= 0 {
		return FormatUndefined, &InvalidShapeError{
			Elements:  elementCount,
			Channels:  channels,
			Width:     width,
			Alignment: p.alignment(),
			Reason:    "element count must be positive",
		}
	}
	return format, nil
}

// Plan plans with the default planner.
func Plan(elementCount, channels int) (Layout, error) {
	return Planner{}.Plan(elementCount, channels)
}

// PlanShape validates width with the default planner.
func PlanShape(elementCount, channels, width int) (Layout, error) {
	return Planner{}.PlanShape(elementCount, channels, width)
}

// AlignmentFromPitch returns the smallest texel count whose row size in
// format f is a multiple of pitch bytes. A pitch of 0 or 1 needs no
// alignment. With a 256-byte pitch this is 64 for SingleFloat, 32 for
// FloatPair and 16 for FloatQuad.
func AlignmentFromPitch(pitch int, f InputFormat) int {
	bpt := f.BytesPerTexel()
	if pitch <= 1 || bpt == 0 {
		return 1
	}
	return pitch / gcd(pitch, bpt)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
