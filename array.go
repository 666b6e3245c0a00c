package gpgpu

import "fmt"

// LogicalArray is an ordered sequence of float32 tuples stored flat.
// Channels is 1, 2 or 4; Values holds Len()*Channels floats with the
// channels of each element adjacent (x, y, z, w).
type LogicalArray struct {
	Channels int
	Values   []float32
}

// Scalars builds a single-channel array. The slice is not copied.
func Scalars(values []float32) LogicalArray {
	return LogicalArray{Channels: 1, Values: values}
}

// Pairs builds a two-channel array from (x, y) tuples.
func Pairs(elems [][2]float32) LogicalArray {
	values := make([]float32, 0, len(elems)*2)
	for _, e := range elems {
		values = append(values, e[0], e[1])
	}
	return LogicalArray{Channels: 2, Values: values}
}

// Quads builds a four-channel array from (x, y, z, w) tuples.
func Quads(elems [][4]float32) LogicalArray {
	values := make([]float32, 0, len(elems)*4)
	for _, e := range elems {
		values = append(values, e[0], e[1], e[2], e[3])
	}
	return LogicalArray{Channels: 4, Values: values}
}

// Len returns the number of elements (tuples).
func (a LogicalArray) Len() int {
	if a.Channels <= 0 {
		return 0
	}
	return len(a.Values) / a.Channels
}

// Format returns the texel format matching the channel count.
func (a LogicalArray) Format() InputFormat {
	f, _ := FormatForChannels(a.Channels)
	return f
}

// Element returns element i with unused channels set to zero.
func (a LogicalArray) Element(i int) [4]float32 {
	var e [4]float32
	copy(e[:], a.Values[i*a.Channels:(i+1)*a.Channels])
	return e
}

// Validate checks the channel count and that Values holds whole tuples.
func (a LogicalArray) Validate() error {
	if _, ok := FormatForChannels(a.Channels); !ok {
		return &InvalidShapeError{
			Elements: a.Len(),
			Channels: a.Channels,
			Reason:   "channels must be 1, 2 or 4",
		}
	}
	if len(a.Values)%a.Channels != 0 {
		return &BufferOverflowError{
			Op:   "array",
			Want: (len(a.Values)/a.Channels + 1) * a.Channels,
			Got:  len(a.Values),
			Unit: "floats",
		}
	}
	return nil
}

func (a LogicalArray) String() string {
	return fmt.Sprintf("LogicalArray(%d x %d)", a.Len(), a.Channels)
}
