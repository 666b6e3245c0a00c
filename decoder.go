package gpgpu

// Decode deserializes a mapped texture region into a LogicalArray. It is
// the inverse of PackPitched: rows of desc.Width texels spaced rowPitch
// bytes apart (zero means tight), channels interleaved, little-endian.
// Bytes beyond each row's texels are ignored. data must cover every row;
// trailing padding after the last row is optional.
func Decode(data []byte, desc TextureDescriptor, rowPitch int) (LogicalArray, error) {
	layout := desc.Layout()
	tight := layout.RowPitch()
	if rowPitch == 0 {
		rowPitch = tight
	}
	channels := layout.Format.Channels()
	if channels == 0 {
		return LogicalArray{}, &BufferOverflowError{Op: "decode", Want: 1, Got: 0, Unit: "channels"}
	}
	if rowPitch < tight {
		return LogicalArray{}, &BufferOverflowError{Op: "decode", Want: tight, Got: rowPitch, Unit: "bytes per row"}
	}
	if need := pitchedExtent(rowPitch, tight, layout.Height); len(data) < need {
		return LogicalArray{}, &BufferOverflowError{Op: "decode", Want: need, Got: len(data), Unit: "bytes"}
	}

	values := make([]float32, 0, layout.Elements()*channels)
	r := floatReader{buf: data}
	rowFloats := layout.Width * channels
	for y := 0; y < layout.Height; y++ {
		r.seek(y * rowPitch)
		for i := 0; i < rowFloats; i++ {
			v, ok := r.next()
			if !ok {
				return LogicalArray{}, &BufferOverflowError{Op: "decode", Want: r.off + 4, Got: len(data), Unit: "bytes"}
			}
			values = append(values, v)
		}
	}

	arr := LogicalArray{Channels: channels, Values: values}
	if err := checkShape("decode", arr.Channels, len(arr.Values), layout, rowPitch); err != nil {
		return LogicalArray{}, err
	}
	return arr, nil
}
