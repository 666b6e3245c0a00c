package gpgpu

// Pack serializes arr into a tightly pitched byte buffer for desc:
// rows of desc.Width texels, row-major, channels interleaved, little-endian.
func Pack(arr LogicalArray, desc TextureDescriptor) ([]byte, error) {
	return PackPitched(arr, desc, 0)
}

// PackPitched is Pack with an explicit row stride in bytes. A rowPitch of
// zero means tight rows. Padding bytes at the end of each row are zero.
// Decode with the same rowPitch is the exact inverse.
func PackPitched(arr LogicalArray, desc TextureDescriptor, rowPitch int) ([]byte, error) {
	layout := desc.Layout()
	tight := layout.RowPitch()
	if rowPitch == 0 {
		rowPitch = tight
	}
	if err := checkShape("pack", arr.Channels, len(arr.Values), layout, rowPitch); err != nil {
		return nil, err
	}

	buf := make([]byte, rowPitch*layout.Height)
	w := floatWriter{buf: buf}
	rowFloats := layout.Width * layout.Format.Channels()
	for y := 0; y < layout.Height; y++ {
		w.seek(y * rowPitch)
		for _, v := range arr.Values[y*rowFloats : (y+1)*rowFloats] {
			if !w.put(v) {
				return nil, &BufferOverflowError{Op: "pack", Want: len(buf), Got: w.off + 4, Unit: "bytes"}
			}
		}
	}

	Logger().Debug("gpgpu: packed",
		"layout", layout.String(), "rowPitch", rowPitch, "bytes", len(buf))
	return buf, nil
}

// checkShape validates channel count, float count and row pitch against
// a layout, for both packing and decoding.
func checkShape(op string, channels, floats int, layout Layout, rowPitch int) error {
	if channels != layout.Format.Channels() {
		return &BufferOverflowError{Op: op, Want: layout.Format.Channels(), Got: channels, Unit: "channels"}
	}
	if want := layout.Elements() * layout.Format.Channels(); floats != want {
		return &BufferOverflowError{Op: op, Want: layout.Elements(), Got: floats / max(channels, 1), Unit: "elements"}
	}
	if rowPitch < layout.RowPitch() {
		return &BufferOverflowError{Op: op, Want: layout.RowPitch(), Got: rowPitch, Unit: "bytes per row"}
	}
	return nil
}
