package gpgpu

import (
	"errors"
	"fmt"
)

// Readback copies target into staging, maps staging (blocking until the
// kernel pass has completed), decodes the mapped rows, and unmaps staging
// before returning. The mapping never escapes this call: Unmap runs on
// every exit path, including decode failures.
func Readback(ctx Context, target, staging Texture) (arr LogicalArray, err error) {
	if target == nil || staging == nil {
		return LogicalArray{}, &ReadbackError{Op: "copy", Err: errors.New("nil texture")}
	}
	sd := staging.Descriptor()
	if sd.Role != StagingReadback {
		return LogicalArray{}, &ReadbackError{Op: "map", Err: fmt.Errorf("%s is not CPU readable", sd)}
	}
	if td := target.Descriptor(); td.Layout() != sd.Layout() {
		return LogicalArray{}, &ReadbackError{Op: "copy", Err: fmt.Errorf("target %s and staging %s differ", td, sd)}
	}

	if err := ctx.CopyResource(staging, target); err != nil {
		return LogicalArray{}, &ReadbackError{Op: "copy", Err: err}
	}

	m, err := ctx.Map(staging)
	if err != nil {
		return LogicalArray{}, &ReadbackError{Op: "map", Err: err}
	}
	defer func() {
		if uerr := ctx.Unmap(staging); uerr != nil {
			arr, err = LogicalArray{}, errors.Join(err, &ReadbackError{Op: "unmap", Err: uerr})
		}
	}()

	Logger().Debug("gpgpu: mapped staging",
		"shape", sd.Layout().String(), "rowPitch", m.RowPitch, "bytes", len(m.Data))

	return Decode(m.Data, sd, m.RowPitch)
}
