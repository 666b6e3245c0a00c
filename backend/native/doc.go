//go:build !nogpu

// Package native runs gpgpu dispatches on a GPU through the gogpu/wgpu HAL.
//
// Kernels are WGSL, validated with naga and handed to the HAL backend
// (Vulkan, Metal, DX12 or GLES). Each Draw becomes one render pass that
// clears the render target and draws the full-screen strip. Readback
// copies the target into a host-visible buffer whose rows are padded to
// the adapter's copy pitch; Map waits on the queue's submission index,
// so callers see the pitch in gpgpu.Mapping.RowPitch.
//
// The package registers itself as the "native" backend, available when a
// GPU HAL backend is linked in:
//
//	import (
//		_ "github.com/gogpu/gpgpu/backend/native"
//		_ "github.com/gogpu/wgpu/hal/allbackends"
//	)
//
// Build with the nogpu tag to leave it out.
package native
