// Package gpgpu runs numeric kernels through a graphics rasterization
// pipeline.
//
// # Overview
//
// Arrays of 32-bit float tuples (1, 2 or 4 channels) are encoded as 2D
// textures, a fixed full-screen quad is drawn over a render target of the
// same shape, and the fragment stage (the "kernel") produces one output
// texel per input texel. The render target is copied into a CPU-readable
// staging resource, mapped, and decoded back into a host array.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/gpgpu"
//	    "github.com/gogpu/gpgpu/backend"
//	    _ "github.com/gogpu/gpgpu/backend/cpu"
//	    "github.com/gogpu/gpgpu/kernels"
//	)
//
//	dev, err := backend.Open(backend.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
//
//	p := gpgpu.New(dev)
//	defer p.Close()
//
//	in := gpgpu.Pairs([][2]float32{{1, -1}, {3, -3}, {5, -5}, {7, -7}})
//	out, err := p.Run(in, kernels.Identity(gpgpu.FloatPair))
//
// # Architecture
//
// The package is organized leaf first:
//   - Layout planning: [Planner], [Layout], [InputFormat]
//   - Host packing: [Pack], [PackPitched], [LogicalArray]
//   - Resource lifecycle: [Resources], [TextureDescriptor], [ResourceRole]
//   - Kernel dispatch: [Dispatcher], [KernelBinding]
//   - Readback: [Readback], [Decode]
//   - One full dispatch cycle: [Pipeline]
//
// Devices are external collaborators reached through the narrow [Device]
// and [Context] interfaces. Implementations live under backend/: a CPU
// reference rasterizer (backend/cpu) and a gogpu/wgpu HAL device
// (backend/native).
//
// # Synchronization
//
// A dispatch always completes before its readback observes any byte:
// [Context.Flush] submits the draw and [Context.Map] blocks until every
// submitted batch has finished. A [Pipeline] is driven by one goroutine.
package gpgpu
