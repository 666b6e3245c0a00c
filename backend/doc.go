// Package backend selects the device a gpgpu pipeline runs on.
//
// Devices register themselves from init() functions with a name and a
// priority. Importing a backend package is enough to make it available:
//
//	import (
//	    "github.com/gogpu/gpgpu/backend"
//	    _ "github.com/gogpu/gpgpu/backend/cpu"
//	    _ "github.com/gogpu/gpgpu/backend/native"
//	)
//
// # Backend Selection
//
// Use Open to get a device from the best available backend, or OpenByName
// to request a specific one:
//
//	// Best available (native GPU first, CPU reference as fallback)
//	dev, err := backend.Open(backend.Options{})
//
//	// Or request a specific backend
//	dev, err := backend.OpenByName("cpu", backend.Options{})
//
// # Available Backends
//
//   - "native": gogpu/wgpu HAL (Vulkan, Metal, DX12, GLES), priority 100
//   - "cpu": reference rasterizer in pure Go, priority 10
package backend
