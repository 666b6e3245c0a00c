// Package cpu is a reference device for gpgpu that rasterizes in pure Go.
//
// Textures hold float32 texels, programs are the Vertex and Fragment
// functions of gpgpu.ShaderSource, and draws are rasterized with edge
// functions at pixel centres using a top-left style tie-break, so two
// triangles sharing an edge never both cover a texel.
//
// Submitted command batches execute on a queue goroutine, like work on a
// real GPU. Context.Map blocks until every submitted batch has completed.
// Large draws are shaded in row bands on a worker pool (WithWorkers), so
// fragment functions must tolerate concurrent calls.
//
// The package registers itself as the "cpu" backend:
//
//	import _ "github.com/gogpu/gpgpu/backend/cpu"
package cpu
