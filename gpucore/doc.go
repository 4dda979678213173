// Package gpucore defines the backend-neutral value types shared by every
// graphics backend and by the device layer above them.
//
// Resources are referred to by opaque IDs ([BufferID], [TextureID],
// [ShaderID], [PipelineID]). Each backend keeps its own mapping from IDs to
// native handles; an ID is meaningless outside the backend that issued it.
//
// Usage flags are plain bitmasks combined with bitwise OR:
//
//	usage := gpucore.BufferUsageVertex | gpucore.BufferUsageCopyDst
//	if usage.CPUWritable() {
//		// queue writes are allowed
//	}
package gpucore
