// Package gpu is the device layer between renderers and a GraphicsBackend.
//
// A [Device] owns exactly one backend plus the bookkeeping every resource
// shares: VRAM counters per memory class, the context generation and the set
// of live resources. Nothing here is global; every resource constructor
// takes the device explicitly.
//
// # Resources
//
//   - [Buffer]: raw buffer with usage flags, created lazily on first write
//   - [VertexBuffer], [IndexBuffer]: format-aware wrappers with Lock/Unlock
//   - [Texture], [Pipeline]: render attachments and pipelines
//   - [DynamicBuffer]: mapped facade for transient uniform views
//   - [UniformRing]: cursor, alignment and chunk pooling on top of it
//
// # Context Loss
//
// Context loss may be reported at any time, by the backend or by calling
// [Device.LoseContext]. Every resource drops its native handle without
// touching the backend, outstanding views go stale, and operations fail
// with [ErrContextLost] until [Device.RestoreContext] succeeds. Vertex and
// index buffers re-upload their host copy on restore.
//
// # Example
//
//	dev := gpu.NewDevice(b, gpu.DeviceOptions{Label: "main"})
//	vb, err := dev.CreateVertexBuffer("tri", gpucore.PositionLayout(), 3, gpucore.BufferUsageCopyDst)
//	if err != nil {
//		return err
//	}
//	view, _ := vb.Lock()
//	_ = view.PutFloat32s(0, 0, 1, 0, -1, -1, 0, 1, -1, 0)
//	if err := vb.Unlock(); err != nil {
//		return err
//	}
package gpu
