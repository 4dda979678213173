// Package gfx is a graphics-backend resource layer: GPU buffers, vertex and
// index buffers, render targets, a dynamic uniform allocator and a render
// pass lifecycle with shadow passes, on top of interchangeable native
// backends.
//
// # Overview
//
// The module is organized bottom-up:
//
//   - gpucore: backend-neutral IDs, usage flags and descriptors
//   - backend: the GraphicsBackend interface, registry and software backend
//   - backend/native, backend/rust, backend/webgl: GPU implementations
//   - gpu: the device layer (VRAM accounting, context loss, buffers, uniform ring)
//   - render: render targets and the Before/Execute/After pass lifecycle
//   - shaderchunk: named WGSL and GLSL chunk composition with a program cache
//   - config: TOML configuration shared by the demo and applications
//
// # Quick Start
//
//	b, err := backend.InitDefault()
//	if err != nil {
//		log.Fatal(err)
//	}
//	dev := gpu.NewDevice(b, gpu.DeviceOptions{})
//	defer dev.Close()
//
//	vb, err := dev.CreateVertexBuffer(gpucore.PositionLayout(), 3, gpucore.BufferUsageCopyDst)
//
// # Logging
//
// All packages log through the shared [Logger], silent by default. Use
// [SetLogger] to route diagnostics to any slog handler.
package gfx
