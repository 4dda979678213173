// Package backend defines the GraphicsBackend capability interface and the
// registry used to pick one implementation per native graphics API.
//
// # Backend Registration
//
// Backends are registered via init() functions and selected at runtime.
// The in-memory software backend is registered on import of this package;
// GPU backends register from their own packages:
//
//	import (
//		_ "github.com/gogpu/gfx/backend/native" // Pure Go wgpu
//		_ "github.com/gogpu/gfx/backend/rust"   // wgpu-native, build with -tags rust
//		_ "github.com/gogpu/gfx/backend/webgl"  // WebGL2, GOOS=js GOARCH=wasm
//	)
//
// # Backend Selection
//
// Use InitDefault to initialize the best available backend, or Open to
// request a specific one by name:
//
//	b, err := backend.Open(backend.BackendNative)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
// Priority order is rust, native, webgl, software. A backend whose Init
// fails is skipped by InitDefault.
//
// # Resources
//
// Every resource is named by a gpucore ID issued by the backend that created
// it. The device layer in package gpu tracks sizes, generations and context
// loss on top of these IDs; backends only manage native handles.
package backend
