// Package native implements backend.GraphicsBackend on the Pure Go
// gogpu/wgpu HAL.
//
// The backend drives a hal.Device and hal.Queue either opened by Init
// (Vulkan adapters, discrete or integrated GPUs first) or borrowed from a
// host application through NewFromProvider. Resources are tracked by the
// gpucore IDs handed out to the device layer, and every render pass is
// recorded into its own command encoder and submitted when the pass ends.
//
// Import the package for its side effect to make the "native" backend
// selectable through backend.Get or backend.Default:
//
//	import _ "github.com/gogpu/gfx/backend/native"
package native
