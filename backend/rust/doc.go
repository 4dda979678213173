// Package rust implements backend.GraphicsBackend on wgpu-native through
// the cogentcore/webgpu bindings.
//
// The backend is compiled only with the "rust" build tag, because it needs
// the wgpu-native shared library at run time:
//
//	go build -tags rust ./...
//
// Without the tag a stub registers a factory that returns nil, so
// backend.Get(backend.BackendRust) reports the backend as unavailable and
// backend.Default falls through to the next backend in priority order.
//
// wgpu-native maps buffers asynchronously. The backend keeps a host mirror
// of every buffer, so ReadBuffer and CopyBuffer are served on the host and
// never stall on a map callback. Texture readback is not supported.
package rust
