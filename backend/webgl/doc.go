// Package webgl implements backend.GraphicsBackend on a WebGL2 rendering
// context for browsers. It is compiled for GOOS=js GOARCH=wasm only:
//
//	GOOS=js GOARCH=wasm go build ./...
//
// Commands run immediately on the context; a render pass only groups them
// so the first failure is reported by End.
//
// Shader modules are GLSL ES 3.00. A module holds both stages, each
// introduced by a line holding backend.GLSLVertexMarker or
// backend.GLSLFragmentMarker. The first uniform block is bound to binding
// 0 and sampler uniforms must be named tex0 to tex3.
//
// WebGL2 limits a few operations, which return backend.ErrUnsupported:
// DrawIndexed with a non-zero base vertex, draws with a non-zero first
// instance, copies between index and non-index buffers, BGRA8 textures
// and texture readback of formats other than RGBA8 and RG32F.
//
// The context may be lost at any time. The backend listens for the
// webglcontextlost and webglcontextrestored events and forwards them to
// the callbacks registered through backend.ContextLossNotifier.
package webgl
