package backend

import (
	"errors"
	"fmt"

	"github.com/gogpu/gfx/gpucore"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")

	// ErrUnknownResource is returned when an ID does not name a live resource.
	ErrUnknownResource = errors.New("backend: unknown resource")

	// ErrUnsupported is returned for operations the backend cannot perform.
	ErrUnsupported = errors.New("backend: unsupported operation")

	// ErrOutOfRange is returned when a byte range exceeds a resource.
	ErrOutOfRange = errors.New("backend: range out of bounds")

	// ErrDeviceLost is returned while the native context is lost.
	ErrDeviceLost = errors.New("backend: device lost")

	// ErrMapped is returned when a buffer operation requires the buffer
	// to be unmapped (or mapped) and it is not.
	ErrMapped = errors.New("backend: invalid buffer map state")
)

// ShaderLanguage is the source language a backend accepts for shader modules.
type ShaderLanguage uint8

// Shader languages.
const (
	ShaderLanguageWGSL ShaderLanguage = iota
	ShaderLanguageGLSL
)

// GLSL shader modules hold both stages in one source. Each stage starts
// on a line holding its marker; a module without a fragment marker gets
// an empty fragment stage.
const (
	GLSLVertexMarker   = "//!vertex"
	GLSLFragmentMarker = "//!fragment"
)

// String returns the language name.
func (l ShaderLanguage) String() string {
	switch l {
	case ShaderLanguageWGSL:
		return "WGSL"
	case ShaderLanguageGLSL:
		return "GLSL"
	default:
		return fmt.Sprintf("Unknown(%d)", l)
	}
}

// Capabilities describes the limits and features of an initialized backend.
type Capabilities struct {
	// MaxBufferSize is the largest buffer the backend can allocate.
	MaxBufferSize uint64

	// MaxTextureDimension is the largest width or height of a 2D texture.
	MaxTextureDimension uint32

	// MinUniformOffsetAlignment is the required alignment of uniform
	// buffer binding offsets.
	MinUniformOffsetAlignment uint64

	// MaxSampleCount is the largest supported MSAA sample count.
	MaxSampleCount uint32

	// DepthResolve reports whether multisampled depth can be resolved.
	DepthResolve bool

	// ShaderLanguage is the accepted shader source language.
	ShaderLanguage ShaderLanguage
}

// DefaultCapabilities returns conservative WebGPU default limits.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		MaxBufferSize:             256 << 20,
		MaxTextureDimension:       8192,
		MinUniformOffsetAlignment: 256,
		MaxSampleCount:            4,
		ShaderLanguage:            ShaderLanguageWGSL,
	}
}

// GraphicsBackend is the capability interface implemented once per native
// graphics API. A device selects exactly one backend at creation time and
// routes every resource operation through it.
//
// Backends are registered via Register and selected via Get or Default.
// Methods are called from a single submission goroutine, but
// implementations still guard their resource maps so that context-loss
// callbacks arriving on other goroutines stay safe.
type GraphicsBackend interface {
	// Name returns the backend identifier (e.g., "native", "webgl").
	Name() string

	// Init acquires the native device. Calling Init on an initialized
	// backend is a no-op.
	Init() error

	// Close releases all backend resources.
	// The backend should not be used after Close is called.
	Close()

	// Capabilities returns the limits of the initialized backend.
	Capabilities() Capabilities

	// CreateBuffer allocates a buffer. If desc.MappedAtCreation is set the
	// buffer starts mapped and MappedRange returns its host memory.
	CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error)

	// MappedRange returns the host-visible memory of a mapped buffer.
	MappedRange(id gpucore.BufferID) ([]byte, error)

	// Unmap publishes the mapped range to the GPU and unmaps the buffer.
	Unmap(id gpucore.BufferID) error

	// Remap maps a previously unmapped buffer for host writes again.
	Remap(id gpucore.BufferID) ([]byte, error)

	// WriteBuffer uploads data at offset.
	WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error

	// ReadBuffer reads size bytes starting at offset.
	ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error)

	// CopyBuffer copies size bytes between two buffers.
	CopyBuffer(src gpucore.BufferID, srcOffset uint64, dst gpucore.BufferID, dstOffset, size uint64) error

	// DestroyBuffer releases a buffer. Unknown IDs are ignored.
	DestroyBuffer(id gpucore.BufferID)

	// CreateTexture allocates a 2D texture.
	CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error)

	// ReadTexture returns the tightly packed texels of a single-sampled texture.
	ReadTexture(id gpucore.TextureID) ([]byte, error)

	// ResolveTexture resolves a multisampled texture into a single-sampled one.
	ResolveTexture(src, dst gpucore.TextureID) error

	// DestroyTexture releases a texture. Unknown IDs are ignored.
	DestroyTexture(id gpucore.TextureID)

	// CreateShaderModule compiles shader source in the backend's language.
	CreateShaderModule(label, source string) (gpucore.ShaderID, error)

	// DestroyShaderModule releases a shader module.
	DestroyShaderModule(id gpucore.ShaderID)

	// CreateRenderPipeline creates a render pipeline.
	CreateRenderPipeline(desc *gpucore.RenderPipelineDescriptor) (gpucore.PipelineID, error)

	// DestroyRenderPipeline releases a render pipeline.
	DestroyRenderPipeline(id gpucore.PipelineID)

	// BeginRenderPass starts recording a render pass. The pass is
	// submitted when its encoder's End method returns.
	BeginRenderPass(desc *gpucore.RenderPassDescriptor) (RenderPassEncoder, error)
}

// RenderPassEncoder records draw commands for one render pass.
type RenderPassEncoder interface {
	// SetPipeline sets the render pipeline for subsequent draw calls.
	SetPipeline(id gpucore.PipelineID)

	// SetVertexBuffer binds a vertex buffer to a slot.
	SetVertexBuffer(slot uint32, id gpucore.BufferID, offset uint64)

	// SetIndexBuffer binds the index buffer for indexed drawing.
	SetIndexBuffer(id gpucore.BufferID, format gpucore.IndexFormat, offset uint64)

	// SetUniformBuffer binds a range of a uniform buffer to the pipeline's
	// uniform binding.
	SetUniformBuffer(id gpucore.BufferID, offset, size uint64)

	// SetTexture binds a texture to the pipeline's texture slot index
	// (binding index+1).
	SetTexture(index uint32, id gpucore.TextureID)

	// Draw issues a non-indexed draw call.
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)

	// DrawIndexed issues an indexed draw call.
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)

	// End finishes the pass and submits it.
	End() error
}

// ContextLossNotifier is implemented by backends whose native context can
// be lost asynchronously (e.g., a WebGL canvas or a removed GPU).
type ContextLossNotifier interface {
	// OnContextLost registers fn to run when the native context is lost.
	OnContextLost(fn func())

	// OnContextRestored registers fn to run when the context is usable again.
	OnContextRestored(fn func())
}
