package gpucore

import (
	"errors"
	"fmt"
)

// ErrInvalidLayout is returned by VertexLayout.Validate.
var ErrInvalidLayout = errors.New("gpucore: invalid vertex layout")

// VertexAttribute describes one attribute inside an interleaved vertex.
type VertexAttribute struct {
	// Format is the attribute type.
	Format VertexFormat

	// Offset is the byte offset from the start of the vertex.
	Offset uint64

	// Location is the shader input location.
	Location uint32
}

// VertexLayout describes an interleaved vertex format.
type VertexLayout struct {
	// Stride is the distance in bytes between consecutive vertices.
	Stride uint64

	// Attributes lists the attributes of one vertex.
	Attributes []VertexAttribute
}

// Validate checks that every attribute fits inside the stride and that
// locations are unique.
func (l VertexLayout) Validate() error {
	if l.Stride == 0 {
		return fmt.Errorf("%w: zero stride", ErrInvalidLayout)
	}
	if len(l.Attributes) == 0 {
		return fmt.Errorf("%w: no attributes", ErrInvalidLayout)
	}
	seen := make(map[uint32]bool, len(l.Attributes))
	for i, a := range l.Attributes {
		size := a.Format.Size()
		if size == 0 {
			return fmt.Errorf("%w: attribute %d has unknown format %s", ErrInvalidLayout, i, a.Format)
		}
		if a.Offset+size > l.Stride {
			return fmt.Errorf("%w: attribute %d (offset %d, size %d) exceeds stride %d",
				ErrInvalidLayout, i, a.Offset, size, l.Stride)
		}
		if seen[a.Location] {
			return fmt.Errorf("%w: duplicate location %d", ErrInvalidLayout, a.Location)
		}
		seen[a.Location] = true
	}
	return nil
}

// PositionLayout returns the common layout of a single float32x3 position
// at location 0.
func PositionLayout() VertexLayout {
	return VertexLayout{
		Stride:     12,
		Attributes: []VertexAttribute{{Format: VertexFormatFloat32x3, Offset: 0, Location: 0}},
	}
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	// Label is an optional debug label.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage specifies how the buffer will be used.
	Usage BufferUsage

	// MappedAtCreation creates the buffer already mapped for host writes.
	MappedAtCreation bool
}

// TextureDescriptor describes a 2D texture to create.
type TextureDescriptor struct {
	// Label is an optional debug label.
	Label string

	// Width and Height are the texture dimensions in pixels.
	Width  uint32
	Height uint32

	// SampleCount is the MSAA sample count. Zero means 1.
	SampleCount uint32

	// Format is the texel format.
	Format TextureFormat

	// Usage specifies how the texture will be used.
	Usage TextureUsage
}

// Samples returns the effective sample count.
func (d TextureDescriptor) Samples() uint32 {
	if d.SampleCount == 0 {
		return 1
	}
	return d.SampleCount
}

// SizeBytes returns the approximate memory footprint of the texture.
func (d TextureDescriptor) SizeBytes() uint64 {
	return uint64(d.Width) * uint64(d.Height) * uint64(d.Format.BytesPerPixel()) * uint64(d.Samples())
}

// LoadOp specifies what happens to an attachment at the start of a pass.
type LoadOp uint8

// Load operations.
const (
	// LoadOpClear clears the attachment to its clear value.
	LoadOpClear LoadOp = iota

	// LoadOpLoad preserves the existing contents.
	LoadOpLoad
)

// Color is a linear RGBA color used for clear values.
type Color struct {
	R, G, B, A float64
}

// ColorAttachment binds a texture as a color output of a render pass.
type ColorAttachment struct {
	// Texture is the render texture (possibly multisampled).
	Texture TextureID

	// ResolveTarget, when valid, receives the resolved samples of Texture.
	ResolveTarget TextureID

	// Load is the load operation.
	Load LoadOp

	// Store keeps the rendered contents after the pass.
	Store bool

	// Clear is used when Load is LoadOpClear.
	Clear Color
}

// DepthAttachment binds a depth texture to a render pass.
type DepthAttachment struct {
	// Texture is the depth texture.
	Texture TextureID

	// Load is the depth load operation.
	Load LoadOp

	// Store keeps the depth contents after the pass.
	Store bool

	// ClearDepth is used when Load is LoadOpClear.
	ClearDepth float32
}

// RenderPassDescriptor describes the attachments of a render pass.
type RenderPassDescriptor struct {
	// Label is an optional debug label.
	Label string

	// ColorAttachments lists the color outputs.
	ColorAttachments []ColorAttachment

	// DepthAttachment is the optional depth output.
	DepthAttachment *DepthAttachment
}

// CullMode selects which triangle faces are discarded.
type CullMode uint8

// Cull modes.
const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

// RenderPipelineDescriptor describes a render pipeline. Every pipeline has a
// single uniform buffer binding at group 0, binding 0, visible to both
// stages, followed by Textures sampled textures.
type RenderPipelineDescriptor struct {
	// Label is an optional debug label.
	Label string

	// Shader holds both stage entry points.
	Shader ShaderID

	// VertexEntry and FragmentEntry name the stage entry points.
	// An empty FragmentEntry creates a depth-only pipeline.
	VertexEntry   string
	FragmentEntry string

	// VertexLayouts describes the vertex buffers, one per slot.
	VertexLayouts []VertexLayout

	// ColorFormats lists the color target formats.
	ColorFormats []TextureFormat

	// DepthFormat is the depth attachment format, or Undefined for none.
	DepthFormat TextureFormat

	// Cull is the face culling mode.
	Cull CullMode

	// SampleCount is the MSAA sample count. Zero means 1.
	SampleCount uint32

	// UniformSize is the size of the uniform block bound at binding 0.
	UniformSize uint64

	// Textures is the number of unfilterable float 2D textures bound at
	// bindings 1..Textures. Shaders read them with textureLoad.
	Textures uint32
}
