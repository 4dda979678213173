package gpucore

import (
	"fmt"
	"strings"
)

// Resource IDs
//
// These opaque IDs represent GPU resources. Each backend implementation
// maintains a mapping between IDs and actual native resources.
// IDs are uint64 to accommodate various backend handle sizes.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// TextureID is an opaque handle to a GPU texture.
type TextureID uint64

// ShaderID is an opaque handle to a compiled shader module.
type ShaderID uint64

// PipelineID is an opaque handle to a render pipeline.
type PipelineID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// BufferUsage is a bitmask specifying how a buffer will be used.
// Flags are combined with bitwise OR.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageMapRead indicates the buffer can be mapped for reading.
	BufferUsageMapRead BufferUsage = 1 << 0

	// BufferUsageMapWrite indicates the buffer can be mapped for writing.
	BufferUsageMapWrite BufferUsage = 1 << 1

	// BufferUsageCopySrc indicates the buffer can be used as a copy source.
	BufferUsageCopySrc BufferUsage = 1 << 2

	// BufferUsageCopyDst indicates the buffer can be used as a copy destination.
	BufferUsageCopyDst BufferUsage = 1 << 3

	// BufferUsageIndex indicates the buffer can be used as an index buffer.
	BufferUsageIndex BufferUsage = 1 << 4

	// BufferUsageVertex indicates the buffer can be used as a vertex buffer.
	BufferUsageVertex BufferUsage = 1 << 5

	// BufferUsageUniform indicates the buffer can be used as a uniform buffer.
	BufferUsageUniform BufferUsage = 1 << 6

	// BufferUsageStorage indicates the buffer can be used as a storage buffer.
	BufferUsageStorage BufferUsage = 1 << 7

	// BufferUsageIndirect indicates the buffer can be used for indirect draws.
	BufferUsageIndirect BufferUsage = 1 << 8
)

// bufferUsageAll is the union of all known usage bits.
const bufferUsageAll = BufferUsageMapRead | BufferUsageMapWrite | BufferUsageCopySrc |
	BufferUsageCopyDst | BufferUsageIndex | BufferUsageVertex | BufferUsageUniform |
	BufferUsageStorage | BufferUsageIndirect

// Contains reports whether all bits of flag are set in u.
func (u BufferUsage) Contains(flag BufferUsage) bool {
	return u&flag == flag
}

// Any reports whether at least one bit of flags is set in u.
func (u BufferUsage) Any(flags BufferUsage) bool {
	return u&flags != 0
}

// Valid reports whether u is non-empty and only uses known bits.
func (u BufferUsage) Valid() bool {
	return u != 0 && u&^bufferUsageAll == 0
}

// CPUWritable reports whether the host may upload data into the buffer,
// either through a mapping or through a queue write.
func (u BufferUsage) CPUWritable() bool {
	return u.Any(BufferUsageMapWrite | BufferUsageCopyDst)
}

// CPUReadable reports whether the buffer contents may be read back.
func (u BufferUsage) CPUReadable() bool {
	return u.Any(BufferUsageMapRead | BufferUsageCopySrc)
}

var bufferUsageNames = []struct {
	flag BufferUsage
	name string
}{
	{BufferUsageMapRead, "MapRead"},
	{BufferUsageMapWrite, "MapWrite"},
	{BufferUsageCopySrc, "CopySrc"},
	{BufferUsageCopyDst, "CopyDst"},
	{BufferUsageIndex, "Index"},
	{BufferUsageVertex, "Vertex"},
	{BufferUsageUniform, "Uniform"},
	{BufferUsageStorage, "Storage"},
	{BufferUsageIndirect, "Indirect"},
}

// String returns the flags joined with "|", e.g. "CopyDst|Vertex".
func (u BufferUsage) String() string {
	if u == 0 {
		return "None"
	}
	var parts []string
	for _, n := range bufferUsageNames {
		if u&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if rest := u &^ bufferUsageAll; rest != 0 {
		parts = append(parts, fmt.Sprintf("Unknown(%#x)", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// TextureFormat specifies the format of texture data.
type TextureFormat uint32

// Texture formats.
const (
	// TextureFormatUndefined is the zero format.
	TextureFormatUndefined TextureFormat = iota

	// TextureFormatRGBA8Unorm is 8-bit RGBA, normalized unsigned integer.
	TextureFormatRGBA8Unorm

	// TextureFormatBGRA8Unorm is 8-bit BGRA, normalized unsigned integer.
	TextureFormatBGRA8Unorm

	// TextureFormatRG32Float is 32-bit RG, floating point. Used for
	// variance shadow maps (depth, depth squared).
	TextureFormatRG32Float

	// TextureFormatRGBA16Float is 16-bit RGBA, floating point.
	TextureFormatRGBA16Float

	// TextureFormatDepth24Plus is a depth format with at least 24 bits.
	TextureFormatDepth24Plus

	// TextureFormatDepth24PlusStencil8 is depth24plus with an 8-bit stencil.
	TextureFormatDepth24PlusStencil8

	// TextureFormatDepth32Float is a 32-bit floating point depth format.
	TextureFormatDepth32Float
)

// BytesPerPixel returns the storage size of one texel.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case TextureFormatRGBA8Unorm, TextureFormatBGRA8Unorm,
		TextureFormatDepth24Plus, TextureFormatDepth24PlusStencil8, TextureFormatDepth32Float:
		return 4
	case TextureFormatRG32Float, TextureFormatRGBA16Float:
		return 8
	default:
		return 0
	}
}

// IsDepth reports whether f is a depth (or depth-stencil) format.
func (f TextureFormat) IsDepth() bool {
	switch f {
	case TextureFormatDepth24Plus, TextureFormatDepth24PlusStencil8, TextureFormatDepth32Float:
		return true
	default:
		return false
	}
}

// HasStencil reports whether f carries a stencil aspect.
func (f TextureFormat) HasStencil() bool {
	return f == TextureFormatDepth24PlusStencil8
}

// String returns the format name.
func (f TextureFormat) String() string {
	switch f {
	case TextureFormatUndefined:
		return "Undefined"
	case TextureFormatRGBA8Unorm:
		return "RGBA8Unorm"
	case TextureFormatBGRA8Unorm:
		return "BGRA8Unorm"
	case TextureFormatRG32Float:
		return "RG32Float"
	case TextureFormatRGBA16Float:
		return "RGBA16Float"
	case TextureFormatDepth24Plus:
		return "Depth24Plus"
	case TextureFormatDepth24PlusStencil8:
		return "Depth24PlusStencil8"
	case TextureFormatDepth32Float:
		return "Depth32Float"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// TextureUsage is a bitmask specifying how a texture will be used.
type TextureUsage uint32

// Texture usage flags.
const (
	// TextureUsageCopySrc indicates the texture can be used as a copy source.
	TextureUsageCopySrc TextureUsage = 1 << 0

	// TextureUsageCopyDst indicates the texture can be used as a copy destination.
	TextureUsageCopyDst TextureUsage = 1 << 1

	// TextureUsageTextureBinding indicates the texture can be bound as a sampled texture.
	TextureUsageTextureBinding TextureUsage = 1 << 2

	// TextureUsageStorageBinding indicates the texture can be bound as a storage texture.
	TextureUsageStorageBinding TextureUsage = 1 << 3

	// TextureUsageRenderAttachment indicates the texture can be used as a render target.
	TextureUsageRenderAttachment TextureUsage = 1 << 4
)

// Contains reports whether all bits of flag are set in u.
func (u TextureUsage) Contains(flag TextureUsage) bool {
	return u&flag == flag
}

// IndexFormat is the element width of an index buffer.
type IndexFormat uint8

// Index formats.
const (
	// IndexFormatUndefined is the zero value.
	IndexFormatUndefined IndexFormat = iota

	// IndexFormatUint8 is an 8-bit index. No backend accepts it.
	IndexFormatUint8

	// IndexFormatUint16 is a 16-bit index.
	IndexFormatUint16

	// IndexFormatUint32 is a 32-bit index.
	IndexFormatUint32
)

// Size returns the width of one index in bytes, or 0 for unknown formats.
func (f IndexFormat) Size() int {
	switch f {
	case IndexFormatUint8:
		return 1
	case IndexFormatUint16:
		return 2
	case IndexFormatUint32:
		return 4
	default:
		return 0
	}
}

// String returns the format name.
func (f IndexFormat) String() string {
	switch f {
	case IndexFormatUndefined:
		return "Undefined"
	case IndexFormatUint8:
		return "Uint8"
	case IndexFormatUint16:
		return "Uint16"
	case IndexFormatUint32:
		return "Uint32"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// VertexFormat is the type of a single vertex attribute.
type VertexFormat uint8

// Vertex attribute formats.
const (
	VertexFormatFloat32 VertexFormat = iota + 1
	VertexFormatFloat32x2
	VertexFormatFloat32x3
	VertexFormatFloat32x4
	VertexFormatUint32
	VertexFormatUnorm8x4
)

// Size returns the attribute size in bytes.
func (f VertexFormat) Size() uint64 {
	switch f {
	case VertexFormatFloat32, VertexFormatUint32, VertexFormatUnorm8x4:
		return 4
	case VertexFormatFloat32x2:
		return 8
	case VertexFormatFloat32x3:
		return 12
	case VertexFormatFloat32x4:
		return 16
	default:
		return 0
	}
}

// Components returns the number of scalar components.
func (f VertexFormat) Components() int {
	switch f {
	case VertexFormatFloat32, VertexFormatUint32:
		return 1
	case VertexFormatFloat32x2:
		return 2
	case VertexFormatFloat32x3:
		return 3
	case VertexFormatFloat32x4, VertexFormatUnorm8x4:
		return 4
	default:
		return 0
	}
}

// String returns the format name.
func (f VertexFormat) String() string {
	switch f {
	case VertexFormatFloat32:
		return "Float32"
	case VertexFormatFloat32x2:
		return "Float32x2"
	case VertexFormatFloat32x3:
		return "Float32x3"
	case VertexFormatFloat32x4:
		return "Float32x4"
	case VertexFormatUint32:
		return "Uint32"
	case VertexFormatUnorm8x4:
		return "Unorm8x4"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}
