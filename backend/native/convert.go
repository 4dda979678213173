package native

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gfx/backend"
	"github.com/gogpu/gfx/gpucore"
)

var bufferUsageBits = []struct {
	from gpucore.BufferUsage
	to   gputypes.BufferUsage
}{
	{gpucore.BufferUsageMapRead, gputypes.BufferUsageMapRead},
	{gpucore.BufferUsageMapWrite, gputypes.BufferUsageMapWrite},
	{gpucore.BufferUsageCopySrc, gputypes.BufferUsageCopySrc},
	{gpucore.BufferUsageCopyDst, gputypes.BufferUsageCopyDst},
	{gpucore.BufferUsageIndex, gputypes.BufferUsageIndex},
	{gpucore.BufferUsageVertex, gputypes.BufferUsageVertex},
	{gpucore.BufferUsageUniform, gputypes.BufferUsageUniform},
	{gpucore.BufferUsageStorage, gputypes.BufferUsageStorage},
	{gpucore.BufferUsageIndirect, gputypes.BufferUsageIndirect},
}

// bufferUsage converts buffer usage flags. Host-mapped buffers also get
// CopyDst because mapped ranges are published with queue writes.
func bufferUsage(u gpucore.BufferUsage) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	for _, bit := range bufferUsageBits {
		if u.Contains(bit.from) {
			out |= bit.to
		}
	}
	if u.Contains(gpucore.BufferUsageMapWrite) {
		out |= gputypes.BufferUsageCopyDst
	}
	return out
}

var textureUsageBits = []struct {
	from gpucore.TextureUsage
	to   gputypes.TextureUsage
}{
	{gpucore.TextureUsageCopySrc, gputypes.TextureUsageCopySrc},
	{gpucore.TextureUsageCopyDst, gputypes.TextureUsageCopyDst},
	{gpucore.TextureUsageTextureBinding, gputypes.TextureUsageTextureBinding},
	{gpucore.TextureUsageStorageBinding, gputypes.TextureUsageStorageBinding},
	{gpucore.TextureUsageRenderAttachment, gputypes.TextureUsageRenderAttachment},
}

// textureUsage converts texture usage flags. Every texture can be copied
// out so ReadTexture works without the caller asking for it.
func textureUsage(u gpucore.TextureUsage) gputypes.TextureUsage {
	out := gputypes.TextureUsageCopySrc
	for _, bit := range textureUsageBits {
		if u.Contains(bit.from) {
			out |= bit.to
		}
	}
	return out
}

func textureFormat(f gpucore.TextureFormat) (gputypes.TextureFormat, error) {
	switch f {
	case gpucore.TextureFormatRGBA8Unorm:
		return gputypes.TextureFormatRGBA8Unorm, nil
	case gpucore.TextureFormatBGRA8Unorm:
		return gputypes.TextureFormatBGRA8Unorm, nil
	case gpucore.TextureFormatRG32Float:
		return gputypes.TextureFormatRG32Float, nil
	case gpucore.TextureFormatRGBA16Float:
		return gputypes.TextureFormatRGBA16Float, nil
	case gpucore.TextureFormatDepth24Plus:
		return gputypes.TextureFormatDepth24Plus, nil
	case gpucore.TextureFormatDepth24PlusStencil8:
		return gputypes.TextureFormatDepth24PlusStencil8, nil
	case gpucore.TextureFormatDepth32Float:
		return gputypes.TextureFormatDepth32Float, nil
	default:
		return gputypes.TextureFormatUndefined, fmt.Errorf("%w: texture format %s", backend.ErrUnsupported, f)
	}
}

func indexFormat(f gpucore.IndexFormat) (gputypes.IndexFormat, error) {
	switch f {
	case gpucore.IndexFormatUint16:
		return gputypes.IndexFormatUint16, nil
	case gpucore.IndexFormatUint32:
		return gputypes.IndexFormatUint32, nil
	default:
		return gputypes.IndexFormatUint16, fmt.Errorf("%w: index format %s", backend.ErrUnsupported, f)
	}
}

func vertexFormat(f gpucore.VertexFormat) (gputypes.VertexFormat, error) {
	switch f {
	case gpucore.VertexFormatFloat32:
		return gputypes.VertexFormatFloat32, nil
	case gpucore.VertexFormatFloat32x2:
		return gputypes.VertexFormatFloat32x2, nil
	case gpucore.VertexFormatFloat32x3:
		return gputypes.VertexFormatFloat32x3, nil
	case gpucore.VertexFormatFloat32x4:
		return gputypes.VertexFormatFloat32x4, nil
	case gpucore.VertexFormatUint32:
		return gputypes.VertexFormatUint32, nil
	case gpucore.VertexFormatUnorm8x4:
		return gputypes.VertexFormatUnorm8x4, nil
	default:
		return gputypes.VertexFormatFloat32, fmt.Errorf("%w: vertex format %s", backend.ErrUnsupported, f)
	}
}

func vertexLayouts(layouts []gpucore.VertexLayout) ([]gputypes.VertexBufferLayout, error) {
	out := make([]gputypes.VertexBufferLayout, 0, len(layouts))
	for i, l := range layouts {
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("vertex layout %d: %w", i, err)
		}
		attrs := make([]gputypes.VertexAttribute, 0, len(l.Attributes))
		for _, a := range l.Attributes {
			format, err := vertexFormat(a.Format)
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, gputypes.VertexAttribute{
				Format:         format,
				Offset:         a.Offset,
				ShaderLocation: a.Location,
			})
		}
		out = append(out, gputypes.VertexBufferLayout{
			ArrayStride: l.Stride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes:  attrs,
		})
	}
	return out, nil
}

func cullMode(c gpucore.CullMode) gputypes.CullMode {
	switch c {
	case gpucore.CullModeFront:
		return gputypes.CullModeFront
	case gpucore.CullModeBack:
		return gputypes.CullModeBack
	default:
		return gputypes.CullModeNone
	}
}

func loadOp(op gpucore.LoadOp) gputypes.LoadOp {
	if op == gpucore.LoadOpLoad {
		return gputypes.LoadOpLoad
	}
	return gputypes.LoadOpClear
}

func storeOp(store bool) gputypes.StoreOp {
	if store {
		return gputypes.StoreOpStore
	}
	return gputypes.StoreOpDiscard
}

// copyPitchAlignment is the required BytesPerRow alignment of
// texture-to-buffer copies.
const copyPitchAlignment = 256

func alignedBytesPerRow(width uint32, bpp int) uint32 {
	row := width * uint32(bpp)
	return (row + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
}
