//go:build rust

package rust

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gogpu/gfx/backend"
	"github.com/gogpu/gfx/gpucore"
)

// bufferUsage converts usage flags. Every buffer gets CopyDst because
// writes and unmaps are published from the host mirror with queue writes.
// Map bits are dropped: wgpu-native only allows them alongside copy usage.
func bufferUsage(u gpucore.BufferUsage) wgpu.BufferUsage {
	out := wgpu.BufferUsageCopyDst
	if u.Contains(gpucore.BufferUsageCopySrc) {
		out |= wgpu.BufferUsageCopySrc
	}
	if u.Contains(gpucore.BufferUsageIndex) {
		out |= wgpu.BufferUsageIndex
	}
	if u.Contains(gpucore.BufferUsageVertex) {
		out |= wgpu.BufferUsageVertex
	}
	if u.Contains(gpucore.BufferUsageUniform) {
		out |= wgpu.BufferUsageUniform
	}
	if u.Contains(gpucore.BufferUsageStorage) {
		out |= wgpu.BufferUsageStorage
	}
	if u.Contains(gpucore.BufferUsageIndirect) {
		out |= wgpu.BufferUsageIndirect
	}
	return out
}

func textureUsage(u gpucore.TextureUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u.Contains(gpucore.TextureUsageCopySrc) {
		out |= wgpu.TextureUsageCopySrc
	}
	if u.Contains(gpucore.TextureUsageCopyDst) {
		out |= wgpu.TextureUsageCopyDst
	}
	if u.Contains(gpucore.TextureUsageTextureBinding) {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u.Contains(gpucore.TextureUsageStorageBinding) {
		out |= wgpu.TextureUsageStorageBinding
	}
	if u.Contains(gpucore.TextureUsageRenderAttachment) {
		out |= wgpu.TextureUsageRenderAttachment
	}
	return out
}

var textureFormats = map[gpucore.TextureFormat]wgpu.TextureFormat{
	gpucore.TextureFormatRGBA8Unorm:          wgpu.TextureFormatRGBA8Unorm,
	gpucore.TextureFormatBGRA8Unorm:          wgpu.TextureFormatBGRA8Unorm,
	gpucore.TextureFormatRG32Float:           wgpu.TextureFormatRG32Float,
	gpucore.TextureFormatRGBA16Float:         wgpu.TextureFormatRGBA16Float,
	gpucore.TextureFormatDepth24Plus:         wgpu.TextureFormatDepth24Plus,
	gpucore.TextureFormatDepth24PlusStencil8: wgpu.TextureFormatDepth24PlusStencil8,
	gpucore.TextureFormatDepth32Float:        wgpu.TextureFormatDepth32Float,
}

func textureFormat(f gpucore.TextureFormat) (wgpu.TextureFormat, error) {
	if out, ok := textureFormats[f]; ok {
		return out, nil
	}
	return wgpu.TextureFormatUndefined, fmt.Errorf("%w: texture format %s", backend.ErrUnsupported, f)
}

func indexFormat(f gpucore.IndexFormat) (wgpu.IndexFormat, error) {
	switch f {
	case gpucore.IndexFormatUint16:
		return wgpu.IndexFormatUint16, nil
	case gpucore.IndexFormatUint32:
		return wgpu.IndexFormatUint32, nil
	default:
		return wgpu.IndexFormatUint16, fmt.Errorf("%w: index format %s", backend.ErrUnsupported, f)
	}
}

var vertexFormats = map[gpucore.VertexFormat]wgpu.VertexFormat{
	gpucore.VertexFormatFloat32:   wgpu.VertexFormatFloat32,
	gpucore.VertexFormatFloat32x2: wgpu.VertexFormatFloat32x2,
	gpucore.VertexFormatFloat32x3: wgpu.VertexFormatFloat32x3,
	gpucore.VertexFormatFloat32x4: wgpu.VertexFormatFloat32x4,
	gpucore.VertexFormatUint32:    wgpu.VertexFormatUint32,
	gpucore.VertexFormatUnorm8x4:  wgpu.VertexFormatUnorm8x4,
}

func vertexLayouts(layouts []gpucore.VertexLayout) ([]wgpu.VertexBufferLayout, error) {
	out := make([]wgpu.VertexBufferLayout, 0, len(layouts))
	for i, l := range layouts {
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("vertex layout %d: %w", i, err)
		}
		attrs := make([]wgpu.VertexAttribute, 0, len(l.Attributes))
		for _, a := range l.Attributes {
			format, ok := vertexFormats[a.Format]
			if !ok {
				return nil, fmt.Errorf("%w: vertex format %s", backend.ErrUnsupported, a.Format)
			}
			attrs = append(attrs, wgpu.VertexAttribute{
				Format:         format,
				Offset:         a.Offset,
				ShaderLocation: a.Location,
			})
		}
		out = append(out, wgpu.VertexBufferLayout{
			ArrayStride: l.Stride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes:  attrs,
		})
	}
	return out, nil
}

func cullMode(c gpucore.CullMode) wgpu.CullMode {
	switch c {
	case gpucore.CullModeFront:
		return wgpu.CullModeFront
	case gpucore.CullModeBack:
		return wgpu.CullModeBack
	default:
		return wgpu.CullModeNone
	}
}

func loadOp(op gpucore.LoadOp) wgpu.LoadOp {
	if op == gpucore.LoadOpLoad {
		return wgpu.LoadOpLoad
	}
	return wgpu.LoadOpClear
}

func storeOp(store bool) wgpu.StoreOp {
	if store {
		return wgpu.StoreOpStore
	}
	return wgpu.StoreOpDiscard
}
