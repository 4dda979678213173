package webgl

import (
	"fmt"
	"strings"

	"github.com/gogpu/gfx/backend"
	"github.com/gogpu/gfx/gpucore"
)

// WebGL2 enums used by the backend.
const (
	glArrayBuffer        = 0x8892
	glElementArrayBuffer = 0x8893
	glUniformBuffer      = 0x8A11
	glCopyReadBuffer     = 0x8F36
	glCopyWriteBuffer    = 0x8F37

	glStaticDraw  = 0x88E4
	glDynamicDraw = 0x88E8
	glDynamicRead = 0x88E9

	glTexture2D        = 0x0DE1
	glTexture0         = 0x84C0
	glTextureMinFilter = 0x2801
	glTextureMagFilter = 0x2800
	glNearest          = 0x2600
	glRenderbuffer     = 0x8D41

	glFramebuffer              = 0x8D40
	glReadFramebuffer          = 0x8CA8
	glDrawFramebuffer          = 0x8CA9
	glColorAttachment0         = 0x8CE0
	glDepthAttachment          = 0x8D00
	glDepthStencilAttachment   = 0x821A
	glFramebufferComplete      = 0x8CD5
	glColorBufferBit           = 0x4000
	glDepthBufferBit           = 0x0100
	glStencilBufferBit         = 0x0400
	glColor                    = 0x1800
	glDepth                    = 0x1801
	glDepthStencil             = 0x84F9
	glRGBA                     = 0x1908
	glRG                       = 0x8227
	glDepthComponent           = 0x1902
	glUnsignedByte             = 0x1401
	glUnsignedShort            = 0x1403
	glUnsignedInt              = 0x1405
	glFloat                    = 0x1406
	glHalfFloat                = 0x140B
	glUnsignedInt248           = 0x84FA
	glRGBA8                    = 0x8058
	glRG32F                    = 0x8230
	glRGBA16F                  = 0x881A
	glDepthComponent24         = 0x81A6
	glDepth24Stencil8          = 0x88F0
	glDepthComponent32F        = 0x8CAC
	glVertexShader             = 0x8B31
	glFragmentShader           = 0x8B30
	glCompileStatus            = 0x8B81
	glLinkStatus               = 0x8B82
	glActiveUniformBlocks      = 0x8A36
	glTriangles                = 0x0004
	glDepthTest                = 0x0B71
	glCullFace                 = 0x0B44
	glFront                    = 0x0404
	glBack                     = 0x0405
	glLEqual                   = 0x0203
	glMaxTextureSize           = 0x0D33
	glMaxSamples               = 0x8D57
	glUniformBufferOffsetAlign = 0x8A34
	glRenderer                 = 0x1F01
	glNone                     = 0
)

// glFormat is the storage of a texture format in WebGL2.
type glFormat struct {
	internal uint32
	format   uint32
	kind     uint32
}

var textureFormats = map[gpucore.TextureFormat]glFormat{
	gpucore.TextureFormatRGBA8Unorm:          {glRGBA8, glRGBA, glUnsignedByte},
	gpucore.TextureFormatRG32Float:           {glRG32F, glRG, glFloat},
	gpucore.TextureFormatRGBA16Float:         {glRGBA16F, glRGBA, glHalfFloat},
	gpucore.TextureFormatDepth24Plus:         {glDepthComponent24, glDepthComponent, glUnsignedInt},
	gpucore.TextureFormatDepth24PlusStencil8: {glDepth24Stencil8, glDepthStencil, glUnsignedInt248},
	gpucore.TextureFormatDepth32Float:        {glDepthComponent32F, glDepthComponent, glFloat},
}

// textureFormat returns the WebGL2 storage for f. BGRA8 has no WebGL2
// storage format.
func textureFormat(f gpucore.TextureFormat) (glFormat, error) {
	if out, ok := textureFormats[f]; ok {
		return out, nil
	}
	return glFormat{}, fmt.Errorf("%w: texture format %s", backend.ErrUnsupported, f)
}

func attachmentPoint(f gpucore.TextureFormat) uint32 {
	switch {
	case f.HasStencil():
		return glDepthStencilAttachment
	case f.IsDepth():
		return glDepthAttachment
	default:
		return glColorAttachment0
	}
}

func blitMask(f gpucore.TextureFormat) uint32 {
	switch {
	case f.HasStencil():
		return glDepthBufferBit | glStencilBufferBit
	case f.IsDepth():
		return glDepthBufferBit
	default:
		return glColorBufferBit
	}
}

// bufferTarget picks the bind point a buffer lives on. WebGL2 never lets
// an element array buffer move to another target.
func bufferTarget(u gpucore.BufferUsage) uint32 {
	if u.Contains(gpucore.BufferUsageIndex) {
		return glElementArrayBuffer
	}
	return glCopyWriteBuffer
}

func bufferHint(u gpucore.BufferUsage) uint32 {
	switch {
	case u.Contains(gpucore.BufferUsageMapRead):
		return glDynamicRead
	case u.Any(gpucore.BufferUsageUniform | gpucore.BufferUsageMapWrite):
		return glDynamicDraw
	default:
		return glStaticDraw
	}
}

func indexType(f gpucore.IndexFormat) (uint32, error) {
	switch f {
	case gpucore.IndexFormatUint16:
		return glUnsignedShort, nil
	case gpucore.IndexFormatUint32:
		return glUnsignedInt, nil
	default:
		return 0, fmt.Errorf("%w: index format %s", backend.ErrUnsupported, f)
	}
}

// attribFormat describes a vertexAttribPointer call.
type attribFormat struct {
	size       int
	kind       uint32
	normalized bool
	integer    bool
}

var vertexFormats = map[gpucore.VertexFormat]attribFormat{
	gpucore.VertexFormatFloat32:   {size: 1, kind: glFloat},
	gpucore.VertexFormatFloat32x2: {size: 2, kind: glFloat},
	gpucore.VertexFormatFloat32x3: {size: 3, kind: glFloat},
	gpucore.VertexFormatFloat32x4: {size: 4, kind: glFloat},
	gpucore.VertexFormatUint32:    {size: 1, kind: glUnsignedInt, integer: true},
	gpucore.VertexFormatUnorm8x4:  {size: 4, kind: glUnsignedByte, normalized: true},
}

func vertexFormat(f gpucore.VertexFormat) (attribFormat, error) {
	if out, ok := vertexFormats[f]; ok {
		return out, nil
	}
	return attribFormat{}, fmt.Errorf("%w: vertex format %s", backend.ErrUnsupported, f)
}

// emptyFragment is linked into programs whose source has no fragment
// stage, since WebGL2 programs always need one.
const emptyFragment = "#version 300 es\nprecision mediump float;\nvoid main() {}\n"

// splitStages separates a GLSL module into its vertex and fragment
// sources using the stage markers.
func splitStages(source string) (vertex, fragment string, err error) {
	vi := strings.Index(source, backend.GLSLVertexMarker)
	if vi < 0 {
		return "", "", fmt.Errorf("%w: GLSL module has no %s section", backend.ErrUnsupported, backend.GLSLVertexMarker)
	}
	fi := strings.Index(source, backend.GLSLFragmentMarker)
	switch {
	case fi < 0:
		vertex = source[vi+len(backend.GLSLVertexMarker):]
		fragment = emptyFragment
	case fi < vi:
		fragment = source[fi+len(backend.GLSLFragmentMarker) : vi]
		vertex = source[vi+len(backend.GLSLVertexMarker):]
	default:
		vertex = source[vi+len(backend.GLSLVertexMarker) : fi]
		fragment = source[fi+len(backend.GLSLFragmentMarker):]
	}
	// #version must be the first line of a GLSL ES 3.00 source.
	return strings.TrimLeft(vertex, " \t\r\n"), strings.TrimLeft(fragment, " \t\r\n"), nil
}

// flipRows reverses the row order of a tightly packed image in place.
// GL reads framebuffers bottom row first; gpucore textures are top first.
func flipRows(pixels []byte, rowBytes, rows int) {
	tmp := make([]byte, rowBytes)
	for top, bottom := 0, rows-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := pixels[top*rowBytes : (top+1)*rowBytes]
		b := pixels[bottom*rowBytes : (bottom+1)*rowBytes]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}

// packChannels keeps the first n of every four 4-byte channels. Float
// color buffers are always read back as RGBA.
func packChannels(rgba []byte, n int) []byte {
	pixels := len(rgba) / 16
	out := make([]byte, 0, pixels*n*4)
	for i := 0; i < pixels; i++ {
		out = append(out, rgba[i*16:i*16+n*4]...)
	}
	return out
}
