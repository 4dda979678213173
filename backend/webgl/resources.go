//go:build js && wasm

package webgl

import (
	"fmt"
	"strings"
	"syscall/js"

	"github.com/gogpu/gfx/backend"
	"github.com/gogpu/gfx/gpucore"
)

type glBuffer struct {
	desc   gpucore.BufferDescriptor
	raw    js.Value
	target uint32
	shadow []byte
	mapped bool
}

// glTexture is a texture, or a renderbuffer when multisampled. fbo is a
// framebuffer holding only this image, created on first read or blit.
type glTexture struct {
	desc   gpucore.TextureDescriptor
	format glFormat
	tex    js.Value
	rb     js.Value
	fbo    js.Value
}

func (t *glTexture) multisampled() bool { return t.desc.Samples() > 1 }

func (t *glTexture) attach(gl js.Value, target, point uint32) {
	if t.multisampled() {
		gl.Call("framebufferRenderbuffer", target, point, glRenderbuffer, t.rb)
		return
	}
	gl.Call("framebufferTexture2D", target, point, glTexture2D, t.tex, 0)
}

func (t *glTexture) delete(gl js.Value) {
	if t.fbo.Truthy() {
		gl.Call("deleteFramebuffer", t.fbo)
	}
	if t.rb.Truthy() {
		gl.Call("deleteRenderbuffer", t.rb)
	}
	if t.tex.Truthy() {
		gl.Call("deleteTexture", t.tex)
	}
}

type glShader struct {
	vertex   js.Value
	fragment js.Value
}

func (s *glShader) delete(gl js.Value) {
	gl.Call("deleteShader", s.vertex)
	gl.Call("deleteShader", s.fragment)
}

type glPipeline struct {
	desc     gpucore.RenderPipelineDescriptor
	program  js.Value
	uniforms bool
}

// CreateBuffer allocates a GL buffer on its fixed target.
func (b *Backend) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return gpucore.InvalidID, err
	}
	if desc == nil || desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: zero-sized buffer", backend.ErrOutOfRange)
	}
	if desc.Size > b.caps.MaxBufferSize {
		return gpucore.InvalidID, fmt.Errorf("%w: size %d exceeds max %d", backend.ErrOutOfRange, desc.Size, b.caps.MaxBufferSize)
	}

	buf := &glBuffer{desc: *desc, raw: b.gl.Call("createBuffer"), target: bufferTarget(desc.Usage)}
	b.gl.Call("bindBuffer", buf.target, buf.raw)
	b.gl.Call("bufferData", buf.target, int(desc.Size), bufferHint(desc.Usage))
	b.gl.Call("bindBuffer", buf.target, nil)
	if err := b.glError("create buffer " + desc.Label); err != nil {
		b.gl.Call("deleteBuffer", buf.raw)
		return gpucore.InvalidID, err
	}
	if desc.MappedAtCreation {
		buf.shadow = make([]byte, desc.Size)
		buf.mapped = true
	}
	id := gpucore.BufferID(b.newID())
	b.buffers[id] = buf
	return id, nil
}

func (b *Backend) bufferLocked(id gpucore.BufferID) (*glBuffer, error) {
	if err := b.checkLocked(); err != nil {
		return nil, err
	}
	buf, ok := b.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", backend.ErrUnknownResource, id)
	}
	return buf, nil
}

func (b *Backend) upload(buf *glBuffer, offset uint64, data []byte) {
	b.gl.Call("bindBuffer", buf.target, buf.raw)
	b.gl.Call("bufferSubData", buf.target, int(offset), bytesToJS(data))
	b.gl.Call("bindBuffer", buf.target, nil)
}

// MappedRange returns the host memory of a mapped buffer.
func (b *Backend) MappedRange(id gpucore.BufferID) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.bufferLocked(id)
	if err != nil {
		return nil, err
	}
	if !buf.mapped {
		return nil, fmt.Errorf("%w: buffer %d is not mapped", backend.ErrMapped, id)
	}
	return buf.shadow, nil
}

// Unmap uploads the mapped range with bufferSubData.
func (b *Backend) Unmap(id gpucore.BufferID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.bufferLocked(id)
	if err != nil {
		return err
	}
	if !buf.mapped {
		return fmt.Errorf("%w: buffer %d is not mapped", backend.ErrMapped, id)
	}
	b.upload(buf, 0, buf.shadow)
	buf.shadow = nil
	buf.mapped = false
	return nil
}

// Remap maps a host-writable buffer again with a zeroed range.
func (b *Backend) Remap(id gpucore.BufferID) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.bufferLocked(id)
	if err != nil {
		return nil, err
	}
	if buf.mapped {
		return nil, fmt.Errorf("%w: buffer %d is already mapped", backend.ErrMapped, id)
	}
	if !buf.desc.Usage.Contains(gpucore.BufferUsageMapWrite) {
		return nil, fmt.Errorf("%w: buffer %d usage %s is not host-writable", backend.ErrUnsupported, id, buf.desc.Usage)
	}
	buf.shadow = make([]byte, buf.desc.Size)
	buf.mapped = true
	return buf.shadow, nil
}

// WriteBuffer uploads data with bufferSubData.
func (b *Backend) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.bufferLocked(id)
	if err != nil {
		return err
	}
	if !buf.desc.Usage.Any(gpucore.BufferUsageCopyDst | gpucore.BufferUsageMapWrite) {
		return fmt.Errorf("%w: write to buffer %d without CopyDst", backend.ErrUnsupported, id)
	}
	if buf.mapped {
		return fmt.Errorf("%w: write to mapped buffer %d", backend.ErrMapped, id)
	}
	if offset+uint64(len(data)) > buf.desc.Size {
		return fmt.Errorf("%w: write [%d, %d) exceeds size %d", backend.ErrOutOfRange, offset, offset+uint64(len(data)), buf.desc.Size)
	}
	b.upload(buf, offset, data)
	return nil
}

// ReadBuffer reads back with getBufferSubData.
func (b *Backend) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.bufferLocked(id)
	if err != nil {
		return nil, err
	}
	if offset+size > buf.desc.Size {
		return nil, fmt.Errorf("%w: read [%d, %d) exceeds size %d", backend.ErrOutOfRange, offset, offset+size, buf.desc.Size)
	}
	out := make([]byte, size)
	if buf.mapped {
		copy(out, buf.shadow[offset:offset+size])
		return out, nil
	}
	if !buf.desc.Usage.Any(gpucore.BufferUsageMapRead | gpucore.BufferUsageCopySrc) {
		return nil, fmt.Errorf("%w: read of buffer %d without MapRead or CopySrc", backend.ErrUnsupported, id)
	}
	arr := js.Global().Get("Uint8Array").New(int(size))
	b.gl.Call("bindBuffer", buf.target, buf.raw)
	b.gl.Call("getBufferSubData", buf.target, int(offset), arr)
	b.gl.Call("bindBuffer", buf.target, nil)
	js.CopyBytesToGo(out, arr)
	return out, nil
}

// CopyBuffer copies with copyBufferSubData. Index buffers only copy to
// and from other index buffers.
func (b *Backend) CopyBuffer(src gpucore.BufferID, srcOffset uint64, dst gpucore.BufferID, dstOffset, size uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.bufferLocked(src)
	if err != nil {
		return err
	}
	d, err := b.bufferLocked(dst)
	if err != nil {
		return err
	}
	if !s.desc.Usage.Contains(gpucore.BufferUsageCopySrc) || !d.desc.Usage.Contains(gpucore.BufferUsageCopyDst) {
		return fmt.Errorf("%w: copy requires CopySrc -> CopyDst", backend.ErrUnsupported)
	}
	if s.target != d.target {
		return fmt.Errorf("%w: copy between index and non-index buffers", backend.ErrUnsupported)
	}
	if s.mapped || d.mapped {
		return fmt.Errorf("%w: copy between mapped buffers", backend.ErrMapped)
	}
	if srcOffset+size > s.desc.Size || dstOffset+size > d.desc.Size {
		return fmt.Errorf("%w: copy of %d bytes", backend.ErrOutOfRange, size)
	}
	b.gl.Call("bindBuffer", glCopyReadBuffer, s.raw)
	b.gl.Call("bindBuffer", glCopyWriteBuffer, d.raw)
	b.gl.Call("copyBufferSubData", glCopyReadBuffer, glCopyWriteBuffer, int(srcOffset), int(dstOffset), int(size))
	b.gl.Call("bindBuffer", glCopyReadBuffer, nil)
	b.gl.Call("bindBuffer", glCopyWriteBuffer, nil)
	return b.glError("copy buffer")
}

// DestroyBuffer deletes a buffer. Unknown IDs are ignored.
func (b *Backend) DestroyBuffer(id gpucore.BufferID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.buffers[id]
	if !ok {
		return
	}
	delete(b.buffers, id)
	b.gl.Call("deleteBuffer", buf.raw)
}

// CreateTexture allocates immutable texture storage, or a multisampled
// renderbuffer when SampleCount > 1.
func (b *Backend) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return gpucore.InvalidID, err
	}
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: zero-sized texture", backend.ErrOutOfRange)
	}
	if desc.Width > b.caps.MaxTextureDimension || desc.Height > b.caps.MaxTextureDimension {
		return gpucore.InvalidID, fmt.Errorf("%w: %dx%d exceeds max dimension %d",
			backend.ErrOutOfRange, desc.Width, desc.Height, b.caps.MaxTextureDimension)
	}
	if desc.Samples() > b.caps.MaxSampleCount {
		return gpucore.InvalidID, fmt.Errorf("%w: sample count %d", backend.ErrUnsupported, desc.Samples())
	}
	format, err := textureFormat(desc.Format)
	if err != nil {
		return gpucore.InvalidID, err
	}

	t := &glTexture{desc: *desc, format: format}
	w, h := int(desc.Width), int(desc.Height)
	if t.multisampled() {
		if desc.Usage.Contains(gpucore.TextureUsageTextureBinding) {
			return gpucore.InvalidID, fmt.Errorf("%w: multisampled textures cannot be sampled", backend.ErrUnsupported)
		}
		t.rb = b.gl.Call("createRenderbuffer")
		b.gl.Call("bindRenderbuffer", glRenderbuffer, t.rb)
		b.gl.Call("renderbufferStorageMultisample", glRenderbuffer, int(desc.Samples()), format.internal, w, h)
		b.gl.Call("bindRenderbuffer", glRenderbuffer, nil)
	} else {
		t.tex = b.gl.Call("createTexture")
		b.gl.Call("bindTexture", glTexture2D, t.tex)
		b.gl.Call("texStorage2D", glTexture2D, 1, format.internal, w, h)
		// Float formats are not filterable without extensions.
		b.gl.Call("texParameteri", glTexture2D, glTextureMinFilter, glNearest)
		b.gl.Call("texParameteri", glTexture2D, glTextureMagFilter, glNearest)
		b.gl.Call("bindTexture", glTexture2D, nil)
	}
	if err := b.glError("create texture " + desc.Label); err != nil {
		t.delete(b.gl)
		return gpucore.InvalidID, err
	}
	id := gpucore.TextureID(b.newID())
	b.textures[id] = t
	return id, nil
}

func (b *Backend) textureLocked(id gpucore.TextureID) (*glTexture, error) {
	if err := b.checkLocked(); err != nil {
		return nil, err
	}
	tex, ok := b.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: texture %d", backend.ErrUnknownResource, id)
	}
	return tex, nil
}

// framebuffer returns the single-attachment framebuffer of t.
func (b *Backend) framebuffer(t *glTexture) js.Value {
	if !t.fbo.Truthy() {
		t.fbo = b.gl.Call("createFramebuffer")
		b.gl.Call("bindFramebuffer", glFramebuffer, t.fbo)
		t.attach(b.gl, glFramebuffer, attachmentPoint(t.desc.Format))
		b.gl.Call("bindFramebuffer", glFramebuffer, nil)
	}
	return t.fbo
}

// ReadTexture reads a single-sampled color texture with readPixels.
// RGBA8 and RG32Float are readable; rows are returned top first.
func (b *Backend) ReadTexture(id gpucore.TextureID) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.textureLocked(id)
	if err != nil {
		return nil, err
	}
	if t.multisampled() {
		return nil, fmt.Errorf("%w: read of multisampled texture", backend.ErrUnsupported)
	}
	w, h := int(t.desc.Width), int(t.desc.Height)
	bpp := t.desc.Format.BytesPerPixel()

	var out []byte
	b.gl.Call("bindFramebuffer", glReadFramebuffer, b.framebuffer(t))
	switch t.desc.Format {
	case gpucore.TextureFormatRGBA8Unorm:
		arr := js.Global().Get("Uint8Array").New(w * h * 4)
		b.gl.Call("readPixels", 0, 0, w, h, glRGBA, glUnsignedByte, arr)
		out = make([]byte, w*h*4)
		js.CopyBytesToGo(out, arr)
	case gpucore.TextureFormatRG32Float:
		floats := js.Global().Get("Float32Array").New(w * h * 4)
		b.gl.Call("readPixels", 0, 0, w, h, glRGBA, glFloat, floats)
		rgba := make([]byte, w*h*16)
		js.CopyBytesToGo(rgba, js.Global().Get("Uint8Array").New(floats.Get("buffer")))
		out = packChannels(rgba, 2)
	default:
		b.gl.Call("bindFramebuffer", glReadFramebuffer, nil)
		return nil, fmt.Errorf("%w: read of %s texture", backend.ErrUnsupported, t.desc.Format)
	}
	b.gl.Call("bindFramebuffer", glReadFramebuffer, nil)
	if err := b.glError("read texture"); err != nil {
		return nil, err
	}
	flipRows(out, w*bpp, h)
	return out, nil
}

// ResolveTexture resolves src into dst with blitFramebuffer. Depth and
// depth-stencil images resolve too.
func (b *Backend) ResolveTexture(src, dst gpucore.TextureID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.textureLocked(src)
	if err != nil {
		return err
	}
	d, err := b.textureLocked(dst)
	if err != nil {
		return err
	}
	if s.desc.Width != d.desc.Width || s.desc.Height != d.desc.Height || s.desc.Format != d.desc.Format {
		return fmt.Errorf("%w: resolve between mismatched textures", backend.ErrUnsupported)
	}
	if d.multisampled() {
		return fmt.Errorf("%w: resolve into multisampled texture", backend.ErrUnsupported)
	}
	b.blit(s, d)
	return b.glError("resolve texture")
}

func (b *Backend) blit(s, d *glTexture) {
	w, h := int(s.desc.Width), int(s.desc.Height)
	// framebuffer rebinds FRAMEBUFFER when it creates one, so fetch both first.
	src, dst := b.framebuffer(s), b.framebuffer(d)
	b.gl.Call("bindFramebuffer", glReadFramebuffer, src)
	b.gl.Call("bindFramebuffer", glDrawFramebuffer, dst)
	b.gl.Call("blitFramebuffer", 0, 0, w, h, 0, 0, w, h, blitMask(s.desc.Format), glNearest)
	b.gl.Call("bindFramebuffer", glReadFramebuffer, nil)
	b.gl.Call("bindFramebuffer", glDrawFramebuffer, nil)
}

// DestroyTexture deletes a texture. Unknown IDs are ignored.
func (b *Backend) DestroyTexture(id gpucore.TextureID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.textures[id]
	if !ok {
		return
	}
	delete(b.textures, id)
	t.delete(b.gl)
}

// CreateShaderModule compiles both stages of a GLSL ES 3.00 module.
func (b *Backend) CreateShaderModule(label, source string) (gpucore.ShaderID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return gpucore.InvalidID, err
	}
	vsSrc, fsSrc, err := splitStages(source)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("webgl: shader %q: %w", label, err)
	}
	vs, err := b.compile(glVertexShader, vsSrc)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("webgl: shader %q vertex: %w", label, err)
	}
	fs, err := b.compile(glFragmentShader, fsSrc)
	if err != nil {
		b.gl.Call("deleteShader", vs)
		return gpucore.InvalidID, fmt.Errorf("webgl: shader %q fragment: %w", label, err)
	}
	id := gpucore.ShaderID(b.newID())
	b.shaders[id] = &glShader{vertex: vs, fragment: fs}
	return id, nil
}

func (b *Backend) compile(kind uint32, source string) (js.Value, error) {
	s := b.gl.Call("createShader", kind)
	b.gl.Call("shaderSource", s, source)
	b.gl.Call("compileShader", s)
	if !b.gl.Call("getShaderParameter", s, glCompileStatus).Bool() {
		log := b.gl.Call("getShaderInfoLog", s).String()
		b.gl.Call("deleteShader", s)
		return js.Null(), fmt.Errorf("%w: %s", backend.ErrUnsupported, strings.TrimSpace(log))
	}
	return s, nil
}

// DestroyShaderModule deletes the stage shaders.
func (b *Backend) DestroyShaderModule(id gpucore.ShaderID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.shaders[id]
	if !ok {
		return
	}
	delete(b.shaders, id)
	s.delete(b.gl)
}

// maxTextureSlots is the number of sampler uniforms tex0..tex3.
const maxTextureSlots = 4

// CreateRenderPipeline links a program. The first uniform block is bound
// to binding 0 and samplers texN to texture unit N.
func (b *Backend) CreateRenderPipeline(desc *gpucore.RenderPipelineDescriptor) (gpucore.PipelineID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return gpucore.InvalidID, err
	}
	s, ok := b.shaders[desc.Shader]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: shader %d", backend.ErrUnknownResource, desc.Shader)
	}
	if desc.Textures > maxTextureSlots {
		return gpucore.InvalidID, fmt.Errorf("%w: %d texture slots", backend.ErrUnsupported, desc.Textures)
	}
	for i, l := range desc.VertexLayouts {
		if err := l.Validate(); err != nil {
			return gpucore.InvalidID, fmt.Errorf("vertex layout %d: %w", i, err)
		}
		for _, a := range l.Attributes {
			if _, err := vertexFormat(a.Format); err != nil {
				return gpucore.InvalidID, err
			}
		}
	}
	for _, f := range desc.ColorFormats {
		if _, err := textureFormat(f); err != nil {
			return gpucore.InvalidID, err
		}
	}

	program := b.gl.Call("createProgram")
	b.gl.Call("attachShader", program, s.vertex)
	b.gl.Call("attachShader", program, s.fragment)
	b.gl.Call("linkProgram", program)
	if !b.gl.Call("getProgramParameter", program, glLinkStatus).Bool() {
		log := b.gl.Call("getProgramInfoLog", program).String()
		b.gl.Call("deleteProgram", program)
		return gpucore.InvalidID, fmt.Errorf("%w: link %q: %s", backend.ErrUnsupported, desc.Label, strings.TrimSpace(log))
	}

	p := &glPipeline{desc: *desc, program: program}
	b.gl.Call("useProgram", program)
	if desc.UniformSize > 0 && b.gl.Call("getProgramParameter", program, glActiveUniformBlocks).Int() > 0 {
		b.gl.Call("uniformBlockBinding", program, 0, 0)
		p.uniforms = true
	}
	for i := 0; i < int(desc.Textures); i++ {
		if loc := b.gl.Call("getUniformLocation", program, fmt.Sprintf("tex%d", i)); !loc.IsNull() {
			b.gl.Call("uniform1i", loc, i)
		}
	}
	b.gl.Call("useProgram", nil)

	id := gpucore.PipelineID(b.newID())
	b.pipelines[id] = p
	return id, nil
}

// DestroyRenderPipeline deletes a program.
func (b *Backend) DestroyRenderPipeline(id gpucore.PipelineID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pipelines[id]
	if !ok {
		return
	}
	delete(b.pipelines, id)
	b.gl.Call("deleteProgram", p.program)
}
