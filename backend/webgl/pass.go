//go:build js && wasm

package webgl

import (
	"errors"
	"fmt"
	"syscall/js"

	"github.com/gogpu/gfx/backend"
	"github.com/gogpu/gfx/gpucore"
)

// BeginRenderPass builds a framebuffer for the attachments, clears them
// and binds a fresh vertex array object.
func (b *Backend) BeginRenderPass(desc *gpucore.RenderPassDescriptor) (backend.RenderPassEncoder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return nil, err
	}
	if len(desc.ColorAttachments) == 0 && desc.DepthAttachment == nil {
		return nil, fmt.Errorf("%w: render pass %q has no attachments", backend.ErrUnsupported, desc.Label)
	}

	p := &renderPass{backend: b, label: desc.Label}
	for _, ca := range desc.ColorAttachments {
		t, err := b.textureLocked(ca.Texture)
		if err != nil {
			return nil, err
		}
		if t.desc.Format.IsDepth() {
			return nil, fmt.Errorf("%w: color attachment format %s", backend.ErrUnsupported, t.desc.Format)
		}
		var resolve *glTexture
		if ca.ResolveTarget != gpucore.InvalidID {
			if resolve, err = b.textureLocked(ca.ResolveTarget); err != nil {
				return nil, err
			}
		}
		p.colors = append(p.colors, colorTarget{tex: t, resolve: resolve, att: ca})
	}
	if da := desc.DepthAttachment; da != nil {
		t, err := b.textureLocked(da.Texture)
		if err != nil {
			return nil, err
		}
		if !t.desc.Format.IsDepth() {
			return nil, fmt.Errorf("%w: depth attachment format %s", backend.ErrUnsupported, t.desc.Format)
		}
		p.depth, p.depthAtt = t, *da
	}

	gl := b.gl
	p.fbo = gl.Call("createFramebuffer")
	gl.Call("bindFramebuffer", glFramebuffer, p.fbo)
	drawBuffers := make([]any, len(p.colors))
	for i, c := range p.colors {
		c.tex.attach(gl, glFramebuffer, uint32(glColorAttachment0+i))
		drawBuffers[i] = glColorAttachment0 + i
		p.width, p.height = c.tex.desc.Width, c.tex.desc.Height
	}
	if p.depth != nil {
		p.depth.attach(gl, glFramebuffer, attachmentPoint(p.depth.desc.Format))
		p.width, p.height = p.depth.desc.Width, p.depth.desc.Height
	}
	if len(drawBuffers) == 0 {
		drawBuffers = []any{glNone}
	}
	gl.Call("drawBuffers", drawBuffers)
	if status := gl.Call("checkFramebufferStatus", glFramebuffer).Int(); status != glFramebufferComplete {
		gl.Call("bindFramebuffer", glFramebuffer, nil)
		gl.Call("deleteFramebuffer", p.fbo)
		return nil, fmt.Errorf("%w: render pass %q framebuffer incomplete (0x%04X)", backend.ErrUnsupported, desc.Label, status)
	}
	gl.Call("viewport", 0, 0, int(p.width), int(p.height))

	gl.Call("colorMask", true, true, true, true)
	for i, c := range p.colors {
		if c.att.Load == gpucore.LoadOpClear {
			clr := c.att.Clear
			gl.Call("clearBufferfv", glColor, i, []any{clr.R, clr.G, clr.B, clr.A})
		}
	}
	if p.depth != nil && p.depthAtt.Load == gpucore.LoadOpClear {
		gl.Call("depthMask", true)
		if p.depth.desc.Format.HasStencil() {
			gl.Call("clearBufferfi", glDepthStencil, 0, p.depthAtt.ClearDepth, 0)
		} else {
			gl.Call("clearBufferfv", glDepth, 0, []any{p.depthAtt.ClearDepth})
		}
	}

	p.vao = gl.Call("createVertexArray")
	gl.Call("bindVertexArray", p.vao)
	return p, nil
}

type colorTarget struct {
	tex     *glTexture
	resolve *glTexture
	att     gpucore.ColorAttachment
}

type vertexBinding struct {
	buf    *glBuffer
	offset uint64
}

// renderPass issues GL calls as they are recorded. Uniform, texture and
// vertex state is applied right before each draw.
type renderPass struct {
	backend *Backend
	label   string

	fbo           js.Value
	vao           js.Value
	width, height uint32
	colors        []colorTarget
	depth         *glTexture
	depthAtt      gpucore.DepthAttachment

	pipeline    *glPipeline
	vertices    map[uint32]vertexBinding
	indexType   uint32
	indexOffset uint64
	indexed     bool

	uniform     *glBuffer
	uniformOff  uint64
	uniformSize uint64
	textures    [maxTextureSlots]*glTexture

	err   error
	ended bool
}

func (p *renderPass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *renderPass) SetPipeline(id gpucore.PipelineID) {
	b := p.backend
	b.mu.Lock()
	pl, ok := b.pipelines[id]
	b.mu.Unlock()
	if !ok {
		p.fail(fmt.Errorf("%w: pipeline %d", backend.ErrUnknownResource, id))
		return
	}
	p.pipeline = pl
	gl := b.gl
	gl.Call("useProgram", pl.program)
	if pl.desc.DepthFormat != gpucore.TextureFormatUndefined {
		gl.Call("enable", glDepthTest)
		gl.Call("depthFunc", glLEqual)
		gl.Call("depthMask", true)
	} else {
		gl.Call("disable", glDepthTest)
	}
	switch pl.desc.Cull {
	case gpucore.CullModeFront:
		gl.Call("enable", glCullFace)
		gl.Call("cullFace", glFront)
	case gpucore.CullModeBack:
		gl.Call("enable", glCullFace)
		gl.Call("cullFace", glBack)
	default:
		gl.Call("disable", glCullFace)
	}
	// A program without a fragment output still writes its default color.
	mask := pl.desc.FragmentEntry != ""
	gl.Call("colorMask", mask, mask, mask, mask)
}

func (p *renderPass) buffer(id gpucore.BufferID, usage gpucore.BufferUsage) *glBuffer {
	p.backend.mu.Lock()
	buf, ok := p.backend.buffers[id]
	p.backend.mu.Unlock()
	switch {
	case !ok:
		p.fail(fmt.Errorf("%w: buffer %d", backend.ErrUnknownResource, id))
		return nil
	case !buf.desc.Usage.Contains(usage):
		p.fail(fmt.Errorf("%w: buffer %d bound as %s has usage %s", backend.ErrUnsupported, id, usage, buf.desc.Usage))
		return nil
	case buf.mapped:
		p.fail(fmt.Errorf("%w: buffer %d bound while mapped", backend.ErrMapped, id))
		return nil
	}
	return buf
}

func (p *renderPass) SetVertexBuffer(slot uint32, id gpucore.BufferID, offset uint64) {
	if buf := p.buffer(id, gpucore.BufferUsageVertex); buf != nil {
		if p.vertices == nil {
			p.vertices = make(map[uint32]vertexBinding)
		}
		p.vertices[slot] = vertexBinding{buf: buf, offset: offset}
	}
}

func (p *renderPass) SetIndexBuffer(id gpucore.BufferID, format gpucore.IndexFormat, offset uint64) {
	kind, err := indexType(format)
	if err != nil {
		p.fail(err)
		return
	}
	if buf := p.buffer(id, gpucore.BufferUsageIndex); buf != nil {
		p.backend.gl.Call("bindBuffer", glElementArrayBuffer, buf.raw)
		p.indexType, p.indexOffset, p.indexed = kind, offset, true
	}
}

func (p *renderPass) SetUniformBuffer(id gpucore.BufferID, offset, size uint64) {
	align := p.backend.caps.MinUniformOffsetAlignment
	if offset%align != 0 {
		p.fail(fmt.Errorf("%w: uniform offset %d not aligned to %d", backend.ErrOutOfRange, offset, align))
		return
	}
	if buf := p.buffer(id, gpucore.BufferUsageUniform); buf != nil {
		p.uniform, p.uniformOff, p.uniformSize = buf, offset, size
	}
}

func (p *renderPass) SetTexture(index uint32, id gpucore.TextureID) {
	if index >= maxTextureSlots {
		p.fail(fmt.Errorf("%w: texture slot %d", backend.ErrOutOfRange, index))
		return
	}
	p.backend.mu.Lock()
	t, ok := p.backend.textures[id]
	p.backend.mu.Unlock()
	switch {
	case !ok:
		p.fail(fmt.Errorf("%w: texture %d", backend.ErrUnknownResource, id))
	case !t.desc.Usage.Contains(gpucore.TextureUsageTextureBinding):
		p.fail(fmt.Errorf("%w: texture %d bound without TextureBinding usage", backend.ErrUnsupported, id))
	default:
		p.textures[index] = t
	}
}

// bind applies vertex attributes, the uniform range and textures for
// the current pipeline.
func (p *renderPass) bind() bool {
	if p.err != nil {
		return false
	}
	if p.pipeline == nil {
		p.fail(fmt.Errorf("%w: draw without pipeline", backend.ErrUnsupported))
		return false
	}
	gl := p.backend.gl
	desc := p.pipeline.desc

	for slot, layout := range desc.VertexLayouts {
		vb, ok := p.vertices[uint32(slot)]
		if !ok {
			p.fail(fmt.Errorf("%w: pipeline %q vertex slot %d is unbound", backend.ErrUnsupported, desc.Label, slot))
			return false
		}
		gl.Call("bindBuffer", glArrayBuffer, vb.buf.raw)
		for _, a := range layout.Attributes {
			f, _ := vertexFormat(a.Format)
			off := int(vb.offset + a.Offset)
			gl.Call("enableVertexAttribArray", a.Location)
			if f.integer {
				gl.Call("vertexAttribIPointer", a.Location, f.size, f.kind, int(layout.Stride), off)
			} else {
				gl.Call("vertexAttribPointer", a.Location, f.size, f.kind, f.normalized, int(layout.Stride), off)
			}
		}
	}
	gl.Call("bindBuffer", glArrayBuffer, nil)

	if desc.UniformSize > 0 && p.pipeline.uniforms {
		if p.uniform == nil {
			p.fail(fmt.Errorf("%w: pipeline %q needs a uniform buffer", backend.ErrUnsupported, desc.Label))
			return false
		}
		size := p.uniformSize
		if size == 0 {
			size = desc.UniformSize
		}
		gl.Call("bindBufferRange", glUniformBuffer, 0, p.uniform.raw, int(p.uniformOff), int(size))
	}
	for i := uint32(0); i < desc.Textures; i++ {
		t := p.textures[i]
		if t == nil {
			p.fail(fmt.Errorf("%w: pipeline %q texture slot %d is unbound", backend.ErrUnsupported, desc.Label, i))
			return false
		}
		gl.Call("activeTexture", glTexture0+int(i))
		gl.Call("bindTexture", glTexture2D, t.tex)
	}
	return true
}

func (p *renderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if firstInstance != 0 {
		p.fail(fmt.Errorf("%w: firstInstance %d", backend.ErrUnsupported, firstInstance))
	}
	if p.bind() {
		p.backend.gl.Call("drawArraysInstanced", glTriangles, firstVertex, vertexCount, instanceCount)
	}
}

func (p *renderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	switch {
	case !p.indexed:
		p.fail(fmt.Errorf("%w: indexed draw without index buffer", backend.ErrUnsupported))
	case baseVertex != 0 || firstInstance != 0:
		p.fail(fmt.Errorf("%w: base vertex %d, first instance %d", backend.ErrUnsupported, baseVertex, firstInstance))
	}
	if !p.bind() {
		return
	}
	size := uint64(2)
	if p.indexType == glUnsignedInt {
		size = 4
	}
	offset := int(p.indexOffset + uint64(firstIndex)*size)
	p.backend.gl.Call("drawElementsInstanced", glTriangles, indexCount, p.indexType, offset, instanceCount)
}

// End resolves multisampled colors, discards unstored attachments and
// deletes the pass objects. The first recorded error is returned.
func (p *renderPass) End() error {
	if p.ended {
		return errors.New("webgl: render pass already ended")
	}
	p.ended = true

	b := p.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	gl := b.gl
	defer func() {
		gl.Call("bindVertexArray", nil)
		gl.Call("deleteVertexArray", p.vao)
		gl.Call("bindFramebuffer", glFramebuffer, nil)
		gl.Call("deleteFramebuffer", p.fbo)
		gl.Call("useProgram", nil)
	}()

	if p.err != nil {
		return p.err
	}
	if err := b.checkLocked(); err != nil {
		return err
	}

	for i, c := range p.colors {
		if c.resolve == nil {
			continue
		}
		dst := b.framebuffer(c.resolve)
		gl.Call("bindFramebuffer", glReadFramebuffer, p.fbo)
		gl.Call("readBuffer", glColorAttachment0+i)
		gl.Call("bindFramebuffer", glDrawFramebuffer, dst)
		w, h := int(p.width), int(p.height)
		gl.Call("blitFramebuffer", 0, 0, w, h, 0, 0, w, h, glColorBufferBit, glNearest)
	}

	var discard []any
	for i, c := range p.colors {
		if !c.att.Store {
			discard = append(discard, glColorAttachment0+i)
		}
	}
	if p.depth != nil && !p.depthAtt.Store {
		discard = append(discard, attachmentPoint(p.depth.desc.Format))
	}
	if len(discard) > 0 {
		gl.Call("bindFramebuffer", glFramebuffer, p.fbo)
		gl.Call("invalidateFramebuffer", glFramebuffer, discard)
	}
	return b.glError("render pass " + p.label)
}
