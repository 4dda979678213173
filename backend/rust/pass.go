//go:build rust

package rust

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gogpu/gfx/backend"
	"github.com/gogpu/gfx/gpucore"
)

// BeginRenderPass creates a command encoder and begins a pass on it.
func (b *RustBackend) BeginRenderPass(desc *gpucore.RenderPassDescriptor) (backend.RenderPassEncoder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return nil, err
	}
	if len(desc.ColorAttachments) == 0 && desc.DepthAttachment == nil {
		return nil, fmt.Errorf("%w: render pass %q has no attachments", backend.ErrUnsupported, desc.Label)
	}

	rd := &wgpu.RenderPassDescriptor{Label: desc.Label}
	for _, ca := range desc.ColorAttachments {
		tex, err := b.textureLocked(ca.Texture)
		if err != nil {
			return nil, err
		}
		att := wgpu.RenderPassColorAttachment{
			View:    tex.view,
			LoadOp:  loadOp(ca.Load),
			StoreOp: storeOp(ca.Store),
			ClearValue: wgpu.Color{
				R: ca.Clear.R, G: ca.Clear.G, B: ca.Clear.B, A: ca.Clear.A,
			},
		}
		if ca.ResolveTarget != gpucore.InvalidID {
			resolve, err := b.textureLocked(ca.ResolveTarget)
			if err != nil {
				return nil, err
			}
			att.ResolveTarget = resolve.view
		}
		rd.ColorAttachments = append(rd.ColorAttachments, att)
	}
	if da := desc.DepthAttachment; da != nil {
		tex, err := b.textureLocked(da.Texture)
		if err != nil {
			return nil, err
		}
		if !tex.desc.Format.IsDepth() {
			return nil, fmt.Errorf("%w: depth attachment format %s", backend.ErrUnsupported, tex.desc.Format)
		}
		rd.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            tex.view,
			DepthLoadOp:     loadOp(da.Load),
			DepthStoreOp:    storeOp(da.Store),
			DepthClearValue: da.ClearDepth,
		}
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("rust: create encoder: %w", err)
	}
	return &renderPass{
		backend: b,
		label:   desc.Label,
		encoder: encoder,
		rp:      encoder.BeginRenderPass(rd),
	}, nil
}

// renderPass records into a wgpu-native pass. Uniform and texture
// bindings become a bind group right before the next draw.
type renderPass struct {
	backend *RustBackend
	label   string
	encoder *wgpu.CommandEncoder
	rp      *wgpu.RenderPassEncoder

	pipeline *rustPipeline

	uniform     *rustBuffer
	uniformOff  uint64
	uniformSize uint64
	textures    [maxTextureSlots]*rustTexture
	dirty       bool

	bindGroups []*wgpu.BindGroup
	err        error
	ended      bool
}

func (p *renderPass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *renderPass) SetPipeline(id gpucore.PipelineID) {
	p.backend.mu.Lock()
	pl, ok := p.backend.pipelines[id]
	p.backend.mu.Unlock()
	if !ok {
		p.fail(fmt.Errorf("%w: pipeline %d", backend.ErrUnknownResource, id))
		return
	}
	p.pipeline = pl
	p.dirty = true
	p.rp.SetPipeline(pl.raw)
}

func (p *renderPass) buffer(id gpucore.BufferID, usage gpucore.BufferUsage) *rustBuffer {
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
		p.rp.SetVertexBuffer(slot, buf.raw, offset, wgpu.WholeSize)
	}
}

func (p *renderPass) SetIndexBuffer(id gpucore.BufferID, format gpucore.IndexFormat, offset uint64) {
	f, err := indexFormat(format)
	if err != nil {
		p.fail(err)
		return
	}
	if buf := p.buffer(id, gpucore.BufferUsageIndex); buf != nil {
		p.rp.SetIndexBuffer(buf.raw, f, offset, wgpu.WholeSize)
	}
}

func (p *renderPass) SetUniformBuffer(id gpucore.BufferID, offset, size uint64) {
	align := p.backend.Capabilities().MinUniformOffsetAlignment
	if offset%align != 0 {
		p.fail(fmt.Errorf("%w: uniform offset %d not aligned to %d", backend.ErrOutOfRange, offset, align))
		return
	}
	if buf := p.buffer(id, gpucore.BufferUsageUniform); buf != nil {
		p.uniform = buf
		p.uniformOff = offset
		p.uniformSize = size
		p.dirty = true
	}
}

func (p *renderPass) SetTexture(index uint32, id gpucore.TextureID) {
	if index >= maxTextureSlots {
		p.fail(fmt.Errorf("%w: texture slot %d", backend.ErrOutOfRange, index))
		return
	}
	p.backend.mu.Lock()
	tex, ok := p.backend.textures[id]
	p.backend.mu.Unlock()
	switch {
	case !ok:
		p.fail(fmt.Errorf("%w: texture %d", backend.ErrUnknownResource, id))
	case !tex.desc.Usage.Contains(gpucore.TextureUsageTextureBinding):
		p.fail(fmt.Errorf("%w: texture %d bound without TextureBinding usage", backend.ErrUnsupported, id))
	default:
		p.textures[index] = tex
		p.dirty = true
	}
}

func (p *renderPass) bind() bool {
	if p.err != nil {
		return false
	}
	if p.pipeline == nil {
		p.fail(fmt.Errorf("%w: draw without pipeline", backend.ErrUnsupported))
		return false
	}
	if !p.dirty || !p.pipeline.hasBindings {
		return true
	}

	desc := p.pipeline.desc
	var entries []wgpu.BindGroupEntry
	if desc.UniformSize > 0 {
		if p.uniform == nil {
			p.fail(fmt.Errorf("%w: pipeline %q needs a uniform buffer", backend.ErrUnsupported, desc.Label))
			return false
		}
		size := p.uniformSize
		if size == 0 {
			size = desc.UniformSize
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: 0,
			Buffer:  p.uniform.raw,
			Offset:  p.uniformOff,
			Size:    size,
		})
	}
	for i := uint32(0); i < desc.Textures; i++ {
		tex := p.textures[i]
		if tex == nil {
			p.fail(fmt.Errorf("%w: pipeline %q texture slot %d is unbound", backend.ErrUnsupported, desc.Label, i))
			return false
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding:     i + 1,
			TextureView: tex.view,
		})
	}

	bg, err := p.backend.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.label + " bind group",
		Layout:  p.pipeline.bindLayout,
		Entries: entries,
	})
	if err != nil {
		p.fail(fmt.Errorf("rust: create bind group: %w", err))
		return false
	}
	p.bindGroups = append(p.bindGroups, bg)
	p.rp.SetBindGroup(0, bg, nil)
	p.dirty = false
	return true
}

func (p *renderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if p.bind() {
		p.rp.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	}
}

func (p *renderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	if p.bind() {
		p.rp.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
	}
}

// End ends the pass and submits the encoder. A pass that recorded an
// error is dropped unsubmitted and the first error is returned.
func (p *renderPass) End() error {
	if p.ended {
		return errors.New("rust: render pass already ended")
	}
	p.ended = true
	p.rp.End()
	p.rp.Release()

	defer func() {
		for _, bg := range p.bindGroups {
			bg.Release()
		}
	}()

	b := p.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if p.err != nil {
		p.encoder.Release()
		return p.err
	}
	if err := b.checkLocked(); err != nil {
		p.encoder.Release()
		return err
	}
	return b.submit(p.encoder)
}
