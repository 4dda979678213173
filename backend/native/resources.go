package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gfx/backend"
	"github.com/gogpu/gfx/gpucore"
)

// halBuffer is a tracked HAL buffer. While mapped, host writes land in
// shadow and are uploaded with a queue write on Unmap.
type halBuffer struct {
	desc   gpucore.BufferDescriptor
	raw    hal.Buffer
	shadow []byte
	mapped bool
}

// halTexture is a tracked HAL texture with its default view.
type halTexture struct {
	desc   gpucore.TextureDescriptor
	format gputypes.TextureFormat
	raw    hal.Texture
	view   hal.TextureView
}

func (t *halTexture) destroy(device hal.Device) {
	if t.view != nil {
		device.DestroyTextureView(t.view)
	}
	if t.raw != nil {
		device.DestroyTexture(t.raw)
	}
}

// halPipeline owns a render pipeline and its layouts.
type halPipeline struct {
	desc        gpucore.RenderPipelineDescriptor
	bindLayout  hal.BindGroupLayout
	pipeLayout  hal.PipelineLayout
	raw         hal.RenderPipeline
	hasBindings bool
}

func (p *halPipeline) destroy(device hal.Device) {
	if p.raw != nil {
		device.DestroyRenderPipeline(p.raw)
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
	}
}

// CreateBuffer allocates a HAL buffer.
func (b *Backend) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return gpucore.InvalidID, err
	}
	if desc == nil || desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: zero-sized buffer", backend.ErrOutOfRange)
	}
	if limit := b.Capabilities().MaxBufferSize; desc.Size > limit {
		return gpucore.InvalidID, fmt.Errorf("%w: size %d exceeds max %d", backend.ErrOutOfRange, desc.Size, limit)
	}

	usage := bufferUsage(desc.Usage)
	if desc.MappedAtCreation {
		usage |= gputypes.BufferUsageCopyDst
	}
	raw, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: usage,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create buffer %q: %w", desc.Label, err)
	}

	buf := &halBuffer{desc: *desc, raw: raw}
	if desc.MappedAtCreation {
		buf.shadow = make([]byte, desc.Size)
		buf.mapped = true
	}
	id := gpucore.BufferID(b.newID())
	b.buffers[id] = buf
	return id, nil
}

func (b *Backend) bufferLocked(id gpucore.BufferID) (*halBuffer, error) {
	if err := b.checkLocked(); err != nil {
		return nil, err
	}
	buf, ok := b.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", backend.ErrUnknownResource, id)
	}
	return buf, nil
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

// Unmap uploads the mapped range and unmaps the buffer.
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
	if err := b.queue.WriteBuffer(buf.raw, 0, buf.shadow); err != nil {
		return fmt.Errorf("native: upload mapped buffer %d: %w", id, err)
	}
	buf.shadow = nil
	buf.mapped = false
	return nil
}

// Remap maps a host-mappable buffer again. The returned range starts
// zeroed; Unmap uploads all of it.
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

// WriteBuffer uploads data through the queue.
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
	if err := b.queue.WriteBuffer(buf.raw, offset, data); err != nil {
		return fmt.Errorf("native: write buffer %d: %w", id, err)
	}
	return nil
}

// ReadBuffer reads a buffer range back to the host. Buffers without
// MapRead usage are copied through a staging buffer first, which
// requires CopySrc usage.
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
	if buf.mapped {
		out := make([]byte, size)
		copy(out, buf.shadow[offset:offset+size])
		return out, nil
	}

	out := make([]byte, size)
	if buf.desc.Usage.Contains(gpucore.BufferUsageMapRead) {
		if err := b.readMapped(buf.raw, offset, out); err != nil {
			return nil, fmt.Errorf("native: read buffer %d: %w", id, err)
		}
		return out, nil
	}
	if !buf.desc.Usage.Contains(gpucore.BufferUsageCopySrc) {
		return nil, fmt.Errorf("%w: read of buffer %d without MapRead or CopySrc", backend.ErrUnsupported, id)
	}

	staging, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create staging buffer: %w", err)
	}
	defer b.device.DestroyBuffer(staging)

	encoder, err := b.newEncoder("readback")
	if err != nil {
		return nil, err
	}
	encoder.CopyBufferToBuffer(buf.raw, staging, []hal.BufferCopy{{SrcOffset: offset, DstOffset: 0, Size: size}})
	if err := b.submit(encoder); err != nil {
		return nil, err
	}
	if err := b.readMapped(staging, 0, out); err != nil {
		return nil, fmt.Errorf("native: readback: %w", err)
	}
	return out, nil
}

// CopyBuffer copies between two unmapped buffers on the GPU.
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
	if s.mapped || d.mapped {
		return fmt.Errorf("%w: copy between mapped buffers", backend.ErrMapped)
	}
	if srcOffset+size > s.desc.Size || dstOffset+size > d.desc.Size {
		return fmt.Errorf("%w: copy of %d bytes", backend.ErrOutOfRange, size)
	}

	encoder, err := b.newEncoder("copy_buffer")
	if err != nil {
		return err
	}
	encoder.CopyBufferToBuffer(s.raw, d.raw, []hal.BufferCopy{{SrcOffset: srcOffset, DstOffset: dstOffset, Size: size}})
	return b.submit(encoder)
}

// DestroyBuffer releases a buffer. Unknown IDs are ignored.
func (b *Backend) DestroyBuffer(id gpucore.BufferID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.buffers[id]
	if !ok {
		return
	}
	delete(b.buffers, id)
	b.device.DestroyBuffer(buf.raw)
}

// CreateTexture allocates a 2D texture and its default view.
func (b *Backend) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return gpucore.InvalidID, err
	}
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: zero-sized texture", backend.ErrOutOfRange)
	}
	caps := b.Capabilities()
	if desc.Width > caps.MaxTextureDimension || desc.Height > caps.MaxTextureDimension {
		return gpucore.InvalidID, fmt.Errorf("%w: %dx%d exceeds max dimension %d",
			backend.ErrOutOfRange, desc.Width, desc.Height, caps.MaxTextureDimension)
	}
	if desc.Samples() > caps.MaxSampleCount {
		return gpucore.InvalidID, fmt.Errorf("%w: sample count %d", backend.ErrUnsupported, desc.Samples())
	}
	format, err := textureFormat(desc.Format)
	if err != nil {
		return gpucore.InvalidID, err
	}

	raw, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   desc.Samples(),
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create texture %q: %w", desc.Label, err)
	}
	view, err := b.device.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:         desc.Label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		b.device.DestroyTexture(raw)
		return gpucore.InvalidID, fmt.Errorf("native: create texture view %q: %w", desc.Label, err)
	}

	id := gpucore.TextureID(b.newID())
	b.textures[id] = &halTexture{desc: *desc, format: format, raw: raw, view: view}
	return id, nil
}

func (b *Backend) textureLocked(id gpucore.TextureID) (*halTexture, error) {
	if err := b.checkLocked(); err != nil {
		return nil, err
	}
	tex, ok := b.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: texture %d", backend.ErrUnknownResource, id)
	}
	return tex, nil
}

// ReadTexture copies a single-sampled texture into a staging buffer and
// returns its tightly packed texels.
func (b *Backend) ReadTexture(id gpucore.TextureID) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.textureLocked(id)
	if err != nil {
		return nil, err
	}
	if tex.desc.Samples() > 1 {
		return nil, fmt.Errorf("%w: read of multisampled texture", backend.ErrUnsupported)
	}
	if tex.desc.Format.IsDepth() {
		return nil, fmt.Errorf("%w: read of depth texture", backend.ErrUnsupported)
	}

	w, h := tex.desc.Width, tex.desc.Height
	bpp := tex.desc.Format.BytesPerPixel()
	bytesPerRow := w * uint32(bpp)
	pitch := alignedBytesPerRow(w, bpp)
	stagingSize := uint64(pitch) * uint64(h)

	staging, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "texture_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create staging buffer: %w", err)
	}
	defer b.device.DestroyBuffer(staging)

	encoder, err := b.newEncoder("read_texture")
	if err != nil {
		return nil, err
	}
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex.raw,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(tex.raw, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: pitch, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: tex.raw, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex.raw,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})
	if err := b.submit(encoder); err != nil {
		return nil, err
	}

	readback := make([]byte, stagingSize)
	if err := b.readMapped(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("native: readback: %w", err)
	}
	if pitch == bytesPerRow {
		return readback, nil
	}
	tight := make([]byte, uint64(bytesPerRow)*uint64(h))
	for row := uint32(0); row < h; row++ {
		copy(tight[row*bytesPerRow:(row+1)*bytesPerRow], readback[row*pitch:row*pitch+bytesPerRow])
	}
	return tight, nil
}

// ResolveTexture resolves a multisampled color texture by running an
// empty render pass that loads src and resolves into dst. Depth textures
// cannot be resolved.
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
	if s.desc.Format.IsDepth() {
		return fmt.Errorf("%w: depth resolve", backend.ErrUnsupported)
	}
	if s.desc.Width != d.desc.Width || s.desc.Height != d.desc.Height || s.desc.Format != d.desc.Format {
		return fmt.Errorf("%w: resolve between mismatched textures", backend.ErrUnsupported)
	}
	if d.desc.Samples() != 1 {
		return fmt.Errorf("%w: resolve into multisampled texture", backend.ErrUnsupported)
	}

	encoder, err := b.newEncoder("resolve")
	if err != nil {
		return err
	}
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "resolve",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:          s.view,
			ResolveTarget: d.view,
			LoadOp:        gputypes.LoadOpLoad,
			StoreOp:       gputypes.StoreOpStore,
		}},
	})
	rp.End()
	return b.submit(encoder)
}

// DestroyTexture releases a texture. Unknown IDs are ignored.
func (b *Backend) DestroyTexture(id gpucore.TextureID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, ok := b.textures[id]
	if !ok {
		return
	}
	delete(b.textures, id)
	tex.destroy(b.device)
}

// CreateShaderModule creates a module from WGSL source, compiling it to
// SPIR-V first when Options.PrecompileSPIRV is set.
func (b *Backend) CreateShaderModule(label, source string) (gpucore.ShaderID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return gpucore.InvalidID, err
	}
	if source == "" {
		return gpucore.InvalidID, fmt.Errorf("%w: empty shader source %q", backend.ErrUnsupported, label)
	}

	src := hal.ShaderSource{WGSL: source}
	if b.opts.PrecompileSPIRV {
		spirv, err := CompileSPIRV(source)
		if err != nil {
			return gpucore.InvalidID, fmt.Errorf("native: shader %q: %w", label, err)
		}
		src = hal.ShaderSource{SPIRV: spirv}
	}
	module, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: label, Source: src})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create shader %q: %w", label, err)
	}
	id := gpucore.ShaderID(b.newID())
	b.shaders[id] = module
	return id, nil
}

// DestroyShaderModule releases a shader module.
func (b *Backend) DestroyShaderModule(id gpucore.ShaderID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	m, ok := b.shaders[id]
	if !ok {
		return
	}
	delete(b.shaders, id)
	b.device.DestroyShaderModule(m)
}

// maxTextureSlots is the number of texture bindings a pipeline may use.
const maxTextureSlots = 4

// CreateRenderPipeline creates the bind group layout, pipeline layout and
// pipeline for desc. Binding 0 is the uniform block; bindings 1..Textures
// are unfilterable float textures.
func (b *Backend) CreateRenderPipeline(desc *gpucore.RenderPipelineDescriptor) (gpucore.PipelineID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return gpucore.InvalidID, err
	}
	module, ok := b.shaders[desc.Shader]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: shader %d", backend.ErrUnknownResource, desc.Shader)
	}
	if desc.Textures > maxTextureSlots {
		return gpucore.InvalidID, fmt.Errorf("%w: %d texture slots", backend.ErrUnsupported, desc.Textures)
	}
	buffers, err := vertexLayouts(desc.VertexLayouts)
	if err != nil {
		return gpucore.InvalidID, err
	}

	p := &halPipeline{desc: *desc}
	entries := bindLayoutEntries(desc)
	p.hasBindings = len(entries) > 0
	p.bindLayout, err = b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label + "_bind_layout",
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create bind group layout %q: %w", desc.Label, err)
	}
	p.pipeLayout, err = b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.destroy(b.device)
		return gpucore.InvalidID, fmt.Errorf("native: create pipeline layout %q: %w", desc.Label, err)
	}

	pd := &hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: desc.VertexEntry,
			Buffers:    buffers,
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  cullMode(desc.Cull),
		},
		Multisample: gputypes.MultisampleState{
			Count: max(desc.SampleCount, 1),
			Mask:  0xFFFFFFFF,
		},
	}
	if desc.FragmentEntry != "" {
		targets := make([]gputypes.ColorTargetState, 0, len(desc.ColorFormats))
		for _, f := range desc.ColorFormats {
			format, err := textureFormat(f)
			if err != nil {
				p.destroy(b.device)
				return gpucore.InvalidID, err
			}
			targets = append(targets, gputypes.ColorTargetState{
				Format:    format,
				WriteMask: gputypes.ColorWriteMaskAll,
			})
		}
		pd.Fragment = &hal.FragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntry,
			Targets:    targets,
		}
	}
	if desc.DepthFormat != gpucore.TextureFormatUndefined {
		format, err := textureFormat(desc.DepthFormat)
		if err != nil {
			p.destroy(b.device)
			return gpucore.InvalidID, err
		}
		keep := hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      hal.StencilOperationKeep,
		}
		pd.DepthStencil = &hal.DepthStencilState{
			Format:            format,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLessEqual,
			StencilFront:      keep,
			StencilBack:       keep,
		}
	}

	p.raw, err = b.device.CreateRenderPipeline(pd)
	if err != nil {
		p.destroy(b.device)
		return gpucore.InvalidID, fmt.Errorf("native: create render pipeline %q: %w", desc.Label, err)
	}
	id := gpucore.PipelineID(b.newID())
	b.pipelines[id] = p
	return id, nil
}

func bindLayoutEntries(desc *gpucore.RenderPipelineDescriptor) []gputypes.BindGroupLayoutEntry {
	var entries []gputypes.BindGroupLayoutEntry
	if desc.UniformSize > 0 {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		})
	}
	for i := uint32(0); i < desc.Textures; i++ {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    i + 1,
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}
	return entries
}

// DestroyRenderPipeline releases a pipeline and its layouts.
func (b *Backend) DestroyRenderPipeline(id gpucore.PipelineID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pipelines[id]
	if !ok {
		return
	}
	delete(b.pipelines, id)
	p.destroy(b.device)
}
