//go:build rust

package rust

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gogpu/gfx/backend"
	"github.com/gogpu/gfx/gpucore"
)

// rustBuffer is a wgpu-native buffer with a host mirror of its contents.
// wgpu-native maps asynchronously, so reads are served from the mirror
// and every host write is pushed with a queue write.
type rustBuffer struct {
	desc   gpucore.BufferDescriptor
	raw    *wgpu.Buffer
	mirror []byte
	mapped bool
}

type rustTexture struct {
	desc gpucore.TextureDescriptor
	raw  *wgpu.Texture
	view *wgpu.TextureView
}

func (t *rustTexture) release() {
	if t.view != nil {
		t.view.Release()
	}
	if t.raw != nil {
		t.raw.Release()
	}
}

type rustPipeline struct {
	desc        gpucore.RenderPipelineDescriptor
	bindLayout  *wgpu.BindGroupLayout
	pipeLayout  *wgpu.PipelineLayout
	raw         *wgpu.RenderPipeline
	hasBindings bool
}

func (p *rustPipeline) release() {
	if p.raw != nil {
		p.raw.Release()
	}
	if p.pipeLayout != nil {
		p.pipeLayout.Release()
	}
	if p.bindLayout != nil {
		p.bindLayout.Release()
	}
}

// CreateBuffer allocates a buffer and its host mirror.
func (b *RustBackend) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
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

	raw, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("rust: create buffer %q: %w", desc.Label, err)
	}
	id := gpucore.BufferID(b.newID())
	b.buffers[id] = &rustBuffer{
		desc:   *desc,
		raw:    raw,
		mirror: make([]byte, desc.Size),
		mapped: desc.MappedAtCreation,
	}
	return id, nil
}

func (b *RustBackend) bufferLocked(id gpucore.BufferID) (*rustBuffer, error) {
	if err := b.checkLocked(); err != nil {
		return nil, err
	}
	buf, ok := b.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", backend.ErrUnknownResource, id)
	}
	return buf, nil
}

// MappedRange returns the mirror of a mapped buffer.
func (b *RustBackend) MappedRange(id gpucore.BufferID) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.bufferLocked(id)
	if err != nil {
		return nil, err
	}
	if !buf.mapped {
		return nil, fmt.Errorf("%w: buffer %d is not mapped", backend.ErrMapped, id)
	}
	return buf.mirror, nil
}

// Unmap uploads the mirror and unmaps the buffer.
func (b *RustBackend) Unmap(id gpucore.BufferID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.bufferLocked(id)
	if err != nil {
		return err
	}
	if !buf.mapped {
		return fmt.Errorf("%w: buffer %d is not mapped", backend.ErrMapped, id)
	}
	b.queue.WriteBuffer(buf.raw, 0, buf.mirror)
	buf.mapped = false
	return nil
}

// Remap maps a host-writable buffer again. The returned range is zeroed.
func (b *RustBackend) Remap(id gpucore.BufferID) ([]byte, error) {
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
	clear(buf.mirror)
	buf.mapped = true
	return buf.mirror, nil
}

// WriteBuffer updates the mirror and uploads the range.
func (b *RustBackend) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
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
	end := offset + uint64(len(data))
	if end > buf.desc.Size {
		return fmt.Errorf("%w: write [%d, %d) exceeds size %d", backend.ErrOutOfRange, offset, end, buf.desc.Size)
	}
	copy(buf.mirror[offset:end], data)
	b.queue.WriteBuffer(buf.raw, offset, data)
	return nil
}

// ReadBuffer returns a copy of the mirrored range. Only buffers with
// MapRead or CopySrc usage may be read.
func (b *RustBackend) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.bufferLocked(id)
	if err != nil {
		return nil, err
	}
	if offset+size > buf.desc.Size {
		return nil, fmt.Errorf("%w: read [%d, %d) exceeds size %d", backend.ErrOutOfRange, offset, offset+size, buf.desc.Size)
	}
	if !buf.mapped && !buf.desc.Usage.Any(gpucore.BufferUsageMapRead|gpucore.BufferUsageCopySrc) {
		return nil, fmt.Errorf("%w: read of buffer %d without MapRead or CopySrc", backend.ErrUnsupported, id)
	}
	out := make([]byte, size)
	copy(out, buf.mirror[offset:offset+size])
	return out, nil
}

// CopyBuffer copies between mirrors and uploads the destination range.
func (b *RustBackend) CopyBuffer(src gpucore.BufferID, srcOffset uint64, dst gpucore.BufferID, dstOffset, size uint64) error {
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
	region := d.mirror[dstOffset : dstOffset+size]
	copy(region, s.mirror[srcOffset:srcOffset+size])
	b.queue.WriteBuffer(d.raw, dstOffset, region)
	return nil
}

// DestroyBuffer releases a buffer. Unknown IDs are ignored.
func (b *RustBackend) DestroyBuffer(id gpucore.BufferID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.buffers[id]
	if !ok {
		return
	}
	delete(b.buffers, id)
	buf.raw.Release()
}

// CreateTexture allocates a 2D texture and its default view.
func (b *RustBackend) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
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

	raw, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   desc.Samples(),
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("rust: create texture %q: %w", desc.Label, err)
	}
	view, err := raw.CreateView(nil)
	if err != nil {
		raw.Release()
		return gpucore.InvalidID, fmt.Errorf("rust: create texture view %q: %w", desc.Label, err)
	}
	id := gpucore.TextureID(b.newID())
	b.textures[id] = &rustTexture{desc: *desc, raw: raw, view: view}
	return id, nil
}

func (b *RustBackend) textureLocked(id gpucore.TextureID) (*rustTexture, error) {
	if err := b.checkLocked(); err != nil {
		return nil, err
	}
	tex, ok := b.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: texture %d", backend.ErrUnknownResource, id)
	}
	return tex, nil
}

// ReadTexture is not supported: wgpu-native texture readback needs an
// asynchronous map that this backend does not drive.
func (b *RustBackend) ReadTexture(id gpucore.TextureID) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.textureLocked(id); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: rust texture readback", backend.ErrUnsupported)
}

// ResolveTexture resolves a multisampled color texture into dst with an
// empty pass that loads src.
func (b *RustBackend) ResolveTexture(src, dst gpucore.TextureID) error {
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

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("rust: create encoder: %w", err)
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:          s.view,
			ResolveTarget: d.view,
			LoadOp:        wgpu.LoadOpLoad,
			StoreOp:       wgpu.StoreOpStore,
		}},
	})
	pass.End()
	pass.Release()
	return b.submit(encoder)
}

// DestroyTexture releases a texture. Unknown IDs are ignored.
func (b *RustBackend) DestroyTexture(id gpucore.TextureID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, ok := b.textures[id]
	if !ok {
		return
	}
	delete(b.textures, id)
	tex.release()
}

// CreateShaderModule creates a module from WGSL source.
func (b *RustBackend) CreateShaderModule(label, source string) (gpucore.ShaderID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return gpucore.InvalidID, err
	}
	if source == "" {
		return gpucore.InvalidID, fmt.Errorf("%w: empty shader source %q", backend.ErrUnsupported, label)
	}
	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("rust: create shader %q: %w", label, err)
	}
	id := gpucore.ShaderID(b.newID())
	b.shaders[id] = module
	return id, nil
}

// DestroyShaderModule releases a shader module.
func (b *RustBackend) DestroyShaderModule(id gpucore.ShaderID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	m, ok := b.shaders[id]
	if !ok {
		return
	}
	delete(b.shaders, id)
	m.Release()
}

// maxTextureSlots is the number of texture bindings a pipeline may use.
const maxTextureSlots = 4

// CreateRenderPipeline builds the bind group layout, pipeline layout and
// pipeline. Binding 0 is the uniform block and bindings 1..Textures are
// unfilterable float textures.
func (b *RustBackend) CreateRenderPipeline(desc *gpucore.RenderPipelineDescriptor) (gpucore.PipelineID, error) {
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

	p := &rustPipeline{desc: *desc}
	entries := bindLayoutEntries(desc)
	p.hasBindings = len(entries) > 0
	p.bindLayout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Label + " bind layout",
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("rust: create bind group layout %q: %w", desc.Label, err)
	}
	p.pipeLayout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label + " pipeline layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.release()
		return gpucore.InvalidID, fmt.Errorf("rust: create pipeline layout %q: %w", desc.Label, err)
	}

	pd := &wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: p.pipeLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: desc.VertexEntry,
			Buffers:    buffers,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cullMode(desc.Cull),
		},
		Multisample: wgpu.MultisampleState{
			Count: max(desc.SampleCount, 1),
			Mask:  0xFFFFFFFF,
		},
	}
	if desc.FragmentEntry != "" {
		targets := make([]wgpu.ColorTargetState, 0, len(desc.ColorFormats))
		for _, f := range desc.ColorFormats {
			format, err := textureFormat(f)
			if err != nil {
				p.release()
				return gpucore.InvalidID, err
			}
			targets = append(targets, wgpu.ColorTargetState{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			})
		}
		pd.Fragment = &wgpu.FragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntry,
			Targets:    targets,
		}
	}
	if desc.DepthFormat != gpucore.TextureFormatUndefined {
		format, err := textureFormat(desc.DepthFormat)
		if err != nil {
			p.release()
			return gpucore.InvalidID, err
		}
		pd.DepthStencil = &wgpu.DepthStencilState{
			Format:            format,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLessEqual,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}

	p.raw, err = b.device.CreateRenderPipeline(pd)
	if err != nil {
		p.release()
		return gpucore.InvalidID, fmt.Errorf("rust: create render pipeline %q: %w", desc.Label, err)
	}
	id := gpucore.PipelineID(b.newID())
	b.pipelines[id] = p
	return id, nil
}

func bindLayoutEntries(desc *gpucore.RenderPipelineDescriptor) []wgpu.BindGroupLayoutEntry {
	var entries []wgpu.BindGroupLayoutEntry
	if desc.UniformSize > 0 {
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
		}
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		entries = append(entries, entry)
	}
	for i := uint32(0); i < desc.Textures; i++ {
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    i + 1,
			Visibility: wgpu.ShaderStageFragment,
		}
		entry.Texture.SampleType = wgpu.TextureSampleTypeUnfilterableFloat
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		entries = append(entries, entry)
	}
	return entries
}

// DestroyRenderPipeline releases a pipeline and its layouts.
func (b *RustBackend) DestroyRenderPipeline(id gpucore.PipelineID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pipelines[id]
	if !ok {
		return
	}
	delete(b.pipelines, id)
	p.release()
}
