package backend

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gfx/gpucore"
)

// SoftwareBackend is an in-memory reference backend. Buffers and textures
// are plain byte slices, render passes apply their load/clear and resolve
// operations on the CPU, and draw calls are validated and counted but not
// rasterized.
//
// It is always available and is the fallback when no GPU backend can be
// initialized. Tests use it to run the device layer headlessly, including
// simulated context loss.
type SoftwareBackend struct {
	mu sync.Mutex

	initialized bool
	lost        bool
	caps        Capabilities

	// ID generation
	nextID atomic.Uint64

	buffers   map[gpucore.BufferID]*softwareBuffer
	textures  map[gpucore.TextureID]*softwareTexture
	shaders   map[gpucore.ShaderID]string
	pipelines map[gpucore.PipelineID]gpucore.RenderPipelineDescriptor

	stats SoftwareStats

	lostFns     []func()
	restoredFns []func()
}

type softwareBuffer struct {
	desc   gpucore.BufferDescriptor
	data   []byte
	mapped bool
}

type softwareTexture struct {
	desc gpucore.TextureDescriptor
	data []byte
}

// SoftwareStats counts the work submitted to a SoftwareBackend.
type SoftwareStats struct {
	Passes       int
	DrawCalls    int
	Vertices     uint64
	Indices      uint64
	Resolves     int
	BufferCopys  int
	TextureBinds int
}

// init registers the software backend on package import.
func init() {
	Register(BackendSoftware, func() GraphicsBackend {
		return NewSoftwareBackend()
	})
}

// NewSoftwareBackend creates a new software backend.
// The backend must be initialized with Init() before use.
func NewSoftwareBackend() *SoftwareBackend {
	b := &SoftwareBackend{caps: DefaultCapabilities()}
	b.caps.DepthResolve = true
	b.nextID.Store(1)
	return b
}

// newID generates a unique resource ID.
func (b *SoftwareBackend) newID() uint64 {
	return b.nextID.Add(1) - 1
}

// Name returns the backend identifier.
func (b *SoftwareBackend) Name() string {
	return BackendSoftware
}

// Init initializes the backend. Init after a simulated context loss
// restores the backend with an empty resource set.
func (b *SoftwareBackend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized && !b.lost {
		return nil
	}
	b.resetLocked()
	b.initialized = true
	b.lost = false
	return nil
}

// Close releases all backend resources.
func (b *SoftwareBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
	b.initialized = false
}

func (b *SoftwareBackend) resetLocked() {
	b.buffers = make(map[gpucore.BufferID]*softwareBuffer)
	b.textures = make(map[gpucore.TextureID]*softwareTexture)
	b.shaders = make(map[gpucore.ShaderID]string)
	b.pipelines = make(map[gpucore.PipelineID]gpucore.RenderPipelineDescriptor)
}

// Capabilities returns the backend limits.
func (b *SoftwareBackend) Capabilities() Capabilities {
	return b.caps
}

// SetCapabilities overrides the advertised limits. Intended for tests.
func (b *SoftwareBackend) SetCapabilities(c Capabilities) {
	b.mu.Lock()
	b.caps = c
	b.mu.Unlock()
}

// Stats returns the work counters.
func (b *SoftwareBackend) Stats() SoftwareStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// LiveBuffers returns the number of allocated buffers.
func (b *SoftwareBackend) LiveBuffers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffers)
}

// LiveTextures returns the number of allocated textures.
func (b *SoftwareBackend) LiveTextures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.textures)
}

// OnContextLost registers fn to run on SimulateContextLoss.
func (b *SoftwareBackend) OnContextLost(fn func()) {
	b.mu.Lock()
	b.lostFns = append(b.lostFns, fn)
	b.mu.Unlock()
}

// OnContextRestored registers fn to run on SimulateContextRestore.
func (b *SoftwareBackend) OnContextRestored(fn func()) {
	b.mu.Lock()
	b.restoredFns = append(b.restoredFns, fn)
	b.mu.Unlock()
}

// SimulateContextLoss drops every resource and reports the loss to
// registered listeners, the way a browser drops a WebGL context.
func (b *SoftwareBackend) SimulateContextLoss() {
	b.mu.Lock()
	b.lost = true
	b.resetLocked()
	fns := append([]func(){}, b.lostFns...)
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// SimulateContextRestore makes the backend usable again and notifies
// registered listeners.
func (b *SoftwareBackend) SimulateContextRestore() {
	b.mu.Lock()
	b.lost = false
	fns := append([]func(){}, b.restoredFns...)
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (b *SoftwareBackend) checkLocked() error {
	if !b.initialized {
		return ErrNotInitialized
	}
	if b.lost {
		return ErrDeviceLost
	}
	return nil
}

// CreateBuffer allocates a zeroed buffer.
func (b *SoftwareBackend) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return gpucore.InvalidID, err
	}
	if desc == nil || desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: zero-sized buffer", ErrOutOfRange)
	}
	if desc.Size > b.caps.MaxBufferSize {
		return gpucore.InvalidID, fmt.Errorf("%w: size %d exceeds max %d", ErrOutOfRange, desc.Size, b.caps.MaxBufferSize)
	}

	id := gpucore.BufferID(b.newID())
	b.buffers[id] = &softwareBuffer{
		desc:   *desc,
		data:   make([]byte, desc.Size),
		mapped: desc.MappedAtCreation,
	}
	return id, nil
}

func (b *SoftwareBackend) bufferLocked(id gpucore.BufferID) (*softwareBuffer, error) {
	if err := b.checkLocked(); err != nil {
		return nil, err
	}
	buf, ok := b.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", ErrUnknownResource, id)
	}
	return buf, nil
}

// MappedRange returns the host memory of a mapped buffer.
func (b *SoftwareBackend) MappedRange(id gpucore.BufferID) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.bufferLocked(id)
	if err != nil {
		return nil, err
	}
	if !buf.mapped {
		return nil, fmt.Errorf("%w: buffer %d is not mapped", ErrMapped, id)
	}
	return buf.data, nil
}

// Unmap unmaps a mapped buffer.
func (b *SoftwareBackend) Unmap(id gpucore.BufferID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.bufferLocked(id)
	if err != nil {
		return err
	}
	if !buf.mapped {
		return fmt.Errorf("%w: buffer %d is not mapped", ErrMapped, id)
	}
	buf.mapped = false
	return nil
}

// Remap maps an unmapped buffer for host writes.
func (b *SoftwareBackend) Remap(id gpucore.BufferID) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.bufferLocked(id)
	if err != nil {
		return nil, err
	}
	if buf.mapped {
		return nil, fmt.Errorf("%w: buffer %d is already mapped", ErrMapped, id)
	}
	if !buf.desc.Usage.Any(gpucore.BufferUsageMapWrite | gpucore.BufferUsageMapRead) {
		return nil, fmt.Errorf("%w: buffer %d usage %s is not mappable", ErrUnsupported, id, buf.desc.Usage)
	}
	buf.mapped = true
	return buf.data, nil
}

// WriteBuffer copies data into a CopyDst buffer.
func (b *SoftwareBackend) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.bufferLocked(id)
	if err != nil {
		return err
	}
	if !buf.desc.Usage.Contains(gpucore.BufferUsageCopyDst) {
		return fmt.Errorf("%w: write to buffer %d without CopyDst", ErrUnsupported, id)
	}
	if buf.mapped {
		return fmt.Errorf("%w: write to mapped buffer %d", ErrMapped, id)
	}
	if offset+uint64(len(data)) > buf.desc.Size {
		return fmt.Errorf("%w: write [%d, %d) exceeds size %d", ErrOutOfRange, offset, offset+uint64(len(data)), buf.desc.Size)
	}
	copy(buf.data[offset:], data)
	return nil
}

// ReadBuffer returns a copy of a buffer range.
func (b *SoftwareBackend) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.bufferLocked(id)
	if err != nil {
		return nil, err
	}
	if offset+size > buf.desc.Size {
		return nil, fmt.Errorf("%w: read [%d, %d) exceeds size %d", ErrOutOfRange, offset, offset+size, buf.desc.Size)
	}
	out := make([]byte, size)
	copy(out, buf.data[offset:offset+size])
	return out, nil
}

// CopyBuffer copies between two unmapped buffers.
func (b *SoftwareBackend) CopyBuffer(src gpucore.BufferID, srcOffset uint64, dst gpucore.BufferID, dstOffset, size uint64) error {
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
		return fmt.Errorf("%w: copy requires CopySrc -> CopyDst", ErrUnsupported)
	}
	if s.mapped || d.mapped {
		return fmt.Errorf("%w: copy between mapped buffers", ErrMapped)
	}
	if srcOffset+size > s.desc.Size || dstOffset+size > d.desc.Size {
		return fmt.Errorf("%w: copy of %d bytes", ErrOutOfRange, size)
	}
	copy(d.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
	b.stats.BufferCopys++
	return nil
}

// DestroyBuffer releases a buffer.
func (b *SoftwareBackend) DestroyBuffer(id gpucore.BufferID) {
	b.mu.Lock()
	delete(b.buffers, id)
	b.mu.Unlock()
}

// CreateTexture allocates a zeroed texture. Multisampled textures store
// one plane per sample.
func (b *SoftwareBackend) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return gpucore.InvalidID, err
	}
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: zero-sized texture", ErrOutOfRange)
	}
	if desc.Width > b.caps.MaxTextureDimension || desc.Height > b.caps.MaxTextureDimension {
		return gpucore.InvalidID, fmt.Errorf("%w: %dx%d exceeds max dimension %d",
			ErrOutOfRange, desc.Width, desc.Height, b.caps.MaxTextureDimension)
	}
	if desc.Format.BytesPerPixel() == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: texture format %s", ErrUnsupported, desc.Format)
	}
	if desc.Samples() > b.caps.MaxSampleCount {
		return gpucore.InvalidID, fmt.Errorf("%w: sample count %d", ErrUnsupported, desc.Samples())
	}

	id := gpucore.TextureID(b.newID())
	b.textures[id] = &softwareTexture{desc: *desc, data: make([]byte, desc.SizeBytes())}
	return id, nil
}

func (b *SoftwareBackend) textureLocked(id gpucore.TextureID) (*softwareTexture, error) {
	if err := b.checkLocked(); err != nil {
		return nil, err
	}
	tex, ok := b.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: texture %d", ErrUnknownResource, id)
	}
	return tex, nil
}

// ReadTexture returns a copy of a single-sampled texture's texels.
func (b *SoftwareBackend) ReadTexture(id gpucore.TextureID) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.textureLocked(id)
	if err != nil {
		return nil, err
	}
	if tex.desc.Samples() > 1 {
		return nil, fmt.Errorf("%w: read of multisampled texture", ErrUnsupported)
	}
	out := make([]byte, len(tex.data))
	copy(out, tex.data)
	return out, nil
}

// ResolveTexture copies sample 0 of src into dst.
func (b *SoftwareBackend) ResolveTexture(src, dst gpucore.TextureID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolveLocked(src, dst)
}

func (b *SoftwareBackend) resolveLocked(src, dst gpucore.TextureID) error {
	s, err := b.textureLocked(src)
	if err != nil {
		return err
	}
	d, err := b.textureLocked(dst)
	if err != nil {
		return err
	}
	if s.desc.Width != d.desc.Width || s.desc.Height != d.desc.Height || s.desc.Format != d.desc.Format {
		return fmt.Errorf("%w: resolve between mismatched textures", ErrUnsupported)
	}
	if d.desc.Samples() != 1 {
		return fmt.Errorf("%w: resolve into multisampled texture", ErrUnsupported)
	}
	copy(d.data, s.data[:len(d.data)])
	b.stats.Resolves++
	return nil
}

// DestroyTexture releases a texture.
func (b *SoftwareBackend) DestroyTexture(id gpucore.TextureID) {
	b.mu.Lock()
	delete(b.textures, id)
	b.mu.Unlock()
}

// CreateShaderModule stores the shader source. No compilation happens.
func (b *SoftwareBackend) CreateShaderModule(label, source string) (gpucore.ShaderID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return gpucore.InvalidID, err
	}
	if source == "" {
		return gpucore.InvalidID, fmt.Errorf("%w: empty shader source %q", ErrUnsupported, label)
	}
	id := gpucore.ShaderID(b.newID())
	b.shaders[id] = source
	return id, nil
}

// DestroyShaderModule releases a shader module.
func (b *SoftwareBackend) DestroyShaderModule(id gpucore.ShaderID) {
	b.mu.Lock()
	delete(b.shaders, id)
	b.mu.Unlock()
}

// CreateRenderPipeline validates and stores a pipeline description.
func (b *SoftwareBackend) CreateRenderPipeline(desc *gpucore.RenderPipelineDescriptor) (gpucore.PipelineID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return gpucore.InvalidID, err
	}
	if _, ok := b.shaders[desc.Shader]; !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: shader %d", ErrUnknownResource, desc.Shader)
	}
	if desc.Textures > maxTextureSlots {
		return gpucore.InvalidID, fmt.Errorf("%w: %d texture slots", ErrUnsupported, desc.Textures)
	}
	for i, l := range desc.VertexLayouts {
		if err := l.Validate(); err != nil {
			return gpucore.InvalidID, fmt.Errorf("vertex layout %d: %w", i, err)
		}
	}
	id := gpucore.PipelineID(b.newID())
	b.pipelines[id] = *desc
	return id, nil
}

// DestroyRenderPipeline releases a pipeline.
func (b *SoftwareBackend) DestroyRenderPipeline(id gpucore.PipelineID) {
	b.mu.Lock()
	delete(b.pipelines, id)
	b.mu.Unlock()
}

// BeginRenderPass validates the attachments and returns a recording encoder.
func (b *SoftwareBackend) BeginRenderPass(desc *gpucore.RenderPassDescriptor) (RenderPassEncoder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return nil, err
	}
	if len(desc.ColorAttachments) == 0 && desc.DepthAttachment == nil {
		return nil, fmt.Errorf("%w: render pass %q has no attachments", ErrUnsupported, desc.Label)
	}
	for _, ca := range desc.ColorAttachments {
		if _, err := b.textureLocked(ca.Texture); err != nil {
			return nil, err
		}
		if ca.ResolveTarget != gpucore.InvalidID {
			if _, err := b.textureLocked(ca.ResolveTarget); err != nil {
				return nil, err
			}
		}
	}
	if desc.DepthAttachment != nil {
		tex, err := b.textureLocked(desc.DepthAttachment.Texture)
		if err != nil {
			return nil, err
		}
		if !tex.desc.Format.IsDepth() {
			return nil, fmt.Errorf("%w: depth attachment format %s", ErrUnsupported, tex.desc.Format)
		}
	}
	return &softwarePass{backend: b, desc: *desc}, nil
}

// maxTextureSlots is the number of texture bindings a pipeline may use.
const maxTextureSlots = 4

// softwarePass records draw calls and applies them on End.
type softwarePass struct {
	backend *SoftwareBackend
	desc    gpucore.RenderPassDescriptor

	pipeline    gpucore.PipelineID
	indexBuffer gpucore.BufferID
	indexFormat gpucore.IndexFormat

	draws    int
	textures int
	vertices uint64
	indices  uint64
	err      error
	ended    bool
}

func (p *softwarePass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *softwarePass) SetPipeline(id gpucore.PipelineID) {
	p.backend.mu.Lock()
	_, ok := p.backend.pipelines[id]
	p.backend.mu.Unlock()
	if !ok {
		p.fail(fmt.Errorf("%w: pipeline %d", ErrUnknownResource, id))
		return
	}
	p.pipeline = id
}

func (p *softwarePass) SetVertexBuffer(_ uint32, id gpucore.BufferID, _ uint64) {
	p.requireBuffer(id, gpucore.BufferUsageVertex)
}

func (p *softwarePass) SetIndexBuffer(id gpucore.BufferID, format gpucore.IndexFormat, _ uint64) {
	if format != gpucore.IndexFormatUint16 && format != gpucore.IndexFormatUint32 {
		p.fail(fmt.Errorf("%w: index format %s", ErrUnsupported, format))
		return
	}
	if p.requireBuffer(id, gpucore.BufferUsageIndex) {
		p.indexBuffer = id
		p.indexFormat = format
	}
}

func (p *softwarePass) SetUniformBuffer(id gpucore.BufferID, offset, _ uint64) {
	if offset%p.backend.caps.MinUniformOffsetAlignment != 0 {
		p.fail(fmt.Errorf("%w: uniform offset %d not aligned to %d",
			ErrOutOfRange, offset, p.backend.caps.MinUniformOffsetAlignment))
		return
	}
	p.requireBuffer(id, gpucore.BufferUsageUniform)
}

func (p *softwarePass) SetTexture(index uint32, id gpucore.TextureID) {
	p.backend.mu.Lock()
	tex, ok := p.backend.textures[id]
	p.backend.mu.Unlock()
	switch {
	case !ok:
		p.fail(fmt.Errorf("%w: texture %d", ErrUnknownResource, id))
	case !tex.desc.Usage.Contains(gpucore.TextureUsageTextureBinding):
		p.fail(fmt.Errorf("%w: texture %d bound without TextureBinding usage", ErrUnsupported, id))
	case index >= maxTextureSlots:
		p.fail(fmt.Errorf("%w: texture slot %d", ErrOutOfRange, index))
	default:
		p.textures++
	}
}

func (p *softwarePass) requireBuffer(id gpucore.BufferID, usage gpucore.BufferUsage) bool {
	p.backend.mu.Lock()
	buf, ok := p.backend.buffers[id]
	p.backend.mu.Unlock()
	switch {
	case !ok:
		p.fail(fmt.Errorf("%w: buffer %d", ErrUnknownResource, id))
		return false
	case !buf.desc.Usage.Contains(usage):
		p.fail(fmt.Errorf("%w: buffer %d bound as %s has usage %s", ErrUnsupported, id, usage, buf.desc.Usage))
		return false
	}
	return true
}

func (p *softwarePass) Draw(vertexCount, instanceCount, _, _ uint32) {
	if p.pipeline == gpucore.InvalidID {
		p.fail(fmt.Errorf("%w: draw without pipeline", ErrUnsupported))
		return
	}
	p.draws++
	p.vertices += uint64(vertexCount) * uint64(instanceCount)
}

func (p *softwarePass) DrawIndexed(indexCount, instanceCount, _ uint32, _ int32, _ uint32) {
	if p.pipeline == gpucore.InvalidID {
		p.fail(fmt.Errorf("%w: draw without pipeline", ErrUnsupported))
		return
	}
	if p.indexBuffer == gpucore.InvalidID {
		p.fail(fmt.Errorf("%w: indexed draw without index buffer", ErrUnsupported))
		return
	}
	p.draws++
	p.indices += uint64(indexCount) * uint64(instanceCount)
}

// End applies load operations and resolves, then updates the counters.
func (p *softwarePass) End() error {
	if p.ended {
		return fmt.Errorf("%w: render pass already ended", ErrUnsupported)
	}
	p.ended = true
	if p.err != nil {
		return fmt.Errorf("render pass %q: %w", p.desc.Label, p.err)
	}

	b := p.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(); err != nil {
		return err
	}
	for _, ca := range p.desc.ColorAttachments {
		tex, err := b.textureLocked(ca.Texture)
		if err != nil {
			return err
		}
		if ca.Load == gpucore.LoadOpClear {
			fillTexel(tex.data, encodeColor(tex.desc.Format, ca.Clear))
		}
		if ca.ResolveTarget != gpucore.InvalidID {
			if err := b.resolveLocked(ca.Texture, ca.ResolveTarget); err != nil {
				return err
			}
		}
	}
	if da := p.desc.DepthAttachment; da != nil && da.Load == gpucore.LoadOpClear {
		tex, err := b.textureLocked(da.Texture)
		if err != nil {
			return err
		}
		var texel [4]byte
		binary.LittleEndian.PutUint32(texel[:], math.Float32bits(da.ClearDepth))
		fillTexel(tex.data, texel[:])
	}

	b.stats.Passes++
	b.stats.DrawCalls += p.draws
	b.stats.Vertices += p.vertices
	b.stats.Indices += p.indices
	b.stats.TextureBinds += p.textures
	return nil
}

// fillTexel repeats texel over dst.
func fillTexel(dst, texel []byte) {
	if len(texel) == 0 {
		return
	}
	for i := 0; i+len(texel) <= len(dst); i += len(texel) {
		copy(dst[i:], texel)
	}
}

// encodeColor encodes a clear color as a single texel of format f.
func encodeColor(f gpucore.TextureFormat, c gpucore.Color) []byte {
	unorm := func(v float64) byte {
		return byte(math.Round(math.Max(0, math.Min(1, v)) * 255))
	}
	switch f {
	case gpucore.TextureFormatRGBA8Unorm:
		return []byte{unorm(c.R), unorm(c.G), unorm(c.B), unorm(c.A)}
	case gpucore.TextureFormatBGRA8Unorm:
		return []byte{unorm(c.B), unorm(c.G), unorm(c.R), unorm(c.A)}
	case gpucore.TextureFormatRG32Float:
		out := make([]byte, 8)
		binary.LittleEndian.PutUint32(out[0:], math.Float32bits(float32(c.R)))
		binary.LittleEndian.PutUint32(out[4:], math.Float32bits(float32(c.G)))
		return out
	case gpucore.TextureFormatRGBA16Float:
		out := make([]byte, 8)
		for i, v := range []float64{c.R, c.G, c.B, c.A} {
			binary.LittleEndian.PutUint16(out[i*2:], float16bits(float32(v)))
		}
		return out
	default:
		return make([]byte, f.BytesPerPixel())
	}
}

// float16bits converts a float32 to IEEE 754 half precision, flushing
// values below the normal range to zero.
func float16bits(v float32) uint16 {
	bits := math.Float32bits(v)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23&0xff) - 127 + 15
	mant := bits & 0x7fffff
	switch {
	case exp <= 0:
		return sign
	case exp >= 0x1f:
		return sign | 0x7c00
	default:
		return sign | uint16(exp)<<10 | uint16(mant>>13)
	}
}

// Ensure SoftwareBackend implements the backend interfaces.
var (
	_ GraphicsBackend     = (*SoftwareBackend)(nil)
	_ ContextLossNotifier = (*SoftwareBackend)(nil)
)
