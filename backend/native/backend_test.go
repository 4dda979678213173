package native

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/gfx/backend"
	"github.com/gogpu/gfx/gpu"
	"github.com/gogpu/gfx/gpucore"
)

const testShader = `
@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`

// createNoopDevice creates a noop device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	device, queue := createNoopDevice(t)
	b, err := NewFromDevice(device, queue, Options{})
	if err != nil {
		t.Fatalf("NewFromDevice() error = %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

// halProvider exposes HAL handles the way a host application does.
type halProvider struct {
	gpucontext.DeviceProvider
	device hal.Device
	queue  hal.Queue
}

func (p halProvider) HalDevice() any { return p.device }
func (p halProvider) HalQueue() any  { return p.queue }

func TestNewFromProvider(t *testing.T) {
	device, queue := createNoopDevice(t)

	b, err := NewFromProvider(halProvider{device: device, queue: queue}, Options{})
	if err != nil {
		t.Fatalf("NewFromProvider() error = %v", err)
	}
	defer b.Close()
	if b.Name() != backend.BackendNative {
		t.Errorf("Name() = %q, want %q", b.Name(), backend.BackendNative)
	}
	if err := b.Init(); err != nil {
		t.Errorf("Init() on borrowed device error = %v", err)
	}

	if _, err := NewFromProvider(nil, Options{}); !errors.Is(err, ErrInvalidProvider) {
		t.Errorf("NewFromProvider(nil) error = %v, want ErrInvalidProvider", err)
	}
	if _, err := NewFromProvider(halProvider{}, Options{}); !errors.Is(err, ErrInvalidProvider) {
		t.Errorf("NewFromProvider(no handles) error = %v, want ErrInvalidProvider", err)
	}
	if _, err := NewFromDevice(nil, queue, Options{}); !errors.Is(err, ErrInvalidProvider) {
		t.Errorf("NewFromDevice(nil) error = %v, want ErrInvalidProvider", err)
	}
}

func TestRegistered(t *testing.T) {
	if !backend.IsRegistered(backend.BackendNative) {
		t.Fatal("native backend not registered")
	}
}

func TestCapabilities(t *testing.T) {
	b := newTestBackend(t)
	caps := b.Capabilities()
	if caps.DepthResolve {
		t.Error("DepthResolve = true, want false")
	}
	if caps.ShaderLanguage != backend.ShaderLanguageWGSL {
		t.Errorf("ShaderLanguage = %s, want WGSL", caps.ShaderLanguage)
	}
	if caps.MaxBufferSize == 0 || caps.MaxTextureDimension == 0 || caps.MinUniformOffsetAlignment == 0 {
		t.Errorf("Capabilities() has zero limits: %+v", caps)
	}
}

func TestUninitialized(t *testing.T) {
	b := New(Options{})
	_, err := b.CreateBuffer(&gpucore.BufferDescriptor{Size: 16, Usage: gpucore.BufferUsageVertex})
	if !errors.Is(err, backend.ErrNotInitialized) {
		t.Errorf("CreateBuffer() before Init error = %v, want ErrNotInitialized", err)
	}
}

func TestBufferLifecycle(t *testing.T) {
	b := newTestBackend(t)

	id, err := b.CreateBuffer(&gpucore.BufferDescriptor{
		Label:            "vb",
		Size:             64,
		Usage:            gpucore.BufferUsageVertex | gpucore.BufferUsageMapWrite,
		MappedAtCreation: true,
	})
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	mapped, err := b.MappedRange(id)
	if err != nil {
		t.Fatalf("MappedRange() error = %v", err)
	}
	if len(mapped) != 64 {
		t.Errorf("len(MappedRange()) = %d, want 64", len(mapped))
	}
	if err := b.WriteBuffer(id, 0, []byte{1}); !errors.Is(err, backend.ErrMapped) {
		t.Errorf("WriteBuffer() while mapped error = %v, want ErrMapped", err)
	}
	if err := b.Unmap(id); err != nil {
		t.Fatalf("Unmap() error = %v", err)
	}
	if err := b.Unmap(id); !errors.Is(err, backend.ErrMapped) {
		t.Errorf("second Unmap() error = %v, want ErrMapped", err)
	}
	if _, err := b.Remap(id); err != nil {
		t.Fatalf("Remap() error = %v", err)
	}
	if err := b.Unmap(id); err != nil {
		t.Fatalf("Unmap() after Remap error = %v", err)
	}
	if err := b.WriteBuffer(id, 60, make([]byte, 8)); !errors.Is(err, backend.ErrOutOfRange) {
		t.Errorf("WriteBuffer() past end error = %v, want ErrOutOfRange", err)
	}

	b.DestroyBuffer(id)
	b.DestroyBuffer(id)
	if _, err := b.MappedRange(id); !errors.Is(err, backend.ErrUnknownResource) {
		t.Errorf("MappedRange() after destroy error = %v, want ErrUnknownResource", err)
	}
}

func TestBufferUsageChecks(t *testing.T) {
	b := newTestBackend(t)

	vertexOnly, err := b.CreateBuffer(&gpucore.BufferDescriptor{Size: 16, Usage: gpucore.BufferUsageVertex})
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	if err := b.WriteBuffer(vertexOnly, 0, []byte{1}); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("WriteBuffer() without CopyDst error = %v, want ErrUnsupported", err)
	}
	if _, err := b.Remap(vertexOnly); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("Remap() without MapWrite error = %v, want ErrUnsupported", err)
	}
	if _, err := b.ReadBuffer(vertexOnly, 0, 4); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("ReadBuffer() without MapRead or CopySrc error = %v, want ErrUnsupported", err)
	}
	if _, err := b.CreateBuffer(&gpucore.BufferDescriptor{Size: 0, Usage: gpucore.BufferUsageVertex}); !errors.Is(err, backend.ErrOutOfRange) {
		t.Errorf("CreateBuffer(0) error = %v, want ErrOutOfRange", err)
	}

	readable, _ := b.CreateBuffer(&gpucore.BufferDescriptor{Size: 16, Usage: gpucore.BufferUsageMapRead | gpucore.BufferUsageCopyDst})
	if err := b.CopyBuffer(vertexOnly, 0, readable, 0, 4); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("CopyBuffer() without CopySrc error = %v, want ErrUnsupported", err)
	}
	if _, err := b.ReadBuffer(readable, 8, 16); !errors.Is(err, backend.ErrOutOfRange) {
		t.Errorf("ReadBuffer() past end error = %v, want ErrOutOfRange", err)
	}
}

func TestBufferReadback(t *testing.T) {
	b := newTestBackend(t)

	readable, err := b.CreateBuffer(&gpucore.BufferDescriptor{Size: 16, Usage: gpucore.BufferUsageMapRead | gpucore.BufferUsageCopyDst})
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := b.WriteBuffer(readable, 4, want); err != nil {
		t.Fatalf("WriteBuffer() error = %v", err)
	}
	got, err := b.ReadBuffer(readable, 4, 8)
	if err != nil {
		t.Fatalf("ReadBuffer() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadBuffer() = %v, want %v", got, want)
	}

	src, _ := b.CreateBuffer(&gpucore.BufferDescriptor{Size: 16, Usage: gpucore.BufferUsageCopySrc | gpucore.BufferUsageCopyDst})
	if err := b.CopyBuffer(src, 0, readable, 0, 16); err != nil {
		t.Fatalf("CopyBuffer() error = %v", err)
	}
	if got, err := b.ReadBuffer(src, 0, 16); err != nil || len(got) != 16 {
		t.Errorf("ReadBuffer() through staging = %d bytes, error %v", len(got), err)
	}
	if _, err := b.CreateBuffer(&gpucore.BufferDescriptor{Size: 4, Usage: gpucore.BufferUsageVertex}); err != nil {
		t.Errorf("CreateBuffer() after submissions error = %v", err)
	}
}

func TestTextureLifecycle(t *testing.T) {
	b := newTestBackend(t)

	desc := &gpucore.TextureDescriptor{
		Label:       "msaa",
		Width:       16,
		Height:      16,
		SampleCount: 4,
		Format:      gpucore.TextureFormatRGBA8Unorm,
		Usage:       gpucore.TextureUsageRenderAttachment,
	}
	msaa, err := b.CreateTexture(desc)
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	if _, err := b.ReadTexture(msaa); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("ReadTexture(msaa) error = %v, want ErrUnsupported", err)
	}

	depth, err := b.CreateTexture(&gpucore.TextureDescriptor{
		Width: 16, Height: 16, SampleCount: 4,
		Format: gpucore.TextureFormatDepth24Plus,
		Usage:  gpucore.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatalf("CreateTexture(depth) error = %v", err)
	}
	depthResolve, _ := b.CreateTexture(&gpucore.TextureDescriptor{
		Width: 16, Height: 16,
		Format: gpucore.TextureFormatDepth24Plus,
		Usage:  gpucore.TextureUsageRenderAttachment,
	})
	if err := b.ResolveTexture(depth, depthResolve); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("ResolveTexture(depth) error = %v, want ErrUnsupported", err)
	}

	if _, err := b.CreateTexture(&gpucore.TextureDescriptor{Width: 4, Height: 4}); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("CreateTexture(undefined format) error = %v, want ErrUnsupported", err)
	}
	if _, err := b.CreateTexture(&gpucore.TextureDescriptor{Width: 0, Height: 4, Format: gpucore.TextureFormatRGBA8Unorm}); !errors.Is(err, backend.ErrOutOfRange) {
		t.Errorf("CreateTexture(0 width) error = %v, want ErrOutOfRange", err)
	}

	b.DestroyTexture(msaa)
	b.DestroyTexture(msaa)
	if _, err := b.ReadTexture(msaa); !errors.Is(err, backend.ErrUnknownResource) {
		t.Errorf("ReadTexture() after destroy error = %v, want ErrUnknownResource", err)
	}
}

func newTestPipeline(t *testing.T, b *Backend, textures uint32) gpucore.PipelineID {
	t.Helper()
	shader, err := b.CreateShaderModule("test", testShader)
	if err != nil {
		t.Fatalf("CreateShaderModule() error = %v", err)
	}
	pipeline, err := b.CreateRenderPipeline(&gpucore.RenderPipelineDescriptor{
		Label:         "test",
		Shader:        shader,
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		VertexLayouts: []gpucore.VertexLayout{gpucore.PositionLayout()},
		ColorFormats:  []gpucore.TextureFormat{gpucore.TextureFormatRGBA8Unorm},
		DepthFormat:   gpucore.TextureFormatDepth24Plus,
		Cull:          gpucore.CullModeBack,
		UniformSize:   64,
		Textures:      textures,
	})
	if err != nil {
		t.Fatalf("CreateRenderPipeline() error = %v", err)
	}
	return pipeline
}

func TestRenderPass(t *testing.T) {
	b := newTestBackend(t)
	pipeline := newTestPipeline(t, b, 1)

	color, _ := b.CreateTexture(&gpucore.TextureDescriptor{
		Width: 8, Height: 8,
		Format: gpucore.TextureFormatRGBA8Unorm,
		Usage:  gpucore.TextureUsageRenderAttachment,
	})
	depth, _ := b.CreateTexture(&gpucore.TextureDescriptor{
		Width: 8, Height: 8,
		Format: gpucore.TextureFormatDepth24Plus,
		Usage:  gpucore.TextureUsageRenderAttachment,
	})
	moments, _ := b.CreateTexture(&gpucore.TextureDescriptor{
		Width: 8, Height: 8,
		Format: gpucore.TextureFormatRG32Float,
		Usage:  gpucore.TextureUsageTextureBinding,
	})
	vb, _ := b.CreateBuffer(&gpucore.BufferDescriptor{Size: 36, Usage: gpucore.BufferUsageVertex | gpucore.BufferUsageCopyDst})
	ib, _ := b.CreateBuffer(&gpucore.BufferDescriptor{Size: 12, Usage: gpucore.BufferUsageIndex | gpucore.BufferUsageCopyDst})
	ub, _ := b.CreateBuffer(&gpucore.BufferDescriptor{Size: 512, Usage: gpucore.BufferUsageUniform | gpucore.BufferUsageCopyDst})

	desc := &gpucore.RenderPassDescriptor{
		Label: "main",
		ColorAttachments: []gpucore.ColorAttachment{{
			Texture: color, Load: gpucore.LoadOpClear, Store: true,
			Clear: gpucore.Color{A: 1},
		}},
		DepthAttachment: &gpucore.DepthAttachment{Texture: depth, ClearDepth: 1},
	}

	pass, err := b.BeginRenderPass(desc)
	if err != nil {
		t.Fatalf("BeginRenderPass() error = %v", err)
	}
	pass.SetPipeline(pipeline)
	pass.SetVertexBuffer(0, vb, 0)
	pass.SetIndexBuffer(ib, gpucore.IndexFormatUint32, 0)
	pass.SetUniformBuffer(ub, 256, 64)
	pass.SetTexture(0, moments)
	pass.DrawIndexed(3, 1, 0, 0, 0)
	if err := pass.End(); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if err := pass.End(); err == nil {
		t.Error("second End() error = nil")
	}

	tests := []struct {
		name    string
		record  func(p backend.RenderPassEncoder)
		wantErr error
	}{
		{"draw without pipeline", func(p backend.RenderPassEncoder) {
			p.Draw(3, 1, 0, 0)
		}, backend.ErrUnsupported},
		{"uint8 indices", func(p backend.RenderPassEncoder) {
			p.SetIndexBuffer(ib, gpucore.IndexFormatUint8, 0)
		}, backend.ErrUnsupported},
		{"misaligned uniform", func(p backend.RenderPassEncoder) {
			p.SetUniformBuffer(ub, 4, 64)
		}, backend.ErrOutOfRange},
		{"unbound texture", func(p backend.RenderPassEncoder) {
			p.SetPipeline(pipeline)
			p.SetUniformBuffer(ub, 0, 64)
			p.Draw(3, 1, 0, 0)
		}, backend.ErrUnsupported},
		{"texture without binding usage", func(p backend.RenderPassEncoder) {
			p.SetTexture(0, color)
		}, backend.ErrUnsupported},
		{"vertex buffer as index", func(p backend.RenderPassEncoder) {
			p.SetIndexBuffer(vb, gpucore.IndexFormatUint16, 0)
		}, backend.ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pass, err := b.BeginRenderPass(desc)
			if err != nil {
				t.Fatalf("BeginRenderPass() error = %v", err)
			}
			tt.record(pass)
			if err := pass.End(); !errors.Is(err, tt.wantErr) {
				t.Errorf("End() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBeginRenderPassValidation(t *testing.T) {
	b := newTestBackend(t)

	if _, err := b.BeginRenderPass(&gpucore.RenderPassDescriptor{}); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("BeginRenderPass(empty) error = %v, want ErrUnsupported", err)
	}
	color, _ := b.CreateTexture(&gpucore.TextureDescriptor{
		Width: 8, Height: 8,
		Format: gpucore.TextureFormatRGBA8Unorm,
		Usage:  gpucore.TextureUsageRenderAttachment,
	})
	_, err := b.BeginRenderPass(&gpucore.RenderPassDescriptor{
		DepthAttachment: &gpucore.DepthAttachment{Texture: color},
	})
	if !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("BeginRenderPass(color as depth) error = %v, want ErrUnsupported", err)
	}
	_, err = b.BeginRenderPass(&gpucore.RenderPassDescriptor{
		ColorAttachments: []gpucore.ColorAttachment{{Texture: 9999}},
	})
	if !errors.Is(err, backend.ErrUnknownResource) {
		t.Errorf("BeginRenderPass(unknown texture) error = %v, want ErrUnknownResource", err)
	}
}

func TestPipelineValidation(t *testing.T) {
	b := newTestBackend(t)

	if _, err := b.CreateShaderModule("empty", ""); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("CreateShaderModule(empty) error = %v, want ErrUnsupported", err)
	}
	_, err := b.CreateRenderPipeline(&gpucore.RenderPipelineDescriptor{Shader: 12345})
	if !errors.Is(err, backend.ErrUnknownResource) {
		t.Errorf("CreateRenderPipeline(unknown shader) error = %v, want ErrUnknownResource", err)
	}

	shader, _ := b.CreateShaderModule("test", testShader)
	_, err = b.CreateRenderPipeline(&gpucore.RenderPipelineDescriptor{
		Shader:   shader,
		Textures: maxTextureSlots + 1,
	})
	if !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("CreateRenderPipeline(too many textures) error = %v, want ErrUnsupported", err)
	}

	// Depth-only pipelines have no fragment stage and no uniform block.
	depthOnly, err := b.CreateRenderPipeline(&gpucore.RenderPipelineDescriptor{
		Label:         "depth_only",
		Shader:        shader,
		VertexEntry:   "vs_main",
		VertexLayouts: []gpucore.VertexLayout{gpucore.PositionLayout()},
		DepthFormat:   gpucore.TextureFormatDepth32Float,
	})
	if err != nil {
		t.Fatalf("CreateRenderPipeline(depth only) error = %v", err)
	}
	b.DestroyRenderPipeline(depthOnly)
	b.DestroyRenderPipeline(depthOnly)
	b.DestroyShaderModule(shader)
}

func TestContextLoss(t *testing.T) {
	b := newTestBackend(t)

	var lost, restored int
	b.OnContextLost(func() { lost++ })
	b.OnContextRestored(func() { restored++ })

	id, _ := b.CreateBuffer(&gpucore.BufferDescriptor{Size: 16, Usage: gpucore.BufferUsageVertex | gpucore.BufferUsageCopyDst})
	b.MarkLost()
	b.MarkLost()
	if lost != 1 {
		t.Errorf("lost callbacks = %d, want 1", lost)
	}
	if err := b.WriteBuffer(id, 0, []byte{1}); !errors.Is(err, backend.ErrDeviceLost) {
		t.Errorf("WriteBuffer() while lost error = %v, want ErrDeviceLost", err)
	}
	b.DestroyBuffer(id) // ignored while lost

	if err := b.Reopen(); err != nil {
		t.Fatalf("Reopen() error = %v", err)
	}
	if restored != 1 {
		t.Errorf("restored callbacks = %d, want 1", restored)
	}
	if err := b.WriteBuffer(id, 0, []byte{1}); !errors.Is(err, backend.ErrUnknownResource) {
		t.Errorf("WriteBuffer() of pre-loss buffer error = %v, want ErrUnknownResource", err)
	}
	if err := b.Reopen(); err != nil {
		t.Errorf("Reopen() while healthy error = %v", err)
	}
	if restored != 1 {
		t.Errorf("restored callbacks = %d after healthy Reopen, want 1", restored)
	}
}

func TestDeviceOnNativeBackend(t *testing.T) {
	b := newTestBackend(t)
	d := gpu.NewDevice(b, gpu.DeviceOptions{Label: "native"})
	defer d.Close()

	vb, err := d.CreateVertexBuffer("tri", gpucore.PositionLayout(), 3, gpucore.BufferUsageCopyDst)
	if err != nil {
		t.Fatalf("CreateVertexBuffer() error = %v", err)
	}
	view, err := vb.Lock()
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if err := view.PutFloat32s(0, 0, 1, 0); err != nil {
		t.Fatalf("PutFloat32s() error = %v", err)
	}
	if err := vb.Unlock(); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if got := d.VRAM().Of(gpu.MemoryVertex); got != 36 {
		t.Errorf("vertex bytes = %d, want 36", got)
	}

	if _, err := d.CreateIndexBuffer("ib", gpucore.IndexFormatUint8, 3, gpucore.BufferUsageCopyDst); !errors.Is(err, gpu.ErrUnsupportedIndexFormat) {
		t.Errorf("CreateIndexBuffer(Uint8) error = %v, want ErrUnsupportedIndexFormat", err)
	}

	b.MarkLost()
	if !d.Lost() {
		t.Fatal("device did not observe backend loss")
	}
	if err := b.Reopen(); err != nil {
		t.Fatalf("Reopen() error = %v", err)
	}
	if d.Lost() {
		t.Error("device still lost after Reopen")
	}
	if !vb.Uploaded() {
		t.Error("vertex buffer not re-uploaded after Reopen")
	}
}
