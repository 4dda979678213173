package native

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	// Register the Vulkan HAL so Init can find it.
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/backend"
	"github.com/gogpu/gfx/gpucore"
)

// Errors specific to the HAL backend.
var (
	// ErrNoGPU is returned when no GPU adapter is available.
	ErrNoGPU = errors.New("native: no GPU adapter available")

	// ErrInvalidProvider is returned when a device provider does not
	// expose HAL device and queue handles.
	ErrInvalidProvider = errors.New("native: provider does not expose HAL types")
)


// Options configures a Backend.
type Options struct {
	// PrecompileSPIRV compiles WGSL to SPIR-V with naga before handing it
	// to the HAL. Shader errors then surface at module creation with naga
	// diagnostics instead of at pipeline creation.
	PrecompileSPIRV bool
}

// Backend is a GraphicsBackend on a gogpu/wgpu HAL device.
type Backend struct {
	mu sync.Mutex

	opts   Options
	logger *slog.Logger

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	limits   gputypes.Limits
	adapter  string

	// external is set when device and queue belong to a host application.
	external    bool
	initialized bool
	lost        bool

	nextID atomic.Uint64

	buffers   map[gpucore.BufferID]*halBuffer
	textures  map[gpucore.TextureID]*halTexture
	shaders   map[gpucore.ShaderID]hal.ShaderModule
	pipelines map[gpucore.PipelineID]*halPipeline

	lostFns     []func()
	restoredFns []func()
}

func init() {
	backend.Register(backend.BackendNative, func() backend.GraphicsBackend {
		return New(Options{})
	})
}

// New creates an uninitialized backend. Call Init to open a device.
func New(opts Options) *Backend {
	b := &Backend{
		opts:   opts,
		logger: gfx.ComponentLogger("native"),
		limits: gputypes.DefaultLimits(),
	}
	b.nextID.Store(1)
	b.resetLocked()
	return b
}

// NewFromDevice creates an initialized backend on an existing HAL device
// and queue. Close releases the backend's resources but not the device.
func NewFromDevice(device hal.Device, queue hal.Queue, opts Options) (*Backend, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("%w: nil device or queue", ErrInvalidProvider)
	}
	b := New(opts)
	b.device = device
	b.queue = queue
	b.external = true
	b.initialized = true
	b.adapter = "external"
	return b, nil
}

// NewFromProvider creates a backend sharing a host application's GPU
// device. The provider must implement HalDevice() any and HalQueue() any
// returning hal.Device and hal.Queue.
func NewFromProvider(provider gpucontext.DeviceProvider, opts Options) (*Backend, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrInvalidProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrInvalidProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrInvalidProvider)
	}
	return NewFromDevice(device, queue, opts)
}

func (b *Backend) newID() uint64 {
	return b.nextID.Add(1) - 1
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return backend.BackendNative
}

// Init opens the first discrete or integrated GPU, falling back to any
// adapter. Init after a device loss reopens the device with an empty
// resource set.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized && !b.lost {
		return nil
	}
	if b.external {
		// A borrowed device is reopened by its host.
		b.resetLocked()
		b.lost = false
	} else if err := b.openLocked(); err != nil {
		return err
	}
	b.initialized = true
	return nil
}

// Reopen reinitializes a lost backend and runs the restore callbacks.
// Hosts call it once their device is usable again.
func (b *Backend) Reopen() error {
	b.mu.Lock()
	wasLost := b.lost
	b.mu.Unlock()

	if err := b.Init(); err != nil {
		return err
	}
	if !wasLost {
		return nil
	}
	b.mu.Lock()
	fns := append([]func(){}, b.restoredFns...)
	b.mu.Unlock()

	b.logger.Info("device restored", "adapter", b.Adapter())
	for _, fn := range fns {
		fn()
	}
	return nil
}

func (b *Backend) openLocked() error {
	api, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("%w: vulkan HAL not registered", backend.ErrBackendNotAvailable)
	}
	instance, err := api.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("native: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return ErrNoGPU
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), b.limits)
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("native: open device: %w", err)
	}

	b.closeLocked()
	b.instance = instance
	b.device = openDev.Device
	b.queue = openDev.Queue
	b.adapter = selected.Info.Name
	b.lost = false
	b.logger.Info("device opened", "adapter", b.adapter, "type", selected.Info.DeviceType)
	return nil
}

// Close releases every tracked resource and, unless the device is
// borrowed, the device and instance.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
	b.initialized = false
}

func (b *Backend) closeLocked() {
	if b.device != nil && !b.lost {
		for _, p := range b.pipelines {
			p.destroy(b.device)
		}
		for _, m := range b.shaders {
			b.device.DestroyShaderModule(m)
		}
		for _, t := range b.textures {
			t.destroy(b.device)
		}
		for _, buf := range b.buffers {
			b.device.DestroyBuffer(buf.raw)
		}
	}
	b.resetLocked()

	if b.external {
		return
	}
	if b.device != nil {
		b.device.Destroy()
		b.device = nil
	}
	b.queue = nil
	if b.instance != nil {
		b.instance.Destroy()
		b.instance = nil
	}
}

func (b *Backend) resetLocked() {
	b.buffers = make(map[gpucore.BufferID]*halBuffer)
	b.textures = make(map[gpucore.TextureID]*halTexture)
	b.shaders = make(map[gpucore.ShaderID]hal.ShaderModule)
	b.pipelines = make(map[gpucore.PipelineID]*halPipeline)
}

// Capabilities derives the backend limits from the device limits.
// Multisampled depth cannot be resolved on this backend.
func (b *Backend) Capabilities() backend.Capabilities {
	caps := backend.DefaultCapabilities()
	if b.limits.MaxBufferSize > 0 {
		caps.MaxBufferSize = b.limits.MaxBufferSize
	}
	if b.limits.MaxTextureDimension2D > 0 {
		caps.MaxTextureDimension = b.limits.MaxTextureDimension2D
	}
	if b.limits.MinUniformBufferOffsetAlignment > 0 {
		caps.MinUniformOffsetAlignment = uint64(b.limits.MinUniformBufferOffsetAlignment)
	}
	caps.DepthResolve = false
	return caps
}

// Adapter returns the name of the opened adapter.
func (b *Backend) Adapter() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.adapter
}

// OnContextLost registers fn to run when the device is lost.
func (b *Backend) OnContextLost(fn func()) {
	b.mu.Lock()
	b.lostFns = append(b.lostFns, fn)
	b.mu.Unlock()
}

// OnContextRestored registers fn to run after Reopen restores a lost device.
func (b *Backend) OnContextRestored(fn func()) {
	b.mu.Lock()
	b.restoredFns = append(b.restoredFns, fn)
	b.mu.Unlock()
}

// MarkLost records that the device was lost. Every tracked resource is
// forgotten without being destroyed, and the loss callbacks run. Hosts
// sharing their device through NewFromProvider call it from their own
// device-lost handler.
func (b *Backend) MarkLost() {
	b.mu.Lock()
	if b.lost || !b.initialized {
		b.mu.Unlock()
		return
	}
	b.loseLocked()
	fns := append([]func(){}, b.lostFns...)
	b.mu.Unlock()

	b.logger.Warn("device lost", "adapter", b.adapter)
	for _, fn := range fns {
		fn()
	}
}

func (b *Backend) loseLocked() {
	b.lost = true
	b.resetLocked()
}

func (b *Backend) checkLocked() error {
	if !b.initialized {
		return backend.ErrNotInitialized
	}
	if b.lost {
		return backend.ErrDeviceLost
	}
	return nil
}

// submit ends the encoder, submits it and waits for the queue to drain. A
// failed wait, or a submission the queue never reports complete, is
// treated as device loss; the device layer observes it through the
// returned error. The caller holds b.mu.
func (b *Backend) submit(encoder hal.CommandEncoder) error {
	cmd, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmd)

	index, err := b.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		return fmt.Errorf("native: submit: %w", err)
	}
	if err := b.device.WaitIdle(); err != nil {
		b.loseLocked()
		return fmt.Errorf("%w: wait for GPU: %w", backend.ErrDeviceLost, err)
	}
	if done := b.queue.PollCompleted(); done < index {
		b.loseLocked()
		return fmt.Errorf("%w: submission %d not completed (last %d)", backend.ErrDeviceLost, index, done)
	}
	return nil
}

// readMapped copies len(out) bytes at offset out of a MapRead buffer.
// The caller holds b.mu.
func (b *Backend) readMapped(raw hal.Buffer, offset uint64, out []byte) error {
	if len(out) == 0 {
		return nil
	}
	mapping, err := b.device.MapBuffer(raw, offset, uint64(len(out)))
	if err != nil {
		return err
	}
	if mapping.Ptr == nil {
		_ = b.device.UnmapBuffer(raw)
		return errors.New("native: map returned no memory")
	}
	copy(out, unsafe.Slice((*byte)(mapping.Ptr), len(out)))
	return b.device.UnmapBuffer(raw)
}

// newEncoder creates a command encoder that has begun encoding.
func (b *Backend) newEncoder(label string) (hal.CommandEncoder, error) {
	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}
	return encoder, nil
}

// Ensure Backend implements the backend interfaces.
var (
	_ backend.GraphicsBackend     = (*Backend)(nil)
	_ backend.ContextLossNotifier = (*Backend)(nil)
)
