//go:build rust

package rust

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/backend"
	"github.com/gogpu/gfx/gpucore"
)

// ErrNoGPU is returned when wgpu-native finds no adapter.
var ErrNoGPU = errors.New("rust: no GPU adapter available")

// init registers the rust backend on package import.
func init() {
	backend.Register(backend.BackendRust, func() backend.GraphicsBackend {
		return NewRustBackend()
	})
}

// RustBackend is a GraphicsBackend on wgpu-native.
type RustBackend struct {
	mu     sync.Mutex
	logger *slog.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	limits   wgpu.Limits

	initialized bool
	lost        bool

	nextID atomic.Uint64

	buffers   map[gpucore.BufferID]*rustBuffer
	textures  map[gpucore.TextureID]*rustTexture
	shaders   map[gpucore.ShaderID]*wgpu.ShaderModule
	pipelines map[gpucore.PipelineID]*rustPipeline

	lostFns     []func()
	restoredFns []func()
}

// NewRustBackend creates a new backend. Call Init before use.
func NewRustBackend() *RustBackend {
	b := &RustBackend{
		logger: gfx.ComponentLogger("rust"),
		limits: wgpu.DefaultLimits(),
	}
	b.nextID.Store(1)
	b.resetLocked()
	return b
}

func (b *RustBackend) newID() uint64 {
	return b.nextID.Add(1) - 1
}

// Name returns the backend identifier.
func (b *RustBackend) Name() string {
	return backend.BackendRust
}

// Init creates the instance, requests a high-performance adapter and
// opens a device. Resources are released in reverse order on failure.
func (b *RustBackend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized && !b.lost {
		return nil
	}
	b.releaseLocked()

	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return fmt.Errorf("%w: %w", ErrNoGPU, err)
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "gfx",
		RequiredLimits: &wgpu.RequiredLimits{Limits: b.limits},
	})
	if err != nil {
		adapter.Release()
		instance.Release()
		return fmt.Errorf("rust: device creation failed: %w", err)
	}

	b.instance = instance
	b.adapter = adapter
	b.device = device
	b.queue = device.GetQueue()
	b.initialized = true
	b.lost = false
	b.logger.Info("backend initialized")
	return nil
}

// Close releases all backend resources.
func (b *RustBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseLocked()
	b.initialized = false
}

func (b *RustBackend) releaseLocked() {
	if !b.lost {
		for _, p := range b.pipelines {
			p.release()
		}
		for _, m := range b.shaders {
			m.Release()
		}
		for _, t := range b.textures {
			t.release()
		}
		for _, buf := range b.buffers {
			buf.raw.Release()
		}
	}
	b.resetLocked()

	// Release in reverse order of creation.
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

func (b *RustBackend) resetLocked() {
	b.buffers = make(map[gpucore.BufferID]*rustBuffer)
	b.textures = make(map[gpucore.TextureID]*rustTexture)
	b.shaders = make(map[gpucore.ShaderID]*wgpu.ShaderModule)
	b.pipelines = make(map[gpucore.PipelineID]*rustPipeline)
}

// Capabilities derives the backend limits from the requested device
// limits. wgpu-native resolves multisampled depth only in shaders, so
// DepthResolve is false.
func (b *RustBackend) Capabilities() backend.Capabilities {
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

// IsInitialized reports whether Init succeeded and the device is usable.
func (b *RustBackend) IsInitialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized && !b.lost
}

// OnContextLost registers fn to run when the device is lost.
func (b *RustBackend) OnContextLost(fn func()) {
	b.mu.Lock()
	b.lostFns = append(b.lostFns, fn)
	b.mu.Unlock()
}

// OnContextRestored registers fn to run after Reopen.
func (b *RustBackend) OnContextRestored(fn func()) {
	b.mu.Lock()
	b.restoredFns = append(b.restoredFns, fn)
	b.mu.Unlock()
}

// MarkLost forgets every resource and runs the loss callbacks.
func (b *RustBackend) MarkLost() {
	b.mu.Lock()
	if b.lost || !b.initialized {
		b.mu.Unlock()
		return
	}
	b.lost = true
	b.resetLocked()
	fns := append([]func(){}, b.lostFns...)
	b.mu.Unlock()

	b.logger.Warn("device lost")
	for _, fn := range fns {
		fn()
	}
}

// Reopen reinitializes a lost backend and runs the restore callbacks.
func (b *RustBackend) Reopen() error {
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
	for _, fn := range fns {
		fn()
	}
	return nil
}

func (b *RustBackend) checkLocked() error {
	if !b.initialized {
		return backend.ErrNotInitialized
	}
	if b.lost {
		return backend.ErrDeviceLost
	}
	return nil
}

// submit finishes the encoder and submits it to the queue.
func (b *RustBackend) submit(encoder *wgpu.CommandEncoder) error {
	defer encoder.Release()
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("rust: finish encoder: %w", err)
	}
	b.queue.Submit(cmd)
	cmd.Release()
	return nil
}

// Ensure RustBackend implements the backend interfaces.
var (
	_ backend.GraphicsBackend     = (*RustBackend)(nil)
	_ backend.ContextLossNotifier = (*RustBackend)(nil)
)
