package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/backend"
	"github.com/gogpu/gfx/gpucore"
)

// resource is implemented by every device-owned object that holds native
// handles. loseContext must never panic and must tolerate being called in
// any state; restore runs after the backend is usable again.
type resource interface {
	loseContext()
	restore() error
}

// DeviceOptions configures a Device.
type DeviceOptions struct {
	// Label is an optional debug label.
	Label string

	// VRAMWarnBytes logs a warning each time tracked memory grows past
	// this many bytes. Zero disables the warning.
	VRAMWarnBytes uint64
}

// Device owns one selected backend and the bookkeeping shared by every
// resource created on it: VRAM counters, the context generation and the set
// of resources to notify on context loss.
//
// Resources belong to exactly one device. A Device is driven by a single
// submission goroutine; only context loss may arrive from elsewhere, and the
// internal lock guards the counters and the resource set, not the resources.
type Device struct {
	id      uuid.UUID
	label   string
	backend backend.GraphicsBackend
	caps    backend.Capabilities
	opts    DeviceOptions
	log     *slog.Logger

	generation atomic.Uint64
	lost       atomic.Bool

	mu        sync.Mutex
	vram      VRAMStats
	resources map[resource]struct{}
	closed    bool
}

// NewDevice wraps an initialized backend. If the backend reports context
// loss asynchronously, the device subscribes to it.
func NewDevice(b backend.GraphicsBackend, opts DeviceOptions) *Device {
	d := &Device{
		id:        uuid.New(),
		label:     opts.Label,
		backend:   b,
		caps:      b.Capabilities(),
		opts:      opts,
		resources: make(map[resource]struct{}),
	}
	d.log = gfx.Logger().With(slog.String("device", d.id.String()))
	d.generation.Store(1)

	if n, ok := b.(backend.ContextLossNotifier); ok {
		n.OnContextLost(d.LoseContext)
		n.OnContextRestored(func() {
			if err := d.RestoreContext(); err != nil {
				d.log.Error("gpu: context restore failed", "err", err)
			}
		})
	}

	d.log.Info("gpu: device created", "backend", b.Name(), "label", opts.Label)
	return d
}

// OpenDevice opens the named backend (or the best available one when name
// is empty) and wraps it in a Device.
func OpenDevice(name string, opts DeviceOptions) (*Device, error) {
	b, err := backend.Open(name)
	if err != nil {
		return nil, fmt.Errorf("gpu: open backend %q: %w", name, err)
	}
	return NewDevice(b, opts), nil
}

// ID returns the unique device identifier.
func (d *Device) ID() uuid.UUID { return d.id }

// Label returns the debug label.
func (d *Device) Label() string { return d.label }

// Backend returns the selected backend.
func (d *Device) Backend() backend.GraphicsBackend { return d.backend }

// Capabilities returns the backend limits captured at creation.
func (d *Device) Capabilities() backend.Capabilities { return d.caps }

// Generation returns the context generation. It starts at 1 and increases
// on every context loss.
func (d *Device) Generation() uint64 { return d.generation.Load() }

// Lost reports whether the context is currently lost.
func (d *Device) Lost() bool { return d.lost.Load() }

// VRAM returns a snapshot of the tracked memory counters.
func (d *Device) VRAM() VRAMStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vram
}

// LoseContext marks the context lost and resets the native state of every
// tracked resource. It is safe to call at any time and more than once.
func (d *Device) LoseContext() {
	if d.lost.Swap(true) {
		return
	}
	d.generation.Add(1)

	for _, r := range d.snapshot() {
		r.loseContext()
	}
	d.log.Warn("gpu: context lost", "generation", d.Generation())
}

// RestoreContext re-initializes the backend and restores every tracked
// resource. Restoring a device that is not lost is a no-op.
func (d *Device) RestoreContext() error {
	if !d.lost.Load() {
		return nil
	}
	if err := d.backend.Init(); err != nil {
		return fmt.Errorf("gpu: restore context: %w", err)
	}
	d.caps = d.backend.Capabilities()
	d.lost.Store(false)

	var errs []error
	for _, r := range d.snapshot() {
		if err := r.restore(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("gpu: restore resources: %w", err)
	}
	d.log.Info("gpu: context restored", "generation", d.Generation())
	return nil
}

// Close destroys every tracked resource and closes the backend.
func (d *Device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	for _, r := range d.snapshot() {
		if c, ok := r.(interface{ Destroy() }); ok {
			c.Destroy()
		}
	}
	d.backend.Close()
	d.log.Info("gpu: device closed", "vram", d.VRAM().String())
}

func (d *Device) snapshot() []resource {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]resource, 0, len(d.resources))
	for r := range d.resources {
		out = append(out, r)
	}
	return out
}

func (d *Device) track(r resource) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDeviceClosed
	}
	d.resources[r] = struct{}{}
	return nil
}

func (d *Device) untrack(r resource) {
	d.mu.Lock()
	delete(d.resources, r)
	d.mu.Unlock()
}

// charge adds size bytes to class c.
func (d *Device) charge(c MemoryClass, size uint64) {
	d.mu.Lock()
	d.vram.Bytes[c] += size
	d.vram.Count[c]++
	total := d.vram.Total()
	d.mu.Unlock()

	if d.opts.VRAMWarnBytes > 0 && total > d.opts.VRAMWarnBytes {
		d.log.Warn("gpu: tracked VRAM above threshold", "bytes", total, "threshold", d.opts.VRAMWarnBytes)
	}
}

// release subtracts size bytes from class c.
func (d *Device) release(c MemoryClass, size uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.vram.Bytes[c] < size || d.vram.Count[c] == 0 {
		// Accounting bug: clamp instead of wrapping around.
		d.log.Error("gpu: VRAM release underflow", "class", c.String(), "bytes", size)
		d.vram.Bytes[c] = 0
		d.vram.Count[c] = 0
		return
	}
	d.vram.Bytes[c] -= size
	d.vram.Count[c]--
}

// check returns ErrContextLost while the context is lost.
func (d *Device) check() error {
	if d.lost.Load() {
		return ErrContextLost
	}
	return nil
}

// wrap annotates a backend error. A backend reporting device loss puts the
// whole device into the lost state.
func (d *Device) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, backend.ErrDeviceLost) {
		d.LoseContext()
		return fmt.Errorf("gpu: %s: %w: %w", op, ErrContextLost, err)
	}
	if errors.Is(err, backend.ErrOutOfRange) {
		return fmt.Errorf("gpu: %s: %w: %w", op, ErrInvalidSize, err)
	}
	return fmt.Errorf("gpu: %s: %w", op, err)
}

// BeginRenderPass starts a render pass on the device's backend.
func (d *Device) BeginRenderPass(desc *gpucore.RenderPassDescriptor) (backend.RenderPassEncoder, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	enc, err := d.backend.BeginRenderPass(desc)
	if err != nil {
		return nil, d.wrap("begin render pass", err)
	}
	return &passEncoder{RenderPassEncoder: enc, dev: d}, nil
}

// passEncoder maps backend errors returned from End.
type passEncoder struct {
	backend.RenderPassEncoder
	dev *Device
}

func (p *passEncoder) End() error {
	return p.dev.wrap("end render pass", p.RenderPassEncoder.End())
}

// copyBuffer copies between two realized buffers.
func (d *Device) copyBuffer(src gpucore.BufferID, srcOffset uint64, dst gpucore.BufferID, dstOffset, size uint64) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.wrap("copy buffer", d.backend.CopyBuffer(src, srcOffset, dst, dstOffset, size))
}

// alignUp rounds v up to a multiple of align (align must be a power of two
// or zero).
func alignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}
