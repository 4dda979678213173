package gpu

import (
	"fmt"

	"github.com/gogpu/gfx/gpucore"
)

// Buffer is a GPU buffer with usage flags and a fixed byte size.
//
// The backend buffer is created lazily on the first Write (or an explicit
// Realize) and the device VRAM counter for the buffer's class is charged at
// that point. A failed creation changes no counter. Destroy is idempotent
// and releases the charge exactly once.
//
// Lifecycle:
//  1. Create via Device.NewBuffer (no native allocation yet)
//  2. Write or Realize allocates the native buffer
//  3. Destroy releases it; further use returns ErrDestroyed
type Buffer struct {
	dev   *Device
	label string
	size  uint64
	usage gpucore.BufferUsage
	class MemoryClass

	id        gpucore.BufferID
	destroyed bool
}

// NewBuffer declares a buffer of size bytes. Usage flags are combined with
// bitwise OR; a usage without any known flag fails with ErrUnsupportedUsage.
func (d *Device) NewBuffer(label string, size uint64, usage gpucore.BufferUsage) (*Buffer, error) {
	if !usage.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedUsage, usage)
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: zero-sized buffer %q", ErrInvalidSize, label)
	}
	if size > d.caps.MaxBufferSize {
		return nil, fmt.Errorf("%w: buffer %q size %d exceeds max %d", ErrInvalidSize, label, size, d.caps.MaxBufferSize)
	}

	b := &Buffer{
		dev:   d,
		label: label,
		size:  size,
		usage: usage,
		class: classifyBuffer(usage),
	}
	if err := d.track(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Label returns the debug label.
func (b *Buffer) Label() string { return b.label }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Usage returns the usage flags.
func (b *Buffer) Usage() gpucore.BufferUsage { return b.usage }

// Class returns the VRAM accounting class.
func (b *Buffer) Class() MemoryClass { return b.class }

// Device returns the owning device.
func (b *Buffer) Device() *Device { return b.dev }

// ID returns the backend buffer, or gpucore.InvalidID if it has not been
// created yet or was lost.
func (b *Buffer) ID() gpucore.BufferID { return b.id }

// Realized reports whether the backend buffer exists.
func (b *Buffer) Realized() bool { return b.id != gpucore.InvalidID }

// Destroyed reports whether Destroy has been called.
func (b *Buffer) Destroyed() bool { return b.destroyed }

// Realize creates the backend buffer if it does not exist yet.
func (b *Buffer) Realize() error {
	if b.destroyed {
		return ErrDestroyed
	}
	if b.id != gpucore.InvalidID {
		return nil
	}
	if err := b.dev.check(); err != nil {
		return err
	}

	id, err := b.dev.backend.CreateBuffer(&gpucore.BufferDescriptor{
		Label: b.label,
		Size:  b.size,
		Usage: b.usage,
	})
	if err != nil {
		return b.dev.wrap(fmt.Sprintf("create buffer %q", b.label), err)
	}
	b.id = id
	b.dev.charge(b.class, b.size)
	b.dev.log.Debug("gpu: buffer created", "label", b.label, "size", b.size, "usage", b.usage.String())
	return nil
}

// Write uploads data at offset. The buffer must be flagged for CPU upload
// (MapWrite or CopyDst); otherwise Write fails with ErrUnsupportedUsage and
// nothing is allocated.
func (b *Buffer) Write(offset uint64, data []byte) error {
	if b.destroyed {
		return ErrDestroyed
	}
	if !b.usage.CPUWritable() {
		return fmt.Errorf("%w: write to buffer %q with usage %s", ErrUnsupportedUsage, b.label, b.usage)
	}
	if offset > b.size || uint64(len(data)) > b.size-offset {
		return fmt.Errorf("%w: write [%d, %d) exceeds buffer %q of %d bytes",
			ErrInvalidSize, offset, offset+uint64(len(data)), b.label, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	if err := b.Realize(); err != nil {
		return err
	}

	if b.usage.Contains(gpucore.BufferUsageCopyDst) {
		return b.dev.wrap("write buffer", b.dev.backend.WriteBuffer(b.id, offset, data))
	}

	// Map-write only: map, copy, unmap.
	mapped, err := b.dev.backend.Remap(b.id)
	if err != nil {
		return b.dev.wrap("map buffer", err)
	}
	copy(mapped[offset:], data)
	return b.dev.wrap("unmap buffer", b.dev.backend.Unmap(b.id))
}

// Read returns size bytes starting at offset. The buffer must be flagged
// for CPU readback (MapRead or CopySrc).
func (b *Buffer) Read(offset, size uint64) ([]byte, error) {
	if b.destroyed {
		return nil, ErrDestroyed
	}
	if !b.usage.CPUReadable() {
		return nil, fmt.Errorf("%w: read from buffer %q with usage %s", ErrUnsupportedUsage, b.label, b.usage)
	}
	if offset > b.size || size > b.size-offset {
		return nil, fmt.Errorf("%w: read [%d, %d) exceeds buffer %q of %d bytes",
			ErrInvalidSize, offset, offset+size, b.label, b.size)
	}
	if err := b.Realize(); err != nil {
		return nil, err
	}
	data, err := b.dev.backend.ReadBuffer(b.id, offset, size)
	if err != nil {
		return nil, b.dev.wrap("read buffer", err)
	}
	return data, nil
}

// Destroy releases the backend buffer. Calling Destroy more than once is a
// no-op.
func (b *Buffer) Destroy() {
	if b == nil || b.destroyed {
		return
	}
	b.destroyed = true
	if b.id != gpucore.InvalidID {
		b.dev.backend.DestroyBuffer(b.id)
		b.dev.release(b.class, b.size)
		b.id = gpucore.InvalidID
	}
	b.dev.untrack(b)
}

// loseContext forgets the native handle. The memory went away with the
// context, so the charge is released here rather than in Destroy.
func (b *Buffer) loseContext() {
	if b == nil || b.id == gpucore.InvalidID {
		return
	}
	b.id = gpucore.InvalidID
	b.dev.release(b.class, b.size)
}

// discard destroys the native buffer of a live device and releases its
// charge. The buffer is recreated lazily on the next write.
func (b *Buffer) discard() {
	if b == nil || b.destroyed || b.id == gpucore.InvalidID {
		return
	}
	b.dev.backend.DestroyBuffer(b.id)
	b.dev.release(b.class, b.size)
	b.id = gpucore.InvalidID
}

// restore is a no-op: the buffer is recreated lazily on the next write.
func (b *Buffer) restore() error { return nil }
