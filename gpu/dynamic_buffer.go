package gpu

import (
	"fmt"

	"github.com/gogpu/gfx/gpucore"
)

// DynamicBufferOptions configures a DynamicBuffer.
type DynamicBufferOptions struct {
	// Label is an optional debug label.
	Label string

	// Size is the backing buffer size in bytes.
	Size uint64

	// Staging creates a host-visible upload buffer (MapWrite|CopySrc) that
	// is mapped at creation. Otherwise the buffer is GPU resident
	// (Uniform|CopyDst) and never mapped.
	Staging bool

	// OnAvailable is invoked each time the buffer becomes available:
	// immediately on creation for staging buffers, on MarkAvailable
	// otherwise.
	OnAvailable func(*DynamicBuffer)
}

// DynamicBuffer is a fixed-size backing buffer serving transient uniform
// allocations. It is a thin facade over mapped memory: Alloc returns a view
// at a caller-supplied offset and does not track a cursor. UniformRing is the
// cursor-owning component built on top of it.
//
// Views are tagged with the mapping generation. Unmap, Destroy and context
// loss advance the generation, so a view held past the end of its frame
// fails with ErrStaleView instead of writing to released memory.
type DynamicBuffer struct {
	dev         *Device
	label       string
	size        uint64
	staging     bool
	usage       gpucore.BufferUsage
	onAvailable func(*DynamicBuffer)

	id        gpucore.BufferID
	mapped    []byte
	available bool
	gen       uint64
	destroyed bool
}

// NewDynamicBuffer creates the backing buffer and charges its full size to
// the uniform VRAM counter. A failed creation changes no counter.
func (d *Device) NewDynamicBuffer(opts DynamicBufferOptions) (*DynamicBuffer, error) {
	if opts.Size == 0 {
		return nil, fmt.Errorf("%w: zero-sized dynamic buffer %q", ErrInvalidSize, opts.Label)
	}
	usage := gpucore.BufferUsageUniform | gpucore.BufferUsageCopyDst
	if opts.Staging {
		usage = gpucore.BufferUsageMapWrite | gpucore.BufferUsageCopySrc
	}
	db := &DynamicBuffer{
		dev:         d,
		label:       opts.Label,
		size:        opts.Size,
		staging:     opts.Staging,
		usage:       usage,
		onAvailable: opts.OnAvailable,
		gen:         1,
	}
	if err := db.create(); err != nil {
		return nil, err
	}
	if err := d.track(db); err != nil {
		db.Destroy()
		return nil, err
	}
	if db.staging {
		db.notifyAvailable()
	}
	return db, nil
}

func (db *DynamicBuffer) create() error {
	if err := db.dev.check(); err != nil {
		return err
	}
	id, err := db.dev.backend.CreateBuffer(&gpucore.BufferDescriptor{
		Label:            db.label,
		Size:             db.size,
		Usage:            db.usage,
		MappedAtCreation: db.staging,
	})
	if err != nil {
		return db.dev.wrap(fmt.Sprintf("create dynamic buffer %q", db.label), err)
	}
	if db.staging {
		mapped, err := db.dev.backend.MappedRange(id)
		if err != nil {
			db.dev.backend.DestroyBuffer(id)
			return db.dev.wrap("mapped range", err)
		}
		db.mapped = mapped
		db.available = true
	}
	db.id = id
	db.dev.charge(MemoryUniform, db.size)
	return nil
}

func (db *DynamicBuffer) notifyAvailable() {
	if db.onAvailable != nil {
		db.onAvailable(db)
	}
}

func (db *DynamicBuffer) viewGeneration() uint64 { return db.gen }

// Label returns the debug label.
func (db *DynamicBuffer) Label() string { return db.label }

// Size returns the backing size in bytes.
func (db *DynamicBuffer) Size() uint64 { return db.size }

// Staging reports whether this is a host-visible upload buffer.
func (db *DynamicBuffer) Staging() bool { return db.staging }

// ID returns the backend buffer.
func (db *DynamicBuffer) ID() gpucore.BufferID { return db.id }

// Mapped reports whether host memory is currently mapped.
func (db *DynamicBuffer) Mapped() bool { return db.mapped != nil }

// Available reports whether the buffer has signaled availability since the
// last Unmap.
func (db *DynamicBuffer) Available() bool { return db.available }

// Generation returns the current mapping generation.
func (db *DynamicBuffer) Generation() uint64 { return db.gen }

// Alloc returns a view of size bytes at offset into the mapped memory. The
// caller owns the cursor; Alloc only validates the range.
func (db *DynamicBuffer) Alloc(offset, size uint64) (*BufferView, error) {
	switch {
	case db.destroyed:
		return nil, ErrDestroyed
	case db.dev.Lost():
		return nil, ErrContextLost
	case db.mapped == nil:
		return nil, fmt.Errorf("%w: dynamic buffer %q", ErrNotMapped, db.label)
	case size == 0:
		return nil, fmt.Errorf("%w: zero-sized allocation", ErrInvalidSize)
	case offset > db.size || size > db.size-offset:
		return nil, fmt.Errorf("%w: [%d, %d) exceeds dynamic buffer %q of %d bytes",
			ErrOutOfBoundsAllocation, offset, offset+size, db.label, db.size)
	}
	end := offset + size
	return newBufferView(db, offset, db.mapped[offset:end:end]), nil
}

// Unmap publishes the mapped memory to the GPU. All views handed out since
// the last mapping become stale.
func (db *DynamicBuffer) Unmap() error {
	if db.destroyed {
		return ErrDestroyed
	}
	if db.mapped == nil {
		return fmt.Errorf("%w: dynamic buffer %q", ErrNotMapped, db.label)
	}
	if err := db.dev.check(); err != nil {
		return err
	}
	db.gen++
	db.mapped = nil
	db.available = false
	return db.dev.wrap("unmap dynamic buffer", db.dev.backend.Unmap(db.id))
}

// MarkAvailable is the backend's availability signal. A staging buffer is
// mapped again; a GPU-resident buffer only records availability. In both
// cases OnAvailable runs.
func (db *DynamicBuffer) MarkAvailable() error {
	if db.destroyed {
		return ErrDestroyed
	}
	if err := db.dev.check(); err != nil {
		return err
	}
	if db.staging && db.mapped == nil {
		mapped, err := db.dev.backend.Remap(db.id)
		if err != nil {
			return db.dev.wrap("remap dynamic buffer", err)
		}
		db.mapped = mapped
	}
	db.available = true
	db.notifyAvailable()
	return nil
}

// Destroy releases the backing buffer and subtracts exactly its size from
// the uniform VRAM counter. Calling Destroy more than once is a no-op.
func (db *DynamicBuffer) Destroy() {
	if db == nil || db.destroyed {
		return
	}
	db.destroyed = true
	db.gen++
	db.mapped = nil
	db.available = false
	if db.id != gpucore.InvalidID {
		db.dev.backend.DestroyBuffer(db.id)
		db.dev.release(MemoryUniform, db.size)
		db.id = gpucore.InvalidID
	}
	db.dev.untrack(db)
}

func (db *DynamicBuffer) loseContext() {
	if db == nil || db.destroyed {
		return
	}
	db.gen++
	db.mapped = nil
	db.available = false
	if db.id != gpucore.InvalidID {
		db.id = gpucore.InvalidID
		db.dev.release(MemoryUniform, db.size)
	}
}

func (db *DynamicBuffer) restore() error {
	if db.destroyed || db.id != gpucore.InvalidID {
		return nil
	}
	if err := db.create(); err != nil {
		return err
	}
	if db.staging {
		db.notifyAvailable()
	}
	return nil
}
