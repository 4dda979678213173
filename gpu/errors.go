package gpu

import "errors"

// Device and resource errors.
var (
	// ErrUnsupportedUsage is returned when a buffer is written, read or
	// bound for an operation its usage flags forbid.
	ErrUnsupportedUsage = errors.New("gpu: unsupported buffer usage")

	// ErrUnsupportedIndexFormat is returned for index formats the backends
	// cannot draw with (8-bit indices).
	ErrUnsupportedIndexFormat = errors.New("gpu: unsupported index format")

	// ErrContextLost is returned while the device context is lost. All
	// native handles are invalid until RestoreContext succeeds.
	ErrContextLost = errors.New("gpu: context lost")

	// ErrOutOfBoundsAllocation is returned when a dynamic buffer view
	// request exceeds the backing buffer.
	ErrOutOfBoundsAllocation = errors.New("gpu: allocation out of bounds")

	// ErrDestroyed is returned when operating on a destroyed resource.
	ErrDestroyed = errors.New("gpu: resource has been destroyed")

	// ErrAlreadyLocked is returned by Lock on a buffer that is already locked.
	ErrAlreadyLocked = errors.New("gpu: buffer is already locked")

	// ErrNotLocked is returned by Unlock on a buffer that is not locked.
	ErrNotLocked = errors.New("gpu: buffer is not locked")

	// ErrStaleView is returned when a view is used after its buffer was
	// unlocked, unmapped or lost.
	ErrStaleView = errors.New("gpu: stale buffer view")

	// ErrNotMapped is returned when allocating from a dynamic buffer whose
	// memory is not mapped.
	ErrNotMapped = errors.New("gpu: buffer is not mapped")

	// ErrInvalidSize is returned for zero, misaligned or oversized sizes.
	ErrInvalidSize = errors.New("gpu: invalid size")

	// ErrDeviceClosed is returned when creating resources on a closed device.
	ErrDeviceClosed = errors.New("gpu: device closed")
)
