package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gfx/gpucore"
)

// IndexBuffer is a GPU buffer with an immutable index format. Only 16-bit
// and 32-bit indices are supported.
type IndexBuffer struct {
	host   hostStorage
	format gpucore.IndexFormat
	count  uint32
}

// checkIndexFormat fails fast on formats the backends cannot draw with.
func checkIndexFormat(f gpucore.IndexFormat) error {
	switch f {
	case gpucore.IndexFormatUint16, gpucore.IndexFormatUint32:
		return nil
	default:
		return fmt.Errorf("%w: %s (only Uint16 and Uint32 are supported)", ErrUnsupportedIndexFormat, f)
	}
}

// NewIndexBuffer wraps buf with an index format. The format is validated
// before anything else: 8-bit indices fail with ErrUnsupportedIndexFormat.
func NewIndexBuffer(buf *Buffer, format gpucore.IndexFormat) (*IndexBuffer, error) {
	if err := checkIndexFormat(format); err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, fmt.Errorf("%w: nil buffer", ErrInvalidSize)
	}
	if !buf.Usage().Contains(gpucore.BufferUsageIndex) {
		return nil, fmt.Errorf("%w: index buffer %q has usage %s", ErrUnsupportedUsage, buf.Label(), buf.Usage())
	}
	width := uint64(format.Size())
	if buf.Size()%width != 0 {
		return nil, fmt.Errorf("%w: buffer size %d is not a multiple of index width %d", ErrInvalidSize, buf.Size(), width)
	}

	ib := &IndexBuffer{
		host:   newHostStorage(buf),
		format: format,
		count:  uint32(buf.Size() / width), //nolint:gosec // bounded by MaxBufferSize
	}
	if err := buf.Device().track(ib); err != nil {
		return nil, err
	}
	return ib, nil
}

// CreateIndexBuffer declares a buffer for count indices of format and wraps
// it. extra is OR-ed into the Index usage.
func (d *Device) CreateIndexBuffer(label string, format gpucore.IndexFormat, count uint32, extra gpucore.BufferUsage) (*IndexBuffer, error) {
	if err := checkIndexFormat(format); err != nil {
		return nil, err
	}
	size := alignUp(uint64(count)*uint64(format.Size()), 4)
	buf, err := d.NewBuffer(label, size, gpucore.BufferUsageIndex|extra)
	if err != nil {
		return nil, err
	}
	ib, err := NewIndexBuffer(buf, format)
	if err != nil {
		buf.Destroy()
		return nil, err
	}
	ib.count = count
	return ib, nil
}

// Buffer returns the underlying GPU buffer.
func (ib *IndexBuffer) Buffer() *Buffer { return ib.host.buf }

// Format returns the declared index format.
func (ib *IndexBuffer) Format() gpucore.IndexFormat { return ib.format }

// Width returns the size of one index in bytes.
func (ib *IndexBuffer) Width() int { return ib.format.Size() }

// Count returns the number of indices the buffer holds.
func (ib *IndexBuffer) Count() uint32 { return ib.count }

// Locked reports whether a Lock is outstanding.
func (ib *IndexBuffer) Locked() bool { return ib.host.locked }

// Uploaded reports whether the GPU holds the current content.
func (ib *IndexBuffer) Uploaded() bool { return ib.host.uploaded }

// Lock returns a writable view of the whole buffer.
func (ib *IndexBuffer) Lock() (*BufferView, error) { return ib.host.lock() }

// Unlock flushes the locked content to the GPU and invalidates the view.
func (ib *IndexBuffer) Unlock() error { return ib.host.unlock() }

// WriteIndices encodes indices in the buffer's format and uploads them
// starting at index first. Values that do not fit a 16-bit format fail
// with ErrInvalidSize.
func (ib *IndexBuffer) WriteIndices(first uint32, indices []uint32) error {
	if uint64(first)+uint64(len(indices)) > uint64(ib.count) {
		return fmt.Errorf("%w: indices [%d, %d) exceed count %d", ErrInvalidSize, first, int(first)+len(indices), ib.count)
	}
	width := ib.format.Size()
	data := make([]byte, len(indices)*width)
	for i, idx := range indices {
		if ib.format == gpucore.IndexFormatUint16 {
			if idx > math.MaxUint16 {
				return fmt.Errorf("%w: index %d does not fit Uint16", ErrInvalidSize, idx)
			}
			binary.LittleEndian.PutUint16(data[i*2:], uint16(idx))
			continue
		}
		binary.LittleEndian.PutUint32(data[i*4:], idx)
	}
	return ib.host.write(uint64(first)*uint64(width), data)
}

// LoseContext resets cached backend state. It never panics, including on a
// nil or destroyed buffer.
func (ib *IndexBuffer) LoseContext() {
	if ib == nil {
		return
	}
	ib.loseContext()
}

// Destroy releases the GPU buffer. Calling Destroy more than once is a
// no-op.
func (ib *IndexBuffer) Destroy() {
	if ib == nil || ib.host.buf == nil || ib.host.buf.Destroyed() {
		return
	}
	ib.host.destroy()
	ib.host.buf.Device().untrack(ib)
}

func (ib *IndexBuffer) loseContext() {
	if ib.host.buf == nil {
		return
	}
	ib.host.loseContext()
}

func (ib *IndexBuffer) restore() error { return ib.host.restore() }
