package gpu

import (
	"fmt"

	"github.com/gogpu/gfx/gpucore"
)

// VertexBuffer is a GPU buffer with an immutable vertex layout.
//
// Lock returns a view of a host copy; Unlock flushes the copy to the GPU and
// invalidates the view. The host copy survives context loss so the content
// is uploaded again by Device.RestoreContext.
type VertexBuffer struct {
	host   hostStorage
	layout gpucore.VertexLayout
	count  uint32
}

// NewVertexBuffer wraps buf with a vertex layout. The buffer must carry the
// Vertex usage and hold at least one vertex.
func NewVertexBuffer(buf *Buffer, layout gpucore.VertexLayout) (*VertexBuffer, error) {
	if buf == nil {
		return nil, fmt.Errorf("%w: nil buffer", ErrInvalidSize)
	}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("gpu: vertex buffer %q: %w", buf.Label(), err)
	}
	if !buf.Usage().Contains(gpucore.BufferUsageVertex) {
		return nil, fmt.Errorf("%w: vertex buffer %q has usage %s", ErrUnsupportedUsage, buf.Label(), buf.Usage())
	}
	if buf.Size() < layout.Stride || buf.Size()%layout.Stride != 0 {
		return nil, fmt.Errorf("%w: buffer size %d is not a multiple of stride %d", ErrInvalidSize, buf.Size(), layout.Stride)
	}

	vb := &VertexBuffer{
		host:   newHostStorage(buf),
		layout: layout,
		count:  uint32(buf.Size() / layout.Stride), //nolint:gosec // bounded by MaxBufferSize
	}
	if err := buf.Device().track(vb); err != nil {
		return nil, err
	}
	return vb, nil
}

// CreateVertexBuffer declares a buffer for count vertices of layout and
// wraps it. extra is OR-ed into the Vertex usage (typically CopyDst or
// MapWrite so the buffer can be written).
func (d *Device) CreateVertexBuffer(label string, layout gpucore.VertexLayout, count uint32, extra gpucore.BufferUsage) (*VertexBuffer, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("gpu: vertex buffer %q: %w", label, err)
	}
	buf, err := d.NewBuffer(label, uint64(count)*layout.Stride, gpucore.BufferUsageVertex|extra)
	if err != nil {
		return nil, err
	}
	vb, err := NewVertexBuffer(buf, layout)
	if err != nil {
		buf.Destroy()
		return nil, err
	}
	return vb, nil
}

// Buffer returns the underlying GPU buffer.
func (v *VertexBuffer) Buffer() *Buffer { return v.host.buf }

// Layout returns the vertex layout.
func (v *VertexBuffer) Layout() gpucore.VertexLayout { return v.layout }

// Count returns the number of vertices the buffer holds.
func (v *VertexBuffer) Count() uint32 { return v.count }

// Locked reports whether a Lock is outstanding.
func (v *VertexBuffer) Locked() bool { return v.host.locked }

// Uploaded reports whether the GPU holds the current content.
func (v *VertexBuffer) Uploaded() bool { return v.host.uploaded }

// Lock returns a writable view of the whole buffer.
func (v *VertexBuffer) Lock() (*BufferView, error) { return v.host.lock() }

// Unlock flushes the locked content to the GPU and invalidates the view.
func (v *VertexBuffer) Unlock() error { return v.host.unlock() }

// Write uploads data at offset without locking.
func (v *VertexBuffer) Write(offset uint64, data []byte) error {
	return v.host.write(offset, data)
}

// LoseContext resets cached backend state. It never panics, including on a
// nil or destroyed buffer.
func (v *VertexBuffer) LoseContext() {
	if v == nil {
		return
	}
	v.loseContext()
}

// Destroy releases the GPU buffer. Calling Destroy more than once is a
// no-op.
func (v *VertexBuffer) Destroy() {
	if v == nil || v.host.buf == nil || v.host.buf.Destroyed() {
		return
	}
	v.host.destroy()
	v.host.buf.Device().untrack(v)
}

func (v *VertexBuffer) loseContext() {
	if v.host.buf == nil {
		return
	}
	v.host.loseContext()
}

func (v *VertexBuffer) restore() error { return v.host.restore() }
