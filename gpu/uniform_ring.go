package gpu

import (
	"fmt"

	"github.com/gogpu/gfx/gpucore"
)

// DefaultUniformChunkSize is the default size of one uniform ring chunk.
const DefaultUniformChunkSize = 64 * 1024

// UniformAllocation is one transient uniform block.
type UniformAllocation struct {
	// View is the host memory to fill. It goes stale at the next Flush.
	View *BufferView

	// Buffer is the GPU-resident buffer to bind.
	Buffer gpucore.BufferID

	// Offset and Size locate the block inside Buffer.
	Offset uint64
	Size   uint64
}

// ringChunk pairs a GPU-resident uniform buffer with the staging buffer
// that feeds it.
type ringChunk struct {
	gpu     *DynamicBuffer
	staging *DynamicBuffer
	cursor  uint64
}

// UniformRing serves per-draw uniform blocks from a set of chunks. It owns
// the write cursor, alignment and wrap-around that DynamicBuffer leaves to
// its caller: when the active chunk is full a fresh (or pooled) chunk is
// taken. Flush copies everything written so far to the GPU buffers, unmaps
// and remaps the staging buffers, and returns the chunks to the pool.
//
// A ring has a single writer: the frame submission goroutine.
type UniformRing struct {
	dev       *Device
	label     string
	chunkSize uint64
	align     uint64

	active *ringChunk
	used   []*ringChunk
	free   []*ringChunk
	all    []*ringChunk
}

// NewUniformRing creates a ring whose chunks are chunkSize bytes. Zero
// selects DefaultUniformChunkSize. The size is rounded up to the backend's
// uniform offset alignment.
func (d *Device) NewUniformRing(label string, chunkSize uint64) (*UniformRing, error) {
	if chunkSize == 0 {
		chunkSize = DefaultUniformChunkSize
	}
	align := d.caps.MinUniformOffsetAlignment
	if align == 0 {
		align = 256
	}
	chunkSize = alignUp(chunkSize, align)
	if chunkSize > d.caps.MaxBufferSize {
		return nil, fmt.Errorf("%w: uniform chunk size %d exceeds max buffer size %d", ErrInvalidSize, chunkSize, d.caps.MaxBufferSize)
	}
	return &UniformRing{dev: d, label: label, chunkSize: chunkSize, align: align}, nil
}

// ChunkSize returns the size of one chunk.
func (r *UniformRing) ChunkSize() uint64 { return r.chunkSize }

// Alignment returns the offset alignment of allocations.
func (r *UniformRing) Alignment() uint64 { return r.align }

// Chunks returns the number of chunks created so far.
func (r *UniformRing) Chunks() int { return len(r.all) }

// Alloc reserves size bytes at the next aligned offset.
func (r *UniformRing) Alloc(size uint64) (UniformAllocation, error) {
	if size == 0 {
		return UniformAllocation{}, fmt.Errorf("%w: zero-sized uniform allocation", ErrInvalidSize)
	}
	if size > r.chunkSize {
		return UniformAllocation{}, fmt.Errorf("%w: uniform block of %d bytes exceeds chunk size %d",
			ErrOutOfBoundsAllocation, size, r.chunkSize)
	}

	if r.active != nil && alignUp(r.active.cursor, r.align)+size > r.chunkSize {
		r.used = append(r.used, r.active)
		r.active = nil
	}
	if r.active == nil {
		c, err := r.takeChunk()
		if err != nil {
			return UniformAllocation{}, err
		}
		r.active = c
	}

	offset := alignUp(r.active.cursor, r.align)
	view, err := r.active.staging.Alloc(offset, size)
	if err != nil {
		return UniformAllocation{}, err
	}
	r.active.cursor = offset + size
	return UniformAllocation{View: view, Buffer: r.active.gpu.ID(), Offset: offset, Size: size}, nil
}

func (r *UniformRing) takeChunk() (*ringChunk, error) {
	if n := len(r.free); n > 0 {
		c := r.free[n-1]
		r.free = r.free[:n-1]
		return c, nil
	}

	name := fmt.Sprintf("%s chunk %d", r.label, len(r.all))
	gpuBuf, err := r.dev.NewDynamicBuffer(DynamicBufferOptions{Label: name, Size: r.chunkSize})
	if err != nil {
		return nil, err
	}
	staging, err := r.dev.NewDynamicBuffer(DynamicBufferOptions{Label: name + " staging", Size: r.chunkSize, Staging: true})
	if err != nil {
		gpuBuf.Destroy()
		return nil, err
	}
	c := &ringChunk{gpu: gpuBuf, staging: staging}
	r.all = append(r.all, c)
	r.dev.log.Debug("gpu: uniform ring grew", "ring", r.label, "chunks", len(r.all))
	return c, nil
}

// Flush uploads every allocation made since the previous Flush and recycles
// the chunks. Views returned by earlier Alloc calls become stale.
func (r *UniformRing) Flush() error {
	pending := r.used
	if r.active != nil {
		pending = append(pending, r.active)
	}
	r.used, r.active = nil, nil

	var firstErr error
	for _, c := range pending {
		err := r.flushChunk(c)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if err != nil && !r.recoverChunk(c) {
			r.drop(c)
			continue
		}
		c.cursor = 0
		r.free = append(r.free, c)
	}
	return firstErr
}

// recoverChunk remaps the staging buffer of a chunk whose flush failed part way.
// A chunk that is still unmapped would fail every later Alloc. While the
// device is lost the chunk stays pooled; restore maps it again.
func (r *UniformRing) recoverChunk(c *ringChunk) bool {
	if c.staging.Mapped() || r.dev.Lost() {
		return true
	}
	if err := c.staging.MarkAvailable(); err != nil {
		r.dev.log.Warn("gpu: dropping uniform chunk", "ring", r.label, "err", err)
		return false
	}
	return true
}

func (r *UniformRing) drop(c *ringChunk) {
	c.gpu.Destroy()
	c.staging.Destroy()
	for i, x := range r.all {
		if x == c {
			r.all = append(r.all[:i], r.all[i+1:]...)
			break
		}
	}
}

func (r *UniformRing) flushChunk(c *ringChunk) error {
	if c.cursor == 0 {
		return nil
	}
	if err := c.staging.Unmap(); err != nil {
		return err
	}
	n := alignUp(c.cursor, 4)
	if n > r.chunkSize {
		n = r.chunkSize
	}
	if err := r.dev.copyBuffer(c.staging.ID(), 0, c.gpu.ID(), 0, n); err != nil {
		return err
	}
	if err := c.gpu.MarkAvailable(); err != nil {
		return err
	}
	return c.staging.MarkAvailable()
}

// Destroy releases every chunk.
func (r *UniformRing) Destroy() {
	for _, c := range r.all {
		c.gpu.Destroy()
		c.staging.Destroy()
	}
	r.all, r.free, r.used, r.active = nil, nil, nil, nil
}
