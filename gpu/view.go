package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
)

// generationSource is implemented by resources that hand out views.
type generationSource interface {
	viewGeneration() uint64
}

// BufferView is a window onto host memory of a locked buffer or a mapped
// dynamic buffer. It records the generation of its owner when created; once
// the owner is unlocked, unmapped, destroyed or loses its context every
// accessor fails with ErrStaleView instead of touching released memory.
type BufferView struct {
	owner  generationSource
	gen    uint64
	offset uint64
	data   []byte
}

func newBufferView(owner generationSource, offset uint64, data []byte) *BufferView {
	return &BufferView{owner: owner, gen: owner.viewGeneration(), offset: offset, data: data}
}

// Valid reports whether the view may still be used.
func (v *BufferView) Valid() bool {
	return v != nil && v.owner != nil && v.owner.viewGeneration() == v.gen
}

// Offset returns the byte offset of the view inside its backing buffer.
func (v *BufferView) Offset() uint64 { return v.offset }

// Len returns the view size in bytes.
func (v *BufferView) Len() int { return len(v.data) }

// Bytes returns the underlying memory. The slice must not be retained past
// the owner's next unlock or unmap.
func (v *BufferView) Bytes() ([]byte, error) {
	if !v.Valid() {
		return nil, ErrStaleView
	}
	return v.data, nil
}

// WriteAt copies p into the view at off. It implements io.WriterAt.
func (v *BufferView) WriteAt(p []byte, off int64) (int, error) {
	if !v.Valid() {
		return 0, ErrStaleView
	}
	if off < 0 || off+int64(len(p)) > int64(len(v.data)) {
		return 0, fmt.Errorf("%w: write [%d, %d) into %d-byte view",
			ErrOutOfBoundsAllocation, off, off+int64(len(p)), len(v.data))
	}
	return copy(v.data[off:], p), nil
}

// PutFloat32s writes little-endian float32 values starting at byte offset off.
func (v *BufferView) PutFloat32s(off int, vals ...float32) error {
	if !v.Valid() {
		return ErrStaleView
	}
	if off < 0 || off+len(vals)*4 > len(v.data) {
		return fmt.Errorf("%w: %d floats at %d into %d-byte view",
			ErrOutOfBoundsAllocation, len(vals), off, len(v.data))
	}
	for i, f := range vals {
		binary.LittleEndian.PutUint32(v.data[off+i*4:], math.Float32bits(f))
	}
	return nil
}

// PutUint32s writes little-endian uint32 values starting at byte offset off.
func (v *BufferView) PutUint32s(off int, vals ...uint32) error {
	if !v.Valid() {
		return ErrStaleView
	}
	if off < 0 || off+len(vals)*4 > len(v.data) {
		return fmt.Errorf("%w: %d words at %d into %d-byte view",
			ErrOutOfBoundsAllocation, len(vals), off, len(v.data))
	}
	for i, u := range vals {
		binary.LittleEndian.PutUint32(v.data[off+i*4:], u)
	}
	return nil
}
