package gpu

import (
	"fmt"

	"github.com/gogpu/gfx/gpucore"
)

// MemoryClass is the VRAM accounting bucket of a resource.
type MemoryClass uint8

// Memory classes.
const (
	MemoryVertex MemoryClass = iota
	MemoryIndex
	MemoryUniform
	MemoryStorage
	MemoryOther
	MemoryTexture

	memoryClassCount
)

// String returns the class name.
func (c MemoryClass) String() string {
	switch c {
	case MemoryVertex:
		return "vertex"
	case MemoryIndex:
		return "index"
	case MemoryUniform:
		return "uniform"
	case MemoryStorage:
		return "storage"
	case MemoryOther:
		return "other"
	case MemoryTexture:
		return "texture"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// classifyBuffer picks the accounting bucket for a buffer usage. A buffer
// with several binding flags is charged to the first of vertex, index,
// uniform, storage.
func classifyBuffer(u gpucore.BufferUsage) MemoryClass {
	switch {
	case u.Contains(gpucore.BufferUsageVertex):
		return MemoryVertex
	case u.Contains(gpucore.BufferUsageIndex):
		return MemoryIndex
	case u.Contains(gpucore.BufferUsageUniform):
		return MemoryUniform
	case u.Contains(gpucore.BufferUsageStorage):
		return MemoryStorage
	default:
		return MemoryOther
	}
}

// VRAMStats is a snapshot of a device's tracked GPU memory.
type VRAMStats struct {
	// Bytes is the number of live bytes per memory class.
	Bytes [memoryClassCount]uint64

	// Count is the number of live allocations per memory class.
	Count [memoryClassCount]int
}

// Of returns the live bytes of class c.
func (s VRAMStats) Of(c MemoryClass) uint64 {
	if c >= memoryClassCount {
		return 0
	}
	return s.Bytes[c]
}

// Total returns the live bytes over all classes.
func (s VRAMStats) Total() uint64 {
	var total uint64
	for _, b := range s.Bytes {
		total += b
	}
	return total
}

// String returns a human-readable summary.
func (s VRAMStats) String() string {
	return fmt.Sprintf("VRAM[%.1f KB total, vb %d/%d KB, ib %d/%d KB, ub %d/%d KB, tex %d/%d KB]",
		float64(s.Total())/1024,
		s.Count[MemoryVertex], s.Bytes[MemoryVertex]/1024,
		s.Count[MemoryIndex], s.Bytes[MemoryIndex]/1024,
		s.Count[MemoryUniform], s.Bytes[MemoryUniform]/1024,
		s.Count[MemoryTexture], s.Bytes[MemoryTexture]/1024)
}
