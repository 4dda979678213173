package gpu

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gogpu/gfx/gpucore"
)

func TestIndexBufferFormats(t *testing.T) {
	d, _ := newTestDevice(t)

	tests := []struct {
		format    gpucore.IndexFormat
		wantErr   error
		wantWidth int
	}{
		{gpucore.IndexFormatUint8, ErrUnsupportedIndexFormat, 0},
		{gpucore.IndexFormatUint16, nil, 2},
		{gpucore.IndexFormatUint32, nil, 4},
		{gpucore.IndexFormatUndefined, ErrUnsupportedIndexFormat, 0},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			before := d.VRAM()
			ib, err := d.CreateIndexBuffer("ib", tt.format, 6, gpucore.BufferUsageCopyDst)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CreateIndexBuffer() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				if d.VRAM() != before {
					t.Error("rejected format changed VRAM counters")
				}
				return
			}
			defer ib.Destroy()
			if ib.Format() != tt.format {
				t.Errorf("Format() = %s, want %s", ib.Format(), tt.format)
			}
			if ib.Width() != tt.wantWidth {
				t.Errorf("Width() = %d, want %d", ib.Width(), tt.wantWidth)
			}
			if ib.Count() != 6 {
				t.Errorf("Count() = %d, want 6", ib.Count())
			}
		})
	}
}

func TestNewIndexBufferRejectsUint8First(t *testing.T) {
	d, _ := newTestDevice(t)

	// Even a buffer without Index usage reports the format error.
	buf, _ := d.NewBuffer("vb", 12, gpucore.BufferUsageVertex)
	if _, err := NewIndexBuffer(buf, gpucore.IndexFormatUint8); !errors.Is(err, ErrUnsupportedIndexFormat) {
		t.Errorf("NewIndexBuffer(Uint8) error = %v, want ErrUnsupportedIndexFormat", err)
	}
	if _, err := NewIndexBuffer(buf, gpucore.IndexFormatUint16); !errors.Is(err, ErrUnsupportedUsage) {
		t.Errorf("NewIndexBuffer(vertex buffer) error = %v, want ErrUnsupportedUsage", err)
	}

	odd, _ := d.NewBuffer("odd", 6, gpucore.BufferUsageIndex)
	if _, err := NewIndexBuffer(odd, gpucore.IndexFormatUint32); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("NewIndexBuffer(6 bytes, Uint32) error = %v, want ErrInvalidSize", err)
	}
}

func TestIndexBufferWriteIndices(t *testing.T) {
	d, b := newTestDevice(t)

	ib16, err := d.CreateIndexBuffer("ib16", gpucore.IndexFormatUint16, 3, gpucore.BufferUsageCopyDst)
	if err != nil {
		t.Fatalf("CreateIndexBuffer() error = %v", err)
	}
	if err := ib16.WriteIndices(0, []uint32{0, 1, 2}); err != nil {
		t.Fatalf("WriteIndices() error = %v", err)
	}
	got, _ := b.ReadBuffer(ib16.Buffer().ID(), 0, 6)
	for i, want := range []uint16{0, 1, 2} {
		if v := binary.LittleEndian.Uint16(got[i*2:]); v != want {
			t.Errorf("index %d = %d, want %d", i, v, want)
		}
	}
	if err := ib16.WriteIndices(0, []uint32{70000}); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("WriteIndices(70000) into Uint16 error = %v, want ErrInvalidSize", err)
	}
	if err := ib16.WriteIndices(2, []uint32{1, 2}); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("WriteIndices() past count error = %v, want ErrInvalidSize", err)
	}

	ib32, _ := d.CreateIndexBuffer("ib32", gpucore.IndexFormatUint32, 2, gpucore.BufferUsageCopyDst)
	if err := ib32.WriteIndices(1, []uint32{70000}); err != nil {
		t.Fatalf("WriteIndices() error = %v", err)
	}
	got, _ = b.ReadBuffer(ib32.Buffer().ID(), 4, 4)
	if v := binary.LittleEndian.Uint32(got); v != 70000 {
		t.Errorf("index = %d, want 70000", v)
	}
	if d.VRAM().Of(MemoryIndex) != 8+8 {
		t.Errorf("index bytes = %d, want 16", d.VRAM().Of(MemoryIndex))
	}
}

func TestIndexBufferLockUnlock(t *testing.T) {
	d, _ := newTestDevice(t)

	ib, _ := d.CreateIndexBuffer("ib", gpucore.IndexFormatUint32, 3, gpucore.BufferUsageCopyDst)
	view, err := ib.Lock()
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if err := view.PutUint32s(0, 2, 1, 0); err != nil {
		t.Fatalf("PutUint32s() error = %v", err)
	}
	if err := view.PutUint32s(8, 1, 2); !errors.Is(err, ErrOutOfBoundsAllocation) {
		t.Errorf("PutUint32s() past end error = %v, want ErrOutOfBoundsAllocation", err)
	}
	if err := ib.Unlock(); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if !ib.Uploaded() {
		t.Error("Uploaded() = false after Unlock")
	}

	ib.LoseContext()
	if ib.Uploaded() {
		t.Error("Uploaded() = true after LoseContext")
	}
	ib.Destroy()
	ib.Destroy()
	ib.LoseContext()
}
