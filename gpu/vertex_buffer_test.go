package gpu

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gfx/backend"
	"github.com/gogpu/gfx/gpucore"
)

func TestVertexBufferLockUnlock(t *testing.T) {
	d, b := newTestDevice(t)

	vb, err := d.CreateVertexBuffer("quad", gpucore.PositionLayout(), 4, gpucore.BufferUsageCopyDst)
	if err != nil {
		t.Fatalf("CreateVertexBuffer() error = %v", err)
	}
	if vb.Count() != 4 {
		t.Errorf("Count() = %d, want 4", vb.Count())
	}

	view, err := vb.Lock()
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if view.Len() != 48 {
		t.Errorf("view.Len() = %d, want 48", view.Len())
	}
	if _, err := vb.Lock(); !errors.Is(err, ErrAlreadyLocked) {
		t.Errorf("second Lock() error = %v, want ErrAlreadyLocked", err)
	}
	if _, err := view.WriteAt([]byte{0xAA}, 47); err != nil {
		t.Fatalf("WriteAt() error = %v", err)
	}

	if err := vb.Unlock(); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if view.Valid() {
		t.Error("view still valid after Unlock")
	}
	if _, err := view.WriteAt([]byte{1}, 0); !errors.Is(err, ErrStaleView) {
		t.Errorf("WriteAt() on stale view error = %v, want ErrStaleView", err)
	}
	if err := vb.Unlock(); !errors.Is(err, ErrNotLocked) {
		t.Errorf("second Unlock() error = %v, want ErrNotLocked", err)
	}

	got, err := b.ReadBuffer(vb.Buffer().ID(), 47, 1)
	if err != nil {
		t.Fatalf("ReadBuffer() error = %v", err)
	}
	if got[0] != 0xAA {
		t.Errorf("flushed byte = %#x, want 0xaa", got[0])
	}
}

func TestVertexBufferWriteUsage(t *testing.T) {
	d, _ := newTestDevice(t)

	vertexOnly, err := d.CreateVertexBuffer("ro", gpucore.PositionLayout(), 1, 0)
	if err != nil {
		t.Fatalf("CreateVertexBuffer(vertex only) error = %v", err)
	}
	if err := vertexOnly.Write(0, make([]byte, 12)); !errors.Is(err, ErrUnsupportedUsage) {
		t.Errorf("Write() to vertex-only buffer error = %v, want ErrUnsupportedUsage", err)
	}

	mapWrite, err := d.CreateVertexBuffer("mw", gpucore.PositionLayout(), 1, gpucore.BufferUsageMapWrite)
	if err != nil {
		t.Fatalf("CreateVertexBuffer(vertex|map-write) error = %v", err)
	}
	if err := mapWrite.Write(0, make([]byte, 12)); err != nil {
		t.Errorf("Write() to vertex|map-write buffer error = %v", err)
	}
}

func TestVertexBufferUnlockReleasesLockOnError(t *testing.T) {
	d, _ := newTestDevice(t)

	vb, _ := d.CreateVertexBuffer("ro", gpucore.PositionLayout(), 1, 0)
	if _, err := vb.Lock(); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if err := vb.Unlock(); !errors.Is(err, ErrUnsupportedUsage) {
		t.Errorf("Unlock() error = %v, want ErrUnsupportedUsage", err)
	}
	if vb.Locked() {
		t.Error("Locked() = true after failed Unlock")
	}
}

func TestNewVertexBufferValidation(t *testing.T) {
	d, _ := newTestDevice(t)

	idx, _ := d.NewBuffer("idx", 12, gpucore.BufferUsageIndex)
	if _, err := NewVertexBuffer(idx, gpucore.PositionLayout()); !errors.Is(err, ErrUnsupportedUsage) {
		t.Errorf("NewVertexBuffer(index buffer) error = %v, want ErrUnsupportedUsage", err)
	}

	odd, _ := d.NewBuffer("odd", 13, gpucore.BufferUsageVertex)
	if _, err := NewVertexBuffer(odd, gpucore.PositionLayout()); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("NewVertexBuffer(13 bytes) error = %v, want ErrInvalidSize", err)
	}

	vb, _ := d.NewBuffer("vb", 12, gpucore.BufferUsageVertex)
	if _, err := NewVertexBuffer(vb, gpucore.VertexLayout{}); !errors.Is(err, gpucore.ErrInvalidLayout) {
		t.Errorf("NewVertexBuffer(empty layout) error = %v, want ErrInvalidLayout", err)
	}
	if _, err := NewVertexBuffer(nil, gpucore.PositionLayout()); err == nil {
		t.Error("NewVertexBuffer(nil) error = nil")
	}
}

func TestVertexBufferLoseContextNeverPanics(t *testing.T) {
	d, _ := newTestDevice(t)

	var nilVB *VertexBuffer
	nilVB.LoseContext()
	var nilIB *IndexBuffer
	nilIB.LoseContext()

	vb, _ := d.CreateVertexBuffer("v", gpucore.PositionLayout(), 2, gpucore.BufferUsageCopyDst)
	vb.LoseContext() // never written
	view, _ := vb.Lock()
	vb.LoseContext() // while locked
	if view.Valid() {
		t.Error("view still valid after LoseContext")
	}
	if vb.Locked() {
		t.Error("Locked() = true after LoseContext")
	}
	if err := vb.Write(0, make([]byte, 12)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	vb.LoseContext() // after upload
	vb.LoseContext() // twice
	vb.Destroy()
	vb.LoseContext() // after destroy
	vb.Destroy()

	if d.VRAM().Total() != 0 {
		t.Errorf("VRAM().Total() = %d, want 0", d.VRAM().Total())
	}
}

func TestVertexBufferLoseContextOnLiveDevice(t *testing.T) {
	d, b := newTestDevice(t)

	vb, _ := d.CreateVertexBuffer("v", gpucore.PositionLayout(), 4, gpucore.BufferUsageCopyDst|gpucore.BufferUsageCopySrc)
	content := make([]byte, 48)
	for i := range content {
		content[i] = byte(i + 1)
	}
	if err := vb.Write(0, content); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	vb.LoseContext()
	if b.LiveBuffers() != 0 {
		t.Errorf("LiveBuffers() = %d after LoseContext, want 0", b.LiveBuffers())
	}
	if got := d.VRAM().Of(MemoryVertex); got != 0 {
		t.Errorf("vertex bytes = %d after LoseContext, want 0", got)
	}
	if err := d.RestoreContext(); err != nil {
		t.Fatalf("RestoreContext() error = %v", err)
	}

	if err := vb.Write(0, []byte{0xAA}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !vb.Uploaded() {
		t.Error("Uploaded() = false after Write")
	}
	if b.LiveBuffers() != 1 {
		t.Errorf("LiveBuffers() = %d, want 1", b.LiveBuffers())
	}
	if got := d.VRAM().Of(MemoryVertex); got != 48 {
		t.Errorf("vertex bytes = %d, want 48", got)
	}
	got, err := vb.Buffer().Read(0, 48)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	want := append([]byte{0xAA}, content[1:]...)
	if !bytes.Equal(got, want) {
		t.Errorf("content after re-upload = %x, want %x", got, want)
	}
}

func TestVertexBufferUnlockWhileLostUploadsOnRestore(t *testing.T) {
	sw := backend.NewSoftwareBackend()
	if err := sw.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	d := NewDevice(silentBackend{sw}, DeviceOptions{})
	defer d.Close()

	vb, _ := d.CreateVertexBuffer("v", gpucore.PositionLayout(), 1, gpucore.BufferUsageCopyDst|gpucore.BufferUsageCopySrc)
	view, err := vb.Lock()
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if err := view.PutUint32s(0, 7, 8, 9); err != nil {
		t.Fatalf("PutUint32s() error = %v", err)
	}

	sw.SimulateContextLoss()
	if err := vb.Unlock(); !errors.Is(err, ErrContextLost) {
		t.Fatalf("Unlock() error = %v, want ErrContextLost", err)
	}
	if vb.Locked() {
		t.Error("Locked() = true after failed Unlock")
	}

	if err := d.RestoreContext(); err != nil {
		t.Fatalf("RestoreContext() error = %v", err)
	}
	if !vb.Uploaded() {
		t.Fatal("locked content not uploaded by RestoreContext")
	}
	got, err := vb.Buffer().Read(0, 12)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, []byte{7, 0, 0, 0, 8, 0, 0, 0, 9, 0, 0, 0}) {
		t.Errorf("content = %x", got)
	}
}
