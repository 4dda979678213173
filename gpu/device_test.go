package gpu

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/gfx/backend"
	"github.com/gogpu/gfx/gpucore"
)

// newTestDevice returns a device on an initialized software backend.
func newTestDevice(t *testing.T) (*Device, *backend.SoftwareBackend) {
	t.Helper()
	b := backend.NewSoftwareBackend()
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	d := NewDevice(b, DeviceOptions{Label: t.Name()})
	t.Cleanup(d.Close)
	return d, b
}

func TestNewDevice(t *testing.T) {
	d, b := newTestDevice(t)

	if d.Backend() != b {
		t.Error("Backend() did not return the wrapped backend")
	}
	if d.Generation() != 1 {
		t.Errorf("Generation() = %d, want 1", d.Generation())
	}
	if d.Lost() {
		t.Error("Lost() = true on a new device")
	}
	if d.ID().String() == "" {
		t.Error("ID() is empty")
	}
	if got := d.VRAM().Total(); got != 0 {
		t.Errorf("VRAM().Total() = %d, want 0", got)
	}
}

func TestDevicesHaveIndependentCounters(t *testing.T) {
	d1, _ := newTestDevice(t)
	d2, _ := newTestDevice(t)

	buf, err := d1.NewBuffer("a", 64, gpucore.BufferUsageUniform|gpucore.BufferUsageCopyDst)
	if err != nil {
		t.Fatalf("NewBuffer() error = %v", err)
	}
	if err := buf.Realize(); err != nil {
		t.Fatalf("Realize() error = %v", err)
	}
	if d1.VRAM().Of(MemoryUniform) != 64 {
		t.Errorf("d1 uniform bytes = %d, want 64", d1.VRAM().Of(MemoryUniform))
	}
	if d2.VRAM().Total() != 0 {
		t.Errorf("d2 total bytes = %d, want 0", d2.VRAM().Total())
	}
	if d1.ID() == d2.ID() {
		t.Error("two devices share an ID")
	}
}

func TestOpenDevice(t *testing.T) {
	d, err := OpenDevice(backend.BackendSoftware, DeviceOptions{})
	if err != nil {
		t.Fatalf("OpenDevice() error = %v", err)
	}
	defer d.Close()
	if d.Backend().Name() != backend.BackendSoftware {
		t.Errorf("Backend().Name() = %q, want %q", d.Backend().Name(), backend.BackendSoftware)
	}

	if _, err := OpenDevice("nonexistent", DeviceOptions{}); !errors.Is(err, backend.ErrBackendNotAvailable) {
		t.Errorf("OpenDevice(nonexistent) error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestDeviceCloseDestroysResources(t *testing.T) {
	b := backend.NewSoftwareBackend()
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	d := NewDevice(b, DeviceOptions{})

	buf, _ := d.NewBuffer("a", 16, gpucore.BufferUsageVertex|gpucore.BufferUsageCopyDst)
	if err := buf.Write(0, []byte{1}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	d.Close()
	d.Close()

	if !buf.Destroyed() {
		t.Error("buffer not destroyed by Close")
	}
	if d.VRAM().Total() != 0 {
		t.Errorf("VRAM().Total() after Close = %d, want 0", d.VRAM().Total())
	}
	if _, err := d.NewBuffer("b", 16, gpucore.BufferUsageVertex); !errors.Is(err, ErrDeviceClosed) {
		t.Errorf("NewBuffer() after Close error = %v, want ErrDeviceClosed", err)
	}
}

func TestDeviceContextLossAndRestore(t *testing.T) {
	d, b := newTestDevice(t)

	vb, err := d.CreateVertexBuffer("tri", gpucore.PositionLayout(), 3, gpucore.BufferUsageCopyDst)
	if err != nil {
		t.Fatalf("CreateVertexBuffer() error = %v", err)
	}
	view, _ := vb.Lock()
	if err := view.PutFloat32s(0, 1, 2, 3); err != nil {
		t.Fatalf("PutFloat32s() error = %v", err)
	}
	if err := vb.Unlock(); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if d.VRAM().Of(MemoryVertex) != 36 {
		t.Fatalf("vertex bytes = %d, want 36", d.VRAM().Of(MemoryVertex))
	}

	b.SimulateContextLoss()

	if !d.Lost() {
		t.Fatal("Lost() = false after backend context loss")
	}
	if d.Generation() != 2 {
		t.Errorf("Generation() = %d, want 2", d.Generation())
	}
	if vb.Buffer().Realized() {
		t.Error("buffer still holds a native handle after loss")
	}
	if vb.Uploaded() {
		t.Error("Uploaded() = true after loss")
	}
	if d.VRAM().Total() != 0 {
		t.Errorf("VRAM().Total() after loss = %d, want 0", d.VRAM().Total())
	}
	if err := vb.Write(0, []byte{0, 0, 0, 0}); !errors.Is(err, ErrContextLost) {
		t.Errorf("Write() while lost error = %v, want ErrContextLost", err)
	}

	// The backend restore callback restores the device.
	b.SimulateContextRestore()

	if d.Lost() {
		t.Fatal("Lost() = true after restore")
	}
	if !vb.Uploaded() {
		t.Error("vertex buffer was not re-uploaded on restore")
	}
	if d.VRAM().Of(MemoryVertex) != 36 {
		t.Errorf("vertex bytes after restore = %d, want 36", d.VRAM().Of(MemoryVertex))
	}
	got, err := b.ReadBuffer(vb.Buffer().ID(), 0, 4)
	if err != nil {
		t.Fatalf("ReadBuffer() error = %v", err)
	}
	if got[3] != 0x3f { // float32(1) little-endian: 00 00 80 3f
		t.Errorf("restored content = %v, want float32(1)", got)
	}
}

func TestDeviceLoseContextIdempotent(t *testing.T) {
	d, _ := newTestDevice(t)

	d.LoseContext()
	d.LoseContext()
	if d.Generation() != 2 {
		t.Errorf("Generation() = %d, want 2 after two LoseContext calls", d.Generation())
	}
	if err := d.RestoreContext(); err != nil {
		t.Fatalf("RestoreContext() error = %v", err)
	}
	if err := d.RestoreContext(); err != nil {
		t.Errorf("second RestoreContext() error = %v", err)
	}
}

// silentBackend hides the software backend's loss notifications so the
// device only learns about loss from returned errors.
type silentBackend struct {
	backend.GraphicsBackend
}

func TestDeviceBackendLostErrorMarksDevice(t *testing.T) {
	sw := backend.NewSoftwareBackend()
	if err := sw.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	d := NewDevice(silentBackend{sw}, DeviceOptions{})
	defer d.Close()

	buf, _ := d.NewBuffer("a", 16, gpucore.BufferUsageVertex|gpucore.BufferUsageCopyDst)
	if err := buf.Realize(); err != nil {
		t.Fatalf("Realize() error = %v", err)
	}

	sw.SimulateContextLoss()
	if d.Lost() {
		t.Fatal("device observed loss without a notifier")
	}

	err := buf.Write(0, []byte{1})
	if !errors.Is(err, ErrContextLost) {
		t.Fatalf("Write() error = %v, want ErrContextLost", err)
	}
	if !errors.Is(err, backend.ErrDeviceLost) {
		t.Errorf("Write() error = %v, want wrapped backend.ErrDeviceLost", err)
	}
	if !d.Lost() {
		t.Error("Lost() = false after backend reported device loss")
	}
	if buf.Realized() {
		t.Error("buffer kept its handle after loss")
	}

	if err := d.RestoreContext(); err != nil {
		t.Fatalf("RestoreContext() error = %v", err)
	}
	if err := buf.Write(0, []byte{1}); err != nil {
		t.Errorf("Write() after restore error = %v", err)
	}
}

func TestVRAMStatsString(t *testing.T) {
	var s VRAMStats
	s.Bytes[MemoryVertex] = 2048
	s.Count[MemoryVertex] = 1
	got := s.String()
	if !strings.Contains(got, "2.0 KB total") || !strings.Contains(got, "vb 1/2 KB") {
		t.Errorf("String() = %q", got)
	}
}

func TestClassifyBuffer(t *testing.T) {
	tests := []struct {
		usage gpucore.BufferUsage
		want  MemoryClass
	}{
		{gpucore.BufferUsageVertex | gpucore.BufferUsageCopyDst, MemoryVertex},
		{gpucore.BufferUsageIndex, MemoryIndex},
		{gpucore.BufferUsageUniform | gpucore.BufferUsageCopyDst, MemoryUniform},
		{gpucore.BufferUsageStorage, MemoryStorage},
		{gpucore.BufferUsageMapRead | gpucore.BufferUsageCopyDst, MemoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.usage.String(), func(t *testing.T) {
			if got := classifyBuffer(tt.usage); got != tt.want {
				t.Errorf("classifyBuffer() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct{ v, align, want uint64 }{
		{0, 256, 0},
		{1, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{7, 0, 7},
		{7, 4, 8},
	}
	for _, tt := range tests {
		if got := alignUp(tt.v, tt.align); got != tt.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", tt.v, tt.align, got, tt.want)
		}
	}
}
