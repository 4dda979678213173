// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gfx/gpu"
	"github.com/gogpu/gfx/gpucore"
)

// countingFilter records Apply calls.
type countingFilter struct {
	applied   int
	destroyed int
	err       error
}

func (f *countingFilter) Apply(*gpu.Device, *gpu.Texture) error {
	f.applied++
	return f.err
}

func (f *countingFilter) Destroy() { f.destroyed++ }

// newTriangle returns an uploaded single-triangle caster.
func newTriangle(t *testing.T, d *gpu.Device, indexed bool) Caster {
	t.Helper()
	vb, err := d.CreateVertexBuffer("tri", gpucore.PositionLayout(), 3, gpucore.BufferUsageCopyDst)
	if err != nil {
		t.Fatalf("CreateVertexBuffer() error = %v", err)
	}
	view, _ := vb.Lock()
	if err := view.PutFloat32s(0, 0, 0, 0, 1, 0, 0, 0, 1, 0); err != nil {
		t.Fatalf("PutFloat32s() error = %v", err)
	}
	if err := vb.Unlock(); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	c := Caster{Vertices: vb, Model: mgl32.Translate3D(0, 0, -5)}
	if indexed {
		ib, err := d.CreateIndexBuffer("tri idx", gpucore.IndexFormatUint16, 3, gpucore.BufferUsageCopyDst)
		if err != nil {
			t.Fatalf("CreateIndexBuffer() error = %v", err)
		}
		if err := ib.WriteIndices(0, []uint32{0, 1, 2}); err != nil {
			t.Fatalf("WriteIndices() error = %v", err)
		}
		c.Indices = ib
	}
	return c
}

func runPhases(t *testing.T, p Pass) {
	t.Helper()
	if err := p.Before(); err != nil {
		t.Fatalf("Before() error = %v", err)
	}
	if err := p.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if err := p.After(); err != nil {
		t.Fatalf("After() error = %v", err)
	}
}

func TestShadowPassPointLightVSM(t *testing.T) {
	for _, vsm := range []bool{true, false} {
		name := "vsm"
		if !vsm {
			name = "no vsm"
		}
		t.Run(name, func(t *testing.T) {
			d, _ := newTestDevice(t)
			light := &Light{Name: "bulb", Type: LightPoint, Range: 25, ShadowResolution: 16, VSM: vsm}
			filter := &countingFilter{}

			p, err := NewShadowPass(d, ShadowPassOptions{Light: light, Face: 2, Filter: filter})
			if err != nil {
				t.Fatalf("NewShadowPass() error = %v", err)
			}
			defer p.Destroy()

			if err := p.Before(); err != nil {
				t.Fatalf("Before() error = %v", err)
			}
			if err := p.Execute(); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if filter.applied != 0 {
				t.Fatalf("filter ran %d times before After", filter.applied)
			}
			if err := p.After(); err != nil {
				t.Fatalf("After() error = %v", err)
			}

			want := 0
			if vsm {
				want = 1
			}
			if filter.applied != want {
				t.Errorf("filter applied %d times, want %d", filter.applied, want)
			}
			if p.FilterRuns() != want {
				t.Errorf("FilterRuns() = %d, want %d", p.FilterRuns(), want)
			}
			if p.State() != PassAfter {
				t.Errorf("State() = %s, want after", p.State())
			}
			if err := p.After(); !errors.Is(err, ErrPassState) {
				t.Errorf("second After() error = %v, want ErrPassState", err)
			}
			if filter.applied != want {
				t.Errorf("filter applied %d times after rejected After, want %d", filter.applied, want)
			}
		})
	}
}

func TestShadowPassFaceValidation(t *testing.T) {
	d, _ := newTestDevice(t)

	point := &Light{Type: LightPoint}
	if _, err := NewShadowPass(d, ShadowPassOptions{Light: point, Face: 6}); !errors.Is(err, ErrInvalidFace) {
		t.Errorf("NewShadowPass(point, face 6) error = %v, want ErrInvalidFace", err)
	}
	spot := &Light{Type: LightSpot, Direction: mgl32.Vec3{0, -1, 0}, OuterAngle: 0.6}
	if _, err := NewShadowPass(d, ShadowPassOptions{Light: spot, Face: 2}); !errors.Is(err, ErrInvalidFace) {
		t.Errorf("NewShadowPass(spot, face 2) error = %v, want ErrInvalidFace", err)
	}
	if _, err := NewShadowPass(d, ShadowPassOptions{}); !errors.Is(err, ErrInvalidLight) {
		t.Errorf("NewShadowPass(no light) error = %v, want ErrInvalidLight", err)
	}
}

func TestShadowPassDrawsCasters(t *testing.T) {
	d, b := newTestDevice(t)

	light := &Light{Name: "sun", Type: LightDirectional, Direction: mgl32.Vec3{0, -1, 0}, ShadowResolution: 8}
	casters := []Caster{newTriangle(t, d, false), newTriangle(t, d, true)}
	p, err := NewShadowPass(d, ShadowPassOptions{Light: light, Casters: casters})
	if err != nil {
		t.Fatalf("NewShadowPass() error = %v", err)
	}
	defer p.Destroy()

	runPhases(t, p)
	if p.Drawn() != 2 {
		t.Errorf("Drawn() = %d, want 2", p.Drawn())
	}
	stats := b.Stats()
	if stats.DrawCalls != 2 || stats.Vertices != 3 || stats.Indices != 3 {
		t.Errorf("Stats() = %+v, want 2 draws, 3 vertices, 3 indices", stats)
	}
	if p.Target().ColorTexture() != nil {
		t.Error("depth-only shadow has a color texture")
	}

	// The next frame reuses pipelines and the ring.
	runPhases(t, p)
	if b.Stats().Passes != 2 {
		t.Errorf("Passes = %d, want 2", b.Stats().Passes)
	}
}

func TestShadowPassSkipsUnuploadedCasters(t *testing.T) {
	d, _ := newTestDevice(t)

	empty, _ := d.CreateVertexBuffer("empty", gpucore.PositionLayout(), 3, gpucore.BufferUsageCopyDst)
	light := &Light{Type: LightPoint, ShadowResolution: 8}
	p, err := NewShadowPass(d, ShadowPassOptions{Light: light, Casters: []Caster{{Vertices: empty}, {}}})
	if err != nil {
		t.Fatalf("NewShadowPass() error = %v", err)
	}
	defer p.Destroy()

	runPhases(t, p)
	if p.Drawn() != 0 {
		t.Errorf("Drawn() = %d, want 0", p.Drawn())
	}
}

func TestShadowPassWithGaussianFilter(t *testing.T) {
	d, b := newTestDevice(t)

	light := &Light{Name: "lamp", Type: LightSpot, Direction: mgl32.Vec3{0, -1, 0}, OuterAngle: 0.7,
		ShadowResolution: 8, VSM: true, VSMBlurRadius: 2}
	p, err := NewShadowPass(d, ShadowPassOptions{Light: light, Casters: []Caster{newTriangle(t, d, true)}})
	if err != nil {
		t.Fatalf("NewShadowPass() error = %v", err)
	}

	runPhases(t, p)
	stats := b.Stats()
	if stats.Passes != 3 {
		t.Errorf("Passes = %d, want 3 (shadow + two blur passes)", stats.Passes)
	}
	if stats.TextureBinds != 2 {
		t.Errorf("TextureBinds = %d, want 2", stats.TextureBinds)
	}
	if p.Target().ColorTexture().Format() != gpucore.TextureFormatRG32Float {
		t.Errorf("moments format = %s, want RG32Float", p.Target().ColorTexture().Format())
	}

	texBefore := d.VRAM().Of(gpu.MemoryTexture)
	if texBefore == 0 {
		t.Fatal("no texture memory tracked")
	}
	p.Destroy()
	p.Destroy()
	if got := d.VRAM().Of(gpu.MemoryTexture); got != 0 {
		t.Errorf("texture bytes after Destroy = %d, want 0", got)
	}
	if got := d.VRAM().Of(gpu.MemoryUniform); got != 0 {
		t.Errorf("uniform bytes after Destroy = %d, want 0", got)
	}
}

func TestShadowPassFilterFailureMarksFailed(t *testing.T) {
	d, _ := newTestDevice(t)

	filter := &countingFilter{err: errors.New("blur exploded")}
	light := &Light{Type: LightPoint, ShadowResolution: 8, VSM: true}
	p, err := NewShadowPass(d, ShadowPassOptions{Light: light, Filter: filter})
	if err != nil {
		t.Fatalf("NewShadowPass() error = %v", err)
	}
	defer p.Destroy()

	_ = p.Before()
	_ = p.Execute()
	if err := p.After(); err == nil {
		t.Fatal("After() error = nil")
	}
	if p.State() != PassFailed {
		t.Errorf("State() = %s, want failed", p.State())
	}
	if filter.applied != 1 {
		t.Errorf("filter applied %d times, want 1", filter.applied)
	}
	// A provided filter is not owned by the pass.
	p.Destroy()
	if filter.destroyed != 0 {
		t.Error("pass destroyed a filter it does not own")
	}
}

func TestShadowPassContextLoss(t *testing.T) {
	d, b := newTestDevice(t)

	light := &Light{Type: LightPoint, ShadowResolution: 8}
	p, err := NewShadowPass(d, ShadowPassOptions{Light: light, Casters: []Caster{newTriangle(t, d, false)}})
	if err != nil {
		t.Fatalf("NewShadowPass() error = %v", err)
	}
	defer p.Destroy()
	runPhases(t, p)

	b.SimulateContextLoss()
	p.LoseContext()
	if err := p.Before(); !errors.Is(err, gpu.ErrContextLost) {
		t.Fatalf("Before() while lost error = %v, want ErrContextLost", err)
	}

	b.SimulateContextRestore()
	runPhases(t, p)
	if p.Drawn() != 1 {
		t.Errorf("Drawn() after restore = %d, want 1", p.Drawn())
	}
}
