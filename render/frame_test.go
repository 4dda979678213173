// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/gpu"
	"github.com/gogpu/gfx/gpucore"
)

// stubPass fails in Execute with err.
type stubPass struct {
	lifecycle
	err        error
	degradable bool
	lost       int
	destroyed  int
}

func newStubPass(name string, err error, degradable bool) *stubPass {
	return &stubPass{lifecycle: lifecycle{name: name, log: gfx.Logger()}, err: err, degradable: degradable}
}

func (p *stubPass) Before() error    { return p.before() }
func (p *stubPass) Degradable() bool { return p.degradable }
func (p *stubPass) LoseContext()     { p.lost++ }
func (p *stubPass) Destroy()         { p.destroyed++; p.destroy() }

func (p *stubPass) Execute() error {
	if err := p.execute(); err != nil {
		return err
	}
	return p.fail(p.err)
}

func (p *stubPass) After() error { return p.after() }

func TestFrameRun(t *testing.T) {
	errBoom := errors.New("boom")
	lostErr := fmt.Errorf("draw: %w", gpu.ErrContextLost)

	tests := []struct {
		name          string
		passes        []*stubPass
		wantErr       error
		wantCompleted int
		wantDegraded  []string
	}{
		{
			name:          "all pass",
			passes:        []*stubPass{newStubPass("a", nil, false), newStubPass("b", nil, true)},
			wantCompleted: 2,
		},
		{
			name:          "shadow failure degrades",
			passes:        []*stubPass{newStubPass("shadow", errBoom, true), newStubPass("main", nil, false)},
			wantCompleted: 1,
			wantDegraded:  []string{"shadow"},
		},
		{
			name:          "other failure aborts",
			passes:        []*stubPass{newStubPass("main", errBoom, false), newStubPass("post", nil, false)},
			wantErr:       errBoom,
			wantCompleted: 0,
		},
		{
			name:          "context loss aborts even a shadow",
			passes:        []*stubPass{newStubPass("a", nil, false), newStubPass("shadow", lostErr, true), newStubPass("b", nil, false)},
			wantErr:       gpu.ErrContextLost,
			wantCompleted: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDevice(t)
			f := NewFrame(d)
			for _, p := range tt.passes {
				f.Add(p)
			}

			stats, err := f.Run()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if stats.Completed != tt.wantCompleted {
				t.Errorf("Completed = %d, want %d", stats.Completed, tt.wantCompleted)
			}
			if !slices.Equal(stats.Degraded, tt.wantDegraded) {
				t.Errorf("Degraded = %v, want %v", stats.Degraded, tt.wantDegraded)
			}
		})
	}
}

func TestFrameRunsRepeatedly(t *testing.T) {
	d, _ := newTestDevice(t)
	a := newStubPass("a", nil, false)
	f := NewFrame(d, a)

	for i := range 3 {
		if _, err := f.Run(); err != nil {
			t.Fatalf("Run() #%d error = %v", i, err)
		}
	}
	if a.State() != PassAfter {
		t.Errorf("State() = %s, want after", a.State())
	}
}

func TestFrameLostDevice(t *testing.T) {
	d, _ := newTestDevice(t)
	a := newStubPass("a", nil, false)
	f := NewFrame(d, a)

	d.LoseContext()
	f.LoseContext()
	if a.lost != 1 {
		t.Errorf("LoseContext forwarded %d times, want 1", a.lost)
	}
	if _, err := f.Run(); !errors.Is(err, gpu.ErrContextLost) {
		t.Errorf("Run() on lost device error = %v, want ErrContextLost", err)
	}
	if a.State() != PassConstructed {
		t.Errorf("State() = %s, want constructed", a.State())
	}

	f.Destroy()
	if a.destroyed != 1 || len(f.Passes()) != 0 {
		t.Errorf("Destroy() destroyed=%d passes=%d", a.destroyed, len(f.Passes()))
	}
}

func TestFrameWithShadowAndClear(t *testing.T) {
	d, b := newTestDevice(t)

	shadow, err := NewShadowPass(d, ShadowPassOptions{
		Light: &Light{Name: "bulb", Type: LightPoint, ShadowResolution: 8, VSM: true, VSMBlurRadius: 1},
		Face:  2,
	})
	if err != nil {
		t.Fatalf("NewShadowPass() error = %v", err)
	}
	target, _ := NewTextureTarget(TextureTargetOptions{
		Label:       "main",
		Width:       8,
		Height:      8,
		ColorFormat: SurfaceFormat(NullDeviceHandle{}),
		DepthFormat: gpucore.TextureFormatDepth24Plus,
		SampleCount: 4,
	})
	clear := NewClearPass(d, "main", target, gpucore.Color{R: 1, A: 1}, 1)

	f := NewFrame(d, shadow, clear)
	defer f.Destroy()

	stats, err := f.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Completed != 2 {
		t.Errorf("Completed = %d, want 2", stats.Completed)
	}
	if shadow.FilterRuns() != 1 {
		t.Errorf("FilterRuns() = %d, want 1", shadow.FilterRuns())
	}

	pixels, err := target.ColorTexture().Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if pixels[0] != 255 || pixels[1] != 0 || pixels[3] != 255 {
		t.Errorf("first pixel = %v, want opaque red", pixels[:4])
	}
	if b.Stats().Resolves < 1 {
		t.Error("MSAA color was not resolved")
	}
}
