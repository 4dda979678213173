// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"errors"
	"testing"

	"github.com/gogpu/gfx/backend"
	"github.com/gogpu/gfx/gpu"
	"github.com/gogpu/gfx/gpucore"
)

// newDeviceWithCaps returns a software device with modified capabilities.
func newDeviceWithCaps(t *testing.T, edit func(*backend.Capabilities)) (*gpu.Device, *backend.SoftwareBackend) {
	t.Helper()
	b := backend.NewSoftwareBackend()
	caps := b.Capabilities()
	edit(&caps)
	b.SetCapabilities(caps)
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	d := gpu.NewDevice(b, gpu.DeviceOptions{Label: t.Name()})
	t.Cleanup(d.Close)
	return d, b
}

func TestNullRenderTargetAnyOrder(t *testing.T) {
	d, _ := newTestDevice(t)
	var target RenderTarget = NullRenderTarget{}

	ops := []struct {
		name string
		call func() error
	}{
		{"Init", func() error { return target.Init(d) }},
		{"Resolve", func() error { return target.Resolve(d, true, true) }},
		{"Destroy", func() error { target.Destroy(d); return nil }},
		{"LoseContext", func() error { target.LoseContext(); return nil }},
	}

	// Every ordered pair, each op twice, including Resolve before Init
	// and calls with a nil device.
	for _, first := range ops {
		for _, second := range ops {
			t.Run(first.name+"/"+second.name, func(t *testing.T) {
				for range 2 {
					if err := first.call(); err != nil {
						t.Errorf("%s() error = %v", first.name, err)
					}
					if err := second.call(); err != nil {
						t.Errorf("%s() error = %v", second.name, err)
					}
				}
			})
		}
	}
	if err := target.Resolve(nil, false, true); err != nil {
		t.Errorf("Resolve(nil) error = %v", err)
	}
	target.Destroy(nil)
}

func TestNewTextureTargetValidation(t *testing.T) {
	tests := []struct {
		name string
		opts TextureTargetOptions
	}{
		{"zero size", TextureTargetOptions{ColorFormat: gpucore.TextureFormatRGBA8Unorm}},
		{"no attachments", TextureTargetOptions{Width: 4, Height: 4}},
		{"depth as color", TextureTargetOptions{Width: 4, Height: 4, ColorFormat: gpucore.TextureFormatDepth32Float}},
		{"color as depth", TextureTargetOptions{Width: 4, Height: 4, DepthFormat: gpucore.TextureFormatRGBA8Unorm}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTextureTarget(tt.opts); err == nil {
				t.Error("NewTextureTarget() error = nil")
			}
		})
	}
}

func TestTextureTargetLifecycle(t *testing.T) {
	d, b := newTestDevice(t)

	target, err := NewTextureTarget(TextureTargetOptions{
		Label:       "main",
		Width:       8,
		Height:      4,
		ColorFormat: gpucore.TextureFormatRGBA8Unorm,
		DepthFormat: gpucore.TextureFormatDepth24Plus,
	})
	if err != nil {
		t.Fatalf("NewTextureTarget() error = %v", err)
	}

	if err := target.Resolve(d, true, true); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Resolve() before Init error = %v, want ErrNotInitialized", err)
	}
	if err := target.Init(d); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := target.Init(d); err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	if b.LiveTextures() != 2 {
		t.Errorf("LiveTextures() = %d, want 2", b.LiveTextures())
	}
	wantBytes := uint64(8*4*4 + 8*4*4)
	if got := d.VRAM().Of(gpu.MemoryTexture); got != wantBytes {
		t.Errorf("texture bytes = %d, want %d", got, wantBytes)
	}
	if err := target.Resolve(d, true, true); err != nil {
		t.Errorf("Resolve() single-sampled error = %v", err)
	}

	target.LoseContext()
	if target.Ready() {
		t.Error("Ready() = true after LoseContext")
	}
	if err := target.Resolve(d, true, false); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Resolve() after LoseContext error = %v, want ErrNotInitialized", err)
	}
	if err := target.Init(d); err != nil {
		t.Fatalf("Init() after LoseContext error = %v", err)
	}
	if b.LiveTextures() != 2 {
		t.Errorf("LiveTextures() after re-Init = %d, want 2", b.LiveTextures())
	}

	target.Destroy(d)
	target.Destroy(d)
	if d.VRAM().Total() != 0 {
		t.Errorf("VRAM().Total() after Destroy = %d, want 0", d.VRAM().Total())
	}
	if b.LiveTextures() != 0 {
		t.Errorf("LiveTextures() after Destroy = %d, want 0", b.LiveTextures())
	}
	target.LoseContext()
	if err := target.Init(d); err != nil {
		t.Fatalf("Init() after Destroy error = %v", err)
	}
}

func TestTextureTargetMSAAResolve(t *testing.T) {
	for _, depthResolve := range []bool{true, false} {
		name := "depth resolve"
		if !depthResolve {
			name = "no depth resolve"
		}
		t.Run(name, func(t *testing.T) {
			d, b := newDeviceWithCaps(t, func(c *backend.Capabilities) { c.DepthResolve = depthResolve })

			target, _ := NewTextureTarget(TextureTargetOptions{
				Label:       "msaa",
				Width:       4,
				Height:      4,
				ColorFormat: gpucore.TextureFormatRGBA8Unorm,
				DepthFormat: gpucore.TextureFormatDepth32Float,
				SampleCount: 4,
				Sampled:     true,
			})
			if err := target.Init(d); err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			wantTextures := 3
			if depthResolve {
				wantTextures = 4
			}
			if b.LiveTextures() != wantTextures {
				t.Errorf("LiveTextures() = %d, want %d", b.LiveTextures(), wantTextures)
			}
			if got := target.ColorTexture().Descriptor().Samples(); got != 1 {
				t.Errorf("ColorTexture() samples = %d, want 1", got)
			}

			if err := target.Resolve(d, true, true); err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			wantResolves := 1
			if depthResolve {
				wantResolves = 2
			}
			if got := b.Stats().Resolves; got != wantResolves {
				t.Errorf("Resolves = %d, want %d", got, wantResolves)
			}
		})
	}
}

func TestTextureTargetSampleCountClamped(t *testing.T) {
	d, _ := newDeviceWithCaps(t, func(c *backend.Capabilities) { c.MaxSampleCount = 4 })

	target, _ := NewTextureTarget(TextureTargetOptions{
		Width: 2, Height: 2, ColorFormat: gpucore.TextureFormatRGBA8Unorm, SampleCount: 16,
	})
	if err := target.Init(d); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if target.SampleCount() != 4 {
		t.Errorf("SampleCount() = %d, want 4", target.SampleCount())
	}
}

func TestTextureTargetDeviceMismatch(t *testing.T) {
	d1, _ := newTestDevice(t)
	d2, _ := newTestDevice(t)

	target, _ := NewTextureTarget(TextureTargetOptions{Width: 2, Height: 2, DepthFormat: gpucore.TextureFormatDepth32Float})
	if err := target.Init(d1); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := target.Init(d2); !errors.Is(err, ErrDeviceMismatch) {
		t.Errorf("Init(other device) error = %v, want ErrDeviceMismatch", err)
	}
	if err := target.Resolve(d2, true, true); !errors.Is(err, ErrDeviceMismatch) {
		t.Errorf("Resolve(other device) error = %v, want ErrDeviceMismatch", err)
	}
}

func TestTextureTargetInitWhileLost(t *testing.T) {
	d, b := newTestDevice(t)

	target, _ := NewTextureTarget(TextureTargetOptions{Width: 2, Height: 2, ColorFormat: gpucore.TextureFormatRGBA8Unorm})
	if err := target.Init(d); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	b.SimulateContextLoss()
	target.LoseContext()
	if err := target.Init(d); !errors.Is(err, gpu.ErrContextLost) {
		t.Fatalf("Init() while lost error = %v, want ErrContextLost", err)
	}

	b.SimulateContextRestore()
	if err := target.Init(d); err != nil {
		t.Fatalf("Init() after restore error = %v", err)
	}
	if target.ColorTexture().ID() == gpucore.InvalidID {
		t.Error("color texture was not restored")
	}
}

func TestTextureTargetPassDescriptor(t *testing.T) {
	d, _ := newTestDevice(t)

	target, _ := NewTextureTarget(TextureTargetOptions{Width: 2, Height: 2, DepthFormat: gpucore.TextureFormatDepth32Float})
	if err := target.Init(d); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	desc := target.PassDescriptor("depth only", gpucore.Color{}, 1)
	if len(desc.ColorAttachments) != 0 {
		t.Errorf("ColorAttachments = %d, want 0", len(desc.ColorAttachments))
	}
	if desc.DepthAttachment == nil || desc.DepthAttachment.ClearDepth != 1 {
		t.Errorf("DepthAttachment = %+v, want clear depth 1", desc.DepthAttachment)
	}
}
