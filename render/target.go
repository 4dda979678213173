// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/gpu"
	"github.com/gogpu/gfx/gpucore"
)

// RenderTarget is a set of attachments a pass renders into.
//
// Every method may be called any number of times and in any order, except
// that Init must succeed before Resolve. LoseContext drops cached native
// state; the next Init rebuilds it.
type RenderTarget interface {
	// Init creates the attachments on d. Initializing an initialized
	// target is a no-op.
	Init(d *gpu.Device) error

	// Resolve copies multisampled attachments into their single-sampled
	// counterparts. Depth is only resolved where the backend supports it.
	Resolve(d *gpu.Device, color, depth bool) error

	// Destroy releases the attachments.
	Destroy(d *gpu.Device)

	// LoseContext forgets native state after a context loss.
	LoseContext()
}

// NullRenderTarget is a RenderTarget with no attachments. Every method is
// a no-op.
type NullRenderTarget struct{}

// Init does nothing.
func (NullRenderTarget) Init(*gpu.Device) error { return nil }

// Resolve does nothing.
func (NullRenderTarget) Resolve(*gpu.Device, bool, bool) error { return nil }

// Destroy does nothing.
func (NullRenderTarget) Destroy(*gpu.Device) {}

// LoseContext does nothing.
func (NullRenderTarget) LoseContext() {}

// TextureTargetOptions describes a TextureTarget.
type TextureTargetOptions struct {
	// Label prefixes the texture labels.
	Label string

	// Width and Height are the attachment size in pixels.
	Width  uint32
	Height uint32

	// ColorFormat is the color attachment format, or Undefined for a
	// depth-only target.
	ColorFormat gpucore.TextureFormat

	// DepthFormat is the depth attachment format, or Undefined for none.
	DepthFormat gpucore.TextureFormat

	// SampleCount is the MSAA sample count. Zero means 1. It is clamped
	// to the backend maximum.
	SampleCount uint32

	// Sampled makes the single-sampled attachments bindable as textures.
	Sampled bool
}

// TextureTarget renders into device textures: a color and a depth
// attachment, each with a single-sampled resolve texture when multisampled.
type TextureTarget struct {
	opts    TextureTargetOptions
	samples uint32

	dev          *gpu.Device
	color        *gpu.Texture
	colorResolve *gpu.Texture
	depth        *gpu.Texture
	depthResolve *gpu.Texture

	ready       bool
	warnedDepth bool
	log         *slog.Logger
}

// NewTextureTarget validates opts. No textures are created until Init.
func NewTextureTarget(opts TextureTargetOptions) (*TextureTarget, error) {
	switch {
	case opts.Width == 0 || opts.Height == 0:
		return nil, fmt.Errorf("render: target %q is %dx%d", opts.Label, opts.Width, opts.Height)
	case opts.ColorFormat == gpucore.TextureFormatUndefined && opts.DepthFormat == gpucore.TextureFormatUndefined:
		return nil, fmt.Errorf("render: target %q has no attachments", opts.Label)
	case opts.ColorFormat.IsDepth():
		return nil, fmt.Errorf("render: target %q color format %s is a depth format", opts.Label, opts.ColorFormat)
	case opts.DepthFormat != gpucore.TextureFormatUndefined && !opts.DepthFormat.IsDepth():
		return nil, fmt.Errorf("render: target %q depth format %s is not a depth format", opts.Label, opts.DepthFormat)
	}
	samples := opts.SampleCount
	if samples == 0 {
		samples = 1
	}
	return &TextureTarget{opts: opts, samples: samples, log: gfx.ComponentLogger("render")}, nil
}

// Init creates the attachments on d.
func (t *TextureTarget) Init(d *gpu.Device) error {
	if t.ready {
		if d != t.dev {
			return ErrDeviceMismatch
		}
		return nil
	}
	if d.Lost() {
		return fmt.Errorf("render: init target %q: %w", t.opts.Label, gpu.ErrContextLost)
	}
	if t.dev != nil && t.dev != d {
		t.release()
	}
	t.dev = d

	if err := t.createTextures(d); err != nil {
		t.release()
		return err
	}
	t.ready = true
	t.log.Debug("render: target initialized", "target", t.opts.Label, "samples", t.samples)
	return nil
}

func (t *TextureTarget) createTextures(d *gpu.Device) error {
	caps := d.Capabilities()
	if caps.MaxSampleCount > 0 && t.samples > caps.MaxSampleCount {
		t.log.Warn("render: sample count clamped", "target", t.opts.Label,
			"requested", t.samples, "max", caps.MaxSampleCount)
		t.samples = caps.MaxSampleCount
	}

	bind := gpucore.TextureUsage(0)
	if t.opts.Sampled {
		bind = gpucore.TextureUsageTextureBinding
	}
	newTex := func(existing **gpu.Texture, suffix string, format gpucore.TextureFormat, samples uint32, usage gpucore.TextureUsage) error {
		if *existing != nil {
			return nil
		}
		tex, err := d.CreateTexture(gpucore.TextureDescriptor{
			Label:       t.opts.Label + " " + suffix,
			Width:       t.opts.Width,
			Height:      t.opts.Height,
			SampleCount: samples,
			Format:      format,
			Usage:       usage,
		})
		if err != nil {
			return fmt.Errorf("render: target %q %s: %w", t.opts.Label, suffix, err)
		}
		*existing = tex
		return nil
	}

	msaa := t.samples > 1
	if f := t.opts.ColorFormat; f != gpucore.TextureFormatUndefined {
		usage := gpucore.TextureUsageRenderAttachment | gpucore.TextureUsageCopySrc
		if !msaa {
			usage |= bind
		}
		if err := newTex(&t.color, "color", f, t.samples, usage); err != nil {
			return err
		}
		if msaa {
			if err := newTex(&t.colorResolve, "color resolve", f, 1, gpucore.TextureUsageRenderAttachment|gpucore.TextureUsageCopySrc|bind); err != nil {
				return err
			}
		}
	}
	if f := t.opts.DepthFormat; f != gpucore.TextureFormatUndefined {
		usage := gpucore.TextureUsageRenderAttachment
		if !msaa {
			usage |= bind
		}
		if err := newTex(&t.depth, "depth", f, t.samples, usage); err != nil {
			return err
		}
		if msaa && caps.DepthResolve {
			if err := newTex(&t.depthResolve, "depth resolve", f, 1, gpucore.TextureUsageRenderAttachment|bind); err != nil {
				return err
			}
		}
	}
	return nil
}

// Resolve resolves the multisampled attachments. Resolving a
// single-sampled target is a no-op.
func (t *TextureTarget) Resolve(d *gpu.Device, color, depth bool) error {
	if !t.ready {
		return ErrNotInitialized
	}
	if d != t.dev {
		return ErrDeviceMismatch
	}
	if t.samples == 1 {
		return nil
	}
	if color && t.colorResolve != nil {
		if err := t.color.ResolveInto(t.colorResolve); err != nil {
			return fmt.Errorf("render: resolve %q color: %w", t.opts.Label, err)
		}
	}
	if depth && t.depth != nil {
		if t.depthResolve == nil {
			if !t.warnedDepth {
				t.warnedDepth = true
				t.log.Warn("render: depth resolve unsupported by backend, skipped",
					"target", t.opts.Label, "backend", d.Backend().Name())
			}
			return nil
		}
		if err := t.depth.ResolveInto(t.depthResolve); err != nil {
			return fmt.Errorf("render: resolve %q depth: %w", t.opts.Label, err)
		}
	}
	return nil
}

// Destroy releases every attachment. The target can be initialized again.
func (t *TextureTarget) Destroy(*gpu.Device) {
	t.release()
	t.dev = nil
}

func (t *TextureTarget) release() {
	for _, tex := range []**gpu.Texture{&t.color, &t.colorResolve, &t.depth, &t.depthResolve} {
		(*tex).Destroy()
		*tex = nil
	}
	t.ready = false
}

// LoseContext marks the target uninitialized. The textures themselves are
// restored by their device; the next Init picks them up.
func (t *TextureTarget) LoseContext() {
	if t == nil {
		return
	}
	t.ready = false
}

// Ready reports whether the target is initialized.
func (t *TextureTarget) Ready() bool { return t.ready }

// Width returns the attachment width.
func (t *TextureTarget) Width() uint32 { return t.opts.Width }

// Height returns the attachment height.
func (t *TextureTarget) Height() uint32 { return t.opts.Height }

// SampleCount returns the effective sample count.
func (t *TextureTarget) SampleCount() uint32 { return t.samples }

// ColorFormat returns the color attachment format.
func (t *TextureTarget) ColorFormat() gpucore.TextureFormat { return t.opts.ColorFormat }

// DepthFormat returns the depth attachment format.
func (t *TextureTarget) DepthFormat() gpucore.TextureFormat { return t.opts.DepthFormat }

// ColorTexture returns the single-sampled color texture: the resolve
// texture when multisampled. It is nil before Init or without color.
func (t *TextureTarget) ColorTexture() *gpu.Texture {
	if t.colorResolve != nil {
		return t.colorResolve
	}
	return t.color
}

// DepthTexture returns the single-sampled depth texture, or the
// multisampled one when the backend cannot resolve depth.
func (t *TextureTarget) DepthTexture() *gpu.Texture {
	if t.depthResolve != nil {
		return t.depthResolve
	}
	return t.depth
}

// PassDescriptor returns a render pass that clears and stores the
// target's attachments.
func (t *TextureTarget) PassDescriptor(label string, clear gpucore.Color, clearDepth float32) *gpucore.RenderPassDescriptor {
	desc := &gpucore.RenderPassDescriptor{Label: label}
	if t.color != nil {
		desc.ColorAttachments = []gpucore.ColorAttachment{{
			Texture: t.color.ID(),
			Load:    gpucore.LoadOpClear,
			Store:   true,
			Clear:   clear,
		}}
	}
	if t.depth != nil {
		desc.DepthAttachment = &gpucore.DepthAttachment{
			Texture:    t.depth.ID(),
			Load:       gpucore.LoadOpClear,
			Store:      true,
			ClearDepth: clearDepth,
		}
	}
	return desc
}

var (
	_ RenderTarget = NullRenderTarget{}
	_ RenderTarget = (*TextureTarget)(nil)
)
