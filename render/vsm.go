// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"

	"github.com/gogpu/gfx/gpu"
	"github.com/gogpu/gfx/gpucore"
	"github.com/gogpu/gfx/shaderchunk"
)

// VSMFilter post-processes a variance shadow map in place.
type VSMFilter interface {
	// Apply filters moments, an RG32Float texture holding depth and
	// depth squared.
	Apply(d *gpu.Device, moments *gpu.Texture) error

	// Destroy releases the filter's resources.
	Destroy()
}

// MaxVSMBlurRadius bounds the Gaussian kernel radius.
const MaxVSMBlurRadius = 16

// blurUniformSize is one vec4<f32>.
const blurUniformSize = 16

// GaussianVSMOptions configures a GaussianVSMFilter.
type GaussianVSMOptions struct {
	// Radius is the kernel radius in texels (DefaultVSMBlurRadius if zero).
	Radius int

	// Sigma is the Gaussian deviation in texels (Radius/2 if zero).
	Sigma float32

	// Chunks supplies the shader chunks (DefaultChunks if nil).
	Chunks *shaderchunk.Registry

	// Ring supplies the per-pass uniforms. The filter creates its own
	// when nil.
	Ring *gpu.UniformRing
}

// GaussianVSMFilter blurs the moments with two separable Gaussian passes
// through a scratch texture of the same size.
type GaussianVSMFilter struct {
	dev      *gpu.Device
	radius   int
	sigma    float32
	chunks   *shaderchunk.Registry
	ring     *gpu.UniformRing
	ownsRing bool

	pipeline *gpu.Pipeline
	scratch  *gpu.Texture
	applied  int
}

// NewGaussianVSMFilter creates a filter on d. Pipelines are built on first
// use.
func NewGaussianVSMFilter(d *gpu.Device, opts GaussianVSMOptions) (*GaussianVSMFilter, error) {
	radius := opts.Radius
	if radius == 0 {
		radius = DefaultVSMBlurRadius
	}
	if radius < 1 || radius > MaxVSMBlurRadius {
		return nil, fmt.Errorf("render: VSM blur radius %d outside [1, %d]", radius, MaxVSMBlurRadius)
	}
	sigma := opts.Sigma
	if sigma <= 0 {
		sigma = max(float32(radius)/2, 0.5)
	}
	chunks := opts.Chunks
	if chunks == nil {
		chunks = DefaultChunks()
	}

	f := &GaussianVSMFilter{dev: d, radius: radius, sigma: sigma, chunks: chunks, ring: opts.Ring}
	if f.ring == nil {
		ring, err := d.NewUniformRing("vsm blur uniforms", 4*d.Capabilities().MinUniformOffsetAlignment)
		if err != nil {
			return nil, err
		}
		f.ring, f.ownsRing = ring, true
	}
	return f, nil
}

// Radius returns the kernel radius.
func (f *GaussianVSMFilter) Radius() int { return f.radius }

// Applied returns how many times Apply completed.
func (f *GaussianVSMFilter) Applied() int { return f.applied }

// Apply blurs moments horizontally into the scratch texture and vertically
// back into moments.
func (f *GaussianVSMFilter) Apply(d *gpu.Device, moments *gpu.Texture) error {
	if f.ring == nil {
		return gpu.ErrDestroyed
	}
	if d != f.dev {
		return ErrDeviceMismatch
	}
	if moments == nil || moments.Format() != gpucore.TextureFormatRG32Float {
		return fmt.Errorf("render: VSM filter needs an RG32Float moments texture")
	}
	if err := f.ensureScratch(moments); err != nil {
		return err
	}
	pipeline, err := f.ensurePipeline()
	if err != nil {
		return err
	}

	horizontal, err := f.params(1, 0)
	if err != nil {
		return err
	}
	vertical, err := f.params(0, 1)
	if err != nil {
		return err
	}
	if err := f.ring.Flush(); err != nil {
		return fmt.Errorf("render: VSM uniforms: %w", err)
	}

	if err := f.blur(pipeline, "vsm blur h", moments, f.scratch, horizontal); err != nil {
		return err
	}
	if err := f.blur(pipeline, "vsm blur v", f.scratch, moments, vertical); err != nil {
		return err
	}
	f.applied++
	return nil
}

func (f *GaussianVSMFilter) params(dx, dy float32) (gpu.UniformAllocation, error) {
	u, err := f.ring.Alloc(blurUniformSize)
	if err != nil {
		return u, fmt.Errorf("render: VSM uniforms: %w", err)
	}
	return u, u.View.PutFloat32s(0, dx, dy, f.sigma, 0)
}

func (f *GaussianVSMFilter) blur(pipeline gpucore.PipelineID, label string, src, dst *gpu.Texture, u gpu.UniformAllocation) error {
	enc, err := f.dev.BeginRenderPass(&gpucore.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []gpucore.ColorAttachment{{
			Texture: dst.ID(),
			Load:    gpucore.LoadOpClear,
			Store:   true,
		}},
	})
	if err != nil {
		return fmt.Errorf("render: %s: %w", label, err)
	}
	enc.SetPipeline(pipeline)
	enc.SetUniformBuffer(u.Buffer, u.Offset, u.Size)
	enc.SetTexture(0, src.ID())
	enc.Draw(3, 1, 0, 0)
	if err := enc.End(); err != nil {
		return fmt.Errorf("render: %s: %w", label, err)
	}
	return nil
}

func (f *GaussianVSMFilter) ensureScratch(moments *gpu.Texture) error {
	if f.scratch != nil && f.scratch.Width() == moments.Width() && f.scratch.Height() == moments.Height() {
		return nil
	}
	f.scratch.Destroy()
	f.scratch = nil
	tex, err := f.dev.CreateTexture(gpucore.TextureDescriptor{
		Label:  "vsm blur scratch",
		Width:  moments.Width(),
		Height: moments.Height(),
		Format: gpucore.TextureFormatRG32Float,
		Usage:  gpucore.TextureUsageRenderAttachment | gpucore.TextureUsageTextureBinding,
	})
	if err != nil {
		return fmt.Errorf("render: VSM scratch: %w", err)
	}
	f.scratch = tex
	return nil
}

func (f *GaussianVSMFilter) ensurePipeline() (gpucore.PipelineID, error) {
	if f.pipeline == nil {
		src, err := f.chunks.Compose(blurProgram(f.dev.Capabilities().ShaderLanguage, f.radius))
		if err != nil {
			return gpucore.InvalidID, fmt.Errorf("render: VSM blur shader: %w", err)
		}
		p, err := f.dev.NewPipeline("vsm blur", src, gpucore.RenderPipelineDescriptor{
			VertexEntry:   "vs_main",
			FragmentEntry: "fs_main",
			ColorFormats:  []gpucore.TextureFormat{gpucore.TextureFormatRG32Float},
			UniformSize:   blurUniformSize,
			Textures:      1,
		})
		if err != nil {
			return gpucore.InvalidID, err
		}
		f.pipeline = p
	}
	return f.pipeline.ID()
}

// Destroy releases the scratch texture, pipeline and owned ring.
func (f *GaussianVSMFilter) Destroy() {
	f.scratch.Destroy()
	f.scratch = nil
	f.pipeline.Destroy()
	f.pipeline = nil
	if f.ownsRing && f.ring != nil {
		f.ring.Destroy()
	}
	f.ring = nil
}

var _ VSMFilter = (*GaussianVSMFilter)(nil)
