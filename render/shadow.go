// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/gpu"
	"github.com/gogpu/gfx/gpucore"
	"github.com/gogpu/gfx/shaderchunk"
)

// shadowUniformSize is two mat4x4<f32> and one vec4<f32>.
const shadowUniformSize = 2*64 + 16

// momentsClear is the VSM clear value: maximum depth, no occluder.
var momentsClear = gpucore.Color{R: 1, G: 1}

// Caster is a mesh rendered into shadow maps. The first vertex attribute
// must be a float32x3 position at offset 0.
type Caster struct {
	Vertices *gpu.VertexBuffer

	// Indices is optional; without it the vertices are drawn in order.
	Indices *gpu.IndexBuffer

	// Model is the object-to-world transform.
	Model mgl32.Mat4
}

// ShadowPassOptions configures a ShadowPass.
type ShadowPassOptions struct {
	// Light is the shadow-casting light. Required.
	Light *Light

	// Face selects the cube face (0..5) of a point light. Other lights
	// have face 0 only.
	Face int

	// Casters are drawn every Execute. SetCasters replaces them.
	Casters []Caster

	// Ring supplies per-caster uniforms. The pass creates its own when nil.
	Ring *gpu.UniformRing

	// Filter is applied in After when the light uses VSM. A
	// GaussianVSMFilter is created when nil.
	Filter VSMFilter

	// Chunks supplies the shader chunks (DefaultChunks if nil).
	Chunks *shaderchunk.Registry
}

// ShadowPass renders one face of a light's shadow map. With VSM the face
// holds depth moments and the filter runs once in After; otherwise it is
// a plain depth map and After does nothing.
//
// A failing shadow pass is Degradable: the frame continues without this
// shadow.
type ShadowPass struct {
	lifecycle

	dev     *gpu.Device
	light   *Light
	face    int
	camera  ShadowCamera
	target  *TextureTarget
	casters []Caster
	chunks  *shaderchunk.Registry

	ring       *gpu.UniformRing
	ownsRing   bool
	filter     VSMFilter
	ownsFilter bool

	pipelines  map[uint64]*gpu.Pipeline // by vertex stride
	filterRuns int
	drawn      int
}

// NewShadowPass validates the light and face and computes the face camera.
// Textures and pipelines are created in Before.
func NewShadowPass(d *gpu.Device, opts ShadowPassOptions) (*ShadowPass, error) {
	if opts.Light == nil {
		return nil, fmt.Errorf("%w: shadow pass without a light", ErrInvalidLight)
	}
	l := opts.Light
	cam, err := l.FaceCamera(opts.Face)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("shadow %s face %d", l.Name, opts.Face)
	targetOpts := TextureTargetOptions{
		Label:       name,
		Width:       l.Resolution(),
		Height:      l.Resolution(),
		DepthFormat: gpucore.TextureFormatDepth32Float,
		Sampled:     true,
	}
	if l.VSM {
		targetOpts.ColorFormat = gpucore.TextureFormatRG32Float
	}
	target, err := NewTextureTarget(targetOpts)
	if err != nil {
		return nil, err
	}

	p := &ShadowPass{
		lifecycle: lifecycle{name: name, log: gfx.ComponentLogger("render")},
		dev:       d,
		light:     l,
		face:      opts.Face,
		camera:    cam,
		target:    target,
		casters:   opts.Casters,
		chunks:    opts.Chunks,
		ring:      opts.Ring,
		filter:    opts.Filter,
		pipelines: make(map[uint64]*gpu.Pipeline),
	}
	if p.chunks == nil {
		p.chunks = DefaultChunks()
	}
	if p.ring == nil {
		ring, err := d.NewUniformRing(name+" uniforms", 0)
		if err != nil {
			return nil, err
		}
		p.ring, p.ownsRing = ring, true
	}
	if l.VSM && p.filter == nil {
		f, err := NewGaussianVSMFilter(d, GaussianVSMOptions{Radius: l.BlurRadius(), Chunks: p.chunks, Ring: p.ring})
		if err != nil {
			p.Destroy()
			return nil, err
		}
		p.filter, p.ownsFilter = f, true
	}
	return p, nil
}

// Light returns the light.
func (p *ShadowPass) Light() *Light { return p.light }

// Face returns the face index.
func (p *ShadowPass) Face() int { return p.face }

// Camera returns the face camera.
func (p *ShadowPass) Camera() ShadowCamera { return p.camera }

// Target returns the shadow map target.
func (p *ShadowPass) Target() *TextureTarget { return p.target }

// VSM reports whether the pass stores filtered moments.
func (p *ShadowPass) VSM() bool { return p.light.VSM }

// FilterRuns returns how many times the VSM filter ran.
func (p *ShadowPass) FilterRuns() int { return p.filterRuns }

// Drawn returns the casters drawn by the last Execute.
func (p *ShadowPass) Drawn() int { return p.drawn }

// SetCasters replaces the casters drawn from the next Execute on.
func (p *ShadowPass) SetCasters(c []Caster) { p.casters = c }

// Degradable reports that a failed shadow only degrades the frame.
func (p *ShadowPass) Degradable() bool { return true }

// Before initializes the target and pipelines.
func (p *ShadowPass) Before() error {
	if err := p.before(); err != nil {
		return err
	}
	if err := p.target.Init(p.dev); err != nil {
		return p.fail(err)
	}
	for _, c := range p.casters {
		if c.Vertices == nil {
			continue
		}
		if _, err := p.pipeline(c.Vertices.Layout().Stride); err != nil {
			return p.fail(err)
		}
	}
	return nil
}

// pipeline returns the shadow pipeline for a vertex stride.
func (p *ShadowPass) pipeline(stride uint64) (gpucore.PipelineID, error) {
	pl, ok := p.pipelines[stride]
	if !ok {
		src, err := p.chunks.Compose(shadowProgram(p.dev.Capabilities().ShaderLanguage, p.light.Type, p.light.VSM))
		if err != nil {
			return gpucore.InvalidID, fmt.Errorf("render: %s shader: %w", p.name, err)
		}
		desc := gpucore.RenderPipelineDescriptor{
			VertexEntry: "vs_main",
			VertexLayouts: []gpucore.VertexLayout{{
				Stride:     stride,
				Attributes: []gpucore.VertexAttribute{{Format: gpucore.VertexFormatFloat32x3}},
			}},
			DepthFormat: gpucore.TextureFormatDepth32Float,
			Cull:        gpucore.CullModeBack,
			UniformSize: shadowUniformSize,
		}
		if p.light.VSM {
			desc.FragmentEntry = "fs_main"
			desc.ColorFormats = []gpucore.TextureFormat{gpucore.TextureFormatRG32Float}
		}
		pl, err = p.dev.NewPipeline(fmt.Sprintf("%s stride %d", p.name, stride), src, desc)
		if err != nil {
			return gpucore.InvalidID, err
		}
		p.pipelines[stride] = pl
	}
	return pl.ID()
}

// Execute renders the casters into the face.
func (p *ShadowPass) Execute() error {
	if err := p.execute(); err != nil {
		return err
	}
	return p.fail(p.render())
}

type shadowDraw struct {
	caster   Caster
	pipeline gpucore.PipelineID
	uniforms gpu.UniformAllocation
}

func (p *ShadowPass) render() error {
	lightParams := []float32{p.light.Position.X(), p.light.Position.Y(), p.light.Position.Z(), p.camera.Far}

	draws := make([]shadowDraw, 0, len(p.casters))
	for i, c := range p.casters {
		if c.Vertices == nil || !c.Vertices.Uploaded() {
			p.log.Debug("render: caster not uploaded, skipped", "pass", p.name, "caster", i)
			continue
		}
		if c.Indices != nil && !c.Indices.Uploaded() {
			p.log.Debug("render: caster indices not uploaded, skipped", "pass", p.name, "caster", i)
			continue
		}
		pl, err := p.pipeline(c.Vertices.Layout().Stride)
		if err != nil {
			return err
		}
		u, err := p.ring.Alloc(shadowUniformSize)
		if err != nil {
			return fmt.Errorf("render: %s uniforms: %w", p.name, err)
		}
		if err := writeShadowUniforms(u.View, p.camera.ViewProjection, c.Model, lightParams); err != nil {
			return err
		}
		draws = append(draws, shadowDraw{caster: c, pipeline: pl, uniforms: u})
	}
	if err := p.ring.Flush(); err != nil {
		return fmt.Errorf("render: %s uniforms: %w", p.name, err)
	}

	enc, err := p.dev.BeginRenderPass(p.target.PassDescriptor(p.name, momentsClear, 1))
	if err != nil {
		return fmt.Errorf("render: %s: %w", p.name, err)
	}
	for _, dr := range draws {
		enc.SetPipeline(dr.pipeline)
		enc.SetUniformBuffer(dr.uniforms.Buffer, dr.uniforms.Offset, dr.uniforms.Size)
		enc.SetVertexBuffer(0, dr.caster.Vertices.Buffer().ID(), 0)
		if ib := dr.caster.Indices; ib != nil {
			enc.SetIndexBuffer(ib.Buffer().ID(), ib.Format(), 0)
			enc.DrawIndexed(ib.Count(), 1, 0, 0, 0)
		} else {
			enc.Draw(dr.caster.Vertices.Count(), 1, 0, 0)
		}
	}
	if err := enc.End(); err != nil {
		return fmt.Errorf("render: %s: %w", p.name, err)
	}
	p.drawn = len(draws)

	return p.target.Resolve(p.dev, true, true)
}

func writeShadowUniforms(v *gpu.BufferView, viewProj, model mgl32.Mat4, light []float32) error {
	if err := v.PutFloat32s(0, viewProj[:]...); err != nil {
		return err
	}
	if err := v.PutFloat32s(64, model[:]...); err != nil {
		return err
	}
	return v.PutFloat32s(128, light...)
}

// After runs the VSM filter exactly once when the light uses VSM.
func (p *ShadowPass) After() error {
	if err := p.after(); err != nil {
		return err
	}
	if !p.light.VSM || p.filter == nil {
		return nil
	}
	p.filterRuns++
	if err := p.filter.Apply(p.dev, p.target.ColorTexture()); err != nil {
		return p.fail(fmt.Errorf("render: %s filter: %w", p.name, err))
	}
	return nil
}

// LoseContext forgets the target's native state.
func (p *ShadowPass) LoseContext() {
	p.target.LoseContext()
}

// Destroy releases the target, pipelines and owned helpers.
func (p *ShadowPass) Destroy() {
	if !p.destroy() {
		return
	}
	p.target.Destroy(p.dev)
	for stride, pl := range p.pipelines {
		pl.Destroy()
		delete(p.pipelines, stride)
	}
	if p.ownsFilter {
		p.filter.Destroy()
	}
	if p.ownsRing {
		p.ring.Destroy()
	}
}

var (
	_ Pass       = (*ShadowPass)(nil)
	_ Degradable = (*ShadowPass)(nil)
)
