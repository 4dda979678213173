// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/gpu"
	"github.com/gogpu/gfx/gpucore"
)

// ClearPass clears a TextureTarget to a color and depth, then resolves it.
type ClearPass struct {
	lifecycle

	dev    *gpu.Device
	target *TextureTarget
	color  gpucore.Color
	depth  float32
}

// NewClearPass returns a pass clearing target.
func NewClearPass(d *gpu.Device, name string, target *TextureTarget, color gpucore.Color, depth float32) *ClearPass {
	return &ClearPass{
		lifecycle: lifecycle{name: name, log: gfx.ComponentLogger("render")},
		dev:       d,
		target:    target,
		color:     color,
		depth:     depth,
	}
}

// Target returns the cleared target.
func (p *ClearPass) Target() *TextureTarget { return p.target }

// Before initializes the target.
func (p *ClearPass) Before() error {
	if err := p.before(); err != nil {
		return err
	}
	return p.fail(p.target.Init(p.dev))
}

// Execute clears and resolves.
func (p *ClearPass) Execute() error {
	if err := p.execute(); err != nil {
		return err
	}
	enc, err := p.dev.BeginRenderPass(p.target.PassDescriptor(p.name, p.color, p.depth))
	if err != nil {
		return p.fail(fmt.Errorf("render: %s: %w", p.name, err))
	}
	if err := enc.End(); err != nil {
		return p.fail(fmt.Errorf("render: %s: %w", p.name, err))
	}
	return p.fail(p.target.Resolve(p.dev, true, true))
}

// After does nothing.
func (p *ClearPass) After() error { return p.after() }

// LoseContext forgets the target's native state.
func (p *ClearPass) LoseContext() { p.target.LoseContext() }

// Destroy releases the target.
func (p *ClearPass) Destroy() {
	if p.destroy() {
		p.target.Destroy(p.dev)
	}
}

var _ Pass = (*ClearPass)(nil)
