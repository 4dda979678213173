// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/gpu"
)

// FrameStats summarizes one Frame.Run.
type FrameStats struct {
	// Completed counts passes that ran all three phases.
	Completed int

	// Degraded lists the degradable passes that failed and were skipped.
	Degraded []string
}

// Frame runs an ordered list of passes on one device.
//
// A failing Degradable pass (a shadow) is logged and skipped; the frame
// renders without it. Any other failure aborts the frame, and context loss
// always does.
type Frame struct {
	dev    *gpu.Device
	passes []Pass
	log    *slog.Logger
}

// NewFrame returns a frame running passes in order.
func NewFrame(d *gpu.Device, passes ...Pass) *Frame {
	return &Frame{dev: d, passes: passes, log: gfx.ComponentLogger("render")}
}

// Add appends passes.
func (f *Frame) Add(passes ...Pass) { f.passes = append(f.passes, passes...) }

// Passes returns the passes in run order.
func (f *Frame) Passes() []Pass { return f.passes }

// Run executes every pass once.
func (f *Frame) Run() (FrameStats, error) {
	var stats FrameStats
	if f.dev.Lost() {
		return stats, fmt.Errorf("render: frame: %w", gpu.ErrContextLost)
	}
	for _, p := range f.passes {
		err := runPass(p)
		if err == nil {
			stats.Completed++
			continue
		}
		if errors.Is(err, gpu.ErrContextLost) {
			return stats, fmt.Errorf("render: frame aborted at pass %q: %w", p.Name(), err)
		}
		if dp, ok := p.(Degradable); ok && dp.Degradable() {
			f.log.Warn("render: pass failed, continuing without it", "pass", p.Name(), "err", err)
			stats.Degraded = append(stats.Degraded, p.Name())
			continue
		}
		return stats, fmt.Errorf("render: frame aborted at pass %q: %w", p.Name(), err)
	}
	return stats, nil
}

func runPass(p Pass) error {
	if err := p.Before(); err != nil {
		return err
	}
	if err := p.Execute(); err != nil {
		return err
	}
	return p.After()
}

// LoseContext forwards a context loss to passes that cache native state.
func (f *Frame) LoseContext() {
	for _, p := range f.passes {
		if l, ok := p.(interface{ LoseContext() }); ok {
			l.LoseContext()
		}
	}
}

// Destroy destroys every pass.
func (f *Frame) Destroy() {
	for _, p := range f.passes {
		p.Destroy()
	}
	f.passes = nil
}
