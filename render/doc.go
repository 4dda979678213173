// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render builds frames out of passes over a gpu.Device.
//
// # Targets
//
// A RenderTarget owns the attachments a pass draws into. TextureTarget
// holds a color and a depth attachment, multisampled or not, and resolves
// them on request; depth is only resolved where the backend supports it.
// NullRenderTarget accepts every call and does nothing.
//
// # Passes
//
// A Pass runs Before, Execute and After once per frame, in that order;
// calls out of order fail with ErrPassState. ShadowPass renders one face of
// a light's shadow map (six faces for point lights) and, when the light
// uses variance shadow maps, filters the moments exactly once in After.
//
// A Frame runs passes in order. Shadow passes are Degradable: when one
// fails the frame continues without that shadow. Any other failure, and
// context loss, aborts the frame.
//
//	light := &render.Light{Type: render.LightPoint, Range: 25, VSM: true}
//	shadow, err := render.NewShadowPass(dev, render.ShadowPassOptions{
//		Light:   light,
//		Face:    2,
//		Casters: casters,
//	})
//	frame := render.NewFrame(dev, shadow)
//	stats, err := frame.Run()
//
// # Host devices
//
// DeviceHandle is the gpucontext device provider a host application passes
// in when it already owns a device; SurfaceFormat maps its surface format
// to a target color format.
package render
