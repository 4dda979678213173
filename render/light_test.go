// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestLightFaces(t *testing.T) {
	tests := []struct {
		light Light
		faces int
	}{
		{Light{Type: LightPoint}, 6},
		{Light{Type: LightSpot, Direction: mgl32.Vec3{0, -1, 0}, OuterAngle: 0.5}, 1},
		{Light{Type: LightDirectional, Direction: mgl32.Vec3{0, -1, 0}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.light.Type.String(), func(t *testing.T) {
			if got := tt.light.Faces(); got != tt.faces {
				t.Errorf("Faces() = %d, want %d", got, tt.faces)
			}
			for face := range tt.faces {
				if _, err := tt.light.FaceCamera(face); err != nil {
					t.Errorf("FaceCamera(%d) error = %v", face, err)
				}
			}
			for _, face := range []int{-1, tt.faces} {
				if _, err := tt.light.FaceCamera(face); !errors.Is(err, ErrInvalidFace) {
					t.Errorf("FaceCamera(%d) error = %v, want ErrInvalidFace", face, err)
				}
			}
		})
	}
}

func TestLightValidate(t *testing.T) {
	tests := []struct {
		name  string
		light Light
	}{
		{"spot without direction", Light{Type: LightSpot, OuterAngle: 0.5}},
		{"spot without cone", Light{Type: LightSpot, Direction: mgl32.Vec3{0, 0, -1}}},
		{"spot cone too wide", Light{Type: LightSpot, Direction: mgl32.Vec3{0, 0, -1}, OuterAngle: 2}},
		{"directional without direction", Light{Type: LightDirectional}},
		{"near beyond far", Light{Type: LightPoint, ShadowNear: 10, Range: 5}},
		{"unknown type", Light{Type: LightType(7)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.light.Validate(); !errors.Is(err, ErrInvalidLight) {
				t.Errorf("Validate() error = %v, want ErrInvalidLight", err)
			}
		})
	}
}

// project returns the normalized device coordinates of p.
func project(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	c := m.Mul4x1(p.Vec4(1))
	return c.Vec3().Mul(1 / c.W())
}

func TestPointLightFaceCameras(t *testing.T) {
	l := Light{Type: LightPoint, Position: mgl32.Vec3{1, 2, 3}, Range: 20}
	for face := range 6 {
		cam, err := l.FaceCamera(face)
		if err != nil {
			t.Fatalf("FaceCamera(%d) error = %v", face, err)
		}
		// A point 5 units along the face axis lands in the center of the
		// face with depth in [0, 1].
		p := l.Position.Add(cubeFaces[face].forward.Mul(5))
		ndc := project(cam.ViewProjection, p)
		if abs32(ndc.X()) > 1e-4 || abs32(ndc.Y()) > 1e-4 {
			t.Errorf("face %d: center projects to (%v, %v), want (0, 0)", face, ndc.X(), ndc.Y())
		}
		if ndc.Z() <= 0 || ndc.Z() >= 1 {
			t.Errorf("face %d: depth = %v, want in (0, 1)", face, ndc.Z())
		}
		if cam.Far != 20 || cam.Near != DefaultShadowNear {
			t.Errorf("face %d: near/far = %v/%v", face, cam.Near, cam.Far)
		}
	}
}

func TestDepthRemap(t *testing.T) {
	l := Light{Type: LightSpot, Direction: mgl32.Vec3{0, 0, -1}, OuterAngle: mgl32.DegToRad(30), ShadowNear: 1, Range: 10}
	cam, err := l.FaceCamera(0)
	if err != nil {
		t.Fatalf("FaceCamera() error = %v", err)
	}
	near := project(cam.ViewProjection, mgl32.Vec3{0, 0, -1})
	far := project(cam.ViewProjection, mgl32.Vec3{0, 0, -10})
	if abs32(near.Z()) > 1e-4 {
		t.Errorf("near plane depth = %v, want 0", near.Z())
	}
	if abs32(far.Z()-1) > 1e-4 {
		t.Errorf("far plane depth = %v, want 1", far.Z())
	}
}

func TestDirectionalCameraLooksAtCenter(t *testing.T) {
	l := Light{Type: LightDirectional, Position: mgl32.Vec3{0, 0, 0}, Direction: mgl32.Vec3{0, -1, 0}, Range: 40}
	cam, err := l.FaceCamera(0)
	if err != nil {
		t.Fatalf("FaceCamera() error = %v", err)
	}
	ndc := project(cam.ViewProjection, mgl32.Vec3{0, 0, 0})
	if abs32(ndc.X()) > 1e-4 || abs32(ndc.Y()) > 1e-4 || abs32(ndc.Z()-0.5) > 0.01 {
		t.Errorf("center projects to %v, want (0, 0, ~0.5)", ndc)
	}
}

func TestLightDefaults(t *testing.T) {
	var l Light
	if l.Resolution() != DefaultShadowResolution {
		t.Errorf("Resolution() = %d", l.Resolution())
	}
	if l.BlurRadius() != DefaultVSMBlurRadius {
		t.Errorf("BlurRadius() = %d", l.BlurRadius())
	}
}
