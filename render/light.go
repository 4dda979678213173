// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// LightType selects how a light projects its shadow.
type LightType uint8

// Light types.
const (
	// LightDirectional casts parallel rays; one orthographic shadow face.
	LightDirectional LightType = iota

	// LightSpot casts a cone; one perspective shadow face.
	LightSpot

	// LightPoint casts in every direction; six cube shadow faces.
	LightPoint
)

// String returns the light type name.
func (t LightType) String() string {
	switch t {
	case LightDirectional:
		return "directional"
	case LightSpot:
		return "spot"
	case LightPoint:
		return "point"
	default:
		return fmt.Sprintf("LightType(%d)", t)
	}
}

// Shadow defaults applied where a Light leaves a field zero.
const (
	DefaultShadowResolution = 1024
	DefaultShadowNear       = 0.1
	DefaultLightRange       = 100
	DefaultOrthoSize        = 20
	DefaultVSMBlurRadius    = 4
)

// Light describes a shadow-casting light.
type Light struct {
	// Name identifies the light in pass names and logs.
	Name string

	Type LightType

	// Position is the light origin (spot, point) or the center of the
	// shadow volume (directional).
	Position mgl32.Vec3

	// Direction is the light's forward axis (directional, spot).
	Direction mgl32.Vec3

	// Range is the shadow far plane.
	Range float32

	// OuterAngle is the spot cone half-angle in radians.
	OuterAngle float32

	// ShadowNear is the shadow near plane.
	ShadowNear float32

	// ShadowResolution is the edge length of each shadow face.
	ShadowResolution uint32

	// OrthoSize is the half extent of a directional light's shadow box.
	OrthoSize float32

	// VSM stores depth moments and filters them after rendering.
	VSM bool

	// VSMBlurRadius is the Gaussian kernel radius in texels.
	VSMBlurRadius int
}

// Faces returns the number of shadow faces: 6 for point lights, 1
// otherwise.
func (l *Light) Faces() int {
	if l.Type == LightPoint {
		return 6
	}
	return 1
}

func (l *Light) near() float32 {
	if l.ShadowNear > 0 {
		return l.ShadowNear
	}
	return DefaultShadowNear
}

func (l *Light) far() float32 {
	if l.Range > 0 {
		return l.Range
	}
	return DefaultLightRange
}

// Resolution returns the shadow face resolution.
func (l *Light) Resolution() uint32 {
	if l.ShadowResolution > 0 {
		return l.ShadowResolution
	}
	return DefaultShadowResolution
}

// BlurRadius returns the VSM blur radius.
func (l *Light) BlurRadius() int {
	if l.VSMBlurRadius > 0 {
		return l.VSMBlurRadius
	}
	return DefaultVSMBlurRadius
}

// Validate checks the light can produce a shadow camera.
func (l *Light) Validate() error {
	switch l.Type {
	case LightDirectional, LightSpot:
		if l.Direction.Len() == 0 {
			return fmt.Errorf("%w: %s light %q has no direction", ErrInvalidLight, l.Type, l.Name)
		}
	case LightPoint:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidLight, l.Type)
	}
	if l.Type == LightSpot && (l.OuterAngle <= 0 || l.OuterAngle >= mgl32.DegToRad(90)) {
		return fmt.Errorf("%w: spot light %q cone angle %v", ErrInvalidLight, l.Name, l.OuterAngle)
	}
	if l.near() >= l.far() {
		return fmt.Errorf("%w: light %q near %v >= far %v", ErrInvalidLight, l.Name, l.near(), l.far())
	}
	return nil
}

// ShadowCamera is the view of one shadow face. Projection maps depth to
// [0, 1].
type ShadowCamera struct {
	View           mgl32.Mat4
	Projection     mgl32.Mat4
	ViewProjection mgl32.Mat4
	Position       mgl32.Vec3
	Forward        mgl32.Vec3
	Near, Far      float32
}

// cubeFaces are the forward and up axes of the six cube faces in +X, -X,
// +Y, -Y, +Z, -Z order.
var cubeFaces = [6]struct{ forward, up mgl32.Vec3 }{
	{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, -1, 0}},
	{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, -1, 0}},
	{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}},
	{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, 0, -1}},
	{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, -1, 0}},
	{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, -1, 0}},
}

// depthRemap converts GL clip depth [-1, 1] to [0, 1].
var depthRemap = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// FaceCamera returns the camera for one shadow face.
func (l *Light) FaceCamera(face int) (ShadowCamera, error) {
	if err := l.Validate(); err != nil {
		return ShadowCamera{}, err
	}
	if face < 0 || face >= l.Faces() {
		return ShadowCamera{}, fmt.Errorf("%w: face %d of %s light %q", ErrInvalidFace, face, l.Type, l.Name)
	}

	near, far := l.near(), l.far()
	cam := ShadowCamera{Near: near, Far: far}
	switch l.Type {
	case LightPoint:
		f := cubeFaces[face]
		cam.Position, cam.Forward = l.Position, f.forward
		cam.View = mgl32.LookAtV(l.Position, l.Position.Add(f.forward), f.up)
		cam.Projection = mgl32.Perspective(mgl32.DegToRad(90), 1, near, far)
	case LightSpot:
		fwd := l.Direction.Normalize()
		cam.Position, cam.Forward = l.Position, fwd
		cam.View = mgl32.LookAtV(l.Position, l.Position.Add(fwd), upFor(fwd))
		cam.Projection = mgl32.Perspective(2*l.OuterAngle, 1, near, far)
	case LightDirectional:
		fwd := l.Direction.Normalize()
		size := l.OrthoSize
		if size <= 0 {
			size = DefaultOrthoSize
		}
		eye := l.Position.Sub(fwd.Mul(far / 2))
		cam.Position, cam.Forward = eye, fwd
		cam.View = mgl32.LookAtV(eye, l.Position, upFor(fwd))
		cam.Projection = mgl32.Ortho(-size, size, -size, size, near, far)
	}
	cam.Projection = depthRemap.Mul4(cam.Projection)
	cam.ViewProjection = cam.Projection.Mul4(cam.View)
	return cam, nil
}

// upFor returns an up axis that is not parallel to forward.
func upFor(forward mgl32.Vec3) mgl32.Vec3 {
	if abs32(forward.Y()) > 0.99 {
		return mgl32.Vec3{0, 0, 1}
	}
	return mgl32.Vec3{0, 1, 0}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
