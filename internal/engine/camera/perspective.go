// Package camera provides the perspective camera and orbit controls.
package camera

import (
	gomath "math"

	"github.com/Faultbox/mirror-viewer/pkg/math"
)

// PerspectiveCamera is a pinhole camera looking at a target point.
type PerspectiveCamera struct {
	Position math.Vec3
	Up       math.Vec3

	FOV    float32 // vertical field of view, degrees
	Aspect float32 // width / height
	Near   float32
	Far    float32

	target     math.Vec3
	projection math.Mat4
}

// NewPerspective creates a camera at the origin looking down -Z.
func NewPerspective(fov, aspect, near, far float32) *PerspectiveCamera {
	c := &PerspectiveCamera{
		Up:     math.Vec3{X: 0, Y: 1, Z: 0},
		FOV:    fov,
		Aspect: aspect,
		Near:   near,
		Far:    far,
		target: math.Vec3{X: 0, Y: 0, Z: -1},
	}
	c.UpdateProjection()
	return c
}

// LookAt points the camera at a world-space position.
func (c *PerspectiveCamera) LookAt(target math.Vec3) {
	c.target = target
}

// Target returns the point the camera looks at.
func (c *PerspectiveCamera) Target() math.Vec3 {
	return c.target
}

// SetViewport sets the aspect ratio from a viewport size and recomputes the
// projection. Sizes with a non-positive side are ignored.
func (c *PerspectiveCamera) SetViewport(width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	c.Aspect = float32(width) / float32(height)
	c.UpdateProjection()
	return true
}

// UpdateProjection recomputes the projection matrix after FOV, Aspect,
// Near or Far changed.
func (c *PerspectiveCamera) UpdateProjection() {
	fovY := c.FOV * gomath.Pi / 180
	c.projection = math.Perspective(fovY, c.Aspect, c.Near, c.Far)
}

// Projection returns the cached projection matrix.
func (c *PerspectiveCamera) Projection() math.Mat4 {
	return c.projection
}

// ViewMatrix returns the view matrix for this camera.
func (c *PerspectiveCamera) ViewMatrix() math.Mat4 {
	if c.Position == c.target {
		return math.Translate(-c.Position.X, -c.Position.Y, -c.Position.Z)
	}
	return math.LookAt(c.Position, c.target, c.Up)
}

// basis returns the camera's world-space right and up vectors.
func (c *PerspectiveCamera) basis() (right, up math.Vec3) {
	forward := c.target.Sub(c.Position).Normalize()
	right = forward.Cross(c.Up).Normalize()
	up = right.Cross(forward)
	return right, up
}
