package camera

import (
	gomath "math"

	"github.com/Faultbox/mirror-viewer/pkg/math"
)

const (
	epsilon = 1e-6
	// moveEpsilon is the smallest camera displacement Update reports.
	moveEpsilon = 1e-3
)

// spherical holds polar coordinates around the orbit target. Theta is the
// azimuth around +Y measured from +Z, phi the angle down from +Y.
type spherical struct {
	radius float32
	theta  float32
	phi    float32
}

func sphericalFromOffset(v math.Vec3) spherical {
	r := v.Length()
	if r == 0 {
		return spherical{}
	}
	y := clamp(v.Y/r, -1, 1)
	return spherical{
		radius: r,
		theta:  float32(gomath.Atan2(float64(v.X), float64(v.Z))),
		phi:    float32(gomath.Acos(float64(y))),
	}
}

func (s spherical) offset() math.Vec3 {
	sinPhi := float32(gomath.Sin(float64(s.phi)))
	return math.Vec3{
		X: s.radius * sinPhi * float32(gomath.Sin(float64(s.theta))),
		Y: s.radius * float32(gomath.Cos(float64(s.phi))),
		Z: s.radius * sinPhi * float32(gomath.Cos(float64(s.theta))),
	}
}

// OrbitControls orbits a camera around a target with optional damping.
// Input handlers accumulate motion; Update applies it once per frame.
type OrbitControls struct {
	Camera *PerspectiveCamera
	Target math.Vec3

	EnableDamping bool
	DampingFactor float32

	// Constraints
	MinDistance   float32
	MaxDistance   float32
	MinPolarAngle float32
	MaxPolarAngle float32

	// Sensitivity
	RotateSpeed float32
	ZoomSpeed   float32
	PanSpeed    float32

	delta     spherical
	panOffset math.Vec3
	scale     float32
}

// NewOrbitControls creates unconstrained, undamped controls for cam.
func NewOrbitControls(cam *PerspectiveCamera) *OrbitControls {
	return &OrbitControls{
		Camera:        cam,
		Target:        cam.Target(),
		DampingFactor: 0.05,
		MinDistance:   0,
		MaxDistance:   float32(gomath.Inf(1)),
		MinPolarAngle: 0,
		MaxPolarAngle: gomath.Pi,
		RotateSpeed:   1,
		ZoomSpeed:     1,
		PanSpeed:      1,
		scale:         1,
	}
}

// SetTarget moves the orbit center and points the camera at it.
func (c *OrbitControls) SetTarget(target math.Vec3) {
	c.Target = target
	c.Camera.LookAt(target)
}

// HandleDrag rotates by a pointer drag of (dx, dy) pixels in a viewport
// viewportHeight pixels tall. A full-height drag is one full turn.
func (c *OrbitControls) HandleDrag(dx, dy, viewportHeight float32) {
	if viewportHeight <= 0 {
		return
	}
	c.delta.theta -= 2 * gomath.Pi * dx / viewportHeight * c.RotateSpeed
	c.delta.phi -= 2 * gomath.Pi * dy / viewportHeight * c.RotateSpeed
}

// HandleZoom dollies toward the target for positive wheel steps and away
// for negative ones.
func (c *OrbitControls) HandleZoom(steps float32) {
	zoomScale := float32(gomath.Pow(0.95, float64(c.ZoomSpeed)))
	c.scale *= float32(gomath.Pow(float64(zoomScale), float64(steps)))
}

// HandlePan moves the target in the camera's screen plane.
func (c *OrbitControls) HandlePan(dx, dy, viewportHeight float32) {
	if viewportHeight <= 0 {
		return
	}
	distance := c.Camera.Position.Sub(c.Target).Length()
	distance *= float32(gomath.Tan(float64(c.Camera.FOV/2) * gomath.Pi / 180))

	right, up := c.Camera.basis()
	c.panOffset = c.panOffset.
		Add(right.Scale(-2 * dx * distance / viewportHeight * c.PanSpeed)).
		Add(up.Scale(2 * dy * distance / viewportHeight * c.PanSpeed))
}

// Update applies accumulated input and constraints to the camera.
// Returns true if the camera moved.
func (c *OrbitControls) Update() bool {
	prev := c.Camera.Position

	s := sphericalFromOffset(c.Camera.Position.Sub(c.Target))

	if c.EnableDamping {
		s.theta += c.delta.theta * c.DampingFactor
		s.phi += c.delta.phi * c.DampingFactor
	} else {
		s.theta += c.delta.theta
		s.phi += c.delta.phi
	}

	s.phi = clamp(s.phi, c.MinPolarAngle, c.MaxPolarAngle)
	s.phi = clamp(s.phi, epsilon, gomath.Pi-epsilon)

	s.radius = clamp(s.radius*c.scale, c.MinDistance, c.MaxDistance)

	if c.EnableDamping {
		c.Target = c.Target.Add(c.panOffset.Scale(c.DampingFactor))
	} else {
		c.Target = c.Target.Add(c.panOffset)
	}

	c.Camera.Position = c.Target.Add(s.offset())
	c.Camera.LookAt(c.Target)

	if c.EnableDamping {
		c.delta.theta *= 1 - c.DampingFactor
		c.delta.phi *= 1 - c.DampingFactor
		c.panOffset = c.panOffset.Scale(1 - c.DampingFactor)
	} else {
		c.delta = spherical{}
		c.panOffset = math.Vec3{}
	}
	c.scale = 1

	return prev.Distance(c.Camera.Position) > moveEpsilon
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
