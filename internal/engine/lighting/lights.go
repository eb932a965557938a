// Package lighting provides the light sources of the viewer scene.
package lighting

import "github.com/Faultbox/mirror-viewer/pkg/math"

// Ambient lights every surface equally.
type Ambient struct {
	Color     [3]float32 // RGB color (0-1 range)
	Intensity float32
}

// Radiance returns color scaled by intensity.
func (a Ambient) Radiance() [3]float32 {
	return scale(a.Color, a.Intensity)
}

// Directional is a light infinitely far away, shining from Position toward
// Target.
type Directional struct {
	Color     [3]float32
	Intensity float32
	Position  math.Vec3
	Target    math.Vec3
}

// Radiance returns color scaled by intensity.
func (d Directional) Radiance() [3]float32 {
	return scale(d.Color, d.Intensity)
}

// Direction returns the unit vector pointing from the surface toward the
// light, as the fragment shader expects it.
func (d Directional) Direction() [3]float32 {
	dir := d.Position.Sub(d.Target).Normalize()
	if dir == (math.Vec3{}) {
		return [3]float32{0, 1, 0}
	}
	return dir.Array()
}

func scale(c [3]float32, k float32) [3]float32 {
	return [3]float32{c[0] * k, c[1] * k, c[2] * k}
}
