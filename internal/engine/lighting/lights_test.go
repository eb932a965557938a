package lighting

import (
	gomath "math"
	"testing"

	"github.com/Faultbox/mirror-viewer/pkg/math"
)

func TestDirectionalDirection(t *testing.T) {
	d := Directional{Position: math.Vec3{X: 5, Y: 10, Z: 5}}
	dir := d.Direction()

	length := gomath.Sqrt(float64(dir[0]*dir[0] + dir[1]*dir[1] + dir[2]*dir[2]))
	if gomath.Abs(length-1) > 1e-5 {
		t.Errorf("direction not normalized: %v (len %v)", dir, length)
	}
	if dir[1] <= 0 {
		t.Errorf("light above the origin should point up, got %v", dir)
	}
}

func TestDirectionalDegenerate(t *testing.T) {
	d := Directional{}
	if got := d.Direction(); got != [3]float32{0, 1, 0} {
		t.Errorf("degenerate light direction = %v, want straight up", got)
	}
}

func TestRadiance(t *testing.T) {
	a := Ambient{Color: [3]float32{1, 0.5, 0}, Intensity: 2}
	if got := a.Radiance(); got != [3]float32{2, 1, 0} {
		t.Errorf("ambient radiance = %v", got)
	}
}
