package camera

import (
	gomath "math"
	"testing"

	"github.com/Faultbox/mirror-viewer/pkg/math"
)

func near(a, b, tol float32) bool {
	return gomath.Abs(float64(a-b)) <= float64(tol)
}

func TestSetViewportAspectIsExact(t *testing.T) {
	cam := NewPerspective(75, 1, 0.1, 1000)

	if !cam.SetViewport(1920, 1080) {
		t.Fatal("SetViewport rejected a valid size")
	}
	if cam.Aspect != float32(1920)/float32(1080) {
		t.Errorf("aspect = %v, want %v", cam.Aspect, float32(1920)/float32(1080))
	}

	// Projection x scale is f / aspect.
	f := float32(1 / gomath.Tan(75*gomath.Pi/180/2))
	if !near(cam.Projection()[0], f/cam.Aspect, 1e-5) {
		t.Errorf("projection not updated: m0 = %v, want %v", cam.Projection()[0], f/cam.Aspect)
	}
}

func TestSetViewportIgnoresDegenerateSize(t *testing.T) {
	cam := NewPerspective(75, 1.5, 0.1, 1000)
	if cam.SetViewport(800, 0) {
		t.Error("SetViewport accepted zero height")
	}
	if cam.Aspect != 1.5 {
		t.Errorf("aspect changed to %v", cam.Aspect)
	}
}

func TestViewMatrixLooksAtTarget(t *testing.T) {
	cam := NewPerspective(75, 1, 0.1, 1000)
	cam.Position = math.Vec3{X: 0, Y: 0, Z: 5}
	cam.LookAt(math.Vec3{})

	// The target ends up straight ahead on -Z in view space.
	p := cam.ViewMatrix().TransformVec3(math.Vec3{})
	if !near(p.X, 0, 1e-5) || !near(p.Y, 0, 1e-5) || !near(p.Z, -5, 1e-5) {
		t.Errorf("target in view space = %v, want (0,0,-5)", p)
	}
}

func newControls() (*PerspectiveCamera, *OrbitControls) {
	cam := NewPerspective(75, 1, 0.1, 1000)
	cam.Position = math.Vec3{X: 0, Y: 1, Z: 5}
	ctl := NewOrbitControls(cam)
	ctl.SetTarget(math.Vec3{})
	return cam, ctl
}

func TestUpdateWithoutInputKeepsPosition(t *testing.T) {
	cam, ctl := newControls()
	before := cam.Position

	if ctl.Update() {
		t.Error("Update reported movement without input")
	}
	if before.Distance(cam.Position) > 1e-4 {
		t.Errorf("camera moved from %v to %v", before, cam.Position)
	}
}

func TestDampingSpreadsRotationOverFrames(t *testing.T) {
	cam, ctl := newControls()
	ctl.EnableDamping = true
	ctl.DampingFactor = 0.05

	start := sphericalFromOffset(cam.Position.Sub(ctl.Target))

	// A quarter-height horizontal drag is a quarter turn of azimuth in total.
	ctl.HandleDrag(-100, 0, 400)
	ctl.Update()

	first := sphericalFromOffset(cam.Position.Sub(ctl.Target))
	step := first.theta - start.theta
	if !near(step, gomath.Pi/2*0.05, 1e-3) {
		t.Errorf("first damped step = %v, want %v", step, gomath.Pi/2*0.05)
	}

	for i := 0; i < 400; i++ {
		ctl.Update()
	}
	end := sphericalFromOffset(cam.Position.Sub(ctl.Target))
	if !near(end.theta-start.theta, gomath.Pi/2, 1e-2) {
		t.Errorf("total rotation = %v, want ~pi/2", end.theta-start.theta)
	}

	// Motion has decayed: another update barely moves the camera.
	if ctl.Update() {
		t.Error("camera still moving after damping settled")
	}
}

func TestWithoutDampingRotationAppliesAtOnce(t *testing.T) {
	cam, ctl := newControls()

	start := sphericalFromOffset(cam.Position.Sub(ctl.Target))
	ctl.HandleDrag(-100, 0, 400)
	if !ctl.Update() {
		t.Fatal("expected movement")
	}
	end := sphericalFromOffset(cam.Position.Sub(ctl.Target))
	if !near(end.theta-start.theta, gomath.Pi/2, 1e-3) {
		t.Errorf("rotation = %v, want pi/2", end.theta-start.theta)
	}
}

func TestPolarAngleClamp(t *testing.T) {
	cam, ctl := newControls()
	ctl.MaxPolarAngle = gomath.Pi / 2

	// Drag far upward, which would swing the camera below the target.
	ctl.HandleDrag(0, -4000, 400)
	ctl.Update()

	if cam.Position.Y < ctl.Target.Y-1e-4 {
		t.Errorf("camera went below the horizon: %v", cam.Position)
	}
}

func TestDistanceClamp(t *testing.T) {
	cam, ctl := newControls()
	ctl.MinDistance = 1
	ctl.MaxDistance = 10

	ctl.HandleZoom(-200)
	ctl.Update()
	if d := cam.Position.Distance(ctl.Target); !near(d, 10, 1e-3) {
		t.Errorf("distance after zoom out = %v, want 10", d)
	}

	ctl.HandleZoom(500)
	ctl.Update()
	if d := cam.Position.Distance(ctl.Target); !near(d, 1, 1e-3) {
		t.Errorf("distance after zoom in = %v, want 1", d)
	}
}

func TestPanMovesTargetAndCameraTogether(t *testing.T) {
	cam, ctl := newControls()
	offsetBefore := cam.Position.Sub(ctl.Target)

	ctl.HandlePan(50, 0, 400)
	ctl.Update()

	if ctl.Target.X >= 0 {
		t.Errorf("dragging right should move the target left, got %v", ctl.Target)
	}
	offsetAfter := cam.Position.Sub(ctl.Target)
	if offsetBefore.Distance(offsetAfter) > 1e-4 {
		t.Errorf("pan changed the orbit offset: %v -> %v", offsetBefore, offsetAfter)
	}
}
