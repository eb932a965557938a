package viewer

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Faultbox/mirror-viewer/internal/config"
	"github.com/Faultbox/mirror-viewer/internal/engine/camera"
	"github.com/Faultbox/mirror-viewer/internal/engine/input"
	"github.com/Faultbox/mirror-viewer/internal/engine/model"
	"github.com/Faultbox/mirror-viewer/internal/engine/scene"
)

type fakeRenderer struct {
	renders       int
	width, height int
	lastCamera    *camera.PerspectiveCamera
	lastScene     *scene.Scene
	released      []*scene.Texture
	releasedGeo   []*model.Geometry
}

func (r *fakeRenderer) Render(s *scene.Scene, cam *camera.PerspectiveCamera) {
	r.renders++
	r.lastScene = s
	r.lastCamera = cam
}

func (r *fakeRenderer) SetSize(width, height int) { r.width, r.height = width, height }
func (r *fakeRenderer) MaxAnisotropy() float32    { return 16 }
func (r *fakeRenderer) Release(t *scene.Texture)  { r.released = append(r.released, t) }

func (r *fakeRenderer) ReleaseGeometry(g *model.Geometry) {
	r.releasedGeo = append(r.releasedGeo, g)
}

// ReadPixels returns a 2x1 frame: a red pixel then a green one.
func (r *fakeRenderer) ReadPixels() ([]byte, int, int) {
	return []byte{255, 0, 0, 255, 0, 255, 0, 255}, 2, 1
}

type fakeModels struct {
	root  *scene.Node
	err   error
	calls atomic.Int32
}

func (m *fakeModels) LoadModel(ctx context.Context, path string) (*scene.Node, error) {
	m.calls.Add(1)
	return m.root, m.err
}

// fakeImages returns a small image for every path. A gated path blocks until
// its gate is closed.
type fakeImages struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	errs  map[string]error
	calls []string
}

func newFakeImages() *fakeImages {
	return &fakeImages{gates: make(map[string]chan struct{}), errs: make(map[string]error)}
}

func (f *fakeImages) gate(path string) chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[path] = ch
	f.mu.Unlock()
	return ch
}

func (f *fakeImages) fail(path string, err error) {
	f.mu.Lock()
	f.errs[path] = err
	f.mu.Unlock()
}

func (f *fakeImages) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeImages) LoadImage(ctx context.Context, path string) (*image.NRGBA, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	gate := f.gates[path]
	err := f.errs[path]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return image.NewNRGBA(image.Rect(0, 0, 2, 2)), nil
}

// scriptDisplay returns one batch of events per poll, then nothing.
type scriptDisplay struct {
	batches  [][]input.Event
	polls    int
	presents int
}

func (d *scriptDisplay) PollEvents(dst []input.Event) []input.Event {
	if d.polls < len(d.batches) {
		dst = append(dst, d.batches[d.polls]...)
	}
	d.polls++
	return dst
}

func (d *scriptDisplay) Present() { d.presents++ }

// testModel is:
//
//	mirror.glb
//	├── plate (group, no mesh)
//	│   └── plate (mesh)   <- first match
//	└── plate (mesh)
//
// Every mesh spans (-1,0,-1)..(1,2,1).
type testModel struct {
	root   *scene.Node
	first  *scene.Node
	second *scene.Node
}

func newTestModel(t *testing.T) testModel {
	t.Helper()
	mesh := func(name string) *scene.Node {
		g, err := model.NewGeometry([][3]float32{{-1, 0, -1}, {1, 0, -1}, {0, 2, 1}}, nil, nil, nil)
		require.NoError(t, err)
		n := scene.NewNode(name)
		n.Mesh = &scene.Mesh{Primitives: []*scene.Primitive{{Geometry: g, Material: scene.NewMaterial(name)}}}
		return n
	}

	m := testModel{root: scene.NewNode("mirror.glb")}
	group := scene.NewNode("plate")
	m.first = mesh("plate")
	m.second = mesh("plate")
	m.root.Add(group)
	group.Add(m.first)
	m.root.Add(m.second)
	return m
}

type harness struct {
	v        *Viewer
	renderer *fakeRenderer
	models   *fakeModels
	images   *fakeImages
	cfg      *config.Config
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Scene.Gallery = []string{"one.png", "two.png"}
	if mutate != nil {
		mutate(cfg)
	}

	h := &harness{
		renderer: &fakeRenderer{},
		models:   &fakeModels{},
		images:   newFakeImages(),
		cfg:      cfg,
	}
	v, err := New(Options{
		Config:   cfg,
		Renderer: h.renderer,
		Models:   h.models,
		Images:   h.images,
		Width:    800,
		Height:   600,
	})
	require.NoError(t, err)
	t.Cleanup(v.Close)
	h.v = v
	return h
}

// pump runs queued completions until cond holds.
func (h *harness) pump(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		h.v.drain()
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

// loadModel installs a test model and waits for the default texture.
func (h *harness) loadModel(t *testing.T) testModel {
	t.Helper()
	m := newTestModel(t)
	h.models.root = m.root
	h.v.LoadModel("mirror.glb")
	h.pump(t, func() bool {
		return h.v.TexturePath() == h.cfg.Scene.DefaultTexture && h.v.Status().PendingSwaps == 0
	})
	return m
}

func (h *harness) record() *[]Event {
	var events []Event
	h.v.Subscribe(func(e Event) { events = append(events, e) })
	return &events
}
