// Package viewer ties the scene, camera, controls and asset loading together
// and runs the frame loop. All scene mutation happens on the goroutine that
// calls Run or Frame; other goroutines hand work over through Post.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Faultbox/mirror-viewer/internal/config"
	"github.com/Faultbox/mirror-viewer/internal/engine/camera"
	"github.com/Faultbox/mirror-viewer/internal/engine/capture"
	"github.com/Faultbox/mirror-viewer/internal/engine/input"
	"github.com/Faultbox/mirror-viewer/internal/engine/lighting"
	"github.com/Faultbox/mirror-viewer/internal/engine/model"
	"github.com/Faultbox/mirror-viewer/internal/engine/scene"
	"github.com/Faultbox/mirror-viewer/internal/logger"
	"github.com/Faultbox/mirror-viewer/pkg/math"
)

var (
	// ErrTargetNotReady is returned by texture swaps issued before the target
	// mesh has been located.
	ErrTargetNotReady = errors.New("target mesh not ready")
	// ErrStopped is returned by requests made after the viewer stopped.
	ErrStopped = errors.New("viewer stopped")
)

// taskQueueSize bounds completions waiting for the next frame.
const taskQueueSize = 64

// Renderer draws the scene. Implementations own GPU state and are only called
// from the frame goroutine.
type Renderer interface {
	Render(s *scene.Scene, cam *camera.PerspectiveCamera)
	SetSize(width, height int)
	MaxAnisotropy() float32
	Release(t *scene.Texture)
	ReleaseGeometry(g *model.Geometry)
	// ReadPixels returns the last rendered frame as bottom-up RGBA rows.
	ReadPixels() (pixels []byte, width, height int)
}

// Display supplies input events and shows finished frames.
type Display interface {
	PollEvents(dst []input.Event) []input.Event
	Present()
}

// ModelLoader fetches and parses a model. It is called off the frame goroutine.
type ModelLoader interface {
	LoadModel(ctx context.Context, path string) (*scene.Node, error)
}

// ImageLoader fetches and decodes an image. It is called off the frame goroutine.
type ImageLoader interface {
	LoadImage(ctx context.Context, path string) (*image.NRGBA, error)
}

// Options configures a Viewer.
type Options struct {
	Config   *config.Config
	Renderer Renderer
	Models   ModelLoader
	Images   ImageLoader
	// Width and Height are the initial output size in pixels.
	Width  int
	Height int
}

// Viewer is the scene context: camera, controls, lights and the loaded model.
type Viewer struct {
	cfg      *config.Config
	renderer Renderer
	models   ModelLoader
	images   ImageLoader

	Scene    *scene.Scene
	Camera   *camera.PerspectiveCamera
	Controls *camera.OrbitControls

	model     *scene.Node
	modelPath string
	target    *scene.Node
	home      framing

	// modelTex are the textures the model arrived with.
	modelTex []*scene.Texture

	swaps swapState

	width, height int
	pointer       input.Pointer

	shots       *capture.Capture
	captureNext bool

	tasks    chan func()
	ctx      context.Context
	cancel   context.CancelFunc
	loads    sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once

	status    atomic.Pointer[Status]
	frames    atomic.Uint64
	listeners listeners
}

// framing is a camera pose the R key returns to.
type framing struct {
	position math.Vec3
	target   math.Vec3
}

// New builds the scene context from configuration.
func New(opts Options) (*Viewer, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.Renderer == nil || opts.Models == nil || opts.Images == nil {
		return nil, fmt.Errorf("viewer: renderer, model loader and image loader are required")
	}

	background, err := config.ParseColor(cfg.Scene.Background)
	if err != nil {
		return nil, fmt.Errorf("scene background: %w", err)
	}
	ambient, err := config.ParseColor(cfg.Lights.AmbientColor)
	if err != nil {
		return nil, fmt.Errorf("ambient light: %w", err)
	}
	directional, err := config.ParseColor(cfg.Lights.DirectionalColor)
	if err != nil {
		return nil, fmt.Errorf("directional light: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	v := &Viewer{
		cfg:      cfg,
		renderer: opts.Renderer,
		models:   opts.Models,
		images:   opts.Images,
		tasks:    make(chan func(), taskQueueSize),
		ctx:      ctx,
		cancel:   cancel,
		stopCh:   make(chan struct{}),
	}
	v.swaps.policy = cfg.Scene.SwapPolicy
	v.shots = capture.New(cfg.Graphics.ScreenshotDir, "mirror")

	v.Scene = scene.New()
	v.Scene.Background = background
	v.Scene.Ambient = lighting.Ambient{Color: ambient, Intensity: cfg.Lights.AmbientIntensity}
	v.Scene.Directional = lighting.Directional{
		Color:     directional,
		Intensity: cfg.Lights.DirectionalIntensity,
		Position:  math.FromArray(cfg.Lights.DirectionalPosition),
	}

	aspect := float32(1)
	if opts.Width > 0 && opts.Height > 0 {
		aspect = float32(opts.Width) / float32(opts.Height)
	}
	v.Camera = camera.NewPerspective(cfg.Camera.FOV, aspect, cfg.Camera.Near, cfg.Camera.Far)
	v.Camera.Position = math.FromArray(cfg.Camera.Position)

	v.Controls = camera.NewOrbitControls(v.Camera)
	v.Controls.EnableDamping = cfg.Controls.EnableDamping
	v.Controls.DampingFactor = cfg.Controls.DampingFactor
	v.Controls.MinDistance = cfg.Controls.MinDistance
	v.Controls.MaxDistance = cfg.Controls.MaxDistance
	v.Controls.MaxPolarAngle = cfg.Controls.MaxPolarAngle
	v.Controls.RotateSpeed = cfg.Controls.RotateSpeed
	v.Controls.ZoomSpeed = cfg.Controls.ZoomSpeed
	v.Controls.PanSpeed = cfg.Controls.PanSpeed
	v.Controls.SetTarget(math.Vec3{})
	v.home = framing{position: v.Camera.Position, target: v.Controls.Target}

	v.Resize(opts.Width, opts.Height)
	v.publishStatus()

	logger.Info("scene initialized",
		zap.Float32("fov", cfg.Camera.FOV),
		zap.Int("width", opts.Width),
		zap.Int("height", opts.Height),
		zap.String("swap_policy", v.swaps.policy),
	)
	return v, nil
}

// Post schedules fn to run on the frame goroutine during the next frame.
// It is safe for concurrent use and reports false once the viewer stopped.
func (v *Viewer) Post(fn func()) bool {
	return v.postContext(context.Background(), fn) == nil
}

func (v *Viewer) postContext(ctx context.Context, fn func()) error {
	select {
	case <-v.stopCh:
		return ErrStopped
	default:
	}
	select {
	case v.tasks <- fn:
		return nil
	case <-v.stopCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain runs every queued task.
func (v *Viewer) drain() {
	for {
		select {
		case fn := <-v.tasks:
			fn()
		default:
			return
		}
	}
}

func (v *Viewer) stopped() bool {
	select {
	case <-v.stopCh:
		return true
	default:
		return false
	}
}

// goLoad runs load off the frame goroutine and reports whether it started.
// Nothing starts once the viewer is stopped.
func (v *Viewer) goLoad(load func(ctx context.Context)) bool {
	if v.stopped() {
		return false
	}
	v.loads.Add(1)
	go func() {
		defer v.loads.Done()
		load(v.ctx)
	}()
	return true
}

// LoadModel starts loading a model. On success the model replaces any
// previous one, the target mesh is captured, the camera is framed on the
// model and the default texture is requested.
func (v *Viewer) LoadModel(path string) {
	started := v.goLoad(func(ctx context.Context) {
		root, err := v.models.LoadModel(ctx, path)
		v.Post(func() { v.finishModel(path, root, err) })
	})
	if !started {
		logger.Debug("model load skipped, viewer stopped", zap.String("path", path))
		return
	}
	logger.Info("loading model", zap.String("path", path))
}

func (v *Viewer) finishModel(path string, root *scene.Node, err error) {
	if err != nil {
		logger.Error("failed to load model", zap.String("path", path), zap.Error(err))
		v.listeners.emit(Event{Type: EventModelFailed, Path: path, Err: err})
		return
	}

	if v.model != nil {
		v.Scene.Root.Remove(v.model)
		v.releaseModel()
	}
	v.model = root
	v.modelPath = path
	v.modelTex = modelTextures(root)
	v.target = root.FindMesh(v.cfg.Scene.TargetMesh)
	v.swaps.applied = nil
	v.swaps.appliedToken = 0
	v.swaps.path = ""

	if v.target != nil {
		logger.Info("target mesh found", zap.String("name", v.target.Name))
	} else {
		logger.Warn("target mesh not found in model",
			zap.String("name", v.cfg.Scene.TargetMesh), zap.String("model", path))
	}

	v.Scene.Add(root)
	v.frameModel()
	v.publishStatus()
	v.listeners.emit(Event{Type: EventModelLoaded, Path: path})

	if v.target != nil && v.cfg.Scene.DefaultTexture != "" {
		if _, err := v.ChangeTexture(v.cfg.Scene.DefaultTexture); err != nil {
			logger.Warn("default texture not requested", zap.Error(err))
		}
	}
}

// releaseModel frees the GPU resources of the current model: its geometry,
// the textures it arrived with and the texture the swapper put on it.
func (v *Viewer) releaseModel() {
	textures := make(map[*scene.Texture]bool)
	release := func(t *scene.Texture) {
		if t != nil && !textures[t] {
			textures[t] = true
			v.renderer.Release(t)
		}
	}
	for _, t := range v.modelTex {
		release(t)
	}
	release(v.swaps.applied)

	geometries := make(map[*model.Geometry]bool)
	v.model.Traverse(func(n *scene.Node) bool {
		if n.Mesh == nil {
			return true
		}
		for _, p := range n.Mesh.Primitives {
			if p.Geometry != nil && !geometries[p.Geometry] {
				geometries[p.Geometry] = true
				v.renderer.ReleaseGeometry(p.Geometry)
			}
		}
		return true
	})
	logger.Debug("released previous model",
		zap.String("path", v.modelPath),
		zap.Int("textures", len(textures)),
		zap.Int("geometries", len(geometries)),
	)
}

// modelTextures lists each texture referenced by root's materials once.
func modelTextures(root *scene.Node) []*scene.Texture {
	var out []*scene.Texture
	seen := make(map[*scene.Texture]bool)
	root.Traverse(func(n *scene.Node) bool {
		if n.Mesh == nil {
			return true
		}
		for _, m := range n.Mesh.Materials() {
			if m.Map != nil && !seen[m.Map] {
				seen[m.Map] = true
				out = append(out, m.Map)
			}
		}
		return true
	})
	return out
}

// frameModel points the camera at the center of the model from in front of it.
func (v *Viewer) frameModel() {
	box := scene.BoxFromObject(v.model)
	if box.IsEmpty() {
		return
	}
	center := box.Center()
	v.Camera.Position = math.Vec3{X: center.X, Y: center.Y, Z: box.Max[2] * 2}
	v.Camera.LookAt(center)
	v.Controls.SetTarget(center)
	v.home = framing{position: v.Camera.Position, target: center}

	c, pos := center.Array(), v.Camera.Position.Array()
	logger.Debug("camera framed",
		zap.Float32s("center", c[:]),
		zap.Float32s("position", pos[:]),
	)
}

// ResetView returns the camera to the last framing.
func (v *Viewer) ResetView() {
	v.Camera.Position = v.home.position
	v.Camera.LookAt(v.home.target)
	v.Controls.SetTarget(v.home.target)
}

// Model returns the loaded model root, or nil.
func (v *Viewer) Model() *scene.Node {
	return v.model
}

// Target returns the captured target mesh node, or nil.
func (v *Viewer) Target() *scene.Node {
	return v.target
}

// Resize matches the camera aspect and the output size to a new viewport.
// Sizes with a non-positive side are ignored.
func (v *Viewer) Resize(width, height int) {
	if !v.Camera.SetViewport(width, height) {
		return
	}
	v.width, v.height = width, height
	v.renderer.SetSize(width, height)
	v.publishStatus()
}

// Size returns the current output size.
func (v *Viewer) Size() (int, int) {
	return v.width, v.height
}

// Stop ends Run at the start of the next frame. Safe from any goroutine.
func (v *Viewer) Stop() {
	v.stopOnce.Do(func() {
		close(v.stopCh)
		v.cancel()
	})
}

// Close stops the viewer and waits for in-flight loads to return.
func (v *Viewer) Close() {
	v.Stop()
	v.loads.Wait()
}
