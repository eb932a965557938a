package viewer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/mirror-viewer/internal/engine/input"
	"github.com/Faultbox/mirror-viewer/internal/logger"
)

// Run drives frames until a quit event, ctx cancellation or Stop.
// It must be called on the goroutine that owns the renderer.
func (v *Viewer) Run(ctx context.Context, d Display) error {
	logger.Info("render loop started", zap.Int("fps_limit", v.cfg.Graphics.FPSLimit))
	defer logger.Info("render loop stopped", zap.Uint64("frames", v.frames.Load()))

	var budget time.Duration
	if v.cfg.Graphics.FPSLimit > 0 {
		budget = time.Second / time.Duration(v.cfg.Graphics.FPSLimit)
	}

	var events []input.Event
	fpsStart := time.Now()
	fpsFrames := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-v.stopCh:
			return nil
		default:
		}

		start := time.Now()

		events = d.PollEvents(events[:0])
		if v.handleEvents(events) {
			logger.Info("quit requested")
			return nil
		}

		v.Frame()
		d.Present()

		fpsFrames++
		if elapsed := time.Since(fpsStart); elapsed >= time.Second {
			logger.Debug("fps", zap.Float64("fps", float64(fpsFrames)/elapsed.Seconds()))
			fpsStart = time.Now()
			fpsFrames = 0
		}

		if budget > 0 {
			if rest := budget - time.Since(start); rest > 0 {
				time.Sleep(rest)
			}
		}
	}
}

// Frame runs completed loads, advances control damping and draws once.
func (v *Viewer) Frame() {
	v.drain()
	v.Controls.Update()
	v.renderer.Render(v.Scene, v.Camera)
	if v.captureNext {
		v.captureNext = false
		v.saveFrame()
	}
	v.frames.Add(1)
}

// Screenshot saves the next rendered frame as a PNG.
func (v *Viewer) Screenshot() {
	v.captureNext = true
}

func (v *Viewer) saveFrame() {
	pixels, w, h := v.renderer.ReadPixels()
	v.goLoad(func(ctx context.Context) {
		path, err := v.shots.SavePixels(pixels, w, h)
		v.Post(func() {
			if err != nil {
				logger.Warn("screenshot failed", zap.Error(err))
				v.listeners.emit(Event{Type: EventScreenshotFailed, Err: err})
				return
			}
			logger.Info("screenshot saved", zap.String("path", path))
			v.listeners.emit(Event{Type: EventScreenshotSaved, Path: path})
		})
	})
}

// handleEvents applies input and reports whether the viewer should quit.
func (v *Viewer) handleEvents(events []input.Event) bool {
	for _, e := range events {
		switch e.Type {
		case input.EventQuit:
			return true

		case input.EventWindowResize:
			v.Resize(e.Width, e.Height)

		case input.EventMouseDown, input.EventMouseUp, input.EventMouseMove:
			mode, dx, dy := v.pointer.Handle(e)
			switch mode {
			case input.DragRotate:
				v.Controls.HandleDrag(dx, dy, float32(v.height))
			case input.DragPan:
				v.Controls.HandlePan(dx, dy, float32(v.height))
			}

		case input.EventMouseWheel:
			v.Controls.HandleZoom(e.WheelY)

		case input.EventKeyDown:
			if v.handleKey(e.Key) {
				return true
			}
		}
	}
	return false
}

func (v *Viewer) handleKey(k input.Key) bool {
	switch k {
	case input.KeyEscape:
		return true
	case input.KeyR:
		v.ResetView()
	case input.KeyP:
		v.Screenshot()
	default:
		n := k.Digit()
		if n == 0 {
			return false
		}
		gallery := v.cfg.Scene.Gallery
		if n > len(gallery) {
			logger.Debug("no gallery image for key", zap.Int("key", n))
			return false
		}
		if _, err := v.ChangeTexture(gallery[n-1]); err != nil {
			logger.Warn("gallery swap failed", zap.Int("key", n), zap.Error(err))
		}
	}
	return false
}
