package viewer

import (
	"context"
	"errors"
	"image"

	"go.uber.org/zap"

	"github.com/Faultbox/mirror-viewer/internal/config"
	"github.com/Faultbox/mirror-viewer/internal/engine/scene"
	"github.com/Faultbox/mirror-viewer/internal/logger"
)

// ErrEmptyPath is returned when a texture swap names no image.
var ErrEmptyPath = errors.New("empty texture path")

// swapState tracks texture requests. Only the frame goroutine touches it.
type swapState struct {
	policy string
	// issued is the last token handed out. Tokens start at 1.
	issued  uint64
	pending int

	applied      *scene.Texture
	appliedToken uint64
	path         string
}

// ChangeTexture starts loading the image at path and, once decoded, puts it
// on every material of the target mesh. It returns the request token.
//
// With the latest policy only the most recently issued request is applied;
// with last_completed whichever load finishes last wins. Either way a result
// whose target mesh was replaced by a newer model is dropped.
// Must be called on the frame goroutine; use RequestTexture elsewhere.
func (v *Viewer) ChangeTexture(path string) (uint64, error) {
	if v.target == nil {
		logger.Warn("texture change ignored, target mesh not found",
			zap.String("path", path), zap.String("target", v.cfg.Scene.TargetMesh))
		return 0, ErrTargetNotReady
	}
	if path == "" {
		return 0, ErrEmptyPath
	}
	if v.stopped() {
		return 0, ErrStopped
	}

	v.swaps.issued++
	token := v.swaps.issued
	v.swaps.pending++
	v.publishStatus()

	logger.Debug("loading texture", zap.String("path", path), zap.Uint64("token", token))
	target := v.target
	v.goLoad(func(ctx context.Context) {
		img, err := v.images.LoadImage(ctx, path)
		v.Post(func() { v.finishSwap(target, token, path, img, err) })
	})
	return token, nil
}

// RequestTexture is ChangeTexture for callers on other goroutines. It waits
// until the frame goroutine has issued the request.
func (v *Viewer) RequestTexture(ctx context.Context, path string) (uint64, error) {
	type result struct {
		token uint64
		err   error
	}
	done := make(chan result, 1)
	err := v.postContext(ctx, func() {
		token, err := v.ChangeTexture(path)
		done <- result{token, err}
	})
	if err != nil {
		return 0, err
	}
	select {
	case r := <-done:
		return r.token, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-v.stopCh:
		return 0, ErrStopped
	}
}

func (v *Viewer) finishSwap(target *scene.Node, token uint64, path string, img *image.NRGBA, err error) {
	v.swaps.pending--
	defer v.publishStatus()

	if err != nil {
		logger.Error("failed to load texture", zap.String("path", path), zap.Uint64("token", token), zap.Error(err))
		v.listeners.emit(Event{Type: EventTextureFailed, Path: path, Token: token, Err: err})
		return
	}
	if target != v.target {
		logger.Debug("discarding texture requested for a replaced model",
			zap.String("path", path), zap.Uint64("token", token))
		v.listeners.emit(Event{Type: EventTextureDiscarded, Path: path, Token: token})
		return
	}
	if v.swaps.policy != config.SwapLastCompleted && token != v.swaps.issued {
		logger.Debug("discarding stale texture",
			zap.String("path", path), zap.Uint64("token", token), zap.Uint64("latest", v.swaps.issued))
		v.listeners.emit(Event{Type: EventTextureDiscarded, Path: path, Token: token})
		return
	}
	tex := scene.NewTexture(path, img)
	tex.Anisotropy = v.renderer.MaxAnisotropy()
	tex.MagFilter = scene.FilterLinear
	tex.MinFilter = scene.FilterLinearMipmapLinear

	for _, mat := range v.target.Mesh.Materials() {
		mat.SetMap(tex)
	}
	if v.swaps.applied != nil {
		v.renderer.Release(v.swaps.applied)
	}
	v.swaps.applied = tex
	v.swaps.appliedToken = token
	v.swaps.path = path

	logger.Info("texture updated", zap.String("path", path), zap.Uint64("token", token))
	v.listeners.emit(Event{Type: EventTextureUpdated, Path: path, Token: token})
}

// TexturePath returns the source of the texture the swapper last applied.
func (v *Viewer) TexturePath() string {
	return v.swaps.path
}

// ReloadTexture re-requests the applied texture when file is where it was
// loaded from. resolve maps a texture path to the same form as file.
func (v *Viewer) ReloadTexture(file string, resolve func(string) (string, error)) {
	if v.swaps.path == "" {
		return
	}
	resolved, err := resolve(v.swaps.path)
	if err != nil || resolved != file {
		return
	}
	logger.Info("reloading changed texture", zap.String("path", v.swaps.path))
	if _, err := v.ChangeTexture(v.swaps.path); err != nil {
		logger.Warn("texture reload failed", zap.Error(err))
	}
}
