package assets

import (
	"context"
	"fmt"
	"image"

	"github.com/Faultbox/mirror-viewer/internal/engine/texture"
)

// LoadImage fetches and decodes an image, scaled down to the configured
// maximum texture size.
func (m *Manager) LoadImage(ctx context.Context, path string) (*image.NRGBA, error) {
	data, err := m.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load image %s: %w", path, err)
	}
	img, err := texture.Load(path, data, m.maxTextureSize)
	if err != nil {
		return nil, fmt.Errorf("load image %s: %w", path, err)
	}
	return img, nil
}
