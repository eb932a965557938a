package capture

import (
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPixelsFlipsRows(t *testing.T) {
	// Two rows, bottom row red, top row blue, as GL returns them.
	pixels := []byte{
		255, 0, 0, 255, 255, 0, 0, 255,
		0, 0, 255, 255, 0, 0, 255, 255,
	}
	img, err := FromPixels(pixels, 2, 2)
	require.NoError(t, err)

	assert.Equal(t, color.RGBA{B: 255, A: 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(1, 1))
}

func TestFromPixelsRejectsBadInput(t *testing.T) {
	_, err := FromPixels(make([]byte, 12), 2, 2)
	assert.Error(t, err)

	_, err = FromPixels(nil, 0, 2)
	assert.Error(t, err)
}

func TestSavePixelsWritesUniqueFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	c := New(dir, "mirror")
	c.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	pixels := make([]byte, 3*2*4)
	first, err := c.SavePixels(pixels, 3, 2)
	require.NoError(t, err)
	second, err := c.SavePixels(pixels, 3, 2)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "mirror_2026-01-02_03-04-05.png"), first)
	assert.Equal(t, filepath.Join(dir, "mirror_2026-01-02_03-04-05_1.png"), second)

	f, err := os.Open(second)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
}
