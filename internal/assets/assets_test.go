package assets

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestResolveLaterRootWins(t *testing.T) {
	base := t.TempDir()
	override := t.TempDir()
	writeFile(t, base, "a.txt", []byte("base"))
	writeFile(t, base, "only-base.txt", []byte("base"))
	want := writeFile(t, override, "a.txt", []byte("override"))

	m := NewManager(Options{Roots: []string{base, override}})

	got, err := m.Resolve("a.txt")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	data, err := m.Load(context.Background(), "only-base.txt")
	require.NoError(t, err)
	assert.Equal(t, "base", string(data))

	_, err = m.Resolve("missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadCachesUntilInvalidated(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tex.png", []byte("v1"))
	m := NewManager(Options{Roots: []string{dir}, Cache: true})
	ctx := context.Background()

	data, err := m.Load(ctx, "tex.png")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	data, err = m.Load(ctx, "tex.png")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data), "second load should come from the cache")

	hits, misses := m.Cache().Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	m.Invalidate(path)
	data, err = m.Load(ctx, "tex.png")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestLoadWithoutCacheReadsEveryTime(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.bin", []byte("v1"))
	m := NewManager(Options{Roots: []string{dir}})

	_, err := m.Load(context.Background(), "a.bin")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	data, err := m.Load(context.Background(), "a.bin")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
	assert.Nil(t, m.Cache())
}

func TestLoadURL(t *testing.T) {
	img := pngBytes(t, 3, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/thumb.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(img)
	}))
	defer srv.Close()

	m := NewManager(Options{Client: srv.Client()})

	rgba, err := m.LoadImage(context.Background(), srv.URL+"/thumb.png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), rgba.Bounds())

	_, err = m.Load(context.Background(), srv.URL+"/missing.png")
	assert.Error(t, err)
}

func TestLoadImageRespectsMaxSize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "big.png", pngBytes(t, 64, 32))
	m := NewManager(Options{Roots: []string{dir}, MaxTextureSize: 16})

	rgba, err := m.LoadImage(context.Background(), "big.png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 8), rgba.Bounds())
}

func TestLoadImageDecodeError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.jpeg", []byte("definitely not a jpeg"))
	m := NewManager(Options{Roots: []string{dir}})

	_, err := m.LoadImage(context.Background(), "broken.jpeg")
	assert.Error(t, err)
}

func TestCacheDelete(t *testing.T) {
	c := NewCache()
	c.Set("k", []byte("v"))
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Delete("k"))
	assert.False(t, c.Delete("k"))
	assert.Equal(t, 0, c.Len())
}
