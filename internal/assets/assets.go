// Package assets resolves, fetches and caches viewer assets: glTF models and
// texture images from local roots or http(s) URLs.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/mirror-viewer/internal/logger"
)

// ErrNotFound is returned when no root contains the requested file.
var ErrNotFound = errors.New("asset not found")

// Options configures a Manager.
type Options struct {
	// Roots are searched last to first, so later roots override earlier ones.
	Roots []string
	// Cache keeps fetched bytes in memory until invalidated.
	Cache bool
	// MaxTextureSize bounds the longer side of decoded images. 0 disables it.
	MaxTextureSize int
	// Client fetches http(s) assets. nil uses http.DefaultClient.
	Client *http.Client
}

// Manager loads assets from local roots and URLs.
// It is safe for concurrent use.
type Manager struct {
	roots          []string
	cache          *Cache
	client         *http.Client
	maxTextureSize int
	mu             sync.RWMutex
}

// NewManager creates a new asset manager.
func NewManager(opts Options) *Manager {
	m := &Manager{
		client:         opts.Client,
		maxTextureSize: opts.MaxTextureSize,
	}
	if m.client == nil {
		m.client = http.DefaultClient
	}
	if opts.Cache {
		m.cache = NewCache()
	}
	for _, root := range opts.Roots {
		m.AddRoot(root)
	}
	return m
}

// AddRoot adds a directory to search. It takes priority over earlier roots.
func (m *Manager) AddRoot(dir string) {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	m.mu.Lock()
	m.roots = append(m.roots, dir)
	m.mu.Unlock()
}

// Roots returns the search roots in priority order, highest last.
func (m *Manager) Roots() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.roots...)
}

// Cache returns the byte cache, or nil when caching is disabled.
func (m *Manager) Cache() *Cache {
	return m.cache
}

// IsURL reports whether path names an http(s) resource.
func IsURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// Resolve returns the cache key of path: the URL itself, or the absolute path
// of the first matching file under the roots.
func (m *Manager) Resolve(path string) (string, error) {
	if IsURL(path) {
		return path, nil
	}
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return filepath.Clean(path), nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.roots) - 1; i >= 0; i-- {
		candidate := filepath.Join(m.roots[i], filepath.FromSlash(path))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, path)
}

// Load returns the bytes of path.
func (m *Manager) Load(ctx context.Context, path string) ([]byte, error) {
	key, err := m.Resolve(path)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		if data, ok := m.cache.Get(key); ok {
			return data, nil
		}
	}

	var data []byte
	if IsURL(key) {
		data, err = m.fetch(ctx, key)
	} else {
		data, err = os.ReadFile(key)
	}
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		m.cache.Set(key, data)
	}
	logger.Debug("asset loaded", zap.String("path", path), zap.String("source", key), zap.Int("bytes", len(data)))
	return data, nil
}

func (m *Manager) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", url, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return data, nil
}

// Invalidate drops the cached bytes of a resolved path or URL.
func (m *Manager) Invalidate(key string) {
	if m.cache != nil {
		m.cache.Delete(key)
	}
}

// dirFS returns a file system rooted at the directory of a resolved local
// path, for resources referenced relative to it. URLs get nil.
func dirFS(key string) fs.FS {
	if IsURL(key) {
		return nil
	}
	return os.DirFS(filepath.Dir(key))
}
