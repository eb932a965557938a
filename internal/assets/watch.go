package assets

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/mirror-viewer/internal/logger"
)

// DefaultSettle is how long a file must stay quiet before a change is reported.
const DefaultSettle = 150 * time.Millisecond

// Watcher reports changed files under the manager's roots. Each change drops
// the cached bytes before the callback runs.
type Watcher struct {
	manager  *Manager
	watcher  *fsnotify.Watcher
	onChange func(path string)
	settle   time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher watches every root directory of m. onChange receives the
// absolute path of a file that was written or recreated; it runs on the
// watcher goroutine.
func NewWatcher(m *Manager, onChange func(path string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		manager:  m,
		watcher:  fw,
		onChange: onChange,
		settle:   DefaultSettle,
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}

	for _, root := range m.Roots() {
		if err := fw.Add(root); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", root, err)
		}
		logger.Debug("watching asset root", zap.String("root", root))
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(filepath.Clean(event.Name))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("asset watcher error", zap.Error(err))

		case <-w.done:
			return
		}
	}
}

// schedule coalesces bursts of events for one file into a single report.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}

		w.manager.Invalidate(path)
		logger.Info("asset changed", zap.String("path", path))
		if w.onChange != nil {
			w.onChange(path)
		}
	})
}

// Close stops watching. Pending reports are dropped.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()

	w.mu.Lock()
	for _, t := range w.pending {
		t.Stop()
	}
	w.pending = nil
	w.mu.Unlock()
	return err
}
