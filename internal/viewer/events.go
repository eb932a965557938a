package viewer

import "sync"

// EventType identifies a viewer event.
type EventType string

const (
	EventModelLoaded      EventType = "modelLoaded"
	EventModelFailed      EventType = "modelFailed"
	EventTextureUpdated   EventType = "textureUpdated"
	EventTextureFailed    EventType = "textureFailed"
	EventTextureDiscarded EventType = "textureDiscarded"
	EventScreenshotSaved  EventType = "screenshotSaved"
	EventScreenshotFailed EventType = "screenshotFailed"
)

// Event reports the outcome of an asynchronous load.
type Event struct {
	Type  EventType
	Path  string
	Token uint64
	Err   error
}

type listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Event)
}

// Subscribe registers fn for every event and returns a function that removes
// it. fn runs on the frame goroutine and must not block.
func (v *Viewer) Subscribe(fn func(Event)) (unsubscribe func()) {
	l := &v.listeners
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(Event))
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

func (l *listeners) emit(e Event) {
	l.mu.Lock()
	fns := make([]func(Event), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
