// Package input defines window-system-independent input events and
// tracks pointer drag state between them.
package input

// EventType identifies an input event.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventKeyDown
	EventKeyUp
	EventMouseMove
	EventMouseDown
	EventMouseUp
	EventMouseWheel
)

// Key is a layout-independent key code.
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeyR
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyP
)

// Digit returns 1..9 for the number keys and 0 otherwise.
func (k Key) Digit() int {
	if k >= Key1 && k <= Key9 {
		return int(k-Key1) + 1
	}
	return 0
}

// Mouse buttons, numbered like SDL.
const (
	ButtonLeft   uint8 = 1
	ButtonMiddle uint8 = 2
	ButtonRight  uint8 = 3
)

// Event represents a processed input event.
type Event struct {
	Type   EventType
	Key    Key
	Width  int
	Height int
	MouseX int
	MouseY int
	Button uint8
	// WheelY is positive when scrolling away from the user.
	WheelY float32
}

// DragMode says what a held pointer is doing.
type DragMode int

const (
	DragNone DragMode = iota
	DragRotate
	DragPan
)

// Pointer converts button and motion events into drag deltas.
type Pointer struct {
	mode         DragMode
	lastX, lastY int
}

// Mode returns the current drag mode.
func (p *Pointer) Mode() DragMode {
	return p.mode
}

// Handle consumes one event and returns the drag delta in pixels it produced.
// The mode reported is the one active during that motion.
func (p *Pointer) Handle(e Event) (mode DragMode, dx, dy float32) {
	switch e.Type {
	case EventMouseDown:
		switch e.Button {
		case ButtonLeft:
			p.mode = DragRotate
		case ButtonRight, ButtonMiddle:
			p.mode = DragPan
		default:
			return DragNone, 0, 0
		}
		p.lastX, p.lastY = e.MouseX, e.MouseY
	case EventMouseUp:
		p.mode = DragNone
	case EventMouseMove:
		if p.mode == DragNone {
			return DragNone, 0, 0
		}
		dx = float32(e.MouseX - p.lastX)
		dy = float32(e.MouseY - p.lastY)
		p.lastX, p.lastY = e.MouseX, e.MouseY
		return p.mode, dx, dy
	}
	return DragNone, 0, 0
}
