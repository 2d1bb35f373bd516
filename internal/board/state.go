package board

import "math"

// Interaction tuning.
const (
	// DragThreshold is how far (screen px) a pointer must travel before a
	// press becomes a drag instead of a selection click.
	DragThreshold = 5.0
	// ResizeSensitivity damps corner-handle resizing so it doesn't feel
	// twitchy.
	ResizeSensitivity = 0.35
)

type Point struct {
	X float64
	Y float64
}

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// State is the pointer interaction state of one note. Exactly one variant is
// active at a time.
type State interface{ pointerState() }

// Idle: no pointer interaction in progress.
type Idle struct{}

// Pending: pointer is down but hasn't crossed the drag threshold. Released
// here it's a selection click, not a move.
type Pending struct {
	Origin     Point // pointer at press, screen px
	NoteOrigin Point // note position at press, content units
	Shift      bool
}

// Dragging: threshold crossed; the note follows the pointer locally until
// release commits the final position.
type Dragging struct {
	Origin     Point
	NoteOrigin Point
	Last       Point
}

// Resizing: corner handle grabbed on an image note.
type Resizing struct {
	Center        Point // note center, content units
	StartDistance float64
	StartScale    float64
}

func (Idle) pointerState()     {}
func (Pending) pointerState()  {}
func (Dragging) pointerState() {}
func (Resizing) pointerState() {}
