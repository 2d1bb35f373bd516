package board

import (
	"sync"
	"time"

	"reizoko/internal/models"
)

// ColorPickGuard swallows the color selection that the same click which
// opened the picker would otherwise register.
const ColorPickGuard = 150 * time.Millisecond

// FontSizePresets are the three quick sizes in the toolbar; the free-entry
// input accepts anything and gets clamped.
var FontSizePresets = []int{12, 16, 20}

type Popover int

const (
	PopoverNone Popover = iota
	PopoverColor
	PopoverSize
)

// Committer receives the engine's persisted mutations. All commits are
// fire-and-forget; nothing here is fatal.
type Committer interface {
	CommitUpdate(note models.StickyNote, fields map[string]any)
	CommitDelete(id string)
}

// Engine drives one note's pointer interaction: drag, resize, inline editing
// with debounced autosave, and toolbar styling. Position changes during a drag
// are local until pointer-up commits them.
type Engine struct {
	mu sync.Mutex

	note  models.StickyNote
	state State

	origin Point // board origin in screen px
	zoom   float64

	selected bool
	editing  bool
	buffer   string

	popover       Popover
	popoverOpened time.Time

	commit   Committer
	saver    *Autosave
	now      func() time.Time
	onSelect func(id string, additive bool)
}

func NewEngine(note models.StickyNote, commit Committer) *Engine {
	e := &Engine{
		note:   note,
		state:  Idle{},
		zoom:   1,
		commit: commit,
		now:    time.Now,
	}
	e.saver = NewAutosave(SaveDebounce, e.saveText)
	return e
}

// OnSelect registers the canvas selection callback.
func (e *Engine) OnSelect(fn func(id string, additive bool)) {
	e.onSelect = fn
}

func (e *Engine) SetViewport(origin Point, zoom float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.origin = origin
	if zoom > 0 {
		e.zoom = zoom
	}
}

func (e *Engine) Note() models.StickyNote {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.note
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Selected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

func (e *Engine) SetSelected(selected bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = selected
	if !selected {
		e.popover = PopoverNone
	}
}

func (e *Engine) Editing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editing
}

// Apply replaces the note with a fresh store snapshot unless an interaction
// is mid-flight; clobbering a drag or an open editor with remote state would
// throw the pointer off.
func (e *Engine) Apply(note models.StickyNote) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, idle := e.state.(Idle); !idle || e.editing {
		return
	}
	e.note = note
}

// PointerDown arms a press. Whether it becomes a drag or a selection click is
// decided by how far the pointer moves before release.
func (e *Engine) PointerDown(p Point, shift bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Pending{
		Origin:     p,
		NoteOrigin: Point{X: e.note.X, Y: e.note.Y},
		Shift:      shift,
	}
}

// StartResize grabs a corner handle. Only image notes resize, and only while
// selected.
func (e *Engine) StartResize(p Point) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.note.ImageURL == "" || !e.selected {
		return false
	}

	scale := e.note.ImageScale
	if scale == 0 {
		scale = models.DefaultImageScale
	}
	center := Point{
		X: e.note.X + models.NoteBaseWidth*scale/2,
		Y: e.note.Y + models.NoteBaseHeight*scale/2,
	}
	d := dist(e.toContent(p), center)
	if d == 0 {
		return false
	}

	e.state = Resizing{Center: center, StartDistance: d, StartScale: scale}
	return true
}

func (e *Engine) PointerMove(p Point) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch st := e.state.(type) {
	case Pending:
		if dist(p, st.Origin) < DragThreshold {
			return
		}
		drag := Dragging{Origin: st.Origin, NoteOrigin: st.NoteOrigin, Last: p}
		e.state = drag
		e.moveTo(drag, p)
	case Dragging:
		st.Last = p
		e.state = st
		e.moveTo(st, p)
	case Resizing:
		ratio := dist(e.toContent(p), st.Center) / st.StartDistance
		scale := st.StartScale * (1 + (ratio-1)*ResizeSensitivity)
		if scale < models.MinImageScale {
			scale = models.MinImageScale
		}
		if scale > models.MaxImageScale {
			scale = models.MaxImageScale
		}
		e.note.ImageScale = scale
	}
}

// PointerUp ends the interaction: a real drag or resize commits once, a
// sub-threshold press turns into a selection click and commits nothing.
func (e *Engine) PointerUp(p Point) {
	e.mu.Lock()

	switch st := e.state.(type) {
	case Pending:
		e.state = Idle{}
		id, shift, fn := e.note.ID, st.Shift, e.onSelect
		e.mu.Unlock()
		if fn != nil {
			fn(id, shift)
		}
		return
	case Dragging:
		e.moveTo(st, p)
		e.state = Idle{}
		note := e.note
		e.mu.Unlock()
		e.commit.CommitUpdate(note, map[string]any{"x": note.X, "y": note.Y})
		return
	case Resizing:
		e.state = Idle{}
		note := e.note
		e.mu.Unlock()
		e.commit.CommitUpdate(note, map[string]any{"imageScale": note.ImageScale})
		return
	}

	e.state = Idle{}
	e.mu.Unlock()
}

// moveTo tracks the pointer in content space: raw screen delta divided by
// zoom. Caller holds the lock.
func (e *Engine) moveTo(st Dragging, p Point) {
	e.note.X = st.NoteOrigin.X + (p.X-st.Origin.X)/e.zoom
	e.note.Y = st.NoteOrigin.Y + (p.Y-st.Origin.Y)/e.zoom
}

func (e *Engine) toContent(p Point) Point {
	return Point{X: (p.X - e.origin.X) / e.zoom, Y: (p.Y - e.origin.Y) / e.zoom}
}

// StartEdit enters inline editing, seeding the buffer with the display form
// (bulleted notes get their glyphs here, not in storage).
func (e *Engine) StartEdit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.editing = true
	e.buffer = DisplayText(e.note.Text, e.note.ListStyle)
}

func (e *Engine) Buffer() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer
}

// SetBuffer replaces the edit buffer and schedules a debounced save of the
// stripped text.
func (e *Engine) SetBuffer(text string) {
	e.mu.Lock()
	if !e.editing {
		e.mu.Unlock()
		return
	}
	e.buffer = text
	stored := e.stored(text)
	e.mu.Unlock()

	e.saver.Schedule(stored)
}

// InsertNewline handles Enter while editing: bulleted notes get a fresh
// bullet marker in the buffer.
func (e *Engine) InsertNewline() {
	e.mu.Lock()
	if !e.editing {
		e.mu.Unlock()
		return
	}
	if e.note.ListStyle == "bullet" {
		e.buffer += "\n" + bulletPrefix
	} else {
		e.buffer += "\n"
	}
	stored := e.stored(e.buffer)
	e.mu.Unlock()

	e.saver.Schedule(stored)
}

// Blur leaves edit mode and commits the buffer unconditionally.
func (e *Engine) Blur() {
	e.saver.Cancel()

	e.mu.Lock()
	if !e.editing {
		e.mu.Unlock()
		return
	}
	e.editing = false
	text := e.stored(e.buffer)
	e.note.Text = text
	note := e.note
	e.mu.Unlock()

	e.commit.CommitUpdate(note, map[string]any{"text": text})
}

// Close tears the engine down, abandoning any pending debounced save.
func (e *Engine) Close() {
	e.saver.Cancel()
}

func (e *Engine) stored(buffer string) string {
	if e.note.ListStyle == "bullet" {
		return StripBullets(buffer)
	}
	return buffer
}

func (e *Engine) saveText(text string) {
	e.mu.Lock()
	e.note.Text = text
	note := e.note
	e.mu.Unlock()

	e.commit.CommitUpdate(note, map[string]any{"text": text})
}

// OpenColorPicker opens the color popover, closing the size menu; the two are
// never open together.
func (e *Engine) OpenColorPicker() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.popover = PopoverColor
	e.popoverOpened = e.now()
}

func (e *Engine) OpenSizeMenu() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.popover = PopoverSize
	e.popoverOpened = e.now()
}

func (e *Engine) ClosePopovers() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.popover = PopoverNone
}

func (e *Engine) OpenPopover() Popover {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.popover
}

// SetColor applies a palette color. A selection landing within the guard
// window after the picker opened is the opening click bleeding through, and
// is dropped.
func (e *Engine) SetColor(name string) {
	e.mu.Lock()
	if e.popover == PopoverColor && e.now().Sub(e.popoverOpened) < ColorPickGuard {
		e.mu.Unlock()
		return
	}
	if !models.ValidColor(name) {
		e.mu.Unlock()
		return
	}
	e.note.Color = name
	e.popover = PopoverNone
	note := e.note
	e.mu.Unlock()

	e.commit.CommitUpdate(note, map[string]any{"color": name})
}

func (e *Engine) SetFontSize(size int) {
	if size < models.MinFontSize {
		size = models.MinFontSize
	}
	if size > models.MaxFontSize {
		size = models.MaxFontSize
	}

	e.mu.Lock()
	e.note.FontSize = size
	note := e.note
	e.mu.Unlock()

	e.commit.CommitUpdate(note, map[string]any{"fontSize": size})
}

func (e *Engine) ToggleBold() {
	e.mu.Lock()
	if e.note.FontWeight == "bold" {
		e.note.FontWeight = "normal"
	} else {
		e.note.FontWeight = "bold"
	}
	note := e.note
	e.mu.Unlock()

	e.commit.CommitUpdate(note, map[string]any{"fontWeight": note.FontWeight})
}

func (e *Engine) ToggleItalic() {
	e.mu.Lock()
	if e.note.FontStyle == "italic" {
		e.note.FontStyle = "normal"
	} else {
		e.note.FontStyle = "italic"
	}
	note := e.note
	e.mu.Unlock()

	e.commit.CommitUpdate(note, map[string]any{"fontStyle": note.FontStyle})
}

// ToggleBullets flips the list style flag. The stored text is untouched; the
// glyphs are purely presentational.
func (e *Engine) ToggleBullets() {
	e.mu.Lock()
	if e.note.ListStyle == "bullet" {
		e.note.ListStyle = "none"
	} else {
		e.note.ListStyle = "bullet"
	}
	if e.editing {
		e.buffer = DisplayText(e.note.Text, e.note.ListStyle)
	}
	note := e.note
	e.mu.Unlock()

	e.commit.CommitUpdate(note, map[string]any{"listStyle": note.ListStyle})
}

func (e *Engine) Delete() {
	e.saver.Cancel()

	e.mu.Lock()
	id := e.note.ID
	e.mu.Unlock()

	e.commit.CommitDelete(id)
}

// setNow is a test hook for the popover guard clock.
func (e *Engine) setNow(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// setSaveDebounce is a test hook shortening the autosave quiet period.
func (e *Engine) setSaveDebounce(d time.Duration) {
	e.saver.delay = d
}
