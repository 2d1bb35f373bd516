package board

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"reizoko/internal/models"
	"reizoko/internal/roomsync"
)

// Identity is the session author stamped onto new notes. Denormalized at
// creation time; later profile changes don't rewrite old notes.
type Identity struct {
	Name   string
	IconID string
}

// Canvas composes one Engine per note over a shared coordinate space: routes
// pointer events, owns selection and z-order, and turns clicks on empty space
// into new notes.
type Canvas struct {
	mu sync.Mutex

	sync    *roomsync.Sync[models.StickyNote]
	engines map[string]*Engine
	order   map[string]int
	zTop    int

	selected map[string]struct{}
	dragging string

	origin Point
	zoom   float64
	user   Identity

	newID func() string
	now   func() time.Time
}

// NoteCodec maps sticky notes onto store documents for the sync layer.
var NoteCodec = roomsync.Codec[models.StickyNote]{
	Decode:    models.NoteFromRecord,
	Encode:    models.StickyNote.Record,
	ID:        func(n models.StickyNote) string { return n.ID },
	CreatedAt: func(n models.StickyNote) int64 { return n.CreatedAt },
}

func NewCanvas(s *roomsync.Sync[models.StickyNote], user Identity) *Canvas {
	c := &Canvas{
		sync:     s,
		engines:  make(map[string]*Engine),
		order:    make(map[string]int),
		selected: make(map[string]struct{}),
		zoom:     1,
		user:     user,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	s.OnChange(func(notes []models.StickyNote, _ bool) { c.reconcile(notes) })
	return c
}

// SetViewport updates the board origin and zoom for every engine.
func (c *Canvas) SetViewport(origin Point, zoom float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.origin = origin
	if zoom > 0 {
		c.zoom = zoom
	}
	for _, e := range c.engines {
		e.SetViewport(origin, c.zoom)
	}
}

func (c *Canvas) Connected() bool {
	return c.sync.Connected()
}

func (c *Canvas) Engine(id string) *Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engines[id]
}

func (c *Canvas) Notes() []models.StickyNote {
	return c.sync.Snapshot()
}

// ClickEmpty creates a note centered under the click, in content coordinates
// relative to the board origin, and opens it for editing.
func (c *Canvas) ClickEmpty(p Point) models.StickyNote {
	c.mu.Lock()
	note := models.StickyNote{
		ID:           c.newID(),
		X:            p.X - c.origin.X - models.NoteBaseWidth/2,
		Y:            p.Y - c.origin.Y - models.NoteBaseHeight/2,
		Color:        models.DefaultColor,
		FontSize:     models.DefaultFontSize,
		FontWeight:   "normal",
		FontStyle:    "normal",
		ListStyle:    "none",
		CreatedAt:    c.now().UnixMilli(),
		AuthorName:   c.user.Name,
		AuthorIconID: c.user.IconID,
	}
	e := c.newEngine(note)
	c.mu.Unlock()

	c.sync.Add(note)
	c.Select(note.ID, false)
	e.StartEdit() // autofocus for freshly created notes
	return note
}

// PointerDown starts an interaction on a note and raises it above the rest.
func (c *Canvas) PointerDown(id string, p Point, shift bool) {
	c.mu.Lock()
	e := c.engines[id]
	if e == nil {
		c.mu.Unlock()
		return
	}
	c.zTop++
	c.order[id] = c.zTop
	c.mu.Unlock()

	e.PointerDown(p, shift)
}

func (c *Canvas) PointerMove(id string, p Point) {
	c.mu.Lock()
	e := c.engines[id]
	c.mu.Unlock()
	if e == nil {
		return
	}

	e.PointerMove(p)

	if _, ok := e.State().(Dragging); ok {
		c.mu.Lock()
		c.dragging = id
		c.mu.Unlock()
	}
}

func (c *Canvas) PointerUp(id string, p Point) {
	c.mu.Lock()
	e := c.engines[id]
	if c.dragging == id {
		c.dragging = ""
	}
	c.mu.Unlock()
	if e == nil {
		return
	}

	e.PointerUp(p)
}

// Select makes id the selection; additive (shift-click) toggles it in and out
// of the current set instead.
func (c *Canvas) Select(id string, additive bool) {
	c.mu.Lock()
	if additive {
		if _, ok := c.selected[id]; ok {
			delete(c.selected, id)
		} else {
			c.selected[id] = struct{}{}
		}
	} else {
		c.selected = map[string]struct{}{id: {}}
	}
	for eid, e := range c.engines {
		_, sel := c.selected[eid]
		e.SetSelected(sel)
	}
	c.mu.Unlock()
}

func (c *Canvas) ClearSelection() {
	c.mu.Lock()
	c.selected = make(map[string]struct{})
	for _, e := range c.engines {
		e.SetSelected(false)
	}
	c.mu.Unlock()
}

func (c *Canvas) SelectedIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.selected))
	for id := range c.selected {
		out = append(out, id)
	}
	return out
}

// ToolbarVisible reports whether the note's toolbar should show: selected and
// nothing mid-drag.
func (c *Canvas) ToolbarVisible(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, sel := c.selected[id]
	return sel && c.dragging == ""
}

func (c *Canvas) ZIndex(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order[id]
}

// CommitUpdate implements Committer: field-level write-through via the sync
// layer.
func (c *Canvas) CommitUpdate(note models.StickyNote, fields map[string]any) {
	c.sync.Update(note, fields)
}

// CommitDelete implements Committer.
func (c *Canvas) CommitDelete(id string) {
	c.mu.Lock()
	if e, ok := c.engines[id]; ok {
		e.Close()
		delete(c.engines, id)
	}
	delete(c.selected, id)
	delete(c.order, id)
	c.mu.Unlock()

	c.sync.Remove(id)
}

// reconcile matches the engine set against a fresh snapshot. Engines mid-
// interaction keep their local note; everything else is replaced.
func (c *Canvas) reconcile(notes []models.StickyNote) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]struct{}, len(notes))
	for _, note := range notes {
		seen[note.ID] = struct{}{}
		if e, ok := c.engines[note.ID]; ok {
			e.Apply(note)
		} else {
			c.newEngine(note)
		}
	}

	for id, e := range c.engines {
		if _, ok := seen[id]; !ok {
			e.Close()
			delete(c.engines, id)
			delete(c.selected, id)
			delete(c.order, id)
			if c.dragging == id {
				c.dragging = ""
			}
		}
	}
}

// newEngine wires an engine into the canvas. Caller holds the lock.
func (c *Canvas) newEngine(note models.StickyNote) *Engine {
	e := NewEngine(note, c)
	e.SetViewport(c.origin, c.zoom)
	e.OnSelect(c.Select)
	c.engines[note.ID] = e
	c.zTop++
	c.order[note.ID] = c.zTop
	return e
}
