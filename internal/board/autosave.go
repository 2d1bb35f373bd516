package board

import (
	"sync"
	"time"
)

// SaveDebounce is the quiet period before an in-progress edit autosaves.
const SaveDebounce = 200 * time.Millisecond

// Autosave is a cancellable scheduled save owned by an edit session. Schedule
// resets the quiet-period timer; Flush saves immediately; Cancel drops the
// pending text without saving.
type Autosave struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	save    func(string)
	pending string
	armed   bool
}

func NewAutosave(delay time.Duration, save func(string)) *Autosave {
	return &Autosave{delay: delay, save: save}
}

func (a *Autosave) Schedule(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending = text
	a.armed = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, a.fire)
}

func (a *Autosave) fire() {
	a.mu.Lock()
	if !a.armed {
		a.mu.Unlock()
		return
	}
	text := a.pending
	a.armed = false
	a.mu.Unlock()

	a.save(text)
}

// Flush saves any pending text now.
func (a *Autosave) Flush() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	armed := a.armed
	text := a.pending
	a.armed = false
	a.mu.Unlock()

	if armed {
		a.save(text)
	}
}

// Cancel drops any pending save. An edit in flight at teardown is lost.
func (a *Autosave) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}
	a.armed = false
}
