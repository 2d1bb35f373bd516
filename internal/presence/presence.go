package presence

import (
	"sync"
	"time"
)

const DefaultTTL = 60 * time.Second

// Tracker keeps the set of recently-seen users per room. Clients heartbeat
// while a room view is open; entries expire after the TTL with no persistence
// — presence is inherently ephemeral.
type Tracker struct {
	mu    sync.RWMutex
	rooms map[string]map[string]time.Time // roomID -> userID -> last seen
	ttl   time.Duration
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

func New(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	t := &Tracker{
		rooms: make(map[string]map[string]time.Time),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
	}

	go t.pruneLoop()

	return t
}

// Heartbeat marks the user online in the room.
func (t *Tracker) Heartbeat(roomID, userID string) {
	if roomID == "" || userID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rooms[roomID] == nil {
		t.rooms[roomID] = make(map[string]time.Time)
	}
	t.rooms[roomID][userID] = t.now()
}

// Online reports whether the user heartbeated within the TTL.
func (t *Tracker) Online(roomID, userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen, ok := t.rooms[roomID][userID]
	return ok && t.now().Sub(seen) <= t.ttl
}

// OnlineUsers returns the ids currently online in the room.
func (t *Tracker) OnlineUsers(roomID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []string
	for userID, seen := range t.rooms[roomID] {
		if t.now().Sub(seen) <= t.ttl {
			out = append(out, userID)
		}
	}
	return out
}

func (t *Tracker) pruneLoop() {
	ticker := time.NewTicker(t.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.prune()
		case <-t.stop:
			return
		}
	}
}

func (t *Tracker) prune() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for roomID, users := range t.rooms {
		for userID, seen := range users {
			if t.now().Sub(seen) > t.ttl {
				delete(users, userID)
			}
		}
		if len(users) == 0 {
			delete(t.rooms, roomID)
		}
	}
}

func (t *Tracker) Shutdown() {
	t.once.Do(func() { close(t.stop) })
}
