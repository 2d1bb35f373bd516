package roomsync

import (
	"log"
	"sort"
	"sync"
	"time"

	"reizoko/internal/store"
)

// RetryDelay is how long the one automatic retry of a failed initial fetch
// waits.
const RetryDelay = 3 * time.Second

// Codec maps between typed records and store documents.
type Codec[T any] struct {
	Decode    func(store.Record) T
	Encode    func(T) store.Record
	ID        func(T) string
	CreatedAt func(T) int64
}

// Sync bridges one room collection to an ordered in-memory snapshot plus a
// connectivity flag, and write-throughs add/update/remove operations.
//
// Write failures are fire-and-forget: they are logged and the local state is
// left optimistic until the next store delivery corrects it. Subscription
// errors flip Connected off but never drop already-loaded data.
type Sync[T any] struct {
	store      store.Store
	collection string
	codec      Codec[T]

	mu         sync.Mutex
	roomID     string
	records    []T
	connected  bool
	unsub      func()
	retryTimer *time.Timer
	retried    bool
	retryDelay time.Duration
	onChange   func([]T, bool)
}

func New[T any](st store.Store, collection string, codec Codec[T]) *Sync[T] {
	return &Sync[T]{
		store:      st,
		collection: collection,
		codec:      codec,
		retryDelay: RetryDelay,
	}
}

// OnChange registers a listener invoked with the snapshot and connectivity
// flag after every change. Must be set before Start.
func (s *Sync[T]) OnChange(fn func([]T, bool)) {
	s.onChange = fn
}

// Start attaches to a room. An empty room id detaches and clears local state.
func (s *Sync[T]) Start(roomID string) {
	s.Stop()

	s.mu.Lock()
	s.roomID = roomID
	s.records = nil
	s.retried = false
	s.mu.Unlock()

	if roomID == "" {
		s.emit()
		return
	}

	s.fetch(roomID)

	unsub := s.store.Subscribe(roomID, s.collection,
		func(snapshot []store.Record) { s.apply(roomID, snapshot) },
		func(err error) {
			log.Printf("roomsync: %s/%s subscription error: %v", roomID, s.collection, err)
			s.setConnected(roomID, false)
		})

	s.mu.Lock()
	s.unsub = unsub
	s.mu.Unlock()
}

// Stop tears down the subscription and any pending retry. Local records stay
// until the next Start.
func (s *Sync[T]) Stop() {
	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.connected = false
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (s *Sync[T]) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Sync[T]) Snapshot() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, len(s.records))
	copy(out, s.records)
	return out
}

// Add writes the full record through at the caller-allocated id and appends it
// optimistically.
func (s *Sync[T]) Add(rec T) {
	s.mu.Lock()
	roomID := s.roomID
	s.records = append(s.records, rec)
	s.sortLocked()
	s.mu.Unlock()
	s.emit()

	if roomID == "" {
		return
	}
	if err := s.store.SetByID(roomID, s.collection, s.codec.ID(rec), s.codec.Encode(rec)); err != nil {
		log.Printf("roomsync: %s/%s add failed: %v", roomID, s.collection, err)
	}
}

// Update writes only the supplied fields through and replaces the local record
// with the full new value.
func (s *Sync[T]) Update(rec T, fields store.Record) {
	id := s.codec.ID(rec)

	s.mu.Lock()
	roomID := s.roomID
	for i := range s.records {
		if s.codec.ID(s.records[i]) == id {
			s.records[i] = rec
			break
		}
	}
	s.mu.Unlock()
	s.emit()

	if roomID == "" {
		return
	}
	if err := s.store.UpdateFields(roomID, s.collection, id, fields); err != nil {
		log.Printf("roomsync: %s/%s update failed: %v", roomID, s.collection, err)
	}
}

// Remove deletes by id and filters local state immediately.
func (s *Sync[T]) Remove(id string) {
	s.mu.Lock()
	roomID := s.roomID
	kept := s.records[:0]
	for _, rec := range s.records {
		if s.codec.ID(rec) != id {
			kept = append(kept, rec)
		}
	}
	s.records = kept
	s.mu.Unlock()
	s.emit()

	if roomID == "" {
		return
	}
	if err := s.store.DeleteByID(roomID, s.collection, id); err != nil {
		log.Printf("roomsync: %s/%s remove failed: %v", roomID, s.collection, err)
	}
}

func (s *Sync[T]) fetch(roomID string) {
	snapshot, err := s.store.GetAll(roomID, s.collection)
	if err == nil {
		s.apply(roomID, snapshot)
		return
	}
	log.Printf("roomsync: %s/%s initial fetch failed: %v", roomID, s.collection, err)
	s.setConnected(roomID, false)

	s.mu.Lock()
	if s.retried || s.roomID != roomID {
		s.mu.Unlock()
		return
	}
	s.retried = true
	s.retryTimer = time.AfterFunc(s.retryDelay, func() { s.fetch(roomID) })
	s.mu.Unlock()
}

func (s *Sync[T]) apply(roomID string, snapshot []store.Record) {
	s.mu.Lock()
	if s.roomID != roomID {
		s.mu.Unlock()
		return
	}
	records := make([]T, 0, len(snapshot))
	for _, rec := range snapshot {
		records = append(records, s.codec.Decode(rec))
	}
	s.records = records
	s.sortLocked()
	s.connected = true
	s.mu.Unlock()
	s.emit()
}

func (s *Sync[T]) setConnected(roomID string, connected bool) {
	s.mu.Lock()
	if s.roomID != roomID {
		s.mu.Unlock()
		return
	}
	s.connected = connected
	s.mu.Unlock()
	s.emit()
}

func (s *Sync[T]) sortLocked() {
	sort.SliceStable(s.records, func(i, j int) bool {
		return s.codec.CreatedAt(s.records[i]) < s.codec.CreatedAt(s.records[j])
	})
}

func (s *Sync[T]) emit() {
	if s.onChange == nil {
		return
	}
	s.mu.Lock()
	snapshot := make([]T, len(s.records))
	copy(snapshot, s.records)
	connected := s.connected
	s.mu.Unlock()
	s.onChange(snapshot, connected)
}

// SetRetryDelay overrides the fetch retry delay. Tests use this.
func (s *Sync[T]) SetRetryDelay(d time.Duration) {
	s.retryDelay = d
}
