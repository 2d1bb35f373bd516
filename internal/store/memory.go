package store

import (
	"sort"
	"sync"
	"time"

	"reizoko/internal/models"
)

// Memory keeps everything in process. Used by tests and as a throwaway-mode
// backend; semantics match SQLite.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string]int64 // roomID -> last_active millis
	docs  map[string]map[string]Record
	hub   *hub
}

func NewMemory() *Memory {
	return &Memory{
		rooms: make(map[string]int64),
		docs:  make(map[string]map[string]Record),
		hub:   newHub(),
	}
}

func (m *Memory) CreateRoom(roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomID]; !ok {
		m.rooms[roomID] = time.Now().UnixMilli()
	}
	return nil
}

func (m *Memory) Exists(roomID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[roomID]
	return ok, nil
}

func (m *Memory) GetAll(roomID, collection string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(roomID, collection), nil
}

func (m *Memory) Subscribe(roomID, collection string, onChange func([]Record), onError func(error)) func() {
	key := collectionKey(roomID, collection)
	unsub := m.hub.subscribe(key, subscriber{onChange: onChange, onError: onError})

	go m.broadcast(roomID, collection)

	return unsub
}

func (m *Memory) SetByID(roomID, collection, id string, rec Record) error {
	m.mu.Lock()
	key := collectionKey(roomID, collection)
	if m.docs[key] == nil {
		m.docs[key] = make(map[string]Record)
	}
	m.docs[key][id] = Clone(rec)
	m.rooms[roomID] = time.Now().UnixMilli()
	m.mu.Unlock()

	m.broadcast(roomID, collection)
	return nil
}

func (m *Memory) UpdateFields(roomID, collection, id string, fields Record) error {
	m.mu.Lock()
	key := collectionKey(roomID, collection)
	rec, ok := m.docs[key][id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	for k, v := range fields {
		rec[k] = v
	}
	m.rooms[roomID] = time.Now().UnixMilli()
	m.mu.Unlock()

	m.broadcast(roomID, collection)
	return nil
}

func (m *Memory) DeleteByID(roomID, collection, id string) error {
	m.mu.Lock()
	delete(m.docs[collectionKey(roomID, collection)], id)
	m.rooms[roomID] = time.Now().UnixMilli()
	m.mu.Unlock()

	m.broadcast(roomID, collection)
	return nil
}

func (m *Memory) snapshot(roomID, collection string) []Record {
	docs := m.docs[collectionKey(roomID, collection)]
	out := make([]Record, 0, len(docs))
	for _, rec := range docs {
		out = append(out, Clone(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		return models.Millis(out[i]["createdAt"]) < models.Millis(out[j]["createdAt"])
	})
	return out
}

func (m *Memory) broadcast(roomID, collection string) {
	m.mu.RLock()
	snapshot := m.snapshot(roomID, collection)
	m.mu.RUnlock()

	m.hub.notify(collectionKey(roomID, collection), snapshot)
}
