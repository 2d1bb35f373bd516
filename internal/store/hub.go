package store

import "sync"

type subscriber struct {
	onChange func([]Record)
	onError  func(error)
}

// hub fans collection snapshots out to subscribers. Callbacks run outside the
// hub lock, so a callback may re-enter the store.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]subscriber
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[int]subscriber)}
}

func (h *hub) subscribe(key string, sub subscriber) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	id := h.next
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]subscriber)
	}
	h.subs[key][id] = sub

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[key], id)
	}
}

func (h *hub) notify(key string, snapshot []Record) {
	for _, sub := range h.snapshotSubs(key) {
		sub.onChange(snapshot)
	}
}

func (h *hub) fail(key string, err error) {
	for _, sub := range h.snapshotSubs(key) {
		if sub.onError != nil {
			sub.onError(err)
		}
	}
}

func (h *hub) snapshotSubs(key string) []subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]subscriber, 0, len(h.subs[key]))
	for _, sub := range h.subs[key] {
		out = append(out, sub)
	}
	return out
}
