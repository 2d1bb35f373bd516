package calendar

import (
	"container/list"
	"strings"
	"sync"

	"reizoko/internal/models"
)

const MaxCacheSize = 150

type cacheEntry struct {
	key         string
	occurrences []models.EventOccurrence
}

// Cache memoizes expanded occurrence windows per room so repeated month/week
// views don't re-walk every series. Entries are evicted LRU and invalidated
// by room whenever an event in that room changes.
type Cache struct {
	mu      sync.RWMutex
	items   map[string]*list.Element
	order   *list.List
	maxSize int
}

func NewCache() *Cache {
	return &Cache{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: MaxCacheSize,
	}
}

func key(roomID, startDate, endDate string) string {
	return roomID + "|" + startDate + "|" + endDate
}

func (c *Cache) Get(roomID, startDate, endDate string) ([]models.EventOccurrence, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if elem, ok := c.items[key(roomID, startDate, endDate)]; ok {
		return elem.Value.(*cacheEntry).occurrences, true
	}
	return nil, false
}

func (c *Cache) Set(roomID, startDate, endDate string, occurrences []models.EventOccurrence) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(roomID, startDate, endDate)
	if elem, ok := c.items[k]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).occurrences = occurrences
		return
	}

	if c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			entry := oldest.Value.(*cacheEntry)
			delete(c.items, entry.key)
			c.order.Remove(oldest)
		}
	}

	elem := c.order.PushFront(&cacheEntry{key: k, occurrences: occurrences})
	c.items[k] = elem
}

// InvalidateRoom drops every cached window for the room.
func (c *Cache) InvalidateRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := roomID + "|"
	for k, elem := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
			c.order.Remove(elem)
		}
	}
}
