package ingestion

import (
	"container/list"
	"sync"
)

// SeenCache is an LRU set of recently processed UTxO references. JetStream
// consumers redeliver on missed acks, and the same creation can arrive again
// after a consumer restart; the cache lets the classifier drop those replays
// instead of re-emitting state updates for them.
type SeenCache struct {
	mu       sync.Mutex
	capacity int
	cache    map[string]*list.Element
	lruList  *list.List

	evictions int64
}

type seenEntry struct {
	key string
}

func NewSeenCache(capacity int) *SeenCache {
	if capacity < 1 {
		capacity = 1
	}
	return &SeenCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		lruList:  list.New(),
	}
}

// Seen reports whether key was recorded before, recording it either way.
// A hit promotes the entry to most recently used.
func (s *SeenCache) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, exists := s.cache[key]; exists {
		s.lruList.MoveToFront(elem)
		return true
	}

	elem := s.lruList.PushFront(&seenEntry{key: key})
	s.cache[key] = elem

	if s.lruList.Len() > s.capacity {
		s.evictOldest()
	}
	return false
}

func (s *SeenCache) evictOldest() {
	elem := s.lruList.Back()
	if elem != nil {
		s.lruList.Remove(elem)
		delete(s.cache, elem.Value.(*seenEntry).key)
		s.evictions++
	}
}

// Size returns the current number of entries.
func (s *SeenCache) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lruList.Len()
}

// Evictions returns the number of entries displaced by capacity pressure.
func (s *SeenCache) Evictions() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictions
}
