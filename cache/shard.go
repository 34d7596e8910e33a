package cache

import "sync"

// shard is an independent partition of the store with its own lock and map.
// There is no ordering list: entries are only ever overwritten, never evicted.
type shard[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]Entry[V]
}

func newShard[K comparable, V any]() *shard[K, V] {
	return &shard[K, V]{m: make(map[K]Entry[V])}
}

func (s *shard[K, V]) get(k K) (Entry[V], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.m[k]
	return e, ok
}

// put overwrites unconditionally; concurrent writers race and the last one wins.
func (s *shard[K, V]) put(k K, e Entry[V]) {
	s.mu.Lock()
	s.m[k] = e
	s.mu.Unlock()
}

func (s *shard[K, V]) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
