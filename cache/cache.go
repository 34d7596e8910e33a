package cache

import (
	"time"

	"github.com/IvanBrykalov/sectionloader/internal/util"
	"github.com/zoobzio/clockz"
)

// store is a sharded map of timestamped entries.
// All methods are safe for concurrent use by multiple goroutines.
type store[K comparable, V any] struct {
	shards []*shard[K, V]
	hash   func(K) uint64

	opt Options

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
	stale  util.PaddedAtomicInt64
}

// New constructs a store with the provided Options.
// Defaults:
//   - nil Metrics  -> NoopMetrics
//   - nil Clock    -> clockz.RealClock
//   - Shards       -> normalized by util.ShardCount (auto when <= 0)
func New[K comparable, V any](opt Options) Store[K, V] {
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Clock == nil {
		opt.Clock = clockz.RealClock
	}

	cs := make([]*shard[K, V], util.ShardCount(opt.Shards))
	for i := range cs {
		cs[i] = newShard[K, V]()
	}

	return &store[K, V]{
		shards: cs,
		hash:   util.Fnv64a[K],
		opt:    opt,
	}
}

// Get returns the raw entry for k, valid or not.
func (s *store[K, V]) Get(k K) (Entry[V], bool) {
	return s.getShard(k).get(k)
}

// Put inserts or overwrites the entry for k.
func (s *store[K, V]) Put(k K, v V, stored time.Time) {
	s.getShard(k).put(k, Entry[V]{Value: v, Stored: stored})
	s.opt.Metrics.Size(s.Len())
}

// Valid reports whether e was stored less than d ago.
func (s *store[K, V]) Valid(e Entry[V], d time.Duration) bool {
	if d <= 0 {
		return false
	}
	return e.Age(s.Now()) < d
}

// Lookup is Get followed by Valid. A stale entry is left in place.
func (s *store[K, V]) Lookup(k K, d time.Duration) (V, bool) {
	var zero V
	e, ok := s.Get(k)
	if !ok {
		s.misses.Add(1)
		s.opt.Metrics.Miss()
		return zero, false
	}
	if !s.Valid(e, d) {
		s.stale.Add(1)
		s.misses.Add(1)
		s.opt.Metrics.Stale()
		s.opt.Metrics.Miss()
		return zero, false
	}
	s.hits.Add(1)
	s.opt.Metrics.Hit()
	return e.Value, true
}

// Now returns the current time of the configured clock.
func (s *store[K, V]) Now() time.Time { return s.opt.Clock.Now() }

// Stats returns the Lookup counters accumulated since New.
func (s *store[K, V]) Stats() Stats {
	return Stats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
		Stale:  s.stale.Load(),
	}
}

// Len returns the total number of resident entries across all shards.
func (s *store[K, V]) Len() int {
	total := 0
	for _, sh := range s.shards {
		total += sh.len()
	}
	return total
}

// getShard picks a shard by hashing the key.
// len(s.shards) is guaranteed to be a power of two.
func (s *store[K, V]) getShard(k K) *shard[K, V] {
	return s.shards[util.ShardIndex(s.hash(k), len(s.shards))]
}
