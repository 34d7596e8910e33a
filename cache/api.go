package cache

import "time"

// Store is a sharded, in-memory key/entry map with age-based validity.
// All methods are safe for concurrent use by multiple goroutines.
//
// Entries are never evicted or deleted: a stale entry is ignored by Lookup
// and superseded by the next Put for the same key.
type Store[K comparable, V any] interface {
	// Get returns the raw entry for k regardless of its age.
	Get(k K) (Entry[V], bool)

	// Put inserts or overwrites k with v, stamped with the given time.
	Put(k K, v V, stored time.Time)

	// Valid reports whether e is younger than d according to the store clock.
	// A non-positive d makes every entry stale.
	Valid(e Entry[V], d time.Duration) bool

	// Lookup returns the value for k only if its entry is still valid for d.
	// Hits, misses and stale reads are reported to Options.Metrics.
	Lookup(k K, d time.Duration) (V, bool)

	// Now returns the store clock's current time; use it to stamp Puts.
	Now() time.Time

	// Len returns the total number of resident entries across all shards.
	Len() int

	// Stats returns cumulative Lookup counters.
	Stats() Stats
}

// Stats is a snapshot of Lookup outcomes. Stale reads are also counted as misses.
type Stats struct {
	Hits   int64
	Misses int64
	Stale  int64
}

// HitRate returns hits/(hits+misses) in [0,1], or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
