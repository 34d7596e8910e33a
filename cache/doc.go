// Package cache provides the fragment cache store: a generic, sharded,
// in-memory map of timestamped entries with age-based validity.
//
// Design
//
//   - Concurrency: the store is split into shards, each protected by an
//     RWMutex. The shard count is a power of two, 2*GOMAXPROCS by
//     default, capped at 256.
//
//   - Validity: an entry is valid while now - Stored < d, where d is supplied
//     by the reader on every Lookup. Different readers of the same key may
//     use different durations. A non-positive d disables caching.
//
//   - No eviction: stale entries are ignored, never removed. A later Put for
//     the same key overwrites the entry; concurrent Puts race and the last
//     one wins.
//
//   - Clock: Options.Clock is a clockz.Clock so tests can advance time
//     deterministically with clockz.NewFakeClock().
//
//   - Metrics: Options.Metrics receives Hit/Miss/Stale/Size signals.
//     By default NoopMetrics is used; metrics/prom exports them.
//
// Basic usage
//
//	s := cache.New[string, *html.Node](cache.Options{})
//	s.Put("/page-a #content", frag, s.Now())
//	if v, ok := s.Lookup("/page-a #content", 5*time.Minute); ok {
//	    _ = v // clone before inserting
//	}
package cache
