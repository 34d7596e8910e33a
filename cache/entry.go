package cache

import "time"

// Entry is a cached value together with the time it was stored.
type Entry[V any] struct {
	Value  V
	Stored time.Time
}

// Age returns how long ago the entry was stored, relative to now.
func (e Entry[V]) Age(now time.Time) time.Duration { return now.Sub(e.Stored) }
