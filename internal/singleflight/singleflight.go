// Package singleflight is the in-flight request registry: it guarantees at
// most one outstanding operation per key.
package singleflight

import (
	"context"
	"sync"
)

// Group coalesces concurrent function calls for the same key K so that
// the supplied fn is executed at most once while a call is outstanding.
// Other concurrent callers wait for the shared result.
//
// Concurrency notes:
//   - The existence check and the registration happen under one lock, so two
//     callers can never both become the leader for a key.
//   - Followers wait on c.done. Publishing (val, err) happens-before
//     close(c.done), so reads after <-done observe the final values.
//   - The registration is removed as soon as fn returns, on success and on
//     failure alike; the next caller for the key starts a fresh call.
//   - Cancelling ctx in a follower unblocks only that follower; it does
//     NOT cancel the leader's fn.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done    chan struct{} // closed when val/err are published
	val     V
	err     error
	waiters int // followers that joined; guarded by Group.mu
}

// Do runs fn once for the given key. Concurrent calls with the same key
// wait for the shared result; shared reports whether this caller joined an
// existing call instead of running fn itself. If ctx is cancelled in a
// follower, that follower returns ctx.Err() while the leader keeps running.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (v V, shared bool, err error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		c.waiters++
		done := c.done
		g.mu.Unlock()

		select {
		case <-done:
			return c.val, true, c.err
		case <-ctx.Done():
			var zero V
			return zero, true, ctx.Err()
		}
	}

	// We are the leader for this key.
	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	v, err = fn()

	// Remove the in-flight marker before waking followers so that anyone
	// observing the result also observes an empty slot.
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()

	c.val, c.err = v, err
	close(c.done)

	return v, false, err
}

// InFlight reports whether a call for key is currently outstanding.
func (g *Group[K, V]) InFlight(key K) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.m[key]
	return ok
}

// Waiters returns how many followers have joined key's outstanding call.
func (g *Group[K, V]) Waiters(key K) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.m[key]; ok {
		return c.waiters
	}
	return 0
}

// Len returns the number of outstanding calls.
func (g *Group[K, V]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}
