package cache

import "github.com/zoobzio/clockz"

// Metrics exposes store-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	// Stale is reported when an entry exists but is too old for the read.
	Stale()
	Size(entries int)
}

// Options configures the store. Zero values are safe;
// sane defaults are applied in New():
//   - Shards <= 0  => auto (rounded up to power of two)
//   - nil Metrics  => NoopMetrics
//   - nil Clock    => clockz.RealClock
type Options struct {
	// Shards defines the number of shards. If 0, an automatic value is chosen
	// (≈ 2*GOMAXPROCS) and rounded to the next power of two.
	Shards int

	Metrics Metrics

	// Clock allows overriding the time source (tests use clockz.FakeClock).
	Clock clockz.Clock
}
