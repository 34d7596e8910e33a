package loader

import "time"

// Metrics exposes loader-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	// FetchStarted is reported when a network fetch is actually issued.
	FetchStarted()
	// FetchCoalesced is reported when a load joined an in-flight fetch.
	FetchCoalesced()
	// ObserveFetch records the duration and outcome of an issued fetch.
	ObserveFetch(d time.Duration, err error)
	// Transition is reported for every accepted state change.
	Transition(st State)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) FetchStarted()                     {}
func (NoopMetrics) FetchCoalesced()                   {}
func (NoopMetrics) ObserveFetch(time.Duration, error) {}
func (NoopMetrics) Transition(State)                  {}

var _ Metrics = NoopMetrics{}
