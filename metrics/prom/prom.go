// Package prom exports cache and loader metrics to Prometheus.
package prom

import (
	"time"

	"github.com/IvanBrykalov/sectionloader/cache"
	"github.com/IvanBrykalov/sectionloader/loader"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements cache.Metrics and loader.Metrics and exports Prometheus
// counters, gauges and histograms.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	stale   prometheus.Counter
	entries prometheus.Gauge

	fetches     prometheus.Counter
	coalesced   prometheus.Counter
	fetchTime   *prometheus.HistogramVec
	transitions *prometheus.CounterVec
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns:           Prometheus namespace; cache metrics use the "cache"
//     subsystem and loader metrics the "loader" subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(sub, name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
	}
	a := &Adapter{
		hits:   counter("cache", "hits_total", "Fragment cache hits"),
		misses: counter("cache", "misses_total", "Fragment cache misses, stale reads included"),
		stale:  counter("cache", "stale_total", "Fragment cache entries found but too old"),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   "cache",
			Name:        "size_entries",
			Help:        "Number of cached fragments",
			ConstLabels: constLabels,
		}),
		fetches:   counter("loader", "fetches_total", "Network fetches issued"),
		coalesced: counter("loader", "fetches_coalesced_total", "Loads that joined an in-flight fetch"),
		fetchTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "loader",
				Name:        "fetch_duration_seconds",
				Help:        "Duration of issued fetches by outcome",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
			[]string{"outcome"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "loader",
				Name:        "transitions_total",
				Help:        "Placeholder state transitions by target state",
				ConstLabels: constLabels,
			},
			[]string{"state"},
		),
	}
	reg.MustRegister(a.hits, a.misses, a.stale, a.entries,
		a.fetches, a.coalesced, a.fetchTime, a.transitions)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Stale increments the stale counter.
func (a *Adapter) Stale() { a.stale.Inc() }

// Size updates the entry gauge.
func (a *Adapter) Size(entries int) { a.entries.Set(float64(entries)) }

// FetchStarted increments the fetch counter.
func (a *Adapter) FetchStarted() { a.fetches.Inc() }

// FetchCoalesced increments the coalesced counter.
func (a *Adapter) FetchCoalesced() { a.coalesced.Inc() }

// ObserveFetch records d under the fetch's outcome label.
func (a *Adapter) ObserveFetch(d time.Duration, err error) {
	a.fetchTime.WithLabelValues(outcome(err)).Observe(d.Seconds())
}

// Transition counts a state change.
func (a *Adapter) Transition(st loader.State) {
	a.transitions.WithLabelValues(st.String()).Inc()
}

// outcome maps a fetch error to a stable label value.
func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Compile-time checks.
var (
	_ cache.Metrics  = (*Adapter)(nil)
	_ loader.Metrics = (*Adapter)(nil)
)
