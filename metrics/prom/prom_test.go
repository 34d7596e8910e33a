package prom

import (
	"errors"
	"testing"
	"time"

	"github.com/IvanBrykalov/sectionloader/loader"
	"github.com/prometheus/client_golang/prometheus"
)

// gathered returns name{labels} -> value for counters, gauges and histogram counts.
func gathered(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	out := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "{" + lp.GetName() + "=" + lp.GetValue() + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestAdapter_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "sl", nil)

	a.Hit()
	a.Miss()
	a.Miss()
	a.Stale()
	a.Size(7)
	a.FetchStarted()
	a.FetchStarted()
	a.FetchCoalesced()
	a.ObserveFetch(10*time.Millisecond, nil)
	a.ObserveFetch(time.Second, errors.New("x"))
	a.ObserveFetch(time.Second, errors.New("y"))
	a.Transition(loader.Loading)
	a.Transition(loader.Complete)
	a.Transition(loader.Loading)

	got := gathered(t, reg)
	want := map[string]float64{
		"sl_cache_hits_total":                             1,
		"sl_cache_misses_total":                           2,
		"sl_cache_stale_total":                            1,
		"sl_cache_size_entries":                           7,
		"sl_loader_fetches_total":                         2,
		"sl_loader_fetches_coalesced_total":               1,
		"sl_loader_fetch_duration_seconds{outcome=ok}":    1,
		"sl_loader_fetch_duration_seconds{outcome=error}": 2,
		"sl_loader_transitions_total{state=loading}":      2,
		"sl_loader_transitions_total{state=complete}":     1,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestAdapter_ConstLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "sl", prometheus.Labels{"site": "a"})
	a.Hit()

	if got := gathered(t, reg)["sl_cache_hits_total{site=a}"]; got != 1 {
		t.Fatalf("hits with const label = %v", got)
	}
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg, "sl", nil)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	New(reg, "sl", nil)
}
