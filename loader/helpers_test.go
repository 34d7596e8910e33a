package loader

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IvanBrykalov/sectionloader/dom"
	"github.com/IvanBrykalov/sectionloader/fetch"
	"golang.org/x/net/html"
)

const (
	pageA = `<html><body>
<div id="content"><h1>A</h1></div>
<div id="sections"><section>a1</section></div>
</body></html>`

	pageB = `<html><body>
<div id="sections">
  <section class="s">b1</section>
  <section class="s">b2</section>
  <section class="s">b3</section>
</div>
</body></html>`
)

// countingFetcher serves fetch.Pages and counts calls per "url selector".
// If gate is set, each call blocks until gate returns.
type countingFetcher struct {
	pages *fetch.Pages
	gate  func(ctx context.Context, url, selector string) error

	mu    sync.Mutex
	calls map[string]int
	total atomic.Int64

	active    atomic.Int64
	maxActive atomic.Int64
}

func newFetcher(t *testing.T) *countingFetcher {
	t.Helper()
	p, err := fetch.NewPages(map[string]string{
		"/page-a": pageA,
		"/page-b": pageB,
	})
	if err != nil {
		t.Fatal(err)
	}
	return &countingFetcher{pages: p, calls: map[string]int{}}
}

func (f *countingFetcher) Fetch(ctx context.Context, url, selector string) (*html.Node, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	f.total.Add(1)
	f.mu.Lock()
	f.calls[url+" "+selector]++
	f.mu.Unlock()

	if f.gate != nil {
		if err := f.gate(ctx, url, selector); err != nil {
			return nil, err
		}
	}
	return f.pages.Fetch(ctx, url, selector)
}

func (f *countingFetcher) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

type recorded struct {
	sig Signal
	ev  Event
}

// recordingEmitter keeps every emitted signal in order.
type recordingEmitter struct {
	mu  sync.Mutex
	got []recorded
}

func (r *recordingEmitter) Emit(_ context.Context, sig Signal, ev Event) {
	r.mu.Lock()
	r.got = append(r.got, recorded{sig, ev})
	r.mu.Unlock()
}

func (r *recordingEmitter) signals() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Signal, len(r.got))
	for i, g := range r.got {
		out[i] = g.sig
	}
	return out
}

type countingMetrics struct {
	started, coalesced, observed atomic.Int64
	complete, failed             atomic.Int64
}

func (m *countingMetrics) FetchStarted()                     { m.started.Add(1) }
func (m *countingMetrics) FetchCoalesced()                   { m.coalesced.Add(1) }
func (m *countingMetrics) ObserveFetch(time.Duration, error) { m.observed.Add(1) }
func (m *countingMetrics) Transition(st State) {
	switch st {
	case Complete:
		m.complete.Add(1)
	case Error:
		m.failed.Add(1)
	}
}

func parse(t *testing.T, body string) *dom.Document {
	t.Helper()
	d, err := dom.ParseString("<html><body>" + body + "</body></html>")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func byID(t *testing.T, d *dom.Document, id string) *html.Node {
	t.Helper()
	els := d.Query("#" + id)
	if len(els) != 1 {
		t.Fatalf("want one #%s, got %d", id, len(els))
	}
	return els[0]
}

func inner(t *testing.T, d *dom.Document, el *html.Node) string {
	t.Helper()
	s, err := d.InnerHTML(el)
	if err != nil {
		t.Fatal(err)
	}
	return strings.TrimSpace(s)
}

func placeholder(id, source string, attrs ...string) string {
	extra := ""
	if len(attrs) > 0 {
		extra = " " + strings.Join(attrs, " ")
	}
	return `<div id="` + id + `" data-wm-plugin="load" data-source="` + source + `"` + extra + `></div>`
}

func newLoader(t *testing.T, opt Options) *Loader {
	t.Helper()
	l, err := New(opt)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}
