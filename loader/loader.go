package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/IvanBrykalov/sectionloader/cache"
	"github.com/IvanBrykalov/sectionloader/dom"
	"github.com/IvanBrykalov/sectionloader/internal/singleflight"
	"github.com/IvanBrykalov/sectionloader/settings"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// ErrNoFetcher is returned by New when Options.Fetcher is nil.
var ErrNoFetcher = errors.New("sectionloader: no Fetcher provided")

// Loader discovers placeholders in a document, loads their fragments
// concurrently and signals when every one of them has resolved.
// A Loader is safe for concurrent use; its cache and in-flight registry are
// shared by every document it processes.
type Loader struct {
	opt Options
	log zerolog.Logger

	cache   cache.Store[string, fragment]
	flights singleflight.Group[string, fragment]

	states    *machine
	instances *instances
	global    atomic.Pointer[settings.Settings]

	// claim serializes discovery so that concurrent runs on one document
	// never pick up the same placeholder twice.
	claim sync.Mutex
}

// New constructs a Loader. Options.Fetcher is required.
func New(opt Options) (*Loader, error) {
	if opt.Fetcher == nil {
		return nil, ErrNoFetcher
	}
	if opt.Reloader == nil {
		opt.Reloader = NopReloader{}
	}
	if opt.Emitter == nil {
		opt.Emitter = NopEmitter{}
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Tracer == nil {
		opt.Tracer = opentracing.NoopTracer{}
	}
	if opt.Clock == nil {
		opt.Clock = clockz.RealClock
	}
	if opt.Defaults == nil {
		opt.Defaults = settings.Defaults()
	}

	l := &Loader{
		opt: opt,
		log: opt.Logger.With().Str("component", component).Logger(),
		cache: cache.New[string, fragment](cache.Options{
			Shards:  opt.CacheShards,
			Metrics: opt.CacheMetrics,
			Clock:   opt.Clock,
		}),
		states:    newMachine(),
		instances: newInstances(),
	}
	l.SetGlobal(opt.Global)
	return l, nil
}

// SetGlobal replaces the operator-wide settings layer. Runs already in
// progress keep the settings they started with.
func (l *Loader) SetGlobal(s settings.Settings) {
	if s == nil {
		s = settings.Settings{}
	}
	l.global.Store(&s)
}

// Global returns the current operator-wide settings layer.
func (l *Loader) Global() settings.Settings { return *l.global.Load() }

// Instance returns the settings computed for el by a previous run.
func (l *Loader) Instance(el *html.Node) (Instance, bool) {
	return l.instances.get(el)
}

// State returns el's current state as recorded on the element.
func (l *Loader) State(doc *dom.Document, el *html.Node) State {
	return l.states.state(doc, el)
}

// Subscribe registers fn to be called synchronously, in registration order,
// after each of el's state transitions. Call cancel once fn is no longer
// needed. The registration does not keep el reachable, but a fn that
// references el does until cancel is called.
func (l *Loader) Subscribe(el *html.Node, fn func(State)) (cancel func()) {
	return l.states.subscribe(el, fn)
}

// CacheStats returns the fragment cache's lookup counters.
func (l *Loader) CacheStats() cache.Stats { return l.cache.Stats() }

// Init runs one pass over doc:
//
//  1. discover placeholders without a state marker; with none, call
//     onComplete and return without emitting anything;
//  2. emit beforeInit, compute each placeholder's settings and load all of
//     them concurrently;
//  3. wait for every marked placeholder in doc (including ones left by
//     earlier or concurrent runs of this Loader) to reach Complete or Error;
//  4. run the Reloader on all of them;
//  5. emit afterInit and ready, then call onComplete.
//
// Load failures never surface here; they turn into Error states. Init
// returns an error only if ctx ends while waiting or the Reloader fails, in
// which case afterInit, ready and onComplete are skipped.
func (l *Loader) Init(ctx context.Context, doc *dom.Document, onComplete func()) error {
	jobs := l.discover(ctx, doc)
	if jobs == nil {
		if onComplete != nil {
			onComplete()
		}
		return nil
	}

	var g errgroup.Group
	if l.opt.MaxConcurrent > 0 {
		g.SetLimit(l.opt.MaxConcurrent)
	}
	for _, j := range jobs {
		if j.source == "" {
			continue
		}
		g.Go(func() error {
			l.load(ctx, doc, j)
			return nil
		})
	}
	_ = g.Wait()

	if err := l.finalize(ctx, doc); err != nil {
		return err
	}

	l.opt.Emitter.Emit(ctx, SignalAfterInit, Event{})
	l.opt.Emitter.Emit(ctx, SignalReady, Event{})
	if onComplete != nil {
		onComplete()
	}
	return nil
}

// job is one discovered placeholder. source is empty when the element has
// no usable source; such elements stay Idle.
type job struct {
	el       *html.Node
	source   string
	settings settings.Settings
}

// discover claims every unmarked placeholder by moving it to Loading before
// any other run can see it. It returns nil if nothing was found.
// Listeners and the emitter are called only after claim is released, so
// they may start runs of their own.
func (l *Loader) discover(ctx context.Context, doc *dom.Document) []job {
	l.claim.Lock()
	els := doc.Query(discoverSelector)
	if len(els) == 0 {
		l.claim.Unlock()
		return nil
	}

	global := l.Global()
	jobs := make([]job, 0, len(els))
	var claimed []job
	for _, el := range els {
		doc.AddClass(el, ClassContainer)
		s := settings.Merge(l.opt.Defaults, global, settings.FromAttributes(doc.Dataset(el)))
		l.instances.set(el, Instance{Settings: s})

		j := job{el: el, settings: s}
		if src, ok := sourceOf(doc, el); ok {
			j.source = src
			if l.states.begin(doc, el) {
				claimed = append(claimed, j)
			}
		} else {
			l.log.Warn().Msg("no source URL provided for section loader")
		}
		jobs = append(jobs, j)
	}
	l.claim.Unlock()

	l.opt.Emitter.Emit(ctx, SignalBeforeInit, Event{})
	for _, j := range claimed {
		l.states.notify(j.el, Loading)
		l.reportState(ctx, j.el, j.source, Loading)
	}
	return jobs
}

// finalize waits for every marked placeholder to become terminal, then runs
// the Reloader with all of them. Markers this Loader did not write, such as
// a "loading" value already present in the page source, never change and are
// treated as settled.
func (l *Loader) finalize(ctx context.Context, doc *dom.Document) error {
	all := doc.Query(processedSelector)
	for _, el := range all {
		foreign, err := l.states.await(ctx, doc, el)
		if err != nil {
			return fmt.Errorf("sectionloader: waiting for placeholders: %w", err)
		}
		if foreign {
			v, _ := doc.Attr(el, AttrState)
			src, _ := sourceOf(doc, el)
			l.log.Warn().Str("source", src).Str("marker", v).Msg("ignoring state marker not set by this loader")
		}
	}
	if err := l.opt.Reloader.Reload(ctx, doc, all); err != nil {
		return fmt.Errorf("sectionloader: reload lifecycle: %w", err)
	}
	return nil
}

// setState applies a transition and, if accepted, reports it to metrics and
// the process-wide emitter.
func (l *Loader) setState(ctx context.Context, doc *dom.Document, el *html.Node, source string, st State) {
	if !l.states.set(doc, el, st) {
		l.log.Debug().Str("source", source).Str("state", st.String()).Msg("transition rejected")
		return
	}
	l.reportState(ctx, el, source, st)
}

func (l *Loader) reportState(ctx context.Context, el *html.Node, source string, st State) {
	l.opt.Metrics.Transition(st)
	l.opt.Emitter.Emit(ctx, SignalStateChange, Event{Element: el, Source: source, State: st})
}
