package loader

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/IvanBrykalov/sectionloader/dom"
	"golang.org/x/net/html"
)

// ErrEmptyFragment is reported when a Fetcher returns neither a node nor an error.
var ErrEmptyFragment = errors.New("sectionloader: fetcher returned no content")

// fragment is a fetched, detached tree. It is never inserted itself; every
// insertion clones it so that the cached copy stays pristine.
type fragment struct {
	root        *html.Node
	hasSelector bool
}

// sourceOf reads the placeholder's source, falling back to the legacy
// attribute. Blank values count as absent.
func sourceOf(doc *dom.Document, el *html.Node) (string, bool) {
	for _, attr := range []string{AttrSource, AttrLegacySource} {
		if v, ok := doc.Attr(el, attr); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}

// splitSource separates the URL from the optional selector argument string.
func splitSource(src string) (url, selector string) {
	fields := strings.Fields(src)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

// load resolves one claimed placeholder (already Loading) to Complete or
// Error. It never returns an error: failures become the fallback message.
func (l *Loader) load(ctx context.Context, doc *dom.Document, j job) {
	if err := l.fill(ctx, doc, j); err != nil {
		l.log.Error().Err(err).Str("source", j.source).Msg("error loading section")
		doc.ReplaceHTML(j.el, ErrorMarkup)
		l.setState(ctx, doc, j.el, j.source, Error)
		return
	}
	l.checkFullWidth(doc, j.el)
	l.setState(ctx, doc, j.el, j.source, Complete)
}

// fill serves the placeholder from the cache, or from a (possibly shared)
// network fetch which then refreshes the cache entry.
func (l *Loader) fill(ctx context.Context, doc *dom.Document, j job) error {
	url, selector := splitSource(j.source)

	if frag, ok := l.cache.Lookup(j.source, j.settings.CacheDuration()); ok {
		l.log.Debug().Str("source", j.source).Msg("cache hit")
		insert(doc, j.el, frag)
		return nil
	}

	frag, shared, err := l.flights.Do(ctx, j.source, func() (fragment, error) {
		return l.fetch(ctx, url, selector)
	})
	if shared {
		l.opt.Metrics.FetchCoalesced()
	}
	if err != nil {
		return err
	}

	insert(doc, j.el, frag)
	l.cache.Put(j.source, frag, l.cache.Now())
	return nil
}

// fetch performs the network call for one registry slot. It is detached
// from the caller's cancellation because other loads may be waiting on it.
func (l *Loader) fetch(ctx context.Context, url, selector string) (fragment, error) {
	ctx = context.WithoutCancel(ctx)
	if l.opt.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opt.FetchTimeout)
		defer cancel()
	}

	target := selector
	if target == "" {
		target = DefaultContainer
	}

	span, ctx := startFetchSpan(ctx, l.opt.Tracer, url, target)
	l.opt.Metrics.FetchStarted()
	start := time.Now()

	root, err := l.opt.Fetcher.Fetch(ctx, url, target)
	if err == nil && root == nil {
		err = ErrEmptyFragment
	}

	l.opt.Metrics.ObserveFetch(time.Since(start), err)
	finishFetchSpan(span, err)
	if err != nil {
		return fragment{}, err
	}
	l.log.Debug().Str("url", url).Str("selector", target).Msg("fragment fetched")
	return fragment{root: root, hasSelector: selector != ""}, nil
}

// insert replaces el's content with a clone of frag: the matched node itself
// when a selector was given, otherwise the container's element children.
func insert(doc *dom.Document, el *html.Node, frag fragment) {
	clone := dom.Clone(frag.root)
	if frag.hasSelector {
		doc.Replace(el, clone)
		return
	}
	doc.Replace(el, dom.ChildElements(clone)...)
}

// checkFullWidth tags el when its enclosing page section is full-bleed.
func (l *Loader) checkFullWidth(doc *dom.Document, el *html.Node) {
	if found, full := doc.ClosestHasClass(el, "."+ClassSection, ClassFullBleed); found && full {
		doc.SetAttr(el, AttrFullWidth, "true")
	}
}
