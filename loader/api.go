package loader

import (
	"context"

	"github.com/IvanBrykalov/sectionloader/dom"
	"github.com/IvanBrykalov/sectionloader/settings"
	"golang.org/x/net/html"
)

// Fetcher retrieves a remote document and returns the first node matching
// selector as a detached tree. It must fail distinguishably on transport
// errors, non-success responses and selectors that match nothing.
type Fetcher interface {
	Fetch(ctx context.Context, url, selector string) (*html.Node, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url, selector string) (*html.Node, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url, selector string) (*html.Node, error) {
	return f(ctx, url, selector)
}

// Reloader re-runs page lifecycle hooks on freshly inserted content. It is
// called once per Init, after every placeholder is terminal, with every
// placeholder that carries a state marker. Its error is returned from Init.
type Reloader interface {
	Reload(ctx context.Context, doc *dom.Document, placeholders []*html.Node) error
}

// ReloaderFunc adapts a function to Reloader.
type ReloaderFunc func(ctx context.Context, doc *dom.Document, placeholders []*html.Node) error

// Reload calls f.
func (f ReloaderFunc) Reload(ctx context.Context, doc *dom.Document, placeholders []*html.Node) error {
	return f(ctx, doc, placeholders)
}

// NopReloader does nothing.
type NopReloader struct{}

// Reload implements Reloader.
func (NopReloader) Reload(context.Context, *dom.Document, []*html.Node) error { return nil }

// Instance is what the loader remembers about a processed placeholder.
type Instance struct {
	Settings settings.Settings
}
