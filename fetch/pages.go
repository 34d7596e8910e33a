package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Pages serves fragments from in-memory documents keyed by URL. It is used
// by the examples, the bench command and tests in place of a network.
// Unknown URLs fail with a 404 StatusError.
type Pages struct {
	mu     sync.RWMutex
	parsed map[string]*goquery.Document
}

// NewPages parses every document up front.
func NewPages(docs map[string]string) (*Pages, error) {
	p := &Pages{parsed: make(map[string]*goquery.Document, len(docs))}
	for u, src := range docs {
		if err := p.Set(u, src); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Set adds or replaces the document served for url.
func (p *Pages) Set(url, src string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("fetch: parse %s: %w", url, err)
	}
	p.mu.Lock()
	if p.parsed == nil {
		p.parsed = make(map[string]*goquery.Document)
	}
	p.parsed[url] = doc
	p.mu.Unlock()
	return nil
}

// Fetch returns a detached copy of the first match of selector in url's document.
func (p *Pages) Fetch(ctx context.Context, url, selector string) (*html.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	doc, ok := p.parsed[url]
	if !ok {
		return nil, &StatusError{URL: url, Code: http.StatusNotFound}
	}
	n, err := selectFrom(doc, selector)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s: %w", url, err)
	}
	return n, nil
}
