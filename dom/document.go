// Package dom wraps a parsed HTML document so that many loaders can read and
// splice into it concurrently. html.Node trees are not safe for concurrent
// mutation; every Document method serializes access with one mutex.
package dom

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a goroutine-safe handle on a parsed HTML document.
type Document struct {
	mu  sync.Mutex
	doc *goquery.Document
}

// Parse reads and parses a complete HTML document.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc}, nil
}

// ParseString is Parse for an in-memory string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Wrap takes ownership of an already parsed goquery document.
func Wrap(doc *goquery.Document) *Document {
	return &Document{doc: doc}
}

// Query returns every element matching selector, in document order.
func (d *Document) Query(selector string) []*html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes := d.doc.Find(selector).Nodes
	out := make([]*html.Node, len(nodes))
	copy(out, nodes)
	return out
}

// Attr returns the value of attribute name on el.
func (d *Document) Attr(el *html.Node, name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sel(el).Attr(name)
}

// SetAttr sets attribute name on el, replacing any previous value.
func (d *Document) SetAttr(el *html.Node, name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sel(el).SetAttr(name, value)
}

// AddClass adds class to el's class list if not already present.
func (d *Document) AddClass(el *html.Node, class string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sel(el).AddClass(class)
}

// HasClass reports whether el carries class.
func (d *Document) HasClass(el *html.Node, class string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sel(el).HasClass(class)
}

// ClosestHasClass finds the nearest ancestor-or-self of el matching selector
// and reports whether one exists and whether it carries class.
func (d *Document) ClosestHasClass(el *html.Node, selector, class string) (found, has bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.sel(el).Closest(selector)
	if c.Length() == 0 {
		return false, false
	}
	return true, c.HasClass(class)
}

// Dataset returns el's data-* attributes keyed by their dataset name
// (see DatasetKey).
func (d *Document) Dataset(el *html.Node) map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string)
	for _, a := range el.Attr {
		if a.Namespace != "" {
			continue
		}
		if k, ok := DatasetKey(a.Key); ok {
			out[k] = a.Val
		}
	}
	return out
}

// Replace removes all of el's children and appends nodes in order.
// The nodes must be detached (see Clone).
func (d *Document) Replace(el *html.Node, nodes ...*html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.sel(el)
	s.Empty()
	s.AppendNodes(nodes...)
}

// ReplaceHTML removes all of el's children and parses markup in their place.
func (d *Document) ReplaceHTML(el *html.Node, markup string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sel(el).SetHtml(markup)
}

// InnerHTML renders el's children.
func (d *Document) InnerHTML(el *html.Node) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sel(el).Html()
}

// Render writes the whole document as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, n := range d.doc.Nodes {
		if err := html.Render(w, n); err != nil {
			return err
		}
	}
	return nil
}

// HTML renders the whole document to a string.
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Update runs fn with exclusive access to the underlying document.
// fn must not call other Document methods.
func (d *Document) Update(fn func(*goquery.Document)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.doc)
}

// sel wraps a single node. d.mu must be held.
func (d *Document) sel(el *html.Node) *goquery.Selection {
	return d.doc.FindNodes(el)
}
