// Package fetch retrieves remote HTML documents and extracts a fragment
// from them by CSS selector.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
)

// DefaultContainer is selected when the caller passes no selector.
const DefaultContainer = "#sections"

// ErrNoMatch is returned when the selector matches nothing in the document.
var ErrNoMatch = errors.New("fetch: selector matched nothing")

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: %s: unexpected status %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Client fetches fragments over HTTP. The zero value uses http.DefaultClient
// and requires absolute URLs.
type Client struct {
	// HTTP is the underlying client; nil means http.DefaultClient.
	HTTP *http.Client

	// BaseURL resolves relative source URLs such as "/page-a".
	BaseURL *url.URL

	// Header is added to every request (e.g. User-Agent, cookies forwarded
	// from the page request).
	Header http.Header

	Logger zerolog.Logger
}

// Fetch GETs rawURL and returns a detached copy of the first node matching
// selector (DefaultContainer when empty).
func (c *Client) Fetch(ctx context.Context, rawURL, selector string) (*html.Node, error) {
	u, err := c.resolve(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.http().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &StatusError{URL: u.String(), Code: resp.StatusCode}
	}

	c.Logger.Debug().Str("url", u.String()).Str("selector", selector).Msg("fetched page")
	n, err := Select(resp.Body, selector)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s: %w", u, err)
	}
	return n, nil
}

func (c *Client) http() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) resolve(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("fetch: invalid url %q: %w", rawURL, err)
	}
	if c.BaseURL != nil {
		u = c.BaseURL.ResolveReference(u)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("fetch: relative url %q without BaseURL", rawURL)
	}
	return u, nil
}

// Select parses an HTML document from r and returns a detached copy of the
// first node matching selector (DefaultContainer when empty). An invalid
// selector matches nothing.
func Select(r io.Reader, selector string) (*html.Node, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return selectFrom(doc, selector)
}

func selectFrom(doc *goquery.Document, selector string) (*html.Node, error) {
	if selector == "" {
		selector = DefaultContainer
	}
	match := doc.Find(selector).First()
	if match.Length() == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoMatch, selector)
	}
	return match.Clone().Nodes[0], nil
}
