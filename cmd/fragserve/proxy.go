package main

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/IvanBrykalov/sectionloader/dom"
	"github.com/IvanBrykalov/sectionloader/loader"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
)

// maxPage bounds the size of an upstream HTML page that is rewritten.
const maxPage = 8 << 20

// hopHeaders are not copied between the upstream and the client.
var hopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// proxy serves pages from upstream with their placeholders resolved.
// Non-HTML responses and non-GET requests pass through unchanged.
type proxy struct {
	upstream *url.URL
	client   *http.Client
	loader   *loader.Loader
	log      zerolog.Logger
}

func (p *proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := p.upstream.ResolveReference(&url.URL{Path: r.URL.Path, RawQuery: r.URL.RawQuery})

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Header = r.Header.Clone()
	for _, h := range hopHeaders {
		req.Header.Del(h)
	}
	// Bodies are rewritten, so the upstream must not compress them.
	req.Header.Del("Accept-Encoding")

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Error().Err(err).Str("url", target.String()).Msg("upstream request failed")
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if r.Method != http.MethodGet || resp.StatusCode != http.StatusOK || !isHTML(resp.Header) {
		p.passThrough(w, resp)
		return
	}

	body, err := p.render(r.Context(), io.LimitReader(resp.Body, maxPage))
	if err != nil {
		p.log.Error().Err(err).Str("url", target.String()).Msg("page rewrite failed")
		http.Error(w, "page rewrite failed", http.StatusBadGateway)
		return
	}

	copyHeaders(w.Header(), resp.Header)
	w.Header().Del("Content-Length")
	w.Header().Del("Etag")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
}

// render parses the page, resolves its placeholders and serializes it.
func (p *proxy) render(ctx context.Context, r io.Reader) ([]byte, error) {
	doc, err := dom.Parse(r)
	if err != nil {
		return nil, err
	}
	if err := p.loader.Init(ctx, doc, nil); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *proxy) passThrough(w http.ResponseWriter, resp *http.Response) {
	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.log.Debug().Err(err).Msg("pass-through copy interrupted")
	}
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
}

func isHTML(h http.Header) bool {
	mt, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	return err == nil && mt == "text/html"
}

// lifecycleReloader logs each finished run. Server-rendered fragments have
// no client-side controllers to restart.
func lifecycleReloader(log zerolog.Logger) loader.Reloader {
	return loader.ReloaderFunc(func(_ context.Context, _ *dom.Document, els []*html.Node) error {
		log.Debug().Int("placeholders", len(els)).Msg("lifecycle reload")
		return nil
	})
}
