package dom

import (
	"strings"
	"sync"
	"testing"

	"golang.org/x/net/html"
)

const page = `<html><body>
<section class="page-section background-width--full-bleed">
  <div id="ph" data-wm-plugin="load" data-source="/page-a #content" data-cache-duration="2"></div>
</section>
<div id="other" class="x"></div>
</body></html>`

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	d, err := ParseString(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestDatasetKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"data-source", "source", true},
		{"data-cache-duration", "cacheDuration", true},
		{"data-wm-plugin", "wmPlugin", true},
		{"data-layout__columns-count", "layout__columnsCount", true},
		{"data-x-1", "x-1", true},
		{"class", "", false},
	}
	for _, c := range cases {
		got, ok := DatasetKey(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("DatasetKey(%q) = %q,%v want %q,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestDocument_QueryAttrDataset(t *testing.T) {
	d := mustParse(t, page)

	els := d.Query(`[data-wm-plugin="load"]`)
	if len(els) != 1 {
		t.Fatalf("want 1 placeholder, got %d", len(els))
	}
	el := els[0]

	if v, ok := d.Attr(el, "data-source"); !ok || v != "/page-a #content" {
		t.Fatalf("Attr = %q,%v", v, ok)
	}
	ds := d.Dataset(el)
	if ds["cacheDuration"] != "2" || ds["source"] != "/page-a #content" || ds["wmPlugin"] != "load" {
		t.Fatalf("Dataset = %v", ds)
	}
	if _, ok := ds["id"]; ok {
		t.Fatal("non-data attributes must not be in the dataset")
	}

	d.SetAttr(el, "data-loading-state", "loading")
	if got := d.Query(`[data-wm-plugin="load"]:not([data-loading-state])`); len(got) != 0 {
		t.Fatal("marked placeholder must be excluded by :not selector")
	}
}

func TestDocument_ClosestHasClass(t *testing.T) {
	d := mustParse(t, page)
	ph := d.Query("#ph")[0]
	other := d.Query("#other")[0]

	if found, has := d.ClosestHasClass(ph, ".page-section", "background-width--full-bleed"); !found || !has {
		t.Fatalf("ph: found=%v has=%v", found, has)
	}
	if found, _ := d.ClosestHasClass(other, ".page-section", "background-width--full-bleed"); found {
		t.Fatal("other has no section ancestor")
	}
}

func TestDocument_ReplaceWithClonedChildren(t *testing.T) {
	d := mustParse(t, page)
	ph := d.Query("#ph")[0]

	src := mustParse(t, `<div id="sections"><section>1</section> <section>2</section><section>3</section></div>`)
	container := src.Query("#sections")[0]

	clone := Clone(container)
	if clone.Parent != nil {
		t.Fatal("clone must be detached")
	}
	d.Replace(ph, ChildElements(clone)...)

	got, err := d.InnerHTML(ph)
	if err != nil {
		t.Fatal(err)
	}
	if got != "<section>1</section><section>2</section><section>3</section>" {
		t.Fatalf("inner = %q", got)
	}
	// The original fragment is untouched.
	if n := len(ChildElements(container)); n != 3 {
		t.Fatalf("source container lost children: %d", n)
	}
}

func TestDocument_ReplaceHTML(t *testing.T) {
	d := mustParse(t, page)
	ph := d.Query("#ph")[0]
	d.ReplaceHTML(ph, "<p>Error loading content</p>")
	got, _ := d.InnerHTML(ph)
	if got != "<p>Error loading content</p>" {
		t.Fatalf("inner = %q", got)
	}
}

// Concurrent writers on distinct elements of one document stay consistent.
func TestDocument_ConcurrentMutation(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 50; i++ {
		b.WriteString(`<div class="ph"></div>`)
	}
	b.WriteString("</body></html>")
	d := mustParse(t, b.String())

	var wg sync.WaitGroup
	for _, el := range d.Query(".ph") {
		wg.Add(1)
		go func(el *html.Node) {
			defer wg.Done()
			d.ReplaceHTML(el, "<span>x</span>")
			d.SetAttr(el, "data-loading-state", "complete")
		}(el)
	}
	wg.Wait()

	if n := len(d.Query(`.ph[data-loading-state="complete"] > span`)); n != 50 {
		t.Fatalf("want 50 filled placeholders, got %d", n)
	}
	if _, err := d.HTML(); err != nil {
		t.Fatal(err)
	}
}
