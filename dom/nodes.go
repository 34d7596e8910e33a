package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const dataPrefix = "data-"

// DatasetKey converts a data-* attribute name to its dataset key:
// the prefix is dropped and every "-" followed by an ASCII lowercase letter
// is removed with the letter upper-cased ("data-cache-duration" becomes
// "cacheDuration"). ok is false for names that are not data attributes.
func DatasetKey(attr string) (key string, ok bool) {
	if !strings.HasPrefix(attr, dataPrefix) {
		return "", false
	}
	name := attr[len(dataPrefix):]
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '-' && i+1 < len(name) && name[i+1] >= 'a' && name[i+1] <= 'z' {
			b.WriteByte(name[i+1] - 'a' + 'A')
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String(), true
}

// Clone deep-copies n. The copy has no parent or siblings.
func Clone(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	return goquery.NewDocumentFromNode(n).Clone().Nodes[0]
}

// ChildElements returns n's immediate element children in order.
// Text and comment nodes between them are skipped.
func ChildElements(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}
