package page

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed page.
type Document struct {
	URL   string
	Title string
	Root  *html.Node
}

func newDocument(url string, root *html.Node) *Document {
	doc := &Document{URL: url, Root: root}
	if n := doc.First(atom.Title); n != nil {
		doc.Title = strings.TrimSpace(textOf(n))
	}
	return doc
}

// First returns the first element with tag a, or nil.
func (d *Document) First(a atom.Atom) *html.Node {
	return first(d.Root, a)
}

func first(n *html.Node, a atom.Atom) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := first(c, a); found != nil {
			return found
		}
	}
	return nil
}

// All returns every element with tag a in document order.
func (d *Document) All(a atom.Atom) []*html.Node {
	var nodes []*html.Node
	walk(d.Root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == a {
			nodes = append(nodes, n)
		}
		return true
	})
	return nodes
}

// Text returns the visible text of the body with whitespace collapsed.
func (d *Document) Text() string {
	body := d.First(atom.Body)
	if body == nil {
		body = d.Root
	}
	return strings.Join(strings.Fields(textOf(body)), " ")
}

// Links returns the href of every anchor.
func (d *Document) Links() []string {
	var links []string
	for _, n := range d.All(atom.A) {
		if href, ok := Attr(n, "href"); ok {
			links = append(links, href)
		}
	}
	return links
}

// Attr returns the value of n's attribute key.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(n *html.Node) bool {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return false
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		return true
	})
	return b.String()
}

// walk visits n and its descendants depth first. The children of a node
// are skipped when fn returns false for it.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}
