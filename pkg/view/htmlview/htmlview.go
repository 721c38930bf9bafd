// Package htmlview implements view.View over a static HTML snapshot using
// goquery. It serves offline extraction of saved pages and backs the
// scripted fake used in tests.
package htmlview

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"xhsdl/pkg/errors"
	"xhsdl/pkg/view"
)

// Document is a parsed snapshot of one page
type Document struct {
	doc      *goquery.Document
	base     *url.URL
	location string
}

// Parse reads an HTML document. location is the URL the page was saved
// from; relative href and src attributes resolve against it.
func Parse(r io.Reader, location string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeParsing, "failed to parse html", err)
	}

	d := &Document{doc: doc, location: location}
	if location != "" {
		if u, err := url.Parse(location); err == nil {
			d.base = u
		}
	}
	return d, nil
}

// FromString parses html held in memory
func FromString(html, location string) (*Document, error) {
	return Parse(strings.NewReader(html), location)
}

// Query implements view.View
func (d *Document) Query(_ context.Context, selector string) (view.Node, error) {
	return d.Root().Query(selector), nil
}

// QueryAll implements view.View
func (d *Document) QueryAll(_ context.Context, selector string) ([]view.Node, error) {
	return d.Root().QueryAll(selector), nil
}

// ScrollToBottom fails only when the container is absent; a snapshot never
// renders more content
func (d *Document) ScrollToBottom(_ context.Context, selector string) error {
	if d.doc.Find(selector).Length() == 0 {
		return errors.ContainerNotFound(selector)
	}
	return nil
}

// Location implements view.View
func (d *Document) Location(context.Context) (string, error) {
	return d.location, nil
}

// Root returns the document element as a node
func (d *Document) Root() view.Node {
	return &Node{sel: d.doc.Selection, base: d.base}
}

// Node wraps a single goquery selection
type Node struct {
	sel  *goquery.Selection
	base *url.URL
}

// Wrap exposes an existing selection as a node
func Wrap(sel *goquery.Selection, base *url.URL) *Node {
	return &Node{sel: sel, base: base}
}

// Selection returns the underlying goquery selection
func (n *Node) Selection() *goquery.Selection { return n.sel }

// Text implements view.Node
func (n *Node) Text() string {
	return strings.TrimSpace(n.sel.Text())
}

// Attr implements view.Node. href and src are resolved against the
// document location when one is known.
func (n *Node) Attr(name string) string {
	v, ok := n.sel.Attr(name)
	if !ok {
		return ""
	}
	v = strings.TrimSpace(v)
	if (name == "href" || name == "src") && v != "" && n.base != nil {
		if ref, err := url.Parse(v); err == nil {
			return n.base.ResolveReference(ref).String()
		}
	}
	return v
}

// Query implements view.Node
func (n *Node) Query(selector string) view.Node {
	s := n.sel.Find(selector)
	if s.Length() == 0 {
		return nil
	}
	return &Node{sel: s.First(), base: n.base}
}

// QueryAll implements view.Node
func (n *Node) QueryAll(selector string) []view.Node {
	s := n.sel.Find(selector)
	nodes := make([]view.Node, 0, s.Length())
	s.Each(func(_ int, item *goquery.Selection) {
		nodes = append(nodes, &Node{sel: item, base: n.base})
	})
	return nodes
}

// Click always fails: snapshot nodes are not interactive
func (n *Node) Click() error {
	return errors.New(errors.ErrorTypeUnknown, "snapshot nodes are not interactive")
}
