// Package view defines the capabilities the scraping core needs from a
// rendered page: querying nodes, scrolling a feed, and moving between the
// list view and an item's detail view.
//
// Implementations live in subpackages: rodview drives a live Chromium page,
// htmlview reads a saved HTML snapshot and viewtest scripts a fake page for
// tests.
package view

import (
	"context"

	"xhsdl/pkg/models"
)

// Node is one rendered element. Lookups never fail: a missing child is nil
// and a missing attribute or text is the empty string.
type Node interface {
	// Text returns the trimmed rendered text
	Text() string
	// Attr returns an attribute. href and src resolve to absolute URLs the
	// way the browser reports them.
	Attr(name string) string
	// Query returns the first descendant matching selector, or nil
	Query(selector string) Node
	// QueryAll returns every descendant matching selector in document order
	QueryAll(selector string) []Node
	// Click simulates a user activation
	Click() error
}

// View queries the currently rendered document
type View interface {
	// Query returns the first node matching selector, or nil when absent
	Query(ctx context.Context, selector string) (Node, error)
	QueryAll(ctx context.Context, selector string) ([]Node, error)
	// ScrollToBottom scrolls the container matching selector to its end so
	// the page renders more items
	ScrollToBottom(ctx context.Context, selector string) error
	// Location returns the current page URL
	Location(ctx context.Context) (string, error)
}

// Navigator moves between a list view and detail views
type Navigator interface {
	Open(ctx context.Context, item models.SearchResultItem) error
	Back(ctx context.Context) error
}

// Page is a view that can also navigate
type Page interface {
	View
	Navigator
}

// TextOf returns the text of the first match under n, or "" if n is nil or
// nothing matches
func TextOf(n Node, selector string) string {
	if n == nil {
		return ""
	}
	if c := n.Query(selector); c != nil {
		return c.Text()
	}
	return ""
}

// FirstText returns the text of the first node matching selector in v
func FirstText(ctx context.Context, v View, selector string) string {
	n, err := v.Query(ctx, selector)
	if err != nil || n == nil {
		return ""
	}
	return n.Text()
}
