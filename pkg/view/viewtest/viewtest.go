// Package viewtest provides a scripted page for exercising the scraping core
// without a browser. Each screen is a list of HTML frames; frame i is what
// the screen renders after i scrolls, and the last frame stays on screen
// once the script runs out. Scrolls, clicks and navigation are counted.
package viewtest

import (
	"context"
	"fmt"
	"sync"

	"xhsdl/pkg/errors"
	"xhsdl/pkg/models"
	"xhsdl/pkg/view"
	"xhsdl/pkg/view/htmlview"
)

// Screen is one scripted document
type Screen struct {
	Location string
	Frames   []string
	// NotReadyPolls is the number of Query calls answered with nothing right
	// after the screen is opened
	NotReadyPolls int
}

type state struct {
	screen  *Screen
	scrolls int
	pending int
}

// Page is a fake view.Page
type Page struct {
	mu      sync.Mutex
	current *state
	history []*state
	details map[string]*Screen

	scrolls int
	clicks  int
	opens   []string
	backs   int
	queries int
}

var _ view.Page = (*Page)(nil)

// NewPage starts on screen s
func NewPage(s *Screen) *Page {
	return &Page{
		current: &state{screen: s, pending: s.NotReadyPolls},
		details: make(map[string]*Screen),
	}
}

// AddDetail registers the screen Open shows for an item id
func (p *Page) AddDetail(itemID string, s *Screen) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.details[itemID] = s
}

func (p *Page) render() (*htmlview.Document, error) {
	st := p.current
	if len(st.screen.Frames) == 0 {
		return htmlview.FromString("<html><body></body></html>", st.screen.Location)
	}
	i := st.scrolls
	if i >= len(st.screen.Frames) {
		i = len(st.screen.Frames) - 1
	}
	return htmlview.FromString(st.screen.Frames[i], st.screen.Location)
}

// Query implements view.View
func (p *Page) Query(ctx context.Context, selector string) (view.Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries++
	if p.current.pending > 0 {
		p.current.pending--
		return nil, nil
	}
	doc, err := p.render()
	if err != nil {
		return nil, err
	}
	n, _ := doc.Query(ctx, selector)
	if n == nil {
		return nil, nil
	}
	return &node{Node: n, page: p}, nil
}

// QueryAll implements view.View
func (p *Page) QueryAll(ctx context.Context, selector string) ([]view.Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current.pending > 0 {
		return nil, nil
	}
	doc, err := p.render()
	if err != nil {
		return nil, err
	}
	nodes, _ := doc.QueryAll(ctx, selector)
	return p.wrap(nodes), nil
}

// ScrollToBottom advances the current screen by one frame
func (p *Page) ScrollToBottom(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.render()
	if err != nil {
		return err
	}
	if err := doc.ScrollToBottom(ctx, selector); err != nil {
		return err
	}
	p.current.scrolls++
	p.scrolls++
	return nil
}

// Location implements view.View
func (p *Page) Location(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.screen.Location, nil
}

// Open shows the detail screen registered for item.ID
func (p *Page) Open(_ context.Context, item models.SearchResultItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens = append(p.opens, item.ID)
	s, ok := p.details[item.ID]
	if !ok {
		return errors.New(errors.ErrorTypeNotFound, fmt.Sprintf("no detail screen for %s", item.ID))
	}
	p.history = append(p.history, p.current)
	p.current = &state{screen: s, pending: s.NotReadyPolls}
	return nil
}

// Back returns to the previous screen, keeping its scroll position
func (p *Page) Back(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backs++
	if len(p.history) == 0 {
		return errors.New(errors.ErrorTypeNotFound, "no previous screen")
	}
	p.current = p.history[len(p.history)-1]
	p.history = p.history[:len(p.history)-1]
	return nil
}

// Scrolls returns the total number of successful scrolls
func (p *Page) Scrolls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrolls
}

// Clicks returns the number of node clicks
func (p *Page) Clicks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks
}

// Opens returns the item ids passed to Open, in order
func (p *Page) Opens() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.opens...)
}

// Backs returns the number of Back calls
func (p *Page) Backs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backs
}

func (p *Page) wrap(nodes []view.Node) []view.Node {
	out := make([]view.Node, len(nodes))
	for i, n := range nodes {
		out[i] = &node{Node: n, page: p}
	}
	return out
}

// node counts clicks and keeps children wrapped
type node struct {
	view.Node
	page *Page
}

func (n *node) Query(selector string) view.Node {
	c := n.Node.Query(selector)
	if c == nil {
		return nil
	}
	return &node{Node: c, page: n.page}
}

func (n *node) QueryAll(selector string) []view.Node {
	children := n.Node.QueryAll(selector)
	out := make([]view.Node, len(children))
	for i, c := range children {
		out[i] = &node{Node: c, page: n.page}
	}
	return out
}

func (n *node) Click() error {
	n.page.mu.Lock()
	defer n.page.mu.Unlock()
	n.page.clicks++
	return nil
}
