// Package rodview implements view.Page over a live Chromium tab driven by
// go-rod.
package rodview

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"xhsdl/pkg/errors"
	"xhsdl/pkg/extract"
	"xhsdl/pkg/logger"
	"xhsdl/pkg/models"
	"xhsdl/pkg/view"
)

const scrollJS = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) return false;
	el.scrollTop = el.scrollHeight;
	window.scrollTo(0, document.body.scrollHeight);
	return true;
}`

// Page adapts a rod page
type Page struct {
	page       *rod.Page
	navTimeout time.Duration
	logger     logger.Logger
}

var _ view.Page = (*Page)(nil)

// Option configures a Page
type Option func(*Page)

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(p *Page) { p.logger = l }
}

// WithNavigationTimeout bounds Navigate and NavigateBack
func WithNavigationTimeout(d time.Duration) Option {
	return func(p *Page) { p.navTimeout = d }
}

// New wraps page
func New(page *rod.Page, opts ...Option) *Page {
	p := &Page{
		page:       page,
		navTimeout: 30 * time.Second,
		logger:     logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Rod returns the underlying page
func (p *Page) Rod() *rod.Page { return p.page }

// Query implements view.View
func (p *Page) Query(ctx context.Context, selector string) (view.Node, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, wrapCDP(ctx, "query "+selector, err)
	}
	if len(els) == 0 {
		return nil, nil
	}
	return &Node{el: els[0]}, nil
}

// QueryAll implements view.View. The returned nodes keep using ctx for
// their own lookups.
func (p *Page) QueryAll(ctx context.Context, selector string) ([]view.Node, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, wrapCDP(ctx, "query "+selector, err)
	}
	return nodes(els), nil
}

// ScrollToBottom scrolls the container and the window to their ends
func (p *Page) ScrollToBottom(ctx context.Context, selector string) error {
	res, err := p.page.Context(ctx).Eval(scrollJS, selector)
	if err != nil {
		return wrapCDP(ctx, "scroll "+selector, err)
	}
	if !res.Value.Bool() {
		return errors.ContainerNotFound(selector)
	}
	return nil
}

// Location implements view.View
func (p *Page) Location(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", wrapCDP(ctx, "page info", err)
	}
	return info.URL, nil
}

// Navigate loads url and waits for the load event
func (p *Page) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()

	page := p.page.Context(navCtx)
	if err := page.Navigate(url); err != nil {
		return errors.NavigationTimeout(url, 1)
	}
	if err := page.WaitLoad(); err != nil {
		p.logger.WarnWithFields("Page load not confirmed", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
	}
	return nil
}

// Open clicks the card of item in the rendered list, or navigates to the
// item URL when the card is no longer rendered
func (p *Page) Open(ctx context.Context, item models.SearchResultItem) error {
	if card := p.findCard(ctx, item.ID); card != nil {
		err := card.Click(proto.InputMouseButtonLeft, 1)
		if err == nil {
			return nil
		}
		p.logger.DebugWithFields("Card click failed", map[string]interface{}{
			"item_id": item.ID,
			"error":   err.Error(),
		})
	}
	if item.URL == "" {
		return errors.New(errors.ErrorTypeNotFound, "item "+item.ID+" has no card and no url")
	}
	return p.Navigate(ctx, item.URL)
}

func (p *Page) findCard(ctx context.Context, id string) *rod.Element {
	if id == "" {
		return nil
	}
	cards, err := p.page.Context(ctx).Elements(extract.SelSearchCards)
	if err != nil {
		return nil
	}
	for _, card := range cards {
		links, err := card.Elements("a")
		if err != nil {
			continue
		}
		for _, a := range links {
			href, err := a.Attribute("href")
			if err == nil && href != nil && strings.Contains(*href, id) {
				if cover, err := card.Elements(extract.SelCardCoverURL); err == nil && len(cover) > 0 {
					return cover[0]
				}
				return a
			}
		}
	}
	return nil
}

// Back returns to the previous history entry
func (p *Page) Back(ctx context.Context) error {
	navCtx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()
	if err := p.page.Context(navCtx).NavigateBack(); err != nil {
		return wrapCDP(ctx, "navigate back", err)
	}
	return nil
}

// HTML returns the rendered document, for saving snapshots
func (p *Page) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", wrapCDP(ctx, "read html", err)
	}
	return html, nil
}

// Node wraps a rod element. Lookup failures read as absent.
type Node struct {
	el *rod.Element
}

func nodes(els rod.Elements) []view.Node {
	out := make([]view.Node, 0, len(els))
	for _, el := range els {
		out = append(out, &Node{el: el})
	}
	return out
}

// Text implements view.Node
func (n *Node) Text() string {
	s, err := n.el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// Attr reads href and src as properties so they come back absolute
func (n *Node) Attr(name string) string {
	if name == "href" || name == "src" {
		v, err := n.el.Property(name)
		if err == nil && !v.Nil() {
			return strings.TrimSpace(v.Str())
		}
	}
	v, err := n.el.Attribute(name)
	if err != nil || v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

// Query implements view.Node
func (n *Node) Query(selector string) view.Node {
	els, err := n.el.Elements(selector)
	if err != nil || len(els) == 0 {
		return nil
	}
	return &Node{el: els[0]}
}

// QueryAll implements view.Node
func (n *Node) QueryAll(selector string) []view.Node {
	els, err := n.el.Elements(selector)
	if err != nil {
		return nil
	}
	return nodes(els)
}

// Click implements view.Node with a left mouse click
func (n *Node) Click() error {
	return n.el.Click(proto.InputMouseButtonLeft, 1)
}

func wrapCDP(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return errors.Wrap(errors.ErrorTypeUnknown, op+" failed", err)
}
