package extract

import (
	"context"

	"xhsdl/pkg/ledger"
	"xhsdl/pkg/models"
	"xhsdl/pkg/view"
)

// CardID returns the note id of a card link, or the link itself when it
// carries no id
func CardID(link string) string {
	if m := reCardID.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return link
}

// SearchCards extracts search result cards for the collection engine
type SearchCards struct{}

// Key returns the card id. Cards without a link are skipped.
func (SearchCards) Key(n view.Node) (string, bool) {
	id := CardID(cardLink(n))
	return id, id != ""
}

// Extract reads one card
func (SearchCards) Extract(n view.Node, _ *ledger.Ledger) models.SearchResultItem {
	return Card(n)
}

// Card reads one search result card
func Card(n view.Node) models.SearchResultItem {
	link := cardLink(n)
	item := models.SearchResultItem{
		ID:    CardID(link),
		Title: view.TextOf(n, SelCardTitle),
		Likes: view.TextOf(n, SelCardLikes),
		URL:   link,
	}
	if author := n.Query(SelCardAuthor); author != nil {
		item.AuthorLink = author.Attr("href")
		name := author.Query(SelCardName)
		if name == nil {
			name = author.Query(SelCardNameAlt)
		}
		if name != nil {
			item.Author = name.Text()
		}
	}
	return item
}

func cardLink(n view.Node) string {
	if a := n.Query(SelCardCoverURL); a != nil {
		return a.Attr("href")
	}
	return ""
}

// SearchItems reads every rendered card and returns those whose id is not
// yet in l, recording them
func SearchItems(ctx context.Context, v view.View, l *ledger.Ledger) ([]models.SearchResultItem, error) {
	cards, err := v.QueryAll(ctx, SelSearchCards)
	if err != nil {
		return nil, err
	}
	var items []models.SearchResultItem
	for _, n := range cards {
		item := Card(n)
		if item.ID == "" || !l.Admit(item.ID) {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
