package collector

import "xhsdl/pkg/extract"

// CommentFeed is the comment list of a detail view
var CommentFeed = Target{
	Container: extract.SelCommentScroller,
	Items:     extract.SelComments,
	EndMarker: extract.SelEndMarker,
	Expand:    extract.SelExpand,
}

// SearchFeed is the card grid of a search result page
var SearchFeed = Target{
	Container: extract.SelSearchFeed,
	Items:     extract.SelSearchCards,
	EndMarker: extract.SelEndMarker,
}

// WithEndMarker returns t with a different end marker selector. An empty
// selector keeps the current one.
func (t Target) WithEndMarker(selector string) Target {
	if selector != "" {
		t.EndMarker = selector
	}
	return t
}
