package extract

import (
	"time"

	"xhsdl/pkg/ledger"
	"xhsdl/pkg/models"
	"xhsdl/pkg/timeparse"
	"xhsdl/pkg/view"
)

// Comments extracts comment nodes for the collection engine. Replies are
// admitted against the same ledger as top-level comments.
type Comments struct {
	// Ref is the reference instant for relative timestamps
	Ref time.Time
}

// Key returns the identity of a comment node. Nodes without content have
// no identity and are skipped.
func (c Comments) Key(n view.Node) (string, bool) {
	content := view.TextOf(n, SelCommentContent)
	if content == "" {
		return "", false
	}
	return models.CommentKey(view.TextOf(n, SelCommentAuthor), content), true
}

// Extract reads a comment node and its unseen replies
func (c Comments) Extract(n view.Node, l *ledger.Ledger) models.Comment {
	comment := models.Comment{
		Author:    view.TextOf(n, SelCommentAuthor),
		Content:   view.TextOf(n, SelCommentContent),
		Timestamp: timeparse.Normalize(view.TextOf(n, SelCommentDate), c.Ref),
		Likes:     view.TextOf(n, SelCommentLikes),
	}

	for _, sub := range n.QueryAll(SelReplies) {
		content := view.TextOf(sub, SelCommentContent)
		if content == "" {
			continue
		}
		author := view.TextOf(sub, SelCommentAuthor)
		if !l.Admit(models.CommentKey(author, content)) {
			continue
		}
		comment.Replies = append(comment.Replies, models.Reply{
			Author:    author,
			Content:   content,
			Timestamp: timeparse.Normalize(view.TextOf(sub, SelCommentDate), c.Ref),
			Likes:     view.TextOf(sub, SelCommentLikes),
		})
	}
	return comment
}
