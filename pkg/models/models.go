package models

import "time"

// Post is one note as rendered on its detail view
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Tags        []string  `json:"tags"`
	MediaURLs   []string  `json:"media_urls"`
	VideoURLs   []string  `json:"video_urls,omitempty"`
	Author      string    `json:"author"`
	Likes       string    `json:"likes"`
	Collects    string    `json:"collects"`
	CommentsCnt string    `json:"comments_count"`
	PublishedAt string    `json:"published_at"`
	Location    string    `json:"location"`
	URL         string    `json:"url"`
	ExtractedAt time.Time `json:"extracted_at"`
	Comments    []Comment `json:"comments"`
}

// Comment is a top-level comment. Its identity is (Author, Content); two
// distinct comments with the same author and text collapse into one.
type Comment struct {
	Author    string  `json:"author"`
	Content   string  `json:"content"`
	Timestamp string  `json:"timestamp"`
	Likes     string  `json:"likes"`
	Replies   []Reply `json:"replies,omitempty"`
}

// Reply is a comment nested one level under a Comment
type Reply struct {
	Author    string `json:"author"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Likes     string `json:"likes"`
}

// SearchResultItem is one card of a list view
type SearchResultItem struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	AuthorLink string `json:"author_link"`
	Likes      string `json:"likes"`
	URL        string `json:"url"`
}

// MediaKind distinguishes images from videos
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaAsset is a downloadable media file of a post
type MediaAsset struct {
	Kind MediaKind `json:"kind"`
	URL  string    `json:"url"`
}

// CommentKey builds the ledger key shared by comments and replies
func CommentKey(author, content string) string {
	return author + "|" + content
}

// Assets lists the downloadable media of a post, images first
func (p *Post) Assets() []MediaAsset {
	assets := make([]MediaAsset, 0, len(p.MediaURLs)+len(p.VideoURLs))
	for _, u := range p.MediaURLs {
		assets = append(assets, MediaAsset{Kind: MediaImage, URL: u})
	}
	for _, u := range p.VideoURLs {
		assets = append(assets, MediaAsset{Kind: MediaVideo, URL: u})
	}
	return assets
}

// Key returns the ledger key of the comment
func (c Comment) Key() string { return CommentKey(c.Author, c.Content) }

// Key returns the ledger key of the reply
func (r Reply) Key() string { return CommentKey(r.Author, r.Content) }

// ReplyCount returns the number of replies across comments
func ReplyCount(comments []Comment) int {
	n := 0
	for _, c := range comments {
		n += len(c.Replies)
	}
	return n
}
