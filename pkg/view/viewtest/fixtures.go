package viewtest

import (
	"fmt"
	"html"
	"strings"
)

// Comment describes one rendered comment and its replies
type Comment struct {
	Author  string
	Content string
	Date    string
	Likes   string
	Replies []Comment
}

// Detail describes a rendered detail view
type Detail struct {
	Title    string
	Desc     string
	Tags     []string
	Images   []string
	Videos   []string
	Author   string
	Likes    string
	Collects string
	Chats    string
	Date     string
	Location string
	Comments []Comment
	// End renders the end-of-feed marker
	End bool
	// Expand renders this many "show more" affordances
	Expand int
	// NoScroller omits the comment feed container
	NoScroller bool
}

// Card describes one search result card
type Card struct {
	Href       string
	Title      string
	Author     string
	AuthorHref string
	Likes      string
}

var esc = html.EscapeString

// DetailHTML renders d the way the site lays out a note
func DetailHTML(d Detail) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="noteContainer">`)

	b.WriteString(`<div class="media-container"><div class="swiper-wrapper">`)
	for _, src := range d.Images {
		fmt.Fprintf(&b, `<div class="swiper-slide"><img data-origin-src="%s" src="%s"></div>`, esc(src), esc(src))
	}
	b.WriteString(`</div>`)
	for _, src := range d.Videos {
		fmt.Fprintf(&b, `<video src="%s"></video>`, esc(src))
	}
	b.WriteString(`</div>`)

	fmt.Fprintf(&b, `<div class="author-wrapper"><a class="name" href="/user/profile/1">%s</a></div>`, esc(d.Author))

	if !d.NoScroller {
		b.WriteString(`<div class="note-scroller">`)
	}
	fmt.Fprintf(&b, `<div id="detail-title">%s</div>`, esc(d.Title))
	fmt.Fprintf(&b, `<div id="detail-desc"><span class="note-text">%s</span>`, esc(d.Desc))
	for _, tag := range d.Tags {
		fmt.Fprintf(&b, ` <a class="tag" href="/search_result?keyword=%s">%s</a>`, esc(tag), esc(tag))
	}
	b.WriteString(`</div>`)
	fmt.Fprintf(&b, `<div class="bottom-container"><span class="date">%s</span><span class="location">%s</span></div>`,
		esc(d.Date), esc(d.Location))

	b.WriteString(`<div class="comments-el">`)
	for _, c := range d.Comments {
		b.WriteString(`<div class="parent-comment">`)
		writeComment(&b, c)
		for _, r := range c.Replies {
			b.WriteString(`<div class="sub-comment-item">`)
			writeComment(&b, r)
			b.WriteString(`</div>`)
		}
		b.WriteString(`</div>`)
	}
	for i := 0; i < d.Expand; i++ {
		b.WriteString(`<div class="show-more">展开更多回复</div>`)
	}
	b.WriteString(`</div>`)
	if d.End {
		b.WriteString(`<div class="end-container">- THE END -</div>`)
	}
	if !d.NoScroller {
		b.WriteString(`</div>`)
	}

	fmt.Fprintf(&b, `<div class="engage-bar"><span class="like-wrapper"><span class="count">%s</span></span>`+
		`<span class="collect-wrapper"><span class="count">%s</span></span>`+
		`<span class="chat-wrapper"><span class="count">%s</span></span></div>`,
		esc(d.Likes), esc(d.Collects), esc(d.Chats))

	b.WriteString(`</div></body></html>`)
	return b.String()
}

func writeComment(b *strings.Builder, c Comment) {
	fmt.Fprintf(b, `<a class="name">%s</a><span class="content">%s</span><span class="date">%s</span><span class="like-count">%s</span>`,
		esc(c.Author), esc(c.Content), esc(c.Date), esc(c.Likes))
}

// SearchHTML renders a search result feed. end adds the end marker.
func SearchHTML(cards []Card, end bool) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="feeds-container">`)
	for _, c := range cards {
		fmt.Fprintf(&b, `<section class="note-item"><a class="cover" href="%s"></a><div class="footer">`+
			`<a class="title"><span>%s</span></a><a class="author" href="%s"><span class="name">%s</span></a>`+
			`<span class="like-wrapper"><span class="count">%s</span></span></div></section>`,
			esc(c.Href), esc(c.Title), esc(c.AuthorHref), esc(c.Author), esc(c.Likes))
	}
	b.WriteString(`</div>`)
	if end {
		b.WriteString(`<div class="end-container">- THE END -</div>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

// Comments builds n distinct comments numbered from start
func Comments(start, n int) []Comment {
	out := make([]Comment, 0, n)
	for i := start; i < start+n; i++ {
		out = append(out, Comment{
			Author:  fmt.Sprintf("user%d", i),
			Content: fmt.Sprintf("comment %d", i),
			Date:    "刚刚",
			Likes:   fmt.Sprint(i),
		})
	}
	return out
}

// GrowingFeed returns frames whose comment list grows by step per scroll,
// starting from first comments, for the given number of frames
func GrowingFeed(base Detail, first, step, frames int) []string {
	out := make([]string, 0, frames)
	for i := 0; i < frames; i++ {
		d := base
		d.Comments = Comments(0, first+i*step)
		out = append(out, DetailHTML(d))
	}
	return out
}
