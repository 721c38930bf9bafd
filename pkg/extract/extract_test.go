package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhsdl/pkg/errors"
	"xhsdl/pkg/ledger"
	"xhsdl/pkg/view/viewtest"
)

var now = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

func detailPage(d viewtest.Detail) *viewtest.Page {
	return viewtest.NewPage(&viewtest.Screen{
		Location: "https://www.xiaohongshu.com/explore/65a1b2c3d4e5f6?xsec_token=abc",
		Frames:   []string{viewtest.DetailHTML(d)},
	})
}

func TestPost(t *testing.T) {
	p := detailPage(viewtest.Detail{
		Title: "周末去哪儿",
		Desc:  "公园散步",
		Tags:  []string{"#周末", "#公园"},
		Images: []string{
			"//sns-webpic-qc.xhscdn.com/a.jpg?imageView2/2/w/100",
			"http://sns-img.xhscdn.com/b.png",
			"//sns-webpic-qc.xhscdn.com/a.jpg?imageView2/2/w/1080",
			"https://ads.example.com/banner.jpg",
		},
		Videos:   []string{"http://sns-video-bd.xhscdn.com/v.mp4?sign=1"},
		Author:   "小红",
		Likes:    "1.2万",
		Collects: "300",
		Chats:    "45",
		Date:     "编辑于 昨天 20:33",
		Location: "上海",
	})

	post, err := Post(context.Background(), p, now, Options{AssetHosts: []string{"xhscdn.com"}})
	require.NoError(t, err)

	assert.Equal(t, "65a1b2c3d4e5f6", post.ID)
	assert.Equal(t, "周末去哪儿", post.Title)
	assert.Contains(t, post.Body, "公园散步")
	assert.Equal(t, []string{"#周末", "#公园"}, post.Tags)
	assert.Equal(t, []string{
		"https://sns-webpic-qc.xhscdn.com/a.jpg",
		"https://sns-img.xhscdn.com/b.png",
	}, post.MediaURLs)
	assert.Equal(t, []string{"https://sns-video-bd.xhscdn.com/v.mp4?sign=1"}, post.VideoURLs)
	assert.Equal(t, "小红", post.Author)
	assert.Equal(t, "1.2万", post.Likes)
	assert.Equal(t, "300", post.Collects)
	assert.Equal(t, "45", post.CommentsCnt)
	assert.Equal(t, "2024-01-01 20:33:00", post.PublishedAt)
	assert.Equal(t, "上海", post.Location)
	assert.Equal(t, now, post.ExtractedAt)
	assert.Len(t, post.Assets(), 3)
}

func TestPostDegradesToDefaults(t *testing.T) {
	p := viewtest.NewPage(&viewtest.Screen{
		Location: "https://www.xiaohongshu.com/user/profile/1",
		Frames:   []string{`<div id="noteContainer"></div>`},
	})

	post, err := Post(context.Background(), p, now, Options{})
	require.NoError(t, err)
	assert.Equal(t, UnknownID, post.ID)
	assert.Empty(t, post.Title)
	assert.Empty(t, post.Tags)
	assert.Empty(t, post.MediaURLs)
	assert.Empty(t, post.Likes)
}

func TestPostRequiresContainer(t *testing.T) {
	p := viewtest.NewPage(&viewtest.Screen{Frames: []string{`<div class="feeds-container"></div>`}})

	_, err := Post(context.Background(), p, now, Options{})
	assert.True(t, errors.Is(err, errors.ErrorTypeContainerNotFound))
}

func TestPostID(t *testing.T) {
	tests := []struct {
		location string
		want     string
	}{
		{"https://www.xiaohongshu.com/explore/abc123", "abc123"},
		{"https://www.xiaohongshu.com/discovery/item/ff00?x=1", "ff00"},
		{"https://www.xiaohongshu.com/search_result?keyword=a", UnknownID},
		{"", UnknownID},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PostID(tt.location), tt.location)
	}
}

func TestNormalizeMediaURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"protocol relative", "//sns-img.xhscdn.com/a.jpg", "https://sns-img.xhscdn.com/a.jpg"},
		{"insecure upgraded", "http://sns-img.xhscdn.com/a.jpg", "https://sns-img.xhscdn.com/a.jpg"},
		{"loopback ip kept", "http://127.0.0.1:8080/a.jpg", "http://127.0.0.1:8080/a.jpg"},
		{"localhost kept", "http://localhost/a.jpg", "http://localhost/a.jpg"},
		{"secure unchanged", "https://sns-img.xhscdn.com/a.jpg", "https://sns-img.xhscdn.com/a.jpg"},
		{"empty", "  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeMediaURL(tt.raw))
		})
	}
}

func TestCommentsExtractor(t *testing.T) {
	p := detailPage(viewtest.Detail{
		Comments: []viewtest.Comment{
			{Author: "a", Content: "first", Date: "5分钟前", Likes: "3", Replies: []viewtest.Comment{
				{Author: "b", Content: "reply one", Date: "刚刚", Likes: "1"},
				{Author: "c", Content: ""},
				{Author: "a", Content: "first"},
			}},
			{Author: "d", Content: ""},
		},
	})
	nodes, err := p.QueryAll(context.Background(), SelComments)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	ex := Comments{Ref: now}
	l := ledger.New()

	key, ok := ex.Key(nodes[0])
	require.True(t, ok)
	assert.Equal(t, "a|first", key)
	l.Record(key)

	c := ex.Extract(nodes[0], l)
	assert.Equal(t, "a", c.Author)
	assert.Equal(t, "first", c.Content)
	assert.Equal(t, "2024-01-02 08:55:00", c.Timestamp)
	assert.Equal(t, "3", c.Likes)
	require.Len(t, c.Replies, 1, "empty and already seen replies are dropped")
	assert.Equal(t, "b", c.Replies[0].Author)
	assert.Equal(t, "2024-01-02 09:00:00", c.Replies[0].Timestamp)
	assert.True(t, l.Seen("b|reply one"))

	_, ok = ex.Key(nodes[1])
	assert.False(t, ok, "comments without content have no identity")
}

func TestSearchItems(t *testing.T) {
	cards := []viewtest.Card{
		{Href: "/explore/aa11", Title: "one", Author: "u1", AuthorHref: "/user/profile/u1", Likes: "10"},
		{Href: "/search_result/bb22?xsec_token=t", Title: "two", Author: "u2", Likes: "20"},
		{Href: "/some/other/page", Title: "three"},
		{Href: "", Title: "no link"},
	}
	p := viewtest.NewPage(&viewtest.Screen{
		Location: "https://www.xiaohongshu.com/search_result?keyword=cat",
		Frames:   []string{viewtest.SearchHTML(cards, false)},
	})
	ctx := context.Background()
	l := ledger.New()

	items, err := SearchItems(ctx, p, l)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "aa11", items[0].ID)
	assert.Equal(t, "one", items[0].Title)
	assert.Equal(t, "u1", items[0].Author)
	assert.Equal(t, "https://www.xiaohongshu.com/user/profile/u1", items[0].AuthorLink)
	assert.Equal(t, "10", items[0].Likes)
	assert.Equal(t, "https://www.xiaohongshu.com/explore/aa11", items[0].URL)
	assert.Equal(t, "bb22", items[1].ID)
	assert.Equal(t, "https://www.xiaohongshu.com/some/other/page", items[2].ID, "falls back to the url")

	again, err := SearchItems(ctx, p, l)
	require.NoError(t, err)
	assert.Empty(t, again)
}
