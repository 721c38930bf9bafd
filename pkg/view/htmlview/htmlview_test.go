package htmlview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhsdl/pkg/errors"
)

const page = `<html><body>
<div id="noteContainer">
  <div id="detail-title"> Hello </div>
  <a class="cover" href="/explore/abc123">cover</a>
  <img src="//sns-img.xhscdn.com/x.jpg">
  <ul>
    <li class="item">one</li>
    <li class="item other">two</li>
  </ul>
</div>
</body></html>`

func TestDocumentQuery(t *testing.T) {
	doc, err := FromString(page, "https://www.xiaohongshu.com/explore/abc123")
	require.NoError(t, err)
	ctx := context.Background()

	n, err := doc.Query(ctx, "#detail-title")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "Hello", n.Text())

	missing, err := doc.Query(ctx, ".nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	items, err := doc.QueryAll(ctx, ".item")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "two", items[1].Text())

	loc, err := doc.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://www.xiaohongshu.com/explore/abc123", loc)
}

func TestNodeAttrResolvesURLs(t *testing.T) {
	doc, err := FromString(page, "https://www.xiaohongshu.com/search_result?keyword=x")
	require.NoError(t, err)
	root := doc.Root()

	assert.Equal(t, "https://www.xiaohongshu.com/explore/abc123", root.Query("a.cover").Attr("href"))
	assert.Equal(t, "https://sns-img.xhscdn.com/x.jpg", root.Query("img").Attr("src"))
	assert.Equal(t, "", root.Query("img").Attr("data-src"))
	assert.Equal(t, "item other", root.QueryAll("li")[1].Attr("class"))
}

func TestNodeWithoutBaseKeepsRawAttr(t *testing.T) {
	doc, err := FromString(page, "")
	require.NoError(t, err)
	assert.Equal(t, "/explore/abc123", doc.Root().Query("a.cover").Attr("href"))
}

func TestScrollAndClick(t *testing.T) {
	doc, err := FromString(page, "")
	require.NoError(t, err)
	ctx := context.Background()

	assert.NoError(t, doc.ScrollToBottom(ctx, "#noteContainer"))
	err = doc.ScrollToBottom(ctx, ".note-scroller")
	assert.True(t, errors.Is(err, errors.ErrorTypeContainerNotFound))

	assert.Error(t, doc.Root().Query("li").Click())
}
