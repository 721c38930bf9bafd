package export

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhsdl/pkg/errors"
	"xhsdl/pkg/models"
)

var exportedAt = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func parse(t *testing.T, out string) [][]string {
	t.Helper()
	require.True(t, strings.HasPrefix(out, BOM))
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, BOM)))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

func TestEscape(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"comma", "a,b", `"a,b"`},
		{"quote", `say "hi"`, `"say ""hi"""`},
		{"newline collapses", "line1\nline2", "line1 line2"},
		{"crlf collapses", "line1\r\nline2", "line1 line2"},
		{"lone cr collapses", "line1\rline2", "line1 line2"},
		{"cr next to comma", "a,\rb", `"a, b"`},
		{"everything", "a,\"b\"\nc", `"a,""b"" c"`},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Escape(tt.in))
		})
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	field := "价格, \"很贵\"\n下次再来"
	r := csv.NewReader(strings.NewReader(Row("x", field) + "\n"))
	rec, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "价格, \"很贵\" 下次再来"}, rec)
}

func TestCSVFull(t *testing.T) {
	post := &models.Post{
		ID:          "abc",
		Title:       "标题",
		Body:        "第一行\n第二行",
		Tags:        []string{"#a", "#b"},
		MediaURLs:   []string{"https://x/1.jpg", "https://x/2.jpg"},
		VideoURLs:   []string{"https://x/v.mp4"},
		Author:      "作者",
		Likes:       "10",
		Collects:    "2",
		CommentsCnt: "3",
		PublishedAt: "2024-01-01 20:33:00",
		Location:    "上海",
		URL:         "https://www.xiaohongshu.com/explore/abc",
		ExtractedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	comments := []models.Comment{
		{Author: "u1", Content: "好看, 真的", Timestamp: "2024-02-01 00:00:00", Likes: "5",
			Replies: []models.Reply{{Author: "u2", Content: "同意", Likes: "1"}}},
		{Author: "u3", Content: "不错"},
	}
	results := []models.SearchResultItem{{ID: "s1", Title: "t", Author: "a", Likes: "9", URL: "https://x/s1"}}

	out, err := CSV(Data{Post: post, Comments: comments, Results: results}, exportedAt)
	require.NoError(t, err)
	assert.Contains(t, out, "\r\n")

	rec := parse(t, out)
	assert.Equal(t, "=== 笔记详情信息 ===", rec[0][0])
	assert.Equal(t, []string{"笔记ID", "abc"}, rec[1])
	assert.Equal(t, []string{"点赞", "10", "收藏", "2", "评论数", "3"}, rec[6])
	assert.Equal(t, []string{"正文", "第一行 第二行"}, rec[7])
	assert.Equal(t, []string{"标签", "#a #b"}, rec[8])
	assert.Equal(t, []string{"图片链接", "https://x/1.jpg | https://x/2.jpg"}, rec[9])
	assert.Equal(t, []string{"视频链接", "https://x/v.mp4"}, rec[10])
	assert.Equal(t, []string{"提取时间", "2024-03-01T09:00:00Z"}, rec[12])

	// csv.Reader skips blank lines
	assert.Equal(t, "=== 评论明细 ===", rec[13][0])
	assert.Equal(t, []string{"序号", "用户", "评论内容", "评论时间", "点赞数", "类型"}, rec[14])
	assert.Equal(t, []string{"1", "u1", "好看, 真的", "2024-02-01 00:00:00", "5", "主评论"}, rec[15])
	assert.Equal(t, []string{"2", "u2", "同意", "", "1", "↳ 回复"}, rec[16])
	assert.Equal(t, "3", rec[17][0])
	assert.Equal(t, []string{"合计评论数", "2"}, rec[18])
	assert.Equal(t, "=== 搜索结果列表 ===", rec[19][0])
	assert.Equal(t, []string{"1", "s1", "t", "a", "9", "https://x/s1"}, rec[21])
	assert.Equal(t, []string{"导出时间", "2024-03-01T10:00:00Z"}, rec[22])
}

func TestCSVSearchOnly(t *testing.T) {
	out, err := CSV(Data{Results: []models.SearchResultItem{{ID: "s1"}}}, exportedAt)
	require.NoError(t, err)

	assert.NotContains(t, out, "笔记详情信息")
	assert.Contains(t, out, "=== 评论明细 ===")
	assert.Contains(t, out, "合计评论数,0")
	assert.Contains(t, out, "=== 搜索结果列表 ===,,,,,")
}

func TestCSVNothingToExport(t *testing.T) {
	_, err := CSV(Data{}, exportedAt)
	assert.True(t, errors.Is(err, errors.ErrorTypeNotFound))
}

func TestFileName(t *testing.T) {
	post := &models.Post{ID: "abc", Title: `a/b:c*d?e"f<g>h|i 这是一个很长很长很长的标题`}
	assert.Equal(t, "xhs_abc_a_b_c_d_e_f_g_h_i 这是.csv", FileName(Data{Post: post}, exportedAt))

	assert.Equal(t, "xhs_search_export_1709287200000.csv", FileName(Data{}, exportedAt))
}
