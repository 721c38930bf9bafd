// Package export renders collected data as a spreadsheet-friendly CSV:
// sectioned key/value rows for the post, a table of comments and replies,
// and a table of search results.
package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"xhsdl/pkg/errors"
	"xhsdl/pkg/models"
)

// BOM lets spreadsheet tools detect UTF-8
const BOM = "\ufeff"

const (
	kindComment = "主评论"
	kindReply   = "↳ 回复"
)

// Data is what one export covers. Any part may be empty, but not all.
type Data struct {
	Post     *models.Post
	Comments []models.Comment
	Results  []models.SearchResultItem
}

// Empty reports whether there is nothing to export
func (d Data) Empty() bool {
	return d.Post == nil && len(d.Comments) == 0 && len(d.Results) == 0
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Escape quotes a field. Line breaks collapse to spaces first; the field is
// quoted when it holds a comma or a quote, with quotes doubled.
func Escape(v string) string {
	s := lineBreaks.Replace(v)
	if strings.ContainsAny(s, ",\"") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// Row joins escaped fields
func Row(fields ...string) string {
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = Escape(f)
	}
	return strings.Join(escaped, ",")
}

// CSV renders d. now stamps the export and stands in for a missing
// extraction time.
func CSV(d Data, now time.Time) (string, error) {
	if d.Empty() {
		return "", errors.New(errors.ErrorTypeNotFound, "no data to export")
	}

	var rows []string
	if d.Post != nil || len(d.Comments) > 0 {
		rows = append(rows, postRows(d.Post, now)...)
		rows = append(rows, "")
	}

	rows = append(rows,
		Row("=== 评论明细 ===", "", "", "", ""),
		Row("序号", "用户", "评论内容", "评论时间", "点赞数", "类型"),
	)
	idx := 1
	for _, c := range d.Comments {
		rows = append(rows, Row(strconv.Itoa(idx), c.Author, c.Content, c.Timestamp, c.Likes, kindComment))
		idx++
		for _, r := range c.Replies {
			rows = append(rows, Row(strconv.Itoa(idx), r.Author, r.Content, r.Timestamp, r.Likes, kindReply))
			idx++
		}
	}
	rows = append(rows, "", Row("合计评论数", strconv.Itoa(len(d.Comments))))

	if len(d.Results) > 0 {
		rows = append(rows, "",
			Row("=== 搜索结果列表 ===", "", "", "", "", ""),
			Row("序号", "笔记ID", "标题", "作者", "点赞数", "链接"),
		)
		for i, item := range d.Results {
			rows = append(rows, Row(strconv.Itoa(i+1), item.ID, item.Title, item.Author, item.Likes, item.URL))
		}
	}

	rows = append(rows, "", Row("导出时间", now.Format(time.RFC3339)))
	return BOM + strings.Join(rows, "\r\n"), nil
}

func postRows(p *models.Post, now time.Time) []string {
	if p == nil {
		p = &models.Post{}
	}
	extracted := now
	if !p.ExtractedAt.IsZero() {
		extracted = p.ExtractedAt
	}

	rows := []string{
		Row("=== 笔记详情信息 ===", "", "", "", ""),
		Row("笔记ID", p.ID),
		Row("标题", p.Title),
		Row("作者", p.Author),
		Row("发布日期", p.PublishedAt),
		Row("IP属地", p.Location),
		Row("点赞", p.Likes, "收藏", p.Collects, "评论数", p.CommentsCnt),
		Row("正文", p.Body),
		Row("标签", strings.Join(p.Tags, " ")),
		Row("图片链接", strings.Join(p.MediaURLs, " | ")),
	}
	if len(p.VideoURLs) > 0 {
		rows = append(rows, Row("视频链接", strings.Join(p.VideoURLs, " | ")))
	}
	return append(rows,
		Row("原文链接", p.URL),
		Row("提取时间", extracted.Format(time.RFC3339)),
	)
}

var fileNameReplacer = strings.NewReplacer(
	`\`, "_", "/", "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_", "\n", "_", "\r", "_",
)

// FileName names the export of d
func FileName(d Data, now time.Time) string {
	if d.Post != nil && d.Post.ID != "" {
		return fmt.Sprintf("xhs_%s_%s.csv", d.Post.ID, fileNameReplacer.Replace(truncate(d.Post.Title, 20)))
	}
	return fmt.Sprintf("xhs_search_export_%d.csv", now.UnixMilli())
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
