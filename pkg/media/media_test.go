package media

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhsdl/pkg/config"
	errs "xhsdl/pkg/errors"
	"xhsdl/pkg/fetch"
	"xhsdl/pkg/logger"
	"xhsdl/pkg/metadata"
	"xhsdl/pkg/models"
	"xhsdl/pkg/storage"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a/b:c*d?e", "a_b_c_d_e"},
		{"  ", "untitled"},
		{"", "untitled"},
		{"line\nbreak", "line_break"},
		{strings.Repeat("长", 40), strings.Repeat("长", 30)},
		{"ab" + strings.Repeat(" ", 30) + "z", "ab"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in, 30), "input %q", tt.in)
	}
}

func TestArchiveName(t *testing.T) {
	post := &models.Post{ID: "65f1a2", Title: "春日/穿搭"}
	at := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "65f1a2_春日_穿搭_20240309.zip", ArchiveName(post, at))
}

func TestJobsNaming(t *testing.T) {
	post := &models.Post{
		MediaURLs: []string{"https://ci.xiaohongshu.com/a.png", "https://ci.xiaohongshu.com/b"},
		VideoURLs: []string{"https://sns-video.xhscdn.com/v.webm", "https://sns-video.xhscdn.com/w"},
	}
	jobs := Jobs(post.Assets())
	require.Len(t, jobs, 4)

	names := make([]string, len(jobs))
	for i, j := range jobs {
		names[i] = j.Name
		assert.Equal(t, i, j.Index)
	}
	assert.Equal(t, []string{"img_1.png", "img_2.jpg", "video_1.webm", "video_2.mp4"}, names)
}

func newDownloader(t *testing.T, cfg config.DownloadConfig) (*Downloader, *storage.Manager) {
	t.Helper()
	out, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)

	at := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	d := New(fetch.NewClient(2*time.Second, logger.NewNopLogger()), out, cfg,
		WithClock(func() time.Time { return at }),
		WithLogger(logger.NewNopLogger()),
	)
	return d, out
}

func assetServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/missing") {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "bytes of %s", r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readZip(t *testing.T, path string) map[string]*zip.File {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { zr.Close() })

	files := make(map[string]*zip.File)
	for _, f := range zr.File {
		files[f.Name] = f
	}
	return files
}

func TestDownload(t *testing.T) {
	srv := assetServer(t)
	d, out := newDownloader(t, config.DownloadConfig{Workers: 2})

	post := &models.Post{
		ID:        "abc",
		Title:     "title",
		MediaURLs: []string{srv.URL + "/one.png", srv.URL + "/missing.jpg", srv.URL + "/two.jpg"},
		VideoURLs: []string{srv.URL + "/clip.mp4"},
	}

	res, err := d.Download(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Downloaded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "abc_title_20240309.zip", res.Name)
	assert.True(t, out.Exists(res.Name))

	files := readZip(t, res.Path)
	require.Len(t, files, 4)
	for _, name := range []string{"img_1.png", "img_3.jpg", "video_1.mp4", metadata.FileName} {
		require.Contains(t, files, name)
		assert.Equal(t, zip.Store, files[name].Method, name)
	}
	assert.NotContains(t, files, "img_2.jpg")

	rc, err := files["img_1.png"].Open()
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "bytes of /one.png", string(body))

	rc, err = files[metadata.FileName].Open()
	require.NoError(t, err)
	m, err := metadata.Decode(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "abc", m.PostID)
	require.Len(t, m.Assets, 4)
	assert.NotEmpty(t, m.Assets[1].Error)
}

func TestDownloadSkipVideos(t *testing.T) {
	srv := assetServer(t)
	d, _ := newDownloader(t, config.DownloadConfig{SkipVideos: true})

	post := &models.Post{
		ID:        "abc",
		MediaURLs: []string{srv.URL + "/one.jpg"},
		VideoURLs: []string{srv.URL + "/clip.mp4"},
	}
	res, err := d.Download(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Downloaded)
	assert.Len(t, res.Manifest.Assets, 1)
}

func TestDownloadFailures(t *testing.T) {
	srv := assetServer(t)
	d, _ := newDownloader(t, config.DownloadConfig{})

	_, err := d.Download(context.Background(), &models.Post{ID: "abc"})
	assert.True(t, errs.Is(err, errs.ErrorTypeNotFound))

	_, err = d.Download(context.Background(), &models.Post{
		ID:        "abc",
		MediaURLs: []string{srv.URL + "/missing1.jpg", srv.URL + "/missing2.jpg"},
	})
	assert.True(t, errs.Is(err, errs.ErrorTypeNetwork))
}
