package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhsdl/pkg/config"
	"xhsdl/pkg/errors"
	"xhsdl/pkg/logger"
	"xhsdl/pkg/models"
	"xhsdl/pkg/storage"
	"xhsdl/pkg/view/viewtest"
)

func testApp(t *testing.T) *app {
	t.Helper()
	store, err := storage.OpenSQLiteMemory()
	require.NoError(t, err)
	out, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Output.Directory = out.GetOutputDir()
	a := &app{cfg: cfg, log: logger.NewNopLogger(), store: store, out: out}
	t.Cleanup(a.Close)
	return a
}

func TestSearchURL(t *testing.T) {
	assert.Equal(t,
		"https://www.xiaohongshu.com/search_result?keyword=%E7%A9%BF%E6%90%AD+%E6%98%A5&source=web_search_result_notes",
		SearchURL("穿搭 春"))
}

func TestFlagMapOnlyChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().Bool("headless", true, "")
	cmd.Flags().Int("max-records", 0, "")
	cmd.Flags().String("proxy", "", "")
	cmd.Flags().String("output", "", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--headless=false", "--max-records", "50", "--proxy", "http://p:1"}))

	flags := flagMap(cmd.Flags())
	assert.Equal(t, false, flags["headless"])
	assert.Equal(t, 50, flags["max-records"])
	assert.Equal(t, "http://p:1", flags["proxy"])
	assert.NotContains(t, flags, "output")

	cfg := config.DefaultConfig()
	cfg.MergeCommandLineFlags(flags)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 50, cfg.Collect.MaxRecords)
}

func TestSnapshotSession(t *testing.T) {
	a := testApp(t)
	path := filepath.Join(t.TempDir(), "note.html")
	html := viewtest.DetailHTML(viewtest.Detail{
		Title:    "春季穿搭",
		Author:   "alice",
		Comments: viewtest.Comments(0, 2),
		End:      true,
	})
	require.NoError(t, os.WriteFile(path, []byte(html), 0644))

	s, err := a.session(context.Background(), "https://www.xiaohongshu.com/explore/abc123", path)
	require.NoError(t, err)

	post, err := s.ExtractCurrentItem(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", post.ID)
	assert.Equal(t, "春季穿搭", post.Title)

	res, err := s.CollectComments(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
}

func TestSnapshotPageCannotNavigate(t *testing.T) {
	var p snapshotPage
	assert.True(t, errors.Is(p.Open(context.Background(), models.SearchResultItem{ID: "x"}), errors.ErrorTypeNotFound))
	assert.True(t, errors.Is(p.Back(context.Background()), errors.ErrorTypeNotFound))
}

func TestExportStored(t *testing.T) {
	a := testApp(t)
	ctx := context.Background()

	_, err := a.store.Upsert(ctx, models.Post{ID: "aa01", Title: "first", Comments: []models.Comment{{Author: "bob", Content: "hi"}}})
	require.NoError(t, err)
	_, err = a.store.Upsert(ctx, models.Post{ID: "bb02", Title: "second"})
	require.NoError(t, err)

	paths, err := exportStored(ctx, a.store, a.out, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "xhs_aa01_first.csv", filepath.Base(paths[0]))
	assert.Equal(t, "xhs_bb02_second.csv", filepath.Base(paths[1]))

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "bob"))
}
