// Package media downloads the images and videos of a post and packages
// them into an uncompressed zip archive.
package media

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"xhsdl/internal/downloader"
	"xhsdl/pkg/config"
	errs "xhsdl/pkg/errors"
	"xhsdl/pkg/fetch"
	"xhsdl/pkg/logger"
	"xhsdl/pkg/metadata"
	"xhsdl/pkg/models"
	"xhsdl/pkg/ratelimit"
	"xhsdl/pkg/storage"
)

const titleRunes = 30

var unsafeName = strings.NewReplacer(
	`\`, "_", "/", "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_", "\n", "_", "\r", "_",
)

// Sanitize makes s usable inside a file name
func Sanitize(s string, maxRunes int) string {
	r := []rune(unsafeName.Replace(s))
	if len(r) > maxRunes {
		r = r[:maxRunes]
	}
	out := strings.TrimSpace(string(r))
	if out == "" {
		return "untitled"
	}
	return out
}

// ArchiveName returns the zip name for post downloaded at t
func ArchiveName(post *models.Post, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s.zip", post.ID, Sanitize(post.Title, titleRunes), t.Format("20060102"))
}

// AssetName returns the archive entry name of the n-th asset of its kind,
// counting from 1
func AssetName(a models.MediaAsset, n int) string {
	if a.Kind == models.MediaVideo {
		ext := "mp4"
		if !strings.Contains(a.URL, ".mp4") && strings.Contains(a.URL, ".webm") {
			ext = "webm"
		}
		return fmt.Sprintf("video_%d.%s", n, ext)
	}
	ext := "jpg"
	if strings.Contains(a.URL, ".png") {
		ext = "png"
	}
	return fmt.Sprintf("img_%d.%s", n, ext)
}

// Jobs numbers the assets of post into download jobs
func Jobs(assets []models.MediaAsset) []downloader.AssetJob {
	jobs := make([]downloader.AssetJob, len(assets))
	images, videos := 0, 0
	for i, a := range assets {
		n := 0
		if a.Kind == models.MediaVideo {
			videos++
			n = videos
		} else {
			images++
			n = images
		}
		jobs[i] = downloader.AssetJob{Index: i, Asset: a, Name: AssetName(a, n)}
	}
	return jobs
}

// Result describes a finished download
type Result struct {
	Path       string             `json:"path"`
	Name       string             `json:"name"`
	Downloaded int                `json:"downloaded"`
	Failed     int                `json:"failed"`
	Manifest   *metadata.Manifest `json:"manifest"`
}

// Downloader fetches post media and writes archives through a storage
// manager
type Downloader struct {
	fetcher    fetch.Fetcher
	out        *storage.Manager
	workers    int
	imagePause time.Duration
	skipVideos bool
	logger     logger.Logger
	now        func() time.Time
}

// Option configures a Downloader
type Option func(*Downloader)

// WithClock overrides the archive date source
func WithClock(now func() time.Time) Option {
	return func(d *Downloader) { d.now = now }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(d *Downloader) { d.logger = l }
}

// New creates a downloader from the download configuration
func New(f fetch.Fetcher, out *storage.Manager, cfg config.DownloadConfig, opts ...Option) *Downloader {
	d := &Downloader{
		fetcher:    f,
		out:        out,
		workers:    cfg.Workers,
		imagePause: cfg.ImagePause,
		skipVideos: cfg.SkipVideos,
		logger:     logger.GetLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers < 1 {
		d.workers = 1
	}
	return d
}

// Download fetches every asset of post and saves the archive. Assets that
// fail are skipped and listed in the manifest. It fails when the post has
// no media or when no asset could be fetched.
func (d *Downloader) Download(ctx context.Context, post *models.Post) (*Result, error) {
	assets := post.Assets()
	if d.skipVideos {
		assets = assets[:len(post.MediaURLs)]
	}
	if len(assets) == 0 {
		return nil, errs.New(errs.ErrorTypeNotFound, "post has no downloadable media")
	}

	log := d.logger.WithFields(map[string]interface{}{
		"item_id": post.ID,
		"assets":  len(assets),
	})
	log.Info("Downloading media")

	started := d.now()
	pool := downloader.NewWorkerPool(ctx, d.workers, d.fetcher, ratelimit.NewPacer(d.imagePause, 1), d.logger)
	results := pool.Run(Jobs(assets))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	manifest := metadata.FromPost(post, started)
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, r := range results {
		if r.Error == nil && len(r.Data) == 0 {
			r.Error = fmt.Errorf("empty body")
		}
		if r.Error != nil {
			manifest.Skip(r.Job.Index, r.Job.Asset, r.Error)
			continue
		}
		if err := store(zw, r.Job.Name, r.Data, started); err != nil {
			return nil, err
		}
		manifest.Add(r.Job.Index, r.Job.Asset, r.Job.Name, int64(len(r.Data)))
	}

	downloaded, failed := manifest.Counts()
	if downloaded == 0 {
		return nil, errs.New(errs.ErrorTypeNetwork, fmt.Sprintf("all %d media downloads failed", failed))
	}

	var mbuf bytes.Buffer
	if err := manifest.Encode(&mbuf); err != nil {
		return nil, err
	}
	if err := store(zw, metadata.FileName, mbuf.Bytes(), started); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}

	name := ArchiveName(post, started)
	path, err := d.out.Save(name, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to save archive: %w", err)
	}

	log.InfoWithFields("Media archived", map[string]interface{}{
		"file":       path,
		"downloaded": downloaded,
		"failed":     failed,
	})

	return &Result{
		Path:       path,
		Name:       name,
		Downloaded: downloaded,
		Failed:     failed,
		Manifest:   manifest,
	}, nil
}

func store(zw *zip.Writer, name string, data []byte, modified time.Time) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Store,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
