package metadata

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"xhsdl/pkg/models"
)

// FileName is the name of the manifest entry inside a media archive
const FileName = "manifest.json"

// Manifest describes the contents of one media archive
type Manifest struct {
	// Core identifiers
	PostID string `json:"post_id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	URL    string `json:"url"`

	// Timestamps
	PublishedAt  string    `json:"published_at,omitempty"`
	DownloadedAt time.Time `json:"downloaded_at"`

	Assets []Asset `json:"assets"`
}

// Asset is one archived (or skipped) media file
type Asset struct {
	Index int              `json:"index"`
	Kind  models.MediaKind `json:"kind"`
	URL   string           `json:"url"`
	File  string           `json:"file,omitempty"`
	Size  int64            `json:"size,omitempty"`
	Error string           `json:"error,omitempty"`
}

// FromPost starts a manifest for post with no assets recorded
func FromPost(post *models.Post, downloadedAt time.Time) *Manifest {
	return &Manifest{
		PostID:       post.ID,
		Title:        post.Title,
		Author:       post.Author,
		URL:          post.URL,
		PublishedAt:  post.PublishedAt,
		DownloadedAt: downloadedAt,
		Assets:       []Asset{},
	}
}

// Add records an archived asset
func (m *Manifest) Add(index int, a models.MediaAsset, file string, size int64) {
	m.Assets = append(m.Assets, Asset{Index: index, Kind: a.Kind, URL: a.URL, File: file, Size: size})
}

// Skip records an asset that could not be fetched
func (m *Manifest) Skip(index int, a models.MediaAsset, err error) {
	m.Assets = append(m.Assets, Asset{Index: index, Kind: a.Kind, URL: a.URL, Error: err.Error()})
}

// Counts returns the number of archived and skipped assets
func (m *Manifest) Counts() (archived, skipped int) {
	for _, a := range m.Assets {
		if a.Error != "" {
			skipped++
		} else {
			archived++
		}
	}
	return archived, skipped
}

// Encode writes the manifest as indented JSON
func (m *Manifest) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return nil
}

// Decode reads a manifest written by Encode
func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}
