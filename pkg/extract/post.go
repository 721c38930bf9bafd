// Package extract maps rendered nodes of the site to typed records. Missing
// optional nodes degrade to empty fields; only the detail-view guard can
// refuse to run.
package extract

import (
	"context"
	"regexp"
	"strings"
	"time"

	"xhsdl/pkg/errors"
	"xhsdl/pkg/models"
	"xhsdl/pkg/timeparse"
	"xhsdl/pkg/view"
)

// UnknownID is the post id used when the location carries none
const UnknownID = "unknown"

var (
	rePostID = regexp.MustCompile(`/(?:explore|discovery/item)/([a-f0-9]+)`)
	reCardID = regexp.MustCompile(`/(?:explore|discovery/item|search_result)/([a-f0-9]+)`)
)

// PostID returns the note id embedded in a detail view location
func PostID(location string) string {
	if m := rePostID.FindStringSubmatch(location); m != nil {
		return m[1]
	}
	return UnknownID
}

// Options tune extraction
type Options struct {
	// AssetHosts filters media URLs by host fragment. Empty disables the filter.
	AssetHosts []string
}

// Post reads the detail view currently open in v. now is the extraction
// instant and the reference for relative timestamps.
func Post(ctx context.Context, v view.View, now time.Time, opts Options) (*models.Post, error) {
	container, err := v.Query(ctx, SelNoteContainer)
	if err != nil {
		return nil, err
	}
	if container == nil {
		return nil, errors.ContainerNotFound(SelNoteContainer)
	}

	location, err := v.Location(ctx)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		ID:          PostID(location),
		Title:       view.FirstText(ctx, v, SelTitle),
		Author:      view.FirstText(ctx, v, SelAuthor),
		Location:    view.FirstText(ctx, v, SelLocation),
		URL:         location,
		ExtractedAt: now,
		Tags:        []string{},
	}

	if desc, _ := v.Query(ctx, SelDesc); desc != nil {
		post.Body = desc.Text()
		for _, tag := range desc.QueryAll(SelTags) {
			if t := tag.Text(); t != "" {
				post.Tags = append(post.Tags, t)
			}
		}
	}

	if bar, _ := v.Query(ctx, SelEngageBar); bar != nil {
		post.Likes = view.TextOf(bar, SelLikes)
		post.Collects = view.TextOf(bar, SelCollects)
		post.CommentsCnt = view.TextOf(bar, SelChats)
	}

	post.PublishedAt = PublishDate(view.FirstText(ctx, v, SelPublishDate), now)

	images, videos, err := Media(ctx, v, opts.AssetHosts)
	if err != nil {
		return nil, err
	}
	post.MediaURLs = images
	post.VideoURLs = videos

	return post, nil
}

// PublishDate normalizes the date line of a note. The line may carry an
// "edited" prefix and a trailing region name.
func PublishDate(raw string, ref time.Time) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimSpace(strings.TrimPrefix(text, "编辑于"))
	return timeparse.Normalize(text, ref)
}
