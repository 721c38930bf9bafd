package extract

import (
	"context"
	"net"
	"net/url"
	"strings"

	"xhsdl/pkg/view"
)

// imageAttrs are tried in order: original resolution, lazy source, rendered
var imageAttrs = []string{"data-origin-src", "data-src", "src"}

// Media returns the image and video URLs of the open detail view, each
// normalized, filtered to hosts and deduplicated in first-seen order
func Media(ctx context.Context, v view.View, hosts []string) (images, videos []string, err error) {
	imgNodes, err := v.QueryAll(ctx, SelImages)
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[string]struct{})
	images = []string{}
	for _, n := range imgNodes {
		raw := ""
		for _, attr := range imageAttrs {
			if raw = n.Attr(attr); raw != "" {
				break
			}
		}
		u := NormalizeMediaURL(StripQuery(raw))
		if !allowed(u, hosts) {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		images = append(images, u)
	}

	videoNodes, err := v.QueryAll(ctx, SelVideos)
	if err != nil {
		return nil, nil, err
	}
	videos = []string{}
	for _, n := range videoNodes {
		u := NormalizeMediaURL(n.Attr("src"))
		if !allowed(u, hosts) {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		videos = append(videos, u)
	}
	return images, videos, nil
}

// StripQuery drops the querystring, which carries resize and compression
// parameters on image URLs
func StripQuery(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}

// NormalizeMediaURL upgrades protocol-relative and plain http URLs to https.
// Loopback hosts keep http.
func NormalizeMediaURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "//") {
		return "https:" + s
	}
	if strings.HasPrefix(s, "http://") {
		u, err := url.Parse(s)
		if err == nil && isLoopback(u.Hostname()) {
			return s
		}
		return "https://" + strings.TrimPrefix(s, "http://")
	}
	return s
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func allowed(u string, hosts []string) bool {
	if u == "" || !strings.HasPrefix(u, "http") {
		return false
	}
	if len(hosts) == 0 {
		return true
	}
	for _, h := range hosts {
		if strings.Contains(u, h) {
			return true
		}
	}
	return false
}
