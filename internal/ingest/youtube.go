package ingest

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"contentpipe/internal/services"
)

// DefaultYouTubeBase is the origin used for channel pages, feeds and timed text.
const DefaultYouTubeBase = "https://www.youtube.com"

var (
	videoIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	channelIDPattern = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)
	channelInURL     = regexp.MustCompile(`/channel/(UC[A-Za-z0-9_-]{22})`)
	channelInPage    = regexp.MustCompile(`"(?:channelId|externalId)":"(UC[A-Za-z0-9_-]{22})"`)
)

// IsYouTubeURL reports whether rawURL points at a single YouTube video.
func IsYouTubeURL(rawURL string) bool {
	return ExtractVideoID(rawURL) != ""
}

// ExtractVideoID returns the video ID from watch, short-link, shorts and
// embed URLs, or an empty string.
func ExtractVideoID(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	var candidate string
	switch host {
	case "youtu.be":
		candidate = strings.Trim(parsed.Path, "/")
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		path := parsed.Path
		switch {
		case path == "/watch":
			candidate = parsed.Query().Get("v")
		case strings.HasPrefix(path, "/shorts/"):
			candidate = strings.TrimPrefix(path, "/shorts/")
		case strings.HasPrefix(path, "/embed/"):
			candidate = strings.TrimPrefix(path, "/embed/")
		case strings.HasPrefix(path, "/live/"):
			candidate = strings.TrimPrefix(path, "/live/")
		}
	default:
		return ""
	}
	if i := strings.IndexByte(candidate, '/'); i >= 0 {
		candidate = candidate[:i]
	}
	if !videoIDPattern.MatchString(candidate) {
		return ""
	}
	return candidate
}

// WatchURL returns the canonical watch URL for a video ID.
func WatchURL(videoID string) string {
	return DefaultYouTubeBase + "/watch?v=" + url.QueryEscape(videoID)
}

// ChannelResolver maps a configured channel reference onto a channel ID.
type ChannelResolver interface {
	ResolveChannel(ctx context.Context, ref string) (string, error)
}

// YouTube resolves channel references and builds channel feed URLs.
type YouTube struct {
	base  string
	fetch fetcher
}

// NewYouTube builds a YouTube helper against base, or the public site when
// base is empty.
func NewYouTube(base string, f fetcher) *YouTube {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultYouTubeBase
	}
	return &YouTube{base: base, fetch: f}
}

// ChannelFeedURL returns the Atom feed listing a channel's recent uploads.
func (y *YouTube) ChannelFeedURL(channelID string) string {
	return y.base + "/feeds/videos.xml?channel_id=" + url.QueryEscape(channelID)
}

// ResolveChannel accepts a raw channel ID, a /channel/ URL, an @handle, or a
// handle or custom URL. Only the last two need a page fetch.
func (y *YouTube) ResolveChannel(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", services.Wrap(services.ErrValidation, "ingest", "resolve channel", "empty channel reference", nil)
	}
	if channelIDPattern.MatchString(ref) {
		return ref, nil
	}
	if m := channelInURL.FindStringSubmatch(ref); m != nil {
		return m[1], nil
	}
	pageURL, err := y.channelPageURL(ref)
	if err != nil {
		return "", err
	}
	body, err := y.fetch.get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	if id := channelIDFromPage(body); id != "" {
		return id, nil
	}
	return "", services.Wrap(services.ErrNotFound, "ingest", "resolve channel", fmt.Sprintf("no channel id on %s", pageURL), nil)
}

func (y *YouTube) channelPageURL(ref string) (string, error) {
	if strings.HasPrefix(ref, "@") {
		return y.base + "/" + ref, nil
	}
	parsed, err := url.Parse(ref)
	if err != nil || parsed.Host == "" {
		return "", services.Wrap(services.ErrValidation, "ingest", "resolve channel", fmt.Sprintf("unrecognised channel reference %q", ref), err)
	}
	return y.base + parsed.EscapedPath(), nil
}

func channelIDFromPage(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		candidates := []string{
			attr(doc, `meta[itemprop="identifier"]`, "content"),
			attr(doc, `meta[itemprop="channelId"]`, "content"),
			attr(doc, `link[rel="canonical"]`, "href"),
			attr(doc, `meta[property="og:url"]`, "content"),
		}
		for _, c := range candidates {
			if channelIDPattern.MatchString(c) {
				return c
			}
			if m := channelInURL.FindStringSubmatch(c); m != nil {
				return m[1]
			}
		}
	}
	if m := channelInPage.FindSubmatch(body); m != nil {
		return string(m[1])
	}
	return ""
}

func attr(doc *goquery.Document, selector, name string) string {
	value, _ := doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(value)
}
