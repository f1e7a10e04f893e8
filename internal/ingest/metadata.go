package ingest

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"contentpipe/internal/services"
)

// VideoMetadata describes a single video.
type VideoMetadata struct {
	Title           string
	Channel         string
	Published       *time.Time
	DurationSeconds int
}

// VideoMetadataSource looks up video metadata.
type VideoMetadataSource interface {
	VideoMetadata(ctx context.Context, videoID string) (VideoMetadata, error)
}

// DataAPI reads metadata from the YouTube Data API.
type DataAPI struct {
	svc *youtube.Service
}

// NewDataAPI builds a metadata source authenticated with an API key.
func NewDataAPI(ctx context.Context, apiKey string, opts ...option.ClientOption) (*DataAPI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ingest", "youtube api", "ingest.youtube_api_key is empty", nil)
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ingest", "youtube api", "create service", err)
	}
	return &DataAPI{svc: svc}, nil
}

func (d *DataAPI) VideoMetadata(ctx context.Context, videoID string) (VideoMetadata, error) {
	resp, err := d.svc.Videos.List([]string{"snippet", "contentDetails"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return VideoMetadata{}, services.Wrap(services.ErrExternalTool, "ingest", "videos.list", videoID, err)
	}
	if len(resp.Items) == 0 {
		return VideoMetadata{}, services.Wrap(services.ErrNotFound, "ingest", "videos.list", videoID, nil)
	}
	return metadataFromVideo(resp.Items[0]), nil
}

func metadataFromVideo(v *youtube.Video) VideoMetadata {
	var meta VideoMetadata
	if v.Snippet != nil {
		meta.Title = strings.TrimSpace(v.Snippet.Title)
		meta.Channel = strings.TrimSpace(v.Snippet.ChannelTitle)
		meta.Published = parseTime(v.Snippet.PublishedAt)
	}
	if v.ContentDetails != nil {
		meta.DurationSeconds, _ = ParseISODuration(v.ContentDetails.Duration)
	}
	return meta
}

// PageMetadata scrapes the watch page. It needs no credentials.
type PageMetadata struct {
	base  string
	fetch fetcher
}

// NewPageMetadata builds a page-scraping metadata source.
func NewPageMetadata(base string, f fetcher) *PageMetadata {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultYouTubeBase
	}
	return &PageMetadata{base: base, fetch: f}
}

func (p *PageMetadata) VideoMetadata(ctx context.Context, videoID string) (VideoMetadata, error) {
	body, err := p.fetch.get(ctx, p.base+"/watch?v="+videoID)
	if err != nil {
		return VideoMetadata{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return VideoMetadata{}, services.Wrap(services.ErrExternalTool, "ingest", "parse watch page", videoID, err)
	}
	meta := VideoMetadata{
		Title:   firstNonEmpty(attr(doc, `meta[property="og:title"]`, "content"), attr(doc, `meta[name="title"]`, "content"), strings.TrimSpace(doc.Find("title").First().Text())),
		Channel: firstNonEmpty(attr(doc, `span[itemprop="author"] link[itemprop="name"]`, "content"), attr(doc, `link[itemprop="name"]`, "content")),
	}
	meta.Published = parseTime(firstNonEmpty(attr(doc, `meta[itemprop="datePublished"]`, "content"), attr(doc, `meta[itemprop="uploadDate"]`, "content")))
	meta.DurationSeconds, _ = ParseISODuration(attr(doc, `meta[itemprop="duration"]`, "content"))
	return meta, nil
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration converts an ISO 8601 duration such as "PT1H2M3S" into
// seconds.
func ParseISODuration(value string) (int, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	m := isoDuration.FindStringSubmatch(value)
	if m == nil || value == "P" || value == "PT" {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	units := []int{86400, 3600, 60, 1}
	total := 0
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", value, err)
		}
		total += n * unit
	}
	return total, nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			utc := ts.UTC()
			return &utc
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
