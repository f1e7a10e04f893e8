package ingest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"contentpipe/internal/services"
)

// Entry is one listed feed item.
type Entry struct {
	Link      string
	Title     string
	Author    string
	Published *time.Time
	VideoID   string
}

// FeedReader lists the most recent entries of an RSS or Atom feed.
type FeedReader interface {
	Recent(ctx context.Context, feedURL string, limit int) ([]Entry, error)
}

// GoFeedReader reads feeds with gofeed.
type GoFeedReader struct {
	parser *gofeed.Parser
}

// NewFeedReader builds a reader using client and userAgent for requests.
func NewFeedReader(client *http.Client, userAgent string) *GoFeedReader {
	f := newFetcher(client, userAgent)
	parser := gofeed.NewParser()
	parser.Client = f.client
	parser.UserAgent = f.userAgent
	return &GoFeedReader{parser: parser}
}

func (r *GoFeedReader) Recent(ctx context.Context, feedURL string, limit int) ([]Entry, error) {
	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ingest", "parse feed", feedURL, err)
	}
	count := len(feed.Items)
	if limit > 0 && count > limit {
		count = limit
	}
	entries := make([]Entry, 0, count)
	for _, it := range feed.Items[:count] {
		if it == nil || strings.TrimSpace(it.Link) == "" {
			continue
		}
		entries = append(entries, entryFromItem(it))
	}
	return entries, nil
}

func entryFromItem(it *gofeed.Item) Entry {
	entry := Entry{
		Link:  strings.TrimSpace(it.Link),
		Title: strings.TrimSpace(it.Title),
	}
	if it.Author != nil {
		entry.Author = strings.TrimSpace(it.Author.Name)
	}
	switch {
	case it.PublishedParsed != nil:
		entry.Published = it.PublishedParsed
	case it.UpdatedParsed != nil:
		entry.Published = it.UpdatedParsed
	}
	if yt, ok := it.Extensions["yt"]; ok {
		if ids := yt["videoId"]; len(ids) > 0 {
			entry.VideoID = strings.TrimSpace(ids[0].Value)
		}
	}
	if entry.VideoID == "" {
		entry.VideoID = ExtractVideoID(entry.Link)
	}
	return entry
}
