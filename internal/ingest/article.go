package ingest

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"contentpipe/internal/services"
)

// minArticleWords is the body length below which readability output is
// treated as a miss and the selector fallback runs.
const minArticleWords = 50

// Article is an extracted web article.
type Article struct {
	URL       string
	Title     string
	Author    string
	SiteName  string
	Published *time.Time
	Text      string
}

// ArticleExtractor fetches and extracts an article.
type ArticleExtractor interface {
	Extract(ctx context.Context, rawURL string) (Article, error)
}

// WebExtractor runs readability over the fetched page with a goquery
// fallback for pages readability cannot parse.
type WebExtractor struct {
	fetch fetcher
}

// NewWebExtractor builds an extractor using f for requests.
func NewWebExtractor(f fetcher) *WebExtractor {
	return &WebExtractor{fetch: f}
}

func (w *WebExtractor) Extract(ctx context.Context, rawURL string) (Article, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil || pageURL.Host == "" {
		return Article{}, services.Wrap(services.ErrValidation, "ingest", "extract article", rawURL, err)
	}
	body, err := w.fetch.get(ctx, rawURL)
	if err != nil {
		return Article{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Article{}, services.Wrap(services.ErrExternalTool, "ingest", "parse article", rawURL, err)
	}
	meta := pageMeta(doc)
	meta.URL = rawURL

	parsed, rerr := readability.FromReader(bytes.NewReader(body), pageURL)
	if rerr == nil {
		text := normalizeText(parsed.TextContent)
		if len(strings.Fields(text)) >= minArticleWords {
			meta.Text = text
			meta.Title = firstNonEmpty(parsed.Title, meta.Title)
			meta.Author = firstNonEmpty(parsed.Byline, meta.Author)
			meta.SiteName = firstNonEmpty(parsed.SiteName, meta.SiteName)
			return meta, nil
		}
	}
	meta.Text = fallbackText(doc)
	return meta, nil
}

func pageMeta(doc *goquery.Document) Article {
	return Article{
		Title: firstNonEmpty(
			attr(doc, `meta[property="og:title"]`, "content"),
			strings.TrimSpace(doc.Find("h1").First().Text()),
			strings.TrimSpace(doc.Find("title").First().Text()),
		),
		Author: firstNonEmpty(
			attr(doc, `meta[name="author"]`, "content"),
			attr(doc, `meta[property="article:author"]`, "content"),
		),
		SiteName: attr(doc, `meta[property="og:site_name"]`, "content"),
		Published: parseTime(firstNonEmpty(
			attr(doc, `meta[property="article:published_time"]`, "content"),
			attr(doc, `time[datetime]`, "datetime"),
		)),
	}
}

// fallbackText joins paragraphs inside <article>, or every paragraph on the
// page when there is no article element.
func fallbackText(doc *goquery.Document) string {
	scope := doc.Find("article")
	if scope.Length() == 0 {
		scope = doc.Find("body")
	}
	var paragraphs []string
	scope.Find("p").Each(func(_ int, s *goquery.Selection) {
		if p := strings.Join(strings.Fields(s.Text()), " "); p != "" {
			paragraphs = append(paragraphs, p)
		}
	})
	return strings.Join(paragraphs, "\n\n")
}

func normalizeText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
