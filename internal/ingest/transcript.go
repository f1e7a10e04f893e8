package ingest

import (
	"bytes"
	"context"
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TranscriptSource returns caption text for a video. An empty string with a
// nil error means no captions exist.
type TranscriptSource interface {
	Transcript(ctx context.Context, videoID string) (string, error)
}

// TimedText reads captions from the timed-text endpoint.
type TimedText struct {
	base  string
	fetch fetcher
	lang  string
}

// NewTimedText builds a caption reader. lang defaults to "en".
func NewTimedText(base, lang string, f fetcher) *TimedText {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultYouTubeBase
	}
	if lang = strings.TrimSpace(lang); lang == "" {
		lang = "en"
	}
	return &TimedText{base: base, fetch: f, lang: lang}
}

type captionTrack struct {
	lang string
	name string
	kind string
}

func (t *TimedText) Transcript(ctx context.Context, videoID string) (string, error) {
	body, err := t.fetch.get(ctx, t.base+"/api/timedtext?type=list&v="+url.QueryEscape(videoID))
	if err != nil {
		return "", err
	}
	track, ok := pickTrack(parseTracks(body), t.lang)
	if !ok {
		return "", nil
	}
	query := url.Values{}
	query.Set("v", videoID)
	query.Set("lang", track.lang)
	if track.name != "" {
		query.Set("name", track.name)
	}
	if track.kind != "" {
		query.Set("kind", track.kind)
	}
	body, err = t.fetch.get(ctx, t.base+"/api/timedtext?"+query.Encode())
	if err != nil {
		return "", err
	}
	return captionText(body), nil
}

func parseTracks(body []byte) []captionTrack {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var tracks []captionTrack
	doc.Find("track").Each(func(_ int, s *goquery.Selection) {
		code, _ := s.Attr("lang_code")
		name, _ := s.Attr("name")
		kind, _ := s.Attr("kind")
		if code = strings.TrimSpace(code); code != "" {
			tracks = append(tracks, captionTrack{lang: code, name: name, kind: kind})
		}
	})
	return tracks
}

// pickTrack prefers a manual track in lang, then an automatic one in lang,
// then any track whose code starts with lang.
func pickTrack(tracks []captionTrack, lang string) (captionTrack, bool) {
	var auto, prefixed *captionTrack
	for i := range tracks {
		tr := &tracks[i]
		switch {
		case strings.EqualFold(tr.lang, lang) && tr.kind != "asr":
			return *tr, true
		case strings.EqualFold(tr.lang, lang) && auto == nil:
			auto = tr
		case strings.HasPrefix(strings.ToLower(tr.lang), strings.ToLower(lang)) && prefixed == nil:
			prefixed = tr
		}
	}
	if auto != nil {
		return *auto, true
	}
	if prefixed != nil {
		return *prefixed, true
	}
	return captionTrack{}, false
}

func captionText(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	var parts []string
	doc.Find("text").Each(func(_ int, s *goquery.Selection) {
		line := strings.Join(strings.Fields(html.UnescapeString(s.Text())), " ")
		if line != "" {
			parts = append(parts, line)
		}
	})
	return strings.Join(parts, " ")
}
