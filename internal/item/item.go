package item

import (
	"fmt"
	"strings"
	"time"
)

// SourceKind identifies where an item originated.
type SourceKind string

const (
	SourceVideo   SourceKind = "video"
	SourceArticle SourceKind = "article"
	SourceManual  SourceKind = "manual"
	SourceRoundup SourceKind = "roundup"
)

// ParseSourceKind converts a string into a known SourceKind.
func ParseSourceKind(value string) (SourceKind, bool) {
	switch kind := SourceKind(strings.ToLower(strings.TrimSpace(value))); kind {
	case SourceVideo, SourceArticle, SourceManual, SourceRoundup:
		return kind, true
	default:
		return "", false
	}
}

// Content types assigned at publish time.
const (
	ContentGuide   = "guide"
	ContentArticle = "article"
)

// BlogDraft is the structured long-form output of the transform stage.
type BlogDraft struct {
	TitleOptions    []string `json:"title_options"`
	ContentPillar   string   `json:"content_pillar"`
	ContentType     string   `json:"content_type"`
	MetaDescription string   `json:"meta_description"`
	Outline         []string `json:"outline"`
	FullText        string   `json:"full_draft"`
	KeyTakeaways    []string `json:"key_takeaways"`
}

// PrimaryTitle returns the first title option or an empty string.
func (b *BlogDraft) PrimaryTitle() string {
	if b == nil || len(b.TitleOptions) == 0 {
		return ""
	}
	return strings.TrimSpace(b.TitleOptions[0])
}

// SocialDraft is the structured short-form output of the transform stage.
type SocialDraft struct {
	ShortCaption   string   `json:"short_caption,omitempty"`
	LongCaption    string   `json:"long_caption,omitempty"`
	CarouselSlides []string `json:"carousel_slides,omitempty"`
	Hashtags       []string `json:"hashtags,omitempty"`
	VideoScript    string   `json:"video_script,omitempty"`
	OnScreenText   []string `json:"on_screen_text,omitempty"`
}

// IsEmpty reports whether no social field carries content.
func (s *SocialDraft) IsEmpty() bool {
	if s == nil {
		return true
	}
	return strings.TrimSpace(s.ShortCaption) == "" &&
		strings.TrimSpace(s.LongCaption) == "" &&
		len(s.CarouselSlides) == 0 &&
		len(s.Hashtags) == 0 &&
		strings.TrimSpace(s.VideoScript) == "" &&
		len(s.OnScreenText) == 0
}

// Item is one unit of content tracked through the pipeline.
type Item struct {
	ID               string       `json:"id"`
	SourceKind       SourceKind   `json:"source_type"`
	Stage            Stage        `json:"stage"`
	SourceURL        string       `json:"source_url,omitempty"`
	Title            string       `json:"title"`
	Author           string       `json:"author,omitempty"`
	PublishedAt      *time.Time   `json:"publish_date,omitempty"`
	RawText          string       `json:"raw_content"`
	Metadata         Metadata     `json:"metadata,omitempty"`
	Blog             *BlogDraft   `json:"blog_draft,omitempty"`
	Social           *SocialDraft `json:"social_draft,omitempty"`
	ReviewDocumentID string       `json:"google_doc_id,omitempty"`
	FeaturedImage    string       `json:"featured_image,omitempty"`
	VoiceWarnings    []string     `json:"voice_warnings,omitempty"`
	Error            string       `json:"error,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// New constructs an item at the new stage with timestamps set to now.
func New(id string, kind SourceKind, title string, now time.Time) *Item {
	return &Item{
		ID:         id,
		SourceKind: kind,
		Stage:      StageNew,
		Title:      strings.TrimSpace(title),
		Metadata:   Metadata{},
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}
}

// Advance moves the item to the next stage when the transition is legal.
func (i *Item) Advance(to Stage, now time.Time) error {
	if i == nil {
		return fmt.Errorf("advance: nil item")
	}
	if !CanTransition(i.Stage, to) {
		return fmt.Errorf("advance %s: illegal transition %s -> %s", i.ID, i.Stage, to)
	}
	i.Stage = to
	i.Error = ""
	i.UpdatedAt = now.UTC()
	return nil
}

// Fail records an error message and moves the item to failed. Terminal
// items keep their stage but still record the message.
func (i *Item) Fail(message string, now time.Time) {
	if i == nil {
		return
	}
	i.Error = strings.TrimSpace(message)
	if CanTransition(i.Stage, StageFailed) {
		i.Stage = StageFailed
	}
	i.UpdatedAt = now.UTC()
}

// DisplayTitle prefers the blog's first title option over the source title.
func (i *Item) DisplayTitle() string {
	if i == nil {
		return ""
	}
	if t := i.Blog.PrimaryTitle(); t != "" {
		return t
	}
	if t := strings.TrimSpace(i.Title); t != "" {
		return t
	}
	return i.ID
}

// Clone returns a deep copy suitable for snapshotting under another stage.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	cp := *i
	cp.Metadata = i.Metadata.Clone()
	if i.PublishedAt != nil {
		ts := *i.PublishedAt
		cp.PublishedAt = &ts
	}
	if i.Blog != nil {
		blog := *i.Blog
		blog.TitleOptions = append([]string(nil), i.Blog.TitleOptions...)
		blog.Outline = append([]string(nil), i.Blog.Outline...)
		blog.KeyTakeaways = append([]string(nil), i.Blog.KeyTakeaways...)
		cp.Blog = &blog
	}
	if i.Social != nil {
		social := *i.Social
		social.CarouselSlides = append([]string(nil), i.Social.CarouselSlides...)
		social.Hashtags = append([]string(nil), i.Social.Hashtags...)
		social.OnScreenText = append([]string(nil), i.Social.OnScreenText...)
		cp.Social = &social
	}
	cp.VoiceWarnings = append([]string(nil), i.VoiceWarnings...)
	return &cp
}
