package transform

import (
	"strings"

	"contentpipe/internal/item"
	"contentpipe/internal/services/llm"
)

// BlogResult is the generator's blog payload.
type BlogResult struct {
	TitleOptions    []string `json:"title_options"`
	ContentPillar   string   `json:"content_pillar"`
	ContentType     string   `json:"content_type"`
	MetaDescription string   `json:"meta_description"`
	Outline         []string `json:"outline"`
	FullDraft       string   `json:"full_draft"`
	KeyTakeaways    []string `json:"key_takeaways"`
}

// InstagramResult is the generator's Instagram payload.
type InstagramResult struct {
	ShortCaption   string   `json:"short_caption"`
	LongCaption    string   `json:"long_caption"`
	CarouselSlides []string `json:"carousel_slides"`
	Hashtags       []string `json:"hashtags"`
}

// TikTokResult is the generator's TikTok payload.
type TikTokResult struct {
	ScriptContent     string   `json:"script_content"`
	OnScreenText      []string `json:"on_screen_text"`
	EstimatedDuration string   `json:"estimated_duration"`
}

// Schema names sent with each request.
const (
	SchemaBlog      = "blog_output"
	SchemaInstagram = "instagram_partial"
	SchemaTikTok    = "tiktok_partial"
)

var blogSchema = llm.Schema{
	Name: SchemaBlog,
	Definition: llm.ObjectSchema(map[string]any{
		"title_options":    llm.StringListProp("Three to five title options, strongest first"),
		"content_pillar":   llm.StringProp("Content pillar slug"),
		"content_type":     map[string]any{"type": "string", "enum": []string{item.ContentGuide, item.ContentArticle}},
		"meta_description": llm.StringProp("SEO description, at most 160 characters"),
		"outline":          llm.StringListProp("Section headings"),
		"full_draft":       llm.StringProp("Complete post in Markdown"),
		"key_takeaways":    llm.StringListProp("Key takeaways"),
	}),
}

var instagramSchema = llm.Schema{
	Name: SchemaInstagram,
	Definition: llm.ObjectSchema(map[string]any{
		"short_caption":   llm.StringProp("One-line caption"),
		"long_caption":    llm.StringProp("Multi-paragraph caption"),
		"carousel_slides": llm.StringListProp("Carousel slide texts in order"),
		"hashtags":        llm.StringListProp("Hashtags without #"),
	}),
}

var tiktokSchema = llm.Schema{
	Name: SchemaTikTok,
	Definition: llm.ObjectSchema(map[string]any{
		"script_content":     llm.StringProp("Spoken script, one beat per line"),
		"on_screen_text":     llm.StringListProp("Text overlays"),
		"estimated_duration": llm.StringProp("Expected video length"),
	}),
}

// Draft converts the payload into the item's blog draft. Blank list entries
// are dropped, the pillar is lowercased and unknown content types become
// article.
func (b BlogResult) Draft() *item.BlogDraft {
	return &item.BlogDraft{
		TitleOptions:    cleanList(b.TitleOptions),
		ContentPillar:   strings.ToLower(strings.TrimSpace(b.ContentPillar)),
		ContentType:     NormalizeContentType(b.ContentType),
		MetaDescription: strings.TrimSpace(b.MetaDescription),
		Outline:         cleanList(b.Outline),
		FullText:        strings.TrimSpace(b.FullDraft),
		KeyTakeaways:    cleanList(b.KeyTakeaways),
	}
}

// NormalizeContentType maps a free-form label onto guide or article.
func NormalizeContentType(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case item.ContentGuide, "guides", "tutorial", "how-to", "howto":
		return item.ContentGuide
	default:
		return item.ContentArticle
	}
}

// MergeSocial combines the Instagram and TikTok results into one draft.
// Both results are required; nil for either yields nil.
func MergeSocial(ig *InstagramResult, tt *TikTokResult) *item.SocialDraft {
	if ig == nil || tt == nil {
		return nil
	}
	hashtags := make([]string, 0, len(ig.Hashtags))
	for _, tag := range cleanList(ig.Hashtags) {
		hashtags = append(hashtags, strings.TrimPrefix(tag, "#"))
	}
	draft := &item.SocialDraft{
		ShortCaption:   strings.TrimSpace(ig.ShortCaption),
		LongCaption:    strings.TrimSpace(ig.LongCaption),
		CarouselSlides: cleanList(ig.CarouselSlides),
		Hashtags:       hashtags,
		VideoScript:    strings.TrimSpace(tt.ScriptContent),
		OnScreenText:   cleanList(tt.OnScreenText),
	}
	if draft.IsEmpty() {
		return nil
	}
	return draft
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
