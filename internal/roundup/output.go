package roundup

import (
	"strings"

	"contentpipe/internal/item"
	"contentpipe/internal/services/llm"
)

// SchemaRoundup is the schema name sent with the synthesis request.
const SchemaRoundup = "roundup_output"

// Section is one themed part of a roundup.
type Section struct {
	Title      string   `json:"section_title"`
	Content    string   `json:"subsection_content"`
	References []string `json:"source_references"`
}

// Output is the generator's roundup payload.
type Output struct {
	Title           string    `json:"title"`
	ContentPillar   string    `json:"content_pillar"`
	MetaDescription string    `json:"meta_description"`
	Sections        []Section `json:"sections"`
	Conclusion      string    `json:"synthesis_conclusion"`
	FullDraft       string    `json:"full_draft"`
	KeyTakeaways    []string  `json:"key_takeaways"`
}

var outputSchema = llm.Schema{
	Name: SchemaRoundup,
	Definition: llm.ObjectSchema(map[string]any{
		"title":            llm.StringProp("Roundup title"),
		"content_pillar":   llm.StringProp("Content pillar slug"),
		"meta_description": llm.StringProp("SEO description, at most 160 characters"),
		"sections": map[string]any{
			"type":        "array",
			"description": "Themed sections in reading order",
			"items": llm.ObjectSchema(map[string]any{
				"section_title":      llm.StringProp("Section heading"),
				"subsection_content": llm.StringProp("Section body in Markdown"),
				"source_references":  llm.StringListProp("Source numbers the section draws on"),
			}),
		},
		"synthesis_conclusion": llm.StringProp("Closing synthesis"),
		"full_draft":           llm.StringProp("Complete post in Markdown"),
		"key_takeaways":        llm.StringListProp("Key takeaways"),
	}),
}

// Draft converts the payload into a blog draft. Roundups are always
// articles and their outline is the section titles.
func (o Output) Draft(pillar string) *item.BlogDraft {
	outline := make([]string, 0, len(o.Sections))
	for _, s := range o.Sections {
		if t := strings.TrimSpace(s.Title); t != "" {
			outline = append(outline, t)
		}
	}
	var titles []string
	if t := strings.TrimSpace(o.Title); t != "" {
		titles = []string{t}
	}
	generated := strings.ToLower(strings.TrimSpace(o.ContentPillar))
	if generated == "" {
		generated = strings.ToLower(strings.TrimSpace(pillar))
	}
	takeaways := make([]string, 0, len(o.KeyTakeaways))
	for _, k := range o.KeyTakeaways {
		if k = strings.TrimSpace(k); k != "" {
			takeaways = append(takeaways, k)
		}
	}
	return &item.BlogDraft{
		TitleOptions:    titles,
		ContentPillar:   generated,
		ContentType:     item.ContentArticle,
		MetaDescription: strings.TrimSpace(o.MetaDescription),
		Outline:         outline,
		FullText:        strings.TrimSpace(o.FullDraft),
		KeyTakeaways:    takeaways,
	}
}
