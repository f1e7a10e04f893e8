package publish

import (
	"strings"

	"contentpipe/internal/item"
)

var (
	// GuideKeywords signal step-by-step material.
	GuideKeywords = []string{"how-to", "tutorial", "guide", "setup", "install", "configure", "step-by-step", "walkthrough"}
	// ArticleKeywords signal news and commentary.
	ArticleKeywords = []string{"news", "update", "announcement", "review", "opinion", "analysis", "commentary"}

	guidePillars   = map[string]struct{}{"tutorials": {}, "local-ai": {}, "prompting": {}}
	articlePillars = map[string]struct{}{"news": {}, "experiments": {}}
)

const pillarBonus = 2

// Scores holds the keyword tallies behind a classification.
type Scores struct {
	Guide   int
	Article int
}

// Score counts how many distinct keywords of each set occur in the combined
// title, body and pillar, then applies the pillar bonus.
func Score(title, body, pillar string) Scores {
	combined := strings.ToLower(title + " " + body + " " + pillar)
	var s Scores
	for _, kw := range GuideKeywords {
		if strings.Contains(combined, kw) {
			s.Guide++
		}
	}
	for _, kw := range ArticleKeywords {
		if strings.Contains(combined, kw) {
			s.Article++
		}
	}
	p := strings.ToLower(strings.TrimSpace(pillar))
	if _, ok := guidePillars[p]; ok {
		s.Guide += pillarBonus
	} else if _, ok := articlePillars[p]; ok {
		s.Article += pillarBonus
	}
	return s
}

// Classify returns guide when the guide score is strictly higher; ties go
// to article.
func Classify(title, body, pillar string) string {
	s := Score(title, body, pillar)
	if s.Guide > s.Article {
		return item.ContentGuide
	}
	return item.ContentArticle
}

// ContentDir maps a content type to its directory name under content_dir.
func ContentDir(contentType string) string {
	if contentType == item.ContentGuide {
		return "guides"
	}
	return "articles"
}
