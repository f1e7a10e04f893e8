package publish

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"contentpipe/internal/textutil"
)

// FrontMatter is the YAML header of a published post. Field order is the
// order written.
type FrontMatter struct {
	Title       string   `yaml:"title"`
	Date        string   `yaml:"date"`
	Description string   `yaml:"description"`
	Pillar      string   `yaml:"pillar"`
	Type        string   `yaml:"type"`
	Author      string   `yaml:"author"`
	ReadingTime int      `yaml:"readingTime"`
	Featured    bool     `yaml:"featured"`
	Image       string   `yaml:"image"`
	Tags        []string `yaml:"tags"`
}

// ArtifactName returns the dated file name for a post title.
func ArtifactName(day time.Time, title string) string {
	slug := textutil.Slugify(title)
	if slug == "" {
		slug = textutil.Slugify(untitled)
	}
	return day.Format("2006-01-02") + "-" + slug + ".mdx"
}

// RenderMDX composes the front matter block followed by the body.
func RenderMDX(fm FrontMatter, body string) ([]byte, error) {
	if fm.Tags == nil {
		fm.Tags = []string{}
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	buf.WriteString("---\n\n")
	buf.WriteString(strings.TrimSpace(body))
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// ParseFrontMatter reads the header of an MDX artifact.
func ParseFrontMatter(data []byte) (FrontMatter, error) {
	text := string(data)
	if !strings.HasPrefix(text, "---\n") {
		return FrontMatter{}, fmt.Errorf("missing front matter")
	}
	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return FrontMatter{}, fmt.Errorf("unterminated front matter")
	}
	var fm FrontMatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return FrontMatter{}, fmt.Errorf("parse front matter: %w", err)
	}
	return fm, nil
}
