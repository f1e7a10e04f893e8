package transform

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed prompts/*.md
var embeddedPrompts embed.FS

// Prompt file names.
const (
	PromptBlog      = "blog_transform.md"
	PromptInstagram = "instagram_generate.md"
	PromptTikTok    = "tiktok_generate.md"
	PromptRoundup   = "roundup_transform.md"
)

// PromptLoader reads system prompts, preferring files in an override
// directory over the embedded defaults.
type PromptLoader struct {
	dir string
}

// NewPromptLoader returns a loader. An empty dir uses only embedded prompts.
func NewPromptLoader(dir string) *PromptLoader {
	return &PromptLoader{dir: strings.TrimSpace(dir)}
}

// Load returns the prompt text for name.
func (p *PromptLoader) Load(name string) (string, error) {
	if p != nil && p.dir != "" {
		data, err := os.ReadFile(filepath.Join(p.dir, name))
		switch {
		case err == nil:
			if text := strings.TrimSpace(string(data)); text != "" {
				return text, nil
			}
		case !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("read prompt %s: %w", name, err)
		}
	}
	data, err := embeddedPrompts.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("prompt %s not found: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}
