package testsupport

import (
	"path/filepath"
	"testing"

	"contentpipe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Documents use the local backend, git is disabled and the generation key is
// set so Require* checks pass.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.ContentDir = filepath.Join(base, "site", "content")
	cfgVal.Paths.PublicDir = filepath.Join(base, "site", "public")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SourcesFile = filepath.Join(base, "sources.yaml")
	cfgVal.Paths.PillarsFile = filepath.Join(base, "pillars.yaml")
	cfgVal.Paths.SocialQueueFile = filepath.Join(base, "state", "social-queue.md")
	cfgVal.Generation.APIKey = "test"
	cfgVal.Generation.SocialModel = cfgVal.Generation.Model
	cfgVal.Documents.Backend = config.DocumentsLocal
	cfgVal.Documents.LocalDir = filepath.Join(base, "documents")
	cfgVal.Ingest.WhisperEnabled = false
	cfgVal.Publish.AutoCommit = false
	cfgVal.Images.Enabled = false
	cfgVal.Voice.BannedPhrases = append([]string(nil), config.DefaultBannedPhrases...)

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithImages enables featured image rendering.
func WithImages() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Images.Enabled = true
	}
}

// WithDailyBudget overrides the daily spending limit.
func WithDailyBudget(usd float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Budget.DailyUSD = usd
	}
}

// WithFolder sets the review document folder.
func WithFolder(folderID string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Documents.FolderID = folderID
	}
}

// WithBannedPhrases replaces the voice check list.
func WithBannedPhrases(phrases ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Voice.BannedPhrases = phrases
	}
}

// BaseDir returns the temp directory backing the config's paths.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
