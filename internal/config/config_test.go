package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"contentpipe/internal/config"
)

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("NTFY_TOPIC", "https://ntfy.sh/pipeline")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "contentpipe", "state")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.SocialQueueFile != filepath.Join(wantState, "social-queue.md") {
		t.Fatalf("unexpected social queue file: %q", cfg.Paths.SocialQueueFile)
	}
	if cfg.Generation.APIKey != "or-key" {
		t.Fatalf("expected generation key from env, got %q", cfg.Generation.APIKey)
	}
	if cfg.Generation.SocialModel != cfg.Generation.Model {
		t.Fatalf("social model should default to model, got %q", cfg.Generation.SocialModel)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/pipeline" {
		t.Fatalf("unexpected ntfy topic: %q", cfg.Notifications.NtfyTopic)
	}
	if cfg.Budget.DailyUSD != 5.0 || cfg.Budget.InputPricePerMillion != 3.0 || cfg.Budget.OutputPricePerMillion != 15.0 {
		t.Fatalf("unexpected budget defaults: %+v", cfg.Budget)
	}
	if len(cfg.Voice.BannedPhrases) != len(config.DefaultBannedPhrases) {
		t.Fatalf("expected default banned phrases, got %v", cfg.Voice.BannedPhrases)
	}
	if !cfg.Publish.AutoCommit || cfg.Publish.AutoPush {
		t.Fatalf("unexpected publish defaults: %+v", cfg.Publish)
	}
}

func TestLoadCustomConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-key")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	custom := config.Default()
	custom.Paths.StateDir = filepath.Join(dir, "state")
	custom.Paths.ContentDir = filepath.Join(dir, "content")
	custom.Paths.LogDir = filepath.Join(dir, "logs")
	custom.Generation.Provider = "Anthropic"
	custom.Generation.BaseURL = ""
	custom.Generation.Model = ""
	custom.Documents.Backend = "local"
	custom.Documents.LocalDir = filepath.Join(dir, "docs")
	custom.Voice.BannedPhrases = []string{"  Synergy ", "synergy", ""}
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected %s to be loaded, got %s exists=%v", path, resolved, exists)
	}
	if cfg.Generation.Provider != config.ProviderAnthropic {
		t.Fatalf("provider = %q", cfg.Generation.Provider)
	}
	if cfg.Generation.APIKey != "anthropic-key" {
		t.Fatalf("expected anthropic key from env, got %q", cfg.Generation.APIKey)
	}
	if !strings.HasPrefix(cfg.Generation.Model, "claude-") {
		t.Fatalf("expected anthropic default model, got %q", cfg.Generation.Model)
	}
	if len(cfg.Voice.BannedPhrases) != 1 || cfg.Voice.BannedPhrases[0] != "synergy" {
		t.Fatalf("banned phrases not normalized: %v", cfg.Voice.BannedPhrases)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("logging format = %q", cfg.Logging.Format)
	}
	if err := cfg.RequireDocuments(); err != nil {
		t.Fatalf("local backend should satisfy RequireDocuments: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Documents.LocalDir, filepath.Join(cfg.Paths.ContentDir, "guides")} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"provider", func(c *config.Config) { c.Generation.Provider = "gpt" }, "generation.provider"},
		{"budget", func(c *config.Config) { c.Budget.DailyUSD = 0 }, "budget.daily_usd"},
		{"warn ratio", func(c *config.Config) { c.Budget.WarnRatio = 1.5 }, "budget.warn_ratio"},
		{"backend", func(c *config.Config) { c.Documents.Backend = "dropbox" }, "documents.backend"},
		{"s3", func(c *config.Config) { c.Images.S3Bucket = "bucket" }, "images.s3_public_base_url"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.StateDir = "/tmp/state"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestRequireGenerationAndDocuments(t *testing.T) {
	cfg := config.Default()
	if err := cfg.RequireGeneration(); err == nil || !strings.Contains(err.Error(), "OPENROUTER_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
	cfg.Generation.APIKey = "set"
	if err := cfg.RequireGeneration(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.RequireDocuments(); err == nil || !strings.Contains(err.Error(), "documents.credentials_file") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Ingest.VideosPerChannel != 5 || cfg.Publish.DefaultPillar != "tutorials" {
		t.Fatalf("unexpected sample values: %+v %+v", cfg.Ingest, cfg.Publish)
	}
}
