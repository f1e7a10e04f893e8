package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file locations.
type Paths struct {
	StateDir        string `toml:"state_dir"`
	ContentDir      string `toml:"content_dir"`
	PublicDir       string `toml:"public_dir"`
	LogDir          string `toml:"log_dir"`
	PromptsDir      string `toml:"prompts_dir"`
	SourcesFile     string `toml:"sources_file"`
	PillarsFile     string `toml:"pillars_file"`
	SocialQueueFile string `toml:"social_queue_file"`
}

// Generation contains connection settings for the text generation provider.
type Generation struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	SocialModel    string `toml:"social_model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxTokens      int    `toml:"max_tokens"`
}

// Budget contains pricing and the daily spending limit for generation calls.
type Budget struct {
	DailyUSD              float64 `toml:"daily_usd"`
	InputPricePerMillion  float64 `toml:"input_price_per_million"`
	OutputPricePerMillion float64 `toml:"output_price_per_million"`
	WarnRatio             float64 `toml:"warn_ratio"`
}

// Documents selects and configures the review document backend.
type Documents struct {
	Backend         string `toml:"backend"`
	CredentialsFile string `toml:"credentials_file"`
	FolderID        string `toml:"folder_id"`
	MediaFolderID   string `toml:"media_folder_id"`
	LocalDir        string `toml:"local_dir"`
}

// Ingest contains source fetching settings.
type Ingest struct {
	VideosPerChannel      int    `toml:"videos_per_channel"`
	EntriesPerFeed        int    `toml:"entries_per_feed"`
	WhisperEnabled        bool   `toml:"whisper_enabled"`
	WhisperModel          string `toml:"whisper_model"`
	YouTubeAPIKey         string `toml:"youtube_api_key"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	UserAgent             string `toml:"user_agent"`
}

// Publish contains artifact and version control settings.
type Publish struct {
	Author        string `toml:"author"`
	DefaultPillar string `toml:"default_pillar"`
	AutoCommit    bool   `toml:"auto_commit"`
	AutoPush      bool   `toml:"auto_push"`
	RepoDir       string `toml:"repo_dir"`
}

// Images contains featured image settings.
type Images struct {
	Enabled         bool   `toml:"enabled"`
	S3Bucket        string `toml:"s3_bucket"`
	S3Prefix        string `toml:"s3_prefix"`
	S3PublicBaseURL string `toml:"s3_public_base_url"`
}

// Voice contains the banned-phrase list used by the voice check.
type Voice struct {
	BannedPhrases []string `toml:"banned_phrases"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Publish        bool   `toml:"publish"`
	BudgetHalt     bool   `toml:"budget_halt"`
	RunSummary     bool   `toml:"run_summary"`
	Errors         bool   `toml:"errors"`
}

// Metrics contains the node-exporter textfile destination.
type Metrics struct {
	TextfilePath string `toml:"textfile_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the content pipeline.
//
// Configuration sections by subsystem:
//   - Paths: state, output, prompt and registry locations
//   - Generation: provider, credentials and model selection
//   - Budget: daily spend limit and token pricing
//   - Documents: review document backend
//   - Ingest: source fetching and transcript fallback
//   - Publish: artifact front matter and git behaviour
//   - Images: featured image rendering and mirroring
//   - Voice: banned phrases
//   - Notifications: ntfy push notification settings
//   - Metrics: Prometheus textfile output
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Generation    Generation    `toml:"generation"`
	Budget        Budget        `toml:"budget"`
	Documents     Documents     `toml:"documents"`
	Ingest        Ingest        `toml:"ingest"`
	Publish       Publish       `toml:"publish"`
	Images        Images        `toml:"images"`
	Voice         Voice         `toml:"voice"`
	Notifications Notifications `toml:"notifications"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/contentpipe/config.toml")
}

// Load locates, parses, and validates a configuration file. A .env file in
// the working directory is loaded first so its values can serve as env
// fallbacks. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("contentpipe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state, content and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.StateDir,
		filepath.Join(c.Paths.ContentDir, "guides"),
		filepath.Join(c.Paths.ContentDir, "articles"),
		c.Paths.LogDir,
	}
	if c.Documents.Backend == DocumentsLocal {
		dirs = append(dirs, c.Documents.LocalDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// UsageDBPath returns the location of the usage ledger database.
func (c *Config) UsageDBPath() string {
	return filepath.Join(c.Paths.StateDir, "usage.db")
}

// RunLockPath returns the location of the cross-run lock file.
func (c *Config) RunLockPath() string {
	return filepath.Join(c.Paths.StateDir, ".run.lock")
}

// ImagesDir returns the directory featured images are rendered into.
func (c *Config) ImagesDir() string {
	return filepath.Join(c.Paths.PublicDir, "images", "blog")
}

// RepoDir returns the working tree used for git operations.
func (c *Config) RepoDir() string {
	if dir := strings.TrimSpace(c.Publish.RepoDir); dir != "" {
		return dir
	}
	return filepath.Dir(c.Paths.ContentDir)
}

// GitBinary returns the git executable name.
func (c *Config) GitBinary() string {
	return "git"
}

// RequireGeneration reports a configuration error when no generation key is set.
func (c *Config) RequireGeneration() error {
	if strings.TrimSpace(c.Generation.APIKey) != "" {
		return nil
	}
	env := "OPENROUTER_API_KEY"
	if c.Generation.Provider == ProviderAnthropic {
		env = "ANTHROPIC_API_KEY"
	}
	return fmt.Errorf("generation.api_key is required. Set %s or edit the config file (create with 'contentpipe config init')", env)
}

// RequireDocuments reports a configuration error when the document backend
// cannot be constructed.
func (c *Config) RequireDocuments() error {
	switch c.Documents.Backend {
	case DocumentsLocal:
		if strings.TrimSpace(c.Documents.LocalDir) == "" {
			return errors.New("documents.local_dir must be set for the local backend")
		}
		return nil
	default:
		if strings.TrimSpace(c.Documents.CredentialsFile) == "" {
			return errors.New("documents.credentials_file is required for the google backend. Set GOOGLE_SERVICE_ACCOUNT_JSON or switch documents.backend to \"local\"")
		}
		if _, err := os.Stat(c.Documents.CredentialsFile); err != nil {
			return fmt.Errorf("documents.credentials_file: %w", err)
		}
		return nil
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
