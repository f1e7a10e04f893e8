package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGeneration()
	if err := c.normalizeDocuments(); err != nil {
		return err
	}
	c.normalizeIngest()
	if err := c.normalizePublish(); err != nil {
		return err
	}
	c.normalizeImages()
	c.normalizeVoice()
	c.normalizeNotifications()
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key   string
		value *string
	}{
		{"paths.state_dir", &c.Paths.StateDir},
		{"paths.content_dir", &c.Paths.ContentDir},
		{"paths.public_dir", &c.Paths.PublicDir},
		{"paths.log_dir", &c.Paths.LogDir},
		{"paths.prompts_dir", &c.Paths.PromptsDir},
		{"paths.sources_file", &c.Paths.SourcesFile},
		{"paths.pillars_file", &c.Paths.PillarsFile},
		{"paths.social_queue_file", &c.Paths.SocialQueueFile},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	if c.Paths.SocialQueueFile == "" && c.Paths.StateDir != "" {
		c.Paths.SocialQueueFile = filepath.Join(c.Paths.StateDir, defaultSocialQueueName)
	}
	return nil
}

func (c *Config) normalizeGeneration() {
	c.Generation.Provider = strings.ToLower(strings.TrimSpace(c.Generation.Provider))
	if c.Generation.Provider == "" {
		c.Generation.Provider = ProviderOpenRouter
	}
	c.Generation.APIKey = strings.TrimSpace(c.Generation.APIKey)
	if c.Generation.APIKey == "" {
		env := "OPENROUTER_API_KEY"
		if c.Generation.Provider == ProviderAnthropic {
			env = "ANTHROPIC_API_KEY"
		}
		if value, ok := os.LookupEnv(env); ok {
			c.Generation.APIKey = strings.TrimSpace(value)
		}
	}
	c.Generation.BaseURL = strings.TrimSpace(c.Generation.BaseURL)
	if c.Generation.BaseURL == "" && c.Generation.Provider == ProviderOpenRouter {
		c.Generation.BaseURL = defaultOpenRouterBaseURL
	}
	c.Generation.Model = strings.TrimSpace(c.Generation.Model)
	if c.Generation.Model == "" {
		if c.Generation.Provider == ProviderAnthropic {
			c.Generation.Model = defaultAnthropicModel
		} else {
			c.Generation.Model = defaultOpenRouterModel
		}
	}
	c.Generation.SocialModel = strings.TrimSpace(c.Generation.SocialModel)
	if c.Generation.SocialModel == "" {
		c.Generation.SocialModel = c.Generation.Model
	}
	if c.Generation.TimeoutSeconds <= 0 {
		c.Generation.TimeoutSeconds = defaultGenerationTimeout
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = defaultGenerationMaxTokens
	}
}

func (c *Config) normalizeDocuments() error {
	c.Documents.Backend = strings.ToLower(strings.TrimSpace(c.Documents.Backend))
	if c.Documents.Backend == "" {
		c.Documents.Backend = DocumentsGoogle
	}
	if strings.TrimSpace(c.Documents.CredentialsFile) == "" {
		if value, ok := os.LookupEnv("GOOGLE_SERVICE_ACCOUNT_JSON"); ok {
			c.Documents.CredentialsFile = value
		}
	}
	if strings.TrimSpace(c.Documents.FolderID) == "" {
		if value, ok := os.LookupEnv("GOOGLE_DRIVE_FOLDER_ID"); ok {
			c.Documents.FolderID = strings.TrimSpace(value)
		}
	}
	var err error
	if c.Documents.CredentialsFile, err = expandPath(strings.TrimSpace(c.Documents.CredentialsFile)); err != nil {
		return fmt.Errorf("documents.credentials_file: %w", err)
	}
	if c.Documents.LocalDir, err = expandPath(strings.TrimSpace(c.Documents.LocalDir)); err != nil {
		return fmt.Errorf("documents.local_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeIngest() {
	if c.Ingest.VideosPerChannel <= 0 {
		c.Ingest.VideosPerChannel = defaultVideosPerChannel
	}
	if c.Ingest.EntriesPerFeed <= 0 {
		c.Ingest.EntriesPerFeed = defaultEntriesPerFeed
	}
	c.Ingest.WhisperModel = strings.TrimSpace(c.Ingest.WhisperModel)
	if c.Ingest.WhisperModel == "" {
		c.Ingest.WhisperModel = defaultWhisperModel
	}
	if strings.TrimSpace(c.Ingest.YouTubeAPIKey) == "" {
		if value, ok := os.LookupEnv("YOUTUBE_API_KEY"); ok {
			c.Ingest.YouTubeAPIKey = strings.TrimSpace(value)
		}
	}
	if c.Ingest.RequestTimeoutSeconds <= 0 {
		c.Ingest.RequestTimeoutSeconds = defaultIngestTimeout
	}
	if strings.TrimSpace(c.Ingest.UserAgent) == "" {
		c.Ingest.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizePublish() error {
	c.Publish.Author = strings.TrimSpace(c.Publish.Author)
	if c.Publish.Author == "" {
		c.Publish.Author = defaultAuthor
	}
	c.Publish.DefaultPillar = strings.ToLower(strings.TrimSpace(c.Publish.DefaultPillar))
	if c.Publish.DefaultPillar == "" {
		c.Publish.DefaultPillar = defaultPillar
	}
	var err error
	if c.Publish.RepoDir, err = expandPath(strings.TrimSpace(c.Publish.RepoDir)); err != nil {
		return fmt.Errorf("publish.repo_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeImages() {
	c.Images.S3Bucket = strings.TrimSpace(c.Images.S3Bucket)
	c.Images.S3Prefix = strings.Trim(strings.TrimSpace(c.Images.S3Prefix), "/")
	c.Images.S3PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Images.S3PublicBaseURL), "/")
}

func (c *Config) normalizeVoice() {
	phrases := make([]string, 0, len(c.Voice.BannedPhrases))
	seen := make(map[string]struct{}, len(c.Voice.BannedPhrases))
	for _, phrase := range c.Voice.BannedPhrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" {
			continue
		}
		if _, ok := seen[phrase]; ok {
			continue
		}
		seen[phrase] = struct{}{}
		phrases = append(phrases, phrase)
	}
	if len(phrases) == 0 {
		phrases = append(phrases, DefaultBannedPhrases...)
	}
	c.Voice.BannedPhrases = phrases
}

func (c *Config) normalizeNotifications() {
	if strings.TrimSpace(c.Notifications.NtfyTopic) == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeMetrics() error {
	var err error
	if c.Metrics.TextfilePath, err = expandPath(strings.TrimSpace(c.Metrics.TextfilePath)); err != nil {
		return fmt.Errorf("metrics.textfile_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
