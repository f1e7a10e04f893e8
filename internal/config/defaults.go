package config

const (
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"

	DocumentsGoogle = "google"
	DocumentsLocal  = "local"
)

const (
	defaultStateDir              = "~/.local/share/contentpipe/state"
	defaultContentDir            = "./content"
	defaultPublicDir             = "./public"
	defaultLogDir                = "~/.local/share/contentpipe/logs"
	defaultSourcesFile           = "~/.config/contentpipe/sources.yaml"
	defaultPillarsFile           = "~/.config/contentpipe/pillars.yaml"
	defaultSocialQueueName       = "social-queue.md"
	defaultOpenRouterBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterModel       = "anthropic/claude-sonnet-4"
	defaultAnthropicModel        = "claude-sonnet-4-20250514"
	defaultGenerationReferer     = "https://github.com/contentpipe/contentpipe"
	defaultGenerationTitle       = "Content Pipeline"
	defaultGenerationTimeout     = 120
	defaultGenerationMaxTokens   = 8192
	defaultDailyBudgetUSD        = 5.00
	defaultInputPricePerMillion  = 3.00
	defaultOutputPricePerMillion = 15.00
	defaultBudgetWarnRatio       = 0.8
	defaultLocalDocumentsDir     = "~/.local/share/contentpipe/documents"
	defaultVideosPerChannel      = 5
	defaultEntriesPerFeed        = 5
	defaultWhisperModel          = "large-v3-turbo"
	defaultIngestTimeout         = 30
	defaultUserAgent             = "Mozilla/5.0 (compatible; contentpipe/1.0)"
	defaultAuthor                = "Editorial Team"
	defaultPillar                = "tutorials"
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// DefaultBannedPhrases is the voice check list used when none is configured.
var DefaultBannedPhrases = []string{
	"delve",
	"in today's fast-paced world",
	"game-changer",
	"unlock the power",
	"revolutionize",
	"it's important to note",
	"in conclusion",
	"leverage",
	"cutting-edge",
	"seamless",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:    defaultStateDir,
			ContentDir:  defaultContentDir,
			PublicDir:   defaultPublicDir,
			LogDir:      defaultLogDir,
			SourcesFile: defaultSourcesFile,
			PillarsFile: defaultPillarsFile,
		},
		Generation: Generation{
			Provider:       ProviderOpenRouter,
			BaseURL:        defaultOpenRouterBaseURL,
			Referer:        defaultGenerationReferer,
			Title:          defaultGenerationTitle,
			TimeoutSeconds: defaultGenerationTimeout,
			MaxTokens:      defaultGenerationMaxTokens,
		},
		Budget: Budget{
			DailyUSD:              defaultDailyBudgetUSD,
			InputPricePerMillion:  defaultInputPricePerMillion,
			OutputPricePerMillion: defaultOutputPricePerMillion,
			WarnRatio:             defaultBudgetWarnRatio,
		},
		Documents: Documents{
			Backend:  DocumentsGoogle,
			LocalDir: defaultLocalDocumentsDir,
		},
		Ingest: Ingest{
			VideosPerChannel:      defaultVideosPerChannel,
			EntriesPerFeed:        defaultEntriesPerFeed,
			WhisperEnabled:        true,
			WhisperModel:          defaultWhisperModel,
			RequestTimeoutSeconds: defaultIngestTimeout,
			UserAgent:             defaultUserAgent,
		},
		Publish: Publish{
			Author:        defaultAuthor,
			DefaultPillar: defaultPillar,
			AutoCommit:    true,
		},
		Images: Images{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Publish:        true,
			BudgetHalt:     true,
			RunSummary:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
