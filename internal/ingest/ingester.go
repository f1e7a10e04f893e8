package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"contentpipe/internal/config"
	"contentpipe/internal/item"
	"contentpipe/internal/logging"
	"contentpipe/internal/services"
	"contentpipe/internal/services/whisperx"
	"contentpipe/internal/store"
)

// ManualSourceURL marks items injected by topic rather than fetched.
const ManualSourceURL = "manual"

// Transcript provenance recorded under item.MetaTranscriptBy.
const (
	TranscriptCaptions = "captions"
	TranscriptWhisper  = "whisper"
)

// Transcriber produces a transcript by downloading and transcribing audio.
type Transcriber interface {
	TranscribeVideo(ctx context.Context, videoURL, workDir string) (string, error)
}

// Deps holds the external collaborators. Nil Metadata and Transcriber
// disable those lookups.
type Deps struct {
	Feeds       FeedReader
	YouTube     *YouTube
	Transcripts TranscriptSource
	Metadata    VideoMetadataSource
	Articles    ArticleExtractor
	Transcriber Transcriber
	Clock       func() time.Time
}

// RunOptions tunes a single ingestion pass.
type RunOptions struct {
	DryRun      bool
	SkipWhisper bool
}

// Result summarizes an ingestion pass.
type Result struct {
	Created    []*item.Item
	Planned    []string
	Duplicates int
	Empty      int
	Failed     int
}

func (r *Result) merge(other Result) {
	r.Created = append(r.Created, other.Created...)
	r.Planned = append(r.Planned, other.Planned...)
	r.Duplicates += other.Duplicates
	r.Empty += other.Empty
	r.Failed += other.Failed
}

// Ingester produces items at the ingested stage.
type Ingester struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
	deps   Deps
}

// New wires the production collaborators from cfg.
func New(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (*Ingester, error) {
	timeout := time.Duration(cfg.Ingest.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	f := newFetcher(&http.Client{Timeout: timeout}, cfg.Ingest.UserAgent)
	deps := Deps{
		Feeds:       NewFeedReader(f.client, f.userAgent),
		YouTube:     NewYouTube("", f),
		Transcripts: NewTimedText("", "en", f),
		Metadata:    NewPageMetadata("", f),
		Articles:    NewWebExtractor(f),
	}
	if key := strings.TrimSpace(cfg.Ingest.YouTubeAPIKey); key != "" {
		api, err := NewDataAPI(ctx, key)
		if err != nil {
			return nil, err
		}
		deps.Metadata = api
	}
	if cfg.Ingest.WhisperEnabled {
		deps.Transcriber = whisperx.NewService(whisperx.Config{Model: cfg.Ingest.WhisperModel})
	}
	return NewWithDeps(cfg, st, logger, deps), nil
}

// NewWithDeps builds an ingester around explicit collaborators.
func NewWithDeps(cfg *config.Config, st *store.Store, logger *slog.Logger, deps Deps) *Ingester {
	if logger == nil {
		logger = logging.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Ingester{
		cfg:    cfg,
		store:  st,
		logger: logging.NewComponentLogger(logger, "ingest"),
		deps:   deps,
	}
}

// Run polls every active channel and feed in the registry. A failing source
// is logged and skipped; only cancellation aborts the pass.
func (g *Ingester) Run(ctx context.Context, sources *config.Sources, opts RunOptions) (Result, error) {
	var result Result
	for _, ch := range sources.ActiveChannels() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res, err := g.ingestChannel(ctx, ch, opts)
		result.merge(res)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			result.Failed++
			logging.WarnWithContext(g.logger, "channel ingestion failed", "source_failed",
				logging.String("channel", ch.Name),
				logging.String("channel_ref", ch.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the channel id in the sources file"),
				logging.String(logging.FieldImpact, "channel skipped for this run"),
			)
		}
	}
	for _, feed := range sources.ActiveFeeds() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res, err := g.ingestFeed(ctx, feed, opts)
		result.merge(res)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			result.Failed++
			logging.WarnWithContext(g.logger, "feed ingestion failed", "source_failed",
				logging.String("feed", feed.Name),
				logging.String("url", feed.URL),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the feed url in the sources file"),
				logging.String(logging.FieldImpact, "feed skipped for this run"),
			)
		}
	}
	g.logger.Info("ingestion complete",
		logging.String(logging.FieldEventType, "ingest_complete"),
		logging.Int("created", len(result.Created)),
		logging.Int("planned", len(result.Planned)),
		logging.Int("duplicates", result.Duplicates),
		logging.Int("empty", result.Empty),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

func (g *Ingester) ingestChannel(ctx context.Context, ch config.Channel, opts RunOptions) (Result, error) {
	var result Result
	channelID, err := g.deps.YouTube.ResolveChannel(ctx, ch.ID)
	if err != nil {
		return result, err
	}
	entries, err := g.deps.Feeds.Recent(ctx, g.deps.YouTube.ChannelFeedURL(channelID), g.limit(g.cfg.Ingest.VideosPerChannel))
	if err != nil {
		return result, err
	}
	for _, entry := range entries {
		if entry.VideoID == "" {
			continue
		}
		if entry.Author == "" {
			entry.Author = ch.Name
		}
		res, err := g.ingestVideo(ctx, entry, opts)
		result.merge(res)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			logging.WarnWithContext(g.logger, "video ingestion failed", "item_failed",
				logging.String(logging.FieldItemID, entry.VideoID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "video skipped for this run"),
			)
		}
	}
	return result, nil
}

func (g *Ingester) ingestFeed(ctx context.Context, feed config.Feed, opts RunOptions) (Result, error) {
	var result Result
	entries, err := g.deps.Feeds.Recent(ctx, feed.URL, g.limit(g.cfg.Ingest.EntriesPerFeed))
	if err != nil {
		return result, err
	}
	for _, entry := range entries {
		if entry.Author == "" {
			entry.Author = feed.Name
		}
		res, err := g.ingestArticle(ctx, entry, opts)
		result.merge(res)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			logging.WarnWithContext(g.logger, "article ingestion failed", "item_failed",
				logging.String("url", entry.Link),
				logging.Error(err),
				logging.String(logging.FieldImpact, "article skipped for this run"),
			)
		}
	}
	return result, nil
}

// IngestURL ingests one video or article URL.
func (g *Ingester) IngestURL(ctx context.Context, rawURL string, opts RunOptions) (Result, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Result{}, services.Wrap(services.ErrValidation, "ingest", "ingest url", "url is empty", nil)
	}
	if videoID := ExtractVideoID(rawURL); videoID != "" {
		return g.ingestVideo(ctx, Entry{Link: rawURL, VideoID: videoID}, opts)
	}
	return g.ingestArticle(ctx, Entry{Link: rawURL}, opts)
}

// IngestTopic injects a manual topic, optionally pinned to a pillar.
func (g *Ingester) IngestTopic(ctx context.Context, topic, pillar string, opts RunOptions) (Result, error) {
	var result Result
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return result, services.Wrap(services.ErrValidation, "ingest", "ingest topic", "topic is empty", nil)
	}
	id := item.ManualID(topic)
	if g.skip(id, opts, &result) {
		return result, nil
	}
	it := item.New(id, item.SourceManual, topic, g.deps.Clock())
	it.SourceURL = ManualSourceURL
	it.Author = g.cfg.Publish.Author
	it.RawText = topic
	now := it.CreatedAt
	it.PublishedAt = &now
	it.Metadata.Set(item.MetaForcedPillar, strings.ToLower(strings.TrimSpace(pillar)))
	return g.save(ctx, it, result)
}

// skip applies the dedup check and the dry-run short circuit. It reports
// whether the candidate needs no further work.
func (g *Ingester) skip(id string, opts RunOptions, result *Result) bool {
	if g.store.Known(id) {
		result.Duplicates++
		g.logger.Debug("already ingested", logging.String(logging.FieldItemID, id))
		return true
	}
	if opts.DryRun {
		result.Planned = append(result.Planned, id)
		g.logger.Info("dry run: would ingest",
			logging.String(logging.FieldItemID, id),
			logging.String(logging.FieldEventType, "dry_run"),
		)
		return true
	}
	return false
}

func (g *Ingester) ingestVideo(ctx context.Context, entry Entry, opts RunOptions) (Result, error) {
	var result Result
	id := item.VideoID(entry.VideoID)
	if id == "" {
		return result, services.Wrap(services.ErrValidation, "ingest", "ingest video", "missing video id", nil)
	}
	if g.skip(id, opts, &result) {
		return result, nil
	}
	logger := g.logger.With(logging.String(logging.FieldItemID, id))

	meta := VideoMetadata{Title: entry.Title, Channel: entry.Author, Published: entry.Published}
	if g.deps.Metadata != nil {
		looked, err := g.deps.Metadata.VideoMetadata(ctx, id)
		if err != nil {
			logging.WarnWithContext(logger, "video metadata lookup failed", "metadata_unavailable",
				logging.Error(err),
				logging.String(logging.FieldImpact, "feed title and date used instead"),
			)
		} else {
			meta.Title = firstNonEmpty(looked.Title, meta.Title)
			meta.Channel = firstNonEmpty(looked.Channel, meta.Channel)
			if looked.Published != nil {
				meta.Published = looked.Published
			}
			meta.DurationSeconds = looked.DurationSeconds
		}
	}

	text, provenance, err := g.transcript(ctx, logger, id, opts)
	if err != nil {
		return result, err
	}
	if text == "" {
		result.Empty++
		logger.Info("no transcript available", logging.String(logging.FieldEventType, "transcript_empty"))
		return result, nil
	}

	it := item.New(id, item.SourceVideo, firstNonEmpty(meta.Title, "Video "+id), g.deps.Clock())
	it.SourceURL = WatchURL(id)
	it.Author = meta.Channel
	it.PublishedAt = meta.Published
	it.RawText = text
	it.Metadata.Set(item.MetaChannel, meta.Channel)
	it.Metadata.Set(item.MetaTranscriptBy, provenance)
	if meta.DurationSeconds > 0 {
		it.Metadata.Set(item.MetaDuration, strconv.Itoa(meta.DurationSeconds))
	}
	return g.save(ctx, it, result)
}

// transcript tries captions first and WhisperX second. A caption fetch error
// is logged and treated as "no captions".
func (g *Ingester) transcript(ctx context.Context, logger *slog.Logger, id string, opts RunOptions) (string, string, error) {
	text, err := g.deps.Transcripts.Transcript(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		logging.WarnWithContext(logger, "caption fetch failed", "transcript_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "falling back to whisper when enabled"),
		)
	}
	if text = strings.TrimSpace(text); text != "" {
		return text, TranscriptCaptions, nil
	}
	if opts.SkipWhisper || g.deps.Transcriber == nil {
		return "", "", nil
	}
	workDir := filepath.Join(g.cfg.Paths.StateDir, "work", id)
	defer os.RemoveAll(workDir)
	logger.Info("transcribing with whisper", logging.String(logging.FieldEventType, "whisper_fallback"))
	text, err = g.deps.Transcriber.TranscribeVideo(ctx, WatchURL(id), workDir)
	if err != nil {
		return "", "", services.Wrap(services.ErrExternalTool, "ingest", "whisper fallback", id, err)
	}
	return strings.TrimSpace(text), TranscriptWhisper, nil
}

func (g *Ingester) ingestArticle(ctx context.Context, entry Entry, opts RunOptions) (Result, error) {
	var result Result
	link := strings.TrimSpace(entry.Link)
	if link == "" {
		return result, nil
	}
	id := item.ArticleID(link)
	if g.skip(id, opts, &result) {
		return result, nil
	}
	article, err := g.deps.Articles.Extract(ctx, link)
	if err != nil {
		return result, err
	}
	if strings.TrimSpace(article.Text) == "" {
		result.Empty++
		g.logger.Info("article had no extractable text",
			logging.String(logging.FieldItemID, id),
			logging.String("url", link),
			logging.String(logging.FieldEventType, "article_empty"),
		)
		return result, nil
	}
	it := item.New(id, item.SourceArticle, firstNonEmpty(article.Title, entry.Title, link), g.deps.Clock())
	it.SourceURL = link
	it.Author = firstNonEmpty(article.Author, entry.Author, article.SiteName)
	it.PublishedAt = article.Published
	if it.PublishedAt == nil {
		it.PublishedAt = entry.Published
	}
	it.RawText = article.Text
	it.Metadata.Set(item.MetaSiteName, article.SiteName)
	return g.save(ctx, it, result)
}

func (g *Ingester) save(ctx context.Context, it *item.Item, result Result) (Result, error) {
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if err := it.Advance(item.StageIngested, g.deps.Clock()); err != nil {
		return result, fmt.Errorf("ingest %s: %w", it.ID, err)
	}
	if err := g.store.Put(item.StageIngested, it); err != nil {
		return result, err
	}
	result.Created = append(result.Created, it)
	g.logger.Info("item ingested",
		logging.String(logging.FieldItemID, it.ID),
		logging.String(logging.FieldEventType, "item_ingested"),
		logging.String("source_type", string(it.SourceKind)),
		logging.String("title", it.Title),
	)
	return result, nil
}

func (g *Ingester) limit(n int) int {
	if n <= 0 {
		return 5
	}
	return n
}
