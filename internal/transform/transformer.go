package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"contentpipe/internal/config"
	"contentpipe/internal/images"
	"contentpipe/internal/item"
	"contentpipe/internal/logging"
	"contentpipe/internal/services"
	"contentpipe/internal/services/llm"
	"contentpipe/internal/stage"
	"contentpipe/internal/textutil"
	"contentpipe/internal/usage"
)

const (
	stageName = "transform"

	// MaxSourceRunes bounds the source text sent with the blog request.
	MaxSourceRunes  = 50000
	socialMaxTokens = 2048
)

// ImageRenderer renders a featured image for a slug and pillar.
type ImageRenderer interface {
	Render(ctx context.Context, slug, pillar string) (images.Result, error)
}

// Deps holds the transformer's collaborators. Social defaults to Blog and a
// nil Images disables featured images.
type Deps struct {
	Blog    llm.Generator
	Social  llm.Generator
	Ledger  *usage.Ledger
	Images  ImageRenderer
	Metrics UsageObserver
	Pillars []config.Pillar
	Prompts *PromptLoader
	Clock   func() time.Time
}

// Options tunes a transform pass.
type Options struct {
	SkipImages bool
	SkipSocial bool
}

// Transformer generates blog and social drafts for ingested items.
type Transformer struct {
	cfg     *config.Config
	blog    llm.Generator
	social  llm.Generator
	meter   *Meter
	images  ImageRenderer
	pillars []config.Pillar
	prompts *PromptLoader
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

var _ stage.Handler = (*Transformer)(nil)

// New builds a transformer from configuration: the configured provider for
// both models, the pillar list, and a renderer when images are enabled. A nil
// factory uses llm.NewFromConfig.
func New(ctx context.Context, cfg *config.Config, factory llm.Factory, ledger *usage.Ledger, observer UsageObserver, opts Options, logger *slog.Logger) (*Transformer, error) {
	if err := cfg.RequireGeneration(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "init", err.Error(), nil)
	}
	if factory == nil {
		factory = llm.NewFromConfig
	}
	blogGen, err := factory(cfg.Generation, cfg.Generation.Model)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "init", "build generator", err)
	}
	socialGen := blogGen
	if model := strings.TrimSpace(cfg.Generation.SocialModel); model != "" && model != cfg.Generation.Model {
		socialGen, err = factory(cfg.Generation, model)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, stageName, "init", "build social generator", err)
		}
	}
	pillars, err := config.LoadPillars(cfg.Paths.PillarsFile)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "init", "load pillars", err)
	}
	deps := Deps{
		Blog:    blogGen,
		Social:  socialGen,
		Ledger:  ledger,
		Metrics: observer,
		Pillars: pillars,
		Prompts: NewPromptLoader(cfg.Paths.PromptsDir),
	}
	if cfg.Images.Enabled && !opts.SkipImages {
		mirror, err := images.NewS3Mirror(ctx, cfg.Images)
		if err != nil {
			logging.WarnWithContext(logger, "image mirror unavailable", "image_mirror_unavailable",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check AWS credentials and images.s3_bucket"),
				logging.String(logging.FieldImpact, "images are written locally only"),
			)
			mirror = nil
		}
		deps.Images = images.NewRenderer(cfg, mirror, logger)
	}
	return NewWithDeps(cfg, deps, opts, logger), nil
}

// NewWithDeps builds a transformer from explicit collaborators.
func NewWithDeps(cfg *config.Config, deps Deps, opts Options, logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, stageName)
	social := deps.Social
	if social == nil {
		social = deps.Blog
	}
	prompts := deps.Prompts
	if prompts == nil {
		prompts = NewPromptLoader(cfg.Paths.PromptsDir)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Transformer{
		cfg:     cfg,
		blog:    deps.Blog,
		social:  social,
		meter:   NewMeter(deps.Ledger, deps.Metrics, logger),
		images:  deps.Images,
		pillars: deps.Pillars,
		prompts: prompts,
		opts:    opts,
		logger:  logger,
		now:     clock,
	}
}

// Prepare validates the item and consults the budget gate. It has no side
// effects and is the only hook called during dry runs.
func (t *Transformer) Prepare(ctx context.Context, it *item.Item) error {
	if err := stage.RequireRawText(stageName, it); err != nil {
		return err
	}
	return t.meter.Gate(ctx, stageName)
}

// Execute generates the drafts and annotates the item. The runner advances
// the stage and persists the snapshot.
func (t *Transformer) Execute(ctx context.Context, it *item.Item) error {
	logger := logging.WithContext(ctx, t.logger)
	if err := t.Prepare(ctx, it); err != nil {
		return err
	}

	result, err := t.generateBlog(ctx, it)
	if err != nil {
		return err
	}
	blog := result.Draft()
	if len(blog.TitleOptions) == 0 || blog.FullText == "" {
		return services.Wrap(services.ErrValidation, stageName, "generate blog",
			"generator returned no title or body", nil)
	}
	blog.ContentPillar = t.resolvePillar(it, blog.ContentPillar)
	it.Blog = blog

	it.VoiceWarnings = VoiceCheck(blog.FullText, t.cfg.Voice.BannedPhrases)
	for _, warning := range it.VoiceWarnings {
		logging.WarnWithContext(logger, "voice check", "voice_warning",
			logging.String("warning", warning),
			logging.String(logging.FieldErrorHint, "edit the draft during review"),
			logging.String(logging.FieldImpact, "advisory only"),
		)
	}

	it.Social = nil
	if !t.opts.SkipSocial {
		it.Social = t.generateSocial(ctx, logger, blog)
	}

	t.attachImage(ctx, logger, it)

	logger.Info("transform generated drafts",
		logging.String("title", blog.PrimaryTitle()),
		logging.String("pillar", blog.ContentPillar),
		logging.String("content_type", blog.ContentType),
		logging.Bool("social", it.Social != nil),
		logging.Int("voice_warnings", len(it.VoiceWarnings)),
	)
	return nil
}

// HealthCheck verifies the generator credentials when the provider supports it.
func (t *Transformer) HealthCheck(ctx context.Context) stage.Health {
	if t.blog == nil {
		return stage.Unhealthy(stageName, "generator not configured")
	}
	if checker, ok := t.blog.(llm.HealthChecker); ok {
		if err := checker.HealthCheck(ctx); err != nil {
			return stage.Unhealthy(stageName, err.Error())
		}
	}
	return stage.Healthy(stageName)
}

func (t *Transformer) generateBlog(ctx context.Context, it *item.Item) (BlogResult, error) {
	system, err := t.prompts.Load(PromptBlog)
	if err != nil {
		return BlogResult{}, services.Wrap(services.ErrConfiguration, stageName, "load prompt", "", err)
	}
	var out BlogResult
	resp, err := llm.GenerateInto(ctx, t.blog, llm.Request{
		System:    system,
		User:      t.blogMessage(it),
		Schema:    blogSchema,
		MaxTokens: t.cfg.Generation.MaxTokens,
	}, &out)
	t.meter.Record(ctx, resp)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return BlogResult{}, err
		}
		return BlogResult{}, services.Wrap(services.ErrExternalTool, stageName, "generate blog", "", err)
	}
	return out, nil
}

func (t *Transformer) blogMessage(it *item.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source Title: %s\n", it.Title)
	fmt.Fprintf(&b, "Source Author: %s\n", it.Author)
	if it.PublishedAt != nil {
		fmt.Fprintf(&b, "Source Date: %s\n", it.PublishedAt.UTC().Format(time.RFC3339))
	} else {
		b.WriteString("Source Date: unknown\n")
	}
	if forced := it.Metadata.ForcedPillar(); forced != "" {
		fmt.Fprintf(&b, "Content Pillar: %s (required)\n", forced)
	} else if len(t.pillars) > 0 {
		b.WriteString("\nAvailable Pillars:\n")
		for _, p := range t.pillars {
			if p.Description != "" {
				fmt.Fprintf(&b, "- %s: %s\n", p.Name, p.Description)
			} else {
				fmt.Fprintf(&b, "- %s\n", p.Name)
			}
		}
	}
	b.WriteString("\nSource Content:\n")
	b.WriteString(textutil.Truncate(it.RawText, MaxSourceRunes))
	return b.String()
}

// SocialContext is the user message shared by the Instagram and TikTok calls.
func SocialContext(blog *item.BlogDraft) string {
	return fmt.Sprintf("Blog Title: %s\nBlog Content:\n%s", blog.PrimaryTitle(), blog.FullText)
}

// generateSocial runs both social calls. Any failure, including an exhausted
// budget, leaves social absent and the item still advances.
func (t *Transformer) generateSocial(ctx context.Context, logger *slog.Logger, blog *item.BlogDraft) *item.SocialDraft {
	warn := func(msg, event string, err error) {
		logging.WarnWithContext(logger, msg, event,
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "rerun transform after deleting the transformed snapshot to retry"),
			logging.String(logging.FieldImpact, "item advances with a blog draft only"),
		)
	}
	userMsg := SocialContext(blog)

	var ig InstagramResult
	if err := t.socialCall(ctx, PromptInstagram, instagramSchema, userMsg, &ig); err != nil {
		warn("instagram generation failed", "social_generation_failed", err)
		return nil
	}
	var tt TikTokResult
	if err := t.socialCall(ctx, PromptTikTok, tiktokSchema, userMsg, &tt); err != nil {
		warn("tiktok generation failed", "social_generation_failed", err)
		return nil
	}
	return MergeSocial(&ig, &tt)
}

func (t *Transformer) socialCall(ctx context.Context, promptName string, schema llm.Schema, userMsg string, target any) error {
	if err := t.meter.Gate(ctx, stageName); err != nil {
		return err
	}
	system, err := t.prompts.Load(promptName)
	if err != nil {
		return err
	}
	resp, err := llm.GenerateInto(ctx, t.social, llm.Request{
		System:    system,
		User:      userMsg,
		Schema:    schema,
		Model:     t.cfg.Generation.SocialModel,
		MaxTokens: socialMaxTokens,
	}, target)
	t.meter.Record(ctx, resp)
	return err
}

func (t *Transformer) resolvePillar(it *item.Item, generated string) string {
	if forced := strings.ToLower(it.Metadata.ForcedPillar()); forced != "" {
		return forced
	}
	if generated != "" {
		return generated
	}
	if p := strings.ToLower(strings.TrimSpace(t.cfg.Publish.DefaultPillar)); p != "" {
		return p
	}
	return "tutorials"
}

func (t *Transformer) attachImage(ctx context.Context, logger *slog.Logger, it *item.Item) {
	it.FeaturedImage = images.PlaceholderRef
	if t.images == nil || t.opts.SkipImages {
		return
	}
	slug := textutil.Slugify(it.Blog.PrimaryTitle())
	if slug == "" {
		slug = it.ID
	}
	res, err := t.images.Render(ctx, slug, it.Blog.ContentPillar)
	if err != nil {
		logging.WarnWithContext(logger, "featured image failed", "image_render_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.public_dir permissions"),
			logging.String(logging.FieldImpact, "placeholder image used"),
		)
		return
	}
	it.FeaturedImage = res.Ref
	if it.Metadata == nil {
		it.Metadata = item.Metadata{}
	}
	it.Metadata.Set(item.MetaImageURL, res.MirrorURL)
}
