// Package roundup synthesizes several recently ingested items into a single
// derived article. The result skips ingest and transform and lands directly
// at the transformed stage, ready for drafting.
package roundup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"contentpipe/internal/config"
	"contentpipe/internal/images"
	"contentpipe/internal/item"
	"contentpipe/internal/logging"
	"contentpipe/internal/metrics"
	"contentpipe/internal/services"
	"contentpipe/internal/services/llm"
	"contentpipe/internal/store"
	"contentpipe/internal/textutil"
	"contentpipe/internal/transform"
	"contentpipe/internal/usage"
)

const (
	stageName = "roundup"

	// MaxSourceRunes bounds each source's text in the synthesis request.
	MaxSourceRunes = 10000
	maxTokens      = 4096

	DefaultPillar     = "news"
	DefaultDays       = 7
	DefaultMinSources = 3
)

// Status describes what a roundup attempt did.
type Status string

const (
	StatusCreated      Status = "created"
	StatusPlanned      Status = "planned"
	StatusExists       Status = "exists"
	StatusInsufficient Status = "insufficient_sources"
)

// Options selects the pillar and lookback window for one roundup.
type Options struct {
	Pillar     string
	Days       int
	MinSources int
	DryRun     bool
}

func (o Options) normalized() Options {
	o.Pillar = strings.ToLower(strings.TrimSpace(o.Pillar))
	if o.Pillar == "" {
		o.Pillar = DefaultPillar
	}
	if o.Days <= 0 {
		o.Days = DefaultDays
	}
	if o.MinSources <= 0 {
		o.MinSources = DefaultMinSources
	}
	return o
}

// Outcome reports a single roundup attempt.
type Outcome struct {
	Pillar  string
	ItemID  string
	Title   string
	Sources int
	Status  Status
}

// Deps holds the synthesizer's collaborators. Metrics may be nil.
type Deps struct {
	Generator llm.Generator
	Store     *store.Store
	Ledger    *usage.Ledger
	Metrics   *metrics.Metrics
	Prompts   *transform.PromptLoader
	Clock     func() time.Time
}

// Synthesizer builds roundup items.
type Synthesizer struct {
	cfg     *config.Config
	gen     llm.Generator
	store   *store.Store
	meter   *transform.Meter
	metrics *metrics.Metrics
	prompts *transform.PromptLoader
	logger  *slog.Logger
	now     func() time.Time
}

// NewFromConfig builds a synthesizer using the configured generation
// provider. A nil factory uses llm.NewFromConfig.
func NewFromConfig(cfg *config.Config, factory llm.Factory, st *store.Store, ledger *usage.Ledger, m *metrics.Metrics, logger *slog.Logger) (*Synthesizer, error) {
	if err := cfg.RequireGeneration(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "init", err.Error(), nil)
	}
	if factory == nil {
		factory = llm.NewFromConfig
	}
	gen, err := factory(cfg.Generation, cfg.Generation.Model)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "init", "build generator", err)
	}
	return New(cfg, Deps{Generator: gen, Store: st, Ledger: ledger, Metrics: m}, logger), nil
}

// New returns a synthesizer from explicit collaborators.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, stageName)
	prompts := deps.Prompts
	if prompts == nil {
		prompts = transform.NewPromptLoader(cfg.Paths.PromptsDir)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	var observer transform.UsageObserver
	if deps.Metrics != nil {
		observer = deps.Metrics
	}
	return &Synthesizer{
		cfg:     cfg,
		gen:     deps.Generator,
		store:   deps.Store,
		meter:   transform.NewMeter(deps.Ledger, observer, logger),
		metrics: deps.Metrics,
		prompts: prompts,
		logger:  logger,
		now:     clock,
	}
}

// Run builds one roundup. Too few sources and an existing roundup for the
// same pillar and day are reported through the outcome, not as errors.
func (s *Synthesizer) Run(ctx context.Context, opts Options) (Outcome, error) {
	opts = opts.normalized()
	now := s.now()
	out := Outcome{Pillar: opts.Pillar, ItemID: item.RoundupID(opts.Pillar, now)}
	logger := s.logger.With(
		logging.String("pillar", opts.Pillar),
		logging.String(logging.FieldItemID, out.ItemID),
	)

	if s.store.Known(out.ItemID) {
		out.Status = StatusExists
		logger.Info("roundup already created today")
		s.metrics.ObserveItem(stageName, metrics.ResultSkipped, 0)
		return out, nil
	}

	cutoff := now.AddDate(0, 0, -opts.Days)
	sources, err := s.collect(opts.Pillar, cutoff)
	if err != nil {
		return out, err
	}
	out.Sources = len(sources)
	if len(sources) < opts.MinSources {
		out.Status = StatusInsufficient
		logger.Info("not enough sources for roundup",
			logging.Int("sources", len(sources)),
			logging.Int("min_sources", opts.MinSources),
		)
		s.metrics.ObserveItem(stageName, metrics.ResultSkipped, 0)
		return out, nil
	}
	if opts.DryRun {
		out.Status = StatusPlanned
		logger.Info("would synthesize roundup", logging.Int("sources", len(sources)))
		s.metrics.ObserveItem(stageName, metrics.ResultPlanned, 0)
		return out, nil
	}

	started := s.now()
	it, err := s.synthesize(ctx, opts.Pillar, cutoff, now, sources)
	if err != nil {
		s.metrics.ObserveItem(stageName, metrics.ResultFailed, s.now().Sub(started))
		return out, err
	}
	if err := s.store.Put(item.StageTransformed, it); err != nil {
		s.metrics.ObserveItem(stageName, metrics.ResultFailed, s.now().Sub(started))
		return out, services.Wrap(services.ErrTransient, stageName, "persist", it.ID, err)
	}
	s.metrics.ObserveItem(stageName, metrics.ResultSucceeded, s.now().Sub(started))
	out.Title = it.Title
	out.Status = StatusCreated
	logger.Info("roundup created",
		logging.String(logging.FieldEventType, "roundup_created"),
		logging.String("title", it.Title),
		logging.Int("sources", len(sources)),
		logging.Int("voice_warnings", len(it.VoiceWarnings)),
	)
	return out, nil
}

// RunScheduled runs every roundup in the registry scheduled for today's
// weekday. A budget halt stops the remaining schedules.
func (s *Synthesizer) RunScheduled(ctx context.Context, schedules []config.RoundupSchedule, dryRun bool) ([]Outcome, error) {
	weekday := strings.ToLower(s.now().Weekday().String())
	var outcomes []Outcome
	var errs []error
	for _, sched := range schedules {
		if !sched.RunsOn(weekday) {
			continue
		}
		out, err := s.Run(ctx, Options{Pillar: sched.Pillar, Days: sched.LookbackDays, DryRun: dryRun})
		if err != nil {
			if services.IsHalt(err) || services.IsFatal(err) {
				return outcomes, err
			}
			logging.WarnWithContext(s.logger, "scheduled roundup failed", "roundup_failed",
				logging.String("pillar", sched.Pillar),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "rerun contentpipe roundup --pillar "+sched.Pillar),
				logging.String(logging.FieldImpact, "no roundup for this pillar today"),
			)
			errs = append(errs, err)
			continue
		}
		outcomes = append(outcomes, out)
	}
	if len(outcomes) == 0 && len(errs) == 0 {
		s.logger.Info("no roundups scheduled today", logging.String("weekday", weekday))
	}
	return outcomes, errors.Join(errs...)
}

// collect returns ingested items dated on or after cutoff, newest first.
// Items pinned to a different pillar are left out.
func (s *Synthesizer) collect(pillar string, cutoff time.Time) ([]*item.Item, error) {
	items, skipped, err := s.store.List(item.StageIngested)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "list sources", "", err)
	}
	for _, serr := range skipped {
		s.logger.Debug("unreadable snapshot skipped", logging.Error(serr))
	}
	var out []*item.Item
	for _, it := range items {
		if it.SourceKind == item.SourceRoundup {
			continue
		}
		if forced := strings.ToLower(it.Metadata.ForcedPillar()); forced != "" && forced != pillar {
			continue
		}
		if sourceDate(it).Before(cutoff) {
			continue
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return sourceDate(out[i]).After(sourceDate(out[j]))
	})
	return out, nil
}

func sourceDate(it *item.Item) time.Time {
	if it.PublishedAt != nil {
		return *it.PublishedAt
	}
	return it.CreatedAt
}

func (s *Synthesizer) synthesize(ctx context.Context, pillar string, cutoff, now time.Time, sources []*item.Item) (*item.Item, error) {
	if s.gen == nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "synthesize", "generator not configured", nil)
	}
	if err := s.meter.Gate(ctx, stageName); err != nil {
		return nil, err
	}
	system, err := s.prompts.Load(transform.PromptRoundup)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "load prompt", "", err)
	}
	var result Output
	resp, err := llm.GenerateInto(ctx, s.gen, llm.Request{
		System:    system,
		User:      UserMessage(pillar, cutoff, now, sources),
		Schema:    outputSchema,
		MaxTokens: maxTokens,
	}, &result)
	s.meter.Record(ctx, resp)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrExternalTool, stageName, "synthesize", "", err)
	}
	blog := result.Draft(pillar)
	if len(blog.TitleOptions) == 0 || blog.FullText == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "synthesize",
			"generator returned no title or body", nil)
	}

	it := item.New(item.RoundupID(pillar, now), item.SourceRoundup, blog.PrimaryTitle(), now)
	it.SourceURL = "roundup"
	it.Author = strings.TrimSpace(s.cfg.Publish.Author + " (Auto-Curated)")
	published := now.UTC()
	it.PublishedAt = &published
	it.RawText = fmt.Sprintf("Synthesized from %d sources.", len(sources))
	ids := make([]string, 0, len(sources))
	for _, src := range sources {
		ids = append(ids, src.ID)
	}
	it.Metadata.SetSourceIDs(ids)
	it.Blog = blog
	it.FeaturedImage = images.PlaceholderRef
	it.VoiceWarnings = transform.VoiceCheck(blog.FullText, s.cfg.Voice.BannedPhrases)
	for _, to := range []item.Stage{item.StageIngested, item.StageTransformed} {
		if err := it.Advance(to, now); err != nil {
			return nil, services.Wrap(services.ErrValidation, stageName, "advance", it.ID, err)
		}
	}
	return it, nil
}

// UserMessage lists the numbered sources with the pillar and date range.
func UserMessage(pillar string, cutoff, now time.Time, sources []*item.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pillar: %s\n", pillar)
	fmt.Fprintf(&b, "Date Range: %s to %s\n\nSources:\n", cutoff.Format("2006-01-02"), now.Format("2006-01-02"))
	for i, src := range sources {
		fmt.Fprintf(&b, "\n--- Source %d ---\nTitle: %s\nContent:\n%s\n", i+1, src.Title, textutil.Truncate(src.RawText, MaxSourceRunes))
	}
	return b.String()
}
