package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"contentpipe/internal/item"
	"contentpipe/internal/logging"
	"contentpipe/internal/metrics"
	"contentpipe/internal/notifications"
	"contentpipe/internal/services"
	"contentpipe/internal/stage"
	"contentpipe/internal/store"
	"contentpipe/internal/usage"
)

// Stage binds a handler to the namespaces it reads from and writes to.
type Stage struct {
	Name    string
	From    item.Stage
	To      item.Stage
	Handler stage.Handler
}

// Options tunes a stage pass.
type Options struct {
	DryRun bool
}

// Summary counts what a stage pass did.
type Summary struct {
	Stage     string
	Processed int
	Skipped   int
	Planned   int
	Failed    int
	Halted    bool
	Duration  time.Duration
}

// Deps holds the runner's optional collaborators.
type Deps struct {
	Notifier notifications.Service
	Metrics  *metrics.Metrics
	Ledger   *usage.Ledger
	Clock    func() time.Time
}

// Runner drives items through stage handlers one at a time.
type Runner struct {
	store    *store.Store
	notifier notifications.Service
	metrics  *metrics.Metrics
	ledger   *usage.Ledger
	logger   *slog.Logger
	now      func() time.Time
}

// New returns a runner over st.
func New(st *store.Store, deps Deps, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Runner{
		store:    st,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		ledger:   deps.Ledger,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		now:      clock,
	}
}

// Run processes every item in the stage's source namespace. It returns an
// error only for a budget halt, a configuration error, cancellation or an
// unreadable namespace; per-item failures are counted in the summary.
func (r *Runner) Run(ctx context.Context, s Stage, opts Options) (Summary, error) {
	summary := Summary{Stage: s.Name}
	started := r.now()

	if s.Handler == nil {
		return summary, services.Wrap(services.ErrConfiguration, s.Name, "run", "stage handler unavailable", nil)
	}
	items, skipped, err := r.store.List(s.From)
	if err != nil {
		return summary, services.Wrap(services.ErrTransient, s.Name, "list items", string(s.From), err)
	}
	for _, serr := range skipped {
		logging.WarnWithContext(r.logger, "unreadable snapshot skipped", "snapshot_unreadable",
			logging.String(logging.FieldStage, s.Name),
			logging.Error(serr),
			logging.String(logging.FieldErrorHint, "inspect or delete the file under state_dir"),
			logging.String(logging.FieldImpact, "item is not processed"),
		)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	checked := opts.DryRun
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return r.finish(summary, started), err
		}
		if it.Stage != s.From {
			continue
		}
		done, err := r.store.Completed(s.To, it.ID)
		if err != nil {
			r.logger.Debug("resume check failed; reprocessing",
				logging.String(logging.FieldItemID, it.ID),
				logging.Error(err),
			)
		}
		if done {
			summary.Skipped++
			continue
		}
		if !checked {
			checked = true
			if health := s.Handler.HealthCheck(ctx); !health.Ready {
				return r.finish(summary, started), services.Wrap(services.ErrConfiguration, s.Name, "health check", health.Status(), nil)
			}
		}

		if err := r.processItem(ctx, s, it, opts, &summary); err != nil {
			if services.IsHalt(err) {
				summary.Halted = true
			}
			return r.finish(summary, started), err
		}
	}
	return r.finish(summary, started), nil
}

func (r *Runner) finish(summary Summary, started time.Time) Summary {
	summary.Duration = r.now().Sub(started)
	r.logger.Info("stage pass complete",
		logging.String(logging.FieldEventType, "stage_pass_complete"),
		logging.String(logging.FieldStage, summary.Stage),
		logging.Int("processed", summary.Processed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("planned", summary.Planned),
		logging.Int("failed", summary.Failed),
		logging.Bool("halted", summary.Halted),
		logging.Duration("duration", summary.Duration),
	)
	return summary
}

// processItem returns an error only when the batch must stop.
func (r *Runner) processItem(ctx context.Context, s Stage, it *item.Item, opts Options, summary *Summary) error {
	stageCtx := withStageContext(ctx, s.Name, it.ID, uuid.NewString())
	logger := logging.WithContext(stageCtx, r.logger)

	if opts.DryRun {
		if err := s.Handler.Prepare(stageCtx, it); err != nil {
			if services.IsHalt(err) || services.IsFatal(err) {
				return r.stop(stageCtx, logger, s, err)
			}
			summary.Failed++
			logger.Info("would fail", logging.String("title", it.DisplayTitle()), logging.Error(err))
			return nil
		}
		summary.Planned++
		r.metrics.ObserveItem(s.Name, metrics.ResultPlanned, 0)
		logger.Info("would process",
			logging.String("title", it.DisplayTitle()),
			logging.String("next_stage", string(s.To)),
		)
		return nil
	}

	stageStart := r.now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("title", it.DisplayTitle()),
		logging.String("source_kind", string(it.SourceKind)),
	)

	execErr := s.Handler.Execute(stageCtx, it)
	if execErr == nil {
		if err := it.Advance(s.To, r.now()); err != nil {
			execErr = services.Wrap(services.ErrValidation, s.Name, "advance", it.ID, err)
		}
	}
	if execErr == nil {
		if err := r.store.Put(s.To, it); err != nil {
			execErr = services.Wrap(services.ErrTransient, s.Name, "persist stage result", it.ID, err)
		}
	}
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			logger.Debug("stage interrupted")
			return execErr
		}
		if services.IsHalt(execErr) || services.IsFatal(execErr) {
			return r.stop(stageCtx, logger, s, execErr)
		}
		summary.Failed++
		r.handleStageFailure(stageCtx, logger, s, it, execErr, r.now().Sub(stageStart))
		return nil
	}

	if err := r.store.ClearFailed(it.ID); err != nil {
		logger.Debug("clear failure snapshot failed", logging.Error(err))
	}
	summary.Processed++
	elapsed := r.now().Sub(stageStart)
	r.metrics.ObserveItem(s.Name, metrics.ResultSucceeded, elapsed)
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_stage", string(it.Stage)),
		logging.Duration("stage_duration", elapsed),
	)
	return nil
}

func (r *Runner) handleStageFailure(ctx context.Context, logger *slog.Logger, s Stage, it *item.Item, stageErr error, elapsed time.Duration) {
	r.metrics.ObserveItem(s.Name, metrics.ResultFailed, elapsed)
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String("title", it.DisplayTitle()),
		logging.String("error_kind", services.FailureKind(stageErr)),
		logging.Error(stageErr),
		logging.String(logging.FieldErrorHint, "fix the cause and rerun; the item is retried on the next run"),
		logging.Duration("stage_duration", elapsed),
	)
	if err := r.store.MarkFailed(it, stageErr); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}
	r.notify(ctx, notifications.EventError, notifications.Payload{
		"context": s.Name + " of " + strings.TrimSpace(it.DisplayTitle()),
		"error":   stageErr.Error(),
	})
}

func (r *Runner) stop(ctx context.Context, logger *slog.Logger, s Stage, err error) error {
	if !services.IsHalt(err) {
		logging.ErrorWithContext(logger, "stage aborted", "stage_abort",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the configuration and rerun"),
		)
		return err
	}
	r.metrics.ObserveBudgetHalt()
	var spent, budget float64
	if r.ledger != nil {
		if rec, lerr := r.ledger.Today(ctx); lerr == nil {
			spent = rec.Cost
		}
		budget = r.ledger.Budget()
	}
	logging.WarnWithContext(logger, "daily budget reached; halting", "budget_halt",
		logging.Float64("spent_usd", spent),
		logging.Float64("budget_usd", budget),
		logging.String(logging.FieldErrorHint, "raise budget.daily_usd or wait until tomorrow"),
		logging.String(logging.FieldImpact, "remaining items wait for the next run"),
	)
	r.notify(ctx, notifications.EventBudgetHalt, notifications.Payload{
		"spent":  spent,
		"budget": budget,
		"stage":  s.Name,
	})
	return err
}

// NotifySummary sends the run summary notification. label names the stage
// or is empty for a full run.
func (r *Runner) NotifySummary(ctx context.Context, label string, summaries ...Summary) {
	var processed, failed int
	var elapsed time.Duration
	for _, s := range summaries {
		processed += s.Processed
		failed += s.Failed
		elapsed += s.Duration
	}
	r.notify(ctx, notifications.EventRunSummary, notifications.Payload{
		"stage":     label,
		"processed": processed,
		"failed":    failed,
		"duration":  elapsed,
	})
}

func (r *Runner) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Publish(ctx, event, payload); err != nil {
		r.logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

func withStageContext(ctx context.Context, stageName, itemID, requestID string) context.Context {
	if itemID != "" {
		ctx = services.WithItemID(ctx, itemID)
	}
	if stageName != "" {
		ctx = services.WithStage(ctx, stageName)
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}
