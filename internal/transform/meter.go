package transform

import (
	"context"
	"fmt"
	"log/slog"

	"contentpipe/internal/logging"
	"contentpipe/internal/services"
	"contentpipe/internal/services/llm"
	"contentpipe/internal/usage"
)

// UsageObserver receives every metered call. *metrics.Metrics satisfies it.
type UsageObserver interface {
	ObserveGeneration(tokensIn, tokensOut int, cost float64)
}

// Meter gates metered calls on the daily budget and records their usage.
type Meter struct {
	ledger   *usage.Ledger
	observer UsageObserver
	logger   *slog.Logger
}

// NewMeter wraps ledger. observer may be nil.
func NewMeter(ledger *usage.Ledger, observer UsageObserver, logger *slog.Logger) *Meter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Meter{ledger: ledger, observer: observer, logger: logger}
}

// Gate returns an ErrBudgetExceeded error once today's spend reaches the
// daily budget. A nil ledger never gates.
func (m *Meter) Gate(ctx context.Context, stageName string) error {
	if m == nil || m.ledger == nil {
		return nil
	}
	ok, err := m.ledger.IsWithinBudget(ctx)
	if err != nil {
		return services.Wrap(services.ErrTransient, stageName, "budget gate", "read usage ledger", err)
	}
	if ok {
		return nil
	}
	rec, _ := m.ledger.Today(ctx)
	return services.Wrap(services.ErrBudgetExceeded, stageName, "budget gate",
		fmt.Sprintf("spent $%.2f of $%.2f today", rec.Cost, m.ledger.Budget()), nil)
}

// Record adds a call's tokens to the ledger. Ledger write failures are
// logged; the generated output is still usable.
func (m *Meter) Record(ctx context.Context, resp llm.Response) {
	if m == nil || (resp.InputTokens == 0 && resp.OutputTokens == 0) {
		return
	}
	var cost float64
	if m.ledger != nil {
		c, err := m.ledger.Track(ctx, resp.InputTokens, resp.OutputTokens)
		if err != nil {
			logging.WarnWithContext(m.logger, "usage tracking failed", "usage_track_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check state_dir permissions for usage.db"),
				logging.String(logging.FieldImpact, "today's spend is under-reported"),
			)
		}
		cost = c
	}
	if m.observer != nil {
		m.observer.ObserveGeneration(resp.InputTokens, resp.OutputTokens, cost)
	}
	m.logger.Debug("generation metered",
		logging.Int("tokens_in", resp.InputTokens),
		logging.Int("tokens_out", resp.OutputTokens),
		logging.Float64("cost_usd", cost),
		logging.String("model", resp.Model),
	)
	if m.ledger == nil {
		return
	}
	if near, err := m.ledger.NearLimit(ctx); err == nil && near {
		remaining, _ := m.ledger.Remaining(ctx)
		logging.WarnWithContext(m.logger, "daily budget nearly spent", "budget_near_limit",
			logging.Float64("remaining_usd", remaining),
			logging.String(logging.FieldErrorHint, "raise budget.daily_usd or wait until tomorrow"),
			logging.String(logging.FieldImpact, "transform halts once the budget is reached"),
		)
	}
}
