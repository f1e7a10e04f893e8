// Package usage tracks metered generation spend in SQLite and gates new
// metered work against a daily budget.
package usage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"contentpipe/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrReadOnly is returned by Track on a ledger opened with Options.ReadOnly.
var ErrReadOnly = errors.New("usage ledger is read-only")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	dateLayout              = "2006-01-02"
)

// Pricing converts token counts into dollars.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Cost returns the dollar cost of a call.
func (p Pricing) Cost(tokensIn, tokensOut int) float64 {
	return float64(tokensIn)/1_000_000*p.InputPerMillion + float64(tokensOut)/1_000_000*p.OutputPerMillion
}

// Record holds one day's counters.
type Record struct {
	Date      string
	TokensIn  int64
	TokensOut int64
	Cost      float64
	Calls     int64
}

// Ledger is the usage ledger handle passed into metered stages.
type Ledger struct {
	db        *sql.DB
	path      string
	pricing   Pricing
	budget    float64
	warnRatio float64
	readOnly  bool
	now       func() time.Time
}

// Options configures a ledger.
type Options struct {
	Path      string
	Pricing   Pricing
	DailyUSD  float64
	WarnRatio float64
	Clock     func() time.Time
	// ReadOnly opens an existing database without creating, migrating or
	// writing to it. A missing file is reported as fs.ErrNotExist.
	ReadOnly bool
}

// Open initializes or connects to the usage database.
func Open(opts Options) (*Ledger, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("usage ledger path must be set")
	}
	dsn := opts.Path
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	if opts.ReadOnly {
		if _, err := os.Stat(opts.Path); err != nil {
			return nil, fmt.Errorf("open usage ledger: %w", err)
		}
		var err error
		if dsn, err = readOnlyDSN(opts.Path); err != nil {
			return nil, err
		}
		pragmas = pragmas[1:]
	} else if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure usage directory: %w", err)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	ledger := &Ledger{
		db:        db,
		path:      opts.Path,
		pricing:   opts.Pricing,
		budget:    opts.DailyUSD,
		warnRatio: opts.WarnRatio,
		readOnly:  opts.ReadOnly,
		now:       clock,
	}
	if err := ledger.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}

// OpenConfig opens the ledger at the configured state location with the
// configured pricing and budget.
func OpenConfig(cfg *config.Config) (*Ledger, error) {
	return Open(configOptions(cfg))
}

// OpenConfigReadOnly opens the configured ledger for reads only. It never
// creates the database; a missing file yields an error wrapping
// fs.ErrNotExist.
func OpenConfigReadOnly(cfg *config.Config) (*Ledger, error) {
	opts := configOptions(cfg)
	opts.ReadOnly = true
	return Open(opts)
}

func configOptions(cfg *config.Config) Options {
	return Options{
		Path: cfg.UsageDBPath(),
		Pricing: Pricing{
			InputPerMillion:  cfg.Budget.InputPricePerMillion,
			OutputPerMillion: cfg.Budget.OutputPricePerMillion,
		},
		DailyUSD:  cfg.Budget.DailyUSD,
		WarnRatio: cfg.Budget.WarnRatio,
	}
}

// readOnlyDSN marks the file immutable so SQLite reads it without creating
// -wal or -shm companions. Writes still in another process's WAL are not seen.
func readOnlyDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve usage ledger path: %w", err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: "mode=ro&immutable=1"}
	return u.String(), nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Budget returns the configured daily limit in dollars.
func (l *Ledger) Budget() float64 { return l.budget }

// Pricing returns the per-million token prices.
func (l *Ledger) Pricing() Pricing { return l.pricing }

func (l *Ledger) today() string {
	return l.now().Format(dateLayout)
}

// Track adds a metered call's tokens to today's counters and the lifetime
// total, returning the call's cost. Negative counts are rejected so totals
// never decrease.
func (l *Ledger) Track(ctx context.Context, tokensIn, tokensOut int) (float64, error) {
	if tokensIn < 0 || tokensOut < 0 {
		return 0, fmt.Errorf("track usage: negative token counts (%d, %d)", tokensIn, tokensOut)
	}
	if l.readOnly {
		return 0, fmt.Errorf("track usage: %w", ErrReadOnly)
	}
	cost := l.pricing.Cost(tokensIn, tokensOut)
	date := l.today()
	stamp := l.now().UTC().Format(time.RFC3339)
	err := retryOnBusy(ctx, func() error {
		tx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, `
INSERT INTO daily_usage (date, tokens_in, tokens_out, cost, calls, updated_at)
VALUES (?, ?, ?, ?, 1, ?)
ON CONFLICT(date) DO UPDATE SET
    tokens_in = tokens_in + excluded.tokens_in,
    tokens_out = tokens_out + excluded.tokens_out,
    cost = cost + excluded.cost,
    calls = calls + 1,
    updated_at = excluded.updated_at`,
			date, tokensIn, tokensOut, cost, stamp); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE lifetime_usage SET total_cost = total_cost + ? WHERE id = 1", cost); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("track usage: %w", err)
	}
	return cost, nil
}

// Today returns today's counters; a day with no calls yields zeros.
func (l *Ledger) Today(ctx context.Context) (Record, error) {
	return l.Day(ctx, l.now())
}

// Day returns the counters for the calendar day containing t.
func (l *Ledger) Day(ctx context.Context, t time.Time) (Record, error) {
	rec := Record{Date: t.Format(dateLayout)}
	err := l.db.QueryRowContext(ctx,
		"SELECT tokens_in, tokens_out, cost, calls FROM daily_usage WHERE date = ?", rec.Date,
	).Scan(&rec.TokensIn, &rec.TokensOut, &rec.Cost, &rec.Calls)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("read daily usage: %w", err)
	}
	return rec, nil
}

// LifetimeCost returns the running total across all days.
func (l *Ledger) LifetimeCost(ctx context.Context) (float64, error) {
	var total float64
	if err := l.db.QueryRowContext(ctx, "SELECT total_cost FROM lifetime_usage WHERE id = 1").Scan(&total); err != nil {
		return 0, fmt.Errorf("read lifetime usage: %w", err)
	}
	return total, nil
}

// History returns the most recent days, newest first.
func (l *Ledger) History(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 7
	}
	rows, err := l.db.QueryContext(ctx,
		"SELECT date, tokens_in, tokens_out, cost, calls FROM daily_usage ORDER BY date DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("read usage history: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Date, &rec.TokensIn, &rec.TokensOut, &rec.Cost, &rec.Calls); err != nil {
			return nil, fmt.Errorf("scan usage history: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// IsWithinBudget reports whether today's spend is strictly below the limit.
func (l *Ledger) IsWithinBudget(ctx context.Context) (bool, error) {
	rec, err := l.Today(ctx)
	if err != nil {
		return false, err
	}
	return rec.Cost < l.budget, nil
}

// NearLimit reports whether today's spend has crossed the warning ratio.
func (l *Ledger) NearLimit(ctx context.Context) (bool, error) {
	rec, err := l.Today(ctx)
	if err != nil {
		return false, err
	}
	return l.warnRatio > 0 && rec.Cost >= l.budget*l.warnRatio, nil
}

// Remaining returns the dollars left today, floored at zero.
func (l *Ledger) Remaining(ctx context.Context) (float64, error) {
	rec, err := l.Today(ctx)
	if err != nil {
		return 0, err
	}
	return math.Max(0, l.budget-rec.Cost), nil
}

func (l *Ledger) initSchema(ctx context.Context) error {
	var tableExists int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		if l.readOnly {
			return fmt.Errorf("%w: %s has no schema", ErrSchemaMismatch, l.path)
		}
		return l.createSchema(ctx)
	}
	var version int
	if err := l.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset usage)",
			ErrSchemaMismatch, version, schemaVersion, l.path)
	}
	return nil
}

func (l *Ledger) createSchema(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
