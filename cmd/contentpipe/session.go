package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"contentpipe/internal/config"
	"contentpipe/internal/logging"
	"contentpipe/internal/metrics"
	"contentpipe/internal/notifications"
	"contentpipe/internal/pipeline"
	"contentpipe/internal/store"
	"contentpipe/internal/usage"
)

type sessionOptions struct {
	// lock takes the cross-run lock unless the run is a dry run.
	lock   bool
	ledger bool
	dryRun bool
}

// session holds the per-invocation collaborators of a pipeline command.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	metrics  *metrics.Metrics
	notifier notifications.Service
	ledger   *usage.Ledger
	runner   *pipeline.Runner
	lock     *pipeline.RunLock
	dryRun   bool
	now      func() time.Time
}

func (c *commandContext) openSession(opts sessionOptions) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.newLogger(cfg)
	if err != nil {
		return nil, err
	}
	s := &session{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.New(),
		notifier: c.notifier(cfg),
		dryRun:   opts.dryRun,
		now:      c.clock,
	}
	if opts.dryRun {
		err = s.openReadOnly(opts.ledger)
	} else {
		err = s.openWritable(opts.lock, opts.ledger)
	}
	if err != nil {
		_ = s.release()
		return nil, err
	}
	s.runner = pipeline.New(s.store, pipeline.Deps{
		Notifier: s.notifier,
		Metrics:  s.metrics,
		Ledger:   s.ledger,
		Clock:    c.clock,
	}, logger)
	return s, nil
}

func (s *session) openWritable(lock, ledger bool) error {
	if err := s.cfg.EnsureDirectories(); err != nil {
		return err
	}
	if lock {
		runLock, err := pipeline.AcquireRunLock(s.cfg.RunLockPath())
		if err != nil {
			return err
		}
		s.lock = runLock
	}
	var err error
	if s.store, err = store.Open(s.cfg.Paths.StateDir); err != nil {
		return fmt.Errorf("open item store: %w", err)
	}
	if ledger {
		if s.ledger, err = usage.OpenConfig(s.cfg); err != nil {
			return fmt.Errorf("open usage ledger: %w", err)
		}
	}
	return nil
}

// openReadOnly leaves the state directory as it finds it. Without a usage
// database there is no recorded spend, so the run goes ungated.
func (s *session) openReadOnly(ledger bool) error {
	var err error
	if s.store, err = store.OpenReadOnly(s.cfg.Paths.StateDir); err != nil {
		return fmt.Errorf("open item store: %w", err)
	}
	if !ledger {
		return nil
	}
	s.ledger, err = usage.OpenConfigReadOnly(s.cfg)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		s.ledger = nil
		s.logger.Debug("usage ledger not created yet; dry run is not budget gated")
	default:
		return fmt.Errorf("open usage ledger: %w", err)
	}
	return nil
}

func (c *commandContext) newLogger(cfg *config.Config) (*slog.Logger, error) {
	opts := logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: c.logOutput,
	}
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		opts.JSONFile = filepath.Join(dir, logging.LogFileName)
	}
	return logging.New(opts)
}

// Close writes the metrics textfile, closes the ledger and releases the run
// lock. Dry runs leave the textfile untouched.
func (s *session) Close() error {
	var errs []error
	if !s.dryRun {
		if err := s.metrics.WriteTextfile(s.cfg.Metrics.TextfilePath, s.now()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.release(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *session) release() error {
	var errs []error
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close usage ledger: %w", err))
		}
	}
	if err := s.lock.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release run lock: %w", err))
	}
	return errors.Join(errs...)
}

func printDryRunBanner(out io.Writer, dryRun bool) {
	if dryRun {
		fmt.Fprintln(out, "DRY RUN ENABLED - no changes will be made")
	}
}
