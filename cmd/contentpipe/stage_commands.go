package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"contentpipe/internal/config"
	"contentpipe/internal/draft"
	"contentpipe/internal/ingest"
	"contentpipe/internal/item"
	"contentpipe/internal/logging"
	"contentpipe/internal/metrics"
	"contentpipe/internal/pipeline"
	"contentpipe/internal/services"
	"contentpipe/internal/transform"
)

const budgetHaltNotice = "Daily generation budget reached; remaining items will be picked up on the next run."

func newAllCommand(ctx *commandContext) *cobra.Command {
	var (
		dryRun        bool
		skipIngest    bool
		skipTransform bool
		skipDraft     bool
		skipWhisper   bool
		skipImages    bool
		skipSocial    bool
	)
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Run ingest, transform and draft in sequence",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			out := cmd.OutOrStdout()
			printDryRunBanner(out, dryRun)
			s, err := ctx.openSession(sessionOptions{lock: true, ledger: true, dryRun: dryRun})
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			var summaries []pipeline.Summary
			if !skipIngest {
				fmt.Fprintln(out, "1. Ingestion")
				res, err := runIngest(cmd.Context(), s, ingestRequest{}, ingest.RunOptions{DryRun: dryRun, SkipWhisper: skipWhisper})
				if err != nil {
					if errors.Is(err, context.Canceled) || services.IsFatal(err) {
						return err
					}
					fmt.Fprintf(out, "Ingestion failed: %v (continuing)\n", err)
				} else {
					printIngestResult(out, res, dryRun)
				}
			}
			if !skipTransform {
				fmt.Fprintln(out, "2. Transformation")
				stage, err := ctx.transformStage(cmd.Context(), s, transform.Options{SkipImages: skipImages, SkipSocial: skipSocial})
				if err != nil {
					return err
				}
				summary, err := runStage(cmd.Context(), out, s, stage)
				if err != nil {
					return err
				}
				summaries = append(summaries, summary)
			}
			if !skipDraft {
				fmt.Fprintln(out, "3. Drafting")
				stage, err := ctx.draftStage(cmd.Context(), s)
				if err != nil {
					return err
				}
				summary, err := runStage(cmd.Context(), out, s, stage)
				if err != nil {
					return err
				}
				summaries = append(summaries, summary)
			}
			if !dryRun {
				s.runner.NotifySummary(cmd.Context(), "", summaries...)
			}
			fmt.Fprintln(out, "Pipeline complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Simulate the pipeline without generation calls or file changes")
	cmd.Flags().BoolVar(&skipIngest, "skip-ingest", false, "Skip the ingestion step")
	cmd.Flags().BoolVar(&skipTransform, "skip-transform", false, "Skip the transformation step")
	cmd.Flags().BoolVar(&skipDraft, "skip-draft", false, "Skip the drafting step")
	cmd.Flags().BoolVar(&skipWhisper, "skip-whisper", false, "Skip the Whisper transcript fallback")
	cmd.Flags().BoolVar(&skipImages, "skip-images", false, "Skip featured image rendering")
	cmd.Flags().BoolVar(&skipSocial, "skip-social", false, "Skip Instagram and TikTok generation")
	return cmd
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var (
		dryRun bool
		req    ingestRequest
		opts   ingest.RunOptions
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch new sources into the ingested stage",
		Long: "Polls every active channel and feed in the sources file. With --url a single\n" +
			"video or article is ingested; with --topic a manual topic is injected.",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			out := cmd.OutOrStdout()
			printDryRunBanner(out, dryRun)
			s, err := ctx.openSession(sessionOptions{dryRun: dryRun})
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			opts.DryRun = dryRun
			res, err := runIngest(cmd.Context(), s, req, opts)
			if err != nil {
				return err
			}
			printIngestResult(out, res, dryRun)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be ingested without writing items")
	cmd.Flags().StringVar(&req.url, "url", "", "Ingest a single YouTube or article URL")
	cmd.Flags().StringVar(&req.topic, "topic", "", "Inject a manual topic")
	cmd.Flags().StringVar(&req.pillar, "pillar", "", "Content pillar for the manual topic")
	cmd.Flags().BoolVar(&opts.SkipWhisper, "skip-whisper", false, "Skip the Whisper transcript fallback")
	cmd.MarkFlagsMutuallyExclusive("url", "topic")
	return cmd
}

func newTransformCommand(ctx *commandContext) *cobra.Command {
	var (
		dryRun bool
		opts   transform.Options
	)
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Generate blog and social drafts for ingested items",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			out := cmd.OutOrStdout()
			printDryRunBanner(out, dryRun)
			s, err := ctx.openSession(sessionOptions{lock: true, ledger: true, dryRun: dryRun})
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			stage, err := ctx.transformStage(cmd.Context(), s, opts)
			if err != nil {
				return err
			}
			summary, err := runStage(cmd.Context(), out, s, stage)
			if err != nil {
				return err
			}
			if !dryRun {
				s.runner.NotifySummary(cmd.Context(), stage.Name, summary)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Check which items would be transformed without generation calls")
	cmd.Flags().BoolVar(&opts.SkipImages, "skip-images", false, "Skip featured image rendering")
	cmd.Flags().BoolVar(&opts.SkipSocial, "skip-social", false, "Skip Instagram and TikTok generation")
	return cmd
}

func newDraftCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Create review documents for transformed items",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			out := cmd.OutOrStdout()
			printDryRunBanner(out, dryRun)
			s, err := ctx.openSession(sessionOptions{lock: true, dryRun: dryRun})
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			stage, err := ctx.draftStage(cmd.Context(), s)
			if err != nil {
				return err
			}
			summary, err := runStage(cmd.Context(), out, s, stage)
			if err != nil {
				return err
			}
			if !dryRun {
				s.runner.NotifySummary(cmd.Context(), stage.Name, summary)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Check which items would be drafted without creating documents")
	return cmd
}

type ingestRequest struct {
	url    string
	topic  string
	pillar string
}

func runIngest(ctx context.Context, s *session, req ingestRequest, opts ingest.RunOptions) (ingest.Result, error) {
	ing, err := ingest.New(ctx, s.cfg, s.store, s.logger)
	if err != nil {
		return ingest.Result{}, services.Wrap(services.ErrConfiguration, "ingest", "init", "", err)
	}
	started := s.now()
	var res ingest.Result
	switch {
	case req.url != "":
		res, err = ing.IngestURL(ctx, req.url, opts)
	case req.topic != "":
		res, err = ing.IngestTopic(ctx, req.topic, req.pillar, opts)
	default:
		sources, found, loadErr := config.LoadSources(s.cfg.Paths.SourcesFile)
		if loadErr != nil {
			return res, services.Wrap(services.ErrConfiguration, "ingest", "load sources", s.cfg.Paths.SourcesFile, loadErr)
		}
		if !found {
			logging.WarnWithContext(s.logger, "sources file not found", "sources_missing",
				logging.String("path", s.cfg.Paths.SourcesFile),
				logging.String(logging.FieldErrorHint, "create the sources file with youtube and rss entries"),
				logging.String(logging.FieldImpact, "nothing to ingest"),
			)
		}
		res, err = ing.Run(ctx, sources, opts)
	}
	elapsed := s.now().Sub(started)
	for range res.Created {
		s.metrics.ObserveItem("ingest", metrics.ResultSucceeded, elapsed/time.Duration(len(res.Created)))
	}
	for range res.Planned {
		s.metrics.ObserveItem("ingest", metrics.ResultPlanned, 0)
	}
	for i := 0; i < res.Failed; i++ {
		s.metrics.ObserveItem("ingest", metrics.ResultFailed, 0)
	}
	return res, err
}

func printIngestResult(out io.Writer, res ingest.Result, dryRun bool) {
	if dryRun {
		fmt.Fprintf(out, "Would ingest %d item(s) (%d already known)\n", len(res.Planned), res.Duplicates)
		for _, id := range res.Planned {
			fmt.Fprintf(out, "  - %s\n", id)
		}
		return
	}
	fmt.Fprintf(out, "Ingested %d new item(s): %d duplicate, %d empty, %d failed\n",
		len(res.Created), res.Duplicates, res.Empty, res.Failed)
	for _, it := range res.Created {
		fmt.Fprintf(out, "  - %s %s\n", it.ID, it.Title)
	}
}

func (c *commandContext) transformStage(ctx context.Context, s *session, opts transform.Options) (pipeline.Stage, error) {
	var observer transform.UsageObserver
	if s.metrics != nil {
		observer = s.metrics
	}
	t, err := transform.New(ctx, s.cfg, c.generators, s.ledger, observer, opts, s.logger)
	if err != nil {
		return pipeline.Stage{}, err
	}
	return pipeline.Stage{Name: "transform", From: item.StageIngested, To: item.StageTransformed, Handler: t}, nil
}

func (c *commandContext) draftStage(ctx context.Context, s *session) (pipeline.Stage, error) {
	svc, err := c.documents(ctx, s.cfg)
	if err != nil {
		return pipeline.Stage{}, services.Wrap(services.ErrConfiguration, "draft", "init", "document service", err)
	}
	drafter := draft.New(s.cfg, svc, s.logger).WithClock(c.clock).WithCheckpoint(func(it *item.Item) error {
		return s.store.Put(item.StageTransformed, it)
	})
	return pipeline.Stage{Name: "draft", From: item.StageTransformed, To: item.StageDrafted, Handler: drafter}, nil
}

// runStage runs one stage pass and prints its summary. A budget halt is
// reported as a notice, not an error.
func runStage(ctx context.Context, out io.Writer, s *session, stage pipeline.Stage) (pipeline.Summary, error) {
	summary, err := s.runner.Run(ctx, stage, pipeline.Options{DryRun: s.dryRun})
	if err != nil && !services.IsHalt(err) {
		return summary, err
	}
	printStageSummary(out, summary, s.dryRun)
	if err != nil {
		fmt.Fprintln(out, budgetHaltNotice)
	}
	return summary, nil
}

func printStageSummary(out io.Writer, summary pipeline.Summary, dryRun bool) {
	if dryRun {
		fmt.Fprintf(out, "%s: %d planned, %d skipped, %d failed\n", summary.Stage, summary.Planned, summary.Skipped, summary.Failed)
		return
	}
	fmt.Fprintf(out, "%s: %d processed, %d skipped, %d failed in %s\n",
		summary.Stage, summary.Processed, summary.Skipped, summary.Failed, summary.Duration.Round(time.Millisecond))
}

func closeSession(s *session, errp *error) {
	if cerr := s.Close(); cerr != nil && *errp == nil {
		*errp = cerr
	}
}
