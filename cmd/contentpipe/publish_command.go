package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"contentpipe/internal/pipeline"
	"contentpipe/internal/publish"
	"contentpipe/internal/services"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	var (
		dryRun     bool
		noConfirm  bool
		autoCommit bool
		autoPush   bool
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish approved review documents as MDX posts",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			out := cmd.OutOrStdout()
			printDryRunBanner(out, dryRun)
			s, err := ctx.openSession(sessionOptions{lock: true, dryRun: dryRun})
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			opts := publish.OptionsFromConfig(s.cfg)
			opts.DryRun = dryRun
			opts.NoConfirm = noConfirm
			if cmd.Flags().Changed("auto-commit") {
				opts.AutoCommit = autoCommit
			}
			if cmd.Flags().Changed("auto-push") {
				opts.AutoPush = autoPush
			}

			svc, err := ctx.documents(cmd.Context(), s.cfg)
			if err != nil {
				return services.Wrap(services.ErrConfiguration, "publish", "init", "document service", err)
			}
			deps := publish.Deps{
				Docs:     svc,
				Store:    s.store,
				Notifier: s.notifier,
				Metrics:  s.metrics,
				Clock:    ctx.clock,
			}
			if opts.AutoCommit {
				deps.Git = ctx.git(s.cfg)
			}
			if !noConfirm {
				deps.Confirm = promptConfirmer(cmd.InOrStdin(), out)
			}

			started := s.now()
			res, err := publish.New(s.cfg, deps, s.logger).Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printPublishResult(out, res, dryRun)
			if !dryRun {
				s.runner.NotifySummary(cmd.Context(), "publish", pipeline.Summary{
					Stage:     "publish",
					Processed: len(res.Published),
					Failed:    res.Failed,
					Duration:  s.now().Sub(started),
				})
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be published without writing files or committing")
	cmd.Flags().BoolVar(&noConfirm, "no-confirm", false, "Skip the per-document confirmation prompt")
	cmd.Flags().BoolVar(&autoCommit, "auto-commit", true, "Commit published files with git (defaults to publish.auto_commit)")
	cmd.Flags().BoolVar(&autoPush, "auto-push", false, "Push after committing (defaults to publish.auto_push)")
	return cmd
}

// promptConfirmer asks on out and reads a y/N answer from in. End of input
// declines.
func promptConfirmer(in io.Reader, out io.Writer) publish.Confirmer {
	reader := bufio.NewReader(in)
	return func(title string) (bool, error) {
		fmt.Fprintf(out, "Publish %q? [y/N]: ", title)
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}

func printPublishResult(out io.Writer, res publish.Result, dryRun bool) {
	if dryRun {
		fmt.Fprintf(out, "Would publish %d document(s)\n", len(res.Planned))
		for _, path := range res.Planned {
			fmt.Fprintf(out, "  - %s\n", path)
		}
		return
	}
	fmt.Fprintf(out, "Published %d document(s): %d already published, %d not approved, %d declined, %d failed\n",
		len(res.Published), res.Already, res.NotApproved, res.Declined, res.Failed)
	for _, marker := range res.Published {
		fmt.Fprintf(out, "  - %s (%s) -> %s\n", marker.Title, marker.ContentType, marker.ArtifactPath)
	}
}
