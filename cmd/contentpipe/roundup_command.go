package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"contentpipe/internal/config"
	"contentpipe/internal/pipeline"
	"contentpipe/internal/roundup"
	"contentpipe/internal/services"
)

func newRoundupCommand(ctx *commandContext) *cobra.Command {
	var (
		dryRun    bool
		scheduled bool
		opts      roundup.Options
	)
	cmd := &cobra.Command{
		Use:   "roundup",
		Short: "Synthesize recent sources into one roundup post",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			out := cmd.OutOrStdout()
			printDryRunBanner(out, dryRun)
			s, err := ctx.openSession(sessionOptions{lock: true, ledger: true, dryRun: dryRun})
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			synth, err := roundup.NewFromConfig(s.cfg, ctx.generators, s.store, s.ledger, s.metrics, s.logger)
			if err != nil {
				return err
			}

			started := s.now()
			var outcomes []roundup.Outcome
			if scheduled {
				sources, _, loadErr := config.LoadSources(s.cfg.Paths.SourcesFile)
				if loadErr != nil {
					return services.Wrap(services.ErrConfiguration, "roundup", "load sources", s.cfg.Paths.SourcesFile, loadErr)
				}
				outcomes, err = synth.RunScheduled(cmd.Context(), sources.Roundups, dryRun)
			} else {
				opts.DryRun = dryRun
				var outcome roundup.Outcome
				outcome, err = synth.Run(cmd.Context(), opts)
				if err == nil {
					outcomes = append(outcomes, outcome)
				}
			}
			printRoundupOutcomes(out, outcomes)
			if services.IsHalt(err) {
				fmt.Fprintln(out, budgetHaltNotice)
				return nil
			}
			if !dryRun {
				created := 0
				for _, o := range outcomes {
					if o.Status == roundup.StatusCreated {
						created++
					}
				}
				summary := pipeline.Summary{Stage: "roundup", Processed: created, Duration: s.now().Sub(started)}
				if err != nil {
					summary.Failed = 1
				}
				s.runner.NotifySummary(cmd.Context(), "roundup", summary)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Collect sources without generation calls")
	cmd.Flags().BoolVar(&scheduled, "scheduled", false, "Run every roundup scheduled for today in the sources file")
	cmd.Flags().StringVar(&opts.Pillar, "pillar", roundup.DefaultPillar, "Content pillar to summarize")
	cmd.Flags().IntVar(&opts.Days, "days", roundup.DefaultDays, "Number of recent days to collect sources from")
	cmd.Flags().IntVar(&opts.MinSources, "min-sources", roundup.DefaultMinSources, "Minimum sources required to generate a roundup")
	return cmd
}

func printRoundupOutcomes(out io.Writer, outcomes []roundup.Outcome) {
	for _, o := range outcomes {
		switch o.Status {
		case roundup.StatusCreated:
			fmt.Fprintf(out, "Roundup %s: created %q from %d source(s) (%s)\n", o.Pillar, o.Title, o.Sources, o.ItemID)
		case roundup.StatusPlanned:
			fmt.Fprintf(out, "Roundup %s: would synthesize %d source(s)\n", o.Pillar, o.Sources)
		case roundup.StatusExists:
			fmt.Fprintf(out, "Roundup %s: already created today (%s)\n", o.Pillar, o.ItemID)
		case roundup.StatusInsufficient:
			fmt.Fprintf(out, "Roundup %s: only %d source(s), skipped\n", o.Pillar, o.Sources)
		}
	}
}
