package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"contentpipe/internal/logging"
	"contentpipe/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		raw    bool
		filter logs.Filter
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent entries from the run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Paths.LogDir) == "" {
				return fmt.Errorf("paths.log_dir is not set; no run log is written")
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			out := cmd.OutOrStdout()

			// Read the whole file when filtering so the last N matches are shown.
			window := lines
			if filter.ItemID != "" || filter.MinLevel != "" {
				window = -1
			}
			recent, offset, err := readRecent(path, window)
			if err != nil {
				return err
			}
			emit := logPrinter(out, filter, raw)
			matched := make([]string, 0, len(recent))
			for _, line := range recent {
				if entry, ok := logs.Parse(line); filter.Match(entry, ok) {
					matched = append(matched, line)
				}
			}
			if lines > 0 && len(matched) > lines {
				matched = matched[len(matched)-lines:]
			}
			for _, line := range matched {
				emit(line)
			}
			if !follow {
				if len(matched) == 0 {
					fmt.Fprintf(out, "No log entries in %s\n", path)
				}
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, 500*time.Millisecond, emit)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of entries to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new entries")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print JSON lines unformatted")
	cmd.Flags().StringVar(&filter.ItemID, "item", "", "Only show entries for this item ID")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level (debug, info, warn, error)")
	return cmd
}

func readRecent(path string, window int) ([]string, int64, error) {
	if window < 0 {
		return logs.Since(path, 0)
	}
	return logs.Last(path, window)
}

func logPrinter(out io.Writer, filter logs.Filter, raw bool) func(string) {
	return func(line string) {
		entry, ok := logs.Parse(line)
		if !filter.Match(entry, ok) {
			return
		}
		if raw || !ok {
			fmt.Fprintln(out, line)
			return
		}
		fmt.Fprintln(out, logs.Format(entry))
	}
}
