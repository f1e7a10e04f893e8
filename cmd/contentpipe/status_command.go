package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"contentpipe/internal/config"
	"contentpipe/internal/item"
	"contentpipe/internal/preflight"
	"contentpipe/internal/store"
	"contentpipe/internal/textutil"
	"contentpipe/internal/usage"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var (
		showSources  bool
		showUsage    bool
		remoteChecks bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pipeline progress, sources, usage and readiness checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if showUsage {
				ledger, err := usage.OpenConfig(cfg)
				if err != nil {
					return fmt.Errorf("open usage ledger: %w", err)
				}
				defer ledger.Close()
				return renderUsage(cmd.Context(), out, ledger, colorize)
			}

			st, err := store.Open(cfg.Paths.StateDir)
			if err != nil {
				return fmt.Errorf("open item store: %w", err)
			}
			if err := renderProgress(out, cfg, st, colorize); err != nil {
				return err
			}
			if showSources {
				if err := renderSources(out, st, colorize); err != nil {
					return err
				}
			}
			renderRegistry(out, cfg, colorize)

			results := preflight.RunAll(cmd.Context(), localChecksOnly(cfg, remoteChecks))
			writeLines(out, renderSectionHeader("Checks", colorize))
			writeLines(out, checkLines(results, colorize))
			writeLines(out, dependencyLines(preflight.CheckSystemDeps(cfg), colorize))
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSources, "sources", false, "List every ingested source with its progress")
	cmd.Flags().BoolVar(&showUsage, "usage", false, "Show generation token usage and spend")
	cmd.Flags().BoolVar(&remoteChecks, "remote-checks", true, "Check the generation API and ntfy server over the network")
	return cmd
}

// localChecksOnly returns a copy of cfg with remote check credentials
// cleared when remote checks are disabled.
func localChecksOnly(cfg *config.Config, remote bool) *config.Config {
	if remote {
		return cfg
	}
	local := *cfg
	local.Generation.APIKey = ""
	local.Notifications.NtfyTopic = ""
	return &local
}

func renderProgress(out io.Writer, cfg *config.Config, st *store.Store, colorize bool) error {
	rows := make([][]string, 0, 5)
	for _, stage := range []item.Stage{item.StageIngested, item.StageTransformed, item.StageDrafted, item.StagePublished, item.StageFailed} {
		n, err := st.Count(stage)
		if err != nil {
			return fmt.Errorf("count %s: %w", stage, err)
		}
		rows = append(rows, []string{string(stage), strconv.Itoa(n)})
	}
	writeLines(out, renderSectionHeader("Pipeline Progress", colorize))
	fmt.Fprintln(out, renderTable([]column{textColumn("Stage"), numericColumn("Items")}, rows))

	guides := countMDX(filepath.Join(cfg.Paths.ContentDir, "guides"))
	articles := countMDX(filepath.Join(cfg.Paths.ContentDir, "articles"))
	writeLines(out, renderSectionHeader("Blog Archive", colorize))
	fmt.Fprintln(out, renderStatusLine("Guides", statusInfo, strconv.Itoa(guides), colorize))
	fmt.Fprintln(out, renderStatusLine("Articles", statusInfo, strconv.Itoa(articles), colorize))
	return nil
}

func countMDX(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".mdx") {
			n++
		}
	}
	return n
}

func renderSources(out io.Writer, st *store.Store, colorize bool) error {
	items, _, err := st.List(item.StageIngested)
	if err != nil {
		return fmt.Errorf("list ingested items: %w", err)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	published := make(map[string]bool)
	markers, err := st.Markers()
	if err != nil {
		return fmt.Errorf("list published markers: %w", err)
	}
	for _, m := range markers {
		if m.ItemID != "" {
			published[m.ItemID] = true
		}
	}
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{it.SourceURL, textutil.Ellipsize(it.Title, 40), progressOf(st, it.ID, published)})
	}
	writeLines(out, renderSectionHeader("Processed Sources", colorize))
	if len(rows) == 0 {
		fmt.Fprintln(out, "  No sources ingested yet")
		return nil
	}
	fmt.Fprintln(out, renderTable([]column{textColumn("URL"), textColumn("Title"), textColumn("Stage")}, rows))
	return nil
}

// progressOf returns the furthest stage an ingested item has reached.
func progressOf(st *store.Store, id string, published map[string]bool) string {
	if published[id] {
		return string(item.StagePublished)
	}
	for _, stage := range []item.Stage{item.StageDrafted, item.StageTransformed} {
		if st.Exists(stage, id) {
			return string(stage)
		}
	}
	if st.Exists(item.StageFailed, id) {
		return string(item.StageFailed)
	}
	return string(item.StageIngested)
}

func renderRegistry(out io.Writer, cfg *config.Config, colorize bool) {
	writeLines(out, renderSectionHeader("Sources & Pillars", colorize))
	sources, found, err := config.LoadSources(cfg.Paths.SourcesFile)
	switch {
	case err != nil:
		fmt.Fprintln(out, renderStatusLine("Sources", statusError, err.Error(), colorize))
	case !found:
		fmt.Fprintln(out, renderStatusLine("Sources", statusWarn, "Not found: "+cfg.Paths.SourcesFile, colorize))
	default:
		fmt.Fprintln(out, renderStatusLine("YouTube channels", statusInfo, strconv.Itoa(len(sources.ActiveChannels())), colorize))
		fmt.Fprintln(out, renderStatusLine("RSS feeds", statusInfo, strconv.Itoa(len(sources.ActiveFeeds())), colorize))
		fmt.Fprintln(out, renderStatusLine("Roundup schedules", statusInfo, strconv.Itoa(len(sources.Roundups)), colorize))
	}
	pillars, err := config.LoadPillars(cfg.Paths.PillarsFile)
	if err != nil {
		fmt.Fprintln(out, renderStatusLine("Content pillars", statusError, err.Error(), colorize))
		return
	}
	fmt.Fprintln(out, renderStatusLine("Content pillars", statusInfo, strconv.Itoa(len(pillars)), colorize))
}

func renderUsage(ctx context.Context, out io.Writer, ledger *usage.Ledger, colorize bool) error {
	lifetime, err := ledger.LifetimeCost(ctx)
	if err != nil {
		return err
	}
	today, err := ledger.Today(ctx)
	if err != nil {
		return err
	}
	remaining, err := ledger.Remaining(ctx)
	if err != nil {
		return err
	}
	writeLines(out, renderSectionHeader("Generation Usage", colorize))
	fmt.Fprintln(out, renderStatusLine("Lifetime spend", statusInfo, fmt.Sprintf("$%.4f", lifetime), colorize))
	fmt.Fprintln(out, renderStatusLine("Today", statusInfo, today.Date, colorize))
	fmt.Fprintln(out, renderStatusLine("Input tokens", statusInfo, strconv.FormatInt(today.TokensIn, 10), colorize))
	fmt.Fprintln(out, renderStatusLine("Output tokens", statusInfo, strconv.FormatInt(today.TokensOut, 10), colorize))
	fmt.Fprintln(out, renderStatusLine("Today's spend", statusInfo, fmt.Sprintf("$%.4f", today.Cost), colorize))
	fmt.Fprintln(out, renderStatusLine("Daily budget", statusInfo, fmt.Sprintf("$%.2f", ledger.Budget()), colorize))
	kind := statusOK
	if near, err := ledger.NearLimit(ctx); err == nil && near {
		kind = statusWarn
	}
	if remaining <= 0 {
		kind = statusError
	}
	fmt.Fprintln(out, renderStatusLine("Remaining", kind, fmt.Sprintf("$%.4f", remaining), colorize))

	history, err := ledger.History(ctx, 7)
	if err != nil || len(history) == 0 {
		return err
	}
	rows := make([][]string, 0, len(history))
	for _, rec := range history {
		rows = append(rows, []string{
			rec.Date,
			strconv.FormatInt(rec.Calls, 10),
			strconv.FormatInt(rec.TokensIn, 10),
			strconv.FormatInt(rec.TokensOut, 10),
			fmt.Sprintf("$%.4f", rec.Cost),
		})
	}
	fmt.Fprintln(out, renderTable([]column{
		textColumn("Date"), numericColumn("Calls"), numericColumn("Input"), numericColumn("Output"), numericColumn("Cost"),
	}, rows))
	return nil
}

func writeLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
