package roundup

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"contentpipe/internal/config"
	"contentpipe/internal/item"
	"contentpipe/internal/services"
	"contentpipe/internal/store"
	"contentpipe/internal/testsupport"
)

// 2026-05-01 is a Friday.
var roundupNow = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func putSource(t *testing.T, st *store.Store, title string, age time.Duration, forcedPillar string) *item.Item {
	t.Helper()
	it := item.New(item.ManualID(title), item.SourceArticle, title, roundupNow.Add(-age))
	published := roundupNow.Add(-age)
	it.PublishedAt = &published
	it.RawText = "Body of " + title
	it.Metadata.Set(item.MetaForcedPillar, forcedPillar)
	if err := it.Advance(item.StageIngested, roundupNow); err != nil {
		t.Fatal(err)
	}
	if err := st.Put(item.StageIngested, it); err != nil {
		t.Fatal(err)
	}
	return it
}

func newSynth(t *testing.T, cfg *config.Config, gen *testsupport.FakeGenerator) (*Synthesizer, *store.Store) {
	t.Helper()
	st := testsupport.MustOpenStore(t, cfg)
	s := New(cfg, Deps{
		Generator: gen,
		Store:     st,
		Ledger:    testsupport.OpenLedger(t, cfg),
		Clock:     func() time.Time { return roundupNow },
	}, nil)
	return s, st
}

func TestRunCreatesTransformedRoundup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gen := testsupport.NewFakeGenerator()
	gen.Respond(SchemaRoundup, testsupport.RoundupJSON)
	s, st := newSynth(t, cfg, gen)

	a := putSource(t, st, "Alpha release", 24*time.Hour, "")
	b := putSource(t, st, "Beta runtime", 48*time.Hour, "news")
	c := putSource(t, st, "Gamma tool", 72*time.Hour, "")
	putSource(t, st, "Too old", 10*24*time.Hour, "")
	putSource(t, st, "Other pillar", time.Hour, "tutorials")

	out, err := s.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != StatusCreated || out.Sources != 3 || out.Pillar != "news" {
		t.Fatalf("outcome = %+v", out)
	}
	if out.ItemID != item.RoundupID("news", roundupNow) {
		t.Fatalf("item id = %s", out.ItemID)
	}

	it, ok, err := st.Get(item.StageTransformed, out.ItemID)
	if err != nil || !ok {
		t.Fatalf("roundup not stored: %v", err)
	}
	if it.Stage != item.StageTransformed || it.SourceKind != item.SourceRoundup || it.SourceURL != "roundup" {
		t.Fatalf("item = %+v", it)
	}
	if it.Author != "Editorial Team (Auto-Curated)" || it.RawText != "Synthesized from 3 sources." {
		t.Fatalf("author/raw = %q / %q", it.Author, it.RawText)
	}
	if got := strings.Join(it.Metadata.SourceIDs(), ","); got != strings.Join([]string{a.ID, b.ID, c.ID}, ",") {
		t.Fatalf("source ids = %s", got)
	}
	blog := it.Blog
	if blog.ContentType != item.ContentArticle || blog.ContentPillar != "news" || blog.PrimaryTitle() != "This Week in Local AI" {
		t.Fatalf("blog = %+v", blog)
	}
	if strings.Join(blog.Outline, "|") != "New Models|Tooling" || len(blog.KeyTakeaways) != 2 {
		t.Fatalf("outline/takeaways = %v / %v", blog.Outline, blog.KeyTakeaways)
	}
	if st.Exists(item.StageIngested, out.ItemID) {
		t.Fatal("roundup must skip the ingested namespace")
	}

	req := gen.Requests[0]
	if req.MaxTokens != maxTokens || !strings.Contains(req.User, "Date Range: 2026-04-24 to 2026-05-01") {
		t.Fatalf("request = %+v", req)
	}
	if !strings.Contains(req.User, "--- Source 1 ---\nTitle: Alpha release") || strings.Contains(req.User, "Too old") {
		t.Fatalf("sources not ordered or filtered:\n%s", req.User)
	}

	again, err := s.Run(context.Background(), Options{})
	if err != nil || again.Status != StatusExists {
		t.Fatalf("second run = %+v, %v", again, err)
	}
	if gen.Calls(SchemaRoundup) != 1 {
		t.Fatalf("generator called %d times", gen.Calls(SchemaRoundup))
	}
}

func TestRunInsufficientSources(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gen := testsupport.NewFakeGenerator()
	s, st := newSynth(t, cfg, gen)
	putSource(t, st, "Only one", time.Hour, "")

	out, err := s.Run(context.Background(), Options{Pillar: "News", MinSources: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != StatusInsufficient || out.Sources != 1 || len(gen.Requests) != 0 {
		t.Fatalf("outcome = %+v requests=%d", out, len(gen.Requests))
	}
}

func TestRunDryRunPlansWithoutGenerating(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gen := testsupport.NewFakeGenerator()
	s, st := newSynth(t, cfg, gen)
	for _, title := range []string{"one", "two", "three"} {
		putSource(t, st, title, time.Hour, "")
	}
	out, err := s.Run(context.Background(), Options{DryRun: true})
	if err != nil || out.Status != StatusPlanned {
		t.Fatalf("Run = %+v, %v", out, err)
	}
	if len(gen.Requests) != 0 || st.Known(out.ItemID) {
		t.Fatal("dry run must not generate or persist")
	}
}

func TestRunHaltsOnBudget(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDailyBudget(0.01))
	gen := testsupport.NewFakeGenerator()
	s, st := newSynth(t, cfg, gen)
	for _, title := range []string{"one", "two", "three"} {
		putSource(t, st, title, time.Hour, "")
	}
	if _, err := testsupport.OpenLedger(t, cfg).Track(context.Background(), 1000, 1000); err != nil {
		t.Fatal(err)
	}
	_, err := s.Run(context.Background(), Options{})
	if !services.IsHalt(err) {
		t.Fatalf("expected budget halt, got %v", err)
	}
	if len(gen.Requests) != 0 {
		t.Fatal("generator must not be called past the budget")
	}
}

func TestRunGeneratorFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gen := testsupport.NewFakeGenerator()
	gen.Fail(SchemaRoundup, errors.New("upstream 500"))
	s, st := newSynth(t, cfg, gen)
	for _, title := range []string{"one", "two", "three"} {
		putSource(t, st, title, time.Hour, "")
	}
	out, err := s.Run(context.Background(), Options{})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if st.Known(out.ItemID) {
		t.Fatal("failed synthesis must not persist")
	}
}

func TestRunScheduledMatchesWeekday(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gen := testsupport.NewFakeGenerator()
	gen.Respond(SchemaRoundup, testsupport.RoundupJSON)
	s, st := newSynth(t, cfg, gen)
	for _, title := range []string{"one", "two", "three"} {
		putSource(t, st, title, time.Hour, "")
	}
	schedules := []config.RoundupSchedule{
		{Pillar: "news", Days: []string{"Friday"}, LookbackDays: 3},
		{Pillar: "experiments", Days: []string{"monday"}, LookbackDays: 7},
	}
	outs, err := s.RunScheduled(context.Background(), schedules, false)
	if err != nil {
		t.Fatalf("RunScheduled: %v", err)
	}
	if len(outs) != 1 || outs[0].Pillar != "news" || outs[0].Status != StatusCreated {
		t.Fatalf("outcomes = %+v", outs)
	}
	if !strings.Contains(gen.Requests[0].User, "Date Range: 2026-04-28 to 2026-05-01") {
		t.Fatalf("lookback not applied:\n%s", gen.Requests[0].User)
	}
}
