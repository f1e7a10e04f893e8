package item

import (
	"testing"
	"time"
)

func TestParseStage(t *testing.T) {
	for _, stage := range AllStages() {
		got, ok := ParseStage(" " + string(stage) + " ")
		if !ok || got != stage {
			t.Fatalf("ParseStage(%q) = %q, %v", stage, got, ok)
		}
	}
	if _, ok := ParseStage("reviewing"); ok {
		t.Fatal("expected unknown stage to be rejected")
	}
	if _, ok := ParseStage(""); ok {
		t.Fatal("expected empty stage to be rejected")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Stage
		want     bool
	}{
		{StageNew, StageIngested, true},
		{StageIngested, StageTransformed, true},
		{StageTransformed, StageDrafted, true},
		{StageDrafted, StagePublished, true},
		{StageIngested, StageDrafted, false},
		{StageTransformed, StageIngested, false},
		{StagePublished, StageDrafted, false},
		{StageIngested, StageFailed, true},
		{StageDrafted, StageFailed, true},
		{StagePublished, StageFailed, false},
		{StageFailed, StageFailed, false},
		{StageFailed, StageTransformed, false},
	}
	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestPrevious(t *testing.T) {
	prev, ok := Previous(StageDrafted)
	if !ok || prev != StageTransformed {
		t.Fatalf("Previous(drafted) = %q, %v", prev, ok)
	}
	if _, ok := Previous(StageNew); ok {
		t.Fatal("new should have no predecessor")
	}
}

func TestStageBefore(t *testing.T) {
	if !StageIngested.Before(StagePublished) {
		t.Fatal("ingested should precede published")
	}
	if StageFailed.Before(StagePublished) || StagePublished.Before(StageFailed) {
		t.Fatal("failed must not be ordered")
	}
}

func TestDeterministicIDs(t *testing.T) {
	if ManualID("Foo Bar") != hashKey("manual-Foo Bar") {
		t.Fatal("manual id mismatch")
	}
	if ManualID("Foo Bar") != ManualID("  Foo Bar ") {
		t.Fatal("manual id should ignore surrounding whitespace")
	}
	a := ArticleID("https://Example.com/post?id=1#comments")
	b := ArticleID(" https://example.com/post?id=1 ")
	if a != b {
		t.Fatalf("canonical article ids differ: %s vs %s", a, b)
	}
	if ArticleID("https://example.com/a") == ArticleID("https://example.com/b") {
		t.Fatal("distinct urls must hash differently")
	}
	day := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	if RoundupID("news", day) != RoundupID("news", day.Add(2*time.Hour)) {
		t.Fatal("same-day roundup ids should match")
	}
	if RoundupID("news", day) == RoundupID("news", day.AddDate(0, 0, 1)) {
		t.Fatal("next-day roundup id should differ")
	}
	if VideoID(" dQw4w9WgXcQ ") != "dQw4w9WgXcQ" {
		t.Fatal("video id should be the platform id")
	}
}

func TestAdvanceAndFail(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	it := New("abc", SourceManual, "Topic", now)
	if err := it.Advance(StageTransformed, now); err == nil {
		t.Fatal("expected illegal jump to fail")
	}
	if err := it.Advance(StageIngested, now); err != nil {
		t.Fatalf("advance: %v", err)
	}
	it.Fail("boom", now)
	if it.Stage != StageFailed || it.Error != "boom" {
		t.Fatalf("unexpected failed state: %+v", it)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	it := New("abc", SourceArticle, "Title", time.Now())
	it.Metadata.Set(MetaForcedPillar, "news")
	it.Blog = &BlogDraft{TitleOptions: []string{"One"}}
	cp := it.Clone()
	cp.Metadata.Set(MetaForcedPillar, "tutorials")
	cp.Blog.TitleOptions[0] = "Two"
	if it.Metadata.ForcedPillar() != "news" || it.Blog.TitleOptions[0] != "One" {
		t.Fatal("clone shares state with original")
	}
}

func TestMetadataHelpers(t *testing.T) {
	m := Metadata{}
	m.Set(MetaDuration, "125")
	m.SetSourceIDs([]string{"a", "b"})
	m.Set("custom", "kept")
	if m.DurationSeconds() != 125 {
		t.Fatalf("duration = %d", m.DurationSeconds())
	}
	if ids := m.SourceIDs(); len(ids) != 2 || ids[1] != "b" {
		t.Fatalf("source ids = %v", ids)
	}
	m.Set("custom", " ")
	if _, ok := m["custom"]; ok {
		t.Fatal("blank value should delete key")
	}
}
