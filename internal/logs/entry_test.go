package logs_test

import (
	"strings"
	"testing"

	"contentpipe/internal/logs"
)

const sampleLine = `{"ts":"2026-05-01T09:30:00Z","level":"warn","msg":"budget nearly spent","item_id":"abc123","stage":"transform","remaining":0.4,"source":"gate.go:12"}`

func TestParseDecodesKnownFields(t *testing.T) {
	entry, ok := logs.Parse(sampleLine)
	if !ok {
		t.Fatal("expected JSON line to parse")
	}
	if entry.Level != "warn" || entry.Message != "budget nearly spent" || entry.ItemID != "abc123" || entry.Stage != "transform" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Time.IsZero() || entry.Attrs["remaining"] != "0.4" {
		t.Fatalf("unexpected time or attrs: %+v", entry)
	}

	plain, ok := logs.Parse("not json")
	if ok || plain.Raw != "not json" {
		t.Fatalf("plain line: %+v ok=%v", plain, ok)
	}
}

func TestFilterMatch(t *testing.T) {
	entry, ok := logs.Parse(sampleLine)
	tests := []struct {
		name   string
		filter logs.Filter
		want   bool
	}{
		{"empty", logs.Filter{}, true},
		{"item match", logs.Filter{ItemID: "abc123"}, true},
		{"item mismatch", logs.Filter{ItemID: "other"}, false},
		{"level below", logs.Filter{MinLevel: "info"}, true},
		{"level above", logs.Filter{MinLevel: "error"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Match(entry, ok); got != tc.want {
				t.Fatalf("Match = %v, want %v", got, tc.want)
			}
		})
	}
	if (logs.Filter{ItemID: "abc123"}).Match(logs.Entry{Raw: "x"}, false) {
		t.Fatal("undecodable lines should not pass an item filter")
	}
}

func TestFormatOmitsSource(t *testing.T) {
	entry, _ := logs.Parse(sampleLine)
	line := logs.Format(entry)
	for _, want := range []string{"WARN ", "budget nearly spent", "item=abc123", "stage=transform", "remaining=0.4"} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %q in %q", want, line)
		}
	}
	if strings.Contains(line, "gate.go") {
		t.Fatalf("source should be omitted: %q", line)
	}
}
