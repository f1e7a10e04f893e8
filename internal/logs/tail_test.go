package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"contentpipe/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contentpipe.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestLastReturnsTrailingLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	lines, offset, err := logs.Last(path, 2)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("offset = %d, want 6", offset)
	}

	lines, _, err = logs.Last(path, 10)
	if err != nil || len(lines) != 3 || lines[0] != "a" {
		t.Fatalf("short file: %#v, %v", lines, err)
	}

	lines, offset, err = logs.Last(path, 0)
	if err != nil || len(lines) != 0 || offset != 6 {
		t.Fatalf("zero lines: %#v offset=%d err=%v", lines, offset, err)
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "absent.log"), 5)
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("missing file: %#v %d %v", lines, offset, err)
	}
	if _, _, err := logs.Last(t.TempDir(), 5); err == nil {
		t.Fatal("expected directory error")
	}
}

func TestSinceLeavesPartialLine(t *testing.T) {
	path := writeLog(t, "one\ntw")

	lines, offset, err := logs.Since(path, 0)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(lines) != 1 || lines[0] != "one" || offset != 4 {
		t.Fatalf("unexpected read: %#v offset=%d", lines, offset)
	}

	appendLog(t, path, "o\r\n")
	lines, offset, err = logs.Since(path, offset)
	if err != nil || len(lines) != 1 || lines[0] != "two" || offset != 9 {
		t.Fatalf("continued read: %#v offset=%d err=%v", lines, offset, err)
	}

	if err := os.WriteFile(path, []byte("fresh\n"), 0o644); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	lines, _, err = logs.Since(path, offset)
	if err != nil || len(lines) != 1 || lines[0] != "fresh" {
		t.Fatalf("after truncation: %#v %v", lines, err)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := writeLog(t, "start\n")
	_, offset, err := logs.Last(path, 1)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	received := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 20*time.Millisecond, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
			select {
			case received <- struct{}{}:
			default:
			}
		})
	}()

	appendLog(t, path, "later\n")
	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not emit the appended line")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "later" {
		t.Fatalf("unexpected lines: %#v", got)
	}
}
