package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"contentpipe/internal/codec"
)

const queueLockTimeout = 10 * time.Second

// QueueEntry renders the social queue block for a published post.
func QueueEntry(doc codec.Document, title, artifactPath string, at time.Time) string {
	var b strings.Builder
	b.WriteString("\n---\n\n")
	fmt.Fprintf(&b, "## %s\n\n", title)
	fmt.Fprintf(&b, "**Published:** %s\n", at.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "**MDX:** `%s`\n\n", artifactPath)

	b.WriteString("### Instagram\n\n")
	fmt.Fprintf(&b, "**Short Caption:**\n%s\n\n", doc.ShortCaption)
	fmt.Fprintf(&b, "**Long Caption:**\n%s\n\n", doc.LongCaption)
	b.WriteString("**Carousel Slides:**\n")
	for i, slide := range doc.CarouselSlides {
		fmt.Fprintf(&b, "- Slide %d: %s\n", i+1, slide)
	}

	b.WriteString("\n### TikTok\n\n")
	fmt.Fprintf(&b, "**Script:**\n%s\n\n", strings.TrimRight(doc.VideoScript, "\n"))
	b.WriteString("**On-Screen Text:**\n")
	for _, text := range doc.OnScreenText {
		fmt.Fprintf(&b, "- %s\n", text)
	}
	return b.String()
}

// AppendQueue appends entry to the social queue file under an exclusive
// file lock. The file is created when missing and never truncated.
func AppendQueue(ctx context.Context, path, entry string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create social queue directory: %w", err)
	}
	lock := flock.New(path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, queueLockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock social queue: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock social queue: timed out")
	}
	defer func() { _ = lock.Unlock() }()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open social queue: %w", err)
	}
	if _, err := f.WriteString(entry); err != nil {
		_ = f.Close()
		return fmt.Errorf("append social queue: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close social queue: %w", err)
	}
	return nil
}
