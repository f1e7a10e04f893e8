package docs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	docsv1 "google.golang.org/api/docs/v1"
	drive "google.golang.org/api/drive/v3"
)

func TestApplyInsertsSequential(t *testing.T) {
	inserts := []Insert{
		{Index: 1, Text: "STATUS: READY\n"},
		{Index: 15, Text: "Title 🚀\n", NamedStyle: "HEADING_2"},
		{Index: 24, Text: "Body\n"},
	}
	got := ApplyInserts("", inserts)
	want := "STATUS: READY\nTitle 🚀\nBody\n"
	if got != want {
		t.Fatalf("ApplyInserts = %q, want %q", got, want)
	}
}

func TestApplyReplaceStatusLine(t *testing.T) {
	text := "STATUS: APPROVED\nSOURCE: x\n"
	got := ApplyReplace(text, 1, 18, "STATUS: PUBLISHED\n")
	if got != "STATUS: PUBLISHED\nSOURCE: x\n" {
		t.Fatalf("ApplyReplace = %q", got)
	}
	if got := ApplyReplace("abc", 10, 20, "!"); got != "abc!" {
		t.Fatalf("out of range replace = %q", got)
	}
}

func TestLocalBackendLifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	local, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	local.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	first, err := local.CreateDocument(ctx, "[REVIEW] First")
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	second, err := local.CreateDocument(ctx, "[REVIEW] Second")
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if err := local.BatchInsert(ctx, first, []Insert{{Index: 1, Text: "STATUS: READY\n"}, {Index: 15, Text: "Body\n"}}); err != nil {
		t.Fatalf("BatchInsert: %v", err)
	}
	if err := local.ReplaceRange(ctx, first, 1, 15, "STATUS: PUBLISHED\n"); err != nil {
		t.Fatalf("ReplaceRange: %v", err)
	}
	text, err := local.GetText(ctx, first)
	if err != nil {
		t.Fatalf("GetText: %v", err)
	}
	if text != "STATUS: PUBLISHED\nBody\n" {
		t.Fatalf("text = %q", text)
	}

	if err := local.MoveToFolder(ctx, second, "reviews"); err != nil {
		t.Fatalf("MoveToFolder: %v", err)
	}
	all, err := local.ListDocuments(ctx, "")
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(all) != 2 || all[0].ID != second {
		t.Fatalf("expected newest first, got %+v", all)
	}
	inFolder, err := local.ListDocuments(ctx, "reviews")
	if err != nil {
		t.Fatalf("ListDocuments folder: %v", err)
	}
	if len(inFolder) != 1 || inFolder[0].Name != "[REVIEW] Second" {
		t.Fatalf("unexpected folder listing %+v", inFolder)
	}

	if _, err := local.GetText(ctx, "missing"); err == nil {
		t.Fatal("expected missing document error")
	}
	if _, err := local.GetText(ctx, "../escape"); err == nil {
		t.Fatal("expected invalid id error")
	}
}

func TestLocalUploadMedia(t *testing.T) {
	dir := t.TempDir()
	local, err := NewLocal(filepath.Join(dir, "docs"))
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	src := filepath.Join(dir, "hero.png")
	if err := os.WriteFile(src, []byte("png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	media, err := local.UploadMedia(context.Background(), src, "")
	if err != nil {
		t.Fatalf("UploadMedia: %v", err)
	}
	if media.ID == "" || !strings.HasPrefix(media.Link, "file://") || !strings.HasSuffix(media.Link, ".png") {
		t.Fatalf("unexpected media %+v", media)
	}
}

func TestInsertRequestsStyleRanges(t *testing.T) {
	requests := insertRequests([]Insert{
		{Index: 1, Text: "Meta\n"},
		{Index: 6, Text: "Blog Draft\n", NamedStyle: "HEADING_1"},
		{Index: 17, Text: ""},
	})
	if len(requests) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(requests))
	}
	style := requests[2].UpdateParagraphStyle
	if style == nil || style.Range.StartIndex != 6 || style.Range.EndIndex != 17 || style.ParagraphStyle.NamedStyleType != "HEADING_1" {
		t.Fatalf("unexpected style request %+v", requests[2])
	}
}

func TestDocumentText(t *testing.T) {
	doc := &docsv1.Document{Body: &docsv1.Body{Content: []*docsv1.StructuralElement{
		{SectionBreak: &docsv1.SectionBreak{}},
		{Paragraph: &docsv1.Paragraph{Elements: []*docsv1.ParagraphElement{
			{TextRun: &docsv1.TextRun{Content: "STATUS: "}},
			{TextRun: &docsv1.TextRun{Content: "APPROVED\n"}},
		}}},
		{Paragraph: &docsv1.Paragraph{Elements: []*docsv1.ParagraphElement{
			{TextRun: &docsv1.TextRun{Content: "Body\n"}},
		}}},
	}}}
	if got := documentText(doc); got != "STATUS: APPROVED\nBody\n" {
		t.Fatalf("documentText = %q", got)
	}
	if documentText(nil) != "" {
		t.Fatal("nil document should yield empty text")
	}
}

func TestFolderQueryAndFileInfo(t *testing.T) {
	if q := folderQuery("abc"); !strings.Contains(q, "'abc' in parents") || !strings.Contains(q, googleDocMimeType) {
		t.Fatalf("unexpected query %q", q)
	}
	if q := folderQuery(""); strings.Contains(q, "in parents") {
		t.Fatalf("unexpected query %q", q)
	}
	info := fileInfo(&drive.File{Id: "1", Name: "Doc", ModifiedTime: "2026-03-01T10:00:00Z"})
	if info.ModifiedTime.IsZero() || info.Name != "Doc" {
		t.Fatalf("unexpected info %+v", info)
	}
}
