package draft

import (
	"context"
	"errors"
	"testing"
	"time"

	"contentpipe/internal/codec"
	"contentpipe/internal/item"
	"contentpipe/internal/pipeline"
	"contentpipe/internal/testsupport"
)

func TestRetryAfterFailedWriteReusesDocument(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	src := transformedItem()
	it := testsupport.PutTransformed(t, st, "Foo Bar", src.Blog, src.Social)

	fake := testsupport.NewFakeDocuments()
	fake.InsertErr = errors.New("rate limited")
	d := New(cfg, fake, nil).
		WithClock(func() time.Time { return fixedDay }).
		WithCheckpoint(func(it *item.Item) error { return st.Put(item.StageTransformed, it) })
	stage := pipeline.Stage{Name: "draft", From: item.StageTransformed, To: item.StageDrafted, Handler: d}
	runner := pipeline.New(st, pipeline.Deps{}, nil)

	summary, err := runner.Run(context.Background(), stage, pipeline.Options{})
	if err != nil || summary.Failed != 1 {
		t.Fatalf("first run = %+v, %v", summary, err)
	}
	pending, ok, err := st.Get(item.StageTransformed, it.ID)
	if err != nil || !ok || pending.ReviewDocumentID == "" {
		t.Fatalf("created document not recorded on the transformed snapshot: %+v %v", pending, err)
	}

	fake.InsertErr = nil
	summary, err = runner.Run(context.Background(), stage, pipeline.Options{})
	if err != nil || summary.Processed != 1 {
		t.Fatalf("retry = %+v, %v", summary, err)
	}
	ids := fake.IDs()
	if len(ids) != 1 {
		t.Fatalf("retry created another document: %v", ids)
	}
	drafted, ok, err := st.Get(item.StageDrafted, it.ID)
	if err != nil || !ok || drafted.ReviewDocumentID != ids[0] {
		t.Fatalf("drafted snapshot = %+v, %v", drafted, err)
	}
	doc, _ := fake.Document(ids[0])
	if got := codec.Decode(doc.Text).Blog; got != src.Blog.FullText {
		t.Fatalf("blog = %q", got)
	}
}

func TestExecuteSkipsWriteWhenDocumentHasContent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := testsupport.NewFakeDocuments()
	docID := fake.AddDocument("[REVIEW] Foo Bar - 2026-03-14", "STATUS: READY FOR REVIEW\nBlog Draft\nalready here\n")

	it := transformedItem()
	it.ReviewDocumentID = docID
	if err := New(cfg, fake, nil).Execute(context.Background(), it); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	doc, _ := fake.Document(docID)
	if doc.Text != "STATUS: READY FOR REVIEW\nBlog Draft\nalready here\n" {
		t.Fatalf("document rewritten: %q", doc.Text)
	}
	if len(fake.IDs()) != 1 {
		t.Fatalf("unexpected new document: %v", fake.IDs())
	}
}

func TestExecuteReplacesUnreadableDocument(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := testsupport.NewFakeDocuments()
	it := transformedItem()
	it.ReviewDocumentID = "deleted-doc"

	var saved []string
	d := New(cfg, fake, nil).WithCheckpoint(func(it *item.Item) error {
		saved = append(saved, it.ReviewDocumentID)
		return nil
	})
	if err := d.Execute(context.Background(), it); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if it.ReviewDocumentID == "deleted-doc" || len(saved) != 1 || saved[0] != it.ReviewDocumentID {
		t.Fatalf("document id = %q, checkpoints = %v", it.ReviewDocumentID, saved)
	}
}
