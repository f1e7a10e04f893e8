package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"contentpipe/internal/codec"
	"contentpipe/internal/config"
	"contentpipe/internal/item"
	"contentpipe/internal/services"
	"contentpipe/internal/testsupport"
)

var publishDay = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func reviewText(status string, titles []string, blog string, social bool) string {
	doc := codec.Document{
		Status:    status,
		SourceURL: "https://example.com/src",
		Pillar:    "tutorials",
		Titles:    titles,
		Blog:      blog,
	}
	if social {
		doc.ShortCaption = "short caption"
		doc.LongCaption = "long caption"
		doc.CarouselSlides = []string{"slide a"}
		doc.VideoScript = "hook line"
		doc.OnScreenText = []string{"overlay"}
	}
	return codec.PlainText(codec.Encode(doc))
}

type fakeGit struct {
	commits  []string
	pushes   int
	commitFn func() error
}

func (g *fakeGit) Commit(_ context.Context, paths []string, message string) error {
	if g.commitFn != nil {
		if err := g.commitFn(); err != nil {
			return err
		}
	}
	g.commits = append(g.commits, message+"|"+strings.Join(paths, ","))
	return nil
}

func (g *fakeGit) Push(context.Context) error {
	g.pushes++
	return nil
}

func newPublisher(t *testing.T, cfg *config.Config, fake *testsupport.FakeDocuments, deps Deps) *Publisher {
	t.Helper()
	deps.Docs = fake
	if deps.Store == nil {
		deps.Store = testsupport.MustOpenStore(t, cfg)
	}
	deps.Clock = func() time.Time { return publishDay }
	return New(cfg, deps, nil)
}

func TestRunPublishesApprovedDocuments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := testsupport.NewFakeDocuments()
	body := "Intro paragraph for the install guide.\n\n" + strings.TrimSpace(strings.Repeat("word ", 393))
	approved := fake.AddDocument("[REVIEW] Foo Bar - 2026-04-30", reviewText("APPROVED", []string{"Foo Bar"}, body, true))
	pending := fake.AddDocument("[REVIEW] Pending - 2026-04-30", reviewText(codec.StatusReadyForReview, []string{"Pending"}, "text", false))

	git := &fakeGit{}
	p := newPublisher(t, cfg, fake, Deps{Git: git})
	res, err := p.Run(context.Background(), Options{NoConfirm: true, AutoCommit: true, AutoPush: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Published) != 1 || res.NotApproved != 1 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}

	wantPath := filepath.Join(cfg.Paths.ContentDir, "guides", "2026-05-01-foo-bar.mdx")
	marker := res.Published[0]
	if marker.ArtifactPath != wantPath || marker.DocumentID != approved || marker.ContentType != item.ContentGuide {
		t.Fatalf("marker = %+v", marker)
	}
	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	fm, err := ParseFrontMatter(data)
	if err != nil {
		t.Fatalf("front matter: %v", err)
	}
	if fm.Title != "Foo Bar" || fm.Type != item.ContentGuide || fm.ReadingTime != 2 || fm.Author != cfg.Publish.Author {
		t.Fatalf("front matter = %+v", fm)
	}
	if fm.Description != "Intro paragraph for the install guide." || fm.Image != "/images/blog/placeholder.jpg" {
		t.Fatalf("front matter = %+v", fm)
	}

	if len(git.commits) != 1 || !strings.HasPrefix(git.commits[0], "content: Add blog post - Foo Bar|") || git.pushes != 1 {
		t.Fatalf("git = %+v", git)
	}

	doc, _ := fake.Document(approved)
	if got := codec.Decode(doc.Text).Status; got != codec.StatusPublished {
		t.Fatalf("status after publish = %q", got)
	}
	if pendingDoc, _ := fake.Document(pending); codec.Decode(pendingDoc.Text).Status != codec.StatusReadyForReview {
		t.Fatal("pending document must be untouched")
	}

	queue, err := os.ReadFile(cfg.Paths.SocialQueueFile)
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}
	if !strings.Contains(string(queue), "## Foo Bar") || !strings.Contains(string(queue), "- Slide 1: slide a") {
		t.Fatalf("queue = %s", queue)
	}

	store := testsupport.MustOpenStore(t, cfg)
	if !store.HasMarker(approved) {
		t.Fatal("marker not recorded")
	}

	again, err := p.Run(context.Background(), Options{NoConfirm: true})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(again.Published) != 0 || again.Already != 1 {
		t.Fatalf("second result = %+v", again)
	}
	entries, _ := os.ReadDir(filepath.Join(cfg.Paths.ContentDir, "guides"))
	if len(entries) != 1 {
		t.Fatalf("expected one artifact, got %d", len(entries))
	}
}

func TestRunAppendsQueueAcrossPublishes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := testsupport.NewFakeDocuments()
	fake.AddDocument("one", reviewText("approved", []string{"First Post"}, "news body", true))
	fake.AddDocument("two", reviewText("APPROVED!", []string{"Second Post"}, "news body", true))

	res, err := newPublisher(t, cfg, fake, Deps{}).Run(context.Background(), Options{NoConfirm: true})
	if err != nil || len(res.Published) != 2 {
		t.Fatalf("Run = %+v, %v", res, err)
	}
	queue, _ := os.ReadFile(cfg.Paths.SocialQueueFile)
	if strings.Count(string(queue), "\n---\n\n## ") != 2 {
		t.Fatalf("queue should hold two entries:\n%s", queue)
	}
}

func TestRunSkipsQueueWithoutSocial(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := testsupport.NewFakeDocuments()
	fake.AddDocument("doc", reviewText("APPROVED", []string{"Blog Only"}, "body", false))

	res, err := newPublisher(t, cfg, fake, Deps{}).Run(context.Background(), Options{NoConfirm: true})
	if err != nil || len(res.Published) != 1 {
		t.Fatalf("Run = %+v, %v", res, err)
	}
	if _, err := os.Stat(cfg.Paths.SocialQueueFile); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("queue file should not exist: %v", err)
	}
	if res.Published[0].ContentType != item.ContentGuide {
		t.Fatalf("tutorials pillar should classify as guide: %+v", res.Published[0])
	}
}

func TestRunDryRunHasNoSideEffects(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := testsupport.NewFakeDocuments()
	id := fake.AddDocument("doc", reviewText("APPROVED", []string{"Foo Bar"}, "body", true))
	git := &fakeGit{}

	res, err := newPublisher(t, cfg, fake, Deps{Git: git}).Run(context.Background(), Options{DryRun: true, AutoCommit: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Planned) != 1 || len(res.Published) != 0 {
		t.Fatalf("result = %+v", res)
	}
	if _, err := os.Stat(res.Planned[0]); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("dry run must not write the artifact")
	}
	if testsupport.MustOpenStore(t, cfg).HasMarker(id) || len(git.commits) != 0 {
		t.Fatal("dry run must not record markers or commit")
	}
	if doc, _ := fake.Document(id); codec.Decode(doc.Text).Status != "APPROVED" {
		t.Fatal("dry run must not touch the document")
	}
}

func TestRunHonoursConfirmation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := testsupport.NewFakeDocuments()
	fake.AddDocument("doc", reviewText("APPROVED", []string{"Foo Bar"}, "body", false))

	var asked []string
	deps := Deps{Confirm: func(title string) (bool, error) {
		asked = append(asked, title)
		return false, nil
	}}
	p := newPublisher(t, cfg, fake, deps)
	res, err := p.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Declined != 1 || len(res.Published) != 0 || len(asked) != 1 || asked[0] != "Foo Bar" {
		t.Fatalf("result = %+v asked = %v", res, asked)
	}

	res, err = p.Run(context.Background(), Options{NoConfirm: true})
	if err != nil || len(res.Published) != 1 || len(asked) != 1 {
		t.Fatalf("no-confirm run = %+v, %v, asked %v", res, err, asked)
	}
}

func TestRunGitFailureStillPublishes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := testsupport.NewFakeDocuments()
	fake.AddDocument("doc", reviewText("APPROVED", []string{"Foo Bar"}, "body", false))
	git := &fakeGit{commitFn: func() error { return errors.New("not a git repository") }}

	res, err := newPublisher(t, cfg, fake, Deps{Git: git}).Run(context.Background(), Options{NoConfirm: true, AutoCommit: true, AutoPush: true})
	if err != nil || len(res.Published) != 1 {
		t.Fatalf("Run = %+v, %v", res, err)
	}
	if git.pushes != 0 {
		t.Fatal("push must not follow a failed commit")
	}
}

func TestRunMarkerFailureSkipsCommitAndQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := testsupport.NewFakeDocuments()
	id := fake.AddDocument("[REVIEW] Foo Bar - 2026-04-30", reviewText("APPROVED", []string{"Foo Bar"}, "news body", true))
	git := &fakeGit{}
	p := newPublisher(t, cfg, fake, Deps{Git: git})

	// A plain file where the marker directory belongs makes the marker write fail.
	published := filepath.Join(cfg.Paths.StateDir, "published")
	if err := os.RemoveAll(published); err != nil {
		t.Fatalf("remove markers: %v", err)
	}
	testsupport.WriteFile(t, published, "")

	res, err := p.Run(context.Background(), Options{NoConfirm: true, AutoCommit: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 1 || len(res.Published) != 0 {
		t.Fatalf("result = %+v", res)
	}
	if len(git.commits) != 0 {
		t.Fatalf("commit ran without a marker: %v", git.commits)
	}
	if _, err := os.Stat(cfg.Paths.SocialQueueFile); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("queue written without a marker: %v", err)
	}
	if doc, _ := fake.Document(id); !codec.Decode(doc.Text).Approved() {
		t.Fatal("document status flipped without a marker")
	}

	if err := os.Remove(published); err != nil {
		t.Fatalf("remove file: %v", err)
	}
	if err := os.Mkdir(published, 0o755); err != nil {
		t.Fatalf("mkdir markers: %v", err)
	}
	res, err = p.Run(context.Background(), Options{NoConfirm: true, AutoCommit: true})
	if err != nil || len(res.Published) != 1 {
		t.Fatalf("retry = %+v, %v", res, err)
	}
	if len(git.commits) != 1 {
		t.Fatalf("commits = %v", git.commits)
	}
	queue, err := os.ReadFile(cfg.Paths.SocialQueueFile)
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}
	if n := strings.Count(string(queue), "## Foo Bar"); n != 1 {
		t.Fatalf("queue holds %d entries for the post:\n%s", n, queue)
	}
}

func TestRunUsesDraftedItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := testsupport.NewFakeDocuments()
	id := fake.AddDocument("doc", reviewText("APPROVED", []string{"Foo Bar"}, "## Heading only", false))

	st := testsupport.MustOpenStore(t, cfg)
	it := testsupport.PutTransformed(t, st, "Foo Bar", &item.BlogDraft{
		TitleOptions:    []string{"Foo Bar"},
		FullText:        "## Heading only",
		MetaDescription: "Stored description",
	}, nil)
	it.FeaturedImage = "/images/blog/foo-bar.png"
	it.ReviewDocumentID = id
	if err := it.Advance(item.StageDrafted, publishDay); err != nil {
		t.Fatal(err)
	}
	if err := st.Put(item.StageDrafted, it); err != nil {
		t.Fatal(err)
	}

	res, err := newPublisher(t, cfg, fake, Deps{Store: st}).Run(context.Background(), Options{NoConfirm: true})
	if err != nil || len(res.Published) != 1 {
		t.Fatalf("Run = %+v, %v", res, err)
	}
	marker := res.Published[0]
	if marker.ItemID != it.ID || marker.Item == nil || marker.Item.Stage != item.StagePublished {
		t.Fatalf("marker item = %+v", marker)
	}
	data, _ := os.ReadFile(marker.ArtifactPath)
	fm, _ := ParseFrontMatter(data)
	if fm.Description != "Stored description" || fm.Image != "/images/blog/foo-bar.png" {
		t.Fatalf("front matter = %+v", fm)
	}
}

func TestRunListFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := testsupport.NewFakeDocuments()
	fake.ListErr = errors.New("unauthorized")
	_, err := newPublisher(t, cfg, fake, Deps{}).Run(context.Background(), Options{NoConfirm: true})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestGitCommandSequence(t *testing.T) {
	var calls []string
	run := func(_ context.Context, dir, binary string, args ...string) ([]byte, error) {
		calls = append(calls, dir+"$ "+binary+" "+strings.Join(args, " "))
		return nil, nil
	}
	g := NewGit("", "/repo", run)
	if err := g.Commit(context.Background(), []string{"content/guides/a.mdx"}, "content: Add blog post - A"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := g.Push(context.Background()); err != nil {
		t.Fatalf("Push: %v", err)
	}
	want := []string{
		"/repo$ git add -- content/guides/a.mdx",
		"/repo$ git commit -m content: Add blog post - A -- content/guides/a.mdx",
		"/repo$ git push",
	}
	if strings.Join(calls, "\n") != strings.Join(want, "\n") {
		t.Fatalf("calls:\n%s", strings.Join(calls, "\n"))
	}

	failing := NewGit("git", "/repo", func(context.Context, string, string, ...string) ([]byte, error) {
		return []byte("fatal: not a git repository"), errors.New("exit status 128")
	})
	if err := failing.Commit(context.Background(), []string{"x"}, "m"); err == nil || !strings.Contains(err.Error(), "not a git repository") {
		t.Fatalf("expected git output in error, got %v", err)
	}
}
