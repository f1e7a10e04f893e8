package publish

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"contentpipe/internal/codec"
	"contentpipe/internal/config"
	"contentpipe/internal/docs"
	"contentpipe/internal/fileutil"
	"contentpipe/internal/images"
	"contentpipe/internal/item"
	"contentpipe/internal/logging"
	"contentpipe/internal/metrics"
	"contentpipe/internal/notifications"
	"contentpipe/internal/services"
	"contentpipe/internal/store"
	"contentpipe/internal/textutil"
)

const (
	stageName = "publish"
	untitled  = "Untitled Post"

	// ScanLimit caps how many recent documents one scan inspects.
	ScanLimit = 50
)

// Confirmer asks whether a document should be published.
type Confirmer func(title string) (bool, error)

// Options tunes a publish scan.
type Options struct {
	DryRun     bool
	NoConfirm  bool
	AutoCommit bool
	AutoPush   bool
}

// OptionsFromConfig seeds options from the publish config section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{AutoCommit: cfg.Publish.AutoCommit, AutoPush: cfg.Publish.AutoPush}
}

// Result summarizes a scan.
type Result struct {
	Published   []store.Marker
	Planned     []string
	Already     int
	NotApproved int
	Declined    int
	Failed      int
}

// Deps holds the publisher's collaborators. Git, Notifier, Confirm and
// Metrics may be nil.
type Deps struct {
	Docs     docs.Service
	Store    *store.Store
	Git      Committer
	Notifier notifications.Service
	Confirm  Confirmer
	Metrics  *metrics.Metrics
	Clock    func() time.Time
}

// Publisher scans review documents and publishes the approved ones.
type Publisher struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

// New returns a publisher.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Publisher{
		cfg:    cfg,
		deps:   deps,
		logger: logging.NewComponentLogger(logger, stageName),
		now:    clock,
	}
}

// Run performs one scan. Per-document failures are logged and counted;
// only a failed listing aborts the scan.
func (p *Publisher) Run(ctx context.Context, opts Options) (Result, error) {
	var res Result
	infos, err := p.deps.Docs.ListDocuments(ctx, p.cfg.Documents.FolderID)
	if err != nil {
		return res, services.Wrap(services.ErrExternalTool, stageName, "list documents", "", err)
	}
	if len(infos) > ScanLimit {
		infos = infos[:ScanLimit]
	}
	p.logger.Info("publish scan started",
		logging.String(logging.FieldEventType, "publish_scan_start"),
		logging.Int("documents", len(infos)),
		logging.Bool("dry_run", opts.DryRun),
	)

	drafted := p.draftedByDocument()
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if p.deps.Store.HasMarker(info.ID) {
			res.Already++
			continue
		}
		started := p.now()
		marker, outcome, err := p.publishOne(ctx, info, drafted[info.ID], opts)
		logger := p.logger.With(logging.String(logging.FieldDocumentID, info.ID), logging.String("doc_name", info.Name))
		switch {
		case err != nil:
			res.Failed++
			p.deps.Metrics.ObserveItem(stageName, metrics.ResultFailed, p.now().Sub(started))
			logging.WarnWithContext(logger, "publish failed", "publish_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "fix the document or permissions and rerun publish"),
				logging.String(logging.FieldImpact, "document stays unpublished"),
			)
			p.notify(ctx, notifications.EventError, notifications.Payload{
				"context": "publishing " + info.Name,
				"error":   err.Error(),
			})
		case outcome == outcomeNotApproved:
			res.NotApproved++
		case outcome == outcomeDeclined:
			res.Declined++
			p.deps.Metrics.ObserveItem(stageName, metrics.ResultSkipped, 0)
		case outcome == outcomePlanned:
			res.Planned = append(res.Planned, marker.ArtifactPath)
			p.deps.Metrics.ObserveItem(stageName, metrics.ResultPlanned, 0)
			logger.Info("would publish", logging.String("path", marker.ArtifactPath), logging.String("content_type", marker.ContentType))
		default:
			res.Published = append(res.Published, marker)
			p.deps.Metrics.ObserveItem(stageName, metrics.ResultSucceeded, p.now().Sub(started))
			logger.Info("document published",
				logging.String(logging.FieldEventType, "published"),
				logging.String("title", marker.Title),
				logging.String("content_type", marker.ContentType),
				logging.String("path", marker.ArtifactPath),
			)
			p.notify(ctx, notifications.EventPublished, notifications.Payload{
				"title":       marker.Title,
				"contentType": marker.ContentType,
				"path":        marker.ArtifactPath,
			})
		}
	}
	p.logger.Info("publish scan completed",
		logging.String(logging.FieldEventType, "publish_scan_complete"),
		logging.Int("published", len(res.Published)),
		logging.Int("planned", len(res.Planned)),
		logging.Int("already_published", res.Already),
		logging.Int("not_approved", res.NotApproved),
		logging.Int("failed", res.Failed),
	)
	return res, nil
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeNotApproved
	outcomeDeclined
	outcomePlanned
)

func (p *Publisher) publishOne(ctx context.Context, info docs.Info, source *item.Item, opts Options) (store.Marker, outcome, error) {
	text, err := p.deps.Docs.GetText(ctx, info.ID)
	if err != nil {
		return store.Marker{}, 0, services.Wrap(services.ErrExternalTool, stageName, "read document", info.ID, err)
	}
	doc := codec.Decode(text)
	if !doc.Approved() {
		p.logger.Debug("document not approved",
			logging.String(logging.FieldDocumentID, info.ID),
			logging.String("status", doc.Status),
		)
		return store.Marker{}, outcomeNotApproved, nil
	}

	title := ResolveTitle(doc, info.Name)
	contentType := Classify(title, doc.Blog, doc.Pillar)
	now := p.now()
	path := filepath.Join(p.cfg.Paths.ContentDir, ContentDir(contentType), ArtifactName(now, title))
	marker := store.Marker{
		DocumentID:   info.ID,
		DocumentName: info.Name,
		ArtifactPath: path,
		Title:        title,
		ContentType:  contentType,
	}
	if opts.DryRun {
		return marker, outcomePlanned, nil
	}
	if !opts.NoConfirm && p.deps.Confirm != nil {
		ok, err := p.deps.Confirm(title)
		if err != nil {
			return store.Marker{}, 0, fmt.Errorf("confirm publish: %w", err)
		}
		if !ok {
			return store.Marker{}, outcomeDeclined, nil
		}
	}

	mdx, err := RenderMDX(p.frontMatter(doc, title, contentType, source, now), doc.Blog)
	if err != nil {
		return store.Marker{}, 0, err
	}
	if err := fileutil.WriteFileAtomic(path, mdx, 0o644); err != nil {
		return store.Marker{}, 0, services.Wrap(services.ErrTransient, stageName, "write artifact", path, err)
	}

	// Record the marker first: the commit and queue append below must run at
	// most once per document.
	marker.PublishedAt = now.UTC()
	if source != nil {
		snapshot := source.Clone()
		if err := snapshot.Advance(item.StagePublished, now); err == nil {
			marker.Item = snapshot
		}
		marker.ItemID = source.ID
	}
	if err := p.deps.Store.PutMarker(marker); err != nil {
		return store.Marker{}, 0, services.Wrap(services.ErrTransient, stageName, "record marker", info.ID, err)
	}

	logger := p.logger.With(logging.String(logging.FieldDocumentID, info.ID))
	if opts.AutoCommit && p.deps.Git != nil {
		p.commit(ctx, logger, path, title, opts.AutoPush)
	}
	p.markDocumentPublished(ctx, logger, info.ID, text)
	if doc.ShortCaption != "" || doc.VideoScript != "" {
		entry := QueueEntry(doc, title, path, now)
		if err := AppendQueue(ctx, p.cfg.Paths.SocialQueueFile, entry); err != nil {
			logging.WarnWithContext(logger, "social queue append failed", "social_queue_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "copy the social assets from the review document"),
				logging.String(logging.FieldImpact, "post is published without a queue entry"),
			)
		}
	}
	return marker, outcomePublished, nil
}

func (p *Publisher) frontMatter(doc codec.Document, title, contentType string, source *item.Item, now time.Time) FrontMatter {
	pillar := strings.ToLower(strings.TrimSpace(doc.Pillar))
	if pillar == "" {
		pillar = p.cfg.Publish.DefaultPillar
	}
	description := doc.MetaDescription
	if description == "" && source != nil && source.Blog != nil {
		description = source.Blog.MetaDescription
	}
	image := images.PlaceholderRef
	if source != nil && strings.HasPrefix(source.FeaturedImage, images.SitePrefix) {
		image = source.FeaturedImage
	}
	return FrontMatter{
		Title:       title,
		Date:        now.Format("2006-01-02"),
		Description: description,
		Pillar:      pillar,
		Type:        contentType,
		Author:      p.cfg.Publish.Author,
		ReadingTime: textutil.ReadingMinutes(doc.Blog),
		Featured:    false,
		Image:       image,
		Tags:        []string{},
	}
}

func (p *Publisher) commit(ctx context.Context, logger *slog.Logger, path, title string, push bool) {
	if err := p.deps.Git.Commit(ctx, []string{path}, CommitMessage(title)); err != nil {
		logging.WarnWithContext(logger, "git commit failed", "git_commit_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "commit the artifact manually"),
			logging.String(logging.FieldImpact, "artifact written but not committed"),
		)
		return
	}
	if !push {
		return
	}
	if err := p.deps.Git.Push(ctx); err != nil {
		logging.WarnWithContext(logger, "git push failed", "git_push_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "push manually"),
			logging.String(logging.FieldImpact, "commit is local only"),
		)
	}
}

func (p *Publisher) markDocumentPublished(ctx context.Context, logger *slog.Logger, docID, text string) {
	start, end, ok := codec.StatusLineRange(text)
	if !ok {
		logging.WarnWithContext(logger, "status line not found", "status_line_missing",
			logging.String(logging.FieldErrorHint, "set STATUS: PUBLISHED by hand"),
			logging.String(logging.FieldImpact, "document still reads as approved"),
		)
		return
	}
	if err := p.deps.Docs.ReplaceRange(ctx, docID, start, end, codec.StatusLine(codec.StatusPublished)); err != nil {
		logging.WarnWithContext(logger, "status update failed", "status_update_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set STATUS: PUBLISHED by hand"),
			logging.String(logging.FieldImpact, "document still reads as approved"),
		)
	}
}

func (p *Publisher) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if p.deps.Notifier == nil {
		return
	}
	if err := p.deps.Notifier.Publish(ctx, event, payload); err != nil {
		p.logger.Debug("notification failed", logging.Error(err))
	}
}

// draftedByDocument indexes drafted snapshots by review document ID.
func (p *Publisher) draftedByDocument() map[string]*item.Item {
	items, _, err := p.deps.Store.List(item.StageDrafted)
	if err != nil {
		return nil
	}
	index := make(map[string]*item.Item, len(items))
	for _, it := range items {
		if it.ReviewDocumentID != "" {
			index[it.ReviewDocumentID] = it
		}
	}
	return index
}

var reviewSuffix = regexp.MustCompile(`\s+-\s+(DRAFT|\d{4}-\d{2}-\d{2})$`)

// ResolveTitle picks the first title option, falling back to the document
// name without its review decorations.
func ResolveTitle(doc codec.Document, docName string) string {
	if t := strings.TrimSpace(doc.PrimaryTitle()); t != "" {
		return t
	}
	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(docName), "[REVIEW]"))
	name = strings.TrimSpace(reviewSuffix.ReplaceAllString(name, ""))
	if name == "" {
		return untitled
	}
	return name
}
