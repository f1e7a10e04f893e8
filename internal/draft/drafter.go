// Package draft advances transformed items to drafted by rendering them
// into a review document.
package draft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"contentpipe/internal/codec"
	"contentpipe/internal/config"
	"contentpipe/internal/docs"
	"contentpipe/internal/images"
	"contentpipe/internal/item"
	"contentpipe/internal/logging"
	"contentpipe/internal/services"
	"contentpipe/internal/stage"
)

const stageName = "draft"

// Drafter creates review documents for transformed items.
type Drafter struct {
	cfg        *config.Config
	docs       docs.Service
	logger     *slog.Logger
	now        func() time.Time
	checkpoint func(*item.Item) error
}

var _ stage.Handler = (*Drafter)(nil)

// New returns a drafter writing through svc.
func New(cfg *config.Config, svc docs.Service, logger *slog.Logger) *Drafter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Drafter{
		cfg:    cfg,
		docs:   svc,
		logger: logging.NewComponentLogger(logger, stageName),
		now:    time.Now,
	}
}

// WithClock overrides the clock used for document titles.
func (d *Drafter) WithClock(now func() time.Time) *Drafter {
	if now != nil {
		d.now = now
	}
	return d
}

// WithCheckpoint sets the hook that persists the item once its review
// document exists, before any content is written. A retry after a failed
// write then reuses that document instead of creating another.
func (d *Drafter) WithCheckpoint(save func(*item.Item) error) *Drafter {
	d.checkpoint = save
	return d
}

// DocumentTitle names the review document for a blog title and day.
func DocumentTitle(title string, day time.Time) string {
	return fmt.Sprintf("[REVIEW] %s - %s", strings.TrimSpace(title), day.Format("2006-01-02"))
}

// Inserts converts encoded blocks into document insertions.
func Inserts(blocks []codec.Block) []docs.Insert {
	out := make([]docs.Insert, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, docs.Insert{Index: b.Offset, Text: b.Text, NamedStyle: b.Style.String()})
	}
	return out
}

// Prepare requires a usable blog draft.
func (d *Drafter) Prepare(_ context.Context, it *item.Item) error {
	return stage.RequireBlog(stageName, it)
}

// Execute creates the document, files it, and writes the encoded content.
func (d *Drafter) Execute(ctx context.Context, it *item.Item) error {
	if err := d.Prepare(ctx, it); err != nil {
		return err
	}
	logger := logging.WithContext(ctx, d.logger)

	title := DocumentTitle(it.Blog.PrimaryTitle(), d.now())
	docID, written, err := d.resumeDocument(ctx, logger, it)
	if err != nil {
		return err
	}
	if docID == "" {
		if docID, err = d.createDocument(ctx, it, title); err != nil {
			return err
		}
	}
	logger = logger.With(logging.String(logging.FieldDocumentID, docID))
	if written {
		logger.Info("review document already written; reusing it", logging.String("title", title))
		return nil
	}

	imageURL := d.imageLink(ctx, logger, it)
	blocks := codec.Encode(codec.FromItem(it, imageURL))
	if err := d.docs.BatchInsert(ctx, docID, Inserts(blocks)); err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "write document",
			fmt.Sprintf("document %s was created but is empty", docID), err)
	}

	logger.Info("review document created",
		logging.String("title", title),
		logging.Int("blocks", len(blocks)),
		logging.Bool("social", !it.Social.IsEmpty()),
	)
	return nil
}

// createDocument creates and files a new review document, then records its
// ID on the item and checkpoints it.
func (d *Drafter) createDocument(ctx context.Context, it *item.Item, title string) (string, error) {
	docID, err := d.docs.CreateDocument(ctx, title)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, stageName, "create document", title, err)
	}
	logger := logging.WithContext(ctx, d.logger).With(logging.String(logging.FieldDocumentID, docID))
	if folder := strings.TrimSpace(d.cfg.Documents.FolderID); folder != "" {
		if err := d.docs.MoveToFolder(ctx, docID, folder); err != nil {
			logging.WarnWithContext(logger, "could not move document to folder", "document_move_failed",
				logging.String("folder_id", folder),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "share documents.folder_id with the service account"),
				logging.String(logging.FieldImpact, "document left in the service account's root"),
			)
		}
	}
	it.ReviewDocumentID = docID
	if d.checkpoint != nil {
		if err := d.checkpoint(it); err != nil {
			return "", services.Wrap(services.ErrTransient, stageName, "record document",
				fmt.Sprintf("document %s was created but not recorded", docID), err)
		}
	}
	return docID, nil
}

// resumeDocument returns the review document left by an earlier attempt.
// written reports that it already holds content. A document that can no
// longer be read is abandoned and "" is returned.
func (d *Drafter) resumeDocument(ctx context.Context, logger *slog.Logger, it *item.Item) (docID string, written bool, err error) {
	docID = strings.TrimSpace(it.ReviewDocumentID)
	if docID == "" {
		return "", false, nil
	}
	text, err := d.docs.GetText(ctx, docID)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		logging.WarnWithContext(logger, "earlier review document unreadable; creating a new one", "document_resume_failed",
			logging.String(logging.FieldDocumentID, docID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the earlier document is orphaned"),
		)
		it.ReviewDocumentID = ""
		return "", false, nil
	}
	return docID, strings.TrimSpace(text) != "", nil
}

// imageLink uploads the rendered image when one exists locally, falling back
// to the mirror URL recorded at transform time.
func (d *Drafter) imageLink(ctx context.Context, logger *slog.Logger, it *item.Item) string {
	mirror := it.Metadata.Get(item.MetaImageURL)
	local := images.LocalPath(d.cfg, it.FeaturedImage)
	if local == "" {
		return mirror
	}
	if _, err := os.Stat(local); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Debug("featured image unreadable", logging.Error(err))
		}
		return mirror
	}
	media, err := d.docs.UploadMedia(ctx, local, d.cfg.Documents.MediaFolderID)
	if err != nil {
		logging.WarnWithContext(logger, "featured image upload failed", "image_upload_failed",
			logging.String("path", local),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check documents.media_folder_id sharing"),
			logging.String(logging.FieldImpact, "review document has no image link"),
		)
		return mirror
	}
	return media.Link
}

// HealthCheck lists the review folder to confirm the document service answers.
func (d *Drafter) HealthCheck(ctx context.Context) stage.Health {
	if d.docs == nil {
		return stage.Unhealthy(stageName, "document service not configured")
	}
	if _, err := d.docs.ListDocuments(ctx, d.cfg.Documents.FolderID); err != nil {
		return stage.Unhealthy(stageName, err.Error())
	}
	return stage.Healthy(stageName)
}
