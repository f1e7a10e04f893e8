package docs

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf16"

	"golang.org/x/oauth2/google"
	docsv1 "google.golang.org/api/docs/v1"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	googleDocMimeType = "application/vnd.google-apps.document"
	listPageSize      = 50
)

// Google talks to Google Docs and Drive with service account credentials.
type Google struct {
	docs  *docsv1.Service
	drive *drive.Service
}

// NewGoogle authenticates with a service account JSON key.
func NewGoogle(ctx context.Context, credentialsFile string) (*Google, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	jwt, err := google.JWTConfigFromJSON(data, docsv1.DocumentsScope, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}
	return NewGoogleWithOptions(ctx, option.WithHTTPClient(jwt.Client(ctx)))
}

// NewGoogleWithOptions builds the backend from explicit client options.
func NewGoogleWithOptions(ctx context.Context, opts ...option.ClientOption) (*Google, error) {
	docsSvc, err := docsv1.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create docs service: %w", err)
	}
	driveSvc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Google{docs: docsSvc, drive: driveSvc}, nil
}

func (g *Google) CreateDocument(ctx context.Context, title string) (string, error) {
	doc, err := g.docs.Documents.Create(&docsv1.Document{Title: title}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	return doc.DocumentId, nil
}

func (g *Google) GetText(ctx context.Context, docID string) (string, error) {
	doc, err := g.docs.Documents.Get(docID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get document %s: %w", docID, err)
	}
	return documentText(doc), nil
}

func documentText(doc *docsv1.Document) string {
	if doc == nil || doc.Body == nil {
		return ""
	}
	var b strings.Builder
	for _, element := range doc.Body.Content {
		if element == nil || element.Paragraph == nil {
			continue
		}
		for _, pe := range element.Paragraph.Elements {
			if pe != nil && pe.TextRun != nil {
				b.WriteString(pe.TextRun.Content)
			}
		}
	}
	return b.String()
}

func (g *Google) ReplaceRange(ctx context.Context, docID string, start, end int, text string) error {
	requests := []*docsv1.Request{
		{DeleteContentRange: &docsv1.DeleteContentRangeRequest{
			Range: &docsv1.Range{StartIndex: int64(start), EndIndex: int64(end)},
		}},
		{InsertText: &docsv1.InsertTextRequest{
			Location: &docsv1.Location{Index: int64(start)},
			Text:     text,
		}},
	}
	return g.batchUpdate(ctx, docID, requests)
}

func (g *Google) BatchInsert(ctx context.Context, docID string, inserts []Insert) error {
	requests := insertRequests(inserts)
	if len(requests) == 0 {
		return nil
	}
	return g.batchUpdate(ctx, docID, requests)
}

func (g *Google) batchUpdate(ctx context.Context, docID string, requests []*docsv1.Request) error {
	body := &docsv1.BatchUpdateDocumentRequest{Requests: requests}
	if _, err := g.docs.Documents.BatchUpdate(docID, body).Context(ctx).Do(); err != nil {
		return fmt.Errorf("update document %s: %w", docID, err)
	}
	return nil
}

// insertRequests turns inserts into text insertions followed, for styled
// blocks, by a paragraph style update over the inserted range.
func insertRequests(inserts []Insert) []*docsv1.Request {
	requests := make([]*docsv1.Request, 0, len(inserts)*2)
	for _, ins := range inserts {
		if ins.Text == "" {
			continue
		}
		requests = append(requests, &docsv1.Request{InsertText: &docsv1.InsertTextRequest{
			Location: &docsv1.Location{Index: int64(ins.Index)},
			Text:     ins.Text,
		}})
		if ins.NamedStyle == "" || ins.NamedStyle == "NORMAL_TEXT" {
			continue
		}
		end := ins.Index
		for _, r := range ins.Text {
			end += utf16.RuneLen(r)
		}
		requests = append(requests, &docsv1.Request{UpdateParagraphStyle: &docsv1.UpdateParagraphStyleRequest{
			Range:          &docsv1.Range{StartIndex: int64(ins.Index), EndIndex: int64(end)},
			ParagraphStyle: &docsv1.ParagraphStyle{NamedStyleType: ins.NamedStyle},
			Fields:         "namedStyleType",
		}})
	}
	return requests
}

func folderQuery(folderID string) string {
	if folderID == "" {
		return fmt.Sprintf("mimeType='%s' and trashed=false", googleDocMimeType)
	}
	return fmt.Sprintf("'%s' in parents and mimeType='%s' and trashed=false", strings.ReplaceAll(folderID, "'", `\'`), googleDocMimeType)
}

func (g *Google) ListDocuments(ctx context.Context, folderID string) ([]Info, error) {
	var infos []Info
	call := g.drive.Files.List().
		Q(folderQuery(folderID)).
		Spaces("drive").
		Fields("nextPageToken, files(id, name, modifiedTime)").
		OrderBy("modifiedTime desc").
		PageSize(listPageSize)
	err := call.Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			infos = append(infos, fileInfo(f))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return infos, nil
}

func fileInfo(f *drive.File) Info {
	info := Info{ID: f.Id, Name: f.Name}
	if ts, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		info.ModifiedTime = ts
	}
	return info
}

func (g *Google) MoveToFolder(ctx context.Context, docID, folderID string) error {
	if strings.TrimSpace(folderID) == "" {
		return errors.New("move document: folder id required")
	}
	file, err := g.drive.Files.Get(docID).Fields("parents").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get parents of %s: %w", docID, err)
	}
	_, err = g.drive.Files.Update(docID, &drive.File{}).
		AddParents(folderID).
		RemoveParents(strings.Join(file.Parents, ",")).
		Fields("id, parents").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("move %s to folder %s: %w", docID, folderID, err)
	}
	return nil
}

func (g *Google) UploadMedia(ctx context.Context, localPath, folderID string) (Media, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return Media{}, fmt.Errorf("open media: %w", err)
	}
	defer f.Close()

	meta := &drive.File{Name: filepath.Base(localPath)}
	if folderID != "" {
		meta.Parents = []string{folderID}
	}
	if mt := mime.TypeByExtension(filepath.Ext(localPath)); mt != "" {
		meta.MimeType = mt
	}
	created, err := g.drive.Files.Create(meta).Media(f).Fields("id, webViewLink").Context(ctx).Do()
	if err != nil {
		return Media{}, fmt.Errorf("upload %s: %w", filepath.Base(localPath), err)
	}
	return Media{ID: created.Id, Link: created.WebViewLink}, nil
}
