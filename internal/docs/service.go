package docs

import (
	"context"
	"fmt"
	"time"

	"contentpipe/internal/config"
)

// Info describes a listed document.
type Info struct {
	ID           string
	Name         string
	ModifiedTime time.Time
}

// Media is an uploaded file and its shareable link.
type Media struct {
	ID   string
	Link string
}

// Insert is one positioned text insertion. NamedStyle is empty or
// NORMAL_TEXT for plain paragraphs.
type Insert struct {
	Index      int
	Text       string
	NamedStyle string
}

// Service is the document store the draft and publish stages talk to.
type Service interface {
	CreateDocument(ctx context.Context, title string) (string, error)
	GetText(ctx context.Context, docID string) (string, error)
	ReplaceRange(ctx context.Context, docID string, start, end int, text string) error
	BatchInsert(ctx context.Context, docID string, inserts []Insert) error
	ListDocuments(ctx context.Context, folderID string) ([]Info, error)
	MoveToFolder(ctx context.Context, docID, folderID string) error
	UploadMedia(ctx context.Context, localPath, folderID string) (Media, error)
}

// New builds the configured backend.
func New(ctx context.Context, cfg *config.Config) (Service, error) {
	if err := cfg.RequireDocuments(); err != nil {
		return nil, err
	}
	switch cfg.Documents.Backend {
	case config.DocumentsLocal:
		return NewLocal(cfg.Documents.LocalDir)
	case config.DocumentsGoogle:
		return NewGoogle(ctx, cfg.Documents.CredentialsFile)
	default:
		return nil, fmt.Errorf("unsupported documents backend %q", cfg.Documents.Backend)
	}
}
