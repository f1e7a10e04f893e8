package docs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"contentpipe/internal/fileutil"
)

// localDocument is the on-disk record of one local document.
type localDocument struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Folder       string    `json:"folder,omitempty"`
	Text         string    `json:"text"`
	ModifiedTime time.Time `json:"modified_time"`
}

// Local keeps documents as JSON files in a directory. Editors change the
// text field by hand to approve drafts.
type Local struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewLocal opens (creating when needed) a local document directory.
func NewLocal(dir string) (*Local, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("local documents: directory required")
	}
	if err := os.MkdirAll(filepath.Join(dir, "media"), 0o755); err != nil {
		return nil, fmt.Errorf("local documents: create directory: %w", err)
	}
	return &Local{dir: dir, now: time.Now}, nil
}

// Path returns the JSON file that stores a document.
func (l *Local) Path(docID string) string {
	return filepath.Join(l.dir, docID+".json")
}

func (l *Local) load(docID string) (localDocument, error) {
	var doc localDocument
	if strings.TrimSpace(docID) == "" || strings.ContainsAny(docID, `/\`) {
		return doc, fmt.Errorf("local documents: invalid id %q", docID)
	}
	if err := fileutil.ReadJSON(l.Path(docID), &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, fmt.Errorf("local documents: %s: %w", docID, fs.ErrNotExist)
		}
		return doc, fmt.Errorf("local documents: read %s: %w", docID, err)
	}
	return doc, nil
}

func (l *Local) save(doc localDocument) error {
	doc.ModifiedTime = l.now().UTC()
	if err := fileutil.WriteJSONAtomic(l.Path(doc.ID), doc); err != nil {
		return fmt.Errorf("local documents: write %s: %w", doc.ID, err)
	}
	return nil
}

func (l *Local) CreateDocument(ctx context.Context, title string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc := localDocument{ID: uuid.NewString(), Name: strings.TrimSpace(title)}
	if err := l.save(doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}

func (l *Local) GetText(ctx context.Context, docID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, err := l.load(docID)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}

func (l *Local) ReplaceRange(ctx context.Context, docID string, start, end int, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, err := l.load(docID)
	if err != nil {
		return err
	}
	doc.Text = ApplyReplace(doc.Text, start, end, text)
	return l.save(doc)
}

func (l *Local) BatchInsert(ctx context.Context, docID string, inserts []Insert) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, err := l.load(docID)
	if err != nil {
		return err
	}
	doc.Text = ApplyInserts(doc.Text, inserts)
	return l.save(doc)
}

func (l *Local) ListDocuments(ctx context.Context, folderID string) ([]Info, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	matches, err := filepath.Glob(filepath.Join(l.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("local documents: list: %w", err)
	}
	infos := make([]Info, 0, len(matches))
	for _, path := range matches {
		var doc localDocument
		if err := fileutil.ReadJSON(path, &doc); err != nil {
			continue
		}
		if folderID != "" && doc.Folder != folderID {
			continue
		}
		infos = append(infos, Info{ID: doc.ID, Name: doc.Name, ModifiedTime: doc.ModifiedTime})
	}
	sortByModified(infos)
	return infos, nil
}

func (l *Local) MoveToFolder(ctx context.Context, docID, folderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, err := l.load(docID)
	if err != nil {
		return err
	}
	doc.Folder = strings.TrimSpace(folderID)
	return l.save(doc)
}

func (l *Local) UploadMedia(ctx context.Context, localPath, folderID string) (Media, error) {
	id := uuid.NewString()
	target := filepath.Join(l.dir, "media", id+filepath.Ext(localPath))
	if err := fileutil.CopyFile(localPath, target); err != nil {
		return Media{}, fmt.Errorf("local documents: upload %s: %w", localPath, err)
	}
	return Media{ID: id, Link: "file://" + target}, nil
}
