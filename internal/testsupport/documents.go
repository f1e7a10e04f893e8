package testsupport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"contentpipe/internal/docs"
)

// FakeDocument is one in-memory document.
type FakeDocument struct {
	ID       string
	Name     string
	Folder   string
	Text     string
	Modified time.Time
}

// FakeDocuments is an in-memory docs.Service.
type FakeDocuments struct {
	mu      sync.Mutex
	docs    map[string]*FakeDocument
	order   []string
	nextID  int
	clock   time.Time
	Uploads []string

	MoveErr   error
	UploadErr error
	CreateErr error
	ListErr   error
	InsertErr error
}

// NewFakeDocuments returns an empty fake document service.
func NewFakeDocuments() *FakeDocuments {
	return &FakeDocuments{
		docs:  make(map[string]*FakeDocument),
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

var _ docs.Service = (*FakeDocuments)(nil)

func (f *FakeDocuments) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

func (f *FakeDocuments) get(docID string) (*FakeDocument, error) {
	doc, ok := f.docs[docID]
	if !ok {
		return nil, fmt.Errorf("document %s not found", docID)
	}
	return doc, nil
}

func (f *FakeDocuments) CreateDocument(_ context.Context, title string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	f.nextID++
	id := fmt.Sprintf("doc-%d", f.nextID)
	f.docs[id] = &FakeDocument{ID: id, Name: title, Modified: f.tick()}
	f.order = append(f.order, id)
	return id, nil
}

func (f *FakeDocuments) GetText(_ context.Context, docID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.get(docID)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}

func (f *FakeDocuments) ReplaceRange(_ context.Context, docID string, start, end int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.get(docID)
	if err != nil {
		return err
	}
	doc.Text = docs.ApplyReplace(doc.Text, start, end, text)
	doc.Modified = f.tick()
	return nil
}

func (f *FakeDocuments) BatchInsert(_ context.Context, docID string, inserts []docs.Insert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertErr != nil {
		return f.InsertErr
	}
	doc, err := f.get(docID)
	if err != nil {
		return err
	}
	doc.Text = docs.ApplyInserts(doc.Text, inserts)
	doc.Modified = f.tick()
	return nil
}

func (f *FakeDocuments) ListDocuments(_ context.Context, folderID string) ([]docs.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	infos := make([]docs.Info, 0, len(f.order))
	for i := len(f.order) - 1; i >= 0; i-- {
		doc := f.docs[f.order[i]]
		if folderID != "" && doc.Folder != folderID {
			continue
		}
		infos = append(infos, docs.Info{ID: doc.ID, Name: doc.Name, ModifiedTime: doc.Modified})
	}
	return infos, nil
}

func (f *FakeDocuments) MoveToFolder(_ context.Context, docID, folderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MoveErr != nil {
		return f.MoveErr
	}
	doc, err := f.get(docID)
	if err != nil {
		return err
	}
	doc.Folder = folderID
	return nil
}

func (f *FakeDocuments) UploadMedia(_ context.Context, localPath, _ string) (docs.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UploadErr != nil {
		return docs.Media{}, f.UploadErr
	}
	f.Uploads = append(f.Uploads, localPath)
	id := fmt.Sprintf("media-%d", len(f.Uploads))
	return docs.Media{ID: id, Link: "https://drive.example/" + id}, nil
}

// Document returns a copy of the stored document.
func (f *FakeDocuments) Document(docID string) (FakeDocument, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[docID]
	if !ok {
		return FakeDocument{}, false
	}
	return *doc, true
}

// SetText overwrites a document's text, standing in for a human edit.
func (f *FakeDocuments) SetText(docID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[docID]
	if !ok {
		return errors.New("unknown document " + docID)
	}
	doc.Text = text
	doc.Modified = f.tick()
	return nil
}

// IDs returns document IDs in creation order.
func (f *FakeDocuments) IDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

// AddDocument stores a document with the given name and text, standing in
// for one drafted earlier.
func (f *FakeDocuments) AddDocument(name, text string) string {
	id, _ := f.CreateDocument(context.Background(), name)
	_ = f.SetText(id, text)
	return id
}
