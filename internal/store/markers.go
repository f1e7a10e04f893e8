package store

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"contentpipe/internal/fileutil"
	"contentpipe/internal/item"
)

// Marker records that a review document has been published. Markers are
// keyed by document ID since the document, not the originating item, is the
// source of truth for approval.
type Marker struct {
	DocumentID   string     `json:"doc_id"`
	DocumentName string     `json:"doc_name"`
	ArtifactPath string     `json:"mdx_path"`
	PublishedAt  time.Time  `json:"published_at"`
	Title        string     `json:"title"`
	ContentType  string     `json:"content_type"`
	ItemID       string     `json:"item_id,omitempty"`
	Item         *item.Item `json:"item,omitempty"`
}

func (s *Store) markerPath(docID string) (string, error) {
	docID = strings.TrimSpace(docID)
	if docID == "" || strings.ContainsAny(docID, `/\`) || docID == "." || docID == ".." {
		return "", fmt.Errorf("invalid document id %q", docID)
	}
	return filepath.Join(s.root, publishedDir, docID+".json"), nil
}

// PutMarker atomically records a published marker.
func (s *Store) PutMarker(marker Marker) error {
	if s.readOnly {
		return fmt.Errorf("put marker %s: %w", marker.DocumentID, ErrReadOnly)
	}
	path, err := s.markerPath(marker.DocumentID)
	if err != nil {
		return err
	}
	if marker.PublishedAt.IsZero() {
		marker.PublishedAt = s.now().UTC()
	}
	if err := fileutil.WriteJSONAtomic(path, marker); err != nil {
		return fmt.Errorf("put marker %s: %w", marker.DocumentID, err)
	}
	s.publishedMu.Lock()
	s.indexMarker(marker)
	s.publishedMu.Unlock()
	return nil
}

// HasMarker reports whether the document has already been published.
func (s *Store) HasMarker(docID string) bool {
	path, err := s.markerPath(docID)
	if err != nil {
		return false
	}
	return fileutil.Exists(path)
}

// GetMarker loads the marker for a document.
func (s *Store) GetMarker(docID string) (*Marker, bool, error) {
	path, err := s.markerPath(docID)
	if err != nil {
		return nil, false, err
	}
	var marker Marker
	if err := fileutil.ReadJSON(path, &marker); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &marker, true, nil
}

// Markers returns every published marker. Unreadable files are skipped.
func (s *Store) Markers() ([]Marker, error) {
	dir := filepath.Join(s.root, publishedDir)
	names, err := jsonFiles(dir)
	if err != nil {
		return nil, err
	}
	markers := make([]Marker, 0, len(names))
	for _, name := range names {
		var marker Marker
		if err := fileutil.ReadJSON(filepath.Join(dir, name), &marker); err != nil {
			continue
		}
		markers = append(markers, marker)
	}
	return markers, nil
}

func (s *Store) publishedItem(id string) bool {
	s.publishedMu.Lock()
	defer s.publishedMu.Unlock()
	if s.published == nil {
		markers, err := s.Markers()
		if err != nil {
			return false
		}
		s.published = make(map[string]struct{}, len(markers))
		for _, marker := range markers {
			s.indexMarker(marker)
		}
	}
	_, ok := s.published[id]
	return ok
}

// indexMarker adds marker to a loaded published index. Callers hold
// publishedMu.
func (s *Store) indexMarker(marker Marker) {
	if s.published == nil {
		return
	}
	if id := strings.TrimSpace(marker.ItemID); id != "" {
		s.published[id] = struct{}{}
	}
}
