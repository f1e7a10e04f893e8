// Package store persists pipeline items as one JSON file per record, with a
// directory per stage. Every write goes through a temp file and rename so a
// reader never observes a partial snapshot.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"contentpipe/internal/fileutil"
	"contentpipe/internal/item"
)

// ErrPublishedNamespace is returned when item snapshots are addressed to the
// published namespace, which holds markers keyed by document ID instead.
var ErrPublishedNamespace = errors.New("published namespace holds markers, not item snapshots")

// ErrReadOnly is returned by every write on a store opened with OpenReadOnly.
var ErrReadOnly = errors.New("store is read-only")

var stageDirs = map[item.Stage]string{
	item.StageIngested:    "raw",
	item.StageTransformed: "transformed",
	item.StageDrafted:     "drafted",
	item.StageFailed:      "failed",
}

const publishedDir = "published"

// Store is a file-backed item store rooted at a state directory.
type Store struct {
	root     string
	now      func() time.Time
	readOnly bool

	// published maps item IDs to their marker documents. It is read from
	// disk on first use and kept current by PutMarker.
	publishedMu sync.Mutex
	published   map[string]struct{}
}

// Open prepares the namespace directories under root.
func Open(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("store root must be set")
	}
	s := &Store{root: root, now: time.Now}
	dirs := []string{publishedDir}
	for _, dir := range stageDirs {
		dirs = append(dirs, dir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create store namespace %s: %w", dir, err)
		}
	}
	return s, nil
}

// OpenReadOnly returns a store that reads from root without creating it.
// Missing namespaces list as empty and every write fails with ErrReadOnly.
func OpenReadOnly(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("store root must be set")
	}
	return &Store{root: root, now: time.Now, readOnly: true}, nil
}

// Root returns the state directory.
func (s *Store) Root() string { return s.root }

// Dir returns the directory backing a stage namespace.
func (s *Store) Dir(stage item.Stage) (string, error) {
	if stage == item.StagePublished {
		return "", ErrPublishedNamespace
	}
	dir, ok := stageDirs[stage]
	if !ok {
		return "", fmt.Errorf("stage %q has no namespace", stage)
	}
	return filepath.Join(s.root, dir), nil
}

func (s *Store) path(stage item.Stage, id string) (string, error) {
	dir, err := s.Dir(stage)
	if err != nil {
		return "", err
	}
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid item id %q", id)
	}
	return filepath.Join(dir, id+".json"), nil
}

// Put writes the item as the authoritative snapshot for (stage, id),
// replacing any previous snapshot.
func (s *Store) Put(stage item.Stage, it *item.Item) error {
	if it == nil {
		return errors.New("put: nil item")
	}
	if s.readOnly {
		return fmt.Errorf("put %s/%s: %w", stage, it.ID, ErrReadOnly)
	}
	path, err := s.path(stage, it.ID)
	if err != nil {
		return err
	}
	if err := fileutil.WriteJSONAtomic(path, it); err != nil {
		return fmt.Errorf("put %s/%s: %w", stage, it.ID, err)
	}
	return nil
}

// Get returns the snapshot for (stage, id). A missing snapshot yields
// (nil, false, nil).
func (s *Store) Get(stage item.Stage, id string) (*item.Item, bool, error) {
	path, err := s.path(stage, id)
	if err != nil {
		return nil, false, err
	}
	var it item.Item
	if err := fileutil.ReadJSON(path, &it); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %s/%s: %w", stage, id, err)
	}
	if it.Metadata == nil {
		it.Metadata = item.Metadata{}
	}
	return &it, true, nil
}

// Exists reports whether a snapshot for (stage, id) is present.
func (s *Store) Exists(stage item.Stage, id string) bool {
	path, err := s.path(stage, id)
	if err != nil {
		return false
	}
	return fileutil.Exists(path)
}

// Completed applies the resume rule: the item has a snapshot in the target
// namespace whose stage equals the target.
func (s *Store) Completed(target item.Stage, id string) (bool, error) {
	it, ok, err := s.Get(target, id)
	if err != nil || !ok {
		return false, err
	}
	return it.Stage == target, nil
}

// Known reports whether any non-failed namespace already holds the id. It is
// the dedup check run before any ingestion fetch.
func (s *Store) Known(id string) bool {
	for _, stage := range []item.Stage{item.StageIngested, item.StageTransformed, item.StageDrafted} {
		if s.Exists(stage, id) {
			return true
		}
	}
	return s.publishedItem(id)
}

// List returns every snapshot in the namespace. Order is by file name, which
// callers must not rely on. Undecodable files are returned as errors in the
// second value and skipped.
func (s *Store) List(stage item.Stage) ([]*item.Item, []error, error) {
	dir, err := s.Dir(stage)
	if err != nil {
		return nil, nil, err
	}
	names, err := jsonFiles(dir)
	if err != nil {
		return nil, nil, err
	}
	items := make([]*item.Item, 0, len(names))
	var skipped []error
	for _, name := range names {
		var it item.Item
		if err := fileutil.ReadJSON(filepath.Join(dir, name), &it); err != nil {
			skipped = append(skipped, err)
			continue
		}
		if it.Metadata == nil {
			it.Metadata = item.Metadata{}
		}
		items = append(items, &it)
	}
	return items, skipped, nil
}

// Count returns the number of snapshot files in the namespace.
func (s *Store) Count(stage item.Stage) (int, error) {
	if stage == item.StagePublished {
		names, err := jsonFiles(filepath.Join(s.root, publishedDir))
		return len(names), err
	}
	dir, err := s.Dir(stage)
	if err != nil {
		return 0, err
	}
	names, err := jsonFiles(dir)
	return len(names), err
}

// Delete removes the snapshot for (stage, id). Missing snapshots are ignored.
func (s *Store) Delete(stage item.Stage, id string) error {
	if s.readOnly {
		return fmt.Errorf("delete %s/%s: %w", stage, id, ErrReadOnly)
	}
	path, err := s.path(stage, id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s/%s: %w", stage, id, err)
	}
	return nil
}

// MarkFailed records an advisory failure snapshot. The item's snapshot in its
// working namespace is left untouched so the next run retries it.
func (s *Store) MarkFailed(it *item.Item, cause error) error {
	if it == nil {
		return errors.New("mark failed: nil item")
	}
	failed := it.Clone()
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}
	failed.Fail(message, s.now())
	return s.Put(item.StageFailed, failed)
}

// ClearFailed drops the advisory failure snapshot once an item advances.
func (s *Store) ClearFailed(id string) error {
	return s.Delete(item.StageFailed, id)
}

func jsonFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
