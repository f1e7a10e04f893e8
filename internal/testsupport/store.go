package testsupport

import (
	"testing"
	"time"

	"contentpipe/internal/config"
	"contentpipe/internal/item"
	"contentpipe/internal/store"
	"contentpipe/internal/usage"
)

// MustOpenStore opens the item store rooted at the config's state dir.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg.Paths.StateDir)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	return st
}

// PutIngested stores a manual item at the ingested stage and returns it.
func PutIngested(t testing.TB, st *store.Store, topic, raw string) *item.Item {
	t.Helper()

	it := item.New(item.ManualID(topic), item.SourceManual, topic, time.Now())
	it.SourceURL = "manual"
	it.RawText = raw
	if err := it.Advance(item.StageIngested, time.Now()); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := st.Put(item.StageIngested, it); err != nil {
		t.Fatalf("put ingested: %v", err)
	}
	return it
}

// PutTransformed stores a transformed item carrying blog (and optional
// social) drafts.
func PutTransformed(t testing.TB, st *store.Store, topic string, blog *item.BlogDraft, social *item.SocialDraft) *item.Item {
	t.Helper()

	it := PutIngested(t, st, topic, "raw "+topic)
	it.Blog = blog
	it.Social = social
	if err := it.Advance(item.StageTransformed, time.Now()); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := st.Put(item.StageTransformed, it); err != nil {
		t.Fatalf("put transformed: %v", err)
	}
	return it
}

// OpenLedger opens the usage ledger under the config's state dir and closes
// it when the test ends.
func OpenLedger(t testing.TB, cfg *config.Config) *usage.Ledger {
	t.Helper()

	ledger, err := usage.OpenConfig(cfg)
	if err != nil {
		t.Fatalf("usage.OpenConfig: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}
