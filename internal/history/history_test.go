package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/serendipitylabs/serendipity/internal/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleBatch(id int64, urls ...string) session.Batch {
	b := session.Batch{ID: id, Title: "batch"}
	for _, url := range urls {
		b.Recommendations = append(b.Recommendations, session.Recommendation{
			URL: url, Title: "T", Reason: "r", MediaType: "article", Approach: "convergent",
		})
	}
	return b
}

func TestRecordBatchAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.RecordBatch(ctx, "s1", sampleBatch(1, "https://a", "https://b")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.RecordBatch(ctx, "s1", sampleBatch(2, "https://c")); err != nil {
		t.Fatalf("record: %v", err)
	}

	items, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].URL != "https://c" {
		t.Errorf("newest first expected, got %q", items[0].URL)
	}
	if items[0].ShownAt.IsZero() {
		t.Error("shown_at not populated")
	}
}

func TestRecentURLsDistinctNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	store.RecordBatch(ctx, "s1", sampleBatch(1, "https://a", "https://b"))
	store.RecordBatch(ctx, "s2", sampleBatch(2, "https://a"))

	urls, err := store.RecentURLs(ctx, 10)
	if err != nil {
		t.Fatalf("recent urls: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("expected deduped urls, got %v", urls)
	}
	if urls[0] != "https://a" {
		t.Errorf("re-shown url should rank newest, got %v", urls)
	}
}

func TestFeedbackUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	store.RecordBatch(ctx, "s1", sampleBatch(1, "https://a"))
	if err := store.RecordFeedback(ctx, "s1", "https://a", 5); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if err := store.RecordFeedback(ctx, "s1", "https://a", 2); err != nil {
		t.Fatalf("re-rate: %v", err)
	}

	items, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Rating != 2 {
		t.Errorf("latest rating should win: %+v", items)
	}
}

func TestClear(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	store.RecordBatch(ctx, "s1", sampleBatch(1, "https://a"))
	store.RecordFeedback(ctx, "s1", "https://a", 4)

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	items, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("history should be empty, got %+v", items)
	}
}

func TestOpenCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open with missing dirs: %v", err)
	}
	store.Close()
}
