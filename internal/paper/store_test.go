package paper_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"papermill/internal/logging"
	"papermill/internal/paper"
	"papermill/internal/testsupport"
)

func newStore(t *testing.T) *paper.Store {
	t.Helper()
	store, err := paper.NewStore(testsupport.NewConfig(t), logging.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func timePtr(value time.Time) *time.Time {
	return &value
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	store := newStore(t)
	papers, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(papers) != 0 {
		t.Fatalf("expected empty set, got %d records", len(papers))
	}
}

func TestLoadCorruptFileReturnsEmpty(t *testing.T) {
	store := newStore(t)
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	papers, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(papers) != 0 {
		t.Fatalf("expected corrupt file to load as empty, got %d records", len(papers))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	records := []paper.Paper{
		{Key: "papers/a.pdf", Filename: "a.pdf", Status: paper.StatusUploaded, UploadedAt: timePtr(time.Now().UTC())},
		{Key: "papers/b.pdf", Filename: "b.pdf", Status: paper.StatusExtracted},
	}
	if err := store.Save(ctx, records); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 records, got %d", len(loaded))
	}
	if loaded[0].Key != "papers/a.pdf" || loaded[1].Status != paper.StatusExtracted {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestUpsertMergesByKeyLastWriteWins(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, []paper.Paper{{Key: "papers/a.pdf", Status: paper.StatusUploaded}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Upsert(ctx, []paper.Paper{
		{Key: "papers/a.pdf", Status: paper.StatusExtracted},
		{Key: "papers/b.pdf", Status: paper.StatusUploaded},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 records after merge, got %d", len(loaded))
	}
	got, err := store.GetByKey(ctx, "papers/a.pdf")
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if got == nil || got.Status != paper.StatusExtracted {
		t.Fatalf("expected last write to win, got %+v", got)
	}
}

func TestGetByKeyAbsent(t *testing.T) {
	store := newStore(t)
	got, err := store.GetByKey(context.Background(), "papers/missing.pdf")
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing key, got %+v", got)
	}
}

func TestGetByKeySeparatorInsensitive(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, []paper.Paper{{Key: `papers/20260101/a.pdf`, Status: paper.StatusUploaded}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.GetByKey(ctx, `papers\20260101\a.pdf`)
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if got == nil {
		t.Fatal("expected backslash query to find forward-slash key")
	}

	if err := store.Save(ctx, []paper.Paper{{Key: `papers\20260101\b.pdf`, Status: paper.StatusUploaded}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err = store.GetByKey(ctx, `papers/20260101/b.pdf`)
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if got == nil {
		t.Fatal("expected forward-slash query to find backslash key")
	}
}

func TestUpdateMissingKeyReturnsFalse(t *testing.T) {
	store := newStore(t)
	found, err := store.Update(context.Background(), "papers/missing.pdf", func(p *paper.Paper) {
		p.Status = paper.StatusError
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if found {
		t.Fatal("expected Update on missing key to report false")
	}
}

func TestUpdateAppliesPartialMutation(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, []paper.Paper{{Key: "papers/a.pdf", Status: paper.StatusUploaded, Filename: "a.pdf"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	found, err := store.Update(ctx, "papers/a.pdf", func(p *paper.Paper) {
		p.Status = paper.StatusParsing
		p.TaskID = "task-1"
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !found {
		t.Fatal("expected Update to find record")
	}
	got, err := store.GetByKey(ctx, "papers/a.pdf")
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if got.Status != paper.StatusParsing || got.TaskID != "task-1" {
		t.Fatalf("mutation not applied: %+v", got)
	}
	if got.Filename != "a.pdf" {
		t.Fatalf("untouched field changed: %+v", got)
	}
}

func TestDelete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, []paper.Paper{{Key: "papers/a.pdf"}, {Key: "papers/b.pdf"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	removed, err := store.Delete(ctx, `papers\a.pdf`)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !removed {
		t.Fatal("expected delete to remove record via normalized key")
	}
	removed, err = store.Delete(ctx, "papers/a.pdf")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if removed {
		t.Fatal("expected second delete to be a no-op")
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Key != "papers/b.pdf" {
		t.Fatalf("unexpected remaining records: %+v", loaded)
	}
}

func TestConcurrentUpdatesDoNotInterleave(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	seed := make([]paper.Paper, 0, 8)
	for _, key := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		seed = append(seed, paper.Paper{Key: "papers/" + key + ".pdf", Status: paper.StatusUploaded})
	}
	if err := store.Save(ctx, seed); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var wg sync.WaitGroup
	for _, rec := range seed {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			if _, err := store.Update(ctx, key, func(p *paper.Paper) {
				p.Status = paper.StatusError
				p.ErrorMessage = "marked"
			}); err != nil {
				t.Errorf("Update %s: %v", key, err)
			}
		}(rec.Key)
	}
	wg.Wait()

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != len(seed) {
		t.Fatalf("record count changed under concurrency: %d", len(loaded))
	}
	for _, p := range loaded {
		if p.Status != paper.StatusError {
			t.Fatalf("lost update for %s: %+v", p.Key, p)
		}
	}
}
