package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/teampulse/teampulse-backend/internal/domain"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
	"github.com/teampulse/teampulse-backend/internal/platform/qdrant"
)

type fakeEmbedder struct {
	calls int
	fail  bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("embedding backend down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

type fakeStore struct {
	collections map[string]bool
	upserts     map[string][]qdrant.Point
	deleted     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		collections: make(map[string]bool),
		upserts:     make(map[string][]qdrant.Point),
	}
}

func (f *fakeStore) EnsureCollection(ctx context.Context, collection string) error {
	f.collections[collection] = true
	return nil
}

func (f *fakeStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	return f.collections[collection], nil
}

func (f *fakeStore) Upsert(ctx context.Context, collection string, points []qdrant.Point) error {
	f.upserts[collection] = append(f.upserts[collection], points...)
	return nil
}

func (f *fakeStore) DeleteCollection(ctx context.Context, collection string) error {
	delete(f.collections, collection)
	f.deleted = append(f.deleted, collection)
	return nil
}

func someRecords(n int) []domain.Record {
	var records []domain.Record
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("acme/svc@sha%d", i)
		records = append(records, domain.Record{
			ID:      domain.RecordID(domain.SourceGit, key, 0),
			Text:    "commit " + key,
			Payload: map[string]any{"type": "commit"},
		})
	}
	return records
}

func TestUploadWritesEveryRecord(t *testing.T) {
	t.Setenv("UPLOAD_BATCH_SIZE", "4")
	emb := &fakeEmbedder{}
	store := newFakeStore()
	up, err := NewUploader(emb, store, logger.Nop())
	if err != nil {
		t.Fatalf("new uploader: %v", err)
	}

	if err := up.Upload(context.Background(), domain.SourceGit, someRecords(10)); err != nil {
		t.Fatalf("upload: %v", err)
	}

	points := store.upserts["activity_git"]
	if len(points) != 10 {
		t.Fatalf("points upserted: want=10 got=%d", len(points))
	}
	// 10 records at batch size 4 is 3 embedding calls
	if emb.calls != 3 {
		t.Fatalf("embed calls: want=3 got=%d", emb.calls)
	}
	if !store.collections["activity_git"] {
		t.Fatalf("collection should have been ensured")
	}
	for _, p := range points {
		if p.ID == "" || len(p.Vector) == 0 {
			t.Fatalf("bad point: %+v", p)
		}
		if text, _ := p.Payload["page_content"].(string); text == "" {
			t.Fatalf("point %s missing page_content", p.ID)
		}
	}
}

func TestUploadEmptyIsNoop(t *testing.T) {
	emb := &fakeEmbedder{}
	store := newFakeStore()
	up, err := NewUploader(emb, store, logger.Nop())
	if err != nil {
		t.Fatalf("new uploader: %v", err)
	}

	if err := up.Upload(context.Background(), domain.SourceGit, nil); err != nil {
		t.Fatalf("empty upload: %v", err)
	}
	if emb.calls != 0 {
		t.Fatalf("no embedding expected, got %d calls", emb.calls)
	}
	if len(store.collections) != 0 {
		t.Fatalf("no collection should be created for empty upload")
	}
}

func TestUploadPropagatesEmbedFailure(t *testing.T) {
	emb := &fakeEmbedder{fail: true}
	store := newFakeStore()
	up, err := NewUploader(emb, store, logger.Nop())
	if err != nil {
		t.Fatalf("new uploader: %v", err)
	}

	if err := up.Upload(context.Background(), domain.SourceGit, someRecords(2)); err == nil {
		t.Fatalf("expected embed failure to propagate")
	}
	if len(store.upserts["activity_git"]) != 0 {
		t.Fatalf("nothing should be upserted after embed failure")
	}
}

func TestFlushDropsOnlyExistingCollections(t *testing.T) {
	emb := &fakeEmbedder{}
	store := newFakeStore()
	store.collections["activity_git"] = true
	store.collections["activity_docs"] = true
	up, err := NewUploader(emb, store, logger.Nop())
	if err != nil {
		t.Fatalf("new uploader: %v", err)
	}

	if err := up.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(store.deleted) != 2 {
		t.Fatalf("deletes: want=2 got=%v", store.deleted)
	}
	if len(store.collections) != 0 {
		t.Fatalf("collections should be gone after flush: %v", store.collections)
	}
}
