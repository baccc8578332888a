package ingest

import (
	"context"
	"fmt"

	"github.com/teampulse/teampulse-backend/internal/domain"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
	"github.com/teampulse/teampulse-backend/internal/platform/qdrant"
	"github.com/teampulse/teampulse-backend/internal/utils"
)

// embedder produces one vector per input text.
type embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// store is the slice of the vector store client the uploader needs.
type store interface {
	EnsureCollection(ctx context.Context, collection string) error
	CollectionExists(ctx context.Context, collection string) (bool, error)
	Upsert(ctx context.Context, collection string, points []qdrant.Point) error
	DeleteCollection(ctx context.Context, collection string) error
}

// Uploader embeds normalized records and writes them to the vector store.
// Record IDs are deterministic, so re-running an upload overwrites the same
// points instead of accumulating duplicates.
type Uploader struct {
	log       *logger.Logger
	embedder  embedder
	store     store
	batchSize int
}

func NewUploader(emb embedder, st store, log *logger.Logger) (*Uploader, error) {
	if emb == nil || st == nil || log == nil {
		return nil, fmt.Errorf("uploader: embedder, store and logger required")
	}
	l := log.With("service", "Uploader")
	return &Uploader{
		log:       l,
		embedder:  emb,
		store:     st,
		batchSize: utils.GetEnvAsInt("UPLOAD_BATCH_SIZE", 64, l),
	}, nil
}

// Upload writes records into the collection for source. The collection is
// created on first use. An empty record set is a no-op.
func (u *Uploader) Upload(ctx context.Context, source domain.Source, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	collection := domain.CollectionFor(source)
	if err := u.store.EnsureCollection(ctx, collection); err != nil {
		return fmt.Errorf("ensure collection %s: %w", collection, err)
	}

	for start := 0; start < len(records); start += u.batchSize {
		end := start + u.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		texts := make([]string, len(batch))
		for i, rec := range batch {
			texts[i] = rec.Text
		}
		vectors, err := u.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}

		points := make([]qdrant.Point, len(batch))
		for i, rec := range batch {
			rec.Payload["page_content"] = rec.Text
			points[i] = qdrant.Point{ID: rec.ID, Vector: vectors[i], Payload: rec.Payload}
		}
		if err := u.store.Upsert(ctx, collection, points); err != nil {
			return fmt.Errorf("upsert batch [%d:%d]: %w", start, end, err)
		}
	}

	u.log.Info("upload complete", "collection", collection, "records", len(records))
	return nil
}

// Flush drops every source collection. The next upload recreates them empty.
func (u *Uploader) Flush(ctx context.Context) error {
	sources := []domain.Source{
		domain.SourceGit,
		domain.SourceReadme,
		domain.SourceTeams,
		domain.SourceEmail,
		domain.SourceDocs,
	}
	for _, source := range sources {
		collection := domain.CollectionFor(source)
		exists, err := u.store.CollectionExists(ctx, collection)
		if err != nil {
			return fmt.Errorf("flush %s: %w", collection, err)
		}
		if !exists {
			continue
		}
		if err := u.store.DeleteCollection(ctx, collection); err != nil {
			return fmt.Errorf("flush %s: %w", collection, err)
		}
		u.log.Info("collection flushed", "collection", collection)
	}
	return nil
}
