package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// recordNamespaceUUID seeds deterministic record IDs so that re-ingesting the
// same natural key overwrites the stored point instead of duplicating it.
var recordNamespaceUUID = uuid.MustParse("7c9e3a52-8d14-4f6b-9b0a-2e5d1c4f8a37")

// Record is the uniform searchable unit written to the vector store. Payload
// always carries "author" (int64, 0 = unknown), "author_raw", "date"
// (RFC3339, canonical timezone) and "type".
type Record struct {
	ID      string
	Text    string
	Payload map[string]any
}

// RecordID derives the synthetic storage ID from (source, natural key, chunk
// index) via a stable hash.
func RecordID(source Source, naturalKey string, chunkIndex int) string {
	seed := fmt.Sprintf("%s|%s|%d", source, naturalKey, chunkIndex)
	return uuid.NewSHA1(recordNamespaceUUID, []byte(seed)).String()
}
