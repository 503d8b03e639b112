package ingest

import (
	"context"

	"github.com/kailas-cloud/logweave/internal/domain"
)

// Decoder turns raw payload bytes into a batch plus the verified client
// identity. An empty client ID means the payload carried no identity
// (plaintext transport).
type Decoder interface {
	Decode(contentType string, raw []byte) (domain.Batch, string, error)
}

// Appender persists normalized entries atomically.
type Appender interface {
	Append(ctx context.Context, entries []domain.Entry) (int, error)
}

// VectorIndexer upserts entries into the similarity index, best-effort.
type VectorIndexer interface {
	Index(ctx context.Context, entries []domain.Entry) []string
}

// Hook observes persisted batches. Hooks run after the store transaction
// has committed and must not assume the entries were indexed.
type Hook interface {
	AfterPersist(ctx context.Context, clientID string, entries []domain.Entry)
}
