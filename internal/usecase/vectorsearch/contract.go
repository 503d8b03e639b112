package vectorsearch

import (
	"context"

	"github.com/kailas-cloud/logweave/internal/domain"
)

// Repository defines the vector index contract for queries.
type Repository interface {
	SearchKNN(ctx context.Context, vector []float32, k int, filter domain.VectorFilter) ([]domain.VectorHit, error)
	Get(ctx context.Context, id string) (domain.VectorHit, bool, error)
	Before(ctx context.Context, ts int64, n int) ([]domain.VectorHit, error)
	After(ctx context.Context, ts int64, n int) ([]domain.VectorHit, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
