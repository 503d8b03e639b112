package logsearch

import (
	"context"
	"time"

	"github.com/kailas-cloud/logweave/internal/domain"
)

// Repository defines the storage contract for log queries and retention.
type Repository interface {
	Search(ctx context.Context, filter domain.LogFilter) (int, []domain.Entry, error)
	GetByID(ctx context.Context, id int64) (domain.Entry, error)
	GetByTrace(ctx context.Context, traceID string) ([]domain.Entry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
