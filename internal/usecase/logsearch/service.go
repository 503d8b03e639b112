// Package logsearch serves read queries and retention over the durable
// log store.
package logsearch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/logweave/internal/domain"
)

// Service answers log queries and runs retention sweeps.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// New creates a log query service.
func New(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Search returns the total match count and one page of entries, newest
// first. Pagination bounds are clamped before hitting the store.
func (s *Service) Search(ctx context.Context, filter domain.LogFilter) (int, []domain.Entry, error) {
	filter.Clamp()
	total, entries, err := s.repo.Search(ctx, filter)
	if err != nil {
		return 0, nil, fmt.Errorf("search logs: %w", err)
	}
	return total, entries, nil
}

// Get returns a single entry by ID.
func (s *Service) Get(ctx context.Context, id int64) (domain.Entry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("get log %d: %w", id, err)
	}
	return entry, nil
}

// Trace returns all entries for a trace, oldest first.
func (s *Service) Trace(ctx context.Context, traceID string) ([]domain.Entry, error) {
	if traceID == "" {
		return nil, fmt.Errorf("empty trace id: %w", domain.ErrValidation)
	}
	entries, err := s.repo.GetByTrace(ctx, traceID)
	if err != nil {
		return nil, fmt.Errorf("get trace %s: %w", traceID, err)
	}
	return entries, nil
}

// Sweep deletes entries older than maxAge and returns the count removed.
func (s *Service) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention sweep: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("retention sweep removed entries",
			zap.Int("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
	return deleted, nil
}
