// Package vectorsearch answers similarity and temporal-context queries
// over the vector index. Both are best-effort: index failures degrade to
// empty results instead of propagating.
package vectorsearch

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/logweave/internal/domain"
	"github.com/kailas-cloud/logweave/internal/index"
	"github.com/kailas-cloud/logweave/internal/logger"
)

// DefaultLimit is the similarity result count when the caller gives none.
const DefaultLimit = 10

// DefaultWindow is the temporal-context window when the caller gives none.
const DefaultWindow = 10

// Service runs similarity and temporal-context queries.
type Service struct {
	repo   Repository
	embed  Embedder
	logger *zap.Logger
}

// New creates a vector query service.
func New(repo Repository, embed Embedder, logger *zap.Logger) *Service {
	return &Service{repo: repo, embed: embed, logger: logger}
}

// Search embeds the query text and returns up to limit hits ranked by
// similarity, higher first. Any failure (embedding or index) yields an
// empty result set; availability wins over completeness here.
func (s *Service) Search(ctx context.Context, text string, limit int, filter domain.VectorFilter) []domain.VectorHit {
	log := logger.FromContext(ctx, s.logger)
	if limit <= 0 {
		limit = DefaultLimit
	}

	res, err := s.embed.Embed(ctx, text)
	if err != nil {
		log.Warn("query embedding failed, returning empty result", zap.Error(err))
		return []domain.VectorHit{}
	}

	hits, err := s.repo.SearchKNN(ctx, res.Embedding, limit, filter)
	if err != nil {
		log.Warn("similarity search failed, returning empty result", zap.Error(err))
		return []domain.VectorHit{}
	}
	return hits
}

// Context assembles the chronological strip around a vector record:
// up to window entries before the target, the target, and up to window
// entries after, each half ordered oldest to newest.
//
// An absent target yields an all-empty context. A target without a
// timestamp cannot anchor the windows; it comes back as the sole
// "before" element. Index failures degrade to empty like Search.
func (s *Service) Context(ctx context.Context, logID string, window int) domain.TemporalContext {
	log := logger.FromContext(ctx, s.logger)
	if window <= 0 {
		window = DefaultWindow
	}

	target, found, err := s.repo.Get(ctx, logID)
	if err != nil {
		log.Warn("temporal context lookup failed, returning empty context",
			zap.String("log_id", logID),
			zap.Error(err),
		)
		return emptyContext()
	}
	if !found {
		return emptyContext()
	}

	ts, ok := index.HitTimestamp(target)
	if !ok {
		return domain.TemporalContext{
			Before: []domain.VectorHit{target},
			Target: &target,
			After:  []domain.VectorHit{},
		}
	}

	before, err := s.repo.Before(ctx, ts, window)
	if err != nil {
		log.Warn("temporal context window failed, returning empty context",
			zap.String("log_id", logID),
			zap.Error(err),
		)
		return emptyContext()
	}

	after, err := s.repo.After(ctx, ts, window)
	if err != nil {
		log.Warn("temporal context window failed, returning empty context",
			zap.String("log_id", logID),
			zap.Error(err),
		)
		return emptyContext()
	}

	if before == nil {
		before = []domain.VectorHit{}
	}
	if after == nil {
		after = []domain.VectorHit{}
	}
	return domain.TemporalContext{Before: before, Target: &target, After: after}
}

func emptyContext() domain.TemporalContext {
	return domain.TemporalContext{
		Before: []domain.VectorHit{},
		After:  []domain.VectorHit{},
	}
}
