package index

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/logweave/internal/db"
	"github.com/kailas-cloud/logweave/internal/domain"
)

// Searcher answers similarity and temporal-window queries against the
// vector collection populated by Indexer.
type Searcher struct {
	store      store
	collection string
	logger     *zap.Logger
}

// NewSearcher creates a read-side view over the vector collection.
func NewSearcher(s store, collection string, logger *zap.Logger) *Searcher {
	return &Searcher{store: s, collection: collection, logger: logger}
}

func (s *Searcher) indexName() string {
	return s.collection + ":idx"
}

// SearchKNN runs nearest-neighbor search with an optional conjunctive
// pre-filter and returns hits ranked by similarity, higher first.
func (s *Searcher) SearchKNN(ctx context.Context, vector []float32, k int, filter domain.VectorFilter) ([]domain.VectorHit, error) {
	res, err := s.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    s.indexName(),
		Filter:       filter,
		Vector:       vector,
		K:            k,
		ReturnFields: payloadFields,
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %v: %w", err, domain.ErrIndexUnavailable)
	}
	return s.toHits(res.Entries), nil
}

// Get fetches a single vector record by its ID. The second return value
// is false when the record does not exist.
func (s *Searcher) Get(ctx context.Context, id string) (domain.VectorHit, bool, error) {
	fields, err := s.store.HGetAll(ctx, s.collection+":"+id)
	if err != nil {
		return domain.VectorHit{}, false, fmt.Errorf("get vector record: %v: %w", err, domain.ErrIndexUnavailable)
	}
	if len(fields) == 0 {
		return domain.VectorHit{}, false, nil
	}
	delete(fields, "vector")
	return domain.VectorHit{ID: id, Payload: fields}, true, nil
}

// Before returns up to n records strictly earlier than ts, ordered
// oldest to newest so the caller can lay them out chronologically.
func (s *Searcher) Before(ctx context.Context, ts int64, n int) ([]domain.VectorHit, error) {
	// Sort descending to keep the n records nearest the target, then
	// flip back into chronological order.
	hits, err := s.rangeQuery(ctx, fmt.Sprintf("@timestamp:[-inf (%d]", ts), false, n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(hits)-1; i < j; i, j = i+1, j-1 {
		hits[i], hits[j] = hits[j], hits[i]
	}
	return hits, nil
}

// After returns up to n records strictly later than ts, oldest first.
func (s *Searcher) After(ctx context.Context, ts int64, n int) ([]domain.VectorHit, error) {
	return s.rangeQuery(ctx, fmt.Sprintf("@timestamp:[(%d +inf]", ts), true, n)
}

func (s *Searcher) rangeQuery(ctx context.Context, query string, asc bool, limit int) ([]domain.VectorHit, error) {
	res, err := s.store.SearchList(ctx, &db.ListQuery{
		IndexName:    s.indexName(),
		Query:        query,
		SortBy:       "timestamp",
		SortAsc:      asc,
		Limit:        limit,
		ReturnFields: payloadFields,
	})
	if err != nil {
		return nil, fmt.Errorf("range query: %v: %w", err, domain.ErrIndexUnavailable)
	}
	return s.toHits(res.Entries), nil
}

func (s *Searcher) toHits(entries []db.SearchEntry) []domain.VectorHit {
	hits := make([]domain.VectorHit, 0, len(entries))
	for _, e := range entries {
		hits = append(hits, domain.VectorHit{
			ID:      strings.TrimPrefix(e.Key, s.collection+":"),
			Score:   e.Score,
			Payload: e.Fields,
		})
	}
	return hits
}

// HitTimestamp extracts the millisecond timestamp from a hit's payload.
// Records indexed before the timestamp field existed may lack it.
func HitTimestamp(hit domain.VectorHit) (int64, bool) {
	raw, ok := hit.Payload["timestamp"]
	if !ok || raw == "" {
		return 0, false
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}
