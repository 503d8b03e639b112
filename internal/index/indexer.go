// Package index turns canonical log entries into vector records in the
// similarity index and answers nearest-neighbor and temporal-window queries
// over them.
package index

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/logweave/internal/db"
	dbredis "github.com/kailas-cloud/logweave/internal/db/redis"
	"github.com/kailas-cloud/logweave/internal/domain"
	"github.com/kailas-cloud/logweave/internal/metrics"
)

// payloadFields are the metadata fields stored alongside each vector and
// returned by searches. Callers correlate vector records with log entries
// through these, never through ID equality.
var payloadFields = []string{"timestamp", "client_id", "severity", "trace_id", "service", "body", "summary"}

// store is the consumer interface for indexing operations.
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
}

// Config holds indexer settings.
type Config struct {
	Collection      string
	Dimensions      int
	BatchSize       int
	HNSWM           int
	HNSWEFConstruct int
}

// Indexer embeds log entries and upserts them as vector records.
// Collection bootstrap runs under a lock on first use, so concurrent
// first ingests cannot race FT.CREATE, and latches only on success so a
// transient backend failure does not disable indexing for the rest of
// the process lifetime.
type Indexer struct {
	store  store
	embed  domain.BatchEmbedder
	cfg    Config
	logger *zap.Logger

	bootstrapMu sync.Mutex
	ready       bool
}

// NewIndexer creates an embedding indexer.
func NewIndexer(s store, embed domain.BatchEmbedder, cfg Config, logger *zap.Logger) *Indexer {
	return &Indexer{store: s, embed: embed, cfg: cfg, logger: logger}
}

func (ix *Indexer) indexName() string {
	return ix.cfg.Collection + ":idx"
}

func (ix *Indexer) key(id string) string {
	return ix.cfg.Collection + ":" + id
}

// EnsureCollection creates the FT index with the configured dimension and
// cosine distance if it does not exist yet. Idempotent: once a probe or
// create has succeeded the expensive round-trip is skipped; failures are
// retried on the next call.
func (ix *Indexer) EnsureCollection(ctx context.Context) error {
	ix.bootstrapMu.Lock()
	defer ix.bootstrapMu.Unlock()

	if ix.ready {
		return nil
	}
	if err := ix.ensureCollection(ctx); err != nil {
		return err
	}
	ix.ready = true
	return nil
}

func (ix *Indexer) ensureCollection(ctx context.Context) error {
	if ix.cfg.Dimensions <= 0 {
		return fmt.Errorf("vector dimension %d: %w", ix.cfg.Dimensions, domain.ErrConfiguration)
	}

	exists, err := ix.store.IndexExists(ctx, ix.indexName())
	if err != nil {
		return fmt.Errorf("probe collection: %v: %w", err, domain.ErrIndexUnavailable)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     ix.indexName(),
		Prefixes: []string{ix.cfg.Collection + ":"},
		Fields: []db.IndexField{
			{Name: "timestamp", Type: db.IndexFieldNumeric},
			{Name: "client_id", Type: db.IndexFieldTag},
			{Name: "severity", Type: db.IndexFieldTag},
			{Name: "trace_id", Type: db.IndexFieldTag},
			{Name: "service", Type: db.IndexFieldTag},
			{Name: "summary", Type: db.IndexFieldText},
			{
				Name:              "vector",
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         ix.cfg.Dimensions,
				VectorDistance:    db.DistanceCosine,
				VectorM:           ix.cfg.HNSWM,
				VectorEFConstruct: ix.cfg.HNSWEFConstruct,
			},
		},
	}

	if err := ix.store.CreateIndex(ctx, def); err != nil {
		if err == db.ErrIndexExists {
			// Lost a create race with another process; the collection is there.
			return nil
		}
		return fmt.Errorf("create collection: %v: %w", err, domain.ErrIndexUnavailable)
	}

	ix.logger.Info("similarity collection created",
		zap.String("collection", ix.cfg.Collection),
		zap.Int("dimensions", ix.cfg.Dimensions),
	)
	return nil
}

// Index embeds and upserts entries, best-effort: failures are logged and
// shrink the returned ID list, they never propagate. The caller's store
// append has already committed and must not be affected.
func (ix *Indexer) Index(ctx context.Context, entries []domain.Entry) []string {
	if len(entries) == 0 {
		return nil
	}

	if err := ix.EnsureCollection(ctx); err != nil {
		ix.logger.Warn("skipping vector indexing, collection unavailable", zap.Error(err))
		metrics.IngestRecordsTotal.WithLabelValues(metrics.OutcomeIndexFailed).Add(float64(len(entries)))
		return nil
	}

	batchSize := ix.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(entries)
	}

	var ids []string
	for start := 0; start < len(entries); start += batchSize {
		end := min(start+batchSize, len(entries))
		ids = append(ids, ix.indexBatch(ctx, entries[start:end])...)
	}
	return ids
}

func (ix *Indexer) indexBatch(ctx context.Context, entries []domain.Entry) []string {
	texts := make([]string, len(entries))
	for i := range entries {
		texts[i] = entries[i].SummaryText()
	}

	res, err := ix.embed.BatchEmbed(ctx, texts)
	if err != nil {
		ix.logger.Warn("embedding batch failed",
			zap.Int("records", len(entries)),
			zap.Error(err),
		)
		metrics.IngestRecordsTotal.WithLabelValues(metrics.OutcomeIndexFailed).Add(float64(len(entries)))
		return nil
	}

	items := make([]db.HashSetItem, 0, len(entries))
	ids := make([]string, 0, len(entries))
	skipped := 0

	for i := range entries {
		vec := res.Embeddings[i]
		if len(vec) != ix.cfg.Dimensions {
			ix.logger.Warn("vector dimension mismatch, record not indexed",
				zap.Int("got", len(vec)),
				zap.Int("want", ix.cfg.Dimensions),
			)
			skipped++
			continue
		}

		id := uuid.NewString()
		items = append(items, db.HashSetItem{
			Key:    ix.key(id),
			Fields: vectorFields(&entries[i], texts[i], vec),
		})
		ids = append(ids, id)
	}

	if skipped > 0 {
		metrics.IngestRecordsTotal.WithLabelValues(metrics.OutcomeIndexFailed).Add(float64(skipped))
	}
	if len(items) == 0 {
		return nil
	}

	if err := ix.store.HSetMulti(ctx, items); err != nil {
		ix.logger.Warn("vector upsert failed",
			zap.Int("records", len(items)),
			zap.Error(err),
		)
		metrics.IngestRecordsTotal.WithLabelValues(metrics.OutcomeIndexFailed).Add(float64(len(items)))
		return nil
	}

	metrics.IngestRecordsTotal.WithLabelValues(metrics.OutcomeIndexed).Add(float64(len(ids)))
	return ids
}

func vectorFields(e *domain.Entry, summary string, vec []float32) map[string]string {
	fields := map[string]string{
		"vector":    dbredis.VectorToBlob(vec),
		"timestamp": strconv.FormatInt(e.Timestamp.UnixMilli(), 10),
		"client_id": e.ClientID,
		"severity":  e.Severity,
		"body":      e.Body,
		"summary":   summary,
	}
	if e.TraceID != "" {
		fields["trace_id"] = e.TraceID
	}
	if svc := e.Attributes["service"]; svc != "" {
		fields["service"] = svc
	}
	return fields
}
