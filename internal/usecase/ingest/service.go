// Package ingest orchestrates the batch pipeline: decode, normalize,
// persist, index.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/logweave/internal/domain"
	"github.com/kailas-cloud/logweave/internal/logger"
	"github.com/kailas-cloud/logweave/internal/metrics"
)

// Batch report statuses.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
)

// Report is the outcome of one ingested batch.
type Report struct {
	Status    string `json:"status"`
	Processed int    `json:"processed"`
	Indexed   int    `json:"indexed,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Service runs the ingestion pipeline for inbound batches. Independent
// batches may be ingested concurrently; the only shared state is the
// store's transaction boundary and the indexer's bootstrap latch.
type Service struct {
	codec   Decoder
	store   Appender
	indexer VectorIndexer

	rejectUnattributed bool
	hooks              []Hook
	logger             *zap.Logger
}

// New creates an ingestion service. When rejectUnattributed is set,
// plaintext payloads without a verified client identity are refused
// instead of attributed to the "unknown" client.
func New(codec Decoder, store Appender, indexer VectorIndexer, rejectUnattributed bool, logger *zap.Logger) *Service {
	return &Service{
		codec:              codec,
		store:              store,
		indexer:            indexer,
		rejectUnattributed: rejectUnattributed,
		logger:             logger,
	}
}

// AddHook registers a post-persist observer. Not safe to call after the
// service started serving requests.
func (s *Service) AddHook(h Hook) {
	s.hooks = append(s.hooks, h)
}

// Ingest decodes a payload, normalizes its records, persists the
// survivors in one transaction, and indexes them best-effort.
//
// Decode and authentication failures fail the whole batch. A record
// that fails validation is skipped, not fatal; a batch where nothing
// survives normalization reports a warning. A persist failure is fatal.
// An index failure only lowers the indexed count.
func (s *Service) Ingest(ctx context.Context, contentType string, raw []byte) (Report, error) {
	log := logger.FromContext(ctx, s.logger)

	batch, clientID, err := s.codec.Decode(contentType, raw)
	if err != nil {
		metrics.IngestBatchesTotal.WithLabelValues("failed").Inc()
		return Report{}, err
	}

	if clientID == "" {
		if s.rejectUnattributed {
			metrics.IngestBatchesTotal.WithLabelValues("failed").Inc()
			return Report{}, fmt.Errorf("unattributed payload refused: %w", domain.ErrAuthentication)
		}
		clientID = domain.ClientUnknown
	}

	now := time.Now().UTC()
	entries := make([]domain.Entry, 0, len(batch.Records))
	invalid := 0

	for i, rec := range batch.Records {
		entry, err := domain.Normalize(rec, clientID, now)
		if err != nil {
			invalid++
			log.Warn("record failed validation, skipped",
				zap.Int("position", i),
				zap.String("client_id", clientID),
				zap.Error(err),
			)
			continue
		}
		entries = append(entries, entry)
	}
	if invalid > 0 {
		metrics.IngestRecordsTotal.WithLabelValues(metrics.OutcomeInvalid).Add(float64(invalid))
	}

	if len(entries) == 0 {
		metrics.IngestBatchesTotal.WithLabelValues(StatusWarning).Inc()
		return Report{Status: StatusWarning, Detail: "no valid entries"}, nil
	}

	persisted, err := s.store.Append(ctx, entries)
	if err != nil {
		metrics.IngestBatchesTotal.WithLabelValues("failed").Inc()
		return Report{}, fmt.Errorf("persist batch: %w", err)
	}
	metrics.IngestRecordsTotal.WithLabelValues(metrics.OutcomePersisted).Add(float64(persisted))

	// Persistence has committed; indexing failures from here on only
	// shrink the indexed count.
	ids := s.indexer.Index(ctx, entries)

	for _, h := range s.hooks {
		h.AfterPersist(ctx, clientID, entries)
	}

	metrics.IngestBatchesTotal.WithLabelValues(StatusSuccess).Inc()
	log.Info("batch ingested",
		zap.String("client_id", clientID),
		zap.Int("processed", persisted),
		zap.Int("invalid", invalid),
		zap.Int("indexed", len(ids)),
	)
	return Report{Status: StatusSuccess, Processed: persisted, Indexed: len(ids)}, nil
}
