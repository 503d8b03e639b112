// Package store defines the durable log store contract.
package store

import (
	"context"
	"time"

	"github.com/kailas-cloud/logweave/internal/domain"
)

// LogStore persists canonical log entries and answers field/text queries.
type LogStore interface {
	// Append writes entries in a single transaction. All-or-nothing: on
	// failure nothing is committed and the error wraps domain.ErrStoreFailure.
	// Returns the number of accepted entries.
	Append(ctx context.Context, entries []domain.Entry) (int, error)
	// Search returns the total number of matches before pagination and one
	// page of entries ordered by timestamp descending.
	Search(ctx context.Context, filter domain.LogFilter) (int, []domain.Entry, error)
	// GetByID returns one entry, or domain.ErrNotFound.
	GetByID(ctx context.Context, id int64) (domain.Entry, error)
	// GetByTrace returns all entries of a trace ordered by timestamp ascending.
	GetByTrace(ctx context.Context, traceID string) ([]domain.Entry, error)
	// DeleteOlderThan removes entries with timestamp before cutoff.
	// Transactional per invocation; returns the deleted count.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
