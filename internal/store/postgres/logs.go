package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/logweave/internal/domain"
)

const entryColumns = `id, timestamp, client_id, severity, body, attributes, resource,
	COALESCE(trace_id, ''), COALESCE(span_id, ''), COALESCE(severity_num, 0), created_at`

// Append writes entries in a single transaction. If any insert fails the
// transaction is rolled back and the whole batch is rejected.
func (s *Store) Append(ctx context.Context, entries []domain.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %v: %w", err, domain.ErrStoreFailure)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const query = `
		INSERT INTO log_entries
			(timestamp, client_id, severity, body, attributes, resource, trace_id, span_id, severity_num, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for i := range entries {
		e := &entries[i]

		attrs, err := marshalNullable(e.Attributes)
		if err != nil {
			return 0, fmt.Errorf("marshal attributes: %v: %w", err, domain.ErrStoreFailure)
		}
		res, err := marshalNullable(e.Resource)
		if err != nil {
			return 0, fmt.Errorf("marshal resource: %v: %w", err, domain.ErrStoreFailure)
		}

		_, err = tx.ExecContext(ctx, query,
			e.Timestamp,
			e.ClientID,
			e.Severity,
			e.Body,
			attrs,
			res,
			nullString(e.TraceID),
			nullString(e.SpanID),
			nullInt(e.SeverityNum),
			e.CreatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting log entry: %v: %w", err, domain.ErrStoreFailure)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %v: %w", err, domain.ErrStoreFailure)
	}

	return len(entries), nil
}

// Search counts all matches, then fetches one page ordered by timestamp
// descending.
func (s *Store) Search(ctx context.Context, filter domain.LogFilter) (int, []domain.Entry, error) {
	filter.Clamp()
	where, args := buildWhere(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM log_entries" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("counting logs: %v: %w", err, domain.ErrStoreFailure)
	}
	if total == 0 {
		return 0, nil, nil
	}

	pageQuery := fmt.Sprintf(
		"SELECT %s FROM log_entries%s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d",
		entryColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, pageQuery, args...)
	if err != nil {
		return 0, nil, fmt.Errorf("querying logs: %v: %w", err, domain.ErrStoreFailure)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return 0, nil, err
	}
	return total, entries, nil
}

// GetByID returns one entry by primary key.
func (s *Store) GetByID(ctx context.Context, id int64) (domain.Entry, error) {
	query := fmt.Sprintf("SELECT %s FROM log_entries WHERE id = $1", entryColumns)

	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entry{}, fmt.Errorf("log entry %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Entry{}, fmt.Errorf("querying log entry: %v: %w", err, domain.ErrStoreFailure)
	}
	return entry, nil
}

// GetByTrace returns all entries of a trace ordered by timestamp ascending.
func (s *Store) GetByTrace(ctx context.Context, traceID string) ([]domain.Entry, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM log_entries WHERE trace_id = $1 ORDER BY timestamp ASC", entryColumns,
	)

	rows, err := s.db.QueryContext(ctx, query, traceID)
	if err != nil {
		return nil, fmt.Errorf("querying trace logs: %v: %w", err, domain.ErrStoreFailure)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// DeleteOlderThan removes entries with timestamp before cutoff. A single
// DELETE statement, so all matched rows go or none do.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM log_entries WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting old logs: %v: %w", err, domain.ErrStoreFailure)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted logs: %v: %w", err, domain.ErrStoreFailure)
	}

	if deleted > 0 {
		s.logger.Info("retention sweep",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
	return int(deleted), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (domain.Entry, error) {
	var e domain.Entry
	var attrs, res []byte

	err := row.Scan(
		&e.ID,
		&e.Timestamp,
		&e.ClientID,
		&e.Severity,
		&e.Body,
		&attrs,
		&res,
		&e.TraceID,
		&e.SpanID,
		&e.SeverityNum,
		&e.CreatedAt,
	)
	if err != nil {
		return domain.Entry{}, err
	}

	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &e.Attributes); err != nil {
			return domain.Entry{}, fmt.Errorf("unmarshal attributes: %w", err)
		}
	}
	if len(res) > 0 {
		if err := json.Unmarshal(res, &e.Resource); err != nil {
			return domain.Entry{}, fmt.Errorf("unmarshal resource: %w", err)
		}
	}
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]domain.Entry, error) {
	var entries []domain.Entry

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning log row: %v: %w", err, domain.ErrStoreFailure)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating log rows: %v: %w", err, domain.ErrStoreFailure)
	}
	return entries, nil
}

func marshalNullable(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
