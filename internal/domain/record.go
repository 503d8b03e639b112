package domain

import (
	"fmt"
	"time"
)

// ClientUnknown is the sentinel client identifier for unattributed batches.
const ClientUnknown = "unknown"

// WireRecord is one log record as sent by a client. It exists only during
// decoding; Normalize turns it into an Entry.
type WireRecord struct {
	Timestamp   int64             `json:"timestamp"` // epoch milliseconds
	Severity    string            `json:"severity"`
	Body        string            `json:"body"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Resource    map[string]string `json:"resource,omitempty"`
	TraceID     string            `json:"trace_id,omitempty"`
	SpanID      string            `json:"span_id,omitempty"`
	SeverityNum int               `json:"severity_num,omitempty"`
}

// Batch is the wire-level payload of one ingestion request.
type Batch struct {
	Records []WireRecord `json:"records"`
}

// Entry is the canonical, storage-ready representation of one log record.
// Immutable after creation except for retention deletion.
type Entry struct {
	ID          int64
	Timestamp   time.Time // event time, from the client
	ClientID    string
	Severity    string
	Body        string
	Attributes  map[string]string
	Resource    map[string]string
	TraceID     string
	SpanID      string
	SeverityNum int
	CreatedAt   time.Time // ingestion time, independent of Timestamp
}

// Normalize converts a wire record into a canonical entry, applying defaults.
// It fails only when severity or body is absent, or the timestamp is
// negative. A missing (zero) timestamp falls back to the ingestion instant:
// this keeps ingestion resilient to client clock bugs at the cost of losing
// the true event time.
func Normalize(rec WireRecord, clientID string, now time.Time) (Entry, error) {
	if rec.Severity == "" {
		return Entry{}, fmt.Errorf("record has no severity: %w", ErrValidation)
	}
	if rec.Body == "" {
		return Entry{}, fmt.Errorf("record has no body: %w", ErrValidation)
	}
	if rec.Timestamp < 0 {
		return Entry{}, fmt.Errorf("record timestamp %d is negative: %w", rec.Timestamp, ErrValidation)
	}

	ts := now
	if rec.Timestamp > 0 {
		ts = time.UnixMilli(rec.Timestamp).UTC()
	}

	return Entry{
		Timestamp:   ts,
		ClientID:    clientID,
		Severity:    rec.Severity,
		Body:        rec.Body,
		Attributes:  rec.Attributes,
		Resource:    rec.Resource,
		TraceID:     rec.TraceID,
		SpanID:      rec.SpanID,
		SeverityNum: rec.SeverityNum,
		CreatedAt:   now.UTC(),
	}, nil
}

// summaryAttrs is the allow-list of attribute keys included in embedding
// summary text. Bounds token volume regardless of how many arbitrary
// attributes a client sends.
var summaryAttrs = []string{"service", "component", "error_type", "operation"}

// SummaryText derives the text that gets embedded for an entry:
// "[SEVERITY] body" plus allow-listed attribute values.
func (e *Entry) SummaryText() string {
	s := "[" + e.Severity + "] " + e.Body
	for _, key := range summaryAttrs {
		if v, ok := e.Attributes[key]; ok && v != "" {
			s += " " + v
		}
	}
	return s
}
