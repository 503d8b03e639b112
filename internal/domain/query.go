package domain

import "time"

// Pagination bounds for log store searches.
const (
	DefaultSearchLimit = 100
	MaxSearchLimit     = 1000
)

// LogFilter selects log entries in the durable store. Provided fields are
// combined conjunctively; zero values mean "not filtered".
type LogFilter struct {
	ClientID      string
	Severity      string
	TraceID       string
	BodySubstring string // case-insensitive substring match
	Start         time.Time
	End           time.Time
	Limit         int
	Offset        int
}

// Clamp normalizes pagination: limit defaults to DefaultSearchLimit, is
// capped at MaxSearchLimit and floored at 1; offset is floored at 0.
func (f *LogFilter) Clamp() {
	if f.Limit == 0 {
		f.Limit = DefaultSearchLimit
	}
	if f.Limit < 1 {
		f.Limit = 1
	}
	if f.Limit > MaxSearchLimit {
		f.Limit = MaxSearchLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// TimeRange bounds similarity search by event timestamp (epoch milliseconds,
// inclusive on both ends).
type TimeRange struct {
	GTE *int64
	LTE *int64
}

// VectorFilter restricts similarity search: exact metadata matches plus an
// optional time range, combined conjunctively. Empty means unrestricted.
type VectorFilter struct {
	Match     map[string]string
	TimeRange *TimeRange
}

// IsEmpty reports whether the filter restricts nothing.
func (f VectorFilter) IsEmpty() bool {
	return len(f.Match) == 0 && f.TimeRange == nil
}

// VectorHit is one similarity search result. Score is cosine similarity;
// higher is more similar.
type VectorHit struct {
	ID      string
	Score   float64
	Payload map[string]string
}

// TemporalContext is the chronological strip of vector payloads around a
// target record. Before and After both read oldest to newest.
type TemporalContext struct {
	Before []VectorHit
	Target *VectorHit
	After  []VectorHit
}
