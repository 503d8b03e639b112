package chi

import (
	"github.com/kailas-cloud/logweave/internal/domain"
)

type vectorSearchRequest struct {
	Text      string            `json:"text"`
	Limit     int               `json:"limit"`
	Filters   map[string]string `json:"filters,omitempty"`
	TimeRange *timeRangeJSON    `json:"time_range,omitempty"`
}

type timeRangeJSON struct {
	GTE *int64 `json:"gte,omitempty"`
	LTE *int64 `json:"lte,omitempty"`
}

func (r *vectorSearchRequest) toFilter() domain.VectorFilter {
	f := domain.VectorFilter{Match: r.Filters}
	if r.TimeRange != nil {
		f.TimeRange = &domain.TimeRange{GTE: r.TimeRange.GTE, LTE: r.TimeRange.LTE}
	}
	return f
}

type contextRequest struct {
	LogID      string `json:"log_id"`
	WindowSize int    `json:"window_size"`
}

type searchLogsResponse struct {
	Total   int         `json:"total"`
	Entries []entryJSON `json:"entries"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
}

type entryJSON struct {
	ID          int64             `json:"id"`
	Timestamp   int64             `json:"timestamp"`
	ClientID    string            `json:"client_id"`
	Severity    string            `json:"severity"`
	Body        string            `json:"body"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Resource    map[string]string `json:"resource,omitempty"`
	TraceID     string            `json:"trace_id,omitempty"`
	SpanID      string            `json:"span_id,omitempty"`
	SeverityNum int               `json:"severity_num,omitempty"`
	CreatedAt   int64             `json:"created_at"`
}

func entryToJSON(e domain.Entry) entryJSON {
	return entryJSON{
		ID:          e.ID,
		Timestamp:   e.Timestamp.UnixMilli(),
		ClientID:    e.ClientID,
		Severity:    e.Severity,
		Body:        e.Body,
		Attributes:  e.Attributes,
		Resource:    e.Resource,
		TraceID:     e.TraceID,
		SpanID:      e.SpanID,
		SeverityNum: e.SeverityNum,
		CreatedAt:   e.CreatedAt.UnixMilli(),
	}
}

func entriesToJSON(entries []domain.Entry) []entryJSON {
	out := make([]entryJSON, len(entries))
	for i, e := range entries {
		out[i] = entryToJSON(e)
	}
	return out
}

type vectorSearchResponse struct {
	Results []hitJSON `json:"results"`
	Count   int       `json:"count"`
}

type hitJSON struct {
	ID      string            `json:"id"`
	Score   float64           `json:"score"`
	Payload map[string]string `json:"payload"`
}

func hitToJSON(h domain.VectorHit) hitJSON {
	payload := h.Payload
	if payload == nil {
		payload = map[string]string{}
	}
	return hitJSON{ID: h.ID, Score: h.Score, Payload: payload}
}

func hitsToJSON(hits []domain.VectorHit) []hitJSON {
	out := make([]hitJSON, len(hits))
	for i, h := range hits {
		out[i] = hitToJSON(h)
	}
	return out
}

type contextJSON struct {
	Before []hitJSON `json:"before"`
	Target *hitJSON  `json:"target"`
	After  []hitJSON `json:"after"`
}

func contextToJSON(tc domain.TemporalContext) contextJSON {
	out := contextJSON{
		Before: hitsToJSON(tc.Before),
		After:  hitsToJSON(tc.After),
	}
	if tc.Target != nil {
		t := hitToJSON(*tc.Target)
		out.Target = &t
	}
	return out
}
