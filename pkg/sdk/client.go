package logweave

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/logweave/internal/codec"
	"github.com/kailas-cloud/logweave/internal/domain"
	"github.com/kailas-cloud/logweave/internal/keystore"
)

const defaultTimeout = 30 * time.Second

// Record is one log record to ship.
type Record struct {
	Timestamp   int64             `json:"timestamp,omitempty"` // epoch milliseconds
	Severity    string            `json:"severity"`
	Body        string            `json:"body"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Resource    map[string]string `json:"resource,omitempty"`
	TraceID     string            `json:"trace_id,omitempty"`
	SpanID      string            `json:"span_id,omitempty"`
	SeverityNum int               `json:"severity_num,omitempty"`
}

// Report is the server's ingestion outcome for one shipped batch.
type Report struct {
	Status    string `json:"status"`
	Processed int    `json:"processed"`
	Indexed   int    `json:"indexed"`
}

// Entry is a stored log entry returned by the query endpoints.
type Entry struct {
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

// SearchQuery selects stored log entries.
type SearchQuery struct {
	Query     string // case-insensitive body substring
	ClientID  string
	Severity  string
	TraceID   string
	StartTime int64 // epoch milliseconds, 0 = unbounded
	EndTime   int64
	Limit     int
	Offset    int
}

// SearchResult is one page of log search results.
type SearchResult struct {
	Total   int     `json:"total"`
	Entries []Entry `json:"entries"`
}

// VectorHit is one similarity search result.
type VectorHit struct {
	ID      string            `json:"id"`
	Score   float64           `json:"score"`
	Payload map[string]string `json:"payload"`
}

// TimeRange bounds similarity search by timestamp, epoch milliseconds.
type TimeRange struct {
	GTE *int64 `json:"gte,omitempty"`
	LTE *int64 `json:"lte,omitempty"`
}

// TemporalContext is the chronological strip around a vector record.
type TemporalContext struct {
	Before []VectorHit `json:"before"`
	Target *VectorHit  `json:"target"`
	After  []VectorHit `json:"after"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("logweave: server returned %d: %s", e.StatusCode, e.Detail)
}

// Client talks to a logweave server.
type Client struct {
	endpoint   string
	apiKey     string
	clientID   string
	compress   bool
	codec      *codec.Codec
	httpClient *http.Client
}

// New creates a logweave Client.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}

	if cfg.endpoint == "" {
		return nil, errors.New("logweave: endpoint required (use WithEndpoint)")
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: defaultTimeout}
	}

	c := &Client{
		endpoint:   strings.TrimRight(cfg.endpoint, "/"),
		apiKey:     cfg.apiKey,
		clientID:   cfg.clientID,
		compress:   cfg.compress,
		httpClient: cfg.httpClient,
	}

	if cfg.clientID != "" {
		keys := keystore.NewMemory()
		switch {
		case cfg.seed != "":
			pub, priv := keystore.DeriveKeyPair(cfg.seed)
			keys.RegisterPair(cfg.clientID, pub, priv)
		case cfg.privateKey != nil:
			var pub [32]byte
			copy(pub[:], cfg.privateKey[32:])
			keys.RegisterPair(cfg.clientID, &pub, cfg.privateKey)
		default:
			return nil, errors.New("logweave: signing requires a private key or demo seed")
		}
		c.codec = codec.New(keys, zap.NewNop())
	}

	return c, nil
}

// Ship sends a batch of records. With a signing key configured the batch
// goes out as a signed (optionally compressed) envelope; otherwise as
// plaintext JSON, which the server attributes per its unattributed policy.
func (c *Client) Ship(ctx context.Context, records []Record) (Report, error) {
	batch := domain.Batch{Records: make([]domain.WireRecord, len(records))}
	for i, r := range records {
		batch.Records[i] = domain.WireRecord{
			Timestamp:   r.Timestamp,
			Severity:    r.Severity,
			Body:        r.Body,
			Attributes:  r.Attributes,
			Resource:    r.Resource,
			TraceID:     r.TraceID,
			SpanID:      r.SpanID,
			SeverityNum: r.SeverityNum,
		}
	}

	var payload []byte
	contentType := "application/json"
	var err error

	if c.codec != nil {
		env, err := c.codec.Encode(batch, c.clientID, c.compress)
		if err != nil {
			return Report{}, fmt.Errorf("logweave: sign batch: %w", err)
		}
		payload, err = json.Marshal(env)
		if err != nil {
			return Report{}, fmt.Errorf("logweave: marshal envelope: %w", err)
		}
		contentType = domain.ContentTypeEncrypted
	} else {
		payload, err = json.Marshal(batch)
		if err != nil {
			return Report{}, fmt.Errorf("logweave: marshal batch: %w", err)
		}
	}

	var report Report
	if err := c.post(ctx, "/logs", contentType, payload, &report); err != nil {
		return Report{}, err
	}
	return report, nil
}

// Search queries stored log entries.
func (c *Client) Search(ctx context.Context, q SearchQuery) (SearchResult, error) {
	params := url.Values{}
	setIf := func(key, val string) {
		if val != "" {
			params.Set(key, val)
		}
	}
	setIf("query", q.Query)
	setIf("client_id", q.ClientID)
	setIf("severity", q.Severity)
	setIf("trace_id", q.TraceID)
	if q.StartTime > 0 {
		params.Set("start_time", strconv.FormatInt(q.StartTime, 10))
	}
	if q.EndTime > 0 {
		params.Set("end_time", strconv.FormatInt(q.EndTime, 10))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	path := "/logs/search"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var result SearchResult
	if err := c.get(ctx, path, &result); err != nil {
		return SearchResult{}, err
	}
	return result, nil
}

// VectorSearch finds log entries semantically similar to text.
func (c *Client) VectorSearch(
	ctx context.Context, text string, limit int,
	filters map[string]string, timeRange *TimeRange,
) ([]VectorHit, error) {
	body, err := json.Marshal(map[string]any{
		"text":       text,
		"limit":      limit,
		"filters":    filters,
		"time_range": timeRange,
	})
	if err != nil {
		return nil, fmt.Errorf("logweave: marshal query: %w", err)
	}

	var resp struct {
		Results []VectorHit `json:"results"`
	}
	if err := c.post(ctx, "/vector/search", "application/json", body, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Context fetches the temporal context around a vector record.
func (c *Client) Context(ctx context.Context, logID string, windowSize int) (TemporalContext, error) {
	body, err := json.Marshal(map[string]any{
		"log_id":      logID,
		"window_size": windowSize,
	})
	if err != nil {
		return TemporalContext{}, fmt.Errorf("logweave: marshal query: %w", err)
	}

	var resp struct {
		Context TemporalContext `json:"context"`
	}
	if err := c.post(ctx, "/vector/context", "application/json", body, &resp); err != nil {
		return TemporalContext{}, err
	}
	return resp.Context, nil
}

// Health reports the server's component health.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	if err := c.get(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return fmt.Errorf("logweave: build request: %w", err)
	}
	return c.send(req, out)
}

func (c *Client) post(ctx context.Context, path, contentType string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("logweave: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("logweave: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("logweave: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		return &APIError{StatusCode: resp.StatusCode, Detail: apiErr.Detail}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("logweave: parse response: %w", err)
	}
	return nil
}
