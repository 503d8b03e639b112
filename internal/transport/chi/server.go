// Package chi wires the HTTP API onto the ingestion, log query, vector
// query, and health services.
package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/logweave/internal/domain"
	healthuc "github.com/kailas-cloud/logweave/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/logweave/internal/usecase/ingest"
	logsearchuc "github.com/kailas-cloud/logweave/internal/usecase/logsearch"
	vectorsearchuc "github.com/kailas-cloud/logweave/internal/usecase/vectorsearch"
)

// maxBodyBytes caps inbound payload size.
const maxBodyBytes = 16 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the HTTP API.
type Server struct {
	ingest        *ingestuc.Service
	logs          *logsearchuc.Service
	vectors       *vectorsearchuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	ingest *ingestuc.Service,
	logs *logsearchuc.Service,
	vectors *vectorsearchuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		ingest:  ingest,
		logs:    logs,
		vectors: vectors,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDecode, http.StatusBadRequest),
		sentinelHandler(domain.ErrAuthentication, http.StatusBadRequest),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway),
		sentinelHandler(domain.ErrStoreFailure, http.StatusInternalServerError),
	}
	return s
}

// Router assembles the chi router. The given middlewares wrap every route.
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.GetHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/logs", s.IngestLogs)
	r.Get("/logs/search", s.SearchLogs)
	r.Get("/logs/{id}", s.GetLog)
	r.Get("/logs/trace/{traceID}", s.GetTrace)

	r.Post("/vector/search", s.SearchVectors)
	r.Post("/vector/context", s.GetContext)

	return r
}

// IngestLogs handles POST /logs. The raw body goes to the codec unchanged;
// the Content-Type header selects the transport format.
func (s *Server) IngestLogs(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	report, err := s.ingest.Ingest(r.Context(), contentType, body)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if report.Status == ingestuc.StatusWarning {
		writeJSON(w, http.StatusBadRequest, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// SearchLogs handles GET /logs/search.
func (s *Server) SearchLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.LogFilter{
		ClientID:      q.Get("client_id"),
		Severity:      q.Get("severity"),
		TraceID:       q.Get("trace_id"),
		BodySubstring: q.Get("query"),
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit"), domain.DefaultSearchLimit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	start, err := msParam(q.Get("start_time"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_time")
		return
	}
	end, err := msParam(q.Get("end_time"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_time")
		return
	}
	filter.Start, filter.End = start, end

	total, entries, err := s.logs.Search(r.Context(), filter)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchLogsResponse{
		Total:   total,
		Entries: entriesToJSON(entries),
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}

// GetLog handles GET /logs/{id}.
func (s *Server) GetLog(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid log id")
		return
	}

	entry, err := s.logs.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entryToJSON(entry))
}

// GetTrace handles GET /logs/trace/{traceID}.
func (s *Server) GetTrace(w http.ResponseWriter, r *http.Request) {
	entries, err := s.logs.Trace(r.Context(), chi.URLParam(r, "traceID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trace_id": chi.URLParam(r, "traceID"),
		"entries":  entriesToJSON(entries),
	})
}

// SearchVectors handles POST /vector/search. Degraded backends surface as
// an empty result set, never as an error.
func (s *Server) SearchVectors(w http.ResponseWriter, r *http.Request) {
	var req vectorSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	hits := s.vectors.Search(r.Context(), req.Text, req.Limit, req.toFilter())

	writeJSON(w, http.StatusOK, vectorSearchResponse{
		Results: hitsToJSON(hits),
		Count:   len(hits),
	})
}

// GetContext handles POST /vector/context. Parameters come from the JSON
// body, falling back to query parameters for compatibility.
func (s *Server) GetContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if r.Body != nil {
		// Body is optional; ignore decode failures on an empty body.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.LogID == "" {
		req.LogID = r.URL.Query().Get("log_id")
	}
	if req.WindowSize == 0 {
		req.WindowSize, _ = intParam(r.URL.Query().Get("window_size"), 0)
	}
	if req.LogID == "" {
		writeError(w, http.StatusBadRequest, "log_id is required")
		return
	}

	tc := s.vectors.Context(r.Context(), req.LogID, req.WindowSize)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"context": contextToJSON(tc),
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func msParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDecode,
		domain.ErrAuthentication,
		domain.ErrValidation,
		domain.ErrNotFound,
		domain.ErrIndexUnavailable,
		domain.ErrEmbeddingProviderError,
		domain.ErrStoreFailure,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
