// Package handler exposes the search service over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/Adithya-Monish-Kumar-K/search100/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/searcher/service"
	apperrors "github.com/Adithya-Monish-Kumar-K/search100/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/middleware"
)

// Searcher is the part of the search service the handler drives.
type Searcher interface {
	Search(ctx context.Context, query string, strategy executor.Strategy, limit int) ([]service.Hit, bool, error)
	ResolvePath(id int) (string, error)
	Rebuild(ctx context.Context, force bool) (indexer.Status, error)
	Status() indexer.Status
}

// Recorder receives one event per answered search.
type Recorder interface {
	Record(event analytics.SearchEvent)
}

type Handler struct {
	searcher     Searcher
	recorder     Recorder
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New returns a Handler over s. rec may be nil.
func New(s Searcher, rec Recorder, defaultLimit, maxResults int) *Handler {
	return &Handler{
		searcher:     s,
		recorder:     rec,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("POST /api/v1/index", h.Index)
	mux.HandleFunc("GET /api/v1/status", h.Status)
}

type occurrenceView struct {
	Original string `json:"original"`
	Index    int    `json:"index"`
	Line     int    `json:"line"`
}

type resultView struct {
	QueryTerm   string           `json:"query_term"`
	Original    string           `json:"original"`
	DocumentID  int              `json:"document_id"`
	Path        string           `json:"path"`
	Score       float64          `json:"score"`
	Occurrences []occurrenceView `json:"occurrences"`
}

type searchResponse struct {
	Query     string       `json:"query"`
	Mode      string       `json:"mode"`
	Total     int          `json:"total"`
	Cached    bool         `json:"cached"`
	LatencyMs int64        `json:"latency_ms"`
	RequestID string       `json:"request_id,omitempty"`
	Results   []resultView `json:"results"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	strategy, err := executor.ParseStrategy(r.URL.Query().Get("mode"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "mode must be 'and' or 'or'")
		return
	}
	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if h.maxResults > 0 && (limit == 0 || limit > h.maxResults) {
		limit = h.maxResults
	}

	hits, cached, err := h.searcher.Search(ctx, query, strategy, limit)
	if err != nil {
		log.Error("search failed", "query", query, "mode", strategy.String(), "error", err)
		h.writeAppError(w, err)
		return
	}

	resp := searchResponse{
		Query:     query,
		Mode:      strategy.String(),
		Total:     len(hits),
		Cached:    cached,
		LatencyMs: time.Since(start).Milliseconds(),
		RequestID: middleware.GetRequestID(ctx),
		Results:   make([]resultView, len(hits)),
	}
	for i, hit := range hits {
		occs := make([]occurrenceView, len(hit.Occurrences))
		for j, o := range hit.Occurrences {
			occs[j] = occurrenceView{Original: o.Original, Index: o.Index, Line: o.Line}
		}
		resp.Results[i] = resultView{
			QueryTerm:   hit.QueryTerm.Stemmed,
			Original:    hit.QueryTerm.Original,
			DocumentID:  hit.DocumentID,
			Path:        hit.Path,
			Score:       hit.Score,
			Occurrences: occs,
		}
	}

	if h.recorder != nil {
		h.recorder.Record(analytics.SearchEvent{
			Query:     query,
			Mode:      resp.Mode,
			Results:   resp.Total,
			Latency:   time.Since(start),
			CacheHit:  cached,
			Timestamp: time.Now().UTC(),
			RequestID: resp.RequestID,
		})
	}

	log.Info("search completed",
		"query", query,
		"mode", resp.Mode,
		"results", resp.Total,
		"cache_hit", cached,
		"latency_ms", resp.LatencyMs,
	)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document id must be an integer")
		return
	}
	p, err := h.searcher.ResolvePath(id)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"id": id, "path": p})
}

// Index rebuilds the live index. force=true rescans the corpus even when
// persisted tables exist.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "force must be a boolean")
			return
		}
		force = parsed
	}
	status, err := h.searcher.Rebuild(r.Context(), force)
	if err != nil {
		logger.FromContext(r.Context()).Error("index rebuild failed", "force", force, "error", err)
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.searcher.Status())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	h.writeError(w, status, message)
}
