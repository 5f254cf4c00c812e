package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quotearchive/quotesearch/internal/database"
	"github.com/quotearchive/quotesearch/internal/middleware"
	"github.com/quotearchive/quotesearch/internal/observability"
)

// Handler serves the caller-facing search API. Every route expects the
// tenant to be resolved into the request context by the tenant middleware.
type Handler struct {
	store   database.Searcher
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewHandler creates the API handler. metrics may be nil.
func NewHandler(store database.Searcher, logger *zap.Logger, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger, metrics: metrics}
}

// Routes mounts the API endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/api/search", h.handleSearch)
	r.Get("/api/videos", h.handleVideos)
	r.Get("/api/stats", h.handleStats)
	r.Get("/api/random", h.handleRandom)
	r.Get("/api/health", h.handleHealth)
	return r
}

type searchResponse struct {
	Data        []database.VideoGroup `json:"data"`
	TotalVideos int                   `json:"totalVideos"`
	TotalQuotes int                   `json:"totalQuotes"`
	Page        int                   `json:"page"`
	TotalPages  int                   `json:"totalPages"`
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	exact, _ := strconv.ParseBool(q.Get("exact"))

	req := database.SearchRequest{
		SearchTerm:  q.Get("q"),
		Channel:     q.Get("channel"),
		Game:        q.Get("game"),
		Year:        q.Get("year"),
		SortOrder:   q.Get("sort"),
		Page:        page,
		Limit:       limit,
		ExactPhrase: exact,
		Tenant:      middleware.TenantFrom(r.Context()),
	}

	result, err := h.store.Search(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "search", err)
		h.metrics.RecordRequest(r.Context(), "search", "error", msSince(start))
		return
	}

	// Report pagination from the same normalization the store applied, so
	// page and totalPages always describe the query that actually ran.
	norm := req.Normalize()
	totalPages := (result.TotalVideos + norm.Limit - 1) / norm.Limit

	h.writeJSON(w, http.StatusOK, searchResponse{
		Data:        result.Data,
		TotalVideos: result.TotalVideos,
		TotalQuotes: result.TotalQuotes,
		Page:        norm.Page,
		TotalPages:  totalPages,
	})
	h.metrics.RecordRequest(r.Context(), "search", "success", msSince(start))
}

func (h *Handler) handleVideos(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.VideoIDs(r.Context(), middleware.TenantFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, "videos", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"videos": ids})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.ChannelStats(r.Context(), middleware.TenantFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, "stats", err)
		return
	}
	if stats == nil {
		stats = []database.ChannelStat{}
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleRandom(w http.ResponseWriter, r *http.Request) {
	groups, err := h.store.RandomQuotes(r.Context(), middleware.TenantFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, "random", err)
		return
	}
	if groups == nil {
		groups = []database.VideoGroup{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"data": groups})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.store.CheckHealth(r.Context(), middleware.TenantFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, "health", err)
		return
	}
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, health)
}

// writeError maps the error taxonomy to HTTP statuses. Store internals are
// logged, never sent to callers.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		timeoutErr *database.TimeoutError
		configErr  *database.ConfigurationError
	)

	switch {
	case errors.As(err, &timeoutErr):
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":     "search backend timed out, please retry",
			"retryable": true,
		})
	case errors.As(err, &configErr):
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "search backend unavailable for this site",
		})
	default:
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "something went wrong",
		})
	}

	h.logger.Error("request failed",
		zap.String("op", op),
		zap.String("host", r.Host),
		zap.Error(err))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
