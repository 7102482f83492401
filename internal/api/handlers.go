package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shubhsaxena/secondhand-assistant/internal/assistant"
	"github.com/shubhsaxena/secondhand-assistant/internal/models"
	"github.com/shubhsaxena/secondhand-assistant/internal/observability"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB
	maxQueryTextLen    = 1000
	defaultSince       = 24 * time.Hour
	maxSince           = 90 * 24 * time.Hour
)

// Assistant is the engine surface served over HTTP.
type Assistant interface {
	ProcessQuery(ctx context.Context, actorID, rawText string) (*models.SuggestionResult, error)
	ListRecentSuggestions(ctx context.Context, actorID string, limit int) ([]models.Suggestion, error)
	MarkActedUpon(ctx context.Context, suggestionID string) error
}

type IntentReporter interface {
	IntentBreakdown(ctx context.Context, since time.Time) ([]models.IntentCount, error)
}

type Handler struct {
	engine   Assistant
	reporter IntentReporter
	now      func() time.Time
	logger   *zap.Logger
}

// NewHandler builds the API handlers. reporter may be nil when no
// analytics store is configured.
func NewHandler(engine Assistant, reporter IntentReporter, logger *zap.Logger) *Handler {
	return &Handler{
		engine:   engine,
		reporter: reporter,
		now:      time.Now,
		logger:   logger,
	}
}

type queryRequest struct {
	Text string `json:"text"`
}

type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := ActorFromContext(ctx)

	var req queryRequest
	limited := io.LimitReader(r.Body, maxRequestBodySize)
	if err := json.NewDecoder(limited).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Request body must be JSON with a 'text' field")
		return
	}
	text := req.Text
	if runes := []rune(text); len(runes) > maxQueryTextLen {
		text = string(runes[:maxQueryTextLen])
	}

	result, err := h.engine.ProcessQuery(ctx, actor, text)
	if err != nil {
		h.writeEngineError(w, r, "process query", err)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope{Success: true, Data: result})
}

func (h *Handler) ListSuggestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid_limit", "Query parameter 'limit' must be a non-negative integer")
			return
		}
		limit = n
	}

	suggestions, err := h.engine.ListRecentSuggestions(ctx, ActorFromContext(ctx), limit)
	if err != nil {
		h.writeEngineError(w, r, "list suggestions", err)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"suggestions": suggestions,
		"count":       len(suggestions),
	}})
}

func (h *Handler) MarkActed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.engine.MarkActedUpon(r.Context(), id); err != nil {
		h.writeEngineError(w, r, "mark acted upon", err)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"id":         id,
		"acted_upon": true,
	}})
}

func (h *Handler) IntentBreakdown(w http.ResponseWriter, r *http.Request) {
	if h.reporter == nil {
		h.writeError(w, http.StatusServiceUnavailable, "analytics_unavailable", "Analytics store is not configured")
		return
	}

	since, err := parseSince(r.URL.Query().Get("since"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_since", err.Error())
		return
	}

	from := h.now().UTC().Add(-since)
	counts, err := h.reporter.IntentBreakdown(r.Context(), from)
	if err != nil {
		h.logger.Error("intent breakdown failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		h.writeError(w, http.StatusServiceUnavailable, "analytics_unavailable", "Analytics temporarily unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"since":   from.Format(time.RFC3339),
		"intents": counts,
	}})
}

func parseSince(s string) (time.Duration, error) {
	if s == "" {
		return defaultSince, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("query parameter 'since' must be a positive duration such as 24h")
	}
	return min(d, maxSince), nil
}

// writeEngineError maps engine errors onto HTTP statuses. Only unavailable
// errors are worth retrying.
func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, assistant.ErrMissingActor):
		h.writeError(w, http.StatusUnauthorized, "missing_actor", "An authenticated user is required")
	case errors.Is(err, assistant.ErrSuggestionNotFound):
		h.writeError(w, http.StatusNotFound, "suggestion_not_found", "Suggestion not found")
	case errors.Is(err, assistant.ErrEngineUnavailable):
		h.logger.Error(op+" failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("trace_id", observability.TraceIDFromContext(r.Context())),
			zap.Error(err),
		)
		w.Header().Set("Retry-After", "1")
		h.writeError(w, http.StatusServiceUnavailable, "engine_unavailable", "Assistant temporarily unavailable")
	default:
		h.logger.Error(op+" failed with unexpected error",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Internal Server Error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("writing json response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSONError(w, status, code, message)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Success: false, Error: message, Code: code})
}
