package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shubhsaxena/secondhand-assistant/internal/models"
	"github.com/shubhsaxena/secondhand-assistant/internal/observability"
)

const SearchTypeAssistant = "assistant_find"

// SuggestionStore is the durable, append-only audit log of engine outcomes.
type SuggestionStore interface {
	// InsertSuggestion writes s and, when history is non-nil, its search
	// history row. Both rows commit together or neither does.
	InsertSuggestion(ctx context.Context, s *models.Suggestion, history *models.SearchHistoryEntry) error
	ListRecentSuggestions(ctx context.Context, actorID string, limit int) ([]models.Suggestion, error)
	MarkActedUpon(ctx context.Context, suggestionID string) error
}

// EventPublisher fans recorded suggestions out to downstream consumers.
type EventPublisher interface {
	PublishSuggestion(ctx context.Context, s *models.Suggestion) error
}

type Recorder struct {
	store     SuggestionStore
	publisher EventPublisher
	now       func() time.Time
	newID     func() string
	logger    *zap.Logger
}

func NewRecorder(store SuggestionStore, publisher EventPublisher, logger *zap.Logger) *Recorder {
	return &Recorder{
		store:     store,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		logger:    logger,
	}
}

type matchSummary struct {
	Count      int      `json:"count"`
	Phase      string   `json:"phase"`
	ProductIDs []string `json:"product_ids"`
}

type entityPayload struct {
	models.Entities
	Match *matchSummary `json:"match,omitempty"`
}

// Record durably writes one suggestion and, for a product search, its
// search history entry. It returns only after the store has acknowledged
// the write; a failure leaves neither row behind.
func (r *Recorder) Record(ctx context.Context, actorID, query string, intent models.Intent, entities models.Entities, match *models.MatchResult) (*models.Suggestion, *models.SearchHistoryEntry, error) {
	payload := entityPayload{Entities: entities}
	if match != nil {
		ids := make([]string, 0, len(match.Products))
		for _, p := range match.Products {
			ids = append(ids, p.ID)
		}
		payload.Match = &matchSummary{Count: match.Count, Phase: match.Phase, ProductIDs: ids}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding entities: %w", err)
	}

	s := &models.Suggestion{
		ID:         r.newID(),
		ActorID:    actorID,
		Query:      query,
		Intent:     intent.Kind,
		Entities:   raw,
		Confidence: intent.Confidence,
		CreatedAt:  r.now(),
	}

	var history *models.SearchHistoryEntry
	if match != nil {
		history = &models.SearchHistoryEntry{
			ID:          r.newID(),
			ActorID:     actorID,
			Query:       query,
			SearchType:  SearchTypeAssistant,
			ResultCount: match.Count,
			CreatedAt:   s.CreatedAt,
		}
	}

	if err := r.store.InsertSuggestion(ctx, s, history); err != nil {
		observability.SuggestionWritesTotal.WithLabelValues(writeKind(history), "error").Inc()
		return nil, nil, fmt.Errorf("inserting suggestion: %w", err)
	}
	observability.SuggestionWritesTotal.WithLabelValues(writeKind(history), "success").Inc()

	r.publish(s)
	return s, history, nil
}

func writeKind(history *models.SearchHistoryEntry) string {
	if history != nil {
		return "suggestion_with_history"
	}
	return "suggestion"
}

func (r *Recorder) ListRecent(ctx context.Context, actorID string, limit int) ([]models.Suggestion, error) {
	return r.store.ListRecentSuggestions(ctx, actorID, limit)
}

func (r *Recorder) MarkActedUpon(ctx context.Context, suggestionID string) error {
	return r.store.MarkActedUpon(ctx, suggestionID)
}

// publish is best-effort and never blocks the caller.
func (r *Recorder) publish(s *models.Suggestion) {
	if r.publisher == nil {
		return
	}
	event := *s
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.publisher.PublishSuggestion(ctx, &event); err != nil {
			r.logger.Warn("publishing suggestion event failed",
				zap.String("suggestion_id", event.ID),
				zap.Error(err),
			)
		}
	}()
}
