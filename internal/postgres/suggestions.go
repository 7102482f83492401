package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/secondhand-assistant/internal/assistant"
	"github.com/shubhsaxena/secondhand-assistant/internal/models"
	"github.com/shubhsaxena/secondhand-assistant/internal/observability"
)

// SuggestionStore is the append-only audit log of assistant outcomes.
// Writes are not retried: a failed insert surfaces to the caller, which
// decides whether to try again.
type SuggestionStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewSuggestionStore(pool *pgxpool.Pool, logger *zap.Logger) *SuggestionStore {
	return &SuggestionStore{pool: pool, logger: logger}
}

// InsertSuggestion writes the suggestion and, when given, its search history
// row in one transaction so a failed history write leaves no orphan.
func (s *SuggestionStore) InsertSuggestion(ctx context.Context, sg *models.Suggestion, history *models.SearchHistoryEntry) error {
	ctx, span := observability.StartSpan(ctx, "pg.insert_suggestion",
		attribute.String("intent", sg.Intent.String()),
		attribute.Bool("with_history", history != nil),
	)
	defer span.End()

	entities := sg.Entities
	if len(entities) == 0 {
		entities = []byte("{}")
	}

	start := time.Now()
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO assistant_suggestions (id, actor_id, query, intent, entities, confidence, acted_upon, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			sg.ID, sg.ActorID, sg.Query, sg.Intent.String(), entities, sg.Confidence, sg.ActedUpon, sg.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting suggestion %s: %w", sg.ID, err)
		}
		if history == nil {
			return nil
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO search_history (id, actor_id, query, search_type, result_count, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			history.ID, history.ActorID, history.Query, history.SearchType, history.ResultCount, history.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting search history %s: %w", history.ID, err)
		}
		return nil
	})
	observeWrite("insert_suggestion", start, err)
	return err
}

// ListRecentSuggestions returns the actor's suggestions newest first. Rows
// sharing a timestamp are ordered by insertion sequence.
func (s *SuggestionStore) ListRecentSuggestions(ctx context.Context, actorID string, limit int) ([]models.Suggestion, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, actor_id, query, intent, entities, confidence, acted_upon, created_at
		 FROM assistant_suggestions
		 WHERE actor_id = $1
		 ORDER BY created_at DESC, seq DESC
		 LIMIT $2`,
		actorID, limit,
	)
	if err != nil {
		observeWrite("list_suggestions", start, err)
		return nil, fmt.Errorf("listing suggestions: %w", err)
	}
	defer rows.Close()

	out := []models.Suggestion{}
	for rows.Next() {
		var (
			sg     models.Suggestion
			intent string
		)
		if err := rows.Scan(&sg.ID, &sg.ActorID, &sg.Query, &intent, &sg.Entities, &sg.Confidence, &sg.ActedUpon, &sg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning suggestion: %w", err)
		}
		sg.Intent = models.ParseIntentKind(intent)
		sg.CreatedAt = sg.CreatedAt.UTC()
		out = append(out, sg)
	}
	err = rows.Err()
	observeWrite("list_suggestions", start, err)
	if err != nil {
		return nil, fmt.Errorf("iterating suggestions: %w", err)
	}
	return out, nil
}

// MarkActedUpon sets the acted-upon flag. Postgres reports matched rows,
// so marking an already-marked suggestion still succeeds.
func (s *SuggestionStore) MarkActedUpon(ctx context.Context, suggestionID string) error {
	if _, err := uuid.Parse(suggestionID); err != nil {
		return assistant.ErrSuggestionNotFound
	}

	start := time.Now()
	tag, err := s.pool.Exec(ctx,
		`UPDATE assistant_suggestions SET acted_upon = TRUE WHERE id = $1`, suggestionID,
	)
	observeWrite("mark_acted_upon", start, err)
	if err != nil {
		return fmt.Errorf("marking suggestion %s: %w", suggestionID, err)
	}
	if tag.RowsAffected() == 0 {
		return assistant.ErrSuggestionNotFound
	}
	return nil
}

func observeWrite(query string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.PGQueryDuration.WithLabelValues(query, status).Observe(time.Since(start).Seconds())
}
