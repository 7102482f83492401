package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/secondhand-assistant/internal/assistant"
	"github.com/shubhsaxena/secondhand-assistant/internal/config"
	"github.com/shubhsaxena/secondhand-assistant/internal/models"
	"github.com/shubhsaxena/secondhand-assistant/internal/observability"
	"github.com/shubhsaxena/secondhand-assistant/internal/resilience"
)

const productColumns = `
	l.id::text, l.title, l.description, c.name, l.category_id::text, l.price::float8,
	l.seller_id, l.image_url, l.is_available, l.created_at`

// ProductStore reads available listings from the marketplace database.
type ProductStore struct {
	pool         *pgxpool.Pool
	cb           *gobreaker.CircuitBreaker
	retryCfg     resilience.RetryConfig
	queryTimeout time.Duration
	logger       *zap.Logger
}

func NewProductStore(pool *pgxpool.Pool, cfg config.PostgresConfig, searchCfg config.SearchConfig, logger *zap.Logger) *ProductStore {
	return &ProductStore{
		pool:         pool,
		cb:           resilience.NewCircuitBreaker("postgres-products", searchCfg.CircuitBreaker, logger),
		retryCfg:     resilience.RetryConfigFrom(searchCfg.Retry),
		queryTimeout: cfg.QueryTimeout,
		logger:       logger,
	}
}

// SearchByText matches any term as a case-insensitive substring of the
// title or description.
func (s *ProductStore) SearchByText(ctx context.Context, terms []string, limit int) ([]models.ProductRef, error) {
	ctx, span := observability.StartSpan(ctx, "pg.search_by_text",
		attribute.Int("terms", len(terms)),
		attribute.Int("limit", limit),
	)
	defer span.End()

	patterns := likePatterns(terms)
	if len(patterns) == 0 {
		return []models.ProductRef{}, nil
	}

	query := `SELECT ` + productColumns + `
		FROM listings l
		JOIN categories c ON c.id = l.category_id
		WHERE l.is_available
		  AND (l.title ILIKE ANY($1) OR l.description ILIKE ANY($1))
		ORDER BY l.created_at DESC, l.id
		LIMIT $2`

	return guarded(ctx, s.cb, s.retryCfg, "search_by_text", func(ctx context.Context) ([]models.ProductRef, error) {
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()
		return s.queryProducts(ctx, query, patterns, limit)
	})
}

func (s *ProductStore) CategoryID(ctx context.Context, name string) (string, error) {
	return guarded(ctx, s.cb, s.retryCfg, "category_id", func(ctx context.Context) (string, error) {
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()

		var id string
		err := s.pool.QueryRow(ctx,
			`SELECT id::text FROM categories WHERE lower(name) = lower($1)`, name,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", resilience.NonRetryable(assistant.ErrCategoryNotFound)
		}
		if err != nil {
			return "", fmt.Errorf("resolving category: %w", err)
		}
		return id, nil
	})
}

func (s *ProductStore) ListByCategory(ctx context.Context, categoryID string, limit int) ([]models.ProductRef, error) {
	ctx, span := observability.StartSpan(ctx, "pg.list_by_category",
		attribute.String("category_id", categoryID),
	)
	defer span.End()

	query := `SELECT ` + productColumns + `
		FROM listings l
		JOIN categories c ON c.id = l.category_id
		WHERE l.is_available AND l.category_id = $1::uuid
		ORDER BY l.created_at DESC, l.id
		LIMIT $2`

	return guarded(ctx, s.cb, s.retryCfg, "list_by_category", func(ctx context.Context) ([]models.ProductRef, error) {
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()
		return s.queryProducts(ctx, query, categoryID, limit)
	})
}

// HealthCheck reports whether the database is reachable.
func (s *ProductStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *ProductStore) queryProducts(ctx context.Context, query string, args ...any) ([]models.ProductRef, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying listings: %w", err)
	}
	defer rows.Close()

	products := []models.ProductRef{}
	for rows.Next() {
		var p models.ProductRef
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Description, &p.Category, &p.CategoryID, &p.Price,
			&p.SellerID, &p.ImageURL, &p.Available, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating listings: %w", err)
	}
	return products, nil
}

func (s *ProductStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePatterns turns search terms into escaped ILIKE substring patterns.
func likePatterns(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, "%"+likeEscaper.Replace(t)+"%")
	}
	return out
}
