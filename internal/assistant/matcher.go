package assistant

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/secondhand-assistant/internal/models"
	"github.com/shubhsaxena/secondhand-assistant/internal/observability"
)

const (
	PhaseText     = "text"
	PhaseCategory = "category"
	PhaseNone     = "none"
)

// ProductLookup is the read side of the listing store. Implementations
// return only currently-available listings, newest first.
type ProductLookup interface {
	SearchByText(ctx context.Context, terms []string, limit int) ([]models.ProductRef, error)
	CategoryID(ctx context.Context, name string) (string, error)
	ListByCategory(ctx context.Context, categoryID string, limit int) ([]models.ProductRef, error)
}

// SellerHydrator enriches product references with seller profile fields.
type SellerHydrator interface {
	HydrateSellers(ctx context.Context, products []models.ProductRef) ([]models.ProductRef, error)
}

type Matcher struct {
	lookup     ProductLookup
	hydrator   SellerHydrator
	maxResults int
	logger     *zap.Logger
}

func NewMatcher(lookup ProductLookup, hydrator SellerHydrator, maxResults int, logger *zap.Logger) *Matcher {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Matcher{
		lookup:     lookup,
		hydrator:   hydrator,
		maxResults: maxResults,
		logger:     logger,
	}
}

// Match runs a text search over titles and descriptions and, only when that
// finds nothing, falls back to listing the inferred category. Zero hits after
// both phases is an empty result, not an error.
func (m *Matcher) Match(ctx context.Context, terms []string, category string) (*models.MatchResult, error) {
	ctx, span := observability.StartSpan(ctx, "assistant.match",
		attribute.Int("terms", len(terms)),
		attribute.String("category", category),
	)
	defer span.End()

	if len(terms) > 0 {
		hits, err := m.lookup.SearchByText(ctx, terms, m.maxResults)
		if err != nil {
			return nil, fmt.Errorf("text search: %w", err)
		}
		if hits = m.rank(hits); len(hits) > 0 {
			observability.MatchPhaseTotal.WithLabelValues(PhaseText).Inc()
			return models.NewMatchResult(m.hydrate(ctx, hits), PhaseText), nil
		}
	}

	categoryID, err := m.lookup.CategoryID(ctx, category)
	if errors.Is(err, ErrCategoryNotFound) {
		observability.MatchPhaseTotal.WithLabelValues(PhaseNone).Inc()
		return models.NewMatchResult(nil, PhaseNone), nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving category %q: %w", category, err)
	}

	hits, err := m.lookup.ListByCategory(ctx, categoryID, m.maxResults)
	if err != nil {
		return nil, fmt.Errorf("category listing: %w", err)
	}
	if hits = m.rank(hits); len(hits) > 0 {
		observability.MatchPhaseTotal.WithLabelValues(PhaseCategory).Inc()
		return models.NewMatchResult(m.hydrate(ctx, hits), PhaseCategory), nil
	}

	observability.MatchPhaseTotal.WithLabelValues(PhaseNone).Inc()
	return models.NewMatchResult(nil, PhaseNone), nil
}

// rank drops unavailable listings, orders by recency and applies the cap.
// Lookups already do this; the matcher enforces it regardless of backend.
func (m *Matcher) rank(products []models.ProductRef) []models.ProductRef {
	out := make([]models.ProductRef, 0, len(products))
	for _, p := range products {
		if p.Available {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > m.maxResults {
		out = out[:m.maxResults]
	}
	return out
}

func (m *Matcher) hydrate(ctx context.Context, products []models.ProductRef) []models.ProductRef {
	if m.hydrator == nil {
		return products
	}
	hydrated, err := m.hydrator.HydrateSellers(ctx, products)
	if err != nil {
		m.logger.Warn("seller hydration failed, returning unhydrated products", zap.Error(err))
		return products
	}
	return hydrated
}
