package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/shubhsaxena/secondhand-assistant/internal/assistant"
	"github.com/shubhsaxena/secondhand-assistant/internal/models"
)

const (
	keyPrefix      = "pl:"
	textPrefix     = keyPrefix + "text:"
	listPrefix     = keyPrefix + "list:"
	categoryPrefix = keyPrefix + "cat:"
	stalePrefix    = keyPrefix + "stale:"
)

// CachedLookup puts Redis in front of a ProductLookup. Product results are
// also kept under a longer-lived stale key which is served when the
// underlying lookup fails. Cache errors never fail a lookup.
type CachedLookup struct {
	next   assistant.ProductLookup
	cache  *RedisCache
	logger *zap.Logger
}

func NewCachedLookup(next assistant.ProductLookup, cache *RedisCache, logger *zap.Logger) *CachedLookup {
	return &CachedLookup{next: next, cache: cache, logger: logger}
}

func (cl *CachedLookup) SearchByText(ctx context.Context, terms []string, limit int) ([]models.ProductRef, error) {
	key := textKey(terms, limit)
	return cl.products(ctx, key, func(ctx context.Context) ([]models.ProductRef, error) {
		return cl.next.SearchByText(ctx, terms, limit)
	})
}

func (cl *CachedLookup) ListByCategory(ctx context.Context, categoryID string, limit int) ([]models.ProductRef, error) {
	key := fmt.Sprintf("%s%s:%d", listPrefix, categoryID, limit)
	return cl.products(ctx, key, func(ctx context.Context) ([]models.ProductRef, error) {
		return cl.next.ListByCategory(ctx, categoryID, limit)
	})
}

// CategoryID caches resolved ids only; unknown names always reach the
// underlying lookup.
func (cl *CachedLookup) CategoryID(ctx context.Context, name string) (string, error) {
	key := categoryPrefix + strings.ToLower(name)

	var id string
	err := cl.cache.getJSON(ctx, key, &id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, errMiss) {
		cl.logger.Warn("category cache read failed", zap.Error(err))
	}

	id, err = cl.next.CategoryID(ctx, name)
	if err != nil {
		return "", err
	}
	if err := cl.cache.setJSON(ctx, key, id, cl.cache.ttl.CategoryID); err != nil {
		cl.logger.Warn("category cache write failed", zap.Error(err))
	}
	return id, nil
}

// Invalidate drops cached product results after listings change. Category
// ids and stale copies survive.
func (cl *CachedLookup) Invalidate(ctx context.Context) error {
	return cl.cache.InvalidatePattern(ctx, []string{textPrefix + "*", listPrefix + "*"})
}

func (cl *CachedLookup) products(ctx context.Context, key string, load func(context.Context) ([]models.ProductRef, error)) ([]models.ProductRef, error) {
	var cached []models.ProductRef
	err := cl.cache.getJSON(ctx, key, &cached)
	if err == nil {
		return nonNil(cached), nil
	}
	if !errors.Is(err, errMiss) {
		cl.logger.Warn("product cache read failed", zap.String("key", key), zap.Error(err))
	}

	products, loadErr := load(ctx)
	if loadErr != nil {
		var stale []models.ProductRef
		if err := cl.cache.getJSON(ctx, stalePrefix+key, &stale); err == nil {
			cl.logger.Warn("serving stale products", zap.String("key", key), zap.Error(loadErr))
			return nonNil(stale), nil
		}
		return nil, loadErr
	}

	ttl := cl.cache.ttl.TextSearch
	if strings.HasPrefix(key, listPrefix) {
		ttl = cl.cache.ttl.CategoryList
	}
	if err := cl.cache.setJSON(ctx, key, products, ttl); err != nil {
		cl.logger.Warn("product cache write failed", zap.String("key", key), zap.Error(err))
	} else if err := cl.cache.setJSON(ctx, stalePrefix+key, products, cl.cache.ttl.StaleFallback); err != nil {
		cl.logger.Warn("stale cache write failed", zap.String("key", key), zap.Error(err))
	}
	return products, nil
}

// textKey ignores term order and case since the lookup matches any term.
func textKey(terms []string, limit int) string {
	normalized := make([]string, 0, len(terms))
	for _, t := range terms {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(t)))
	}
	slices.Sort(normalized)
	normalized = slices.Compact(normalized)
	raw := fmt.Sprintf("%s|%d", strings.Join(normalized, ","), limit)
	return textPrefix + hashString(raw)
}

func nonNil(p []models.ProductRef) []models.ProductRef {
	if p == nil {
		return []models.ProductRef{}
	}
	return p
}
