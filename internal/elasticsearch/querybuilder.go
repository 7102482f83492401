package elasticsearch

import (
	"strings"
)

// Listing document fields. Text fields carry a keyword sub-field used for
// case-insensitive substring matching.
const (
	fieldTitleRaw       = "title.raw"
	fieldDescriptionRaw = "description.raw"
	fieldCategory       = "category"
	fieldAvailable      = "is_available"
	fieldCreatedAt      = "created_at"
	fieldListingID      = "listing_id"
)

type QueryBuilder struct{}

func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// BuildTextQuery matches listings whose title or description contains any
// term, ignoring case. Only available listings are returned, newest first.
func (qb *QueryBuilder) BuildTextQuery(terms []string, limit int) map[string]any {
	var should []map[string]any
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		pattern := "*" + escapeWildcard(strings.ToLower(term)) + "*"
		for _, field := range []string{fieldTitleRaw, fieldDescriptionRaw} {
			should = append(should, map[string]any{
				"wildcard": map[string]any{
					field: map[string]any{
						"value":            pattern,
						"case_insensitive": true,
					},
				},
			})
		}
	}

	boolQuery := map[string]any{
		"filter": []map[string]any{availableFilter()},
	}
	if len(should) > 0 {
		boolQuery["should"] = should
		boolQuery["minimum_should_match"] = 1
	}

	return qb.wrap(boolQuery, limit)
}

// BuildCategoryQuery lists available listings of one category, newest first.
func (qb *QueryBuilder) BuildCategoryQuery(category string, limit int) map[string]any {
	boolQuery := map[string]any{
		"filter": []map[string]any{
			availableFilter(),
			{"term": map[string]any{fieldCategory: category}},
		},
	}
	return qb.wrap(boolQuery, limit)
}

func (qb *QueryBuilder) wrap(boolQuery map[string]any, limit int) map[string]any {
	if limit <= 0 {
		limit = 5
	}
	return map[string]any{
		"query": map[string]any{
			"bool": boolQuery,
		},
		"size": limit,
		"sort": []map[string]any{
			{fieldCreatedAt: map[string]any{"order": "desc"}},
			{fieldListingID: map[string]any{"order": "asc"}},
		},
		"track_total_hits": false,
	}
}

func availableFilter() map[string]any {
	return map[string]any{"term": map[string]any{fieldAvailable: true}}
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func escapeWildcard(s string) string {
	return wildcardEscaper.Replace(s)
}

// ListingsMapping is the index definition for marketplace listings.
func ListingsMapping(shards, replicas int, refreshInterval string) map[string]any {
	textWithRaw := map[string]any{
		"type": "text",
		"fields": map[string]any{
			"raw": map[string]any{"type": "keyword", "ignore_above": 2048},
		},
	}
	return map[string]any{
		"settings": map[string]any{
			"number_of_shards":   shards,
			"number_of_replicas": replicas,
			"refresh_interval":   refreshInterval,
		},
		"mappings": map[string]any{
			"dynamic": "strict",
			"properties": map[string]any{
				"listing_id":   map[string]any{"type": "keyword"},
				"title":        textWithRaw,
				"description":  textWithRaw,
				"category":     map[string]any{"type": "keyword"},
				"category_id":  map[string]any{"type": "keyword"},
				"price":        map[string]any{"type": "scaled_float", "scaling_factor": 100},
				"seller_id":    map[string]any{"type": "keyword"},
				"image_url":    map[string]any{"type": "keyword", "index": false},
				"is_available": map[string]any{"type": "boolean"},
				"created_at":   map[string]any{"type": "date"},
				"updated_at":   map[string]any{"type": "date"},
			},
		},
	}
}
