package models

import (
	"encoding/json"
	"time"
)

type IntentKind int

const (
	IntentGeneral IntentKind = iota
	IntentCreateListing
	IntentFindProduct
)

// String returns the wire tag used in API responses and persisted records.
func (k IntentKind) String() string {
	switch k {
	case IntentGeneral:
		return "general"
	case IntentCreateListing:
		return "add_product"
	case IntentFindProduct:
		return "find_product"
	default:
		return "unknown"
	}
}

// ParseIntentKind is the inverse of String. Unknown tags map to IntentGeneral.
func ParseIntentKind(s string) IntentKind {
	switch s {
	case "add_product":
		return IntentCreateListing
	case "find_product":
		return IntentFindProduct
	default:
		return IntentGeneral
	}
}

func (k IntentKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *IntentKind) UnmarshalText(b []byte) error {
	*k = ParseIntentKind(string(b))
	return nil
}

// Intent is a classified query purpose. Confidence is provisional until the
// engine finalizes it against the match outcome.
type Intent struct {
	Kind       IntentKind `json:"kind"`
	Confidence float64    `json:"confidence"`
}

// TokenSet is the normalized form of a query.
type TokenSet struct {
	Raw        string   // lowercase, trimmed input
	Normalized string   // words joined by single spaces
	Words      []string // every alphanumeric word, stopwords included
	Tokens     []string // significant tokens only
}

type PriceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

type ListingDraft struct {
	Title       string     `json:"title"`
	Category    string     `json:"category"`
	PriceRange  PriceRange `json:"price_range"`
	Description string     `json:"description"`
	ImageURL    string     `json:"image_url"`
	ImageQuery  string     `json:"image_query,omitempty"`
}

// Entities is what the extractor derives from a query regardless of intent.
type Entities struct {
	Category      string        `json:"category"`
	CategoryFound bool          `json:"category_found"`
	SearchTerms   []string      `json:"search_terms,omitempty"`
	Draft         *ListingDraft `json:"draft,omitempty"`
}

type ProductRef struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category"`
	CategoryID  string    `json:"category_id,omitempty"`
	Price       float64   `json:"price"`
	SellerID    string    `json:"seller_id"`
	SellerName  string    `json:"seller_name,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
}

// MatchResult is an ordered set of product references. Count always equals
// len(Products); an empty result is a valid outcome, not a failure.
type MatchResult struct {
	Products []ProductRef `json:"products"`
	Count    int          `json:"count"`
	Phase    string       `json:"phase"`
}

func NewMatchResult(products []ProductRef, phase string) *MatchResult {
	if products == nil {
		products = []ProductRef{}
	}
	return &MatchResult{Products: products, Count: len(products), Phase: phase}
}

type Suggestion struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actor_id"`
	Query      string          `json:"query"`
	Intent     IntentKind      `json:"intent"`
	Entities   json.RawMessage `json:"entities"`
	Confidence float64         `json:"confidence"`
	ActedUpon  bool            `json:"acted_upon"`
	CreatedAt  time.Time       `json:"created_at"`
}

type SearchHistoryEntry struct {
	ID          string    `json:"id"`
	ActorID     string    `json:"actor_id"`
	Query       string    `json:"query"`
	SearchType  string    `json:"search_type"`
	ResultCount int       `json:"result_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// SuggestionResult is the engine's answer to one query.
type SuggestionResult struct {
	SuggestionID string        `json:"suggestion_id"`
	Intent       IntentKind    `json:"type"`
	Confidence   float64       `json:"confidence"`
	Entities     Entities      `json:"-"`
	Suggestions  []string      `json:"suggestions"`
	Products     []ProductRef  `json:"products,omitempty"`
	Draft        *ListingDraft `json:"draft,omitempty"`
	Message      string        `json:"message"`
}

// MarshalJSON always emits products for find_product results, even when
// nothing matched, and never for the other intents.
func (r SuggestionResult) MarshalJSON() ([]byte, error) {
	type plain SuggestionResult
	out := struct {
		plain
		Products *[]ProductRef `json:"products,omitempty"`
	}{plain: plain(r)}
	if r.Intent == IntentFindProduct {
		products := r.Products
		if products == nil {
			products = []ProductRef{}
		}
		out.Products = &products
	}
	return json.Marshal(out)
}

const (
	ListingCreated = "CREATE"
	ListingUpdated = "UPDATE"
	ListingDeleted = "DELETE"
)

// ListingChangeEvent is emitted by the listing CRUD service whenever a
// listing row changes.
type ListingChangeEvent struct {
	Type      string         `json:"type"`
	ListingID string         `json:"listing_id"`
	Listing   map[string]any `json:"listing,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Version   int64          `json:"version"`
}

type IndexAction struct {
	Action    string         `json:"action"` // index, delete
	Index     string         `json:"index"`
	ID        string         `json:"id"`
	Body      map[string]any `json:"body,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// AnalyticsEvent is a row in the ClickHouse assistant analytics tables.
type AnalyticsEvent struct {
	EventType   string    `json:"event_type"`
	QueryHash   string    `json:"query_hash"`
	QueryType   string    `json:"query_type"`
	Confidence  float64   `json:"confidence"`
	DurationMs  float64   `json:"duration_ms"`
	TotalHits   int64     `json:"total_hits"`
	MatchPhase  string    `json:"match_phase,omitempty"`
	Category    string    `json:"category,omitempty"`
	TimedOut    bool      `json:"timed_out"`
	Timestamp   time.Time `json:"timestamp"`
	TraceID     string    `json:"trace_id"`
	Source      string    `json:"source"`
}

type IntentCount struct {
	Intent        string  `json:"intent"`
	Count         int64   `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
	ZeroResults   int64   `json:"zero_results"`
}
