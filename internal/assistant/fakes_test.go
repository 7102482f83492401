package assistant

import (
	"context"
	"sort"
	"sync"

	"github.com/shubhsaxena/secondhand-assistant/internal/models"
)

type fakeLookup struct {
	mu          sync.Mutex
	textHits    []models.ProductRef
	byCategory  map[string][]models.ProductRef
	categoryIDs map[string]string
	textErr     error
	categoryErr error
	textCalls   int
	textTerms   [][]string
	listCalls   int
}

func (f *fakeLookup) SearchByText(ctx context.Context, terms []string, limit int) ([]models.ProductRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textCalls++
	f.textTerms = append(f.textTerms, terms)
	if f.textErr != nil {
		return nil, f.textErr
	}
	return f.textHits, nil
}

func (f *fakeLookup) CategoryID(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.categoryErr != nil {
		return "", f.categoryErr
	}
	id, ok := f.categoryIDs[name]
	if !ok {
		return "", ErrCategoryNotFound
	}
	return id, nil
}

func (f *fakeLookup) ListByCategory(ctx context.Context, categoryID string, limit int) ([]models.ProductRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.byCategory[categoryID], nil
}

type fakeStore struct {
	mu          sync.Mutex
	suggestions []models.Suggestion
	history     []models.SearchHistoryEntry
	insertErr   error
	historyErr  error
	listErr     error
	lastLimit   int
}

// InsertSuggestion mirrors the transactional store: a failing history row
// leaves no suggestion behind either.
func (f *fakeStore) InsertSuggestion(ctx context.Context, s *models.Suggestion, h *models.SearchHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if h != nil && f.historyErr != nil {
		return f.historyErr
	}
	f.suggestions = append(f.suggestions, *s)
	if h != nil {
		f.history = append(f.history, *h)
	}
	return nil
}

// ListRecentSuggestions mirrors the database ordering: newest first, later
// inserts winning ties.
func (f *fakeStore) ListRecentSuggestions(ctx context.Context, actorID string, limit int) ([]models.Suggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	type row struct {
		seq int
		s   models.Suggestion
	}
	var rows []row
	for i, s := range f.suggestions {
		if s.ActorID == actorID {
			rows = append(rows, row{i, s})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].s.CreatedAt.Equal(rows[j].s.CreatedAt) {
			return rows[i].s.CreatedAt.After(rows[j].s.CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	out := []models.Suggestion{}
	for _, r := range rows {
		if len(out) == limit {
			break
		}
		out = append(out, r.s)
	}
	return out, nil
}

func (f *fakeStore) MarkActedUpon(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.suggestions {
		if f.suggestions[i].ID == id {
			f.suggestions[i].ActedUpon = true
			return nil
		}
	}
	return ErrSuggestionNotFound
}

func (f *fakeStore) snapshot() ([]models.Suggestion, []models.SearchHistoryEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Suggestion(nil), f.suggestions...), append([]models.SearchHistoryEntry(nil), f.history...)
}

type fakePublisher struct {
	published chan models.Suggestion
	err       error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(chan models.Suggestion, 16)}
}

func (f *fakePublisher) PublishSuggestion(ctx context.Context, s *models.Suggestion) error {
	f.published <- *s
	return f.err
}

type fakeHydrator struct {
	err error
}

func (f *fakeHydrator) HydrateSellers(ctx context.Context, products []models.ProductRef) ([]models.ProductRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.ProductRef, len(products))
	for i, p := range products {
		p.SellerName = "seller-" + p.SellerID
		out[i] = p
	}
	return out, nil
}

type fakeAnalytics struct {
	events chan *models.AnalyticsEvent
}

func (f *fakeAnalytics) WriteAssistantEvent(ctx context.Context, e *models.AnalyticsEvent) error {
	f.events <- e
	return nil
}
