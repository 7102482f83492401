package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/secondhand-assistant/internal/config"
	"github.com/shubhsaxena/secondhand-assistant/internal/models"
	"github.com/shubhsaxena/secondhand-assistant/internal/observability"
)

// AnalyticsWriter receives one event per processed query.
type AnalyticsWriter interface {
	WriteAssistantEvent(ctx context.Context, event *models.AnalyticsEvent) error
}

type Engine struct {
	tokenizer  *Tokenizer
	classifier *IntentClassifier
	extractor  *EntityExtractor
	matcher    *Matcher
	recorder   *Recorder
	analytics  AnalyticsWriter
	slowQuery  *observability.SlowQueryDetector
	cfg        config.AssistantConfig
	logger     *zap.Logger
}

type Option func(*engineOptions)

type engineOptions struct {
	chooser   Chooser
	now       func() time.Time
	newID     func() string
	hydrator  SellerHydrator
	publisher EventPublisher
	analytics AnalyticsWriter
	slowQuery *observability.SlowQueryDetector
}

func WithChooser(c Chooser) Option { return func(o *engineOptions) { o.chooser = c } }

func WithClock(now func() time.Time) Option { return func(o *engineOptions) { o.now = now } }

func WithIDGenerator(f func() string) Option { return func(o *engineOptions) { o.newID = f } }

func WithSellerHydrator(h SellerHydrator) Option { return func(o *engineOptions) { o.hydrator = h } }

func WithPublisher(p EventPublisher) Option { return func(o *engineOptions) { o.publisher = p } }

func WithAnalytics(a AnalyticsWriter) Option { return func(o *engineOptions) { o.analytics = a } }

func WithSlowQueryDetector(d *observability.SlowQueryDetector) Option {
	return func(o *engineOptions) { o.slowQuery = d }
}

// New builds an engine. It is constructed once at startup and shared; it
// holds no per-request state.
func New(lookup ProductLookup, store SuggestionStore, cfg config.AssistantConfig, logger *zap.Logger, opts ...Option) *Engine {
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	classifier := NewIntentClassifier()
	recorder := NewRecorder(store, o.publisher, logger)
	if o.now != nil {
		recorder.now = o.now
	}
	if o.newID != nil {
		recorder.newID = o.newID
	}

	return &Engine{
		tokenizer:  NewTokenizer(),
		classifier: classifier,
		extractor:  NewEntityExtractor(classifier.Vocabulary(), o.chooser, cfg.PlaceholderImage),
		matcher:    NewMatcher(lookup, o.hydrator, cfg.MaxResults, logger),
		recorder:   recorder,
		analytics:  o.analytics,
		slowQuery:  o.slowQuery,
		cfg:        cfg,
		logger:     logger,
	}
}

// ProcessQuery interprets free text for an actor and always produces a
// result unless persistence or lookup fails, in which case the error
// matches ErrEngineUnavailable.
func (e *Engine) ProcessQuery(ctx context.Context, actorID, rawText string) (*models.SuggestionResult, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "assistant.process_query",
		attribute.String("actor_id", actorID),
	)
	defer span.End()

	if strings.TrimSpace(actorID) == "" {
		return nil, ErrMissingActor
	}

	tokens := e.tokenizer.Tokenize(rawText)
	intent := e.classifier.Classify(tokens)
	entities := e.extractor.Extract(tokens, intent)

	var match *models.MatchResult
	if intent.Kind == models.IntentFindProduct {
		var err error
		match, err = e.matcher.Match(ctx, entities.SearchTerms, entities.Category)
		if err != nil {
			return nil, e.fail(intent, start, unavailable("match", err))
		}
	}

	intent = Finalize(intent, entities, match)
	span.SetAttributes(
		attribute.String("intent", intent.Kind.String()),
		attribute.Float64("confidence", intent.Confidence),
	)

	result := &models.SuggestionResult{
		Intent:     intent.Kind,
		Confidence: intent.Confidence,
		Entities:   entities,
		Draft:      entities.Draft,
	}

	if intent.Kind != models.IntentGeneral || e.cfg.RecordGeneral {
		suggestion, _, err := e.recorder.Record(ctx, actorID, rawText, intent, entities, match)
		if err != nil {
			return nil, e.fail(intent, start, unavailable("record suggestion", err))
		}
		result.SuggestionID = suggestion.ID
	}

	if match != nil {
		result.Products = match.Products
	}

	result.Message, result.Suggestions = compose(intent, entities, match)

	duration := time.Since(start)
	observability.AssistantQueriesTotal.WithLabelValues(intent.Kind.String(), "success").Inc()
	observability.AssistantQueryDuration.WithLabelValues(intent.Kind.String(), "success").Observe(duration.Seconds())

	e.logger.Debug("query processed",
		zap.String("actor_id", actorID),
		zap.String("query_hash", observability.HashQuery(rawText)),
		zap.String("intent", intent.Kind.String()),
		zap.Float64("confidence", intent.Confidence),
	)

	hits := int64(0)
	phase := ""
	if match != nil {
		hits = int64(match.Count)
		phase = match.Phase
	}
	if e.slowQuery != nil {
		e.slowQuery.Intercept(ctx, rawText, intent.Kind.String(), duration, hits)
	}
	e.emit(ctx, rawText, intent, entities.Category, phase, hits, duration)

	return result, nil
}

// ListRecentSuggestions returns the actor's suggestions, newest first. The
// limit is clamped to the configured bounds.
func (e *Engine) ListRecentSuggestions(ctx context.Context, actorID string, limit int) ([]models.Suggestion, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, ErrMissingActor
	}
	if limit <= 0 {
		limit = e.cfg.RecentLimitDefault
	}
	if limit > e.cfg.RecentLimitMax {
		limit = e.cfg.RecentLimitMax
	}

	suggestions, err := e.recorder.ListRecent(ctx, actorID, limit)
	if err != nil {
		return nil, unavailable("list suggestions", err)
	}
	if suggestions == nil {
		suggestions = []models.Suggestion{}
	}
	return suggestions, nil
}

// MarkActedUpon flips the acted-upon flag. Marking twice is not an error.
func (e *Engine) MarkActedUpon(ctx context.Context, suggestionID string) error {
	if strings.TrimSpace(suggestionID) == "" {
		return ErrSuggestionNotFound
	}
	err := e.recorder.MarkActedUpon(ctx, suggestionID)
	if err == nil || errors.Is(err, ErrSuggestionNotFound) {
		return err
	}
	return unavailable("mark acted upon", err)
}

func (e *Engine) fail(intent models.Intent, start time.Time, err error) error {
	observability.AssistantQueriesTotal.WithLabelValues(intent.Kind.String(), "error").Inc()
	observability.AssistantQueryDuration.WithLabelValues(intent.Kind.String(), "error").Observe(time.Since(start).Seconds())
	e.logger.Error("assistant query failed",
		zap.String("intent", intent.Kind.String()),
		zap.Error(err),
	)
	return err
}

func (e *Engine) emit(ctx context.Context, rawText string, intent models.Intent, category, phase string, hits int64, duration time.Duration) {
	if e.analytics == nil {
		return
	}
	event := &models.AnalyticsEvent{
		EventType:  "assistant_query",
		QueryHash:  observability.HashQuery(rawText),
		QueryType:  intent.Kind.String(),
		Confidence: intent.Confidence,
		DurationMs: float64(duration.Milliseconds()),
		TotalHits:  hits,
		MatchPhase: phase,
		Category:   category,
		Timestamp:  time.Now().UTC(),
		TraceID:    observability.TraceIDFromContext(ctx),
		Source:     "assistant",
	}
	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := e.analytics.WriteAssistantEvent(writeCtx, event); err != nil {
			e.logger.Warn("writing assistant analytics failed", zap.Error(err))
		}
	}()
}
