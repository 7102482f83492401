package indexing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/secondhand-assistant/internal/config"
	"github.com/shubhsaxena/secondhand-assistant/internal/models"
	"github.com/shubhsaxena/secondhand-assistant/internal/observability"
)

type BulkIndexer interface {
	BulkIndex(ctx context.Context, actions []models.IndexAction) error
	ListingsIndex() string
}

type ChangelogWriter interface {
	InsertListingEvent(ctx context.Context, event *models.ListingChangeEvent) error
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// listingFields maps listing row keys to index document fields.
var listingFields = map[string]string{
	"title":        "title",
	"description":  "description",
	"category":     "category",
	"category_id":  "category_id",
	"price":        "price",
	"seller_id":    "seller_id",
	"image_url":    "image_url",
	"is_available": "is_available",
	"available":    "is_available",
	"created_at":   "created_at",
}

// StreamProcessor applies listing change events to the search index in
// bulk, records a changelog row per event and drops cached lookups once
// the index reflects the change. Every dependency is optional.
type StreamProcessor struct {
	indexer   BulkIndexer
	changelog ChangelogWriter
	cache     CacheInvalidator
	esCfg     config.ElasticsearchConfig
	now       func() time.Time
	logger    *zap.Logger

	// Bulk buffer
	mu     sync.Mutex
	buffer []models.IndexAction
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func NewStreamProcessor(
	indexer BulkIndexer,
	changelog ChangelogWriter,
	cache CacheInvalidator,
	esCfg config.ElasticsearchConfig,
	logger *zap.Logger,
) *StreamProcessor {
	interval := esCfg.BulkFlushInterval
	if interval <= 0 {
		interval = time.Second
	}
	if esCfg.BulkSize <= 0 {
		esCfg.BulkSize = 500
	}

	sp := &StreamProcessor{
		indexer:   indexer,
		changelog: changelog,
		cache:     cache,
		esCfg:     esCfg,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
		buffer:    make([]models.IndexAction, 0, esCfg.BulkSize),
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
	}

	go sp.flushLoop()

	return sp
}

func (sp *StreamProcessor) HandleEvent(ctx context.Context, event *models.ListingChangeEvent) error {
	if sp.changelog != nil {
		go func() {
			chCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sp.changelog.InsertListingEvent(chCtx, event); err != nil {
				sp.logger.Warn("clickhouse changelog insert failed",
					zap.String("listing_id", event.ListingID),
					zap.Error(err),
				)
			}
		}()
	}

	if sp.indexer == nil {
		sp.invalidate(ctx)
		return nil
	}

	action, err := sp.transformEvent(event)
	if err != nil {
		return fmt.Errorf("transforming event: %w", err)
	}

	sp.mu.Lock()
	sp.buffer = append(sp.buffer, *action)
	shouldFlush := len(sp.buffer) >= sp.esCfg.BulkSize
	sp.mu.Unlock()

	if shouldFlush {
		if err := sp.flush(ctx); err != nil {
			sp.logger.Error("flush on buffer full failed", zap.Error(err))
		}
	}

	return nil
}

func (sp *StreamProcessor) transformEvent(event *models.ListingChangeEvent) (*models.IndexAction, error) {
	action := &models.IndexAction{
		ID:        event.ListingID,
		Index:     sp.indexer.ListingsIndex(),
		Timestamp: event.Timestamp,
	}

	switch event.Type {
	case models.ListingCreated, models.ListingUpdated:
		action.Action = "index"
		action.Body = sp.extractListingFields(event.Listing)
		action.Body["listing_id"] = event.ListingID
	case models.ListingDeleted:
		action.Action = "delete"
	default:
		return nil, fmt.Errorf("unknown event type: %s", event.Type)
	}

	return action, nil
}

func (sp *StreamProcessor) extractListingFields(listing map[string]any) map[string]any {
	fields := map[string]any{
		"updated_at": sp.now().Format(time.RFC3339),
	}
	for src, dst := range listingFields {
		if v, ok := listing[src]; ok {
			fields[dst] = v
		}
	}
	return fields
}

func (sp *StreamProcessor) flushLoop() {
	for {
		select {
		case <-sp.ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := sp.flush(ctx); err != nil {
				sp.logger.Error("periodic flush failed", zap.Error(err))
			}
			cancel()
		case <-sp.done:
			return
		}
	}
}

func (sp *StreamProcessor) flush(ctx context.Context) error {
	sp.mu.Lock()
	if len(sp.buffer) == 0 {
		sp.mu.Unlock()
		return nil
	}
	batch := make([]models.IndexAction, len(sp.buffer))
	copy(batch, sp.buffer)
	sp.buffer = sp.buffer[:0]
	sp.mu.Unlock()

	start := time.Now()
	if err := sp.indexer.BulkIndex(ctx, batch); err != nil {
		// Put failed items back into buffer for retry
		sp.mu.Lock()
		sp.buffer = append(batch, sp.buffer...)
		sp.mu.Unlock()

		observability.IndexingEventsTotal.WithLabelValues("bulk", "error").Inc()
		return fmt.Errorf("bulk index flush: %w", err)
	}

	observability.IndexingEventsTotal.WithLabelValues("bulk", "success").Add(float64(len(batch)))
	sp.logger.Info("bulk flush completed",
		zap.Int("count", len(batch)),
		zap.Duration("duration", time.Since(start)),
	)

	sp.invalidate(ctx)
	return nil
}

func (sp *StreamProcessor) invalidate(ctx context.Context) {
	if sp.cache == nil {
		return
	}
	if err := sp.cache.Invalidate(ctx); err != nil {
		sp.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}

// Pending reports how many actions await the next flush.
func (sp *StreamProcessor) Pending() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.buffer)
}

func (sp *StreamProcessor) Stop() error {
	var err error
	sp.once.Do(func() {
		sp.ticker.Stop()
		close(sp.done)

		// Final flush
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if sp.indexer != nil {
			err = sp.flush(ctx)
		}
	})
	return err
}
