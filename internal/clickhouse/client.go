package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/secondhand-assistant/internal/config"
	"github.com/shubhsaxena/secondhand-assistant/internal/models"
	"github.com/shubhsaxena/secondhand-assistant/internal/observability"
)

type Client struct {
	conn   driver.Conn
	logger *zap.Logger
}

func NewClient(cfg config.ClickHouseConfig, logger *zap.Logger) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addresses,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": int(cfg.QueryTimeout.Seconds()),
		},
		DialTimeout:  cfg.DialTimeout,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("opening clickhouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging clickhouse: %w", err)
	}

	logger.Info("clickhouse client connected", zap.Strings("addresses", cfg.Addresses))

	return &Client{
		conn:   conn,
		logger: logger,
	}, nil
}

// WriteAssistantEvent appends one processed query to assistant_events.
func (c *Client) WriteAssistantEvent(ctx context.Context, event *models.AnalyticsEvent) error {
	start := time.Now()
	query := `
		INSERT INTO assistant_events (
			event_type, query_hash, intent, confidence, duration_ms,
			total_hits, match_phase, category, timestamp, trace_id, source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := c.conn.Exec(ctx, query,
		event.EventType,
		event.QueryHash,
		event.QueryType,
		event.Confidence,
		event.DurationMs,
		event.TotalHits,
		event.MatchPhase,
		event.Category,
		event.Timestamp,
		event.TraceID,
		event.Source,
	)
	observeInsert("assistant_event", start, err)
	return err
}

func (c *Client) WriteQueryPerformance(ctx context.Context, event *models.AnalyticsEvent) error {
	start := time.Now()
	query := `
		INSERT INTO query_performance (
			event_type, query_hash, query_type, duration_ms,
			total_hits, timed_out, timestamp, trace_id, source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := c.conn.Exec(ctx, query,
		event.EventType,
		event.QueryHash,
		event.QueryType,
		event.DurationMs,
		event.TotalHits,
		event.TimedOut,
		event.Timestamp,
		event.TraceID,
		event.Source,
	)
	observeInsert("query_performance", start, err)
	return err
}

func (c *Client) InsertListingEvent(ctx context.Context, event *models.ListingChangeEvent) error {
	start := time.Now()
	query := `
		INSERT INTO listings_changelog (
			listing_id, operation, timestamp, version
		) VALUES (?, ?, ?, ?)
	`
	err := c.conn.Exec(ctx, query,
		event.ListingID,
		event.Type,
		event.Timestamp,
		event.Version,
	)
	observeInsert("listing_changelog", start, err)
	return err
}

// IntentBreakdown aggregates assistant queries since the given instant by
// intent, most frequent first.
func (c *Client) IntentBreakdown(ctx context.Context, since time.Time) ([]models.IntentCount, error) {
	ctx, span := observability.StartSpan(ctx, "ch.intent_breakdown",
		attribute.String("since", since.Format(time.RFC3339)),
	)
	defer span.End()

	start := time.Now()

	query := `
		SELECT
			intent,
			toInt64(count()) AS cnt,
			avg(confidence) AS avg_confidence,
			toInt64(countIf(intent = 'find_product' AND total_hits = 0)) AS zero_results
		FROM assistant_events
		WHERE timestamp >= ?
		GROUP BY intent
		ORDER BY cnt DESC, intent
	`

	rows, err := c.conn.Query(ctx, query, since.UTC())
	if err != nil {
		observability.CHQueryDuration.WithLabelValues("intent_breakdown", "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("ch intent breakdown: %w", err)
	}
	defer rows.Close()

	counts := []models.IntentCount{}
	for rows.Next() {
		var ic models.IntentCount
		if err := rows.Scan(&ic.Intent, &ic.Count, &ic.AvgConfidence, &ic.ZeroResults); err != nil {
			return nil, fmt.Errorf("scanning intent row: %w", err)
		}
		counts = append(counts, ic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating intent rows: %w", err)
	}

	observability.CHQueryDuration.WithLabelValues("intent_breakdown", "success").Observe(time.Since(start).Seconds())
	return counts, nil
}

func observeInsert(queryType string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.CHQueryDuration.WithLabelValues(queryType, status).Observe(time.Since(start).Seconds())
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) EnsureTables(ctx context.Context) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS assistant_events (
			event_type String,
			query_hash String,
			intent LowCardinality(String),
			confidence Float64,
			duration_ms Float64,
			total_hits Int64,
			match_phase LowCardinality(String),
			category LowCardinality(String),
			timestamp DateTime,
			trace_id String,
			source String
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (timestamp, intent)`,

		`CREATE TABLE IF NOT EXISTS query_performance (
			event_type String,
			query_hash String,
			query_type String,
			duration_ms Float64,
			total_hits Int64,
			timed_out Bool,
			timestamp DateTime,
			trace_id String,
			source String
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (timestamp, query_hash)`,

		`CREATE TABLE IF NOT EXISTS listings_changelog (
			listing_id String,
			operation LowCardinality(String),
			timestamp DateTime,
			version Int64
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (timestamp, listing_id)`,
	}

	for _, ddl := range tables {
		if err := c.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}

	c.logger.Info("clickhouse tables ensured")
	return nil
}
