package observability

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/secondhand-assistant/internal/models"
)

type SlowQueryDetector struct {
	warningThreshold  time.Duration
	criticalThreshold time.Duration
	logger            *zap.Logger
	analyticsWriter   AnalyticsWriter
}

type AnalyticsWriter interface {
	WriteQueryPerformance(ctx context.Context, event *models.AnalyticsEvent) error
}

func NewSlowQueryDetector(warning, critical time.Duration, logger *zap.Logger, aw AnalyticsWriter) *SlowQueryDetector {
	return &SlowQueryDetector{
		warningThreshold:  warning,
		criticalThreshold: critical,
		logger:            logger,
		analyticsWriter:   aw,
	}
}

// Intercept records queries slower than the warning threshold. Raw query
// text never leaves this function; only its hash is logged.
func (sqd *SlowQueryDetector) Intercept(ctx context.Context, query, queryType string, duration time.Duration, totalHits int64) {
	if duration <= sqd.warningThreshold {
		return
	}

	traceID := TraceIDFromContext(ctx)
	severity := sqd.classifySeverity(duration)
	hash := HashQuery(query)

	SlowQueryCounter.WithLabelValues(severity, queryType).Inc()

	sqd.logger.Warn("slow query detected",
		zap.String("trace_id", traceID),
		zap.String("query_hash", hash),
		zap.String("query_type", queryType),
		zap.Float64("duration_ms", float64(duration.Milliseconds())),
		zap.Int64("total_hits", totalHits),
		zap.String("severity", severity),
	)

	if sqd.analyticsWriter == nil {
		return
	}
	event := &models.AnalyticsEvent{
		EventType:  "query_performance",
		QueryHash:  hash,
		QueryType:  queryType,
		DurationMs: float64(duration.Milliseconds()),
		TotalHits:  totalHits,
		TimedOut:   duration > sqd.criticalThreshold,
		Timestamp:  time.Now().UTC(),
		TraceID:    traceID,
		Source:     "assistant",
	}
	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := sqd.analyticsWriter.WriteQueryPerformance(writeCtx, event); err != nil {
			sqd.logger.Error("failed to write query analytics",
				zap.String("trace_id", traceID),
				zap.Error(err),
			)
		}
	}()
}

func (sqd *SlowQueryDetector) classifySeverity(d time.Duration) string {
	if d > sqd.criticalThreshold {
		return "critical"
	}
	if d > sqd.warningThreshold {
		return "warning"
	}
	return "normal"
}

// HashQuery gives a stable, non-reversible fingerprint for logs and analytics.
func HashQuery(q string) string {
	return fmt.Sprintf("%016x", hashUint64(q))
}

func hashUint64(s string) uint64 {
	h := uint64(0)
	for _, c := range s {
		h = h*31 + uint64(c)
	}
	return h
}
