package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubhsaxena/secondhand-assistant/internal/config"
	"github.com/shubhsaxena/secondhand-assistant/internal/models"
	"github.com/shubhsaxena/secondhand-assistant/internal/observability"
)

const eventSuggestionRecorded = "suggestion.recorded"

// SuggestionEvent is the payload published for every recorded suggestion.
type SuggestionEvent struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	ActorID    string          `json:"actor_id"`
	Intent     string          `json:"intent"`
	Confidence float64         `json:"confidence"`
	Entities   json.RawMessage `json:"entities,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type Producer struct {
	writer  messageWriter
	topic   string
	brokers []string
	logger  *zap.Logger
}

func NewProducer(cfg config.KafkaConfig, logger *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicSuggestions,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxRetries,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}

	logger.Info("kafka producer created", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.TopicSuggestions))

	return &Producer{
		writer:  w,
		topic:   cfg.TopicSuggestions,
		brokers: cfg.Brokers,
		logger:  logger,
	}
}

// PublishSuggestion is keyed by actor so one actor's events stay ordered.
// The raw query text is not published.
func (p *Producer) PublishSuggestion(ctx context.Context, s *models.Suggestion) error {
	data, err := json.Marshal(SuggestionEvent{
		Type:       eventSuggestionRecorded,
		ID:         s.ID,
		ActorID:    s.ActorID,
		Intent:     s.Intent.String(),
		Confidence: s.Confidence,
		Entities:   s.Entities,
		CreatedAt:  s.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshaling suggestion event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(s.ActorID),
		Value: data,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventSuggestionRecorded)},
			{Key: "intent", Value: []byte(s.Intent.String())},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		observability.KafkaPublishTotal.WithLabelValues(p.topic, "error").Inc()
		return fmt.Errorf("publishing suggestion event: %w", err)
	}
	observability.KafkaPublishTotal.WithLabelValues(p.topic, "success").Inc()
	return nil
}

func (p *Producer) HealthCheck(ctx context.Context) error {
	return pingBrokers(ctx, p.brokers)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
