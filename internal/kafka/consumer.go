package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubhsaxena/secondhand-assistant/internal/config"
	"github.com/shubhsaxena/secondhand-assistant/internal/models"
	"github.com/shubhsaxena/secondhand-assistant/internal/observability"
)

type MessageHandler func(ctx context.Context, event *models.ListingChangeEvent) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads listing change events. Events that cannot be decoded, or
// that keep failing after retries, are parked on the DLQ topic and
// committed so the partition keeps moving.
type Consumer struct {
	reader     messageReader
	dlqWriter  messageWriter
	handler    MessageHandler
	cfg        config.KafkaConfig
	logger     *zap.Logger
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
}

func NewConsumer(cfg config.KafkaConfig, handler MessageHandler, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.TopicListings,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1e3,  // 1KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	dlqWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.TopicDLQ,
		Balancer: &kafka.Hash{},
	}

	logger.Info("kafka consumer created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.TopicListings),
		zap.String("group", cfg.ConsumerGroup),
	)

	return newConsumer(reader, dlqWriter, cfg, handler, logger)
}

func newConsumer(reader messageReader, dlq messageWriter, cfg config.KafkaConfig, handler MessageHandler, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader:    reader,
		dlqWriter: dlq,
		handler:   handler,
		cfg:       cfg,
		logger:    logger,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeLoop(ctx)
	}()

	c.logger.Info("kafka consumer started")
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("kafka consumer shutting down")
				return
			}
			c.logger.Error("fetching kafka message", zap.Error(err))
			if !sleepCtx(ctx, time.Second) {
				return
			}
			continue
		}

		c.processMessage(ctx, msg)
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	start := time.Now()

	event, err := decodeListingEvent(msg.Value)
	if err != nil {
		c.logger.Error("decoding listing change event",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
			zap.Int("partition", msg.Partition),
		)
		observability.IndexingEventsTotal.WithLabelValues("unknown", "malformed").Inc()
		c.sendToDLQ(ctx, msg, fmt.Sprintf("decode error: %v", err))
		c.commitMessage(ctx, msg)
		return
	}

	if !event.Timestamp.IsZero() {
		observability.IndexingLag.Set(time.Since(event.Timestamp).Seconds())
	}

	attempts := max(c.cfg.MaxRetries, 1)
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if lastErr = c.handler(ctx, event); lastErr == nil {
			break
		}
		c.logger.Warn("handler error, retrying",
			zap.Error(lastErr),
			zap.Int("attempt", attempt+1),
			zap.String("listing_id", event.ListingID),
		)
		backoff := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
		if !sleepCtx(ctx, backoff) {
			return
		}
	}

	if lastErr != nil {
		c.logger.Error("handler failed after retries, sending to DLQ",
			zap.Error(lastErr),
			zap.String("listing_id", event.ListingID),
		)
		observability.IndexingEventsTotal.WithLabelValues(event.Type, "dlq").Inc()
		c.sendToDLQ(ctx, msg, fmt.Sprintf("handler error after retries: %v", lastErr))
	} else {
		observability.IndexingEventsTotal.WithLabelValues(event.Type, "success").Inc()
	}

	c.commitMessage(ctx, msg)

	c.logger.Debug("message processed",
		zap.String("listing_id", event.ListingID),
		zap.Duration("duration", time.Since(start)),
	)
}

func decodeListingEvent(data []byte) (*models.ListingChangeEvent, error) {
	var event models.ListingChangeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	if event.ListingID == "" {
		return nil, errors.New("missing listing_id")
	}
	switch event.Type {
	case models.ListingCreated, models.ListingUpdated:
		if event.Listing == nil {
			return nil, fmt.Errorf("%s event without listing body", event.Type)
		}
	case models.ListingDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
	return &event, nil
}

func (c *Consumer) sendToDLQ(ctx context.Context, msg kafka.Message, reason string) {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "dlq_reason", Value: []byte(reason)},
			kafka.Header{Key: "original_topic", Value: []byte(c.cfg.TopicListings)},
			kafka.Header{Key: "original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		),
	}

	status := "success"
	if err := c.dlqWriter.WriteMessages(ctx, dlqMsg); err != nil {
		status = "error"
		c.logger.Error("failed to send to DLQ",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
		)
	}
	observability.KafkaPublishTotal.WithLabelValues(c.cfg.TopicDLQ, status).Inc()
}

func (c *Consumer) commitMessage(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("committing kafka message",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
		)
	}
}

func (c *Consumer) HealthCheck(ctx context.Context) error {
	return pingBrokers(ctx, c.cfg.Brokers)
}

func (c *Consumer) Stop() error {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()

	var errs []error
	if err := c.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing reader: %w", err))
	}
	if err := c.dlqWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing dlq writer: %w", err))
	}
	return errors.Join(errs...)
}

func pingBrokers(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("kafka health check: no brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("kafka health check dial: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Brokers(); err != nil {
		return fmt.Errorf("kafka health check brokers: %w", err)
	}
	return nil
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
