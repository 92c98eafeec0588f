package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/krwave/ratefeed/internal/rates"
	"github.com/krwave/ratefeed/pkg/metrics"
)

// EventSink is the messaging collaborator: best-effort, fire-and-forget from
// the pipeline's perspective. Retries, if any, belong to the sink itself.
type EventSink interface {
	Publish(ctx context.Context, key string, message interface{}) error
	Close() error
}

// RateUpdateEvent is the message published for each accepted rate.
type RateUpdateEvent struct {
	EventID      string  `json:"event_id"`
	CurrencyCode string  `json:"currency_code"`
	CurrencyName string  `json:"currency_name"`
	BaseRate     float64 `json:"deal_base_rate"`
	SellRate     float64 `json:"tts"`
	BuyRate      float64 `json:"ttb"`
	SourceID     string  `json:"source"`
	RecordedAt   string  `json:"recorded_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// KafkaSink publishes events to a single Kafka topic.
type KafkaSink struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewKafkaSink(brokers []string, topic string, logger *zap.Logger) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.CRC32Balancer{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		Compression:  kafka.Snappy,
		MaxAttempts:  3,
	}
	return &KafkaSink{writer: writer, logger: logger}
}

func (s *KafkaSink) Publish(ctx context.Context, key string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// NoopSink drops every event. Used when messaging is disabled.
type NoopSink struct{}

func (NoopSink) Publish(context.Context, string, interface{}) error { return nil }
func (NoopSink) Close() error                                       { return nil }

// Notifier publishes one update event per record. Every failure is logged
// and swallowed; notification never blocks or fails the pipeline.
type Notifier struct {
	sink   EventSink
	logger *zap.Logger
	now    func() time.Time
}

func NewNotifier(sink EventSink, logger *zap.Logger) *Notifier {
	return &Notifier{sink: sink, logger: logger, now: time.Now}
}

// Notify sends an update event for each record and returns the number sent.
func (n *Notifier) Notify(ctx context.Context, records []rates.CanonicalRate) int {
	sent := 0
	for _, record := range records {
		event := RateUpdateEvent{
			EventID:      uuid.NewString(),
			CurrencyCode: record.CurrencyCode,
			CurrencyName: record.CurrencyName,
			BaseRate:     record.BaseRate.InexactFloat64(),
			SellRate:     record.SellRate.InexactFloat64(),
			BuyRate:      record.BuyRate.InexactFloat64(),
			SourceID:     record.SourceID,
			RecordedAt:   record.RecordedAt.UTC().Format(time.RFC3339),
			UpdatedAt:    n.now().UTC().Format(time.RFC3339),
		}

		if err := n.sink.Publish(ctx, record.CurrencyCode, event); err != nil {
			metrics.EventsPublished.WithLabelValues("failure").Inc()
			n.logger.Warn("failed to publish rate update event",
				zap.String("currency", record.CurrencyCode),
				zap.Error(err))
			continue
		}
		metrics.EventsPublished.WithLabelValues("success").Inc()
		sent++
	}

	n.logger.Debug("update events sent",
		zap.Int("total_records", len(records)),
		zap.Int("events_sent", sent))

	return sent
}
