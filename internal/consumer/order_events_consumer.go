package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/internal/notifier"
)

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader   MessageReader
	notifier notifier.Notifier
	log      *zap.Logger
	backoff  time.Duration
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewConsumer(reader MessageReader, n notifier.Notifier, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{reader: reader, notifier: n, log: log, backoff: time.Second}
}

// Run reads order events until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error("error closing kafka reader", zap.Error(err))
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		c.log.Error("error reading message", zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(c.backoff):
		}
		return
	}

	eventType := header(m, "event_type")
	var event domain.OrderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.log.Warn("error parsing message",
			zap.String("event_type", eventType),
			zap.Int64("offset", m.Offset),
			zap.Error(err))
		return
	}

	n, ok := notifier.Compose(eventType, event)
	if !ok {
		c.log.Debug("ignoring event", zap.String("event_type", eventType))
		return
	}
	if err := c.notifier.Notify(ctx, n); err != nil {
		c.log.Warn("notification failed",
			zap.String("order_id", n.OrderID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
