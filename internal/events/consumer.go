package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Invalidator receives permission-change notifications. Implemented by the
// authorization engine's decision cache.
type Invalidator interface {
	InvalidateFor(subject, resource string)
}

// Consumer reads the permission-change feed and drives cache invalidation.
// The decision cache's TTL bounds staleness when a message is lost or
// delayed, so consumption is at-least-once with no replay handling.
type Consumer struct {
	reader *kafka.Reader
	sink   Invalidator
	log    zerolog.Logger
}

// NewConsumer creates a permission-change consumer.
func NewConsumer(brokers []string, topic, groupID string, sink Invalidator, log zerolog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	return &Consumer{reader: reader, sink: sink, log: log}
}

// Run consumes until ctx is cancelled. Malformed messages are logged and
// skipped; read errors are logged and retried.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error().Err(err).Msg("kafka read error")
			continue
		}
		var change PermissionChange
		if err := json.Unmarshal(msg.Value, &change); err != nil {
			c.log.Warn().Err(err).Msg("malformed permission-change event")
			continue
		}
		c.sink.InvalidateFor(change.Subject, change.Resource)
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}
