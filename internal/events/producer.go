package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Producer emits security events to Kafka. Emission is best-effort with a
// short timeout: a slow or absent broker must never block the auth path, and
// never mask the security outcome already decided by the caller.
type Producer struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

// NewProducer creates a security-event producer for the given topic. Returns
// nil when brokers is empty; a nil Producer degrades to log-only emission.
func NewProducer(brokers []string, topic string, log zerolog.Logger) *Producer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
		},
		log: log,
	}
}

// TokenReuse emits a token_reuse security event. Satisfies refresh.SecurityNotifier.
func (p *Producer) TokenReuse(ctx context.Context, sessionID, userID string) {
	p.emit(ctx, SecurityEvent{
		Type:       TypeTokenReuse,
		UserID:     userID,
		SessionID:  sessionID,
		OccurredAt: time.Now().UTC(),
	})
}

// MFALockout emits an mfa_lockout security event.
func (p *Producer) MFALockout(ctx context.Context, userID string) {
	p.emit(ctx, SecurityEvent{
		Type:       TypeMFALockout,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *Producer) emit(ctx context.Context, ev SecurityEvent) {
	if p == nil || p.writer == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Str("type", ev.Type).Msg("marshal security event")
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(ev.UserID),
		Value: payload,
	}); err != nil {
		p.log.Error().Err(err).Str("type", ev.Type).Msg("emit security event")
	}
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
