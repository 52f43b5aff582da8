// Worker consumes security events from Kafka and records them in the audit
// trail. Set KAFKA_BROKERS, SECURITY_EVENTS_TOPIC, and KAFKA_GROUP_ID.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"trading-platform/authcore/internal/audit"
	auditrepo "trading-platform/authcore/internal/audit/repository"
	"trading-platform/authcore/internal/config"
	"trading-platform/authcore/internal/db"
	"trading-platform/authcore/internal/events"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "authcore-worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal().Msg("KAFKA_BROKERS is required")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer database.Close()
	auditor := audit.NewLogger(auditrepo.NewPostgresRepository(database), nil, log)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.SecurityEventsTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("shutting down")
		cancel()
	}()

	log.Info().Str("topic", cfg.SecurityEventsTopic).Str("group", cfg.KafkaGroupID).Msg("consuming security events")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("stopped")
				return
			}
			log.Error().Err(err).Msg("kafka read error")
			continue
		}

		var ev events.SecurityEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			log.Error().Err(err).Msg("malformed security event")
			continue
		}
		recordEvent(ctx, auditor, ev)
	}
}

func recordEvent(ctx context.Context, auditor audit.AuditLogger, ev events.SecurityEvent) {
	switch ev.Type {
	case events.TypeTokenReuse:
		auditor.LogEvent(ctx, ev.UserID, "security.token_reuse", "session:"+ev.SessionID, "")
	case events.TypeMFALockout:
		auditor.LogEvent(ctx, ev.UserID, "security.mfa_lockout", "user:"+ev.UserID, "")
	default:
		auditor.LogEvent(ctx, ev.UserID, "security."+ev.Type, "", "")
	}
}
