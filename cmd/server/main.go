package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trading-platform/authcore/internal/audit"
	auditrepo "trading-platform/authcore/internal/audit/repository"
	authzengine "trading-platform/authcore/internal/authz/engine"
	authzrepo "trading-platform/authcore/internal/authz/repository"
	"trading-platform/authcore/internal/config"
	"trading-platform/authcore/internal/db"
	"trading-platform/authcore/internal/events"
	mfarepo "trading-platform/authcore/internal/mfa/repository"
	"trading-platform/authcore/internal/refresh"
	refreshrepo "trading-platform/authcore/internal/refresh/repository"
	"trading-platform/authcore/internal/security"
	"trading-platform/authcore/internal/server"
	sessionrepo "trading-platform/authcore/internal/session/repository"
	sessionsvc "trading-platform/authcore/internal/session/service"
	"trading-platform/authcore/internal/telemetry/otel"
	"trading-platform/authcore/internal/token"
	userrepo "trading-platform/authcore/internal/user/repository"
	"trading-platform/authcore/internal/vault"
	vaultrepo "trading-platform/authcore/internal/vault/repository"
)

// sessionInvalidator adapts the session repository to the rotator's reuse
// response.
type sessionInvalidator struct {
	repo sessionrepo.Repository
}

func (s sessionInvalidator) Invalidate(ctx context.Context, sessionID string) error {
	return s.repo.Revoke(ctx, sessionID)
}

// accountResolver adapts the user repository to the engine's owner lookups.
type accountResolver struct {
	users userrepo.Repository
}

func (a accountResolver) OwnerOfAccount(ctx context.Context, accountID string) (string, error) {
	u, err := a.users.GetByAccountID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", nil
	}
	return u.ID, nil
}

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "authcore").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "authcore", false)
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry")
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer database.Close()

	users := userrepo.NewPostgresRepository(database)
	sessions := sessionrepo.NewPostgresRepository(database)
	refreshNodes := refreshrepo.NewPostgresRepository(database)
	challenges := mfarepo.NewPostgresRepository(database)
	audits := auditrepo.NewPostgresRepository(database)
	policies := authzrepo.NewPostgresRepository(database)
	secrets := vaultrepo.NewPostgresRepository(database)

	auditor := audit.NewLogger(audits, nil, log)

	producer := events.NewProducer(cfg.KafkaBrokersList(), cfg.SecurityEventsTopic, log)
	defer producer.Close()

	keys := token.NewMemoryKeyStore(cfg.KeyGrace())
	tokens := token.NewService(keys, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())
	if err := tokens.RotateSigningKey(); err != nil {
		log.Fatal().Err(err).Msg("initial signing key")
	}
	go rotateKeysLoop(ctx, tokens, cfg.KeyRotateEvery(), log)

	var master vault.MasterKey
	if cfg.KMSKeyID != "" {
		master, err = vault.NewKMSMasterKey(ctx, cfg.KMSKeyID)
	} else {
		master, err = vault.NewLocalMasterKey("local", cfg.LocalMasterKey)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("master key")
	}
	secretVault := vault.New(secrets, master, auditor, log)

	rotator := refresh.NewRotator(refreshNodes, sessionInvalidator{repo: sessions}, producer, cfg.RefreshTTL(), log)

	manager := sessionsvc.NewManager(
		sessionsvc.NewLocalVerifier(users, security.NewHasher(cfg.BcryptCost)),
		users,
		sessions,
		challenges,
		rotator,
		tokens,
		secretVault,
		sessionsvc.NewMemoryAttemptStore(cfg.AttemptWindow()),
		auditor,
		producer,
		sessionsvc.Config{
			AbsoluteSessionTTL: cfg.AbsoluteSessionTTL(),
			IdleSessionTTL:     cfg.IdleSessionTTL(),
			ChallengeTTL:       cfg.ChallengeTTL(),
			LoginMaxAttempts:   cfg.LoginMaxAttempts,
			MFAMaxAttempts:     cfg.MFAMaxAttempts,
		},
		log,
	)

	cache := authzengine.NewDecisionCache(cfg.CacheTTL())
	attrs := authzengine.NewAccountOwnerSource(accountResolver{users: users})
	engine := authzengine.NewEngine(policies, attrs, cache, cfg.LookupTimeout(), log)

	// The decision cache is per-process, so each instance consumes
	// permission-change events itself.
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		// Unique group per instance: every instance must see every
		// invalidation, not a share of them.
		groupID := cfg.KafkaGroupID + "-" + uuid.New().String()[:8]
		consumer := events.NewConsumer(brokers, cfg.PermissionEventsTopic, groupID, cache, log)
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("permission event consumer stopped")
			}
		}()
	}

	srv := server.New(manager, engine, tokens, secretVault, log, server.Options{})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("serve")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("http server stopped")
}

// rotateKeysLoop generates a fresh signing key on the configured interval.
// Retired keys stay verifiable for the grace window handled by the key store.
func rotateKeysLoop(ctx context.Context, tokens *token.Service, every time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := tokens.RotateSigningKey(); err != nil {
				log.Error().Err(err).Msg("signing key rotation failed")
			} else {
				log.Info().Msg("signing key rotated")
			}
		}
	}
}
