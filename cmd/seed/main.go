// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	authzdomain "trading-platform/authcore/internal/authz/domain"
	authzrepo "trading-platform/authcore/internal/authz/repository"
	"trading-platform/authcore/internal/config"
	"trading-platform/authcore/internal/db"
	"trading-platform/authcore/internal/security"
	userdomain "trading-platform/authcore/internal/user/domain"
	userrepo "trading-platform/authcore/internal/user/repository"
)

const (
	devUserEmail = "dev@example.com"
	devPassword  = "password123"
	devUserID    = "dev-user-001"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}
	if cfg.Env == "production" {
		log.Fatal().Msg("refusing to seed a production database")
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer database.Close()

	ctx := context.Background()
	users := userrepo.NewPostgresRepository(database)
	policies := authzrepo.NewPostgresRepository(database)

	existing, err := users.GetByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatal().Err(err).Msg("check dev user")
	}
	if existing != nil {
		log.Info().Msg("dev user already exists, nothing to do")
		return
	}

	hash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(devPassword))
	if err != nil {
		log.Fatal().Err(err).Msg("hash dev password")
	}
	now := time.Now().UTC()
	if err := users.Create(ctx, &userdomain.User{
		ID:           devUserID,
		Email:        devUserEmail,
		Name:         "Dev User",
		PasswordHash: hash,
		Roles:        []string{"trader"},
		AccountIDs:   []string{"acct-100"},
		Status:       userdomain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		log.Fatal().Err(err).Msg("create dev user")
	}

	baseline := []*authzdomain.Policy{
		{
			ID:              uuid.New().String(),
			SubjectPattern:  "*",
			ActionPattern:   "read",
			ResourcePattern: "trading_account:*",
			Effect:          authzdomain.EffectAllow,
			Priority:        10,
			Conditions:      []authzdomain.Condition{{Type: authzdomain.ConditionOwner}},
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		{
			ID:              uuid.New().String(),
			SubjectPattern:  "*",
			ActionPattern:   "trade",
			ResourcePattern: "trading_account:*",
			Effect:          authzdomain.EffectAllow,
			Priority:        10,
			Conditions: []authzdomain.Condition{
				{Type: authzdomain.ConditionOwner},
				{Type: authzdomain.ConditionRole, Role: "trader"},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:              uuid.New().String(),
			SubjectPattern:  "*",
			ActionPattern:   "*",
			ResourcePattern: "admin:*",
			Effect:          authzdomain.EffectAllow,
			Priority:        20,
			Conditions:      []authzdomain.Condition{{Type: authzdomain.ConditionRole, Role: "admin"}},
			CreatedAt:       now,
			UpdatedAt:       now,
		},
	}
	for _, p := range baseline {
		if err := policies.Create(ctx, p); err != nil {
			log.Fatal().Err(err).Str("policy_id", p.ID).Msg("create policy")
		}
	}

	log.Info().Str("email", devUserEmail).Int("policies", len(baseline)).Msg("seed complete")
}
