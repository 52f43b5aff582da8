// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTIssuer is the iss claim (e.g. "authcore").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "trading-platform").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "336h" = 14d).
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// SigningKeyRotateEvery is how often a fresh signing key is generated (e.g. "720h").
	SigningKeyRotateEvery string `mapstructure:"SIGNING_KEY_ROTATE_EVERY"`
	// SigningKeyGrace is how long a retired key stays valid for verification (e.g. "48h").
	SigningKeyGrace string `mapstructure:"SIGNING_KEY_GRACE"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// SessionAbsoluteTTL bounds a session's total lifetime (e.g. "2160h" = 90d).
	SessionAbsoluteTTL string `mapstructure:"SESSION_ABSOLUTE_TTL"`
	// SessionIdleTTL bounds the inactivity window (e.g. "336h" = 14d).
	SessionIdleTTL string `mapstructure:"SESSION_IDLE_TTL"`
	// LoginMaxAttempts is the failed-login budget per window before lockout.
	LoginMaxAttempts int `mapstructure:"LOGIN_MAX_ATTEMPTS"`
	// LoginAttemptWindow is the sliding window for failed-login counting (e.g. "15m").
	LoginAttemptWindow string `mapstructure:"LOGIN_ATTEMPT_WINDOW"`
	// MFAMaxAttempts is the wrong-code budget per challenge before it is invalidated.
	MFAMaxAttempts int `mapstructure:"MFA_MAX_ATTEMPTS"`
	// MFAChallengeTTL is the lifetime of an MFA challenge (e.g. "5m").
	MFAChallengeTTL string `mapstructure:"MFA_CHALLENGE_TTL"`
	// DecisionCacheTTL bounds authorization decision staleness (e.g. "30s").
	DecisionCacheTTL string `mapstructure:"DECISION_CACHE_TTL"`
	// AttributeLookupTimeout bounds calls to the resource-attribute collaborator (e.g. "500ms").
	AttributeLookupTimeout string `mapstructure:"ATTRIBUTE_LOOKUP_TIMEOUT"`
	// KMSKeyID is the AWS KMS key id/ARN/alias for the master-key boundary.
	// Empty selects the local master key (dev only; rejected in production).
	KMSKeyID string `mapstructure:"KMS_KEY_ID"`
	// LocalMasterKey is a base64 32-byte key for the dev master-key boundary.
	LocalMasterKey string `mapstructure:"LOCAL_MASTER_KEY"`
	// KafkaBrokers is a comma-separated list of Kafka broker addresses.
	// Empty disables the event bus (security events are then log-only).
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SecurityEventsTopic is the topic security events are produced to.
	SecurityEventsTopic string `mapstructure:"SECURITY_EVENTS_TOPIC"`
	// PermissionEventsTopic is the topic the worker consumes invalidations from.
	PermissionEventsTopic string `mapstructure:"PERMISSION_EVENTS_TOPIC"`
	// KafkaGroupID is the consumer group ID for the invalidation worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// OTLPEndpoint is the OTLP gRPC endpoint for traces/metrics; empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "authcore")
	v.SetDefault("JWT_AUDIENCE", "trading-platform")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "336h") // 14d
	v.SetDefault("SIGNING_KEY_ROTATE_EVERY", "720h")
	v.SetDefault("SIGNING_KEY_GRACE", "48h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SESSION_ABSOLUTE_TTL", "2160h") // 90d
	v.SetDefault("SESSION_IDLE_TTL", "336h")      // 14d
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_ATTEMPT_WINDOW", "15m")
	v.SetDefault("MFA_MAX_ATTEMPTS", 4)
	v.SetDefault("MFA_CHALLENGE_TTL", "5m")
	v.SetDefault("DECISION_CACHE_TTL", "30s")
	v.SetDefault("ATTRIBUTE_LOOKUP_TIMEOUT", "500ms")
	v.SetDefault("KMS_KEY_ID", "")
	v.SetDefault("LOCAL_MASTER_KEY", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SECURITY_EVENTS_TOPIC", "authcore-security-events")
	v.SetDefault("PERMISSION_EVENTS_TOPIC", "authcore-permission-changes")
	v.SetDefault("KAFKA_GROUP_ID", "authcore-invalidation-worker")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.Env == "production" && cfg.KMSKeyID == "" {
		return nil, errors.New("config: KMS_KEY_ID must be set when APP_ENV=production")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.LoginMaxAttempts <= 0 {
		return nil, errors.New("config: LOGIN_MAX_ATTEMPTS must be positive")
	}
	if cfg.MFAMaxAttempts <= 0 {
		return nil, errors.New("config: MFA_MAX_ATTEMPTS must be positive")
	}

	return &cfg, nil
}

func duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration { return duration(c.JWTAccessTTL, 15*time.Minute) }

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 336h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration { return duration(c.JWTRefreshTTL, 336*time.Hour) }

// KeyRotateEvery parses SigningKeyRotateEvery. Returns 720h if unset or invalid.
func (c *Config) KeyRotateEvery() time.Duration {
	return duration(c.SigningKeyRotateEvery, 720*time.Hour)
}

// KeyGrace parses SigningKeyGrace. Returns 48h if unset or invalid.
func (c *Config) KeyGrace() time.Duration { return duration(c.SigningKeyGrace, 48*time.Hour) }

// AbsoluteSessionTTL parses SessionAbsoluteTTL. Returns 90d if unset or invalid.
func (c *Config) AbsoluteSessionTTL() time.Duration {
	return duration(c.SessionAbsoluteTTL, 2160*time.Hour)
}

// IdleSessionTTL parses SessionIdleTTL. Returns 14d if unset or invalid.
func (c *Config) IdleSessionTTL() time.Duration { return duration(c.SessionIdleTTL, 336*time.Hour) }

// AttemptWindow parses LoginAttemptWindow. Returns 15m if unset or invalid.
func (c *Config) AttemptWindow() time.Duration { return duration(c.LoginAttemptWindow, 15*time.Minute) }

// ChallengeTTL parses MFAChallengeTTL. Returns 5m if unset or invalid.
func (c *Config) ChallengeTTL() time.Duration { return duration(c.MFAChallengeTTL, 5*time.Minute) }

// CacheTTL parses DecisionCacheTTL. Returns 30s if unset or invalid.
func (c *Config) CacheTTL() time.Duration { return duration(c.DecisionCacheTTL, 30*time.Second) }

// LookupTimeout parses AttributeLookupTimeout. Returns 500ms if unset or invalid.
func (c *Config) LookupTimeout() time.Duration {
	return duration(c.AttributeLookupTimeout, 500*time.Millisecond)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the event bus is enabled (non-empty list) and to create producers.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
