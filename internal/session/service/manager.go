// Package service orchestrates login, MFA step-up, token refresh, and logout.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trading-platform/authcore/internal/autherr"
	"trading-platform/authcore/internal/audit"
	"trading-platform/authcore/internal/mfa"
	mfadomain "trading-platform/authcore/internal/mfa/domain"
	mfarepo "trading-platform/authcore/internal/mfa/repository"
	"trading-platform/authcore/internal/refresh"
	"trading-platform/authcore/internal/security"
	sessiondomain "trading-platform/authcore/internal/session/domain"
	sessionrepo "trading-platform/authcore/internal/session/repository"
	"trading-platform/authcore/internal/token"
	userdomain "trading-platform/authcore/internal/user/domain"
	userrepo "trading-platform/authcore/internal/user/repository"
)

// CredentialVerifier checks credential material and resolves the user. The
// local implementation verifies passwords; an OAuth callback path can feed
// the same session core through an alternate implementation.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*userdomain.User, error)
}

// SecretVault seals and fetches secret material (here: TOTP seeds). Callers
// must not retain fetched plaintext beyond the single operation needing it.
type SecretVault interface {
	Store(ctx context.Context, kind string, plaintext []byte) (id string, err error)
	Fetch(ctx context.Context, id string) ([]byte, error)
}

// SecurityNotifier emits out-of-band security notifications.
type SecurityNotifier interface {
	MFALockout(ctx context.Context, userID string)
}

// Device describes the client instance attempting authentication.
type Device struct {
	Fingerprint string
	IPAddress   string
	Country     string
}

// TokenPair is the credential set returned to an authenticated client.
type TokenPair struct {
	SessionID        string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// MFAChallengeRef is returned instead of tokens when step-up is required.
// The token is opaque; the server stores only its hash.
type MFAChallengeRef struct {
	ChallengeToken string
	ExpiresAt      time.Time
}

// MFARequiredError is returned by Login when the password check passed but a
// one-time code must be presented before a session exists. It carries the
// challenge reference the client needs for the second step and unwraps to
// autherr.ErrMFARequired.
type MFARequiredError struct {
	Challenge MFAChallengeRef
}

func (e *MFARequiredError) Error() string { return autherr.ErrMFARequired.Error() }

func (e *MFARequiredError) Unwrap() error { return autherr.ErrMFARequired }

// Config bundles the manager's tunables.
type Config struct {
	AbsoluteSessionTTL time.Duration
	IdleSessionTTL     time.Duration
	ChallengeTTL       time.Duration
	LoginMaxAttempts   int
	MFAMaxAttempts     int
}

// Manager ties credential verification, the token family rotator, and the
// token service into the session lifecycle.
type Manager struct {
	verifier   CredentialVerifier
	users      userrepo.Repository
	sessions   sessionrepo.Repository
	challenges mfarepo.Repository
	rotator    *refresh.Rotator
	tokens     *token.Service
	vault      SecretVault
	attempts   AttemptStore
	auditor    audit.AuditLogger
	notifier   SecurityNotifier
	cfg        Config
	log        zerolog.Logger
	nowF       func() time.Time
}

// NewManager returns a session Manager. notifier may be nil (log-only).
func NewManager(
	verifier CredentialVerifier,
	users userrepo.Repository,
	sessions sessionrepo.Repository,
	challenges mfarepo.Repository,
	rotator *refresh.Rotator,
	tokens *token.Service,
	vault SecretVault,
	attempts AttemptStore,
	auditor audit.AuditLogger,
	notifier SecurityNotifier,
	cfg Config,
	log zerolog.Logger,
) *Manager {
	return &Manager{
		verifier:   verifier,
		users:      users,
		sessions:   sessions,
		challenges: challenges,
		rotator:    rotator,
		tokens:     tokens,
		vault:      vault,
		attempts:   attempts,
		auditor:    auditor,
		notifier:   notifier,
		cfg:        cfg,
		log:        log,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// Login verifies credentials and creates a session, returning its token
// pair. When the user is MFA-enrolled it instead persists a challenge and
// returns an *MFARequiredError carrying its reference; no session or token
// family exists until MFA completes.
func (m *Manager) Login(ctx context.Context, email, password string, dev Device) (*TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, autherr.ErrInvalidCredentials
	}
	key := "login:" + email

	// Check the budget before verifying so a locked-out identifier is
	// rejected even with the right password.
	count, err := m.attempts.Count(ctx, key, m.nowF())
	if err != nil {
		m.log.Error().Err(err).Msg("attempt store unreachable")
		return nil, autherr.ErrRateLimited
	}
	if count >= m.cfg.LoginMaxAttempts {
		m.auditor.LogEvent(ctx, "", "login.lockout", "user:"+email, "")
		return nil, autherr.ErrRateLimited
	}

	user, err := m.verifier.Verify(ctx, email, password)
	if err != nil {
		if _, recErr := m.attempts.Record(ctx, key, m.nowF()); recErr != nil {
			m.log.Error().Err(recErr).Msg("attempt store unreachable")
			return nil, autherr.ErrRateLimited
		}
		return nil, err
	}
	if user.Status != userdomain.StatusActive {
		return nil, autherr.ErrInvalidCredentials
	}
	if err := m.attempts.Reset(ctx, key); err != nil {
		m.log.Warn().Err(err).Msg("attempt reset failed")
	}

	if user.MFAEnrolled {
		ref, err := m.createChallenge(ctx, user, dev)
		if err != nil {
			return nil, err
		}
		m.auditor.LogEvent(ctx, user.ID, "login.mfa_challenge", "user:"+user.ID, "")
		return nil, &MFARequiredError{Challenge: *ref}
	}

	pair, err := m.createSession(ctx, user, dev, false)
	if err != nil {
		return nil, err
	}
	m.auditor.LogEvent(ctx, user.ID, "login.success", "session:"+pair.SessionID, "")
	return pair, nil
}

// CompleteMFA verifies the one-time code against the sealed seed and performs
// the same session-creation steps as a passwordless login completion. The
// fourth consecutive wrong code invalidates the challenge; login must restart.
func (m *Manager) CompleteMFA(ctx context.Context, challengeToken, code string) (*TokenPair, error) {
	ch, err := m.challenges.GetByTokenHash(ctx, security.HashToken(challengeToken))
	if err != nil {
		return nil, err
	}
	now := m.nowF()
	if ch == nil || now.After(ch.ExpiresAt) {
		return nil, autherr.ErrExpired
	}

	user, err := m.users.GetByID(ctx, ch.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.MFAEnrolled {
		return nil, autherr.ErrExpired
	}

	seed, err := m.vault.Fetch(ctx, user.MFASeedRef)
	if err != nil {
		return nil, autherr.ErrKeyUnavailable
	}
	if !mfa.VerifyCode(string(seed), code, now) {
		attempts, incErr := m.challenges.IncrementAttempts(ctx, ch.ID)
		if incErr != nil {
			m.log.Error().Err(incErr).Msg("challenge attempt count unreachable")
			return nil, autherr.ErrRateLimited
		}
		if attempts >= m.cfg.MFAMaxAttempts {
			if err := m.challenges.Delete(ctx, ch.ID); err != nil {
				m.log.Warn().Err(err).Msg("challenge delete failed")
			}
			m.auditor.LogEvent(ctx, user.ID, "mfa.lockout", "user:"+user.ID, "")
			if m.notifier != nil {
				m.notifier.MFALockout(ctx, user.ID)
			}
			return nil, autherr.ErrRateLimited
		}
		return nil, autherr.ErrMFAInvalid
	}

	if err := m.challenges.Delete(ctx, ch.ID); err != nil {
		m.log.Warn().Err(err).Msg("challenge delete failed")
	}
	dev := Device{Fingerprint: ch.DeviceFingerprint, IPAddress: ch.IPAddress}
	pair, err := m.createSession(ctx, user, dev, true)
	if err != nil {
		return nil, err
	}
	m.auditor.LogEvent(ctx, user.ID, "login.mfa_success", "session:"+pair.SessionID, "")
	return pair, nil
}

// Refresh rotates the presented refresh token and mints a fresh pair bound to
// the still-valid session. Expired and reuse outcomes both force
// re-authentication; reuse additionally revokes the family and notifies.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := m.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	sess, err := m.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	now := m.nowF()
	if sess == nil || sess.RevokedAt != nil {
		return nil, autherr.ErrExpired
	}
	if sess.Expired(now, m.cfg.AbsoluteSessionTTL, m.cfg.IdleSessionTTL) {
		if err := m.sessions.Revoke(ctx, sess.ID); err != nil {
			m.log.Warn().Err(err).Str("session_id", sess.ID).Msg("revoke expired session failed")
		}
		if err := m.rotator.RevokeFamily(ctx, sess.ID); err != nil {
			m.log.Warn().Err(err).Str("session_id", sess.ID).Msg("revoke family failed")
		}
		if err := m.rotator.PurgeFamily(ctx, sess.ID); err != nil {
			m.log.Warn().Err(err).Str("session_id", sess.ID).Msg("purge family failed")
		}
		return nil, autherr.ErrExpired
	}

	node, err := m.rotator.Rotate(ctx, claims.ID)
	if err != nil {
		if err == autherr.ErrReuseDetected {
			m.auditor.LogEvent(ctx, sess.UserID, "refresh.reuse_detected", "session:"+sess.ID, "family revoked")
		}
		return nil, err
	}

	if err := m.sessions.Touch(ctx, sess.ID, now); err != nil {
		m.log.Warn().Err(err).Str("session_id", sess.ID).Msg("touch session failed")
	}

	user, err := m.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status != userdomain.StatusActive {
		return nil, autherr.ErrExpired
	}
	pair, err := m.mintPair(sess, user, node.JTI, true)
	if err != nil {
		return nil, err
	}
	m.auditor.LogEvent(ctx, user.ID, "refresh.success", "session:"+sess.ID, "")
	return pair, nil
}

// Logout revokes one session, or every session of the owning user when
// allDevices is set. Returns the number of sessions revoked.
func (m *Manager) Logout(ctx context.Context, sessionID string, allDevices bool) (int, error) {
	sess, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if sess == nil {
		return 0, nil
	}

	if allDevices {
		count, err := m.sessions.RevokeAllForUser(ctx, sess.UserID)
		if err != nil {
			return 0, err
		}
		if err := m.rotator.RevokeAllForUser(ctx, sess.UserID); err != nil {
			return 0, err
		}
		// Revoke first so the families are dead even if the purge fails.
		if err := m.rotator.PurgeAllForUser(ctx, sess.UserID); err != nil {
			m.log.Warn().Err(err).Str("user_id", sess.UserID).Msg("purge families failed")
		}
		m.auditor.LogEvent(ctx, sess.UserID, "logout.all_devices", "user:"+sess.UserID, "")
		return count, nil
	}

	revoked := 0
	if sess.RevokedAt == nil {
		revoked = 1
	}
	if err := m.sessions.Revoke(ctx, sessionID); err != nil {
		return 0, err
	}
	if err := m.rotator.RevokeFamily(ctx, sessionID); err != nil {
		return 0, err
	}
	if err := m.rotator.PurgeFamily(ctx, sessionID); err != nil {
		m.log.Warn().Err(err).Str("session_id", sessionID).Msg("purge family failed")
	}
	m.auditor.LogEvent(ctx, sess.UserID, "logout", "session:"+sessionID, "")
	return revoked, nil
}

// EnrollMFA generates a TOTP seed for the user, seals it in the vault, and
// returns the provisioning URL. Enrollment only takes effect once ActivateMFA
// confirms the user's authenticator produces valid codes.
func (m *Manager) EnrollMFA(ctx context.Context, userID string) (provisioningURL string, err error) {
	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", autherr.ErrInvalidCredentials
	}
	secret, url, err := mfa.GenerateSeed(user.Email)
	if err != nil {
		return "", err
	}
	ref, err := m.vault.Store(ctx, "mfa-seed", []byte(secret))
	if err != nil {
		return "", autherr.ErrKeyUnavailable
	}
	if err := m.users.SetMFAEnrollment(ctx, userID, false, ref); err != nil {
		return "", err
	}
	return url, nil
}

// ActivateMFA confirms enrollment with a first valid code.
func (m *Manager) ActivateMFA(ctx context.Context, userID, code string) error {
	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || user.MFASeedRef == "" {
		return autherr.ErrMFAInvalid
	}
	seed, err := m.vault.Fetch(ctx, user.MFASeedRef)
	if err != nil {
		return autherr.ErrKeyUnavailable
	}
	if !mfa.VerifyCode(string(seed), code, m.nowF()) {
		return autherr.ErrMFAInvalid
	}
	if err := m.users.SetMFAEnrollment(ctx, userID, true, user.MFASeedRef); err != nil {
		return err
	}
	m.auditor.LogEvent(ctx, userID, "mfa.enrolled", "user:"+userID, "")
	return nil
}

func (m *Manager) createChallenge(ctx context.Context, user *userdomain.User, dev Device) (*MFAChallengeRef, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	tokenStr := hex.EncodeToString(raw)
	now := m.nowF()
	ch := &mfadomain.Challenge{
		ID:                uuid.New().String(),
		UserID:            user.ID,
		TokenHash:         security.HashToken(tokenStr),
		DeviceFingerprint: dev.Fingerprint,
		IPAddress:         dev.IPAddress,
		ExpiresAt:         now.Add(m.cfg.ChallengeTTL),
		CreatedAt:         now,
	}
	if err := m.challenges.Create(ctx, ch); err != nil {
		return nil, err
	}
	return &MFAChallengeRef{ChallengeToken: tokenStr, ExpiresAt: ch.ExpiresAt}, nil
}

func (m *Manager) createSession(ctx context.Context, user *userdomain.User, dev Device, mfaSatisfied bool) (*TokenPair, error) {
	now := m.nowF()
	sess := &sessiondomain.Session{
		ID:                uuid.New().String(),
		UserID:            user.ID,
		DeviceFingerprint: dev.Fingerprint,
		IPAddress:         dev.IPAddress,
		Country:           dev.Country,
		CreatedAt:         now,
		LastActiveAt:      now,
	}
	if err := m.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	rootJTI, err := m.rotator.StartFamily(ctx, sess.ID, user.ID)
	if err != nil {
		return nil, err
	}
	return m.mintPair(sess, user, rootJTI, mfaSatisfied)
}

func (m *Manager) mintPair(sess *sessiondomain.Session, user *userdomain.User, refreshJTI string, mfaSatisfied bool) (*TokenPair, error) {
	access, accessExp, err := m.tokens.IssueAccessToken(token.IssueRequest{
		Subject:      user.ID,
		SessionID:    sess.ID,
		Scopes:       scopesFor(user),
		Roles:        user.Roles,
		AccountIDs:   user.AccountIDs,
		MFASatisfied: mfaSatisfied,
	})
	if err != nil {
		return nil, err
	}
	refreshTok, refreshExp, err := m.tokens.IssueRefreshToken(sess.ID, user.ID, refreshJTI)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		SessionID:        sess.ID,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshTok,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func scopesFor(user *userdomain.User) []string {
	scopes := []string{"platform"}
	for _, r := range user.Roles {
		if r == "service" {
			scopes = append(scopes, "credentials:read")
		}
	}
	return scopes
}

// LocalVerifier verifies passwords against the user store with bcrypt.
type LocalVerifier struct {
	users  userrepo.Repository
	hasher *security.Hasher
}

// NewLocalVerifier returns a password-based CredentialVerifier.
func NewLocalVerifier(users userrepo.Repository, hasher *security.Hasher) *LocalVerifier {
	return &LocalVerifier{users: users, hasher: hasher}
}

// Verify resolves the user by email and checks the password hash. Unknown
// user and wrong password are indistinguishable to the caller.
func (v *LocalVerifier) Verify(ctx context.Context, email, password string) (*userdomain.User, error) {
	user, err := v.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" {
		return nil, autherr.ErrInvalidCredentials
	}
	if err := v.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		return nil, autherr.ErrInvalidCredentials
	}
	return user, nil
}
