package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"

	"trading-platform/authcore/internal/audit"
	"trading-platform/authcore/internal/autherr"
	"trading-platform/authcore/internal/mfa"
	mfarepo "trading-platform/authcore/internal/mfa/repository"
	"trading-platform/authcore/internal/refresh"
	refreshrepo "trading-platform/authcore/internal/refresh/repository"
	"trading-platform/authcore/internal/security"
	sessionrepo "trading-platform/authcore/internal/session/repository"
	"trading-platform/authcore/internal/token"
	userdomain "trading-platform/authcore/internal/user/domain"
	userrepo "trading-platform/authcore/internal/user/repository"
)

type memVault struct {
	mu      sync.Mutex
	secrets map[string][]byte
	n       int
	fail    bool
}

func newMemVault() *memVault {
	return &memVault{secrets: make(map[string][]byte)}
}

func (v *memVault) Store(ctx context.Context, kind string, plaintext []byte) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fail {
		return "", autherr.ErrKeyUnavailable
	}
	v.n++
	id := fmt.Sprintf("secret-%d", v.n)
	v.secrets[id] = append([]byte(nil), plaintext...)
	return id, nil
}

func (v *memVault) Fetch(ctx context.Context, id string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fail {
		return nil, autherr.ErrKeyUnavailable
	}
	s, ok := v.secrets[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return append([]byte(nil), s...), nil
}

type lockoutNotifier struct {
	mu       sync.Mutex
	lockouts int
}

func (n *lockoutNotifier) MFALockout(ctx context.Context, userID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lockouts++
}

type testEnv struct {
	manager  *Manager
	users    *userrepo.MemoryRepository
	sessions *sessionrepo.MemoryRepository
	nodes    *refreshrepo.MemoryRepository
	vault    *memVault
	notifier *lockoutNotifier
	tokens   *token.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	users := userrepo.NewMemoryRepository()
	sessions := sessionrepo.NewMemoryRepository()
	challenges := mfarepo.NewMemoryRepository()
	nodes := refreshrepo.NewMemoryRepository()
	vault := newMemVault()
	notifier := &lockoutNotifier{}

	keys := token.NewMemoryKeyStore(time.Hour)
	tokens := token.NewService(keys, "authcore", "trading-platform", 15*time.Minute, 336*time.Hour)
	if err := tokens.RotateSigningKey(); err != nil {
		t.Fatalf("RotateSigningKey: %v", err)
	}

	rotator := refresh.NewRotator(nodes, sessionInvalidator{sessions}, nil, 336*time.Hour, zerolog.Nop())

	m := NewManager(
		NewLocalVerifier(users, security.NewHasher(4)),
		users,
		sessions,
		challenges,
		rotator,
		tokens,
		vault,
		NewMemoryAttemptStore(15*time.Minute),
		audit.Nop{},
		notifier,
		Config{
			AbsoluteSessionTTL: 90 * 24 * time.Hour,
			IdleSessionTTL:     14 * 24 * time.Hour,
			ChallengeTTL:       5 * time.Minute,
			LoginMaxAttempts:   5,
			MFAMaxAttempts:     4,
		},
		zerolog.Nop(),
	)
	return &testEnv{manager: m, users: users, sessions: sessions, nodes: nodes, vault: vault, notifier: notifier, tokens: tokens}
}

type sessionInvalidator struct {
	repo sessionrepo.Repository
}

func (s sessionInvalidator) Invalidate(ctx context.Context, sessionID string) error {
	return s.repo.Revoke(ctx, sessionID)
}

func (e *testEnv) addUser(t *testing.T, email, password string, mfaEnrolled bool) *userdomain.User {
	t.Helper()
	hash, err := security.NewHasher(4).Hash([]byte(password))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &userdomain.User{
		ID:           "user-" + email,
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{"trader"},
		AccountIDs:   []string{"acct-1"},
		Status:       userdomain.StatusActive,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if mfaEnrolled {
		secret, _, err := mfa.GenerateSeed(email)
		if err != nil {
			t.Fatalf("GenerateSeed: %v", err)
		}
		ref, err := e.vault.Store(context.Background(), "mfa-seed", []byte(secret))
		if err != nil {
			t.Fatalf("vault store: %v", err)
		}
		u.MFAEnrolled = true
		u.MFASeedRef = ref
	}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (e *testEnv) codeFor(t *testing.T, u *userdomain.User) string {
	t.Helper()
	seed, err := e.vault.Fetch(context.Background(), u.MFASeedRef)
	if err != nil {
		t.Fatalf("fetch seed: %v", err)
	}
	code, err := totp.GenerateCodeCustom(string(seed), time.Now().UTC(), totp.ValidateOpts{
		Period: 30, Skew: 1, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	return code
}

func TestLoginWithoutMFA(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "a@example.com", "hunter22", false)
	ctx := context.Background()

	pair, err := env.manager.Login(ctx, "a@example.com", "hunter22", Device{Fingerprint: "fp1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair == nil {
		t.Fatal("expected token pair")
	}

	claims, err := env.tokens.VerifyAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.SessionID != pair.SessionID || claims.MFASatisfied {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "a@example.com", "hunter22", false)

	_, err := env.manager.Login(context.Background(), "a@example.com", "wrong", Device{})
	if !errors.Is(err, autherr.ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginLockoutBlocksCorrectPassword(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "a@example.com", "hunter22", false)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := env.manager.Login(ctx, "a@example.com", "wrong", Device{}); !errors.Is(err, autherr.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: got %v", i, err)
		}
	}
	// Budget exhausted: the right password is rejected too.
	if _, err := env.manager.Login(ctx, "a@example.com", "hunter22", Device{}); !errors.Is(err, autherr.ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}
}

func TestLoginInactiveUser(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, "a@example.com", "hunter22", false)
	u.Status = userdomain.StatusLocked
	if err := env.users.Create(context.Background(), u); err != nil {
		t.Fatalf("update user: %v", err)
	}

	if _, err := env.manager.Login(context.Background(), "a@example.com", "hunter22", Device{}); !errors.Is(err, autherr.ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
}

func TestMFAFlow(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, "m@example.com", "hunter22", true)
	ctx := context.Background()

	_, err := env.manager.Login(ctx, "m@example.com", "hunter22", Device{Fingerprint: "fp1"})
	var mfaErr *MFARequiredError
	if !errors.As(err, &mfaErr) {
		t.Fatalf("expected MFARequiredError, got %v", err)
	}
	if !errors.Is(err, autherr.ErrMFARequired) {
		t.Fatalf("challenge error does not unwrap to ErrMFARequired: %v", err)
	}

	pair, err := env.manager.CompleteMFA(ctx, mfaErr.Challenge.ChallengeToken, env.codeFor(t, u))
	if err != nil {
		t.Fatalf("CompleteMFA: %v", err)
	}
	claims, err := env.tokens.VerifyAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if !claims.MFASatisfied {
		t.Fatal("MFASatisfied not set after step-up")
	}

	// The challenge is single-use.
	if _, err := env.manager.CompleteMFA(ctx, mfaErr.Challenge.ChallengeToken, env.codeFor(t, u)); !errors.Is(err, autherr.ErrExpired) {
		t.Fatalf("replayed challenge: got %v, want ErrExpired", err)
	}
}

func TestMFAFourStrikesInvalidatesChallenge(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "m@example.com", "hunter22", true)
	ctx := context.Background()

	_, err := env.manager.Login(ctx, "m@example.com", "hunter22", Device{})
	var mfaErr *MFARequiredError
	if !errors.As(err, &mfaErr) {
		t.Fatalf("expected MFARequiredError, got %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := env.manager.CompleteMFA(ctx, mfaErr.Challenge.ChallengeToken, "000000"); !errors.Is(err, autherr.ErrMFAInvalid) {
			t.Fatalf("strike %d: got %v, want ErrMFAInvalid", i+1, err)
		}
	}
	// Fourth wrong code kills the challenge and notifies.
	if _, err := env.manager.CompleteMFA(ctx, mfaErr.Challenge.ChallengeToken, "000000"); !errors.Is(err, autherr.ErrRateLimited) {
		t.Fatalf("strike 4: got %v, want ErrRateLimited", err)
	}
	if env.notifier.lockouts != 1 {
		t.Fatalf("lockout notifications: %d, want 1", env.notifier.lockouts)
	}
	if _, err := env.manager.CompleteMFA(ctx, mfaErr.Challenge.ChallengeToken, "000000"); !errors.Is(err, autherr.ErrExpired) {
		t.Fatalf("dead challenge: got %v, want ErrExpired", err)
	}
}

func TestRefreshRotates(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "a@example.com", "hunter22", false)
	ctx := context.Background()

	pair, err := env.manager.Login(ctx, "a@example.com", "hunter22", Device{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	next, err := env.manager.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.SessionID != pair.SessionID {
		t.Fatalf("session changed across refresh: %s != %s", next.SessionID, pair.SessionID)
	}

	// The consumed refresh token is reuse when presented again, and the
	// session dies with the family.
	if _, err := env.manager.Refresh(ctx, pair.RefreshToken); !errors.Is(err, autherr.ErrReuseDetected) {
		t.Fatalf("replay: got %v, want ErrReuseDetected", err)
	}
	if _, err := env.manager.Refresh(ctx, next.RefreshToken); !errors.Is(err, autherr.ErrExpired) {
		t.Fatalf("post-revocation refresh: got %v, want ErrExpired", err)
	}
}

func TestRefreshRevokedSession(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "a@example.com", "hunter22", false)
	ctx := context.Background()

	pair, err := env.manager.Login(ctx, "a@example.com", "hunter22", Device{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := env.manager.Logout(ctx, pair.SessionID, false); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := env.manager.Refresh(ctx, pair.RefreshToken); !errors.Is(err, autherr.ErrExpired) {
		t.Fatalf("got %v, want ErrExpired", err)
	}

	// Logout purges the family rows outright.
	family, err := env.nodes.Family(ctx, pair.SessionID)
	if err != nil {
		t.Fatalf("Family: %v", err)
	}
	if len(family) != 0 {
		t.Fatalf("family rows remain after logout: %d", len(family))
	}
}

func TestLogoutAllDevices(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "a@example.com", "hunter22", false)
	ctx := context.Background()

	first, err := env.manager.Login(ctx, "a@example.com", "hunter22", Device{Fingerprint: "laptop"})
	if err != nil {
		t.Fatalf("Login 1: %v", err)
	}
	second, err := env.manager.Login(ctx, "a@example.com", "hunter22", Device{Fingerprint: "phone"})
	if err != nil {
		t.Fatalf("Login 2: %v", err)
	}

	count, err := env.manager.Logout(ctx, second.SessionID, true)
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if count != 2 {
		t.Fatalf("revoked %d sessions, want 2", count)
	}
	if _, err := env.manager.Refresh(ctx, first.RefreshToken); !errors.Is(err, autherr.ErrExpired) {
		t.Fatalf("first session refresh after global logout: got %v", err)
	}

	// Every family of the user is purged, not just the calling session's.
	for _, sid := range []string{first.SessionID, second.SessionID} {
		family, err := env.nodes.Family(ctx, sid)
		if err != nil {
			t.Fatalf("Family(%s): %v", sid, err)
		}
		if len(family) != 0 {
			t.Fatalf("family rows remain for %s after global logout: %d", sid, len(family))
		}
	}
}

func TestEnrollAndActivateMFA(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, "a@example.com", "hunter22", false)
	ctx := context.Background()

	url, err := env.manager.EnrollMFA(ctx, u.ID)
	if err != nil {
		t.Fatalf("EnrollMFA: %v", err)
	}
	if url == "" {
		t.Fatal("empty provisioning URL")
	}

	// Enrollment does not take effect until activation.
	pair, err := env.manager.Login(ctx, "a@example.com", "hunter22", Device{})
	if err != nil {
		t.Fatalf("Login pre-activation: %v", err)
	}
	if pair == nil {
		t.Fatal("pre-activation login should not challenge")
	}

	enrolled, err := env.users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if err := env.manager.ActivateMFA(ctx, u.ID, env.codeFor(t, enrolled)); err != nil {
		t.Fatalf("ActivateMFA: %v", err)
	}

	_, err = env.manager.Login(ctx, "a@example.com", "hunter22", Device{})
	if !errors.Is(err, autherr.ErrMFARequired) {
		t.Fatalf("post-activation login should challenge, got %v", err)
	}
}
