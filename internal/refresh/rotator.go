// Package refresh tracks refresh-token lineage per session, rotates tokens on
// every use, and treats a second use of a rotated token as credential theft.
package refresh

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/rs/zerolog"

	"trading-platform/authcore/internal/autherr"
	"trading-platform/authcore/internal/refresh/domain"
	"trading-platform/authcore/internal/refresh/repository"
)

// SessionInvalidator marks a session unusable when its family is revoked on
// reuse detection. Implemented by the session repository.
type SessionInvalidator interface {
	Invalidate(ctx context.Context, sessionID string) error
}

// SecurityNotifier emits the out-of-band signal that tells the user their
// refresh token was replayed. Best-effort; failures must not mask the
// ReuseDetected outcome.
type SecurityNotifier interface {
	TokenReuse(ctx context.Context, sessionID, userID string)
}

// Rotator owns the family-node state machine.
type Rotator struct {
	repo       repository.Repository
	sessions   SessionInvalidator
	notifier   SecurityNotifier
	refreshTTL time.Duration
	log        zerolog.Logger
	nowF       func() time.Time
}

// NewRotator returns a Rotator. sessions and notifier may be nil in tests
// that only exercise lineage mechanics.
func NewRotator(repo repository.Repository, sessions SessionInvalidator, notifier SecurityNotifier, refreshTTL time.Duration, log zerolog.Logger) *Rotator {
	return &Rotator{
		repo:       repo,
		sessions:   sessions,
		notifier:   notifier,
		refreshTTL: refreshTTL,
		log:        log,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// StartFamily creates the head node for a fresh session: no parent, not yet
// rotated. Returns the root jti.
func (r *Rotator) StartFamily(ctx context.Context, sessionID, userID string) (string, error) {
	jti, err := newJTI()
	if err != nil {
		return "", err
	}
	node := &domain.Node{
		JTI:       jti,
		SessionID: sessionID,
		UserID:    userID,
		State:     domain.StateIssued,
		IssuedAt:  r.nowF(),
	}
	if err := r.repo.Insert(ctx, node); err != nil {
		return "", err
	}
	return jti, nil
}

// Rotate consumes presentedJTI and appends a new node to the family.
//
// A legitimate client uses each refresh token exactly once, so a node whose
// rotated_to is already set means either a concurrent race or a stolen copy;
// both resolve through the reuse path, which revokes the whole family and
// invalidates the session. The rotated_to write is a compare-and-set at the
// storage layer: of two concurrent callers presenting the same token, exactly
// one wins and the other lands here.
func (r *Rotator) Rotate(ctx context.Context, presentedJTI string) (*domain.Node, error) {
	node, err := r.repo.Get(ctx, presentedJTI)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, autherr.ErrExpired
	}
	switch node.State {
	case domain.StateRevoked, domain.StateExpired:
		return nil, autherr.ErrExpired
	case domain.StateRotated:
		return nil, r.handleReuse(ctx, node)
	}
	if r.nowF().Sub(node.IssuedAt) >= r.refreshTTL {
		if err := r.repo.MarkExpired(ctx, presentedJTI); err != nil {
			r.log.Warn().Err(err).Str("jti", presentedJTI).Msg("mark expired failed")
		}
		return nil, autherr.ErrExpired
	}

	newJTI, err := newJTI()
	if err != nil {
		return nil, err
	}
	won, err := r.repo.MarkRotated(ctx, presentedJTI, newJTI)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, r.handleReuse(ctx, node)
	}
	next := &domain.Node{
		JTI:       newJTI,
		ParentJTI: presentedJTI,
		SessionID: node.SessionID,
		UserID:    node.UserID,
		State:     domain.StateIssued,
		IssuedAt:  r.nowF(),
	}
	if err := r.repo.Insert(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (r *Rotator) handleReuse(ctx context.Context, node *domain.Node) error {
	r.log.Warn().
		Str("session_id", node.SessionID).
		Str("user_id", node.UserID).
		Str("jti", node.JTI).
		Msg("refresh token reuse detected, revoking family")
	if err := r.repo.RevokeFamily(ctx, node.SessionID); err != nil {
		r.log.Error().Err(err).Str("session_id", node.SessionID).Msg("revoke family failed")
	}
	if r.sessions != nil {
		if err := r.sessions.Invalidate(ctx, node.SessionID); err != nil {
			r.log.Error().Err(err).Str("session_id", node.SessionID).Msg("invalidate session failed")
		}
	}
	if r.notifier != nil {
		r.notifier.TokenReuse(ctx, node.SessionID, node.UserID)
	}
	return autherr.ErrReuseDetected
}

// RevokeFamily marks every node of the session's family as revoked. Used on
// logout and explicit security actions.
func (r *Rotator) RevokeFamily(ctx context.Context, sessionID string) error {
	return r.repo.RevokeFamily(ctx, sessionID)
}

// RevokeAllForUser revokes every family owned by the user, across sessions.
func (r *Rotator) RevokeAllForUser(ctx context.Context, userID string) error {
	return r.repo.RevokeAllForUser(ctx, userID)
}

// PurgeFamily removes a session's family rows after the session itself has
// been revoked. Reuse-detection revocations are never purged; their rotated
// nodes stay behind as incident evidence.
func (r *Rotator) PurgeFamily(ctx context.Context, sessionID string) error {
	return r.repo.DeleteFamily(ctx, sessionID)
}

// PurgeAllForUser removes every family row owned by the user. Follows
// RevokeAllForUser on a global logout.
func (r *Rotator) PurgeAllForUser(ctx context.Context, userID string) error {
	return r.repo.DeleteAllForUser(ctx, userID)
}

func newJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
