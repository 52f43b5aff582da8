package repository

import (
	"context"
	"sync"

	"trading-platform/authcore/internal/refresh/domain"
)

// MemoryRepository is an in-memory Repository with the same conditional-write
// semantics as the Postgres implementation. Used in tests and single-node dev.
type MemoryRepository struct {
	mu    sync.Mutex
	nodes map[string]*domain.Node
}

// NewMemoryRepository returns an empty in-memory family-node repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nodes: make(map[string]*domain.Node)}
}

// Insert persists a new node in state issued.
func (r *MemoryRepository) Insert(ctx context.Context, n *domain.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	r.nodes[n.JTI] = &cp
	return nil
}

// Get returns a copy of the node for jti, or nil if absent.
func (r *MemoryRepository) Get(ctx context.Context, jti string) (*domain.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[jti]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

// MarkRotated performs the compare-and-set under the repository mutex:
// exactly one concurrent caller observes the unset rotated_to and wins.
func (r *MemoryRepository) MarkRotated(ctx context.Context, jti, newJTI string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[jti]
	if !ok || n.RotatedTo != "" || n.State != domain.StateIssued {
		return false, nil
	}
	n.RotatedTo = newJTI
	n.State = domain.StateRotated
	return true, nil
}

// MarkExpired moves a node to state expired.
func (r *MemoryRepository) MarkExpired(ctx context.Context, jti string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[jti]; ok && n.State == domain.StateIssued {
		n.State = domain.StateExpired
	}
	return nil
}

// RevokeFamily marks every node for sessionID as revoked.
func (r *MemoryRepository) RevokeFamily(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.nodes {
		if n.SessionID == sessionID {
			n.State = domain.StateRevoked
		}
	}
	return nil
}

// RevokeAllForUser marks every node of every family owned by userID as revoked.
func (r *MemoryRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.nodes {
		if n.UserID == userID {
			n.State = domain.StateRevoked
		}
	}
	return nil
}

// Family returns all nodes for sessionID in insertion-time order.
func (r *MemoryRepository) Family(ctx context.Context, sessionID string) ([]*domain.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Node
	for _, n := range r.nodes {
		if n.SessionID == sessionID {
			cp := *n
			out = append(out, &cp)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].IssuedAt.Before(out[j-1].IssuedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

// DeleteFamily removes every node for sessionID.
func (r *MemoryRepository) DeleteFamily(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for jti, n := range r.nodes {
		if n.SessionID == sessionID {
			delete(r.nodes, jti)
		}
	}
	return nil
}

// DeleteAllForUser removes every node of every family owned by userID.
func (r *MemoryRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for jti, n := range r.nodes {
		if n.UserID == userID {
			delete(r.nodes, jti)
		}
	}
	return nil
}
