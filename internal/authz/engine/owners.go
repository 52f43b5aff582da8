package engine

import (
	"context"
	"fmt"
	"strings"

	"trading-platform/authcore/internal/autherr"
)

// AccountResolver maps a trading account id to the id of the user owning it.
// Implemented over the user store; a remote accounts service fits behind the
// same interface.
type AccountResolver interface {
	OwnerOfAccount(ctx context.Context, accountID string) (string, error)
}

// AccountOwnerSource answers owner lookups for trading_account resources.
// Resources of any other kind have no owner, so owner conditions on them
// never hold.
type AccountOwnerSource struct {
	resolver AccountResolver
}

// NewAccountOwnerSource returns an AttributeSource backed by resolver.
func NewAccountOwnerSource(resolver AccountResolver) *AccountOwnerSource {
	return &AccountOwnerSource{resolver: resolver}
}

// Owner resolves "trading_account:<id>" and any nested resource under it to
// "user:<owner id>". Resolver failures surface as ErrDependencyUnavailable,
// which the engine turns into an uncached deny.
func (s *AccountOwnerSource) Owner(ctx context.Context, resource string) (string, error) {
	segs := strings.SplitN(resource, ":", 3)
	if len(segs) < 2 || segs[0] != "trading_account" || segs[1] == "" {
		return "", nil
	}
	ownerID, err := s.resolver.OwnerOfAccount(ctx, segs[1])
	if err != nil {
		return "", fmt.Errorf("%w: resolve account owner: %v", autherr.ErrDependencyUnavailable, err)
	}
	if ownerID == "" {
		return "", nil
	}
	return "user:" + ownerID, nil
}
