package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trading-platform/authcore/internal/authz/domain"
	"trading-platform/authcore/internal/authz/repository"
)

type fakeAttrs struct {
	owners map[string]string
	err    error
	delay  time.Duration
}

func (f *fakeAttrs) Owner(ctx context.Context, resource string) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.owners[resource], nil
}

func mustCreate(t *testing.T, repo *repository.MemoryRepository, p *domain.Policy) {
	t.Helper()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("create policy %s: %v", p.ID, err)
	}
}

func newTestEngine(t *testing.T, repo *repository.MemoryRepository, attrs AttributeSource) *Engine {
	t.Helper()
	return NewEngine(repo, attrs, nil, 100*time.Millisecond, zerolog.Nop())
}

func TestDefaultDeny(t *testing.T) {
	repo := repository.NewMemoryRepository()
	e := newTestEngine(t, repo, nil)

	d, err := e.Check(context.Background(), CheckInput{Subject: "user:1", Action: "read", Resource: "trading_account:1"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if d.Allowed {
		t.Fatal("empty policy set allowed access")
	}
	if d.PolicyID != "" {
		t.Fatalf("default deny carries policy id %q", d.PolicyID)
	}
}

func TestHigherPriorityDenyBeatsBroadAllow(t *testing.T) {
	repo := repository.NewMemoryRepository()
	mustCreate(t, repo, &domain.Policy{
		ID: "allow-read", SubjectPattern: "*", ActionPattern: "read",
		ResourcePattern: "trading_account:*", Effect: domain.EffectAllow, Priority: 10,
	})
	mustCreate(t, repo, &domain.Policy{
		ID: "deny-123-456", SubjectPattern: "user:123", ActionPattern: "*",
		ResourcePattern: "trading_account:456", Effect: domain.EffectDeny, Priority: 20,
	})
	e := newTestEngine(t, repo, nil)
	ctx := context.Background()

	d, err := e.Check(ctx, CheckInput{Subject: "user:123", Action: "read", Resource: "trading_account:456"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if d.Allowed || d.PolicyID != "deny-123-456" {
		t.Fatalf("expected targeted deny, got %+v", d)
	}

	// Other users fall through to the broad allow.
	d, err = e.Check(ctx, CheckInput{Subject: "user:999", Action: "read", Resource: "trading_account:456"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !d.Allowed || d.PolicyID != "allow-read" {
		t.Fatalf("expected allow, got %+v", d)
	}
}

func TestDenyWinsTieAtSamePriority(t *testing.T) {
	repo := repository.NewMemoryRepository()
	mustCreate(t, repo, &domain.Policy{
		ID: "allow", SubjectPattern: "*", ActionPattern: "read",
		ResourcePattern: "trading_account:*", Effect: domain.EffectAllow, Priority: 10,
	})
	mustCreate(t, repo, &domain.Policy{
		ID: "deny", SubjectPattern: "*", ActionPattern: "read",
		ResourcePattern: "trading_account:*", Effect: domain.EffectDeny, Priority: 10,
	})
	e := newTestEngine(t, repo, nil)

	d, err := e.Check(context.Background(), CheckInput{Subject: "user:1", Action: "read", Resource: "trading_account:1"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if d.Allowed {
		t.Fatalf("tie resolved to allow: %+v", d)
	}
}

func TestOwnerCondition(t *testing.T) {
	repo := repository.NewMemoryRepository()
	mustCreate(t, repo, &domain.Policy{
		ID: "owner-read", SubjectPattern: "*", ActionPattern: "read",
		ResourcePattern: "trading_account:*", Effect: domain.EffectAllow, Priority: 10,
		Conditions: []domain.Condition{{Type: domain.ConditionOwner}},
	})
	attrs := &fakeAttrs{owners: map[string]string{"trading_account:1": "user:1"}}
	e := newTestEngine(t, repo, attrs)
	ctx := context.Background()

	d, _ := e.Check(ctx, CheckInput{Subject: "user:1", Action: "read", Resource: "trading_account:1"})
	if !d.Allowed {
		t.Fatalf("owner denied: %+v", d)
	}
	d, _ = e.Check(ctx, CheckInput{Subject: "user:2", Action: "read", Resource: "trading_account:1"})
	if d.Allowed {
		t.Fatalf("non-owner allowed: %+v", d)
	}
}

func TestRoleCondition(t *testing.T) {
	repo := repository.NewMemoryRepository()
	mustCreate(t, repo, &domain.Policy{
		ID: "trader-trade", SubjectPattern: "*", ActionPattern: "trade",
		ResourcePattern: "trading_account:*", Effect: domain.EffectAllow, Priority: 10,
		Conditions: []domain.Condition{{Type: domain.ConditionRole, Role: "trader"}},
	})
	e := newTestEngine(t, repo, nil)
	ctx := context.Background()

	d, _ := e.Check(ctx, CheckInput{Subject: "user:1", Action: "trade", Resource: "trading_account:1", Roles: []string{"trader"}})
	if !d.Allowed {
		t.Fatalf("trader denied: %+v", d)
	}
	d, _ = e.Check(ctx, CheckInput{Subject: "user:1", Action: "trade", Resource: "trading_account:1", Roles: []string{"viewer"}})
	if d.Allowed {
		t.Fatalf("viewer allowed: %+v", d)
	}
}

func TestAttributeLookupFailureDenies(t *testing.T) {
	repo := repository.NewMemoryRepository()
	mustCreate(t, repo, &domain.Policy{
		ID: "owner-read", SubjectPattern: "*", ActionPattern: "read",
		ResourcePattern: "trading_account:*", Effect: domain.EffectAllow, Priority: 10,
		Conditions: []domain.Condition{{Type: domain.ConditionOwner}},
	})

	// Hard error from the attribute source.
	e := newTestEngine(t, repo, &fakeAttrs{err: errors.New("store down")})
	d, err := e.Check(context.Background(), CheckInput{Subject: "user:1", Action: "read", Resource: "trading_account:1"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if d.Allowed {
		t.Fatal("allowed despite attribute failure")
	}

	// Lookup slower than the bound.
	e = newTestEngine(t, repo, &fakeAttrs{delay: time.Second, owners: map[string]string{"trading_account:1": "user:1"}})
	d, err = e.Check(context.Background(), CheckInput{Subject: "user:1", Action: "read", Resource: "trading_account:1"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if d.Allowed {
		t.Fatal("allowed despite lookup timeout")
	}
}

func TestExpressionCondition(t *testing.T) {
	repo := repository.NewMemoryRepository()
	mustCreate(t, repo, &domain.Policy{
		ID: "rego-allow", SubjectPattern: "*", ActionPattern: "export",
		ResourcePattern: "report:*", Effect: domain.EffectAllow, Priority: 10,
		Conditions: []domain.Condition{{
			Type: domain.ConditionExpression,
			Expression: `package authz.condition

default allow = false

allow if {
	input.action == "export"
	input.roles[_] == "analyst"
}
`,
		}},
	})
	e := newTestEngine(t, repo, nil)
	ctx := context.Background()

	d, _ := e.Check(ctx, CheckInput{Subject: "user:1", Action: "export", Resource: "report:q3", Roles: []string{"analyst"}})
	if !d.Allowed {
		t.Fatalf("analyst denied: %+v", d)
	}
	d, _ = e.Check(ctx, CheckInput{Subject: "user:1", Action: "export", Resource: "report:q3", Roles: []string{"trader"}})
	if d.Allowed {
		t.Fatalf("non-analyst allowed: %+v", d)
	}
}

func TestCachedDecisionServedAndInvalidated(t *testing.T) {
	repo := repository.NewMemoryRepository()
	mustCreate(t, repo, &domain.Policy{
		ID: "allow", SubjectPattern: "*", ActionPattern: "read",
		ResourcePattern: "trading_account:*", Effect: domain.EffectAllow, Priority: 10,
	})
	cache := NewDecisionCache(time.Minute)
	e := NewEngine(repo, nil, cache, 100*time.Millisecond, zerolog.Nop())
	ctx := context.Background()
	in := CheckInput{Subject: "user:1", Action: "read", Resource: "trading_account:1"}

	d, _ := e.Check(ctx, in)
	if !d.Allowed {
		t.Fatalf("first check denied: %+v", d)
	}

	// Flip the policy set; the cached allow keeps serving until invalidated.
	if err := repo.Delete(ctx, "allow"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	d, _ = e.Check(ctx, in)
	if !d.Allowed {
		t.Fatal("cache miss after policy delete without invalidation")
	}

	cache.InvalidateFor("user:1", "")
	d, _ = e.Check(ctx, in)
	if d.Allowed {
		t.Fatal("stale allow survived invalidation")
	}
}
