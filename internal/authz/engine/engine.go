// Package engine evaluates authorization checks against the stored policy
// set. Evaluation is deny-biased: no matching policy means deny, a deny tie
// beats an allow tie, and an unresolvable attribute lookup denies rather
// than guesses.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trading-platform/authcore/internal/authz/domain"
	"trading-platform/authcore/internal/authz/repository"
)

// AttributeSource resolves resource attributes needed by conditions. Owner
// returns the subject that owns the resource, or empty when ownership does
// not apply.
type AttributeSource interface {
	Owner(ctx context.Context, resource string) (string, error)
}

// CheckInput is one authorization question.
type CheckInput struct {
	Subject  string
	Action   string
	Resource string
	Roles    []string
}

// Engine is the policy decision point.
type Engine struct {
	policies   repository.Repository
	attrs      AttributeSource
	exprs      *ExpressionEvaluator
	cache      *DecisionCache
	attrTimout time.Duration
	log        zerolog.Logger
	nowF       func() time.Time
}

// NewEngine returns an Engine. attrs may be nil when no owner conditions are
// in use; cache may be nil to disable decision caching.
func NewEngine(policies repository.Repository, attrs AttributeSource, cache *DecisionCache, attrTimeout time.Duration, log zerolog.Logger) *Engine {
	if attrTimeout <= 0 {
		attrTimeout = 200 * time.Millisecond
	}
	return &Engine{
		policies:   policies,
		attrs:      attrs,
		exprs:      NewExpressionEvaluator(),
		cache:      cache,
		attrTimout: attrTimeout,
		log:        log,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// Check answers whether subject may perform action on resource. Policies are
// evaluated in priority-descending order; within one priority tier a
// matching deny wins over a matching allow. With no match the answer is a
// default deny.
func (e *Engine) Check(ctx context.Context, in CheckInput) (domain.Decision, error) {
	if e.cache != nil {
		if d, ok := e.cache.Get(in.Subject, in.Action, in.Resource); ok {
			return d, nil
		}
	}

	policies, err := e.policies.List(ctx)
	if err != nil {
		// Policy store down: deny, do not cache.
		e.log.Error().Err(err).Msg("policy list failed, denying")
		return domain.Decision{Allowed: false, Reason: "policy store unavailable"}, nil
	}

	var decision *domain.Decision
	tierPriority := 0
	for _, p := range policies {
		if decision != nil && p.Priority < tierPriority {
			break
		}
		if !p.Matches(in.Subject, in.Action, in.Resource) {
			continue
		}
		ok, err := e.conditionsHold(ctx, p, in)
		if err != nil {
			// Attribute lookup failed or timed out. Deny outright
			// rather than pretend the condition resolved either way.
			e.log.Warn().Err(err).Str("policy_id", p.ID).Msg("condition evaluation failed, denying")
			return domain.Decision{Allowed: false, PolicyID: p.ID, Reason: "attribute lookup unavailable"}, nil
		}
		if !ok {
			continue
		}
		if p.Effect == domain.EffectDeny {
			decision = &domain.Decision{Allowed: false, PolicyID: p.ID, Reason: "denied by policy"}
			break
		}
		if decision == nil {
			decision = &domain.Decision{Allowed: true, PolicyID: p.ID, Reason: "allowed by policy"}
			tierPriority = p.Priority
			// Keep scanning the rest of this tier for a deny.
		}
	}

	if decision == nil {
		decision = &domain.Decision{Allowed: false, Reason: "no matching policy"}
	}
	if e.cache != nil {
		e.cache.Put(in.Subject, in.Action, in.Resource, *decision)
	}
	return *decision, nil
}

func (e *Engine) conditionsHold(ctx context.Context, p *domain.Policy, in CheckInput) (bool, error) {
	for _, c := range p.Conditions {
		ok, err := e.conditionHolds(ctx, c, in)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (e *Engine) conditionHolds(ctx context.Context, c domain.Condition, in CheckInput) (bool, error) {
	switch c.Type {
	case domain.ConditionOwner:
		if e.attrs == nil {
			return false, fmt.Errorf("no attribute source configured")
		}
		lookupCtx, cancel := context.WithTimeout(ctx, e.attrTimout)
		defer cancel()
		owner, err := e.attrs.Owner(lookupCtx, in.Resource)
		if err != nil {
			return false, fmt.Errorf("owner lookup: %w", err)
		}
		return owner != "" && owner == in.Subject, nil
	case domain.ConditionRole:
		for _, r := range in.Roles {
			if r == c.Role {
				return true, nil
			}
		}
		return false, nil
	case domain.ConditionTimeWindow:
		return inWindow(c.Start, c.End, e.nowF()), nil
	case domain.ConditionExpression:
		return e.exprs.Eval(ctx, c.Expression, in)
	default:
		// Unknown variant persisted by a newer writer: unsatisfied.
		return false, nil
	}
}

// inWindow reports whether now's UTC clock time falls in [start, end). An
// end before start wraps past midnight.
func inWindow(start, end string, now time.Time) bool {
	s, err := time.Parse("15:04", start)
	if err != nil {
		return false
	}
	en, err := time.Parse("15:04", end)
	if err != nil {
		return false
	}
	minute := now.Hour()*60 + now.Minute()
	sMin := s.Hour()*60 + s.Minute()
	eMin := en.Hour()*60 + en.Minute()
	if sMin <= eMin {
		return minute >= sMin && minute < eMin
	}
	return minute >= sMin || minute < eMin
}
