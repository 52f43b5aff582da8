// Package domain defines the policy model evaluated by the authorization
// engine.
package domain

import (
	"errors"
	"strings"
	"time"
)

// Effect is the outcome a matching policy assigns.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Condition kinds. The set is closed; unknown kinds fail validation at
// write time and evaluate to unsatisfied at read time.
const (
	ConditionOwner      = "owner"
	ConditionRole       = "role"
	ConditionTimeWindow = "time_window"
	ConditionExpression = "expression"
)

// Condition is one tagged variant attached to a policy. All conditions on a
// policy must hold for the policy to apply.
type Condition struct {
	Type string `json:"type"`

	// role
	Role string `json:"role,omitempty"`

	// time_window, "15:04" clock times in UTC; End before Start wraps
	// past midnight.
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`

	// expression, a Rego module body evaluated against the check input.
	Expression string `json:"expression,omitempty"`
}

// Validate rejects unknown condition kinds and malformed variant fields.
func (c Condition) Validate() error {
	switch c.Type {
	case ConditionOwner:
		return nil
	case ConditionRole:
		if c.Role == "" {
			return errors.New("condition: role is required")
		}
	case ConditionTimeWindow:
		if _, err := time.Parse("15:04", c.Start); err != nil {
			return errors.New("condition: invalid start time")
		}
		if _, err := time.Parse("15:04", c.End); err != nil {
			return errors.New("condition: invalid end time")
		}
	case ConditionExpression:
		if c.Expression == "" {
			return errors.New("condition: expression is required")
		}
	default:
		return errors.New("condition: unknown type " + c.Type)
	}
	return nil
}

// Policy is one authorization rule. Patterns are colon-segmented with "*"
// matching a whole segment; a trailing "*" matches all remaining segments.
type Policy struct {
	ID              string
	SubjectPattern  string
	ActionPattern   string
	ResourcePattern string
	Effect          Effect
	Priority        int
	Conditions      []Condition
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks invariant fields before persistence.
func (p *Policy) Validate() error {
	if p.ID == "" {
		return errors.New("policy: id is required")
	}
	if p.Effect != EffectAllow && p.Effect != EffectDeny {
		return errors.New("policy: effect must be allow or deny")
	}
	if p.SubjectPattern == "" || p.ActionPattern == "" || p.ResourcePattern == "" {
		return errors.New("policy: subject, action, and resource patterns are required")
	}
	for _, c := range p.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Matches reports whether the policy's patterns cover the given triple.
func (p *Policy) Matches(subject, action, resource string) bool {
	return MatchPattern(p.SubjectPattern, subject) &&
		MatchPattern(p.ActionPattern, action) &&
		MatchPattern(p.ResourcePattern, resource)
}

// MatchPattern matches a colon-segmented pattern against a value. "*"
// matches exactly one segment; a final "*" also matches any remaining
// segments, so "trading_account:*" covers "trading_account:456:orders".
// A trailing "*" still requires at least one segment in its position:
// "trading_account:*" does not cover the bare "trading_account".
func MatchPattern(pattern, value string) bool {
	if pattern == "*" {
		return true
	}
	pSegs := strings.Split(pattern, ":")
	vSegs := strings.Split(value, ":")
	for i, ps := range pSegs {
		if ps == "*" && i == len(pSegs)-1 {
			return len(vSegs) > i
		}
		if i >= len(vSegs) {
			return false
		}
		if ps != "*" && ps != vSegs[i] {
			return false
		}
	}
	return len(pSegs) == len(vSegs)
}

// Decision is the engine's answer for one check.
type Decision struct {
	Allowed  bool
	PolicyID string // empty on default deny
	Reason   string
}
