package domain

import "testing"

func TestMatchPattern(t *testing.T) {
	cases := []struct {
		pattern string
		value   string
		want    bool
	}{
		{"*", "anything:at:all", true},
		{"user:123", "user:123", true},
		{"user:123", "user:456", false},
		{"user:*", "user:123", true},
		{"user:*", "user", false},
		{"trading_account:*", "trading_account:456", true},
		{"trading_account:*", "trading_account", false},
		{"trading_account:*", "trading_account:456:orders", true},
		{"trading_account:456", "trading_account:456:orders", false},
		{"*:read", "user:read", true},
		{"user:123:profile", "user:123", false},
	}
	for _, c := range cases {
		if got := MatchPattern(c.pattern, c.value); got != c.want {
			t.Errorf("MatchPattern(%q, %q) = %v, want %v", c.pattern, c.value, got, c.want)
		}
	}
}

func TestPolicyValidate(t *testing.T) {
	p := &Policy{
		ID:              "p1",
		SubjectPattern:  "*",
		ActionPattern:   "read",
		ResourcePattern: "trading_account:*",
		Effect:          EffectAllow,
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("valid policy rejected: %v", err)
	}

	p.Effect = "maybe"
	if err := p.Validate(); err == nil {
		t.Fatal("invalid effect accepted")
	}
	p.Effect = EffectDeny

	p.Conditions = []Condition{{Type: "geo_fence"}}
	if err := p.Validate(); err == nil {
		t.Fatal("unknown condition type accepted")
	}

	p.Conditions = []Condition{{Type: ConditionTimeWindow, Start: "09:00", End: "17:30"}}
	if err := p.Validate(); err != nil {
		t.Fatalf("time window rejected: %v", err)
	}
	p.Conditions = []Condition{{Type: ConditionTimeWindow, Start: "9am", End: "17:30"}}
	if err := p.Validate(); err == nil {
		t.Fatal("malformed time window accepted")
	}
}
