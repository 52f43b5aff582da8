package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const expressionQuery = "data.authz.condition.allow"

// ExpressionEvaluator compiles and evaluates Rego expression conditions.
// Each expression is a full module in package authz.condition defining an
// `allow` rule; the check input is exposed as input.subject, input.action,
// input.resource, and input.roles.
type ExpressionEvaluator struct{}

// NewExpressionEvaluator returns an ExpressionEvaluator.
func NewExpressionEvaluator() *ExpressionEvaluator {
	return &ExpressionEvaluator{}
}

// Eval compiles the module and evaluates the allow rule. A compile or eval
// failure is an error so the caller can deny; an absent or non-boolean
// result is unsatisfied.
func (e *ExpressionEvaluator) Eval(ctx context.Context, module string, in CheckInput) (bool, error) {
	compiler, err := ast.CompileModules(map[string]string{"condition.rego": module})
	if err != nil {
		return false, fmt.Errorf("compile expression: %w", err)
	}
	roles := make([]interface{}, 0, len(in.Roles))
	for _, r := range in.Roles {
		roles = append(roles, r)
	}
	input := map[string]interface{}{
		"subject":  in.Subject,
		"action":   in.Action,
		"resource": in.Resource,
		"roles":    roles,
	}
	q := rego.New(
		rego.Query(expressionQuery),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("eval expression: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	v, ok := rs[0].Expressions[0].Value.(bool)
	return ok && v, nil
}
