package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/receipts/internal/domain"
)

// ExpressionRule is a Rule whose score is a CEL expression over integer
// receipt facts. Money is exposed in cents so divisibility checks are exact.
type ExpressionRule struct {
	descriptor domain.RuleDescriptor
	expression string
	program    cel.Program
}

var (
	envOnce sync.Once
	env     *cel.Env
	envErr  error
)

// expressionEnv returns the shared CEL environment.
func expressionEnv() (*cel.Env, error) {
	envOnce.Do(func() {
		env, envErr = cel.NewEnv(
			cel.Variable("retailer", cel.StringType),
			cel.Variable("total_cents", cel.IntType),
			cel.Variable("item_count", cel.IntType),
		)
		if envErr != nil {
			envErr = fmt.Errorf("failed to create CEL environment: %w", envErr)
		}
	})
	return env, envErr
}

// NewExpressionRule compiles expression into a rule. The expression must
// evaluate to an int.
func NewExpressionRule(name string, version int, expression string) (*ExpressionRule, error) {
	e, err := expressionEnv()
	if err != nil {
		return nil, err
	}

	ast, issues := e.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %q: %w", name, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.IntType) {
		return nil, fmt.Errorf("rule %q: expression must return int, got %s", name, ast.OutputType())
	}

	program, err := e.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %q: %w", name, err)
	}

	return &ExpressionRule{
		descriptor: domain.RuleDescriptor{Name: name, Version: version},
		expression: expression,
		program:    program,
	}, nil
}

// Descriptor returns the rule identity.
func (r *ExpressionRule) Descriptor() domain.RuleDescriptor {
	return r.descriptor
}

// Expression returns the CEL source.
func (r *ExpressionRule) Expression() string {
	return r.expression
}

// Apply evaluates the expression against the receipt.
func (r *ExpressionRule) Apply(receipt *domain.Receipt) (int64, error) {
	out, _, err := r.program.Eval(map[string]any{
		"retailer":    receipt.Retailer,
		"total_cents": receipt.Total.Cents(),
		"item_count":  int64(len(receipt.Items)),
	})
	if err != nil {
		return 0, fmt.Errorf("evaluation error: %w", err)
	}

	points, ok := out.(types.Int)
	if !ok {
		return 0, fmt.Errorf("expression returned %s, want int", out.Type().TypeName())
	}
	return int64(points), nil
}
