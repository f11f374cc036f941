package translate

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// Rule is a named predicate that places text in a policy cluster.
type Rule interface {
	Name() string
	Match(text string) (bool, error)
}

// KeywordRule matches when any keyword is a case-insensitive substring of the text.
type KeywordRule struct {
	RuleName string
	Keywords []string
}

func (r KeywordRule) Name() string { return r.RuleName }

func (r KeywordRule) Match(text string) (bool, error) {
	return containsAny(strings.ToLower(text), r.Keywords), nil
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// CELRule evaluates a boolean CEL expression. The expression sees the
// normalized input as `text` and its lowercase form as `lower`.
type CELRule struct {
	name string
	expr string
	prg  cel.Program
}

// NewCELRule compiles expr and checks that it yields a bool.
func NewCELRule(name, expr string) (*CELRule, error) {
	env, err := cel.NewEnv(
		cel.Variable("text", cel.StringType),
		cel.Variable("lower", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("translate: cel environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("translate: rule %s: compile: %w", name, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("translate: rule %s: expression must return bool, got %s", name, ast.OutputType())
	}
	prg, err := env.Program(ast, cel.CostLimit(10000), cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, fmt.Errorf("translate: rule %s: program: %w", name, err)
	}
	return &CELRule{name: name, expr: expr, prg: prg}, nil
}

func (r *CELRule) Name() string { return r.name }

// Expression returns the source expression.
func (r *CELRule) Expression() string { return r.expr }

func (r *CELRule) Match(text string) (bool, error) {
	out, _, err := r.prg.Eval(map[string]any{
		"text":  text,
		"lower": strings.ToLower(text),
	})
	if err != nil {
		return false, fmt.Errorf("translate: rule %s: eval: %w", r.name, err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("translate: rule %s: non-bool result %v", r.name, out.Value())
	}
	return matched, nil
}

// Anchor is one semantic anchor and the vocabulary that triggers it.
type Anchor struct {
	Name     string
	Keywords []string
}

// DefaultAnchors is the built-in anchor vocabulary.
func DefaultAnchors() []Anchor {
	return []Anchor{
		{Name: "collab", Keywords: []string{"meeting", "sync", "collaboration", "review", "calendar"}},
		{Name: "finance", Keywords: []string{"budget", "invoice", "payment", "reimbursement", "fund"}},
		{Name: "risk", Keywords: []string{"exploit", "vulnerability", "leak", "drift", "failure", "veto"}},
	}
}

// DefaultRiskControlRule names the rule whose match escalates risk to HIGH.
const DefaultRiskControlRule = "PEC-3"

// DefaultRules is the built-in policy-cluster table, in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		KeywordRule{RuleName: "PEC-6", Keywords: []string{"sync", "collab", "external", "calendar", "review"}},
		KeywordRule{RuleName: "PEC-1", Keywords: []string{"budget", "finance", "payment", "fund"}},
		KeywordRule{RuleName: DefaultRiskControlRule, Keywords: []string{"leak", "vulnerability", "drift", "veto"}},
	}
}
