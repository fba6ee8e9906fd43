package expr

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/macropower/rulebook/pkg/catalog"
)

// ErrNotBool is returned when a filter expression does not evaluate to a bool.
var ErrNotBool = errors.New("expression must evaluate to a bool")

// RuleEnvironment is the shared [Environment] for rule filters.
var RuleEnvironment = MustNewEnvironment(
	cel.Variable("rule", cel.MapType(cel.StringType, cel.DynType)),
)

// RuleFilter is a compiled filter expression over catalog rules.
type RuleFilter struct {
	program    cel.Program
	expression string
}

// NewRuleFilter compiles expression in [RuleEnvironment].
func NewRuleFilter(expression string) (*RuleFilter, error) {
	program, err := RuleEnvironment.CompileBool(expression)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	return &RuleFilter{program: program, expression: expression}, nil
}

func (f *RuleFilter) String() string {
	return f.expression
}

// Match evaluates the filter against r.
func (f *RuleFilter) Match(r *catalog.Rule) (bool, error) {
	out, _, err := f.program.Eval(map[string]any{
		"rule": ConvertToCELValue(RuleValue(r)),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate %q for rule %q: %w", f.expression, r.Name, err)
	}

	b, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("evaluate %q: %w, got %s", f.expression, ErrNotBool, out.Type())
	}

	return bool(b), nil
}

// Apply returns the rules matching the filter, in order.
func (f *RuleFilter) Apply(rules []catalog.Rule) ([]catalog.Rule, error) {
	var out []catalog.Rule

	for i := range rules {
		ok, err := f.Match(&rules[i])
		if err != nil {
			return nil, err
		}

		if ok {
			out = append(out, rules[i])
		}
	}

	return out, nil
}

// RuleValue returns the fields of r exposed to expressions. Every key is
// always present so that expressions need no `has()` guards.
func RuleValue(r *catalog.Rule) map[string]any {
	return map[string]any{
		"name":                r.Name,
		"title":               r.Title,
		"description":         r.Description,
		"category":            string(r.Category),
		"version":             r.Version,
		"tags":                nonNil(r.Tags),
		"dependencies":        nonNil(r.Dependencies),
		"conflicts":           nonNil(r.Conflicts),
		"supported_languages": nonNil(r.SupportedLanguages),
		"author":              r.Author,
		"file":                r.ContentPath(),
		"created_at":          r.CreatedAt.String(),
		"updated_at":          r.UpdatedAt.String(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}
