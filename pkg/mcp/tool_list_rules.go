package mcp

import (
	"context"
	"fmt"
	"slices"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/expr"
)

// ListRulesParams defines parameters for the list_rules tool.
type ListRulesParams struct {
	Category string `json:"category,omitempty" jsonschema:"only rules in this category"`
	Tag      string `json:"tag,omitempty"      jsonschema:"only rules carrying this tag"`
	Query    string `json:"query,omitempty"    jsonschema:"fuzzy match against names, titles and tags"`
	Filter   string `json:"filter,omitempty"   jsonschema:"CEL expression over rule"`
}

// ListRulesResult contains the result of listing rules.
type ListRulesResult struct {
	Message   string        `json:"message"`
	Rules     []RuleSummary `json:"rules"`
	RuleCount int           `json:"ruleCount"`
}

func (s *Server) handleListRules(
	_ context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[ListRulesParams],
) (*mcp.CallToolResultFor[ListRulesResult], error) {
	snap := s.Catalog()
	if snap == nil {
		return nil, errNoCatalog
	}

	args := params.Arguments

	rules, err := selectRules(snap, args)
	if err != nil {
		msg := fmt.Sprintf("INVALID INPUT ERROR: %v", err)

		return errorResult(ListRulesResult{Message: msg, Rules: []RuleSummary{}}, "%s", msg), nil
	}

	result := ListRulesResult{
		Rules:     make([]RuleSummary, 0, len(rules)),
		RuleCount: len(rules),
	}

	for _, r := range rules {
		result.Rules = append(result.Rules, newRuleSummary(&r))
	}

	result.Message = fmt.Sprintf("Found %d rules.", result.RuleCount)

	return textResult(result.Message, result), nil
}

func selectRules(snap *catalog.Snapshot, args ListRulesParams) ([]catalog.Rule, error) {
	if args.Category != "" && !slices.Contains(catalog.AllCategories, catalog.Category(args.Category)) {
		return nil, fmt.Errorf("unknown category %q", args.Category)
	}

	rules := snap.Search(args.Query)

	rules = slices.DeleteFunc(rules, func(r catalog.Rule) bool {
		if args.Category != "" && r.Category != catalog.Category(args.Category) {
			return true
		}

		return args.Tag != "" && !r.HasTag(args.Tag)
	})

	if args.Filter == "" {
		return rules, nil
	}

	f, err := expr.NewRuleFilter(args.Filter)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already descriptive.
	}

	return f.Apply(rules) //nolint:wrapcheck // Already descriptive.
}
