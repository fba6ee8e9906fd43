package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// GetRuleParams defines parameters for the get_rule tool.
type GetRuleParams struct {
	Name string `json:"name" jsonschema:"the name of the rule"`
}

// GetRuleResult contains the result of getting a single rule.
type GetRuleResult struct {
	Rule      *RuleDetails `json:"rule,omitempty"`
	Message   string       `json:"message"`
	Found     bool         `json:"found"`
	Truncated bool         `json:"truncated,omitempty"`
}

// RuleDetails is a rule's metadata plus its payload text.
type RuleDetails struct {
	RuleSummary

	Content string `json:"content"`
	// RequiredBy lists the catalog rules that depend on this one.
	RequiredBy []string `json:"requiredBy,omitempty"`
}

func (s *Server) handleGetRule(
	ctx context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[GetRuleParams],
) (*mcp.CallToolResultFor[GetRuleResult], error) {
	snap := s.Catalog()
	if snap == nil {
		return nil, errNoCatalog
	}

	name := params.Arguments.Name

	r, ok := snap.Get(name)
	if !ok {
		msg := fmt.Sprintf(
			"INVALID INPUT ERROR: Rule %q not found. Use an EXACT name from the list_rules tool.", name,
		)

		return textResult(msg, GetRuleResult{Message: msg}), nil
	}

	data, err := s.backend.Payload(ctx, snap, name)
	if err != nil {
		return nil, fmt.Errorf("get payload of %q: %w", name, err)
	}

	content, truncated := truncateString(string(data), maxContentLen)

	result := GetRuleResult{
		Found:     true,
		Truncated: truncated,
		Message:   fmt.Sprintf("Found rule %s@%s.", r.Name, r.Version),
		Rule: &RuleDetails{
			RuleSummary: newRuleSummary(&r),
			Content:     content,
			RequiredBy:  snap.Dependents(r.Name),
		},
	}

	return textResult(result.Message+"\n\n"+content, result), nil
}
