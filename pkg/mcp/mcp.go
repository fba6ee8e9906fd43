// Package mcp serves the rule catalog to AI assistants over the Model
// Context Protocol.
package mcp

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/rulebook/pkg/catalog"
)

const (
	name         = "rulebook"
	instructions = `MCP Server 'rulebook' lets you browse a catalog of assistant rules and inspect which rules a workspace has installed.

When to use these tools:
- Finding rules for a language, framework or cloud provider
- Reading the full text of a rule before recommending it
- Checking which rules a project already uses, and whether they are outdated

REQUIRED workflow:
1. Use 'list_rules' to see the available rules. Narrow the list with 'category', 'tag', 'query' or a CEL 'filter' such as "'security' in rule.tags".
2. Use 'get_rule' with an EXACT name from the 'list_rules' output to read a rule.
3. Use 'list_installed' with a workspace directory to see what it has installed.
`
)

// maxContentLen caps payload text returned to clients.
const maxContentLen = 64 << 10

// RuleSummary is the catalog metadata of a rule.
type RuleSummary struct {
	Name         string   `json:"name"`
	Title        string   `json:"title,omitempty"`
	Description  string   `json:"description,omitempty"`
	Category     string   `json:"category,omitempty"`
	Version      string   `json:"version"`
	UpdatedAt    string   `json:"updatedAt"`
	Tags         []string `json:"tags,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Conflicts    []string `json:"conflicts,omitempty"`
}

func newRuleSummary(r *catalog.Rule) RuleSummary {
	return RuleSummary{
		Name:         r.Name,
		Title:        r.Title,
		Description:  r.Description,
		Category:     string(r.Category),
		Version:      r.Version,
		UpdatedAt:    r.UpdatedAt.String(),
		Tags:         r.Tags,
		Dependencies: r.Dependencies,
		Conflicts:    r.Conflicts,
	}
}

func textResult[Out any](text string, out Out) *mcp.CallToolResultFor[Out] {
	return &mcp.CallToolResultFor[Out]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		StructuredContent: out,
	}
}

func errorResult[Out any](out Out, format string, args ...any) *mcp.CallToolResultFor[Out] {
	res := textResult(fmt.Sprintf(format, args...), out)
	res.IsError = true

	return res
}

// truncateString truncates a string to maxLen bytes, marking the cut.
func truncateString(str string, maxLen int) (string, bool) {
	if len(str) > maxLen {
		return str[:maxLen] + "\n[OUTPUT TRUNCATED]", true
	}

	return str, false
}
