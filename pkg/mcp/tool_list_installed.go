package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ListInstalledParams defines parameters for the list_installed tool.
type ListInstalledParams struct {
	Path string `json:"path" jsonschema:"the workspace root directory"`
}

// ListInstalledResult contains the rules installed in a workspace.
type ListInstalledResult struct {
	Root      string          `json:"root"`
	Message   string          `json:"message"`
	Rules     []InstalledRule `json:"rules"`
	Untracked []string        `json:"untracked,omitempty"`
	Tracked   bool            `json:"tracked"`
}

// InstalledRule is one installed rule and how it compares to the catalog.
type InstalledRule struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	CatalogVersion string `json:"catalogVersion,omitempty"`
	InstalledAt    string `json:"installedAt"`
	Outdated       bool   `json:"outdated,omitempty"`
	Modified       bool   `json:"modified,omitempty"`
	PayloadMissing bool   `json:"payloadMissing,omitempty"`
}

func (s *Server) handleListInstalled(
	ctx context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[ListInstalledParams],
) (*mcp.CallToolResultFor[ListInstalledResult], error) {
	status, err := s.backend.Status(ctx, params.Arguments.Path, s.Catalog())
	if err != nil {
		return nil, fmt.Errorf("workspace status: %w", err)
	}

	result := ListInstalledResult{
		Root:      status.Root,
		Tracked:   status.Tracked,
		Rules:     make([]InstalledRule, 0, len(status.Rules)),
		Untracked: status.Untracked,
	}

	for _, rs := range status.Rules {
		result.Rules = append(result.Rules, InstalledRule{
			Name:           rs.Name,
			Version:        rs.Version,
			CatalogVersion: rs.CatalogVersion,
			InstalledAt:    rs.InstalledAt.UTC().Format(time.RFC3339),
			Outdated:       rs.Outdated,
			Modified:       rs.Modified,
			PayloadMissing: rs.PayloadMissing,
		})
	}

	result.Message = fmt.Sprintf("Workspace %s has %d rules installed.", status.Root, len(result.Rules))
	if !status.Tracked {
		result.Message = fmt.Sprintf("Workspace %s is not managed by rulebook.", status.Root)
	}

	return textResult(result.Message, result), nil
}
