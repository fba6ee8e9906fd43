package mcp_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/manager"
	"github.com/macropower/rulebook/pkg/mcp"
	"github.com/macropower/rulebook/pkg/workspace"
)

type fakeBackend struct {
	payloads map[string]string
	status   *manager.Status
}

func (b *fakeBackend) Payload(_ context.Context, _ *catalog.Snapshot, name string) ([]byte, error) {
	p, ok := b.payloads[name]
	if !ok {
		return nil, errors.New("no payload")
	}

	return []byte(p), nil
}

func (b *fakeBackend) Status(_ context.Context, root string, snap *catalog.Snapshot) (*manager.Status, error) {
	st := *b.status
	st.Root = root

	for i, rs := range st.Rules {
		if r, ok := snap.Get(rs.Name); ok {
			st.Rules[i].CatalogVersion = r.Version
			st.Rules[i].Outdated = r.Version != rs.Version
		}
	}

	return &st, nil
}

func testCatalog(t *testing.T) *catalog.Snapshot {
	t.Helper()

	return catalog.MustNew(map[string]catalog.Rule{
		"aws": {
			Name:     "aws",
			Title:    "AWS",
			Version:  "1.1.0",
			Category: catalog.CategoryAWS,
			Tags:     []string{"aws", "cloud"},
		},
		"aws-sam": {
			Name:         "aws-sam",
			Version:      "1.0.0",
			Category:     catalog.CategoryServerless,
			Tags:         []string{"aws", "serverless"},
			Dependencies: []string{"aws"},
		},
		"python": {
			Name:     "python",
			Version:  "2.0.0",
			Category: catalog.CategoryPython,
			Tags:     []string{"python"},
		},
	})
}

func connect(t *testing.T, s *mcp.Server) *sdk.ClientSession {
	t.Helper()

	clientTransport, serverTransport := sdk.NewInMemoryTransports()

	ctx := t.Context()

	serverSession, err := s.Server().Connect(ctx, serverTransport)
	require.NoError(t, err)

	client := sdk.NewClient(&sdk.Implementation{Name: "client"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, clientSession.Close())
		assert.NoError(t, serverSession.Wait())
	})

	return clientSession
}

func ruleNames(t *testing.T, content any) []string {
	t.Helper()

	m, ok := content.(map[string]any)
	require.True(t, ok, "StructuredContent should be a map[string]any")

	rules, ok := m["rules"].([]any)
	require.True(t, ok, "rules should be a []any")

	names := []string{}
	for _, r := range rules {
		rm, ok := r.(map[string]any)
		require.True(t, ok)

		names = append(names, rm["name"].(string)) //nolint:forcetypeassert // Test.
	}

	return names
}

func TestServer_ListRules(t *testing.T) {
	t.Parallel()

	s := mcp.NewServer("", &fakeBackend{}, testCatalog(t))
	session := connect(t, s)

	tcs := map[string]struct {
		args    map[string]any
		want    []string
		isError bool
	}{
		"all": {
			args: map[string]any{},
			want: []string{"aws", "aws-sam", "python"},
		},
		"by category": {
			args: map[string]any{"category": "serverless"},
			want: []string{"aws-sam"},
		},
		"by tag": {
			args: map[string]any{"tag": "aws"},
			want: []string{"aws", "aws-sam"},
		},
		"cel filter": {
			args: map[string]any{"filter": `"cloud" in rule.tags || rule.category == "python"`},
			want: []string{"aws", "python"},
		},
		"no match": {
			args: map[string]any{"tag": "ruby"},
			want: []string{},
		},
		"unknown category": {
			args:    map[string]any{"category": "cobol"},
			isError: true,
		},
		"bad filter": {
			args:    map[string]any{"filter": "rule.("},
			isError: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			r, err := session.CallTool(t.Context(), &sdk.CallToolParams{
				Name:      "list_rules",
				Arguments: tc.args,
			})
			require.NoError(t, err)
			require.NotNil(t, r)

			if tc.isError {
				assert.True(t, r.IsError)

				return
			}

			assert.False(t, r.IsError)
			assert.Equal(t, tc.want, ruleNames(t, r.StructuredContent))
		})
	}
}

func TestServer_GetRule(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{payloads: map[string]string{"aws": "# AWS\n\nUse IAM roles.\n"}}
	s := mcp.NewServer("", backend, testCatalog(t))
	session := connect(t, s)

	r, err := session.CallTool(t.Context(), &sdk.CallToolParams{
		Name:      "get_rule",
		Arguments: map[string]any{"name": "aws"},
	})
	require.NoError(t, err)

	m, ok := r.StructuredContent.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, m["found"])
	assert.Equal(t, "Found rule aws@1.1.0.", m["message"])

	rule, ok := m["rule"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "AWS", rule["title"])
	assert.Equal(t, "# AWS\n\nUse IAM roles.\n", rule["content"])
	assert.Equal(t, []any{"aws-sam"}, rule["requiredBy"])

	r, err = session.CallTool(t.Context(), &sdk.CallToolParams{
		Name:      "get_rule",
		Arguments: map[string]any{"name": "ghost"},
	})
	require.NoError(t, err)

	m, ok = r.StructuredContent.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, m["found"])
	assert.Contains(t, m["message"], "INVALID INPUT ERROR")

	// Catalog has the rule but there is no payload.
	r, err = session.CallTool(t.Context(), &sdk.CallToolParams{
		Name:      "get_rule",
		Arguments: map[string]any{"name": "python"},
	})
	require.NoError(t, err)
	assert.True(t, r.IsError)
}

func TestServer_ListInstalled(t *testing.T) {
	t.Parallel()

	installedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	backend := &fakeBackend{
		status: &manager.Status{
			Tracked: true,
			Rules: []manager.RuleStatus{
				{Record: workspace.Record{Name: "aws", Version: "1.0.0", InstalledAt: installedAt}},
				{Record: workspace.Record{Name: "python", Version: "2.0.0", InstalledAt: installedAt}, Modified: true},
			},
			Untracked: []string{"notes"},
		},
	}

	s := mcp.NewServer("", backend, testCatalog(t))
	session := connect(t, s)

	r, err := session.CallTool(t.Context(), &sdk.CallToolParams{
		Name:      "list_installed",
		Arguments: map[string]any{"path": "/work/app"},
	})
	require.NoError(t, err)

	want := map[string]any{
		"root":    "/work/app",
		"message": "Workspace /work/app has 2 rules installed.",
		"tracked": true,
		"rules": []any{
			map[string]any{
				"name":           "aws",
				"version":        "1.0.0",
				"catalogVersion": "1.1.0",
				"installedAt":    "2025-03-01T12:00:00Z",
				"outdated":       true,
			},
			map[string]any{
				"name":           "python",
				"version":        "2.0.0",
				"catalogVersion": "2.0.0",
				"installedAt":    "2025-03-01T12:00:00Z",
				"modified":       true,
			},
		},
		"untracked": []any{"notes"},
	}
	assert.Equal(t, want, r.StructuredContent)
}

func TestServer_SetCatalog(t *testing.T) {
	t.Parallel()

	s := mcp.NewServer("", &fakeBackend{}, testCatalog(t))
	session := connect(t, s)

	list := func() []string {
		r, err := session.CallTool(t.Context(), &sdk.CallToolParams{
			Name:      "list_rules",
			Arguments: map[string]any{},
		})
		require.NoError(t, err)

		return ruleNames(t, r.StructuredContent)
	}

	assert.Equal(t, []string{"aws", "aws-sam", "python"}, list())

	s.SetCatalog(testCatalog(t).Without("aws-sam", "python"))
	assert.Equal(t, []string{"aws"}, list())
}

func TestServer_NoCatalog(t *testing.T) {
	t.Parallel()

	s := mcp.NewServer("", &fakeBackend{}, nil)
	session := connect(t, s)

	r, err := session.CallTool(t.Context(), &sdk.CallToolParams{
		Name:      "list_rules",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.True(t, r.IsError)
}

func TestServer_Watch(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/rules_catalog.json"
	require.NoError(t, catalog.Save(path, testCatalog(t)))

	s := mcp.NewServer("", &fakeBackend{}, nil)
	require.NoError(t, s.Watch(t.Context(), path))

	require.NoError(t, catalog.Save(path, testCatalog(t).Without("python")))

	require.Eventually(t, func() bool {
		snap := s.Catalog()

		return snap != nil && snap.Len() == 2
	}, 5*time.Second, 20*time.Millisecond)
}
