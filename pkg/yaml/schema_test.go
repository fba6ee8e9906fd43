package yaml_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulebook/api/v1beta1/workspaces"
	"github.com/macropower/rulebook/pkg/yaml"
)

func TestSchemaGenerator_Generate(t *testing.T) {
	t.Parallel()

	data, err := yaml.NewSchemaGenerator(workspaces.NewState()).Generate()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "#/$defs/State", doc["$ref"])
	assert.Contains(t, doc["$defs"], "State")

	v, err := yaml.NewValidator("/state.json", data)
	require.NoError(t, err)

	err = v.Validate(map[string]any{
		"apiVersion": "rulebook.macropower.dev/v1beta1",
		"kind":       "WorkspaceState",
	})
	require.NoError(t, err)

	err = v.Validate(map[string]any{
		"apiVersion": "rulebook.macropower.dev/v1beta1",
		"kind":       "Configuration",
	})
	require.Error(t, err)
}

func TestSchemaGenerator_ForeignPackage(t *testing.T) {
	t.Parallel()

	gen := yaml.NewSchemaGenerator(workspaces.NewState(),
		yaml.WithGoComments("github.com/macropower/rulebook", "example.com/other"),
	)

	_, err := gen.Generate()
	require.ErrorContains(t, err, "not in module")
}
