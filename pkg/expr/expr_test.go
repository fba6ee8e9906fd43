package expr_test

import (
	"testing"

	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/traits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/expr"
)

func TestRuleFilter_Match(t *testing.T) {
	t.Parallel()

	rule := &catalog.Rule{
		Name:         "aws-sam",
		Category:     catalog.CategoryServerless,
		Version:      "1.4.0",
		Tags:         []string{"aws", "serverless"},
		Dependencies: []string{"aws"},
	}

	tcs := map[string]struct {
		expression string
		errMsg     string
		want       bool
	}{
		"category equality": {
			expression: `rule.category == "serverless"`,
			want:       true,
		},
		"tag membership": {
			expression: `"aws" in rule.tags`,
			want:       true,
		},
		"hasTag": {
			expression: `hasTag(rule, "python")`,
			want:       false,
		},
		"semverAtLeast true": {
			expression: `semverAtLeast(rule.version, "1.2.0")`,
			want:       true,
		},
		"semverAtLeast numeric ordering": {
			expression: `semverAtLeast(rule.version, "1.10.0")`,
			want:       false,
		},
		"semverCompare": {
			expression: `semverCompare(rule.version, "2.0.0") < 0`,
			want:       true,
		},
		"dependencies": {
			expression: `rule.dependencies.exists(d, d == "aws") && rule.conflicts.size() == 0`,
			want:       true,
		},
		"payload file": {
			expression: `pathBase(rule.file) == "aws-sam.md" && pathExt(rule.file) == ".md"`,
			want:       true,
		},
		"string extension": {
			expression: `rule.name.startsWith("aws")`,
			want:       true,
		},
		"not a bool": {
			expression: `rule.name`,
			errMsg:     "must evaluate to a bool",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f, err := expr.NewRuleFilter(tc.expression)
			require.NoError(t, err)

			got, err := f.Match(rule)
			if tc.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewRuleFilter_CompileError(t *testing.T) {
	t.Parallel()

	_, err := expr.NewRuleFilter(`rule.category ==`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile")

	_, err = expr.NewRuleFilter(`unknownVar == 1`)
	require.Error(t, err)

	_, err = expr.NewRuleFilter(`rule.tags.size()`)
	require.ErrorIs(t, err, expr.ErrNotBool)
}

func TestRuleFilter_Apply(t *testing.T) {
	t.Parallel()

	rules := []catalog.Rule{
		{Name: "aws", Version: "1.0.0", Category: catalog.CategoryAWS},
		{Name: "python", Version: "2.0.0", Category: catalog.CategoryPython},
		{Name: "terraform", Version: "2.1.0", Category: catalog.CategoryTerraform},
	}

	f, err := expr.NewRuleFilter(`semverAtLeast(rule.version, "2.0.0")`)
	require.NoError(t, err)

	got, err := f.Apply(rules)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "python", got[0].Name)
	assert.Equal(t, "terraform", got[1].Name)
}

func TestConvertToCELValue(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input any
		want  any
	}{
		"nil":     {input: nil, want: types.NullValue},
		"bool":    {input: true, want: types.True},
		"int":     {input: 3, want: types.Int(3)},
		"float":   {input: 1.5, want: types.Double(1.5)},
		"string":  {input: "aws", want: types.String("aws")},
		"unknown": {input: struct{}{}, want: types.NullValue},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, expr.ConvertToCELValue(tc.input))
		})
	}

	list, ok := expr.ConvertToCELValue([]string{"a", "b"}).(traits.Lister)
	require.True(t, ok)
	assert.Equal(t, types.Int(2), list.Size())
}
