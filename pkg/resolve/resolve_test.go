package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/resolve"
	"github.com/macropower/rulebook/pkg/workspace"
)

func rule(name, version string, deps []string, conflicts ...string) catalog.Rule {
	return catalog.Rule{
		Name:         name,
		Version:      version,
		Dependencies: deps,
		Conflicts:    conflicts,
	}
}

func snapshot(rules ...catalog.Rule) *catalog.Snapshot {
	m := map[string]catalog.Rule{}
	for _, r := range rules {
		m[r.Name] = r
	}

	return catalog.MustNew(m)
}

func state(installed map[string]string) *workspace.State {
	st := workspace.NewState("/work")
	for name, version := range installed {
		st.Put(workspace.Record{Name: name, Version: version})
	}

	return st
}

func TestInstall(t *testing.T) {
	t.Parallel()

	snap := snapshot(
		rule("python", "1.0.0", nil),
		rule("aws", "1.0.0", nil),
		rule("aws-sam", "1.0.0", []string{"aws"}),
		rule("serverless", "1.0.0", []string{"aws-sam", "aws"}),
		rule("cycle-a", "1.0.0", []string{"cycle-b"}),
		rule("cycle-b", "1.0.0", []string{"cycle-a"}),
	)

	tcs := map[string]struct {
		installed map[string]string
		request   []string
		want      []string
	}{
		"dependency before dependent": {
			request: []string{"aws-sam"},
			want:    []string{"aws", "aws-sam"},
		},
		"no dependencies": {
			request: []string{"python"},
			want:    []string{"python"},
		},
		"transitive and shared dependencies appear once": {
			request: []string{"serverless", "aws-sam"},
			want:    []string{"aws", "aws-sam", "serverless"},
		},
		"installed dependency at catalog version is skipped": {
			installed: map[string]string{"aws": "1.0.0"},
			request:   []string{"aws-sam"},
			want:      []string{"aws-sam"},
		},
		"installed dependency at another version is replaced": {
			installed: map[string]string{"aws": "0.9.0"},
			request:   []string{"aws-sam"},
			want:      []string{"aws", "aws-sam"},
		},
		"already installed is a no-op": {
			installed: map[string]string{"python": "1.0.0"},
			request:   []string{"python"},
			want:      []string{},
		},
		"cycles terminate": {
			request: []string{"cycle-a"},
			want:    []string{"cycle-b", "cycle-a"},
		},
		"duplicate request": {
			request: []string{"python", "python"},
			want:    []string{"python"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			plan, err := resolve.Install(tc.request, snap, state(tc.installed))
			require.NoError(t, err)
			assert.Equal(t, resolve.ModeInstall, plan.Mode)
			assert.Equal(t, tc.want, plan.AddNames())
			assert.Empty(t, plan.Remove)
			assert.Equal(t, len(tc.want) == 0, plan.Empty())
		})
	}
}

func TestInstall_DependencyOrderProperty(t *testing.T) {
	t.Parallel()

	snap := snapshot(
		rule("a", "1.0.0", []string{"b", "c"}),
		rule("b", "1.0.0", []string{"d"}),
		rule("c", "1.0.0", []string{"d", "e"}),
		rule("d", "1.0.0", nil),
		rule("e", "1.0.0", []string{"d"}),
	)

	plan, err := resolve.Install([]string{"a", "e"}, snap, state(nil))
	require.NoError(t, err)

	pos := map[string]int{}
	for i, name := range plan.AddNames() {
		_, dup := pos[name]
		require.False(t, dup, "%s appears twice", name)

		pos[name] = i
	}

	for _, name := range plan.AddNames() {
		r, ok := snap.Get(name)
		require.True(t, ok)

		for _, dep := range r.Dependencies {
			assert.Less(t, pos[dep], pos[name], "%s must precede %s", dep, name)
		}
	}
}

func TestInstall_Missing(t *testing.T) {
	t.Parallel()

	snap := snapshot(
		rule("python", "1.0.0", []string{"black-formatter"}),
		rule("lint", "1.0.0", []string{"black-formatter"}),
	)

	plan, err := resolve.Install([]string{"python", "lint", "ghost"}, snap, state(nil))
	require.ErrorIs(t, err, resolve.ErrDependencyMissing)

	var missingErr *resolve.DependencyMissingError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, []string{"black-formatter", "ghost"}, missingErr.Names)
	assert.Equal(t, []string{"python", "lint"}, missingErr.RequiredBy["black-formatter"])
	assert.Contains(t, err.Error(), "black-formatter (required by python, lint)")
	assert.Equal(t, []string{"black-formatter", "ghost"}, plan.Missing)
}

func TestInstall_Conflicts(t *testing.T) {
	t.Parallel()

	snap := snapshot(
		rule("tabs", "1.0.0", nil, "spaces"),
		rule("spaces", "1.0.0", nil),
		rule("prettier", "1.0.0", nil, "standard", "tabs"),
		rule("standard", "1.0.0", nil),
		rule("style", "1.0.0", []string{"prettier"}),
	)

	tcs := map[string]struct {
		installed map[string]string
		request   []string
		want      []resolve.Conflict
	}{
		"declared on the requested rule": {
			installed: map[string]string{"spaces": "1.0.0"},
			request:   []string{"tabs"},
			want:      []resolve.Conflict{{A: "spaces", B: "tabs"}},
		},
		"declared on the installed rule": {
			installed: map[string]string{"tabs": "1.0.0"},
			request:   []string{"spaces"},
			want:      []resolve.Conflict{{A: "spaces", B: "tabs"}},
		},
		"within the add set via dependency": {
			request: []string{"style", "standard", "tabs"},
			want: []resolve.Conflict{
				{A: "prettier", B: "standard"},
				{A: "prettier", B: "tabs"},
			},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			plan, err := resolve.Install(tc.request, snap, state(tc.installed))
			require.ErrorIs(t, err, resolve.ErrConflict)

			var conflictErr *resolve.ConflictError
			require.ErrorAs(t, err, &conflictErr)
			assert.Equal(t, tc.want, conflictErr.Pairs)
			assert.Equal(t, tc.want, plan.Conflicts)
		})
	}
}

func TestUninstall(t *testing.T) {
	t.Parallel()

	snap := snapshot(
		rule("aws", "1.0.0", nil),
		rule("aws-sam", "1.0.0", []string{"aws"}),
		rule("sam-local", "1.0.0", []string{"aws-sam"}),
		rule("python", "1.0.0", nil),
	)

	installed := map[string]string{
		"aws":       "1.0.0",
		"aws-sam":   "1.0.0",
		"sam-local": "1.0.0",
		"python":    "1.0.0",
	}

	tcs := map[string]struct {
		opts           []resolve.Option
		request        []string
		want           []string
		wantDependents []string
	}{
		"leaf": {
			request: []string{"python"},
			want:    []string{"python"},
		},
		"dependents still installed": {
			request:        []string{"aws"},
			wantDependents: []string{"aws-sam", "sam-local"},
		},
		"partial also remove": {
			request:        []string{"aws"},
			opts:           []resolve.Option{resolve.WithAlsoRemove("aws-sam")},
			wantDependents: []string{"sam-local"},
		},
		"dependents removed first": {
			request: []string{"aws"},
			opts:    []resolve.Option{resolve.WithAlsoRemove("sam-local", "aws-sam")},
			want:    []string{"sam-local", "aws-sam", "aws"},
		},
		"all requested": {
			request: []string{"aws", "aws-sam", "sam-local"},
			want:    []string{"sam-local", "aws-sam", "aws"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			plan, err := resolve.Uninstall(tc.request, snap, state(installed), tc.opts...)
			if tc.wantDependents != nil {
				require.ErrorIs(t, err, resolve.ErrDependentsInstalled)

				var depErr *resolve.DependentsInstalledError
				require.ErrorAs(t, err, &depErr)
				assert.Equal(t, tc.wantDependents, depErr.Dependents)
				assert.Empty(t, plan.Remove)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, plan.RemoveNames())
			assert.Empty(t, plan.Add)
		})
	}
}

func TestUninstall_DependentsScenario(t *testing.T) {
	t.Parallel()

	snap := snapshot(
		rule("aws", "1.0.0", nil),
		rule("aws-sam", "1.0.0", []string{"aws"}),
	)

	_, err := resolve.Uninstall([]string{"aws"}, snap, state(map[string]string{
		"aws":     "1.0.0",
		"aws-sam": "1.0.0",
	}))

	var depErr *resolve.DependentsInstalledError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, []string{"aws-sam"}, depErr.Dependents)
	assert.Equal(t, []string{"aws"}, depErr.Rules)
}

func TestUninstall_NotInstalled(t *testing.T) {
	t.Parallel()

	_, err := resolve.Uninstall([]string{"aws"}, snapshot(rule("aws", "1.0.0", nil)), state(nil))
	require.ErrorIs(t, err, resolve.ErrNotInstalled)
}

func TestUninstall_RuleRemovedFromCatalog(t *testing.T) {
	t.Parallel()

	plan, err := resolve.Uninstall([]string{"legacy"}, snapshot(), state(map[string]string{"legacy": "0.1.0"}))
	require.NoError(t, err)
	assert.Equal(t, []resolve.Step{{Name: "legacy", Version: "0.1.0"}}, plan.Remove)
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	snap := snapshot(
		rule("aws", "1.1.0", nil),
		rule("iam", "1.0.0", nil),
		rule("aws-sam", "2.0.0", []string{"aws", "iam"}),
		rule("python", "1.0.0", nil),
		rule("tabs", "2.0.0", nil, "python"),
	)

	tcs := map[string]struct {
		installed map[string]string
		request   []string
		want      []resolve.Step
		err       error
	}{
		"version changed with new dependency": {
			installed: map[string]string{"aws": "1.0.0", "aws-sam": "1.0.0"},
			request:   []string{"aws-sam"},
			want: []resolve.Step{
				{Name: "iam", Version: "1.0.0"},
				{Name: "aws-sam", Version: "2.0.0"},
			},
		},
		"unchanged is a no-op": {
			installed: map[string]string{"python": "1.0.0"},
			request:   []string{"python"},
			want:      nil,
		},
		"not installed": {
			installed: map[string]string{},
			request:   []string{"aws"},
			err:       resolve.ErrNotInstalled,
		},
		"new conflict": {
			installed: map[string]string{"tabs": "1.0.0", "python": "1.0.0"},
			request:   []string{"tabs"},
			err:       resolve.ErrConflict,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			plan, err := resolve.Update(tc.request, snap, state(tc.installed))
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, plan.Add)
		})
	}
}

func TestUpdateAll(t *testing.T) {
	t.Parallel()

	snap := snapshot(
		rule("aws", "1.1.0", nil),
		rule("aws-sam", "1.0.0", []string{"aws"}),
		rule("python", "2.0.0", nil),
	)

	st := state(map[string]string{
		"aws":     "1.0.0",
		"aws-sam": "1.0.0",
		"python":  "2.0.0",
		"legacy":  "0.1.0",
	})

	assert.Equal(t, []string{"aws"}, resolve.Outdated(snap, st))

	plan, err := resolve.UpdateAll(snap, st)
	require.NoError(t, err)
	assert.Equal(t, []resolve.Step{{Name: "aws", Version: "1.1.0"}}, plan.Add)
}

func TestResolve_UnknownMode(t *testing.T) {
	t.Parallel()

	_, err := resolve.Resolve(nil, snapshot(), state(nil), resolve.Mode("purge"))
	require.ErrorIs(t, err, resolve.ErrUnknownMode)
}

func TestPlan_String(t *testing.T) {
	t.Parallel()

	plan := &resolve.Plan{
		Mode:    resolve.ModeInstall,
		Request: []string{"aws-sam"},
		Add:     []resolve.Step{{Name: "aws", Version: "1.0.0"}, {Name: "aws-sam", Version: "1.0.0"}},
	}

	assert.Equal(t, "install aws-sam\n  + aws@1.0.0\n  + aws-sam@1.0.0\n", plan.String())

	empty := &resolve.Plan{Mode: resolve.ModeUpdate}
	assert.Contains(t, empty.String(), "nothing to do")
}
