package cli_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulebook/internal/cli"
	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/resolve"
)

type fixture struct {
	configPath  string
	catalogPath string
	rulesDir    string
}

// newFixture writes a configuration, catalog and rules directory, and
// points XDG_CONFIG_HOME at a temporary directory.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	f := &fixture{
		configPath:  filepath.Join(dir, "config.yaml"),
		catalogPath: filepath.Join(dir, "rules_catalog.json"),
		rulesDir:    filepath.Join(dir, "rules"),
	}

	require.NoError(t, os.MkdirAll(f.rulesDir, 0o755))

	for name, body := range map[string]string{
		"aws":     "# AWS\n\nUse IAM roles.\n",
		"aws-sam": "# AWS SAM\n\nUse sam build.\n",
		"python":  "# Python\n\nUse type hints.\n",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(f.rulesDir, name+".md"), []byte(body), 0o644))
	}

	updated := catalog.NewTimestamp(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	snap := catalog.MustNew(map[string]catalog.Rule{
		"aws": {
			Name: "aws", Title: "AWS", Version: "1.0.0", Category: catalog.CategoryAWS,
			Tags: []string{"aws", "cloud"}, UpdatedAt: updated,
		},
		"aws-sam": {
			Name: "aws-sam", Title: "AWS SAM", Version: "1.0.0", Category: catalog.CategoryServerless,
			Tags: []string{"aws", "serverless"}, Dependencies: []string{"aws"}, UpdatedAt: updated,
		},
		"python": {
			Name: "python", Title: "Python", Version: "2.0.0", Category: catalog.CategoryPython,
			Tags: []string{"python"}, UpdatedAt: updated,
		},
	})
	require.NoError(t, catalog.Save(f.catalogPath, snap))

	cfg := fmt.Sprintf(`apiVersion: rulebook.macropower.dev/v1beta1
kind: Configuration
catalog:
  localPath: %s
  rulesDir: %s
`, f.catalogPath, f.rulesDir)
	require.NoError(t, os.WriteFile(f.configPath, []byte(cfg), 0o644))

	return f
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := cli.NewRootCmd()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--config", f.configPath}, args...))

	err := cmd.ExecuteContext(t.Context())

	return stdout.String(), err
}

func TestCLI_InstallUninstall(t *testing.T) {
	f := newFixture(t)
	ws := t.TempDir()

	out, err := f.run(t, "install", "aws-sam", "-w", ws)
	require.NoError(t, err)
	assert.Contains(t, out, "installed aws@1.0.0")
	assert.Contains(t, out, "installed aws-sam@1.0.0")
	assert.FileExists(t, filepath.Join(ws, ".amazonq", "rules", "aws.md"))
	assert.FileExists(t, filepath.Join(ws, ".amazonq", "rules", "aws-sam.md"))

	out, err = f.run(t, "install", "aws-sam", "-w", ws)
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to do")

	out, err = f.run(t, "status", ws)
	require.NoError(t, err)
	assert.Contains(t, out, "aws-sam")
	assert.Contains(t, out, "ok")

	_, err = f.run(t, "uninstall", "aws", "-w", ws)
	require.ErrorIs(t, err, resolve.ErrDependentsInstalled)
	assert.FileExists(t, filepath.Join(ws, ".amazonq", "rules", "aws.md"))

	out, err = f.run(t, "uninstall", "aws", "-w", ws, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "removed aws-sam@1.0.0")
	assert.Contains(t, out, "removed aws@1.0.0")
	assert.NoFileExists(t, filepath.Join(ws, ".amazonq", "rules", "aws.md"))

	out, err = f.run(t, "workspace", "list")
	require.NoError(t, err)
	assert.Contains(t, out, ws)
}

func TestCLI_DefaultWorkspaceFromSubdir(t *testing.T) {
	f := newFixture(t)
	ws := t.TempDir()

	_, err := f.run(t, "install", "aws", "-w", ws)
	require.NoError(t, err)

	sub := filepath.Join(ws, "src", "app")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	t.Chdir(sub)

	out, err := f.run(t, "install", "python")
	require.NoError(t, err)
	assert.Contains(t, out, "installed python@2.0.0")
	assert.FileExists(t, filepath.Join(ws, ".amazonq", "rules", "python.md"))
	assert.NoDirExists(t, filepath.Join(sub, ".amazonq"))

	out, err = f.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "aws")
	assert.Contains(t, out, "python")
}

func TestCLI_DryRun(t *testing.T) {
	f := newFixture(t)
	ws := t.TempDir()

	out, err := f.run(t, "install", "aws-sam", "-w", ws, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "+ aws@1.0.0")
	assert.Contains(t, out, "+ aws-sam@1.0.0")
	assert.NoDirExists(t, filepath.Join(ws, ".amazonq"))
}

func TestCLI_BulkInstall(t *testing.T) {
	f := newFixture(t)
	a, b := t.TempDir(), t.TempDir()

	_, err := f.run(t, "install", "python", "-w", a, "-w", b)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(a, ".amazonq", "rules", "python.md"))
	assert.FileExists(t, filepath.Join(b, ".amazonq", "rules", "python.md"))
}

func TestCLI_Browse(t *testing.T) {
	f := newFixture(t)
	ws := t.TempDir()

	_, err := f.run(t, "install", "python", "-w", ws)
	require.NoError(t, err)

	tcs := map[string]struct {
		args    []string
		want    []string
		notWant []string
	}{
		"list": {
			args: []string{"list"},
			want: []string{"aws", "aws-sam", "python"},
		},
		"list by category": {
			args:    []string{"list", "--category", "python"},
			want:    []string{"python"},
			notWant: []string{"aws"},
		},
		"list by filter": {
			args:    []string{"list", "--filter", `semverAtLeast(rule.version, "2.0.0")`},
			want:    []string{"python"},
			notWant: []string{"aws"},
		},
		"list hiding installed": {
			args:    []string{"list", "--hide-installed", "-w", ws},
			want:    []string{"aws", "aws-sam"},
			notWant: []string{"python"},
		},
		"search": {
			args:    []string{"search", "sam"},
			want:    []string{"aws-sam"},
			notWant: []string{"python"},
		},
		"show": {
			args: []string{"show", "aws", "--raw"},
			want: []string{"# AWS\n\nUse IAM roles.\n"},
		},
		"validate": {
			args: []string{"catalog", "validate"},
			want: []string{"3 rules"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			out, err := f.run(t, tc.args...)
			require.NoError(t, err)

			for _, w := range tc.want {
				assert.Contains(t, out, w)
			}

			for _, w := range tc.notWant {
				assert.NotContains(t, out, w)
			}
		})
	}
}

func TestCLI_DiffAndContribute(t *testing.T) {
	f := newFixture(t)
	ws := t.TempDir()

	_, err := f.run(t, "install", "python", "-w", ws)
	require.NoError(t, err)

	out, err := f.run(t, "diff", "python", ws)
	require.NoError(t, err)
	assert.Contains(t, out, "matches the catalog")

	edited := "# Python\n\nUse type hints and ruff.\n"
	require.NoError(t, os.WriteFile(filepath.Join(ws, ".amazonq", "rules", "python.md"), []byte(edited), 0o644))

	out, err = f.run(t, "diff", "python", ws)
	require.NoError(t, err)
	assert.Contains(t, out, "-Use type hints.")
	assert.Contains(t, out, "+Use type hints and ruff.")

	out, err = f.run(t, "status", ws)
	require.NoError(t, err)
	assert.Contains(t, out, "modified")

	_, err = f.run(t, "contribute", "python", ws)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(f.rulesDir, "python.md"))
	require.NoError(t, err)
	assert.Equal(t, edited, string(got))
}

func TestCLI_Index(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(t.TempDir(), "catalog.json")

	require.NoError(t, os.WriteFile(filepath.Join(f.rulesDir, "terraform.md"), []byte("# Terraform\n"), 0o644))

	stdout, err := f.run(t, "catalog", "index", "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "+ terraform")
	assert.Contains(t, stdout, "wrote "+out)

	snap, err := catalog.Load(out)
	require.NoError(t, err)
	assert.True(t, snap.Has("terraform"))
	assert.Equal(t, 4, snap.Len())

	r, _ := snap.Get("terraform")
	assert.Equal(t, catalog.CategoryTerraform, r.Category)
	assert.Equal(t, "Terraform", r.Title)
}

func TestCLI_Sync(t *testing.T) {
	f := newFixture(t)
	ws := t.TempDir()

	_, err := f.run(t, "install", "aws", "-w", ws)
	require.NoError(t, err)

	local, err := catalog.Load(f.catalogPath)
	require.NoError(t, err)

	aws, _ := local.Get("aws")
	aws.Version = "1.1.0"
	aws.UpdatedAt = catalog.NewTimestamp(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	remote, err := local.With(aws)
	require.NoError(t, err)

	body, err := catalog.Marshal(remote)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	out, err := f.run(t, "sync", "--catalog-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "~ aws 1.0.0 -> 1.1.0")
	assert.Contains(t, out, "rulebook update -w "+ws)

	out, err = f.run(t, "update", "-w", ws)
	require.NoError(t, err)
	assert.Contains(t, out, "installed aws@1.1.0")
}

func TestCLI_Errors(t *testing.T) {
	f := newFixture(t)
	ws := t.TempDir()

	tcs := map[string]struct {
		args   []string
		errMsg string
	}{
		"unknown rule": {
			args:   []string{"install", "ghost", "-w", ws},
			errMsg: "dependency missing",
		},
		"no remote": {
			args:   []string{"sync"},
			errMsg: "no remote catalog configured",
		},
		"bad filter": {
			args:   []string{"list", "--filter", "rule.("},
			errMsg: "filter",
		},
		"not installed": {
			args:   []string{"uninstall", "python", "-w", ws},
			errMsg: "not installed",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			_, err := f.run(t, tc.args...)
			require.ErrorContains(t, err, tc.errMsg)
		})
	}
}
