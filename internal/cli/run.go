package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/macropower/rulebook/api/v1beta1/configs"
	"github.com/macropower/rulebook/pkg/config"
	"github.com/macropower/rulebook/pkg/manager"
)

const (
	groupWorkspace = "workspace"
	groupCatalog   = "catalog"
)

// configPath returns the configuration file in use.
func (ra *RootArgs) configPath() string {
	if ra.ConfigPath != "" {
		return ra.ConfigPath
	}

	return configs.GetPath()
}

// NewManager loads the global configuration, writing the defaults on first
// use, and applies flag overrides.
func (ra *RootArgs) NewManager() (*manager.Manager, error) {
	path := ra.configPath()

	cfg, err := config.LoadGlobal(path)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	var opts []manager.Opt

	if ra.CatalogURL != "" {
		opts = append(opts, manager.WithRemoteURL(ra.CatalogURL))
	}

	if ra.RulesSource != "" {
		opts = append(opts, manager.WithRulesDir(ra.RulesSource))
	}

	m := manager.New(cfg, path, opts...)

	slog.Debug("loaded configuration",
		slog.String("path", path),
		slog.String("catalog", m.CatalogPath()),
		slog.String("rules", m.RulesDir()),
		slog.String("remote", m.RemoteURL()),
	)

	return m, nil
}

// isInteractive reports whether both ends of cmd are attached to a terminal.
func isInteractive(cmd *cobra.Command) bool {
	in, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(in.Fd())) { //nolint:gosec // Fd fits in int.
		return false
	}

	return isTerminal(cmd.OutOrStdout())
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)

	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // Fd fits in int.
}

// confirm asks a yes/no question. It must only be called when
// [isInteractive] is true.
func confirm(cmd *cobra.Command, title, description string) (bool, error) {
	ok := false

	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Yes").
			Negative("No").
			Value(&ok),
	)).
		WithInput(cmd.InOrStdin()).
		WithOutput(cmd.OutOrStdout())

	err := form.RunWithContext(cmd.Context())
	if err != nil {
		return false, fmt.Errorf("prompt: %w", err)
	}

	return ok, nil
}

// workspaceRoot resolves the workspace a command acts on. An explicit path
// is used as given; the default is widened to the nearest enclosing tracked
// workspace.
func workspaceRoot(m *manager.Manager, path string, explicit bool) (string, error) {
	if explicit {
		return path, nil
	}

	root, err := m.Store().FindRoot(path)
	if err != nil {
		return "", err //nolint:wrapcheck // Already descriptive.
	}

	return root, nil
}

// workspaceRootArg resolves the optional positional workspace at args[i].
func workspaceRootArg(m *manager.Manager, args []string, i int) (string, error) {
	return workspaceRoot(m, workspaceArg(args, i), len(args) > i)
}

func workspaceArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}

	return "."
}
