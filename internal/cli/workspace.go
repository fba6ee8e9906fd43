package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/manager"
	"github.com/macropower/rulebook/pkg/render"
)

func NewStatusCmd(ra *RootArgs) *cobra.Command {
	return &cobra.Command{
		Use:     "status [workspace]",
		Short:   "Show the rules installed in a workspace",
		GroupID: groupWorkspace,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := ra.NewManager()
			if err != nil {
				return err
			}

			snap, err := m.Catalog()
			if errors.Is(err, manager.ErrNoCatalog) {
				warnf(cmd.ErrOrStderr(), "%v, catalog versions are not shown", err)

				snap = nil
			} else if err != nil {
				return err //nolint:wrapcheck // Already descriptive.
			}

			root, err := workspaceRootArg(m, args, 0)
			if err != nil {
				return err
			}

			status, err := m.Status(cmd.Context(), root, snap)
			if err != nil {
				return err //nolint:wrapcheck // Already descriptive.
			}

			printStatus(cmd, status, time.Now())

			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, status *manager.Status, now time.Time) {
	w := cmd.OutOrStdout()

	if !status.Tracked {
		mustN(fmt.Fprintf(w, "%s is not managed by rulebook\n", status.Root))
	}

	if len(status.Rules) > 0 {
		t := newTable("RULE", "VERSION", "CATALOG", "INSTALLED", "STATE")

		for _, rs := range status.Rules {
			t.Row(rs.Name, rs.Version, rs.CatalogVersion, humanize.RelTime(rs.InstalledAt, now, "ago", "from now"), ruleState(rs))
		}

		mustN(fmt.Fprintln(w, t.Render()))
	}

	for _, name := range status.Untracked {
		warnf(cmd.ErrOrStderr(), "%s.md is not tracked", name)
	}
}

func ruleState(rs manager.RuleStatus) string {
	switch {
	case rs.PayloadMissing:
		return removeStyle.Render("missing")
	case rs.Modified:
		return warnStyle.Render("modified")
	case rs.Outdated:
		return warnStyle.Render("outdated")
	case rs.CatalogVersion == "":
		return subtleStyle.Render("not in catalog")
	}

	return addStyle.Render("ok")
}

func NewDiffCmd(ra *RootArgs) *cobra.Command {
	return &cobra.Command{
		Use:     "diff <rule> [workspace]",
		Short:   "Diff an installed rule against the catalog",
		GroupID: groupWorkspace,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := ra.NewManager()
			if err != nil {
				return err
			}

			root, err := workspaceRootArg(m, args, 1)
			if err != nil {
				return err
			}

			diff, err := m.Diff(cmd.Context(), root, args[0])
			if err != nil {
				return err //nolint:wrapcheck // Already descriptive.
			}

			if diff == "" {
				mustN(fmt.Fprintf(cmd.OutOrStdout(), "%s matches the catalog\n", args[0]))

				return nil
			}

			if !isTerminal(cmd.OutOrStdout()) {
				mustN(fmt.Fprint(cmd.OutOrStdout(), diff))

				return nil
			}

			out, err := render.New(render.WithLanguage("diff")).Render(diff)
			if err != nil {
				return fmt.Errorf("render diff: %w", err)
			}

			mustN(fmt.Fprint(cmd.OutOrStdout(), out))

			return nil
		},
	}
}

func NewContributeCmd(ra *RootArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "contribute <rule> [workspace]",
		Short: "Copy a locally edited rule back into the rules directory",
		Long: `Copy a locally edited rule back into the rules directory.

Run "rulebook catalog index" afterwards to pick up the change.`,
		GroupID: groupCatalog,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := ra.NewManager()
			if err != nil {
				return err
			}

			root, err := workspaceRootArg(m, args, 1)
			if err != nil {
				return err
			}

			dest, err := m.Contribute(cmd.Context(), root, args[0])
			if err != nil {
				return err //nolint:wrapcheck // Already descriptive.
			}

			mustN(fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", dest))

			return nil
		},
	}
}

func NewWorkspaceCmd(ra *RootArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage the registry of known workspaces",
		GroupID: groupWorkspace,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered workspaces",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := ra.NewManager()
				if err != nil {
					return err
				}

				entries, err := m.Workspaces()
				if err != nil {
					return err //nolint:wrapcheck // Already descriptive.
				}

				now := time.Now()
				t := newTable("NAME", "PATH", "REGISTERED")

				for _, e := range entries {
					registered := catalog.ParseTimestamp(e.RegisteredAt)

					age := ""
					if !registered.IsEpoch() {
						age = humanize.RelTime(registered.Time, now, "ago", "from now")
					}

					t.Row(e.Name, e.Path, age)
				}

				mustN(fmt.Fprintln(cmd.OutOrStdout(), t.Render()))

				return nil
			},
		},
		&cobra.Command{
			Use:   "register [path] [name]",
			Short: "Register a workspace without installing anything",
			Args:  cobra.MaximumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := ra.NewManager()
				if err != nil {
					return err
				}

				name := ""
				if len(args) > 1 {
					name = args[1]
				}

				entry, err := m.RegisterWorkspace(workspaceArg(args, 0), name)
				if err != nil {
					return err //nolint:wrapcheck // Already descriptive.
				}

				mustN(fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", entry.Name, entry.Path))

				return nil
			},
		},
		&cobra.Command{
			Use:   "unregister [path]",
			Short: "Forget a workspace, leaving its files in place",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := ra.NewManager()
				if err != nil {
					return err
				}

				ok, err := m.UnregisterWorkspace(workspaceArg(args, 0))
				if err != nil {
					return err //nolint:wrapcheck // Already descriptive.
				}

				if !ok {
					warnf(cmd.ErrOrStderr(), "%s is not registered", workspaceArg(args, 0))
				}

				return nil
			},
		},
	)

	return cmd
}
