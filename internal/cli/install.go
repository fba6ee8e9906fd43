package cli

import (
	"errors"
	"fmt"

	xstrings "github.com/charmbracelet/x/exp/strings"
	"github.com/spf13/cobra"

	"github.com/macropower/rulebook/pkg/manager"
	"github.com/macropower/rulebook/pkg/resolve"
)

type InstallArgs struct {
	*RootArgs

	Workspaces []string
}

func NewInstallCmd(ra *RootArgs) *cobra.Command {
	args := &InstallArgs{RootArgs: ra}

	cmd := &cobra.Command{
		Use:   "install <rule>...",
		Short: "Install rules and their dependencies into workspaces",
		Example: `  rulebook install aws-sam
  rulebook install python black-formatter -w ./api -w ./worker`,
		GroupID:           groupWorkspace,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completeRuleNames(ra),
		RunE: func(cmd *cobra.Command, names []string) error {
			m, err := ra.NewManager()
			if err != nil {
				return err
			}

			opts := []manager.OpOpt{manager.WithDryRun(ra.DryRun)}

			if len(args.Workspaces) > 1 {
				results, err := m.BulkInstall(cmd.Context(), args.Workspaces, names, opts...)
				for _, res := range results {
					printResult(cmd.OutOrStdout(), res)
				}

				return err //nolint:wrapcheck // Already descriptive.
			}

			root, err := workspaceRoot(m, workspaceArg(args.Workspaces, 0), cmd.Flags().Changed("workspace"))
			if err != nil {
				return err
			}

			res, err := m.Install(cmd.Context(), root, names, opts...)
			printResult(cmd.OutOrStdout(), res)

			return err //nolint:wrapcheck // Already descriptive.
		},
	}

	cmd.Flags().StringSliceVarP(&args.Workspaces, "workspace", "w", []string{"."},
		"Workspace root, may be repeated to install into several workspaces")
	must(cmd.MarkFlagDirname("workspace"))

	return cmd
}

type UninstallArgs struct {
	*RootArgs

	Workspace  string
	AlsoRemove []string
	Yes        bool
}

func NewUninstallCmd(ra *RootArgs) *cobra.Command {
	args := &UninstallArgs{RootArgs: ra}

	cmd := &cobra.Command{
		Use:   "uninstall <rule>...",
		Short: "Remove rules from a workspace",
		Long: `Remove rules from a workspace.

Rules that other installed rules depend on are only removed together with
those dependents. Pass them with --also-remove, or answer the prompt.`,
		GroupID:           groupWorkspace,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completeInstalledNames(ra, &args.Workspace),
		RunE: func(cmd *cobra.Command, names []string) error {
			m, err := ra.NewManager()
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			root, err := workspaceRoot(m, args.Workspace, cmd.Flags().Changed("workspace"))
			if err != nil {
				return err
			}

			res, err := m.Uninstall(ctx, root, names,
				manager.WithDryRun(ra.DryRun),
				manager.WithAlsoRemove(args.AlsoRemove...),
			)

			var depErr *resolve.DependentsInstalledError
			if errors.As(err, &depErr) {
				ok, perr := args.confirmDependents(cmd, depErr)
				if perr != nil {
					return perr
				}

				if ok {
					res, err = m.Uninstall(ctx, root, names,
						manager.WithDryRun(ra.DryRun),
						manager.WithAlsoRemove(append(args.AlsoRemove, depErr.Dependents...)...),
					)
				}
			}

			printResult(cmd.OutOrStdout(), res)

			return err //nolint:wrapcheck // Already descriptive.
		},
	}

	cmd.Flags().StringVarP(&args.Workspace, "workspace", "w", ".", "Workspace root")
	cmd.Flags().StringSliceVar(&args.AlsoRemove, "also-remove", nil, "Dependent rules that may be removed too")
	cmd.Flags().BoolVarP(&args.Yes, "yes", "y", false, "Remove blocking dependents without asking")
	must(cmd.MarkFlagDirname("workspace"))

	return cmd
}

func (ua *UninstallArgs) confirmDependents(cmd *cobra.Command, depErr *resolve.DependentsInstalledError) (bool, error) {
	if ua.Yes {
		return true, nil
	}

	if !isInteractive(cmd) {
		return false, nil
	}

	return confirm(cmd,
		fmt.Sprintf("Also remove %d dependent rules?", len(depErr.Dependents)),
		fmt.Sprintf("%s depend on %s.",
			xstrings.EnglishJoin(depErr.Dependents, true),
			xstrings.EnglishJoin(depErr.Rules, true),
		),
	)
}

type UpdateArgs struct {
	*RootArgs

	Workspace string
}

func NewUpdateCmd(ra *RootArgs) *cobra.Command {
	args := &UpdateArgs{RootArgs: ra}

	cmd := &cobra.Command{
		Use:   "update [rule]...",
		Short: "Update installed rules to their catalog versions",
		Long: `Update installed rules to their catalog versions.

Without arguments, every outdated rule in the workspace is updated.`,
		GroupID:           groupWorkspace,
		ValidArgsFunction: completeInstalledNames(ra, &args.Workspace),
		RunE: func(cmd *cobra.Command, names []string) error {
			m, err := ra.NewManager()
			if err != nil {
				return err
			}

			root, err := workspaceRoot(m, args.Workspace, cmd.Flags().Changed("workspace"))
			if err != nil {
				return err
			}

			res, err := m.Update(cmd.Context(), root, names, manager.WithDryRun(ra.DryRun))
			printResult(cmd.OutOrStdout(), res)

			return err //nolint:wrapcheck // Already descriptive.
		},
	}

	cmd.Flags().StringVarP(&args.Workspace, "workspace", "w", ".", "Workspace root")
	must(cmd.MarkFlagDirname("workspace"))

	return cmd
}
