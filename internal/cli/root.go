package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/macropower/rulebook/pkg/log"
	"github.com/macropower/rulebook/pkg/telemetry"
)

const (
	cmdName = "rulebook"
	cmdDesc = `Install, update and synchronize assistant rules across workspaces.`

	cmdExamples = `  # Install a rule and its dependencies into the current directory:
  rulebook install aws-sam

  # Preview the plan without touching the workspace:
  rulebook install aws-sam --dry-run

  # Install into several workspaces at once:
  rulebook install python -w ./api -w ./worker

  # Pull the latest catalog and update outdated rules:
  rulebook sync && rulebook update

  # Serve the catalog to an AI assistant over MCP:
  rulebook serve --watch`
)

type RootArgs struct {
	shutdown func(context.Context) error

	ConfigPath    string
	CatalogURL    string
	RulesSource   string
	LogLevel      string
	LogFormat     string
	TraceEndpoint string
	DryRun        bool
}

func NewRootArgs() *RootArgs {
	return &RootArgs{}
}

func (ra *RootArgs) AddFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.StringVar(&ra.LogLevel, "log-level", "info", fmt.Sprintf("Log level, one of: %s", log.AllLevels))
	flags.StringVar(&ra.LogFormat, "log-format", "text", fmt.Sprintf("Log format, one of: %s", log.AllFormats))
	flags.StringVar(&ra.ConfigPath, "config", "", "Path to the rulebook configuration file")
	flags.StringVar(&ra.CatalogURL, "catalog-url", "", "Remote catalog URL, overrides catalog.remoteURL")
	flags.StringVar(&ra.RulesSource, "rules-source", "", "Rule payload directory, overrides catalog.rulesDir")
	flags.StringVar(&ra.TraceEndpoint, "trace-endpoint", "", "OTLP gRPC endpoint to export traces to")
	flags.BoolVar(&ra.DryRun, "dry-run", false, "Print the plan without applying it")

	must(cmd.MarkPersistentFlagFilename("config", "yaml", "yml"))
	must(cmd.MarkPersistentFlagDirname("rules-source"))

	must(cmd.RegisterFlagCompletionFunc("log-format",
		cobra.FixedCompletions(log.AllFormats, cobra.ShellCompDirectiveNoFileComp),
	))

	must(cmd.RegisterFlagCompletionFunc("log-level",
		cobra.FixedCompletions(log.AllLevels, cobra.ShellCompDirectiveNoFileComp),
	))
}

func NewRootCmd() *cobra.Command {
	args := NewRootArgs()

	cmd := &cobra.Command{
		Use:                cmdName,
		Short:              cmdDesc,
		Example:            cmdExamples,
		SilenceUsage:       true,
		PersistentPreRunE:  setup(args),
		PersistentPostRunE: teardown(args),
	}

	args.AddFlags(cmd)

	cmd.AddGroup(
		&cobra.Group{ID: groupWorkspace, Title: "Workspace Commands:"},
		&cobra.Group{ID: groupCatalog, Title: "Catalog Commands:"},
	)

	cmd.AddCommand(
		NewInstallCmd(args),
		NewUninstallCmd(args),
		NewUpdateCmd(args),
		NewStatusCmd(args),
		NewDiffCmd(args),
		NewContributeCmd(args),
		NewWorkspaceCmd(args),
		NewListCmd(args),
		NewShowCmd(args),
		NewSearchCmd(args),
		NewSyncCmd(args),
		NewCatalogCmd(args),
		NewServeCmd(args),
		NewVersionCmd(),
	)

	bindEnvVars(cmd)

	return cmd
}

func setup(ra *RootArgs) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		logHandler, err := log.NewHandler(cmd.ErrOrStderr(), ra.LogLevel, ra.LogFormat)
		if err != nil {
			return fmt.Errorf("create log handler: %w", err)
		}

		slog.SetDefault(slog.New(logHandler))

		shutdown, err := telemetry.Init(cmd.Context(), telemetry.ConfigFromEnv(ra.TraceEndpoint))
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}

		ra.shutdown = shutdown

		return nil
	}
}

func teardown(ra *RootArgs) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if ra.shutdown == nil {
			return nil
		}

		err := ra.shutdown(context.WithoutCancel(cmd.Context()))
		if err != nil {
			slog.Warn("flush traces", slog.Any("err", err))
		}

		return nil
	}
}
