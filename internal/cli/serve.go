package cli

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/manager"
	"github.com/macropower/rulebook/pkg/mcp"
)

type ServeArgs struct {
	*RootArgs

	Address string
	Watch   bool
}

func NewServeCmd(ra *RootArgs) *cobra.Command {
	args := &ServeArgs{RootArgs: ra}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog over the Model Context Protocol",
		Long: `Serve the catalog over the Model Context Protocol.

Without --address the server speaks MCP over stdio, for assistants that
launch rulebook as a subprocess.`,
		Example: `  rulebook serve
  rulebook serve --address localhost:8080 --watch`,
		GroupID: groupCatalog,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := ra.NewManager()
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			snap, err := m.Catalog()
			if errors.Is(err, manager.ErrNoCatalog) && args.Watch {
				slog.WarnContext(ctx, "catalog not found, serving an empty catalog until it is created",
					slog.String("path", m.CatalogPath()),
				)

				snap = catalog.Empty()
			} else if err != nil {
				return err //nolint:wrapcheck // Already descriptive.
			}

			srv := mcp.NewServer(args.Address, m, snap)

			if args.Watch {
				err := srv.Watch(ctx, m.CatalogPath())
				if err != nil {
					return err //nolint:wrapcheck // Already descriptive.
				}
			}

			return srv.Serve(ctx) //nolint:wrapcheck // Already descriptive.
		},
	}

	cmd.Flags().StringVar(&args.Address, "address", "", "Serve streamable HTTP at this address instead of stdio")
	cmd.Flags().BoolVar(&args.Watch, "watch", false, "Reload the catalog when the file changes")

	return cmd
}
