package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/expr"
	"github.com/macropower/rulebook/pkg/manager"
	"github.com/macropower/rulebook/pkg/render"
)

type ListArgs struct {
	*RootArgs

	Category      string
	Tag           string
	Filter        string
	Workspace     string
	HideInstalled bool
}

func (la *ListArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&la.Category, "category", "c", "", "Only show rules in this category")
	cmd.Flags().StringVarP(&la.Tag, "tag", "t", "", "Only show rules with this tag")
	cmd.Flags().StringVarP(&la.Filter, "filter", "f", "", `CEL expression over "rule", e.g. 'semverAtLeast(rule.version, "2.0.0")'`)
	cmd.Flags().BoolVar(&la.HideInstalled, "hide-installed", false, "Hide rules already installed in the workspace")
	cmd.Flags().StringVarP(&la.Workspace, "workspace", "w", ".", "Workspace root for --hide-installed")
	must(cmd.MarkFlagDirname("workspace"))

	categories := make([]string, 0, len(catalog.AllCategories))
	for _, c := range catalog.AllCategories {
		categories = append(categories, string(c))
	}

	must(cmd.RegisterFlagCompletionFunc("category",
		cobra.FixedCompletions(categories, cobra.ShellCompDirectiveNoFileComp),
	))
}

// visible returns the part of snap the command should consider.
func (la *ListArgs) visible(cmd *cobra.Command, m *manager.Manager, snap *catalog.Snapshot) (*catalog.Snapshot, error) {
	if !la.HideInstalled {
		return snap, nil
	}

	root, err := workspaceRoot(m, la.Workspace, cmd.Flags().Changed("workspace"))
	if err != nil {
		return nil, err
	}

	st, err := m.Store().Load(root)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already descriptive.
	}

	return snap.Without(st.Names()...), nil
}

// apply narrows rules by the category, tag and filter flags.
func (la *ListArgs) apply(rules []catalog.Rule) ([]catalog.Rule, error) {
	out := make([]catalog.Rule, 0, len(rules))

	for _, r := range rules {
		if la.Category != "" && string(r.Category) != la.Category {
			continue
		}

		if la.Tag != "" && !r.HasTag(la.Tag) {
			continue
		}

		out = append(out, r)
	}

	if la.Filter == "" {
		return out, nil
	}

	f, err := expr.NewRuleFilter(la.Filter)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}

	out, err = f.Apply(out)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}

	return out, nil
}

const (
	maxTitleWidth   = 60
	descriptionWrap = 80
)

func printRules(cmd *cobra.Command, rules []catalog.Rule) {
	if len(rules) == 0 {
		mustN(fmt.Fprintln(cmd.ErrOrStderr(), "no matching rules"))

		return
	}

	t := newTable("NAME", "VERSION", "CATEGORY", "TITLE")
	for _, r := range rules {
		t.Row(r.Name, r.Version, string(r.Category), ansi.Truncate(r.Title, maxTitleWidth, "…"))
	}

	mustN(fmt.Fprintln(cmd.OutOrStdout(), t.Render()))
}

func NewListCmd(ra *RootArgs) *cobra.Command {
	args := &ListArgs{RootArgs: ra}

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List rules in the catalog",
		GroupID: groupCatalog,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := ra.NewManager()
			if err != nil {
				return err
			}

			snap, err := m.Catalog()
			if err != nil {
				return err //nolint:wrapcheck // Already descriptive.
			}

			snap, err = args.visible(cmd, m, snap)
			if err != nil {
				return err
			}

			rules, err := args.apply(snap.Rules())
			if err != nil {
				return err
			}

			printRules(cmd, rules)

			return nil
		},
	}

	args.AddFlags(cmd)

	return cmd
}

func NewSearchCmd(ra *RootArgs) *cobra.Command {
	args := &ListArgs{RootArgs: ra}

	cmd := &cobra.Command{
		Use:     "search <query>",
		Short:   "Fuzzy search rule names, titles and tags",
		GroupID: groupCatalog,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, query []string) error {
			m, err := ra.NewManager()
			if err != nil {
				return err
			}

			snap, err := m.Catalog()
			if err != nil {
				return err //nolint:wrapcheck // Already descriptive.
			}

			snap, err = args.visible(cmd, m, snap)
			if err != nil {
				return err
			}

			rules, err := args.apply(snap.Search(strings.Join(query, " ")))
			if err != nil {
				return err
			}

			printRules(cmd, rules)

			return nil
		},
	}

	args.AddFlags(cmd)

	return cmd
}

type ShowArgs struct {
	*RootArgs

	Copy bool
	Raw  bool
}

func NewShowCmd(ra *RootArgs) *cobra.Command {
	args := &ShowArgs{RootArgs: ra}

	cmd := &cobra.Command{
		Use:               "show <rule>",
		Short:             "Show a rule's metadata and content",
		GroupID:           groupCatalog,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeRuleNames(ra),
		RunE: func(cmd *cobra.Command, names []string) error {
			m, err := ra.NewManager()
			if err != nil {
				return err
			}

			snap, err := m.Catalog()
			if err != nil {
				return err //nolint:wrapcheck // Already descriptive.
			}

			r, err := snap.Lookup(names[0])
			if err != nil {
				return err //nolint:wrapcheck // Already descriptive.
			}

			data, err := m.Payload(cmd.Context(), snap, r.Name)
			if err != nil {
				return err //nolint:wrapcheck // Already descriptive.
			}

			if args.Copy {
				err := clipboard.WriteAll(string(data))
				if err != nil {
					return fmt.Errorf("copy to clipboard: %w", err)
				}
			}

			w := cmd.OutOrStdout()

			if args.Raw || !isTerminal(w) {
				mustN(w.Write(data))

				return nil
			}

			printRuleHeader(cmd, snap, &r)

			out, err := render.New().Render(string(data))
			if err != nil {
				return fmt.Errorf("render %s: %w", r.Name, err)
			}

			mustN(fmt.Fprint(w, out))

			return nil
		},
	}

	cmd.Flags().BoolVar(&args.Copy, "copy", false, "Copy the rule content to the clipboard")
	cmd.Flags().BoolVar(&args.Raw, "raw", false, "Print only the rule content, without highlighting")

	return cmd
}

func printRuleHeader(cmd *cobra.Command, snap *catalog.Snapshot, r *catalog.Rule) {
	w := cmd.OutOrStdout()

	mustN(fmt.Fprintf(w, "%s %s\n", headerStyle.Render(r.Name), subtleStyle.Render(r.Version)))

	if r.Title != "" {
		mustN(fmt.Fprintln(w, r.Title))
	}

	if r.Description != "" {
		mustN(fmt.Fprintln(w, subtleStyle.Render(wordwrap.String(r.Description, descriptionWrap))))
	}

	for _, f := range []struct {
		label  string
		values []string
	}{
		{"category", []string{string(r.Category)}},
		{"tags", r.Tags},
		{"depends on", r.Dependencies},
		{"required by", snap.Dependents(r.Name)},
		{"conflicts with", r.Conflicts},
	} {
		if len(f.values) == 0 || f.values[0] == "" {
			continue
		}

		mustN(fmt.Fprintf(w, "  %-15s %s\n", f.label+":", strings.Join(f.values, ", ")))
	}

	mustN(fmt.Fprintln(w))
}

func NewSyncCmd(ra *RootArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Merge the remote catalog into the local one",
		Long: `Merge the remote catalog into the local one.

The remote is fetched once. A rule is replaced when the remote copy is
strictly newer; local rules missing from the remote are kept unless the
remote requests a full replace.`,
		GroupID: groupCatalog,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := ra.NewManager()
			if err != nil {
				return err
			}

			res, err := m.Sync(cmd.Context(), manager.WithDryRun(ra.DryRun))
			if err != nil {
				return err //nolint:wrapcheck // Already descriptive.
			}

			printSync(cmd, res, m.CatalogPath())

			return nil
		},
	}
}

func printSync(cmd *cobra.Command, res *manager.SyncResult, path string) {
	w := cmd.OutOrStdout()
	sum := res.Summary

	if !sum.Changed() {
		mustN(fmt.Fprintf(w, "catalog is up to date with %s\n", res.Source))
	}

	if sum.FullReplace {
		warnf(w, "remote requested a full replace")
	}

	for _, name := range sum.Added {
		mustN(fmt.Fprintln(w, addStyle.Render("  + "+name)))
	}

	for _, u := range sum.Updated {
		mustN(fmt.Fprintln(w, addStyle.Render(fmt.Sprintf("  ~ %s %s -> %s", u.Name, u.From, u.To))))
	}

	for _, name := range sum.Removed {
		mustN(fmt.Fprintln(w, removeStyle.Render("  - "+name)))
	}

	for _, root := range slices.Sorted(maps.Keys(res.Affected)) {
		mustN(fmt.Fprintf(w, "%s: %s can be updated with \"rulebook update -w %s\"\n",
			root, strings.Join(res.Affected[root], ", "), root))
	}

	for _, ref := range res.Catalog.UnknownReferences() {
		warnf(w, "%s", ref)
	}

	for _, root := range slices.Sorted(maps.Keys(res.Orphaned)) {
		warnf(w, "%s: %s no longer in the catalog", root, strings.Join(res.Orphaned[root], ", "))
	}

	if res.Saved {
		mustN(fmt.Fprintf(w, "wrote %s (%d rules)\n", path, res.Catalog.Len()))
	}
}

type IndexArgs struct {
	*RootArgs

	Output string
}

func NewCatalogCmd(ra *RootArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "catalog",
		Short:   "Build and check catalog files",
		GroupID: groupCatalog,
	}

	cmd.AddCommand(newCatalogIndexCmd(ra), newCatalogValidateCmd(ra))

	return cmd
}

func newCatalogIndexCmd(ra *RootArgs) *cobra.Command {
	args := &IndexArgs{RootArgs: ra}

	cmd := &cobra.Command{
		Use:   "index [rules-dir]",
		Short: "Build or refresh the catalog from a directory of rule files",
		Long: `Build or refresh the catalog from a directory of rule files.

Each "<name>.md" file becomes a rule. Existing metadata is kept; checksums,
examples and updated_at only change when a file's content changed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, dirs []string) error {
			m, err := ra.NewManager()
			if err != nil {
				return err
			}

			dir := m.RulesDir()
			if len(dirs) > 0 {
				dir = dirs[0]
			}

			out := args.Output
			if out == "" {
				out = m.CatalogPath()
			}

			base, err := catalog.Load(out)
			if errors.Is(err, fs.ErrNotExist) {
				base = catalog.Empty()
			} else if err != nil {
				return err //nolint:wrapcheck // Already descriptive.
			}

			res, err := catalog.Index(dir, base, time.Now())
			if err != nil {
				return fmt.Errorf("index %s: %w", dir, err)
			}

			for _, name := range res.Added {
				mustN(fmt.Fprintln(cmd.OutOrStdout(), addStyle.Render("  + "+name)))
			}

			for _, name := range res.Changed {
				mustN(fmt.Fprintln(cmd.OutOrStdout(), addStyle.Render("  ~ "+name)))
			}

			for _, ref := range res.Snapshot.UnknownReferences() {
				warnf(cmd.ErrOrStderr(), "%s", ref)
			}

			if ra.DryRun {
				return nil
			}

			err = catalog.Save(out, res.Snapshot)
			if err != nil {
				return err //nolint:wrapcheck // Already descriptive.
			}

			mustN(fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d rules)\n", out, res.Snapshot.Len()))

			return nil
		},
	}

	cmd.Flags().StringVarP(&args.Output, "output", "o", "", "Catalog file to write, defaults to the local catalog")
	must(cmd.MarkFlagFilename("output", "json"))

	return cmd
}

func newCatalogValidateCmd(ra *RootArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [catalog]",
		Short: "Validate a catalog file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, paths []string) error {
			var path string

			if len(paths) > 0 {
				path = paths[0]
			} else {
				m, err := ra.NewManager()
				if err != nil {
					return err
				}

				path = m.CatalogPath()
			}

			snap, err := catalog.Load(path)
			if err != nil {
				return err //nolint:wrapcheck // Already descriptive.
			}

			if catalog.NewerMajor(snap.SchemaVersion(), catalog.SupportedSchemaVersion) {
				warnf(cmd.ErrOrStderr(), "schema version %s is newer than the supported %s",
					snap.SchemaVersion(), catalog.SupportedSchemaVersion)
			}

			for _, ref := range snap.UnknownReferences() {
				warnf(cmd.ErrOrStderr(), "%s", ref)
			}

			mustN(fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rules, schema %s\n", path, snap.Len(), snap.SchemaVersion()))

			return nil
		},
	}
}
