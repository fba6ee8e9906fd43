package cli

import (
	"github.com/spf13/cobra"
)

type completionFunc func(*cobra.Command, []string, string) ([]cobra.Completion, cobra.ShellCompDirective)

// completeRuleNames completes catalog rule names, with titles as
// descriptions.
func completeRuleNames(ra *RootArgs) completionFunc {
	return func(*cobra.Command, []string, string) ([]cobra.Completion, cobra.ShellCompDirective) {
		m, err := ra.NewManager()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		snap, err := m.Catalog()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		completions := make([]cobra.Completion, 0, snap.Len())
		for _, r := range snap.Rules() {
			completions = append(completions, cobra.CompletionWithDesc(r.Name, r.Title))
		}

		return completions, cobra.ShellCompDirectiveNoFileComp
	}
}

// completeInstalledNames completes the rules installed in *workspace.
func completeInstalledNames(ra *RootArgs, workspace *string) completionFunc {
	return func(*cobra.Command, []string, string) ([]cobra.Completion, cobra.ShellCompDirective) {
		m, err := ra.NewManager()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		st, err := m.Store().Load(*workspace)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		completions := make([]cobra.Completion, 0, st.Len())
		for _, rec := range st.Records() {
			completions = append(completions, cobra.CompletionWithDesc(rec.Name, rec.Version))
		}

		return completions, cobra.ShellCompDirectiveNoFileComp
	}
}
