package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/macropower/rulebook/pkg/install"
	"github.com/macropower/rulebook/pkg/manager"
	"github.com/macropower/rulebook/pkg/resolve"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	addStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	removeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	subtleStyle = lipgloss.NewStyle().Faint(true)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.PaddingRight(2)
			}

			return lipgloss.NewStyle().PaddingRight(2)
		})
}

func printPlan(w io.Writer, plan *resolve.Plan) {
	mustN(fmt.Fprintf(w, "%s %s\n", headerStyle.Render(string(plan.Mode)), strings.Join(plan.Request, ", ")))

	if plan.Empty() {
		mustN(fmt.Fprintln(w, subtleStyle.Render("  nothing to do")))
	}

	for _, s := range plan.Add {
		mustN(fmt.Fprintln(w, addStyle.Render("  + "+s.String())))
	}

	for _, s := range plan.Remove {
		mustN(fmt.Fprintln(w, removeStyle.Render("  - "+s.String())))
	}
}

func printReport(w io.Writer, root string, report *install.Report) {
	if !report.Changed() {
		mustN(fmt.Fprintf(w, "%s is up to date\n", root))

		return
	}

	for _, s := range report.Installed {
		mustN(fmt.Fprintf(w, "%s %s\n", addStyle.Render("installed"), s))
	}

	for _, s := range report.Removed {
		mustN(fmt.Fprintf(w, "%s %s\n", removeStyle.Render("removed"), s))
	}
}

func printResult(w io.Writer, res *manager.Result) {
	if res == nil || res.Plan == nil {
		return
	}

	switch {
	case res.Report != nil:
		printReport(w, res.Root, res.Report)
	case res.DryRun, res.Plan.Empty():
		printPlan(w, res.Plan)
	}
}

func warnf(w io.Writer, format string, args ...any) {
	mustN(fmt.Fprintln(w, warnStyle.Render("warning: "+fmt.Sprintf(format, args...))))
}
