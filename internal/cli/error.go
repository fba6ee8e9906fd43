package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"

	"github.com/macropower/rulebook/pkg/catalogsync"
	"github.com/macropower/rulebook/pkg/install"
	"github.com/macropower/rulebook/pkg/manager"
	"github.com/macropower/rulebook/pkg/resolve"
)

func ErrorHandler(w io.Writer, styles fang.Styles, err error) {
	mustN(fmt.Fprintln(w, styles.ErrorHeader.String()))
	mustN(fmt.Fprintln(w, lipgloss.NewStyle().MarginLeft(2).Render(err.Error())))
	mustN(fmt.Fprintln(w))

	if hint := errorHint(err); hint != "" {
		mustN(fmt.Fprintln(w, lipgloss.NewStyle().MarginLeft(2).Faint(true).Render(hint)))
		mustN(fmt.Fprintln(w))
	}

	if isUsageError(err) {
		mustN(fmt.Fprintln(w, lipgloss.JoinHorizontal(
			lipgloss.Left,
			styles.ErrorText.UnsetWidth().Render("Try"),
			styles.Program.Flag.Render("--help"),
			styles.ErrorText.UnsetWidth().UnsetMargins().UnsetTransform().PaddingLeft(1).Render("for usage."),
		)))
		mustN(fmt.Fprintln(w))
	}
}

// errorHint suggests a next step for errors users can act on.
func errorHint(err error) string {
	var (
		depErr     *resolve.DependentsInstalledError
		partialErr *install.PartialApplyError
	)

	switch {
	case errors.As(err, &depErr):
		return fmt.Sprintf("Remove the dependents too with --also-remove %s", strings.Join(depErr.Dependents, ","))
	case errors.As(err, &partialErr):
		return "Completed steps were kept. Run the same command again to resume."
	case errors.Is(err, manager.ErrNoCatalog):
		return `Run "rulebook sync" or "rulebook catalog index" to create it.`
	case errors.Is(err, manager.ErrNoRemote):
		return "Set catalog.remoteURL in the configuration, or pass --catalog-url."
	case errors.Is(err, catalogsync.ErrRemoteUnavailable):
		return "The local catalog was left unchanged."
	case errors.Is(err, catalogsync.ErrSchemaVersionMismatch):
		return "Upgrade rulebook to read this catalog."
	}

	return ""
}

// XXX: this is a hack to detect usage errors.
// See: https://github.com/spf13/cobra/pull/2266
func isUsageError(err error) bool {
	s := err.Error()
	for _, prefix := range []string{
		"flag needs an argument:",
		"unknown flag:",
		"unknown shorthand flag:",
		"unknown command",
		"invalid argument",
		"accepts ",
		"requires at least",
	} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}

	return false
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func mustN(_ int, err error) {
	must(err)
}
