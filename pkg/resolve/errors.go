package resolve

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDependencyMissing is wrapped by [*DependencyMissingError].
	ErrDependencyMissing = errors.New("dependency missing")
	// ErrConflict is wrapped by [*ConflictError].
	ErrConflict = errors.New("conflict detected")
	// ErrDependentsInstalled is wrapped by [*DependentsInstalledError].
	ErrDependentsInstalled = errors.New("dependents still installed")
	// ErrNotInstalled is returned when uninstalling or updating a rule that
	// is not installed in the workspace.
	ErrNotInstalled = errors.New("rule not installed")
	// ErrUnknownMode is returned for an unsupported [Mode].
	ErrUnknownMode = errors.New("unknown mode")
)

// DependencyMissingError lists identifiers that were requested or required
// but are absent from the catalog.
type DependencyMissingError struct {
	// RequiredBy maps each missing identifier to the rules that need it. An
	// identifier requested directly maps to an empty slice.
	RequiredBy map[string][]string
	Names      []string
}

func (e *DependencyMissingError) Error() string {
	parts := make([]string, 0, len(e.Names))
	for _, name := range e.Names {
		if by := e.RequiredBy[name]; len(by) > 0 {
			parts = append(parts, fmt.Sprintf("%s (required by %s)", name, strings.Join(by, ", ")))
		} else {
			parts = append(parts, name)
		}
	}

	return fmt.Sprintf("%v: %s", ErrDependencyMissing, strings.Join(parts, "; "))
}

func (e *DependencyMissingError) Unwrap() error {
	return ErrDependencyMissing
}

// ConflictError lists every conflicting pair found in the resulting
// installed set.
type ConflictError struct {
	Pairs []Conflict
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Pairs))
	for _, p := range e.Pairs {
		parts = append(parts, p.String())
	}

	return fmt.Sprintf("%v: %s", ErrConflict, strings.Join(parts, ", "))
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// DependentsInstalledError is returned when removing rules would leave
// installed rules with unmet dependencies.
type DependentsInstalledError struct {
	Rules      []string
	Dependents []string
}

func (e *DependentsInstalledError) Error() string {
	return fmt.Sprintf("%v: %s depended on by %s",
		ErrDependentsInstalled,
		strings.Join(e.Rules, ", "),
		strings.Join(e.Dependents, ", "),
	)
}

func (e *DependentsInstalledError) Unwrap() error {
	return ErrDependentsInstalled
}
