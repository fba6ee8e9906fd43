package resolve

import (
	"fmt"
	"strings"
)

// Mode selects how a request is resolved.
type Mode string

const (
	ModeInstall   Mode = "install"
	ModeUninstall Mode = "uninstall"
	ModeUpdate    Mode = "update"
)

// Modes lists every supported [Mode].
var Modes = []Mode{ModeInstall, ModeUninstall, ModeUpdate}

// Step is a single add or remove operation in a [Plan].
type Step struct {
	Name string
	// Version is the catalog version to install for add steps, and the
	// installed version for remove steps.
	Version string
}

func (s Step) String() string {
	if s.Version == "" {
		return s.Name
	}

	return s.Name + "@" + s.Version
}

// Conflict is an unordered pair of mutually exclusive rules, stored with
// A sorted before B.
type Conflict struct {
	A string
	B string
}

func newConflict(a, b string) Conflict {
	if b < a {
		a, b = b, a
	}

	return Conflict{A: a, B: b}
}

func (c Conflict) String() string {
	return c.A + " <-> " + c.B
}

// Plan is the set of operations needed to satisfy a request. Plans are
// transient and are consumed by an installer or printed for review.
type Plan struct {
	Mode    Mode
	Request []string
	// Add is ordered so that dependencies precede their dependents.
	Add []Step
	// Remove is ordered so that dependents precede their dependencies.
	Remove    []Step
	Conflicts []Conflict
	Missing   []string
}

// Empty reports whether the plan has nothing to apply.
func (p *Plan) Empty() bool {
	return len(p.Add) == 0 && len(p.Remove) == 0
}

// AddNames returns the names of the add steps, in order.
func (p *Plan) AddNames() []string {
	return stepNames(p.Add)
}

// RemoveNames returns the names of the remove steps, in order.
func (p *Plan) RemoveNames() []string {
	return stepNames(p.Remove)
}

// String renders the plan for display.
func (p *Plan) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s %s\n", p.Mode, strings.Join(p.Request, ", "))

	if p.Empty() {
		sb.WriteString("  nothing to do\n")
	}

	for _, s := range p.Add {
		fmt.Fprintf(&sb, "  + %s\n", s)
	}

	for _, s := range p.Remove {
		fmt.Fprintf(&sb, "  - %s\n", s)
	}

	for _, c := range p.Conflicts {
		fmt.Fprintf(&sb, "  ! conflict %s\n", c)
	}

	for _, m := range p.Missing {
		fmt.Fprintf(&sb, "  ? missing %s\n", m)
	}

	return sb.String()
}

func stepNames(steps []Step) []string {
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Name)
	}

	return names
}
