// Package resolve computes the operations needed to install, uninstall or
// update rules in a workspace.
//
// Resolution is pure: it reads a [catalog.Snapshot] and a [workspace.State]
// and returns a [Plan] without touching the filesystem.
package resolve

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/workspace"
)

// Option configures a resolution.
type Option func(*options)

type options struct {
	alsoRemove map[string]bool
}

// WithAlsoRemove allows an uninstall to remove the named rules together with
// the requested ones. Every installed dependent of a requested rule must be
// listed, or resolution fails with a [*DependentsInstalledError].
func WithAlsoRemove(names ...string) Option {
	return func(o *options) {
		for _, n := range names {
			o.alsoRemove[n] = true
		}
	}
}

// Resolve computes a [Plan] for request in the given mode.
//
// When resolution fails, the returned plan is still populated with what was
// discovered (for example [Plan.Missing] or [Plan.Conflicts]) alongside the
// error.
func Resolve(request []string, snap *catalog.Snapshot, st *workspace.State, mode Mode, opts ...Option) (*Plan, error) {
	o := &options{alsoRemove: map[string]bool{}}
	for _, opt := range opts {
		opt(o)
	}

	r := &resolver{snap: snap, state: st}
	plan := &Plan{Mode: mode, Request: dedupe(request)}

	switch mode {
	case ModeInstall:
		return plan, r.install(plan)
	case ModeUninstall:
		return plan, r.uninstall(plan, o.alsoRemove)
	case ModeUpdate:
		return plan, r.update(plan)
	}

	return plan, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

// Install is shorthand for [Resolve] in [ModeInstall].
func Install(request []string, snap *catalog.Snapshot, st *workspace.State) (*Plan, error) {
	return Resolve(request, snap, st, ModeInstall)
}

// Uninstall is shorthand for [Resolve] in [ModeUninstall].
func Uninstall(request []string, snap *catalog.Snapshot, st *workspace.State, opts ...Option) (*Plan, error) {
	return Resolve(request, snap, st, ModeUninstall, opts...)
}

// Update is shorthand for [Resolve] in [ModeUpdate].
func Update(request []string, snap *catalog.Snapshot, st *workspace.State) (*Plan, error) {
	return Resolve(request, snap, st, ModeUpdate)
}

// UpdateAll computes an update plan for every installed rule whose catalog
// version differs from the installed version. Installed rules that are no
// longer in the catalog are left alone.
func UpdateAll(snap *catalog.Snapshot, st *workspace.State) (*Plan, error) {
	return Update(Outdated(snap, st), snap, st)
}

// Outdated returns the sorted names of installed rules whose catalog version
// differs from the installed one.
func Outdated(snap *catalog.Snapshot, st *workspace.State) []string {
	var out []string

	for _, rec := range st.Records() {
		r, ok := snap.Get(rec.Name)
		if ok && r.Version != rec.Version {
			out = append(out, rec.Name)
		}
	}

	return out
}

type resolver struct {
	snap  *catalog.Snapshot
	state *workspace.State
}

// walker performs the dependency-first traversal shared by install and
// update.
type walker struct {
	*resolver

	visited   map[string]bool
	requested map[string]bool
	missing   map[string][]string
	plan      *Plan
	// keep reports whether an installed rule can stay as it is.
	keep func(name string, r *catalog.Rule, requested bool) bool
}

func (w *walker) visit(name, requiredBy string) {
	if w.visited[name] {
		return
	}

	w.visited[name] = true

	r, ok := w.snap.Get(name)
	if !ok {
		if _, seen := w.missing[name]; !seen {
			w.plan.Missing = append(w.plan.Missing, name)
			w.missing[name] = nil
		}

		if requiredBy != "" {
			w.missing[name] = append(w.missing[name], requiredBy)
		}

		return
	}

	for _, dep := range r.Dependencies {
		if w.visited[dep] {
			if _, isMissing := w.missing[dep]; isMissing {
				w.missing[dep] = append(w.missing[dep], name)
			}

			continue
		}

		w.visit(dep, name)
	}

	if w.keep(name, &r, w.requested[name]) {
		return
	}

	w.plan.Add = append(w.plan.Add, Step{Name: name, Version: r.Version})
}

func (w *walker) err() error {
	if len(w.plan.Missing) == 0 {
		return nil
	}

	return &DependencyMissingError{Names: slices.Clone(w.plan.Missing), RequiredBy: w.missing}
}

func (r *resolver) newWalker(plan *Plan, keep func(string, *catalog.Rule, bool) bool) *walker {
	requested := map[string]bool{}
	for _, name := range plan.Request {
		requested[name] = true
	}

	return &walker{
		resolver:  r,
		visited:   map[string]bool{},
		requested: requested,
		missing:   map[string][]string{},
		plan:      plan,
		keep:      keep,
	}
}

func (r *resolver) install(plan *Plan) error {
	w := r.newWalker(plan, func(name string, rule *catalog.Rule, _ bool) bool {
		return r.state.HasVersion(name, rule.Version)
	})

	for _, name := range plan.Request {
		w.visit(name, "")
	}

	err := w.err()
	if err != nil {
		return err
	}

	return r.checkConflicts(plan)
}

func (r *resolver) update(plan *Plan) error {
	for _, name := range plan.Request {
		if !r.state.Has(name) {
			return fmt.Errorf("%w: %s", ErrNotInstalled, name)
		}
	}

	// Requested rules are refreshed when their version changed. Dependencies
	// are only added when they are not installed at all.
	w := r.newWalker(plan, func(name string, rule *catalog.Rule, requested bool) bool {
		if requested {
			return r.state.HasVersion(name, rule.Version)
		}

		return r.state.Has(name)
	})

	for _, name := range plan.Request {
		w.visit(name, "")
	}

	err := w.err()
	if err != nil {
		return err
	}

	return r.checkConflicts(plan)
}

// checkConflicts checks every conflict edge in both directions over the
// installed set plus the add set.
func (r *resolver) checkConflicts(plan *Plan) error {
	set := map[string]bool{}
	for _, name := range r.state.Names() {
		set[name] = true
	}

	for _, s := range plan.Add {
		set[s.Name] = true
	}

	pairs := map[Conflict]bool{}

	for name := range set {
		rule, ok := r.snap.Get(name)
		if !ok {
			continue
		}

		for _, other := range rule.Conflicts {
			if other != name && set[other] {
				pairs[newConflict(name, other)] = true
			}
		}
	}

	if len(pairs) == 0 {
		return nil
	}

	plan.Conflicts = slices.SortedFunc(maps.Keys(pairs), func(a, b Conflict) int {
		if a.A != b.A {
			return cmp.Compare(a.A, b.A)
		}

		return cmp.Compare(a.B, b.B)
	})

	return &ConflictError{Pairs: slices.Clone(plan.Conflicts)}
}

func (r *resolver) uninstall(plan *Plan, alsoRemove map[string]bool) error {
	for _, name := range plan.Request {
		if !r.state.Has(name) {
			return fmt.Errorf("%w: %s", ErrNotInstalled, name)
		}
	}

	remove := map[string]bool{}
	for _, name := range plan.Request {
		remove[name] = true
	}

	for name := range alsoRemove {
		if r.state.Has(name) {
			remove[name] = true
		}
	}

	// Reverse closure: installed rules that transitively depend on a rule
	// being removed.
	dependents := map[string]bool{}
	queue := slices.Sorted(maps.Keys(remove))

	for len(queue) > 0 {
		target := queue[0]
		queue = queue[1:]

		for _, name := range r.state.Names() {
			if dependents[name] || name == target {
				continue
			}

			if r.dependsOn(name, target) {
				dependents[name] = true
				queue = append(queue, name)
			}
		}
	}

	var blocking []string

	for name := range dependents {
		if !remove[name] {
			blocking = append(blocking, name)
		}
	}

	if len(blocking) > 0 {
		slices.Sort(blocking)

		return &DependentsInstalledError{Rules: slices.Clone(plan.Request), Dependents: blocking}
	}

	// Post-order over the dependents graph puts dependents first.
	visited := map[string]bool{}

	var visit func(name string)

	visit = func(name string) {
		if visited[name] {
			return
		}

		visited[name] = true

		for _, other := range slices.Sorted(maps.Keys(remove)) {
			if other != name && r.dependsOn(other, name) {
				visit(other)
			}
		}

		rec, _ := r.state.Get(name)
		plan.Remove = append(plan.Remove, Step{Name: name, Version: rec.Version})
	}

	for _, name := range plan.Request {
		visit(name)
	}

	for _, name := range slices.Sorted(maps.Keys(remove)) {
		visit(name)
	}

	return nil
}

// dependsOn reports whether installed rule name declares a dependency on
// target in the catalog.
func (r *resolver) dependsOn(name, target string) bool {
	rule, ok := r.snap.Get(name)

	return ok && rule.DependsOn(target)
}

func dedupe(names []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(names))

	for _, n := range names {
		if seen[n] {
			continue
		}

		seen[n] = true
		out = append(out, n)
	}

	return out
}
