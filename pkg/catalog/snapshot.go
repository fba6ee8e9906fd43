package catalog

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Snapshot is an immutable view of the catalog. Accessors return copies;
// changes are made by deriving a new Snapshot with [Snapshot.With],
// [Snapshot.Without] or [Snapshot.WithMeta].
//
// A Snapshot is safe for concurrent use.
type Snapshot struct {
	rules         map[string]*Rule
	lastUpdated   Timestamp
	schemaVersion string
	fullReplace   bool
}

// SnapshotOpt configures [New].
type SnapshotOpt func(*Snapshot)

// WithSchemaVersion sets the catalog schema version.
func WithSchemaVersion(v string) SnapshotOpt {
	return func(s *Snapshot) {
		s.schemaVersion = v
	}
}

// WithLastUpdated sets the catalog's last-updated time.
func WithLastUpdated(t time.Time) SnapshotOpt {
	return func(s *Snapshot) {
		s.lastUpdated = NewTimestamp(t)
	}
}

// WithFullReplace marks the catalog as replacing older major versions
// wholesale during synchronization.
func WithFullReplace(v bool) SnapshotOpt {
	return func(s *Snapshot) {
		s.fullReplace = v
	}
}

// New creates a [Snapshot] from rules keyed by name. Every rule is
// validated, and every rule's name must equal its key.
func New(rules map[string]Rule, opts ...SnapshotOpt) (*Snapshot, error) {
	s := &Snapshot{
		rules:         make(map[string]*Rule, len(rules)),
		schemaVersion: SupportedSchemaVersion,
		lastUpdated:   NewTimestamp(time.Time{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if !ValidVersion(s.schemaVersion) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchema, s.schemaVersion)
	}

	for key, r := range rules {
		if r.Name != key {
			return nil, fmt.Errorf("%w: key %q, name %q", ErrNameMismatch, key, r.Name)
		}

		c := r.Clone()
		c.normalize(key)

		err := ValidateRule(&c)
		if err != nil {
			return nil, err
		}

		s.rules[key] = &c
	}

	return s, nil
}

// MustNew is like [New] but panics on error.
func MustNew(rules map[string]Rule, opts ...SnapshotOpt) *Snapshot {
	s, err := New(rules, opts...)
	if err != nil {
		panic(err)
	}

	return s
}

// Empty returns a snapshot without rules.
func Empty() *Snapshot {
	return MustNew(nil)
}

// SchemaVersion returns the catalog schema version, e.g. "2.0.0".
func (s *Snapshot) SchemaVersion() string {
	return s.schemaVersion
}

// LastUpdated returns when the catalog was last updated.
func (s *Snapshot) LastUpdated() Timestamp {
	return s.lastUpdated
}

// FullReplace reports whether this catalog replaces older major versions
// wholesale during synchronization.
func (s *Snapshot) FullReplace() bool {
	return s.fullReplace
}

// Len returns the number of rules.
func (s *Snapshot) Len() int {
	return len(s.rules)
}

// Has reports whether the catalog contains name.
func (s *Snapshot) Has(name string) bool {
	_, ok := s.rules[name]

	return ok
}

// Get returns a copy of the rule with the given name.
func (s *Snapshot) Get(name string) (Rule, bool) {
	r, ok := s.rules[name]
	if !ok {
		return Rule{}, false
	}

	return r.Clone(), true
}

// Lookup is like [Snapshot.Get] but returns a [*NotFoundError] for unknown names.
func (s *Snapshot) Lookup(name string) (Rule, error) {
	r, ok := s.Get(name)
	if !ok {
		return Rule{}, &NotFoundError{Name: name}
	}

	return r, nil
}

// Names returns all rule names in sorted order.
func (s *Snapshot) Names() []string {
	return slices.Sorted(maps.Keys(s.rules))
}

// Rules returns copies of all rules, sorted by name.
func (s *Snapshot) Rules() []Rule {
	out := make([]Rule, 0, len(s.rules))
	for _, name := range s.Names() {
		out = append(out, s.rules[name].Clone())
	}

	return out
}

// RuleMap returns copies of all rules keyed by name.
func (s *Snapshot) RuleMap() map[string]Rule {
	out := make(map[string]Rule, len(s.rules))
	for k, r := range s.rules {
		out[k] = r.Clone()
	}

	return out
}

// With returns a new snapshot with the given rules added or replaced.
func (s *Snapshot) With(rules ...Rule) (*Snapshot, error) {
	m := s.RuleMap()
	for _, r := range rules {
		m[r.Name] = r
	}

	return New(m, s.opts()...)
}

// Without returns a new snapshot with the named rules removed.
func (s *Snapshot) Without(names ...string) *Snapshot {
	ns := &Snapshot{
		rules:         make(map[string]*Rule, len(s.rules)),
		schemaVersion: s.schemaVersion,
		lastUpdated:   s.lastUpdated,
		fullReplace:   s.fullReplace,
	}

	for k, r := range s.rules {
		if slices.Contains(names, k) {
			continue
		}

		ns.rules[k] = r
	}

	return ns
}

// WithMeta returns a new snapshot with the same rules and different
// catalog metadata.
func (s *Snapshot) WithMeta(opts ...SnapshotOpt) *Snapshot {
	ns := &Snapshot{
		rules:         s.rules,
		schemaVersion: s.schemaVersion,
		lastUpdated:   s.lastUpdated,
		fullReplace:   s.fullReplace,
	}

	for _, opt := range opts {
		opt(ns)
	}

	return ns
}

func (s *Snapshot) opts() []SnapshotOpt {
	return []SnapshotOpt{
		WithSchemaVersion(s.schemaVersion),
		WithLastUpdated(s.lastUpdated.Time),
		WithFullReplace(s.fullReplace),
	}
}

// Equal reports whether two snapshots hold the same metadata and rules.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == o {
		return true
	}

	if s == nil || o == nil {
		return false
	}

	return s.schemaVersion == o.schemaVersion &&
		s.fullReplace == o.fullReplace &&
		s.lastUpdated.Equal(o.lastUpdated) &&
		maps.EqualFunc(s.rules, o.rules, func(a, b *Rule) bool {
			return a.Equal(b)
		})
}

// Dependents returns the names of rules that directly depend on name,
// sorted.
func (s *Snapshot) Dependents(name string) []string {
	var out []string

	for k, r := range s.rules {
		if r.DependsOn(name) {
			out = append(out, k)
		}
	}

	slices.Sort(out)

	return out
}

// Categories returns the derived category index: category to sorted rule
// names. Rules without a category are listed under [CategoryGeneral].
func (s *Snapshot) Categories() map[Category][]string {
	out := map[Category][]string{}

	for _, name := range s.Names() {
		c := s.rules[name].Category
		if c == "" {
			c = CategoryGeneral
		}

		out[c] = append(out[c], name)
	}

	return out
}

// Tags returns the derived tag index: tag to sorted rule names.
func (s *Snapshot) Tags() map[string][]string {
	out := map[string][]string{}

	for _, name := range s.Names() {
		for _, tag := range s.rules[name].Tags {
			if !slices.Contains(out[tag], name) {
				out[tag] = append(out[tag], name)
			}
		}
	}

	return out
}

// ReferenceKind is the kind of relationship a [Reference] describes.
type ReferenceKind string

const (
	ReferenceDependency ReferenceKind = "dependency"
	ReferenceConflict   ReferenceKind = "conflict"
)

// Reference is a dependency or conflict edge from Rule to Target.
type Reference struct {
	Rule   string        `json:"rule"`
	Target string        `json:"target"`
	Kind   ReferenceKind `json:"kind"`
}

func (r Reference) String() string {
	return fmt.Sprintf("%s: %s %q is not in the catalog", r.Rule, r.Kind, r.Target)
}

// UnknownReferences returns every dependency and conflict that names a rule
// outside the catalog, ordered by rule name then declaration order.
func (s *Snapshot) UnknownReferences() []Reference {
	var out []Reference

	for _, name := range s.Names() {
		r := s.rules[name]

		for _, dep := range r.Dependencies {
			if !s.Has(dep) {
				out = append(out, Reference{Rule: name, Target: dep, Kind: ReferenceDependency})
			}
		}

		for _, c := range r.Conflicts {
			if !s.Has(c) {
				out = append(out, Reference{Rule: name, Target: c, Kind: ReferenceConflict})
			}
		}
	}

	return out
}
