// Package workspace tracks which rules are installed into a workspace.
//
// A [State] holds at most one [Record] per rule for a single workspace root.
// A [Store] persists states as YAML files inside each workspace.
package workspace

import (
	"maps"
	"slices"
	"time"
)

// Record describes a rule materialized in a workspace.
type Record struct {
	InstalledAt time.Time
	Name        string
	Version     string
	// Path of the payload, relative to the workspace root.
	Path     string
	Checksum string
}

// Equal reports whether two records are identical.
func (r Record) Equal(o Record) bool {
	return r.Name == o.Name &&
		r.Version == o.Version &&
		r.Path == o.Path &&
		r.Checksum == o.Checksum &&
		r.InstalledAt.Equal(o.InstalledAt)
}

// State is the set of rules installed in one workspace.
//
// State is not safe for concurrent use. Callers that operate on the same
// workspace from several goroutines must serialize access.
type State struct {
	records map[string]Record
	root    string
}

// NewState creates an empty [State] for the workspace at root.
func NewState(root string) *State {
	return &State{
		root:    root,
		records: map[string]Record{},
	}
}

// Root returns the workspace root.
func (s *State) Root() string {
	return s.root
}

// Len returns the number of installed rules.
func (s *State) Len() int {
	return len(s.records)
}

// Get returns the record for name.
func (s *State) Get(name string) (Record, bool) {
	r, ok := s.records[name]

	return r, ok
}

// Has reports whether name is installed.
func (s *State) Has(name string) bool {
	_, ok := s.records[name]

	return ok
}

// HasVersion reports whether name is installed at version.
func (s *State) HasVersion(name, version string) bool {
	r, ok := s.records[name]

	return ok && r.Version == version
}

// Put records r, replacing any existing record for the same rule.
func (s *State) Put(r Record) {
	s.records[r.Name] = r
}

// Delete removes the record for name. It reports whether a record existed.
func (s *State) Delete(name string) bool {
	_, ok := s.records[name]
	delete(s.records, name)

	return ok
}

// Names returns the installed rule names in sorted order.
func (s *State) Names() []string {
	return slices.Sorted(maps.Keys(s.records))
}

// Records returns all records sorted by name.
func (s *State) Records() []Record {
	out := make([]Record, 0, len(s.records))
	for _, name := range s.Names() {
		out = append(out, s.records[name])
	}

	return out
}

// Clone returns a copy of s.
func (s *State) Clone() *State {
	return &State{
		root:    s.root,
		records: maps.Clone(s.records),
	}
}

// Equal reports whether two states have the same root and records.
func (s *State) Equal(o *State) bool {
	return s.root == o.root && maps.EqualFunc(s.records, o.records, Record.Equal)
}
