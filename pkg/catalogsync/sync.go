// Package catalogsync reconciles a local catalog snapshot with a remote one.
//
// [Synchronize] is pure. [Fetcher] retrieves the remote side over HTTP or
// from the filesystem.
package catalogsync

import (
	"slices"

	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/workspace"
)

// Update describes a rule replaced by its remote record.
type Update struct {
	Name string `json:"name"`
	From string `json:"from"`
	To   string `json:"to"`
}

// VersionChanged reports whether the update changes the rule version.
func (u Update) VersionChanged() bool {
	return u.From != u.To
}

// Summary describes the outcome of a [Synchronize] call. All lists are
// sorted by rule name.
type Summary struct {
	// Added lists rules only present remotely.
	Added []string `json:"added,omitempty"`
	// Updated lists rules where the remote record was strictly newer.
	Updated []Update `json:"updated,omitempty"`
	// Kept lists rules present on both sides where the local record differs
	// and was retained.
	Kept []string `json:"kept,omitempty"`
	// LocalOnly lists rules absent remotely that were retained.
	LocalOnly []string `json:"localOnly,omitempty"`
	// Removed lists local-only rules dropped by a full replace.
	Removed []string `json:"removed,omitempty"`
	// FullReplace is set when the remote requested a full replace.
	FullReplace bool `json:"fullReplace,omitempty"`
}

// Empty reports whether synchronization found nothing to report.
func (s Summary) Empty() bool {
	return len(s.Added) == 0 &&
		len(s.Updated) == 0 &&
		len(s.Kept) == 0 &&
		len(s.LocalOnly) == 0 &&
		len(s.Removed) == 0 &&
		!s.FullReplace
}

// Changed reports whether the merged catalog differs from the local one.
func (s Summary) Changed() bool {
	return len(s.Added) > 0 || len(s.Updated) > 0 || len(s.Removed) > 0
}

// Synchronize merges remote into local and returns the merged snapshot.
//
// Rules only present remotely are added. Rules only present locally are
// retained, unless the remote schema has a newer major version than local
// and sets full_replace, in which case they are dropped. When both sides
// differ, the remote record wins only if its updated_at is strictly newer.
//
// A remote schema with a major version newer than
// [catalog.SupportedSchemaVersion] fails with a [*SchemaVersionMismatchError]
// and local is returned unchanged.
func Synchronize(local, remote *catalog.Snapshot) (*catalog.Snapshot, Summary, error) {
	var sum Summary

	if catalog.NewerMajor(remote.SchemaVersion(), catalog.SupportedSchemaVersion) {
		return local, sum, &SchemaVersionMismatchError{
			Remote:    remote.SchemaVersion(),
			Supported: catalog.SupportedSchemaVersion,
		}
	}

	sum.FullReplace = remote.FullReplace() &&
		catalog.NewerMajor(remote.SchemaVersion(), local.SchemaVersion())

	merged := local.RuleMap()

	for _, name := range remote.Names() {
		rr, _ := remote.Get(name)

		lr, ok := merged[name]
		if !ok {
			merged[name] = rr
			sum.Added = append(sum.Added, name)

			continue
		}

		if lr.Equal(&rr) {
			continue
		}

		if rr.UpdatedAt.After(lr.UpdatedAt) {
			merged[name] = rr
			sum.Updated = append(sum.Updated, Update{Name: name, From: lr.Version, To: rr.Version})

			continue
		}

		sum.Kept = append(sum.Kept, name)
	}

	for _, name := range local.Names() {
		if remote.Has(name) {
			continue
		}

		if sum.FullReplace {
			delete(merged, name)
			sum.Removed = append(sum.Removed, name)

			continue
		}

		sum.LocalOnly = append(sum.LocalOnly, name)
	}

	opts := []catalog.SnapshotOpt{
		catalog.WithSchemaVersion(local.SchemaVersion()),
		catalog.WithLastUpdated(local.LastUpdated().Time),
		catalog.WithFullReplace(local.FullReplace()),
	}

	if catalog.CompareVersions(remote.SchemaVersion(), local.SchemaVersion()) > 0 {
		opts = append(opts, catalog.WithSchemaVersion(remote.SchemaVersion()))
	}

	if remote.LastUpdated().After(local.LastUpdated()) {
		opts = append(opts, catalog.WithLastUpdated(remote.LastUpdated().Time))
	}

	if sum.FullReplace {
		// The replace has been applied; later syncs must not repeat it.
		opts = append(opts, catalog.WithFullReplace(false))
	}

	out, err := catalog.New(merged, opts...)
	if err != nil {
		return local, Summary{}, err //nolint:wrapcheck // Already descriptive.
	}

	return out, sum, nil
}

// AffectedInstalls returns the sorted names of rules installed in st whose
// version changed during synchronization. Callers typically resolve these
// in update mode.
func AffectedInstalls(sum Summary, st *workspace.State) []string {
	var out []string

	for _, u := range sum.Updated {
		if !u.VersionChanged() {
			continue
		}

		rec, ok := st.Get(u.Name)
		if ok && rec.Version != u.To {
			out = append(out, u.Name)
		}
	}

	slices.Sort(out)

	return out
}

// OrphanedInstalls returns the sorted names of rules installed in st that
// were removed from the catalog by a full replace.
func OrphanedInstalls(sum Summary, st *workspace.State) []string {
	var out []string

	for _, name := range sum.Removed {
		if st.Has(name) {
			out = append(out, name)
		}
	}

	slices.Sort(out)

	return out
}
