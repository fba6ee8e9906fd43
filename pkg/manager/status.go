package manager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/aymanbagabas/go-udiff"

	"github.com/macropower/rulebook/api"
	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/resolve"
	"github.com/macropower/rulebook/pkg/workspace"
)

// RuleStatus describes one installed rule.
type RuleStatus struct {
	workspace.Record

	// CatalogVersion is empty when the rule is no longer in the catalog.
	CatalogVersion string
	Outdated       bool
	PayloadMissing bool
	// Modified is set when the payload no longer matches the checksum
	// recorded at install time.
	Modified bool
}

// Status describes the rules in a workspace.
type Status struct {
	Root    string
	Rules   []RuleStatus
	Tracked bool
	// Untracked lists payload files in the rules directory with no install
	// record.
	Untracked []string
}

// Status inspects the workspace at root. snap may be nil, in which case
// catalog versions are not reported.
func (m *Manager) Status(_ context.Context, root string, snap *catalog.Snapshot) (*Status, error) {
	root, err := api.CleanPath(root)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	st, err := m.store.Load(root)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	out := &Status{
		Root:    root,
		Tracked: m.store.Tracked(root),
	}

	for _, rec := range st.Records() {
		rs := RuleStatus{Record: rec}

		if snap != nil {
			if r, ok := snap.Get(rec.Name); ok {
				rs.CatalogVersion = r.Version
				rs.Outdated = r.Version != rec.Version
			}
		}

		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rec.Path)))
		switch {
		case err != nil:
			rs.PayloadMissing = true
		case rec.Checksum != "" && catalog.Checksum(data) != rec.Checksum:
			rs.Modified = true
		}

		out.Rules = append(out.Rules, rs)
	}

	present, err := m.store.Scan(root)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	for _, name := range present {
		if !st.Has(name) {
			out.Untracked = append(out.Untracked, name)
		}
	}

	slices.Sort(out.Untracked)

	return out, nil
}

// InstalledPayload reads the payload of an installed rule.
func (m *Manager) InstalledPayload(root, name string) ([]byte, error) {
	root, err := api.CleanPath(root)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	st, err := m.store.Load(root)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	rec, ok := st.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", resolve.ErrNotInstalled, name)
	}

	data, err := api.ReadFile(filepath.Join(root, filepath.FromSlash(rec.Path)))
	if err != nil {
		return nil, fmt.Errorf("read installed payload: %w", err)
	}

	return data, nil
}

// Payload returns the catalog payload of a rule.
func (m *Manager) Payload(ctx context.Context, snap *catalog.Snapshot, name string) ([]byte, error) {
	r, err := snap.Lookup(name)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already descriptive.
	}

	data, err := m.source.Payload(ctx, &r)
	if err != nil {
		return nil, fmt.Errorf("fetch payload: %w", err)
	}

	return data, nil
}

// Diff returns a unified diff from the catalog payload of name to the copy
// installed in the workspace at root. An empty string means no difference.
func (m *Manager) Diff(ctx context.Context, root, name string) (string, error) {
	snap, err := m.Catalog()
	if err != nil {
		return "", err
	}

	want, err := m.Payload(ctx, snap, name)
	if err != nil {
		return "", err
	}

	got, err := m.InstalledPayload(root, name)
	if err != nil {
		return "", err
	}

	return udiff.Unified("catalog/"+name+".md", "workspace/"+name+".md", string(want), string(got)), nil
}

// Contribute copies the payload installed in the workspace at root back into
// the source rules directory, so local edits can be shared. It returns the
// written path.
func (m *Manager) Contribute(_ context.Context, root, name string) (string, error) {
	if m.rulesDir == "" {
		return "", ErrNoRulesDir
	}

	data, err := m.InstalledPayload(root, name)
	if err != nil {
		return "", err
	}

	rel := name + ".md"

	snap, err := m.Catalog()
	if err == nil {
		if r, ok := snap.Get(name); ok {
			rel = r.ContentPath()
		}
	}

	dest := filepath.Join(m.rulesDir, filepath.FromSlash(rel))

	err = api.WriteFileAtomic(dest, data, 0o644)
	if err != nil {
		return "", fmt.Errorf("write %s: %w", dest, err)
	}

	return dest, nil
}
