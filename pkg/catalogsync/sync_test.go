package catalogsync_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/catalogsync"
	"github.com/macropower/rulebook/pkg/workspace"
)

var (
	older = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
)

func rule(name, version string, updated time.Time) catalog.Rule {
	return catalog.Rule{
		Name:      name,
		Version:   version,
		Category:  catalog.CategoryGeneral,
		UpdatedAt: catalog.NewTimestamp(updated),
	}
}

func snapshot(t *testing.T, schema string, fullReplace bool, rules ...catalog.Rule) *catalog.Snapshot {
	t.Helper()

	m := map[string]catalog.Rule{}
	for _, r := range rules {
		m[r.Name] = r
	}

	s, err := catalog.New(m,
		catalog.WithSchemaVersion(schema),
		catalog.WithFullReplace(fullReplace),
		catalog.WithLastUpdated(older),
	)
	require.NoError(t, err)

	return s
}

func TestSynchronize_Idempotent(t *testing.T) {
	t.Parallel()

	local := snapshot(t, "2.0.0", true,
		rule("aws", "1.0.0", older),
		rule("python", "2.1.0", newer),
	)

	merged, sum, err := catalogsync.Synchronize(local, local)
	require.NoError(t, err)
	assert.True(t, sum.Empty())
	assert.False(t, sum.Changed())
	assert.True(t, merged.Equal(local))
}

func TestSynchronize_TerraformKeepsNewerLocal(t *testing.T) {
	t.Parallel()

	local := snapshot(t, "2.0.0", false, rule("terraform", "1.0.0", newer))
	remote := snapshot(t, "2.0.0", false, rule("terraform", "1.0.1", older))

	merged, sum, err := catalogsync.Synchronize(local, remote)
	require.NoError(t, err)

	got, ok := merged.Get("terraform")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", got.Version)
	assert.Equal(t, []string{"terraform"}, sum.Kept)
	assert.Empty(t, sum.Updated)
	assert.False(t, sum.Changed())
}

func TestSynchronize(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		local       *catalog.Snapshot
		remote      *catalog.Snapshot
		wantSummary catalogsync.Summary
		wantNames   []string
		wantVersion map[string]string
		wantSchema  string
	}{
		"remote only rules are added": {
			local:       snapshot(t, "2.0.0", false, rule("aws", "1.0.0", older)),
			remote:      snapshot(t, "2.0.0", false, rule("aws", "1.0.0", older), rule("go", "1.0.0", older)),
			wantSummary: catalogsync.Summary{Added: []string{"go"}},
			wantNames:   []string{"aws", "go"},
			wantSchema:  "2.0.0",
		},
		"strictly newer remote wins": {
			local:  snapshot(t, "2.0.0", false, rule("aws", "1.0.0", older)),
			remote: snapshot(t, "2.0.0", false, rule("aws", "1.1.0", newer)),
			wantSummary: catalogsync.Summary{
				Updated: []catalogsync.Update{{Name: "aws", From: "1.0.0", To: "1.1.0"}},
			},
			wantNames:   []string{"aws"},
			wantVersion: map[string]string{"aws": "1.1.0"},
			wantSchema:  "2.0.0",
		},
		"tie keeps local": {
			local:       snapshot(t, "2.0.0", false, rule("aws", "1.0.0", older)),
			remote:      snapshot(t, "2.0.0", false, rule("aws", "9.0.0", older)),
			wantSummary: catalogsync.Summary{Kept: []string{"aws"}},
			wantNames:   []string{"aws"},
			wantVersion: map[string]string{"aws": "1.0.0"},
			wantSchema:  "2.0.0",
		},
		"local only rules are retained": {
			local:       snapshot(t, "1.0.0", false, rule("aws", "1.0.0", older), rule("mine", "0.1.0", older)),
			remote:      snapshot(t, "2.0.0", false, rule("aws", "1.0.0", older)),
			wantSummary: catalogsync.Summary{LocalOnly: []string{"mine"}},
			wantNames:   []string{"aws", "mine"},
			wantSchema:  "2.0.0",
		},
		"full replace on newer major": {
			local:  snapshot(t, "1.0.0", false, rule("aws", "1.0.0", older), rule("mine", "0.1.0", older)),
			remote: snapshot(t, "2.0.0", true, rule("aws", "1.0.0", older)),
			wantSummary: catalogsync.Summary{
				Removed:     []string{"mine"},
				FullReplace: true,
			},
			wantNames:  []string{"aws"},
			wantSchema: "2.0.0",
		},
		"full replace ignored on same major": {
			local:       snapshot(t, "2.0.0", false, rule("mine", "0.1.0", older)),
			remote:      snapshot(t, "2.1.0", true, rule("aws", "1.0.0", older)),
			wantSummary: catalogsync.Summary{Added: []string{"aws"}, LocalOnly: []string{"mine"}},
			wantNames:   []string{"aws", "mine"},
			wantSchema:  "2.1.0",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			merged, sum, err := catalogsync.Synchronize(tc.local, tc.remote)
			require.NoError(t, err)
			assert.Equal(t, tc.wantSummary, sum)
			assert.Equal(t, tc.wantNames, merged.Names())
			assert.Equal(t, tc.wantSchema, merged.SchemaVersion())
			assert.False(t, merged.FullReplace())

			for n, v := range tc.wantVersion {
				r, ok := merged.Get(n)
				require.True(t, ok)
				assert.Equal(t, v, r.Version)
			}
		})
	}
}

func parseAWS(t *testing.T, version, updatedAt string) *catalog.Snapshot {
	t.Helper()

	ts := ""
	if updatedAt != "" {
		ts = fmt.Sprintf(`, "updated_at": %q`, updatedAt)
	}

	s, err := catalog.Parse(fmt.Appendf(nil, `{
  "version": "2.0.0",
  "rules": {"aws": {"name": "aws", "version": %q%s}}
}`, version, ts))
	require.NoError(t, err)

	return s
}

func TestSynchronize_UnreadableTimestamps(t *testing.T) {
	t.Parallel()

	const valid = "2025-06-01T00:00:00Z"

	tcs := map[string]struct {
		local       *catalog.Snapshot
		remote      *catalog.Snapshot
		wantVersion string
		wantUpdated bool
	}{
		"malformed local loses": {
			local:       parseAWS(t, "1.0.0", "last tuesday"),
			remote:      parseAWS(t, "1.1.0", valid),
			wantVersion: "1.1.0",
			wantUpdated: true,
		},
		"missing local loses": {
			local:       parseAWS(t, "1.0.0", ""),
			remote:      parseAWS(t, "1.1.0", valid),
			wantVersion: "1.1.0",
			wantUpdated: true,
		},
		"malformed remote loses": {
			local:       parseAWS(t, "1.0.0", valid),
			remote:      parseAWS(t, "1.1.0", "not-a-date"),
			wantVersion: "1.0.0",
		},
		"missing remote loses": {
			local:       parseAWS(t, "1.0.0", valid),
			remote:      parseAWS(t, "1.1.0", ""),
			wantVersion: "1.0.0",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			merged, sum, err := catalogsync.Synchronize(tc.local, tc.remote)
			require.NoError(t, err)

			got, ok := merged.Get("aws")
			require.True(t, ok)
			assert.Equal(t, tc.wantVersion, got.Version)

			if tc.wantUpdated {
				assert.Equal(t, []catalogsync.Update{{Name: "aws", From: "1.0.0", To: "1.1.0"}}, sum.Updated)
				assert.Empty(t, sum.Kept)
			} else {
				assert.Empty(t, sum.Updated)
				assert.Equal(t, []string{"aws"}, sum.Kept)
			}
		})
	}
}

func TestSynchronize_SchemaVersionMismatch(t *testing.T) {
	t.Parallel()

	local := snapshot(t, "2.0.0", false, rule("aws", "1.0.0", older))
	remote := snapshot(t, "3.0.0", true, rule("aws", "2.0.0", newer))

	merged, sum, err := catalogsync.Synchronize(local, remote)
	require.ErrorIs(t, err, catalogsync.ErrSchemaVersionMismatch)

	var mismatch *catalogsync.SchemaVersionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "3.0.0", mismatch.Remote)
	assert.Same(t, local, merged)
	assert.True(t, sum.Empty())
}

func TestAffectedInstalls(t *testing.T) {
	t.Parallel()

	st := workspace.NewState("/work")
	st.Put(workspace.Record{Name: "aws", Version: "1.0.0"})
	st.Put(workspace.Record{Name: "python", Version: "2.0.0"})
	st.Put(workspace.Record{Name: "mine", Version: "0.1.0"})

	sum := catalogsync.Summary{
		Updated: []catalogsync.Update{
			{Name: "python", From: "2.0.0", To: "2.0.0"},
			{Name: "go", From: "1.0.0", To: "1.1.0"},
			{Name: "aws", From: "1.0.0", To: "1.1.0"},
		},
		Removed: []string{"mine", "other"},
	}

	assert.Equal(t, []string{"aws"}, catalogsync.AffectedInstalls(sum, st))
	assert.Equal(t, []string{"mine"}, catalogsync.OrphanedInstalls(sum, st))
}

const remoteCatalog = `{
  "version": "2.0.0",
  "last_updated": "2025-06-01T00:00:00Z",
  "rules": {
    "aws": {"name": "aws", "version": "1.1.0", "category": "aws", "updated_at": "2025-06-01T00:00:00Z"}
  }
}`

func TestFetcher_HTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rules_catalog.json":
			_, _ = w.Write([]byte(remoteCatalog))
		case "/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	f := catalogsync.NewFetcher(catalogsync.WithHTTPClient(srv.Client()), catalogsync.WithTimeout(200*time.Millisecond))

	snap, err := f.Fetch(t.Context(), srv.URL+"/rules_catalog.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"aws"}, snap.Names())

	tcs := map[string]string{
		"not found": "/missing",
		"timeout":   "/slow",
	}

	for name, path := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := f.Fetch(t.Context(), srv.URL+path)
			require.ErrorIs(t, err, catalogsync.ErrRemoteUnavailable)

			var unavailable *catalogsync.RemoteUnavailableError
			require.ErrorAs(t, err, &unavailable)
			assert.Equal(t, srv.URL+path, unavailable.Source)
		})
	}
}

func TestFetcher_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := catalogsync.NewFetcher().Fetch(ctx, "http://127.0.0.1:1/rules_catalog.json")
	require.ErrorIs(t, err, catalogsync.ErrRemoteUnavailable)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetcher_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "rules_catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(remoteCatalog), 0o644))

	f := catalogsync.NewFetcher()

	for name, source := range map[string]string{
		"plain path": path,
		"file url":   "file://" + filepath.ToSlash(path),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			snap, err := f.Fetch(t.Context(), source)
			require.NoError(t, err)
			assert.True(t, snap.Has("aws"))
		})
	}

	_, err := f.Fetch(t.Context(), filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, catalogsync.ErrRemoteUnavailable)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"rules": []}`), 0o644))

	_, err = f.Fetch(t.Context(), bad)
	require.Error(t, err)
	assert.NotErrorIs(t, err, catalogsync.ErrRemoteUnavailable)
}
