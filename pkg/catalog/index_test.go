package catalog_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulebook/pkg/catalog"
)

func TestIndex(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRule := func(name, content string) {
		t.Helper()

		err := os.WriteFile(filepath.Join(dir, name+".md"), []byte(content), 0o600)
		require.NoError(t, err)
	}

	writeRule("aws", "# AWS\n\nUse IAM roles.\nNever hardcode keys.\nTag resources.\n")
	writeRule("my-team", "# Team\n")

	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	first, err := catalog.Index(dir, nil, t1)
	require.NoError(t, err)
	assert.Equal(t, []string{"aws", "my-team"}, first.Added)
	assert.Empty(t, first.Changed)

	aws, ok := first.Snapshot.Get("aws")
	require.True(t, ok)
	assert.Equal(t, "Aws", aws.Title)
	assert.Equal(t, catalog.CategoryAWS, aws.Category)
	assert.Equal(t, []string{"# AWS", "", "Use IAM roles."}, aws.Examples)
	assert.Equal(t, "aws.md", aws.File)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, aws.Checksum)

	team, ok := first.Snapshot.Get("my-team")
	require.True(t, ok)
	assert.Equal(t, "My Team", team.Title)
	assert.Equal(t, catalog.CategoryGeneral, team.Category)

	// Hand-edited metadata survives re-indexing.
	edited, err := first.Snapshot.With(func() catalog.Rule {
		aws.Description = "Curated"
		aws.Version = "1.1.0"

		return aws
	}())
	require.NoError(t, err)

	writeRule("my-team", "# Team\n\nNew guidance.\n")

	t2 := t1.Add(24 * time.Hour)

	second, err := catalog.Index(dir, edited, t2)
	require.NoError(t, err)
	assert.Empty(t, second.Added)
	assert.Equal(t, []string{"my-team"}, second.Changed)
	assert.Equal(t, []string{"aws"}, second.Unchanged)

	aws, _ = second.Snapshot.Get("aws")
	assert.Equal(t, "Curated", aws.Description)
	assert.Equal(t, t1, aws.UpdatedAt.Time, "unchanged payloads keep updated_at")

	team, _ = second.Snapshot.Get("my-team")
	assert.Equal(t, t2, team.UpdatedAt.Time)
	assert.Equal(t, t1, team.CreatedAt.Time)
	assert.Equal(t, t2, second.Snapshot.LastUpdated().Time)

	assert.Equal(t, catalog.Checksum([]byte("# Team\n\nNew guidance.\n")), team.Checksum)
}
