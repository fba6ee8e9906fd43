package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// knownCategories guesses a category for well-known rule names.
var knownCategories = map[string]Category{
	"aws":           CategoryAWS,
	"aws-sam":       CategoryAWS,
	"python":        CategoryPython,
	"terraform":     CategoryTerraform,
	"react":         CategoryJavaScript,
	"javascript":    CategoryJavaScript,
	"typescript":    CategoryTypeScript,
	"ruby":          CategoryRuby,
	"go":            CategoryGo,
	"golang":        CategoryGo,
	"java":          CategoryJava,
	"sls-framework": CategoryServerless,
	"serverless":    CategoryServerless,
	"security":      CategorySecurity,
	"testing":       CategoryTesting,
}

// Checksum returns the checksum of a payload in the form "sha256:<hex>".
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)

	return "sha256:" + hex.EncodeToString(sum[:])
}

// IndexResult describes the changes made by [Index].
type IndexResult struct {
	Snapshot  *Snapshot
	Added     []string
	Changed   []string
	Unchanged []string
}

// Index scans dir for "*.md" payloads and returns base updated with one
// rule per payload. Existing metadata is preserved; a rule's checksum,
// examples and updated_at are only refreshed when its payload changed.
// Rules in base without a payload file in dir are kept as they are.
func Index(dir string, base *Snapshot, now time.Time) (*IndexResult, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("glob rules: %w", err)
	}

	slices.Sort(matches)

	if base == nil {
		base = Empty()
	}

	res := &IndexResult{}
	title := cases.Title(language.English)
	updated := make([]Rule, 0, len(matches))

	for _, path := range matches {
		data, err := os.ReadFile(path) //nolint:gosec // G304: Path comes from a glob of dir.
		if err != nil {
			return nil, fmt.Errorf("read rule: %w", err)
		}

		name := strings.TrimSuffix(filepath.Base(path), ".md")
		sum := Checksum(data)

		r, ok := base.Get(name)
		switch {
		case !ok:
			category, known := knownCategories[name]
			if !known {
				category = CategoryGeneral
			}

			r = Rule{
				Name:        name,
				Title:       title.String(strings.ReplaceAll(name, "-", " ")),
				Description: "Rules for " + name,
				Category:    category,
				Version:     LegacyRuleVersion,
				Tags:        []string{name},
				File:        filepath.Base(path),
				Checksum:    sum,
				Examples:    examples(data),
				CreatedAt:   NewTimestamp(now),
				UpdatedAt:   NewTimestamp(now),
			}
			res.Added = append(res.Added, name)

		case r.Checksum != sum:
			r.Checksum = sum
			r.Examples = examples(data)
			r.UpdatedAt = NewTimestamp(now)

			if r.File == "" && r.Content == "" && r.URL == "" {
				r.File = filepath.Base(path)
			}

			res.Changed = append(res.Changed, name)

		default:
			res.Unchanged = append(res.Unchanged, name)

			continue
		}

		updated = append(updated, r)
	}

	s, err := base.With(updated...)
	if err != nil {
		return nil, err
	}

	if len(res.Added)+len(res.Changed) > 0 {
		s = s.WithMeta(WithLastUpdated(now))
	}

	res.Snapshot = s

	return res, nil
}

// examples returns the first three lines of a payload.
func examples(data []byte) []string {
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) > 3 {
		lines = lines[:3]
	}

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, strings.TrimRight(l, "\r"))
	}

	return out
}
