package catalog

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Filter returns the rules matching category and tag, sorted by name.
// Empty arguments match everything.
func (s *Snapshot) Filter(category Category, tag string) []Rule {
	var out []Rule

	for _, name := range s.Names() {
		r := s.rules[name]

		if category != "" && r.Category != category {
			continue
		}

		if tag != "" && !r.HasTag(tag) {
			continue
		}

		out = append(out, r.Clone())
	}

	return out
}

// Search returns the rules whose name, title or tags fuzzy-match query,
// best matches first. An empty query returns every rule.
func (s *Snapshot) Search(query string) []Rule {
	rules := s.Rules()
	if strings.TrimSpace(query) == "" {
		return rules
	}

	targets := make([]string, 0, len(rules))
	for _, r := range rules {
		targets = append(targets, filterValue(&r))
	}

	ranks := fuzzy.Find(query, targets)
	sort.Stable(ranks)

	out := make([]Rule, 0, len(ranks))
	for _, m := range ranks {
		out = append(out, rules[m.Index])
	}

	return out
}

func filterValue(r *Rule) string {
	parts := []string{r.Name}
	if r.Title != "" {
		parts = append(parts, r.Title)
	}

	parts = append(parts, r.Tags...)

	return strings.Join(parts, " ")
}
