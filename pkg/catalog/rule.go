package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// Category groups rules for browsing and filtering.
type Category string

const (
	CategoryAWS        Category = "aws"
	CategoryPython     Category = "python"
	CategoryTerraform  Category = "terraform"
	CategoryJavaScript Category = "javascript"
	CategoryTypeScript Category = "typescript"
	CategoryReact      Category = "react"
	CategoryRuby       Category = "ruby"
	CategoryGo         Category = "go"
	CategoryJava       Category = "java"
	CategoryServerless Category = "serverless"
	CategorySecurity   Category = "security"
	CategoryTesting    Category = "testing"
	CategoryGeneral    Category = "general"
)

// AllCategories lists every valid [Category].
var AllCategories = []Category{
	CategoryAWS,
	CategoryPython,
	CategoryTerraform,
	CategoryJavaScript,
	CategoryTypeScript,
	CategoryReact,
	CategoryRuby,
	CategoryGo,
	CategoryJava,
	CategoryServerless,
	CategorySecurity,
	CategoryTesting,
	CategoryGeneral,
}

// Rule is a single catalog entry. The payload itself is never held here,
// only a reference to it: a File relative to the catalog's rules
// directory, inline Content, or a URL.
//
// Fields not known to this version are kept in Extensions and written back
// unchanged.
type Rule struct {
	UpdatedAt          Timestamp                  `json:"updated_at"`
	CreatedAt          Timestamp                  `json:"created_at"`
	Extensions         map[string]json.RawMessage `json:"-"`
	Name               string                     `json:"name" validate:"required,rulename"`
	Title              string                     `json:"title,omitempty"`
	Description        string                     `json:"description,omitempty"`
	Category           Category                   `json:"category,omitempty" validate:"omitempty,category"`
	Version            string                     `json:"version" validate:"required,semver"`
	File               string                     `json:"file,omitempty" validate:"omitempty,relpath"`
	Content            string                     `json:"content,omitempty"`
	URL                string                     `json:"url,omitempty" validate:"omitempty,url"`
	Checksum           string                     `json:"checksum,omitempty" validate:"omitempty,checksum"`
	Author             string                     `json:"author,omitempty"`
	DocumentationURL   string                     `json:"documentation_url,omitempty" validate:"omitempty,url"`
	SourceURL          string                     `json:"source_url,omitempty" validate:"omitempty,url"`
	Tags               []string                   `json:"tags,omitempty"`
	Dependencies       []string                   `json:"dependencies,omitempty" validate:"dive,required"`
	Conflicts          []string                   `json:"conflicts,omitempty" validate:"dive,required"`
	SupportedLanguages []string                   `json:"supported_languages,omitempty"`
	Examples           []string                   `json:"examples,omitempty"`
}

// ruleFields is the set of JSON keys decoded into [Rule]'s fixed fields.
var ruleFields = func() map[string]bool {
	fields := map[string]bool{}

	rt := reflect.TypeFor[Rule]()
	for i := range rt.NumField() {
		name, _, _ := strings.Cut(rt.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			fields[name] = true
		}
	}

	return fields
}()

// PayloadFile returns the file name the rule's payload is materialized as
// inside a workspace.
func (r *Rule) PayloadFile() string {
	return r.Name + ".md"
}

// ContentPath returns the path of the payload relative to the catalog's
// rules directory. Rules without an explicit File use "<name>.md".
func (r *Rule) ContentPath() string {
	if r.File != "" {
		return r.File
	}

	return r.PayloadFile()
}

// HasTag reports whether the rule carries tag.
func (r *Rule) HasTag(tag string) bool {
	return slices.Contains(r.Tags, tag)
}

// DependsOn reports whether the rule directly depends on name.
func (r *Rule) DependsOn(name string) bool {
	return slices.Contains(r.Dependencies, name)
}

// ConflictsWith reports whether the rule declares a conflict with name.
func (r *Rule) ConflictsWith(name string) bool {
	return slices.Contains(r.Conflicts, name)
}

// Clone returns a deep copy of r.
func (r Rule) Clone() Rule {
	c := r
	c.Tags = slices.Clone(r.Tags)
	c.Dependencies = slices.Clone(r.Dependencies)
	c.Conflicts = slices.Clone(r.Conflicts)
	c.SupportedLanguages = slices.Clone(r.SupportedLanguages)
	c.Examples = slices.Clone(r.Examples)

	if r.Extensions != nil {
		c.Extensions = make(map[string]json.RawMessage, len(r.Extensions))
		for k, v := range r.Extensions {
			c.Extensions[k] = slices.Clone(v)
		}
	}

	return c
}

// Equal reports whether two rules carry identical data.
func (r *Rule) Equal(o *Rule) bool {
	return r.Name == o.Name &&
		r.Title == o.Title &&
		r.Description == o.Description &&
		r.Category == o.Category &&
		r.Version == o.Version &&
		r.File == o.File &&
		r.Content == o.Content &&
		r.URL == o.URL &&
		r.Checksum == o.Checksum &&
		r.Author == o.Author &&
		r.DocumentationURL == o.DocumentationURL &&
		r.SourceURL == o.SourceURL &&
		r.CreatedAt.Equal(o.CreatedAt) &&
		r.UpdatedAt.Equal(o.UpdatedAt) &&
		slices.Equal(r.Tags, o.Tags) &&
		slices.Equal(r.Dependencies, o.Dependencies) &&
		slices.Equal(r.Conflicts, o.Conflicts) &&
		slices.Equal(r.SupportedLanguages, o.SupportedLanguages) &&
		slices.Equal(r.Examples, o.Examples) &&
		maps.EqualFunc(r.Extensions, o.Extensions, func(a, b json.RawMessage) bool {
			return bytes.Equal(a, b)
		})
}

// normalize fills in defaults that are implied by the file format.
func (r *Rule) normalize(key string) {
	if r.Name == "" {
		r.Name = key
	}

	r.CreatedAt = NewTimestamp(r.CreatedAt.Time)
	r.UpdatedAt = NewTimestamp(r.UpdatedAt.Time)
}

// ruleJSON has the fixed fields of [Rule] without its methods.
type ruleJSON Rule

// UnmarshalJSON decodes a rule. The legacy form, where the rule is only a
// payload file name (`"aws": "aws.md"`), is accepted as well.
func (r *Rule) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)

	if len(b) > 0 && b[0] == '"' {
		var file string

		err := json.Unmarshal(b, &file)
		if err != nil {
			return fmt.Errorf("decode legacy rule: %w", err)
		}

		*r = Rule{File: file, Version: LegacyRuleVersion}

		return nil
	}

	var fixed ruleJSON

	err := json.Unmarshal(b, &fixed)
	if err != nil {
		return fmt.Errorf("decode rule: %w", err)
	}

	var all map[string]json.RawMessage

	err = json.Unmarshal(b, &all)
	if err != nil {
		return fmt.Errorf("decode rule: %w", err)
	}

	for k, v := range all {
		if ruleFields[k] {
			delete(all, k)

			continue
		}

		// Compact so that re-indented files compare equal.
		compact := &bytes.Buffer{}

		err = json.Compact(compact, v)
		if err != nil {
			return fmt.Errorf("decode rule extension %q: %w", k, err)
		}

		all[k] = compact.Bytes()
	}

	if len(all) > 0 {
		fixed.Extensions = all
	}

	*r = Rule(fixed)

	return nil
}

// MarshalJSON encodes the fixed fields followed by any extensions.
func (r Rule) MarshalJSON() ([]byte, error) {
	fixed, err := json.Marshal(ruleJSON(r))
	if err != nil {
		return nil, fmt.Errorf("encode rule: %w", err)
	}

	if len(r.Extensions) == 0 {
		return fixed, nil
	}

	var all map[string]json.RawMessage

	err = json.Unmarshal(fixed, &all)
	if err != nil {
		return nil, fmt.Errorf("encode rule: %w", err)
	}

	for k, v := range r.Extensions {
		if _, ok := all[k]; !ok {
			all[k] = v
		}
	}

	b, err := json.Marshal(all)
	if err != nil {
		return nil, fmt.Errorf("encode rule: %w", err)
	}

	return b, nil
}
