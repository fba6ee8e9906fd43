package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	_ "embed"

	"github.com/macropower/rulebook/api"
	"github.com/macropower/rulebook/pkg/yaml"
)

// DefaultFileName is the conventional name of the catalog file.
const DefaultFileName = "rules_catalog.json"

var (
	//go:embed catalog.schema.json
	schemaJSON []byte

	// DefaultValidator validates catalog documents against the JSON schema.
	DefaultValidator = yaml.MustNewValidator("/catalog.schema.json", schemaJSON)
)

// document is the on-disk form of a catalog. The categories and tags
// indices are written for consumers of the file and ignored when reading.
type document struct {
	LastUpdated *Timestamp            `json:"last_updated,omitempty"`
	Rules       map[string]Rule       `json:"rules"`
	Categories  map[Category][]string `json:"categories,omitempty"`
	Tags        map[string][]string   `json:"tags,omitempty"`
	Version     string                `json:"version,omitempty"`
	FullReplace bool                  `json:"full_replace,omitempty"`
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Snapshot, error) {
	errWrap := yaml.NewErrorWrapper(yaml.WithSource(data))

	var raw any

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	err = DefaultValidator.Validate(raw)
	if err != nil {
		return nil, fmt.Errorf("validate catalog: %w", errWrap.Wrap(err))
	}

	var doc document

	err = json.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	version := doc.Version
	if version == "" {
		version = LegacySchemaVersion
	}

	opts := []SnapshotOpt{
		WithSchemaVersion(version),
		WithFullReplace(doc.FullReplace),
	}
	if doc.LastUpdated != nil {
		opts = append(opts, WithLastUpdated(doc.LastUpdated.Time))
	}

	for key, r := range doc.Rules {
		if r.Name == "" {
			r.Name = key
			doc.Rules[key] = r
		}
	}

	s, err := New(doc.Rules, opts...)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	return s, nil
}

// Load reads a catalog file from disk.
func Load(path string) (*Snapshot, error) {
	data, err := api.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return s, nil
}

// Marshal encodes a snapshot as an indented catalog document, regenerating
// the categories and tags indices.
func Marshal(s *Snapshot) ([]byte, error) {
	lastUpdated := s.LastUpdated()

	doc := document{
		Version:     s.SchemaVersion(),
		LastUpdated: &lastUpdated,
		FullReplace: s.FullReplace(),
		Rules:       s.RuleMap(),
		Categories:  s.Categories(),
		Tags:        s.Tags(),
	}

	b := &bytes.Buffer{}

	enc := json.NewEncoder(b)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	err := enc.Encode(doc)
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}

	return b.Bytes(), nil
}

// Save writes a snapshot to path atomically.
func Save(path string, s *Snapshot) error {
	b, err := Marshal(s)
	if err != nil {
		return err
	}

	err = api.WriteFileAtomic(path, b, 0o644)
	if err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}

	return nil
}
