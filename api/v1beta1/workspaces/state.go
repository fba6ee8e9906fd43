// Package workspaces provides the documents rulebook persists about
// workspaces: the per-workspace [State] file and the global [Registry].
package workspaces

import (
	"fmt"

	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/macropower/rulebook/api/v1beta1"
	"github.com/macropower/rulebook/pkg/yaml"
)

//go:generate go run ../../../internal/schemagen -kind state -o state.v1beta1.json
//go:generate go run ../../../internal/schemagen -kind registry -o registry.v1beta1.json

const (
	KindState    = "WorkspaceState"
	KindRegistry = "WorkspaceRegistry"
)

var (
	//go:embed state.v1beta1.json
	stateSchemaJSON []byte

	// StateValidator validates workspace state files against the JSON schema.
	StateValidator = yaml.MustNewValidator("/state.v1beta1.json", stateSchemaJSON)

	_ v1beta1.Object = (*State)(nil)
)

// State is the on-disk form of a workspace's installed rules.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type State struct {
	// Rules maps rule names to their install records.
	Rules            map[string]*InstalledRule `json:"rules,omitempty" jsonschema:"title=Rules"`
	v1beta1.TypeMeta `json:",inline"`
}

// InstalledRule records a single rule materialized in a workspace.
type InstalledRule struct {
	// Version is the catalog version that was installed.
	Version string `json:"version" jsonschema:"title=Version"`
	// InstalledAt is an RFC 3339 UTC timestamp.
	InstalledAt string `json:"installedAt" jsonschema:"title=Installed At,format=date-time"`
	// Path of the payload file, relative to the workspace root.
	Path string `json:"path" jsonschema:"title=Path"`
	// Checksum of the payload as written, in the form "sha256:<hex>".
	Checksum string `json:"checksum,omitempty" jsonschema:"title=Checksum"`
}

// NewState creates an empty [State].
func NewState() *State {
	s := &State{
		TypeMeta: v1beta1.TypeMeta{
			APIVersion: v1beta1.APIVersion,
			Kind:       KindState,
		},
	}
	s.EnsureDefaults()

	return s
}

// EnsureDefaults initializes nil fields to their default values.
func (s *State) EnsureDefaults() {
	if s.Rules == nil {
		s.Rules = map[string]*InstalledRule{}
	}
}

func (s State) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, []string{KindState})
}

// MarshalYAML serializes the state to YAML.
func (s State) MarshalYAML() ([]byte, error) {
	type alias State

	b, err := yaml.Marshal(alias(s))
	if err != nil {
		return nil, fmt.Errorf("marshal workspace state: %w", err)
	}

	return b, nil
}
