package workspaces

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/macropower/rulebook/api"
	"github.com/macropower/rulebook/api/v1beta1"
	"github.com/macropower/rulebook/pkg/yaml"
)

var (
	//go:embed registry.v1beta1.json
	registrySchemaJSON []byte

	// RegistryValidator validates registry files against the JSON schema.
	RegistryValidator = yaml.MustNewValidator("/registry.v1beta1.json", registrySchemaJSON)

	_ v1beta1.Object = (*Registry)(nil)
)

// Registry lists every workspace rulebook has installed rules into.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type Registry struct {
	// Workspaces are kept sorted by path.
	Workspaces       []*Entry `json:"workspaces" jsonschema:"title=Workspaces"`
	v1beta1.TypeMeta `json:",inline"`
}

// Entry is a single tracked workspace.
type Entry struct {
	// Path is the cleaned absolute workspace root.
	Path string `json:"path" jsonschema:"title=Path"`
	// Name is a display name; defaults to the directory name.
	Name string `json:"name,omitempty" jsonschema:"title=Name"`
	// RegisteredAt is an RFC 3339 UTC timestamp.
	RegisteredAt string `json:"registeredAt,omitempty" jsonschema:"title=Registered At,format=date-time"`
}

// NewRegistry creates an empty [Registry].
func NewRegistry() *Registry {
	r := &Registry{
		TypeMeta: v1beta1.TypeMeta{
			APIVersion: v1beta1.APIVersion,
			Kind:       KindRegistry,
		},
	}
	r.EnsureDefaults()

	return r
}

// EnsureDefaults initializes nil fields to their default values.
func (r *Registry) EnsureDefaults() {
	if r.Workspaces == nil {
		r.Workspaces = []*Entry{}
	}
}

// Get returns the entry for path, if registered.
func (r *Registry) Get(path string) (*Entry, bool) {
	for _, e := range r.Workspaces {
		if e.Path == path {
			return e, true
		}
	}

	return nil, false
}

// Register adds or renames a workspace. It reports whether the registry changed.
func (r *Registry) Register(entry Entry) bool {
	if entry.Name == "" {
		entry.Name = filepath.Base(entry.Path)
	}

	if existing, ok := r.Get(entry.Path); ok {
		if existing.Name == entry.Name {
			return false
		}

		existing.Name = entry.Name

		return true
	}

	r.Workspaces = append(r.Workspaces, &entry)
	slices.SortFunc(r.Workspaces, func(a, b *Entry) int {
		return strings.Compare(a.Path, b.Path)
	})

	return true
}

// Unregister removes a workspace. It reports whether the registry changed.
func (r *Registry) Unregister(path string) bool {
	n := len(r.Workspaces)
	r.Workspaces = slices.DeleteFunc(r.Workspaces, func(e *Entry) bool {
		return e.Path == path
	})

	return len(r.Workspaces) != n
}

func (r Registry) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, []string{KindRegistry})
}

// MarshalYAML serializes the registry to YAML.
func (r Registry) MarshalYAML() ([]byte, error) {
	type alias Registry

	b, err := yaml.Marshal(alias(r))
	if err != nil {
		return nil, fmt.Errorf("marshal workspace registry: %w", err)
	}

	return b, nil
}

// Write writes the registry to path. When the file already exists, the
// registry is merged into the existing document so comments are preserved.
func (r Registry) Write(path string) error {
	existing, err := api.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err //nolint:wrapcheck // Already descriptive.
	}

	type alias Registry

	b, err := yaml.UpdateDocument(existing, alias(r))
	if err != nil {
		return fmt.Errorf("update workspace registry: %w", err)
	}

	err = api.WriteFileAtomic(path, b, 0o600)
	if err != nil {
		return fmt.Errorf("write workspace registry: %w", err)
	}

	return nil
}

// GetRegistryPath returns the path to the global workspace registry.
func GetRegistryPath() string {
	return api.GetConfigPath("workspaces.yaml")
}
