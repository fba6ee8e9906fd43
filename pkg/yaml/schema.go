package yaml

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/invopop/jsonschema"
)

// SchemaGenerator reflects a JSON schema from a Go value.
type SchemaGenerator struct {
	reflector *jsonschema.Reflector
	v         any
	module    string
	packages  []string
}

// SchemaOpt configures a [SchemaGenerator].
type SchemaOpt func(*SchemaGenerator)

// WithGoComments adds Go doc comments from packages to the generated
// schema descriptions. Package paths must belong to module, and
// generation must run from the module root.
func WithGoComments(module string, packages ...string) SchemaOpt {
	return func(g *SchemaGenerator) {
		g.module = module
		g.packages = append(g.packages, packages...)
	}
}

// NewSchemaGenerator creates a new [SchemaGenerator] for v.
func NewSchemaGenerator(v any, opts ...SchemaOpt) *SchemaGenerator {
	g := &SchemaGenerator{
		reflector: &jsonschema.Reflector{},
		v:         v,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate returns the indented JSON schema.
func (g *SchemaGenerator) Generate() ([]byte, error) {
	for _, pkg := range g.packages {
		dir, ok := strings.CutPrefix(pkg, g.module+"/")
		if !ok {
			return nil, fmt.Errorf("package %s is not in module %s", pkg, g.module)
		}

		err := g.reflector.AddGoComments(g.module, "./"+path.Clean(dir))
		if err != nil {
			return nil, fmt.Errorf("add comments for %s: %w", pkg, err)
		}
	}

	s := g.reflector.Reflect(g.v)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	return append(data, '\n'), nil
}
