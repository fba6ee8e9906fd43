// Package v1beta1 contains the v1beta1 API types for rulebook configuration
// and state files.
package v1beta1

import (
	"errors"
	"fmt"
	"slices"

	"github.com/invopop/jsonschema"
)

// APIVersion is the current API version for all rulebook kinds.
const APIVersion = "rulebook.macropower.dev/v1beta1"

var (
	// ValidAPIVersions contains all valid API versions.
	ValidAPIVersions = []string{APIVersion}

	ErrUnsupportedAPIVersion = errors.New("unsupported apiVersion")
	ErrWrongKind             = errors.New("wrong kind")
)

// TypeMeta identifies the kind of a rulebook document.
type TypeMeta struct {
	// APIVersion is the schema version of the document.
	APIVersion string `json:"apiVersion" jsonschema:"title=API Version"`
	// Kind is the document type, e.g. Configuration or WorkspaceState.
	Kind string `json:"kind" jsonschema:"title=Kind"`
}

func (tm TypeMeta) GetAPIVersion() string {
	return tm.APIVersion
}

func (tm TypeMeta) GetKind() string {
	return tm.Kind
}

// Object is implemented by every versioned document.
type Object interface {
	GetAPIVersion() string
	GetKind() string
	EnsureDefaults()
}

// CheckTypeMeta returns an error when obj is not of the given kind or uses
// an API version this build does not understand.
func CheckTypeMeta(obj Object, kind string) error {
	if !slices.Contains(ValidAPIVersions, obj.GetAPIVersion()) {
		return fmt.Errorf("%w %q", ErrUnsupportedAPIVersion, obj.GetAPIVersion())
	}

	if obj.GetKind() != kind {
		return fmt.Errorf("%w: expected %s, got %q", ErrWrongKind, kind, obj.GetKind())
	}

	return nil
}

// ExtendSchemaWithEnums restricts the apiVersion and kind properties of a
// kind's schema to the given values.
func ExtendSchemaWithEnums(jss *jsonschema.Schema, apiVersions, kinds []string) {
	restrictTo(jss, "apiVersion", "API Version", apiVersions)
	restrictTo(jss, "kind", "Kind", kinds)
}

func restrictTo(jss *jsonschema.Schema, property, title string, values []string) {
	prop, ok := jss.Properties.Get(property)
	if !ok {
		panic(property + " property not found in schema")
	}

	for _, v := range values {
		prop.OneOf = append(prop.OneOf, &jsonschema.Schema{
			Type:  "string",
			Const: v,
			Title: title,
		})
	}

	_, _ = jss.Properties.Set(property, prop)
}
