// Package config loads and validates rulebook's YAML documents.
//
// A [Loader] decodes any [v1beta1.Object] kind, validating the raw document
// against the kind's JSON schema first so that errors can be annotated with
// positions in the original source.
package config
