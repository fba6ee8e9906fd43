package configs

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

// ErrMustBeRelative is returned for workspace paths that are absolute.
var ErrMustBeRelative = errors.New("must be relative to the workspace root")

// Duration is a [time.Duration] that is written as a Go duration string
// (e.g. "10s") in configuration files.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements [yaml.BytesUnmarshaler].
func (d *Duration) UnmarshalYAML(b []byte) error {
	s := strings.TrimSpace(string(b))
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}

	s = strings.Trim(s, "'")

	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}

	d.Duration = v

	return nil
}

// MarshalYAML implements [yaml.BytesMarshaler].
func (d Duration) MarshalYAML() ([]byte, error) {
	return []byte(d.String()), nil
}

func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Title:       "Duration",
		Description: "A Go duration string, e.g. 10s or 1m30s.",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
	}
}

func isAbs(p string) bool {
	return filepath.IsAbs(p) || strings.HasPrefix(p, "/")
}

func resolveRelative(p, configPath string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}

	if strings.HasPrefix(p, "~/") {
		return p
	}

	return filepath.Join(filepath.Dir(configPath), p)
}
