package catalog

import (
	"strings"

	"golang.org/x/mod/semver"
)

const (
	// SupportedSchemaVersion is the newest catalog schema this build can read.
	// Remote catalogs with a newer major version are rejected.
	SupportedSchemaVersion = "2.0.0"

	// LegacySchemaVersion is assumed for catalogs without a version field.
	LegacySchemaVersion = "1.0.0"

	// LegacyRuleVersion is given to rules in the legacy string form.
	LegacyRuleVersion = "1.0.0"
)

// canonical converts a catalog version ("1.2.3") to the form expected by
// [semver] ("v1.2.3").
func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}

	return v
}

// ValidVersion reports whether v is a semantic version, with or without a
// leading "v".
func ValidVersion(v string) bool {
	return v != "" && semver.IsValid(canonical(v))
}

// CompareVersions compares two semantic versions. Invalid versions sort
// before valid ones, as in [semver.Compare].
func CompareVersions(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}

// MajorVersion returns the major component of v, e.g. "v2".
func MajorVersion(v string) string {
	return semver.Major(canonical(v))
}

// NewerMajor reports whether the major version of a is greater than that of b.
func NewerMajor(a, b string) bool {
	return semver.Compare(MajorVersion(a), MajorVersion(b)) > 0
}
