// Package expr provides CEL (Common Expression Language) filters over
// catalog rules.
//
// Expressions have access to a `rule` variable (map<string, dyn>) with the
// rule's fields, e.g. `rule.category == "aws" && "cloud" in rule.tags`.
//
// The environment adds these functions:
//   - semverAtLeast(version, min) and semverCompare(a, b)
//   - hasTag(rule, tag)
//   - pathBase, pathExt for payload file names
package expr
