// Package catalog holds the rule catalog: the authoritative, versioned set of
// rule definitions.
//
// A catalog is represented by an immutable [Snapshot]. Snapshots are loaded
// from and saved to the JSON catalog file with [Load] and [Save]; updates
// always produce a new Snapshot. All timestamps are normalized to UTC when
// decoded, and missing or malformed timestamps become [Epoch].
//
// Rule payloads are opaque. A [Rule] only references its payload by file,
// inline content, or URL.
package catalog
