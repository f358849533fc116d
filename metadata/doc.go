// Package metadata describes the shape of message types at runtime.
//
// A Registry holds struct and enum descriptors keyed by type name. It is
// filled once at startup, either programmatically or from a YAML/JSON
// descriptor document, validated, and then only read. Codecs receive the
// registry explicitly; there is no package level registry.
package metadata
