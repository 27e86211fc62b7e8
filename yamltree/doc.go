// Package yamltree implements the Tagged Tree (spec §4.C): parsing and
// emitting YAML while preserving ordered mappings, anchors/aliases
// (including cycles), per-node tag URIs, and flow/block style. Node is a
// thin facade over gopkg.in/yaml.v3's Node — yaml.v3 already carries
// everything the spec asks this component to preserve, so this package
// adds typed accessors and the mapping-key-uniqueness/type-restriction
// pass rather than re-implementing a YAML AST.
package yamltree
