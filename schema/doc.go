// Package schema implements the Schema Registry & Validator (spec §4.E):
// URI-based schema/manifest resolution through a chain of
// ResourceMapping plugins, LRU-cached by URI
// (github.com/hashicorp/golang-lru/v2), and a validation pipeline built
// on github.com/santhosh-tekuri/jsonschema/v6, configured with a custom
// loader so every schema fetch goes through the same ResourceMapping
// chain instead of the library's default filesystem/HTTP resolution.
package schema
