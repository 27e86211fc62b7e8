// Package ref implements the Reference Resolver (spec §4.D): resolving
// {"$ref": "<uri>#<pointer>"} nodes against the current document's base
// URI, either lazily (FindReferences — a node is dereferenced the first
// time the document engine's conversion pass visits it, and the $ref
// mapping itself is left untouched for re-write) or eagerly
// (ResolveReferences — every reachable $ref is inlined before the tree
// is handed to the rest of the pipeline). Pointer resolution runs on
// github.com/go-openapi/jsonpointer against yamltree.Node directly (it
// implements JSONPointable), and URI/fragment composition runs on
// github.com/go-openapi/jsonreference.
package ref
