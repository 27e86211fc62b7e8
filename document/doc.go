// Package document implements the file lifecycle of spec §4.G: Open,
// Write, Update, and read-only tree introspection. It glues the byte
// I/O façade (ioadapter), the block store (block), the tagged tree
// (yamltree), the reference resolver (ref), the schema validator
// (schema), and the extension registry (extension) into a single
// user-facing *Document.
package document
