package document

import (
	"github.com/asdf-format/asdf-go/block"
	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/extension"
	"github.com/asdf-format/asdf-go/format"
	"github.com/asdf-format/asdf-go/ioadapter"
	"github.com/asdf-format/asdf-go/ref"
	"github.com/asdf-format/asdf-go/schema"
	"github.com/asdf-format/asdf-go/yamltree"
)

// Mapping is an ordered key/value container materialized from an
// untagged YAML mapping node, or built up by hand before a Write (spec
// §4.G step 6, "Nodes without a converter become language-neutral
// containers"). Key order matches insertion order, not alphabetical, so
// a round-tripped document re-emits its mapping keys the way it read
// them (spec §4.C, "Serialization": "ordered mappings emit in insertion
// order").
type Mapping struct {
	keys   []string
	values map[string]any
}

// NewMapping creates an empty Mapping, for building a document tree by
// hand ahead of Write.
func NewMapping() *Mapping {
	return &Mapping{values: make(map[string]any)}
}

// Set inserts or replaces key's value, preserving the position of an
// existing key and appending new keys at the end.
func (m *Mapping) Set(key string, value any) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}

	m.values[key] = value
}

// Keys returns the mapping's keys in insertion order.
func (m *Mapping) Keys() []string { return m.keys }

// Get looks up key, reporting whether it was present.
func (m *Mapping) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Len reports the number of entries.
func (m *Mapping) Len() int { return len(m.keys) }

// Sequence is an ordered list materialized from an untagged YAML
// sequence node, or built up by hand before a Write.
type Sequence struct {
	values []any
}

// NewSequence creates an empty Sequence.
func NewSequence() *Sequence { return &Sequence{} }

// Append adds v to the end of the sequence.
func (s *Sequence) Append(v any) { s.values = append(s.values, v) }

// Values returns the sequence's elements in order.
func (s *Sequence) Values() []any { return s.values }

// Len reports the number of elements.
func (s *Sequence) Len() int { return len(s.values) }

// Document is one open ASDF file: its header versions, tagged tree,
// block store, and the collaborators used to materialize it and to
// write it back out (spec §4.G).
type Document struct {
	src     ioadapter.Source
	baseURI string
	closed  bool
	// bodyEnd is the absolute offset the first block (or trailing
	// padding) starts at, as of the last Open/Write/Update — the region
	// an in-place Update may rewrite YAML into. Zero when unknown
	// (e.g. a forward-only sink).
	bodyEnd int64

	// FileFormatVersion and StandardVersion are the two versions that
	// govern an ASDF file's binary layout and YAML tag vocabulary
	// respectively (spec §3).
	FileFormatVersion format.Version
	StandardVersion   format.Version

	tree   *yamltree.Node
	root   any
	blocks *block.Store

	extensions *extension.Registry
	validator  *schema.Validator
	resolver   *ref.Resolver

	warnings []errs.Warning

	// writeDefaults holds the options New was given; Write and Update
	// start from them before applying their own. Nil for an opened file.
	writeDefaults *config
}

// Tree returns the document's tagged tree, as parsed by Open or as last
// produced by Write.
func (d *Document) Tree() *yamltree.Node { return d.tree }

// Root returns the native object graph Open materialized from Tree
// (spec §4.G step 6). It is nil until SetRoot is called on a Document
// created fresh via New.
func (d *Document) Root() any { return d.root }

// SetRoot replaces the document's native object graph, for building a
// document to Write from scratch or for editing one that was Open'd.
func (d *Document) SetRoot(v any) { d.root = v }

// Warnings returns every non-fatal diagnostic collected while opening
// or writing this document (spec §7, "typed so they can be filtered or
// promoted to errors by policy").
func (d *Document) Warnings() []errs.Warning { return d.warnings }

// Extensions returns the registry consulted for tag<->type conversion.
func (d *Document) Extensions() *extension.Registry { return d.extensions }

// Blocks returns the document's block store.
func (d *Document) Blocks() *block.Store { return d.blocks }

// Close releases the document's underlying source.
func (d *Document) Close() error {
	if d.closed {
		return nil
	}

	d.closed = true

	if d.src == nil {
		return nil
	}

	return d.src.Close()
}

func (d *Document) checkOpen() error {
	if d.closed {
		return errs.ErrDocumentClosed
	}

	return nil
}
