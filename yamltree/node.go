package yamltree

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Kind identifies the shape of a Node (spec §3, "Tagged tree": "Each
// node is one of: mapping ..., sequence, scalar ..., or tagged variant").
// yamltree doesn't carry a separate "Tagged" kind the way spec prose
// does — a tag is a property any Mapping/Sequence/Scalar node carries,
// matching how yaml.v3 itself models it.
type Kind uint8

const (
	ScalarKind Kind = iota + 1
	MappingKind
	SequenceKind
	AliasKind
)

// Style mirrors the subset of yaml.v3's Style bits this module re-exposes
// for round-trip fidelity (spec §4.C, "comment/style hints needed to
// re-emit": flow vs block, string quoting style).
type Style uint8

const (
	DefaultStyle Style = iota
	FlowStyle
	DoubleQuotedStyle
	SingleQuotedStyle
	LiteralStyle
	FoldedStyle
)

func (s Style) raw() yaml.Style {
	switch s {
	case FlowStyle:
		return yaml.FlowStyle
	case DoubleQuotedStyle:
		return yaml.DoubleQuotedStyle
	case SingleQuotedStyle:
		return yaml.SingleQuotedStyle
	case LiteralStyle:
		return yaml.LiteralStyle
	case FoldedStyle:
		return yaml.FoldedStyle
	default:
		return 0
	}
}

// Node wraps a *yaml.Node, adding a decoded-tag-URI view, ordered-mapping
// helpers, and anchor/alias accessors (spec §3/§4.C). The zero value is
// not usable; construct with NewMapping/NewSequence/NewScalar or Parse.
type Node struct {
	raw *yaml.Node
}

func wrap(n *yaml.Node) *Node {
	if n == nil {
		return nil
	}

	return &Node{raw: n}
}

// Raw returns the underlying *yaml.Node, for use by packages (ref,
// extension, document) that need yaml.v3 facilities this facade doesn't
// expose directly.
func (n *Node) Raw() *yaml.Node { return n.raw }

// FromRaw wraps an already-constructed *yaml.Node.
func FromRaw(n *yaml.Node) *Node { return wrap(n) }

// NewMapping creates an empty block-style mapping node.
func NewMapping() *Node {
	return wrap(&yaml.Node{Kind: yaml.MappingNode})
}

// NewSequence creates an empty block-style sequence node.
func NewSequence() *Node {
	return wrap(&yaml.Node{Kind: yaml.SequenceNode})
}

// NewScalar creates a scalar node with the given already-encoded value
// and implicit tag resolution (e.g. "!!str", "!!int").
func NewScalar(tag, value string) *Node {
	return wrap(&yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value})
}

// NewString creates a plain-style string scalar.
func NewString(s string) *Node {
	return wrap(&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s})
}

// NewNull creates a null scalar.
func NewNull() *Node {
	return wrap(&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"})
}

// Kind reports n's shape.
func (n *Node) Kind() Kind {
	switch n.raw.Kind {
	case yaml.MappingNode:
		return MappingKind
	case yaml.SequenceNode:
		return SequenceKind
	case yaml.AliasNode:
		return AliasKind
	default:
		return ScalarKind
	}
}

// IsMapping, IsSequence, IsScalar, IsAlias report n's Kind.
func (n *Node) IsMapping() bool  { return n.Kind() == MappingKind }
func (n *Node) IsSequence() bool { return n.Kind() == SequenceKind }
func (n *Node) IsScalar() bool   { return n.Kind() == ScalarKind }
func (n *Node) IsAlias() bool    { return n.Kind() == AliasKind }

// ResolveAlias follows an alias node to the anchor it targets. It
// returns n itself if n is not an alias.
func (n *Node) ResolveAlias() *Node {
	if n.raw.Kind == yaml.AliasNode && n.raw.Alias != nil {
		return wrap(n.raw.Alias)
	}

	return n
}

// Tag returns the node's raw yaml.v3 tag string (e.g. "!!map", or
// "asdf://example.com/tags/foo-1.0.0" for a parsed verbatim tag).
func (n *Node) Tag() string { return n.raw.Tag }

// SetTag sets the node's tag. Custom tag URIs are supplied bare
// ("asdf://..."), matching what Parse produces for a verbatim "!<...>"
// tag; the emitter re-wraps a handle-less URI in verbatim form on its
// own (spec §4.C, "Serialization").
func (n *Node) SetTag(tag string) { n.raw.Tag = tag }

// Value returns a scalar node's literal string value.
func (n *Node) Value() string { return n.raw.Value }

// SetValue sets a scalar node's literal string value.
func (n *Node) SetValue(v string) { n.raw.Value = v }

// Anchor returns the anchor name attached to n, or "" if none.
func (n *Node) Anchor() string { return n.raw.Anchor }

// SetAnchor attaches an anchor name to n, so later nodes can alias it.
func (n *Node) SetAnchor(name string) { n.raw.Anchor = name }

// Style returns n's formatting style hint.
func (n *Node) Style() Style {
	switch {
	case n.raw.Style&yaml.FlowStyle != 0:
		return FlowStyle
	case n.raw.Style&yaml.DoubleQuotedStyle != 0:
		return DoubleQuotedStyle
	case n.raw.Style&yaml.SingleQuotedStyle != 0:
		return SingleQuotedStyle
	case n.raw.Style&yaml.LiteralStyle != 0:
		return LiteralStyle
	case n.raw.Style&yaml.FoldedStyle != 0:
		return FoldedStyle
	default:
		return DefaultStyle
	}
}

// SetStyle overrides n's formatting style hint.
func (n *Node) SetStyle(s Style) { n.raw.Style = s.raw() }

// Line and Column report n's 1-based source position, for diagnostics.
func (n *Node) Line() int   { return n.raw.Line }
func (n *Node) Column() int { return n.raw.Column }

// Len returns the number of children: key/value pairs for a mapping
// (counted once, not twice), elements for a sequence, 0 for a scalar.
func (n *Node) Len() int {
	switch n.raw.Kind {
	case yaml.MappingNode:
		return len(n.raw.Content) / 2
	case yaml.SequenceNode:
		return len(n.raw.Content)
	default:
		return 0
	}
}

// Keys returns a mapping's keys in insertion order. It returns nil for
// non-mapping nodes.
func (n *Node) Keys() []*Node {
	if n.raw.Kind != yaml.MappingNode {
		return nil
	}

	out := make([]*Node, 0, len(n.raw.Content)/2)
	for i := 0; i < len(n.raw.Content); i += 2 {
		out = append(out, wrap(n.raw.Content[i]))
	}

	return out
}

// Entries returns a mapping's (key, value) pairs in insertion order.
func (n *Node) Entries() []Entry {
	if n.raw.Kind != yaml.MappingNode {
		return nil
	}

	out := make([]Entry, 0, len(n.raw.Content)/2)
	for i := 0; i < len(n.raw.Content); i += 2 {
		out = append(out, Entry{Key: wrap(n.raw.Content[i]), Value: wrap(n.raw.Content[i+1])})
	}

	return out
}

// Entry is one (key, value) pair of a mapping, in the order Entries
// returns it.
type Entry struct {
	Key   *Node
	Value *Node
}

// Get looks up a string-keyed mapping entry by its scalar key value.
// Non-mapping nodes and missing keys both report ok=false.
func (n *Node) Get(key string) (*Node, bool) {
	if n.raw.Kind != yaml.MappingNode {
		return nil, false
	}

	for i := 0; i < len(n.raw.Content); i += 2 {
		if n.raw.Content[i].Value == key {
			return wrap(n.raw.Content[i+1]), true
		}
	}

	return nil, false
}

// Set inserts or replaces the value for key in a mapping node, preserving
// the position of an existing key and appending new keys at the end
// (spec §4.C, "Serialization": "ordered mappings emit in insertion
// order").
func (n *Node) Set(key string, value *Node) {
	for i := 0; i < len(n.raw.Content); i += 2 {
		if n.raw.Content[i].Value == key {
			n.raw.Content[i+1] = value.raw
			return
		}
	}

	n.raw.Content = append(n.raw.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value.raw)
}

// Append adds an element to a sequence node.
func (n *Node) Append(value *Node) {
	n.raw.Content = append(n.raw.Content, value.raw)
}

// JSONLookup implements the go-openapi/jsonpointer JSONPointable
// interface, letting the ref package resolve a JSON-pointer token
// against a tagged tree the same way it would against a plain decoded
// document (spec §4.D).
func (n *Node) JSONLookup(token string) (any, error) {
	switch n.Kind() {
	case MappingKind:
		v, ok := n.Get(token)
		if !ok {
			return nil, fmt.Errorf("yamltree: mapping has no key %q", token)
		}

		return v, nil
	case SequenceKind:
		i, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("yamltree: invalid sequence index %q", token)
		}

		els := n.Elements()
		if i < 0 || i >= len(els) {
			return nil, fmt.Errorf("yamltree: sequence index %d out of range (len %d)", i, len(els))
		}

		return els[i], nil
	default:
		return nil, fmt.Errorf("yamltree: cannot descend a %q pointer token into a scalar", token)
	}
}

// Elements returns a sequence node's elements in order.
func (n *Node) Elements() []*Node {
	if n.raw.Kind != yaml.SequenceNode {
		return nil
	}

	out := make([]*Node, 0, len(n.raw.Content))
	for _, c := range n.raw.Content {
		out = append(out, wrap(c))
	}

	return out
}
