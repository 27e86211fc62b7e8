package schema

import (
	"strconv"

	"github.com/asdf-format/asdf-go/yamltree"
	"gopkg.in/yaml.v3"
)

// ToJSONValue projects a tagged tree node to the generic map/slice/
// scalar shape github.com/santhosh-tekuri/jsonschema/v6 validates
// against. Reference cycles (spec §3, "Anchors and aliases may introduce
// reference cycles") are cut where a collection is reached again from
// inside itself, which projects as nil. A node reached twice without a
// cycle (e.g. through two sibling aliases) is projected each time.
func ToJSONValue(n *yamltree.Node) any {
	return toJSONValue(n, make(map[*yaml.Node]bool))
}

func toJSONValue(n *yamltree.Node, seen map[*yaml.Node]bool) any {
	if n == nil {
		return nil
	}

	if n.Kind() == yamltree.AliasKind {
		return toJSONValue(n.ResolveAlias(), seen)
	}

	raw := n.Raw()
	if seen[raw] {
		return nil
	}

	switch n.Kind() {
	case yamltree.MappingKind:
		seen[raw] = true
		defer delete(seen, raw)

		m := make(map[string]any, n.Len())
		for _, e := range n.Entries() {
			m[e.Key.Value()] = toJSONValue(e.Value, seen)
		}

		return m
	case yamltree.SequenceKind:
		seen[raw] = true
		defer delete(seen, raw)

		els := n.Elements()
		out := make([]any, len(els))

		for i, e := range els {
			out[i] = toJSONValue(e, seen)
		}

		return out
	default:
		return scalarValue(n)
	}
}

// ScalarValue decodes an untagged (or builtin-tagged) scalar node to its
// Go value, the same decoding ToJSONValue applies to scalar leaves. The
// document engine reuses it for nodes that carry no converter-owning
// tag (spec §4.G step 6, "Nodes without a converter become
// language-neutral containers").
func ScalarValue(n *yamltree.Node) any { return scalarValue(n) }

func scalarValue(n *yamltree.Node) any {
	switch n.Tag() {
	case "!!int":
		if iv, err := strconv.ParseInt(n.Value(), 10, 64); err == nil {
			return iv
		}

		return n.Value() // arbitrary-precision literal, kept as its decimal text
	case "!!float":
		f, _ := strconv.ParseFloat(n.Value(), 64)
		return f
	case "!!bool":
		b, _ := strconv.ParseBool(n.Value())
		return b
	case "!!null":
		return nil
	default:
		return n.Value()
	}
}
