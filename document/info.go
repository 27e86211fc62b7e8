package document

import (
	"fmt"
	"strings"
)

// InfoNode is one entry in an Info/Search walk: the path it was reached
// at and the value found there.
type InfoNode struct {
	Path  string
	Value any
}

// Traversable is implemented by a converter-produced type that wants to
// contribute its own attribute tree to Info/Search instead of being
// treated as an opaque leaf (spec §4.G, "objects exposing an
// __asdf_traverse__-like capability contribute their attribute tree
// instead of being opaque").
type Traversable interface {
	Traverse() map[string]any
}

// Info returns every node reachable from the document's Root, as a
// flattened depth-first list of (path, value) pairs (spec §4.G,
// "info/search: read-only tree introspection").
func (d *Document) Info() []InfoNode {
	var out []InfoNode

	walk("", d.root, &out, make(map[any]bool))

	return out
}

// Search returns every Info node whose path contains substr.
func (d *Document) Search(substr string) []InfoNode {
	var out []InfoNode

	for _, n := range d.Info() {
		if strings.Contains(n.Path, substr) {
			out = append(out, n)
		}
	}

	return out
}

func walk(path string, v any, out *[]InfoNode, seen map[any]bool) {
	if v == nil {
		return
	}

	if isPointerValue(v) {
		if seen[v] {
			return
		}

		seen[v] = true
	}

	*out = append(*out, InfoNode{Path: path, Value: v})

	switch t := v.(type) {
	case *Mapping:
		for _, k := range t.keys {
			val, _ := t.Get(k)
			walk(path+"/"+k, val, out, seen)
		}
	case *Sequence:
		for i, el := range t.values {
			walk(fmt.Sprintf("%s/%d", path, i), el, out, seen)
		}
	case Traversable:
		for k, val := range t.Traverse() {
			walk(path+"/"+k, val, out, seen)
		}
	}
}
