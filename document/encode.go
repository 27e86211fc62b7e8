package document

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/asdf-format/asdf-go/extension"
	"github.com/asdf-format/asdf-go/ref"
	"github.com/asdf-format/asdf-go/yamltree"
	"gopkg.in/yaml.v3"
)

// isPointerValue reports whether v is a pointer-shaped Go value, the
// kind of thing that can legitimately be shared by two places in a tree
// (spec §8, "Anchor/alias identity"). Plain scalars (string, int, bool,
// ...) are never anchored: re-emitting two equal scalars as an alias
// pair would be correct but pointless.
func isPointerValue(v any) bool {
	if v == nil {
		return false
	}

	return reflect.ValueOf(v).Kind() == reflect.Pointer
}

// encoder runs the native→tagged conversion pass of spec §4.G's write
// step 1, bottom-up through the extension registry. Every pointer-shaped
// value is registered (against a placeholder node) before its own
// encoding recurses, so a value reached again — whether by sharing or by
// a converter-owned cycle — anchors the first occurrence and emits an
// alias, round-tripping the object-identity sharing Open's materializer
// exposed on read (spec §8, anchor/alias identity).
type encoder struct {
	registry *extension.Registry
	ctx      *extension.Context
	emitted  map[any]*yamltree.Node
	nextID   int

	// usedExtensions collects every Extension whose converter fired, for
	// the write pipeline to record in history/extensions (spec §4.G
	// step 3).
	usedExtensions map[string]*extension.Extension
}

func newEncoder(registry *extension.Registry, ctx *extension.Context) *encoder {
	e := &encoder{
		registry:       registry,
		ctx:            ctx,
		emitted:        make(map[any]*yamltree.Node),
		usedExtensions: make(map[string]*extension.Extension),
	}

	ctx.SetChildHandlers(nil, e.encode)

	return e
}

func (e *encoder) encode(v any) (*yamltree.Node, error) {
	if v == nil {
		return yamltree.NewNull(), nil
	}

	var placeholder *yamltree.Node

	if isPointerValue(v) {
		if existing, ok := e.emitted[v]; ok {
			if existing.Anchor() == "" {
				existing.SetAnchor(e.anchorName())
			}

			return aliasTo(existing), nil
		}

		// Registered before recursing so a cycle back to v aliases the
		// placeholder; the real content is copied in below, ahead of
		// serialization.
		placeholder = yamltree.FromRaw(&yaml.Node{})
		e.emitted[v] = placeholder
	}

	node, err := e.encodeValue(v)
	if err != nil {
		return nil, err
	}

	if placeholder != nil {
		// A cycle back to v may already have anchored the placeholder;
		// keep that anchor across the content copy.
		anchor := placeholder.Anchor()
		*placeholder.Raw() = *node.Raw()

		if anchor != "" {
			placeholder.SetAnchor(anchor)
		}

		return placeholder, nil
	}

	return node, nil
}

// aliasTo builds an alias node referencing target, which must already
// carry an anchor: the emitter writes the alias by that name.
func aliasTo(target *yamltree.Node) *yamltree.Node {
	return yamltree.FromRaw(&yaml.Node{Kind: yaml.AliasNode, Alias: target.Raw(), Value: target.Anchor()})
}

func (e *encoder) anchorName() string {
	e.nextID++
	return fmt.Sprintf("id%03d", e.nextID)
}

func (e *encoder) encodeValue(v any) (*yamltree.Node, error) {
	switch t := v.(type) {
	case *yamltree.Node:
		// A node that degraded to its raw tagged form on read (no
		// converter available) round-trips unchanged (spec §4.G,
		// "Failure semantics").
		return t, nil
	case *ref.Proxy:
		// A lazily-resolved $ref round-trips as the reference itself,
		// not its dereferenced target (spec §4.D, "find_references").
		return t.Node(), nil
	case *Mapping:
		return e.encodeMapping(t)
	case *Sequence:
		return e.encodeSequence(t)
	case string:
		return yamltree.NewString(t), nil
	case bool:
		return yamltree.NewScalar("!!bool", strconv.FormatBool(t)), nil
	case int:
		return yamltree.NewScalar("!!int", strconv.Itoa(t)), nil
	case int64:
		return yamltree.NewScalar("!!int", strconv.FormatInt(t, 10)), nil
	case float64:
		return yamltree.NewScalar("!!float", strconv.FormatFloat(t, 'g', -1, 64)), nil
	default:
		return e.encodeViaConverter(v)
	}
}

func (e *encoder) encodeMapping(t *Mapping) (*yamltree.Node, error) {
	m := yamltree.NewMapping()

	for _, k := range t.keys {
		val, _ := t.Get(k)

		child, err := e.encode(val)
		if err != nil {
			return nil, err
		}

		m.Set(k, child)
	}

	return m, nil
}

func (e *encoder) encodeSequence(t *Sequence) (*yamltree.Node, error) {
	s := yamltree.NewSequence()

	for _, el := range t.values {
		child, err := e.encode(el)
		if err != nil {
			return nil, err
		}

		s.Append(child)
	}

	return s, nil
}

func (e *encoder) encodeViaConverter(v any) (*yamltree.Node, error) {
	typeName := fmt.Sprintf("%T", v)

	conv, tag, err := e.registry.ConverterForType(v, typeName, e.ctx)
	if err != nil {
		return nil, err
	}

	node, err := conv.ToYAMLTree(v, tag, e.ctx)
	if err != nil {
		return nil, err
	}

	if ext, ok := e.registry.ExtensionFor(tag); ok {
		e.usedExtensions[ext.Name] = ext
	}

	return node, nil
}
