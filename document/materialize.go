package document

import (
	"fmt"

	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/extension"
	"github.com/asdf-format/asdf-go/ref"
	"github.com/asdf-format/asdf-go/schema"
	"github.com/asdf-format/asdf-go/yamltree"
	"gopkg.in/yaml.v3"
)

// materializer runs the tagged→native conversion pass of spec §4.G step
// 6: a single traversal that resolves every node exactly once (so an
// alias yields the identical native value its anchor produced),
// degrades an unrecognized tag to its raw node with a typed warning,
// and defers cyclic converter-owned objects through
// extension.Context.Defer for the caller to drain once the traversal
// completes.
type materializer struct {
	registry *extension.Registry
	ctx      *extension.Context
	resolved map[*yaml.Node]any
	warnings *[]errs.Warning
	// refs holds the lazy $ref proxy table FindReferences built, if Open
	// is running in its default lazy-reference mode (nil when eager
	// resolution already inlined every reference before materialization
	// began, spec §4.D).
	refs ref.Table
}

func newMaterializer(registry *extension.Registry, ctx *extension.Context, warnings *[]errs.Warning, refs ref.Table) *materializer {
	m := &materializer{
		registry: registry,
		ctx:      ctx,
		resolved: make(map[*yaml.Node]any),
		warnings: warnings,
		refs:     refs,
	}

	ctx.SetChildHandlers(m.convert, nil)

	return m
}

func (m *materializer) convert(n *yamltree.Node) (any, error) {
	if n == nil {
		return nil, nil
	}

	if n.IsAlias() {
		return m.convert(n.ResolveAlias())
	}

	raw := n.Raw()
	if v, ok := m.resolved[raw]; ok {
		return v, nil
	}

	if m.refs != nil {
		if p, ok := m.refs[raw]; ok {
			m.resolved[raw] = p
			return p, nil
		}
	}

	tag := n.Tag()
	if tag != "" && !schema.IsBuiltinTag(tag) {
		return m.convertTagged(n, raw, tag)
	}

	switch n.Kind() {
	case yamltree.MappingKind:
		return m.convertMapping(n, raw)
	case yamltree.SequenceKind:
		return m.convertSequence(n, raw)
	default:
		v := schema.ScalarValue(n)
		m.resolved[raw] = v

		return v, nil
	}
}

func (m *materializer) convertTagged(n *yamltree.Node, raw *yaml.Node, tag string) (any, error) {
	conv, warn, ok := m.registry.ConverterForTag(tag)
	if warn != nil {
		*m.warnings = append(*m.warnings, *warn)
	}

	if !ok {
		// Missing or incompatible extension: degrade to the raw tagged
		// node (spec §4.G, "Failure semantics": "the node is returned as
		// its raw tagged form ... write of such a node round-trips it
		// unchanged").
		m.resolved[raw] = n
		return n, nil
	}

	if dc, isDeferred := conv.(extension.DeferredConverter); isDeferred {
		shell, resume, err := dc.FromYAMLTreeDeferred(n, tag, m.ctx)
		if err != nil {
			return nil, fmt.Errorf("document: %s: %w", tag, err)
		}

		m.resolved[raw] = shell
		m.ctx.Defer(resume)

		return shell, nil
	}

	val, err := conv.FromYAMLTree(n, tag, m.ctx)
	if err != nil {
		return nil, fmt.Errorf("document: %s: %w", tag, err)
	}

	m.resolved[raw] = val

	return val, nil
}

// convertMapping registers the shell Mapping before filling it, so a
// mapping that (via an anchor/alias) refers to itself resolves to the
// same pointer instead of recursing forever.
func (m *materializer) convertMapping(n *yamltree.Node, raw *yaml.Node) (any, error) {
	out := NewMapping()
	m.resolved[raw] = out

	for _, e := range n.Entries() {
		v, err := m.convert(e.Value)
		if err != nil {
			return nil, err
		}

		out.Set(e.Key.Value(), v)
	}

	return out, nil
}

func (m *materializer) convertSequence(n *yamltree.Node, raw *yaml.Node) (any, error) {
	out := NewSequence()
	m.resolved[raw] = out

	for _, e := range n.Elements() {
		v, err := m.convert(e)
		if err != nil {
			return nil, err
		}

		out.Append(v)
	}

	return out, nil
}
