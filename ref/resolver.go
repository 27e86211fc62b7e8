package ref

import (
	"fmt"
	"strings"

	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/yamltree"
	"github.com/go-openapi/jsonpointer"
	"github.com/go-openapi/jsonreference"
	"gopkg.in/yaml.v3"
)

// Loader fetches and parses the external document identified by an
// absolute URI (no fragment), the collaborator the document engine
// supplies so this package never does byte I/O itself (spec §4.D).
type Loader func(uri string) (*yamltree.Node, error)

// Resolver resolves $ref nodes against a root document and whatever
// external documents those references reach, memoizing by
// absolute-URI+pointer (spec §4.D, "Cycles ... detected by base-URI +
// pointer memoization").
type Resolver struct {
	rootURI string
	loader  Loader
	docs    map[string]*yamltree.Node
	cache   map[string]*yamltree.Node
}

// NewResolver creates a Resolver for a document whose own location is
// rootURI (used as the base for relative $ref values) and whose root
// tagged tree is rootTree.
func NewResolver(rootURI string, rootTree *yamltree.Node, loader Loader) *Resolver {
	return &Resolver{
		rootURI: rootURI,
		loader:  loader,
		docs:    map[string]*yamltree.Node{rootURI: rootTree},
		cache:   make(map[string]*yamltree.Node),
	}
}

// IsRef reports whether n is a {"$ref": "..."} node, and its raw value
// if so.
func IsRef(n *yamltree.Node) (string, bool) {
	if n == nil || !n.IsMapping() || n.Len() != 1 {
		return "", false
	}

	v, ok := n.Get("$ref")
	if !ok || !v.IsScalar() {
		return "", false
	}

	return v.Value(), true
}

// splitRef resolves refStr against baseURI into an absolute document URI
// and a bare JSON pointer, using jsonreference's URI+fragment composition
// (the same operation go-openapi/spec uses to expand relative $refs in a
// Swagger document).
func splitRef(baseURI, refStr string) (absURI, pointer string, err error) {
	child, err := jsonreference.New(refStr)
	if err != nil {
		return "", "", fmt.Errorf("ref: invalid $ref %q: %w", refStr, err)
	}

	if child.HasFragmentOnly {
		ptr := child.GetPointer()
		return baseURI, ptr.String(), nil
	}

	if baseURI == "" {
		u := child.GetURL()
		frag := u.Fragment
		bare := *u
		bare.Fragment = ""

		return bare.String(), frag, nil
	}

	base, err := jsonreference.New(baseURI)
	if err != nil {
		return "", "", fmt.Errorf("ref: invalid base URI %q: %w", baseURI, err)
	}

	combined, err := base.Inherits(child)
	if err != nil {
		return "", "", fmt.Errorf("ref: resolve %q against base %q: %w", refStr, baseURI, err)
	}

	u := combined.GetURL()
	frag := u.Fragment
	bare := *u
	bare.Fragment = ""

	// url.ResolveReference roots a merged path at "/" even when the base
	// is itself a relative path; keep the result relative in that case.
	if bu := base.GetURL(); bu.Scheme == "" && bu.Host == "" && !strings.HasPrefix(bu.Path, "/") {
		bare.Path = strings.TrimPrefix(bare.Path, "/")
	}

	return bare.String(), frag, nil
}

func (r *Resolver) doc(absURI string) (*yamltree.Node, error) {
	if d, ok := r.docs[absURI]; ok {
		return d, nil
	}

	if r.loader == nil {
		return nil, fmt.Errorf("%w: no loader configured for external document %q", errs.ErrUnresolvedReference, absURI)
	}

	d, err := r.loader(absURI)
	if err != nil {
		return nil, fmt.Errorf("%w: loading %q: %v", errs.ErrUnresolvedReference, absURI, err)
	}

	r.docs[absURI] = d

	return d, nil
}

// Resolve dereferences the $ref value refStr, found inside a document
// whose base URI is baseURI, to the node its pointer addresses. Results
// are memoized by absolute-URI+pointer, so a diamond of references to
// the same target resolves to the identical *yamltree.Node.
func (r *Resolver) Resolve(baseURI, refStr string) (*yamltree.Node, error) {
	absURI, pointer, err := splitRef(baseURI, refStr)
	if err != nil {
		return nil, err
	}

	key := absURI + "#" + pointer
	if n, ok := r.cache[key]; ok {
		return n, nil
	}

	doc, err := r.doc(absURI)
	if err != nil {
		return nil, err
	}

	ptr, err := jsonpointer.New(pointer)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pointer %q: %v", errs.ErrUnresolvedReference, pointer, err)
	}

	val, _, err := ptr.Get(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s#%s: %v", errs.ErrUnresolvedReference, absURI, pointer, err)
	}

	node, ok := val.(*yamltree.Node)
	if !ok {
		return nil, fmt.Errorf("%w: %s#%s did not resolve to a tree node", errs.ErrUnresolvedReference, absURI, pointer)
	}

	r.cache[key] = node

	return node, nil
}

// Proxy stands in for a $ref node found by FindReferences: it
// dereferences on first access via Deref, but Node always returns the
// original, untouched $ref mapping so a later write re-emits it as a
// reference rather than inlined content (spec §4.D, "find_references").
type Proxy struct {
	resolver *Resolver
	baseURI  string
	refStr   string
	original *yamltree.Node
}

// Deref resolves the proxy's target, loading and caching the external
// document the first time it's needed.
func (p *Proxy) Deref() (*yamltree.Node, error) {
	return p.resolver.Resolve(p.baseURI, p.refStr)
}

// Node returns the original $ref mapping node.
func (p *Proxy) Node() *yamltree.Node { return p.original }

// Table maps a $ref mapping's underlying yaml node to the Proxy that
// stands in for it, so later passes can recognize "this tagged node was
// actually a reference" without re-walking the tree.
type Table map[*yaml.Node]*Proxy

// FindReferences walks root and returns a Table of every $ref node
// found, without resolving any of them (spec §4.D, "find_references":
// "loads external documents lazily, replacing each $ref node with a
// proxy that dereferences on access"). $ref nodes are not themselves
// descended into — a reference's own body is just its URI string.
func FindReferences(resolver *Resolver, root *yamltree.Node) Table {
	table := make(Table)
	findReferences(resolver, root, resolver.rootURI, table, make(map[*yaml.Node]bool))

	return table
}

func findReferences(resolver *Resolver, n *yamltree.Node, baseURI string, table Table, seen map[*yaml.Node]bool) {
	if n == nil || n.IsAlias() {
		return
	}

	raw := n.Raw()
	if seen[raw] {
		return
	}

	seen[raw] = true

	if refStr, ok := IsRef(n); ok {
		table[raw] = &Proxy{resolver: resolver, baseURI: baseURI, refStr: refStr, original: n}
		return
	}

	switch n.Kind() {
	case yamltree.MappingKind:
		for _, e := range n.Entries() {
			findReferences(resolver, e.Value, baseURI, table, seen)
		}
	case yamltree.SequenceKind:
		for _, e := range n.Elements() {
			findReferences(resolver, e, baseURI, table, seen)
		}
	}
}

// ResolveReferences eagerly inlines every reachable $ref in root,
// mutating it in place so the result is standalone (spec §4.D,
// "resolve_references": "the written file is then standalone"). A chain
// of references collapses fully — the target of a $ref is itself
// resolved before being spliced in. A cycle among eagerly-followed
// references surfaces as errs.ErrReferenceCycle (spec §4.D, last
// sentence).
func (r *Resolver) ResolveReferences(root *yamltree.Node) error {
	return r.inline(root, r.rootURI, make(map[string]bool))
}

func (r *Resolver) inline(n *yamltree.Node, baseURI string, expanding map[string]bool) error {
	if n == nil || n.IsAlias() {
		return nil
	}

	if refStr, ok := IsRef(n); ok {
		absURI, pointer, err := splitRef(baseURI, refStr)
		if err != nil {
			return err
		}

		key := absURI + "#" + pointer
		if expanding[key] {
			return fmt.Errorf("%w: %s", errs.ErrReferenceCycle, key)
		}

		expanding[key] = true
		defer delete(expanding, key)

		resolved, err := r.Resolve(baseURI, refStr)
		if err != nil {
			return err
		}

		if err := r.inline(resolved, absURI, expanding); err != nil {
			return err
		}

		*n.Raw() = *resolved.Raw()

		return nil
	}

	switch n.Kind() {
	case yamltree.MappingKind:
		for _, e := range n.Entries() {
			if err := r.inline(e.Value, baseURI, expanding); err != nil {
				return err
			}
		}
	case yamltree.SequenceKind:
		for _, e := range n.Elements() {
			if err := r.inline(e, baseURI, expanding); err != nil {
				return err
			}
		}
	}

	return nil
}
