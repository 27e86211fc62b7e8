package schema

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/format"
	"github.com/asdf-format/asdf-go/yamltree"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// TagSchemaResolver looks up the schema URI(s) registered for a tag URI
// (spec §4.E step 1: "look up the schema URI via the tag registry (may
// resolve to multiple schemas combined with implicit allOf)"). The
// document engine supplies this from extension.Registry so schema never
// has to import extension.
type TagSchemaResolver func(tagURI string) []string

// Options configures one Validate call.
type Options struct {
	// StandardVersion governs mapping-key restrictions and the
	// default-filling policy (spec §4.E step 4, §9).
	StandardVersion format.Version
	// DocumentSchemaURI, if set, is validated against the whole tree in
	// addition to tag-scoped validation (spec §4.E, "Custom top-level
	// schema").
	DocumentSchemaURI string
	// TagSchemas resolves a node's tag URI to zero or more schema URIs.
	TagSchemas TagSchemaResolver
}

// Validator runs the validation pipeline of spec §4.E against tagged
// trees, compiling and caching schemas with
// github.com/santhosh-tekuri/jsonschema/v6.
type Validator struct {
	registry *Registry
	compiler *jsonschema.Compiler
	schemas  map[string]*jsonschema.Schema
}

// NewValidator creates a Validator whose schema fetches go through
// registry.
func NewValidator(registry *Registry) *Validator {
	c := jsonschema.NewCompiler()
	c.UseLoader(&registryLoader{registry: registry})

	return &Validator{registry: registry, compiler: c, schemas: make(map[string]*jsonschema.Schema)}
}

func (v *Validator) compile(uri string) (*jsonschema.Schema, error) {
	if s, ok := v.schemas[uri]; ok {
		return s, nil
	}

	s, err := v.compiler.Compile(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: compiling %s: %v", errs.ErrSchemaValidation, uri, err)
	}

	v.schemas[uri] = s

	return s, nil
}

// Validate runs the full pipeline (spec §4.E, numbered steps) against
// root and returns every violation joined into one error (nil if none),
// each wrapped with its JSON-pointer path via errs.WithPath.
func (v *Validator) Validate(root *yamltree.Node, opts Options) error {
	var problems []error

	if err := yamltree.ValidateKeys(root, opts.StandardVersion); err != nil {
		problems = append(problems, err)
	}

	if opts.DocumentSchemaURI != "" {
		if err := v.validateNode(root, "", opts.DocumentSchemaURI); err != nil {
			problems = append(problems, err)
		}
	}

	v.walkTagScoped(root, "", opts, &problems, make(map[*yaml.Node]bool))

	if opts.StandardVersion.AtLeast(format.StandardVersion1_6) {
		v.checkLargeLiterals(root, "", make(map[*yaml.Node]bool), &problems)
	}

	return errors.Join(problems...)
}

func (v *Validator) validateNode(n *yamltree.Node, path, schemaURI string) error {
	s, err := v.compile(schemaURI)
	if err != nil {
		return errs.WithPath(path, err)
	}

	if err := s.Validate(ToJSONValue(n)); err != nil {
		return errs.WithPath(path, fmt.Errorf("%w: %v", errs.ErrSchemaValidation, err))
	}

	return nil
}

// walkTagScoped applies each tagged node's schema(s) at the point the
// node is encountered, not only at the document root (spec §4.E step 2),
// by validating the node itself and then recursing into its children so
// nested tags are still reached inside an already-validated parent.
func (v *Validator) walkTagScoped(n *yamltree.Node, path string, opts Options, problems *[]error, visited map[*yaml.Node]bool) {
	if n == nil || n.Kind() == yamltree.AliasKind {
		return
	}

	raw := n.Raw()
	if visited[raw] {
		return
	}

	visited[raw] = true

	if tag := n.Tag(); tag != "" && !isBuiltinTag(tag) && opts.TagSchemas != nil {
		for _, uri := range opts.TagSchemas(tag) {
			if err := v.validateNode(n, path, uri); err != nil {
				*problems = append(*problems, err)
			}
		}
	}

	switch n.Kind() {
	case yamltree.MappingKind:
		for _, e := range n.Entries() {
			v.walkTagScoped(e.Value, path+"/"+e.Key.Value(), opts, problems, visited)
		}
	case yamltree.SequenceKind:
		for i, e := range n.Elements() {
			v.walkTagScoped(e, fmt.Sprintf("%s/%d", path, i), opts, problems, visited)
		}
	}
}

// IsBuiltinTag reports whether tag is one of YAML's own core scalar/
// collection tags rather than a converter-owning tag URI. The document
// engine reuses this to decide whether a node needs a converter lookup
// at all (spec §4.G step 6).
func IsBuiltinTag(tag string) bool { return isBuiltinTag(tag) }

func isBuiltinTag(tag string) bool {
	switch tag {
	case "!!map", "!!seq", "!!str", "!!int", "!!float", "!!bool", "!!null", "!!binary":
		return true
	default:
		return false
	}
}

// checkLargeLiterals enforces spec §4.E step 3: an integer literal
// outside signed 64-bit must be represented via the arbitrary-precision
// integer converter (which replaces the node's tag, so it no longer
// reads as a bare "!!int" scalar), under standard >= 1.6 (the caller
// only invokes this under that condition; under <= 1.5 the same
// condition is a warning the document engine collects separately via
// LargeLiteralWarnings).
func (v *Validator) checkLargeLiterals(n *yamltree.Node, path string, visited map[*yaml.Node]bool, problems *[]error) {
	for _, violation := range findLargeLiterals(n, path, visited) {
		*problems = append(*problems, violation)
	}
}

// LargeLiteralWarnings reports the same violations as typed warnings,
// for the standard <= 1.5 policy where they don't fail validation
// (spec §8, "Boundary behaviours").
func LargeLiteralWarnings(n *yamltree.Node) []errs.Warning {
	violations := findLargeLiterals(n, "", make(map[*yaml.Node]bool))

	out := make([]errs.Warning, 0, len(violations))
	for _, err := range violations {
		var pe *errs.PointerError

		path := ""
		if errors.As(err, &pe) {
			path = pe.Path
		}

		out = append(out, errs.Warning{Kind: errs.WarningVersionMismatch, Path: path, Message: err.Error()})
	}

	return out
}

func findLargeLiterals(n *yamltree.Node, path string, visited map[*yaml.Node]bool) []error {
	if n == nil || n.Kind() == yamltree.AliasKind {
		return nil
	}

	raw := n.Raw()
	if visited[raw] {
		return nil
	}

	visited[raw] = true

	var out []error

	// yaml.v3 resolves a plain integer too large for 64 bits to "!!float",
	// so a "!!float" scalar whose text is a decimal integer counts too.
	_, decimalInt := new(big.Int).SetString(n.Value(), 10)
	if n.Kind() == yamltree.ScalarKind && (n.Tag() == "!!int" || n.Tag() == "!!float" && decimalInt) {
		if _, err := parseInt64(n.Value()); err != nil {
			out = append(out, errs.WithPath(path, fmt.Errorf("%w: %q", errs.ErrIntegerLiteralTooLarge, n.Value())))
		}
	}

	switch n.Kind() {
	case yamltree.MappingKind:
		for _, e := range n.Entries() {
			out = append(out, findLargeLiterals(e.Value, path+"/"+e.Key.Value(), visited)...)
		}
	case yamltree.SequenceKind:
		for i, e := range n.Elements() {
			out = append(out, findLargeLiterals(e, fmt.Sprintf("%s/%d", path, i), visited)...)
		}
	}

	return out
}

func parseInt64(s string) (int64, error) {
	bi, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return 0, fmt.Errorf("not an integer literal")
	}

	if !bi.IsInt64() {
		return 0, fmt.Errorf("exceeds signed 64-bit range")
	}

	return bi.Int64(), nil
}
