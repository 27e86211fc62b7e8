package extension

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/asdf-format/asdf-go/block"
	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/format"
	"github.com/asdf-format/asdf-go/yamltree"
)

// NDArrayDescriptor is the native shape of an `ndarray` tagged node
// (spec §3, "Array descriptor"). It carries array metadata and a
// reference to the bytes that back it; it does not itself interpret
// those bytes as numeric data (spec §1, Non-goals: "does not perform
// numeric computation on arrays") — that's left to the external
// collaborator that owns the concrete array type.
type NDArrayDescriptor struct {
	// Storage selects how Data is addressed on disk.
	Storage format.StorageClass
	// Source is the block index (int) for StorageInternal, the sibling
	// file URI (string) for StorageExternal, or unused for
	// StorageInline (Data is embedded directly).
	Source any
	// Datatype is the ASDF scalar type name, e.g. "int64", "float32".
	Datatype string
	// ByteOrder is "big" or "little".
	ByteOrder string
	Shape     []int
	Offset    int64
	Strides   []int64
	// Mask optionally describes a companion boolean mask array.
	Mask *NDArrayDescriptor
	// Compression selects this array's block compression, overriding
	// the document-wide setting. Zero value defers to the Context.
	Compression format.Code
	// Data holds the array's raw bytes: the full owning block's payload
	// for internal storage, or the decoded inline literal values for
	// inline storage. For a descriptor read from a file it stays nil
	// until Bytes first materializes the owning block; for external
	// storage it stays nil until the document engine loads the sibling
	// file.
	Data []byte

	store *block.Store
}

// Bytes returns the array's raw payload, materializing (and caching)
// the owning block on first call. Opening a file never touches block
// payloads; a block with an unknown compression code only fails here,
// on first materialization (spec §7, "Compression"; §8 scenario 4).
func (d *NDArrayDescriptor) Bytes() ([]byte, error) {
	if d.Data != nil {
		return d.Data, nil
	}

	if d.store == nil {
		return nil, fmt.Errorf("extension: ndarray %v has no loaded data and no owning block store", d.Source)
	}

	idx, ok := d.Source.(int)
	if !ok {
		return nil, fmt.Errorf("extension: ndarray source %v is not an internal block index", d.Source)
	}

	blk, err := d.store.At(idx)
	if err != nil {
		return nil, err
	}

	d.Data = blk.Data

	return d.Data, nil
}

// NDArrayTag is the preferred (asdf://) tag URI this module writes.
const NDArrayTag = "asdf://asdf-format.org/core/tags/ndarray-1.0.0"

// ndarrayTagPatterns matches both the preferred and legacy tag forms
// across all minor/patch versions (spec §6, "Tag URI scheme").
var ndarrayTagPatterns = []string{
	"asdf://asdf-format.org/core/tags/ndarray-*",
	"tag:stsci.edu:asdf/core/ndarray-*",
}

// NDArrayConverter is the built-in Converter for the `ndarray` tag
// (spec §3 "Array descriptor", §4.F "built-in" core tags).
type NDArrayConverter struct{}

func (NDArrayConverter) Tags() []string  { return ndarrayTagPatterns }
func (NDArrayConverter) Types() []string { return []string{"*extension.NDArrayDescriptor"} }
func (NDArrayConverter) Lazy() bool      { return false }

func (NDArrayConverter) SelectTag(obj any, candidates []string, ctx *Context) (string, bool) {
	return NDArrayTag, true
}

func (NDArrayConverter) ToYAMLTree(obj any, tag string, ctx *Context) (*yamltree.Node, error) {
	desc, ok := obj.(*NDArrayDescriptor)
	if !ok {
		return nil, fmt.Errorf("extension: ndarray converter: unexpected type %T", obj)
	}

	m := yamltree.NewMapping()
	m.SetTag(tag)

	switch storageFor(desc, ctx) {
	case format.StorageInline:
		data, err := desc.Bytes()
		if err != nil {
			return nil, err
		}

		values, err := encodeInline(desc.Datatype, data)
		if err != nil {
			return nil, err
		}

		m.Set("data", values)
	case format.StorageExternal:
		uri, ok := desc.Source.(string)
		if !ok {
			return nil, fmt.Errorf("extension: ndarray converter: external storage requires a string source")
		}

		m.Set("source", yamltree.NewString(uri))
	default:
		data, err := desc.Bytes()
		if err != nil {
			return nil, err
		}

		comp := desc.Compression
		if comp == format.CodeNone {
			comp = ctx.Compression
		}

		idx, _, err := ctx.Blocks.Add(block.Spec{Data: data, Compression: comp, NoAdopt: !ctx.SaveBase})
		if err != nil {
			return nil, fmt.Errorf("extension: ndarray converter: %w", err)
		}

		m.Set("source", yamltree.NewScalar("!!int", strconv.Itoa(idx)))
	}

	m.Set("datatype", yamltree.NewString(desc.Datatype))
	m.Set("byteorder", yamltree.NewString(desc.ByteOrder))
	m.Set("shape", intsToSequence(desc.Shape))

	if desc.Offset != 0 {
		m.Set("offset", yamltree.NewScalar("!!int", strconv.FormatInt(desc.Offset, 10)))
	}

	if len(desc.Strides) > 0 {
		m.Set("strides", int64sToSequence(desc.Strides))
	}

	if desc.Mask != nil {
		maskNode, err := NDArrayConverter{}.ToYAMLTree(desc.Mask, tag, ctx)
		if err != nil {
			return nil, err
		}

		m.Set("mask", maskNode)
	}

	return m, nil
}

func (NDArrayConverter) FromYAMLTree(node *yamltree.Node, tag string, ctx *Context) (any, error) {
	desc := &NDArrayDescriptor{}

	if dt, ok := node.Get("datatype"); ok {
		desc.Datatype = dt.Value()
	}

	if bo, ok := node.Get("byteorder"); ok {
		desc.ByteOrder = bo.Value()
	}

	if sh, ok := node.Get("shape"); ok {
		shape, err := sequenceToInts(sh)
		if err != nil {
			return nil, err
		}

		desc.Shape = shape
	}

	if off, ok := node.Get("offset"); ok {
		v, err := strconv.ParseInt(off.Value(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("extension: ndarray converter: invalid offset: %w", err)
		}

		desc.Offset = v
	}

	if st, ok := node.Get("strides"); ok {
		strides, err := sequenceToInt64s(st)
		if err != nil {
			return nil, err
		}

		desc.Strides = strides
	}

	if maskNode, ok := node.Get("mask"); ok && maskNode.IsMapping() {
		maskAny, err := NDArrayConverter{}.FromYAMLTree(maskNode, tag, ctx)
		if err != nil {
			return nil, err
		}

		desc.Mask = maskAny.(*NDArrayDescriptor)
	}

	if data, ok := node.Get("data"); ok {
		desc.Storage = format.StorageInline

		raw, err := decodeInline(desc.Datatype, data)
		if err != nil {
			return nil, err
		}

		desc.Data = raw

		return desc, nil
	}

	src, ok := node.Get("source")
	if !ok {
		return nil, fmt.Errorf("extension: ndarray converter: node has neither data nor source")
	}

	if src.Tag() == "!!str" {
		desc.Storage = format.StorageExternal
		desc.Source = src.Value()

		return desc, nil
	}

	idx, err := strconv.Atoi(src.Value())
	if err != nil {
		return nil, fmt.Errorf("%w: ndarray source %q is not an integer block index", errs.ErrArrayIndexOutOfBounds, src.Value())
	}

	if idx < 0 || idx >= ctx.Blocks.Len() {
		return nil, fmt.Errorf("%w: %d (file has %d blocks)", errs.ErrArrayIndexOutOfBounds, idx, ctx.Blocks.Len())
	}

	desc.Storage = format.StorageInternal
	desc.Source = idx
	desc.store = ctx.Blocks

	// Carry the block's on-disk compression so a later write round-trips
	// it instead of silently storing the array uncompressed.
	if h, herr := ctx.Blocks.HeaderAt(idx); herr == nil {
		desc.Compression = h.Compression
	}

	return desc, nil
}

// storageFor resolves an array's effective storage class: a document-
// wide all_array_storage override wins, then the descriptor's own
// choice, then the inline-threshold policy, defaulting to internal.
func storageFor(desc *NDArrayDescriptor, ctx *Context) format.StorageClass {
	if ctx.ArrayStorage != 0 {
		return ctx.ArrayStorage
	}

	if desc.Storage != 0 {
		return desc.Storage
	}

	if ctx.InlineThreshold > 0 && len(desc.Data) > 0 && len(desc.Data) <= ctx.InlineThreshold {
		return format.StorageInline
	}

	return format.StorageInternal
}

func intsToSequence(vals []int) *yamltree.Node {
	seq := yamltree.NewSequence()
	seq.SetStyle(yamltree.FlowStyle)

	for _, v := range vals {
		seq.Append(yamltree.NewScalar("!!int", strconv.Itoa(v)))
	}

	return seq
}

func int64sToSequence(vals []int64) *yamltree.Node {
	seq := yamltree.NewSequence()
	seq.SetStyle(yamltree.FlowStyle)

	for _, v := range vals {
		seq.Append(yamltree.NewScalar("!!int", strconv.FormatInt(v, 10)))
	}

	return seq
}

func sequenceToInts(n *yamltree.Node) ([]int, error) {
	els := n.Elements()
	out := make([]int, len(els))

	for i, e := range els {
		v, err := strconv.Atoi(e.Value())
		if err != nil {
			return nil, fmt.Errorf("extension: invalid shape element %q: %w", e.Value(), err)
		}

		out[i] = v
	}

	return out, nil
}

func sequenceToInt64s(n *yamltree.Node) ([]int64, error) {
	els := n.Elements()
	out := make([]int64, len(els))

	for i, e := range els {
		v, err := strconv.ParseInt(e.Value(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("extension: invalid strides element %q: %w", e.Value(), err)
		}

		out[i] = v
	}

	return out, nil
}

// IntegerTag is the tag used for arbitrary-precision integer literals
// that don't fit in a signed 64-bit YAML !!int (spec §4.E step 3, §8
// "Boundary behaviours").
const IntegerTag = "asdf://asdf-format.org/core/tags/integer-1.0.0"

// IntegerConverter handles *big.Int values that must round-trip through
// the `core/integer` tag instead of a bare YAML integer scalar
// (spec §4.E step 3: "integer literals exceeding signed 64-bit must be
// represented via the core/integer tag").
type IntegerConverter struct{}

func (IntegerConverter) Tags() []string  { return []string{"asdf://asdf-format.org/core/tags/integer-*"} }
func (IntegerConverter) Types() []string { return []string{"*big.Int"} }
func (IntegerConverter) Lazy() bool      { return false }

func (IntegerConverter) SelectTag(obj any, candidates []string, ctx *Context) (string, bool) {
	return IntegerTag, true
}

func (IntegerConverter) ToYAMLTree(obj any, tag string, ctx *Context) (*yamltree.Node, error) {
	bi, ok := obj.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("extension: integer converter: unexpected type %T", obj)
	}

	n := yamltree.NewString(bi.String())
	n.SetTag(tag)

	return n, nil
}

func (IntegerConverter) FromYAMLTree(node *yamltree.Node, tag string, ctx *Context) (any, error) {
	bi, ok := new(big.Int).SetString(node.Value(), 10)
	if !ok {
		return nil, fmt.Errorf("extension: integer converter: invalid literal %q", node.Value())
	}

	return bi, nil
}

// CoreExtension bundles the built-in core tags (ndarray, integer) every
// document can rely on regardless of which domain extensions are
// installed (spec §4.F names these as always-available "core" tags
// implicitly via the `asdf://asdf-format.org/core/...` namespace used
// throughout spec §3/§6).
func CoreExtension() *Extension {
	return &Extension{
		Name:                "asdf-format.org/core",
		Version:             format.Version{Major: 1, Minor: 0, Patch: 0},
		StandardRequirement: format.StandardVersionEarliest,
		Converters:          []Converter{NDArrayConverter{}, IntegerConverter{}},
		Tags: []TagDefinition{
			{URI: NDArrayTag},
			{URI: IntegerTag},
		},
		TagHandles: map[string]string{
			"!core!": "asdf://asdf-format.org/core/tags/",
		},
	}
}
