package document

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/asdf-format/asdf-go/block"
	"github.com/asdf-format/asdf-go/endian"
	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/extension"
	"github.com/asdf-format/asdf-go/format"
	"github.com/asdf-format/asdf-go/ioadapter"
	"github.com/asdf-format/asdf-go/yamltree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coreRegistry(t *testing.T) *extension.Registry {
	t.Helper()

	reg := extension.NewRegistry()
	require.NoError(t, reg.Register(extension.CoreExtension()))

	return reg
}

func int64Payload(vals ...int64) []byte {
	e := endian.GetBigEndianEngine()

	out := make([]byte, 0, len(vals)*8)
	for _, v := range vals {
		out = e.AppendUint64(out, uint64(v))
	}

	return out
}

func arange(n int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i)
	}

	return out
}

func squares(n int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i) * int64(i)
	}

	return out
}

func intArray(data []byte) *extension.NDArrayDescriptor {
	return &extension.NDArrayDescriptor{
		Datatype:  "int64",
		ByteOrder: "big",
		Shape:     []int{len(data) / 8},
		Data:      data,
	}
}

func writeTree(t *testing.T, reg *extension.Registry, tree *Mapping, opts ...WriteOption) []byte {
	t.Helper()

	doc, err := New(append([]WriteOption{WithExtensions(reg)}, opts...)...)
	require.NoError(t, err)

	doc.SetRoot(tree)

	sink := ioadapter.NewMemorySource(nil)
	require.NoError(t, doc.Write(sink))

	return sink.Bytes()
}

func reopen(t *testing.T, reg *extension.Registry, raw []byte, opts ...OpenOption) *Document {
	t.Helper()

	doc, err := Open(ioadapter.NewMemorySource(raw), append([]OpenOption{WithExtensions(reg)}, opts...)...)
	require.NoError(t, err)

	return doc
}

func mustArray(t *testing.T, m *Mapping, key string) *extension.NDArrayDescriptor {
	t.Helper()

	v, ok := m.Get(key)
	require.True(t, ok, "missing key %q", key)

	desc, ok := v.(*extension.NDArrayDescriptor)
	require.True(t, ok, "%q is %T, want ndarray descriptor", key, v)

	return desc
}

// Scenario 1 of the round-trip properties: a tree with three distinct
// arrays writes exactly three internal blocks, a block index, and keys
// in insertion order, with array sources numbered in first-use order.
func TestWrite_ThreeArraysThreeBlocksAndIndex(t *testing.T) {
	reg := coreRegistry(t)

	seq := int64Payload(arange(100)...)
	sq := int64Payload(squares(100)...)
	rnd := int64Payload(7, 3, 5, 1, 9)

	powers := NewMapping()
	powers.Set("squares", intArray(sq))

	tree := NewMapping()
	tree.Set("foo", 42)
	tree.Set("name", "Monty")
	tree.Set("powers", powers)
	tree.Set("random", intArray(rnd))
	tree.Set("sequence", intArray(seq))

	raw := writeTree(t, reg, tree)

	assert.True(t, bytes.HasPrefix(raw, []byte("#ASDF 1.1.0\n#ASDF_STANDARD 1.6.0\n")))
	assert.Equal(t, 3, bytes.Count(raw, block.Magic[:]))
	assert.Contains(t, string(raw), block.IndexMagic)

	doc := reopen(t, reg, raw)
	defer doc.Close()

	root := doc.Root().(*Mapping)
	assert.Equal(t, []string{"foo", "name", "powers", "random", "sequence", "history"}, root.Keys())

	foo, _ := root.Get("foo")
	assert.Equal(t, int64(42), foo)

	name, _ := root.Get("name")
	assert.Equal(t, "Monty", name)

	// Blocks number in tree-visitation order: powers/squares first, then
	// random, then sequence.
	gotSquares := mustArray(t, root.Get1(t, "powers"), "squares")
	assert.Equal(t, 0, gotSquares.Source)

	gotRandom := mustArray(t, root, "random")
	assert.Equal(t, 1, gotRandom.Source)

	gotSequence := mustArray(t, root, "sequence")
	assert.Equal(t, 2, gotSequence.Source)

	data, err := gotSequence.Bytes()
	require.NoError(t, err)
	assert.Equal(t, seq, data)
}

// Get1 returns the nested Mapping at key, failing the test otherwise.
func (m *Mapping) Get1(t *testing.T, key string) *Mapping {
	t.Helper()

	v, ok := m.Get(key)
	require.True(t, ok)

	nested, ok := v.(*Mapping)
	require.True(t, ok)

	return nested
}

// Scenario 2: two views over one base buffer share one written block.
func TestWrite_ViewsShareOneBlock(t *testing.T) {
	reg := coreRegistry(t)

	base := make([]byte, 20)
	for i := range base {
		base[i] = byte(i)
	}

	a := &extension.NDArrayDescriptor{
		Datatype: "int8", ByteOrder: "big", Shape: []int{10}, Offset: 0, Data: base,
	}
	b := &extension.NDArrayDescriptor{
		Datatype: "int8", ByteOrder: "big", Shape: []int{10}, Offset: 10, Data: base,
	}

	tree := NewMapping()
	tree.Set("a", a)
	tree.Set("b", b)

	raw := writeTree(t, reg, tree)
	assert.Equal(t, 1, bytes.Count(raw, block.Magic[:]), "shared base buffer must write one block")

	doc := reopen(t, reg, raw)
	defer doc.Close()

	root := doc.Root().(*Mapping)

	gotA := mustArray(t, root, "a")
	gotB := mustArray(t, root, "b")
	assert.Equal(t, 0, gotA.Source)
	assert.Equal(t, 0, gotB.Source)
	assert.Equal(t, int64(0), gotA.Offset)
	assert.Equal(t, int64(10), gotB.Offset)

	data, err := gotA.Bytes()
	require.NoError(t, err)
	assert.Equal(t, base, data, "the block owns the full base buffer")
}

func TestWrite_SaveBaseDisabledWritesTwoBlocks(t *testing.T) {
	reg := coreRegistry(t)

	base := make([]byte, 20)

	tree := NewMapping()
	tree.Set("a", &extension.NDArrayDescriptor{Datatype: "int8", ByteOrder: "big", Shape: []int{20}, Data: base})
	tree.Set("b", &extension.NDArrayDescriptor{Datatype: "int8", ByteOrder: "big", Shape: []int{20}, Data: base})

	doc, err := New(WithExtensions(reg), WithArraySaveBase(false))
	require.NoError(t, err)
	doc.SetRoot(tree)

	sink := ioadapter.NewMemorySource(nil)
	require.NoError(t, doc.Write(sink))

	assert.Equal(t, 2, bytes.Count(sink.Bytes(), block.Magic[:]))
}

// fraction is a converter-owned type whose Inverse field forms a
// two-object reference cycle (scenario 3).
type fraction struct {
	Num, Den int64
	Inverse  *fraction
}

const fractionTag = "asdf://example.com/tags/fraction-1.0.0"

type fractionConverter struct{}

func (fractionConverter) Tags() []string  { return []string{"asdf://example.com/tags/fraction-*"} }
func (fractionConverter) Types() []string { return []string{"*document.fraction"} }
func (fractionConverter) Lazy() bool      { return true }

func (fractionConverter) SelectTag(obj any, candidates []string, ctx *extension.Context) (string, bool) {
	return fractionTag, true
}

func (fractionConverter) ToYAMLTree(obj any, tag string, ctx *extension.Context) (*yamltree.Node, error) {
	f := obj.(*fraction)

	m := yamltree.NewMapping()
	m.SetTag(tag)
	m.Set("num", yamltree.NewScalar("!!int", strconv.FormatInt(f.Num, 10)))
	m.Set("den", yamltree.NewScalar("!!int", strconv.FormatInt(f.Den, 10)))

	if f.Inverse != nil {
		child, err := ctx.EncodeChild(f.Inverse)
		if err != nil {
			return nil, err
		}

		m.Set("inverse", child)
	}

	return m, nil
}

func (c fractionConverter) FromYAMLTree(node *yamltree.Node, tag string, ctx *extension.Context) (any, error) {
	shell, resume, err := c.FromYAMLTreeDeferred(node, tag, ctx)
	if err != nil {
		return nil, err
	}

	return shell, resume()
}

func (fractionConverter) FromYAMLTreeDeferred(node *yamltree.Node, tag string, ctx *extension.Context) (any, func() error, error) {
	shell := &fraction{}

	if num, ok := node.Get("num"); ok {
		v, err := strconv.ParseInt(num.Value(), 10, 64)
		if err != nil {
			return nil, nil, err
		}

		shell.Num = v
	}

	if den, ok := node.Get("den"); ok {
		v, err := strconv.ParseInt(den.Value(), 10, 64)
		if err != nil {
			return nil, nil, err
		}

		shell.Den = v
	}

	resume := func() error {
		inv, ok := node.Get("inverse")
		if !ok {
			return nil
		}

		v, err := ctx.ConvertChild(inv)
		if err != nil {
			return err
		}

		shell.Inverse = v.(*fraction)

		return nil
	}

	return shell, resume, nil
}

func fractionRegistry(t *testing.T) *extension.Registry {
	reg := coreRegistry(t)

	require.NoError(t, reg.Register(&extension.Extension{
		Name:       "example.com/fractions",
		Version:    format.Version{Major: 1, Minor: 0, Patch: 0},
		Converters: []extension.Converter{fractionConverter{}},
		Tags:       []extension.TagDefinition{{URI: fractionTag}},
	}))

	return reg
}

// Scenario 3: a two-object cycle round-trips through anchors/aliases
// with object identity preserved.
func TestRoundTrip_CyclicObjectsPreserveIdentity(t *testing.T) {
	reg := fractionRegistry(t)

	f1 := &fraction{Num: 3, Den: 5}
	f2 := &fraction{Num: 5, Den: 3}
	f1.Inverse = f2
	f2.Inverse = f1

	tree := NewMapping()
	tree.Set("f1", f1)
	tree.Set("f2", f2)

	raw := writeTree(t, reg, tree)

	text := string(raw)
	assert.Contains(t, text, "&id", "cycle must emit an anchor")
	assert.Contains(t, text, "*id", "cycle must emit an alias")

	doc := reopen(t, reg, raw)
	defer doc.Close()

	root := doc.Root().(*Mapping)

	g1v, _ := root.Get("f1")
	g2v, _ := root.Get("f2")

	g1 := g1v.(*fraction)
	g2 := g2v.(*fraction)

	assert.Equal(t, int64(3), g1.Num)
	assert.Same(t, g2, g1.Inverse)
	assert.Same(t, g1, g2.Inverse)
	assert.Same(t, g1, g1.Inverse.Inverse)
}

// Scenario 4: an unknown compression code leaves the open unharmed and
// fails only when the affected array's payload is first materialized.
func TestOpen_UnknownCompressionFailsOnMaterialize(t *testing.T) {
	reg := coreRegistry(t)

	tree := NewMapping()
	tree.Set("arr", intArray(int64Payload(1, 2, 3)))

	raw := writeTree(t, reg, tree)

	// Rewrite the block's compression code in place. The checksum covers
	// the payload bytes, which don't change.
	at := bytes.Index(raw, block.Magic[:])
	require.GreaterOrEqual(t, at, 0)
	copy(raw[at+10:at+14], "fake")

	doc := reopen(t, reg, raw)
	defer doc.Close()

	desc := mustArray(t, doc.Root().(*Mapping), "arr")

	_, err := desc.Bytes()
	assert.ErrorIs(t, err, errs.ErrUnknownCompression)
}

// Scenario 5: a block index pointing past end-of-file degrades to a
// typed warning plus linear-scan fallback, producing an identical tree.
func TestOpen_InvalidBlockIndexFallsBackToScan(t *testing.T) {
	reg := coreRegistry(t)

	payload := int64Payload(arange(10)...)

	tree := NewMapping()
	tree.Set("a", intArray(payload))
	tree.Set("b", intArray(int64Payload(squares(10)...)))

	raw := writeTree(t, reg, tree)

	trailerAt := bytes.Index(raw, []byte(block.IndexMagic))
	require.GreaterOrEqual(t, trailerAt, 0)

	// Push the trailer's last offset far past end-of-file.
	patched := append([]byte(nil), raw[:trailerAt]...)
	patched = append(patched, regexp.MustCompile(`(\d+)\]`).ReplaceAll(raw[trailerAt:], []byte("999999999]"))...)

	doc := reopen(t, reg, patched, WithValidateOnOpen(false))
	defer doc.Close()

	var kinds []errs.WarningKind
	for _, w := range doc.Warnings() {
		kinds = append(kinds, w.Kind)
	}

	assert.Contains(t, kinds, errs.WarningBlockIndexInvalid)

	desc := mustArray(t, doc.Root().(*Mapping), "a")

	data, err := desc.Bytes()
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

// Scenario 6: growing a tree string past the room the YAML region has
// makes Update rewrite the file; the block payload and the file's
// consistency survive the rewrite.
func TestUpdate_RewritesYAMLKeepsBlocks(t *testing.T) {
	reg := coreRegistry(t)

	payload := int64Payload(arange(50)...)

	tree := NewMapping()
	tree.Set("note", "short")
	tree.Set("arr", intArray(payload))

	src := ioadapter.NewMemorySource(nil)

	doc, err := New(WithExtensions(reg))
	require.NoError(t, err)
	doc.SetRoot(tree)
	require.NoError(t, doc.Write(src))

	opened, err := Open(ioadapter.NewMemorySource(append([]byte(nil), src.Bytes()...)), WithExtensions(reg))
	require.NoError(t, err)
	defer opened.Close()

	root := opened.Root().(*Mapping)
	root.Set("note", strings.Repeat("x", 100))

	require.NoError(t, opened.Update())

	final := opened.Blocks()
	require.Equal(t, 1, final.Len())

	reread := reopen(t, reg, srcBytes(t, opened))
	defer reread.Close()

	note, _ := reread.Root().(*Mapping).Get("note")
	assert.Equal(t, strings.Repeat("x", 100), note)

	desc := mustArray(t, reread.Root().(*Mapping), "arr")

	data, err := desc.Bytes()
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func srcBytes(t *testing.T, d *Document) []byte {
	t.Helper()

	mem, ok := d.src.(*ioadapter.MemorySource)
	require.True(t, ok)

	return append([]byte(nil), mem.Bytes()...)
}

// Mapping-key violations are validation concerns on read (spec §7):
// warn by default, promotable to fatal, suppressible entirely.
func TestOpen_DuplicateKeyIsConfigurable(t *testing.T) {
	raw := []byte("#ASDF 1.1.0\n#ASDF_STANDARD 1.6.0\n---\nfoo: 1\nfoo: 2\n...\n")

	doc, err := Open(ioadapter.NewMemorySource(raw))
	require.NoError(t, err, "default open degrades the violation to a warning")

	var kinds []errs.WarningKind
	for _, w := range doc.Warnings() {
		kinds = append(kinds, w.Kind)
	}

	assert.Contains(t, kinds, errs.WarningSchemaValidation)
	require.NoError(t, doc.Close())

	_, err = Open(ioadapter.NewMemorySource(raw), WithRaiseOnValidationWarning(true))
	assert.ErrorIs(t, err, errs.ErrDuplicateMappingKey)

	doc, err = Open(ioadapter.NewMemorySource(raw), WithValidateOnOpen(false))
	require.NoError(t, err)
	assert.Empty(t, doc.Warnings())
	require.NoError(t, doc.Close())
}

// The in-place half of scenario 6: when no block changed and the new
// YAML fits where the old one sat, only the YAML region is rewritten —
// blocks stay at their offsets and the file length doesn't change.
func TestUpdate_InPlaceWithinSlackLeavesBlocksUntouched(t *testing.T) {
	reg := coreRegistry(t)

	payload := int64Payload(arange(50)...)

	tree := NewMapping()
	tree.Set("note", strings.Repeat("x", 200))
	tree.Set("arr", intArray(payload))

	src := ioadapter.NewMemorySource(nil)

	doc, err := New(WithExtensions(reg))
	require.NoError(t, err)
	doc.SetRoot(tree)
	require.NoError(t, doc.Write(src))

	original := append([]byte(nil), src.Bytes()...)
	blockAt := bytes.Index(original, block.Magic[:])
	require.GreaterOrEqual(t, blockAt, 0)

	opened, err := Open(ioadapter.NewMemorySource(append([]byte(nil), original...)), WithExtensions(reg))
	require.NoError(t, err)
	defer opened.Close()

	opened.Root().(*Mapping).Set("note", "short")

	require.NoError(t, opened.Update())

	updated := srcBytes(t, opened)
	assert.Len(t, updated, len(original), "in-place update keeps the file length")
	assert.Equal(t, original[blockAt:], updated[blockAt:], "blocks and trailer must not move or change")
	assert.Contains(t, string(updated[:blockAt]), "note: short")

	reread := reopen(t, reg, updated)
	defer reread.Close()

	note, _ := reread.Root().(*Mapping).Get("note")
	assert.Equal(t, "short", note)

	data, err := mustArray(t, reread.Root().(*Mapping), "arr").Bytes()
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

// An oversized integer literal under standard <= 1.5 surfaces as a
// typed warning on open, not a validation error (spec §8).
func TestOpen_LargeLiteralWarnsUnder1_5(t *testing.T) {
	raw := []byte("#ASDF 1.1.0\n#ASDF_STANDARD 1.5.0\n---\nbig: 123456789012345678901234567890\n...\n")

	doc, err := Open(ioadapter.NewMemorySource(raw))
	require.NoError(t, err)
	defer doc.Close()

	var found bool
	for _, w := range doc.Warnings() {
		if w.Kind == errs.WarningVersionMismatch && w.Path == "/big" {
			found = true
		}
	}

	assert.True(t, found, "expected a large-literal warning at /big")
}

func TestOpen_MissingStandardLineDefaultsToEarliest(t *testing.T) {
	raw := []byte("#ASDF 1.1.0\n---\nfoo: 1\n...\n")

	doc, err := Open(ioadapter.NewMemorySource(raw))
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, format.StandardVersionEarliest, doc.StandardVersion)
}

func TestOpen_LocatesMagicPastPrefixBytes(t *testing.T) {
	raw := []byte("arbitrary embedding prefix\n#ASDF 1.1.0\n#ASDF_STANDARD 1.6.0\n---\nfoo: 1\n...\n")

	doc, err := Open(ioadapter.NewMemorySource(raw))
	require.NoError(t, err)
	defer doc.Close()

	foo, _ := doc.Root().(*Mapping).Get("foo")
	assert.Equal(t, int64(1), foo)
}

func TestOpen_BadMagicIsFatal(t *testing.T) {
	_, err := Open(ioadapter.NewMemorySource([]byte("not an asdf file at all")))
	assert.ErrorIs(t, err, errs.ErrBadMagic)
}

// An unrecognized tag degrades to its raw tagged node with a typed
// warning, and re-writing the tree round-trips the node unchanged.
func TestOpen_UnknownTagDegradesAndRoundTrips(t *testing.T) {
	raw := []byte("#ASDF 1.1.0\n#ASDF_STANDARD 1.6.0\n---\nthing: !<asdf://example.com/tags/mystery-1.0.0>\n  a: 1\n...\n")

	doc, err := Open(ioadapter.NewMemorySource(raw))
	require.NoError(t, err)
	defer doc.Close()

	var kinds []errs.WarningKind
	for _, w := range doc.Warnings() {
		kinds = append(kinds, w.Kind)
	}

	assert.Contains(t, kinds, errs.WarningMissingExtension)

	thing, _ := doc.Root().(*Mapping).Get("thing")
	node, ok := thing.(*yamltree.Node)
	require.True(t, ok, "unsupported tagged node must stay a raw node")
	assert.Equal(t, "asdf://example.com/tags/mystery-1.0.0", node.Tag())

	sink := ioadapter.NewMemorySource(nil)
	require.NoError(t, doc.Write(sink))
	assert.Contains(t, string(sink.Bytes()), "asdf://example.com/tags/mystery-1.0.0")
}

func TestWrite_RecordsUsedExtensionsInHistory(t *testing.T) {
	reg := coreRegistry(t)

	tree := NewMapping()
	tree.Set("arr", intArray(int64Payload(1)))

	raw := writeTree(t, reg, tree)

	doc := reopen(t, reg, raw)
	defer doc.Close()

	history := doc.Root().(*Mapping).Get1(t, "history")
	exts, ok := history.Get("extensions")
	require.True(t, ok)

	entries := exts.(*Sequence).Values()
	require.Len(t, entries, 1)

	class, _ := entries[0].(*Mapping).Get("extension_class")
	assert.Equal(t, "asdf-format.org/core", class)
}

func TestWrite_InlineThresholdStoresSmallArraysInline(t *testing.T) {
	reg := coreRegistry(t)

	tree := NewMapping()
	tree.Set("tiny", &extension.NDArrayDescriptor{
		Datatype: "int64", ByteOrder: "big", Shape: []int{2},
		Data: int64Payload(1, 2),
	})

	doc, err := New(WithExtensions(reg), WithArrayInlineThreshold(64))
	require.NoError(t, err)
	doc.SetRoot(tree)

	sink := ioadapter.NewMemorySource(nil)
	require.NoError(t, doc.Write(sink))

	raw := sink.Bytes()
	assert.Zero(t, bytes.Count(raw, block.Magic[:]), "inline arrays write no blocks")
	assert.Contains(t, string(raw), "data:")
}

func TestWrite_CompressedArrayRoundTrips(t *testing.T) {
	reg := coreRegistry(t)

	payload := bytes.Repeat([]byte("compressible "), 100)

	tree := NewMapping()
	tree.Set("arr", &extension.NDArrayDescriptor{
		Datatype: "uint8", ByteOrder: "big", Shape: []int{len(payload)}, Data: payload,
	})

	doc, err := New(WithExtensions(reg), WithAllArrayCompression(format.CodeZlib))
	require.NoError(t, err)
	doc.SetRoot(tree)

	sink := ioadapter.NewMemorySource(nil)
	require.NoError(t, doc.Write(sink))
	assert.Less(t, len(sink.Bytes()), len(payload), "zlib must shrink the repeated payload")

	reread := reopen(t, reg, sink.Bytes())
	defer reread.Close()

	desc := mustArray(t, reread.Root().(*Mapping), "arr")

	data, err := desc.Bytes()
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestUpdate_OnStreamSinkFailsNotSeekable(t *testing.T) {
	var out bytes.Buffer

	doc, err := New()
	require.NoError(t, err)
	doc.SetRoot(NewMapping())

	sink := ioadapter.NewStreamWriter(&out)
	require.NoError(t, doc.Write(sink))

	err = doc.Update()
	assert.ErrorIs(t, err, errs.ErrNotSeekable)
}
