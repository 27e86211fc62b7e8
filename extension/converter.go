package extension

import (
	"fmt"

	"github.com/asdf-format/asdf-go/block"
	"github.com/asdf-format/asdf-go/compress"
	"github.com/asdf-format/asdf-go/format"
	"github.com/asdf-format/asdf-go/yamltree"
)

// Converter translates between tagged YAML nodes and native Go values
// for one family of tag URIs (spec §4.F, "Converter contract").
//
// Tags and Types are glob patterns (matched with github.com/gobwas/glob)
// and exact type names respectively; Registry consults them to decide
// which converter handles a given tag (read) or value (write). SelectTag
// lets one converter cover several tags for the same Go type, deferring
// to another converter by returning ok=false.
type Converter interface {
	// Tags lists the tag URI glob patterns this converter handles.
	Tags() []string
	// Types lists the fully-qualified Go type names
	// (e.g. "*mypkg.Table") this converter produces FromYAMLTree and
	// accepts in ToYAMLTree.
	Types() []string
	// SelectTag picks the tag to serialize obj as, given the candidate
	// tags Types() matched. Returning ok=false defers to the next
	// converter whose Types() also matched (spec §4.F, "Selection
	// rules", "On write").
	SelectTag(obj any, candidates []string, ctx *Context) (tag string, ok bool)
	// ToYAMLTree converts obj, which SelectTag has already approved for
	// tag, into a tagged tree node.
	ToYAMLTree(obj any, tag string, ctx *Context) (*yamltree.Node, error)
	// FromYAMLTree converts node (tagged with tag) into a native value.
	FromYAMLTree(node *yamltree.Node, tag string, ctx *Context) (any, error)
	// Lazy reports whether this converter may receive not-yet-fully-
	// materialized children (spec §4.F, "lazy").
	Lazy() bool
}

// DeferredConverter is the optional two-phase counterpart to Converter's
// FromYAMLTree, for types whose construction must be split across the
// traversal to support reference cycles (spec §4.G step 6, §5, §9
// "Cyclic object graphs"). The document engine's materializer uses
// FromYAMLTreeDeferred for a converter implementing it, and the plain
// Converter.FromYAMLTree path for one that doesn't.
type DeferredConverter interface {
	Converter
	// FromYAMLTreeDeferred returns an immediately-usable shell value and
	// a resume function that finishes populating it once the rest of
	// the tree has had a chance to materialize. resume may itself
	// register further pending work via ctx.Defer.
	FromYAMLTreeDeferred(node *yamltree.Node, tag string, ctx *Context) (shell any, resume func() error, err error)
}

// Compressor pairs a compress.Codec with the 4-byte wire code it
// implements (spec §4.F, "compressors"). Extensions contribute these;
// Registry installs them into the compress package's codec table so
// block never has to know about extension (spec §4.B, "Compressors are
// plugins (§4.F)").
type Compressor struct {
	Code  format.Code
	Codec compress.Codec
}

// BlockKey is an opaque token linking a converter to the block(s) it
// created across a round-trip (spec §6, SerializationContext:
// "generates block keys ... linking a converter to its blocks across
// round-trips"). Converters that own more than one block use distinct
// keys to tell them apart on the next write.
type BlockKey string

// Context is the SerializationContext named in spec §6: what a
// Converter is given to allocate/read blocks and resolve cross-tree
// state during a single Open/Write/Update call.
type Context struct {
	// Standard is the document's standard version, governing which tag
	// version a converter should select/accept.
	Standard format.Version
	// Blocks is the document's block store, for converters (chiefly the
	// built-in ndarray converter) that own binary payloads.
	Blocks *block.Store
	// BaseURI is the document's own location, for converters that need
	// to resolve relative external references (e.g. external array
	// storage).
	BaseURI string

	// Compression is the document-wide compression code applied to
	// arrays that don't pick their own (spec §4.B, "Compression may be
	// set globally or per array"). Zero value means uncompressed.
	Compression format.Code
	// ArrayStorage, when nonzero, overrides every array's storage class
	// (all_array_storage semantics, spec §4.B "Writing").
	ArrayStorage format.StorageClass
	// SaveBase enables backing-buffer dedup for arrays sharing a base
	// buffer (default_array_save_base, spec §4.B/§8 scenario 2).
	SaveBase bool
	// InlineThreshold, when positive, stores arrays of that many bytes
	// or fewer inline instead of as blocks (array_inline_threshold,
	// spec §4.C "Serialization").
	InlineThreshold int

	pending      *pendingQueue
	keys         map[BlockKey]int
	convertChild func(*yamltree.Node) (any, error)
	encodeChild  func(any) (*yamltree.Node, error)
}

// NewContext creates a Context for a single Open/Write/Update call.
func NewContext(std format.Version, blocks *block.Store, baseURI string) *Context {
	return &Context{
		Standard: std,
		Blocks:   blocks,
		BaseURI:  baseURI,
		SaveBase: true,
		pending:  newPendingQueue(),
		keys:     make(map[BlockKey]int),
	}
}

// SetChildHandlers installs the document engine's traversal callbacks:
// convert turns a tagged node into a native value during a read,
// encode does the reverse during a write. Converters reach nested
// converter-owned values through these instead of re-implementing the
// engine's dispatch, which keeps object identity (anchors/aliases,
// spec §8) consistent across the whole traversal.
func (c *Context) SetChildHandlers(convert func(*yamltree.Node) (any, error), encode func(any) (*yamltree.Node, error)) {
	c.convertChild = convert
	c.encodeChild = encode
}

// ConvertChild materializes a child node through the engine's
// tagged→native traversal. Only valid during a read.
func (c *Context) ConvertChild(n *yamltree.Node) (any, error) {
	if c.convertChild == nil {
		return nil, fmt.Errorf("extension: context has no read traversal attached")
	}

	return c.convertChild(n)
}

// EncodeChild serializes a child value through the engine's
// native→tagged traversal. Only valid during a write.
func (c *Context) EncodeChild(v any) (*yamltree.Node, error) {
	if c.encodeChild == nil {
		return nil, fmt.Errorf("extension: context has no write traversal attached")
	}

	return c.encodeChild(v)
}

// Defer registers a generator-style resume callback to be drained after
// the current top-level traversal completes (spec §4.G step 6). It
// returns a Pending sentinel value a caller can stash in a partially
// built parent until resume runs.
func (c *Context) Defer(resume func() error) *Pending {
	return c.pending.add(resume)
}

// Drain runs every callback registered via Defer, in insertion order,
// including ones registered by an earlier callback's own resume (spec
// §4.G step 6: "drain pending generators ... which may themselves spawn
// more pending work"). The document engine calls this once after a
// top-level tagged→native traversal completes.
func (c *Context) Drain() error {
	return c.pending.Drain()
}

// BindBlockKey remembers which block index a converter's BlockKey maps
// to, so a later write of the same object round-trips to the same
// block rather than allocating a new one.
func (c *Context) BindBlockKey(key BlockKey, blockIndex int) {
	c.keys[key] = blockIndex
}

// BlockForKey returns the block index previously bound to key, if any.
func (c *Context) BlockForKey(key BlockKey) (int, bool) {
	idx, ok := c.keys[key]
	return idx, ok
}
