package document

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/asdf-format/asdf-go/block"
	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/extension"
	"github.com/asdf-format/asdf-go/format"
	"github.com/asdf-format/asdf-go/internal/options"
	"github.com/asdf-format/asdf-go/ioadapter"
	"github.com/asdf-format/asdf-go/schema"
	"github.com/asdf-format/asdf-go/yamltree"
)

// New creates an empty Document ready to have its Root populated via
// SetRoot and then be Written, independent of any existing file
// (spec §4.G, "write(sink, options)").
func New(opts ...WriteOption) (*Document, error) {
	cfg := defaultConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return &Document{
		FileFormatVersion: cfg.FileFormatVersion,
		StandardVersion:   cfg.StandardVersion,
		extensions:        cfg.Extensions,
		blocks:            block.NewStore(),
		baseURI:           cfg.BaseURI,
		writeDefaults:     cfg,
	}, nil
}

func (d *Document) writeConfig(opts []WriteOption) (*config, error) {
	cfg := defaultConfig()
	if d.writeDefaults != nil {
		c := *d.writeDefaults
		cfg = &c
	}

	cfg.FileFormatVersion = d.FileFormatVersion
	cfg.StandardVersion = d.StandardVersion
	cfg.Extensions = d.extensions

	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return cfg, nil
}

// encodeTree runs spec §4.G's write steps 1-4: encode native→tagged
// bottom-up through the extension registry into a fresh block store
// (steps 1-2, so a document opened from disk doesn't drag stale blocks
// along), record which extensions fired (step 3), then validate
// (step 4). Under standard <= 1.5 an oversized integer literal is
// collected as a warning rather than a validation error (spec §8,
// "Boundary behaviours").
func (d *Document) encodeTree(cfg *config) (*yamltree.Node, *block.Store, error) {
	writeStore := block.NewStore()

	ctx := extension.NewContext(cfg.StandardVersion, writeStore, cfg.BaseURI)
	ctx.Compression = cfg.ArrayCompression
	ctx.ArrayStorage = cfg.AllArrayStorage
	ctx.SaveBase = cfg.ArraySaveBase
	ctx.InlineThreshold = cfg.ArrayInlineThreshold

	enc := newEncoder(cfg.Extensions, ctx)

	tree, err := enc.encode(d.root)
	if err != nil {
		return nil, nil, fmt.Errorf("document: write: %w", err)
	}

	if len(enc.usedExtensions) > 0 {
		annotateHistory(tree, enc.usedExtensions)
	}

	validator := cfg.Validator
	if validator == nil {
		validator = schema.NewValidator(schema.NewRegistry())
	}

	if verr := validator.Validate(tree, schema.Options{
		StandardVersion:   cfg.StandardVersion,
		DocumentSchemaURI: cfg.DocumentSchemaURI,
		TagSchemas:        cfg.Extensions.TagSchemas,
	}); verr != nil {
		return nil, nil, fmt.Errorf("document: write: %w", verr)
	}

	if cfg.StandardVersion.LessThan(format.StandardVersion1_6) {
		d.warnings = append(d.warnings, schema.LargeLiteralWarnings(tree)...)
	}

	return tree, writeStore, nil
}

// Write serializes the document's native Root to sink, following spec
// §4.G's write steps: encode and validate via encodeTree (steps 1-4),
// then assemble the on-disk layout — header, YAML document, blocks (in
// first-use order), optional index (step 5).
func (d *Document) Write(sink ioadapter.Source, opts ...WriteOption) error {
	if err := d.checkOpen(); err != nil {
		return err
	}

	cfg, err := d.writeConfig(opts)
	if err != nil {
		return err
	}

	tree, store, err := d.encodeTree(cfg)
	if err != nil {
		return err
	}

	yamlBytes, err := yamltree.Marshal(tree)
	if err != nil {
		return err
	}

	return d.emit(sink, cfg, tree, store, yamlBytes)
}

// emit writes the full on-disk layout to sink and swaps the document's
// tree, block store, and source over to the written state.
func (d *Document) emit(sink ioadapter.Source, cfg *config, tree *yamltree.Node, store *block.Store, yamlBytes []byte) error {
	if _, err := sink.Write(writeHeader(cfg.FileFormatVersion, cfg.StandardVersion)); err != nil {
		return err
	}

	if _, err := sink.Write([]byte("---\n")); err != nil {
		return err
	}

	if _, err := sink.Write(yamlBytes); err != nil {
		return err
	}

	if _, err := sink.Write([]byte("...\n")); err != nil {
		return err
	}

	if sink.IsSeekable() {
		pos, err := sink.Tell()
		if err != nil {
			return err
		}

		d.bodyEnd = pos
	}

	offsets, err := store.WriteTo(sink)
	if err != nil {
		return err
	}

	if store.ShouldWriteIndex(sink.IsSeekable()) {
		idx := block.Index(offsets)
		if _, err := sink.Write(idx.Bytes()); err != nil {
			return err
		}
	}

	d.tree = tree
	d.blocks = store
	d.src = sink

	return nil
}

// Update rewrites an already-open document on its own source. When no
// block changed (same payloads, compression, and streamed flags) and
// the new YAML document fits in the region the old one occupied, only
// the YAML region is rewritten — blocks stay at their offsets, the
// trailing index stays valid, and the file length is unchanged
// (spec §4.B, "Update in place"; §8 scenario 6). Otherwise the whole
// file is rewritten from offset zero and truncated.
func (d *Document) Update(opts ...WriteOption) error {
	if err := d.checkOpen(); err != nil {
		return err
	}

	if !d.src.IsSeekable() {
		return fmt.Errorf("document: update: %w", errs.ErrNotSeekable)
	}

	// Every existing payload must leave the file before any rewrite
	// starts overwriting it; memory-mapped views in particular would
	// otherwise alias bytes the new layout claims. Detaching up front
	// also means the re-encoded blocks below capture owned buffers, not
	// views into the region being replaced.
	if d.blocks != nil {
		if err := d.blocks.Detach(); err != nil {
			return err
		}
	}

	cfg, err := d.writeConfig(opts)
	if err != nil {
		return err
	}

	tree, store, err := d.encodeTree(cfg)
	if err != nil {
		return err
	}

	yamlBytes, err := yamltree.Marshal(tree)
	if err != nil {
		return err
	}

	if done, err := d.updateInPlace(cfg, tree, store, yamlBytes); done || err != nil {
		return err
	}

	if err := d.src.Seek(0); err != nil {
		return err
	}

	if err := d.emit(d.src, cfg, tree, store, yamlBytes); err != nil {
		return err
	}

	pos, err := d.src.Tell()
	if err != nil {
		return err
	}

	return d.src.Truncate(pos)
}

// updateInPlace attempts the slack-reuse path: if the blocks are
// byte-identical to what's already on disk and the new YAML region fits
// in [0, bodyEnd), rewrite only the YAML, padding up to the first block
// with blank lines inside the document so bodyEnd — and every block
// offset after it — is preserved exactly. Reports whether it handled
// the update.
func (d *Document) updateInPlace(cfg *config, tree *yamltree.Node, store *block.Store, yamlBytes []byte) (bool, error) {
	if d.bodyEnd == 0 || !blocksUnchanged(d.blocks, store) {
		return false, nil
	}

	header := writeHeader(cfg.FileFormatVersion, cfg.StandardVersion)

	needed := int64(len(header) + len("---\n") + len(yamlBytes) + len("...\n"))
	if needed > d.bodyEnd {
		return false, nil
	}

	if err := d.src.Seek(0); err != nil {
		return true, err
	}

	if _, err := d.src.Write(header); err != nil {
		return true, err
	}

	if _, err := d.src.Write([]byte("---\n")); err != nil {
		return true, err
	}

	if _, err := d.src.Write(yamlBytes); err != nil {
		return true, err
	}

	if pad := d.bodyEnd - needed; pad > 0 {
		if _, err := d.src.Write(bytes.Repeat([]byte("\n"), int(pad))); err != nil {
			return true, err
		}
	}

	if _, err := d.src.Write([]byte("...\n")); err != nil {
		return true, err
	}

	d.tree = tree

	return true, nil
}

// blocksUnchanged reports whether the freshly encoded store holds the
// same blocks the document's current store already has on disk: same
// count, compression, streamed flags, and payload bytes.
func blocksUnchanged(old, fresh *block.Store) bool {
	if old == nil || old.Len() != fresh.Len() {
		return false
	}

	for i := 0; i < fresh.Len(); i++ {
		oldBlk, err := old.At(i)
		if err != nil {
			return false
		}

		newBlk, err := fresh.At(i)
		if err != nil {
			return false
		}

		if oldBlk.Header.Compression != newBlk.Header.Compression {
			return false
		}

		if oldBlk.Header.Streamed() != newBlk.Header.Streamed() {
			return false
		}

		if !bytes.Equal(oldBlk.Data, newBlk.Data) {
			return false
		}
	}

	return true
}

func annotateHistory(tree *yamltree.Node, used map[string]*extension.Extension) {
	if !tree.IsMapping() {
		return
	}

	history, ok := tree.Get("history")
	if !ok || !history.IsMapping() {
		history = yamltree.NewMapping()
		tree.Set("history", history)
	}

	names := make([]string, 0, len(used))
	for name := range used {
		names = append(names, name)
	}

	sort.Strings(names)

	entries := yamltree.NewSequence()

	for _, name := range names {
		ext := used[name]

		entry := yamltree.NewMapping()
		entry.Set("extension_class", yamltree.NewString(name))
		entry.Set("software", softwareNode(ext))
		entries.Append(entry)
	}

	history.Set("extensions", entries)
}

func softwareNode(ext *extension.Extension) *yamltree.Node {
	m := yamltree.NewMapping()
	m.Set("name", yamltree.NewString(ext.Name))
	m.Set("version", yamltree.NewString(ext.Version.String()))

	return m
}
