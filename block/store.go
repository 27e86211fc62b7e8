package block

import (
	"fmt"
	"unsafe"

	"github.com/asdf-format/asdf-go/compress"
	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/format"
	"github.com/asdf-format/asdf-go/internal/collision"
	"github.com/asdf-format/asdf-go/internal/pool"
	"github.com/asdf-format/asdf-go/ioadapter"
)

// Spec describes one array's worth of bytes to be committed to the
// store as a block.
type Spec struct {
	// Data is the array's raw, uncompressed payload.
	Data []byte
	// Compression selects the block's compression code. format.CodeNone
	// stores Data uncompressed.
	Compression format.Code
	// Streamed marks this as the trailing streamed block. At most one
	// block in a Store may set this (spec §4.B, "Writing").
	Streamed bool
	// NoAdopt suppresses backing-buffer dedup for this spec, forcing a
	// fresh block even when Data shares a base buffer with an earlier
	// spec (default_array_save_base=false semantics, spec §4.B).
	NoAdopt bool
}

// Block is one materialized entry: its header plus the owned,
// decompressed payload bytes.
type Block struct {
	Header Header
	Data   []byte
}

// entry tracks one block's state inside a Store. Write-side entries
// (committed via Add) carry their payload from the start; read-side
// entries (located by OpenStore) carry only the header and payload
// offset until first materialization.
type entry struct {
	header  Header
	payload int64 // absolute offset of the compressed bytes, read side
	data    []byte
	loaded  bool
	mapped  bool // data is a live memory-map view into src
}

// Store owns the binary payload bytes of every block in a document and
// the mapping block-index ↔ file-offset ↔ in-memory buffer (spec §4.B).
// Read-side payloads materialize lazily on first At and are cached, so
// each block index maps to at most one live buffer.
type Store struct {
	src      ioadapter.Source
	entries  []entry
	identity *collision.Tracker[int]
	streamed bool
}

// NewStore creates an empty Store for a document being built to write.
func NewStore() *Store {
	return &Store{identity: collision.NewTracker[int]()}
}

// OpenStore indexes the block located at each of offsets in src (in
// order) without reading any payload bytes (spec §4.B, "Reading";
// payloads decompress on first At). The caller supplies offsets already
// located via a validated Index or a ScanBlocks fallback.
func OpenStore(src ioadapter.Source, offsets []int64) (*Store, error) {
	s := NewStore()
	s.src = src

	for _, off := range offsets {
		h, err := readHeaderAt(src, off)
		if err != nil {
			return nil, err
		}

		s.entries = append(s.entries, entry{header: h, payload: off + HeaderSize})

		if h.Streamed() {
			s.streamed = true
		}
	}

	return s, nil
}

func readHeaderAt(src ioadapter.Source, offset int64) (Header, error) {
	if err := src.Seek(offset); err != nil {
		return Header{}, err
	}

	raw, err := src.Read(HeaderSize)
	if err != nil {
		return Header{}, fmt.Errorf("block: read header: %w", err)
	}

	return Parse(raw)
}

// bufferIdentity returns data's backing array address, used to
// recognize when two arrays share a base buffer (default_array_save_base
// semantics, spec §4.B "Writing"). Two slices with the same address are
// the same view regardless of length; this is a best-effort identity
// check, not a content hash.
func bufferIdentity(data []byte) uint64 {
	if len(data) == 0 {
		return 0
	}

	return uint64(uintptr(unsafe.Pointer(&data[0])))
}

// Add commits spec as a new block, or reuses an existing block if its
// data shares a backing buffer with a previously added Spec. It returns
// the index of the resulting block and whether an existing block was
// reused.
func (s *Store) Add(spec Spec) (int, bool, error) {
	if s.streamed {
		if spec.Streamed {
			return 0, false, errs.ErrAlreadyStreaming
		}

		return 0, false, errs.ErrStreamedNotLast
	}

	// Each Add proposes its own candidate index, so a repeated backing
	// buffer surfaces as the tracker's hash-reuse case, with the
	// first-seen index returned as the block to adopt.
	id := bufferIdentity(spec.Data)
	if id != 0 && !spec.NoAdopt {
		if existing, dup, collided := s.identity.Track(id, len(s.entries)); dup || collided {
			return existing, true, nil
		}
	}

	// Fail on an unknown compression code at commit time, not at write
	// time when half the file is already on disk.
	if _, err := compress.Get(spec.Compression); err != nil {
		return 0, false, err
	}

	header := Header{
		Compression: spec.Compression,
		DataSize:    uint64(len(spec.Data)),
	}

	if spec.Streamed {
		header.Flags |= FlagStreamed
		header.DataSize = 0
		s.streamed = true
	}

	s.entries = append(s.entries, entry{header: header, data: spec.Data, loaded: true})
	idx := len(s.entries) - 1

	return idx, false, nil
}

// Len returns the number of blocks committed or located so far.
func (s *Store) Len() int {
	return len(s.entries)
}

// HeaderAt returns the header of the block at index without
// materializing its payload.
func (s *Store) HeaderAt(index int) (Header, error) {
	if index < 0 || index >= len(s.entries) {
		return Header{}, errs.ErrArrayIndexOutOfBounds
	}

	return s.entries[index].header, nil
}

// At returns the block at index, materializing (reading, checksum-
// verifying, decompressing) its payload on first access and caching the
// result; subsequent calls return the same buffer (spec §4.B,
// "At-most-one guarantee").
func (s *Store) At(index int) (Block, error) {
	if index < 0 || index >= len(s.entries) {
		return Block{}, errs.ErrArrayIndexOutOfBounds
	}

	e := &s.entries[index]
	if e.loaded {
		return Block{Header: e.header, Data: e.data}, nil
	}

	data, mapped, err := s.materialize(e)
	if err != nil {
		return Block{}, err
	}

	e.data = data
	e.mapped = mapped
	e.loaded = true

	return Block{Header: e.header, Data: e.data}, nil
}

// Detach materializes every block and replaces memory-mapped payload
// views with owned copies, so an in-place rewrite of the backing source
// can't corrupt payloads it is about to re-emit (spec §5, "Memory
// mapping": any write that changes block layout invalidates mappings).
func (s *Store) Detach() error {
	for i := range s.entries {
		if _, err := s.At(i); err != nil {
			return err
		}

		e := &s.entries[i]
		if e.mapped {
			owned := make([]byte, len(e.data))
			copy(owned, e.data)
			e.data = owned
			e.mapped = false
		}
	}

	return nil
}

func (s *Store) materialize(e *entry) (data []byte, mapped bool, err error) {
	h := e.header

	readSize := int(h.UsedSize)

	if h.Streamed() && h.DataSize == 0 {
		size, ok := s.src.Size()
		if !ok {
			return nil, false, errs.ErrNotSeekable
		}

		readSize = int(size - e.payload)
	}

	// Uncompressed payloads on a random-access source are served by
	// memory map when the source provides one (spec §4.B, "Memory
	// mapping is used only for uncompressed internal blocks whose source
	// is random-access").
	if h.Compression == format.CodeNone && s.src.IsRandom() {
		if buf, ok, merr := s.src.Memmap(e.payload, readSize); merr == nil && ok {
			if err := s.verify(h, buf); err != nil {
				return nil, false, err
			}

			if h.Streamed() && h.DataSize == 0 {
				e.header.DataSize = uint64(len(buf))
			}

			return buf, true, nil
		}
	}

	if err := s.src.Seek(e.payload); err != nil {
		return nil, false, err
	}

	compressed, err := s.src.Read(readSize)
	if err != nil {
		return nil, false, fmt.Errorf("block: read payload: %w", err)
	}

	if err := s.verify(h, compressed); err != nil {
		return nil, false, err
	}

	if h.Streamed() && h.DataSize == 0 {
		e.header.DataSize = uint64(len(compressed))
		h.DataSize = e.header.DataSize
	}

	codec, err := compress.Get(h.Compression)
	if err != nil {
		return nil, false, err
	}

	data, err = codec.Decompress(compressed, int(h.DataSize))
	if err != nil {
		return nil, false, fmt.Errorf("%w: block: %v", errs.ErrDecompressionFailed, err)
	}

	return data, false, nil
}

func (s *Store) verify(h Header, compressed []byte) error {
	var zero [16]byte
	if h.Checksum != zero && Sum(compressed) != h.Checksum {
		return fmt.Errorf("%w: checksum mismatch", errs.ErrBlockHeaderError)
	}

	return nil
}

// WriteTo writes every block to dst in order, returning the file offset
// each block's header starts at (spec §4.B, "Writers emit blocks in
// tree-visitation order"). Headers are computed fresh from the payload
// at write time, so a block adopted from a previous open round-trips
// through whatever compression its header now requests.
func (s *Store) WriteTo(dst ioadapter.Source) ([]int64, error) {
	offsets := make([]int64, len(s.entries))

	buf := pool.GetBlockBuffer()
	defer pool.PutBlockBuffer(buf)

	for i := range s.entries {
		blk, err := s.At(i)
		if err != nil {
			return nil, err
		}

		pos, err := dst.Tell()
		if err != nil {
			return nil, fmt.Errorf("block: write: %w", err)
		}

		offsets[i] = pos

		codec, err := compress.Get(blk.Header.Compression)
		if err != nil {
			return nil, err
		}

		compressed, err := codec.Compress(blk.Data)
		if err != nil {
			return nil, fmt.Errorf("block: write: compress: %w", err)
		}

		header := Header{
			Flags:         blk.Header.Flags,
			Compression:   blk.Header.Compression,
			AllocatedSize: uint64(len(compressed)),
			UsedSize:      uint64(len(compressed)),
			DataSize:      uint64(len(blk.Data)),
			Checksum:      Sum(compressed),
		}

		if header.Streamed() {
			// A streamed block's length is implicit: end-of-file
			// (spec §4.B, "Streamed block").
			header.AllocatedSize = 0
			header.UsedSize = 0
			header.DataSize = 0
		}

		s.entries[i].header = header

		buf.Reset()
		buf.MustWrite(header.Bytes())
		buf.MustWrite(compressed)

		if _, err := dst.Write(buf.Bytes()); err != nil {
			return nil, fmt.Errorf("block: write: %w", err)
		}
	}

	return offsets, nil
}

// ShouldWriteIndex reports whether a block index trailer should be
// appended: the sink must be seekable and there must be more than one
// internal (non-streamed) block (spec §4.B, "Writing").
func (s *Store) ShouldWriteIndex(seekable bool) bool {
	if !seekable {
		return false
	}

	internal := 0
	for _, e := range s.entries {
		if !e.header.Streamed() {
			internal++
		}
	}

	return internal > 1
}

// ReadBlock reads and decompresses the single block whose header starts
// at offset: the one-shot form of OpenStore+At used for external block
// files (spec §6, "Exploded form") and tests.
func ReadBlock(src ioadapter.Source, offset int64) (Block, error) {
	s, err := OpenStore(src, []int64{offset})
	if err != nil {
		return Block{}, err
	}

	return s.At(0)
}

// ScanBlocks locates every block by linear scan starting at start, the
// fallback path used when no block index trailer is present or it fails
// sanity checks (spec §4.B, "Reading"). The scan stops cleanly at the
// first bytes that aren't a block header: the index trailer, or
// trailing padding (spec §6, "Trailing bytes permitted").
func ScanBlocks(src ioadapter.Source, start int64) ([]int64, error) {
	size, ok := src.Size()
	if !ok {
		return nil, errs.ErrNotSeekable
	}

	var offsets []int64

	pos := start
	for pos+HeaderSize <= size {
		if err := src.Seek(pos); err != nil {
			return nil, err
		}

		probe, err := src.Read(len(Magic))
		if err != nil {
			return nil, err
		}

		if len(probe) < len(Magic) || probe[0] != Magic[0] || probe[1] != Magic[1] || probe[2] != Magic[2] || probe[3] != Magic[3] {
			break
		}

		h, err := readHeaderAt(src, pos)
		if err != nil {
			return nil, err
		}

		offsets = append(offsets, pos)

		if h.Streamed() {
			break
		}

		pos += HeaderSize + int64(h.AllocatedSize)
	}

	return offsets, nil
}
