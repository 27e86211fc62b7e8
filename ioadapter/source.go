// Package ioadapter presents a uniform seek/read/write capability set
// over the different places an ASDF file's bytes can live: a regular
// file, an in-memory buffer, a forward-only stream, and an HTTP(S)
// range-readable remote object (spec §4.A). Components B and G depend
// only on the Source interface, never on a concrete transport.
package ioadapter

import (
	"io"

	"github.com/asdf-format/asdf-go/errs"
)

// Source is the capability set every byte origin in this module is
// adapted to. Operations that require random access fail with
// errs.ErrNotSeekable on a forward-only source, which forces B and G
// onto their streaming fallback paths (spec §4.A, last sentence).
type Source interface {
	// Read reads up to n bytes at the current position, advancing it.
	Read(n int) ([]byte, error)
	// ReadUntil reads bytes up to and including the first occurrence of
	// delim, or to EOF if delim never appears.
	ReadUntil(delim byte) ([]byte, error)
	// Seek repositions to an absolute byte offset.
	Seek(pos int64) error
	// Tell reports the current byte offset.
	Tell() (int64, error)
	// Write writes data at the current position, advancing it.
	Write(data []byte) (int, error)
	// Size reports the source's total size, if known.
	Size() (int64, bool)
	// Truncate resizes the source to pos bytes.
	Truncate(pos int64) error
	// Memmap returns a read-only, memory-mapped view of [offset, offset+n),
	// or ok=false if the source cannot provide one.
	Memmap(offset int64, n int) (buf []byte, ok bool, err error)
	// IsSeekable reports whether Seek/Truncate are supported.
	IsSeekable() bool
	// IsRandom reports whether arbitrary-offset reads are efficient
	// (as opposed to requiring a linear scan from the start).
	IsRandom() bool
	// Close releases any resources the source holds (file descriptors,
	// memory mappings, open connections).
	Close() error
}

// errNotSeekable is returned by Seek/Truncate/Memmap on sources that are
// forward-only, and by MemorySource for a position it cannot serve.
func errNotSeekable(op string) error {
	return &errs.PointerError{Err: errs.ErrNotSeekable, Path: op}
}

// errNotWritable is returned by Write on read-only sources.
func errNotWritable(op string) error {
	return &errs.PointerError{Err: errs.ErrNotWritable, Path: op}
}

var _ io.Closer = Source(nil)
