// Package block implements the Block Store (spec §4.B): the fixed
// binary block header, write-time allocation and backing-buffer dedup,
// read-time block-index-or-linear-scan location, in-place update within
// slack, and the single trailing streamed block.
package block

import (
	"crypto/md5"

	"github.com/asdf-format/asdf-go/endian"
	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/format"
)

// Magic is the 4-byte sentinel that opens every block header.
var Magic = [4]byte{0xd3, 'B', 'L', 'K'}

// HeaderSize is the fixed on-disk size of a Header, in bytes
// (spec §4.B's header layout: 4+2+4+4+8+8+8+16).
const HeaderSize = 54

// FlagStreamed marks a block as the single trailing streamed block
// (used_size/data_size unknown at write time, size recorded as 0).
const FlagStreamed uint32 = 1 << 0

// Header is the fixed-layout prefix of every block (spec §4.B).
type Header struct {
	Size          uint16      // header-size, measured from after magic
	Flags         uint32      // bit 0 = streamed
	Compression   format.Code // 4-byte ASCII, NUL-padded; all-zero = none
	AllocatedSize uint64      // total bytes reserved for this block's payload
	UsedSize      uint64      // bytes actually occupied by compressed payload
	DataSize      uint64      // size after decompression
	Checksum      [16]byte    // MD5 of compressed bytes, or all zero
}

// Streamed reports whether this header's FlagStreamed bit is set.
func (h Header) Streamed() bool {
	return h.Flags&FlagStreamed != 0
}

// engine returns the byte order block headers are always encoded in.
// Block headers are big-endian regardless of the array payload's own
// byte order (spec §4.B header layout comment, "u16 BE"/"u64 BE").
func engine() endian.EndianEngine {
	return endian.GetBigEndianEngine()
}

// Parse decodes a Header from data, which must be at least HeaderSize
// bytes and begin with Magic.
func Parse(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, errs.ErrTruncatedHeader
	}

	if data[0] != Magic[0] || data[1] != Magic[1] || data[2] != Magic[2] || data[3] != Magic[3] {
		return Header{}, errs.ErrBlockHeaderError
	}

	e := engine()

	var h Header
	h.Size = e.Uint16(data[4:6])
	h.Flags = e.Uint32(data[6:10])
	copy(h.Compression[:], data[10:14])
	h.AllocatedSize = e.Uint64(data[14:22])
	h.UsedSize = e.Uint64(data[22:30])
	h.DataSize = e.Uint64(data[30:38])
	copy(h.Checksum[:], data[38:54])

	if int(h.Size) != HeaderSize-4 {
		return Header{}, errs.ErrInvalidHeaderSize
	}

	return h, nil
}

// Bytes serializes h into a freshly allocated HeaderSize-byte slice.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	e := engine()

	copy(b[0:4], Magic[:])
	e.PutUint16(b[4:6], HeaderSize-4)
	e.PutUint32(b[6:10], h.Flags)
	copy(b[10:14], h.Compression[:])
	e.PutUint64(b[14:22], h.AllocatedSize)
	e.PutUint64(b[22:30], h.UsedSize)
	e.PutUint64(b[30:38], h.DataSize)
	copy(b[38:54], h.Checksum[:])

	return b
}

// Sum computes the MD5 checksum of compressed payload bytes, as stored
// in a block's Checksum field.
func Sum(compressed []byte) [16]byte {
	return md5.Sum(compressed)
}
