// Package format defines the small, wire-level value types shared across
// every other package in this module: the compression code stored
// verbatim in every block header, the storage class an array descriptor
// can request, and the semver triples that govern file-format and
// standard-version compatibility (spec §3).
package format

// Code is the 4-byte ASCII compression code stored in a block header
// (spec §4.B). It is compared and hashed as a fixed-size array so it can
// be read directly out of a header buffer without allocating a string.
type Code [4]byte

var (
	CodeNone = Code{0, 0, 0, 0}
	CodeZlib = Code{'z', 'l', 'i', 'b'}
	CodeBzp2 = Code{'b', 'z', 'p', '2'}
	CodeLZ4  = Code{'l', 'z', '4', ' '}
)

func (c Code) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeZlib:
		return "zlib"
	case CodeBzp2:
		return "bzp2"
	case CodeLZ4:
		return "lz4"
	default:
		return string(c[:])
	}
}

// StorageClass records how an array's bytes live relative to the file
// that owns them (spec §3, "Array descriptor").
type StorageClass uint8

const (
	// StorageInternal places the array's bytes in a block within this file.
	StorageInternal StorageClass = iota + 1
	// StorageExternal places the array's bytes in a block of a sibling file.
	StorageExternal
	// StorageInline embeds small arrays directly in the YAML tree as a
	// literal sequence of scalars instead of a binary block.
	StorageInline
)

func (s StorageClass) String() string {
	switch s {
	case StorageInternal:
		return "internal"
	case StorageExternal:
		return "external"
	case StorageInline:
		return "inline"
	default:
		return "unknown"
	}
}
