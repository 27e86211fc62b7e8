// Package hash provides the fast, non-cryptographic hashing used as a
// pre-check key wherever this module needs to notice that two strings
// are probably equal before doing a full comparison: YAML mapping-key
// tracking (yamltree package).
package hash

import "github.com/cespare/xxhash/v2"

// ID computes the xxHash64 of the given string.
func ID(data string) uint64 {
	return xxhash.Sum64String(data)
}

// Bytes computes the xxHash64 of the given byte slice.
func Bytes(data []byte) uint64 {
	return xxhash.Sum64(data)
}
