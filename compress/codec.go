// Package compress implements the block compression plugins named in
// spec §4.B/§6: zlib, bzp2, lz4, and the implicit no-op used for the
// four-NUL "none" code. Each plugin is keyed by the 4-byte ASCII code
// that is stored verbatim in the owning block's header.
package compress

import (
	"fmt"

	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/format"
)

// Compressor compresses one block's worth of payload bytes.
//
// Memory management:
//   - Returned slice is newly allocated and owned by the caller
//   - Input slice is not modified
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor decompresses one block's worth of payload bytes back to
// exactly size bytes, the data_size recorded in the block header. A
// decompressor that produces fewer or more bytes than size indicates a
// corrupt block.
type Decompressor interface {
	Decompress(data []byte, size int) ([]byte, error)
}

// Codec combines both directions of a single compression algorithm.
type Codec interface {
	Compressor
	Decompressor
}

var builtinCodecs = map[format.Code]Codec{
	format.CodeNone: NoOpCodec{},
	format.CodeZlib: ZlibCodec{},
	format.CodeBzp2: Bzip2Codec{},
	format.CodeLZ4:  LZ4Codec{},
}

// Register adds or replaces the built-in codec used for code. Extension
// packages (component F, spec §4.F) call this to add a compressor beyond
// the four named in spec §6 without this package knowing about them.
func Register(code format.Code, codec Codec) {
	builtinCodecs[code] = codec
}

// Get retrieves the Codec registered for code.
func Get(code format.Code) (Codec, error) {
	if codec, ok := builtinCodecs[code]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("%w: %q", errs.ErrUnknownCompression, code)
}
