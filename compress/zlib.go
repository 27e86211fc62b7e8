package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// ZlibCodec implements the "zlib" block compression code.
type ZlibCodec struct{}

var _ Codec = ZlibCodec{}

// Compress deflates data as a single zlib stream.
func (c ZlibCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress inflates a zlib stream into a buffer of exactly size bytes.
func (c ZlibCodec) Decompress(data []byte, size int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib decompress: %w", err)
	}
	defer r.Close()

	dst := make([]byte, size)
	if _, err := io.ReadFull(r, dst); err != nil {
		return nil, fmt.Errorf("zlib decompress: %w", err)
	}

	// Read once more so the stream's adler32 trailer is verified.
	var extra [1]byte
	if _, err := io.ReadFull(r, extra[:]); err != io.EOF {
		if err == nil {
			err = fmt.Errorf("stream holds more than %d bytes", size)
		}

		return nil, fmt.Errorf("zlib decompress: %w", err)
	}

	return dst, nil
}
