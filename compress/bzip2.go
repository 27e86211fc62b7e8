package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
)

// Bzip2Codec implements the "bzp2" block compression code. The standard
// library's compress/bzip2 is decode-only, so this codec uses
// dsnet/compress/bzip2 for both directions.
type Bzip2Codec struct{}

var _ Codec = Bzip2Codec{}

// Compress bzip2-compresses data at the library's default block size.
func (c Bzip2Codec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := bzip2.NewWriter(&buf, nil)
	if err != nil {
		return nil, fmt.Errorf("bzip2 compress: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("bzip2 compress: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("bzip2 compress: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress inflates a bzip2 stream into a buffer of exactly size bytes.
func (c Bzip2Codec) Decompress(data []byte, size int) ([]byte, error) {
	r, err := bzip2.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		return nil, fmt.Errorf("bzip2 decompress: %w", err)
	}
	defer r.Close()

	dst := make([]byte, size)
	if _, err := io.ReadFull(r, dst); err != nil {
		return nil, fmt.Errorf("bzip2 decompress: %w", err)
	}

	return dst, nil
}
