package ioadapter

import (
	"bufio"
	"io"
)

// StreamSource adapts a forward-only io.Reader (or io.Writer) to Source.
// Seek, Truncate, and Memmap fail with errs.ErrNotSeekable (Tell reports
// the number of bytes read or written so far), forcing the block store and document engine onto their streaming
// fallback paths (spec §4.A).
type StreamSource struct {
	r   *bufio.Reader
	w   io.Writer
	pos int64
}

var _ Source = (*StreamSource)(nil)

// NewStreamReader wraps a forward-only reader.
func NewStreamReader(r io.Reader) *StreamSource {
	return &StreamSource{r: bufio.NewReader(r)}
}

// NewStreamWriter wraps a forward-only writer.
func NewStreamWriter(w io.Writer) *StreamSource {
	return &StreamSource{w: w}
}

func (s *StreamSource) Read(n int) ([]byte, error) {
	if s.r == nil {
		return nil, errNotWritable("Read")
	}

	buf := make([]byte, n)

	r, err := io.ReadFull(s.r, buf)
	s.pos += int64(r)

	if err != nil && err != io.ErrUnexpectedEOF {
		return buf[:r], err
	}

	return buf[:r], nil
}

func (s *StreamSource) ReadUntil(delim byte) ([]byte, error) {
	if s.r == nil {
		return nil, errNotWritable("ReadUntil")
	}

	out, err := s.r.ReadBytes(delim)
	s.pos += int64(len(out))

	if err != nil && err != io.EOF {
		return out, err
	}

	return out, nil
}

func (s *StreamSource) Seek(pos int64) error       { return errNotSeekable("Seek") }
func (s *StreamSource) Tell() (int64, error)       { return s.pos, nil }
func (s *StreamSource) Truncate(pos int64) error   { return errNotSeekable("Truncate") }
func (s *StreamSource) Size() (int64, bool)        { return 0, false }

func (s *StreamSource) Write(data []byte) (int, error) {
	if s.w == nil {
		return 0, errNotWritable("Write")
	}

	n, err := s.w.Write(data)
	s.pos += int64(n)

	return n, err
}

func (s *StreamSource) Memmap(offset int64, n int) ([]byte, bool, error) {
	return nil, false, errNotSeekable("Memmap")
}

func (s *StreamSource) IsSeekable() bool { return false }
func (s *StreamSource) IsRandom() bool   { return false }
func (s *StreamSource) Close() error     { return nil }
