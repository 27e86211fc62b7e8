package ioadapter

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// FileSource adapts an *os.File to Source: fully random-access, seekable,
// and writable, with real memory-mapping for uncompressed internal block
// reads (spec §3, "Memory mapping").
type FileSource struct {
	f    *os.File
	size int64
	maps []mmap.MMap
}

var _ Source = (*FileSource)(nil)

// OpenFile opens path read-only, or for reading and writing (creating it
// if it doesn't exist) when writable is true.
func OpenFile(path string, writable bool) (*FileSource, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR | os.O_CREATE
	}

	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ioadapter: open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ioadapter: stat file: %w", err)
	}

	return &FileSource{f: f, size: info.Size()}, nil
}

// NewFileSource wraps an already-open *os.File.
func NewFileSource(f *os.File) (*FileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("ioadapter: stat file: %w", err)
	}

	return &FileSource{f: f, size: info.Size()}, nil
}

func (s *FileSource) Read(n int) ([]byte, error) {
	buf := make([]byte, n)

	r, err := io.ReadFull(s.f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return buf[:r], err
	}

	return buf[:r], nil
}

func (s *FileSource) ReadUntil(delim byte) ([]byte, error) {
	var out []byte

	buf := make([]byte, 1)

	for {
		n, err := s.f.Read(buf)
		if n == 1 {
			out = append(out, buf[0])
			if buf[0] == delim {
				return out, nil
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}

			return out, err
		}
	}
}

func (s *FileSource) Seek(pos int64) error {
	_, err := s.f.Seek(pos, io.SeekStart)
	return err
}

func (s *FileSource) Tell() (int64, error) {
	return s.f.Seek(0, io.SeekCurrent)
}

func (s *FileSource) Write(data []byte) (int, error) {
	n, err := s.f.Write(data)
	if pos, posErr := s.Tell(); posErr == nil && pos > s.size {
		s.size = pos
	}

	return n, err
}

func (s *FileSource) Size() (int64, bool) {
	return s.size, true
}

func (s *FileSource) Truncate(pos int64) error {
	if err := s.f.Truncate(pos); err != nil {
		return err
	}

	s.size = pos

	return nil
}

// Memmap returns a read-only mmap view of [offset, offset+n). The view
// lives until Close; callers must not hold the returned slice past it.
// offset must be page-aligned for the OS to map it — misaligned offsets
// report ok=false so the caller falls back to a plain read.
func (s *FileSource) Memmap(offset int64, n int) ([]byte, bool, error) {
	m, err := mmap.MapRegion(s.f, n, mmap.RDONLY, 0, offset)
	if err != nil {
		return nil, false, nil
	}

	s.maps = append(s.maps, m)

	return m, true, nil
}

func (s *FileSource) IsSeekable() bool { return true }
func (s *FileSource) IsRandom() bool   { return true }

// Close unmaps every outstanding Memmap view and releases the file
// handle; all views into the file are invalid afterwards.
func (s *FileSource) Close() error {
	var firstErr error

	for _, m := range s.maps {
		if err := m.Unmap(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("ioadapter: unmap: %w", err)
		}
	}

	s.maps = nil

	if err := s.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}
