package ioadapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// HTTPRangeSource adapts a remote HTTP(S) object to Source using Range
// requests, giving it random-access reads without downloading the whole
// object (spec §4.A, "HTTP(S)/remote range reader"). It is read-only.
type HTTPRangeSource struct {
	client *http.Client
	url    string
	size   int64
	pos    int64
}

var _ Source = (*HTTPRangeSource)(nil)

// NewHTTPRangeSource probes url with a HEAD request to learn its size,
// then returns a Source that satisfies reads with byte-range GETs.
func NewHTTPRangeSource(ctx context.Context, client *http.Client, url string) (*HTTPRangeSource, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ioadapter: head request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ioadapter: head request: %w", err)
	}
	defer resp.Body.Close()

	return &HTTPRangeSource{client: client, url: url, size: resp.ContentLength}, nil
}

func (s *HTTPRangeSource) rangeGet(ctx context.Context, start, end int64) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Range", "bytes="+strconv.FormatInt(start, 10)+"-"+strconv.FormatInt(end, 10))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("ioadapter: range request: unexpected status %d", resp.StatusCode)
	}

	return resp.Body, nil
}

func (s *HTTPRangeSource) Read(n int) ([]byte, error) {
	body, err := s.rangeGet(context.Background(), s.pos, s.pos+int64(n)-1)
	if err != nil {
		return nil, fmt.Errorf("ioadapter: read: %w", err)
	}
	defer body.Close()

	buf := make([]byte, n)

	r, err := io.ReadFull(body, buf)
	s.pos += int64(r)

	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return buf[:r], err
	}

	return buf[:r], nil
}

func (s *HTTPRangeSource) ReadUntil(delim byte) ([]byte, error) {
	var out []byte

	for {
		chunk, err := s.Read(1)
		if len(chunk) == 1 {
			out = append(out, chunk[0])
			if chunk[0] == delim {
				return out, nil
			}
		}

		if err != nil || len(chunk) == 0 {
			return out, err
		}
	}
}

func (s *HTTPRangeSource) Seek(pos int64) error {
	s.pos = pos
	return nil
}

func (s *HTTPRangeSource) Tell() (int64, error) {
	return s.pos, nil
}

func (s *HTTPRangeSource) Write(data []byte) (int, error) {
	return 0, errNotWritable("Write")
}

func (s *HTTPRangeSource) Size() (int64, bool) {
	return s.size, s.size > 0
}

func (s *HTTPRangeSource) Truncate(pos int64) error {
	return errNotWritable("Truncate")
}

// Memmap is unsupported: there is no local file to map.
func (s *HTTPRangeSource) Memmap(offset int64, n int) ([]byte, bool, error) {
	return nil, false, nil
}

func (s *HTTPRangeSource) IsSeekable() bool { return true }
func (s *HTTPRangeSource) IsRandom() bool   { return true }
func (s *HTTPRangeSource) Close() error     { return nil }
