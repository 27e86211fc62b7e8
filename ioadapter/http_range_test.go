package ioadapter

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rangeServer(t *testing.T, content []byte) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "payload.asdf", time.Unix(0, 0), bytes.NewReader(content))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestHTTPRangeSource_ReadsByRange(t *testing.T) {
	content := []byte("0123456789abcdefghij")
	srv := rangeServer(t, content)

	src, err := NewHTTPRangeSource(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	defer src.Close()

	size, ok := src.Size()
	require.True(t, ok)
	assert.Equal(t, int64(len(content)), size)

	require.NoError(t, src.Seek(10))

	got, err := src.Read(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcde"), got)

	pos, err := src.Tell()
	require.NoError(t, err)
	assert.Equal(t, int64(15), pos)
}

func TestHTTPRangeSource_ReadUntil(t *testing.T) {
	srv := rangeServer(t, []byte("#ASDF 1.1.0\nrest"))

	src, err := NewHTTPRangeSource(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	defer src.Close()

	line, err := src.ReadUntil('\n')
	require.NoError(t, err)
	assert.Equal(t, []byte("#ASDF 1.1.0\n"), line)
}

func TestHTTPRangeSource_IsReadOnly(t *testing.T) {
	srv := rangeServer(t, []byte("content"))

	src, err := NewHTTPRangeSource(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	defer src.Close()

	assert.True(t, src.IsSeekable())
	assert.True(t, src.IsRandom())

	_, err = src.Write([]byte("nope"))
	assert.Error(t, err)
	assert.Error(t, src.Truncate(0))

	_, ok, err := src.Memmap(0, 4)
	require.NoError(t, err)
	assert.False(t, ok)
}
