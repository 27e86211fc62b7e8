package ioadapter

import (
	"testing"

	"github.com/asdf-format/asdf-go/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySource_ReadWrite(t *testing.T) {
	s := NewMemorySource([]byte("hello world"))

	got, err := s.Read(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	pos, err := s.Tell()
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos)
}

func TestMemorySource_Write_Grows(t *testing.T) {
	s := NewMemorySource(nil)

	n, err := s.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	size, ok := s.Size()
	require.True(t, ok)
	assert.Equal(t, int64(3), size)
}

func TestMemorySource_SeekAndReadUntil(t *testing.T) {
	s := NewMemorySource([]byte("line one\nline two\n"))

	first, err := s.ReadUntil('\n')
	require.NoError(t, err)
	assert.Equal(t, "line one\n", string(first))

	require.NoError(t, s.Seek(0))

	whole, err := s.ReadUntil('\n')
	require.NoError(t, err)
	assert.Equal(t, "line one\n", string(whole))
}

func TestMemorySource_Memmap(t *testing.T) {
	s := NewMemorySource([]byte("0123456789"))

	buf, ok, err := s.Memmap(2, 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("2345"), buf)

	_, ok, err = s.Memmap(8, 10)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestMemorySource_Truncate(t *testing.T) {
	s := NewMemorySource([]byte("0123456789"))

	require.NoError(t, s.Truncate(4))
	assert.Equal(t, []byte("0123"), s.Bytes())

	require.NoError(t, s.Truncate(6))
	assert.Equal(t, 6, len(s.Bytes()))
}

func TestMemorySource_IsSeekableAndRandom(t *testing.T) {
	s := NewMemorySource(nil)
	assert.True(t, s.IsSeekable())
	assert.True(t, s.IsRandom())
}

func TestStreamSource_NotSeekable(t *testing.T) {
	s := NewStreamReader(nil)

	assert.False(t, s.IsSeekable())
	assert.ErrorIs(t, s.Seek(0), errs.ErrNotSeekable)
	assert.ErrorIs(t, s.Truncate(0), errs.ErrNotSeekable)

	_, _, err := s.Memmap(0, 10)
	assert.ErrorIs(t, err, errs.ErrNotSeekable)
}
